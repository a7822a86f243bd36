package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

const defaultMaxFutureIAT = 10 * time.Minute

var (
	// ErrInvalidToken wraps every verification failure.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrCannotSign is returned by Issue on a verify-only manager.
	ErrCannotSign = errors.New("manager has no signing key")
	// ErrTokenExpired marks a Parse failure caused by the exp claim alone
	// being in the past. It is always wrapped together with ErrInvalidToken.
	ErrTokenExpired = errors.New("session token expired")
)

// Config configures a [Manager]. With VerifyKeys set, tokens must carry a
// kid present in the map; KeyID is then stamped on issued tokens.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

// SessionClaims is the payload of a session token. The token only points
// at a server-side session; it grants nothing by itself.
type SessionClaims struct {
	UID string `json:"uid"`
	TID string `json:"tid,omitempty"`
	SID string `json:"sid"`
	MFA bool   `json:"mfa,omitempty"`
	jwt.RegisteredClaims
}

// keyring holds keys decoded once at construction.
type keyring struct {
	method jwt.SigningMethod
	sign   any
	// verify is used when no kid map is configured.
	verify any
	byKid  map[string]any
	kid    string
}

// Manager signs and parses session tokens.
type Manager struct {
	config Config
	keys   keyring
	parser *jwt.Parser
	// lenient verifies signatures only; see ParseExpired.
	lenient *jwt.Parser
	now     func() time.Time
}

// NewManager validates cfg and returns a [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = defaultMaxFutureIAT
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	keys, err := buildKeyring(cfg)
	if err != nil {
		return nil, err
	}

	m := &Manager{config: cfg, keys: keys, now: time.Now}
	m.parser = m.newParser()
	m.lenient = jwt.NewParser(
		jwt.WithValidMethods([]string{keys.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return m, nil
}

func buildKeyring(cfg Config) (keyring, error) {
	k := keyring{kid: cfg.KeyID}
	decode := func(raw []byte) (any, error) { return raw, nil }

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return k, errors.New("hs256 requires a key of at least 32 bytes")
		}
		k.method = jwt.SigningMethodHS256
		k.sign, k.verify = cfg.PrivateKey, cfg.PrivateKey
	case MethodEd25519:
		k.method = jwt.SigningMethodEdDSA
		decode = func(raw []byte) (any, error) { return parseEdPublicKey(raw) }
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return k, err
			}
			k.sign = priv
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return k, err
			}
			k.verify = pub
		}
		if len(cfg.VerifyKeys) == 0 && k.verify == nil {
			return k, errors.New("ed25519 requires public key or verify key set")
		}
	default:
		return k, errors.New("unsupported signing method")
	}

	if len(cfg.VerifyKeys) > 0 {
		k.byKid = make(map[string]any, len(cfg.VerifyKeys))
		for kid, raw := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return k, errors.New("verify key map contains empty kid")
			}
			key, err := decode(raw)
			if err != nil {
				return k, fmt.Errorf("invalid verify key for kid %q: %w", kid, err)
			}
			k.byKid[kid] = key
		}
		if k.kid != "" {
			if _, ok := k.byKid[k.kid]; !ok {
				return k, errors.New("KeyID is not present in VerifyKeys")
			}
		}
	}
	return k, nil
}

func (j *Manager) newParser() *jwt.Parser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.keys.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return j.now() }),
	}
	if j.config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(j.config.Audience))
	}
	return jwt.NewParser(opts...)
}

// WithClock overrides the time source used for issuing and verification.
func (j *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		j.now = now
	}
	return j
}

// TTL returns the configured token lifetime.
func (j *Manager) TTL() time.Duration {
	return j.config.TTL
}

// Issue signs a token referencing sessionID. The token never outlives
// expiresAt when it is set.
func (j *Manager) Issue(userID, tenantID, sessionID string, mfa bool, expiresAt time.Time) (string, error) {
	if sessionID == "" || userID == "" {
		return "", errors.New("session token requires user and session id")
	}
	if j.keys.sign == nil {
		return "", ErrCannotSign
	}

	now := j.now()
	exp := now.Add(j.config.TTL)
	if !expiresAt.IsZero() && expiresAt.Before(exp) {
		exp = expiresAt
	}

	claims := SessionClaims{
		UID: userID,
		TID: tenantID,
		SID: sessionID,
		MFA: mfa,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.keys.method, claims)
	if j.keys.kid != "" {
		token.Header["kid"] = j.keys.kid
	}
	return token.SignedString(j.keys.sign)
}

// Parse verifies tokenStr and returns its claims. Every failure wraps
// [ErrInvalidToken].
func (j *Manager) Parse(tokenStr string) (*SessionClaims, error) {
	token, err := j.parser.ParseWithClaims(tokenStr, &SessionClaims{}, j.lookupKey)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w: %v", ErrInvalidToken, ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	switch {
	case !ok || !token.Valid:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrTokenInvalidClaims)
	case claims.SID == "" || claims.UID == "":
		return nil, fmt.Errorf("%w: missing session reference", ErrInvalidToken)
	case claims.IssuedAt != nil && claims.IssuedAt.After(j.now().Add(j.config.MaxFutureIAT)):
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalidToken)
	}
	return claims, nil
}

// ParseExpired returns the claims of a correctly signed token whose only
// defect may be its expiry. Issuer and audience are still enforced. The
// result must only be used to look up the referenced session, never to
// grant access.
func (j *Manager) ParseExpired(tokenStr string) (*SessionClaims, error) {
	token, err := j.lenient.ParseWithClaims(tokenStr, &SessionClaims{}, j.lookupKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrTokenInvalidClaims)
	case claims.SID == "" || claims.UID == "":
		return nil, fmt.Errorf("%w: missing session reference", ErrInvalidToken)
	case j.config.Issuer != "" && claims.Issuer != j.config.Issuer:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrTokenInvalidIssuer)
	case j.config.Audience != "" && !slices.Contains(claims.Audience, j.config.Audience):
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrTokenInvalidAudience)
	}
	return claims, nil
}

func (j *Manager) lookupKey(t *jwt.Token) (any, error) {
	if t.Method.Alg() != j.keys.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	kid, _ := t.Header["kid"].(string)

	if j.keys.byKid != nil {
		key, ok := j.keys.byKid[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return key, nil
	}
	if j.keys.kid != "" && kid != j.keys.kid {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	if j.keys.verify == nil {
		return nil, errors.New("no verification key")
	}
	return j.keys.verify, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
