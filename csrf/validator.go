package csrf

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// Names of the cookie and header carrying the token.
const (
	CookieName = "csrf-token"
	HeaderName = "X-CSRF-Token"
)

var (
	// ErrMissingToken rejects an authenticated state-changing request
	// without a CSRF cookie.
	ErrMissingToken = errors.New("Missing CSRF token")
	// ErrInvalidToken rejects a header token that is absent or differs
	// from the cookie token.
	ErrInvalidToken = errors.New("Invalid CSRF token")
)

// Input is everything a CSRF decision looks at.
type Input struct {
	Method               string
	Path                 string
	CookieToken          string
	HeaderToken          string
	ServiceAuthenticated bool
	SessionAuthenticated bool
}

// Validator applies the double-submit rules. The zero value has no exempt
// paths.
type Validator struct {
	// ExemptPaths skip validation when the request path contains any entry.
	ExemptPaths []string
}

// DefaultExemptPaths exempts webhooks and the /api/auth endpoints. Paths
// that merely contain "auth", such as /api/payments/authorize, are still checked.
func DefaultExemptPaths() []string {
	return []string{"webhook", "/api/auth"}
}

// New creates a [Validator] with the given exempt path fragments.
func New(exempt ...string) *Validator {
	return &Validator{ExemptPaths: exempt}
}

// Safe reports whether method is read-only.
func Safe(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Exempt reports whether path skips validation.
func (v *Validator) Exempt(path string) bool {
	if v == nil {
		return false
	}
	for _, p := range v.ExemptPaths {
		if p != "" && strings.Contains(path, p) {
			return true
		}
	}
	return false
}

// Check returns nil when in passes, otherwise [ErrMissingToken] or
// [ErrInvalidToken].
func (v *Validator) Check(in Input) error {
	if Safe(in.Method) {
		return nil
	}
	if in.ServiceAuthenticated {
		return nil
	}
	if v.Exempt(in.Path) {
		return nil
	}
	if in.CookieToken == "" {
		if in.SessionAuthenticated {
			return ErrMissingToken
		}
		return nil
	}
	if in.HeaderToken == "" {
		return ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(in.CookieToken), []byte(in.HeaderToken)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// FromRequest collects the token pair and method of r.
func FromRequest(r *http.Request) Input {
	in := Input{
		Method:      r.Method,
		Path:        r.URL.Path,
		HeaderToken: r.Header.Get(HeaderName),
	}
	if c, err := r.Cookie(CookieName); err == nil {
		in.CookieToken = c.Value
	}
	return in
}
