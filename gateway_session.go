package goGate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/goGate/csrf"
	"github.com/MrEthical07/goGate/session"
)

const reasonTokenIssueFailed = "token_issue_failed"

// Login opens a session for a user whose primary credentials the caller
// already verified, and signs a token referencing it. When the user is at
// the concurrency limit the oldest session is evicted.
func (g *Gateway) Login(ctx context.Context, p LoginParams) (*LoginResult, error) {
	if g.closed.Load() {
		return nil, ErrGatewayClosed
	}

	params := session.CreateParams{
		UserID:      p.UserID,
		TenantID:    p.TenantID,
		MFAVerified: p.MFAVerified,
		Metadata:    p.Metadata,
	}
	var req RequestInfo
	if p.Request != nil {
		req = g.requestInfo(p.Request, g.now())
		params.IP = req.IP
		params.UserAgent = req.UserAgent
		params.DeviceFingerprint = session.Fingerprint(p.Request.Header)
	}

	sess, err := g.sessions.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	// The token is bounded by the token TTL only. Session expiry is decided
	// by the store so that refreshed sessions keep their token.
	token, err := g.tokens.Issue(sess.UserID, sess.TenantID, sess.SessionID, sess.MFAVerified, time.Time{})
	if err != nil {
		if ierr := g.sessions.Invalidate(ctx, sess.SessionID, reasonTokenIssueFailed); ierr != nil {
			g.logger.WarnContext(ctx, "could not end session after token issue failure",
				slog.String("session_id", sess.SessionID),
				slog.String("user_id", sess.UserID),
				slog.Any("error", ierr))
		}
		return nil, fmt.Errorf("%w: issue token: %v", ErrSystemError, err)
	}

	g.metrics.Inc(MetricSessionCreated)
	g.emit(ctx, req, eventOutcome{
		eventType:   EventLogin,
		severity:    SeverityLow,
		description: "session opened",
		success:     true,
		userID:      sess.UserID,
		tenantID:    sess.TenantID,
		sessionID:   sess.SessionID,
		meta:        map[string]string{"mfa_verified": strconv.FormatBool(sess.MFAVerified)},
	})

	return &LoginResult{
		Session: sess,
		Token:   token,
		Cookie:  g.SessionCookie(token, sess.ExpiresAt),
	}, nil
}

// Refresh extends the session referenced by token by one session timeout
// and returns it with a newly signed token and cookie.
func (g *Gateway) Refresh(ctx context.Context, token string) (*LoginResult, error) {
	if g.closed.Load() {
		return nil, ErrGatewayClosed
	}
	claims, err := g.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	ok, err := g.sessions.Refresh(ctx, claims.SID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSystemError, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSession, session.ReasonInactive)
	}
	sess, err := g.sessions.Store().Get(ctx, claims.SID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSystemError, err)
	}

	fresh, err := g.tokens.Issue(sess.UserID, sess.TenantID, sess.SessionID, sess.MFAVerified, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("%w: issue token: %v", ErrSystemError, err)
	}
	return &LoginResult{
		Session: sess,
		Token:   fresh,
		Cookie:  g.SessionCookie(fresh, sess.ExpiresAt),
	}, nil
}

// Logout invalidates the session referenced by token. Logging out an
// already ended session succeeds.
func (g *Gateway) Logout(ctx context.Context, token string) error {
	claims, err := g.tokens.Parse(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if err := g.sessions.Invalidate(ctx, claims.SID, session.ReasonLogout); err != nil {
		return fmt.Errorf("%w: %v", ErrSystemError, err)
	}

	g.metrics.Inc(MetricLogout)
	g.emit(ctx, RequestInfo{}, eventOutcome{
		eventType:   EventLogout,
		severity:    SeverityLow,
		description: "session logged out",
		success:     true,
		userID:      claims.UID,
		tenantID:    claims.TID,
		sessionID:   claims.SID,
	})
	return nil
}

// LogoutAll ends every live session of the user in the tenant and returns
// how many were ended.
func (g *Gateway) LogoutAll(ctx context.Context, userID, tenantID string) (int, error) {
	n, err := g.sessions.TerminateAllForUser(ctx, userID, tenantID, session.ReasonLogout)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSystemError, err)
	}
	g.metrics.Inc(MetricLogoutAll)
	return n, nil
}

// VerifyMFA records that the holder of token completed a second factor.
func (g *Gateway) VerifyMFA(ctx context.Context, token string) error {
	claims, err := g.tokens.Parse(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	sess, err := g.sessions.Store().Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrInvalidSession, session.ReasonNotFound)
		}
		return fmt.Errorf("%w: %v", ErrSystemError, err)
	}
	if !sess.Live(g.now()) {
		return fmt.Errorf("%w: %s", ErrInvalidSession, session.ReasonInactive)
	}
	if _, err := g.sessions.MarkMFAVerified(ctx, claims.SID); err != nil {
		return fmt.Errorf("%w: %v", ErrSystemError, err)
	}
	return nil
}

// IssueCSRF sets a fresh CSRF cookie on w when r carries none or a
// malformed one, and returns the token in effect.
func (g *Gateway) IssueCSRF(w http.ResponseWriter, r *http.Request) (string, error) {
	return csrf.Issue(w, r, g.config.Security.ProductionMode)
}

// SessionCookie builds the HttpOnly cookie carrying token. A sliding
// session gets a browser-session cookie; otherwise the cookie expires with
// the session.
func (g *Gateway) SessionCookie(token string, expiresAt time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     g.config.Session.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.config.Security.ProductionMode,
		SameSite: http.SameSiteStrictMode,
	}
	if !g.config.Session.SlidingExpiration && !expiresAt.IsZero() {
		c.Expires = expiresAt
	}
	return c
}

// SessionCookieName is the cookie the gateway reads the token from.
func (g *Gateway) SessionCookieName() string {
	return g.config.Session.CookieName
}

// SessionToken returns the session token r carries, from the session
// cookie, a Bearer header or X-Session-Token in that order.
func (g *Gateway) SessionToken(r *http.Request) string {
	return extractToken(r, g.config.Session.CookieName)
}
