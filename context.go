package goGate

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type authContextKey struct{}
type serviceContextKey struct{}

// WithAuthContext attaches ac to ctx for downstream handlers.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthContextFromContext returns the [AuthContext] attached by
// [WithAuthContext].
func AuthContextFromContext(ctx context.Context) (*AuthContext, bool) {
	if ctx == nil {
		return nil, false
	}
	ac, ok := ctx.Value(authContextKey{}).(*AuthContext)
	return ac, ok && ac != nil
}

// WithServiceContext attaches sc to ctx for downstream handlers.
func WithServiceContext(ctx context.Context, sc *ServiceContext) context.Context {
	return context.WithValue(ctx, serviceContextKey{}, sc)
}

// ServiceContextFromContext returns the [ServiceContext] attached by
// [WithServiceContext].
func ServiceContextFromContext(ctx context.Context) (*ServiceContext, bool) {
	if ctx == nil {
		return nil, false
	}
	sc, ok := ctx.Value(serviceContextKey{}).(*ServiceContext)
	return sc, ok && sc != nil
}

// Request headers read by the gateway.
const (
	HeaderForwardedFor   = "X-Forwarded-For"
	HeaderRealIP         = "X-Real-IP"
	HeaderRequestID      = "X-Request-ID"
	HeaderSessionToken   = "X-Session-Token"
	HeaderInternalSecret = "X-Internal-Secret"
	HeaderServiceID      = "X-Service-ID"
)

// ClientIP returns the first X-Forwarded-For entry, else X-Real-IP, else
// "unknown".
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get(HeaderForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get(HeaderRealIP)); ip != "" {
		return ip
	}
	return "unknown"
}

func requestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(HeaderRequestID)); id != "" {
		return id
	}
	return uuid.NewString()
}

// extractToken returns the session token from the session cookie, else a
// Bearer authorization header, else X-Session-Token.
func extractToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, tok, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if tok = strings.TrimSpace(tok); tok != "" {
				return tok
			}
		}
	}
	return strings.TrimSpace(r.Header.Get(HeaderSessionToken))
}
