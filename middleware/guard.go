package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	goGate "github.com/MrEthical07/goGate"
)

// Require returns middleware that runs every request through
// gw.Authenticate with opts. Rejections are written by [WriteResponse].
func Require(gw *goGate.Gateway, opts goGate.RouteOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gw == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			dec := gw.Authenticate(r.Context(), r, opts)
			if !dec.Proceed {
				WriteResponse(w, dec.Response)
				return
			}

			ctx := goGate.WithAuthContext(r.Context(), dec.Context)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission is Require with only a permission set.
func RequirePermission(gw *goGate.Gateway, permission string) func(http.Handler) http.Handler {
	return Require(gw, goGate.RouteOptions{Permission: permission})
}

// RequireService returns middleware that accepts only authenticated
// internal service calls.
func RequireService(gw *goGate.Gateway) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gw == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			dec := gw.AuthenticateService(r.Context(), r)
			if !dec.Proceed {
				WriteResponse(w, dec.Response)
				return
			}

			ctx := goGate.WithServiceContext(r.Context(), dec.Context)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteResponse writes a gateway rejection. A nil resp becomes a bare 401.
func WriteResponse(w http.ResponseWriter, resp *goGate.Response) {
	if resp == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h := w.Header()
	for k, vs := range resp.Headers {
		h[k] = append([]string(nil), vs...)
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.Status)
	_ = json.NewEncoder(w).Encode(resp.Body)
}

// IssueCSRF sets the CSRF cookie on responses to requests that lack a
// usable one. A generation failure is answered with 500.
func IssueCSRF(gw *goGate.Gateway) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := gw.IssueCSRF(w, r); err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets nosniff, frame denial and a strict referrer policy
// on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// SetSessionCookie writes the session cookie for a completed login.
func SetSessionCookie(w http.ResponseWriter, res *goGate.LoginResult) {
	if res == nil || res.Cookie == nil {
		return
	}
	http.SetCookie(w, res.Cookie)
}

// ClearSessionCookie expires the session cookie on the client.
func ClearSessionCookie(w http.ResponseWriter, gw *goGate.Gateway) {
	c := gw.SessionCookie("", time.Time{})
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}
