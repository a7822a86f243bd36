package csrf

import (
	"net/http"

	"github.com/MrEthical07/goGate/internal"
)

// GenerateToken returns 32 random bytes as 64 hex characters.
func GenerateToken() (string, error) {
	return internal.NewCSRFToken()
}

// Cookie builds the script-readable token cookie.
func Cookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// NeedsToken reports whether the response to r should set a fresh cookie:
// true when r carries no token cookie, or one with an unexpected shape.
func NeedsToken(r *http.Request) bool {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return true
	}
	return !wellFormed(c.Value)
}

// Issue sets a new token cookie on w when r needs one and returns the
// token in effect.
func Issue(w http.ResponseWriter, r *http.Request, secure bool) (string, error) {
	if !NeedsToken(r) {
		c, _ := r.Cookie(CookieName)
		return c.Value, nil
	}
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, Cookie(token, secure))
	return token, nil
}

func wellFormed(token string) bool {
	if len(token) != 64 {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
