package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	goGate "github.com/MrEthical07/goGate"
)

// Gin context keys holding the authenticated identities.
const (
	GinAuthContextKey    = "gogate.auth"
	GinServiceContextKey = "gogate.service"
)

// Gin is [Require] for gin routers. The AuthContext is stored both in the
// gin context under [GinAuthContextKey] and in the request context.
func Gin(gw *goGate.Gateway, opts goGate.RouteOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		dec := gw.Authenticate(c.Request.Context(), c.Request, opts)
		if !dec.Proceed {
			abortWith(c, dec.Response)
			return
		}
		c.Set(GinAuthContextKey, dec.Context)
		c.Request = c.Request.WithContext(goGate.WithAuthContext(c.Request.Context(), dec.Context))
		c.Next()
	}
}

// GinService is [RequireService] for gin routers.
func GinService(gw *goGate.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		dec := gw.AuthenticateService(c.Request.Context(), c.Request)
		if !dec.Proceed {
			abortWith(c, dec.Response)
			return
		}
		c.Set(GinServiceContextKey, dec.Context)
		c.Request = c.Request.WithContext(goGate.WithServiceContext(c.Request.Context(), dec.Context))
		c.Next()
	}
}

// GinAuthContext returns the AuthContext stored by [Gin].
func GinAuthContext(c *gin.Context) (*goGate.AuthContext, bool) {
	v, ok := c.Get(GinAuthContextKey)
	if !ok {
		return nil, false
	}
	ac, ok := v.(*goGate.AuthContext)
	return ac, ok
}

func abortWith(c *gin.Context, resp *goGate.Response) {
	if resp == nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	for k, vs := range resp.Headers {
		for _, v := range vs {
			c.Writer.Header().Add(k, v)
		}
	}
	c.AbortWithStatusJSON(resp.Status, resp.Body)
}
