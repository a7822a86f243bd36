package goGate

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
)

// ServicePermission is the single grant of an authenticated service.
const ServicePermission = "service_access"

// AuthenticateService checks an internal service call. It requires the
// X-Internal-Secret and X-Service-ID headers; the secret is compared in
// constant time against the configured internal key.
func (g *Gateway) AuthenticateService(ctx context.Context, r *http.Request) (dec ServiceDecision) {
	req := g.requestInfo(r, g.now())

	defer func() {
		if p := recover(); p != nil {
			g.logger.ErrorContext(ctx, "service authentication panic",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			dec = serviceRejection(g.reject(ctx, req, fmt.Errorf("%w: panic: %v", ErrSystemError, p), rejectInfo{}))
		}
	}()

	secret := r.Header.Get(HeaderInternalSecret)
	serviceID := strings.TrimSpace(r.Header.Get(HeaderServiceID))
	if secret == "" || serviceID == "" {
		return serviceRejection(g.reject(ctx, req, ErrServiceCredentialRequired, rejectInfo{}))
	}
	if !g.serviceSecretValid(serviceID, secret) {
		return serviceRejection(g.reject(ctx, req, ErrServiceAuthFailure, rejectInfo{
			meta: map[string]string{"service_id": serviceID},
		}))
	}

	g.metrics.Inc(MetricServiceAuthenticated)
	g.emit(ctx, req, eventOutcome{
		eventType:   EventServiceAuthenticated,
		severity:    SeverityLow,
		description: "service authenticated",
		success:     true,
		meta:        map[string]string{"service_id": serviceID, "request_id": req.RequestID},
	})

	return ServiceDecision{
		Proceed: true,
		Context: &ServiceContext{
			ServiceID:   serviceID,
			Permissions: []string{ServicePermission},
			Request:     req,
		},
	}
}

func serviceRejection(d Decision) ServiceDecision {
	return ServiceDecision{Response: d.Response, Err: d.Err}
}

// serviceCredentialValid reports whether r carries valid service headers.
// It is what exempts service calls from CSRF validation.
func (g *Gateway) serviceCredentialValid(r *http.Request) bool {
	secret := r.Header.Get(HeaderInternalSecret)
	serviceID := strings.TrimSpace(r.Header.Get(HeaderServiceID))
	if secret == "" || serviceID == "" {
		return false
	}
	return g.serviceSecretValid(serviceID, secret)
}

func (g *Gateway) serviceSecretValid(serviceID, secret string) bool {
	key := g.config.Service.InternalKey
	if key == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(key)) != 1 {
		return false
	}
	allowed := g.config.Service.AllowedServices
	return len(allowed) == 0 || slices.Contains(allowed, serviceID)
}
