package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/metrics/export/prometheus"
	"github.com/MrEthical07/goGate/middleware"
	"github.com/MrEthical07/goGate/permission"
)

type createSessionRequest struct {
	UserID      string            `json:"user_id"`
	TenantID    string            `json:"tenant_id"`
	MFAVerified bool              `json:"mfa_verified"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type createSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

func routes(gw *goGate.Gateway, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", prometheus.NewCollector(gw).Handler())

	mux.HandleFunc("GET /api/csrf", func(w http.ResponseWriter, r *http.Request) {
		token, err := gw.IssueCSRF(w, r)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
	})

	service := middleware.RequireService(gw)

	// Primary authentication happens in an upstream identity service, which
	// opens sessions here with its service credentials. The session cookie
	// is still set so browser clients can be fronted by that service.
	mux.Handle("POST /internal/sessions", service(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.TenantID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and tenant_id are required"})
			return
		}
		res, err := gw.Login(r.Context(), goGate.LoginParams{
			UserID:      req.UserID,
			TenantID:    req.TenantID,
			MFAVerified: req.MFAVerified,
			Metadata:    req.Metadata,
			Request:     r,
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "login failed", slog.String("error", err.Error()))
			status, code := goGate.Classify(err)
			writeJSON(w, status, goGate.ResponseBody{Error: "Login failed", Code: code})
			return
		}
		middleware.SetSessionCookie(w, res)
		writeJSON(w, http.StatusCreated, createSessionResponse{
			SessionID: res.Session.SessionID,
			Token:     res.Token,
			ExpiresAt: res.Session.ExpiresAt,
		})
	})))

	mux.Handle("POST /internal/sessions/mfa", service(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
			return
		}
		if err := gw.VerifyMFA(r.Context(), req.Token); err != nil {
			status, code := goGate.Classify(err)
			writeJSON(w, status, goGate.ResponseBody{Error: "MFA verification failed", Code: code})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})))

	mux.Handle("POST /api/auth/logout", middleware.Require(gw, goGate.RouteOptions{SkipTenant: true})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := gw.Logout(r.Context(), gw.SessionToken(r)); err != nil {
				logger.ErrorContext(r.Context(), "logout failed", slog.String("error", err.Error()))
			}
			middleware.ClearSessionCookie(w, gw)
			w.WriteHeader(http.StatusNoContent)
		})))

	mux.Handle("POST /api/auth/refresh", middleware.Require(gw, goGate.RouteOptions{SkipTenant: true})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := gw.Refresh(r.Context(), gw.SessionToken(r))
			if err != nil {
				status, code := goGate.Classify(err)
				writeJSON(w, status, goGate.ResponseBody{Error: "Refresh failed", Code: code})
				return
			}
			middleware.SetSessionCookie(w, res)
			writeJSON(w, http.StatusOK, createSessionResponse{
				SessionID: res.Session.SessionID,
				Token:     res.Token,
				ExpiresAt: res.Session.ExpiresAt,
			})
		})))

	mux.Handle("GET /api/me", middleware.Require(gw, goGate.RouteOptions{})(http.HandlerFunc(writeIdentity)))
	mux.Handle("GET /api/appointments", middleware.RequirePermission(gw, permission.AppointmentRead)(http.HandlerFunc(writeIdentity)))
	mux.Handle("POST /api/admin/settings", middleware.RequirePermission(gw, permission.SettingsUpdate)(http.HandlerFunc(writeIdentity)))

	return middleware.SecurityHeaders(mux)
}

func writeIdentity(w http.ResponseWriter, r *http.Request) {
	ac, ok := goGate.AuthContextFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      ac.UserID,
		"tenant_id":    ac.TenantID,
		"session_id":   ac.SessionID,
		"role":         ac.UserRole,
		"permissions":  ac.Permissions,
		"mfa_verified": ac.MFAVerified,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
