package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/byteness/trustgate/gatewayerr"
)

func bearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) <= len(prefix) {
		return "", gatewayerr.AuthError("missing or malformed Authorization header", "send \"Authorization: Bearer <session_token>\"", nil)
	}
	return strings.TrimPrefix(auth, prefix), nil
}

func authErrInvalidSession() error {
	return gatewayerr.AuthError("invalid or expired session", "request a new session via POST /session/new", nil)
}

type sessionNewRequest struct {
	TenantID         string `json:"tenant_id"`
	EnrollmentSecret string `json:"enrollment_secret"`
}

type sessionNewResponse struct {
	SessionToken string `json:"session_token"`
	TTLSeconds   int64  `json:"ttl_seconds"`
	ExpiresAt    string `json:"expires_at"`
}

func (s *Server) handleSessionNew(w http.ResponseWriter, r *http.Request) {
	var req sessionNewRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	if req.TenantID == "" || req.EnrollmentSecret == "" {
		RespondError(w, gatewayerr.BadRequest("tenant_id and enrollment_secret are required", "", nil))
		return
	}

	allowed, retryAfter, err := s.enrollLimiter.Allow(r.Context(), req.TenantID)
	if err != nil {
		RespondError(w, gatewayerr.ConfigError("rate limiter unavailable", "", err))
		return
	}
	if !allowed {
		w.Header().Set("Retry-After", retryAfter.Truncate(time.Second).String())
		RespondError(w, gatewayerr.PolicyDenied("too many enrollment attempts", "wait before retrying", nil))
		return
	}

	if !s.sessions.VerifyEnrollment(req.TenantID, req.EnrollmentSecret) {
		RespondError(w, gatewayerr.AuthError("enrollment verification failed", "check tenant_id and enrollment_secret", nil))
		return
	}

	sess, err := s.sessions.CreateSession(req.TenantID, s.sessionTTL)
	if err != nil {
		RespondError(w, gatewayerr.ConfigError("could not create session", "retry; if this persists, check server entropy source", err))
		return
	}

	Respond(w, http.StatusCreated, sessionNewResponse{
		SessionToken: sess.Token,
		TTLSeconds:   int64(sess.ExpiresAt.Sub(sess.CreatedAt).Seconds()),
		ExpiresAt:    sess.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (s *Server) handleSessionRevoke(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	s.sessions.Revoke(token)
	Respond(w, http.StatusOK, map[string]string{"status": "revoked"})
}
