// Package gateway implements the Gateway Front-End (component F): the HTTP
// surface that binds the Session Manager, Credential Broker, Policy
// Engine, Approval Orchestrator, and HTTP Forward Proxy into the
// request-admission pipeline, and exposes approval decision endpoints.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/byteness/trustgate/approval"
	"github.com/byteness/trustgate/credential"
	"github.com/byteness/trustgate/logging"
	"github.com/byteness/trustgate/policy"
	"github.com/byteness/trustgate/proxy"
	"github.com/byteness/trustgate/ratelimit"
	"github.com/byteness/trustgate/session"
)

// Server composes components A-E behind chi's router.
type Server struct {
	Router *chi.Mux

	sessions    *session.Manager
	credentials *credential.Broker
	policies    *policy.Engine
	approvals   *approval.Orchestrator
	forward     *proxy.Proxy
	audit       logging.Logger
	logger      *slog.Logger
	metrics     *Metrics

	approvalWaitTimeout time.Duration
	sessionTTL          time.Duration
	readyCheck          func() bool
	enrollLimiter       ratelimit.Limiter
}

// Config carries Server's dependencies. All fields are required except
// ReadyCheck, which defaults to always-ready.
type Config struct {
	Sessions            *session.Manager
	Credentials         *credential.Broker
	Policies            *policy.Engine
	Approvals           *approval.Orchestrator
	Forward             *proxy.Proxy
	Audit               logging.Logger
	Logger              *slog.Logger
	MetricsRegistry     *prometheus.Registry
	CORSAllowedOrigins  []string
	ApprovalWaitTimeout time.Duration
	SessionTTL          time.Duration
	ReadyCheck          func() bool
	EnrollLimiter       ratelimit.Limiter
}

// NewServer builds the chi router and mounts every route in the external
// interface surface.
func NewServer(cfg Config) *Server {
	if cfg.Audit == nil {
		cfg.Audit = logging.NewNopLogger()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ApprovalWaitTimeout <= 0 {
		cfg.ApprovalWaitTimeout = approval.DefaultTTL
	}
	if cfg.ReadyCheck == nil {
		cfg.ReadyCheck = func() bool { return true }
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.NewRegistry()
	}
	if cfg.EnrollLimiter == nil {
		cfg.EnrollLimiter = noopRateLimiter{}
	}

	s := &Server{
		Router:              chi.NewRouter(),
		sessions:            cfg.Sessions,
		credentials:         cfg.Credentials,
		policies:            cfg.Policies,
		approvals:           cfg.Approvals,
		forward:             cfg.Forward,
		audit:               cfg.Audit,
		logger:              cfg.Logger,
		metrics:             NewMetrics(cfg.MetricsRegistry),
		approvalWaitTimeout: cfg.ApprovalWaitTimeout,
		sessionTTL:          cfg.SessionTTL,
		readyCheck:          cfg.ReadyCheck,
		enrollLimiter:       cfg.EnrollLimiter,
	}

	s.Router.Use(RequestID)
	s.Router.Use(AccessLog(cfg.Logger))
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Provider", "X-Creds", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/health", s.handleHealth)
	s.Router.Get("/readyz", s.handleReady)
	s.Router.Handle("/metrics", promhttp.HandlerFor(cfg.MetricsRegistry, promhttp.HandlerOpts{}))

	s.Router.Post("/session/new", s.handleSessionNew)
	s.Router.Post("/session/revoke", s.authenticated(s.handleSessionRevoke))

	s.Router.Post("/approvals/request", s.authenticated(s.handleApprovalRequest))
	s.Router.Get("/approvals", s.authenticated(s.handleApprovalList))
	s.Router.Post("/approvals/{id}/approve", s.authenticated(s.handleApprovalDecide(approval.StatusApproved)))
	s.Router.Post("/approvals/{id}/deny", s.authenticated(s.handleApprovalDecide(approval.StatusDenied)))
	s.Router.Get("/approvals/{id}/status", s.authenticated(s.handleApprovalStatus))

	s.Router.Post("/credentials/fetch", s.authenticated(s.handleCredentialsFetch))

	s.Router.Handle("/api/v1/proxy/*", s.authenticated(s.handleProxy))

	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	Respond(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.readyCheck() {
		Respond(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}

type sessionContextKey int

const tenantContextKey sessionContextKey = iota

// authenticated wraps next with session-token verification, placing the
// resolved tenant id in the request context.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			RespondError(w, err)
			return
		}
		sess, ok := s.sessions.ValidateToken(token)
		if !ok {
			RespondError(w, authErrInvalidSession())
			return
		}
		ctx := context.WithValue(r.Context(), tenantContextKey, sess.TenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func tenantFromContext(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantContextKey).(string)
	return tenant
}

// noopRateLimiter always allows, the default when no enrollment rate limit
// is configured.
type noopRateLimiter struct{}

func (noopRateLimiter) Allow(_ context.Context, _ string) (bool, time.Duration, error) {
	return true, 0, nil
}
