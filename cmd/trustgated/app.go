package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/1Password/connect-sdk-go/connect"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/byteness/trustgate/approval"
	"github.com/byteness/trustgate/config"
	"github.com/byteness/trustgate/credential"
	"github.com/byteness/trustgate/gateway"
	"github.com/byteness/trustgate/logging"
	"github.com/byteness/trustgate/notification"
	"github.com/byteness/trustgate/policy"
	"github.com/byteness/trustgate/proxy"
	"github.com/byteness/trustgate/ratelimit"
	"github.com/byteness/trustgate/session"
)

// run wires up components A-E, starts the HTTP server, and runs the
// background sweepers until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	sessions, err := newSessionManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}

	policyTenants, policyDefault, err := policy.LoadConfigFile(cfg.PolicyConfigFile)
	if err != nil {
		return fmt.Errorf("policy config: %w", err)
	}
	policies, err := policy.NewEngine(policyTenants, policyDefault)
	if err != nil {
		return fmt.Errorf("policy engine: %w", err)
	}

	broker, err := newCredentialBroker(ctx, cfg)
	if err != nil {
		return fmt.Errorf("credential broker: %w", err)
	}

	notifyBackends := newNotifyBackends(cfg)
	orchestrator, err := newOrchestrator(ctx, cfg, logger, notifyBackends)
	if err != nil {
		return fmt.Errorf("approval orchestrator: %w", err)
	}

	forward := proxy.New(cfg.ProxyTimeout)

	auditLogger := logging.NewJSONLogger(os.Stdout)

	var enrollLimiter ratelimit.Limiter
	if cfg.EnrollRateLimitPerMinute > 0 {
		enrollLimiter, err = ratelimit.NewEnrollmentLimiter(ratelimit.Config{
			AttemptsPerWindow: cfg.EnrollRateLimitPerMinute,
			Window:            time.Minute,
		})
		if err != nil {
			return fmt.Errorf("enrollment rate limiter: %w", err)
		}
	}

	metricsReg := prometheus.NewRegistry()

	srv := gateway.NewServer(gateway.Config{
		Sessions:            sessions,
		Credentials:         broker,
		Policies:            policies,
		Approvals:           orchestrator,
		Forward:             forward,
		Audit:               auditLogger,
		Logger:              logger,
		MetricsRegistry:     metricsReg,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		ApprovalWaitTimeout: cfg.ApprovalTTL,
		SessionTTL:          cfg.SessionTTL,
		EnrollLimiter:       enrollLimiter,
	})

	stop := runSweepers(ctx, sessions, orchestrator, logger)
	defer stop()

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      srv.Router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.ProxyTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("trustgated listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down trustgated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// newSessionManager builds the Session Manager over the backend named by
// cfg.StoreBackend ("memory", the default, or "redis" for multi-replica
// deployments).
func newSessionManager(ctx context.Context, cfg *config.Config) (*session.Manager, error) {
	digests, err := session.LoadEnrollmentsFile(cfg.EnrollmentSecretsFile)
	if err != nil {
		return nil, err
	}

	switch cfg.StoreBackend {
	case "", "memory":
		return session.NewManager(digests)
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("store backend %q requires REDIS_ADDR", cfg.StoreBackend)
		}
		backend, err := session.NewRedisBackend(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return session.NewManagerWithBackend(digests, backend)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// newOrchestrator builds the Approval Orchestrator, mirroring its table to
// Redis when cfg.StoreBackend is "redis" so Status/List calls reach records
// created on another replica.
func newOrchestrator(ctx context.Context, cfg *config.Config, logger *slog.Logger, notifyBackends []notification.Notifier) (*approval.Orchestrator, error) {
	adapter := notification.NewAdapter(logger, notifyBackends...)

	switch cfg.StoreBackend {
	case "", "memory":
		return approval.New(adapter, cfg.ApprovalTTL), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("store backend %q requires REDIS_ADDR", cfg.StoreBackend)
		}
		mirror, err := approval.NewRedisMirror(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return approval.NewWithMirror(adapter, cfg.ApprovalTTL, mirror), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// newCredentialBroker wires the Credential Broker over whatever backends
// cfg.CredentialBackends names, in the order given — that order becomes
// the Broker's fallback chain after its cache and env var resolvers.
func newCredentialBroker(ctx context.Context, cfg *config.Config) (*credential.Broker, error) {
	var backends []credential.Backend

	for _, name := range cfg.CredentialBackends {
		switch name {
		case "file":
			if cfg.CredentialsFile == "" {
				return nil, fmt.Errorf("credential backend %q requires CREDENTIALS_FILE", name)
			}
			backend, err := credential.NewFileBackend(cfg.CredentialsFile)
			if err != nil {
				return nil, err
			}
			backends = append(backends, backend)

		case "aws-secrets", "aws-ssm":
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, fmt.Errorf("loading AWS config: %w", err)
			}
			if name == "aws-secrets" {
				backends = append(backends, credential.NewAWSSecretsManagerBackend(secretsmanager.NewFromConfig(awsCfg)))
			} else {
				backends = append(backends, credential.NewAWSParameterStoreBackend(ssm.NewFromConfig(awsCfg)))
			}

		case "onepassword":
			if cfg.OnePasswordVaultsFile == "" {
				return nil, fmt.Errorf("credential backend %q requires ONEPASSWORD_VAULTS_FILE", name)
			}
			vaults, err := loadOnePasswordVaults(cfg.OnePasswordVaultsFile)
			if err != nil {
				return nil, err
			}
			client, err := connect.NewClientFromEnvironment()
			if err != nil {
				return nil, fmt.Errorf("1password connect client: %w", err)
			}
			backends = append(backends, credential.NewOnePasswordBackend(client, vaults))

		default:
			return nil, fmt.Errorf("unknown credential backend %q", name)
		}
	}

	return credential.NewBroker(backends...), nil
}

// newNotifyBackends builds the list of configured notification backends.
// An empty result is valid: notification.NewAdapter treats zero backends
// as a no-op, the same outcome the teacher gets from its own no-op
// notifier default.
func newNotifyBackends(cfg *config.Config) []notification.Notifier {
	var backends []notification.Notifier

	if cfg.WebhookURL != "" {
		webhook, err := notification.NewWebhookNotifier(notification.WebhookConfig{URL: cfg.WebhookURL})
		if err != nil {
			slog.Error("webhook notifier disabled", "error", err)
		} else {
			backends = append(backends, webhook)
		}
	}

	if cfg.SlackToken != "" && cfg.SlackChannel != "" {
		slackNotifier, err := notification.NewSlackNotifier(notification.SlackConfig{
			Token:   cfg.SlackToken,
			Channel: cfg.SlackChannel,
		})
		if err != nil {
			slog.Error("slack notifier disabled", "error", err)
		} else {
			backends = append(backends, slackNotifier)
		}
	}

	return backends
}

// runSweepers periodically evicts expired sessions and expires
// still-pending approvals whose TTL has passed, until ctx is cancelled.
func runSweepers(ctx context.Context, sessions *session.Manager, orchestrator *approval.Orchestrator, logger *slog.Logger) func() {
	ticker := time.NewTicker(time.Minute)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessions.SweepExpired(); n > 0 {
					logger.Info("swept expired sessions", "count", n)
				}
				if n := orchestrator.SweepExpired(); n > 0 {
					logger.Info("swept expired approvals", "count", n)
				}
			}
		}
	}()

	return func() {
		ticker.Stop()
		<-done
	}
}
