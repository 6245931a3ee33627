package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the gateway daemon's process configuration, loaded from
// environment variables.
type Config struct {
	Host string `env:"GATEWAY_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"GATEWAY_PORT" envDefault:"8443"`

	EnrollmentSecretsFile string `env:"ENROLLMENT_SECRETS_FILE,required"`
	CredentialsFile       string `env:"CREDENTIALS_FILE"`
	PolicyConfigFile      string `env:"POLICY_CONFIG_FILE,required"`

	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	ApprovalTTL  time.Duration `env:"APPROVAL_TTL" envDefault:"1h"`
	ProxyTimeout time.Duration `env:"PROXY_TIMEOUT" envDefault:"30s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	Debug     bool   `env:"DEBUG" envDefault:"false"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	RedisAddr    string `env:"REDIS_ADDR"`

	SlackToken   string `env:"SLACK_TOKEN"`
	SlackChannel string `env:"SLACK_CHANNEL"`
	WebhookURL   string `env:"APPROVAL_WEBHOOK_URL"`

	// CredentialBackends lists, in fallback order, which external backends
	// the Credential Broker chains after its cache and env var resolvers.
	// Recognized values: "file", "aws-secrets", "aws-ssm", "onepassword".
	CredentialBackends    []string `env:"CREDENTIAL_BACKENDS" envSeparator:","`
	OnePasswordVaultsFile string   `env:"ONEPASSWORD_VAULTS_FILE"`

	EnrollRateLimitPerMinute int `env:"ENROLL_RATE_LIMIT_PER_MINUTE" envDefault:"10"`
}

// WrapperConfig is the environment the trustgate-wrap binary reads — the
// Wrapper Contract's side of the env var surface (component G).
type WrapperConfig struct {
	GatewayURL   string `env:"GATEWAY_URL,required"`
	SessionToken string `env:"GATEWAY_SESSION_TOKEN,required"`
	TenantID     string `env:"GATEWAY_TENANT_ID,required"`
	CredSelector string `env:"GATEWAY_CREDS,required"`
}

// Load reads Config from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWrapperConfig reads WrapperConfig from the process environment.
func LoadWrapperConfig() (*WrapperConfig, error) {
	cfg := &WrapperConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
