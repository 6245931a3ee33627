package wrapper

import (
	"strings"
)

// sensitiveNameFragments is checked against the upper-cased variable name;
// any match means the variable is scrubbed from the child environment
// before the deliberately-injected credential variables are added back.
var sensitiveNameFragments = []string{"KEY", "SECRET", "TOKEN", "PASSWORD"}

// ScrubEnv returns environ (in "NAME=value" form, as os.Environ produces)
// with every variable whose name contains one of the sensitive fragments
// removed.
func ScrubEnv(environ []string) []string {
	out := make([]string, 0, len(environ))
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		if isSensitiveName(name) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func isSensitiveName(name string) bool {
	upper := strings.ToUpper(name)
	for _, fragment := range sensitiveNameFragments {
		if strings.Contains(upper, fragment) {
			return true
		}
	}
	return false
}

// providerEnvVars maps a credential bundle field to the environment
// variable name a given provider's CLI expects it under.
var providerEnvVars = map[string]map[string]string{
	"aws": {
		"access_key":    "AWS_ACCESS_KEY_ID",
		"secret_key":    "AWS_SECRET_ACCESS_KEY",
		"session_token": "AWS_SESSION_TOKEN",
		"region":        "AWS_DEFAULT_REGION",
	},
	"gcp": {
		"credentials_json": "GOOGLE_APPLICATION_CREDENTIALS_JSON",
		"project_id":       "GOOGLE_CLOUD_PROJECT",
	},
	"kubectl": {
		"kubeconfig": "KUBECONFIG_CONTENTS",
	},
	"github": {
		"token":        "GITHUB_TOKEN",
		"bearer_token": "GITHUB_TOKEN",
	},
	"gh": {
		"token":        "GH_TOKEN",
		"bearer_token": "GH_TOKEN",
	},
	"datadog": {
		"api_key": "DD_API_KEY",
		"app_key": "DD_APP_KEY",
	},
	"slack": {
		"token": "SLACK_TOKEN",
	},
	"linear": {
		"api_key": "LINEAR_API_KEY",
		"token":   "LINEAR_API_KEY",
	},
}

// InjectCredentials appends one "NAME=value" entry per field in fields that
// has a known env var mapping for provider. Fields without a mapping for
// this provider are skipped rather than guessed at.
func InjectCredentials(env []string, provider string, fields map[string]string) []string {
	mapping, ok := providerEnvVars[strings.ToLower(provider)]
	if !ok {
		return env
	}
	out := env
	for field, value := range fields {
		name, ok := mapping[field]
		if !ok {
			continue
		}
		out = append(out, name+"="+value)
	}
	return out
}
