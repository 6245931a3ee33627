package policy

import (
	"fmt"
	"strings"
	"sync"
)

// compiledPolicy is a Policy with its exceptions pre-compiled for matching.
type compiledPolicy struct {
	mode       Mode
	exceptions []compiledException
}

// Engine holds every tenant's compiled Policy plus the fallback used for
// tenants with no policy of their own.
type Engine struct {
	mu            sync.RWMutex
	policies      map[string]compiledPolicy
	defaultPolicy compiledPolicy
}

// NewEngine compiles policies and defaultPolicy once up front so request-path
// evaluation never compiles a glob.
func NewEngine(policies map[string]Policy, defaultPolicy Policy) (*Engine, error) {
	e := &Engine{policies: make(map[string]compiledPolicy, len(policies))}

	compiled, err := compilePolicy(defaultPolicy)
	if err != nil {
		return nil, fmt.Errorf("compile default policy: %w", err)
	}
	e.defaultPolicy = compiled

	for tenant, p := range policies {
		compiled, err := compilePolicy(p)
		if err != nil {
			return nil, fmt.Errorf("compile policy for tenant %q: %w", tenant, err)
		}
		e.policies[tenant] = compiled
	}
	return e, nil
}

func compilePolicy(p Policy) (compiledPolicy, error) {
	if !p.Mode.IsValid() {
		return compiledPolicy{}, fmt.Errorf("invalid mode %q", p.Mode)
	}
	cp := compiledPolicy{mode: p.Mode}
	for _, exc := range p.Exceptions {
		ce, err := exc.compile()
		if err != nil {
			return compiledPolicy{}, fmt.Errorf("invalid exception: %w", err)
		}
		cp.exceptions = append(cp.exceptions, ce)
	}
	return cp, nil
}

// SetPolicy installs or replaces a tenant's compiled policy at runtime,
// letting a config reload take effect without restarting the gateway.
func (e *Engine) SetPolicy(tenant string, p Policy) error {
	cp, err := compilePolicy(p)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies[tenant] = cp
	return nil
}

func (e *Engine) policyFor(tenant string) compiledPolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if p, ok := e.policies[tenant]; ok {
		return p
	}
	return e.defaultPolicy
}

// RequiresApproval decides whether an already-classified action needs a
// human decision before it reaches the upstream. Reads are never gated.
func (e *Engine) RequiresApproval(tenant string, classification Classification, provider, method, path string) bool {
	if classification == Read {
		return false
	}

	p := e.policyFor(tenant)
	if p.mode == ModeStrict {
		return true
	}

	for _, exc := range p.exceptions {
		if exc.matches(provider, method, path) {
			return false
		}
	}
	return true
}

// ClassifyHTTP classifies an HTTP method. GET/HEAD/OPTIONS are reads;
// everything else is a write.
func ClassifyHTTP(method string) Classification {
	switch strings.ToUpper(method) {
	case "GET", "HEAD", "OPTIONS":
		return Read
	default:
		return Write
	}
}

var mutatingFirstToken = map[string]map[string]struct{}{
	"gcloud": set("create", "delete", "update", "deploy", "set", "enable", "disable"),
	"gcp":    set("create", "delete", "update", "deploy", "set", "enable", "disable"),
	"terraform": set("apply", "destroy", "taint", "untaint", "import"),
	"kubectl": set("apply", "delete", "scale", "patch", "set", "rollout", "expose",
		"autoscale", "cordon", "drain", "taint"),
	"datadog": set("create", "delete", "update", "edit", "set"),
	"linear":  set("create", "delete", "update", "edit", "set", "assign", "move"),
}

var ghMutatingPrefixes = []string{"create", "delete", "update", "edit", "merge", "close", "open", "fork"}

var curlMutatingTokens = []string{"-X POST", "-X PUT", "-X PATCH", "-X DELETE", "-d "}

func set(tokens ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// ClassifyCLI classifies a CLI invocation's first positional token against
// the argv classification table. provider is matched case-insensitively;
// unrecognized providers default to WRITE, the conservative choice.
func ClassifyCLI(provider, commandLine string) Classification {
	provider = strings.ToLower(provider)
	trimmed := strings.TrimSpace(commandLine)
	first := firstToken(trimmed)

	switch provider {
	case "aws":
		if hasAWSReadPrefix(first) {
			return Read
		}
		return Write

	case "gcloud", "gcp", "terraform", "kubectl", "datadog", "linear":
		mutating := mutatingFirstToken[provider]
		if _, ok := mutating[first]; ok {
			return Write
		}
		return Read

	case "gh":
		for _, prefix := range ghMutatingPrefixes {
			if strings.HasPrefix(first, prefix) {
				return Write
			}
		}
		return Read

	case "curl":
		for _, token := range curlMutatingTokens {
			if strings.Contains(commandLine, token) {
				return Write
			}
		}
		return Read

	default:
		return Write
	}
}

func firstToken(commandLine string) string {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

func hasAWSReadPrefix(first string) bool {
	for _, prefix := range []string{"list", "describe", "get"} {
		if strings.HasPrefix(first, prefix) {
			return true
		}
	}
	return false
}
