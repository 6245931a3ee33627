// Package policy implements the gateway's Policy Engine (component C): it
// classifies an action as a READ or WRITE and decides, per tenant, whether
// a WRITE requires human approval before it reaches the upstream.
//
// A tenant's Policy is either "strict" (every write is gated) or
// "cautious" (writes are gated unless they match a configured exception).
// Reads are never gated, regardless of mode.
package policy

import "github.com/gobwas/glob"

// Mode is a tenant's approval posture.
type Mode string

const (
	ModeStrict   Mode = "strict"
	ModeCautious Mode = "cautious"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeStrict || m == ModeCautious
}

func (m Mode) String() string { return string(m) }

// Classification is the outcome of classifying a single action.
type Classification string

const (
	Read  Classification = "read"
	Write Classification = "write"
)

func (c Classification) String() string { return string(c) }

// Policy is one tenant's approval posture: the mode plus, for cautious
// mode, the exceptions that let a write bypass approval.
type Policy struct {
	Mode       Mode        `json:"mode"`
	Exceptions []Exception `json:"exceptions,omitempty"`
}

// Exception describes a write that cautious mode lets through without
// approval. Absent fields act as wildcards.
type Exception struct {
	Provider string   `json:"provider,omitempty"`
	Methods  []string `json:"methods,omitempty"`
	Paths    []string `json:"paths,omitempty"`
}

// compiledException is an Exception with its path globs pre-compiled, so
// Matches never pays glob.Compile's cost on the request path.
type compiledException struct {
	provider string
	methods  map[string]struct{}
	globs    []glob.Glob
}

// compile lowers an Exception to its matchable form. Invalid glob syntax
// is reported so it surfaces at config load time, not at request time.
func (e Exception) compile() (compiledException, error) {
	ce := compiledException{provider: e.Provider}
	if len(e.Methods) > 0 {
		ce.methods = make(map[string]struct{}, len(e.Methods))
		for _, m := range e.Methods {
			ce.methods[m] = struct{}{}
		}
	}
	for _, p := range e.Paths {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return compiledException{}, err
		}
		ce.globs = append(ce.globs, g)
	}
	return ce, nil
}

// matches reports whether this exception covers the given provider,
// method, and path, per the Policy Engine's matching rule: every present
// field must match; absent fields are wildcards.
func (ce compiledException) matches(provider, method, path string) bool {
	if ce.provider != "" && ce.provider != provider {
		return false
	}
	if ce.methods != nil {
		if _, ok := ce.methods[method]; !ok {
			return false
		}
	}
	if len(ce.globs) > 0 {
		matched := false
		for _, g := range ce.globs {
			if g.Match(path) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
