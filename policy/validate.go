package policy

import "fmt"

// Validate checks that a Policy is structurally sound: a known mode, and
// (for cautious mode) exceptions whose globs compile. It does not mutate
// the receiver; Engine compiles its own copy via compilePolicy.
func (p Policy) Validate() error {
	if !p.Mode.IsValid() {
		return fmt.Errorf("invalid mode %q, want %q or %q", p.Mode, ModeStrict, ModeCautious)
	}
	for i, exc := range p.Exceptions {
		if _, err := exc.compile(); err != nil {
			return fmt.Errorf("exception at index %d: %w", i, err)
		}
	}
	return nil
}

// ValidateConfig checks every tenant policy plus the default policy a
// config file declares, returning every problem found rather than
// stopping at the first.
func ValidateConfig(policies map[string]Policy, defaultPolicy Policy) []error {
	var errs []error
	if err := defaultPolicy.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("default policy: %w", err))
	}
	for tenant, p := range policies {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("tenant %q: %w", tenant, err))
		}
	}
	return errs
}
