package features

import (
	"fmt"
	"strings"
)

// Condition decides whether something tied to feature flags survives.
// Every flag in Requires must be enabled, and when AnyOf is not empty at
// least one of its flags must be enabled too.
type Condition struct {
	Requires []string `yaml:"requires,omitempty"`
	AnyOf    []string `yaml:"any_of,omitempty"`
}

// Satisfied evaluates the condition. An empty condition is always satisfied.
func (c Condition) Satisfied(flags Flags) bool {
	for _, name := range c.Requires {
		if !flags.Enabled(name) {
			return false
		}
	}

	if len(c.AnyOf) == 0 {
		return true
	}

	for _, name := range c.AnyOf {
		if flags.Enabled(name) {
			return true
		}
	}

	return false
}

// Empty reports whether the condition names no flag at all.
func (c Condition) Empty() bool {
	return len(c.Requires) == 0 && len(c.AnyOf) == 0
}

// Validate rejects blank flag names.
func (c Condition) Validate() error {
	for _, name := range append(append([]string{}, c.Requires...), c.AnyOf...) {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("condition contains an empty flag name")
		}
	}

	return nil
}

func (c Condition) String() string {
	var parts []string
	if len(c.Requires) > 0 {
		parts = append(parts, strings.Join(c.Requires, " && "))
	}
	if len(c.AnyOf) > 0 {
		parts = append(parts, "("+strings.Join(c.AnyOf, " || ")+")")
	}
	if len(parts) == 0 {
		return "always"
	}

	return strings.Join(parts, " && ")
}
