package resolver

import (
	"fmt"
	"path"
	"strings"

	"hatch/core"
	"hatch/features"
)

// Kind restricts what a rule expects to find on disk.
type Kind string

const (
	KindAny  Kind = ""
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// Rule ties a path in the generated tree to the flags that keep it alive.
// When the condition is not satisfied the path is deleted.
type Rule struct {
	Path      string `yaml:"path"`
	Kind      Kind   `yaml:"kind,omitempty"`
	Condition `yaml:",inline"`
}

// Condition is re-exported so rule files and Go callers share one shape.
type Condition = features.Condition

// Keep reports whether the rule's path survives under flags.
func (r Rule) Keep(flags features.Flags) bool {
	return r.Condition.Satisfied(flags)
}

func (r Rule) validate() (errors []string) {
	if _, err := cleanRelative(r.Path); err != nil {
		errors = append(errors, err.Error())
	}

	switch r.Kind {
	case KindAny, KindFile, KindDir:
	default:
		errors = append(errors, fmt.Sprintf("rule for %s has unknown kind %q", r.Path, r.Kind))
	}

	if r.Condition.Empty() {
		errors = append(errors, fmt.Sprintf("rule for %s has no governing flag", r.Path))
	} else if err := r.Condition.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("rule for %s: %s", r.Path, err.Error()))
	}

	return errors
}

// ValidateRules checks every rule and returns all problems at once.
func ValidateRules(rules []Rule) error {
	var validationError core.ValidationError
	for _, rule := range rules {
		validationError.Errors = append(validationError.Errors, rule.validate()...)
	}

	return validationError.Err()
}

// cleanRelative normalizes a slash separated path and rejects anything that
// could reach the root itself or escape it.
func cleanRelative(p string) (string, error) {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}

	if strings.Contains(trimmed, "\\") {
		return "", fmt.Errorf("path contains backslash: %s", p)
	}

	if path.IsAbs(trimmed) {
		return "", fmt.Errorf("path must be relative: %s", p)
	}

	cleaned := path.Clean(trimmed)
	if cleaned == "." {
		return "", fmt.Errorf("path refers to the root itself: %s", p)
	}

	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path escapes the root: %s", p)
	}

	return cleaned, nil
}
