package features

import (
	"fmt"
	"sort"
	"strings"

	"hatch/core"
)

// Flags understood by the built-in Python template.
const (
	IncludeCLI               = "include_cli"
	IncludeCelery            = "include_celery"
	IncludeFastAPI           = "include_fastapi"
	IncludeDocker            = "include_docker"
	IncludeJinja2            = "include_jinja2"
	IncludeDogpile           = "include_dogpile"
	IncludeSQLAlchemy        = "include_sqlalchemy"
	IncludeGithubActions     = "include_github_actions"
	IncludeRequirementsFiles = "include_requirements_files"
	PublishToPyPI            = "publish_to_pypi"
)

// Flags is an immutable set of normalized feature flags. The zero value has
// every flag disabled.
type Flags struct {
	values map[string]bool
}

// Normalize converts raw flag values into strict booleans. Every key carrying
// a value that is not a recognized boolean representation is reported in a
// single core.ValidationError.
func Normalize(raw map[string]any) (Flags, error) {
	values := make(map[string]bool, len(raw))

	var validationError core.ValidationError
	seen := make(map[string]struct{}, len(raw))
	for _, name := range sortedKeys(raw) {
		key := strings.TrimSpace(name)
		if key == "" {
			validationError.Add("flag name is empty")
			continue
		}

		if _, ok := seen[key]; ok {
			validationError.Add(fmt.Sprintf("flag %s is given more than once", key))
			continue
		}
		seen[key] = struct{}{}

		enabled, ok := parseValue(raw[name])
		if !ok {
			validationError.Add(fmt.Sprintf("flag %s has invalid value %v", key, raw[name]))
			continue
		}

		values[key] = enabled
	}

	if err := validationError.Err(); err != nil {
		return Flags{}, err
	}

	return Flags{values: values}, nil
}

// NormalizeStrings is Normalize for string-only sources such as environment
// variables and command line flags.
func NormalizeStrings(raw map[string]string) (Flags, error) {
	m := make(map[string]any, len(raw))
	for k, v := range raw {
		m[k] = v
	}

	return Normalize(m)
}

// Enabled reports whether name is set and true. Unknown names are disabled.
func (f Flags) Enabled(name string) bool {
	return f.values[name]
}

// Known reports whether name was supplied at all.
func (f Flags) Known(name string) bool {
	_, ok := f.values[name]
	return ok
}

// Names returns every supplied flag name, sorted.
func (f Flags) Names() []string {
	names := make([]string, 0, len(f.values))
	for name := range f.values {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Map returns a copy of the underlying values.
func (f Flags) Map() map[string]bool {
	m := make(map[string]bool, len(f.values))
	for k, v := range f.values {
		m[k] = v
	}

	return m
}

func parseValue(v any) (bool, bool) {
	switch value := v.(type) {
	case nil:
		return false, true
	case bool:
		return value, true
	case int:
		return parseInteger(int64(value))
	case int64:
		return parseInteger(value)
	case uint64:
		if value > 1 {
			return false, false
		}
		return value == 1, true
	case float64:
		if value != 0 && value != 1 {
			return false, false
		}
		return value == 1, true
	case string:
		return ParseString(value)
	default:
		return false, false
	}
}

func parseInteger(v int64) (bool, bool) {
	switch v {
	case 0:
		return false, true
	case 1:
		return true, true
	default:
		return false, false
	}
}

// ParseString maps the accepted textual forms of a flag to a boolean.
func ParseString(s string) (enabled bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "on", "1":
		return true, true
	case "n", "no", "false", "off", "0", "":
		return false, true
	default:
		return false, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
