package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"hatch/core"
	"hatch/features"
	"hatch/generator"
	"hatch/ruleset"
)

// parseAssignments turns repeated name=value arguments into a map. Later
// assignments of the same name win.
func parseAssignments(values []string) (map[string]string, error) {
	var validationError core.ValidationError
	assignments := make(map[string]string, len(values))
	for _, value := range values {
		name, v, ok := strings.Cut(value, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			validationError.Add(fmt.Sprintf("%q is not a name=value pair", value))
			continue
		}

		assignments[name] = v
	}

	if err := validationError.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}

// overlay copies base and applies the command line assignments of the named
// flag on top.
func overlay(cCtx *cli.Context, name string, base map[string]string) (map[string]string, error) {
	assignments, err := parseAssignments(cCtx.StringSlice(name))
	if err != nil {
		return nil, fmt.Errorf("parsing --%s: %w", name, err)
	}

	merged := make(map[string]string, len(base)+len(assignments))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range assignments {
		merged[k] = v
	}

	return merged, nil
}

func resolveFlags(cCtx *cli.Context, config Config) (features.Flags, error) {
	raw, err := overlay(cCtx, "flag", config.Features)
	if err != nil {
		return features.Flags{}, err
	}

	flags, err := features.NormalizeStrings(raw)
	if err != nil {
		return features.Flags{}, fmt.Errorf("normalizing feature flags: %w", err)
	}

	return flags, nil
}

func resolveVariables(cCtx *cli.Context, config Config) (map[string]string, error) {
	raw, err := overlay(cCtx, "var", config.Variables)
	if err != nil {
		return nil, err
	}

	return generator.Variables(raw), nil
}

func loadRules(cCtx *cli.Context, config Config) (ruleset.Set, error) {
	path := config.Rules
	if cCtx.IsSet("rules") {
		path = cCtx.String("rules")
	}

	if path == "" {
		return ruleset.Default(), nil
	}

	set, err := ruleset.Load(path)
	if err != nil {
		return ruleset.Set{}, fmt.Errorf("loading rules: %w", err)
	}

	return set, nil
}

// bucketURL accepts a plain directory as a template source.
func bucketURL(source string) (string, error) {
	if strings.Contains(source, "://") {
		return source, nil
	}

	abs, err := filepath.Abs(source)
	if err != nil {
		return "", fmt.Errorf("resolving template directory: %w", err)
	}

	return "file://" + filepath.ToSlash(abs), nil
}
