// Package ruleset describes which paths of a template belong to which
// features, and how to load that description from YAML.
package ruleset

import (
	"fmt"
	"os"
	"strings"

	"github.com/flowchartsman/handlebars/v3"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"hatch/core"
	"hatch/features"
	"hatch/hooks"
	"hatch/resolver"
)

// Set is everything a template declares about its optional parts. Paths and
// commands may reference template variables, e.g. "{{package_slug}}/cli.py".
type Set struct {
	Rules         []resolver.Rule       `yaml:"rules"`
	SweepEmpty    []string              `yaml:"sweep_empty,omitempty"`
	Dependencies  []features.Dependency `yaml:"dependencies,omitempty"`
	PostCommands  []hooks.Command       `yaml:"post_commands,omitempty"`
	RequiredTools []string              `yaml:"required_tools,omitempty"`
}

// Load reads a rule file. Unknown keys are rejected so typos in rule files
// do not silently keep files around.
func Load(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return Set{}, err
	}
	defer func() {
		err := f.Close()
		if err != nil {
			log.Error().Err(err).Msg("closing rule file")
		}
	}()

	var set Set
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&set); err != nil {
		return Set{}, fmt.Errorf("decoding rule file %s: %w", path, err)
	}

	if err := resolver.ValidateRules(set.Rules); err != nil {
		return Set{}, fmt.Errorf("validating rule file %s: %w", path, err)
	}

	return set, nil
}

// Expand renders every path and command of the set with the given template
// variables.
func (s Set) Expand(variables map[string]any) (Set, error) {
	var validationError core.ValidationError

	expanded := Set{
		Dependencies:  s.Dependencies,
		RequiredTools: s.RequiredTools,
	}

	for _, rule := range s.Rules {
		p, err := expandPath(rule.Path, variables)
		if err != nil {
			validationError.Add(err.Error())
			continue
		}
		rule.Path = p
		expanded.Rules = append(expanded.Rules, rule)
	}

	for _, dir := range s.SweepEmpty {
		p, err := expandPath(dir, variables)
		if err != nil {
			validationError.Add(err.Error())
			continue
		}
		expanded.SweepEmpty = append(expanded.SweepEmpty, p)
	}

	for _, command := range s.PostCommands {
		run, err := render(command.Run, variables)
		if err != nil {
			validationError.Add(fmt.Sprintf("command %s: %s", command.Run, err.Error()))
			continue
		}
		command.Run = run
		expanded.PostCommands = append(expanded.PostCommands, command)
	}

	if err := validationError.Err(); err != nil {
		return Set{}, err
	}

	return expanded, nil
}

func expandPath(source string, variables map[string]any) (string, error) {
	p, err := render(source, variables)
	if err != nil {
		return "", fmt.Errorf("path %s: %s", source, err.Error())
	}

	// An unset variable renders as nothing and would silently retarget the
	// rule at a parent directory.
	for _, segment := range strings.Split(strings.TrimSuffix(p, "/"), "/") {
		if strings.TrimSpace(segment) == "" {
			return "", fmt.Errorf("path %s rendered to %q, which has an empty segment", source, p)
		}
	}

	return p, nil
}

func render(source string, variables map[string]any) (string, error) {
	if !strings.Contains(source, "{{") {
		return source, nil
	}

	template, err := handlebars.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parsing: %w", err)
	}

	out, err := template.Exec(variables)
	if err != nil {
		return "", fmt.Errorf("rendering: %w", err)
	}

	return out, nil
}
