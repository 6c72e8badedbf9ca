package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"hatch/generator"
	"hatch/resolver"
)

func PlanHandlerAction(cCtx *cli.Context) error {
	config, err := setup(cCtx)
	if err != nil {
		return err
	}

	flags, err := resolveFlags(cCtx, config)
	if err != nil {
		return err
	}

	variables, err := resolveVariables(cCtx, config)
	if err != nil {
		return err
	}

	set, err := loadRules(cCtx, config)
	if err != nil {
		return err
	}

	// Without a package slug the rule paths are printed as written.
	if variables[generator.VariablePackageSlug] != "" {
		set, err = set.Expand(generator.TemplateContext(variables, flags))
		if err != nil {
			return fmt.Errorf("expanding rules: %w", err)
		}
	}

	pruner, err := resolver.New(set.Rules, resolver.Options{SweepEmpty: set.SweepEmpty})
	if err != nil {
		return fmt.Errorf("creating resolver: %w", err)
	}

	for _, decision := range pruner.Plan(flags) {
		action := "keep"
		if !decision.Keep {
			action = "remove"
		}

		fmt.Fprintf(cCtx.App.Writer, "%-6s %s (%s)\n", action, decision.Rule.Path, decision.Rule.Condition.String())
	}

	return nil
}
