package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"hatch/features"
	"hatch/generator"
	"hatch/resolver"
)

func PruneHandlerAction(cCtx *cli.Context) error {
	config, err := setup(cCtx)
	if err != nil {
		return err
	}
	defer sentry.Flush(10 * time.Second)

	root, err := filepath.Abs(cCtx.String("root"))
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	flags, err := resolveFlags(cCtx, config)
	if err != nil {
		return err
	}

	variables, err := resolveVariables(cCtx, config)
	if err != nil {
		return err
	}
	// A rendered tree is named after its package unless told otherwise.
	if variables[generator.VariablePackageSlug] == "" {
		variables[generator.VariablePackageSlug] = generator.PackageSlug(filepath.Base(root))
	}

	set, err := loadRules(cCtx, config)
	if err != nil {
		return err
	}

	set, err = set.Expand(generator.TemplateContext(variables, flags))
	if err != nil {
		return fmt.Errorf("expanding rules: %w", err)
	}

	for _, advisory := range features.Advisories(flags, set.Dependencies) {
		log.Warn().Msg(advisory)
	}

	dryRun := cCtx.Bool("dry-run")
	pruner, err := resolver.New(set.Rules, resolver.Options{
		SweepEmpty: set.SweepEmpty,
		DryRun:     dryRun,
	})
	if err != nil {
		return fmt.Errorf("creating resolver: %w", err)
	}

	report, err := pruner.Apply(cCtx.Context, flags, root)
	if err != nil {
		return fmt.Errorf("pruning %s: %w", root, err)
	}

	removeVerb, sweepVerb := "removed", "swept"
	if dryRun {
		removeVerb, sweepVerb = "would remove", "would sweep"
	}
	for _, p := range report.Removed {
		fmt.Fprintf(cCtx.App.Writer, "%s %s\n", removeVerb, p)
	}
	for _, p := range report.Swept {
		fmt.Fprintf(cCtx.App.Writer, "%s %s\n", sweepVerb, p)
	}

	log.Info().
		Str("root", root).
		Bool("dry_run", dryRun).
		Int("removed", len(report.Removed)).
		Int("missing", len(report.Missing)).
		Int("swept", len(report.Swept)).
		Msg("Pruned tree")

	return nil
}
