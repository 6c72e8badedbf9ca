// Package generator runs one complete generation: validation, rendering,
// pruning and post-generation commands.
package generator

import (
	"context"
	"fmt"
	"sort"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hatch/features"
	"hatch/hooks"
	"hatch/render"
	"hatch/resolver"
	"hatch/ruleset"
)

type Generator struct {
	renderer *render.Renderer
	runner   *hooks.Runner
	lookPath hooks.LookPath
}

type Config struct {
	Renderer *render.Renderer
	Runner   *hooks.Runner
	// LookPath defaults to exec.LookPath.
	LookPath hooks.LookPath
}

func NewGenerator(config Config) (*Generator, error) {
	if config.Renderer == nil {
		return nil, fmt.Errorf("renderer is nil")
	}

	if config.Runner == nil {
		return nil, fmt.Errorf("runner is nil")
	}

	return &Generator{
		renderer: config.Renderer,
		runner:   config.Runner,
		lookPath: config.LookPath,
	}, nil
}

type Request struct {
	Output    string
	Variables map[string]string
	Flags     features.Flags
	Rules     ruleset.Set
	// SkipHooks disables the required tool check and post commands.
	SkipHooks bool
}

type Summary struct {
	RunID      string
	Variables  map[string]string
	Rendered   render.Result
	Pruned     resolver.Report
	Commands   []string
	Advisories []string
	// Unset lists flags the rules depend on that were never supplied. They
	// count as disabled.
	Unset []string
}

// Generate renders the template into req.Output and prunes it. A failure at
// any step aborts the run and leaves whatever was written in place.
func (g *Generator) Generate(ctx context.Context, req Request) (Summary, error) {
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
		ctx = sentry.SetHubOnContext(ctx, hub)
	}
	hub.Scope().SetTag("run_id", runID)

	span := sentry.StartSpan(ctx, "generator.generate", sentry.WithTransactionName("Generate"))
	defer span.Finish()
	ctx = span.Context()

	summary := Summary{RunID: runID, Variables: Variables(req.Variables)}

	if err := hooks.ValidatePackageSlug(summary.Variables[VariablePackageSlug]); err != nil {
		return summary, fmt.Errorf("validating package slug: %w", err)
	}

	if !req.SkipHooks {
		if err := hooks.CheckTools(g.lookPath, req.Rules.RequiredTools); err != nil {
			return summary, fmt.Errorf("checking required tools: %w", err)
		}
	}

	data := TemplateContext(summary.Variables, req.Flags)

	set, err := req.Rules.Expand(data)
	if err != nil {
		return summary, fmt.Errorf("expanding rules: %w", err)
	}

	summary.Advisories = features.Advisories(req.Flags, set.Dependencies)
	for _, advisory := range summary.Advisories {
		logger.Warn().Msg(advisory)
	}

	summary.Unset = unsetFlags(req.Flags, set)
	for _, name := range summary.Unset {
		logger.Debug().Str("flag", name).Msg("Flag not set, treating it as disabled")
	}

	pruner, err := resolver.New(set.Rules, resolver.Options{SweepEmpty: set.SweepEmpty, Logger: &logger})
	if err != nil {
		return summary, fmt.Errorf("creating resolver: %w", err)
	}

	summary.Rendered, err = g.renderer.Render(ctx, req.Output, data)
	if err != nil {
		return summary, fmt.Errorf("rendering template: %w", err)
	}
	logger.Info().Int("files", len(summary.Rendered.Written)).Str("output", req.Output).Msg("Rendered template")

	summary.Pruned, err = pruner.Apply(ctx, req.Flags, req.Output)
	if err != nil {
		return summary, fmt.Errorf("pruning generated tree: %w", err)
	}
	logger.Info().
		Int("removed", len(summary.Pruned.Removed)).
		Int("swept", len(summary.Pruned.Swept)).
		Msg("Pruned disabled features")

	if req.SkipHooks {
		return summary, nil
	}

	summary.Commands, err = g.runner.Run(ctx, req.Output, req.Flags, set.PostCommands)
	if err != nil {
		return summary, fmt.Errorf("running post-generation commands: %w", err)
	}

	return summary, nil
}

func unsetFlags(flags features.Flags, set ruleset.Set) []string {
	conditions := make([]features.Condition, 0, len(set.Rules)+len(set.PostCommands))
	for _, rule := range set.Rules {
		conditions = append(conditions, rule.Condition)
	}
	for _, command := range set.PostCommands {
		conditions = append(conditions, command.Condition)
	}

	seen := map[string]struct{}{}
	var unset []string
	for _, condition := range conditions {
		for _, name := range append(append([]string{}, condition.Requires...), condition.AnyOf...) {
			if _, ok := seen[name]; ok || flags.Known(name) {
				continue
			}
			seen[name] = struct{}{}
			unset = append(unset, name)
		}
	}
	sort.Strings(unset)

	return unset
}
