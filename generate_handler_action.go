package main

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gocloud.dev/blob"

	"hatch/core"
	"hatch/generator"
	"hatch/hooks"
	"hatch/render"
)

func GenerateHandlerAction(cCtx *cli.Context) error {
	config, err := setup(cCtx)
	if err != nil {
		return err
	}
	defer sentry.Flush(10 * time.Second)

	if cCtx.IsSet("template") {
		config.Template.URL = cCtx.String("template")
	}
	if cCtx.IsSet("template-prefix") {
		config.Template.Prefix = cCtx.String("template-prefix")
	}
	if cCtx.IsSet("output") {
		config.Output = cCtx.String("output")
	}

	var validationError core.ValidationError
	if config.Template.URL == "" {
		validationError.Add("template is required")
	}
	if config.Output == "" {
		validationError.Add("output is required")
	}
	if err := validationError.Err(); err != nil {
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

	source, err := bucketURL(config.Template.URL)
	if err != nil {
		return err
	}

	bucket, err := blob.OpenBucket(cCtx.Context, source)
	if err != nil {
		return fmt.Errorf("opening template bucket: %w", err)
	}
	defer func() {
		err := bucket.Close()
		if err != nil {
			log.Warn().Err(err).Msg("Closing template bucket")
		}
	}()

	renderer, err := render.NewRenderer(bucket, render.Options{
		Prefix:     config.Template.Prefix,
		CopyOnly:   config.Template.CopyOnly,
		Executable: config.Template.Executable,
		Overwrite:  cCtx.Bool("overwrite"),
	})
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	runner, err := hooks.NewRunner(hooks.RunnerOptions{
		Stdout: cCtx.App.Writer,
		Stderr: cCtx.App.ErrWriter,
		Logger: conformedLogger{logger: log.Logger},
	})
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	g, err := generator.NewGenerator(generator.Config{
		Renderer: renderer,
		Runner:   runner,
	})
	if err != nil {
		return fmt.Errorf("creating generator: %w", err)
	}

	summary, err := g.Generate(cCtx.Context, generator.Request{
		Output:    config.Output,
		Variables: variables,
		Flags:     flags,
		Rules:     set,
		SkipHooks: cCtx.Bool("no-hooks"),
	})
	if err != nil {
		return fmt.Errorf("generating %s: %w", config.Output, err)
	}

	log.Info().
		Str("run_id", summary.RunID).
		Str("output", config.Output).
		Str("package", summary.Variables[generator.VariablePackageSlug]).
		Int("pruned", len(summary.Pruned.Removed)).
		Int("commands", len(summary.Commands)).
		Msg("Project generated")

	return nil
}
