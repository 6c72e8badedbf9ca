package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

var version string

func App() *cli.App {
	app := &cli.App{
		Name:                      "hatch",
		Version:                   version,
		Usage:                     "Generate a Python project from a template, keeping only the features you enable",
		DisableSliceFlagSeparator: true,
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Render a template into a new directory, prune it and run the post-generation commands",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "template",
						Usage: "Template bucket URL (file://, s3://, mem://) or local directory",
					},
					&cli.StringFlag{
						Name:  "template-prefix",
						Usage: "Directory of the template inside the bucket",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Directory to generate the project into",
					},
					featureFlag(),
					variableFlag(),
					rulesFlag(),
					&cli.BoolFlag{
						Name:  "no-hooks",
						Usage: "Skip the required tool check and post-generation commands",
					},
					&cli.BoolFlag{
						Name:  "overwrite",
						Usage: "Render into the output directory even if it is not empty",
					},
				},
				Action: GenerateHandlerAction,
			},
			{
				Name:  "prune",
				Usage: "Remove the paths of disabled features from an already rendered tree",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "root",
						Usage:    "Root of the rendered tree",
						Required: true,
					},
					featureFlag(),
					variableFlag(),
					rulesFlag(),
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Print what would be removed without touching the disk",
					},
				},
				Action: PruneHandlerAction,
			},
			{
				Name:  "plan",
				Usage: "Print whether each rule keeps or removes its path",
				Flags: []cli.Flag{
					featureFlag(),
					variableFlag(),
					rulesFlag(),
				},
				Action: PlanHandlerAction,
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"HATCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (trace, debug, info, warn, error)",
			},
		},
	}

	return app
}

func featureFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "flag",
		Aliases: []string{"f"},
		Usage:   "Feature flag as name=value, e.g. include_cli=y (repeatable)",
	}
}

func variableFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  "var",
		Usage: "Template variable as name=value, e.g. project_name=Acme (repeatable)",
	}
}

func rulesFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "rules",
		Usage: "Rule file to use instead of the built-in Python template rules",
	}
}

// setup loads the configuration, applies the global flags and initializes
// logging and Sentry for a command.
func setup(cCtx *cli.Context) (Config, error) {
	config, err := GetConfig(cCtx.String("config"))
	if err != nil {
		return Config{}, fmt.Errorf("failed to get config: %w", err)
	}

	if cCtx.IsSet("log-level") {
		config.LogLevel = cCtx.String("log-level")
	}

	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		return Config{}, fmt.Errorf("parsing log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	if config.Environment != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              config.SentryDSN,
		Debug:            false,
		AttachStacktrace: true,
		SampleRate:       1.0,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Release:          version,
		Environment:      config.Environment,
		DebugWriter:      log.Logger,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if config.Environment != "production" {
				log.Debug().Interface("exceptions", event.Exception).Msg(event.Message)
			}

			return event
		},
	})
	if err != nil {
		return Config{}, fmt.Errorf("initializing Sentry: %w", err)
	}

	return config, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := App().RunContext(ctx, os.Args); err != nil {
		sentry.CaptureException(err)
		sentry.Flush(5 * time.Second)
		stop()
		log.Fatal().Err(err).Msg("Failed to run app")
	}
}
