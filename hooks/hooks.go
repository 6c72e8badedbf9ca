// Package hooks holds the checks that run before a project is rendered and the
// commands that run after it was pruned.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"

	"hatch/core"
	"hatch/features"
)

var packageSlugPattern = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]+$`)

// ValidatePackageSlug rejects names that cannot be imported as a Python module.
func ValidatePackageSlug(slug string) error {
	if !packageSlugPattern.MatchString(slug) {
		return core.ValidationError{Errors: []string{fmt.Sprintf("%s is not a valid Python module name", slug)}}
	}

	return nil
}

// LookPath is exec.LookPath, replaceable in tests.
type LookPath func(file string) (string, error)

// CheckTools makes sure every tool the generated project needs is installed.
func CheckTools(lookPath LookPath, tools []string) error {
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	var validationError core.ValidationError
	for _, tool := range tools {
		if _, err := lookPath(tool); err != nil {
			validationError.Add(fmt.Sprintf("%s is not installed", tool))
		}
	}

	return validationError.Err()
}

// Command is a shell command run inside the generated project once pruning
// finished. It only runs when its condition holds.
type Command struct {
	Run                string `yaml:"run"`
	features.Condition `yaml:",inline"`
}

// Logger is satisfied by the zerolog adapter in package main.
type Logger interface {
	Printf(format string, v ...any)
}

type Runner struct {
	shell  string
	stdout io.Writer
	stderr io.Writer
	logger Logger
}

type RunnerOptions struct {
	// Shell defaults to /bin/sh.
	Shell  string
	Stdout io.Writer
	Stderr io.Writer
	Logger Logger
}

func NewRunner(options RunnerOptions) (*Runner, error) {
	if options.Logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	if options.Shell == "" {
		options.Shell = "/bin/sh"
	}

	if options.Stdout == nil {
		options.Stdout = os.Stdout
	}

	if options.Stderr == nil {
		options.Stderr = os.Stderr
	}

	return &Runner{
		shell:  options.Shell,
		stdout: options.Stdout,
		stderr: options.Stderr,
		logger: options.Logger,
	}, nil
}

// ExitError reports a command that ran but did not succeed.
type ExitError struct {
	Command  string
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("failed to run command '%s': %d", e.Command, e.ExitCode)
}

// Run executes every command whose condition holds, in order, with dir as the
// working directory. It stops at the first failure. The returned slice holds
// the commands that were actually started.
func (r *Runner) Run(ctx context.Context, dir string, flags features.Flags, commands []Command) ([]string, error) {
	span := sentry.StartSpan(ctx, "hooks.run", sentry.WithTransactionName("RunPostCommands"))
	defer span.Finish()

	var started []string
	for _, command := range commands {
		run := strings.TrimSpace(command.Run)
		if run == "" || !command.Satisfied(flags) {
			continue
		}

		r.logger.Printf("Running '%s'", run)
		started = append(started, run)

		cmd := exec.CommandContext(ctx, r.shell, "-c", run)
		cmd.Dir = dir
		cmd.Stdout = r.stdout
		cmd.Stderr = r.stderr

		if err := cmd.Run(); err != nil {
			var exitError *exec.ExitError
			if errors.As(err, &exitError) {
				return started, &ExitError{Command: run, ExitCode: exitError.ExitCode()}
			}
			return started, fmt.Errorf("starting command '%s': %w", run, err)
		}
	}

	return started, nil
}
