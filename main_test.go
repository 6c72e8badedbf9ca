package main_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hatch/core"
	"hatch/resolver"

	main "hatch"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("creating directory for %s: %s", name, err.Error())
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %s", name, err.Error())
		}
	}
}

func exists(root, p string) bool {
	_, err := os.Lstat(filepath.Join(root, filepath.FromSlash(p)))
	return err == nil
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer
	app := main.App()
	app.Writer = &stdout
	app.ErrWriter = &bytes.Buffer{}

	err := app.Run(append([]string{"hatch"}, args...))
	return stdout.String(), err
}

// renderedTree looks like the Python template right after rendering, with
// every optional integration present.
func renderedTree(t *testing.T) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "acme")
	writeTree(t, root, map[string]string{
		"README.md":                 "# Acme\n",
		"acme/__init__.py":          "",
		"acme/cli.py":               "",
		"acme/www.py":               "",
		"acme/static/style.css":     "",
		"acme/services/__init__.py": "",
		"acme/services/cache.py":    "",
		"acme/services/db.py":       "",
		"docs/dev/cli.md":           "",
		"docs/dev/api.md":           "",
		"dockerfile.www":            "",
		"compose.yaml":              "",
	})

	return root
}

func TestPrune(t *testing.T) {
	t.Run("happy scenario", func(t *testing.T) {
		root := renderedTree(t)

		out, err := run(t, "prune", "--root", root, "--flag", "include_fastapi=y", "--flag", "include_docker=n")
		if err != nil {
			t.Fatalf("unexpected error: %s", err.Error())
		}

		for _, p := range []string{"README.md", "acme/__init__.py", "acme/www.py", "acme/static/style.css", "docs/dev/api.md"} {
			if !exists(root, p) {
				t.Errorf("expected %s to exist", p)
			}
		}
		for _, p := range []string{"acme/cli.py", "acme/services/cache.py", "acme/services/db.py", "docs/dev/cli.md", "dockerfile.www", "compose.yaml"} {
			if exists(root, p) {
				t.Errorf("expected %s to be removed", p)
			}
		}

		if !strings.Contains(out, "removed acme/cli.py\n") {
			t.Errorf("expected removal to be printed, got %q", out)
		}
	})

	t.Run("package slug is taken from the variables", func(t *testing.T) {
		root := renderedTree(t)
		renamed := filepath.Join(filepath.Dir(root), "elsewhere")
		if err := os.Rename(root, renamed); err != nil {
			t.Fatalf("renaming tree: %s", err.Error())
		}

		if _, err := run(t, "prune", "--root", renamed, "--var", "package_slug=acme"); err != nil {
			t.Fatalf("unexpected error: %s", err.Error())
		}

		if exists(renamed, "acme/cli.py") {
			t.Error("expected acme/cli.py to be removed")
		}
	})

	t.Run("dry run", func(t *testing.T) {
		root := renderedTree(t)

		out, err := run(t, "prune", "--root", root, "--dry-run")
		if err != nil {
			t.Fatalf("unexpected error: %s", err.Error())
		}

		if !exists(root, "acme/cli.py") {
			t.Error("dry run removed acme/cli.py")
		}
		if !strings.Contains(out, "would remove acme/cli.py\n") {
			t.Errorf("expected planned removal to be printed, got %q", out)
		}
	})

	t.Run("configuration file", func(t *testing.T) {
		root := renderedTree(t)
		config := filepath.Join(t.TempDir(), "hatch.yaml")
		writeTree(t, filepath.Dir(config), map[string]string{
			"hatch.yaml": "features:\n  include_cli: \"y\"\n",
		})

		if _, err := run(t, "--config", config, "prune", "--root", root); err != nil {
			t.Fatalf("unexpected error: %s", err.Error())
		}

		if !exists(root, "acme/cli.py") {
			t.Error("expected acme/cli.py to be kept")
		}
		if exists(root, "acme/www.py") {
			t.Error("expected acme/www.py to be removed")
		}
	})

	t.Run("invalid flag value", func(t *testing.T) {
		root := renderedTree(t)

		_, err := run(t, "prune", "--root", root, "--flag", "include_cli=maybe")
		if !errors.Is(err, core.ErrValidation) {
			t.Errorf("expected a validation error, got %v", err)
		}
		if !exists(root, "acme/www.py") {
			t.Error("tree was modified despite the invalid flag")
		}
	})

	t.Run("malformed assignment", func(t *testing.T) {
		_, err := run(t, "prune", "--root", renderedTree(t), "--flag", "include_cli")
		if !errors.Is(err, core.ErrValidation) {
			t.Errorf("expected a validation error, got %v", err)
		}
	})

	t.Run("deletion failure from a rule file is returned", func(t *testing.T) {
		root := renderedTree(t)
		rules := filepath.Join(t.TempDir(), "rules.yaml")
		writeTree(t, filepath.Dir(rules), map[string]string{
			"rules.yaml": "rules:\n  - path: \"{{package_slug}}/cli.py\"\n    kind: dir\n    requires: [include_cli]\n",
		})

		_, err := run(t, "prune", "--root", root, "--rules", rules)

		var deletionError *resolver.DeletionError
		if !errors.As(err, &deletionError) {
			t.Fatalf("expected *resolver.DeletionError, got %v", err)
		}
		if !errors.Is(err, resolver.ErrKindMismatch) {
			t.Errorf("expected ErrKindMismatch, got %v", err)
		}
		if !exists(root, "acme/cli.py") {
			t.Error("acme/cli.py was removed despite the kind mismatch")
		}
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := run(t, "prune", "--root", filepath.Join(t.TempDir(), "nope"))
		if err == nil {
			t.Error("expected an error, got nil")
		}
	})
}

func TestPlan(t *testing.T) {
	t.Run("unexpanded paths", func(t *testing.T) {
		out, err := run(t, "plan", "--flag", "include_cli=y")
		if err != nil {
			t.Fatalf("unexpected error: %s", err.Error())
		}

		if !strings.Contains(out, "keep   {{package_slug}}/cli.py (include_cli)\n") {
			t.Errorf("expected cli.py to be kept, got %q", out)
		}
		if !strings.Contains(out, "remove {{package_slug}}/www.py (include_fastapi)\n") {
			t.Errorf("expected www.py to be removed, got %q", out)
		}
	})

	t.Run("expanded paths", func(t *testing.T) {
		out, err := run(t, "plan", "--var", "project_name=Acme Widgets")
		if err != nil {
			t.Fatalf("unexpected error: %s", err.Error())
		}

		if !strings.Contains(out, "remove acme_widgets/cli.py (include_cli)\n") {
			t.Errorf("expected expanded path, got %q", out)
		}
	})
}

func TestGenerate(t *testing.T) {
	template := t.TempDir()
	writeTree(t, template, map[string]string{
		"README.md":                    "# {{{project_name}}}\n",
		"{{package_slug}}/__init__.py": "",
		"{{package_slug}}/cli.py":      "import typer\n",
		"{{package_slug}}/www.py":      "app = FastAPI()\n",
		"docs/dev/cli.md":              "# CLI\n",
	})

	t.Run("happy scenario", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "out")

		_, err := run(t, "generate",
			"--template", template,
			"--output", output,
			"--var", "project_name=Acme Widgets",
			"--flag", "include_cli=yes",
			"--no-hooks",
		)
		if err != nil {
			t.Fatalf("unexpected error: %s", err.Error())
		}

		readme, err := os.ReadFile(filepath.Join(output, "README.md"))
		if err != nil {
			t.Fatalf("reading README.md: %s", err.Error())
		}
		if string(readme) != "# Acme Widgets\n" {
			t.Errorf("unexpected README content %q", string(readme))
		}

		for _, p := range []string{"acme_widgets/__init__.py", "acme_widgets/cli.py", "docs/dev/cli.md"} {
			if !exists(output, p) {
				t.Errorf("expected %s to exist", p)
			}
		}
		if exists(output, "acme_widgets/www.py") {
			t.Error("expected acme_widgets/www.py to be removed")
		}
	})

	t.Run("output must be empty", func(t *testing.T) {
		output := t.TempDir()
		writeTree(t, output, map[string]string{"keep.txt": "x"})

		_, err := run(t, "generate", "--template", template, "--output", output, "--var", "package_slug=acme", "--no-hooks")
		if err == nil {
			t.Fatal("expected an error, got nil")
		}
		if exists(output, "README.md") {
			t.Error("template was rendered into a non-empty directory")
		}
	})

	t.Run("missing template and output", func(t *testing.T) {
		_, err := run(t, "generate", "--var", "package_slug=acme")

		var validationError core.ValidationError
		if !errors.As(err, &validationError) {
			t.Fatalf("expected core.ValidationError, got %v", err)
		}
		if len(validationError.Errors) != 2 {
			t.Errorf("expected two errors, got %v", validationError.Errors)
		}
	})

	t.Run("invalid package slug", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "out")

		_, err := run(t, "generate", "--template", template, "--output", output, "--var", "package_slug=not-valid", "--no-hooks")
		if !errors.Is(err, core.ErrValidation) {
			t.Errorf("expected a validation error, got %v", err)
		}
	})
}
