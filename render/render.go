// Package render materializes a project tree from a template bucket.
//
// Every object key and every text object is a handlebars template evaluated
// against the generation context (variables plus feature flags as booleans).
// Handlebars escapes HTML in double-stash expressions, so templates that emit
// raw values use the triple-stash form: {{{project_name}}}.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/flowchartsman/handlebars/v3"
	"github.com/getsentry/sentry-go"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
	"gocloud.dev/blob"
)

var (
	ErrOutputNotEmpty = errors.New("output directory is not empty")
	ErrOutsideOutput  = errors.New("rendered path escapes the output directory")
)

type Options struct {
	// Prefix selects the template inside the bucket.
	Prefix string
	// CopyOnly holds glob patterns (path.Match) of keys copied verbatim.
	CopyOnly []string
	// Executable holds glob patterns of keys written with mode 0755.
	Executable []string
	// Overwrite allows rendering into a directory that already has files.
	Overwrite bool
}

type Renderer struct {
	bucket     *blob.Bucket
	prefix     string
	copyOnly   []string
	executable []string
	overwrite  bool
}

// Result lists output paths relative to the output directory.
type Result struct {
	Written []string
	// Omitted holds template keys whose name rendered to an empty segment.
	Omitted []string
}

func NewRenderer(bucket *blob.Bucket, options Options) (*Renderer, error) {
	if bucket == nil {
		return nil, fmt.Errorf("bucket is nil")
	}

	for _, pattern := range append(append([]string{}, options.CopyOnly...), options.Executable...) {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}

	prefix := strings.TrimPrefix(options.Prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &Renderer{
		bucket:     bucket,
		prefix:     prefix,
		copyOnly:   options.CopyOnly,
		executable: options.Executable,
		overwrite:  options.Overwrite,
	}, nil
}

// Render writes the rendered template into output, creating it if needed.
func (r *Renderer) Render(ctx context.Context, output string, data map[string]any) (Result, error) {
	span := sentry.StartSpan(ctx, "render.render", sentry.WithTransactionName("RenderTemplate"))
	defer span.Finish()

	if err := r.prepareOutput(output); err != nil {
		return Result{}, err
	}

	var result Result
	iterator := r.bucket.List(&blob.ListOptions{Prefix: r.prefix})
	for {
		object, err := iterator.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("listing template: %w", err)
		}

		if object.IsDir {
			continue
		}

		key := strings.TrimPrefix(object.Key, r.prefix)
		if key == "" {
			continue
		}

		written, err := r.renderObject(ctx, object.Key, key, output, data)
		if err != nil {
			return result, err
		}

		if written == "" {
			result.Omitted = append(result.Omitted, key)
			continue
		}

		result.Written = append(result.Written, written)
	}

	log.Debug().
		Str("output", output).
		Int("written", len(result.Written)).
		Int("omitted", len(result.Omitted)).
		Msg("Rendered template")

	return result, nil
}

func (r *Renderer) prepareOutput(output string) error {
	entries, err := os.ReadDir(output)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(output, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("reading output directory: %w", err)
	}

	if len(entries) > 0 && !r.overwrite {
		return fmt.Errorf("%s: %w", output, ErrOutputNotEmpty)
	}

	return nil
}

// renderObject returns the written path, or an empty string when the key
// rendered away.
func (r *Renderer) renderObject(ctx context.Context, objectKey, key, output string, data map[string]any) (string, error) {
	name, err := execute(key, data)
	if err != nil {
		return "", fmt.Errorf("rendering name of %s: %w", key, err)
	}

	for _, segment := range strings.Split(name, "/") {
		if strings.TrimSpace(segment) == "" {
			return "", nil
		}
	}

	rel := path.Clean(name)
	if path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s renders to %s: %w", key, name, ErrOutsideOutput)
	}

	content, err := r.bucket.ReadAll(ctx, objectKey)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}

	if !matchAny(r.copyOnly, key) && bytes.IndexByte(content, 0) < 0 {
		rendered, err := execute(string(content), data)
		if err != nil {
			return "", fmt.Errorf("rendering %s: %w", key, err)
		}
		content = []byte(rendered)
	}

	perm := os.FileMode(0o644)
	if matchAny(r.executable, key) {
		perm = 0o755
	}

	target := filepath.Join(output, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating directory for %s: %w", rel, err)
	}

	if err := renameio.WriteFile(target, content, perm); err != nil {
		return "", fmt.Errorf("writing %s: %w", rel, err)
	}

	return rel, nil
}

func execute(source string, data map[string]any) (string, error) {
	if !strings.Contains(source, "{{") {
		return source, nil
	}

	template, err := handlebars.Parse(source)
	if err != nil {
		return "", err
	}

	return template.Exec(data)
}

// matchAny matches patterns against the full key and its base name, so
// "*.png" covers images in any directory.
func matchAny(patterns []string, key string) bool {
	base := path.Base(key)
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, key); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}

	return false
}
