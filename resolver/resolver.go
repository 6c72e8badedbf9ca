// Package resolver prunes a rendered project tree so that only the files of
// enabled features remain.
package resolver

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hatch/core"
	"hatch/features"
)

type Options struct {
	// SweepEmpty lists directories that are removed when pruning leaves them
	// empty. They are checked deepest first.
	SweepEmpty []string
	// DryRun reports what would be removed without touching the disk.
	DryRun bool
	FS     FS
	Logger *zerolog.Logger
}

type Resolver struct {
	rules  []Rule
	sweep  []string
	dryRun bool
	fs     FS
	logger *zerolog.Logger
}

// Report lists rule paths by outcome, relative to the root and sorted.
type Report struct {
	Kept    []string
	Removed []string
	Missing []string
	Swept   []string
}

// Decision is the outcome of one rule for a given set of flags.
type Decision struct {
	Rule Rule
	Keep bool
}

func New(rules []Rule, options Options) (*Resolver, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, err
	}

	normalized := make([]Rule, len(rules))
	for i, rule := range rules {
		cleaned, _ := cleanRelative(rule.Path)
		rule.Path = cleaned
		normalized[i] = rule
	}
	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].Path < normalized[j].Path
	})

	var validationError core.ValidationError
	sweep := make([]string, 0, len(options.SweepEmpty))
	for _, dir := range options.SweepEmpty {
		cleaned, err := cleanRelative(dir)
		if err != nil {
			validationError.Add("sweep " + err.Error())
			continue
		}
		sweep = append(sweep, cleaned)
	}
	if err := validationError.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(sweep, func(i, j int) bool {
		di, dj := strings.Count(sweep[i], "/"), strings.Count(sweep[j], "/")
		if di != dj {
			return di > dj
		}
		return sweep[i] < sweep[j]
	})

	if options.FS == nil {
		options.FS = OSFS{}
	}

	if options.Logger == nil {
		options.Logger = &log.Logger
	}

	return &Resolver{
		rules:  normalized,
		sweep:  sweep,
		dryRun: options.DryRun,
		fs:     options.FS,
		logger: options.Logger,
	}, nil
}

// Plan evaluates every rule without touching the disk.
func (r *Resolver) Plan(flags features.Flags) []Decision {
	decisions := make([]Decision, 0, len(r.rules))
	for _, rule := range r.rules {
		decisions = append(decisions, Decision{Rule: rule, Keep: rule.Keep(flags)})
	}

	return decisions
}

// Apply deletes the path of every rule whose flags are disabled, then sweeps
// directories left empty. Paths that do not exist are skipped. Any other
// filesystem failure stops the run and is returned as a *DeletionError.
func (r *Resolver) Apply(ctx context.Context, flags features.Flags, root string) (Report, error) {
	span := sentry.StartSpan(ctx, "resolver.apply", sentry.WithTransactionName("ApplyRules"))
	defer span.Finish()

	realRoot, err := r.resolveRoot(root)
	if err != nil {
		return Report{}, err
	}

	var report Report
	kept := map[string]struct{}{}
	doomed := map[string]struct{}{}
	for _, decision := range r.Plan(flags) {
		if decision.Keep {
			kept[decision.Rule.Path] = struct{}{}
			continue
		}
		doomed[decision.Rule.Path] = struct{}{}
	}
	// Any firing rule dooms a path, even when another rule would keep it.
	for p := range doomed {
		delete(kept, p)
	}
	report.Kept = sortedSet(kept)

	// A path can be governed by several rules. It is removed once, checked
	// against the first explicit kind.
	kinds := map[string]Kind{}
	for _, rule := range r.rules {
		if _, ok := doomed[rule.Path]; !ok {
			continue
		}
		if _, seen := kinds[rule.Path]; !seen || kinds[rule.Path] == KindAny {
			kinds[rule.Path] = rule.Kind
		}
	}

	removed := map[string]struct{}{}
	for _, p := range sortedSet(doomed) {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if underAny(p, removed) {
			report.Missing = append(report.Missing, p)
			continue
		}

		gone, err := r.remove(realRoot, p, kinds[p])
		if err != nil {
			return report, err
		}

		if !gone {
			report.Missing = append(report.Missing, p)
			continue
		}

		removed[p] = struct{}{}
		report.Removed = append(report.Removed, p)
	}

	swept, err := r.sweepEmpty(realRoot, removed)
	report.Swept = swept
	if err != nil {
		return report, err
	}

	r.logger.Debug().
		Str("root", realRoot).
		Bool("dry_run", r.dryRun).
		Int("removed", len(report.Removed)).
		Int("missing", len(report.Missing)).
		Int("swept", len(report.Swept)).
		Msg("Pruned generated tree")

	return report, nil
}

func (r *Resolver) resolveRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}

	realRoot, err := r.fs.EvalSymlinks(absRoot)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}

	info, err := r.fs.Lstat(realRoot)
	if err != nil {
		return "", fmt.Errorf("inspecting root: %w", err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", root, ErrRootNotDir)
	}

	return realRoot, nil
}

// locate returns the on-disk location of rel, with every parent directory
// resolved and confirmed to stay under realRoot. The last element is not
// followed, so a symlink is handled as the link itself.
func (r *Resolver) locate(realRoot, rel string) (string, error) {
	target := filepath.Join(realRoot, filepath.FromSlash(rel))

	realParent, err := r.fs.EvalSymlinks(filepath.Dir(target))
	if err != nil {
		return "", err
	}

	within, err := filepath.Rel(realRoot, realParent)
	if err != nil {
		return "", fmt.Errorf("rel computation failed: %w", err)
	}

	if within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}

	return filepath.Join(realParent, filepath.Base(target)), nil
}

// remove deletes rel if it exists. The boolean reports whether something was
// (or in dry-run mode would be) deleted.
func (r *Resolver) remove(realRoot, rel string, kind Kind) (bool, error) {
	location, err := r.locate(realRoot, rel)
	if err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, &DeletionError{Path: rel, Err: err}
	}

	info, err := r.fs.Lstat(location)
	if err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, &DeletionError{Path: rel, Err: err}
	}

	switch {
	case kind == KindFile && info.IsDir():
		return false, &DeletionError{Path: rel, Err: fmt.Errorf("%w: expected a file, found a directory", ErrKindMismatch)}
	case kind == KindDir && !info.IsDir():
		return false, &DeletionError{Path: rel, Err: fmt.Errorf("%w: expected a directory, found %s", ErrKindMismatch, describeMode(info.Mode()))}
	}

	if r.dryRun {
		r.logger.Info().Str("path", rel).Msg("Would remove")
		return true, nil
	}

	if info.IsDir() {
		err = r.fs.RemoveAll(location)
	} else {
		err = r.fs.Remove(location)
	}
	if err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, &DeletionError{Path: rel, Err: err}
	}

	r.logger.Debug().Str("path", rel).Msg("Removed")
	return true, nil
}

func (r *Resolver) sweepEmpty(realRoot string, removed map[string]struct{}) ([]string, error) {
	var swept []string
	for _, dir := range r.sweep {
		if _, ok := removed[dir]; ok || underAny(dir, removed) {
			continue
		}

		location, err := r.locate(realRoot, dir)
		if err != nil {
			if isMissing(err) {
				continue
			}
			return swept, &DeletionError{Path: dir, Err: err}
		}

		info, err := r.fs.Lstat(location)
		if err != nil {
			if isMissing(err) {
				continue
			}
			return swept, &DeletionError{Path: dir, Err: err}
		}

		if !info.IsDir() {
			continue
		}

		entries, err := r.fs.ReadDir(location)
		if err != nil {
			return swept, &DeletionError{Path: dir, Err: err}
		}

		remaining := 0
		for _, entry := range entries {
			if _, ok := removed[path.Join(dir, entry.Name())]; !ok {
				remaining++
			}
		}
		if remaining > 0 {
			continue
		}

		if !r.dryRun {
			if err := r.fs.Remove(location); err != nil && !isMissing(err) {
				return swept, &DeletionError{Path: dir, Err: err}
			}
		}

		removed[dir] = struct{}{}
		swept = append(swept, dir)
		r.logger.Debug().Str("path", dir).Bool("dry_run", r.dryRun).Msg("Swept empty directory")
	}

	return swept, nil
}

// isMissing reports errors meaning the path is not there. A path below a
// regular file fails with ENOTDIR rather than ENOENT.
func isMissing(err error) bool {
	return errors.Is(err, iofs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

func underAny(p string, dirs map[string]struct{}) bool {
	for dir := range dirs {
		if strings.HasPrefix(p, dir+"/") {
			return true
		}
	}

	return false
}

func describeMode(mode iofs.FileMode) string {
	switch {
	case mode&iofs.ModeSymlink != 0:
		return "a symlink"
	case mode.IsRegular():
		return "a file"
	default:
		return "a " + mode.Type().String() + " entry"
	}
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}
