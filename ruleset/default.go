package ruleset

import (
	"hatch/features"
	"hatch/hooks"
	"hatch/resolver"
)

const pkg = "{{package_slug}}"

func when(flag string) features.Condition {
	return features.Condition{Requires: []string{flag}}
}

func rules(condition features.Condition, paths ...string) []resolver.Rule {
	out := make([]resolver.Rule, 0, len(paths))
	for _, p := range paths {
		out = append(out, resolver.Rule{Path: p, Condition: condition})
	}

	return out
}

// Default is the rule set of the built-in Python application template.
func Default() Set {
	var all []resolver.Rule

	all = append(all, rules(when(features.IncludeFastAPI),
		pkg+"/www.py",
		pkg+"/static",
		"dockerfile.www",
		"docker/www",
		"docs/dev/api.md",
	)...)

	all = append(all, rules(when(features.IncludeCelery),
		pkg+"/celery.py",
		"dockerfile.celery",
		"docker/celery",
		"docs/dev/celery.md",
	)...)

	all = append(all, rules(when(features.IncludeSQLAlchemy),
		pkg+"/models",
		"db",
		pkg+"/conf/db.py",
		pkg+"/services/db.py",
		"alembic.ini",
		"docs/dev/database.md",
	)...)

	all = append(all, rules(when(features.IncludeCLI),
		pkg+"/cli.py",
		"docs/dev/cli.md",
	)...)

	all = append(all, rules(when(features.IncludeJinja2),
		pkg+"/templates",
		pkg+"/services/jinja.py",
		"docs/dev/templates.md",
	)...)

	all = append(all, rules(when(features.IncludeDogpile),
		pkg+"/services/cache.py",
		"docs/dev/cache.md",
	)...)

	all = append(all, rules(when(features.IncludeDocker),
		".dockerignore",
		"compose.yaml",
		"dockerfile.www",
		"dockerfile.celery",
		"docs/dev/docker.md",
	)...)

	// Docker images are only built when at least one container exists.
	all = append(all, rules(features.Condition{
		Requires: []string{features.IncludeDocker},
		AnyOf:    []string{features.IncludeFastAPI, features.IncludeCelery},
	},
		".github/workflows/docker.yaml",
		"docker",
	)...)

	all = append(all, rules(when(features.IncludeGithubActions),
		".github",
		"docs/dev/github.md",
	)...)

	all = append(all, rules(when(features.IncludeRequirementsFiles),
		".github/workflows/lockfiles.yaml",
		"docs/dev/dependencies.md",
	)...)

	all = append(all, rules(when(features.PublishToPyPI),
		".github/workflows/pypi.yaml",
	)...)

	return Set{
		Rules: all,
		SweepEmpty: []string{
			pkg + "/services",
			"docs/dev",
			"docs",
		},
		Dependencies: []features.Dependency{
			{Flag: features.IncludeDogpile, AnyOf: []string{features.IncludeCelery, features.IncludeFastAPI, features.IncludeCLI}},
		},
		PostCommands: []hooks.Command{
			{Run: "make all"},
			{Run: "make dependencies", Condition: when(features.IncludeRequirementsFiles)},
			{Run: "make pretty"},
		},
		RequiredTools: []string{"uv"},
	}
}
