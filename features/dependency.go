package features

import (
	"fmt"
	"strings"
)

// Dependency documents a soft dependency: Flag is only meaningful when at
// least one of AnyOf is enabled too. Dependencies are never enforced.
type Dependency struct {
	Flag  string   `yaml:"flag"`
	AnyOf []string `yaml:"any_of"`
}

// Advisories describes every enabled flag whose soft dependencies are all
// disabled. The result is meant for warnings only.
func Advisories(flags Flags, dependencies []Dependency) []string {
	var advisories []string
	for _, dependency := range dependencies {
		if !flags.Enabled(dependency.Flag) || len(dependency.AnyOf) == 0 {
			continue
		}

		if (Condition{AnyOf: dependency.AnyOf}).Satisfied(flags) {
			continue
		}

		advisories = append(advisories, fmt.Sprintf(
			"%s is enabled but none of %s is, it will have no consumer",
			dependency.Flag,
			strings.Join(dependency.AnyOf, ", "),
		))
	}

	return advisories
}
