package generator

import (
	"strings"

	"github.com/gosimple/slug"

	"hatch/features"
)

const (
	VariableProjectName = "project_name"
	VariablePackageSlug = "package_slug"
)

// Variables copies raw and derives package_slug from project_name when it
// was not given explicitly.
func Variables(raw map[string]string) map[string]string {
	variables := make(map[string]string, len(raw)+1)
	for k, v := range raw {
		variables[k] = v
	}

	if strings.TrimSpace(variables[VariablePackageSlug]) == "" && variables[VariableProjectName] != "" {
		variables[VariablePackageSlug] = PackageSlug(variables[VariableProjectName])
	}

	return variables
}

// PackageSlug turns a human project name into a Python module name.
func PackageSlug(projectName string) string {
	return strings.ReplaceAll(slug.Make(projectName), "-", "_")
}

// TemplateContext is what templates see: every variable as a string and every
// flag as a boolean. Flags win over variables of the same name.
func TemplateContext(variables map[string]string, flags features.Flags) map[string]any {
	data := make(map[string]any, len(variables))
	for k, v := range variables {
		data[k] = v
	}

	for k, v := range flags.Map() {
		data[k] = v
	}

	return data
}
