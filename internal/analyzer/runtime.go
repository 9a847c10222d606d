package analyzer

import (
	"strings"
)

// Runtime names reported for a repository
const (
	RuntimeNode   = "Node.js"
	RuntimePython = "Python"
	RuntimeJVM    = "JVM"
	RuntimeDotNet = ".NET"
	RuntimePHP    = "PHP"
	RuntimeRuby   = "Ruby"
	RuntimeGo     = "Go"
	RuntimeRust   = "Rust"
)

// runtimeRules are evaluated in order; the first rule with a present marker wins.
var runtimeRules = []struct {
	runtime string
	matches func(names map[string]bool) bool
}{
	{RuntimeNode, hasAny(PackageJSON)},
	{RuntimePython, hasAny(RequirementsTxt, SetupPy, PyprojectToml)},
	{RuntimeJVM, hasAny(PomXML, BuildGradle, BuildGradleKts)},
	{RuntimeDotNet, hasSuffix(".csproj", ".sln")},
	{RuntimePHP, hasAny(ComposerJSON)},
	{RuntimeRuby, hasAny(Gemfile)},
	{RuntimeGo, hasAny(GoMod)},
	{RuntimeRust, hasAny(CargoToml)},
}

func hasAny(files ...string) func(map[string]bool) bool {
	return func(names map[string]bool) bool {
		for _, f := range files {
			if names[f] {
				return true
			}
		}
		return false
	}
}

func hasSuffix(suffixes ...string) func(map[string]bool) bool {
	return func(names map[string]bool) bool {
		for name := range names {
			for _, s := range suffixes {
				if strings.HasSuffix(name, s) {
					return true
				}
			}
		}
		return false
	}
}

// detectRuntime returns the runtime implied by top-level manifest names, or "".
func detectRuntime(names map[string]bool) string {
	for _, rule := range runtimeRules {
		if rule.matches(names) {
			return rule.runtime
		}
	}
	return ""
}
