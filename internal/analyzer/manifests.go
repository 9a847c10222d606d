package analyzer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"slices"
	"strings"

	burntsushi "github.com/BurntSushi/toml"
	"github.com/pelletier/go-toml/v2"
	"github.com/sha1n/mcp-repo-catalog/internal/domain"
	"golang.org/x/mod/modfile"
)

// Manifest file names recognized in a repository's top-level directory
const (
	PackageJSON     = "package.json"
	GoMod           = "go.mod"
	CargoToml       = "Cargo.toml"
	PyprojectToml   = "pyproject.toml"
	RequirementsTxt = "requirements.txt"
	ComposerJSON    = "composer.json"
	Gemfile         = "Gemfile"
	PomXML          = "pom.xml"
	SetupPy         = "setup.py"
	BuildGradle     = "build.gradle"
	BuildGradleKts  = "build.gradle.kts"
)

const (
	unparsedVersion  = ""
	poetryPythonSpec = "python"
)

// ManifestParser extracts dependencies from one kind of manifest file.
type ManifestParser interface {
	CanParse(filename string) bool
	ParseFile(content []byte) ([]domain.Dependency, error)
}

// DefaultManifestParsers lists the supported manifests in reporting order.
func DefaultManifestParsers() []ManifestParser {
	return []ManifestParser{
		PackageJSONParser{},
		GoModParser{},
		CargoTomlParser{},
		PyProjectParser{},
		RequirementsParser{},
		ComposerJSONParser{},
		GemfileParser{},
		PomParser{},
	}
}

// sortedDeps turns a name->version map into dependencies ordered by name.
func sortedDeps(m map[string]string, kind domain.DependencyKind, skip func(string) bool) []domain.Dependency {
	names := make([]string, 0, len(m))
	for name := range m {
		if skip != nil && skip(name) {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)

	deps := make([]domain.Dependency, 0, len(names))
	for _, name := range names {
		deps = append(deps, domain.Dependency{Name: name, Version: m[name], Kind: kind})
	}
	return deps
}

// packageManifest is the subset of package.json read by the analyzer
type packageManifest struct {
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	License              json.RawMessage   `json:"license"`
}

func parsePackageManifest(content []byte) (packageManifest, error) {
	var pkg packageManifest
	if err := json.Unmarshal(content, &pkg); err != nil {
		return pkg, fmt.Errorf("failed to parse %s: %w", PackageJSON, err)
	}
	return pkg, nil
}

// license returns the declared SPDX identifier; both the string and legacy {"type": ...} forms are accepted.
func (p packageManifest) license() string {
	if len(p.License) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.License, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(p.License, &obj); err == nil {
		return strings.TrimSpace(obj.Type)
	}
	return ""
}

// PackageJSONParser reads npm dependencies, keeping their kind.
type PackageJSONParser struct{}

func (PackageJSONParser) CanParse(filename string) bool { return filename == PackageJSON }

func (PackageJSONParser) ParseFile(content []byte) ([]domain.Dependency, error) {
	pkg, err := parsePackageManifest(content)
	if err != nil {
		return nil, err
	}

	var deps []domain.Dependency
	deps = append(deps, sortedDeps(pkg.Dependencies, domain.DependencyRuntime, nil)...)
	deps = append(deps, sortedDeps(pkg.DevDependencies, domain.DependencyDevelopment, nil)...)
	deps = append(deps, sortedDeps(pkg.PeerDependencies, domain.DependencyPeer, nil)...)
	deps = append(deps, sortedDeps(pkg.OptionalDependencies, domain.DependencyOptional, nil)...)
	return deps, nil
}

// GoModParser reads direct requirements from go.mod. Indirect requirements are transitive and skipped.
type GoModParser struct{}

func (GoModParser) CanParse(filename string) bool { return filename == GoMod }

func (GoModParser) ParseFile(content []byte) ([]domain.Dependency, error) {
	f, err := modfile.ParseLax(GoMod, content, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", GoMod, err)
	}

	var deps []domain.Dependency
	for _, req := range f.Require {
		if req.Indirect {
			continue
		}
		deps = append(deps, domain.Dependency{
			Name:    req.Mod.Path,
			Version: req.Mod.Version,
			Kind:    domain.DependencyRuntime,
		})
	}
	return deps, nil
}

// CargoTomlParser reads [dependencies], [dev-dependencies] and [build-dependencies].
type CargoTomlParser struct{}

func (CargoTomlParser) CanParse(filename string) bool { return filename == CargoToml }

func (CargoTomlParser) ParseFile(content []byte) ([]domain.Dependency, error) {
	var manifest map[string]any
	if err := toml.Unmarshal(content, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", CargoToml, err)
	}

	sections := []struct {
		name string
		kind domain.DependencyKind
	}{
		{"dependencies", domain.DependencyRuntime},
		{"dev-dependencies", domain.DependencyDevelopment},
		{"build-dependencies", domain.DependencyDevelopment},
	}

	var deps []domain.Dependency
	for _, section := range sections {
		table, ok := manifest[section.name].(map[string]any)
		if !ok {
			continue
		}
		versions := make(map[string]string, len(table))
		for name, value := range table {
			versions[name] = tomlVersion(value)
		}
		deps = append(deps, sortedDeps(versions, section.kind, nil)...)
	}
	return deps, nil
}

// tomlVersion reads `name = "1.0"` and `name = { version = "1.0", ... }` forms
func tomlVersion(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		if ver, ok := v["version"].(string); ok {
			return ver
		}
	}
	return unparsedVersion
}

// PyProjectParser reads PEP 621 and Poetry dependency tables.
type PyProjectParser struct{}

func (PyProjectParser) CanParse(filename string) bool { return filename == PyprojectToml }

func (PyProjectParser) ParseFile(content []byte) ([]domain.Dependency, error) {
	var raw map[string]any
	if _, err := burntsushi.Decode(string(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", PyprojectToml, err)
	}

	var deps []domain.Dependency

	// PEP 621
	if project, ok := raw["project"].(map[string]any); ok {
		deps = append(deps, requirementList(project["dependencies"], domain.DependencyRuntime)...)

		if optional, ok := project["optional-dependencies"].(map[string]any); ok {
			for _, group := range sortedKeys(optional) {
				deps = append(deps, requirementList(optional[group], domain.DependencyOptional)...)
			}
		}
	}

	// Poetry
	if tool, ok := raw["tool"].(map[string]any); ok {
		if poetry, ok := tool["poetry"].(map[string]any); ok {
			deps = append(deps, poetryTable(poetry["dependencies"], domain.DependencyRuntime)...)
			deps = append(deps, poetryTable(poetry["dev-dependencies"], domain.DependencyDevelopment)...)

			if groups, ok := poetry["group"].(map[string]any); ok {
				for _, name := range sortedKeys(groups) {
					group, ok := groups[name].(map[string]any)
					if !ok {
						continue
					}
					deps = append(deps, poetryTable(group["dependencies"], domain.DependencyDevelopment)...)
				}
			}
		}
	}

	return deps, nil
}

func requirementList(value any, kind domain.DependencyKind) []domain.Dependency {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	var deps []domain.Dependency
	for _, item := range list {
		spec, ok := item.(string)
		if !ok {
			continue
		}
		if name, version := splitRequirement(spec); name != "" {
			deps = append(deps, domain.Dependency{Name: name, Version: version, Kind: kind})
		}
	}
	return deps
}

func poetryTable(value any, kind domain.DependencyKind) []domain.Dependency {
	table, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	versions := make(map[string]string, len(table))
	for name, v := range table {
		versions[name] = tomlVersion(v)
	}
	return sortedDeps(versions, kind, func(name string) bool { return name == poetryPythonSpec })
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// splitRequirement splits a PEP 508 requirement into name and version specifier.
// Extras and environment markers are dropped: "requests[socks]>=2.0; python_version>'3'" -> ("requests", ">=2.0").
func splitRequirement(spec string) (string, string) {
	if i := strings.IndexByte(spec, ';'); i >= 0 {
		spec = spec[:i]
	}
	spec = strings.TrimSpace(spec)

	opIdx := strings.IndexAny(spec, "=<>!~ ")
	name, version := spec, unparsedVersion
	if opIdx >= 0 {
		name = spec[:opIdx]
		version = strings.TrimSpace(spec[opIdx:])
	}
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name), version
}

// RequirementsParser reads pip requirements files.
type RequirementsParser struct{}

func (RequirementsParser) CanParse(filename string) bool { return filename == RequirementsTxt }

func (RequirementsParser) ParseFile(content []byte) ([]domain.Dependency, error) {
	var deps []domain.Dependency
	scanner := bufio.NewScanner(bytes.NewReader(content))

	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, " #"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if name, version := splitRequirement(line); name != "" {
			deps = append(deps, domain.Dependency{Name: name, Version: version, Kind: domain.DependencyRuntime})
		}
	}

	return deps, scanner.Err()
}

// ComposerJSONParser reads require and require-dev, skipping platform requirements.
type ComposerJSONParser struct{}

func (ComposerJSONParser) CanParse(filename string) bool { return filename == ComposerJSON }

func (ComposerJSONParser) ParseFile(content []byte) ([]domain.Dependency, error) {
	var composer struct {
		Require    map[string]string `json:"require"`
		RequireDev map[string]string `json:"require-dev"`
	}
	if err := json.Unmarshal(content, &composer); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ComposerJSON, err)
	}

	platform := func(name string) bool {
		return name == "php" || strings.HasPrefix(name, "ext-") || strings.HasPrefix(name, "lib-")
	}

	var deps []domain.Dependency
	deps = append(deps, sortedDeps(composer.Require, domain.DependencyRuntime, platform)...)
	deps = append(deps, sortedDeps(composer.RequireDev, domain.DependencyDevelopment, platform)...)
	return deps, nil
}

var (
	gemRegex      = regexp.MustCompile(`^gem\s+['"]([^'"]+)['"](?:\s*,\s*['"]([^'"]+)['"])?`)
	gemGroupRegex = regexp.MustCompile(`^group\s+(.+?)\s+do\b`)
)

// GemfileParser reads gem declarations. Gems inside development or test groups are development dependencies.
type GemfileParser struct{}

func (GemfileParser) CanParse(filename string) bool { return filename == Gemfile }

func (GemfileParser) ParseFile(content []byte) ([]domain.Dependency, error) {
	var deps []domain.Dependency
	scanner := bufio.NewScanner(bytes.NewReader(content))
	devGroup := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if m := gemGroupRegex.FindStringSubmatch(line); m != nil {
			devGroup = strings.Contains(m[1], "development") || strings.Contains(m[1], "test")
			continue
		}
		if line == "end" {
			devGroup = false
			continue
		}

		m := gemRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		kind := domain.DependencyRuntime
		if devGroup {
			kind = domain.DependencyDevelopment
		}
		deps = append(deps, domain.Dependency{Name: m[1], Version: m[2], Kind: kind})
	}

	return deps, scanner.Err()
}

// pomProject is the subset of a Maven POM read by the analyzer
type pomProject struct {
	XMLName      xml.Name        `xml:"project"`
	Dependencies []pomDependency `xml:"dependencies>dependency"`
}

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
	Optional   bool   `xml:"optional"`
}

// PomParser reads Maven dependencies, mapping scope to kind.
type PomParser struct{}

func (PomParser) CanParse(filename string) bool { return filename == PomXML }

func (PomParser) ParseFile(content []byte) ([]domain.Dependency, error) {
	var project pomProject
	if err := xml.Unmarshal(content, &project); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", PomXML, err)
	}

	deps := make([]domain.Dependency, 0, len(project.Dependencies))
	for _, d := range project.Dependencies {
		kind := domain.DependencyRuntime
		switch {
		case d.Optional:
			kind = domain.DependencyOptional
		case d.Scope == "test":
			kind = domain.DependencyDevelopment
		case d.Scope == "provided":
			kind = domain.DependencyPeer
		}
		name := d.ArtifactID
		if d.GroupID != "" {
			name = d.GroupID + ":" + d.ArtifactID
		}
		deps = append(deps, domain.Dependency{Name: name, Version: d.Version, Kind: kind})
	}
	return deps, nil
}
