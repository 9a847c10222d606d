package analyzer

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// TestDirs are conventional top-level test directory names (compared case-insensitively).
var TestDirs = []string{"test", "tests", "__tests__", "spec", "specs"}

// CIPaths are conventional CI configuration files and directories.
var CIPaths = []string{
	".github/workflows",
	".gitlab-ci.yml",
	".travis.yml",
	"circle.yml",
	".circleci/config.yml",
	"azure-pipelines.yml",
	"Jenkinsfile",
	".drone.yml",
}

// LicenseFiles are checked in order; the first one present is fingerprinted.
var LicenseFiles = []string{"LICENSE", "LICENSE.txt", "LICENSE.md", "LICENCE", "COPYING"}

// UnknownLicense is reported when a license file exists but matches no fingerprint.
const UnknownLicense = "Unknown"

// licenseFingerprints are matched in order against lower-cased license text
var licenseFingerprints = []struct {
	phrase string
	id     string
}{
	{"mit license", "MIT"},
	{"apache license", "Apache-2.0"},
	{"gnu general public license", "GPL-3.0"},
	{"bsd license", "BSD"},
	{"mozilla public license", "MPL-2.0"},
	{"unlicense", "Unlicense"},
}

// hasTests reports a conventional test directory or a top-level file whose name mentions test or spec.
func hasTests(entries []os.DirEntry) bool {
	for _, e := range entries {
		if e.IsDir() && slices.Contains(TestDirs, strings.ToLower(e.Name())) {
			return true
		}
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			name := strings.ToLower(e.Name())
			if strings.Contains(name, "test") || strings.Contains(name, "spec") {
				return true
			}
		}
	}
	return false
}

// hasCI reports whether any conventional CI configuration path exists.
func hasCI(repoPath string) bool {
	for _, p := range CIPaths {
		if _, err := os.Stat(filepath.Join(repoPath, filepath.FromSlash(p))); err == nil {
			return true
		}
	}
	return false
}

// detectLicense fingerprints the first license file, falling back to the package.json license field.
func detectLicense(repoPath string, names map[string]bool) string {
	for _, name := range LicenseFiles {
		if !names[name] {
			continue
		}
		content, err := os.ReadFile(filepath.Join(repoPath, name))
		if err != nil {
			slog.Debug("Failed to read license file", "path", repoPath, "file", name, "error", err)
			return ""
		}
		return IdentifyLicense(string(content))
	}

	if names[PackageJSON] {
		content, err := os.ReadFile(filepath.Join(repoPath, PackageJSON))
		if err != nil {
			return ""
		}
		pkg, err := parsePackageManifest(content)
		if err != nil {
			return ""
		}
		return pkg.license()
	}
	return ""
}

// IdentifyLicense maps license text to an identifier by characteristic phrase.
func IdentifyLicense(content string) string {
	lower := strings.ToLower(content)
	for _, fp := range licenseFingerprints {
		if strings.Contains(lower, fp.phrase) {
			return fp.id
		}
	}
	return UnknownLicense
}
