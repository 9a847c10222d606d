package scanner

import (
	"path"
	"path/filepath"
	"strings"
)

// DefaultExcludePaths are excluded when no exclusion list is configured.
var DefaultExcludePaths = []string{"node_modules", ".git", ".vscode"}

// ExcludeMatcher decides whether a directory is excluded from discovery.
// Plain rules match when the normalized directory path contains or starts with
// the rule; rules containing '*' are glob patterns.
type ExcludeMatcher struct {
	rules []string
}

// NewExcludeMatcher creates a matcher from configured exclusion rules.
func NewExcludeMatcher(rules []string) *ExcludeMatcher {
	normalized := make([]string, 0, len(rules))
	for _, r := range rules {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		normalized = append(normalized, path.Clean(filepath.ToSlash(r)))
	}
	return &ExcludeMatcher{rules: normalized}
}

// Excluded returns true if dir matches any exclusion rule.
func (m *ExcludeMatcher) Excluded(dir string) bool {
	dir = path.Clean(filepath.ToSlash(dir))

	for _, rule := range m.rules {
		if strings.Contains(rule, "*") {
			if matchPattern(rule, dir) {
				return true
			}
			continue
		}
		if strings.Contains(dir, rule) || strings.HasPrefix(dir, rule) {
			return true
		}
	}
	return false
}

// matchPattern matches a directory path against a glob pattern.
// Supports ** for any directory depth and * within a single path element.
func matchPattern(pattern, dir string) bool {
	// Handle **/ prefix (match at any directory depth)
	if strings.HasPrefix(pattern, "**/") {
		rest := pattern[3:]
		parts := strings.Split(dir, "/")
		for i := range parts {
			if matchSimplePattern(rest, strings.Join(parts[i:], "/")) {
				return true
			}
		}
		return false
	}

	// Handle /** suffix (match the directory and everything below it)
	if strings.HasSuffix(pattern, "/**") {
		prefix := pattern[:len(pattern)-3]
		if matchSimplePattern(prefix, dir) {
			return true
		}
		parts := strings.Split(dir, "/")
		for i := range parts {
			if matchSimplePattern(prefix, strings.Join(parts[:i+1], "/")) || matchSimplePattern(prefix, parts[i]) {
				return true
			}
		}
		return false
	}

	return matchSimplePattern(pattern, dir)
}

// matchSimplePattern matches a glob pattern (with * but not **) against the
// whole path or its last element.
func matchSimplePattern(pattern, name string) bool {
	if pattern == name {
		return true
	}

	if matched, _ := path.Match(pattern, name); matched {
		return true
	}

	matched, _ := path.Match(pattern, path.Base(name))
	return matched
}
