package analyzer

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
	"gopkg.in/yaml.v3"
)

// ComposeFiles are the container orchestration files inspected for database services.
var ComposeFiles = []string{"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"}

// databaseRule maps dependency names and compose images to a database technology.
type databaseRule struct {
	name string
	// exact dependency names
	packages []string
	// lower-case substrings matched against dependency names
	keywords []string
	// image repository names, matched against the last path segment without tag
	images []string
}

var databaseRules = []databaseRule{
	{
		name:     "MongoDB",
		packages: []string{"mongoose", "mongodb"},
		keywords: []string{"pymongo", "mongo-driver", "mongodb"},
		images:   []string{"mongo", "mongodb"},
	},
	{
		name:     "MySQL",
		packages: []string{"mysql", "mysql2"},
		keywords: []string{"mysql"},
		images:   []string{"mysql", "mariadb"},
	},
	{
		name:     "PostgreSQL",
		packages: []string{"pg", "postgresql", "github.com/lib/pq"},
		keywords: []string{"psycopg", "postgres", "jackc/pgx"},
		images:   []string{"postgres", "postgresql"},
	},
	{
		name:     "SQLite",
		packages: []string{"sqlite3", "sqlite"},
		keywords: []string{"sqlite"},
	},
	{
		name:     "Redis",
		packages: []string{"redis"},
		keywords: []string{"redis"},
		images:   []string{"redis"},
	},
	{
		name:     "Elasticsearch",
		packages: []string{"elasticsearch"},
		keywords: []string{"elasticsearch"},
		images:   []string{"elasticsearch"},
	},
}

// composeFile is the subset of a compose document needed for detection
type composeFile struct {
	Services map[string]struct {
		Image string `yaml:"image"`
	} `yaml:"services"`
}

// detectDatabases matches dependency names and compose services against known database technologies.
// Results keep rule order and contain no duplicates.
func detectDatabases(repoPath string, names map[string]bool, deps []domain.Dependency) []string {
	found := make(map[string]bool)

	for _, dep := range deps {
		lower := strings.ToLower(dep.Name)
		for _, rule := range databaseRules {
			if slices.Contains(rule.packages, lower) || containsAny(lower, rule.keywords) {
				found[rule.name] = true
			}
		}
	}

	for _, name := range ComposeFiles {
		if !names[name] {
			continue
		}
		for _, db := range composeDatabases(filepath.Join(repoPath, name)) {
			found[db] = true
		}
	}

	databases := make([]string, 0, len(found))
	for _, rule := range databaseRules {
		if found[rule.name] {
			databases = append(databases, rule.name)
		}
	}
	return databases
}

// composeDatabases reads service images and names from a compose file.
// Unparsable files fall back to a plain substring scan of the content.
func composeDatabases(path string) []string {
	content, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("Failed to read compose file", "path", path, "error", err)
		return nil
	}

	var compose composeFile
	if err := yaml.Unmarshal(content, &compose); err != nil {
		slog.Debug("Failed to parse compose file, falling back to text scan", "path", path, "error", err)
		return composeText(string(content))
	}

	var dbs []string
	for service, def := range compose.Services {
		candidates := []string{strings.ToLower(service), imageName(def.Image)}
		for _, rule := range databaseRules {
			for _, c := range candidates {
				if c != "" && slices.Contains(rule.images, c) {
					dbs = append(dbs, rule.name)
				}
			}
		}
	}
	return dbs
}

// composeText matches "<image>:" substrings, as in `image: postgres:15` or a `redis:` service key
func composeText(content string) []string {
	lower := strings.ToLower(content)
	var dbs []string
	for _, rule := range databaseRules {
		for _, image := range rule.images {
			if strings.Contains(lower, image+":") {
				dbs = append(dbs, rule.name)
				break
			}
		}
	}
	return dbs
}

// imageName strips registry, namespace and tag: "docker.io/bitnami/redis:7" -> "redis"
func imageName(image string) string {
	image = strings.ToLower(strings.TrimSpace(image))
	if i := strings.IndexByte(image, '@'); i >= 0 {
		image = image[:i]
	}
	if i := strings.LastIndexByte(image, '/'); i >= 0 {
		image = image[i+1:]
	}
	if i := strings.IndexByte(image, ':'); i >= 0 {
		image = image[:i]
	}
	return image
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
