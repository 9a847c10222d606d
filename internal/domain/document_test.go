package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewRepositoryDocument(t *testing.T) {
	repo := Repository{
		ID:   "/src/api",
		Name: "api",
		Path: "/src/api",
		GitInfo: GitInfo{
			Owner: ExternalOwner("acme", "https://github.com/acme"),
		},
		Metadata: RepositoryMetadata{
			Language:     "Go",
			Runtime:      "Go",
			Databases:    []string{"PostgreSQL"},
			Dependencies: []Dependency{{Name: "github.com/spf13/cobra", Version: "v1.10.2", Kind: DependencyRuntime}},
			Sections:     []string{"Installation", "Usage"},
		},
		Tags: []string{"backend", "team-a"},
	}

	doc := NewRepositoryDocument(repo)

	if doc.ID != "/src/api" {
		t.Errorf("ID = %q, want %q", doc.ID, "/src/api")
	}
	if doc.Owner != "acme" {
		t.Errorf("Owner = %q, want %q", doc.Owner, "acme")
	}
	for _, want := range []string{"Go", "PostgreSQL", "github.com/spf13/cobra"} {
		if !strings.Contains(doc.TechStack, want) {
			t.Errorf("TechStack %q does not contain %q", doc.TechStack, want)
		}
	}
	if doc.Tags != "backend team-a" {
		t.Errorf("Tags = %q, want %q", doc.Tags, "backend team-a")
	}
	if doc.Sections != "Installation Usage" {
		t.Errorf("Sections = %q, want %q", doc.Sections, "Installation Usage")
	}
}

func TestNewRepositoryDocument_DisplayName(t *testing.T) {
	doc := NewRepositoryDocument(Repository{Name: "api", DisplayName: "Public API", Metadata: EmptyMetadata()})
	if doc.Name != "Public API" {
		t.Errorf("Name = %q, want %q", doc.Name, "Public API")
	}
	if doc.Owner != "self" {
		t.Errorf("Owner = %q, want %q", doc.Owner, "self")
	}
}

func TestOwner_JSON(t *testing.T) {
	tests := []struct {
		name  string
		owner Owner
		want  string
	}{
		{"self", SelfOwner(), `"self"`},
		{"external", ExternalOwner("acme", "https://github.com/acme"), `{"name":"acme","url":"https://github.com/acme"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.owner)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal = %s, want %s", data, tt.want)
			}

			var decoded Owner
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if decoded != tt.owner {
				t.Errorf("Unmarshal = %+v, want %+v", decoded, tt.owner)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	if got := NormalizePath("/a/b/../c/"); got != "/a/c" {
		t.Errorf("NormalizePath = %q, want %q", got, "/a/c")
	}
}

func TestRepository_Clone(t *testing.T) {
	orig := Repository{Tags: []string{"a"}, Metadata: RepositoryMetadata{Databases: []string{"Redis"}}}
	c := orig.Clone()
	c.Tags[0] = "b"
	c.Metadata.Databases[0] = "MySQL"

	if orig.Tags[0] != "a" {
		t.Errorf("Tags mutated through clone: %v", orig.Tags)
	}
	if orig.Metadata.Databases[0] != "Redis" {
		t.Errorf("Databases mutated through clone: %v", orig.Metadata.Databases)
	}
}

func TestMinimalGitInfo(t *testing.T) {
	info := MinimalGitInfo()
	if info.CurrentBranch != "unknown" {
		t.Errorf("CurrentBranch = %q, want %q", info.CurrentBranch, "unknown")
	}
	if !info.Owner.IsSelf() {
		t.Error("Expected self owner")
	}
	if info.LastCommitDate.Unix() != 0 {
		t.Errorf("LastCommitDate = %v, want epoch", info.LastCommitDate)
	}
}
