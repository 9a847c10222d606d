package domain

import "strings"

// RepositoryDocument is the flattened form of a Repository stored in the Bleve search index.
type RepositoryDocument struct {
	// ID is the repository identifier (normalized path).
	ID string `json:"id"`

	// Name is the directory name, analyzed for full-text search.
	Name string `json:"name"`

	// Path is the absolute repository path, stored as a keyword.
	Path string `json:"path"`

	Language string `json:"language"`
	Runtime  string `json:"runtime"`
	Owner    string `json:"owner"`

	// TechStack joins language, runtime, databases and dependency names.
	TechStack string `json:"tech_stack"`

	// Tags and README section headings.
	Tags     string `json:"tags"`
	Sections string `json:"sections"`
}

// Bleve field name constants for consistent field references in queries and mappings.
const (
	RepoFieldID        = "id"
	RepoFieldName      = "name"
	RepoFieldPath      = "path"
	RepoFieldLanguage  = "language"
	RepoFieldRuntime   = "runtime"
	RepoFieldOwner     = "owner"
	RepoFieldTechStack = "tech_stack"
	RepoFieldTags      = "tags"
	RepoFieldSections  = "sections"
)

// NewRepositoryDocument flattens a repository for indexing.
func NewRepositoryDocument(r Repository) RepositoryDocument {
	stack := []string{r.Metadata.Language}
	if r.Metadata.Runtime != "" {
		stack = append(stack, r.Metadata.Runtime)
	}
	stack = append(stack, r.Metadata.Databases...)
	stack = append(stack, r.Metadata.DependencyNames()...)

	return RepositoryDocument{
		ID:        r.ID,
		Name:      r.DisplayNameOrName(),
		Path:      r.Path,
		Language:  r.Metadata.Language,
		Runtime:   r.Metadata.Runtime,
		Owner:     r.GitInfo.Owner.Label(),
		TechStack: strings.Join(stack, " "),
		Tags:      strings.Join(r.Tags, " "),
		Sections:  strings.Join(r.Metadata.Sections, " "),
	}
}
