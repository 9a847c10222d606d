package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-repo-catalog/internal/domain"
	"github.com/sha1n/mcp-repo-catalog/internal/filter"
)

// ListArgument defines list_repositories parameters.
type ListArgument struct {
	Criteria       CriteriaArgument `json:"criteria,omitempty" jsonschema:"Structured filter criteria"`
	SearchTerm     string           `json:"searchTerm,omitempty" jsonschema:"Case-insensitive substring of the repository name"`
	Language       string           `json:"language,omitempty" jsonschema:"Single primary language"`
	Tags           []string         `json:"tags,omitempty" jsonschema:"Repositories carrying any of these tags"`
	IsFavorite     *bool            `json:"isFavorite,omitempty" jsonschema:"Favorite state to match"`
	IsArchived     *bool            `json:"isArchived,omitempty" jsonschema:"Archived state to match"`
	HasUncommitted *bool            `json:"hasUncommitted,omitempty" jsonschema:"Uncommitted changes state to match"`
	CommitAfter    string           `json:"commitAfter,omitempty" jsonschema:"Only repositories whose last commit is on or after this date (YYYY-MM-DD or RFC 3339)"`
	CommitBefore   string           `json:"commitBefore,omitempty" jsonschema:"Only repositories whose last commit is on or before this date; a plain date includes the whole day"`
	SortBy         string           `json:"sortBy,omitempty" jsonschema:"Sort field: name, language, lastCommit, lastAccessed, accessCount, createdAt, updatedAt, size or favorite"`
	SortOrder      string           `json:"sortOrder,omitempty" jsonschema:"asc (default) or desc"`
	Limit          int              `json:"limit,omitempty" jsonschema:"Maximum number of repositories to return"`
}

// PathArgument identifies a repository by path.
type PathArgument struct {
	Path string `json:"path" jsonschema:"Absolute path of the repository"`
}

// GetArgument defines get_repository parameters.
type GetArgument struct {
	Path    string `json:"path" jsonschema:"Absolute path of the repository"`
	Commits int    `json:"commits,omitempty" jsonschema:"Number of recent commits to include (default 10)"`
}

// SearchArgument defines search_repositories parameters.
type SearchArgument struct {
	Query string `json:"query" jsonschema:"Search text; word prefixes match repository names"`
	Kind  string `json:"kind,omitempty" jsonschema:"Fields to search: name, techstack or any (default)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results"`
}

// repositorySummary is the compact listing row.
type repositorySummary struct {
	Name       string          `json:"name"`
	Path       string          `json:"path"`
	Language   string          `json:"language"`
	Branch     string          `json:"branch"`
	State      domain.GitState `json:"state"`
	Owner      string          `json:"owner"`
	Favorite   bool            `json:"favorite,omitempty"`
	Archived   bool            `json:"archived,omitempty"`
	LastCommit *time.Time      `json:"lastCommit,omitempty"`
	Score      float64         `json:"score,omitempty"`
}

func summarize(r domain.Repository) repositorySummary {
	s := repositorySummary{
		Name:     r.DisplayNameOrName(),
		Path:     r.Path,
		Language: r.Metadata.Language,
		Branch:   r.GitInfo.CurrentBranch,
		State:    filter.Classify(r.GitInfo),
		Owner:    r.GitInfo.Owner.Label(),
		Favorite: r.IsFavorite,
		Archived: r.IsArchived,
	}
	if at := filter.ActivityDate(r); !at.IsZero() {
		s.LastCommit = &at
	}
	return s
}

// QueryHandler serves the read-only catalog tools.
type QueryHandler struct {
	catalog *Catalog
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(c *Catalog) *QueryHandler {
	return &QueryHandler{catalog: c}
}

// List handles list_repositories.
func (h *QueryHandler) List(ctx context.Context, req *mcp.CallToolRequest, args ListArgument) (*mcp.CallToolResult, any, error) {
	criteria, err := args.Criteria.toCriteria()
	if err != nil {
		return errorResult("Invalid criteria: %s", err), nil, nil
	}
	commits, err := parseDateRange(args.CommitAfter, args.CommitBefore)
	if err != nil {
		return errorResult("Invalid commit range: %s", err), nil, nil
	}

	lf := &domain.ListFilter{
		Criteria:       criteria,
		SearchTerm:     args.SearchTerm,
		Language:       args.Language,
		Tags:           args.Tags,
		IsFavorite:     args.IsFavorite,
		IsArchived:     args.IsArchived,
		HasUncommitted: args.HasUncommitted,
		CommitRange:    commits,
	}

	var sort *domain.SortOption
	if args.SortBy != "" {
		order := domain.SortAsc
		if strings.EqualFold(args.SortOrder, string(domain.SortDesc)) {
			order = domain.SortDesc
		}
		sort = &domain.SortOption{Field: domain.SortField(args.SortBy), Order: order}
	}

	repos := h.catalog.List(lf, sort)
	total := len(repos)
	if args.Limit > 0 && len(repos) > args.Limit {
		repos = repos[:args.Limit]
	}

	rows := make([]repositorySummary, 0, len(repos))
	for _, r := range repos {
		rows = append(rows, summarize(r))
	}

	return jsonResult(struct {
		Total        int                 `json:"total"`
		Repositories []repositorySummary `json:"repositories"`
	}{total, rows}), nil, nil
}

// Get handles get_repository. The stored record is returned with live status and recent commits.
func (h *QueryHandler) Get(ctx context.Context, req *mcp.CallToolRequest, args GetArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Path) == "" {
		return errorResult("Path cannot be empty"), nil, nil
	}

	r, err := h.catalog.Get(args.Path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errorResult("Repository not found: %s", args.Path), nil, nil
		}
		return errorResult("Failed to get repository: %s", err), nil, nil
	}

	details, err := h.catalog.Details(ctx, r.Path, args.Commits)
	if err != nil {
		return errorResult("Failed to get repository: %s", err), nil, nil
	}
	return jsonResult(struct {
		domain.Repository
		Details
	}{r, details}), nil, nil
}

// Stats handles repository_stats.
func (h *QueryHandler) Stats(ctx context.Context, req *mcp.CallToolRequest, _ NoArgument) (*mcp.CallToolResult, any, error) {
	out := struct {
		Stats
		Scanning bool `json:"scanning"`
		Cache    any  `json:"cache,omitempty"`
	}{Stats: h.catalog.Stats(), Scanning: h.catalog.IsScanning()}

	if cs, ok := h.catalog.CacheStats(); ok {
		out.Cache = cs
	}
	return jsonResult(out), nil, nil
}

// Search handles search_repositories.
func (h *QueryHandler) Search(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Query) == "" {
		return errorResult("Query cannot be empty"), nil, nil
	}

	kind := SearchKind(strings.ToLower(args.Kind))
	switch kind {
	case "":
		kind = SearchAny
	case SearchByName, SearchByTechStack, SearchAny:
	default:
		return errorResult("Unknown search kind %q: expected name, techstack or any", args.Kind), nil, nil
	}

	results, err := h.catalog.Search(args.Query, kind, args.Limit)
	if err != nil {
		return errorResult("Search failed: %s", err), nil, nil
	}
	if len(results) == 0 {
		return textResult(fmt.Sprintf("No repositories found for query: %s", args.Query)), nil, nil
	}

	rows := make([]repositorySummary, 0, len(results))
	for _, res := range results {
		row := summarize(res.Repository)
		row.Score = res.Score
		rows = append(rows, row)
	}
	return jsonResult(rows), nil, nil
}
