package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

// NoArgument is the argument type of tools that take no input.
type NoArgument struct{}

// CriteriaArgument is the wire form of domain.FilterCriteria. Dates are strings
// so that clients can send plain YYYY-MM-DD values.
type CriteriaArgument struct {
	Languages       []string            `json:"languages,omitempty" jsonschema:"Primary languages to include, e.g. Go or TypeScript"`
	Owners          []string            `json:"owners,omitempty" jsonschema:"Owner names to include; use self for repositories without a remote"`
	GitStates       []string            `json:"gitStates,omitempty" jsonschema:"Working tree states to include: clean, modified, ahead or behind"`
	ActiveAfter     string              `json:"activeAfter,omitempty" jsonschema:"Only repositories last accessed on or after this date (YYYY-MM-DD or RFC 3339)"`
	ActiveBefore    string              `json:"activeBefore,omitempty" jsonschema:"Only repositories last accessed on or before this date (YYYY-MM-DD or RFC 3339); a plain date includes the whole day"`
	MinFiles        int                 `json:"minFiles,omitempty" jsonschema:"Minimum number of files"`
	MaxFiles        int                 `json:"maxFiles,omitempty" jsonschema:"Maximum number of files; 0 means no limit"`
	MinLines        *int                `json:"minLines,omitempty" jsonschema:"Minimum number of code lines"`
	MaxLines        *int                `json:"maxLines,omitempty" jsonschema:"Maximum number of code lines"`
	Tags            []string            `json:"tags,omitempty" jsonschema:"Repositories carrying any of these tags"`
	FavoritesOnly   bool                `json:"favoritesOnly,omitempty" jsonschema:"Only favorite repositories"`
	ExcludeArchived bool                `json:"excludeArchived,omitempty" jsonschema:"Leave out archived repositories"`
	HasTests        *bool               `json:"hasTests,omitempty" jsonschema:"Require (true) or exclude (false) repositories with tests"`
	HasCICD         *bool               `json:"hasCicd,omitempty" jsonschema:"Require (true) or exclude (false) repositories with CI/CD configuration"`
	Conditions      []ConditionArgument `json:"conditions,omitempty" jsonschema:"Custom field conditions, all of which must hold"`
}

// ConditionArgument is the wire form of domain.CustomCondition.
type ConditionArgument struct {
	Field         string `json:"field" jsonschema:"Field name: name, language, accessCount, totalFiles, hasTests or hasCicd"`
	Operator      string `json:"operator" jsonschema:"One of equals, contains, startsWith, endsWith, regex, greaterThan or lessThan"`
	Value         any    `json:"value" jsonschema:"Value to compare against"`
	CaseSensitive *bool  `json:"caseSensitive,omitempty" jsonschema:"Text comparisons are case-sensitive unless this is false"`
}

// toCriteria converts the wire form, rejecting malformed dates.
func (a CriteriaArgument) toCriteria() (domain.FilterCriteria, error) {
	c := domain.FilterCriteria{
		Languages:       a.Languages,
		Owners:          a.Owners,
		Tags:            a.Tags,
		FavoritesOnly:   a.FavoritesOnly,
		ExcludeArchived: a.ExcludeArchived,
		HasTests:        a.HasTests,
		HasCICD:         a.HasCICD,
	}
	for _, s := range a.GitStates {
		c.GitStates = append(c.GitStates, domain.GitState(strings.ToLower(strings.TrimSpace(s))))
	}

	dr, err := parseDateRange(a.ActiveAfter, a.ActiveBefore)
	if err != nil {
		return c, err
	}
	c.DateRange = dr

	if a.MinFiles > 0 || a.MaxFiles > 0 || a.MinLines != nil || a.MaxLines != nil {
		c.SizeRange = &domain.SizeRange{
			MinFiles: a.MinFiles,
			MaxFiles: a.MaxFiles,
			MinLines: a.MinLines,
			MaxLines: a.MaxLines,
		}
	}

	for _, cond := range a.Conditions {
		c.CustomConditions = append(c.CustomConditions, domain.CustomCondition{
			Field:         cond.Field,
			Operator:      domain.ConditionOperator(cond.Operator),
			Value:         cond.Value,
			CaseSensitive: cond.CaseSensitive,
		})
	}
	return c, nil
}

// parseDateRange builds an inclusive range from optional bounds, or nil when both are empty.
// A calendar-date upper bound covers the whole day.
func parseDateRange(after, before string) (*domain.DateRange, error) {
	start, _, err := parseDate(after)
	if err != nil {
		return nil, err
	}
	end, dateOnly, err := parseDate(before)
	if err != nil {
		return nil, err
	}
	if dateOnly {
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if start.IsZero() && end.IsZero() {
		return nil, nil
	}
	return &domain.DateRange{Start: start, End: end}, nil
}

// parseDate accepts an empty string, a calendar date or an RFC 3339 timestamp.
// dateOnly reports whether s was a calendar date.
func parseDate(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
	}
	return t, false, nil
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Failed to encode result: %s", err)
	}
	return textResult(string(data))
}

// RegisterTools registers every catalog tool with an MCP server. scanOpts is
// the configuration used by scan_repositories.
func RegisterTools(server *mcp.Server, c *Catalog, scanOpts Options) {
	q := NewQueryHandler(c)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_repositories",
		Description: "List catalogued repositories, optionally filtered and sorted",
	}, q.List)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_repository",
		Description: "Get the full record of a repository by its path",
	}, q.Get)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "repository_stats",
		Description: "Summarize the catalog: totals, favorites and language distribution",
	}, q.Stats)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_repositories",
		Description: "Full-text search over repository names, tech stacks, owners, tags and README headings",
	}, q.Search)

	m := NewManageHandler(c, scanOpts)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "scan_repositories",
		Description: "Rescan the configured root directories and rebuild the catalog",
	}, m.Scan)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_favorite",
		Description: "Mark or unmark a repository as favorite",
	}, m.SetFavorite)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "refresh_repository",
		Description: "Re-extract git and project metadata for a single repository",
	}, m.Refresh)

	p := NewProfileHandler(c)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_filter_profiles",
		Description: "List saved filter profiles and the active one",
	}, p.List)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_filter_profile",
		Description: "Create a filter profile, or update it when an id is given",
	}, p.Save)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "apply_filter_profile",
		Description: "Activate a filter profile and list the repositories it matches",
	}, p.Apply)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_filter_profile",
		Description: "Deactivate the active filter profile",
	}, p.Clear)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_filter_profile",
		Description: "Delete a filter profile",
	}, p.Delete)
}
