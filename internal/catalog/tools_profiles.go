package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-repo-catalog/internal/filter"
)

// SaveProfileArgument defines save_filter_profile parameters.
type SaveProfileArgument struct {
	ID          string           `json:"id,omitempty" jsonschema:"Profile to update; omit to create a new profile"`
	Name        string           `json:"name" jsonschema:"Profile name"`
	Description string           `json:"description,omitempty" jsonschema:"Free-form description"`
	Tags        []string         `json:"tags,omitempty" jsonschema:"Labels for organizing profiles"`
	Criteria    CriteriaArgument `json:"criteria" jsonschema:"Filter criteria stored in the profile"`
}

// ProfileIDArgument identifies a filter profile.
type ProfileIDArgument struct {
	ID string `json:"id" jsonschema:"Profile ID"`
}

// ProfileHandler serves the filter profile tools.
type ProfileHandler struct {
	catalog *Catalog
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(c *Catalog) *ProfileHandler {
	return &ProfileHandler{catalog: c}
}

// List handles list_filter_profiles.
func (h *ProfileHandler) List(ctx context.Context, req *mcp.CallToolRequest, _ NoArgument) (*mcp.CallToolResult, any, error) {
	out := struct {
		Profiles []filter.Profile `json:"profiles"`
		ActiveID string           `json:"activeProfileId,omitempty"`
	}{Profiles: h.catalog.Profiles().List()}

	if cur, ok := h.catalog.Profiles().Current(); ok {
		out.ActiveID = cur.ID
	}
	return jsonResult(out), nil, nil
}

// Save handles save_filter_profile.
func (h *ProfileHandler) Save(ctx context.Context, req *mcp.CallToolRequest, args SaveProfileArgument) (*mcp.CallToolResult, any, error) {
	criteria, err := args.Criteria.toCriteria()
	if err != nil {
		return errorResult("Invalid criteria: %s", err), nil, nil
	}

	var p filter.Profile
	if args.ID == "" {
		p, err = h.catalog.Profiles().Create(args.Name, criteria, filter.ProfileOptions{
			Description: args.Description,
			Tags:        args.Tags,
		})
	} else {
		u := filter.ProfileUpdate{Filters: &criteria, Tags: args.Tags}
		if strings.TrimSpace(args.Name) != "" {
			u.Name = &args.Name
		}
		if args.Description != "" {
			u.Description = &args.Description
		}
		p, err = h.catalog.Profiles().Update(args.ID, u)
	}
	if err != nil {
		return profileError(err, args.ID), nil, nil
	}
	return jsonResult(p), nil, nil
}

// Apply handles apply_filter_profile.
func (h *ProfileHandler) Apply(ctx context.Context, req *mcp.CallToolRequest, args ProfileIDArgument) (*mcp.CallToolResult, any, error) {
	matched, err := h.catalog.ApplyProfile(args.ID)
	if err != nil {
		return profileError(err, args.ID), nil, nil
	}

	rows := make([]repositorySummary, 0, len(matched))
	for _, r := range matched {
		rows = append(rows, summarize(r))
	}
	return jsonResult(struct {
		Total        int                 `json:"total"`
		Repositories []repositorySummary `json:"repositories"`
	}{len(rows), rows}), nil, nil
}

// Clear handles clear_filter_profile.
func (h *ProfileHandler) Clear(ctx context.Context, req *mcp.CallToolRequest, _ NoArgument) (*mcp.CallToolResult, any, error) {
	if err := h.catalog.Profiles().Clear(); err != nil {
		return errorResult("Failed to clear active profile: %s", err), nil, nil
	}
	return textResult("Active filter profile cleared"), nil, nil
}

// Delete handles delete_filter_profile.
func (h *ProfileHandler) Delete(ctx context.Context, req *mcp.CallToolRequest, args ProfileIDArgument) (*mcp.CallToolResult, any, error) {
	if err := h.catalog.Profiles().Delete(args.ID); err != nil {
		return profileError(err, args.ID), nil, nil
	}
	return textResult(fmt.Sprintf("Deleted filter profile %s", args.ID)), nil, nil
}

func profileError(err error, id string) *mcp.CallToolResult {
	switch {
	case errors.Is(err, filter.ErrProfileNotFound):
		return errorResult("Filter profile not found: %s", id)
	case errors.Is(err, filter.ErrInvalidProfile):
		return errorResult("Invalid filter profile: %s", err)
	default:
		return errorResult("Filter profile operation failed: %s", err)
	}
}
