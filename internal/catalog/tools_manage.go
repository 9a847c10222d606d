package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FavoriteArgument defines set_favorite parameters.
type FavoriteArgument struct {
	Path     string `json:"path" jsonschema:"Absolute path of the repository"`
	Favorite bool   `json:"favorite" jsonschema:"true to mark as favorite, false to unmark"`
}

// ManageHandler serves the tools that change the catalog.
type ManageHandler struct {
	catalog  *Catalog
	scanOpts Options
}

// NewManageHandler creates a new handler; scanOpts configures scan_repositories.
func NewManageHandler(c *Catalog, scanOpts Options) *ManageHandler {
	return &ManageHandler{catalog: c, scanOpts: scanOpts}
}

// Scan handles scan_repositories.
func (h *ManageHandler) Scan(ctx context.Context, req *mcp.CallToolRequest, _ NoArgument) (*mcp.CallToolResult, any, error) {
	res, err := h.catalog.Scan(ctx, h.scanOpts, func(msg string, percent *int) {
		if percent != nil {
			slog.Debug("Scan progress", "message", msg, "percent", *percent)
		} else {
			slog.Debug("Scan progress", "message", msg)
		}
	})
	if err != nil {
		return errorResult("Scan failed: %s", err), nil, nil
	}

	switch res.Status {
	case StatusAlreadyRunning:
		return textResult("A scan is already in progress. Try again when it completes."), nil, nil
	case StatusNothingToDo:
		return textResult("No root paths are configured; nothing to scan."), nil, nil
	case StatusCancelled:
		return errorResult("Scan was cancelled; the catalog is unchanged."), nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Scan completed in %s. Found %d repositories.", res.Duration.Round(time.Millisecond), res.Repositories)
	if len(res.InvalidRoots) > 0 {
		fmt.Fprintf(&sb, "\nSkipped invalid roots: %s", strings.Join(res.InvalidRoots, ", "))
	}
	return textResult(sb.String()), nil, nil
}

// SetFavorite handles set_favorite.
func (h *ManageHandler) SetFavorite(ctx context.Context, req *mcp.CallToolRequest, args FavoriteArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Path) == "" {
		return errorResult("Path cannot be empty"), nil, nil
	}

	if err := h.catalog.SetFavorite(args.Path, args.Favorite); err != nil {
		if errors.Is(err, ErrNotFound) {
			return errorResult("Repository not found: %s", args.Path), nil, nil
		}
		return errorResult("Failed to update favorite: %s", err), nil, nil
	}

	if args.Favorite {
		return textResult(fmt.Sprintf("Marked %s as favorite", args.Path)), nil, nil
	}
	return textResult(fmt.Sprintf("Removed %s from favorites", args.Path)), nil, nil
}

// Refresh handles refresh_repository.
func (h *ManageHandler) Refresh(ctx context.Context, req *mcp.CallToolRequest, args PathArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Path) == "" {
		return errorResult("Path cannot be empty"), nil, nil
	}

	r, err := h.catalog.Refresh(ctx, args.Path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errorResult("Repository not found: %s", args.Path), nil, nil
		}
		return errorResult("Refresh failed: %s", err), nil, nil
	}
	return jsonResult(r), nil, nil
}
