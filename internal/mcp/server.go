package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sha1n/mcp-repo-catalog/internal/catalog"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string
	// Catalog is optional; without it the server exposes no tools.
	Catalog *catalog.Catalog
	// ScanOptions configures the scan_repositories tool.
	ScanOptions catalog.Options
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	if cfg.Catalog != nil {
		catalog.RegisterTools(s, cfg.Catalog, cfg.ScanOptions)
	}

	return s
}
