package app

import "github.com/spf13/pflag"

// RegisterFlags registers the MCP server flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")
}

// RegisterCatalogFlags registers the discovery, cache, store and logging flags
// shared by the server and every subcommand
func RegisterCatalogFlags(flags *pflag.FlagSet) {
	flags.StringSliceP("root-paths", "r", nil, "Directories to scan for repositories (comma-separated)")
	flags.StringSlice("exclude-paths", nil, "Directory names or path prefixes to skip (comma-separated)")
	flags.IntP("scan-depth", "d", 0, "Maximum directory depth below each root")
	flags.Bool("include-hidden", false, "Descend into hidden directories")
	flags.Int("max-concurrent-scans", 0, "Maximum repositories analyzed in parallel")
	flags.Duration("git-timeout", 0, "Timeout for each git command, and for go-git status and ahead/behind walks")
	flags.String("vcs-backend", "", "VCS backend: git or go-git (go-git ahead/behind counts are approximate across merges)")
	flags.Bool("cache-enabled", true, "Persist the catalog between runs")
	flags.String("cache-path", "", "Catalog cache file")
	flags.Duration("cache-max-age", 0, "Maximum age of a usable cache snapshot")
	flags.String("store-path", "", "Favorites and filter profile database")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
}
