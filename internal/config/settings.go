package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/sha1n/mcp-repo-catalog/internal/cache"
	"github.com/sha1n/mcp-repo-catalog/internal/store"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by LoadSettings.
const EnvPrefix = "REPOCAT"

// AppDirName is the directory created under the XDG cache and data homes.
const AppDirName = "repocat"

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// VCS backend constants
const (
	VCSBackendGit   = "git"
	VCSBackendGoGit = "go-git"
)

// Log format constants
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CatalogSettings configures repository discovery
type CatalogSettings struct {
	RootPaths          []string      `mapstructure:"root_paths"`
	ExcludePaths       []string      `mapstructure:"exclude_paths"`
	ScanDepth          int           `mapstructure:"scan_depth"`
	IncludeHidden      bool          `mapstructure:"include_hidden"`
	MaxConcurrentScans int           `mapstructure:"max_concurrent_scans"`
	GitTimeout         time.Duration `mapstructure:"git_timeout"`
	VCSBackend         string        `mapstructure:"vcs_backend"` // VCSBackendGit or VCSBackendGoGit
}

// CacheSettings configures the catalog snapshot file
type CacheSettings struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`
	MaxAge  time.Duration `mapstructure:"max_age"`
}

// StoreSettings configures the favorites and filter profile database
type StoreSettings struct {
	Path string `mapstructure:"path"`
}

// Settings application settings
type Settings struct {
	Transport string          `mapstructure:"transport"`
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	Auth      AuthSettings    `mapstructure:"auth"`
	Catalog   CatalogSettings `mapstructure:"catalog"`
	Cache     CacheSettings   `mapstructure:"cache"`
	Store     StoreSettings   `mapstructure:"store"`
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format"`
}

// DefaultExcludePaths are skipped during discovery unless overridden
var DefaultExcludePaths = []string{"node_modules", ".git", ".vscode"}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", "stdio")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("auth.type", AuthTypeNone)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", LogFormatText)

	// Catalog defaults
	v.SetDefault("catalog.root_paths", []string{})
	v.SetDefault("catalog.exclude_paths", DefaultExcludePaths)
	v.SetDefault("catalog.scan_depth", 3)
	v.SetDefault("catalog.include_hidden", false)
	v.SetDefault("catalog.max_concurrent_scans", 5)
	v.SetDefault("catalog.git_timeout", 10*time.Second)
	v.SetDefault("catalog.vcs_backend", VCSBackendGit)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", defaultCachePath())
	v.SetDefault("cache.max_age", cache.DefaultMaxAge)
	v.SetDefault("store.path", defaultStorePath())

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	for _, key := range []string{
		"auth.type",
		"auth.basic.username",
		"auth.basic.password",
		"auth.api_keys",
		"catalog.root_paths",
		"catalog.exclude_paths",
		"catalog.scan_depth",
		"catalog.include_hidden",
		"catalog.max_concurrent_scans",
		"catalog.git_timeout",
		"catalog.vcs_backend",
		"cache.enabled",
		"cache.path",
		"cache.max_age",
		"store.path",
	} {
		_ = v.BindEnv(key, envName(key))
	}

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		for key, flag := range flagKeys {
			if f := flags.Lookup(flag); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	settings.Auth.APIKeys = splitList(settings.Auth.APIKeys, os.Getenv(envName("auth.api_keys")))
	settings.Catalog.RootPaths = splitList(settings.Catalog.RootPaths, os.Getenv(envName("catalog.root_paths")))
	settings.Catalog.ExcludePaths = splitList(settings.Catalog.ExcludePaths, os.Getenv(envName("catalog.exclude_paths")))

	for i, p := range settings.Catalog.RootPaths {
		settings.Catalog.RootPaths[i] = expandHomeDir(p)
	}
	settings.Cache.Path = expandHomeDir(settings.Cache.Path)
	settings.Store.Path = expandHomeDir(settings.Store.Path)
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))
	settings.LogFormat = strings.ToLower(strings.TrimSpace(settings.LogFormat))

	return &settings, nil
}

// flagKeys maps setting keys to the CLI flags that override them
var flagKeys = map[string]string{
	"transport":                    "transport",
	"host":                         "host",
	"port":                         "port",
	"auth.type":                    "auth-type",
	"auth.basic.username":          "auth-basic-username",
	"auth.basic.password":          "auth-basic-password",
	"auth.api_keys":                "auth-api-keys",
	"catalog.root_paths":           "root-paths",
	"catalog.exclude_paths":        "exclude-paths",
	"catalog.scan_depth":           "scan-depth",
	"catalog.include_hidden":       "include-hidden",
	"catalog.max_concurrent_scans": "max-concurrent-scans",
	"catalog.git_timeout":          "git-timeout",
	"catalog.vcs_backend":          "vcs-backend",
	"cache.enabled":                "cache-enabled",
	"cache.path":                   "cache-path",
	"cache.max_age":                "cache-max-age",
	"store.path":                   "store-path",
	"log_level":                    "log-level",
	"log_format":                   "log-format",
}

// envName returns the environment variable bound to a setting key
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// splitList handles lists given as one comma-separated env value, then trims
// and drops empty items
func splitList(values []string, env string) []string {
	if env != "" {
		if len(values) == 0 || (len(values) == 1 && strings.Contains(values[0], ",")) {
			values = strings.Split(env, ",")
		}
	}
	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}
	return filterEmptyStrings(values)
}

func defaultCachePath() string {
	return filepath.Join(xdg.CacheHome, AppDirName, cache.DefaultFilename)
}

func defaultStorePath() string {
	return filepath.Join(xdg.DataHome, AppDirName, store.DefaultFilename)
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting configurations.
// Returns an error if the settings contain mutually exclusive or incomplete auth config.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case "stdio", "sse":
		// valid
	default:
		return errors.New("transport must be 'stdio' or 'sse', got: " + s.Transport)
	}

	hasBasicCreds := s.Auth.Basic.Username != "" || s.Auth.Basic.Password != ""
	hasAPIKeys := len(s.Auth.APIKeys) > 0

	switch s.Auth.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if s.Auth.Basic.Username == "" || s.Auth.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + s.Auth.Type)
	}

	if err := validateCatalogSettings(&s.Catalog); err != nil {
		return err
	}
	if err := validateCacheSettings(&s.Cache); err != nil {
		return err
	}
	if s.Store.Path == "" {
		return errors.New("store-path cannot be empty")
	}

	switch s.LogFormat {
	case LogFormatText, LogFormatJSON, "":
	default:
		return fmt.Errorf("log-format must be '%s' or '%s', got: %s", LogFormatText, LogFormatJSON, s.LogFormat)
	}
	if _, err := ParseLogLevel(s.LogLevel); err != nil {
		return err
	}

	return nil
}

// validateCatalogSettings validates the discovery configuration.
// An empty root path list is valid; scans then have nothing to do.
func validateCatalogSettings(c *CatalogSettings) error {
	if c.ScanDepth < 1 {
		return errors.New("scan-depth must be at least 1")
	}

	if c.MaxConcurrentScans < 1 {
		return errors.New("max-concurrent-scans must be at least 1")
	}

	if c.GitTimeout <= 0 {
		return errors.New("git-timeout must be positive")
	}

	switch c.VCSBackend {
	case VCSBackendGit, VCSBackendGoGit:
	default:
		return fmt.Errorf("vcs-backend must be '%s' or '%s', got: %s", VCSBackendGit, VCSBackendGoGit, c.VCSBackend)
	}

	return nil
}

// validateCacheSettings validates the cache configuration
func validateCacheSettings(c *CacheSettings) error {
	if !c.Enabled {
		return nil // No validation needed when disabled
	}

	if c.Path == "" {
		return errors.New("cache-path cannot be empty")
	}

	if c.MaxAge <= 0 {
		return errors.New("cache-max-age must be positive")
	}

	return nil
}
