package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ProgramLevel is the level of the process-wide logger. It can be changed at runtime.
var ProgramLevel = new(slog.LevelVar)

// ParseLogLevel maps a level name to a slog.Level. An empty name is info.
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log-level: %s", name)
	}
}

// NewLogger builds a logger writing to w in the configured format at ProgramLevel.
func NewLogger(s *Settings, w io.Writer) *slog.Logger {
	level, err := ParseLogLevel(s.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	ProgramLevel.Set(level)

	opts := &slog.HandlerOptions{Level: ProgramLevel}
	if s.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == "sse" {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
	}

	logger.InfoContext(ctx, "Config: auth.type", "value", s.Auth.Type)
	switch s.Auth.Type {
	case AuthTypeBasic:
		logger.InfoContext(ctx, "Config: auth.basic.username", "value", s.Auth.Basic.Username)
		logger.InfoContext(ctx, "Config: auth.basic.password", "value", "****")
	case AuthTypeAPIKey:
		logger.InfoContext(ctx, "Config: auth.api_keys", "count", len(s.Auth.APIKeys))
	}

	logger.InfoContext(ctx, "Config: catalog.root_paths", "value", s.Catalog.RootPaths)
	logger.InfoContext(ctx, "Config: catalog.exclude_paths", "value", s.Catalog.ExcludePaths)
	logger.InfoContext(ctx, "Config: catalog.scan_depth", "value", s.Catalog.ScanDepth)
	logger.InfoContext(ctx, "Config: catalog.include_hidden", "value", s.Catalog.IncludeHidden)
	logger.InfoContext(ctx, "Config: catalog.max_concurrent_scans", "value", s.Catalog.MaxConcurrentScans)
	logger.InfoContext(ctx, "Config: catalog.git_timeout", "value", s.Catalog.GitTimeout)
	logger.InfoContext(ctx, "Config: catalog.vcs_backend", "value", s.Catalog.VCSBackend)

	logger.InfoContext(ctx, "Config: cache.enabled", "value", s.Cache.Enabled)
	if s.Cache.Enabled {
		logger.InfoContext(ctx, "Config: cache.path", "value", s.Cache.Path)
		logger.InfoContext(ctx, "Config: cache.max_age", "value", s.Cache.MaxAge)
	}
	logger.InfoContext(ctx, "Config: store.path", "value", s.Store.Path)
}

// AuthSettingsLogValue returns a slog.Value for AuthSettings with masked data
func AuthSettingsLogValue(s AuthSettings) slog.Value {
	keys := make([]string, len(s.APIKeys))
	for i := range s.APIKeys {
		keys[i] = "****"
	}
	return slog.GroupValue(
		slog.String("type", s.Type),
		slog.Any("basic", BasicAuthSettingsLogValue(s.Basic)),
		slog.Any("api_keys", keys),
	)
}

// BasicAuthSettingsLogValue returns a slog.Value for BasicAuthSettings with masked data
func BasicAuthSettingsLogValue(s BasicAuthSettings) slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("password", "****"),
	)
}

// CatalogSettingsLogValue returns a slog.Value for CatalogSettings
func CatalogSettingsLogValue(s CatalogSettings) slog.Value {
	return slog.GroupValue(
		slog.Any("root_paths", s.RootPaths),
		slog.Int("scan_depth", s.ScanDepth),
		slog.Int("max_concurrent_scans", s.MaxConcurrentScans),
		slog.String("vcs_backend", s.VCSBackend),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.Any("auth", AuthSettingsLogValue(s.Auth)),
		slog.Any("catalog", CatalogSettingsLogValue(s.Catalog)),
	)
}
