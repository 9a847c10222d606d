package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/sha1n/mcp-repo-catalog/internal/catalog"
	"github.com/sha1n/mcp-repo-catalog/internal/config"
	"github.com/sha1n/mcp-repo-catalog/internal/domain"
	"github.com/sha1n/mcp-repo-catalog/internal/filter"
	"github.com/sha1n/mcp-repo-catalog/internal/scanner"
	"github.com/spf13/cobra"
)

// NewCommands returns the catalog subcommands. They read the flags registered
// by RegisterCatalogFlags on the root command.
func NewCommands() []*cobra.Command {
	return []*cobra.Command{
		newScanCommand(),
		newListCommand(),
		newStatsCommand(),
		newDetectCommand(),
	}
}

// withCatalog loads settings from the command flags, opens the catalog and runs fn
func withCatalog(cmd *cobra.Command, fn func(*catalog.Catalog, *config.Settings) error) error {
	settings, err := config.LoadSettingsWithFlags(cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := config.ValidateSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	slog.SetDefault(config.NewLogger(settings, cmd.ErrOrStderr()))

	cat, cleanup, err := OpenCatalog(settings)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(cat, settings)
}

// ensureLoaded fills the catalog from the cache, scanning when there is no usable snapshot
func ensureLoaded(ctx context.Context, cat *catalog.Catalog, opts catalog.Options) error {
	if _, ok := cat.Load(ctx, opts); ok {
		return nil
	}
	res, err := cat.Scan(ctx, opts, nil)
	if err != nil {
		return err
	}
	if res.Status == catalog.StatusCancelled {
		return context.Canceled
	}
	return nil
}

func newScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the configured roots and refresh the catalog cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(cat *catalog.Catalog, settings *config.Settings) error {
				progress := cmd.ErrOrStderr()
				res, err := cat.Scan(cmd.Context(), ScanOptions(&settings.Catalog), func(msg string, percent *int) {
					if percent != nil {
						_, _ = fmt.Fprintf(progress, "[%3d%%] %s\n", *percent, msg)
					} else {
						_, _ = fmt.Fprintf(progress, "       %s\n", msg)
					}
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				switch res.Status {
				case catalog.StatusNothingToDo:
					_, _ = fmt.Fprintln(out, "No root paths configured. Use --root-paths or REPOCAT_CATALOG_ROOT_PATHS.")
				case catalog.StatusCancelled:
					return context.Canceled
				default:
					_, _ = fmt.Fprintf(out, "Found %d repositories\n", res.Repositories)
					for _, root := range res.InvalidRoots {
						_, _ = fmt.Fprintf(out, "Skipped invalid root: %s\n", root)
					}
				}
				return nil
			})
		},
	}
}

func newListCommand() *cobra.Command {
	var (
		language  string
		search    string
		tags      []string
		favorites bool
		sortBy    string
		order     string
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogued repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(cat *catalog.Catalog, settings *config.Settings) error {
				if err := ensureLoaded(cmd.Context(), cat, ScanOptions(&settings.Catalog)); err != nil {
					return err
				}

				lf := &domain.ListFilter{
					Language:   language,
					SearchTerm: search,
					Tags:       tags,
				}
				lf.Criteria.FavoritesOnly = favorites

				var sort *domain.SortOption
				if sortBy != "" {
					sort = &domain.SortOption{Field: domain.SortField(sortBy), Order: domain.SortOrder(strings.ToLower(order))}
				}

				repos := cat.List(lf, sort)
				if limit > 0 && len(repos) > limit {
					repos = repos[:limit]
				}

				if asJSON {
					return writeJSON(cmd.OutOrStdout(), repos)
				}
				return writeRepositoryTable(cmd.OutOrStdout(), repos)
			})
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Only repositories with this primary language")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Case-insensitive substring of the repository name")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Only repositories carrying any of these tags")
	cmd.Flags().BoolVarP(&favorites, "favorites", "f", false, "Only favorite repositories")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort field: name, language, lastCommit, lastAccessed, accessCount, createdAt, updatedAt, size or favorite")
	cmd.Flags().StringVar(&order, "order", string(domain.SortAsc), "Sort order: asc or desc")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of repositories to print")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print full records as JSON")
	return cmd
}

func newStatsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(cat *catalog.Catalog, settings *config.Settings) error {
				if err := ensureLoaded(cmd.Context(), cat, ScanOptions(&settings.Catalog)); err != nil {
					return err
				}

				stats := cat.Stats()
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				return writeStats(cmd.OutOrStdout(), stats)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newDetectCommand() *cobra.Command {
	var home string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Suggest common project folders to use as scan roots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("failed to resolve home directory: %w", err)
				}
				home = dir
			}

			candidates := scanner.DetectCommonRoots(home)
			out := cmd.OutOrStdout()
			if len(candidates) == 0 {
				_, _ = fmt.Fprintf(out, "No common project folders found under %s\n", home)
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "PATH\tREPOSITORIES\tFOLDERS")
			for _, c := range candidates {
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\n", c.Path, c.RepositoryCount, c.FolderCount)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&home, "home", "", "Directory to probe instead of the user's home")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRepositoryTable(w io.Writer, repos []domain.Repository) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tLANGUAGE\tBRANCH\tSTATE\tFAV\tPATH")
	for _, r := range repos {
		fav := ""
		if r.IsFavorite {
			fav = "*"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.DisplayNameOrName(), r.Metadata.Language, r.GitInfo.CurrentBranch, filter.Classify(r.GitInfo), fav, r.Path)
	}
	return tw.Flush()
}

func writeStats(w io.Writer, stats catalog.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Repositories:\t%d\n", stats.Total)
	_, _ = fmt.Fprintf(tw, "Favorites:\t%d\n", stats.Favorites)
	_, _ = fmt.Fprintf(tw, "Archived:\t%d\n", stats.Archived)
	if stats.LastScanTime != nil {
		_, _ = fmt.Fprintf(tw, "Last scan:\t%s\n", stats.LastScanTime.Format("2006-01-02 15:04:05"))
	}

	if len(stats.ByLanguage) > 0 {
		_, _ = fmt.Fprintln(tw, "Languages:")
		langs := slices.Sorted(maps.Keys(stats.ByLanguage))
		slices.SortStableFunc(langs, func(a, b string) int {
			return stats.ByLanguage[b] - stats.ByLanguage[a]
		})
		for _, lang := range langs {
			_, _ = fmt.Fprintf(tw, "  %s\t%d\n", lang, stats.ByLanguage[lang])
		}
	}
	return tw.Flush()
}
