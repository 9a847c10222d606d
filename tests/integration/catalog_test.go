package integration

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sha1n/mcp-repo-catalog/internal/app"
	"github.com/sha1n/mcp-repo-catalog/internal/catalog"
	"github.com/sha1n/mcp-repo-catalog/internal/config"
	"github.com/sha1n/mcp-repo-catalog/internal/domain"
	"github.com/sha1n/mcp-repo-catalog/tests/integration/testkit"
)

var _ = Describe("Repository catalog", func() {
	var (
		fixture  *testkit.RepoFixture
		env      testkit.TestEnv
		root     string
		settings *config.Settings
		cat      *catalog.Catalog
		cleanup  func()
		ctx      context.Context
	)

	open := func() {
		var err error
		cat, cleanup, err = app.OpenCatalog(settings)
		Expect(err).NotTo(HaveOccurred())
	}

	scan := func() catalog.ScanResult {
		res, err := cat.Scan(ctx, app.ScanOptions(&settings.Catalog), nil)
		Expect(err).NotTo(HaveOccurred())
		return res
	}

	BeforeEach(func() {
		ctx = context.Background()
		fixture = testkit.NewRepoFixture(
			testkit.FixtureRepo{
				Path:      "work/payments-api",
				Files:     map[string]string{"go.mod": "module example.com/payments\n", "main.go": "package main\n", "main_test.go": "package main\n"},
				Dirty:     map[string]string{"notes.txt": "wip\n"},
				RemoteURL: "git@github.com:acme/payments-api.git",
				Branch:    "feature/refunds",
			},
			testkit.FixtureRepo{
				Path: "work/storefront",
				Files: map[string]string{
					"package.json": `{"name":"storefront","dependencies":{"express":"^4.18.0"}}`,
					"index.js":     "module.exports = {}\n",
					"README.md":    "# Storefront\n\n## Install\n\nnpm install\n",
				},
				RemoteURL: "https://gitlab.com/shop/storefront.git",
				When:      time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC),
			},
			testkit.FixtureRepo{
				Path:  "personal/notes",
				Files: map[string]string{"todo.md": "- nothing\n"},
			},
			testkit.FixtureRepo{
				Path:  ".hidden/secret",
				Files: map[string]string{"x.go": "package x\n"},
			},
		)
		env = testkit.NewTestEnv(fixture)
		props, err := env.Start()
		Expect(err).NotTo(HaveOccurred())
		root = props["root"].(string)

		state := GinkgoT().TempDir()
		settings = &config.Settings{
			Catalog: config.CatalogSettings{
				RootPaths:          []string{root},
				ExcludePaths:       config.DefaultExcludePaths,
				ScanDepth:          3,
				MaxConcurrentScans: 2,
				GitTimeout:         10 * time.Second,
				VCSBackend:         config.VCSBackendGoGit,
			},
			Cache: config.CacheSettings{Enabled: true, Path: filepath.Join(state, "repository-cache.json"), MaxAge: time.Hour},
			Store: config.StoreSettings{Path: filepath.Join(state, "state.db")},
		}
		open()
	})

	AfterEach(func() {
		if cleanup != nil {
			cleanup()
		}
		Expect(env.Stop()).To(Succeed())
	})

	Describe("scanning", func() {
		It("discovers visible repositories with their git metadata", func() {
			res := scan()
			Expect(res.Status).To(Equal(catalog.StatusCompleted))
			Expect(res.Repositories).To(Equal(3))

			repo, err := cat.Get(filepath.Join(root, "work/payments-api"))
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.Name).To(Equal("payments-api"))
			Expect(repo.GitInfo.CurrentBranch).To(Equal("feature/refunds"))
			Expect(repo.GitInfo.HasUncommitted).To(BeTrue())
			Expect(repo.GitInfo.Owner.Label()).To(Equal("acme"))
			Expect(repo.Metadata.Language).To(Equal("Go"))
			Expect(repo.Metadata.HasTests).To(BeTrue())
		})

		It("skips hidden directories", func() {
			scan()
			_, err := cat.Get(filepath.Join(root, ".hidden/secret"))
			Expect(err).To(MatchError(catalog.ErrNotFound))
		})
	})

	Describe("filtering", func() {
		BeforeEach(func() {
			scan()
		})

		It("filters by git state", func() {
			repos := cat.List(&domain.ListFilter{Criteria: domain.FilterCriteria{
				GitStates: []domain.GitState{domain.GitStateModified},
			}}, nil)
			Expect(names(repos)).To(ConsistOf("payments-api"))
		})

		It("filters by owner", func() {
			repos := cat.List(&domain.ListFilter{Criteria: domain.FilterCriteria{Owners: []string{"shop"}}}, nil)
			Expect(names(repos)).To(ConsistOf("storefront"))
		})

		It("filters by a custom condition", func() {
			repos := cat.List(&domain.ListFilter{Criteria: domain.FilterCriteria{
				CustomConditions: []domain.CustomCondition{{Field: "name", Operator: domain.OpStartsWith, Value: "PAY", CaseSensitive: boolPtr(false)}},
			}}, nil)
			Expect(names(repos)).To(ConsistOf("payments-api"))
		})

		It("sorts by name descending", func() {
			repos := cat.List(nil, &domain.SortOption{Field: domain.SortByName, Order: domain.SortDesc})
			Expect(names(repos)).To(Equal([]string{"storefront", "payments-api", "notes"}))
		})
	})

	Describe("search", func() {
		It("finds repositories by tech stack and readme", func() {
			scan()

			hits, err := cat.Search("express", catalog.SearchByTechStack, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).NotTo(BeEmpty())
			Expect(hits[0].Repository.Name).To(Equal("storefront"))

			hits, err = cat.Search("payments", catalog.SearchByName, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(1))
		})
	})

	Describe("persistence", func() {
		It("restores the catalog and favorites after a restart", func() {
			scan()
			path := filepath.Join(root, "personal/notes")
			Expect(cat.SetFavorite(path, true)).To(Succeed())

			cleanup()
			cleanup = nil
			open()

			count, ok := cat.Load(ctx, app.ScanOptions(&settings.Catalog))
			Expect(ok).To(BeTrue())
			Expect(count).To(Equal(3))

			repo, err := cat.Get(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.IsFavorite).To(BeTrue())
		})

		It("ignores the snapshot when the roots change", func() {
			scan()

			cleanup()
			cleanup = nil
			settings.Catalog.RootPaths = []string{filepath.Join(root, "work")}
			open()

			_, ok := cat.Load(ctx, app.ScanOptions(&settings.Catalog))
			Expect(ok).To(BeFalse())
		})
	})

	Describe("MCP tools", func() {
		It("lists repositories as JSON", func() {
			scan()

			h := catalog.NewQueryHandler(cat)
			res, _, err := h.List(ctx, nil, catalog.ListArgument{Language: "Go"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())

			var out struct {
				Total        int               `json:"total"`
				Repositories []json.RawMessage `json:"repositories"`
			}
			Expect(json.Unmarshal([]byte(text(res)), &out)).To(Succeed())
			Expect(out.Total).To(Equal(1))
		})

		It("includes live work tree status and recent commits in the repository record", func() {
			scan()

			h := catalog.NewQueryHandler(cat)
			res, _, err := h.Get(ctx, nil, catalog.GetArgument{Path: filepath.Join(root, "work/payments-api")})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())

			var out struct {
				Name   string `json:"name"`
				Status struct {
					Untracked int `json:"untracked"`
				} `json:"status"`
				RecentCommits []struct {
					Hash string `json:"hash"`
				} `json:"recentCommits"`
			}
			Expect(json.Unmarshal([]byte(text(res)), &out)).To(Succeed())
			Expect(out.Name).To(Equal("payments-api"))
			Expect(out.Status.Untracked).To(Equal(1))
			Expect(out.RecentCommits).To(HaveLen(1))
			Expect(out.RecentCommits[0].Hash).To(HaveLen(40))
		})

		It("reports unknown repositories as tool errors", func() {
			scan()

			h := catalog.NewQueryHandler(cat)
			res, _, err := h.Get(ctx, nil, catalog.GetArgument{Path: filepath.Join(root, "missing")})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(text(res)).To(ContainSubstring("Repository not found"))
		})
	})
})

func names(repos []domain.Repository) []string {
	out := make([]string, 0, len(repos))
	for _, r := range repos {
		out = append(out, r.Name)
	}
	return out
}

func text(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

func boolPtr(b bool) *bool {
	return &b
}
