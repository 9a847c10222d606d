package testkit

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sha1n/mcp-repo-catalog/internal/app"
	"github.com/spf13/pflag"
)

// Service represents a test service that can be started and stopped
type Service interface {
	Start() (map[string]any, error)
	Stop() error
	GetName() string
}

// TestEnvContext provides access to properties collected during environment startup
type TestEnvContext interface {
	GetProperties() map[string]any
	GetProperty(name string) (any, bool)
}

// TestEnv manages the lifecycle of test services
type TestEnv interface {
	Start() (map[string]any, error)
	Stop() error
	GetContext() TestEnvContext
}

type testEnvContextImpl struct {
	properties map[string]any
}

func (c *testEnvContextImpl) GetProperties() map[string]any {
	return c.properties
}

func (c *testEnvContextImpl) GetProperty(name string) (any, bool) {
	val, ok := c.properties[name]
	return val, ok
}

type testEnvImpl struct {
	services []Service
	context  *testEnvContextImpl
}

// NewTestEnv creates a new test environment with the given services
func NewTestEnv(services ...Service) TestEnv {
	return &testEnvImpl{
		services: services,
		context:  &testEnvContextImpl{properties: make(map[string]any)},
	}
}

func (e *testEnvImpl) Start() (map[string]any, error) {
	for _, s := range e.services {
		props, err := s.Start()
		if err != nil {
			return nil, err
		}
		for k, v := range props {
			e.context.properties[k] = v
		}
	}
	return e.context.properties, nil
}

func (e *testEnvImpl) Stop() error {
	var lastErr error
	// Stop in reverse order
	for i := len(e.services) - 1; i >= 0; i-- {
		if err := e.services[i].Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (e *testEnvImpl) GetContext() TestEnvContext {
	return e.context
}

// GetFreePort returns a free port from the kernel
func GetFreePort() (int, error) {
	return getFreePortWithAddr("localhost:0")
}

// MustGetFreePort returns a free port or fails the test
func MustGetFreePort(t testing.TB) int {
	t.Helper()
	port, err := GetFreePort()
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	return port
}

func getFreePortWithAddr(addrStr string) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", addrStr)
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// FlagOptions configures NewTestFlags
type FlagOptions struct {
	Port      int      // Uses free port if 0
	Transport string   // Defaults to "sse"
	AuthType  string   // Defaults to "none"
	Host      string   // Defaults to "localhost"
	RootPaths []string // Scan roots, none by default
	StateDir  string   // Holds the store and cache files. Uses a temp dir if empty
}

// NewTestFlags creates a configured pflag.FlagSet for testing
func NewTestFlags(t testing.TB, opts *FlagOptions) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)
	app.RegisterCatalogFlags(flags)

	port := 0
	transport := "sse"
	authType := "none"
	host := "localhost"
	stateDir := ""
	var roots []string

	if opts != nil {
		if opts.Port != 0 {
			port = opts.Port
		}
		if opts.Transport != "" {
			transport = opts.Transport
		}
		if opts.AuthType != "" {
			authType = opts.AuthType
		}
		if opts.Host != "" {
			host = opts.Host
		}
		stateDir = opts.StateDir
		roots = opts.RootPaths
	}

	if port == 0 {
		port = MustGetFreePort(t)
	}
	if stateDir == "" {
		stateDir = t.TempDir()
	}

	_ = flags.Set("port", fmt.Sprintf("%d", port))
	_ = flags.Set("transport", transport)
	_ = flags.Set("auth-type", authType)
	_ = flags.Set("host", host)
	_ = flags.Set("vcs-backend", "go-git")
	_ = flags.Set("store-path", filepath.Join(stateDir, "state.db"))
	_ = flags.Set("cache-path", filepath.Join(stateDir, "repository-cache.json"))
	if len(roots) > 0 {
		_ = flags.Set("root-paths", strings.Join(roots, ","))
	}

	return flags
}

// FixtureRepo describes one repository created by RepoFixture
type FixtureRepo struct {
	Path      string            // Relative to the fixture root
	Files     map[string]string // Committed files, relative to the repository
	Dirty     map[string]string // Written after the commit and left uncommitted
	RemoteURL string            // Configured as origin when set
	Branch    string            // Checked out after the commit when set
	When      time.Time         // Commit time. Defaults to now
}

// RepoFixture is a Service that builds a tree of real git repositories with go-git.
// Start reports the tree root under the "root" property.
type RepoFixture struct {
	repos []FixtureRepo
	root  string
}

// NewRepoFixture creates a fixture for the given repositories
func NewRepoFixture(repos ...FixtureRepo) *RepoFixture {
	return &RepoFixture{repos: repos}
}

// Root returns the tree root once started
func (f *RepoFixture) Root() string {
	return f.root
}

func (f *RepoFixture) GetName() string {
	return "repo-fixture"
}

func (f *RepoFixture) Start() (map[string]any, error) {
	root, err := os.MkdirTemp("", "repocat-fixture-*")
	if err != nil {
		return nil, err
	}
	// Resolve symlinks so paths match what the scanner reports
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	f.root = root

	for _, r := range f.repos {
		if err := createRepo(filepath.Join(root, r.Path), r); err != nil {
			return nil, fmt.Errorf("failed to create fixture repository %s: %w", r.Path, err)
		}
	}

	return map[string]any{"root": root}, nil
}

func (f *RepoFixture) Stop() error {
	if f.root == "" {
		return nil
	}
	return os.RemoveAll(f.root)
}

func createRepo(dir string, r FixtureRepo) error {
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return err
	}

	if err := writeFiles(dir, r.Files); err != nil {
		return err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return err
	}

	when := r.When
	if when.IsZero() {
		when = time.Now()
	}
	sig := &object.Signature{Name: "Fixture", Email: "fixture@example.com", When: when}
	if _, err := wt.Commit("initial", &git.CommitOptions{Author: sig, Committer: sig, AllowEmptyCommits: true}); err != nil {
		return err
	}

	if r.RemoteURL != "" {
		if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{r.RemoteURL}}); err != nil {
			return err
		}
	}

	if r.Branch != "" {
		if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(r.Branch), Create: true}); err != nil {
			return err
		}
	}

	return writeFiles(dir, r.Dirty)
}

func writeFiles(dir string, files map[string]string) error {
	for rel, content := range files {
		full := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}
