package vcs

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultCommandTimeout bounds every individual git invocation
	DefaultCommandTimeout = 10 * time.Second

	// gitDateLayout matches `git log --format=%ci`
	gitDateLayout = "2006-01-02 15:04:05 -0700"

	// detachedBranch is reported when HEAD is not on a branch
	detachedBranch = "HEAD"

	// upstreamRemote marks a repository as a fork when present
	upstreamRemote = "upstream"

	gitQueryCount = 7

	// DefaultRecentCommits is the log length used when a caller passes no count
	DefaultRecentCommits = 10
)

// Extractor produces version control metadata for a repository.
// Extract never fails; missing values degrade to defaults. The detail queries
// back single-repository views and report their errors.
type Extractor interface {
	Extract(ctx context.Context, repoPath string) domain.GitInfo
	StatusSummary(ctx context.Context, repoPath string) (StatusSummary, error)
	RecentCommits(ctx context.Context, repoPath string, count int) ([]Commit, error)
}

// GitExtractor shells out to the git binary.
type GitExtractor struct {
	executor    CommandExecutor
	timeout     time.Duration
	toolMissing atomic.Bool
}

// NewGitExtractor creates a GitExtractor with the default command executor.
func NewGitExtractor(timeout time.Duration) *GitExtractor {
	return NewGitExtractorWithExecutor(&DefaultExecutor{}, timeout)
}

// NewGitExtractorWithExecutor creates a GitExtractor with a custom executor (for testing).
func NewGitExtractorWithExecutor(executor CommandExecutor, timeout time.Duration) *GitExtractor {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &GitExtractor{
		executor: executor,
		timeout:  timeout,
	}
}

// Extract runs the independent git queries in parallel and assembles a GitInfo.
// A failed query only affects its own field. If every query fails the minimal GitInfo is returned.
func (g *GitExtractor) Extract(ctx context.Context, repoPath string) domain.GitInfo {
	var (
		remoteURL   string
		branch      = detachedBranch
		branches    []string
		lastCommit  = time.Unix(0, 0).UTC()
		dirty       bool
		aheadBehind = domain.AheadBehind{Upstream: domain.UpstreamUnknown}
		remotes     []string
		failures    atomic.Int32
		notRepo     atomic.Bool
	)

	fail := func(query string, err error) {
		failures.Add(1)
		if IsNotRepository(err) {
			notRepo.Store(true)
		}
		g.logFailure(repoPath, query, err)
	}

	// Queries are independent: each goroutine reports nil so none cancels the others.
	var eg errgroup.Group

	eg.Go(func() error {
		url, err := g.RemoteURL(ctx, repoPath)
		if err != nil {
			// A repository without origin is local-only
			if !IsNoSuchRemote(err) {
				fail("remote-url", err)
			}
			return nil
		}
		remoteURL = url
		return nil
	})

	eg.Go(func() error {
		name, err := g.CurrentBranch(ctx, repoPath)
		if err != nil {
			fail("current-branch", err)
			return nil
		}
		branch = name
		return nil
	})

	eg.Go(func() error {
		list, err := g.Branches(ctx, repoPath)
		if err != nil {
			fail("branches", err)
			return nil
		}
		branches = list
		return nil
	})

	eg.Go(func() error {
		date, err := g.LastCommitDate(ctx, repoPath)
		if err != nil {
			// A fresh repository keeps the epoch date
			if !IsEmptyHistory(err) {
				fail("last-commit", err)
			}
			return nil
		}
		lastCommit = date
		return nil
	})

	eg.Go(func() error {
		changed, err := g.HasUncommittedChanges(ctx, repoPath)
		if err != nil {
			fail("status", err)
			return nil
		}
		dirty = changed
		return nil
	})

	eg.Go(func() error {
		ab, err := g.AheadBehind(ctx, repoPath)
		if err != nil {
			// No upstream is an expected state, not a failure
			if !IsNoUpstream(err) {
				fail("ahead-behind", err)
			}
		}
		aheadBehind = ab
		return nil
	})

	eg.Go(func() error {
		list, err := g.Remotes(ctx, repoPath)
		if err != nil {
			fail("remotes", err)
			return nil
		}
		remotes = list
		return nil
	})

	_ = eg.Wait()

	if notRepo.Load() || failures.Load() == gitQueryCount {
		return domain.MinimalGitInfo()
	}

	return domain.GitInfo{
		RemoteURL:      remoteURL,
		CurrentBranch:  branch,
		TotalBranches:  len(branches),
		LastCommitDate: lastCommit,
		HasUncommitted: dirty,
		AheadBehind:    aheadBehind,
		IsFork:         remoteURL != "" && contains(remotes, upstreamRemote),
		Owner:          OwnerFromRemote(remoteURL),
	}
}

// logFailure reports a missing git binary once and everything else at debug level
func (g *GitExtractor) logFailure(repoPath, query string, err error) {
	if IsToolMissing(err) {
		if g.toolMissing.CompareAndSwap(false, true) {
			slog.Warn("git binary not found, version control metadata is unavailable; consider --vcs-backend go-git", "error", err)
		}
		return
	}
	slog.Debug("Git query failed", "path", repoPath, "query", query, "error", err)
}

// run executes a git command with the per-call timeout
func (g *GitExtractor) run(ctx context.Context, repoPath string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	output, err := g.executor.Run(ctx, repoPath, "git", args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// RemoteURL returns the fetch URL of the origin remote.
func (g *GitExtractor) RemoteURL(ctx context.Context, repoPath string) (string, error) {
	return g.run(ctx, repoPath, "remote", "get-url", "origin")
}

// CurrentBranch returns the checked-out branch, or "HEAD" when detached.
func (g *GitExtractor) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	output, err := g.run(ctx, repoPath, "branch", "--show-current")
	if err != nil {
		return detachedBranch, err
	}
	if output == "" {
		return detachedBranch, nil
	}
	return output, nil
}

// Branches returns local and remote-tracking branch names, excluding the origin HEAD alias.
func (g *GitExtractor) Branches(ctx context.Context, repoPath string) ([]string, error) {
	output, err := g.run(ctx, repoPath, "branch", "-a")
	if err != nil {
		return nil, err
	}
	return parseBranchList(output), nil
}

// LastCommitDate returns the committer date of HEAD.
func (g *GitExtractor) LastCommitDate(ctx context.Context, repoPath string) (time.Time, error) {
	output, err := g.run(ctx, repoPath, "log", "-1", "--format=%ci")
	if err != nil {
		return time.Unix(0, 0).UTC(), err
	}
	if output == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	return time.Parse(gitDateLayout, output)
}

// HasUncommittedChanges reports whether the work tree or index differ from HEAD.
func (g *GitExtractor) HasUncommittedChanges(ctx context.Context, repoPath string) (bool, error) {
	output, err := g.run(ctx, repoPath, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return output != "", nil
}

// AheadBehind counts commits relative to the upstream tracking branch.
// The returned value is always usable: a missing upstream yields zero counts with UpstreamNone.
func (g *GitExtractor) AheadBehind(ctx context.Context, repoPath string) (domain.AheadBehind, error) {
	output, err := g.run(ctx, repoPath, "rev-list", "--count", "--left-right", "HEAD...@{upstream}")
	if err != nil {
		if IsNoUpstream(err) {
			return domain.AheadBehind{Upstream: domain.UpstreamNone}, err
		}
		return domain.AheadBehind{Upstream: domain.UpstreamUnknown}, err
	}
	return parseAheadBehind(output), nil
}

// Remotes returns the configured remote names.
func (g *GitExtractor) Remotes(ctx context.Context, repoPath string) ([]string, error) {
	output, err := g.run(ctx, repoPath, "remote")
	if err != nil {
		return nil, err
	}
	return splitLines(output), nil
}

// StatusSummary counts porcelain status entries by kind.
type StatusSummary struct {
	Added     int `json:"added"`
	Modified  int `json:"modified"`
	Deleted   int `json:"deleted"`
	Untracked int `json:"untracked"`
	Total     int `json:"total"`
}

// StatusSummary returns counts of added, modified, deleted and untracked entries.
func (g *GitExtractor) StatusSummary(ctx context.Context, repoPath string) (StatusSummary, error) {
	output, err := g.run(ctx, repoPath, "status", "--porcelain")
	if err != nil {
		return StatusSummary{}, err
	}
	return parseStatusSummary(output), nil
}

// Commit is a single entry of the commit log.
type Commit struct {
	Hash        string    `json:"hash"`
	Subject     string    `json:"subject"`
	AuthorName  string    `json:"authorName"`
	AuthorEmail string    `json:"authorEmail"`
	Date        time.Time `json:"date"`
}

// RecentCommits returns up to count commits reachable from HEAD, newest first.
func (g *GitExtractor) RecentCommits(ctx context.Context, repoPath string, count int) ([]Commit, error) {
	if count <= 0 {
		count = DefaultRecentCommits
	}
	output, err := g.run(ctx, repoPath, "log", "--max-count="+strconv.Itoa(count), "--format=%H|%s|%an|%ae|%ci")
	if err != nil {
		if IsEmptyHistory(err) {
			return nil, nil
		}
		return nil, err
	}
	return parseCommitLog(output), nil
}

func parseBranchList(output string) []string {
	var branches []string
	for _, line := range splitLines(output) {
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if name == "" || strings.HasPrefix(name, "remotes/origin/HEAD") {
			continue
		}
		branches = append(branches, name)
	}
	return branches
}

// parseAheadBehind parses "<ahead>\t<behind>"; unparsable counts read as zero
func parseAheadBehind(output string) domain.AheadBehind {
	fields := strings.Fields(output)
	ab := domain.AheadBehind{Upstream: domain.UpstreamTracking}
	if len(fields) > 0 {
		ab.Ahead, _ = strconv.Atoi(fields[0])
	}
	if len(fields) > 1 {
		ab.Behind, _ = strconv.Atoi(fields[1])
	}
	return ab
}

func parseStatusSummary(output string) StatusSummary {
	var s StatusSummary
	for _, line := range splitLines(output) {
		if len(line) < 2 {
			continue
		}
		s.Total++
		code := line[:2]
		switch {
		case code == "??":
			s.Untracked++
		case strings.Contains(code, "A"):
			s.Added++
		case strings.Contains(code, "M"):
			s.Modified++
		case strings.Contains(code, "D"):
			s.Deleted++
		}
	}
	return s
}

func parseCommitLog(output string) []Commit {
	var commits []Commit
	for _, line := range splitLines(output) {
		parts := strings.SplitN(line, "|", 5)
		for len(parts) < 5 {
			parts = append(parts, "")
		}
		c := Commit{
			Hash:        parts[0],
			Subject:     parts[1],
			AuthorName:  parts[2],
			AuthorEmail: parts[3],
		}
		if date, err := time.Parse(gitDateLayout, parts[4]); err == nil {
			c.Date = date
		}
		commits = append(commits, c)
	}
	return commits
}

func splitLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if strings.TrimSpace(item) == s {
			return true
		}
	}
	return false
}
