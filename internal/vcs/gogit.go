package vcs

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

// GoGitExtractor reads repository metadata in-process with go-git.
// It needs no git binary, at the cost of slower status computation on large work trees.
// Status and ahead/behind walks are bounded by timeout.
type GoGitExtractor struct {
	timeout time.Duration
}

// NewGoGitExtractor creates an in-process extractor. A non-positive timeout uses DefaultCommandTimeout.
func NewGoGitExtractor(timeout time.Duration) *GoGitExtractor {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &GoGitExtractor{timeout: timeout}
}

func (e *GoGitExtractor) open(repoPath string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{EnableDotGitCommonDir: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNotRepository
	}
	return repo, err
}

// Extract opens the repository and collects the same fields as GitExtractor.
func (e *GoGitExtractor) Extract(ctx context.Context, repoPath string) domain.GitInfo {
	repo, err := e.open(repoPath)
	if err != nil {
		slog.Debug("go-git open failed", "path", repoPath, "error", err, "not_repository", IsNotRepository(err))
		return domain.MinimalGitInfo()
	}

	info := domain.GitInfo{
		CurrentBranch:  detachedBranch,
		LastCommitDate: time.Unix(0, 0).UTC(),
		AheadBehind:    domain.AheadBehind{Upstream: domain.UpstreamUnknown},
		Owner:          domain.SelfOwner(),
	}

	if remote, err := repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
		info.RemoteURL = remote.Config().URLs[0]
	}
	info.Owner = OwnerFromRemote(info.RemoteURL)

	head, headErr := repo.Head()
	if headErr == nil {
		if head.Name().IsBranch() {
			info.CurrentBranch = head.Name().Short()
		}
		if commit, err := repo.CommitObject(head.Hash()); err == nil {
			info.LastCommitDate = commit.Committer.When
		}
	}

	info.TotalBranches = countBranches(repo)

	if status, err := e.status(ctx, repo); err == nil {
		info.HasUncommitted = !status.IsClean()
	} else {
		slog.Debug("go-git status failed", "path", repoPath, "error", err)
	}

	if headErr == nil {
		walkCtx, cancel := context.WithTimeout(ctx, e.timeout)
		ab, err := aheadBehind(walkCtx, repo, head)
		cancel()
		if err != nil && !errors.Is(err, ErrNoUpstream) {
			slog.Debug("go-git ahead/behind failed", "path", repoPath, "error", err)
		}
		info.AheadBehind = ab
	}

	if info.RemoteURL != "" {
		if _, err := repo.Remote(upstreamRemote); err == nil {
			info.IsFork = true
		}
	}

	return info
}

// StatusSummary counts changed work tree entries by kind.
func (e *GoGitExtractor) StatusSummary(ctx context.Context, repoPath string) (StatusSummary, error) {
	repo, err := e.open(repoPath)
	if err != nil {
		return StatusSummary{}, err
	}
	status, err := e.status(ctx, repo)
	if err != nil {
		return StatusSummary{}, err
	}
	return summarizeStatus(status), nil
}

// RecentCommits returns up to count commits reachable from HEAD, newest first.
func (e *GoGitExtractor) RecentCommits(ctx context.Context, repoPath string, count int) ([]Commit, error) {
	if count <= 0 {
		count = DefaultRecentCommits
	}
	repo, err := e.open(repoPath)
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
		commits = append(commits, Commit{
			Hash:        c.Hash.String(),
			Subject:     subject,
			AuthorName:  c.Author.Name,
			AuthorEmail: c.Author.Email,
			Date:        c.Committer.When,
		})
		if len(commits) == count {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return commits, nil
}

// status computes the work tree status within the extractor timeout.
// go-git's walk takes no context, so an abandoned walk finishes in the background.
func (e *GoGitExtractor) status(ctx context.Context, repo *git.Repository) (git.Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type result struct {
		status git.Status
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, err := wt.Status()
		done <- result{status, err}
	}()

	select {
	case r := <-done:
		return r.status, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// summarizeStatus classifies entries the way parseStatusSummary reads porcelain codes
func summarizeStatus(status git.Status) StatusSummary {
	var s StatusSummary
	for _, fs := range status {
		if fs.Staging == git.Unmodified && fs.Worktree == git.Unmodified {
			continue
		}
		s.Total++
		switch {
		case fs.Worktree == git.Untracked:
			s.Untracked++
		case fs.Staging == git.Added || fs.Worktree == git.Added:
			s.Added++
		case fs.Staging == git.Modified || fs.Worktree == git.Modified:
			s.Modified++
		case fs.Staging == git.Deleted || fs.Worktree == git.Deleted:
			s.Deleted++
		}
	}
	return s
}

// countBranches counts local branches and remote-tracking refs, excluding origin/HEAD
func countBranches(repo *git.Repository) int {
	refs, err := repo.References()
	if err != nil {
		return 0
	}
	defer refs.Close()

	count := 0
	_ = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		switch {
		case name.IsBranch():
			count++
		case name.IsRemote() && name.Short() != "origin/HEAD":
			count++
		}
		return nil
	})
	return count
}

// aheadBehind resolves the configured upstream of the current branch and counts divergence
func aheadBehind(ctx context.Context, repo *git.Repository, head *plumbing.Reference) (domain.AheadBehind, error) {
	none := domain.AheadBehind{Upstream: domain.UpstreamNone}
	if !head.Name().IsBranch() {
		return none, ErrNoUpstream
	}

	cfg, err := repo.Config()
	if err != nil {
		return domain.AheadBehind{Upstream: domain.UpstreamUnknown}, err
	}

	branchCfg, ok := cfg.Branches[head.Name().Short()]
	if !ok || branchCfg.Remote == "" || branchCfg.Merge == "" {
		return none, ErrNoUpstream
	}

	upstreamName := plumbing.NewRemoteReferenceName(branchCfg.Remote, branchCfg.Merge.Short())
	upstreamRef, err := repo.Reference(upstreamName, true)
	if err != nil {
		// Configured but never fetched, or deleted on the remote
		return none, ErrNoUpstream
	}

	local, err := repo.CommitObject(head.Hash())
	if err != nil {
		return domain.AheadBehind{Upstream: domain.UpstreamUnknown}, err
	}
	upstream, err := repo.CommitObject(upstreamRef.Hash())
	if err != nil {
		return domain.AheadBehind{Upstream: domain.UpstreamUnknown}, err
	}

	bases, err := local.MergeBase(upstream)
	if err != nil || len(bases) == 0 {
		return domain.AheadBehind{Upstream: domain.UpstreamUnknown}, err
	}
	base := bases[0].Hash

	ahead, err := countUntil(ctx, repo, local.Hash, base)
	if err != nil {
		return domain.AheadBehind{Upstream: domain.UpstreamUnknown}, err
	}
	behind, err := countUntil(ctx, repo, upstream.Hash, base)
	if err != nil {
		return domain.AheadBehind{Upstream: domain.UpstreamUnknown}, err
	}

	return domain.AheadBehind{Ahead: ahead, Behind: behind, Upstream: domain.UpstreamTracking}, nil
}

// countUntil counts commits in log order from tip until the merge base is reached.
// Exact for linear histories. With merges on either side, commits reachable only
// through a second parent that predate the base are counted as well.
func countUntil(ctx context.Context, repo *git.Repository, tip, base plumbing.Hash) (int, error) {
	if tip == base {
		return 0, nil
	}

	iter, err := repo.Log(&git.LogOptions{From: tip})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	count := 0
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Hash == base {
			return storer.ErrStop
		}
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
