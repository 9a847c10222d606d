package vcs

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

func newFullMock() *MockExecutor {
	mock := NewMockExecutor()
	mock.AddResponse("git remote get-url origin", []byte("git@github.com:acme/widget.git\n"), nil)
	mock.AddResponse("git branch --show-current", []byte("main\n"), nil)
	mock.AddResponse("git branch -a", []byte("* main\n  feature/x\n  remotes/origin/HEAD -> origin/main\n  remotes/origin/main\n"), nil)
	mock.AddResponse("git log -1 --format=%ci", []byte("2024-03-01 10:20:30 +0100\n"), nil)
	mock.AddResponse("git status --porcelain", []byte(" M main.go\n"), nil)
	mock.AddResponse("git rev-list --count --left-right HEAD...@{upstream}", []byte("2\t5\n"), nil)
	mock.AddResponse("git remote", []byte("origin\nupstream\n"), nil)
	return mock
}

func TestNewGitExtractor(t *testing.T) {
	g := NewGitExtractor(0)
	if g.executor == nil {
		t.Error("Expected executor to be set")
	}
	if g.timeout != DefaultCommandTimeout {
		t.Errorf("timeout = %v, want %v", g.timeout, DefaultCommandTimeout)
	}
}

func TestGitExtractor_Extract(t *testing.T) {
	mock := newFullMock()
	g := NewGitExtractorWithExecutor(mock, time.Second)

	info := g.Extract(context.Background(), "/src/widget")

	if info.RemoteURL != "git@github.com:acme/widget.git" {
		t.Errorf("RemoteURL = %q", info.RemoteURL)
	}
	if info.CurrentBranch != "main" {
		t.Errorf("CurrentBranch = %q, want %q", info.CurrentBranch, "main")
	}
	if info.TotalBranches != 3 {
		t.Errorf("TotalBranches = %d, want 3", info.TotalBranches)
	}
	wantDate := time.Date(2024, 3, 1, 9, 20, 30, 0, time.UTC)
	if !info.LastCommitDate.Equal(wantDate) {
		t.Errorf("LastCommitDate = %v, want %v", info.LastCommitDate, wantDate)
	}
	if !info.HasUncommitted {
		t.Error("Expected HasUncommitted to be true")
	}
	if info.AheadBehind.Ahead != 2 || info.AheadBehind.Behind != 5 {
		t.Errorf("AheadBehind = %+v, want ahead 2 behind 5", info.AheadBehind)
	}
	if info.AheadBehind.Upstream != domain.UpstreamTracking {
		t.Errorf("Upstream = %q, want %q", info.AheadBehind.Upstream, domain.UpstreamTracking)
	}
	if !info.IsFork {
		t.Error("Expected IsFork to be true with an upstream remote")
	}
	if info.Owner.IsSelf() || info.Owner.Name != "acme" {
		t.Errorf("Owner = %+v, want acme", info.Owner)
	}

	for _, call := range mock.GetCalls() {
		if call.Dir != "/src/widget" {
			t.Errorf("Expected dir '/src/widget', got %q", call.Dir)
		}
		if call.Name != "git" {
			t.Errorf("Expected git command, got %s", call.Name)
		}
	}
	if n := len(mock.GetCalls()); n != gitQueryCount {
		t.Errorf("calls = %d, want %d", n, gitQueryCount)
	}
}

func TestGitExtractor_Extract_PartialFailure(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("git remote get-url origin", nil, &CommandError{Args: []string{"git", "remote"}, Stderr: "error: No such remote 'origin'", Err: errors.New("exit status 2")})
	mock.AddResponse("git branch --show-current", []byte("\n"), nil)
	mock.AddResponse("git branch -a", nil, errors.New("boom"))
	mock.AddResponse("git log -1 --format=%ci", nil, errors.New("boom"))
	mock.AddResponse("git status --porcelain", []byte(""), nil)
	mock.AddResponse("git rev-list", nil, &CommandError{Stderr: "fatal: no upstream configured for branch 'main'", Err: errors.New("exit status 128")})
	mock.AddResponse("git remote", []byte("upstream\n"), nil)

	g := NewGitExtractorWithExecutor(mock, time.Second)
	info := g.Extract(context.Background(), "/src/local")

	if info.RemoteURL != "" {
		t.Errorf("RemoteURL = %q, want empty", info.RemoteURL)
	}
	if info.CurrentBranch != "HEAD" {
		t.Errorf("CurrentBranch = %q, want HEAD for detached head", info.CurrentBranch)
	}
	if info.TotalBranches != 0 {
		t.Errorf("TotalBranches = %d, want 0", info.TotalBranches)
	}
	if info.LastCommitDate.Unix() != 0 {
		t.Errorf("LastCommitDate = %v, want epoch", info.LastCommitDate)
	}
	if info.HasUncommitted {
		t.Error("Expected clean work tree")
	}
	if info.AheadBehind.Ahead != 0 || info.AheadBehind.Behind != 0 {
		t.Errorf("AheadBehind = %+v, want zero counts", info.AheadBehind)
	}
	if info.AheadBehind.Upstream != domain.UpstreamNone {
		t.Errorf("Upstream = %q, want %q", info.AheadBehind.Upstream, domain.UpstreamNone)
	}
	if info.IsFork {
		t.Error("Expected IsFork false without an origin URL")
	}
	if !info.Owner.IsSelf() {
		t.Errorf("Owner = %+v, want self", info.Owner)
	}
}

func TestGitExtractor_Extract_AllFail(t *testing.T) {
	mock := NewMockExecutor()
	mock.SetResponse("git", nil, &CommandError{Stderr: "fatal: not a git repository (or any of the parent directories): .git", Err: errors.New("exit status 128")})

	g := NewGitExtractorWithExecutor(mock, time.Second)
	info := g.Extract(context.Background(), "/tmp/nothing")

	want := domain.MinimalGitInfo()
	if info.CurrentBranch != want.CurrentBranch {
		t.Errorf("CurrentBranch = %q, want %q", info.CurrentBranch, want.CurrentBranch)
	}
	if info.AheadBehind.Upstream != domain.UpstreamUnknown {
		t.Errorf("Upstream = %q, want %q", info.AheadBehind.Upstream, domain.UpstreamUnknown)
	}
	if !info.Owner.IsSelf() {
		t.Error("Expected self owner")
	}
}

type slowExecutor struct{}

func (slowExecutor) Run(ctx context.Context, _ string, _ string, _ ...string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestGitExtractor_PerCallTimeout(t *testing.T) {
	g := NewGitExtractorWithExecutor(slowExecutor{}, 20*time.Millisecond)

	start := time.Now()
	info := g.Extract(context.Background(), "/src/hung")
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Errorf("Extract took %v, expected the per-call timeout to bound it", elapsed)
	}
	if info.CurrentBranch != "unknown" {
		t.Errorf("CurrentBranch = %q, want minimal info", info.CurrentBranch)
	}
}

func TestParseBranchList(t *testing.T) {
	got := parseBranchList("* main\n  dev\n  remotes/origin/HEAD -> origin/main\n  remotes/origin/dev\n\n")
	want := []string{"main", "dev", "remotes/origin/dev"}
	if len(got) != len(want) {
		t.Fatalf("parseBranchList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("branch[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseAheadBehind(t *testing.T) {
	tests := []struct {
		in     string
		ahead  int
		behind int
	}{
		{"3\t1", 3, 1},
		{"0\t0", 0, 0},
		{"x\ty", 0, 0},
		{"7", 7, 0},
	}
	for _, tt := range tests {
		got := parseAheadBehind(tt.in)
		if got.Ahead != tt.ahead || got.Behind != tt.behind {
			t.Errorf("parseAheadBehind(%q) = %+v, want %d/%d", tt.in, got, tt.ahead, tt.behind)
		}
	}
}

func TestGitExtractor_StatusSummary(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("git status --porcelain", []byte("A  new.go\n M changed.go\n D gone.go\n?? scratch.txt\n"), nil)

	g := NewGitExtractorWithExecutor(mock, time.Second)
	s, err := g.StatusSummary(context.Background(), "/src/widget")
	if err != nil {
		t.Fatalf("StatusSummary failed: %v", err)
	}

	want := StatusSummary{Added: 1, Modified: 1, Deleted: 1, Untracked: 1, Total: 4}
	if s != want {
		t.Errorf("StatusSummary = %+v, want %+v", s, want)
	}
}

func TestGitExtractor_RecentCommits(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("git log --max-count=2", []byte("abc|Fix bug|Dana|dana@example.com|2024-01-02 03:04:05 +0000\ndef|Init|Lee|lee@example.com|2023-12-31 00:00:00 +0000\n"), nil)

	g := NewGitExtractorWithExecutor(mock, time.Second)
	commits, err := g.RecentCommits(context.Background(), "/src/widget", 2)
	if err != nil {
		t.Fatalf("RecentCommits failed: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("Expected 2 commits, got %d", len(commits))
	}
	if commits[0].Hash != "abc" || commits[0].Subject != "Fix bug" || commits[0].AuthorEmail != "dana@example.com" {
		t.Errorf("commit[0] = %+v", commits[0])
	}
	if commits[1].Date.Year() != 2023 {
		t.Errorf("commit[1].Date = %v", commits[1].Date)
	}
}

func TestGitExtractor_Extract_NotRepository(t *testing.T) {
	mock := NewMockExecutor()
	mock.SetResponse("git", []byte("main\n"), nil)
	mock.AddResponse("git status --porcelain", nil, &CommandError{Stderr: "fatal: not a git repository (or any of the parent directories): .git", Err: errors.New("exit status 128")})

	info := NewGitExtractorWithExecutor(mock, time.Second).Extract(context.Background(), "/src/plain")

	if info.CurrentBranch != domain.MinimalGitInfo().CurrentBranch {
		t.Errorf("CurrentBranch = %q, want minimal info once git reports no work tree", info.CurrentBranch)
	}
}

func TestGitExtractor_Extract_ExpectedStatesAreNotFailures(t *testing.T) {
	mock := NewMockExecutor()
	mock.SetResponse("git", nil, errors.New("boom"))
	mock.AddResponse("git remote get-url origin", nil, &CommandError{Stderr: "error: No such remote 'origin'", Err: errors.New("exit status 2")})
	mock.AddResponse("git log -1 --format=%ci", nil, &CommandError{Stderr: "fatal: your current branch 'main' does not have any commits yet", Err: errors.New("exit status 128")})

	info := NewGitExtractorWithExecutor(mock, time.Second).Extract(context.Background(), "/src/fresh")

	// Five real failures out of seven queries still yield a partial GitInfo
	if info.CurrentBranch != detachedBranch {
		t.Errorf("CurrentBranch = %q, want %q", info.CurrentBranch, detachedBranch)
	}
	if info.RemoteURL != "" || info.LastCommitDate.Unix() != 0 {
		t.Errorf("Expected no remote and epoch commit date, got %+v", info)
	}
}

func TestGitExtractor_Extract_ToolMissing(t *testing.T) {
	mock := NewMockExecutor()
	mock.SetResponse("git", nil, &CommandError{Args: []string{"git"}, Err: &exec.Error{Name: "git", Err: exec.ErrNotFound}})

	g := NewGitExtractorWithExecutor(mock, time.Second)
	info := g.Extract(context.Background(), "/src/a")
	g.Extract(context.Background(), "/src/b")

	if info.CurrentBranch != domain.MinimalGitInfo().CurrentBranch {
		t.Errorf("CurrentBranch = %q, want minimal info", info.CurrentBranch)
	}
	if !g.toolMissing.Load() {
		t.Error("Expected the missing git binary to be recorded")
	}
}

func TestGitExtractor_RecentCommits_EmptyHistory(t *testing.T) {
	mock := NewMockExecutor()
	mock.AddResponse("git log", nil, &CommandError{Stderr: "fatal: your current branch 'main' does not have any commits yet", Err: errors.New("exit status 128")})

	commits, err := NewGitExtractorWithExecutor(mock, time.Second).RecentCommits(context.Background(), "/src/fresh", 0)
	if err != nil || len(commits) != 0 {
		t.Errorf("RecentCommits = %v, %v, want empty", commits, err)
	}
	if call := mock.MustGetLastCall(t); call.Args[1] != "--max-count=10" {
		t.Errorf("Expected default count, got %v", call.Args)
	}
}

func TestStaticExtractor_Details(t *testing.T) {
	s := NewStaticExtractor(domain.MinimalGitInfo())
	s.SetDetails("/src/a", StatusSummary{Modified: 1, Total: 1}, []Commit{{Hash: "1"}, {Hash: "2"}})

	if status, err := s.StatusSummary(context.Background(), "/src/a"); err != nil || status.Modified != 1 {
		t.Errorf("StatusSummary = %+v, %v", status, err)
	}
	if commits, err := s.RecentCommits(context.Background(), "/src/a", 1); err != nil || len(commits) != 1 {
		t.Errorf("RecentCommits = %v, %v", commits, err)
	}
	if _, err := s.StatusSummary(context.Background(), "/src/b"); !IsNotRepository(err) {
		t.Errorf("Expected not a repository for unknown path, got %v", err)
	}
}
