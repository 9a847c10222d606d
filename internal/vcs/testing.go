package vcs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

// MockExecutor records commands and returns configured responses.
// It is safe for concurrent use and exported for use by other packages' tests.
type MockExecutor struct {
	mu       sync.Mutex
	commands []MockCommand
	calls    []ExecutorCall
}

// MockCommand defines a mock response for a command prefix.
// Sticky responses are reused; others are consumed by the first matching call.
type MockCommand struct {
	NamePrefix string
	Output     []byte
	Err        error
	Sticky     bool
}

// ExecutorCall records a command invocation.
type ExecutorCall struct {
	Dir  string
	Name string
	Args []string
}

// NewMockExecutor creates a new mock executor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		commands: make([]MockCommand, 0),
		calls:    make([]ExecutorCall, 0),
	}
}

// AddResponse adds a one-shot response for commands matching the given prefix.
func (m *MockExecutor) AddResponse(namePrefix string, output []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, MockCommand{NamePrefix: namePrefix, Output: output, Err: err})
}

// SetResponse adds a response that is returned for every matching command.
func (m *MockExecutor) SetResponse(namePrefix string, output []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, MockCommand{NamePrefix: namePrefix, Output: output, Err: err, Sticky: true})
}

// Run records the call and returns the response with the longest matching prefix.
func (m *MockExecutor) Run(_ context.Context, dir string, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, ExecutorCall{Dir: dir, Name: name, Args: args})

	fullCmd := name + " " + strings.Join(args, " ")

	best := -1
	for i, cmd := range m.commands {
		if strings.HasPrefix(fullCmd, cmd.NamePrefix) && (best < 0 || len(cmd.NamePrefix) > len(m.commands[best].NamePrefix)) {
			best = i
		}
	}
	if best < 0 {
		return nil, &CommandError{Args: append([]string{name}, args...), Err: errors.New("no mock response configured for: " + fullCmd)}
	}

	cmd := m.commands[best]
	if !cmd.Sticky {
		m.commands = append(m.commands[:best], m.commands[best+1:]...)
	}
	return cmd.Output, cmd.Err
}

// GetCalls returns a copy of all recorded command calls.
func (m *MockExecutor) GetCalls() []ExecutorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutorCall(nil), m.calls...)
}

// CallCount returns how many recorded calls start with the given command prefix.
func (m *MockExecutor) CallCount(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if strings.HasPrefix(c.Name+" "+strings.Join(c.Args, " "), prefix) {
			n++
		}
	}
	return n
}

// MustGetLastCall returns the last recorded call, fails the test if no calls were made.
func (m *MockExecutor) MustGetLastCall(t *testing.T) ExecutorCall {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		t.Fatal("Expected at least one command call")
	}
	return m.calls[len(m.calls)-1]
}

// StaticExtractor returns fixed GitInfo values keyed by repository path.
// Paths without configured details report ErrNotRepository from the detail queries.
type StaticExtractor struct {
	mu       sync.Mutex
	infos    map[string]domain.GitInfo
	statuses map[string]StatusSummary
	commits  map[string][]Commit
	fallback domain.GitInfo
	calls    []string
}

// NewStaticExtractor creates an extractor returning fallback for unknown paths.
func NewStaticExtractor(fallback domain.GitInfo) *StaticExtractor {
	return &StaticExtractor{
		infos:    make(map[string]domain.GitInfo),
		statuses: make(map[string]StatusSummary),
		commits:  make(map[string][]Commit),
		fallback: fallback,
	}
}

// SetDetails configures the status summary and commit log returned for repoPath.
func (s *StaticExtractor) SetDetails(repoPath string, status StatusSummary, commits []Commit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.NormalizePath(repoPath)
	s.statuses[key] = status
	s.commits[key] = commits
}

// StatusSummary returns the configured summary.
func (s *StaticExtractor) StatusSummary(_ context.Context, repoPath string) (StatusSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.statuses[domain.NormalizePath(repoPath)]; ok {
		return status, nil
	}
	return StatusSummary{}, ErrNotRepository
}

// RecentCommits returns at most count configured commits.
func (s *StaticExtractor) RecentCommits(_ context.Context, repoPath string, count int) ([]Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	commits, ok := s.commits[domain.NormalizePath(repoPath)]
	if !ok {
		return nil, ErrNotRepository
	}
	if count > 0 && len(commits) > count {
		commits = commits[:count]
	}
	return append([]Commit(nil), commits...), nil
}

// Set configures the GitInfo returned for repoPath.
func (s *StaticExtractor) Set(repoPath string, info domain.GitInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos[domain.NormalizePath(repoPath)] = info
}

// Extract returns the configured GitInfo.
func (s *StaticExtractor) Extract(_ context.Context, repoPath string) domain.GitInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.NormalizePath(repoPath)
	s.calls = append(s.calls, key)
	if info, ok := s.infos[key]; ok {
		return info
	}
	return s.fallback
}

// Calls returns the normalized paths Extract was called with.
func (s *StaticExtractor) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}
