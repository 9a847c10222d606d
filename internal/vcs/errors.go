package vcs

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	// ErrNoUpstream indicates the current branch has no tracking branch.
	ErrNoUpstream = errors.New("no upstream configured")

	// ErrNotRepository indicates the directory is not inside a work tree.
	ErrNotRepository = errors.New("not a git repository")

	// ErrStderrOnly indicates a command wrote only to stderr.
	ErrStderrOnly = errors.New("command produced stderr without output")
)

// Common stderr fragments emitted by git
const (
	errMsgNotRepository  = "not a git repository"
	errMsgNoUpstream     = "no upstream"
	errMsgNoSuchBranch   = "no such branch"
	errMsgDetachedHead   = "head does not point to a branch"
	errMsgUnknownRevUp   = "unknown revision or path not in the working tree"
	errMsgNoSuchRemote   = "no such remote"
	errMsgNoCommitsYet   = "does not have any commits yet"
	errMsgBadDefaultHead = "bad default revision 'head'"
)

// CommandError describes a failed subprocess invocation.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %v: %s", strings.Join(e.Args, " "), e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s failed: %v", strings.Join(e.Args, " "), e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsNotRepository checks if the error indicates the directory is not a git repository.
func IsNotRepository(err error) bool {
	return errors.Is(err, ErrNotRepository) || containsError(err, errMsgNotRepository)
}

// IsNoUpstream checks if the error indicates the branch has no upstream.
// Detached heads and @{upstream} resolution failures are reported the same way.
func IsNoUpstream(err error) bool {
	return errors.Is(err, ErrNoUpstream) ||
		containsError(err, errMsgNoUpstream) ||
		containsError(err, errMsgNoSuchBranch) ||
		containsError(err, errMsgDetachedHead) ||
		containsError(err, errMsgUnknownRevUp)
}

// IsNoSuchRemote checks if the error indicates a missing remote.
func IsNoSuchRemote(err error) bool {
	return containsError(err, errMsgNoSuchRemote)
}

// IsEmptyHistory checks if the error indicates a repository without commits.
func IsEmptyHistory(err error) bool {
	return containsError(err, errMsgNoCommitsYet) || containsError(err, errMsgBadDefaultHead)
}

// IsToolMissing checks if the git binary could not be found.
func IsToolMissing(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// containsError checks if the error's stderr, or message, contains msg (case-insensitive)
func containsError(err error, msg string) bool {
	if err == nil {
		return false
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return strings.Contains(strings.ToLower(cmdErr.Stderr), msg)
	}

	return strings.Contains(strings.ToLower(err.Error()), msg)
}
