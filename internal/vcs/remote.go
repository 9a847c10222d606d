package vcs

import (
	"errors"
	"regexp"
	"strings"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

var (
	// ErrInvalidRemoteURL indicates the URL is not a recognizable git remote
	ErrInvalidRemoteURL = errors.New("invalid remote URL format")

	// Matches: git@github.com:org/repo.git or user@host:group/sub/repo
	scpPattern = regexp.MustCompile(`^(?:[\w.-]+@)?([\w.-]+):([^/][^:]*?)(?:\.git)?/?$`)

	// Matches: ssh://git@github.com/org/repo.git, https://github.com/org/repo, git://host/org/repo
	urlPattern = regexp.MustCompile(`^(?:ssh|https?|git)://(?:[^@/]+@)?([^/:]+)(?::\d+)?/(.+?)(?:\.git)?/?$`)
)

// ownerHosts are the hosting services whose first path segment is the owning account.
var ownerHosts = map[string]bool{
	"github.com":    true,
	"gitlab.com":    true,
	"bitbucket.org": true,
}

// Remote is a parsed git remote URL.
type Remote struct {
	Host string
	Path string
	Repo string
}

// Owner returns the first path segment, which hosting services use as the account name.
func (r Remote) Owner() string {
	owner, _, found := strings.Cut(r.Path, "/")
	if !found {
		return ""
	}
	return owner
}

// ParseRemoteURL parses SCP-style (git@host:path) and URL-style (ssh://, https://, git://) remotes.
//
// Examples:
//   - git@github.com:org/repo.git -> host: github.com, path: org/repo, repo: repo
//   - https://gitlab.com/group/sub/repo.git -> host: gitlab.com, path: group/sub/repo, repo: repo
//   - ssh://git@github.com:22/org/repo.git -> host: github.com, path: org/repo, repo: repo
func ParseRemoteURL(url string) (Remote, error) {
	url = strings.TrimSpace(url)

	// URL style first: "https://host/path" would otherwise look like scp "https:path"
	if matches := urlPattern.FindStringSubmatch(url); matches != nil {
		return newRemote(matches[1], matches[2]), nil
	}

	if strings.Contains(url, "://") {
		return Remote{}, ErrInvalidRemoteURL
	}

	if matches := scpPattern.FindStringSubmatch(url); matches != nil {
		return newRemote(matches[1], matches[2]), nil
	}

	return Remote{}, ErrInvalidRemoteURL
}

func newRemote(host, path string) Remote {
	host = strings.ToLower(host)
	path = strings.Trim(path, "/")
	return Remote{Host: host, Path: path, Repo: extractRepoName(path)}
}

// extractRepoName extracts the repository name from a path.
// For "org/repo" returns "repo", for "group/sub/repo" returns "repo".
func extractRepoName(path string) string {
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}

// OwnerFromRemote resolves the owner of a repository from its origin URL.
// Remotes on unknown hosts, or without a remote, are owned by "self".
func OwnerFromRemote(url string) domain.Owner {
	if url == "" {
		return domain.SelfOwner()
	}

	remote, err := ParseRemoteURL(url)
	if err != nil || !ownerHosts[remote.Host] {
		return domain.SelfOwner()
	}

	owner := remote.Owner()
	if owner == "" {
		return domain.SelfOwner()
	}

	return domain.ExternalOwner(owner, "https://"+remote.Host+"/"+owner)
}

// IsValidRemoteURL checks if the given URL is a parseable git remote.
func IsValidRemoteURL(url string) bool {
	_, err := ParseRemoteURL(url)
	return err == nil
}
