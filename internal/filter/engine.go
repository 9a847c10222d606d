// Package filter evaluates FilterCriteria against repositories and manages
// saved filter profiles.
package filter

import (
	"slices"
	"time"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

// Classify returns the single git state used by filters.
// Precedence is modified, behind, ahead, clean.
func Classify(info domain.GitInfo) domain.GitState {
	switch {
	case info.HasUncommitted:
		return domain.GitStateModified
	case info.AheadBehind.Behind > 0:
		return domain.GitStateBehind
	case info.AheadBehind.Ahead > 0:
		return domain.GitStateAhead
	default:
		return domain.GitStateClean
	}
}

// Matcher is a FilterCriteria prepared for repeated evaluation.
type Matcher struct {
	criteria   domain.FilterCriteria
	conditions []condition
}

// NewMatcher prepares criteria. Regex conditions are compiled once here;
// an invalid pattern never matches.
func NewMatcher(criteria domain.FilterCriteria) *Matcher {
	m := &Matcher{criteria: criteria}
	for _, c := range criteria.CustomConditions {
		m.conditions = append(m.conditions, compileCondition(c))
	}
	return m
}

// Matches reports whether repo satisfies every defined criterion.
func (m *Matcher) Matches(repo domain.Repository) bool {
	c := m.criteria

	if len(c.Languages) > 0 && !slices.Contains(c.Languages, repo.Metadata.Language) {
		return false
	}
	if len(c.Owners) > 0 && !slices.Contains(c.Owners, repo.GitInfo.Owner.Label()) {
		return false
	}
	if len(c.GitStates) > 0 && !slices.Contains(c.GitStates, Classify(repo.GitInfo)) {
		return false
	}
	if c.FavoritesOnly && !repo.IsFavorite {
		return false
	}
	if c.ExcludeArchived && repo.IsArchived {
		return false
	}
	if len(c.Tags) > 0 && !hasAnyTag(repo, c.Tags) {
		return false
	}
	if c.DateRange != nil && !inRange(repo.LastAccessed, c.DateRange) {
		return false
	}
	if c.SizeRange != nil && !inSizeRange(repo.Metadata.ProjectSize, c.SizeRange) {
		return false
	}
	if c.HasTests != nil && repo.Metadata.HasTests != *c.HasTests {
		return false
	}
	if c.HasCICD != nil && repo.Metadata.HasCICD != *c.HasCICD {
		return false
	}

	for _, cond := range m.conditions {
		if !cond.eval(repo) {
			return false
		}
	}
	return true
}

// Matches reports whether repo satisfies criteria.
func Matches(repo domain.Repository, criteria domain.FilterCriteria) bool {
	return NewMatcher(criteria).Matches(repo)
}

// Apply returns the repositories matching criteria in their original order.
func Apply(repos []domain.Repository, criteria domain.FilterCriteria) []domain.Repository {
	m := NewMatcher(criteria)
	out := make([]domain.Repository, 0, len(repos))
	for _, r := range repos {
		if m.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// ActivityDate is the last commit date, or UpdatedAt when no commit date is known.
func ActivityDate(repo domain.Repository) time.Time {
	d := repo.GitInfo.LastCommitDate
	if d.IsZero() || d.Unix() == 0 {
		return repo.UpdatedAt
	}
	return d
}

func hasAnyTag(repo domain.Repository, tags []string) bool {
	for _, t := range tags {
		if repo.HasTag(t) {
			return true
		}
	}
	return false
}

// inRange treats a zero Start or End as unbounded.
func inRange(t time.Time, r *domain.DateRange) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// inSizeRange treats a non-positive MaxFiles as no upper bound.
func inSizeRange(size domain.ProjectSize, r *domain.SizeRange) bool {
	if size.TotalFiles < r.MinFiles {
		return false
	}
	if r.MaxFiles > 0 && size.TotalFiles > r.MaxFiles {
		return false
	}
	if r.MinLines != nil && size.CodeLines < *r.MinLines {
		return false
	}
	if r.MaxLines != nil && size.CodeLines > *r.MaxLines {
		return false
	}
	return true
}
