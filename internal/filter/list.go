package filter

import (
	"cmp"
	"slices"
	"strings"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

// ApplyList applies the list criteria followed by its quick filters.
func ApplyList(repos []domain.Repository, lf domain.ListFilter) []domain.Repository {
	m := NewMatcher(lf.Criteria)
	term := strings.ToLower(strings.TrimSpace(lf.SearchTerm))

	out := make([]domain.Repository, 0, len(repos))
	for _, r := range repos {
		if !m.Matches(r) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(r.Name), term) {
			continue
		}
		if lf.Language != "" && r.Metadata.Language != lf.Language {
			continue
		}
		if len(lf.Tags) > 0 && !hasAnyTag(r, lf.Tags) {
			continue
		}
		if lf.IsFavorite != nil && r.IsFavorite != *lf.IsFavorite {
			continue
		}
		if lf.IsArchived != nil && r.IsArchived != *lf.IsArchived {
			continue
		}
		if lf.HasUncommitted != nil && r.GitInfo.HasUncommitted != *lf.HasUncommitted {
			continue
		}
		if lf.CommitRange != nil && !inRange(ActivityDate(r), lf.CommitRange) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Sort orders repos in place by opt. The sort is stable; an unknown field
// leaves the order unchanged.
func Sort(repos []domain.Repository, opt domain.SortOption) {
	compare := comparator(opt.Field)
	if compare == nil {
		return
	}
	slices.SortStableFunc(repos, func(a, b domain.Repository) int {
		if opt.Order == domain.SortDesc {
			return -compare(a, b)
		}
		return compare(a, b)
	})
}

func comparator(field domain.SortField) func(a, b domain.Repository) int {
	switch field {
	case domain.SortByName:
		return func(a, b domain.Repository) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	case domain.SortByLanguage:
		return func(a, b domain.Repository) int {
			return cmp.Compare(strings.ToLower(a.Metadata.Language), strings.ToLower(b.Metadata.Language))
		}
	case domain.SortByLastCommit:
		return func(a, b domain.Repository) int {
			return a.GitInfo.LastCommitDate.Compare(b.GitInfo.LastCommitDate)
		}
	case domain.SortByLastAccessed:
		return func(a, b domain.Repository) int { return a.LastAccessed.Compare(b.LastAccessed) }
	case domain.SortByAccessCount:
		return func(a, b domain.Repository) int { return cmp.Compare(a.AccessCount, b.AccessCount) }
	case domain.SortByCreatedAt:
		return func(a, b domain.Repository) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case domain.SortByUpdatedAt:
		return func(a, b domain.Repository) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	case domain.SortBySize:
		return func(a, b domain.Repository) int {
			return cmp.Compare(a.Metadata.ProjectSize.TotalFiles, b.Metadata.ProjectSize.TotalFiles)
		}
	case domain.SortByFavorite:
		return func(a, b domain.Repository) int { return cmp.Compare(boolRank(a.IsFavorite), boolRank(b.IsFavorite)) }
	default:
		return nil
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
