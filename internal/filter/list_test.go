package filter

import (
	"slices"
	"testing"
	"time"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

func TestApplyList(t *testing.T) {
	a := repo("Alpha-Service", "Go", true)
	a.Tags = []string{"work"}
	a.UpdatedAt = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	b := repo("beta", "Go", false)
	b.GitInfo.HasUncommitted = true
	b.UpdatedAt = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := repo("gamma", "Rust", false)
	c.IsArchived = true
	c.GitInfo.LastCommitDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	repos := []domain.Repository{a, b, c}

	tests := []struct {
		name   string
		filter domain.ListFilter
		want   []string
	}{
		{"no filter", domain.ListFilter{}, []string{"Alpha-Service", "beta", "gamma"}},
		{"search term", domain.ListFilter{SearchTerm: "SERVICE"}, []string{"Alpha-Service"}},
		{"language", domain.ListFilter{Language: "Rust"}, []string{"gamma"}},
		{"tags", domain.ListFilter{Tags: []string{"work"}}, []string{"Alpha-Service"}},
		{"not favorite", domain.ListFilter{IsFavorite: boolPtr(false)}, []string{"beta", "gamma"}},
		{"archived", domain.ListFilter{IsArchived: boolPtr(true)}, []string{"gamma"}},
		{"uncommitted", domain.ListFilter{HasUncommitted: boolPtr(true)}, []string{"beta"}},
		{"commit range", domain.ListFilter{CommitRange: &domain.DateRange{End: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)}}, []string{"gamma"}},
		{"criteria and quick filter", domain.ListFilter{
			Criteria:   domain.FilterCriteria{Languages: []string{"Go"}},
			SearchTerm: "beta",
		}, []string{"beta"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(ApplyList(repos, tt.filter))
			if !slices.Equal(got, tt.want) {
				t.Errorf("ApplyList() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSort(t *testing.T) {
	a := repo("beta", "Rust", false)
	a.AccessCount = 3
	a.Metadata.ProjectSize.TotalFiles = 10
	b := repo("Alpha", "Go", true)
	b.AccessCount = 1
	b.Metadata.ProjectSize.TotalFiles = 30
	c := repo("gamma", "Go", false)
	c.AccessCount = 2
	c.Metadata.ProjectSize.TotalFiles = 20

	tests := []struct {
		opt  domain.SortOption
		want []string
	}{
		{domain.SortOption{Field: domain.SortByName, Order: domain.SortAsc}, []string{"Alpha", "beta", "gamma"}},
		{domain.SortOption{Field: domain.SortByName, Order: domain.SortDesc}, []string{"gamma", "beta", "Alpha"}},
		{domain.SortOption{Field: domain.SortByLanguage, Order: domain.SortAsc}, []string{"Alpha", "gamma", "beta"}},
		{domain.SortOption{Field: domain.SortByAccessCount, Order: domain.SortDesc}, []string{"beta", "gamma", "Alpha"}},
		{domain.SortOption{Field: domain.SortBySize, Order: domain.SortAsc}, []string{"beta", "gamma", "Alpha"}},
		{domain.SortOption{Field: domain.SortByFavorite, Order: domain.SortDesc}, []string{"Alpha", "beta", "gamma"}},
		{domain.SortOption{Field: "stars", Order: domain.SortAsc}, []string{"beta", "Alpha", "gamma"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.opt.Field)+"_"+string(tt.opt.Order), func(t *testing.T) {
			repos := []domain.Repository{a, b, c}
			Sort(repos, tt.opt)
			if got := names(repos); !slices.Equal(got, tt.want) {
				t.Errorf("Sort() = %v, want %v", got, tt.want)
			}
		})
	}
}
