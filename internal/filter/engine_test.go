package filter

import (
	"slices"
	"testing"
	"time"

	"github.com/sha1n/mcp-repo-catalog/internal/domain"
)

func repo(name, language string, favorite bool) domain.Repository {
	meta := domain.EmptyMetadata()
	meta.Language = language
	return domain.Repository{
		ID:         "/src/" + name,
		Name:       name,
		Path:       "/src/" + name,
		GitInfo:    domain.MinimalGitInfo(),
		Metadata:   meta,
		Tags:       []string{},
		IsFavorite: favorite,
	}
}

func names(repos []domain.Repository) []string {
	out := make([]string, 0, len(repos))
	for _, r := range repos {
		out = append(out, r.Name)
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}

func intPtr(i int) *int {
	return &i
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		info domain.GitInfo
		want domain.GitState
	}{
		{"clean", domain.GitInfo{}, domain.GitStateClean},
		{"ahead", domain.GitInfo{AheadBehind: domain.AheadBehind{Ahead: 2}}, domain.GitStateAhead},
		{"behind wins over ahead", domain.GitInfo{AheadBehind: domain.AheadBehind{Ahead: 2, Behind: 1}}, domain.GitStateBehind},
		{"modified wins over behind", domain.GitInfo{HasUncommitted: true, AheadBehind: domain.AheadBehind{Behind: 3}}, domain.GitStateModified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.info); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApply_EmptyCriteriaIsIdentity(t *testing.T) {
	repos := []domain.Repository{repo("c", "Go", false), repo("a", "Rust", true), repo("b", "Go", false)}

	got := Apply(repos, domain.FilterCriteria{Languages: []string{}, FavoritesOnly: false})

	if !slices.Equal(names(got), []string{"c", "a", "b"}) {
		t.Errorf("Apply() = %v, want original order", names(got))
	}
}

func TestApply_LanguageAndFavorites(t *testing.T) {
	repos := []domain.Repository{repo("one", "Go", true), repo("two", "Go", false), repo("three", "Rust", false)}

	got := Apply(repos, domain.FilterCriteria{Languages: []string{"Go"}, FavoritesOnly: true})

	if !slices.Equal(names(got), []string{"one"}) {
		t.Errorf("Apply() = %v, want [one]", names(got))
	}
}

func TestMatches_Criteria(t *testing.T) {
	base := repo("svc", "Go", false)
	base.Tags = []string{"work", "api"}
	base.GitInfo.Owner = domain.ExternalOwner("acme", "https://github.com/acme")
	base.GitInfo.LastCommitDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	base.LastAccessed = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	base.Metadata.ProjectSize = domain.ProjectSize{TotalFiles: 120, CodeLines: 5000}
	base.Metadata.HasTests = true

	archived := base
	archived.IsArchived = true

	tests := []struct {
		name     string
		repo     domain.Repository
		criteria domain.FilterCriteria
		want     bool
	}{
		{"owner match", base, domain.FilterCriteria{Owners: []string{"acme"}}, true},
		{"owner self", base, domain.FilterCriteria{Owners: []string{"self"}}, false},
		{"git state", base, domain.FilterCriteria{GitStates: []domain.GitState{domain.GitStateClean}}, true},
		{"git state mismatch", base, domain.FilterCriteria{GitStates: []domain.GitState{domain.GitStateModified}}, false},
		{"any tag", base, domain.FilterCriteria{Tags: []string{"personal", "api"}}, true},
		{"no tag", base, domain.FilterCriteria{Tags: []string{"personal"}}, false},
		{"exclude archived", archived, domain.FilterCriteria{ExcludeArchived: true}, false},
		{"archived allowed", archived, domain.FilterCriteria{}, true},
		{"accessed in range", base, domain.FilterCriteria{DateRange: &domain.DateRange{
			Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		}}, true},
		{"accessed before range", base, domain.FilterCriteria{DateRange: &domain.DateRange{
			Start: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		}}, false},
		{"commit date ignored", base, domain.FilterCriteria{DateRange: &domain.DateRange{
			End: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		}}, false},
		{"open ended size", base, domain.FilterCriteria{SizeRange: &domain.SizeRange{MinFiles: 100}}, true},
		{"too many files", base, domain.FilterCriteria{SizeRange: &domain.SizeRange{MinFiles: 1, MaxFiles: 50}}, false},
		{"line bounds", base, domain.FilterCriteria{SizeRange: &domain.SizeRange{MinLines: intPtr(1000), MaxLines: intPtr(6000)}}, true},
		{"too few lines", base, domain.FilterCriteria{SizeRange: &domain.SizeRange{MinLines: intPtr(9000)}}, false},
		{"has tests", base, domain.FilterCriteria{HasTests: boolPtr(true)}, true},
		{"has ci", base, domain.FilterCriteria{HasCICD: boolPtr(true)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.repo, tt.criteria); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActivityDate_FallsBackToUpdatedAt(t *testing.T) {
	r := repo("x", "Go", false)
	r.UpdatedAt = time.Date(2023, 3, 3, 0, 0, 0, 0, time.UTC)

	if got := ActivityDate(r); !got.Equal(r.UpdatedAt) {
		t.Errorf("ActivityDate() = %v, want %v", got, r.UpdatedAt)
	}

	r.GitInfo.LastCommitDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := ActivityDate(r); !got.Equal(r.GitInfo.LastCommitDate) {
		t.Errorf("ActivityDate() = %v, want %v", got, r.GitInfo.LastCommitDate)
	}
}

func TestEvaluate(t *testing.T) {
	r := repo("Repo-Catalog", "Go", false)
	r.AccessCount = 7
	r.Metadata.ProjectSize.TotalFiles = 40
	r.Metadata.HasCICD = true

	tests := []struct {
		name string
		cond domain.CustomCondition
		want bool
	}{
		{"equals string", domain.CustomCondition{Field: "language", Operator: domain.OpEquals, Value: "Go"}, true},
		{"equals case sensitive by default", domain.CustomCondition{Field: "language", Operator: domain.OpEquals, Value: "go"}, false},
		{"equals case insensitive", domain.CustomCondition{Field: "language", Operator: domain.OpEquals, Value: "go", CaseSensitive: boolPtr(false)}, true},
		{"equals number from json", domain.CustomCondition{Field: "accessCount", Operator: domain.OpEquals, Value: float64(7)}, true},
		{"equals bool", domain.CustomCondition{Field: "hasCicd", Operator: domain.OpEquals, Value: true}, true},
		{"equals type mismatch", domain.CustomCondition{Field: "hasCicd", Operator: domain.OpEquals, Value: "true"}, false},
		{"contains", domain.CustomCondition{Field: "name", Operator: domain.OpContains, Value: "Cat"}, true},
		{"contains insensitive", domain.CustomCondition{Field: "name", Operator: domain.OpContains, Value: "cat", CaseSensitive: boolPtr(false)}, true},
		{"contains on number", domain.CustomCondition{Field: "accessCount", Operator: domain.OpContains, Value: "7"}, false},
		{"starts with", domain.CustomCondition{Field: "name", Operator: domain.OpStartsWith, Value: "Repo"}, true},
		{"ends with", domain.CustomCondition{Field: "name", Operator: domain.OpEndsWith, Value: "log"}, true},
		{"regex", domain.CustomCondition{Field: "name", Operator: domain.OpRegex, Value: `^repo-\w+$`, CaseSensitive: boolPtr(false)}, true},
		{"regex case sensitive", domain.CustomCondition{Field: "name", Operator: domain.OpRegex, Value: `^repo-`}, false},
		{"invalid regex", domain.CustomCondition{Field: "name", Operator: domain.OpRegex, Value: `([`}, false},
		{"greater than", domain.CustomCondition{Field: "totalFiles", Operator: domain.OpGreaterThan, Value: 39}, true},
		{"less than numeric string", domain.CustomCondition{Field: "accessCount", Operator: domain.OpLessThan, Value: "10"}, true},
		{"greater than on string", domain.CustomCondition{Field: "name", Operator: domain.OpGreaterThan, Value: 1}, false},
		{"greater than non numeric operand", domain.CustomCondition{Field: "accessCount", Operator: domain.OpGreaterThan, Value: "many"}, false},
		{"unknown field", domain.CustomCondition{Field: "stars", Operator: domain.OpEquals, Value: 1}, false},
		{"unknown operator", domain.CustomCondition{Field: "name", Operator: "like", Value: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(r, tt.cond); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatches_CustomConditionsAreConjunctive(t *testing.T) {
	r := repo("api", "Go", false)
	criteria := domain.FilterCriteria{CustomConditions: []domain.CustomCondition{
		{Field: "language", Operator: domain.OpEquals, Value: "Go"},
		{Field: "name", Operator: domain.OpStartsWith, Value: "web"},
	}}

	if Matches(r, criteria) {
		t.Error("Matches() = true, want false when one condition fails")
	}
}
