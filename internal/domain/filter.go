package domain

import "time"

// GitState is the single-valued classification of a working tree used by filters.
type GitState string

const (
	GitStateClean    GitState = "clean"
	GitStateModified GitState = "modified"
	GitStateBehind   GitState = "behind"
	GitStateAhead    GitState = "ahead"
)

// DateRange is an inclusive time window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SizeRange bounds the file count and, optionally, the code line count.
type SizeRange struct {
	MinFiles int  `json:"minFiles"`
	MaxFiles int  `json:"maxFiles"`
	MinLines *int `json:"minLines,omitempty"`
	MaxLines *int `json:"maxLines,omitempty"`
}

// ConditionOperator is the comparison applied by a CustomCondition.
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpContains    ConditionOperator = "contains"
	OpStartsWith  ConditionOperator = "startsWith"
	OpEndsWith    ConditionOperator = "endsWith"
	OpRegex       ConditionOperator = "regex"
	OpGreaterThan ConditionOperator = "greaterThan"
	OpLessThan    ConditionOperator = "lessThan"
)

// CustomCondition is a caller-authored predicate over a resolvable repository field.
// Value holds a string, a number or a bool. A nil CaseSensitive means case-sensitive.
type CustomCondition struct {
	Field         string            `json:"field"`
	Operator      ConditionOperator `json:"operator"`
	Value         any               `json:"value"`
	CaseSensitive *bool             `json:"caseSensitive,omitempty"`
}

// FilterCriteria is a conjunction of independent predicates.
// Empty allow-lists and nil optionals impose no constraint.
type FilterCriteria struct {
	Languages        []string          `json:"languages,omitempty"`
	Owners           []string          `json:"owners,omitempty"`
	GitStates        []GitState        `json:"gitStates,omitempty"`
	DateRange        *DateRange        `json:"dateRange,omitempty"`
	SizeRange        *SizeRange        `json:"sizeRange,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	FavoritesOnly    bool              `json:"favoritesOnly,omitempty"`
	ExcludeArchived  bool              `json:"excludeArchived,omitempty"`
	HasTests         *bool             `json:"hasTests,omitempty"`
	HasCICD          *bool             `json:"hasCicd,omitempty"`
	CustomConditions []CustomCondition `json:"customConditions,omitempty"`
}

// SortField names a sortable repository attribute.
type SortField string

const (
	SortByName         SortField = "name"
	SortByLanguage     SortField = "language"
	SortByLastCommit   SortField = "lastCommit"
	SortByLastAccessed SortField = "lastAccessed"
	SortByAccessCount  SortField = "accessCount"
	SortByCreatedAt    SortField = "createdAt"
	SortByUpdatedAt    SortField = "updatedAt"
	SortBySize         SortField = "size"
	SortByFavorite     SortField = "favorite"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOption selects the ordering of a listing.
type SortOption struct {
	Field SortField `json:"field"`
	Order SortOrder `json:"order"`
}

// ListFilter carries the quick filters offered by list views, applied on top of FilterCriteria.
// Tri-state fields are ignored when nil.
type ListFilter struct {
	Criteria       FilterCriteria `json:"criteria"`
	SearchTerm     string         `json:"searchTerm,omitempty"`
	Language       string         `json:"language,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	IsFavorite     *bool          `json:"isFavorite,omitempty"`
	IsArchived     *bool          `json:"isArchived,omitempty"`
	HasUncommitted *bool          `json:"hasUncommitted,omitempty"`
	CommitRange    *DateRange     `json:"commitRange,omitempty"`
}
