package domain

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"
)

// UnknownLanguage is reported when no source file could be attributed to a language.
const UnknownLanguage = "Unknown"

// Repository is a single discovered version-controlled project.
// Path is the identity key; ID is the normalized path with forward slashes.
type Repository struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Path         string             `json:"path"`
	DisplayName  string             `json:"displayName,omitempty"`
	GitInfo      GitInfo            `json:"gitInfo"`
	Metadata     RepositoryMetadata `json:"metadata"`
	Tags         []string           `json:"tags"`
	IsFavorite   bool               `json:"isFavorite"`
	IsArchived   bool               `json:"isArchived"`
	LastAccessed time.Time          `json:"lastAccessed"`
	AccessCount  int                `json:"accessCount"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	LastScanAt   time.Time          `json:"lastScanAt"`
}

// NormalizePath cleans a directory path and converts it to the catalog key format.
func NormalizePath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// RepositoryID derives the stable identifier for a repository path.
func RepositoryID(path string) string {
	return NormalizePath(path)
}

// Clone returns a deep copy so callers cannot mutate catalog-owned slices.
func (r Repository) Clone() Repository {
	c := r
	c.Tags = append([]string(nil), r.Tags...)
	c.Metadata.Databases = append([]string(nil), r.Metadata.Databases...)
	c.Metadata.Dependencies = append([]Dependency(nil), r.Metadata.Dependencies...)
	c.Metadata.Sections = append([]string(nil), r.Metadata.Sections...)
	return c
}

// HasTag reports whether the repository carries the given tag.
func (r Repository) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// UpstreamStatus describes whether ahead/behind counts are backed by a tracking branch.
type UpstreamStatus string

const (
	UpstreamTracking UpstreamStatus = "tracking"
	UpstreamNone     UpstreamStatus = "none"
	UpstreamUnknown  UpstreamStatus = "unknown"
)

// AheadBehind is the commit divergence between the local branch and its upstream.
// Counts are zero whenever Upstream is not UpstreamTracking.
type AheadBehind struct {
	Ahead    int            `json:"ahead"`
	Behind   int            `json:"behind"`
	Upstream UpstreamStatus `json:"upstream,omitempty"`
}

// GitInfo holds best-effort version control metadata.
type GitInfo struct {
	RemoteURL      string      `json:"remoteUrl,omitempty"`
	CurrentBranch  string      `json:"currentBranch"`
	TotalBranches  int         `json:"totalBranches"`
	LastCommitDate time.Time   `json:"lastCommitDate"`
	HasUncommitted bool        `json:"hasUncommitted"`
	AheadBehind    AheadBehind `json:"aheadBehind"`
	IsFork         bool        `json:"isFork"`
	Owner          Owner       `json:"owner"`
}

// MinimalGitInfo is returned when metadata could not be extracted at all.
func MinimalGitInfo() GitInfo {
	return GitInfo{
		CurrentBranch:  "unknown",
		LastCommitDate: time.Unix(0, 0).UTC(),
		AheadBehind:    AheadBehind{Upstream: UpstreamUnknown},
		Owner:          SelfOwner(),
	}
}

// OwnerKind tags the Owner variant.
type OwnerKind int

const (
	OwnerSelf OwnerKind = iota
	OwnerExternal
)

// Owner is either the local user ("self") or a named external account.
type Owner struct {
	Kind   OwnerKind
	Name   string
	URL    string
	Avatar string
}

// SelfOwner returns the "self" owner variant.
func SelfOwner() Owner {
	return Owner{Kind: OwnerSelf}
}

// ExternalOwner returns a named external owner.
func ExternalOwner(name, url string) Owner {
	return Owner{Kind: OwnerExternal, Name: name, URL: url}
}

// IsSelf reports whether the owner is the local user.
func (o Owner) IsSelf() bool {
	return o.Kind == OwnerSelf
}

// Label returns "self" or the external owner's name.
func (o Owner) Label() string {
	if o.IsSelf() {
		return "self"
	}
	return o.Name
}

type externalOwnerJSON struct {
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// MarshalJSON encodes self as the string "self" and external owners as an object.
func (o Owner) MarshalJSON() ([]byte, error) {
	if o.IsSelf() {
		return json.Marshal("self")
	}
	return json.Marshal(externalOwnerJSON{Name: o.Name, URL: o.URL, Avatar: o.Avatar})
}

// UnmarshalJSON accepts both encodings produced by MarshalJSON.
func (o *Owner) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "self" {
			*o = SelfOwner()
		} else {
			*o = ExternalOwner(s, "")
		}
		return nil
	}

	var ext externalOwnerJSON
	if err := json.Unmarshal(data, &ext); err != nil {
		return err
	}
	*o = Owner{Kind: OwnerExternal, Name: ext.Name, URL: ext.URL, Avatar: ext.Avatar}
	return nil
}

// DependencyKind classifies how a dependency is used.
type DependencyKind string

const (
	DependencyRuntime     DependencyKind = "runtime"
	DependencyDevelopment DependencyKind = "development"
	DependencyPeer        DependencyKind = "peer"
	DependencyOptional    DependencyKind = "optional"
)

// Dependency is a single manifest-declared package.
type Dependency struct {
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Kind    DependencyKind `json:"type"`
}

// ProjectSize holds file count and byte metrics from a bounded walk.
type ProjectSize struct {
	TotalFiles int   `json:"totalFiles"`
	TotalSize  int64 `json:"totalSize"`
	CodeFiles  int   `json:"codeFiles"`
	CodeSize   int64 `json:"codeSize"`
	CodeLines  int   `json:"codeLines,omitempty"`
}

// ReadmeQuality is a 0-10 score with its contributing flags.
type ReadmeQuality struct {
	Exists          bool `json:"exists"`
	HasDescription  bool `json:"hasDescription"`
	HasInstallation bool `json:"hasInstallation"`
	HasUsage        bool `json:"hasUsage"`
	Score           int  `json:"score"`
}

// RepositoryMetadata is the result of analyzing a repository's file tree.
type RepositoryMetadata struct {
	Language     string        `json:"language"`
	Runtime      string        `json:"runtime,omitempty"`
	Databases    []string      `json:"databases"`
	Dependencies []Dependency  `json:"dependencies"`
	ProjectSize  ProjectSize   `json:"projectSize"`
	Readme       ReadmeQuality `json:"readmeQuality"`
	Sections     []string      `json:"readmeSections,omitempty"`
	HasTests     bool          `json:"hasTests"`
	HasCICD      bool          `json:"hasCicd"`
	License      string        `json:"license,omitempty"`
}

// EmptyMetadata is returned when analysis fails entirely.
func EmptyMetadata() RepositoryMetadata {
	return RepositoryMetadata{
		Language:     UnknownLanguage,
		Databases:    []string{},
		Dependencies: []Dependency{},
	}
}

// DependencyNames returns the dependency names in declaration order.
func (m RepositoryMetadata) DependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies))
	for _, d := range m.Dependencies {
		names = append(names, d.Name)
	}
	return names
}

// DisplayNameOrName returns DisplayName when set.
func (r Repository) DisplayNameOrName() string {
	if strings.TrimSpace(r.DisplayName) != "" {
		return r.DisplayName
	}
	return r.Name
}
