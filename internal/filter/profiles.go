package filter

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sha1n/mcp-repo-catalog/internal/domain"
	"github.com/sha1n/mcp-repo-catalog/internal/store"
)

const (
	// ExportVersion is the profile export document version
	ExportVersion = "1.0.0"

	// ExportCompatibilityVersion is the oldest reader able to import an export
	ExportCompatibilityVersion = "0.1.0"

	exportedBy = "repocat"
)

var (
	// ErrProfileNotFound is returned for unknown profile IDs
	ErrProfileNotFound = errors.New("filter profile not found")

	// ErrInvalidProfile is returned when a profile has no name
	ErrInvalidProfile = errors.New("filter profile name is required")
)

// ProfileState is the lifecycle state of a profile.
type ProfileState string

const (
	ProfileDraft    ProfileState = "draft"
	ProfileActive   ProfileState = "active"
	ProfileInactive ProfileState = "inactive"
)

// Profile is a named, persisted FilterCriteria bundle.
type Profile struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Icon        string                `json:"icon,omitempty"`
	Color       string                `json:"color,omitempty"`
	Filters     domain.FilterCriteria `json:"filters"`
	State       ProfileState          `json:"state"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
	Tags        []string              `json:"tags"`
}

// IsActive reports whether the profile is the active one.
func (p Profile) IsActive() bool {
	return p.State == ProfileActive
}

func (p Profile) clone() Profile {
	p.Tags = append([]string{}, p.Tags...)
	return p
}

// ProfileOptions are the optional attributes of a new profile.
type ProfileOptions struct {
	Description string
	Icon        string
	Color       string
	Tags        []string
}

// ProfileUpdate changes the non-nil fields of a profile.
type ProfileUpdate struct {
	Name        *string
	Description *string
	Icon        *string
	Color       *string
	Filters     *domain.FilterCriteria
	Tags        []string
}

// ProfileExport is the shareable form of a profile.
type ProfileExport struct {
	Version  string         `json:"version"`
	Profile  ExportedFields `json:"profile"`
	Metadata ExportMetadata `json:"metadata"`
}

// ExportedFields are the profile attributes carried by an export.
type ExportedFields struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Icon        string                `json:"icon,omitempty"`
	Color       string                `json:"color,omitempty"`
	Filters     domain.FilterCriteria `json:"filters"`
	Tags        []string              `json:"tags"`
}

// ExportMetadata describes where an export came from.
type ExportMetadata struct {
	ExportedBy           string    `json:"exportedBy"`
	ExportedAt           time.Time `json:"exportedAt"`
	CompatibilityVersion string    `json:"compatibilityVersion"`
}

// ProfileStats summarizes the repositories a profile matches.
type ProfileStats struct {
	TotalRepositories    int            `json:"totalRepositories"`
	LanguageDistribution map[string]int `json:"languageDistribution"`
	LastActivity         time.Time      `json:"lastActivity"`
	MatchedRepositoryIDs []string       `json:"matchedRepositoryIds"`
}

// profileRecord is the persisted form of all profiles.
type profileRecord struct {
	Profiles        map[string]Profile `json:"profiles"`
	ActiveProfileID string             `json:"activeProfileId,omitempty"`
	LastModified    time.Time          `json:"lastModified"`
}

// ProfileManager owns saved profiles. At most one profile is active at a time.
type ProfileManager struct {
	kv       store.KeyValueStore
	mu       sync.RWMutex
	profiles map[string]Profile
	activeID string
	now      func() time.Time
	newID    func() string
}

// NewProfileManager loads profiles from kv. An unreadable record starts empty.
func NewProfileManager(kv store.KeyValueStore) *ProfileManager {
	pm := &ProfileManager{
		kv:       kv,
		profiles: make(map[string]Profile),
		now:      time.Now,
		newID:    uuid.NewString,
	}

	var rec profileRecord
	found, err := kv.Get(store.FilterProfilesKey, &rec)
	if err != nil {
		slog.Warn("Failed to load filter profiles", "error", err)
		return pm
	}
	if !found {
		return pm
	}

	for id, p := range rec.Profiles {
		p.ID = id
		if p.State == ProfileActive && id != rec.ActiveProfileID {
			p.State = ProfileInactive
		}
		pm.profiles[id] = p
	}
	if _, ok := pm.profiles[rec.ActiveProfileID]; ok {
		pm.activeID = rec.ActiveProfileID
	}
	slog.Debug("Loaded filter profiles", "count", len(pm.profiles), "active", pm.activeID)
	return pm
}

// Create stores a new draft profile.
func (pm *ProfileManager) Create(name string, filters domain.FilterCriteria, opts ProfileOptions) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, ErrInvalidProfile
	}

	now := pm.now()
	p := Profile{
		ID:          pm.newID(),
		Name:        name,
		Description: opts.Description,
		Icon:        opts.Icon,
		Color:       opts.Color,
		Filters:     filters,
		State:       ProfileDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tags:        append([]string{}, opts.Tags...),
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if err := pm.commit(func() { pm.profiles[p.ID] = p }); err != nil {
		return Profile{}, err
	}
	return p.clone(), nil
}

// Update changes an existing profile. The ID and lifecycle state are preserved.
func (pm *ProfileManager) Update(id string, u ProfileUpdate) (Profile, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	p, ok := pm.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}

	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return Profile{}, ErrInvalidProfile
		}
		p.Name = name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Icon != nil {
		p.Icon = *u.Icon
	}
	if u.Color != nil {
		p.Color = *u.Color
	}
	if u.Filters != nil {
		p.Filters = *u.Filters
	}
	if u.Tags != nil {
		p.Tags = append([]string{}, u.Tags...)
	}
	p.UpdatedAt = pm.now()

	if err := pm.commit(func() { pm.profiles[id] = p }); err != nil {
		return Profile{}, err
	}
	return p.clone(), nil
}

// Delete removes a profile. Deleting the active profile leaves no profile active.
func (pm *ProfileManager) Delete(id string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, ok := pm.profiles[id]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return pm.commit(func() {
		delete(pm.profiles, id)
		if pm.activeID == id {
			pm.activeID = ""
		}
	})
}

// Get returns a profile by ID.
func (pm *ProfileManager) Get(id string) (Profile, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	p, ok := pm.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return p.clone(), nil
}

// List returns all profiles ordered by creation time, then name.
func (pm *ProfileManager) List() []Profile {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	out := make([]Profile, 0, len(pm.profiles))
	for _, p := range pm.profiles {
		out = append(out, p.clone())
	}
	slices.SortFunc(out, func(a, b Profile) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Apply activates a profile, deactivating the previous one, and returns the
// repositories it matches.
func (pm *ProfileManager) Apply(id string, repos []domain.Repository) ([]domain.Repository, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	p, ok := pm.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}

	err := pm.commit(func() {
		if prev, ok := pm.profiles[pm.activeID]; ok && pm.activeID != id {
			prev.State = ProfileInactive
			pm.profiles[prev.ID] = prev
		}
		p.State = ProfileActive
		pm.profiles[id] = p
		pm.activeID = id
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("Applied filter profile", "id", id, "name", p.Name)
	return Apply(repos, p.Filters), nil
}

// Clear deactivates the active profile, if any.
func (pm *ProfileManager) Clear() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	p, ok := pm.profiles[pm.activeID]
	if !ok {
		return nil
	}
	return pm.commit(func() {
		p.State = ProfileInactive
		pm.profiles[p.ID] = p
		pm.activeID = ""
	})
}

// Current returns the active profile.
func (pm *ProfileManager) Current() (Profile, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	p, ok := pm.profiles[pm.activeID]
	if !ok {
		return Profile{}, false
	}
	return p.clone(), true
}

// Export returns the shareable form of a profile.
func (pm *ProfileManager) Export(id string) (ProfileExport, error) {
	p, err := pm.Get(id)
	if err != nil {
		return ProfileExport{}, err
	}

	return ProfileExport{
		Version: ExportVersion,
		Profile: ExportedFields{
			Name:        p.Name,
			Description: p.Description,
			Icon:        p.Icon,
			Color:       p.Color,
			Filters:     p.Filters,
			Tags:        p.Tags,
		},
		Metadata: ExportMetadata{
			ExportedBy:           exportedBy,
			ExportedAt:           pm.now(),
			CompatibilityVersion: ExportCompatibilityVersion,
		},
	}, nil
}

// Import stores an exported profile under a new ID as a draft.
func (pm *ProfileManager) Import(data ProfileExport) (Profile, error) {
	return pm.Create(data.Profile.Name, data.Profile.Filters, ProfileOptions{
		Description: data.Profile.Description,
		Icon:        data.Profile.Icon,
		Color:       data.Profile.Color,
		Tags:        data.Profile.Tags,
	})
}

// Statistics summarizes the repositories matched by a profile.
func (pm *ProfileManager) Statistics(id string, repos []domain.Repository) (ProfileStats, error) {
	p, err := pm.Get(id)
	if err != nil {
		return ProfileStats{}, err
	}

	matched := Apply(repos, p.Filters)
	stats := ProfileStats{
		TotalRepositories:    len(matched),
		LanguageDistribution: make(map[string]int),
		LastActivity:         time.Unix(0, 0).UTC(),
		MatchedRepositoryIDs: make([]string, 0, len(matched)),
	}
	for _, r := range matched {
		stats.LanguageDistribution[r.Metadata.Language]++
		if r.LastAccessed.After(stats.LastActivity) {
			stats.LastActivity = r.LastAccessed
		}
		stats.MatchedRepositoryIDs = append(stats.MatchedRepositoryIDs, r.ID)
	}
	return stats, nil
}

// commit applies change and persists the result. The previous state is restored
// when the write fails. Must be called with mu held.
func (pm *ProfileManager) commit(change func()) error {
	profiles, activeID := maps.Clone(pm.profiles), pm.activeID
	change()
	if err := pm.save(); err != nil {
		pm.profiles, pm.activeID = profiles, activeID
		return err
	}
	return nil
}

// save must be called with mu held.
func (pm *ProfileManager) save() error {
	rec := profileRecord{
		Profiles:        pm.profiles,
		ActiveProfileID: pm.activeID,
		LastModified:    pm.now(),
	}
	if err := pm.kv.Set(store.FilterProfilesKey, rec); err != nil {
		return fmt.Errorf("failed to save filter profiles: %w", err)
	}
	return nil
}
