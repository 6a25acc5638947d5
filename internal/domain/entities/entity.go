package entities

import (
	"time"
)

// EntityRole distinguishes practitioners from facilities
type EntityRole string

const (
	// EntityRolePractitioner covers doctors, nurses, therapists and other personnel
	EntityRolePractitioner EntityRole = "practitioner"

	// EntityRoleFacility covers hospitals, clinics, wards and other institutions
	EntityRoleFacility EntityRole = "facility"
)

// UnknownEntityName is the display name of the per-role sentinel entity
// that unresolvable mentions fall back to
const UnknownEntityName = "Unknown"

// Entity is the canonical, deduplicated identity a free-text mention
// resolves to. Entities are merged, never deleted: a retired entity keeps
// a MergedInto redirect so old ids stay resolvable.
type Entity struct {
	ID          string     `json:"id" db:"id"`
	DisplayName string     `json:"display_name" db:"display_name"`
	Role        EntityRole `json:"role" db:"role"`
	Aliases     []string   `json:"aliases" db:"-"`
	Type        string     `json:"type,omitempty" db:"entity_type"`
	Specialty   string     `json:"specialty,omitempty" db:"specialty"`
	MergedInto  string     `json:"merged_into,omitempty" db:"merged_into"`
	LastUsedAt  time.Time  `json:"last_used_at" db:"last_used_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Retired reports whether this entity was merged into another
func (e *Entity) Retired() bool {
	return e.MergedInto != ""
}

// EntityReference links an event to the canonical entity one of its
// mentions resolved to. Every reference resolves to exactly one entity;
// unresolved mentions point at the Unknown sentinel, never at nothing.
type EntityReference struct {
	EntityID    string     `json:"entity_id" db:"entity_id"`
	Role        EntityRole `json:"role" db:"role"`
	Name        string     `json:"name" db:"name"`
	MentionType string     `json:"mention_type,omitempty" db:"mention_type"`
	Specialty   string     `json:"specialty,omitempty" db:"specialty"`
}
