package repositories

import (
	"context"
	"time"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
)

// EventRepository defines the interface for event persistence
type EventRepository interface {
	// ReplaceBySource atomically replaces the event stored for the given
	// source record, including its attachments, classifications and
	// entity references. Readers never observe a half-replaced event.
	ReplaceBySource(ctx context.Context, event *entities.Event) error

	// GetByID retrieves an event by ID
	GetByID(ctx context.Context, id string) (*entities.Event, error)

	// GetBySourceID retrieves an event by its source provenance ID
	GetBySourceID(ctx context.Context, sourceID string) (*entities.Event, error)

	// GetByIDs retrieves multiple events preserving the input order
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Event, error)

	// Query retrieves events matching all of the given filters,
	// ordered by date ascending (undated events last)
	Query(ctx context.Context, filter EventFilter) ([]*entities.Event, error)

	// DeleteBySourceID removes the event for a source record together
	// with its children
	DeleteBySourceID(ctx context.Context, sourceID string) error

	// RepointEntityRefs redirects stored entity references from one
	// canonical entity to another (used by entity merges)
	RepointEntityRefs(ctx context.Context, fromEntityID, toEntityID string) error
}

// EventSearchRepository defines the interface for the external text
// similarity index (e.g. Typesense)
type EventSearchRepository interface {
	// Index upserts an event document including attachment text
	Index(ctx context.Context, event *entities.Event) error

	// Search returns event IDs ranked by descending relevance,
	// ties broken by recency
	Search(ctx context.Context, query string, limit int) ([]string, error)

	// Delete removes an event document from the index
	Delete(ctx context.Context, id string) error
}

// EventFilter defines composable filters for querying events.
// All set filters apply conjunctively.
type EventFilter struct {
	From          *time.Time
	To            *time.Time
	Specialty     string
	CategoryLabel string
	EntityID      string
	TextSubstring string
	Limit         int
	Offset        int
}
