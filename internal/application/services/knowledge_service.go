package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	"github.com/vialsmoore/medtimeline/backend/internal/domain/repositories"
	apperrors "github.com/vialsmoore/medtimeline/backend/pkg/errors"
)

// KnowledgeService is the write and read surface of the event store. It
// keeps the relational store and the search index in step: every upsert
// replaces the stored event by source id and reindexes it.
type KnowledgeService struct {
	events repositories.EventRepository
	search repositories.EventSearchRepository
	logger zerolog.Logger
}

// NewKnowledgeService creates a new knowledge service
func NewKnowledgeService(
	events repositories.EventRepository,
	search repositories.EventSearchRepository,
	logger zerolog.Logger,
) *KnowledgeService {
	return &KnowledgeService{
		events: events,
		search: search,
		logger: logger,
	}
}

// Upsert stores the event, replacing any prior event with the same source
// id, and refreshes the search index. An index failure is logged but does
// not fail the upsert; the relational store is the source of truth.
func (s *KnowledgeService) Upsert(ctx context.Context, event *entities.Event) error {
	if event.SourceID == "" {
		return apperrors.NewValidationError("event has no source id")
	}

	if err := s.events.ReplaceBySource(ctx, event); err != nil {
		return err
	}

	if err := s.search.Index(ctx, event); err != nil {
		s.logger.Warn().
			Err(err).
			Str("event_id", event.ID).
			Str("source_id", event.SourceID).
			Msg("failed to index event")
	}

	return nil
}

// Get retrieves one event with all its children
func (s *KnowledgeService) Get(ctx context.Context, id string) (*entities.Event, error) {
	return s.events.GetByID(ctx, id)
}

// GetBySourceID retrieves the event built from a given source record
func (s *KnowledgeService) GetBySourceID(ctx context.Context, sourceID string) (*entities.Event, error) {
	return s.events.GetBySourceID(ctx, sourceID)
}

// Query lists events matching structured filters in chronological order
func (s *KnowledgeService) Query(ctx context.Context, filter repositories.EventFilter) ([]*entities.Event, error) {
	return s.events.Query(ctx, filter)
}

// Search runs a full-text query over titles, content and extracted
// attachment text, returning hydrated events in relevance order
func (s *KnowledgeService) Search(ctx context.Context, query string, limit int) ([]*entities.Event, error) {
	if query == "" {
		return []*entities.Event{}, nil
	}

	ids, err := s.search.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*entities.Event{}, nil
	}

	return s.events.GetByIDs(ctx, ids)
}

// Delete removes an event from the store and the index
func (s *KnowledgeService) Delete(ctx context.Context, id string) error {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.events.DeleteBySourceID(ctx, event.SourceID); err != nil {
		return err
	}
	if err := s.search.Delete(ctx, event.ID); err != nil {
		s.logger.Warn().Err(err).Str("event_id", event.ID).Msg("failed to deindex event")
	}
	return nil
}
