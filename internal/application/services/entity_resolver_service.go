package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	"github.com/vialsmoore/medtimeline/backend/internal/domain/repositories"
	"github.com/vialsmoore/medtimeline/backend/internal/taxonomy"
	apperrors "github.com/vialsmoore/medtimeline/backend/pkg/errors"
)

// EntityResolverService maps raw practitioner and facility mentions to
// canonical entities. All resolution and curation goes through a single
// mutex so concurrent ingestion workers cannot create duplicate entities
// for the same name.
type EntityResolverService struct {
	repo      repositories.EntityRepository
	events    repositories.EventRepository
	logger    zerolog.Logger
	threshold float64

	mu     sync.Mutex
	byID   map[string]*entities.Entity
	loaded bool
}

// NewEntityResolverService creates a new entity resolver service
func NewEntityResolverService(
	repo repositories.EntityRepository,
	events repositories.EventRepository,
	logger zerolog.Logger,
	fuzzyThreshold float64,
) *EntityResolverService {
	if fuzzyThreshold <= 0 || fuzzyThreshold > 1 {
		fuzzyThreshold = 0.85
	}
	return &EntityResolverService{
		repo:      repo,
		events:    events,
		logger:    logger,
		threshold: fuzzyThreshold,
		byID:      map[string]*entities.Entity{},
	}
}

// Resolve returns the canonical entity for a raw mention, creating one when
// no existing entity matches. A blank mention resolves to the role's
// Unknown sentinel.
func (s *EntityResolverService) Resolve(ctx context.Context, rawName string, role entities.EntityRole) (*entities.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	return s.resolveLocked(ctx, rawName, role)
}

func (s *EntityResolverService) resolveLocked(ctx context.Context, rawName string, role entities.EntityRole) (*entities.Entity, error) {
	name := strings.TrimSpace(rawName)
	normalized := taxonomy.Normalize(name)
	if normalized == "" {
		return s.sentinel(ctx, role)
	}

	if entity := s.matchExact(normalized, role); entity != nil {
		return s.touch(ctx, entity, name)
	}
	if entity := s.matchFuzzy(normalized, role); entity != nil {
		return s.touch(ctx, entity, name)
	}

	return s.create(ctx, name, role)
}

// Reindex re-resolves every stored entity reference against the current
// entity set. Manual corrections (rename, merge, role reassignment) only
// affect future resolutions; running a reindex brings already-stored
// references in line. Returns the number of events rewritten.
func (s *EntityResolverService) Reindex(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return 0, err
	}

	events, err := s.events.Query(ctx, repositories.EventFilter{})
	if err != nil {
		return 0, err
	}

	rewritten := 0
	for _, event := range events {
		changed := false
		for i := range event.EntityRefs {
			ref := &event.EntityRefs[i]
			entity, err := s.resolveLocked(ctx, ref.Name, ref.Role)
			if err != nil {
				return rewritten, err
			}
			if entity.ID == ref.EntityID && entity.DisplayName == ref.Name {
				continue
			}
			ref.EntityID = entity.ID
			ref.Name = entity.DisplayName
			if entity.Specialty != "" {
				ref.Specialty = entity.Specialty
			}
			changed = true
		}
		if !changed {
			continue
		}
		if err := s.events.ReplaceBySource(ctx, event); err != nil {
			return rewritten, err
		}
		rewritten++
	}

	s.logger.Info().
		Int("events_rewritten", rewritten).
		Msg("entity reference reindex complete")

	return rewritten, nil
}

// Merge retires one entity into another and repoints stored event
// references. Both entities must be active, distinct and share a role.
func (s *EntityResolverService) Merge(ctx context.Context, survivorID, retiredID string) (*entities.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	if survivorID == retiredID {
		return nil, apperrors.NewConflictError("cannot merge an entity into itself")
	}

	survivor, err := s.mergeTarget(survivorID)
	if err != nil {
		return nil, err
	}
	retired, err := s.mergeTarget(retiredID)
	if err != nil {
		return nil, err
	}
	if survivor.Role != retired.Role {
		return nil, apperrors.NewConflictError(fmt.Sprintf(
			"cannot merge %s entity into %s entity", retired.Role, survivor.Role))
	}
	if survivor.DisplayName == entities.UnknownEntityName || retired.DisplayName == entities.UnknownEntityName {
		return nil, apperrors.NewConflictError("cannot merge the Unknown sentinel")
	}

	now := time.Now().UTC()
	survivor.Aliases = mergeAliases(survivor.Aliases, retired.Aliases)
	survivor.UpdatedAt = now
	retired.MergedInto = survivor.ID
	retired.UpdatedAt = now

	if err := s.repo.Update(ctx, survivor); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, retired); err != nil {
		return nil, err
	}
	if err := s.events.RepointEntityRefs(ctx, retired.ID, survivor.ID); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("survivor_id", survivor.ID).
		Str("retired_id", retired.ID).
		Msg("merged entities")

	return survivor, nil
}

// Rename changes an entity's display name, keeping the old name as an alias
// so existing mentions still resolve to it
func (s *EntityResolverService) Rename(ctx context.Context, id, newName string) (*entities.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	entity, err := s.active(id)
	if err != nil {
		return nil, err
	}
	if entity.DisplayName == entities.UnknownEntityName {
		return nil, apperrors.NewConflictError("cannot rename the Unknown sentinel")
	}

	name := strings.TrimSpace(newName)
	if name == "" {
		return nil, apperrors.NewValidationError("new name must not be empty")
	}

	entity.Aliases = mergeAliases(entity.Aliases, []string{entity.DisplayName, name})
	entity.DisplayName = name
	entity.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// ReassignRole moves an entity between the practitioner and facility roles
func (s *EntityResolverService) ReassignRole(ctx context.Context, id string, role entities.EntityRole) (*entities.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	entity, err := s.active(id)
	if err != nil {
		return nil, err
	}
	if entity.DisplayName == entities.UnknownEntityName {
		return nil, apperrors.NewConflictError("cannot reassign the Unknown sentinel")
	}
	if role != entities.EntityRolePractitioner && role != entities.EntityRoleFacility {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown entity role %q", role))
	}

	entity.Role = role
	entity.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// ListByRole returns the active entities of a role for curation surfaces
func (s *EntityResolverService) ListByRole(ctx context.Context, role entities.EntityRole) ([]*entities.Entity, error) {
	return s.repo.ListByRole(ctx, role)
}

func (s *EntityResolverService) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, entity := range all {
		s.byID[entity.ID] = entity
	}
	s.loaded = true
	return nil
}

// sentinel returns the role's Unknown entity, creating it on first use
func (s *EntityResolverService) sentinel(ctx context.Context, role entities.EntityRole) (*entities.Entity, error) {
	for _, entity := range s.byID {
		if entity.Role == role && entity.DisplayName == entities.UnknownEntityName && !entity.Retired() {
			return entity, nil
		}
	}

	now := time.Now().UTC()
	entity := &entities.Entity{
		ID:          uuid.NewString(),
		DisplayName: entities.UnknownEntityName,
		Role:        role,
		Aliases:     []string{},
		LastUsedAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, entity); err != nil {
		return nil, err
	}
	s.byID[entity.ID] = entity
	return entity, nil
}

// matchExact finds an active entity whose display name or alias normalizes
// to the mention, preferring the most recently used on collisions
func (s *EntityResolverService) matchExact(normalized string, role entities.EntityRole) *entities.Entity {
	var best *entities.Entity
	for _, entity := range s.byID {
		if entity.Role != role || entity.Retired() {
			continue
		}
		if !nameMatches(entity, normalized) {
			continue
		}
		if best == nil || entity.LastUsedAt.After(best.LastUsedAt) {
			best = entity
		}
	}
	return best
}

// matchFuzzy finds the most similar active entity at or above the
// similarity threshold, preferring the most recently used on ties
func (s *EntityResolverService) matchFuzzy(normalized string, role entities.EntityRole) *entities.Entity {
	var best *entities.Entity
	bestScore := 0.0
	for _, entity := range s.byID {
		if entity.Role != role || entity.Retired() || entity.DisplayName == entities.UnknownEntityName {
			continue
		}
		score := entitySimilarity(entity, normalized)
		if score < s.threshold {
			continue
		}
		if best == nil || score > bestScore ||
			(score == bestScore && entity.LastUsedAt.After(best.LastUsedAt)) {
			best = entity
			bestScore = score
		}
	}
	return best
}

func (s *EntityResolverService) touch(ctx context.Context, entity *entities.Entity, name string) (*entities.Entity, error) {
	now := time.Now().UTC()
	entity.LastUsedAt = now
	entity.UpdatedAt = now
	if name != "" && entity.DisplayName != entities.UnknownEntityName {
		entity.Aliases = mergeAliases(entity.Aliases, []string{name})
	}
	if err := s.repo.Update(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *EntityResolverService) create(ctx context.Context, name string, role entities.EntityRole) (*entities.Entity, error) {
	now := time.Now().UTC()
	entity := &entities.Entity{
		ID:          uuid.NewString(),
		DisplayName: name,
		Role:        role,
		Aliases:     []string{name},
		LastUsedAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, entity); err != nil {
		return nil, err
	}
	s.byID[entity.ID] = entity

	s.logger.Debug().
		Str("entity_id", entity.ID).
		Str("role", string(role)).
		Str("name", name).
		Msg("created new entity")

	return entity, nil
}

// mergeTarget looks up a merge participant. A merge referencing an id
// that does not exist is a conflict naming the offending id, not a
// not-found: the caller asserted both entities exist.
func (s *EntityResolverService) mergeTarget(id string) (*entities.Entity, error) {
	entity, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NewConflictError(fmt.Sprintf("merge references nonexistent entity %s", id))
	}
	if entity.Retired() {
		return nil, apperrors.NewConflictError(fmt.Sprintf("entity %s is retired", id))
	}
	return entity, nil
}

func (s *EntityResolverService) active(id string) (*entities.Entity, error) {
	entity, ok := s.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("entity with id %s not found", id))
	}
	if entity.Retired() {
		return nil, apperrors.NewConflictError(fmt.Sprintf("entity %s is retired", id))
	}
	return entity, nil
}

func nameMatches(entity *entities.Entity, normalized string) bool {
	if taxonomy.Normalize(entity.DisplayName) == normalized {
		return true
	}
	for _, alias := range entity.Aliases {
		if taxonomy.Normalize(alias) == normalized {
			return true
		}
	}
	return false
}

// entitySimilarity is the best levenshtein similarity between the mention
// and the entity's display name or any alias
func entitySimilarity(entity *entities.Entity, normalized string) float64 {
	best := similarity(taxonomy.Normalize(entity.DisplayName), normalized)
	for _, alias := range entity.Aliases {
		if score := similarity(taxonomy.Normalize(alias), normalized); score > best {
			best = score
		}
	}
	return best
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}

func mergeAliases(existing, incoming []string) []string {
	seen := map[string]bool{}
	merged := []string{}
	for _, alias := range append(append([]string{}, existing...), incoming...) {
		key := taxonomy.Normalize(alias)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, alias)
	}
	return merged
}
