package services_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	"github.com/vialsmoore/medtimeline/backend/internal/domain/repositories"
	apperrors "github.com/vialsmoore/medtimeline/backend/pkg/errors"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fakeEntityRepo is an in-memory EntityRepository
type fakeEntityRepo struct {
	mu       sync.Mutex
	entities map[string]*entities.Entity
}

func newFakeEntityRepo() *fakeEntityRepo {
	return &fakeEntityRepo{entities: map[string]*entities.Entity{}}
}

func (r *fakeEntityRepo) Create(ctx context.Context, entity *entities.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *entity
	r.entities[entity.ID] = &copied
	return nil
}

func (r *fakeEntityRepo) GetByID(ctx context.Context, id string) (*entities.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entity, ok := r.entities[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("entity with id %s not found", id))
	}
	copied := *entity
	return &copied, nil
}

func (r *fakeEntityRepo) ListByRole(ctx context.Context, role entities.EntityRole) ([]*entities.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []*entities.Entity{}
	for _, entity := range r.entities {
		if entity.Role == role && !entity.Retired() {
			copied := *entity
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeEntityRepo) ListAll(ctx context.Context) ([]*entities.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []*entities.Entity{}
	for _, entity := range r.entities {
		copied := *entity
		result = append(result, &copied)
	}
	return result, nil
}

func (r *fakeEntityRepo) Update(ctx context.Context, entity *entities.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[entity.ID]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("entity with id %s not found", entity.ID))
	}
	copied := *entity
	r.entities[entity.ID] = &copied
	return nil
}

// fakeEventRepo is an in-memory EventRepository keyed by source id
type fakeEventRepo struct {
	mu        sync.Mutex
	bySource  map[string]*entities.Event
	repointed [][2]string
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{bySource: map[string]*entities.Event{}}
}

func (r *fakeEventRepo) ReplaceBySource(ctx context.Context, event *entities.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *event
	r.bySource[event.SourceID] = &copied
	return nil
}

func (r *fakeEventRepo) GetByID(ctx context.Context, id string) (*entities.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.bySource {
		if event.ID == id {
			copied := *event
			return &copied, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("event with id %s not found", id))
}

func (r *fakeEventRepo) GetBySourceID(ctx context.Context, sourceID string) (*entities.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.bySource[sourceID]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("event with source_id %s not found", sourceID))
	}
	copied := *event
	return &copied, nil
}

func (r *fakeEventRepo) GetByIDs(ctx context.Context, ids []string) ([]*entities.Event, error) {
	result := []*entities.Event{}
	for _, id := range ids {
		event, err := r.GetByID(ctx, id)
		if err != nil {
			continue
		}
		result = append(result, event)
	}
	return result, nil
}

func (r *fakeEventRepo) Query(ctx context.Context, filter repositories.EventFilter) ([]*entities.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []*entities.Event{}
	for _, event := range r.bySource {
		copied := *event
		result = append(result, &copied)
	}
	return result, nil
}

func (r *fakeEventRepo) DeleteBySourceID(ctx context.Context, sourceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySource, sourceID)
	return nil
}

func (r *fakeEventRepo) RepointEntityRefs(ctx context.Context, fromEntityID, toEntityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repointed = append(r.repointed, [2]string{fromEntityID, toEntityID})
	for _, event := range r.bySource {
		for i := range event.EntityRefs {
			if event.EntityRefs[i].EntityID == fromEntityID {
				event.EntityRefs[i].EntityID = toEntityID
			}
		}
	}
	return nil
}

func (r *fakeEventRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySource)
}

// fakeSearchRepo is an in-memory EventSearchRepository that ranks by naive
// substring match over the indexed text pool
type fakeSearchRepo struct {
	mu       sync.Mutex
	docs     map[string]string
	indexErr error
}

func newFakeSearchRepo() *fakeSearchRepo {
	return &fakeSearchRepo{docs: map[string]string{}}
}

func (r *fakeSearchRepo) Index(ctx context.Context, event *entities.Event) error {
	if r.indexErr != nil {
		return r.indexErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[event.ID] = strings.ToLower(event.SearchText())
	return nil
}

func (r *fakeSearchRepo) Search(ctx context.Context, query string, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []string{}
	needle := strings.ToLower(query)
	for id, text := range r.docs {
		if strings.Contains(text, needle) {
			ids = append(ids, id)
		}
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *fakeSearchRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

// fakeCache is an in-memory CacheProvider
type fakeCache struct {
	mu     sync.Mutex
	values map[string][]byte
	hits   int
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string][]byte{}}
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.values[key]
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	c.hits++
	return value, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	c.sets++
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok, nil
}

func testPatient() *entities.Patient {
	return &entities.Patient{
		Name: "Gwendolyn Vials Moore",
		DOB:  "2014-08-22",
		NonMedicalNames: []string{
			"Gwendolyn", "Gwen", "Adam Vials Moore", "Tori Vials Moore",
		},
	}
}
