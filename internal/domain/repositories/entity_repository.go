package repositories

import (
	"context"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
)

// EntityRepository defines the interface for canonical entity persistence
type EntityRepository interface {
	// Create creates a new canonical entity with its aliases
	Create(ctx context.Context, entity *entities.Entity) error

	// GetByID retrieves an entity by ID
	GetByID(ctx context.Context, id string) (*entities.Entity, error)

	// ListByRole retrieves all non-retired entities of the given role
	ListByRole(ctx context.Context, role entities.EntityRole) ([]*entities.Entity, error)

	// ListAll retrieves every entity, retired ones included
	ListAll(ctx context.Context) ([]*entities.Entity, error)

	// Update persists display name, role, type, specialty, alias set,
	// merge redirect and last-used timestamp
	Update(ctx context.Context, entity *entities.Entity) error
}
