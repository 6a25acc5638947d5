package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	"github.com/vialsmoore/medtimeline/backend/internal/domain/repositories"
	"github.com/vialsmoore/medtimeline/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/vialsmoore/medtimeline/backend/pkg/errors"
)

// EntityAdapter implements the EntityRepository interface
type EntityAdapter struct {
	client *postgres.Client
}

// NewEntityAdapter creates a new entity adapter
func NewEntityAdapter(client *postgres.Client) repositories.EntityRepository {
	return &EntityAdapter{
		client: client,
	}
}

const entitySelect = `
	SELECT id, display_name, role, aliases, entity_type, specialty,
	       merged_into, last_used_at, created_at, updated_at
	FROM entities
`

// Create creates a new canonical entity with its aliases
func (a *EntityAdapter) Create(ctx context.Context, entity *entities.Entity) error {
	_, err := a.client.DB().ExecContext(ctx, `
		INSERT INTO entities (
			id, display_name, role, aliases, entity_type, specialty,
			merged_into, last_used_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		entity.ID,
		entity.DisplayName,
		string(entity.Role),
		pq.Array(entity.Aliases),
		entity.Type,
		entity.Specialty,
		entity.MergedInto,
		entity.LastUsedAt,
		entity.CreatedAt,
		entity.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to create entity", err)
	}

	return nil
}

// GetByID retrieves an entity by ID
func (a *EntityAdapter) GetByID(ctx context.Context, id string) (*entities.Entity, error) {
	row := a.client.DB().QueryRowContext(ctx, entitySelect+` WHERE id = $1`, id)

	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("entity with id %s not found", id))
	}
	if err != nil {
		return nil, err
	}

	return entity, nil
}

// ListByRole retrieves all non-retired entities of the given role
func (a *EntityAdapter) ListByRole(ctx context.Context, role entities.EntityRole) ([]*entities.Entity, error) {
	rows, err := a.client.DB().QueryContext(ctx,
		entitySelect+` WHERE role = $1 AND merged_into = '' ORDER BY display_name`,
		string(role))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list entities by role", err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

// ListAll retrieves every entity, retired ones included
func (a *EntityAdapter) ListAll(ctx context.Context) ([]*entities.Entity, error) {
	rows, err := a.client.DB().QueryContext(ctx, entitySelect+` ORDER BY display_name`)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list entities", err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

// Update persists the mutable fields of an entity
func (a *EntityAdapter) Update(ctx context.Context, entity *entities.Entity) error {
	result, err := a.client.DB().ExecContext(ctx, `
		UPDATE entities SET
			display_name = $2, role = $3, aliases = $4, entity_type = $5,
			specialty = $6, merged_into = $7, last_used_at = $8, updated_at = $9
		WHERE id = $1
	`,
		entity.ID,
		entity.DisplayName,
		string(entity.Role),
		pq.Array(entity.Aliases),
		entity.Type,
		entity.Specialty,
		entity.MergedInto,
		entity.LastUsedAt,
		entity.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to update entity", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to check update result", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("entity with id %s not found", entity.ID))
	}

	return nil
}

func scanEntity(row rowScanner) (*entities.Entity, error) {
	entity := &entities.Entity{}
	var role string

	err := row.Scan(
		&entity.ID,
		&entity.DisplayName,
		&role,
		pq.Array(&entity.Aliases),
		&entity.Type,
		&entity.Specialty,
		&entity.MergedInto,
		&entity.LastUsedAt,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan entity", err)
	}

	entity.Role = entities.EntityRole(role)
	return entity, nil
}

func collectEntities(rows *sql.Rows) ([]*entities.Entity, error) {
	result := []*entities.Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate entities", err)
	}
	return result, nil
}
