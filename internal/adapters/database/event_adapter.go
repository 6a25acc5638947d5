package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	"github.com/vialsmoore/medtimeline/backend/internal/domain/repositories"
	"github.com/vialsmoore/medtimeline/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/vialsmoore/medtimeline/backend/pkg/errors"
)

var dialect = goqu.Dialect("postgres")

// EventAdapter implements the EventRepository interface
type EventAdapter struct {
	client *postgres.Client
}

// NewEventAdapter creates a new event adapter
func NewEventAdapter(client *postgres.Client) repositories.EventRepository {
	return &EventAdapter{
		client: client,
	}
}

// ReplaceBySource atomically replaces the event stored for the given source
// record. The delete and all inserts run in one transaction so readers
// never observe a half-replaced event; on any failure the prior version
// stays intact.
func (a *EventAdapter) ReplaceBySource(ctx context.Context, event *entities.Event) error {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin upsert transaction", err)
	}
	defer tx.Rollback()

	// Child rows cascade on delete
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE source_id = $1`, event.SourceID); err != nil {
		return apperrors.NewInternalError("failed to delete prior event version", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO events (
			id, source_id, source_file, title, event_date, age,
			specialty, specialty_confidence, content, diagnoses,
			identifiers, tags, source_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		event.ID,
		event.SourceID,
		event.SourceFile,
		event.Title,
		event.Date,
		event.Age,
		event.Specialty,
		event.SpecialtyConfidence,
		event.Content,
		pq.Array(event.Diagnoses),
		identifiersValue(event.Identifiers),
		pq.Array(event.Tags),
		event.SourceURL,
		event.CreatedAt,
		event.UpdatedAt,
	); err != nil {
		return apperrors.NewInternalError("failed to insert event", err)
	}

	for _, att := range event.Attachments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attachments (
				id, event_id, file_name, mime_type, fingerprint,
				extracted_text, status, failure_reason
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			att.ID, event.ID, att.FileName, att.MimeType, att.Fingerprint,
			att.Text, string(att.Status), att.FailureReason,
		); err != nil {
			return apperrors.NewInternalError("failed to insert attachment", err)
		}
	}

	for pos, cls := range event.Classifications {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO classifications (
				event_id, position, label, kind, severity, confidence,
				matched_keywords, description, details
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			event.ID, pos, cls.Label, string(cls.Kind), cls.Severity, cls.Confidence,
			pq.Array(cls.MatchedKeywords), cls.Description, pq.Array(cls.Details),
		); err != nil {
			return apperrors.NewInternalError("failed to insert classification", err)
		}
	}

	for pos, ref := range event.EntityRefs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entity_refs (
				event_id, position, entity_id, role, name, mention_type, specialty
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			event.ID, pos, ref.EntityID, string(ref.Role), ref.Name, ref.MentionType, ref.Specialty,
		); err != nil {
			return apperrors.NewInternalError("failed to insert entity reference", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit upsert transaction", err)
	}

	return nil
}

// GetByID retrieves an event by ID
func (a *EventAdapter) GetByID(ctx context.Context, id string) (*entities.Event, error) {
	return a.getOne(ctx, "id", id)
}

// GetBySourceID retrieves an event by its source provenance ID
func (a *EventAdapter) GetBySourceID(ctx context.Context, sourceID string) (*entities.Event, error) {
	return a.getOne(ctx, "source_id", sourceID)
}

// GetByIDs retrieves multiple events preserving the input order
func (a *EventAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Event, error) {
	if len(ids) == 0 {
		return []*entities.Event{}, nil
	}

	rows, err := a.client.DB().QueryContext(ctx,
		eventSelect+` WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get events by ids", err)
	}
	defer rows.Close()

	byID := map[string]*entities.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		byID[event.ID] = event
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate events", err)
	}

	ordered := []*entities.Event{}
	for _, id := range ids {
		if event, ok := byID[id]; ok {
			ordered = append(ordered, event)
		}
	}
	if err := a.loadChildren(ctx, ordered); err != nil {
		return nil, err
	}

	return ordered, nil
}

// Query retrieves events matching all of the given filters, ordered by
// date ascending with undated events last
func (a *EventAdapter) Query(ctx context.Context, filter repositories.EventFilter) ([]*entities.Event, error) {
	ds := dialect.From("events").Select(
		"id", "source_id", "source_file", "title", "event_date", "age",
		"specialty", "specialty_confidence", "content", "diagnoses",
		"identifiers", "tags", "source_url", "created_at", "updated_at",
	)

	if filter.From != nil {
		ds = ds.Where(goqu.C("event_date").Gte(*filter.From))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.C("event_date").Lte(*filter.To))
	}
	if filter.Specialty != "" {
		ds = ds.Where(goqu.C("specialty").Eq(filter.Specialty))
	}
	if filter.CategoryLabel != "" {
		ds = ds.Where(goqu.L(
			`EXISTS (SELECT 1 FROM classifications c WHERE c.event_id = events.id AND c.label = ?)`,
			filter.CategoryLabel,
		))
	}
	if filter.EntityID != "" {
		ds = ds.Where(goqu.L(
			`EXISTS (SELECT 1 FROM entity_refs r WHERE r.event_id = events.id AND r.entity_id = ?)`,
			filter.EntityID,
		))
	}
	if filter.TextSubstring != "" {
		pattern := "%" + filter.TextSubstring + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("title").ILike(pattern),
			goqu.C("content").ILike(pattern),
			goqu.L(
				`EXISTS (SELECT 1 FROM attachments att WHERE att.event_id = events.id AND att.extracted_text ILIKE ?)`,
				pattern,
			),
		))
	}

	ds = ds.Order(goqu.C("event_date").Asc().NullsLast(), goqu.C("source_id").Asc())
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query events", err)
	}
	defer rows.Close()

	events := []*entities.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate events", err)
	}
	if err := a.loadChildren(ctx, events); err != nil {
		return nil, err
	}

	return events, nil
}

// DeleteBySourceID removes the event stored for a source record; child
// rows cascade on delete
func (a *EventAdapter) DeleteBySourceID(ctx context.Context, sourceID string) error {
	_, err := a.client.DB().ExecContext(ctx,
		`DELETE FROM events WHERE source_id = $1`, sourceID)
	if err != nil {
		return apperrors.NewInternalError("failed to delete event", err)
	}
	return nil
}

// RepointEntityRefs redirects stored entity references from one canonical
// entity to another
func (a *EventAdapter) RepointEntityRefs(ctx context.Context, fromEntityID, toEntityID string) error {
	_, err := a.client.DB().ExecContext(ctx,
		`UPDATE entity_refs SET entity_id = $2 WHERE entity_id = $1`,
		fromEntityID, toEntityID,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to repoint entity references", err)
	}
	return nil
}

const eventSelect = `
	SELECT
		id, source_id, source_file, title, event_date, age,
		specialty, specialty_confidence, content, diagnoses,
		identifiers, tags, source_url, created_at, updated_at
	FROM events
`

func (a *EventAdapter) getOne(ctx context.Context, column, value string) (*entities.Event, error) {
	row := a.client.DB().QueryRowContext(ctx,
		eventSelect+fmt.Sprintf(` WHERE %s = $1`, column), value)

	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("event with %s %s not found", column, value))
	}
	if err != nil {
		return nil, err
	}
	if err := a.loadChildren(ctx, []*entities.Event{event}); err != nil {
		return nil, err
	}

	return event, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*entities.Event, error) {
	event := &entities.Event{}
	var date sql.NullTime
	var identifiers identifiersScan

	err := row.Scan(
		&event.ID,
		&event.SourceID,
		&event.SourceFile,
		&event.Title,
		&date,
		&event.Age,
		&event.Specialty,
		&event.SpecialtyConfidence,
		&event.Content,
		pq.Array(&event.Diagnoses),
		&identifiers,
		pq.Array(&event.Tags),
		&event.SourceURL,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to scan event", err)
	}

	if date.Valid {
		d := date.Time
		event.Date = &d
	}
	event.Identifiers = identifiers.values

	return event, nil
}

func (a *EventAdapter) loadChildren(ctx context.Context, events []*entities.Event) error {
	if len(events) == 0 {
		return nil
	}

	byID := map[string]*entities.Event{}
	ids := make([]string, 0, len(events))
	for _, event := range events {
		event.Attachments = []entities.Attachment{}
		event.Classifications = []entities.ClassificationResult{}
		event.EntityRefs = []entities.EntityReference{}
		byID[event.ID] = event
		ids = append(ids, event.ID)
	}

	rows, err := a.client.DB().QueryContext(ctx, `
		SELECT id, event_id, file_name, mime_type, fingerprint,
		       extracted_text, status, failure_reason
		FROM attachments WHERE event_id = ANY($1)
		ORDER BY event_id, file_name
	`, pq.Array(ids))
	if err != nil {
		return apperrors.NewInternalError("failed to load attachments", err)
	}
	for rows.Next() {
		att := entities.Attachment{}
		var status string
		if err := rows.Scan(&att.ID, &att.EventID, &att.FileName, &att.MimeType,
			&att.Fingerprint, &att.Text, &status, &att.FailureReason); err != nil {
			rows.Close()
			return apperrors.NewInternalError("failed to scan attachment", err)
		}
		att.Status = entities.ExtractionStatus(status)
		if event, ok := byID[att.EventID]; ok {
			event.Attachments = append(event.Attachments, att)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperrors.NewInternalError("failed to iterate attachments", err)
	}

	rows, err = a.client.DB().QueryContext(ctx, `
		SELECT event_id, label, kind, severity, confidence,
		       matched_keywords, description, details
		FROM classifications WHERE event_id = ANY($1)
		ORDER BY event_id, position
	`, pq.Array(ids))
	if err != nil {
		return apperrors.NewInternalError("failed to load classifications", err)
	}
	for rows.Next() {
		cls := entities.ClassificationResult{}
		var eventID, kind string
		if err := rows.Scan(&eventID, &cls.Label, &kind, &cls.Severity, &cls.Confidence,
			pq.Array(&cls.MatchedKeywords), &cls.Description, pq.Array(&cls.Details)); err != nil {
			rows.Close()
			return apperrors.NewInternalError("failed to scan classification", err)
		}
		cls.Kind = entities.LabelKind(kind)
		if event, ok := byID[eventID]; ok {
			event.Classifications = append(event.Classifications, cls)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperrors.NewInternalError("failed to iterate classifications", err)
	}

	rows, err = a.client.DB().QueryContext(ctx, `
		SELECT event_id, entity_id, role, name, mention_type, specialty
		FROM entity_refs WHERE event_id = ANY($1)
		ORDER BY event_id, position
	`, pq.Array(ids))
	if err != nil {
		return apperrors.NewInternalError("failed to load entity references", err)
	}
	for rows.Next() {
		ref := entities.EntityReference{}
		var eventID, role string
		if err := rows.Scan(&eventID, &ref.EntityID, &role, &ref.Name,
			&ref.MentionType, &ref.Specialty); err != nil {
			rows.Close()
			return apperrors.NewInternalError("failed to scan entity reference", err)
		}
		ref.Role = entities.EntityRole(role)
		if event, ok := byID[eventID]; ok {
			event.EntityRefs = append(event.EntityRefs, ref)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return apperrors.NewInternalError("failed to iterate entity references", err)
	}

	return nil
}

func identifiersValue(identifiers map[string]string) interface{} {
	if len(identifiers) == 0 {
		return nil
	}
	return identifiersScan{values: identifiers}
}

// identifiersScan round-trips the identifiers map through a jsonb column
type identifiersScan struct {
	values map[string]string
}

func (s *identifiersScan) Scan(src interface{}) error {
	if src == nil {
		s.values = nil
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("unexpected identifiers column type %T", src)
	}
	return json.Unmarshal(data, &s.values)
}

func (s identifiersScan) Value() (driver.Value, error) {
	return json.Marshal(s.values)
}
