package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	"github.com/vialsmoore/medtimeline/backend/internal/domain/repositories"
	tsclient "github.com/vialsmoore/medtimeline/backend/internal/infrastructure/clients/typesense"
)

// TypesenseAdapter implements event text search using Typesense. The
// index carries title, content and extracted attachment text as separate
// fields; ranking is delegated to the engine with recency as tie-break.
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements EventSearchRepository
var _ repositories.EventSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the events collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// Index upserts an event document, attachment text included
func (a *TypesenseAdapter) Index(ctx context.Context, event *entities.Event) error {
	attachmentText := []string{}
	for _, att := range event.Attachments {
		if att.Status == entities.ExtractionOK && att.Text != "" {
			attachmentText = append(attachmentText, att.Text)
		}
	}

	categories := []string{}
	for _, cls := range event.Classifications {
		if cls.Kind == entities.LabelKindCategory {
			categories = append(categories, cls.Label)
		}
	}

	var eventDate int64
	if event.Date != nil {
		eventDate = event.Date.Unix()
	}

	document := map[string]interface{}{
		"id":              event.ID,
		"source_id":       event.SourceID,
		"title":           event.Title,
		"content":         event.Content,
		"attachment_text": strings.Join(attachmentText, "\n"),
		"specialty":       event.Specialty,
		"categories":      categories,
		"tags":            event.Tags,
		"event_date":      eventDate,
	}

	_, err := a.client.Client().Collection(tsclient.EventsCollection).Documents().Upsert(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to index event: %w", err)
	}

	return nil
}

// Search returns event IDs ranked by descending relevance, ties broken
// by recency
func (a *TypesenseAdapter) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(query),
		QueryBy: pointer.String("title,content,attachment_text"),
		SortBy:  pointer.String("_text_match:desc,event_date:desc"),
		PerPage: pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(tsclient.EventsCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}

	ids := []string{}
	if result.Hits == nil {
		return ids, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document
		if id, ok := doc["id"].(string); ok {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// Delete removes an event document from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.EventsCollection).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete event from index: %w", err)
	}
	return nil
}
