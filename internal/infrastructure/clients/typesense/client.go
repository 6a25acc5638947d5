package typesense

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/vialsmoore/medtimeline/backend/pkg/config"
	"github.com/vialsmoore/medtimeline/backend/pkg/retry"
)

const (
	// EventsCollection is the collection holding event text documents,
	// attachment text included
	EventsCollection = "medical_events"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	// Test connection with retry
	retryConfig := retry.DefaultConfig()
	err := retry.DoWithLog(
		context.Background(),
		retryConfig,
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Printf("Typesense connection attempt %d failed: %v. Retrying in %v...", attempt, err, nextDelay)
		},
	)

	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// InitSchema ensures the events collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == EventsCollection {
			return nil
		}
	}

	schema := &api.CollectionSchema{
		Name: EventsCollection,
		Fields: []api.Field{
			{
				Name: "id",
				Type: "string",
			},
			{
				Name: "source_id",
				Type: "string",
			},
			{
				Name: "title",
				Type: "string",
			},
			{
				Name: "content",
				Type: "string",
			},
			{
				// OCR output is indexed as its own field so events whose
				// only textual match lives in an attachment still rank
				Name: "attachment_text",
				Type: "string",
			},
			{
				Name:  "specialty",
				Type:  "string",
				Facet: pointer.True(),
			},
			{
				Name:     "categories",
				Type:     "string[]",
				Facet:    pointer.True(),
				Optional: pointer.True(),
			},
			{
				Name:     "tags",
				Type:     "string[]",
				Optional: pointer.True(),
			},
			{
				// Unix seconds; 0 for undated events
				Name: "event_date",
				Type: "int64",
			},
		},
		DefaultSortingField: pointer.String("event_date"),
	}

	_, err = c.client.Collections().Create(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Printf("Created Typesense collection %q", EventsCollection)
	return nil
}
