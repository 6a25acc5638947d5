package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	"github.com/vialsmoore/medtimeline/backend/internal/infrastructure/observability"
)

// IngestFailure records why one raw record did not make it into the store
type IngestFailure struct {
	SourceID string `json:"source_id"`
	Title    string `json:"title,omitempty"`
	Reason   string `json:"reason"`
}

// IngestSummary reports the outcome of one batch ingestion
type IngestSummary struct {
	Processed int             `json:"processed"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Failures  []IngestFailure `json:"failures,omitempty"`
}

// IngestionService drives batch ingestion of raw export records through
// the build-and-store pipeline with a bounded worker pool. Failures are
// isolated per record: one malformed record never aborts the batch.
type IngestionService struct {
	builder   *EventBuilderService
	knowledge *KnowledgeService
	logger    zerolog.Logger
	metrics   *observability.Metrics
	workers   int
	tracer    trace.Tracer
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	builder *EventBuilderService,
	knowledge *KnowledgeService,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	workers int,
) *IngestionService {
	if workers <= 0 {
		workers = 4
	}
	return &IngestionService{
		builder:   builder,
		knowledge: knowledge,
		logger:    logger,
		metrics:   metrics,
		workers:   workers,
		tracer:    otel.Tracer("ingestion"),
	}
}

// IngestRecord builds and stores a single raw record
func (s *IngestionService) IngestRecord(ctx context.Context, raw *entities.RawRecord) (*entities.Event, error) {
	ctx, span := s.tracer.Start(ctx, "ingest_record",
		trace.WithAttributes(attribute.String("source_id", raw.SourceID)))
	defer span.End()

	event, err := s.builder.Build(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := s.knowledge.Upsert(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// IngestBatch processes the records with a bounded worker pool and returns
// a per-record outcome summary. The batch itself only errors when the
// context is cancelled.
func (s *IngestionService) IngestBatch(ctx context.Context, records []*entities.RawRecord) (*IngestSummary, error) {
	ctx, span := s.tracer.Start(ctx, "ingest_batch",
		trace.WithAttributes(attribute.Int("record_count", len(records))))
	defer span.End()

	jobs := make(chan *entities.RawRecord)
	summary := &IngestSummary{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for raw := range jobs {
				err := s.ingestOne(ctx, raw)

				mu.Lock()
				summary.Processed++
				if err != nil {
					summary.Failed++
					summary.Failures = append(summary.Failures, IngestFailure{
						SourceID: raw.SourceID,
						Title:    raw.Title,
						Reason:   err.Error(),
					})
				} else {
					summary.Succeeded++
				}
				mu.Unlock()
			}
		}()
	}

	for _, raw := range records {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return summary, ctx.Err()
		case jobs <- raw:
		}
	}
	close(jobs)
	wg.Wait()

	s.logger.Info().
		Int("processed", summary.Processed).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("batch ingestion finished")

	return summary, nil
}

func (s *IngestionService) ingestOne(ctx context.Context, raw *entities.RawRecord) error {
	_, err := s.IngestRecord(ctx, raw)
	if s.metrics != nil {
		s.metrics.RecordsProcessed.Add(ctx, 1)
		if err != nil {
			s.metrics.RecordsFailed.Add(ctx, 1)
		}
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("source_id", raw.SourceID).
			Str("title", raw.Title).
			Msg("failed to ingest record")
	}
	return err
}
