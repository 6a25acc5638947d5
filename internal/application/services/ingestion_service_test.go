package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialsmoore/medtimeline/backend/internal/adapters/providers/recognition"
	"github.com/vialsmoore/medtimeline/backend/internal/application/services"
	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	"github.com/vialsmoore/medtimeline/backend/internal/taxonomy"
)

type ingestionFixture struct {
	ingestion *services.IngestionService
	knowledge *services.KnowledgeService
	eventRepo *fakeEventRepo
}

func newIngestionFixture(workers int) *ingestionFixture {
	recognizer := recognition.NewMockProvider()
	extractor := services.NewExtractionService(recognizer, newFakeCache(), testLogger(), nil, 5*time.Second, 3600)
	classifier := services.NewClassifierService(taxonomy.Default(), 15)
	resolver := newResolver(newFakeEntityRepo(), newFakeEventRepo())
	builder := services.NewEventBuilderService(extractor, classifier, resolver, testPatient(), testLogger())

	eventRepo := newFakeEventRepo()
	knowledge := services.NewKnowledgeService(eventRepo, newFakeSearchRepo(), testLogger())

	return &ingestionFixture{
		ingestion: services.NewIngestionService(builder, knowledge, testLogger(), nil, workers),
		knowledge: knowledge,
		eventRepo: eventRepo,
	}
}

func TestIngestionService_IngestBatch_AllSucceed(t *testing.T) {
	fixture := newIngestionFixture(4)

	records := make([]*entities.RawRecord, 0, 10)
	for i := 0; i < 10; i++ {
		records = append(records, &entities.RawRecord{
			SourceID: fmt.Sprintf("src-%03d", i),
			Title:    fmt.Sprintf("Note %d", i),
			Date:     "2019-01-02",
			Content:  "Routine review.",
		})
	}

	summary, err := fixture.ingestion.IngestBatch(context.Background(), records)

	require.NoError(t, err)
	assert.Equal(t, 10, summary.Processed)
	assert.Equal(t, 10, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, summary.Failures)
	assert.Equal(t, 10, fixture.eventRepo.count())
}

func TestIngestionService_IngestBatch_IsolatesFailures(t *testing.T) {
	fixture := newIngestionFixture(2)

	records := []*entities.RawRecord{
		{SourceID: "good-1", Title: "Fine", Content: "ok"},
		{SourceID: "bad-1", Title: "Bad date", Date: "not a date"},
		{SourceID: "good-2", Title: "Also fine", Content: "ok"},
		{Title: "No source id"},
	}

	summary, err := fixture.ingestion.IngestBatch(context.Background(), records)

	require.NoError(t, err)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Failures, 2)
	assert.Equal(t, 2, fixture.eventRepo.count())

	reasons := map[string]string{}
	for _, failure := range summary.Failures {
		reasons[failure.SourceID] = failure.Reason
	}
	assert.Contains(t, reasons["bad-1"], "date")
	assert.Contains(t, reasons[""], "source id")
}

func TestIngestionService_IngestBatch_ReingestionReplacesNotDuplicates(t *testing.T) {
	fixture := newIngestionFixture(2)
	ctx := context.Background()

	records := []*entities.RawRecord{
		{SourceID: "src-1", Title: "Original", Content: "v1"},
		{SourceID: "src-2", Title: "Other", Content: "v1"},
	}

	_, err := fixture.ingestion.IngestBatch(ctx, records)
	require.NoError(t, err)

	records[0].Title = "Updated"
	summary, err := fixture.ingestion.IngestBatch(ctx, records)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 2, fixture.eventRepo.count())

	stored, err := fixture.knowledge.GetBySourceID(ctx, "src-1")
	require.NoError(t, err)
	assert.Equal(t, "Updated", stored.Title)
}

func TestIngestionService_IngestRecord_SingleRecord(t *testing.T) {
	fixture := newIngestionFixture(1)

	event, err := fixture.ingestion.IngestRecord(context.Background(), &entities.RawRecord{
		SourceID: "src-solo",
		Title:    "Sleep study",
		Date:     "2016-03-14",
		Content:  "Obstructive sleep apnoea review.",
	})

	require.NoError(t, err)
	assert.Equal(t, "src-solo", event.SourceID)
	assert.Equal(t, 1, fixture.eventRepo.count())
}

func TestIngestionService_IngestBatch_CancelledContextStopsEarly(t *testing.T) {
	fixture := newIngestionFixture(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := make([]*entities.RawRecord, 0, 50)
	for i := 0; i < 50; i++ {
		records = append(records, &entities.RawRecord{
			SourceID: fmt.Sprintf("src-%03d", i),
			Title:    "Note",
		})
	}

	summary, err := fixture.ingestion.IngestBatch(ctx, records)

	require.Error(t, err)
	assert.Less(t, summary.Processed, 50)
}
