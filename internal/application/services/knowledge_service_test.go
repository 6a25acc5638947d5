package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialsmoore/medtimeline/backend/internal/application/services"
	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	apperrors "github.com/vialsmoore/medtimeline/backend/pkg/errors"
)

func storedEvent(id, sourceID, title, content string) *entities.Event {
	return &entities.Event{
		ID:       id,
		SourceID: sourceID,
		Title:    title,
		Content:  content,
	}
}

func TestKnowledgeService_Upsert_ReplacesBySourceID(t *testing.T) {
	eventRepo := newFakeEventRepo()
	searchRepo := newFakeSearchRepo()
	knowledge := services.NewKnowledgeService(eventRepo, searchRepo, testLogger())
	ctx := context.Background()

	require.NoError(t, knowledge.Upsert(ctx, storedEvent("ev-1", "src-1", "First version", "old")))
	require.NoError(t, knowledge.Upsert(ctx, storedEvent("ev-2", "src-1", "Second version", "new")))

	assert.Equal(t, 1, eventRepo.count())

	stored, err := knowledge.GetBySourceID(ctx, "src-1")
	require.NoError(t, err)
	assert.Equal(t, "Second version", stored.Title)
	assert.Equal(t, "ev-2", stored.ID)
}

func TestKnowledgeService_Upsert_RejectsMissingSourceID(t *testing.T) {
	knowledge := services.NewKnowledgeService(newFakeEventRepo(), newFakeSearchRepo(), testLogger())

	err := knowledge.Upsert(context.Background(), storedEvent("ev-1", "", "No source", ""))

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestKnowledgeService_Upsert_IndexFailureDoesNotFailUpsert(t *testing.T) {
	eventRepo := newFakeEventRepo()
	searchRepo := newFakeSearchRepo()
	searchRepo.indexErr = errors.New("index unavailable")
	knowledge := services.NewKnowledgeService(eventRepo, searchRepo, testLogger())

	err := knowledge.Upsert(context.Background(), storedEvent("ev-1", "src-1", "Title", "content"))

	require.NoError(t, err)
	assert.Equal(t, 1, eventRepo.count())
}

func TestKnowledgeService_Search_HydratesInRankOrder(t *testing.T) {
	eventRepo := newFakeEventRepo()
	searchRepo := newFakeSearchRepo()
	knowledge := services.NewKnowledgeService(eventRepo, searchRepo, testLogger())
	ctx := context.Background()

	require.NoError(t, knowledge.Upsert(ctx, storedEvent("ev-1", "src-1", "Sleep study", "apnoea overnight")))
	require.NoError(t, knowledge.Upsert(ctx, storedEvent("ev-2", "src-2", "Knee surgery", "patella stabilisation")))

	results, err := knowledge.Search(ctx, "apnoea", 10)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ev-1", results[0].ID)
	assert.Equal(t, "Sleep study", results[0].Title)
}

func TestKnowledgeService_Search_FindsAttachmentOnlyText(t *testing.T) {
	eventRepo := newFakeEventRepo()
	searchRepo := newFakeSearchRepo()
	knowledge := services.NewKnowledgeService(eventRepo, searchRepo, testLogger())
	ctx := context.Background()

	event := storedEvent("ev-1", "src-1", "Scanned letter", "see attachment")
	event.Attachments = []entities.Attachment{
		{
			ID:      "att-1",
			EventID: "ev-1",
			Status:  entities.ExtractionOK,
			Text:    "hippotherapy session went well",
		},
	}
	require.NoError(t, knowledge.Upsert(ctx, event))

	results, err := knowledge.Search(ctx, "hippotherapy", 10)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ev-1", results[0].ID)
}

func TestKnowledgeService_Search_EmptyQueryReturnsNothing(t *testing.T) {
	knowledge := services.NewKnowledgeService(newFakeEventRepo(), newFakeSearchRepo(), testLogger())

	results, err := knowledge.Search(context.Background(), "", 10)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestKnowledgeService_Get_NotFound(t *testing.T) {
	knowledge := services.NewKnowledgeService(newFakeEventRepo(), newFakeSearchRepo(), testLogger())

	_, err := knowledge.Get(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestKnowledgeService_Delete_RemovesStoreAndIndex(t *testing.T) {
	eventRepo := newFakeEventRepo()
	searchRepo := newFakeSearchRepo()
	knowledge := services.NewKnowledgeService(eventRepo, searchRepo, testLogger())
	ctx := context.Background()

	event := storedEvent("ev-1", "src-1", "Sleep study", "apnoea")
	event.Date = timePtr(time.Date(2016, 3, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, knowledge.Upsert(ctx, event))

	require.NoError(t, knowledge.Delete(ctx, "ev-1"))

	assert.Equal(t, 0, eventRepo.count())
	results, err := knowledge.Search(ctx, "apnoea", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
