package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialsmoore/medtimeline/backend/internal/adapters/providers/recognition"
	"github.com/vialsmoore/medtimeline/backend/internal/application/services"
	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	"github.com/vialsmoore/medtimeline/backend/internal/taxonomy"
	apperrors "github.com/vialsmoore/medtimeline/backend/pkg/errors"
)

func newBuilder(recognizer *recognition.MockProvider) *services.EventBuilderService {
	extractor := services.NewExtractionService(recognizer, newFakeCache(), testLogger(), nil, 5*time.Second, 3600)
	classifier := services.NewClassifierService(taxonomy.Default(), 15)
	resolver := newResolver(newFakeEntityRepo(), newFakeEventRepo())
	return services.NewEventBuilderService(extractor, classifier, resolver, testPatient(), testLogger())
}

func TestEventBuilderService_Build_FullRecord(t *testing.T) {
	builder := newBuilder(recognition.NewMockProvider())

	event, err := builder.Build(context.Background(), &entities.RawRecord{
		SourceID: "note-001",
		Title:    "Sleep study referral",
		Date:     "2016-03-14",
		Tags:     []string{"respiratory"},
		Content: "Seen by Dr Sarah Whitfield at Alder Hey Children's Hospital. " +
			"Obstructive sleep apnoea with oxygen desaturation overnight; sleep study requested.",
	})

	require.NoError(t, err)
	assert.Equal(t, "note-001", event.SourceID)
	assert.Equal(t, "Sleep study referral", event.Title)
	require.NotNil(t, event.Date)
	assert.Equal(t, time.Date(2016, 3, 14, 0, 0, 0, 0, time.UTC), *event.Date)

	// Age at 2016-03-14 for a DOB of 2014-08-22
	assert.Equal(t, "1 years, 6 months old", event.Age)

	require.NotEmpty(t, event.Classifications)
	assert.Equal(t, "Respiratory", event.Classifications[0].Label)
	assert.Equal(t, "Pulmonology", event.Specialty)
	assert.Greater(t, event.SpecialtyConfidence, 0.0)

	require.NotEmpty(t, event.EntityRefs)
	names := []string{}
	for _, ref := range event.EntityRefs {
		names = append(names, ref.Name)
	}
	assert.Contains(t, names, "Sarah Whitfield")
}

func TestEventBuilderService_Build_MissingSourceID(t *testing.T) {
	builder := newBuilder(recognition.NewMockProvider())

	_, err := builder.Build(context.Background(), &entities.RawRecord{
		Title: "Orphan note",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeMalformedRecord))
	appErr := err.(*apperrors.AppError)
	assert.Equal(t, "source_id", appErr.Field)
}

func TestEventBuilderService_Build_MissingTitle(t *testing.T) {
	builder := newBuilder(recognition.NewMockProvider())

	_, err := builder.Build(context.Background(), &entities.RawRecord{
		SourceID: "note-002",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeMalformedRecord))
	appErr := err.(*apperrors.AppError)
	assert.Equal(t, "title", appErr.Field)
}

func TestEventBuilderService_Build_UnparseableDate(t *testing.T) {
	builder := newBuilder(recognition.NewMockProvider())

	_, err := builder.Build(context.Background(), &entities.RawRecord{
		SourceID: "note-003",
		Title:    "Bad date",
		Date:     "sometime last spring",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeMalformedRecord))
	appErr := err.(*apperrors.AppError)
	assert.Equal(t, "date", appErr.Field)
}

func TestEventBuilderService_Build_UndatedRecordIsValid(t *testing.T) {
	builder := newBuilder(recognition.NewMockProvider())

	event, err := builder.Build(context.Background(), &entities.RawRecord{
		SourceID: "note-004",
		Title:    "Undated note",
		Content:  "General observation.",
	})

	require.NoError(t, err)
	assert.Nil(t, event.Date)
	assert.Empty(t, event.Age)
	assert.False(t, event.Dated())
}

func TestEventBuilderService_Build_FailedAttachmentDoesNotFailEvent(t *testing.T) {
	builder := newBuilder(recognition.NewMockProvider())

	event, err := builder.Build(context.Background(), &entities.RawRecord{
		SourceID: "note-005",
		Title:    "Note with broken attachment",
		Content:  "Content survives.",
		Attachments: []entities.RawAttachment{
			{FileName: "voice.mp3", MimeType: "audio/mpeg", Data: []byte("audio")},
		},
	})

	require.NoError(t, err)
	require.Len(t, event.Attachments, 1)
	assert.Equal(t, entities.ExtractionFailed, event.Attachments[0].Status)
	assert.NotEmpty(t, event.Attachments[0].FailureReason)
	assert.Equal(t, event.ID, event.Attachments[0].EventID)
}

func TestEventBuilderService_Build_AttachmentTextFeedsClassification(t *testing.T) {
	recognizer := recognition.NewMockProvider()
	recognizer.Fallback = "EEG reviewed; absence seizures noted, epilepsy medication adjusted"
	builder := newBuilder(recognizer)

	event, err := builder.Build(context.Background(), &entities.RawRecord{
		SourceID: "note-006",
		Title:    "Scanned letter",
		Content:  "Letter attached.",
		Attachments: []entities.RawAttachment{
			{FileName: "letter.png", MimeType: "image/png", Data: []byte("img")},
		},
	})

	require.NoError(t, err)
	labels := []string{}
	for _, cls := range event.Classifications {
		labels = append(labels, cls.Label)
	}
	assert.Contains(t, labels, "Seizures")
	assert.Equal(t, "Neurology", event.Specialty)
}

func TestEventBuilderService_Build_FamilyMembersAreNotResolved(t *testing.T) {
	builder := newBuilder(recognition.NewMockProvider())

	event, err := builder.Build(context.Background(), &entities.RawRecord{
		SourceID: "note-007",
		Title:    "Clinic visit",
		Content: "Mr Adam Vials Moore attended with Gwendolyn. " +
			"Dr Sarah Whitfield led the consultation.",
	})

	require.NoError(t, err)
	for _, ref := range event.EntityRefs {
		assert.NotContains(t, ref.Name, "Vials Moore")
	}
}

func TestEventBuilderService_Build_ExtractsDiagnosesAndIdentifiers(t *testing.T) {
	builder := newBuilder(recognition.NewMockProvider())

	event, err := builder.Build(context.Background(), &entities.RawRecord{
		SourceID: "note-008",
		Title:    "Gastro review",
		Content: "Diagnosed with gastro-oesophageal reflux disease. " +
			"NHS number: 943 476 5919. Follow-up in six weeks.",
	})

	require.NoError(t, err)
	require.NotEmpty(t, event.Diagnoses)
	assert.Equal(t, "gastro-oesophageal reflux disease", event.Diagnoses[0])
	require.NotNil(t, event.Identifiers)
	assert.Equal(t, "943 476 5919", event.Identifiers["nhs_number"])
}

func TestEventBuilderService_Build_DefaultSpecialtyIsGeneral(t *testing.T) {
	builder := newBuilder(recognition.NewMockProvider())

	event, err := builder.Build(context.Background(), &entities.RawRecord{
		SourceID: "note-009",
		Title:    "Quick note",
		Content:  "Nothing clinical here.",
	})

	require.NoError(t, err)
	assert.Equal(t, "General", event.Specialty)
	assert.Equal(t, 0.0, event.SpecialtyConfidence)
}

func TestEventBuilderService_Build_DeterministicApartFromIDs(t *testing.T) {
	raw := &entities.RawRecord{
		SourceID: "note-010",
		Title:    "Sleep clinic",
		Date:     "2018-05-01",
		Content:  "Dr Sarah Whitfield reviewed the sleep study; apnoea improving on CPAP.",
	}

	builder := newBuilder(recognition.NewMockProvider())
	first, err := builder.Build(context.Background(), raw)
	require.NoError(t, err)
	second, err := builder.Build(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, first.Classifications, second.Classifications)
	assert.Equal(t, first.Specialty, second.Specialty)
	assert.Equal(t, first.Age, second.Age)
	assert.Equal(t, first.Diagnoses, second.Diagnoses)
	require.Len(t, second.EntityRefs, len(first.EntityRefs))
	for i := range first.EntityRefs {
		// Same resolver, so even the entity IDs are stable
		assert.Equal(t, first.EntityRefs[i], second.EntityRefs[i])
	}
}
