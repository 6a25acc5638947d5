package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialsmoore/medtimeline/backend/internal/application/services"
	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	"github.com/vialsmoore/medtimeline/backend/internal/taxonomy"
)

func TestClassifierService_Classify_MatchesCategories(t *testing.T) {
	classifier := services.NewClassifierService(taxonomy.Default(), 15)

	results := classifier.Classify(
		"Sleep study requested due to obstructive sleep apnoea and oxygen desaturation overnight")

	require.NotEmpty(t, results)
	assert.Equal(t, "Respiratory", results[0].Label)
	assert.Equal(t, entities.LabelKindCategory, results[0].Kind)
	assert.Equal(t, entities.SeveritySevere, results[0].Severity)
	assert.Contains(t, results[0].MatchedKeywords, "apnoea")
	assert.Contains(t, results[0].MatchedKeywords, "sleep")
}

func TestClassifierService_Classify_NoMatchBelowThreshold(t *testing.T) {
	classifier := services.NewClassifierService(taxonomy.Default(), 15)

	results := classifier.Classify("Birthday party at the park, lovely weather")

	assert.Empty(t, results)
}

func TestClassifierService_Classify_MoreKeywordsScoreHigher(t *testing.T) {
	classifier := services.NewClassifierService(taxonomy.Default(), 15)

	weak := classifier.Classify("Some wheelchair time today")
	strong := classifier.Classify(
		"Wheelchair transfers painful after knee surgery; orthopaedic physio reviewed gait")

	require.NotEmpty(t, weak)
	require.NotEmpty(t, strong)
	require.Equal(t, "Mobility", weak[0].Label)
	require.Equal(t, "Mobility", strong[0].Label)
	assert.Greater(t, strong[0].Confidence, weak[0].Confidence)
}

func TestClassifierService_Classify_ConfidenceCappedAt100(t *testing.T) {
	classifier := services.NewClassifierService(taxonomy.Default(), 15)

	results := classifier.Classify(
		"apnoea breathing ventilation oxygen airway lung pulmonary saturation desaturation cpap hypoxia respiratory sleep study")

	require.NotEmpty(t, results)
	assert.Equal(t, "Respiratory", results[0].Label)
	assert.Equal(t, 100.0, results[0].Confidence)
}

func TestClassifierService_Classify_SortsByConfidenceDesc(t *testing.T) {
	classifier := services.NewClassifierService(taxonomy.Default(), 15)

	results := classifier.Classify(
		"Seizure activity overnight with oxygen desaturation; EEG and sleep study requested, " +
			"breathing monitored, apnoea episodes recorded")

	require.GreaterOrEqual(t, len(results), 2)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Confidence, results[i].Confidence)
	}
}

func TestClassifierService_Classify_EqualConfidenceKeepsTaxonomyOrder(t *testing.T) {
	tax := &entities.Taxonomy{
		Labels: []entities.TaxonomyLabel{
			{Name: "First", Kind: entities.LabelKindCategory, Keywords: []string{"needle"}},
			{Name: "Second", Kind: entities.LabelKindCategory, Keywords: []string{"needle"}},
		},
		CategorySpecialty: map[string]string{},
	}
	classifier := services.NewClassifierService(tax, 10)

	results := classifier.Classify("found a needle in the haystack")

	require.Len(t, results, 2)
	assert.Equal(t, "First", results[0].Label)
	assert.Equal(t, "Second", results[1].Label)
	assert.Equal(t, results[0].Confidence, results[1].Confidence)
}

func TestClassifierService_Classify_Deterministic(t *testing.T) {
	classifier := services.NewClassifierService(taxonomy.Default(), 15)
	text := "Respite stay at Claire House hospice; swimming and hippotherapy sessions continue"

	first := classifier.Classify(text)
	second := classifier.Classify(text)

	assert.Equal(t, first, second)
}

func TestClassifierService_Classify_SupportsCarryNoSeverity(t *testing.T) {
	classifier := services.NewClassifierService(taxonomy.Default(), 15)

	results := classifier.Classify("Hydrotherapy and swimming lesson with her swim instructor at the pool")

	require.NotEmpty(t, results)
	for _, result := range results {
		if result.Kind == entities.LabelKindSupport {
			assert.Empty(t, result.Severity)
			return
		}
	}
	t.Fatalf("expected a support classification, got %+v", results)
}

func TestClassifierService_Specialty_FromTopCategory(t *testing.T) {
	classifier := services.NewClassifierService(taxonomy.Default(), 15)

	results := classifier.Classify(
		"Seizure activity with absence episodes, EEG reviewed by neurology")
	specialty, confidence := classifier.Specialty(results)

	assert.Equal(t, "Neurology", specialty)
	assert.Greater(t, confidence, 0.0)
}

func TestClassifierService_Specialty_DefaultsToGeneral(t *testing.T) {
	classifier := services.NewClassifierService(taxonomy.Default(), 15)

	specialty, confidence := classifier.Specialty(nil)

	assert.Equal(t, "General", specialty)
	assert.Equal(t, 0.0, confidence)
}
