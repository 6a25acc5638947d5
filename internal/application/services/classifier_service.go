package services

import (
	"sort"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	"github.com/vialsmoore/medtimeline/backend/internal/taxonomy"
)

// ClassifierService scores event text against the static taxonomy. It is
// pure: the same text and taxonomy always produce the same results, so
// re-ingesting a record cannot flip its classifications.
type ClassifierService struct {
	taxonomy      *entities.Taxonomy
	minConfidence float64
}

// NewClassifierService creates a new classifier service
func NewClassifierService(tax *entities.Taxonomy, minConfidence float64) *ClassifierService {
	return &ClassifierService{
		taxonomy:      tax,
		minConfidence: minConfidence,
	}
}

// Classify matches the text against every taxonomy label and returns the
// labels scoring at or above the confidence threshold, strongest first.
// Equal confidences keep taxonomy declaration order.
func (s *ClassifierService) Classify(text string) []entities.ClassificationResult {
	normalized := taxonomy.Normalize(text)
	results := []entities.ClassificationResult{}

	for _, label := range s.taxonomy.Labels {
		matched := matchKeywords(normalized, label.Keywords)
		if len(matched) == 0 {
			continue
		}

		confidence := keywordConfidence(matched)
		if confidence < s.minConfidence {
			continue
		}

		results = append(results, entities.ClassificationResult{
			Label:           label.Name,
			Kind:            label.Kind,
			Severity:        label.Severity,
			Confidence:      confidence,
			MatchedKeywords: matched,
			Description:     label.Description,
			Details:         label.Details,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})

	return results
}

// Specialty derives the event specialty from the strongest category match,
// falling back to General when nothing crosses the threshold
func (s *ClassifierService) Specialty(results []entities.ClassificationResult) (string, float64) {
	for _, result := range results {
		if result.Kind != entities.LabelKindCategory {
			continue
		}
		if specialty, ok := s.taxonomy.CategorySpecialty[result.Label]; ok {
			return specialty, result.Confidence
		}
		return "General", result.Confidence
	}
	return "General", 0
}

// matchKeywords returns the distinct keywords found in the normalized text,
// in keyword declaration order
func matchKeywords(normalized string, keywords []string) []string {
	matched := []string{}
	seen := map[string]bool{}
	for _, keyword := range keywords {
		if seen[keyword] {
			continue
		}
		if taxonomy.ContainsKeyword(normalized, keyword) {
			matched = append(matched, keyword)
			seen[keyword] = true
		}
	}
	return matched
}

// keywordConfidence scores a set of matched keywords. Every distinct match
// contributes a base weight plus a length bonus, so several specific terms
// outrank a single incidental one; the total is capped at 100.
func keywordConfidence(matched []string) float64 {
	score := 0.0
	for _, keyword := range matched {
		bonus := float64(len(keyword))
		if bonus > 15 {
			bonus = 15
		}
		score += 10 + bonus
	}
	if score > 100 {
		score = 100
	}
	return score
}
