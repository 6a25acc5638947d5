package entities

// LabelKind distinguishes the two taxonomy label spaces
type LabelKind string

const (
	// LabelKindCategory is a severity-bearing condition category
	LabelKindCategory LabelKind = "category"

	// LabelKindSupport is a support-service label without severity
	LabelKindSupport LabelKind = "support"
)

// Severity tiers for category labels
const (
	SeveritySevere   = "SEVERE"
	SeverityHigh     = "HIGH"
	SeverityModerate = "MODERATE"
)

// ClassificationResult is one confidence-scored taxonomy match for an event.
// Description and Details are copied from the taxonomy definition at
// classification time; later taxonomy edits do not rewrite stored results.
type ClassificationResult struct {
	Label           string    `json:"label" db:"label"`
	Kind            LabelKind `json:"kind" db:"kind"`
	Severity        string    `json:"severity,omitempty" db:"severity"`
	Confidence      float64   `json:"confidence" db:"confidence"`
	MatchedKeywords []string  `json:"matched_keywords" db:"-"`
	Description     string    `json:"description" db:"description"`
	Details         []string  `json:"details,omitempty" db:"-"`
}

// TaxonomyLabel is one entry of the static classification taxonomy
type TaxonomyLabel struct {
	Name        string    `json:"name"`
	Kind        LabelKind `json:"kind"`
	Severity    string    `json:"severity,omitempty"`
	Description string    `json:"description"`
	Details     []string  `json:"details,omitempty"`
	Keywords    []string  `json:"keywords"`
}

// Taxonomy is the fixed label table loaded once at process start.
// Label order is declaration order and breaks classification ties.
type Taxonomy struct {
	Labels []TaxonomyLabel `json:"labels"`
	// CategorySpecialty maps category labels to the medical specialty
	// derived for events whose strongest match is that category
	CategorySpecialty map[string]string `json:"category_specialty"`
}

// Categories returns the severity-bearing labels in declaration order
func (t *Taxonomy) Categories() []TaxonomyLabel {
	labels := []TaxonomyLabel{}
	for _, l := range t.Labels {
		if l.Kind == LabelKindCategory {
			labels = append(labels, l)
		}
	}
	return labels
}
