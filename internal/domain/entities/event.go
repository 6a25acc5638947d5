package entities

import (
	"time"
)

// ExtractionStatus tracks the state of attachment text extraction
type ExtractionStatus string

const (
	// ExtractionPending means the attachment has not been processed yet
	ExtractionPending ExtractionStatus = "pending"

	// ExtractionOK means text was extracted successfully
	ExtractionOK ExtractionStatus = "ok"

	// ExtractionFailed means extraction failed; the event proceeds without this text
	ExtractionFailed ExtractionStatus = "failed"
)

// Event represents a normalized medical timeline event built from one raw
// export record. Events are replaced wholesale on re-ingestion of the same
// source record, keyed by SourceID.
type Event struct {
	ID                  string                 `json:"id" db:"id"`
	SourceID            string                 `json:"source_id" db:"source_id"`
	SourceFile          string                 `json:"source_file,omitempty" db:"source_file"`
	Title               string                 `json:"title" db:"title"`
	Date                *time.Time             `json:"date,omitempty" db:"event_date"`
	Age                 string                 `json:"age,omitempty" db:"age"`
	Specialty           string                 `json:"specialty" db:"specialty"`
	SpecialtyConfidence float64                `json:"specialty_confidence" db:"specialty_confidence"`
	Content             string                 `json:"content" db:"content"`
	Classifications     []ClassificationResult `json:"classifications" db:"-"`
	EntityRefs          []EntityReference      `json:"entity_refs" db:"-"`
	Attachments         []Attachment           `json:"attachments" db:"-"`
	Diagnoses           []string               `json:"diagnoses,omitempty" db:"-"`
	Identifiers         map[string]string      `json:"identifiers,omitempty" db:"-"`
	Tags                []string               `json:"tags,omitempty" db:"-"`
	SourceURL           string                 `json:"source_url,omitempty" db:"source_url"`
	CreatedAt           time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at" db:"updated_at"`
}

// Dated reports whether the event carries a timestamp and so participates
// in time-ordered views
func (e *Event) Dated() bool {
	return e.Date != nil
}

// SearchText returns the full text pool indexed for this event, including
// extracted attachment text
func (e *Event) SearchText() string {
	text := e.Title + "\n" + e.Content
	for _, att := range e.Attachments {
		if att.Status == ExtractionOK && att.Text != "" {
			text += "\n" + att.Text
		}
	}
	return text
}

// Attachment represents a binary file owned by exactly one event, together
// with its extracted text if extraction succeeded
type Attachment struct {
	ID            string           `json:"id" db:"id"`
	EventID       string           `json:"event_id" db:"event_id"`
	FileName      string           `json:"file_name" db:"file_name"`
	MimeType      string           `json:"mime_type" db:"mime_type"`
	Fingerprint   string           `json:"fingerprint" db:"fingerprint"`
	Text          string           `json:"text,omitempty" db:"extracted_text"`
	Status        ExtractionStatus `json:"status" db:"status"`
	FailureReason string           `json:"failure_reason,omitempty" db:"failure_reason"`
}
