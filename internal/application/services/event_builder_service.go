package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
	"github.com/vialsmoore/medtimeline/backend/internal/taxonomy"
	apperrors "github.com/vialsmoore/medtimeline/backend/pkg/errors"
)

// Date layouts accepted for raw record dates, tried in order
var recordDateLayouts = []string{
	"2006-01-02",
	"20060102T150405Z",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2 January 2006",
	"January 2, 2006",
}

// Practitioner mentions are title-led: a recognized title followed by a
// capitalized name. The title stays in the match for type categorization;
// the capture group is the name that gets resolved.
var practitionerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:Dr|Doctor|Prof|Professor|Mr|Mrs|Miss|Ms)\.?\s+([A-Z][A-Za-z'\-]+(?:\s+[A-Z][A-Za-z'\-]+){0,2})`),
	regexp.MustCompile(`(?:Nurse|Sister|Matron)\s+([A-Z][A-Za-z'\-]+(?:\s+[A-Z][A-Za-z'\-]+){0,2})`),
	regexp.MustCompile(`(?:Physiotherapist|Physio|Therapist|Dietitian|Audiologist)\s+([A-Z][A-Za-z'\-]+(?:\s+[A-Z][A-Za-z'\-]+){0,2})`),
}

// Facility mentions are suffix-led: capitalized words ending in a known
// institution word
var facilityPattern = regexp.MustCompile(
	`([A-Z][A-Za-z'\-]+(?:\s+[A-Z][A-Za-z'\-]+){0,4}\s+(?:Hospital|Infirmary|Clinic|Hospice|Centre|Center|Trust|School|Academy))`)

var diagnosisPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)diagnosed\s+with\s+([^.\n;,]+)`),
	regexp.MustCompile(`(?i)diagnosis(?:\s+of)?\s*[:\-]\s*([^.\n;]+)`),
	regexp.MustCompile(`(?i)confirmed\s+diagnosis\s+of\s+([^.\n;,]+)`),
}

var identifierPatterns = map[string]*regexp.Regexp{
	"nhs_number":      regexp.MustCompile(`(?i)\bNHS\s*(?:no\.?|number|#)?\s*[:\s]\s*(\d{3}\s?\d{3}\s?\d{4})`),
	"hospital_number": regexp.MustCompile(`(?i)\bhospital\s*(?:no\.?|number|#)\s*[:\s]\s*([A-Za-z0-9\-]+)`),
}

// EventBuilderService assembles normalized events from raw export records:
// extraction, classification, specialty derivation, entity resolution and
// age annotation in one deterministic pass
type EventBuilderService struct {
	extractor  *ExtractionService
	classifier *ClassifierService
	resolver   *EntityResolverService
	patient    *entities.Patient
	logger     zerolog.Logger
}

// NewEventBuilderService creates a new event builder service
func NewEventBuilderService(
	extractor *ExtractionService,
	classifier *ClassifierService,
	resolver *EntityResolverService,
	patient *entities.Patient,
	logger zerolog.Logger,
) *EventBuilderService {
	return &EventBuilderService{
		extractor:  extractor,
		classifier: classifier,
		resolver:   resolver,
		patient:    patient,
		logger:     logger,
	}
}

// Build turns one raw record into a normalized event. Attachment extraction
// failures degrade to failed attachments; only a structurally unusable
// record (missing source id or title, unparseable date) returns an error.
func (s *EventBuilderService) Build(ctx context.Context, raw *entities.RawRecord) (*entities.Event, error) {
	if strings.TrimSpace(raw.SourceID) == "" {
		return nil, apperrors.NewMalformedRecordError("source_id", "record has no source id")
	}
	if strings.TrimSpace(raw.Title) == "" {
		return nil, apperrors.NewMalformedRecordError("title", "record has no title")
	}

	date, err := parseRecordDate(raw.Date)
	if err != nil {
		return nil, apperrors.NewMalformedRecordError("date",
			fmt.Sprintf("unparseable record date %q", raw.Date))
	}

	now := time.Now().UTC()
	event := &entities.Event{
		ID:         uuid.NewString(),
		SourceID:   raw.SourceID,
		SourceFile: raw.SourceFile,
		Title:      strings.TrimSpace(raw.Title),
		Date:       date,
		Content:    raw.Content,
		Tags:       raw.Tags,
		SourceURL:  raw.SourceURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	for _, rawAttachment := range raw.Attachments {
		attachment := s.extractor.Extract(ctx, rawAttachment)
		attachment.EventID = event.ID
		event.Attachments = append(event.Attachments, attachment)
	}

	pool := event.SearchText()

	event.Classifications = s.classifier.Classify(pool)
	event.Specialty, event.SpecialtyConfidence = s.classifier.Specialty(event.Classifications)

	refs, err := s.resolveMentions(ctx, pool)
	if err != nil {
		return nil, err
	}
	event.EntityRefs = refs

	event.Diagnoses = extractDiagnoses(pool)
	event.Identifiers = extractIdentifiers(pool)

	if event.Dated() {
		age, err := s.patient.AgeAt(*event.Date)
		if err != nil {
			return nil, err
		}
		event.Age = age.String()
	}

	return event, nil
}

// resolveMentions scans the text pool for practitioner and facility
// mentions and resolves each through the entity resolver, skipping family
// members and de-duplicating by resolved entity
func (s *EventBuilderService) resolveMentions(ctx context.Context, pool string) ([]entities.EntityReference, error) {
	refs := []entities.EntityReference{}
	seen := map[string]bool{}

	appendRef := func(mention, name string, role entities.EntityRole, table map[string][]string) error {
		if s.patient.IsFamilyMember(name) {
			return nil
		}
		entity, err := s.resolver.Resolve(ctx, name, role)
		if err != nil {
			return err
		}
		key := entity.ID + ":" + string(role)
		if seen[key] {
			return nil
		}
		seen[key] = true
		refs = append(refs, entities.EntityReference{
			EntityID:    entity.ID,
			Role:        role,
			Name:        entity.DisplayName,
			MentionType: taxonomy.CategorizeMention(mention, table),
			Specialty:   entity.Specialty,
		})
		return nil
	}

	for _, pattern := range practitionerPatterns {
		for _, match := range pattern.FindAllStringSubmatch(pool, -1) {
			if err := appendRef(match[0], match[1], entities.EntityRolePractitioner, taxonomy.PersonnelTypes); err != nil {
				return nil, err
			}
		}
	}
	for _, match := range facilityPattern.FindAllStringSubmatch(pool, -1) {
		if err := appendRef(match[0], match[1], entities.EntityRoleFacility, taxonomy.FacilityTypes); err != nil {
			return nil, err
		}
	}

	return refs, nil
}

// parseRecordDate parses the raw date string, returning nil for an undated
// record and an error only when a date is present but unreadable
func parseRecordDate(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	for _, layout := range recordDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			utc := parsed.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("no layout matches %q", trimmed)
}

func extractDiagnoses(pool string) []string {
	diagnoses := []string{}
	seen := map[string]bool{}
	for _, pattern := range diagnosisPatterns {
		for _, match := range pattern.FindAllStringSubmatch(pool, -1) {
			diagnosis := strings.TrimSpace(strings.Trim(match[1], " .,:;-"))
			if diagnosis == "" {
				continue
			}
			key := strings.ToLower(diagnosis)
			if seen[key] {
				continue
			}
			seen[key] = true
			diagnoses = append(diagnoses, diagnosis)
		}
	}
	return diagnoses
}

func extractIdentifiers(pool string) map[string]string {
	identifiers := map[string]string{}
	for name, pattern := range identifierPatterns {
		if match := pattern.FindStringSubmatch(pool); match != nil {
			identifiers[name] = strings.TrimSpace(match[1])
		}
	}
	if len(identifiers) == 0 {
		return nil
	}
	return identifiers
}
