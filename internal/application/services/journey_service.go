package services

import (
	"sort"
	"strings"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
)

// JourneyService derives the diagnostic journey from a set of events. The
// computation is pure and recomputed on every read: the same events always
// yield the same journey, regardless of input order.
type JourneyService struct{}

// NewJourneyService creates a new journey service
func NewJourneyService() *JourneyService {
	return &JourneyService{}
}

// Compute builds the chronological diagnostic journey. Undated events do
// not participate; dated events sort by date with source id as the
// tiebreak, and each step carries a snapshot of every specialty seen so
// far plus flags for first-seen specialties and diagnoses.
func (s *JourneyService) Compute(events []*entities.Event) []entities.JourneyStep {
	dated := make([]*entities.Event, 0, len(events))
	for _, event := range events {
		if event.Dated() {
			dated = append(dated, event)
		}
	}

	sort.Slice(dated, func(i, j int) bool {
		if dated[i].Date.Equal(*dated[j].Date) {
			return dated[i].SourceID < dated[j].SourceID
		}
		return dated[i].Date.Before(*dated[j].Date)
	})

	steps := make([]entities.JourneyStep, 0, len(dated))
	seenSpecialties := map[string]bool{}
	specialties := []string{}
	seenDiagnoses := map[string]bool{}

	for _, event := range dated {
		step := entities.JourneyStep{
			EventID:   event.ID,
			SourceID:  event.SourceID,
			Date:      *event.Date,
			Age:       event.Age,
			Title:     event.Title,
			Specialty: event.Specialty,
			Diagnoses: event.Diagnoses,
		}

		if event.Specialty != "" && !seenSpecialties[event.Specialty] {
			seenSpecialties[event.Specialty] = true
			specialties = append(specialties, event.Specialty)
			step.NewSpecialty = true
		}

		for _, diagnosis := range event.Diagnoses {
			key := strings.ToLower(strings.TrimSpace(diagnosis))
			if key == "" || seenDiagnoses[key] {
				continue
			}
			seenDiagnoses[key] = true
			step.NewDiagnosis = true
		}

		step.Specialties = append([]string{}, specialties...)
		steps = append(steps, step)
	}

	return steps
}
