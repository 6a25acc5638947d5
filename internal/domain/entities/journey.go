package entities

import (
	"time"
)

// JourneyStep is one step of the derived diagnostic journey. Steps are
// recomputed from the event sequence on every read and never persisted,
// so they cannot go stale against their source events.
type JourneyStep struct {
	EventID      string    `json:"event_id"`
	SourceID     string    `json:"source_id"`
	Date         time.Time `json:"date"`
	Age          string    `json:"age,omitempty"`
	Title        string    `json:"title"`
	Specialty    string    `json:"specialty"`
	NewSpecialty bool      `json:"new_specialty"`
	NewDiagnosis bool      `json:"new_diagnosis"`
	// Specialties is a snapshot of all specialties seen up to and
	// including this step
	Specialties []string `json:"current_specialties"`
	// Diagnoses are the diagnosis contents carried by this step's event
	Diagnoses []string `json:"diagnoses,omitempty"`
}
