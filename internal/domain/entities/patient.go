package entities

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Patient is the static identity configuration the pipeline is built
// around. It is loaded once at startup and passed by reference; the core
// only consumes the birth date (age derivation) and the family exclusion
// list (mention filtering).
type Patient struct {
	Name          string            `json:"name"`
	DOB           string            `json:"dob"`
	BirthLocation string            `json:"birth_location,omitempty"`
	Family        []FamilyMember    `json:"family,omitempty"`
	KeyDates      []KeyDate         `json:"key_dates,omitempty"`
	Identifiers   map[string]string `json:"identifiers,omitempty"`
	// NonMedicalNames lists name variants that must never be resolved
	// as medical personnel (family members with titles, etc.)
	NonMedicalNames []string `json:"non_medical_names,omitempty"`
}

// FamilyMember is one relative of the patient
type FamilyMember struct {
	Name     string `json:"name"`
	Relation string `json:"relation"`
	Notes    string `json:"notes,omitempty"`
}

// KeyDate is a notable fixed date in the patient's history
type KeyDate struct {
	Date     string `json:"date"`
	Event    string `json:"event"`
	Location string `json:"location,omitempty"`
}

// Age is a calendar age broken into years, months and days
type Age struct {
	Years  int `json:"years"`
	Months int `json:"months"`
	Days   int `json:"days"`
}

// String renders the age the way the timeline displays it
func (a Age) String() string {
	if a.Years == 0 {
		if a.Months == 0 {
			return fmt.Sprintf("%d days old", a.Days)
		}
		return fmt.Sprintf("%d months, %d days old", a.Months, a.Days)
	}
	return fmt.Sprintf("%d years, %d months old", a.Years, a.Months)
}

// BirthDate parses the configured date of birth
func (p *Patient) BirthDate() (time.Time, error) {
	dob, err := time.Parse("2006-01-02", p.DOB)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid patient dob %q: %w", p.DOB, err)
	}
	return dob, nil
}

// AgeAt computes the patient's calendar age at the given date
func (p *Patient) AgeAt(at time.Time) (Age, error) {
	dob, err := p.BirthDate()
	if err != nil {
		return Age{}, err
	}

	years := at.Year() - dob.Year()
	months := int(at.Month()) - int(dob.Month())
	days := at.Day() - dob.Day()

	if days < 0 {
		months--
		// Borrow the day count of the month preceding the event date
		prev := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		days += prev.Day()
	}
	if months < 0 {
		years--
		months += 12
	}

	return Age{Years: years, Months: months, Days: days}, nil
}

// IsFamilyMember reports whether the given name matches a configured
// non-medical family name variant
func (p *Patient) IsFamilyMember(name string) bool {
	lower := strings.ToLower(name)
	for _, familyName := range p.NonMedicalNames {
		fn := strings.ToLower(familyName)
		if strings.Contains(lower, fn) || strings.Contains(fn, lower) {
			return true
		}
	}
	return false
}

// LoadPatient reads patient identity configuration from a JSON file
func LoadPatient(path string) (*Patient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read patient file: %w", err)
	}

	patient := &Patient{}
	if err := json.Unmarshal(data, patient); err != nil {
		return nil, fmt.Errorf("failed to parse patient file: %w", err)
	}
	if _, err := patient.BirthDate(); err != nil {
		return nil, err
	}

	return patient, nil
}
