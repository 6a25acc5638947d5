// Seed writes a sample patient file and a batch of raw export records into
// the ingest input directory, so the pipeline can be run end to end against
// local services without a real notebook export.
package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
)

func main() {
	outDir := os.Getenv("SEED_OUTPUT_DIR")
	if outDir == "" {
		outDir = "./exports"
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	patient := &entities.Patient{
		Name:          "Gwendolyn Vials Moore",
		DOB:           "2014-08-22",
		BirthLocation: "Liverpool Women's Hospital",
		Family: []entities.FamilyMember{
			{Name: "Adam Vials Moore", Relation: "father"},
			{Name: "Tori Vials Moore", Relation: "mother"},
		},
		Identifiers: map[string]string{
			"nhs_number": "000 000 0000",
		},
		NonMedicalNames: []string{
			"Gwendolyn", "Gwen", "Adam Vials Moore", "Tori Vials Moore",
			"Mr Vials Moore", "Mrs Vials Moore",
		},
	}

	records := []*entities.RawRecord{
		{
			SourceID:   "seed-note-0001",
			SourceFile: "seed.json",
			Title:      "Sleep study referral",
			Date:       "2016-03-14",
			Tags:       []string{"respiratory"},
			Content: "Seen by Dr Sarah Whitfield at Alder Hey Children's Hospital. " +
				"Ongoing concerns about obstructive sleep apnoea and oxygen " +
				"desaturation overnight. Requested a sleep study and CPAP review.",
		},
		{
			SourceID:   "seed-note-0002",
			SourceFile: "seed.json",
			Title:      "Orthopaedic clinic follow-up",
			Date:       "2019-11-02",
			Tags:       []string{"mobility"},
			Content: "Follow-up with Mr James Holt after patella stabilisation " +
				"surgery. Knee pain persists; wheelchair transfers still need " +
				"2:1 assistance. Physiotherapy to continue weekly.",
		},
		{
			SourceID:   "seed-note-0003",
			SourceFile: "seed.json",
			Title:      "Feeding review",
			Date:       "2017-06-20",
			Tags:       []string{"nutrition"},
			Content: "Dietitian review. Reflux and vomiting after meals, GERD " +
				"suspected. Diagnosed with gastro-oesophageal reflux disease. " +
				"Thickener prescribed; prefers drinking through a straw due to " +
				"choking risk.",
		},
		{
			SourceID: "seed-note-0004",
			Title:    "Photo of clinic letter",
			Date:     "2020-01-15",
			Content:  "Scanned letter attached.",
			Attachments: []entities.RawAttachment{
				{
					FileName: "clinic-letter.txt",
					MimeType: "text/plain",
					Data: []byte("Neurology clinic, Dr Amara Okafor. EEG reviewed; " +
						"absence seizures noted. Medication adjusted."),
				},
			},
		},
	}

	// The patient file lives outside the input directory; the ingest
	// command treats every .json file there as a raw record batch
	patientPath := os.Getenv("SEED_PATIENT_FILE")
	if patientPath == "" {
		patientPath = "patient.json"
	}
	if err := writeJSON(patientPath, patient); err != nil {
		log.Fatalf("Failed to write patient file: %v", err)
	}

	recordsPath := filepath.Join(outDir, "seed-records.json")
	if err := writeJSON(recordsPath, records); err != nil {
		log.Fatalf("Failed to write seed records: %v", err)
	}

	log.Printf("Seeded %s and %s", patientPath, recordsPath)
	log.Printf("Run: PATIENT_FILE=%s INGEST_INPUT_DIR=%s go run ./cmd/ingest -mock-ocr", patientPath, outDir)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
