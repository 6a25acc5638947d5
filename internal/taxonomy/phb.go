// Package taxonomy holds the static classification tables: the PHB
// category/support label definitions, the category-to-specialty mapping and
// the personnel/facility type keyword tables. The defaults mirror the
// curated PHB assessment; a JSON file can override them at startup.
package taxonomy

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vialsmoore/medtimeline/backend/internal/domain/entities"
)

// Default returns the built-in PHB taxonomy
func Default() *entities.Taxonomy {
	return &entities.Taxonomy{
		Labels:            append(defaultCategories(), defaultSupports()...),
		CategorySpecialty: defaultCategorySpecialty(),
	}
}

// Load reads a taxonomy override from a JSON file, falling back to the
// built-in defaults when path is empty
func Load(path string) (*entities.Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}

	taxonomy := &entities.Taxonomy{}
	if err := json.Unmarshal(data, taxonomy); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy file: %w", err)
	}
	if len(taxonomy.Labels) == 0 {
		return nil, fmt.Errorf("taxonomy file %s defines no labels", path)
	}
	if taxonomy.CategorySpecialty == nil {
		taxonomy.CategorySpecialty = defaultCategorySpecialty()
	}

	return taxonomy, nil
}

func defaultCategories() []entities.TaxonomyLabel {
	return []entities.TaxonomyLabel{
		{
			Name:        "Respiratory",
			Kind:        entities.LabelKindCategory,
			Severity:    entities.SeveritySevere,
			Description: "Severe, frequent, hard-to-predict apnoea not related to seizures",
			Details: []string{
				"Central and obstructive sleep apnoea",
				"Ventilation and respiratory arrests",
				"Under specialist respiratory and sleep teams",
				"Requested sleep study due to deterioration",
			},
			Keywords: []string{
				"apnoea", "apnea", "sleep", "respiratory", "breathing", "ventilation",
				"oxygen", "airway", "lung", "pulmonary", "saturation", "desaturation",
				"cpap", "sleep study", "hypoxia",
			},
		},
		{
			Name:        "Nutrition",
			Kind:        entities.LabelKindCategory,
			Severity:    entities.SeverityHigh,
			Description: "Problems with intake of food and drink",
			Details: []string{
				"Vomiting and reflux due to gastric issues including GERD",
				"May need tube feeding or thickeners",
				"Prefers drinking through a straw to reduce choking risk",
				"Dietary and behavioral complexities including food obsession and PICA",
				"Obesity requiring specialist input",
			},
			Keywords: []string{
				"food", "drink", "vomit", "reflux", "gastric", "gerd", "tube", "feed",
				"thickener", "straw", "chok", "diet", "pica", "obesity", "swallow",
				"dysphagia", "nutrition", "stomach",
			},
		},
		{
			Name:        "Mobility",
			Kind:        entities.LabelKindCategory,
			Severity:    entities.SeverityHigh,
			Description: "Mobility impairments",
			Details: []string{
				"Multiple major orthopaedic surgeries (osteotomy and patella stabilization)",
				"Atypical anatomy (flat bones, partial kneecap, leg length discrepancy)",
				"Lower-limb instability and severe pain",
				"Pending further specialist surgery on both legs",
				"Requires 2:1 assistance for transfers/positioning",
				"Uses bespoke NHS wheelchair",
			},
			Keywords: []string{
				"mobility", "orthopaedic", "orthopedic", "surgery", "knee", "leg",
				"bone", "transfer", "wheelchair", "osteotomy", "patella", "joint",
				"gait", "fracture", "physiotherapy", "physio",
			},
		},
		{
			Name:        "Continence",
			Kind:        entities.LabelKindCategory,
			Severity:    entities.SeverityHigh,
			Description: "Continence & toileting needs",
			Details: []string{
				"Cannot wipe or clean independently",
				"Regular accidents",
				"Under care of continence team and urology nurses",
				"Recurrent UTIs",
				"No capacity to change pads or manage personal hygiene",
			},
			Keywords: []string{
				"continence", "toilet", "wipe", "accident", "uti", "urinary",
				"urology", "gynae", "bleed", "pad", "hygiene", "bladder", "catheter",
				"incontinence",
			},
		},
		{
			Name:        "Skin",
			Kind:        entities.LabelKindCategory,
			Severity:    entities.SeverityHigh,
			Description: "Skin integrity & wound management",
			Details: []string{
				"Eczema",
				"Allergies to plaster/dressings",
				"Reopens wounds",
				"Slow/failed healing",
				"Requires specialist dressing regimes",
			},
			Keywords: []string{
				"skin", "eczema", "wound", "heal", "dressing", "plaster", "cast",
				"brace", "rash", "dermatology", "dermatitis", "pressure sore",
				"viability",
			},
		},
		{
			Name:        "Communication",
			Kind:        entities.LabelKindCategory,
			Severity:    entities.SeverityModerate,
			Description: "Communication difficulties",
			Details: []string{
				"Difficulty communicating emotions and needs",
				"Requires visual or tactile aids",
				"Speech understandable only to familiar adults",
				"Uses sign-based and visual supports",
			},
			Keywords: []string{
				"communication", "speech", "language", "sign", "makaton",
				"signalong", "nonverbal", "speech therapy", "salt", "articulation",
				"visual aid",
			},
		},
		{
			Name:        "Medication",
			Kind:        entities.LabelKindCategory,
			Severity:    entities.SeveritySevere,
			Description: "Drug therapies and medication",
			Details: []string{
				"Requires daily management by registered nurse",
				"Regular medical practitioner oversight",
				"Unstable gastro conditions",
				"Constant monitoring for respiratory status, reflux, and pain",
			},
			Keywords: []string{
				"medication", "drug", "dose", "tablet", "prescription", "prescribe",
				"pharmacy", "administer", "injection", "infusion", "titration",
				"side effect",
			},
		},
		{
			Name:        "Psychological",
			Kind:        entities.LabelKindCategory,
			Severity:    entities.SeverityHigh,
			Description: "Psychological & emotional vulnerability",
			Details: []string{
				"Acute and prolonged emotional dysregulation",
				"Severe anxiety",
				"Poor impulse control",
				"ASD/PDA diagnosis",
				"Down Syndrome",
			},
			Keywords: []string{
				"psychological", "emotional", "anxiety", "impulse", "asd", "pda",
				"autism", "down syndrome", "dysregulation", "sensory", "meltdown",
				"mental health",
			},
		},
		{
			Name:        "Seizures",
			Kind:        entities.LabelKindCategory,
			Severity:    entities.SeverityModerate,
			Description: "Seizure activity",
			Details: []string{
				"Ongoing concerns about absence seizures",
				"Recorded episodes in clinical settings",
				"Occur several times a day",
				"Constant supervision essential",
			},
			Keywords: []string{
				"seizure", "epilepsy", "absence", "episode", "convulsion", "eeg",
				"anticonvulsant", "postictal", "tonic", "clonic", "midazolam",
			},
		},
		{
			Name:        "Behavioral",
			Kind:        entities.LabelKindCategory,
			Severity:    entities.SeveritySevere,
			Description: "Behavioral challenges",
			Details: []string{
				"Intense, severe behaviors threatening safety",
				"Complex combination of DS/ASD/PDA",
				"Frequent high-risk behaviors",
				"Requires constant supervision and structured approach",
			},
			Keywords: []string{
				"behavior", "behaviour", "meltdown", "impulsive", "supervision",
				"safety", "self-harm", "aggressive", "elope", "refuse", "high-risk",
			},
		},
	}
}

func defaultSupports() []entities.TaxonomyLabel {
	return []entities.TaxonomyLabel{
		{
			Name:        "Personal Assistant",
			Kind:        entities.LabelKindSupport,
			Description: "Personal Assistant (PA) for 1:1 or 2:1 Support Outside of School",
			Details: []string{
				"Constant supervision for safety",
				"2:1 care for toileting, transfers, mobility",
				"Trained PA who understands medical conditions, sensory needs, and communication",
				"25 hours/week of outside-of-school support",
			},
			Keywords: []string{
				"personal assistant", "support worker", "carer", "caregiver",
				"supervision", "1:1", "2:1", "care package",
			},
		},
		{
			Name:        "Hippotherapy",
			Kind:        entities.LabelKindSupport,
			Description: "Therapeutic Horse Riding (Hippotherapy)",
			Details: []string{
				"Improves core strength, balance, lower-limb stability, and sensory integration",
				"Aids posture and muscle tone management",
				"Regular specialist-led sessions",
			},
			Keywords: []string{
				"horse", "riding", "hippotherapy", "equine", "saddle", "stable",
				"core strength", "balance", "posture",
			},
		},
		{
			Name:        "Swimming",
			Kind:        entities.LabelKindSupport,
			Description: "Specialist 1:1 Swimming/Hydrotherapy Sessions",
			Details: []string{
				"Improves muscle tone, range of motion, and cardio-respiratory health",
				"Cannot concentrate or behave safely in group lessons",
				"Twice-weekly 1:1 sessions",
			},
			Keywords: []string{
				"swim", "hydrotherapy", "pool", "aquatic", "float", "buoyancy",
				"water confidence",
			},
		},
		{
			Name:        "Respite",
			Kind:        entities.LabelKindSupport,
			Description: "Respite: Support & Short-Stay Accommodation/Holiday",
			Details: []string{
				"Continuous supervision needs",
				"Short breaks reduce caregiver burnout",
				"Short-stay breaks in specialized setting",
			},
			Keywords: []string{
				"respite", "short break", "short-stay", "claire house", "hospice",
				"overnight stay", "burnout",
			},
		},
		{
			Name:        "Technology",
			Kind:        entities.LabelKindSupport,
			Description: "Assistive/Interactive Technology (iPad Pro & Apple Pencil)",
			Details: []string{
				"Visual and hearing impairments",
				"Needs large print (18pt+) and accessible apps",
				"iPad Pro with Apple Pencil for specialized communication software",
				"Supports fine motor development and independent learning",
			},
			Keywords: []string{
				"ipad", "apple pencil", "assistive technology", "communication app",
				"accessible app", "large print", "tablet",
			},
		},
	}
}

func defaultCategorySpecialty() map[string]string {
	return map[string]string{
		"Respiratory":   "Pulmonology",
		"Nutrition":     "Gastroenterology",
		"Mobility":      "Orthopedics",
		"Continence":    "Urology",
		"Skin":          "Dermatology",
		"Communication": "Therapy",
		"Medication":    "General",
		"Psychological": "Psychiatry",
		"Seizures":      "Neurology",
		"Behavioral":    "Psychiatry",
	}
}

// PersonnelTypes maps personnel categories to the title keywords that
// signal them in free text
var PersonnelTypes = map[string][]string{
	"Doctor":     {"dr", "doctor", "consultant", "physician", "surgeon", "registrar", "professor", "prof"},
	"Nurse":      {"nurse", "sister", "matron", "staff nurse"},
	"Therapist":  {"therapist", "physiotherapist", "physio", "occupational therapist", "speech therapist", "salt", "psychologist"},
	"Specialist": {"specialist", "audiologist", "optometrist", "dietitian", "pharmacist", "social worker"},
	"Support":    {"assistant", "aide", "support worker", "care worker", "carer"},
}

// FacilityTypes maps facility categories to their name keywords
var FacilityTypes = map[string][]string{
	"Hospital":        {"hospital", "infirmary", "clinic", "health centre", "health center", "nhs trust", "foundation trust"},
	"Specialty Center": {"children's hospital", "paediatric hospital", "pediatric hospital", "specialist hospital"},
	"Therapy Center":  {"therapy centre", "therapy center", "rehabilitation centre", "rehabilitation center"},
	"Community":       {"day centre", "day center", "respite centre", "hospice", "care home", "residential"},
	"School":          {"school", "academy", "college", "learning centre"},
}

// CategorizeMention derives a type tag for a mention from a keyword table,
// matching the longest keyword that appears in the text
func CategorizeMention(text string, table map[string][]string) string {
	lower := normalize(text)
	best := ""
	bestLen := 0
	for typeName, keywords := range table {
		for _, kw := range keywords {
			if len(kw) > bestLen && containsWord(lower, kw) {
				best = typeName
				bestLen = len(kw)
			}
		}
	}
	if best == "" {
		return "Unknown"
	}
	return best
}
