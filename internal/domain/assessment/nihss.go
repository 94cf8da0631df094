package assessment

import (
	"time"

	"github.com/google/uuid"

	"github.com/strokeunit/strokeunit/pkg/apperr"
)

// Scores holds the fifteen NIHSS items.
type Scores struct {
	LOC           int `db:"loc" json:"loc"`
	LOCQuestions  int `db:"loc_questions" json:"loc_questions"`
	LOCCommands   int `db:"loc_commands" json:"loc_commands"`
	BestGaze      int `db:"best_gaze" json:"best_gaze"`
	VisualFields  int `db:"visual_fields" json:"visual_fields"`
	FacialPalsy   int `db:"facial_palsy" json:"facial_palsy"`
	MotorArmLeft  int `db:"motor_arm_left" json:"motor_arm_left"`
	MotorArmRight int `db:"motor_arm_right" json:"motor_arm_right"`
	MotorLegLeft  int `db:"motor_leg_left" json:"motor_leg_left"`
	MotorLegRight int `db:"motor_leg_right" json:"motor_leg_right"`
	LimbAtaxia    int `db:"limb_ataxia" json:"limb_ataxia"`
	Sensory       int `db:"sensory" json:"sensory"`
	BestLanguage  int `db:"best_language" json:"best_language"`
	Dysarthria    int `db:"dysarthria" json:"dysarthria"`
	Extinction    int `db:"extinction" json:"extinction"`
}

type item struct {
	field string
	max   int
	value int
}

func (s Scores) items() []item {
	return []item{
		{"loc", 3, s.LOC},
		{"loc_questions", 2, s.LOCQuestions},
		{"loc_commands", 2, s.LOCCommands},
		{"best_gaze", 2, s.BestGaze},
		{"visual_fields", 3, s.VisualFields},
		{"facial_palsy", 3, s.FacialPalsy},
		{"motor_arm_left", 4, s.MotorArmLeft},
		{"motor_arm_right", 4, s.MotorArmRight},
		{"motor_leg_left", 4, s.MotorLegLeft},
		{"motor_leg_right", 4, s.MotorLegRight},
		{"limb_ataxia", 2, s.LimbAtaxia},
		{"sensory", 2, s.Sensory},
		{"best_language", 3, s.BestLanguage},
		{"dysarthria", 2, s.Dysarthria},
		{"extinction", 2, s.Extinction},
	}
}

// Validate rejects the first item outside its range, naming it.
func (s Scores) Validate() error {
	for _, it := range s.items() {
		if it.value < 0 || it.value > it.max {
			return apperr.Validation(it.field, "%s must be between 0 and %d", it.field, it.max)
		}
	}
	return nil
}

// Total sums the items. For valid scores it lies in [0, 42].
func (s Scores) Total() int {
	total := 0
	for _, it := range s.items() {
		total += it.value
	}
	return total
}

type Severity string

const (
	SeverityMinor    Severity = "Minor"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

// SeverityFor classifies a total: up to 4 is minor, up to 15 moderate.
func SeverityFor(total int) Severity {
	switch {
	case total <= 4:
		return SeverityMinor
	case total <= 15:
		return SeverityModerate
	}
	return SeveritySevere
}

// NIHSSAssessment maps to the nihss_assessments table.
type NIHSSAssessment struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patient_id"`
	AssessedBy *uuid.UUID `db:"assessed_by" json:"assessed_by,omitempty"`
	AssessedAt time.Time  `db:"assessed_at" json:"assessed_at"`
	Scores
	Notes string `db:"notes" json:"notes"`

	TotalScore int      `db:"-" json:"total_score"`
	Severity   Severity `db:"-" json:"severity"`
}

func (a *NIHSSAssessment) derive() *NIHSSAssessment {
	a.TotalScore = a.Total()
	a.Severity = SeverityFor(a.TotalScore)
	return a
}
