package reporting

import (
	"time"

	"github.com/google/uuid"
)

// Bucket is one labelled count of an ordered distribution.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Stats is the unit-wide summary shown on the reports page.
type Stats struct {
	GeneratedAt          time.Time      `json:"generated_at"`
	TotalPatients        int            `json:"total_patients"`
	PatientsToday        int            `json:"patients_registered_today"`
	GenderDistribution   map[string]int `json:"gender_distribution"`
	AgeDistribution      []Bucket       `json:"age_distribution"`
	NIHSSSeverity        map[string]int `json:"nihss_severity_distribution"`
	NIHSSAssessments     int            `json:"nihss_assessments"`
	AverageNIHSS         *float64       `json:"average_nihss_score"`
	ConsultationsByState map[string]int `json:"consultations_by_status"`
	TPAByStatus          map[string]int `json:"tpa_requests_by_status"`
	TPAAdministered      int            `json:"tpa_administered"`
}

// ExportRow is one consultation line of the workbook export.
type ExportRow struct {
	ConsultationID  uuid.UUID
	PatientName     string
	Status          string
	ChiefComplaint  string
	RequestedAt     time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Neurologist     string
	TPAStatus       string
	TPAAdministered bool
}
