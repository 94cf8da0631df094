package assessment

import (
	"time"

	"github.com/google/uuid"

	"github.com/strokeunit/strokeunit/internal/domain/patient"
	"github.com/strokeunit/strokeunit/internal/domain/threshold"
)

// VitalSigns maps to the vital_signs table. Rows are append-only.
type VitalSigns struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	RecordedBy       *uuid.UUID `db:"recorded_by" json:"recorded_by,omitempty"`
	RecordedAt       time.Time  `db:"recorded_at" json:"recorded_at"`
	Systolic         int        `db:"systolic_bp" json:"blood_pressure_systolic"`
	Diastolic        int        `db:"diastolic_bp" json:"blood_pressure_diastolic"`
	HeartRate        int        `db:"heart_rate" json:"heart_rate"`
	RespiratoryRate  int        `db:"respiratory_rate" json:"respiratory_rate"`
	Temperature      float64    `db:"temperature" json:"temperature"`
	OxygenSaturation int        `db:"oxygen_saturation" json:"oxygen_saturation"`
	BloodGlucose     *int       `db:"blood_glucose" json:"blood_glucose,omitempty"`
}

func (v *VitalSigns) Reading() threshold.Reading {
	return threshold.Reading{
		Systolic:         v.Systolic,
		Diastolic:        v.Diastolic,
		HeartRate:        v.HeartRate,
		RespiratoryRate:  v.RespiratoryRate,
		Temperature:      v.Temperature,
		OxygenSaturation: v.OxygenSaturation,
		BloodGlucose:     v.BloodGlucose,
	}
}

// VitalsRecord is a stored reading together with the alerts it raised.
type VitalsRecord struct {
	Vitals *VitalSigns       `json:"vital_signs"`
	Alerts []threshold.Alert `json:"alerts"`
}

type StudyType string

const (
	StudyCT  StudyType = "CT"
	StudyCTA StudyType = "CTA"
	StudyMRI StudyType = "MRI"
	StudyMRA StudyType = "MRA"
)

func (t StudyType) Valid() bool {
	switch t {
	case StudyCT, StudyCTA, StudyMRI, StudyMRA:
		return true
	}
	return false
}

// ImagingStudy records imaging metadata. The image itself lives elsewhere.
type ImagingStudy struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	StudyType   StudyType  `db:"study_type" json:"study_type"`
	PerformedAt time.Time  `db:"performed_at" json:"performed_at"`
	PerformedBy *uuid.UUID `db:"performed_by" json:"performed_by,omitempty"`
	Findings    string     `db:"findings" json:"findings"`
	ImageURL    string     `db:"image_url" json:"image_url"`
}

type LabResult struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	TestName       string     `db:"test_name" json:"test_name"`
	TestValue      string     `db:"test_value" json:"test_value"`
	ReferenceRange string     `db:"reference_range" json:"reference_range"`
	IsAbnormal     bool       `db:"is_abnormal" json:"is_abnormal"`
	RecordedAt     time.Time  `db:"recorded_at" json:"recorded_at"`
	RecordedBy     *uuid.UUID `db:"recorded_by" json:"recorded_by,omitempty"`
}

// PatientChart is the clinical view of one patient, newest entries first.
type PatientChart struct {
	Patient *patient.Patient   `json:"patient"`
	Vitals  []*VitalSigns      `json:"vital_signs"`
	NIHSS   []*NIHSSAssessment `json:"nihss_assessments"`
	Imaging []*ImagingStudy    `json:"imaging_studies"`
	Labs    []*LabResult       `json:"lab_results"`
}

// Recent is the short clinical summary shown on the patient portal.
type Recent struct {
	Vitals []*VitalSigns      `json:"vital_signs"`
	NIHSS  []*NIHSSAssessment `json:"nihss_assessments"`
}
