package assessment

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/strokeunit/strokeunit/internal/domain/patient"
	"github.com/strokeunit/strokeunit/internal/domain/threshold"
	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/internal/platform/db"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

var (
	recordClinical = auth.AnyOf(auth.CapTechnician, auth.CapNeurologist, auth.CapAdmin)
	reviewAllNIHSS = auth.AnyOf(auth.CapNeurologist, auth.CapAdmin)
)

// chartLimit caps each section of the patient chart.
const chartLimit = 50

// Alerter checks a new reading against the clinical bounds.
type Alerter interface {
	Check(ctx context.Context, s threshold.Subject, r threshold.Reading) ([]threshold.Alert, error)
}

type Service struct {
	repo     Repository
	patients patient.Repository
	alerter  Alerter
	tx       db.TxRunner
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients patient.Repository, alerter Alerter, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		alerter:  alerter,
		tx:       tx,
		logger:   logger.With().Str("component", "assessment").Logger(),
		now:      time.Now,
	}
}

func recorder(actor auth.Actor) *uuid.UUID {
	if !actor.Authenticated() {
		return nil
	}
	id := actor.UserID
	return &id
}

func (s *Service) patient(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Age = p.AgeOn(s.now())
	return p, nil
}

// VitalsInput is a bedside reading before it is stored.
type VitalsInput struct {
	Systolic         int     `json:"blood_pressure_systolic"`
	Diastolic        int     `json:"blood_pressure_diastolic"`
	HeartRate        int     `json:"heart_rate"`
	RespiratoryRate  int     `json:"respiratory_rate"`
	Temperature      float64 `json:"temperature"`
	OxygenSaturation int     `json:"oxygen_saturation"`
	BloodGlucose     *int    `json:"blood_glucose"`
}

func (in VitalsInput) validate() error {
	positive := []struct {
		field string
		value float64
	}{
		{"blood_pressure_systolic", float64(in.Systolic)},
		{"blood_pressure_diastolic", float64(in.Diastolic)},
		{"heart_rate", float64(in.HeartRate)},
		{"respiratory_rate", float64(in.RespiratoryRate)},
		{"temperature", in.Temperature},
		{"oxygen_saturation", float64(in.OxygenSaturation)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return apperr.Validation(p.field, "%s must be positive", p.field)
		}
	}
	if in.OxygenSaturation > 100 {
		return apperr.Validation("oxygen_saturation", "oxygen_saturation cannot exceed 100")
	}
	if in.BloodGlucose != nil && *in.BloodGlucose <= 0 {
		return apperr.Validation("blood_glucose", "blood_glucose must be positive")
	}
	return nil
}

// RecordVitals stores a reading and runs the threshold monitor on it in the
// same transaction.
func (s *Service) RecordVitals(ctx context.Context, actor auth.Actor, patientID uuid.UUID, in VitalsInput) (*VitalsRecord, error) {
	if err := recordClinical.Check(actor); err != nil {
		return nil, err
	}
	p, err := s.patient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.recordVitals(ctx, actor, p, in)
}

func (s *Service) recordVitals(ctx context.Context, actor auth.Actor, p *patient.Patient, in VitalsInput) (*VitalsRecord, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	v := &VitalSigns{
		PatientID:        p.ID,
		RecordedBy:       recorder(actor),
		Systolic:         in.Systolic,
		Diastolic:        in.Diastolic,
		HeartRate:        in.HeartRate,
		RespiratoryRate:  in.RespiratoryRate,
		Temperature:      math.Round(in.Temperature*10) / 10,
		OxygenSaturation: in.OxygenSaturation,
		BloodGlucose:     in.BloodGlucose,
	}
	rec := &VitalsRecord{Vitals: v}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateVitals(ctx, v); err != nil {
			return fmt.Errorf("create vital signs: %w", err)
		}
		alerts, err := s.alerter.Check(ctx, threshold.Subject{
			PatientID: p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
		}, v.Reading())
		if err != nil {
			return err
		}
		rec.Alerts = alerts
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rec.Alerts == nil {
		rec.Alerts = []threshold.Alert{}
	}
	return rec, nil
}

func (s *Service) ListVitals(ctx context.Context, actor auth.Actor, patientID uuid.UUID, limit int) ([]*VitalSigns, error) {
	if err := recordClinical.Check(actor); err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListVitals(ctx, patientID, limit)
}

// NIHSSInput is a completed NIHSS form.
type NIHSSInput struct {
	Scores
	Notes string `json:"notes"`
}

// RecordNIHSS validates every item before saving; an out-of-range item
// rejects the whole assessment.
func (s *Service) RecordNIHSS(ctx context.Context, actor auth.Actor, patientID uuid.UUID, in NIHSSInput) (*NIHSSAssessment, error) {
	if err := recordClinical.Check(actor); err != nil {
		return nil, err
	}
	if err := in.Scores.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	a := &NIHSSAssessment{
		PatientID:  patientID,
		AssessedBy: recorder(actor),
		Scores:     in.Scores,
		Notes:      in.Notes,
	}
	if err := s.repo.CreateNIHSS(ctx, a); err != nil {
		return nil, fmt.Errorf("create nihss assessment: %w", err)
	}
	a.derive()
	s.logger.Info().
		Str("patient_id", patientID.String()).
		Str("assessment_id", a.ID.String()).
		Int("total", a.TotalScore).
		Msg("nihss recorded")
	return a, nil
}

func (s *Service) GetNIHSS(ctx context.Context, actor auth.Actor, id uuid.UUID) (*NIHSSAssessment, error) {
	if err := recordClinical.Check(actor); err != nil {
		return nil, err
	}
	return s.repo.GetNIHSS(ctx, id)
}

func (s *Service) ListNIHSS(ctx context.Context, actor auth.Actor, patientID uuid.UUID, limit int) ([]*NIHSSAssessment, error) {
	if err := recordClinical.Check(actor); err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListNIHSS(ctx, patientID, limit)
}

// ListAllNIHSS is the unit-wide assessment list for neurologists.
func (s *Service) ListAllNIHSS(ctx context.Context, actor auth.Actor, limit, offset int) ([]*NIHSSAssessment, int, error) {
	if err := reviewAllNIHSS.Check(actor); err != nil {
		return nil, 0, err
	}
	return s.repo.ListAllNIHSS(ctx, limit, offset)
}

type ImagingInput struct {
	StudyType StudyType `json:"study_type"`
	Findings  string    `json:"findings"`
	ImageURL  string    `json:"image_url"`
}

func (s *Service) RecordImaging(ctx context.Context, actor auth.Actor, patientID uuid.UUID, in ImagingInput) (*ImagingStudy, error) {
	if err := recordClinical.Check(actor); err != nil {
		return nil, err
	}
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.recordImaging(ctx, actor, p, in)
}

func (s *Service) recordImaging(ctx context.Context, actor auth.Actor, p *patient.Patient, in ImagingInput) (*ImagingStudy, error) {
	in.StudyType = StudyType(strings.ToUpper(strings.TrimSpace(string(in.StudyType))))
	if !in.StudyType.Valid() {
		return nil, apperr.Validation("study_type", "study type must be CT, CTA, MRI or MRA")
	}
	if strings.TrimSpace(in.Findings) == "" {
		return nil, apperr.Validation("findings", "findings are required")
	}
	st := &ImagingStudy{
		PatientID:   p.ID,
		StudyType:   in.StudyType,
		PerformedBy: recorder(actor),
		Findings:    in.Findings,
		ImageURL:    strings.TrimSpace(in.ImageURL),
	}
	if err := s.repo.CreateImaging(ctx, st); err != nil {
		return nil, fmt.Errorf("create imaging study: %w", err)
	}
	return st, nil
}

type LabInput struct {
	TestName       string `json:"test_name"`
	TestValue      string `json:"test_value"`
	ReferenceRange string `json:"reference_range"`
	IsAbnormal     bool   `json:"is_abnormal"`
}

func (s *Service) RecordLab(ctx context.Context, actor auth.Actor, patientID uuid.UUID, in LabInput) (*LabResult, error) {
	if err := recordClinical.Check(actor); err != nil {
		return nil, err
	}
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return s.recordLab(ctx, actor, p, in)
}

func (s *Service) recordLab(ctx context.Context, actor auth.Actor, p *patient.Patient, in LabInput) (*LabResult, error) {
	if strings.TrimSpace(in.TestName) == "" {
		return nil, apperr.Validation("test_name", "test name is required")
	}
	l := &LabResult{
		PatientID:      p.ID,
		TestName:       strings.TrimSpace(in.TestName),
		TestValue:      in.TestValue,
		ReferenceRange: in.ReferenceRange,
		IsAbnormal:     in.IsAbnormal,
		RecordedBy:     recorder(actor),
	}
	if err := s.repo.CreateLab(ctx, l); err != nil {
		return nil, fmt.Errorf("create lab result: %w", err)
	}
	return l, nil
}

// Chart returns the patient with every clinical section, newest first.
func (s *Service) Chart(ctx context.Context, actor auth.Actor, patientID uuid.UUID) (*PatientChart, error) {
	if err := recordClinical.Check(actor); err != nil {
		return nil, err
	}
	p, err := s.patient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	chart := &PatientChart{Patient: p}
	if chart.Vitals, err = s.repo.ListVitals(ctx, patientID, chartLimit); err != nil {
		return nil, err
	}
	if chart.NIHSS, err = s.repo.ListNIHSS(ctx, patientID, chartLimit); err != nil {
		return nil, err
	}
	if chart.Imaging, err = s.repo.ListImaging(ctx, patientID, chartLimit); err != nil {
		return nil, err
	}
	if chart.Labs, err = s.repo.ListLabs(ctx, patientID, chartLimit); err != nil {
		return nil, err
	}
	return chart, nil
}

// Recent returns the newest vitals and NIHSS assessments for the portal.
// The caller has already established access to the patient.
func (s *Service) Recent(ctx context.Context, patientID uuid.UUID, limit int) (*Recent, error) {
	vitals, err := s.repo.ListVitals(ctx, patientID, limit)
	if err != nil {
		return nil, err
	}
	nihss, err := s.repo.ListNIHSS(ctx, patientID, limit)
	if err != nil {
		return nil, err
	}
	if vitals == nil {
		vitals = []*VitalSigns{}
	}
	if nihss == nil {
		nihss = []*NIHSSAssessment{}
	}
	return &Recent{Vitals: vitals, NIHSS: nihss}, nil
}
