package assessment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strokeunit/strokeunit/internal/domain/account"
	"github.com/strokeunit/strokeunit/internal/domain/patient"
	"github.com/strokeunit/strokeunit/internal/domain/threshold"
	"github.com/strokeunit/strokeunit/internal/platform/auth"
	"github.com/strokeunit/strokeunit/internal/platform/db"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

var (
	techActor    = auth.NewActor(uuid.New(), []string{"technician"})
	neuroActor   = auth.NewActor(uuid.New(), []string{"neurologist"})
	patientActor = auth.NewActor(uuid.New(), []string{"patient"})
)

type fixture struct {
	svc      *Service
	repo     *mockAssessmentRepo
	notifier *staffNotifier
	patient  *patient.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := &patient.Patient{
		ID:          uuid.New(),
		FirstName:   "Jane",
		LastName:    "Doe",
		DateOfBirth: time.Date(1958, 2, 1, 0, 0, 0, 0, time.UTC),
		Gender:      patient.GenderFemale,
	}
	repo := newMockAssessmentRepo()
	notifier := newStaffNotifier(2, 3)
	mon := threshold.NewMonitor(notifier, zerolog.Nop())
	patients := &stubPatients{store: map[uuid.UUID]*patient.Patient{p.ID: p}}
	svc := NewService(repo, patients, mon, db.Direct{}, zerolog.Nop())
	return &fixture{svc: svc, repo: repo, notifier: notifier, patient: p}
}

func normalVitals() VitalsInput {
	return VitalsInput{
		Systolic: 140, Diastolic: 85, HeartRate: 78, RespiratoryRate: 16,
		Temperature: 36.84, OxygenSaturation: 97,
	}
}

func TestRecordVitals_RoundsTemperature(t *testing.T) {
	f := newFixture(t)
	rec, err := f.svc.RecordVitals(context.Background(), techActor, f.patient.ID, normalVitals())
	require.NoError(t, err)
	assert.Equal(t, 36.8, rec.Vitals.Temperature)
	assert.Empty(t, rec.Alerts)
	assert.Zero(t, f.notifier.total())
	require.NotNil(t, rec.Vitals.RecordedBy)
	assert.Equal(t, techActor.UserID, *rec.Vitals.RecordedBy)
}

func TestRecordVitals_CriticalSystolicNotifiesEveryone(t *testing.T) {
	f := newFixture(t)
	in := normalVitals()
	in.Systolic = 200

	rec, err := f.svc.RecordVitals(context.Background(), techActor, f.patient.ID, in)
	require.NoError(t, err)
	require.Len(t, rec.Alerts, 1)
	assert.True(t, rec.Alerts[0].Critical)

	for _, id := range f.notifier.roster[account.RoleNeurologist] {
		require.Len(t, f.notifier.sent[id], 1)
		assert.Equal(t, "CRITICAL Vital Sign - Jane Doe", f.notifier.sent[id][0].Title)
	}
	for _, id := range f.notifier.roster[account.RoleTechnician] {
		require.Len(t, f.notifier.sent[id], 1)
		assert.Equal(t, "Abnormal Vital Sign - Jane Doe", f.notifier.sent[id][0].Title)
	}
	assert.Equal(t, 5, f.notifier.total())
}

func TestRecordVitals_Validation(t *testing.T) {
	f := newFixture(t)
	in := normalVitals()
	in.HeartRate = 0
	_, err := f.svc.RecordVitals(context.Background(), techActor, f.patient.ID, in)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "heart_rate", appErr.Field)

	in = normalVitals()
	in.OxygenSaturation = 101
	_, err = f.svc.RecordVitals(context.Background(), techActor, f.patient.ID, in)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRecordVitals_StoreFailureSkipsMonitor(t *testing.T) {
	f := newFixture(t)
	f.repo.failOn["vitals"] = errors.New("insert failed")
	in := normalVitals()
	in.Systolic = 200

	_, err := f.svc.RecordVitals(context.Background(), techActor, f.patient.ID, in)
	assert.Error(t, err)
	assert.Zero(t, f.notifier.total())
}

func TestRecordVitals_GuardAndNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RecordVitals(context.Background(), patientActor, f.patient.ID, normalVitals())
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = f.svc.RecordVitals(context.Background(), techActor, uuid.New(), normalVitals())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordNIHSS_TotalAndSeverity(t *testing.T) {
	f := newFixture(t)
	in := NIHSSInput{Scores: Scores{LOC: 1, BestGaze: 2, MotorArmLeft: 4, MotorLegLeft: 3, BestLanguage: 2}, Notes: "left weakness"}

	a, err := f.svc.RecordNIHSS(context.Background(), neuroActor, f.patient.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 12, a.TotalScore)
	assert.Equal(t, SeverityModerate, a.Severity)

	got, err := f.svc.GetNIHSS(context.Background(), techActor, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.TotalScore)
}

func TestRecordNIHSS_OutOfRangeRejectsWholeForm(t *testing.T) {
	f := newFixture(t)
	in := NIHSSInput{Scores: Scores{LOC: 2, MotorArmRight: 5}}

	_, err := f.svc.RecordNIHSS(context.Background(), neuroActor, f.patient.ID, in)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "motor_arm_right", appErr.Field)
	assert.Empty(t, f.repo.nihss)
}

func TestScores_MaximumIs42(t *testing.T) {
	max := Scores{
		LOC: 3, LOCQuestions: 2, LOCCommands: 2, BestGaze: 2, VisualFields: 3, FacialPalsy: 3,
		MotorArmLeft: 4, MotorArmRight: 4, MotorLegLeft: 4, MotorLegRight: 4,
		LimbAtaxia: 2, Sensory: 2, BestLanguage: 3, Dysarthria: 2, Extinction: 2,
	}
	require.NoError(t, max.Validate())
	assert.Equal(t, 42, max.Total())
	assert.Equal(t, SeveritySevere, SeverityFor(max.Total()))

	neg := Scores{Sensory: -1}
	assert.ErrorIs(t, neg.Validate(), apperr.ErrValidation)
}

func TestSeverityFor(t *testing.T) {
	cases := map[int]Severity{0: SeverityMinor, 4: SeverityMinor, 5: SeverityModerate, 15: SeverityModerate, 16: SeveritySevere, 42: SeveritySevere}
	for total, want := range cases {
		assert.Equal(t, want, SeverityFor(total), "total %d", total)
	}
}

func TestListAllNIHSS_NeurologistsOnly(t *testing.T) {
	f := newFixture(t)
	_, _ = f.svc.RecordNIHSS(context.Background(), neuroActor, f.patient.ID, NIHSSInput{})

	_, _, err := f.svc.ListAllNIHSS(context.Background(), techActor, 10, 0)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	items, total, err := f.svc.ListAllNIHSS(context.Background(), neuroActor, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, items, 1)
}

func TestRecordImaging(t *testing.T) {
	f := newFixture(t)
	st, err := f.svc.RecordImaging(context.Background(), techActor, f.patient.ID, ImagingInput{StudyType: "cta", Findings: "M1 occlusion"})
	require.NoError(t, err)
	assert.Equal(t, StudyCTA, st.StudyType)

	_, err = f.svc.RecordImaging(context.Background(), techActor, f.patient.ID, ImagingInput{StudyType: "PET", Findings: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.RecordImaging(context.Background(), techActor, f.patient.ID, ImagingInput{StudyType: "CT"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRecordLab(t *testing.T) {
	f := newFixture(t)
	l, err := f.svc.RecordLab(context.Background(), techActor, f.patient.ID, LabInput{TestName: "INR", TestValue: "1.1", ReferenceRange: "0.8-1.2"})
	require.NoError(t, err)
	assert.False(t, l.IsAbnormal)

	_, err = f.svc.RecordLab(context.Background(), techActor, f.patient.ID, LabInput{TestValue: "1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestChart_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := normalVitals()
	first.HeartRate = 70
	second := normalVitals()
	second.HeartRate = 90
	_, _ = f.svc.RecordVitals(ctx, techActor, f.patient.ID, first)
	_, _ = f.svc.RecordVitals(ctx, techActor, f.patient.ID, second)
	_, _ = f.svc.RecordLab(ctx, techActor, f.patient.ID, LabInput{TestName: "Glucose", TestValue: "110"})

	chart, err := f.svc.Chart(ctx, neuroActor, f.patient.ID)
	require.NoError(t, err)
	require.Len(t, chart.Vitals, 2)
	assert.Equal(t, 90, chart.Vitals[0].HeartRate)
	assert.Len(t, chart.Labs, 1)
	assert.Greater(t, chart.Patient.Age, 60)

	_, err = f.svc.Chart(ctx, patientActor, f.patient.ID)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestIntake_RegistrationSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	intake := NewIntake(f.svc)
	sys, dia, hr, rr, o2 := 190, 95, 88, 18, 96
	temp := 37.04

	err := intake.RecordInitialVitals(ctx, techActor, f.patient, patient.InitialVitals{
		Systolic: &sys, Diastolic: &dia, HeartRate: &hr, RespiratoryRate: &rr,
		Temperature: &temp, OxygenSaturation: &o2,
	})
	require.NoError(t, err)
	require.Len(t, f.repo.vitals, 1)
	assert.Equal(t, 37.0, f.repo.vitals[0].Temperature)
	assert.Equal(t, 5, f.notifier.total(), "systolic 190 alerts every technician and neurologist")

	require.NoError(t, intake.RecordInitialImaging(ctx, techActor, f.patient, "MRI", "MRI scan uploaded during registration", ""))
	require.NoError(t, intake.RecordInitialLab(ctx, techActor, f.patient, "Initial Lab Results", "See uploaded document", "N/A"))
	assert.Len(t, f.repo.imaging, 1)
	assert.Equal(t, "N/A", f.repo.labs[0].ReferenceRange)
}

func TestRecent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_, _ = f.svc.RecordVitals(ctx, techActor, f.patient.ID, normalVitals())
	}
	r, err := f.svc.Recent(ctx, f.patient.ID, 5)
	require.NoError(t, err)
	assert.Len(t, r.Vitals, 5)
	assert.NotNil(t, r.NIHSS)
}
