package assessment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strokeunit/strokeunit/internal/platform/db"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

type assessmentRepoPG struct{ pool *pgxpool.Pool }

func NewAssessmentRepoPG(pool *pgxpool.Pool) Repository { return &assessmentRepoPG{pool: pool} }

func (r *assessmentRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

// collect scans every row with scan.
func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var items []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// -- Vital signs --

const vitalCols = `id, patient_id, recorded_by, recorded_at, systolic_bp, diastolic_bp, heart_rate,
	respiratory_rate, temperature, oxygen_saturation, blood_glucose`

func scanVitals(row pgx.Row) (*VitalSigns, error) {
	var v VitalSigns
	err := row.Scan(&v.ID, &v.PatientID, &v.RecordedBy, &v.RecordedAt, &v.Systolic, &v.Diastolic,
		&v.HeartRate, &v.RespiratoryRate, &v.Temperature, &v.OxygenSaturation, &v.BloodGlucose)
	return &v, err
}

func (r *assessmentRepoPG) CreateVitals(ctx context.Context, v *VitalSigns) error {
	v.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vital_signs (id, patient_id, recorded_by, systolic_bp, diastolic_bp, heart_rate,
			respiratory_rate, temperature, oxygen_saturation, blood_glucose)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING recorded_at`,
		v.ID, v.PatientID, v.RecordedBy, v.Systolic, v.Diastolic, v.HeartRate,
		v.RespiratoryRate, v.Temperature, v.OxygenSaturation, v.BloodGlucose,
	).Scan(&v.RecordedAt)
}

func (r *assessmentRepoPG) ListVitals(ctx context.Context, patientID uuid.UUID, limit int) ([]*VitalSigns, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+vitalCols+` FROM vital_signs
		WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanVitals)
}

// -- NIHSS --

const nihssCols = `id, patient_id, assessed_by, assessed_at, loc, loc_questions, loc_commands,
	best_gaze, visual_fields, facial_palsy, motor_arm_left, motor_arm_right, motor_leg_left,
	motor_leg_right, limb_ataxia, sensory, best_language, dysarthria, extinction, notes`

func scanNIHSS(row pgx.Row) (*NIHSSAssessment, error) {
	var a NIHSSAssessment
	err := row.Scan(&a.ID, &a.PatientID, &a.AssessedBy, &a.AssessedAt, &a.LOC, &a.LOCQuestions,
		&a.LOCCommands, &a.BestGaze, &a.VisualFields, &a.FacialPalsy, &a.MotorArmLeft,
		&a.MotorArmRight, &a.MotorLegLeft, &a.MotorLegRight, &a.LimbAtaxia, &a.Sensory,
		&a.BestLanguage, &a.Dysarthria, &a.Extinction, &a.Notes)
	if err != nil {
		return nil, err
	}
	return a.derive(), nil
}

func (r *assessmentRepoPG) CreateNIHSS(ctx context.Context, a *NIHSSAssessment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO nihss_assessments (id, patient_id, assessed_by, loc, loc_questions, loc_commands,
			best_gaze, visual_fields, facial_palsy, motor_arm_left, motor_arm_right, motor_leg_left,
			motor_leg_right, limb_ataxia, sensory, best_language, dysarthria, extinction, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING assessed_at`,
		a.ID, a.PatientID, a.AssessedBy, a.LOC, a.LOCQuestions, a.LOCCommands,
		a.BestGaze, a.VisualFields, a.FacialPalsy, a.MotorArmLeft, a.MotorArmRight, a.MotorLegLeft,
		a.MotorLegRight, a.LimbAtaxia, a.Sensory, a.BestLanguage, a.Dysarthria, a.Extinction, a.Notes,
	).Scan(&a.AssessedAt)
}

func (r *assessmentRepoPG) GetNIHSS(ctx context.Context, id uuid.UUID) (*NIHSSAssessment, error) {
	a, err := scanNIHSS(r.conn(ctx).QueryRow(ctx, `SELECT `+nihssCols+` FROM nihss_assessments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("nihss assessment", id.String())
	}
	return a, err
}

func (r *assessmentRepoPG) ListNIHSS(ctx context.Context, patientID uuid.UUID, limit int) ([]*NIHSSAssessment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+nihssCols+` FROM nihss_assessments
		WHERE patient_id = $1 ORDER BY assessed_at DESC LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanNIHSS)
}

func (r *assessmentRepoPG) ListAllNIHSS(ctx context.Context, limit, offset int) ([]*NIHSSAssessment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM nihss_assessments`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+nihssCols+` FROM nihss_assessments
		ORDER BY assessed_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanNIHSS)
	return items, total, err
}

// -- Imaging --

const imagingCols = `id, patient_id, study_type, performed_at, performed_by, findings, image_url`

func scanImaging(row pgx.Row) (*ImagingStudy, error) {
	var s ImagingStudy
	err := row.Scan(&s.ID, &s.PatientID, &s.StudyType, &s.PerformedAt, &s.PerformedBy, &s.Findings, &s.ImageURL)
	return &s, err
}

func (r *assessmentRepoPG) CreateImaging(ctx context.Context, s *ImagingStudy) error {
	s.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO imaging_studies (id, patient_id, study_type, performed_by, findings, image_url)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING performed_at`,
		s.ID, s.PatientID, s.StudyType, s.PerformedBy, s.Findings, s.ImageURL,
	).Scan(&s.PerformedAt)
}

func (r *assessmentRepoPG) ListImaging(ctx context.Context, patientID uuid.UUID, limit int) ([]*ImagingStudy, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+imagingCols+` FROM imaging_studies
		WHERE patient_id = $1 ORDER BY performed_at DESC LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanImaging)
}

// -- Labs --

const labCols = `id, patient_id, test_name, test_value, reference_range, is_abnormal, recorded_at, recorded_by`

func scanLab(row pgx.Row) (*LabResult, error) {
	var l LabResult
	err := row.Scan(&l.ID, &l.PatientID, &l.TestName, &l.TestValue, &l.ReferenceRange,
		&l.IsAbnormal, &l.RecordedAt, &l.RecordedBy)
	return &l, err
}

func (r *assessmentRepoPG) CreateLab(ctx context.Context, l *LabResult) error {
	l.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO lab_results (id, patient_id, test_name, test_value, reference_range, is_abnormal, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING recorded_at`,
		l.ID, l.PatientID, l.TestName, l.TestValue, l.ReferenceRange, l.IsAbnormal, l.RecordedBy,
	).Scan(&l.RecordedAt)
}

func (r *assessmentRepoPG) ListLabs(ctx context.Context, patientID uuid.UUID, limit int) ([]*LabResult, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+labCols+` FROM lab_results
		WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanLab)
}
