package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type reportRepoPG struct{ pool *pgxpool.Pool }

func NewReportRepoPG(pool *pgxpool.Pool) Repository { return &reportRepoPG{pool: pool} }

func (r *reportRepoPG) CountPatients(ctx context.Context, since time.Time) (int, int, error) {
	var total, recent int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE registration_date >= $1)
		FROM patients`, since).Scan(&total, &recent)
	return total, recent, err
}

func (r *reportRepoPG) Grouped(ctx context.Context, m Measure, args ...any) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, m.SQL, args...)
	if err != nil {
		return nil, fmt.Errorf("measure %s: %w", m.ID, err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			label string
			total int
		)
		if err := rows.Scan(&label, &total); err != nil {
			return nil, fmt.Errorf("measure %s: %w", m.ID, err)
		}
		out[label] = total
	}
	return out, rows.Err()
}

func (r *reportRepoPG) NIHSSTotals(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT loc + loc_questions + loc_commands + best_gaze + visual_fields + facial_palsy
			+ motor_arm_left + motor_arm_right + motor_leg_left + motor_leg_right
			+ limb_ataxia + sensory + best_language + dysarthria + extinction
		FROM nihss_assessments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var totals []int
	for rows.Next() {
		var t int
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func (r *reportRepoPG) CountAdministered(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tpa_requests WHERE administered`).Scan(&n)
	return n, err
}

func (r *reportRepoPG) ExportRows(ctx context.Context) ([]ExportRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, p.first_name || ' ' || p.last_name, c.status, c.chief_complaint,
			c.requested_at, c.started_at, c.completed_at,
			COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.username, ''),
			COALESCE(t.status, ''), COALESCE(t.administered, FALSE)
		FROM consultations c
		JOIN patients p ON p.id = c.patient_id
		LEFT JOIN users u ON u.id = c.neurologist_id
		LEFT JOIN tpa_requests t ON t.consultation_id = c.id
		ORDER BY c.requested_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExportRow
	for rows.Next() {
		var row ExportRow
		if err := rows.Scan(&row.ConsultationID, &row.PatientName, &row.Status, &row.ChiefComplaint,
			&row.RequestedAt, &row.StartedAt, &row.CompletedAt, &row.Neurologist,
			&row.TPAStatus, &row.TPAAdministered); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
