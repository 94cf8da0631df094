package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strokeunit/strokeunit/internal/platform/db"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

type consultationRepoPG struct{ pool *pgxpool.Pool }

func NewConsultationRepoPG(pool *pgxpool.Pool) Repository { return &consultationRepoPG{pool: pool} }

func (r *consultationRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const consultationCols = `c.id, c.patient_id, c.requested_by, c.neurologist_id, c.requested_at,
	c.started_at, c.completed_at, c.status, c.chief_complaint, c.notes, c.diagnosis, c.recommendations,
	COALESCE((SELECT p.first_name || ' ' || p.last_name FROM patients p WHERE p.id = c.patient_id), '')`

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(&c.ID, &c.PatientID, &c.RequestedBy, &c.NeurologistID, &c.RequestedAt,
		&c.StartedAt, &c.CompletedAt, &c.Status, &c.ChiefComplaint, &c.Notes, &c.Diagnosis,
		&c.Recommendations, &c.PatientName)
	return &c, err
}

func (r *consultationRepoPG) Create(ctx context.Context, c *Consultation) error {
	c.ID = uuid.New()
	c.Status = StatusRequested
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consultations (id, patient_id, requested_by, status, chief_complaint, notes)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING requested_at`,
		c.ID, c.PatientID, c.RequestedBy, string(c.Status), c.ChiefComplaint, c.Notes,
	).Scan(&c.RequestedAt)
}

func (r *consultationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error) {
	c, err := scanConsultation(r.conn(ctx).QueryRow(ctx,
		`SELECT `+consultationCols+` FROM consultations c WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("consultation", id.String())
	}
	return c, err
}

func statusArg(s *Status) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func (r *consultationRepoPG) Transition(ctx context.Context, id uuid.UUID, from Status, u Update) (*Consultation, bool, error) {
	c, err := scanConsultation(r.conn(ctx).QueryRow(ctx, `
		UPDATE consultations c SET
			status          = COALESCE($3, c.status),
			neurologist_id  = COALESCE($4, c.neurologist_id),
			started_at      = COALESCE(c.started_at, $5),
			completed_at    = COALESCE(c.completed_at, $6),
			notes           = COALESCE($7, c.notes),
			diagnosis       = COALESCE($8, c.diagnosis),
			recommendations = COALESCE($9, c.recommendations)
		WHERE c.id = $1 AND c.status = $2
		RETURNING `+consultationCols,
		id, string(from), statusArg(u.To), u.Neurologist, u.StartedAt, u.CompletedAt,
		u.Notes, u.Diagnosis, u.Recommendations,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("transition consultation: %w", err)
	}
	return c, true, nil
}

var orderColumns = map[string]string{
	"":             "c.requested_at DESC",
	"requested_at": "c.requested_at DESC",
	"started_at":   "c.started_at DESC NULLS LAST",
	"completed_at": "c.completed_at DESC NULLS LAST",
}

func (r *consultationRepoPG) List(ctx context.Context, f Filter) ([]*Consultation, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("c.status = ANY($%d)", statuses)
	}
	if f.PatientID != nil {
		add("c.patient_id = $%d", *f.PatientID)
	}
	if f.RequestedBy != nil {
		add("c.requested_by = $%d", *f.RequestedBy)
	}
	if f.Neurologist != nil {
		add("c.neurologist_id = $%d", *f.Neurologist)
	}
	if f.Unassigned {
		where = append(where, "c.neurologist_id IS NULL")
	}
	if f.VisibleTo != nil {
		add("(c.neurologist_id IS NULL OR c.neurologist_id = $%d)", *f.VisibleTo)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM consultations c`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order, ok := orderColumns[f.OrderBy]
	if !ok {
		order = orderColumns[""]
	}
	query := `SELECT ` + consultationCols + ` FROM consultations c` + clause + ` ORDER BY ` + order
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

type tpaRepoPG struct{ pool *pgxpool.Pool }

func NewTPARepoPG(pool *pgxpool.Pool) TPARepository { return &tpaRepoPG{pool: pool} }

func (r *tpaRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const tpaCols = `id, consultation_id, requested_by, reviewed_by, requested_at, reviewed_at, status,
	justification, review_notes, administered, administered_by, administered_at, administration_notes`

func scanTPA(row pgx.Row) (*TPARequest, error) {
	var t TPARequest
	err := row.Scan(&t.ID, &t.ConsultationID, &t.RequestedBy, &t.ReviewedBy, &t.RequestedAt,
		&t.ReviewedAt, &t.Status, &t.Justification, &t.ReviewNotes, &t.Administered,
		&t.AdministeredBy, &t.AdministeredAt, &t.AdministrationNotes)
	return &t, err
}

func (r *tpaRepoPG) CreateIfAbsent(ctx context.Context, t *TPARequest) (bool, error) {
	t.ID = uuid.New()
	t.Status = TPARequested
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO tpa_requests (id, consultation_id, requested_by, status, justification)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (consultation_id) DO NOTHING
		RETURNING requested_at`,
		t.ID, t.ConsultationID, t.RequestedBy, string(t.Status), t.Justification,
	).Scan(&t.RequestedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert tpa request: %w", err)
	}
	return true, nil
}

func (r *tpaRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TPARequest, error) {
	t, err := scanTPA(r.conn(ctx).QueryRow(ctx, `SELECT `+tpaCols+` FROM tpa_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("tpa request", id.String())
	}
	return t, err
}

func (r *tpaRepoPG) GetByConsultation(ctx context.Context, consultationID uuid.UUID) (*TPARequest, error) {
	t, err := scanTPA(r.conn(ctx).QueryRow(ctx,
		`SELECT `+tpaCols+` FROM tpa_requests WHERE consultation_id = $1`, consultationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("tpa request", "consultation "+consultationID.String())
	}
	return t, err
}

func (r *tpaRepoPG) Review(ctx context.Context, id, reviewer uuid.UUID, decision TPAStatus, notes string, at time.Time) (*TPARequest, bool, error) {
	t, err := scanTPA(r.conn(ctx).QueryRow(ctx, `
		UPDATE tpa_requests SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5
		WHERE id = $1 AND status = 'REQUESTED'
		RETURNING `+tpaCols,
		id, string(decision), reviewer, at, notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("review tpa request: %w", err)
	}
	return t, true, nil
}

func (r *tpaRepoPG) Administer(ctx context.Context, id uuid.UUID, by *uuid.UUID, administered bool, notes string, at time.Time) (*TPARequest, bool, error) {
	t, err := scanTPA(r.conn(ctx).QueryRow(ctx, `
		UPDATE tpa_requests SET
			administered         = $2,
			administered_by      = CASE WHEN $2 THEN $3::uuid ELSE NULL END,
			administered_at      = CASE WHEN $2 THEN $4::timestamptz ELSE NULL END,
			administration_notes = $5
		WHERE id = $1 AND status = 'APPROVED' AND NOT administered
		RETURNING `+tpaCols,
		id, administered, by, at, notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("administer tpa request: %w", err)
	}
	return t, true, nil
}

func (r *tpaRepoPG) ListPending(ctx context.Context, f PendingFilter) ([]*TPARequest, error) {
	query := `SELECT t.` + strings.ReplaceAll(tpaCols, ", ", ", t.") + `
		FROM tpa_requests t JOIN consultations c ON c.id = t.consultation_id
		WHERE t.status = 'REQUESTED'
			AND ($1::uuid IS NULL OR t.requested_by = $1)
			AND ($2::uuid IS NULL OR c.neurologist_id IS NULL OR c.neurologist_id = $2)
		ORDER BY t.requested_at DESC`
	args := []any{f.RequestedBy, f.Reviewer}
	if f.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, f.Limit)
	}
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*TPARequest
	for rows.Next() {
		t, err := scanTPA(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}
