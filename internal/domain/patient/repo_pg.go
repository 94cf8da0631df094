package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strokeunit/strokeunit/internal/platform/db"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

const accessCodeConstraint = "patients_access_code_key"

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) Repository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const patientCols = `id, first_name, last_name, date_of_birth, gender, phone_number, email, address,
	emergency_contact_name, emergency_contact_phone, medical_history, current_medications, allergies,
	access_code, access_code_expiry, registered_by, registration_date, user_account`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender, &p.PhoneNumber,
		&p.Email, &p.Address, &p.EmergencyContactName, &p.EmergencyContactPhone, &p.MedicalHistory,
		&p.CurrentMedications, &p.Allergies, &p.AccessCode, &p.AccessCodeExpiry, &p.RegisteredBy,
		&p.RegistrationDate, &p.UserAccount)
	return &p, err
}

func collectPatients(rows pgx.Rows) ([]*Patient, error) {
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, first_name, last_name, date_of_birth, gender, phone_number, email,
			address, emergency_contact_name, emergency_contact_phone, medical_history,
			current_medications, allergies, access_code, access_code_expiry, registered_by, user_account)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING registration_date`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.PhoneNumber, p.Email,
		p.Address, p.EmergencyContactName, p.EmergencyContactPhone, p.MedicalHistory,
		p.CurrentMedications, p.Allergies, p.AccessCode, p.AccessCodeExpiry, p.RegisteredBy, p.UserAccount,
	).Scan(&p.RegistrationDate)
	if db.IsUniqueViolation(err, accessCodeConstraint) {
		return ErrAccessCodeTaken
	}
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient", id.String())
	}
	return p, err
}

func (r *patientRepoPG) GetByAccessCode(ctx context.Context, code string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE access_code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient", "access code")
	}
	return p, err
}

func (r *patientRepoPG) GetByUserAccount(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE user_account = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient", "user "+userID.String())
	}
	return p, err
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET first_name = $2, last_name = $3, date_of_birth = $4, gender = $5,
			phone_number = $6, email = $7, address = $8, emergency_contact_name = $9,
			emergency_contact_phone = $10, medical_history = $11, current_medications = $12,
			allergies = $13
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.PhoneNumber, p.Email, p.Address,
		p.EmergencyContactName, p.EmergencyContactPhone, p.MedicalHistory, p.CurrentMedications, p.Allergies)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient", p.ID.String())
	}
	return nil
}

func (r *patientRepoPG) SetAccessCode(ctx context.Context, id uuid.UUID, code string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET access_code = $2, access_code_expiry = NULL WHERE id = $1`, id, code)
	if db.IsUniqueViolation(err, accessCodeConstraint) {
		return ErrAccessCodeTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient", id.String())
	}
	return nil
}

func (r *patientRepoPG) LinkAccount(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE patients SET user_account = $2 WHERE id = $1`, id, userID)
	if db.IsUniqueViolation(err, "patients_user_account_key") {
		return apperr.Validation("user_account", "user account is already linked to another patient")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient", id.String())
	}
	return nil
}

func (r *patientRepoPG) Search(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error) {
	const where = `($1 = '' OR first_name ILIKE '%' || $1 || '%' OR last_name ILIKE '%' || $1 || '%'
		OR phone_number ILIKE '%' || $1 || '%' OR medical_history ILIKE '%' || $1 || '%')`
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE `+where, q).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patients WHERE `+where+`
		ORDER BY registration_date DESC LIMIT $2 OFFSET $3`, q, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectPatients(rows)
	return items, total, err
}

func (r *patientRepoPG) ListByRegistrar(ctx context.Context, userID uuid.UUID, limit int) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patients
		WHERE registered_by = $1 ORDER BY registration_date DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectPatients(rows)
}

func (r *patientRepoPG) ListMissingAccessCode(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id FROM patients WHERE access_code IS NULL OR access_code = '' ORDER BY registration_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
