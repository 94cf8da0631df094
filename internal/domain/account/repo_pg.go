package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strokeunit/strokeunit/internal/platform/db"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) Repository { return &userRepoPG{pool: pool} }

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const userCols = `id, username, email, first_name, last_name, phone_number, role, is_admin, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
		&u.PhoneNumber, &u.Role, &u.IsAdmin, &u.CreatedAt)
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, username, email, first_name, last_name, phone_number, role, is_admin)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.PhoneNumber, u.Role, u.IsAdmin,
	).Scan(&u.CreatedAt)
	if db.IsUniqueViolation(err, "users_username_key") {
		return apperr.Validation("username", "username %q is already taken", u.Username)
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user", id.String())
	}
	return u, err
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user", username)
	}
	return u, err
}

func (r *userRepoPG) GetOrCreate(ctx context.Context, u *User) (*User, bool, error) {
	created, err := scanUser(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, username, email, first_name, last_name, phone_number, role, is_admin)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (username) DO NOTHING
		RETURNING `+userCols,
		uuid.New(), u.Username, u.Email, u.FirstName, u.LastName, u.PhoneNumber, u.Role, u.IsAdmin,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert user: %w", err)
	}
	existing, err := r.GetByUsername(ctx, u.Username)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *userRepoPG) IDsByRole(ctx context.Context, role Role) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM users WHERE role = $1 ORDER BY created_at`, role)
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

func (r *userRepoPG) List(ctx context.Context, role Role, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE ($1 = '' OR role = $1)`, string(role)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+userCols+` FROM users
		WHERE ($1 = '' OR role = $1) ORDER BY username LIMIT $2 OFFSET $3`, string(role), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}
