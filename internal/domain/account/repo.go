package account

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// GetOrCreate inserts u unless its username is taken, in which case the
	// existing row is returned with created=false.
	GetOrCreate(ctx context.Context, u *User) (user *User, created bool, err error)
	IDsByRole(ctx context.Context, role Role) ([]uuid.UUID, error)
	List(ctx context.Context, role Role, limit, offset int) ([]*User, int, error)
}
