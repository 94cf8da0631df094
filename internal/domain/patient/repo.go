package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts p. A collision on the access code yields ErrAccessCodeTaken.
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByAccessCode(ctx context.Context, code string) (*Patient, error)
	GetByUserAccount(ctx context.Context, userID uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// SetAccessCode replaces the code and clears its expiry.
	SetAccessCode(ctx context.Context, id uuid.UUID, code string) error
	LinkAccount(ctx context.Context, id, userID uuid.UUID) error
	Search(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error)
	ListByRegistrar(ctx context.Context, userID uuid.UUID, limit int) ([]*Patient, error)
	ListMissingAccessCode(ctx context.Context) ([]uuid.UUID, error)
}
