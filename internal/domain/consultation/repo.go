package consultation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	// Transition applies u only while the row is still in status from. It
	// reports false, with no error, when the row exists in another status or
	// does not exist.
	Transition(ctx context.Context, id uuid.UUID, from Status, u Update) (*Consultation, bool, error)
	List(ctx context.Context, f Filter) ([]*Consultation, int, error)
}

type TPARepository interface {
	// CreateIfAbsent inserts t unless its consultation already has a request.
	CreateIfAbsent(ctx context.Context, t *TPARequest) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*TPARequest, error)
	GetByConsultation(ctx context.Context, consultationID uuid.UUID) (*TPARequest, error)
	// Review moves a REQUESTED request to decision.
	Review(ctx context.Context, id, reviewer uuid.UUID, decision TPAStatus, notes string, at time.Time) (*TPARequest, bool, error)
	// Administer records the administration outcome of an APPROVED request
	// that has not been administered yet.
	Administer(ctx context.Context, id uuid.UUID, by *uuid.UUID, administered bool, notes string, at time.Time) (*TPARequest, bool, error)
	ListPending(ctx context.Context, f PendingFilter) ([]*TPARequest, error)
}
