package consultation

import (
	"context"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the triage service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Request, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Request, error)

	Create(ctx context.Context, r Request) (*Request, error)

	// Update persists every mutable field of the entity value, including a
	// reason rewritten on resubmit, with a compare-and-swap on the previous
	// status. Returns ErrConflict when another writer moved the request first.
	Update(ctx context.Context, r Request, from Status) (*Request, error)
}
