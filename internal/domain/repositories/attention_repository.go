package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/clinicflow/internal/domain/entities"
)

// AttentionRepository defines the interface for attention data operations
type AttentionRepository interface {
	// Create inserts an attention and assigns its ID
	Create(ctx context.Context, attention *entities.Attention) error

	// GetByID retrieves an attention by ID
	GetByID(ctx context.Context, id int64) (*entities.Attention, error)

	// ListWaiting returns EN_ESPERA attentions, oldest entry first.
	// A nil doctorID lists every doctor's queue.
	ListWaiting(ctx context.Context, doctorID *int64) ([]*entities.Attention, error)

	// ListByPatient returns a patient's attentions, newest first
	ListByPatient(ctx context.Context, patientID int64) ([]*entities.Attention, error)

	// ListEnteredBetween returns attentions with entered_at in [from, to),
	// in storage order (id ascending). A nil doctorID includes every doctor.
	ListEnteredBetween(ctx context.Context, from, to time.Time, doctorID *int64) ([]*entities.Attention, error)

	// TransitionState moves an attention from one state to another only if it
	// is still in the expected state. It reports whether a row changed.
	TransitionState(ctx context.Context, id int64, from, to entities.AttentionState, at time.Time) (bool, error)

	// Delete removes an attention only while its state is one of allowed.
	// It reports whether a row was removed.
	Delete(ctx context.Context, id int64, allowed []entities.AttentionState) (bool, error)
}
