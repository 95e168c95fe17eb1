package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/clinicflow/internal/domain/entities"
)

// PaymentRepository defines the interface for payment ledger operations
type PaymentRepository interface {
	// Create inserts a payment and assigns its ID
	Create(ctx context.Context, payment *entities.Payment) error

	// GetByID retrieves a payment by ID
	GetByID(ctx context.Context, id int64) (*entities.Payment, error)

	// Update updates a payment
	Update(ctx context.Context, payment *entities.Payment) error

	// Delete deletes a payment
	Delete(ctx context.Context, id int64) error

	// List retrieves payments with filters, in storage order (id ascending)
	List(ctx context.Context, filter PaymentFilter) ([]*entities.Payment, error)

	// Settle links an unsettled payment to a consultation record. It reports
	// whether the payment was still unsettled.
	Settle(ctx context.Context, id, recordID int64) (bool, error)

	// DeleteUnsettled removes the listed payments that are still unsettled,
	// returning how many went
	DeleteUnsettled(ctx context.Context, ids []int64) (int64, error)
}

// PaymentFilter defines filters for listing payments
type PaymentFilter struct {
	PatientID  *int64
	PatientIDs []int64
	From       *time.Time
	To         *time.Time
	Settled    *bool
	Limit      int
	Offset     int
}
