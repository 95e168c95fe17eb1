package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/clinicflow/internal/domain/entities"
)

// ConsultationRecordRepository defines the interface for consultation record data operations
type ConsultationRecordRepository interface {
	// Create inserts a record and assigns its ID. A second record for the
	// same attention fails with a conflict.
	Create(ctx context.Context, record *entities.ConsultationRecord) error

	// GetByID retrieves a record by ID
	GetByID(ctx context.Context, id int64) (*entities.ConsultationRecord, error)

	// GetByAttentionID retrieves the record linked to an attention
	GetByAttentionID(ctx context.Context, attentionID int64) (*entities.ConsultationRecord, error)

	// ListByPatient returns a patient's records, newest first
	ListByPatient(ctx context.Context, patientID int64) ([]*entities.ConsultationRecord, error)

	// ListByIDs returns the records with the given IDs
	ListByIDs(ctx context.Context, ids []int64) ([]*entities.ConsultationRecord, error)

	// UpdateContent replaces the clinical content of a record
	UpdateContent(ctx context.Context, id int64, content string, updatedAt time.Time) error
}
