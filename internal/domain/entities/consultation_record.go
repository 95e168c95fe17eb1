package entities

import (
	"time"
)

// DefaultEditWindow is how long the authoring doctor may amend a record
const DefaultEditWindow = 24 * time.Hour

// ConsultationRecord is the clinical note that closes an attention
type ConsultationRecord struct {
	ID          int64     `json:"id" db:"id"`
	AttentionID int64     `json:"attention_id" db:"attention_id"`
	PatientID   int64     `json:"patient_id" db:"patient_id"`
	DoctorID    int64     `json:"doctor_id" db:"doctor_id"`
	Content     string    `json:"content" db:"content"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// EditableAt reports whether the record may still be changed at now.
// The window is closed: exactly window after creation is still editable.
func (r *ConsultationRecord) EditableAt(now time.Time, window time.Duration) bool {
	return now.Sub(r.CreatedAt) <= window
}
