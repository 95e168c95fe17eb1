package entities

import (
	"time"

	"github.com/google/uuid"
)

// QueueEventType represents what happened to an attention or payment
type QueueEventType string

const (
	QueueEventEnqueued        QueueEventType = "attention_enqueued"
	QueueEventCalled          QueueEventType = "attention_called"
	QueueEventFinalized       QueueEventType = "attention_finalized"
	QueueEventCancelled       QueueEventType = "attention_cancelled"
	QueueEventReconsultation  QueueEventType = "attention_reconsultation"
	QueueEventPaymentRecorded QueueEventType = "payment_recorded"
	QueueEventPaymentChanged  QueueEventType = "payment_changed"
)

// QueueEvent is published whenever queue or ledger state changes
type QueueEvent struct {
	ID          string         `json:"id"`
	Type        QueueEventType `json:"type"`
	AttentionID int64          `json:"attention_id,omitempty"`
	PaymentID   int64          `json:"payment_id,omitempty"`
	PatientID   int64          `json:"patient_id"`
	DoctorID    int64          `json:"doctor_id,omitempty"`
	State       AttentionState `json:"state,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// NewAttentionEvent creates an event describing an attention change
func NewAttentionEvent(eventType QueueEventType, attention *Attention, at time.Time) *QueueEvent {
	return &QueueEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		AttentionID: attention.ID,
		PatientID:   attention.PatientID,
		DoctorID:    attention.DoctorID,
		State:       attention.State,
		Timestamp:   at,
	}
}

// NewPaymentEvent creates an event describing a ledger change
func NewPaymentEvent(eventType QueueEventType, payment *Payment, at time.Time) *QueueEvent {
	return &QueueEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		PaymentID: payment.ID,
		PatientID: payment.PatientID,
		Timestamp: at,
	}
}
