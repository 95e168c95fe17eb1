package entities

import (
	"time"
)

// AttentionState represents the position of a visit in the consultation queue
type AttentionState string

const (
	AttentionStateWaiting        AttentionState = "EN_ESPERA"
	AttentionStateInConsultation AttentionState = "ATENDIENDO"
	AttentionStateFinalized      AttentionState = "FINALIZADO"
)

// Valid reports whether s is one of the known states
func (s AttentionState) Valid() bool {
	switch s {
	case AttentionStateWaiting, AttentionStateInConsultation, AttentionStateFinalized:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is a forward step.
// The only edges are EN_ESPERA -> ATENDIENDO -> FINALIZADO.
func (s AttentionState) CanTransitionTo(next AttentionState) bool {
	switch s {
	case AttentionStateWaiting:
		return next == AttentionStateInConsultation
	case AttentionStateInConsultation:
		return next == AttentionStateFinalized
	}
	return false
}

// Attention represents one queue entry of a patient with one doctor
type Attention struct {
	ID                    int64          `json:"id" db:"id"`
	PatientID             int64          `json:"patient_id" db:"patient_id"`
	DoctorID              int64          `json:"doctor_id" db:"doctor_id"`
	State                 AttentionState `json:"state" db:"state"`
	Priority              bool           `json:"priority" db:"priority"`
	EnteredAt             time.Time      `json:"entered_at" db:"entered_at"`
	ConsultationStartedAt *time.Time     `json:"consultation_started_at,omitempty" db:"consultation_started_at"`
	Note                  string         `json:"note" db:"note"`
	CreatedAt             time.Time      `json:"created_at" db:"created_at"`
}

// IsFinalized reports whether the attention reached its terminal state
func (a *Attention) IsFinalized() bool {
	return a.State == AttentionStateFinalized
}
