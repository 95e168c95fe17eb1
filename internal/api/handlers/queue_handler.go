package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/zatekoja/clinicflow/internal/application/services"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
)

// QueueService defines the attention queue operations the handler needs
type QueueService interface {
	Enqueue(ctx context.Context, actor entities.ActingUser, input services.EnqueueInput) (*entities.Attention, error)
	ListWaiting(ctx context.Context, actor entities.ActingUser, doctorID *int64) ([]*entities.Attention, error)
	Get(ctx context.Context, actor entities.ActingUser, id int64) (*entities.Attention, error)
	ListByPatient(ctx context.Context, actor entities.ActingUser, patientID int64) ([]*entities.Attention, error)
	Call(ctx context.Context, actor entities.ActingUser, id int64) (*entities.Attention, error)
	Cancel(ctx context.Context, actor entities.ActingUser, id int64) error
	StartReconsultation(ctx context.Context, actor entities.ActingUser, priorRecordID int64, note string) (*entities.Attention, error)
}

// QueueHandler handles attention queue requests
type QueueHandler struct {
	service QueueService
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(service QueueService) *QueueHandler {
	return &QueueHandler{
		service: service,
	}
}

// PaymentRequest is the body shared by payment creation and update
type PaymentRequest struct {
	AmountCents          int64      `json:"amount_cents" validate:"gte=0"`
	Method               string     `json:"method" validate:"omitempty,oneof=CASH TRANSFER INSURANCE"`
	ReceiptRef           *string    `json:"receipt_ref" validate:"omitempty,max=120"`
	Note                 *string    `json:"note" validate:"omitempty,max=500"`
	ConsultationRecordID *int64     `json:"consultation_record_id" validate:"omitempty,gt=0"`
	PaidAt               *time.Time `json:"paid_at"`
}

func (p PaymentRequest) input() services.PaymentInput {
	return services.PaymentInput{
		AmountCents:          p.AmountCents,
		Method:               entities.PaymentMethod(p.Method),
		ReceiptRef:           p.ReceiptRef,
		Note:                 p.Note,
		ConsultationRecordID: p.ConsultationRecordID,
		PaidAt:               p.PaidAt,
	}
}

// EnqueueRequest is the body of POST /api/attentions
type EnqueueRequest struct {
	PatientID int64           `json:"patient_id" validate:"required,gt=0"`
	DoctorID  int64           `json:"doctor_id" validate:"required,gt=0"`
	Priority  bool            `json:"priority"`
	Note      string          `json:"note" validate:"max=500"`
	Payment   *PaymentRequest `json:"payment"`
}

// ReconsultationRequest is the body of POST /api/records/{id}/reconsultation
type ReconsultationRequest struct {
	Note string `json:"note" validate:"max=500"`
}

// Enqueue handles POST /api/attentions
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}

	var req EnqueueRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	input := services.EnqueueInput{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Priority:  req.Priority,
		Note:      req.Note,
	}
	if req.Payment != nil {
		payment := req.Payment.input()
		input.Payment = &payment
	}

	attention, err := h.service.Enqueue(r.Context(), user, input)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, attention)
}

// ListWaiting handles GET /api/attentions/waiting
func (h *QueueHandler) ListWaiting(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	doctorID, ok := queryInt64(w, r, "doctor_id")
	if !ok {
		return
	}

	attentions, err := h.service.ListWaiting(r.Context(), user, doctorID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"attentions": attentions,
		"count":      len(attentions),
	})
}

// GetAttention handles GET /api/attentions/{id}
func (h *QueueHandler) GetAttention(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	attention, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, attention)
}

// ListPatientAttentions handles GET /api/patients/{id}/attentions
func (h *QueueHandler) ListPatientAttentions(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	patientID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	attentions, err := h.service.ListByPatient(r.Context(), user, patientID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"attentions": attentions,
		"count":      len(attentions),
	})
}

// Call handles POST /api/attentions/{id}/call
func (h *QueueHandler) Call(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	attention, err := h.service.Call(r.Context(), user, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, attention)
}

// Cancel handles DELETE /api/attentions/{id}
func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), user, id); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartReconsultation handles POST /api/records/{id}/reconsultation
func (h *QueueHandler) StartReconsultation(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	recordID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req ReconsultationRequest
	if r.ContentLength != 0 && !decodeAndValidate(w, r, &req) {
		return
	}

	attention, err := h.service.StartReconsultation(r.Context(), user, recordID, req.Note)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, attention)
}
