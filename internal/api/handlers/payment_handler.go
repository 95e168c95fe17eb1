package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/zatekoja/clinicflow/internal/application/services"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
)

const (
	defaultPaymentPageSize = 50
	maxPaymentPageSize     = 500
)

// PaymentService defines the ledger operations the handler needs
type PaymentService interface {
	RecordPayment(ctx context.Context, actor entities.ActingUser, input services.RecordPaymentInput) (*entities.Payment, error)
	UpdatePayment(ctx context.Context, actor entities.ActingUser, id int64, input services.PaymentInput) (*entities.Payment, error)
	DeletePayment(ctx context.Context, actor entities.ActingUser, id int64) error
	GetPayment(ctx context.Context, actor entities.ActingUser, id int64) (*entities.Payment, error)
	ListPayments(ctx context.Context, actor entities.ActingUser, filter repositories.PaymentFilter) ([]*entities.Payment, error)
	SettlePayment(ctx context.Context, actor entities.ActingUser, id, recordID int64) (*entities.Payment, error)
}

// PaymentHandler handles payment ledger requests
type PaymentHandler struct {
	service PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(service PaymentService) *PaymentHandler {
	return &PaymentHandler{
		service: service,
	}
}

// RecordPaymentRequest is the body of POST /api/payments
type RecordPaymentRequest struct {
	PatientID int64 `json:"patient_id" validate:"required,gt=0"`
	PaymentRequest
}

// SettleRequest is the body of POST /api/payments/{id}/settle
type SettleRequest struct {
	ConsultationRecordID int64 `json:"consultation_record_id" validate:"required,gt=0"`
}

// RecordPayment handles POST /api/payments
func (h *PaymentHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	payment, err := h.service.RecordPayment(r.Context(), user, services.RecordPaymentInput{
		PatientID:    req.PatientID,
		PaymentInput: req.input(),
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, payment)
}

// ListPayments handles GET /api/payments
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}

	filter, ok := parsePaymentFilter(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListPayments(r.Context(), user, filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"payments": payments,
		"count":    len(payments),
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

// GetPayment handles GET /api/payments/{id}
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	payment, err := h.service.GetPayment(r.Context(), user, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, payment)
}

// UpdatePayment handles PUT /api/payments/{id}
func (h *PaymentHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req PaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	payment, err := h.service.UpdatePayment(r.Context(), user, id, req.input())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, payment)
}

// DeletePayment handles DELETE /api/payments/{id}
func (h *PaymentHandler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeletePayment(r.Context(), user, id); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SettlePayment handles POST /api/payments/{id}/settle
func (h *PaymentHandler) SettlePayment(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req SettleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	payment, err := h.service.SettlePayment(r.Context(), user, id, req.ConsultationRecordID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, payment)
}

func parsePaymentFilter(w http.ResponseWriter, r *http.Request) (repositories.PaymentFilter, bool) {
	query := r.URL.Query()
	filter := repositories.PaymentFilter{Limit: defaultPaymentPageSize}

	patientID, ok := queryInt64(w, r, "patient_id")
	if !ok {
		return filter, false
	}
	filter.PatientID = patientID

	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid "+name+" date format (use RFC3339)")
			return filter, false
		}
		*dst = &t
	}

	if raw := query.Get("settled"); raw != "" {
		settled, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid settled parameter")
			return filter, false
		}
		filter.Settled = &settled
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			respondWithError(w, http.StatusBadRequest, "invalid limit parameter")
			return filter, false
		}
		filter.Limit = min(limit, maxPaymentPageSize)
	}

	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			respondWithError(w, http.StatusBadRequest, "invalid offset parameter")
			return filter, false
		}
		filter.Offset = offset
	}

	return filter, true
}
