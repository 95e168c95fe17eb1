package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/clinicflow/internal/domain/entities"
)

// RecordService defines the consultation record operations the handler needs
type RecordService interface {
	CreateRecord(ctx context.Context, actor entities.ActingUser, attentionID int64, content string) (*entities.ConsultationRecord, error)
	UpdateRecord(ctx context.Context, actor entities.ActingUser, recordID int64, content string) (*entities.ConsultationRecord, error)
	GetRecord(ctx context.Context, actor entities.ActingUser, id int64) (*entities.ConsultationRecord, error)
	GetRecordByAttention(ctx context.Context, actor entities.ActingUser, attentionID int64) (*entities.ConsultationRecord, error)
	ListPatientHistory(ctx context.Context, actor entities.ActingUser, patientID int64) ([]*entities.ConsultationRecord, error)
}

// RecordHandler handles consultation record requests
type RecordHandler struct {
	service RecordService
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(service RecordService) *RecordHandler {
	return &RecordHandler{
		service: service,
	}
}

// RecordRequest carries the clinical notes of a record
type RecordRequest struct {
	Content string `json:"content" validate:"required"`
}

// CreateRecord handles POST /api/attentions/{id}/record
func (h *RecordHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	attentionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req RecordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	record, err := h.service.CreateRecord(r.Context(), user, attentionID, req.Content)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, record)
}

// UpdateRecord handles PUT /api/records/{id}
func (h *RecordHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req RecordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	record, err := h.service.UpdateRecord(r.Context(), user, id, req.Content)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, record)
}

// GetRecord handles GET /api/records/{id}
func (h *RecordHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	record, err := h.service.GetRecord(r.Context(), user, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, record)
}

// GetAttentionRecord handles GET /api/attentions/{id}/record
func (h *RecordHandler) GetAttentionRecord(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	attentionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	record, err := h.service.GetRecordByAttention(r.Context(), user, attentionID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, record)
}

// ListPatientHistory handles GET /api/patients/{id}/records
func (h *RecordHandler) ListPatientHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	patientID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	records, err := h.service.ListPatientHistory(r.Context(), user, patientID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}
