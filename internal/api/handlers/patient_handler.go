package handlers

import (
	"net/http"
	"strings"

	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
)

// PatientHandler exposes the patient registry to the front desk
type PatientHandler struct {
	patients repositories.PatientDirectory
}

// NewPatientHandler creates a new patient handler
func NewPatientHandler(patients repositories.PatientDirectory) *PatientHandler {
	return &PatientHandler{
		patients: patients,
	}
}

// UpsertPatientRequest is the body of PUT /api/patients
type UpsertPatientRequest struct {
	NationalID string `json:"national_id" validate:"required,max=32"`
	FullName   string `json:"full_name" validate:"required,max=200"`
	Phone      string `json:"phone" validate:"omitempty,max=32"`
}

// UpsertPatient handles PUT /api/patients. Patients are keyed by national ID.
func (h *PatientHandler) UpsertPatient(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	if !user.IsAdmin() && !user.IsReception() {
		respondWithError(w, http.StatusForbidden, "only admin or reception may register patients")
		return
	}

	var req UpsertPatientRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	patient := &entities.Patient{
		NationalID: strings.TrimSpace(req.NationalID),
		FullName:   strings.TrimSpace(req.FullName),
		Phone:      strings.TrimSpace(req.Phone),
	}
	if err := h.patients.UpsertPatient(r.Context(), patient); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, patient)
}

// GetPatient handles GET /api/patients/{id}
func (h *PatientHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	patient, err := h.patients.GetPatient(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, patient)
}
