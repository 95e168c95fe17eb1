package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/zatekoja/clinicflow/internal/domain/entities"
)

// ReportService defines the report operations the handler needs
type ReportService interface {
	DailyReport(ctx context.Context, actor entities.ActingUser) (*entities.ReportSummary, error)
	MonthlyReport(ctx context.Context, actor entities.ActingUser, year int, month time.Month) (*entities.ReportSummary, error)
	YearlyReport(ctx context.Context, actor entities.ActingUser, year int) (*entities.ReportSummary, error)
}

// ReportHandler handles revenue report requests
type ReportHandler struct {
	service ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(service ReportService) *ReportHandler {
	return &ReportHandler{
		service: service,
	}
}

// Daily handles GET /api/reports/daily
func (h *ReportHandler) Daily(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}

	report, err := h.service.DailyReport(r.Context(), user)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

// Monthly handles GET /api/reports/monthly?year=&month=
func (h *ReportHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	year, ok := requiredInt(w, r, "year")
	if !ok {
		return
	}
	month, ok := requiredInt(w, r, "month")
	if !ok {
		return
	}

	report, err := h.service.MonthlyReport(r.Context(), user, year, time.Month(month))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

// Yearly handles GET /api/reports/yearly?year=
func (h *ReportHandler) Yearly(w http.ResponseWriter, r *http.Request) {
	user, ok := actor(w, r)
	if !ok {
		return
	}
	year, ok := requiredInt(w, r, "year")
	if !ok {
		return
	}

	report, err := h.service.YearlyReport(r.Context(), user, year)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

func requiredInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		respondWithError(w, http.StatusBadRequest, name+" query parameter is required")
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid "+name+" parameter")
		return 0, false
	}
	return v, true
}
