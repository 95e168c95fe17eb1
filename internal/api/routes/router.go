package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/zatekoja/clinicflow/internal/api/handlers"
	"github.com/zatekoja/clinicflow/internal/api/middleware"
	"github.com/zatekoja/clinicflow/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	queueHandler   *handlers.QueueHandler
	recordHandler  *handlers.RecordHandler
	paymentHandler *handlers.PaymentHandler
	reportHandler  *handlers.ReportHandler
	patientHandler *handlers.PatientHandler
	sseHandler     *handlers.SSEHandler

	auth           *middleware.Authenticator
	allowedOrigins []string
	metrics        *observability.Metrics
	ready          func(ctx context.Context) error
}

// NewRouter creates a new router
func NewRouter(
	queueHandler *handlers.QueueHandler,
	recordHandler *handlers.RecordHandler,
	paymentHandler *handlers.PaymentHandler,
	reportHandler *handlers.ReportHandler,
	patientHandler *handlers.PatientHandler,
	sseHandler *handlers.SSEHandler,
	auth *middleware.Authenticator,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux: http.NewServeMux(),

		queueHandler:   queueHandler,
		recordHandler:  recordHandler,
		paymentHandler: paymentHandler,
		reportHandler:  reportHandler,
		patientHandler: patientHandler,
		sseHandler:     sseHandler,

		auth:           auth,
		allowedOrigins: allowedOrigins,
		metrics:        metrics,
	}
}

// SetReadiness registers the check behind GET /health/ready
func (r *Router) SetReadiness(check func(ctx context.Context) error) {
	r.ready = check
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})
	r.mux.HandleFunc("GET /health/ready", r.readiness)

	// Attention queue
	r.handle("POST /api/attentions", r.queueHandler.Enqueue)
	r.handle("GET /api/attentions/waiting", r.queueHandler.ListWaiting)
	r.handle("GET /api/attentions/{id}", r.queueHandler.GetAttention)
	r.handle("POST /api/attentions/{id}/call", r.queueHandler.Call)
	r.handle("DELETE /api/attentions/{id}", r.queueHandler.Cancel)
	r.handle("GET /api/patients/{id}/attentions", r.queueHandler.ListPatientAttentions)

	// Consultation records
	r.handle("POST /api/attentions/{id}/record", r.recordHandler.CreateRecord)
	r.handle("GET /api/attentions/{id}/record", r.recordHandler.GetAttentionRecord)
	r.handle("GET /api/records/{id}", r.recordHandler.GetRecord)
	r.handle("PUT /api/records/{id}", r.recordHandler.UpdateRecord)
	r.handle("GET /api/patients/{id}/records", r.recordHandler.ListPatientHistory)
	r.handle("POST /api/records/{id}/reconsultation", r.queueHandler.StartReconsultation)

	// Payment ledger
	r.handle("POST /api/payments", r.paymentHandler.RecordPayment)
	r.handle("GET /api/payments", r.paymentHandler.ListPayments)
	r.handle("GET /api/payments/{id}", r.paymentHandler.GetPayment)
	r.handle("PUT /api/payments/{id}", r.paymentHandler.UpdatePayment)
	r.handle("DELETE /api/payments/{id}", r.paymentHandler.DeletePayment)
	r.handle("POST /api/payments/{id}/settle", r.paymentHandler.SettlePayment)

	// Reports
	r.handle("GET /api/reports/daily", r.reportHandler.Daily)
	r.handle("GET /api/reports/monthly", r.reportHandler.Monthly)
	r.handle("GET /api/reports/yearly", r.reportHandler.Yearly)

	// Patient registry
	r.handle("PUT /api/patients", r.patientHandler.UpsertPatient)
	r.handle("GET /api/patients/{id}", r.patientHandler.GetPatient)

	// Waiting room stream
	if r.sseHandler != nil {
		r.handle("GET /api/stream/waiting", r.sseHandler.StreamWaitingRoom)
	}

	// Apply middleware in reverse order (last middleware wraps first).
	// Observability must sit next to the mux to read the matched pattern.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.NoStore(handler)
	handler = middleware.Compression(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}

// handle registers an authenticated route
func (r *Router) handle(pattern string, fn http.HandlerFunc) {
	r.mux.Handle(pattern, r.auth.Middleware(fn))
}

func (r *Router) readiness(w http.ResponseWriter, req *http.Request) {
	if r.ready != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := r.ready(ctx); err != nil {
			observability.LoggerFromContext(req.Context()).Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "NOT READY", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("READY"))
}
