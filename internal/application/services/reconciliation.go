package services

import (
	"context"
	"sort"
	"time"

	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
	"github.com/zatekoja/clinicflow/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMatchWindow is the exclusive upper bound on the distance between a
// payment and the attention it is attributed to
const DefaultMatchWindow = 2 * time.Hour

// Reconcile attributes every payment to a doctor.
//
// Settled payments take the doctor of their linked record (recordDoctors maps
// record ID to doctor ID). Unsettled payments are matched greedily: attentions
// are visited in the order given, and each claims the nearest unclaimed
// payment of the same patient when the distance is strictly below window.
// Equal distances keep the payment that comes first in payments. A payment is
// claimed at most once. The result follows the order of payments.
func Reconcile(
	attentions []*entities.Attention,
	payments []*entities.Payment,
	recordDoctors map[int64]int64,
	window time.Duration,
) []entities.AttributedPayment {
	result := make([]entities.AttributedPayment, len(payments))

	byPatient := make(map[int64][]int)
	for i, p := range payments {
		result[i] = entities.AttributedPayment{Payment: *p, Source: entities.AttributionNone}

		if p.IsSettled() {
			if doctorID, ok := recordDoctors[*p.ConsultationRecordID]; ok {
				result[i].DoctorID = &doctorID
				result[i].Source = entities.AttributionRecord
			}
			continue
		}
		byPatient[p.PatientID] = append(byPatient[p.PatientID], i)
	}

	claimed := make([]bool, len(payments))
	for _, a := range attentions {
		best := -1
		var bestDiff time.Duration

		for _, i := range byPatient[a.PatientID] {
			if claimed[i] {
				continue
			}
			diff := absDuration(payments[i].PaidAt.Sub(a.EnteredAt))
			if best == -1 || diff < bestDiff {
				best = i
				bestDiff = diff
			}
		}

		if best == -1 || bestDiff >= window {
			continue
		}

		claimed[best] = true
		doctorID, attentionID := a.DoctorID, a.ID
		result[best].DoctorID = &doctorID
		result[best].AttentionID = &attentionID
		result[best].Source = entities.AttributionHeuristic
	}

	return result
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// ReconciliationService loads the ledger snapshot of a period and attributes it
type ReconciliationService struct {
	attentions repositories.AttentionRepository
	payments   repositories.PaymentRepository
	records    repositories.ConsultationRecordRepository
	metrics    *observability.Metrics
	window     time.Duration
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	attentions repositories.AttentionRepository,
	payments repositories.PaymentRepository,
	records repositories.ConsultationRecordRepository,
	rules Rules,
) *ReconciliationService {
	return &ReconciliationService{
		attentions: attentions,
		payments:   payments,
		records:    records,
		window:     rules.MatchWindow,
	}
}

// SetMetrics enables reconciliation counters
func (s *ReconciliationService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// Resolve attributes the payments made in [from, to). With a doctorID the
// snapshot is restricted to that doctor's attentions and their patients'
// unsettled payments; settled payments are always loaded and the caller
// filters by attributed doctor.
func (s *ReconciliationService) Resolve(ctx context.Context, from, to time.Time, doctorID *int64) ([]entities.AttributedPayment, error) {
	ctx, span := observability.StartSpan(ctx, "ReconciliationService.Resolve")
	defer span.End()

	attentions, err := s.attentions.ListEnteredBetween(ctx, from, to, doctorID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	unsettledFilter := repositories.PaymentFilter{From: &from, To: &to, Settled: boolPtr(false)}
	if doctorID != nil {
		unsettledFilter.PatientIDs = patientIDs(attentions)
	}

	var unsettled []*entities.Payment
	if doctorID == nil || len(unsettledFilter.PatientIDs) > 0 {
		unsettled, err = s.payments.List(ctx, unsettledFilter)
		if err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
	}

	settled, err := s.payments.List(ctx, repositories.PaymentFilter{From: &from, To: &to, Settled: boolPtr(true)})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	recordDoctors, err := s.recordDoctors(ctx, settled)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	payments := append(unsettled, settled...)
	sort.SliceStable(payments, func(i, j int) bool { return payments[i].ID < payments[j].ID })

	attributed := Reconcile(attentions, payments, recordDoctors, s.window)

	counts := make(map[entities.AttributionSource]int)
	for _, ap := range attributed {
		counts[ap.Source]++
	}
	for source, n := range counts {
		observability.RecordReconciliation(ctx, s.metrics, string(source), n)
	}

	observability.SetSpanAttributes(span,
		attribute.Int("attentions", len(attentions)),
		attribute.Int("payments", len(payments)),
		attribute.Int("heuristic_matches", counts[entities.AttributionHeuristic]),
	)

	return attributed, nil
}

func (s *ReconciliationService) recordDoctors(ctx context.Context, settled []*entities.Payment) (map[int64]int64, error) {
	ids := make([]int64, 0, len(settled))
	seen := make(map[int64]struct{}, len(settled))
	for _, p := range settled {
		id := *p.ConsultationRecordID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	doctors := make(map[int64]int64, len(ids))
	if len(ids) == 0 {
		return doctors, nil
	}

	records, err := s.records.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		doctors[r.ID] = r.DoctorID
	}
	return doctors, nil
}

func patientIDs(attentions []*entities.Attention) []int64 {
	seen := make(map[int64]struct{}, len(attentions))
	ids := make([]int64, 0, len(attentions))
	for _, a := range attentions {
		if _, ok := seen[a.PatientID]; ok {
			continue
		}
		seen[a.PatientID] = struct{}{}
		ids = append(ids, a.PatientID)
	}
	return ids
}

func boolPtr(b bool) *bool {
	return &b
}
