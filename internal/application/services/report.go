package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/providers"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
	"github.com/zatekoja/clinicflow/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicflow/pkg/errors"
)

// ReportCachePrefix prefixes every cached report key
const ReportCachePrefix = "report:"

// Period is a half-open reporting interval [From, To)
type Period struct {
	Granularity entities.ReportGranularity
	From        time.Time
	To          time.Time
}

// DailyPeriod returns the calendar day containing now in loc
func DailyPeriod(now time.Time, loc *time.Location) Period {
	local := now.In(loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Period{Granularity: entities.ReportDaily, From: from, To: from.AddDate(0, 0, 1)}
}

// MonthlyPeriod returns the given calendar month in loc
func MonthlyPeriod(year int, month time.Month, loc *time.Location) (Period, error) {
	if err := validateYear(year); err != nil {
		return Period{}, err
	}
	if month < time.January || month > time.December {
		return Period{}, apperrors.NewValidationError(fmt.Sprintf("month must be between 1 and 12, got %d", month))
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Period{Granularity: entities.ReportMonthly, From: from, To: from.AddDate(0, 1, 0)}, nil
}

// YearlyPeriod returns the given calendar year in loc
func YearlyPeriod(year int, loc *time.Location) (Period, error) {
	if err := validateYear(year); err != nil {
		return Period{}, err
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return Period{Granularity: entities.ReportYearly, From: from, To: from.AddDate(1, 0, 0)}, nil
}

func validateYear(year int) error {
	if year < 2000 || year > 9999 {
		return apperrors.NewValidationError(fmt.Sprintf("year %d is out of range", year))
	}
	return nil
}

// Aggregate rolls attributed payments up for a period. For a doctor scope only
// that doctor's payments count. With Breakdown the summary also groups by
// doctor (bucketed by day for monthly and by month for yearly reports) and by
// specialty, and totals the payments no doctor could be attributed to.
func Aggregate(
	attributed []entities.AttributedPayment,
	scope ReportScope,
	period Period,
	doctors map[int64]*entities.Doctor,
) *entities.ReportSummary {
	summary := &entities.ReportSummary{
		Granularity: period.Granularity,
		From:        period.From,
		To:          period.To,
		DoctorID:    scope.DoctorID,
	}

	loc := period.From.Location()
	byDoctor := make(map[int64]*entities.DoctorReport)
	buckets := make(map[int64]map[string]*entities.ReportBucket)
	var unattributed entities.MethodTotals

	for _, ap := range attributed {
		if scope.DoctorID != nil && (ap.DoctorID == nil || *ap.DoctorID != *scope.DoctorID) {
			continue
		}

		summary.Totals.Add(ap.Payment)

		if !scope.Breakdown {
			continue
		}
		if ap.DoctorID == nil {
			unattributed.Add(ap.Payment)
			continue
		}

		doctorID := *ap.DoctorID
		report, ok := byDoctor[doctorID]
		if !ok {
			report = &entities.DoctorReport{DoctorID: doctorID}
			if d, found := doctors[doctorID]; found {
				report.DoctorName = d.FullName
				report.Specialty = d.Specialty
			}
			byDoctor[doctorID] = report
			buckets[doctorID] = make(map[string]*entities.ReportBucket)
		}
		report.MethodTotals.Add(ap.Payment)

		key, start, ok := bucketFor(period.Granularity, ap.Payment.PaidAt.In(loc))
		if !ok {
			continue
		}
		bucket, ok := buckets[doctorID][key]
		if !ok {
			bucket = &entities.ReportBucket{Key: key, Start: start}
			buckets[doctorID][key] = bucket
		}
		bucket.MethodTotals.Add(ap.Payment)
	}

	if !scope.Breakdown {
		return summary
	}

	summary.Unattributed = &unattributed

	doctorIDs := make([]int64, 0, len(byDoctor))
	for id := range byDoctor {
		doctorIDs = append(doctorIDs, id)
	}
	sort.Slice(doctorIDs, func(i, j int) bool { return doctorIDs[i] < doctorIDs[j] })

	specialties := make(map[string]*entities.SpecialtyReport)
	for _, id := range doctorIDs {
		report := byDoctor[id]
		for _, b := range buckets[id] {
			report.Buckets = append(report.Buckets, *b)
		}
		sort.Slice(report.Buckets, func(i, j int) bool { return report.Buckets[i].Start.Before(report.Buckets[j].Start) })
		summary.Doctors = append(summary.Doctors, *report)

		spec, ok := specialties[report.Specialty]
		if !ok {
			spec = &entities.SpecialtyReport{Specialty: report.Specialty}
			specialties[report.Specialty] = spec
		}
		spec.Doctors = append(spec.Doctors, id)
		spec.CashCents += report.CashCents
		spec.TransferCents += report.TransferCents
		spec.InsuranceCents += report.InsuranceCents
		spec.TotalCents += report.TotalCents
		spec.Count += report.Count
	}

	for _, spec := range specialties {
		summary.Specialties = append(summary.Specialties, *spec)
	}
	sort.Slice(summary.Specialties, func(i, j int) bool {
		return summary.Specialties[i].Specialty < summary.Specialties[j].Specialty
	})

	return summary
}

func bucketFor(granularity entities.ReportGranularity, t time.Time) (string, time.Time, bool) {
	switch granularity {
	case entities.ReportMonthly:
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		return start.Format("2006-01-02"), start, true
	case entities.ReportYearly:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		return start.Format("2006-01"), start, true
	}
	return "", time.Time{}, false
}

// ReportService builds revenue reports for acting users
type ReportService struct {
	reconciler *ReconciliationService
	doctors    repositories.DoctorDirectory
	cache      providers.CacheProvider
	cacheTTL   time.Duration
	loc        *time.Location
	metrics    *observability.Metrics
	now        Clock
}

// NewReportService creates a new report service. cache may be nil.
func NewReportService(
	reconciler *ReconciliationService,
	doctors repositories.DoctorDirectory,
	cache providers.CacheProvider,
	cacheTTL time.Duration,
	loc *time.Location,
) *ReportService {
	return &ReportService{
		reconciler: reconciler,
		doctors:    doctors,
		cache:      cache,
		cacheTTL:   cacheTTL,
		loc:        loc,
		now:        systemClock,
	}
}

// SetClock replaces the time source
func (s *ReportService) SetClock(clock Clock) {
	s.now = clock
}

// SetMetrics enables report timing
func (s *ReportService) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// DailyReport summarizes today in the clinic time zone
func (s *ReportService) DailyReport(ctx context.Context, actor entities.ActingUser) (*entities.ReportSummary, error) {
	return s.build(ctx, actor, DailyPeriod(s.now(), s.loc))
}

// MonthlyReport summarizes a calendar month
func (s *ReportService) MonthlyReport(ctx context.Context, actor entities.ActingUser, year int, month time.Month) (*entities.ReportSummary, error) {
	period, err := MonthlyPeriod(year, month, s.loc)
	if err != nil {
		return nil, err
	}
	return s.build(ctx, actor, period)
}

// YearlyReport summarizes a calendar year
func (s *ReportService) YearlyReport(ctx context.Context, actor entities.ActingUser, year int) (*entities.ReportSummary, error) {
	period, err := YearlyPeriod(year, s.loc)
	if err != nil {
		return nil, err
	}
	return s.build(ctx, actor, period)
}

func (s *ReportService) build(ctx context.Context, actor entities.ActingUser, period Period) (*entities.ReportSummary, error) {
	scope, err := ScopeFor(actor)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	key := reportCacheKey(period, scope)

	if cached := s.fromCache(ctx, key); cached != nil {
		observability.RecordReportDuration(ctx, s.metrics, string(period.Granularity), true, time.Since(started))
		return cached, nil
	}

	attributed, err := s.reconciler.Resolve(ctx, period.From, period.To, scope.DoctorID)
	if err != nil {
		return nil, err
	}

	doctors := make(map[int64]*entities.Doctor)
	if ids := attributedDoctorIDs(attributed); scope.Breakdown && len(ids) > 0 {
		list, err := s.doctors.ListDoctors(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, d := range list {
			doctors[d.ID] = d
		}
	}

	summary := Aggregate(attributed, scope, period, doctors)
	summary.GeneratedAt = s.now()

	s.toCache(ctx, key, summary)
	observability.RecordReportDuration(ctx, s.metrics, string(period.Granularity), false, time.Since(started))
	return summary, nil
}

func (s *ReportService) fromCache(ctx context.Context, key string) *entities.ReportSummary {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			log.Warn().Err(err).Str("key", key).Msg("Report cache read failed")
		}
		return nil
	}

	var summary entities.ReportSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Discarding unreadable cached report")
		return nil
	}
	return &summary
}

func (s *ReportService) toCache(ctx context.Context, key string, summary *entities.ReportSummary) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}

	data, err := json.Marshal(summary)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode report for cache")
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Report cache write failed")
	}
}

func reportCacheKey(period Period, scope ReportScope) string {
	who := "all"
	if scope.DoctorID != nil {
		who = fmt.Sprintf("doctor:%d", *scope.DoctorID)
	}
	return fmt.Sprintf("%s%s:%d:%s", ReportCachePrefix, period.Granularity, period.From.Unix(), who)
}

func attributedDoctorIDs(attributed []entities.AttributedPayment) []int64 {
	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, ap := range attributed {
		if ap.DoctorID == nil {
			continue
		}
		if _, ok := seen[*ap.DoctorID]; ok {
			continue
		}
		seen[*ap.DoctorID] = struct{}{}
		ids = append(ids, *ap.DoctorID)
	}
	return ids
}
