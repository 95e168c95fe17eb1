package entities

import (
	"time"
)

// ReportGranularity selects the period a report covers
type ReportGranularity string

const (
	ReportDaily   ReportGranularity = "daily"
	ReportMonthly ReportGranularity = "monthly"
	ReportYearly  ReportGranularity = "yearly"
)

// AttributionSource tells how a payment was tied to a doctor
type AttributionSource string

const (
	// AttributionRecord means the payment is settled against a consultation record
	AttributionRecord AttributionSource = "record"
	// AttributionHeuristic means the payment was matched to an attention by time proximity
	AttributionHeuristic AttributionSource = "heuristic"
	// AttributionNone means no doctor could be attributed
	AttributionNone AttributionSource = "none"
)

// AttributedPayment is a payment together with the doctor it counts for
type AttributedPayment struct {
	Payment     Payment           `json:"payment"`
	DoctorID    *int64            `json:"doctor_id,omitempty"`
	AttentionID *int64            `json:"attention_id,omitempty"`
	Source      AttributionSource `json:"source"`
}

// MethodTotals carries per-method subtotals in cents
type MethodTotals struct {
	CashCents      int64 `json:"cash_cents"`
	TransferCents  int64 `json:"transfer_cents"`
	InsuranceCents int64 `json:"insurance_cents"`
	TotalCents     int64 `json:"total_cents"`
	Count          int   `json:"count"`
}

// Add accounts for one payment
func (t *MethodTotals) Add(p Payment) {
	switch p.Method {
	case PaymentMethodCash:
		t.CashCents += p.AmountCents
	case PaymentMethodTransfer:
		t.TransferCents += p.AmountCents
	case PaymentMethodInsurance:
		t.InsuranceCents += p.AmountCents
	}
	t.TotalCents += p.AmountCents
	t.Count++
}

// ReportBucket is a day (monthly report) or month (yearly report) slice
type ReportBucket struct {
	Key   string    `json:"key"`
	Start time.Time `json:"start"`
	MethodTotals
}

// DoctorReport is one doctor's share of a period
type DoctorReport struct {
	DoctorID   int64          `json:"doctor_id"`
	DoctorName string         `json:"doctor_name"`
	Specialty  string         `json:"specialty"`
	Buckets    []ReportBucket `json:"buckets,omitempty"`
	MethodTotals
}

// SpecialtyReport rolls doctors up by specialty
type SpecialtyReport struct {
	Specialty string  `json:"specialty"`
	Doctors   []int64 `json:"doctor_ids"`
	MethodTotals
}

// ReportSummary is the aggregated revenue for a period
type ReportSummary struct {
	Granularity  ReportGranularity `json:"granularity"`
	From         time.Time         `json:"from"`
	To           time.Time         `json:"to"`
	DoctorID     *int64            `json:"doctor_id,omitempty"`
	Totals       MethodTotals      `json:"totals"`
	Doctors      []DoctorReport    `json:"doctors,omitempty"`
	Specialties  []SpecialtyReport `json:"specialties,omitempty"`
	Unattributed *MethodTotals     `json:"unattributed,omitempty"`
	GeneratedAt  time.Time         `json:"generated_at"`
}
