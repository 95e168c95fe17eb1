package entities

import (
	"time"
)

// PaymentMethod represents how money was received
type PaymentMethod string

const (
	PaymentMethodCash      PaymentMethod = "CASH"
	PaymentMethodTransfer  PaymentMethod = "TRANSFER"
	PaymentMethodInsurance PaymentMethod = "INSURANCE"
)

// Valid reports whether m is one of the accepted methods
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodInsurance:
		return true
	}
	return false
}

// Payment records money received from a patient. Amounts are in cents.
type Payment struct {
	ID                   int64         `json:"id" db:"id"`
	PatientID            int64         `json:"patient_id" db:"patient_id"`
	AmountCents          int64         `json:"amount_cents" db:"amount_cents"`
	Method               PaymentMethod `json:"method" db:"method"`
	ReceiptRef           *string       `json:"receipt_ref,omitempty" db:"receipt_ref"`
	Note                 *string       `json:"note,omitempty" db:"note"`
	ConsultationRecordID *int64        `json:"consultation_record_id,omitempty" db:"consultation_record_id"`
	PaidAt               time.Time     `json:"paid_at" db:"paid_at"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
}

// IsSettled reports whether the payment is linked to a consultation record
func (p *Payment) IsSettled() bool {
	return p.ConsultationRecordID != nil
}

// Normalize applies the ledger rule that a zero amount is covered by a
// third-party payer, whatever method the caller supplied.
func (p *Payment) Normalize() {
	if p.AmountCents == 0 {
		p.Method = PaymentMethodInsurance
	}
}
