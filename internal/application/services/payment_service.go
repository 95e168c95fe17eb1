package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/providers"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
	apperrors "github.com/zatekoja/clinicflow/pkg/errors"
)

// PaymentInput carries the caller-supplied fields of a ledger entry
type PaymentInput struct {
	AmountCents          int64
	Method               entities.PaymentMethod
	ReceiptRef           *string
	Note                 *string
	ConsultationRecordID *int64
	PaidAt               *time.Time
}

// RecordPaymentInput is a PaymentInput for a given patient
type RecordPaymentInput struct {
	PatientID int64
	PaymentInput
}

// PaymentService manages the payment ledger
type PaymentService struct {
	payments repositories.PaymentRepository
	records  repositories.ConsultationRecordRepository
	patients repositories.PatientDirectory
	events   providers.EventBus
	now      Clock
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	payments repositories.PaymentRepository,
	records repositories.ConsultationRecordRepository,
	patients repositories.PatientDirectory,
	events providers.EventBus,
) *PaymentService {
	return &PaymentService{
		payments: payments,
		records:  records,
		patients: patients,
		events:   events,
		now:      systemClock,
	}
}

// SetClock replaces the time source
func (s *PaymentService) SetClock(clock Clock) {
	s.now = clock
}

// RecordPayment adds a payment to the ledger
func (s *PaymentService) RecordPayment(ctx context.Context, actor entities.ActingUser, input RecordPaymentInput) (*entities.Payment, error) {
	if err := authorizeLedger(actor); err != nil {
		return nil, err
	}

	payment, err := s.create(ctx, input.PatientID, input.PaymentInput)
	if err != nil {
		return nil, err
	}

	publishQueueEvent(ctx, s.events, entities.NewPaymentEvent(entities.QueueEventPaymentRecorded, payment, s.now()))
	return payment, nil
}

// create validates and stores a payment. It runs inside the caller's
// transaction when there is one.
func (s *PaymentService) create(ctx context.Context, patientID int64, input PaymentInput) (*entities.Payment, error) {
	if patientID <= 0 {
		return nil, apperrors.NewValidationError("patient_id is required")
	}
	if _, err := s.patients.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}

	now := s.now()
	payment := &entities.Payment{
		PatientID: patientID,
		CreatedAt: now,
	}
	if err := s.apply(ctx, payment, input, now); err != nil {
		return nil, err
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	return payment, nil
}

// UpdatePayment replaces the mutable fields of a payment
func (s *PaymentService) UpdatePayment(ctx context.Context, actor entities.ActingUser, id int64, input PaymentInput) (*entities.Payment, error) {
	if err := authorizeLedger(actor); err != nil {
		return nil, err
	}

	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.PaidAt == nil {
		paidAt := payment.PaidAt
		input.PaidAt = &paidAt
	}
	if err := s.apply(ctx, payment, input, s.now()); err != nil {
		return nil, err
	}

	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, err
	}

	publishQueueEvent(ctx, s.events, entities.NewPaymentEvent(entities.QueueEventPaymentChanged, payment, s.now()))
	return payment, nil
}

// DeletePayment removes a payment from the ledger
func (s *PaymentService) DeletePayment(ctx context.Context, actor entities.ActingUser, id int64) error {
	if err := authorizeLedger(actor); err != nil {
		return err
	}

	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.payments.Delete(ctx, id); err != nil {
		return err
	}

	publishQueueEvent(ctx, s.events, entities.NewPaymentEvent(entities.QueueEventPaymentChanged, payment, s.now()))
	return nil
}

// GetPayment retrieves a payment by ID
func (s *PaymentService) GetPayment(ctx context.Context, actor entities.ActingUser, id int64) (*entities.Payment, error) {
	if err := authorizeLedger(actor); err != nil {
		return nil, err
	}
	return s.payments.GetByID(ctx, id)
}

// ListPayments lists ledger entries matching filter
func (s *PaymentService) ListPayments(ctx context.Context, actor entities.ActingUser, filter repositories.PaymentFilter) ([]*entities.Payment, error) {
	if err := authorizeLedger(actor); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, apperrors.NewValidationError("from must be before to")
	}
	return s.payments.List(ctx, filter)
}

// SettlePayment links an unsettled payment to the consultation record it paid for
func (s *PaymentService) SettlePayment(ctx context.Context, actor entities.ActingUser, id, recordID int64) (*entities.Payment, error) {
	if err := authorizeLedger(actor); err != nil {
		return nil, err
	}

	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.IsSettled() {
		return nil, apperrors.NewConflictError(fmt.Sprintf("payment %d is already settled", id))
	}

	if err := s.checkRecordLink(ctx, payment.PatientID, recordID); err != nil {
		return nil, err
	}

	settled, err := s.payments.Settle(ctx, id, recordID)
	if err != nil {
		return nil, err
	}
	if !settled {
		return nil, apperrors.NewConflictError(fmt.Sprintf("payment %d is already settled", id))
	}

	payment.ConsultationRecordID = &recordID
	publishQueueEvent(ctx, s.events, entities.NewPaymentEvent(entities.QueueEventPaymentChanged, payment, s.now()))
	return payment, nil
}

func (s *PaymentService) apply(ctx context.Context, payment *entities.Payment, input PaymentInput, now time.Time) error {
	if input.AmountCents < 0 {
		return apperrors.NewValidationError("amount must not be negative")
	}

	payment.AmountCents = input.AmountCents
	payment.Method = input.Method
	payment.Normalize()
	if !payment.Method.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown payment method %q", input.Method))
	}

	if input.ConsultationRecordID != nil {
		if err := s.checkRecordLink(ctx, payment.PatientID, *input.ConsultationRecordID); err != nil {
			return err
		}
	}

	paidAt := now
	if input.PaidAt != nil {
		paidAt = *input.PaidAt
	}

	payment.ReceiptRef = input.ReceiptRef
	payment.Note = input.Note
	payment.ConsultationRecordID = input.ConsultationRecordID
	payment.PaidAt = paidAt

	return nil
}

func (s *PaymentService) checkRecordLink(ctx context.Context, patientID, recordID int64) error {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return err
	}
	if record.PatientID != patientID {
		return apperrors.NewValidationError(fmt.Sprintf("consultation record %d belongs to another patient", recordID))
	}
	return nil
}

func authorizeLedger(actor entities.ActingUser) error {
	if actor.IsAdmin() || actor.IsReception() {
		return nil
	}
	return apperrors.NewForbiddenError("only administrators and front desk staff manage payments")
}
