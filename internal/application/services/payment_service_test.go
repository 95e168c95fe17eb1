package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clinicflow/internal/application/services"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
	apperrors "github.com/zatekoja/clinicflow/pkg/errors"
)

func TestPaymentService_RecordPayment_ZeroAmountIsInsurance(t *testing.T) {
	ctx := context.Background()

	for _, method := range []entities.PaymentMethod{
		entities.PaymentMethodCash,
		entities.PaymentMethodTransfer,
		entities.PaymentMethodInsurance,
		"",
	} {
		t.Run(string(method), func(t *testing.T) {
			c := newClinic()

			payment, err := c.payments.RecordPayment(ctx, reception, services.RecordPaymentInput{
				PatientID:    patientAna,
				PaymentInput: services.PaymentInput{AmountCents: 0, Method: method},
			})
			require.NoError(t, err)
			assert.Equal(t, entities.PaymentMethodInsurance, payment.Method)
			assert.Equal(t, entities.PaymentMethodInsurance, c.store.payments[payment.ID].Method)
		})
	}
}

func TestPaymentService_RecordPayment_Validation(t *testing.T) {
	ctx := context.Background()
	c := newClinic()
	otherRecord := seedFinalizedAttention(t, c, patientLuis, doctorVega)

	tests := []struct {
		name    string
		input   services.RecordPaymentInput
		wantErr apperrors.ErrorType
	}{
		{
			name:    "negative amount",
			input:   services.RecordPaymentInput{PatientID: patientAna, PaymentInput: services.PaymentInput{AmountCents: -100, Method: entities.PaymentMethodCash}},
			wantErr: apperrors.ErrorTypeValidation,
		},
		{
			name:    "unknown method",
			input:   services.RecordPaymentInput{PatientID: patientAna, PaymentInput: services.PaymentInput{AmountCents: 100, Method: "BITCOIN"}},
			wantErr: apperrors.ErrorTypeValidation,
		},
		{
			name:    "unknown patient",
			input:   services.RecordPaymentInput{PatientID: 404, PaymentInput: services.PaymentInput{AmountCents: 100, Method: entities.PaymentMethodCash}},
			wantErr: apperrors.ErrorTypeNotFound,
		},
		{
			name:    "unknown record",
			input:   services.RecordPaymentInput{PatientID: patientAna, PaymentInput: services.PaymentInput{AmountCents: 100, Method: entities.PaymentMethodCash, ConsultationRecordID: int64Ptr(404)}},
			wantErr: apperrors.ErrorTypeNotFound,
		},
		{
			name:    "record of another patient",
			input:   services.RecordPaymentInput{PatientID: patientAna, PaymentInput: services.PaymentInput{AmountCents: 100, Method: entities.PaymentMethodCash, ConsultationRecordID: &otherRecord}},
			wantErr: apperrors.ErrorTypeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.payments.RecordPayment(ctx, reception, tt.input)
			assert.True(t, apperrors.IsType(err, tt.wantErr), "got %v", err)
		})
	}

	assert.Empty(t, c.store.payments)
}

func TestPaymentService_DoctorsCannotTouchTheLedger(t *testing.T) {
	ctx := context.Background()
	c := newClinic()

	_, err := c.payments.RecordPayment(ctx, doctor(doctorRojas), services.RecordPaymentInput{
		PatientID:    patientAna,
		PaymentInput: services.PaymentInput{AmountCents: 100, Method: entities.PaymentMethodCash},
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))

	_, err = c.payments.ListPayments(ctx, doctor(doctorRojas), repositories.PaymentFilter{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
}

func TestPaymentService_UpdatePayment_ReappliesZeroRule(t *testing.T) {
	ctx := context.Background()
	c := newClinic()

	payment, err := c.payments.RecordPayment(ctx, reception, services.RecordPaymentInput{
		PatientID:    patientAna,
		PaymentInput: services.PaymentInput{AmountCents: 5000, Method: entities.PaymentMethodCash},
	})
	require.NoError(t, err)
	paidAt := payment.PaidAt

	c.clock.Advance(time.Hour)
	updated, err := c.payments.UpdatePayment(ctx, admin, payment.ID, services.PaymentInput{AmountCents: 0, Method: entities.PaymentMethodTransfer})
	require.NoError(t, err)
	assert.Equal(t, entities.PaymentMethodInsurance, updated.Method)
	assert.True(t, paidAt.Equal(updated.PaidAt), "paid_at is kept unless supplied")

	_, err = c.payments.UpdatePayment(ctx, admin, 404, services.PaymentInput{AmountCents: 1, Method: entities.PaymentMethodCash})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestPaymentService_UpdatePayment_NoteOnlyKeepsReportPeriod(t *testing.T) {
	ctx := context.Background()
	c := newClinic()

	c.clock.Set(time.Date(2024, 5, 14, 9, 58, 0, 0, time.UTC))
	payment, err := c.payments.RecordPayment(ctx, reception, services.RecordPaymentInput{
		PatientID:    patientAna,
		PaymentInput: services.PaymentInput{AmountCents: 10000, Method: entities.PaymentMethodCash},
	})
	require.NoError(t, err)

	c.clock.Set(time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC))
	_, err = c.queue.Enqueue(ctx, reception, services.EnqueueInput{PatientID: patientAna, DoctorID: doctorRojas})
	require.NoError(t, err)

	before, err := c.reports.MonthlyReport(ctx, doctor(doctorRojas), 2024, time.May)
	require.NoError(t, err)
	require.Equal(t, int64(10000), before.Totals.TotalCents)

	c.clock.Set(time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC))
	note := "receipt reprinted"
	updated, err := c.payments.UpdatePayment(ctx, reception, payment.ID, services.PaymentInput{
		AmountCents: 10000,
		Method:      entities.PaymentMethodCash,
		Note:        &note,
	})
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 5, 14, 9, 58, 0, 0, time.UTC).Equal(updated.PaidAt))

	after, err := c.reports.MonthlyReport(ctx, doctor(doctorRojas), 2024, time.May)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), after.Totals.TotalCents)
}

func TestPaymentService_DeletePayment(t *testing.T) {
	ctx := context.Background()
	c := newClinic()

	payment, err := c.payments.RecordPayment(ctx, reception, services.RecordPaymentInput{
		PatientID:    patientAna,
		PaymentInput: services.PaymentInput{AmountCents: 5000, Method: entities.PaymentMethodCash},
	})
	require.NoError(t, err)

	require.NoError(t, c.payments.DeletePayment(ctx, reception, payment.ID))
	assert.Empty(t, c.store.payments)

	err = c.payments.DeletePayment(ctx, reception, payment.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestPaymentService_SettlePayment(t *testing.T) {
	ctx := context.Background()
	c := newClinic()
	recordID := seedFinalizedAttention(t, c, patientAna, doctorRojas)
	otherRecord := seedFinalizedAttention(t, c, patientLuis, doctorVega)

	payment, err := c.payments.RecordPayment(ctx, reception, services.RecordPaymentInput{
		PatientID:    patientAna,
		PaymentInput: services.PaymentInput{AmountCents: 5000, Method: entities.PaymentMethodCash},
	})
	require.NoError(t, err)

	_, err = c.payments.SettlePayment(ctx, reception, payment.ID, otherRecord)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	settled, err := c.payments.SettlePayment(ctx, reception, payment.ID, recordID)
	require.NoError(t, err)
	require.NotNil(t, settled.ConsultationRecordID)
	assert.Equal(t, recordID, *settled.ConsultationRecordID)

	_, err = c.payments.SettlePayment(ctx, reception, payment.ID, recordID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestPaymentService_ListPayments_RejectsInvertedRange(t *testing.T) {
	c := newClinic()
	from := c.clock.Now()
	to := from.Add(-time.Hour)

	_, err := c.payments.ListPayments(context.Background(), admin, repositories.PaymentFilter{From: &from, To: &to})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}
