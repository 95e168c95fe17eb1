package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
	"github.com/zatekoja/clinicflow/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clinicflow/pkg/errors"
)

var paymentColumns = []any{
	"id", "patient_id", "amount_cents", "method", "receipt_ref", "note",
	"consultation_record_id", "paid_at", "created_at",
}

// PaymentAdapter implements the PaymentRepository interface
type PaymentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPaymentAdapter creates a new payment adapter
func NewPaymentAdapter(client *postgres.Client) repositories.PaymentRepository {
	return &PaymentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a payment and assigns its ID
func (a *PaymentAdapter) Create(ctx context.Context, payment *entities.Payment) error {
	record := goqu.Record{
		"patient_id":             payment.PatientID,
		"amount_cents":           payment.AmountCents,
		"method":                 string(payment.Method),
		"receipt_ref":            payment.ReceiptRef,
		"note":                   payment.Note,
		"consultation_record_id": payment.ConsultationRecordID,
		"paid_at":                payment.PaidAt,
		"created_at":             payment.CreatedAt,
	}

	query, args, err := a.db.Insert("payments").Rows(record).Returning("id").ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if err := a.client.Executor(ctx).QueryRowContext(ctx, query, args...).Scan(&payment.ID); err != nil {
		return apperrors.NewInternalError("failed to create payment", err)
	}

	return nil
}

// GetByID retrieves a payment by ID
func (a *PaymentAdapter) GetByID(ctx context.Context, id int64) (*entities.Payment, error) {
	query, args, err := a.db.Select(paymentColumns...).
		From("payments").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	payment, err := scanPayment(a.client.Executor(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("payment with id %d not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get payment", err)
	}

	return payment, nil
}

// Update updates a payment
func (a *PaymentAdapter) Update(ctx context.Context, payment *entities.Payment) error {
	record := goqu.Record{
		"amount_cents":           payment.AmountCents,
		"method":                 string(payment.Method),
		"receipt_ref":            payment.ReceiptRef,
		"note":                   payment.Note,
		"consultation_record_id": payment.ConsultationRecordID,
		"paid_at":                payment.PaidAt,
	}

	query, args, err := a.db.Update("payments").
		Set(record).
		Where(goqu.Ex{"id": payment.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update payment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("payment with id %d not found", payment.ID))
	}

	return nil
}

// Delete deletes a payment
func (a *PaymentAdapter) Delete(ctx context.Context, id int64) error {
	query, args, err := a.db.Delete("payments").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete payment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("payment with id %d not found", id))
	}

	return nil
}

// List retrieves payments with filters, in storage order
func (a *PaymentAdapter) List(ctx context.Context, filter repositories.PaymentFilter) ([]*entities.Payment, error) {
	ds := a.db.Select(paymentColumns...).From("payments")

	if filter.PatientID != nil {
		ds = ds.Where(goqu.Ex{"patient_id": *filter.PatientID})
	}
	if len(filter.PatientIDs) > 0 {
		ds = ds.Where(goqu.Ex{"patient_id": filter.PatientIDs})
	}
	if filter.From != nil {
		ds = ds.Where(goqu.C("paid_at").Gte(*filter.From))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.C("paid_at").Lt(*filter.To))
	}
	if filter.Settled != nil {
		if *filter.Settled {
			ds = ds.Where(goqu.C("consultation_record_id").IsNotNull())
		} else {
			ds = ds.Where(goqu.C("consultation_record_id").IsNull())
		}
	}

	ds = ds.Order(goqu.I("id").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list payments", err)
	}
	defer rows.Close()

	payments := make([]*entities.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan payment", err)
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating payments", err)
	}

	return payments, nil
}

// Settle links a payment to a record if it is still unsettled
func (a *PaymentAdapter) Settle(ctx context.Context, id, recordID int64) (bool, error) {
	query, args, err := a.db.Update("payments").
		Set(goqu.Record{"consultation_record_id": recordID}).
		Where(
			goqu.C("id").Eq(id),
			goqu.C("consultation_record_id").IsNull(),
		).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewInternalError("failed to settle payment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to get rows affected", err)
	}

	return rowsAffected > 0, nil
}

// DeleteUnsettled removes the listed payments that have no linked record
func (a *PaymentAdapter) DeleteUnsettled(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := a.db.Delete("payments").
		Where(
			goqu.C("id").In(ids),
			goqu.C("consultation_record_id").IsNull(),
		).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to delete payments", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to get rows affected", err)
	}

	return rowsAffected, nil
}

func scanPayment(row scanner) (*entities.Payment, error) {
	payment := &entities.Payment{}
	var method string
	var receiptRef, note sql.NullString
	var recordID sql.NullInt64

	err := row.Scan(
		&payment.ID,
		&payment.PatientID,
		&payment.AmountCents,
		&method,
		&receiptRef,
		&note,
		&recordID,
		&payment.PaidAt,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.Method = entities.PaymentMethod(method)
	if receiptRef.Valid {
		payment.ReceiptRef = &receiptRef.String
	}
	if note.Valid {
		payment.Note = &note.String
	}
	if recordID.Valid {
		payment.ConsultationRecordID = &recordID.Int64
	}

	return payment, nil
}
