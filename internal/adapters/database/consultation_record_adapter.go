package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
	"github.com/zatekoja/clinicflow/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clinicflow/pkg/errors"
)

var consultationRecordColumns = []any{
	"id", "attention_id", "patient_id", "doctor_id", "content", "created_at", "updated_at",
}

// ConsultationRecordAdapter implements the ConsultationRecordRepository interface
type ConsultationRecordAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewConsultationRecordAdapter creates a new consultation record adapter
func NewConsultationRecordAdapter(client *postgres.Client) repositories.ConsultationRecordRepository {
	return &ConsultationRecordAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a record; attention_id is unique so a second record conflicts
func (a *ConsultationRecordAdapter) Create(ctx context.Context, record *entities.ConsultationRecord) error {
	row := goqu.Record{
		"attention_id": record.AttentionID,
		"patient_id":   record.PatientID,
		"doctor_id":    record.DoctorID,
		"content":      record.Content,
		"created_at":   record.CreatedAt,
		"updated_at":   record.UpdatedAt,
	}

	query, args, err := a.db.Insert("consultation_records").Rows(row).Returning("id").ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	err = a.client.Executor(ctx).QueryRowContext(ctx, query, args...).Scan(&record.ID)
	if isUniqueViolation(err) {
		return apperrors.NewConflictError(fmt.Sprintf("attention %d already has a consultation record", record.AttentionID))
	}
	if err != nil {
		return apperrors.NewInternalError("failed to create consultation record", err)
	}

	return nil
}

// GetByID retrieves a record by ID
func (a *ConsultationRecordAdapter) GetByID(ctx context.Context, id int64) (*entities.ConsultationRecord, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("consultation record with id %d not found", id))
}

// GetByAttentionID retrieves the record linked to an attention
func (a *ConsultationRecordAdapter) GetByAttentionID(ctx context.Context, attentionID int64) (*entities.ConsultationRecord, error) {
	return a.getOne(ctx, goqu.Ex{"attention_id": attentionID}, fmt.Sprintf("no consultation record for attention %d", attentionID))
}

// ListByPatient returns a patient's records, newest first
func (a *ConsultationRecordAdapter) ListByPatient(ctx context.Context, patientID int64) ([]*entities.ConsultationRecord, error) {
	ds := a.db.Select(consultationRecordColumns...).
		From("consultation_records").
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("created_at").Desc(), goqu.I("id").Desc())

	return a.list(ctx, ds)
}

// ListByIDs returns the records with the given IDs
func (a *ConsultationRecordAdapter) ListByIDs(ctx context.Context, ids []int64) ([]*entities.ConsultationRecord, error) {
	if len(ids) == 0 {
		return []*entities.ConsultationRecord{}, nil
	}

	ds := a.db.Select(consultationRecordColumns...).
		From("consultation_records").
		Where(goqu.Ex{"id": ids}).
		Order(goqu.I("id").Asc())

	return a.list(ctx, ds)
}

// UpdateContent replaces the clinical content of a record
func (a *ConsultationRecordAdapter) UpdateContent(ctx context.Context, id int64, content string, updatedAt time.Time) error {
	query, args, err := a.db.Update("consultation_records").
		Set(goqu.Record{"content": content, "updated_at": updatedAt}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update consultation record", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("consultation record with id %d not found", id))
	}

	return nil
}

func (a *ConsultationRecordAdapter) getOne(ctx context.Context, where goqu.Ex, notFound string) (*entities.ConsultationRecord, error) {
	query, args, err := a.db.Select(consultationRecordColumns...).
		From("consultation_records").
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	record, err := scanConsultationRecord(a.client.Executor(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get consultation record", err)
	}

	return record, nil
}

func (a *ConsultationRecordAdapter) list(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.ConsultationRecord, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list consultation records", err)
	}
	defer rows.Close()

	records := make([]*entities.ConsultationRecord, 0)
	for rows.Next() {
		record, err := scanConsultationRecord(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan consultation record", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating consultation records", err)
	}

	return records, nil
}

func scanConsultationRecord(row scanner) (*entities.ConsultationRecord, error) {
	record := &entities.ConsultationRecord{}
	err := row.Scan(
		&record.ID,
		&record.AttentionID,
		&record.PatientID,
		&record.DoctorID,
		&record.Content,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}
