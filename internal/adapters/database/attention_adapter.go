package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
	"github.com/zatekoja/clinicflow/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clinicflow/pkg/errors"
)

var attentionColumns = []any{
	"id", "patient_id", "doctor_id", "state", "priority",
	"entered_at", "consultation_started_at", "note", "created_at",
}

// AttentionAdapter implements the AttentionRepository interface
type AttentionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAttentionAdapter creates a new attention adapter
func NewAttentionAdapter(client *postgres.Client) repositories.AttentionRepository {
	return &AttentionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts an attention and assigns its ID
func (a *AttentionAdapter) Create(ctx context.Context, attention *entities.Attention) error {
	record := goqu.Record{
		"patient_id":              attention.PatientID,
		"doctor_id":               attention.DoctorID,
		"state":                   string(attention.State),
		"priority":                attention.Priority,
		"entered_at":              attention.EnteredAt,
		"consultation_started_at": attention.ConsultationStartedAt,
		"note":                    attention.Note,
		"created_at":              attention.CreatedAt,
	}

	query, args, err := a.db.Insert("attentions").Rows(record).Returning("id").ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if err := a.client.Executor(ctx).QueryRowContext(ctx, query, args...).Scan(&attention.ID); err != nil {
		return apperrors.NewInternalError("failed to create attention", err)
	}

	return nil
}

// GetByID retrieves an attention by ID
func (a *AttentionAdapter) GetByID(ctx context.Context, id int64) (*entities.Attention, error) {
	query, args, err := a.db.Select(attentionColumns...).
		From("attentions").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	attention, err := scanAttention(a.client.Executor(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("attention with id %d not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get attention", err)
	}

	return attention, nil
}

// ListWaiting returns EN_ESPERA attentions, oldest entry first
func (a *AttentionAdapter) ListWaiting(ctx context.Context, doctorID *int64) ([]*entities.Attention, error) {
	ds := a.db.Select(attentionColumns...).
		From("attentions").
		Where(goqu.Ex{"state": string(entities.AttentionStateWaiting)})

	if doctorID != nil {
		ds = ds.Where(goqu.Ex{"doctor_id": *doctorID})
	}

	return a.list(ctx, ds.Order(goqu.I("entered_at").Asc(), goqu.I("id").Asc()))
}

// ListByPatient returns a patient's attentions, newest first
func (a *AttentionAdapter) ListByPatient(ctx context.Context, patientID int64) ([]*entities.Attention, error) {
	ds := a.db.Select(attentionColumns...).
		From("attentions").
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("entered_at").Desc(), goqu.I("id").Desc())

	return a.list(ctx, ds)
}

// ListEnteredBetween returns attentions with entered_at in [from, to) in storage order
func (a *AttentionAdapter) ListEnteredBetween(ctx context.Context, from, to time.Time, doctorID *int64) ([]*entities.Attention, error) {
	ds := a.db.Select(attentionColumns...).
		From("attentions").
		Where(
			goqu.C("entered_at").Gte(from),
			goqu.C("entered_at").Lt(to),
		)

	if doctorID != nil {
		ds = ds.Where(goqu.Ex{"doctor_id": *doctorID})
	}

	return a.list(ctx, ds.Order(goqu.I("id").Asc()))
}

// TransitionState moves an attention between states with a compare-and-swap on state.
// Only forward edges are accepted.
func (a *AttentionAdapter) TransitionState(ctx context.Context, id int64, from, to entities.AttentionState, at time.Time) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, apperrors.NewValidationError(fmt.Sprintf("attention cannot move from %s to %s", from, to))
	}

	record := goqu.Record{"state": string(to)}
	if to == entities.AttentionStateInConsultation {
		record["consultation_started_at"] = at
	}

	query, args, err := a.db.Update("attentions").
		Set(record).
		Where(goqu.Ex{"id": id, "state": string(from)}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build update query", err)
	}

	return a.execAffected(ctx, query, args, "failed to update attention state")
}

// Delete removes an attention while its state is one of allowed
func (a *AttentionAdapter) Delete(ctx context.Context, id int64, allowed []entities.AttentionState) (bool, error) {
	states := make([]string, len(allowed))
	for i, s := range allowed {
		states[i] = string(s)
	}

	query, args, err := a.db.Delete("attentions").
		Where(goqu.Ex{"id": id, "state": states}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build delete query", err)
	}

	return a.execAffected(ctx, query, args, "failed to delete attention")
}

func (a *AttentionAdapter) execAffected(ctx context.Context, query string, args []any, msg string) (bool, error) {
	result, err := a.client.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewInternalError(msg, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to get rows affected", err)
	}

	return rowsAffected > 0, nil
}

func (a *AttentionAdapter) list(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.Attention, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list attentions", err)
	}
	defer rows.Close()

	attentions := make([]*entities.Attention, 0)
	for rows.Next() {
		attention, err := scanAttention(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan attention", err)
		}
		attentions = append(attentions, attention)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating attentions", err)
	}

	return attentions, nil
}

func scanAttention(row scanner) (*entities.Attention, error) {
	attention := &entities.Attention{}
	var state string
	var startedAt sql.NullTime

	err := row.Scan(
		&attention.ID,
		&attention.PatientID,
		&attention.DoctorID,
		&state,
		&attention.Priority,
		&attention.EnteredAt,
		&startedAt,
		&attention.Note,
		&attention.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	attention.State = entities.AttentionState(state)
	if !attention.State.Valid() {
		return nil, fmt.Errorf("unknown attention state %q", state)
	}
	if startedAt.Valid {
		attention.ConsultationStartedAt = &startedAt.Time
	}

	return attention, nil
}
