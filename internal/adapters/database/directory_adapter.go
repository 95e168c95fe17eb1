package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/clinicflow/pkg/errors"
)

var (
	patientColumns = []any{"id", "national_id", "full_name", "phone", "created_at", "updated_at"}
	doctorColumns  = []any{"id", "user_id", "full_name", "specialty", "is_active"}
)

// DirectoryAdapter reads the patient and doctor registries. It implements
// both PatientDirectory and DoctorDirectory.
type DirectoryAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDirectoryAdapter creates a new directory adapter
func NewDirectoryAdapter(client *postgres.Client) *DirectoryAdapter {
	return &DirectoryAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetPatient retrieves a patient by ID
func (a *DirectoryAdapter) GetPatient(ctx context.Context, id int64) (*entities.Patient, error) {
	return a.getPatient(ctx, goqu.Ex{"id": id}, fmt.Sprintf("patient with id %d not found", id))
}

// FindByNationalID retrieves a patient by national ID
func (a *DirectoryAdapter) FindByNationalID(ctx context.Context, nationalID string) (*entities.Patient, error) {
	return a.getPatient(ctx, goqu.Ex{"national_id": nationalID}, fmt.Sprintf("patient with national id %s not found", nationalID))
}

// UpsertPatient inserts a patient or refreshes the one sharing its national ID
func (a *DirectoryAdapter) UpsertPatient(ctx context.Context, patient *entities.Patient) error {
	now := time.Now().UTC()
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = now
	}
	if patient.UpdatedAt.IsZero() {
		patient.UpdatedAt = now
	}

	record := goqu.Record{
		"national_id": patient.NationalID,
		"full_name":   patient.FullName,
		"phone":       patient.Phone,
		"created_at":  patient.CreatedAt,
		"updated_at":  patient.UpdatedAt,
	}

	query, args, err := a.db.Insert("patients").
		Rows(record).
		OnConflict(goqu.DoUpdate("national_id", goqu.Record{
			"full_name":  goqu.L("EXCLUDED.full_name"),
			"phone":      goqu.L("EXCLUDED.phone"),
			"updated_at": goqu.L("EXCLUDED.updated_at"),
		})).
		Returning("id", "created_at").
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	err = a.client.Executor(ctx).QueryRowContext(ctx, query, args...).Scan(&patient.ID, &patient.CreatedAt)
	if err != nil {
		return apperrors.NewInternalError("failed to upsert patient", err)
	}

	return nil
}

// UpsertDoctor inserts a doctor profile or refreshes the one owned by the same user.
// The doctor registry is owned elsewhere; this backs seeding.
func (a *DirectoryAdapter) UpsertDoctor(ctx context.Context, doctor *entities.Doctor) error {
	query, args, err := a.db.Insert("doctors").
		Rows(goqu.Record{
			"user_id":   doctor.UserID,
			"full_name": doctor.FullName,
			"specialty": doctor.Specialty,
			"is_active": doctor.IsActive,
		}).
		OnConflict(goqu.DoUpdate("user_id", goqu.Record{
			"full_name": goqu.L("EXCLUDED.full_name"),
			"specialty": goqu.L("EXCLUDED.specialty"),
			"is_active": goqu.L("EXCLUDED.is_active"),
		})).
		Returning("id").
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if err := a.client.Executor(ctx).QueryRowContext(ctx, query, args...).Scan(&doctor.ID); err != nil {
		return apperrors.NewInternalError("failed to upsert doctor", err)
	}
	return nil
}

// GetDoctor retrieves a doctor by ID
func (a *DirectoryAdapter) GetDoctor(ctx context.Context, id int64) (*entities.Doctor, error) {
	return a.getDoctor(ctx, goqu.Ex{"id": id}, fmt.Sprintf("doctor with id %d not found", id))
}

// GetDoctorByUserID retrieves the doctor profile owned by a user
func (a *DirectoryAdapter) GetDoctorByUserID(ctx context.Context, userID int64) (*entities.Doctor, error) {
	return a.getDoctor(ctx, goqu.Ex{"user_id": userID}, fmt.Sprintf("no doctor profile for user %d", userID))
}

// ListDoctors retrieves doctors by ID, or all of them when ids is empty
func (a *DirectoryAdapter) ListDoctors(ctx context.Context, ids []int64) ([]*entities.Doctor, error) {
	ds := a.db.Select(doctorColumns...).From("doctors")
	if len(ids) > 0 {
		ds = ds.Where(goqu.Ex{"id": ids})
	}

	query, args, err := ds.Order(goqu.I("id").Asc()).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list doctors", err)
	}
	defer rows.Close()

	doctors := make([]*entities.Doctor, 0)
	for rows.Next() {
		doctor := &entities.Doctor{}
		if err := rows.Scan(&doctor.ID, &doctor.UserID, &doctor.FullName, &doctor.Specialty, &doctor.IsActive); err != nil {
			return nil, apperrors.NewInternalError("failed to scan doctor", err)
		}
		doctors = append(doctors, doctor)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating doctors", err)
	}

	return doctors, nil
}

func (a *DirectoryAdapter) getPatient(ctx context.Context, where goqu.Ex, notFound string) (*entities.Patient, error) {
	query, args, err := a.db.Select(patientColumns...).From("patients").Where(where).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	patient := &entities.Patient{}
	err = a.client.Executor(ctx).QueryRowContext(ctx, query, args...).Scan(
		&patient.ID,
		&patient.NationalID,
		&patient.FullName,
		&patient.Phone,
		&patient.CreatedAt,
		&patient.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}

	return patient, nil
}

func (a *DirectoryAdapter) getDoctor(ctx context.Context, where goqu.Ex, notFound string) (*entities.Doctor, error) {
	query, args, err := a.db.Select(doctorColumns...).From("doctors").Where(where).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	doctor := &entities.Doctor{}
	err = a.client.Executor(ctx).QueryRowContext(ctx, query, args...).Scan(
		&doctor.ID,
		&doctor.UserID,
		&doctor.FullName,
		&doctor.Specialty,
		&doctor.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get doctor", err)
	}

	return doctor, nil
}
