package repositories

import (
	"context"

	"github.com/zatekoja/clinicflow/internal/domain/entities"
)

// PatientDirectory is the read and upsert surface of the patient registry
type PatientDirectory interface {
	// GetPatient retrieves a patient by ID
	GetPatient(ctx context.Context, id int64) (*entities.Patient, error)

	// FindByNationalID retrieves a patient by national ID
	FindByNationalID(ctx context.Context, nationalID string) (*entities.Patient, error)

	// UpsertPatient creates or updates a patient keyed by national ID and
	// assigns its ID
	UpsertPatient(ctx context.Context, patient *entities.Patient) error
}

// DoctorDirectory is the read surface of the doctor registry
type DoctorDirectory interface {
	// GetDoctor retrieves a doctor by ID
	GetDoctor(ctx context.Context, id int64) (*entities.Doctor, error)

	// GetDoctorByUserID retrieves the doctor profile owned by a user
	GetDoctorByUserID(ctx context.Context, userID int64) (*entities.Doctor, error)

	// ListDoctors retrieves doctors by ID; an empty slice lists all of them
	ListDoctors(ctx context.Context, ids []int64) ([]*entities.Doctor, error)
}
