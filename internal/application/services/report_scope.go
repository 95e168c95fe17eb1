package services

import (
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	apperrors "github.com/zatekoja/clinicflow/pkg/errors"
)

// ReportScope narrows a report. A nil DoctorID covers every doctor;
// Breakdown adds per-doctor and per-specialty sections.
type ReportScope struct {
	DoctorID  *int64
	Breakdown bool
}

// ScopeFor resolves the report scope of an acting user. Administrators and
// front desk staff see the whole clinic broken down by doctor; a doctor sees
// only their own attributed revenue.
func ScopeFor(actor entities.ActingUser) (ReportScope, error) {
	switch {
	case actor.IsAdmin(), actor.IsReception():
		return ReportScope{Breakdown: true}, nil
	case actor.ActsAsDoctor():
		id := *actor.DoctorID
		return ReportScope{DoctorID: &id}, nil
	}
	return ReportScope{}, apperrors.NewForbiddenError("role may not view reports")
}
