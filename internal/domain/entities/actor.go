package entities

// Role is the role of an authenticated user
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleDoctor    Role = "DOCTOR"
	RoleReception Role = "RECEPTION"
)

// ActingUser is the identity on whose behalf a core operation runs.
// DoctorID is set when the user owns a doctor profile.
type ActingUser struct {
	UserID   int64  `json:"user_id"`
	Role     Role   `json:"role"`
	DoctorID *int64 `json:"doctor_id,omitempty"`
}

// IsAdmin reports whether the user is an administrator
func (u ActingUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsReception reports whether the user works the front desk
func (u ActingUser) IsReception() bool {
	return u.Role == RoleReception
}

// ActsAsDoctor reports whether the user is a doctor with a resolved profile
func (u ActingUser) ActsAsDoctor() bool {
	return u.Role == RoleDoctor && u.DoctorID != nil
}

// IsDoctor reports whether the user is the doctor with the given id
func (u ActingUser) IsDoctor(doctorID int64) bool {
	return u.ActsAsDoctor() && *u.DoctorID == doctorID
}
