package entities

import (
	"time"
)

// Patient is a registry entry; the registry owns its lifecycle
type Patient struct {
	ID         int64     `json:"id" db:"id"`
	NationalID string    `json:"national_id" db:"national_id"`
	FullName   string    `json:"full_name" db:"full_name"`
	Phone      string    `json:"phone,omitempty" db:"phone"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Doctor is a practitioner profile owned by a user account
type Doctor struct {
	ID        int64  `json:"id" db:"id"`
	UserID    int64  `json:"user_id" db:"user_id"`
	FullName  string `json:"full_name" db:"full_name"`
	Specialty string `json:"specialty" db:"specialty"`
	IsActive  bool   `json:"is_active" db:"is_active"`
}
