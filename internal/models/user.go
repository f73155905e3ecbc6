package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Roles a clinic user can hold. Tasks are only ever assigned to doctors;
// staff and patient accounts exist for registration but have no task access.
const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RoleStaff   = "staff"
	RolePatient = "patient"
)

func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDoctor, RoleStaff, RolePatient:
		return true
	}
	return false
}

type User struct {
	ID       uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Name     string    `json:"name" gorm:"not null"`
	Email    string    `json:"email" gorm:"unique;not null"`
	Password string    `json:"-" gorm:"not null"`
	Role     string    `json:"role" gorm:"not null;default:'patient'"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsDoctor() bool {
	return u.Role == RoleDoctor
}

// DoctorSummary is the only user projection embedded in task responses.
// It never carries the password hash.
type DoctorSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func (u *User) Summary() DoctorSummary {
	return DoctorSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Token is a stored refresh token. Access tokens are stateless JWTs;
// refresh tokens are single-use rows deleted on rotation or logout.
type Token struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null"`
	RefreshToken uuid.UUID `json:"refresh_token" gorm:"type:uuid;not null;index"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
