package services

import (
	"github.com/gofrs/uuid"

	"clinic-tracker/backend/internal/models"
)

// Actor is the authenticated identity every operation is invoked with.
// It replaces ambient auth state: handlers build it from the verified token
// and pass it down explicitly.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func (a Actor) IsDoctor() bool {
	return a.Role == models.RoleDoctor
}
