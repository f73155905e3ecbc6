package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// AuditLog records one task lifecycle transition: who did what to which task.
type AuditLog struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	ActorID   uuid.UUID `json:"actor_id" gorm:"type:uuid;not null"`
	ActorRole string    `json:"actor_role" gorm:"not null"`
	Action    string    `json:"action" gorm:"not null"`
	TaskID    uuid.UUID `json:"task_id" gorm:"type:uuid;not null;index"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}
