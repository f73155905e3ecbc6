package services

import (
	"log"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"clinic-tracker/backend/internal/models"
)

// recordAudit appends a lifecycle transition to the audit trail. Audit writes
// never fail the operation that triggered them.
func recordAudit(db *gorm.DB, actor Actor, action string, taskID uuid.UUID, detail string) {
	entry := models.AuditLog{
		ID:        uuid.Must(uuid.NewV4()),
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    action,
		TaskID:    taskID,
		Detail:    detail,
		Timestamp: time.Now(),
	}
	if err := db.Create(&entry).Error; err != nil {
		log.Printf("failed to record audit entry %s for task %s: %v", action, taskID, err)
	}
}
