package services

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"clinic-tracker/backend/internal/apperr"
	"clinic-tracker/backend/internal/models"
)

// RequestDateChange opens a due-date change request on a task the acting
// doctor owns. A request that is still pending admin review blocks new ones;
// after a terminal review a fresh request overwrites the reviewed record.
func (s *TaskServiceImpl) RequestDateChange(db *gorm.DB, actor Actor, id uuid.UUID, requestedDate time.Time, reason string) (models.Task, error) {
	task, err := findTask(db, id)
	if err != nil {
		return models.Task{}, err
	}

	if !actor.IsDoctor() || !task.IsAssignedTo(actor.ID) {
		return models.Task{}, apperr.Forbidden("not authorized to request a date change for this task")
	}

	if requestedDate.IsZero() {
		return models.Task{}, apperr.Validation("requestedDueDate is required")
	}

	if task.DateChangeRequest.IsPending() {
		return models.Task{}, apperr.Conflict("a date change request is already pending review for this task")
	}

	now := time.Now()
	request := models.DateChangeRequest{
		Status:        models.DateChangePending,
		RequestedDate: &requestedDate,
		Reason:        reason,
		RequestedBy:   &actor.ID,
		RequestDate:   &now,
	}
	task.DateChangeRequest = request

	err = db.Model(&task).Updates(map[string]interface{}{
		"date_change_status":         request.Status,
		"date_change_requested_date": request.RequestedDate,
		"date_change_reason":         request.Reason,
		"date_change_requested_by":   request.RequestedBy,
		"date_change_request_date":   request.RequestDate,
		"date_change_reviewed_by":    nil,
		"date_change_review_date":    nil,
		"date_change_admin_notes":    "",
	}).Error
	if err != nil {
		return models.Task{}, err
	}

	recordAudit(db, actor, "date_change_requested", task.ID, reason)

	if err := resolveAssignee(db, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// ReviewDateChange settles a pending request. Approval copies the requested
// date into the task's authoritative due date; rejection leaves it untouched.
// Both outcomes record the reviewing admin and notes.
func (s *TaskServiceImpl) ReviewDateChange(db *gorm.DB, actor Actor, id uuid.UUID, approvalStatus, adminNotes string) (models.Task, error) {
	task, err := findTask(db, id)
	if err != nil {
		return models.Task{}, err
	}

	if !actor.IsAdmin() {
		return models.Task{}, apperr.Forbidden("not authorized to review date change requests")
	}

	if approvalStatus != models.DateChangeApproved && approvalStatus != models.DateChangeRejected {
		return models.Task{}, apperr.Validation(`invalid approvalStatus %q, must be "approved" or "rejected"`, approvalStatus)
	}

	if !task.DateChangeRequest.IsPending() {
		return models.Task{}, apperr.InvalidState("no pending date change request for this task")
	}

	now := time.Now()
	updates := map[string]interface{}{
		"date_change_status":      approvalStatus,
		"date_change_admin_notes": adminNotes,
		"date_change_review_date": &now,
		"date_change_reviewed_by": &actor.ID,
	}
	if approvalStatus == models.DateChangeApproved {
		updates["due_date"] = *task.DateChangeRequest.RequestedDate
	}

	if err := db.Model(&task).Updates(updates).Error; err != nil {
		return models.Task{}, err
	}

	if task, err = findTask(db, id); err != nil {
		return models.Task{}, err
	}

	recordAudit(db, actor, "date_change_"+approvalStatus, task.ID, adminNotes)

	if err := resolveAssignee(db, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}
