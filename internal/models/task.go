package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Work-progress states. Independent of the assignment axis: a doctor moves a
// task through these after (conceptually) accepting it.
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
)

func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Assignment handshake states. New tasks start in pending-acceptance;
// accepted and rejected are terminal.
const (
	AssignmentPending  = "pending-acceptance"
	AssignmentAccepted = "accepted"
	AssignmentRejected = "rejected"
)

// Date-change request states. An empty status means no request has ever been
// made on the task.
const (
	DateChangePending  = "pending"
	DateChangeApproved = "approved"
	DateChangeRejected = "rejected"
)

// DateChangeRequest is the doctor-initiated, admin-reviewed proposal to move
// a task's due date. Stored embedded in the task row; a new request after a
// terminal review overwrites the reviewed record.
type DateChangeRequest struct {
	Status        string     `json:"status,omitempty"`
	RequestedDate *time.Time `json:"requested_date,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	RequestedBy   *uuid.UUID `json:"requested_by,omitempty" gorm:"type:uuid"`
	RequestDate   *time.Time `json:"request_date,omitempty"`
	ReviewedBy    *uuid.UUID `json:"reviewed_by,omitempty" gorm:"type:uuid"`
	ReviewDate    *time.Time `json:"review_date,omitempty"`
	AdminNotes    string     `json:"admin_notes,omitempty"`
}

func (r DateChangeRequest) IsPending() bool {
	return r.Status == DateChangePending
}

type Task struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description"`
	Status      string    `json:"status" gorm:"not null;default:'pending'"`
	DueDate     time.Time `json:"due_date" gorm:"not null"`

	AssignedTo uuid.UUID `json:"assigned_to" gorm:"type:uuid;not null;index"`
	CreatedBy  uuid.UUID `json:"created_by" gorm:"type:uuid;not null"`

	AssignmentStatus string `json:"assignment_status" gorm:"not null;default:'pending-acceptance';index"`
	RejectionReason  string `json:"rejection_reason,omitempty"`

	DateChangeRequest DateChangeRequest `json:"date_change_request" gorm:"embedded;embeddedPrefix:date_change_"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Resolved assignee projection, populated on the way out of the query
	// layer. Never persisted.
	Assignee *DoctorSummary `json:"assignee,omitempty" gorm:"-"`
}

func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssignedTo == userID
}
