package services

import (
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"clinic-tracker/backend/internal/apperr"
	"clinic-tracker/backend/internal/models"
)

const defaultRejectionReason = "No reason provided."

// TaskFilter narrows a task listing. Zero values mean "no filter".
// The due-date range is inclusive on both ends and only applies when both
// bounds are supplied.
type TaskFilter struct {
	Status       string
	AssignedTo   uuid.UUID
	DueDateStart *time.Time
	DueDateEnd   *time.Time
}

// TaskSort selects the listing order. Order "asc" sorts ascending; anything
// else descends. An empty Field falls back to creation time descending.
type TaskSort struct {
	Field string
	Order string
}

type CreateTaskInput struct {
	Title       string
	Description string
	Status      string
	DueDate     *time.Time
	AssignedTo  uuid.UUID
}

// UpdateTaskInput carries only the fields the caller actually set. Nil means
// "not supplied", which is how the doctor allow-list tells an omitted field
// from an empty one. AssignmentStatus is deliberately absent: the handshake
// is only reachable through Accept/Reject and the date-change review.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *string
	DueDate     *time.Time
	AssignedTo  *uuid.UUID

	// Extra holds field names the caller supplied that no role may update
	// through this operation (assignmentStatus included). Collected at the
	// boundary so violations can be reported by name.
	Extra []string
}

type TaskService interface {
	ListTasks(db *gorm.DB, actor Actor, filter TaskFilter, sort TaskSort) ([]models.Task, error)
	GetTaskByID(db *gorm.DB, actor Actor, id uuid.UUID) (models.Task, error)
	CreateTask(db *gorm.DB, actor Actor, input CreateTaskInput) (models.Task, error)
	UpdateTask(db *gorm.DB, actor Actor, id uuid.UUID, input UpdateTaskInput) (models.Task, error)
	DeleteTask(db *gorm.DB, actor Actor, id uuid.UUID) error
	AcceptTask(db *gorm.DB, actor Actor, id uuid.UUID) (models.Task, error)
	RejectTask(db *gorm.DB, actor Actor, id uuid.UUID, reason string) (models.Task, error)
	RequestDateChange(db *gorm.DB, actor Actor, id uuid.UUID, requestedDate time.Time, reason string) (models.Task, error)
	ReviewDateChange(db *gorm.DB, actor Actor, id uuid.UUID, approvalStatus, adminNotes string) (models.Task, error)
}

type TaskServiceImpl struct{}

func NewTaskService() *TaskServiceImpl {
	return &TaskServiceImpl{}
}

// Columns a listing may be sorted by. Requests naming anything else fall back
// to the default ordering rather than reaching the store verbatim.
var sortableColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"due_date":   "due_date",
	"dueDate":    "due_date",
	"createdAt":  "created_at",
	"title":      "title",
	"status":     "status",
}

func (s *TaskServiceImpl) ListTasks(db *gorm.DB, actor Actor, filter TaskFilter, sort TaskSort) ([]models.Task, error) {
	query := db.Model(&models.Task{})

	switch {
	case actor.IsAdmin():
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.AssignedTo != uuid.Nil {
			query = query.Where("assigned_to = ?", filter.AssignedTo)
		}
		if filter.DueDateStart != nil && filter.DueDateEnd != nil {
			query = query.Where("due_date >= ? AND due_date <= ?", *filter.DueDateStart, *filter.DueDateEnd)
		}
	case actor.IsDoctor():
		// Doctors only ever see their own non-rejected tasks, whatever
		// filters they supplied.
		query = query.Where("assigned_to = ?", actor.ID)
		query = query.Where("assignment_status IN ?", []string{models.AssignmentAccepted, models.AssignmentPending})
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
	default:
		return nil, apperr.Forbidden("role %s is not authorized to list tasks", actor.Role)
	}

	orderClause := "created_at DESC"
	if column, ok := sortableColumns[sort.Field]; ok {
		direction := "DESC"
		if strings.EqualFold(sort.Order, "asc") {
			direction = "ASC"
		}
		orderClause = column + " " + direction
	}

	var tasks []models.Task
	if err := query.Order(orderClause).Find(&tasks).Error; err != nil {
		return nil, err
	}

	if err := resolveAssignees(db, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *TaskServiceImpl) GetTaskByID(db *gorm.DB, actor Actor, id uuid.UUID) (models.Task, error) {
	task, err := findTask(db, id)
	if err != nil {
		return models.Task{}, err
	}

	if actor.IsDoctor() && !task.IsAssignedTo(actor.ID) {
		return models.Task{}, apperr.Forbidden("not authorized to view this task")
	}
	if !actor.IsAdmin() && !actor.IsDoctor() {
		return models.Task{}, apperr.Forbidden("role %s is not authorized to view tasks", actor.Role)
	}

	if err := resolveAssignee(db, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *TaskServiceImpl) CreateTask(db *gorm.DB, actor Actor, input CreateTaskInput) (models.Task, error) {
	if !actor.IsAdmin() {
		return models.Task{}, apperr.Forbidden("not authorized to create tasks")
	}

	var missing []string
	if strings.TrimSpace(input.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(input.Description) == "" {
		missing = append(missing, "description")
	}
	if input.DueDate == nil {
		missing = append(missing, "dueDate")
	}
	if input.AssignedTo == uuid.Nil {
		missing = append(missing, "assignedTo")
	}
	if len(missing) > 0 {
		return models.Task{}, apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}

	status := input.Status
	if status == "" {
		status = models.StatusPending
	}
	if !models.IsValidStatus(status) {
		return models.Task{}, apperr.Validation("invalid status %q", status)
	}

	var assignee models.User
	if err := db.Where("id = ?", input.AssignedTo).First(&assignee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, apperr.Validation("assignedTo does not reference an existing user")
		}
		return models.Task{}, err
	}
	if !assignee.IsDoctor() {
		return models.Task{}, apperr.Validation("tasks can only be assigned to doctors")
	}

	task := models.Task{
		ID:               uuid.Must(uuid.NewV4()),
		Title:            input.Title,
		Description:      input.Description,
		Status:           status,
		DueDate:          *input.DueDate,
		AssignedTo:       input.AssignedTo,
		CreatedBy:        actor.ID,
		AssignmentStatus: models.AssignmentPending,
	}
	if err := db.Create(&task).Error; err != nil {
		return models.Task{}, err
	}

	recordAudit(db, actor, "task_created", task.ID, "assigned to "+assignee.Name)

	task.Assignee = summaryOf(assignee)
	return task, nil
}

func (s *TaskServiceImpl) UpdateTask(db *gorm.DB, actor Actor, id uuid.UUID, input UpdateTaskInput) (models.Task, error) {
	task, err := findTask(db, id)
	if err != nil {
		return models.Task{}, err
	}

	if actor.IsAdmin() {
		if len(input.Extra) > 0 {
			return models.Task{}, apperr.Validation(
				"fields not permitted through this operation: %s",
				strings.Join(input.Extra, ", "))
		}
	} else {
		if !actor.IsDoctor() || !task.IsAssignedTo(actor.ID) {
			return models.Task{}, apperr.Forbidden("not authorized to update this task")
		}
		var disallowed []string
		if input.Title != nil {
			disallowed = append(disallowed, "title")
		}
		if input.Description != nil {
			disallowed = append(disallowed, "description")
		}
		if input.DueDate != nil {
			disallowed = append(disallowed, "dueDate")
		}
		if input.AssignedTo != nil {
			disallowed = append(disallowed, "assignedTo")
		}
		disallowed = append(disallowed, input.Extra...)
		if len(disallowed) > 0 {
			return models.Task{}, apperr.Forbidden(
				"doctors can only update task status. Disallowed fields: %s",
				strings.Join(disallowed, ", "))
		}
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return models.Task{}, apperr.Validation("title must not be empty")
		}
		updates["title"] = *input.Title
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Status != nil {
		if !models.IsValidStatus(*input.Status) {
			return models.Task{}, apperr.Validation("invalid status %q", *input.Status)
		}
		updates["status"] = *input.Status
	}
	if input.DueDate != nil {
		updates["due_date"] = *input.DueDate
	}
	if input.AssignedTo != nil {
		var assignee models.User
		if err := db.Where("id = ?", *input.AssignedTo).First(&assignee).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Task{}, apperr.Validation("assignedTo does not reference an existing user")
			}
			return models.Task{}, err
		}
		if !assignee.IsDoctor() {
			return models.Task{}, apperr.Validation("tasks can only be assigned to doctors")
		}
		updates["assigned_to"] = *input.AssignedTo
	}

	if len(updates) > 0 {
		if err := db.Model(&task).Updates(updates).Error; err != nil {
			return models.Task{}, err
		}
		if task, err = findTask(db, id); err != nil {
			return models.Task{}, err
		}
	}

	recordAudit(db, actor, "task_updated", task.ID, strings.Join(updatedFieldNames(updates), ", "))

	if err := resolveAssignee(db, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *TaskServiceImpl) DeleteTask(db *gorm.DB, actor Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperr.Forbidden("not authorized to delete tasks")
	}

	task, err := findTask(db, id)
	if err != nil {
		return err
	}

	if err := db.Delete(&task).Error; err != nil {
		return err
	}

	recordAudit(db, actor, "task_deleted", id, "")
	return nil
}

func (s *TaskServiceImpl) AcceptTask(db *gorm.DB, actor Actor, id uuid.UUID) (models.Task, error) {
	task, err := findTask(db, id)
	if err != nil {
		return models.Task{}, err
	}

	if !actor.IsDoctor() || !task.IsAssignedTo(actor.ID) || task.AssignmentStatus != models.AssignmentPending {
		return models.Task{}, apperr.Forbidden("not authorized or task not in pending-acceptance status")
	}

	task.AssignmentStatus = models.AssignmentAccepted
	if err := db.Model(&task).Update("assignment_status", models.AssignmentAccepted).Error; err != nil {
		return models.Task{}, err
	}

	recordAudit(db, actor, "task_accepted", task.ID, "")

	if err := resolveAssignee(db, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *TaskServiceImpl) RejectTask(db *gorm.DB, actor Actor, id uuid.UUID, reason string) (models.Task, error) {
	task, err := findTask(db, id)
	if err != nil {
		return models.Task{}, err
	}

	if !actor.IsDoctor() || !task.IsAssignedTo(actor.ID) || task.AssignmentStatus != models.AssignmentPending {
		return models.Task{}, apperr.Forbidden("not authorized or task not in pending-acceptance status")
	}

	if reason == "" {
		reason = defaultRejectionReason
	}

	task.AssignmentStatus = models.AssignmentRejected
	task.RejectionReason = reason
	err = db.Model(&task).Updates(map[string]interface{}{
		"assignment_status": models.AssignmentRejected,
		"rejection_reason":  reason,
	}).Error
	if err != nil {
		return models.Task{}, err
	}

	recordAudit(db, actor, "task_rejected", task.ID, reason)

	if err := resolveAssignee(db, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func findTask(db *gorm.DB, id uuid.UUID) (models.Task, error) {
	var task models.Task
	if err := db.Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, apperr.NotFound("task not found")
		}
		return models.Task{}, err
	}
	return task, nil
}

func resolveAssignee(db *gorm.DB, task *models.Task) error {
	var assignee models.User
	err := db.Where("id = ?", task.AssignedTo).First(&assignee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Dangling reference; surface the task without a projection
			// rather than failing the read.
			task.Assignee = nil
			return nil
		}
		return err
	}
	task.Assignee = summaryOf(assignee)
	return nil
}

func resolveAssignees(db *gorm.DB, tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(tasks))
	seen := make(map[uuid.UUID]bool, len(tasks))
	for _, task := range tasks {
		if !seen[task.AssignedTo] {
			seen[task.AssignedTo] = true
			ids = append(ids, task.AssignedTo)
		}
	}

	var users []models.User
	if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return err
	}

	byID := make(map[uuid.UUID]models.DoctorSummary, len(users))
	for _, user := range users {
		byID[user.ID] = user.Summary()
	}

	for i := range tasks {
		if summary, ok := byID[tasks[i].AssignedTo]; ok {
			s := summary
			tasks[i].Assignee = &s
		}
	}
	return nil
}

func summaryOf(user models.User) *models.DoctorSummary {
	s := user.Summary()
	return &s
}

func updatedFieldNames(updates map[string]interface{}) []string {
	names := make([]string, 0, len(updates))
	for name := range updates {
		names = append(names, name)
	}
	return names
}
