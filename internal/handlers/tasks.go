package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"clinic-tracker/backend/internal/apperr"
	"clinic-tracker/backend/internal/middleware"
	"clinic-tracker/backend/internal/services"
)

type TaskHandler struct {
	db          *gorm.DB
	taskService services.TaskService
}

func NewTaskHandler(db *gorm.DB, taskService services.TaskService) *TaskHandler {
	return &TaskHandler{db: db, taskService: taskService}
}

// Field names accepted by the update endpoint. Anything else is rejected at
// the boundary before it reaches the state machine.
var updatableTaskFields = map[string]bool{
	"title":       true,
	"description": true,
	"status":      true,
	"dueDate":     true,
	"assignedTo":  true,
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperr.Unauthenticated("user not authenticated"))
		return
	}

	filter := services.TaskFilter{Status: c.Query("status")}

	if assignedTo := c.Query("assignedTo"); assignedTo != "" {
		id, err := uuid.FromString(assignedTo)
		if err != nil {
			respondError(c, apperr.InvalidIdentifier("invalid assignedTo filter format"))
			return
		}
		filter.AssignedTo = id
	}

	start, end := c.Query("dueDateStart"), c.Query("dueDateEnd")
	if start != "" && end != "" {
		startTime, err := parseDate(start)
		if err != nil {
			respondError(c, apperr.Validation("invalid dueDateStart: %v", err))
			return
		}
		endTime, err := parseDate(end)
		if err != nil {
			respondError(c, apperr.Validation("invalid dueDateEnd: %v", err))
			return
		}
		filter.DueDateStart = &startTime
		filter.DueDateEnd = &endTime
	}

	sort := services.TaskSort{
		Field: c.Query("sortBy"),
		Order: c.Query("order"),
	}

	tasks, err := h.taskService.ListTasks(h.db, actor, filter, sort)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	actor, taskID, ok := h.actorAndTaskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTaskByID(h.db, actor, taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperr.Unauthenticated("user not authenticated"))
		return
	}

	var req struct {
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Status      string     `json:"status"`
		DueDate     *time.Time `json:"dueDate"`
		AssignedTo  string     `json:"assignedTo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	input := services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
	}
	if req.AssignedTo != "" {
		assigneeID, err := uuid.FromString(req.AssignedTo)
		if err != nil {
			respondError(c, apperr.InvalidIdentifier("invalid assignedTo format"))
			return
		}
		input.AssignedTo = assigneeID
	}

	task, err := h.taskService.CreateTask(h.db, actor, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	actor, taskID, ok := h.actorAndTaskID(c)
	if !ok {
		return
	}

	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		respondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	input := services.UpdateTaskInput{}
	for field, value := range raw {
		if !updatableTaskFields[field] {
			input.Extra = append(input.Extra, field)
			continue
		}

		var err error
		switch field {
		case "title":
			err = json.Unmarshal(value, &input.Title)
		case "description":
			err = json.Unmarshal(value, &input.Description)
		case "status":
			err = json.Unmarshal(value, &input.Status)
		case "dueDate":
			err = json.Unmarshal(value, &input.DueDate)
		case "assignedTo":
			var idStr string
			if err = json.Unmarshal(value, &idStr); err == nil {
				var assigneeID uuid.UUID
				if assigneeID, err = uuid.FromString(idStr); err == nil {
					input.AssignedTo = &assigneeID
				}
			}
		}
		if err != nil {
			respondError(c, apperr.Validation("invalid value for field %q", field))
			return
		}
	}

	task, err := h.taskService.UpdateTask(h.db, actor, taskID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	actor, taskID, ok := h.actorAndTaskID(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(h.db, actor, taskID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": taskID.String()})
}

func (h *TaskHandler) AcceptTask(c *gin.Context) {
	actor, taskID, ok := h.actorAndTaskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.AcceptTask(h.db, actor, taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) RejectTask(c *gin.Context) {
	actor, taskID, ok := h.actorAndTaskID(c)
	if !ok {
		return
	}

	var req struct {
		RejectionReason string `json:"rejectionReason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperr.Validation("invalid request body: %v", err))
			return
		}
	}

	task, err := h.taskService.RejectTask(h.db, actor, taskID, req.RejectionReason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) RequestDateChange(c *gin.Context) {
	actor, taskID, ok := h.actorAndTaskID(c)
	if !ok {
		return
	}

	var req struct {
		RequestedDueDate *time.Time `json:"requestedDueDate"`
		RequestReason    string     `json:"requestReason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}
	if req.RequestedDueDate == nil {
		respondError(c, apperr.Validation("requestedDueDate is required"))
		return
	}

	task, err := h.taskService.RequestDateChange(h.db, actor, taskID, *req.RequestedDueDate, req.RequestReason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Date change request submitted for review.",
		"task":    task,
	})
}

func (h *TaskHandler) ReviewDateChange(c *gin.Context) {
	actor, taskID, ok := h.actorAndTaskID(c)
	if !ok {
		return
	}

	var req struct {
		ApprovalStatus string `json:"approvalStatus"`
		AdminReason    string `json:"adminReason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	task, err := h.taskService.ReviewDateChange(h.db, actor, taskID, req.ApprovalStatus, req.AdminReason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Date change request " + req.ApprovalStatus + ".",
		"task":    task,
	})
}

func (h *TaskHandler) actorAndTaskID(c *gin.Context) (services.Actor, uuid.UUID, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		respondError(c, apperr.Unauthenticated("user not authenticated"))
		return services.Actor{}, uuid.Nil, false
	}

	taskID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		respondError(c, apperr.InvalidIdentifier("invalid task ID format"))
		return services.Actor{}, uuid.Nil, false
	}
	return actor, taskID, true
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
