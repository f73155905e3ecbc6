package services_test

import (
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"clinic-tracker/backend/internal/apperr"
	"clinic-tracker/backend/internal/models"
	"clinic-tracker/backend/internal/services"
)

type TaskServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *services.TaskServiceImpl

	admin   services.Actor
	doctorA services.Actor
	doctorB services.Actor
}

func (suite *TaskServiceTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	err = db.AutoMigrate(&models.User{}, &models.Task{}, &models.Token{}, &models.AuditLog{})
	suite.Require().NoError(err)

	suite.db = db
	suite.service = services.NewTaskService()

	suite.admin = suite.createUser("Admin", "admin@clinic.test", models.RoleAdmin)
	suite.doctorA = suite.createUser("Dr. Adams", "adams@clinic.test", models.RoleDoctor)
	suite.doctorB = suite.createUser("Dr. Baker", "baker@clinic.test", models.RoleDoctor)
}

func (suite *TaskServiceTestSuite) createUser(name, email, role string) services.Actor {
	user := models.User{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     name,
		Email:    email,
		Password: "hashed",
		Role:     role,
	}
	suite.Require().NoError(suite.db.Create(&user).Error)
	return services.Actor{ID: user.ID, Role: role}
}

func (suite *TaskServiceTestSuite) createTask(assignee services.Actor, due time.Time) models.Task {
	task, err := suite.service.CreateTask(suite.db, suite.admin, services.CreateTaskInput{
		Title:       "Follow-up",
		Description: "desc",
		DueDate:     &due,
		AssignedTo:  assignee.ID,
	})
	suite.Require().NoError(err)
	return task
}

func (suite *TaskServiceTestSuite) TestCreateTask_Defaults() {
	due := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	task := suite.createTask(suite.doctorA, due)

	suite.Equal("Follow-up", task.Title)
	suite.Equal(models.StatusPending, task.Status)
	suite.Equal(models.AssignmentPending, task.AssignmentStatus)
	suite.Equal(suite.admin.ID, task.CreatedBy)
	suite.Require().NotNil(task.Assignee)
	suite.Equal("Dr. Adams", task.Assignee.Name)
	suite.Equal("adams@clinic.test", task.Assignee.Email)
}

func (suite *TaskServiceTestSuite) TestCreateTask_MissingFields() {
	_, err := suite.service.CreateTask(suite.db, suite.admin, services.CreateTaskInput{Title: "only title"})
	suite.Require().Error(err)
	suite.Equal(apperr.KindValidation, apperr.KindOf(err))
	suite.Contains(err.Error(), "description")
	suite.Contains(err.Error(), "dueDate")
	suite.Contains(err.Error(), "assignedTo")
}

func (suite *TaskServiceTestSuite) TestCreateTask_NonAdminForbidden() {
	due := time.Now().Add(24 * time.Hour)
	_, err := suite.service.CreateTask(suite.db, suite.doctorA, services.CreateTaskInput{
		Title:       "t",
		Description: "d",
		DueDate:     &due,
		AssignedTo:  suite.doctorA.ID,
	})
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))
}

func (suite *TaskServiceTestSuite) TestCreateTask_AssigneeMustBeDoctor() {
	staff := suite.createUser("Nurse", "nurse@clinic.test", models.RoleStaff)
	due := time.Now().Add(24 * time.Hour)
	_, err := suite.service.CreateTask(suite.db, suite.admin, services.CreateTaskInput{
		Title:       "t",
		Description: "d",
		DueDate:     &due,
		AssignedTo:  staff.ID,
	})
	suite.Equal(apperr.KindValidation, apperr.KindOf(err))
}

func (suite *TaskServiceTestSuite) TestAcceptTask_Handshake() {
	task := suite.createTask(suite.doctorA, time.Now().Add(24*time.Hour))

	accepted, err := suite.service.AcceptTask(suite.db, suite.doctorA, task.ID)
	suite.Require().NoError(err)
	suite.Equal(models.AssignmentAccepted, accepted.AssignmentStatus)

	// The assignment axis is terminal: a second accept must fail.
	_, err = suite.service.AcceptTask(suite.db, suite.doctorA, task.ID)
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))
}

func (suite *TaskServiceTestSuite) TestAcceptTask_OnlyAssignee() {
	task := suite.createTask(suite.doctorA, time.Now().Add(24*time.Hour))

	_, err := suite.service.AcceptTask(suite.db, suite.doctorB, task.ID)
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))

	_, err = suite.service.AcceptTask(suite.db, suite.admin, task.ID)
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))
}

func (suite *TaskServiceTestSuite) TestRejectTask_DefaultReason() {
	task := suite.createTask(suite.doctorA, time.Now().Add(24*time.Hour))

	rejected, err := suite.service.RejectTask(suite.db, suite.doctorA, task.ID, "")
	suite.Require().NoError(err)
	suite.Equal(models.AssignmentRejected, rejected.AssignmentStatus)
	suite.Equal("No reason provided.", rejected.RejectionReason)

	_, err = suite.service.RejectTask(suite.db, suite.doctorA, task.ID, "again")
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))
}

func (suite *TaskServiceTestSuite) TestListTasks_RejectedHiddenFromDoctor() {
	first := suite.createTask(suite.doctorA, time.Now().Add(24*time.Hour))
	second := suite.createTask(suite.doctorA, time.Now().Add(48*time.Hour))

	_, err := suite.service.RejectTask(suite.db, suite.doctorA, first.ID, "overbooked")
	suite.Require().NoError(err)

	tasks, err := suite.service.ListTasks(suite.db, suite.doctorA, services.TaskFilter{}, services.TaskSort{})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 1)
	suite.Equal(second.ID, tasks[0].ID)

	// The rejected task still exists in the store and stays visible to admins.
	all, err := suite.service.ListTasks(suite.db, suite.admin, services.TaskFilter{}, services.TaskSort{})
	suite.Require().NoError(err)
	suite.Len(all, 2)
}

func (suite *TaskServiceTestSuite) TestListTasks_DoctorScopeForced() {
	mine := suite.createTask(suite.doctorA, time.Now().Add(24*time.Hour))
	suite.createTask(suite.doctorB, time.Now().Add(24*time.Hour))

	// A doctor asking for another doctor's tasks still only sees their own.
	tasks, err := suite.service.ListTasks(suite.db, suite.doctorA,
		services.TaskFilter{AssignedTo: suite.doctorB.ID}, services.TaskSort{})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 1)
	suite.Equal(mine.ID, tasks[0].ID)
}

func (suite *TaskServiceTestSuite) TestListTasks_DueDateRangeInclusive() {
	day := func(d int) time.Time { return time.Date(2026, 9, d, 0, 0, 0, 0, time.UTC) }
	suite.createTask(suite.doctorA, day(1))
	inRangeLow := suite.createTask(suite.doctorA, day(10))
	inRangeHigh := suite.createTask(suite.doctorA, day(20))
	suite.createTask(suite.doctorA, day(28))

	start, end := day(10), day(20)
	tasks, err := suite.service.ListTasks(suite.db, suite.admin,
		services.TaskFilter{DueDateStart: &start, DueDateEnd: &end},
		services.TaskSort{Field: "due_date", Order: "asc"})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 2)
	suite.Equal(inRangeLow.ID, tasks[0].ID)
	suite.Equal(inRangeHigh.ID, tasks[1].ID)
}

func (suite *TaskServiceTestSuite) TestListTasks_SortOverride() {
	suite.createTask(suite.doctorA, time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC))
	earliest := suite.createTask(suite.doctorA, time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC))

	tasks, err := suite.service.ListTasks(suite.db, suite.admin,
		services.TaskFilter{}, services.TaskSort{Field: "due_date", Order: "asc"})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 2)
	suite.Equal(earliest.ID, tasks[0].ID)
}

func (suite *TaskServiceTestSuite) TestListTasks_ResolvesAssigneeWithoutPassword() {
	suite.createTask(suite.doctorA, time.Now().Add(24*time.Hour))

	tasks, err := suite.service.ListTasks(suite.db, suite.admin, services.TaskFilter{}, services.TaskSort{})
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 1)
	suite.Require().NotNil(tasks[0].Assignee)
	suite.Equal(suite.doctorA.ID, tasks[0].Assignee.ID)
}

func (suite *TaskServiceTestSuite) TestGetTaskByID_OwnershipAndNotFound() {
	task := suite.createTask(suite.doctorA, time.Now().Add(24*time.Hour))

	got, err := suite.service.GetTaskByID(suite.db, suite.doctorA, task.ID)
	suite.Require().NoError(err)
	suite.Equal(task.ID, got.ID)

	_, err = suite.service.GetTaskByID(suite.db, suite.doctorB, task.ID)
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))

	_, err = suite.service.GetTaskByID(suite.db, suite.admin, uuid.Must(uuid.NewV4()))
	suite.Equal(apperr.KindNotFound, apperr.KindOf(err))
}

func (suite *TaskServiceTestSuite) TestUpdateTask_DoctorStatusOnly() {
	task := suite.createTask(suite.doctorA, time.Now().Add(24*time.Hour))

	status := models.StatusInProgress
	updated, err := suite.service.UpdateTask(suite.db, suite.doctorA, task.ID,
		services.UpdateTaskInput{Status: &status})
	suite.Require().NoError(err)
	suite.Equal(models.StatusInProgress, updated.Status)

	reassign := suite.doctorB.ID
	_, err = suite.service.UpdateTask(suite.db, suite.doctorA, task.ID,
		services.UpdateTaskInput{Status: &status, AssignedTo: &reassign})
	suite.Require().Error(err)
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))
	suite.Contains(err.Error(), "assignedTo")
}

func (suite *TaskServiceTestSuite) TestUpdateTask_DoctorCannotTouchOthersTask() {
	task := suite.createTask(suite.doctorA, time.Now().Add(24*time.Hour))

	status := models.StatusCompleted
	_, err := suite.service.UpdateTask(suite.db, suite.doctorB, task.ID,
		services.UpdateTaskInput{Status: &status})
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))
}

func (suite *TaskServiceTestSuite) TestUpdateTask_AdminFullAccess() {
	task := suite.createTask(suite.doctorA, time.Now().Add(24*time.Hour))

	title := "Rescheduled follow-up"
	due := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	reassign := suite.doctorB.ID
	updated, err := suite.service.UpdateTask(suite.db, suite.admin, task.ID, services.UpdateTaskInput{
		Title:      &title,
		DueDate:    &due,
		AssignedTo: &reassign,
	})
	suite.Require().NoError(err)
	suite.Equal(title, updated.Title)
	suite.True(updated.DueDate.Equal(due))
	suite.Equal(suite.doctorB.ID, updated.AssignedTo)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_AssignmentStatusUnreachable() {
	task := suite.createTask(suite.doctorA, time.Now().Add(24*time.Hour))

	_, err := suite.service.UpdateTask(suite.db, suite.admin, task.ID,
		services.UpdateTaskInput{Extra: []string{"assignmentStatus"}})
	suite.Require().Error(err)
	suite.Equal(apperr.KindValidation, apperr.KindOf(err))
	suite.Contains(err.Error(), "assignmentStatus")
}

func (suite *TaskServiceTestSuite) TestDeleteTask_AdminOnly() {
	task := suite.createTask(suite.doctorA, time.Now().Add(24*time.Hour))

	err := suite.service.DeleteTask(suite.db, suite.doctorA, task.ID)
	suite.Equal(apperr.KindForbidden, apperr.KindOf(err))

	suite.Require().NoError(suite.service.DeleteTask(suite.db, suite.admin, task.ID))

	_, err = suite.service.GetTaskByID(suite.db, suite.admin, task.ID)
	suite.Equal(apperr.KindNotFound, apperr.KindOf(err))
}

func (suite *TaskServiceTestSuite) TestLifecycleRecordsAuditTrail() {
	task := suite.createTask(suite.doctorA, time.Now().Add(24*time.Hour))
	_, err := suite.service.AcceptTask(suite.db, suite.doctorA, task.ID)
	suite.Require().NoError(err)

	var entries []models.AuditLog
	suite.Require().NoError(suite.db.Where("task_id = ?", task.ID).Find(&entries).Error)
	suite.Require().Len(entries, 2)

	actions := []string{entries[0].Action, entries[1].Action}
	suite.ElementsMatch([]string{"task_created", "task_accepted"}, actions)
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
