package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"clinic-tracker/backend/internal/config"
	"clinic-tracker/backend/internal/models"
	"clinic-tracker/backend/internal/router"
)

type IntegrationTestSuite struct {
	suite.Suite
	router *gin.Engine

	adminToken  string
	doctorToken string
	doctorID    string
}

func (suite *IntegrationTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)
	suite.Require().NoError(db.AutoMigrate(
		&models.User{}, &models.Task{}, &models.Token{}, &models.AuditLog{}))

	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "development"},
		Auth: config.AuthConfig{
			JWTSecret:       "integration-secret",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
			BCryptCost:      4,
		},
		RateLimit: config.RateLimitConfig{Enabled: false},
	}

	gin.SetMode(gin.TestMode)
	suite.router = router.SetupRouter(db, cfg)

	_, adminToken := suite.register("Admin", "admin@clinic.test", models.RoleAdmin)
	suite.adminToken = adminToken

	doctorID, doctorToken := suite.register("Dr. Adams", "adams@clinic.test", models.RoleDoctor)
	suite.doctorID = doctorID
	suite.doctorToken = doctorToken
}

func (suite *IntegrationTestSuite) register(name, email, role string) (id, token string) {
	w := suite.request("POST", "/api/users", "", gin.H{
		"name":     name,
		"email":    email,
		"password": "secret-password",
		"role":     role,
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID, resp.Token
}

func (suite *IntegrationTestSuite) request(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *IntegrationTestSuite) createTask(title string) string {
	w := suite.request("POST", "/api/tasks", suite.adminToken, gin.H{
		"title":       title,
		"description": "integration task",
		"dueDate":     time.Now().Add(7 * 24 * time.Hour).UTC().Format(time.RFC3339),
		"assignedTo":  suite.doctorID,
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var task struct {
		ID string `json:"id"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &task))
	return task.ID
}

func (suite *IntegrationTestSuite) TestTasksRequireAuthentication() {
	w := suite.request("GET", "/api/tasks", "", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *IntegrationTestSuite) TestDoctorCannotCreateTasks() {
	w := suite.request("POST", "/api/tasks", suite.doctorToken, gin.H{
		"title": "nope",
	})
	suite.Equal(http.StatusForbidden, w.Code)
}

func (suite *IntegrationTestSuite) TestAssignmentHandshake() {
	taskID := suite.createTask("Review labs")

	// The new task shows up in the doctor's list awaiting acceptance.
	w := suite.request("GET", "/api/tasks", suite.doctorToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	var tasks []map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &tasks))
	suite.Require().Len(tasks, 1)
	suite.Equal("pending-acceptance", tasks[0]["assignment_status"])

	w = suite.request("PUT", "/api/tasks/"+taskID+"/accept", suite.doctorToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var accepted map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &accepted))
	suite.Equal("accepted", accepted["assignment_status"])

	// Accept is one-shot.
	w = suite.request("PUT", "/api/tasks/"+taskID+"/accept", suite.doctorToken, nil)
	suite.Equal(http.StatusForbidden, w.Code)
}

func (suite *IntegrationTestSuite) TestRejectedTaskLeavesDoctorQueue() {
	taskID := suite.createTask("Chart audit")

	w := suite.request("PUT", "/api/tasks/"+taskID+"/reject", suite.doctorToken,
		gin.H{"rejectionReason": "double-booked"})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = suite.request("GET", "/api/tasks", suite.doctorToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	var tasks []map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &tasks))
	suite.Empty(tasks)

	// Admin still sees it, with the reason recorded.
	w = suite.request("GET", "/api/tasks", suite.adminToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &tasks))
	suite.Require().Len(tasks, 1)
	suite.Equal("rejected", tasks[0]["assignment_status"])
	suite.Equal("double-booked", tasks[0]["rejection_reason"])
}

func (suite *IntegrationTestSuite) TestDoctorUpdateLimitedToStatus() {
	taskID := suite.createTask("Follow-up call")

	w := suite.request("PUT", "/api/tasks/"+taskID, suite.doctorToken, gin.H{
		"status": "in-progress",
		"title":  "renamed",
	})
	suite.Equal(http.StatusForbidden, w.Code)
	suite.Contains(w.Body.String(), "title")

	w = suite.request("PUT", "/api/tasks/"+taskID, suite.doctorToken, gin.H{
		"status": "in-progress",
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var task map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &task))
	suite.Equal("in-progress", task["status"])
}

func (suite *IntegrationTestSuite) TestDateChangeWorkflow() {
	taskID := suite.createTask("Prescription review")

	requested := time.Now().Add(14 * 24 * time.Hour).UTC().Truncate(time.Second)
	w := suite.request("PUT", "/api/tasks/"+taskID+"/request-date-change", suite.doctorToken, gin.H{
		"requestedDueDate": requested.Format(time.RFC3339),
		"requestReason":    "need more time",
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	// Only admins review.
	w = suite.request("PUT", "/api/tasks/"+taskID+"/review-date-change", suite.doctorToken, gin.H{
		"approvalStatus": "approved",
	})
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.request("PUT", "/api/tasks/"+taskID+"/review-date-change", suite.adminToken, gin.H{
		"approvalStatus": "approved",
		"adminReason":    "fine",
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Task struct {
			DueDate time.Time `json:"due_date"`
		} `json:"task"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	suite.True(resp.Task.DueDate.Equal(requested), "due date should move to the requested date")
}

func (suite *IntegrationTestSuite) TestRefreshTokenRotation() {
	w := suite.request("POST", "/api/users/login", "", gin.H{
		"email":    "adams@clinic.test",
		"password": "secret-password",
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var login struct {
		RefreshToken string `json:"refresh_token"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &login))

	w = suite.request("POST", "/api/users/refresh", "", gin.H{
		"refresh_token": login.RefreshToken,
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	// The consumed refresh token no longer works.
	w = suite.request("POST", "/api/users/refresh", "", gin.H{
		"refresh_token": login.RefreshToken,
	})
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *IntegrationTestSuite) TestHealthEndpoints() {
	for _, path := range []string{"/health", "/live", "/ready"} {
		w := suite.request("GET", path, "", nil)
		suite.Equal(http.StatusOK, w.Code, path)
	}
}

func TestIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}
