package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"
)

func TestIsValidRole(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleDoctor, RoleStaff, RolePatient} {
		if !IsValidRole(role) {
			t.Errorf("Expected %q to be a valid role", role)
		}
	}
	for _, role := range []string{"", "superuser", "Admin", "nurse"} {
		if IsValidRole(role) {
			t.Errorf("Expected %q to be rejected", role)
		}
	}
}

func TestIsValidStatus(t *testing.T) {
	for _, status := range []string{StatusPending, StatusInProgress, StatusCompleted} {
		if !IsValidStatus(status) {
			t.Errorf("Expected %q to be a valid status", status)
		}
	}
	for _, status := range []string{"", "done", "Pending", "accepted"} {
		if IsValidStatus(status) {
			t.Errorf("Expected %q to be rejected", status)
		}
	}
}

func TestUser_PasswordNeverSerialized(t *testing.T) {
	user := User{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     "Dr. Adams",
		Email:    "adams@clinic.test",
		Password: "$2a$10$hash",
		Role:     RoleDoctor,
	}

	data, err := json.Marshal(user)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "$2a$10$hash") {
		t.Error("Password hash leaked into JSON output")
	}
}

func TestUser_Summary(t *testing.T) {
	user := User{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     "Dr. Adams",
		Email:    "adams@clinic.test",
		Password: "hash",
		Role:     RoleDoctor,
	}

	summary := user.Summary()
	if summary.ID != user.ID || summary.Name != user.Name || summary.Email != user.Email {
		t.Errorf("Summary() = %+v, want projection of %+v", summary, user)
	}
}

func TestTask_IsAssignedTo(t *testing.T) {
	doctorID := uuid.Must(uuid.NewV4())
	task := Task{AssignedTo: doctorID}

	if !task.IsAssignedTo(doctorID) {
		t.Error("Expected task to be assigned to its doctor")
	}
	if task.IsAssignedTo(uuid.Must(uuid.NewV4())) {
		t.Error("Expected other user not to match")
	}
}

func TestDateChangeRequest_IsPending(t *testing.T) {
	if (DateChangeRequest{}).IsPending() {
		t.Error("Empty request should not be pending")
	}
	if (DateChangeRequest{Status: DateChangeApproved}).IsPending() {
		t.Error("Approved request should not be pending")
	}
	if !(DateChangeRequest{Status: DateChangePending}).IsPending() {
		t.Error("Pending request should be pending")
	}
}

func TestTask_DateChangeRequestOmittedWhenEmpty(t *testing.T) {
	task := Task{
		ID:      uuid.Must(uuid.NewV4()),
		Title:   "Follow-up",
		DueDate: time.Now(),
	}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if string(decoded["date_change_request"]) != "{}" {
		t.Errorf("Expected empty date change request to serialize as {}, got %s",
			decoded["date_change_request"])
	}
}
