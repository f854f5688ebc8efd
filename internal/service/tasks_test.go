package service

import (
	"context"
	"testing"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	apperrors "github.com/spec-kit/field-service/pkg/util"
)

func TestCompleteTaskMarksCompletion(t *testing.T) {
	env := newTestEnv()
	env.addUser("tech-1", domain.RoleTechnician, true)
	env.addTicket("t-1", domain.TicketStatusInProgress)
	env.assign("t-1", "tech-1")
	env.addTask("task-1", "t-1", false)
	env.addTask("task-2", "t-1", false)

	task, err := env.engine.CompleteTask(context.Background(), "task-1", "tech-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !task.Completed {
		t.Error("task not marked completed")
	}
	if task.CompletedAt == nil || !task.CompletedAt.Equal(env.now) {
		t.Errorf("CompletedAt = %v, want %v", task.CompletedAt, env.now)
	}
	if task.CompletedBy == nil || *task.CompletedBy != "tech-1" {
		t.Errorf("CompletedBy = %v, want tech-1", task.CompletedBy)
	}
}

func TestCompleteTaskTwiceFails(t *testing.T) {
	env := newTestEnv()
	env.addUser("admin-1", domain.RoleAdmin, true)
	env.addTicket("t-1", domain.TicketStatusInProgress)
	env.addTask("task-1", "t-1", true)

	_, err := env.engine.CompleteTask(context.Background(), "task-1", "admin-1")
	if apperrors.CodeOf(err) != apperrors.CodeAlreadyCompleted {
		t.Fatalf("expected %s, got %v", apperrors.CodeAlreadyCompleted, err)
	}
}

func TestCompleteLastTaskAdvancesTicketToTesting(t *testing.T) {
	env := newTestEnv()
	env.addUser("tech-1", domain.RoleTechnician, true)
	env.addTicket("t-1", domain.TicketStatusInProgress)
	env.assign("t-1", "tech-1")
	env.addTask("task-1", "t-1", true)
	env.addTask("task-2", "t-1", false)

	if _, err := env.engine.CompleteTask(context.Background(), "task-2", "tech-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := env.tickets.GetByID(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != domain.TicketStatusTesting {
		t.Fatalf("Status = %s, want %s", stored.Status, domain.TicketStatusTesting)
	}

	// The task completion is recorded before the automatic transition.
	if len(env.audit.records) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(env.audit.records))
	}
	if env.audit.records[0].Action != domain.AuditTaskCompleted {
		t.Errorf("first audit action = %s, want %s", env.audit.records[0].Action, domain.AuditTaskCompleted)
	}
	if env.audit.records[1].Action != domain.AuditStatusChanged {
		t.Errorf("second audit action = %s, want %s", env.audit.records[1].Action, domain.AuditStatusChanged)
	}

	statusEvents := env.dispatcher.ofType(events.EventTicketStatusChanged)
	if len(statusEvents) != 1 {
		t.Fatalf("expected 1 status event, got %d", len(statusEvents))
	}
	payload := statusEvents[0].Payload.(events.TicketStatusChangedPayload)
	if payload.Notes != "all tasks completed" {
		t.Errorf("Notes = %q", payload.Notes)
	}
}

func TestCompleteTaskNoCascadeWhileTasksRemain(t *testing.T) {
	env := newTestEnv()
	env.addUser("admin-1", domain.RoleAdmin, true)
	env.addTicket("t-1", domain.TicketStatusInProgress)
	env.addTask("task-1", "t-1", false)
	env.addTask("task-2", "t-1", false)

	if _, err := env.engine.CompleteTask(context.Background(), "task-1", "admin-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := env.tickets.GetByID(context.Background(), "t-1")
	if stored.Status != domain.TicketStatusInProgress {
		t.Fatalf("Status = %s, want %s", stored.Status, domain.TicketStatusInProgress)
	}
}

func TestCompleteTaskNoCascadeOutsideInProgress(t *testing.T) {
	env := newTestEnv()
	env.addUser("admin-1", domain.RoleAdmin, true)
	env.addTicket("t-1", domain.TicketStatusWaitingForParts)
	env.addTask("task-1", "t-1", false)

	if _, err := env.engine.CompleteTask(context.Background(), "task-1", "admin-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := env.tickets.GetByID(context.Background(), "t-1")
	if stored.Status != domain.TicketStatusWaitingForParts {
		t.Fatalf("Status = %s, want %s", stored.Status, domain.TicketStatusWaitingForParts)
	}
}

func TestCompleteTaskForbiddenForUnassignedTechnician(t *testing.T) {
	env := newTestEnv()
	env.addUser("tech-1", domain.RoleTechnician, true)
	env.addTicket("t-1", domain.TicketStatusInProgress)
	env.addTask("task-1", "t-1", false)

	_, err := env.engine.CompleteTask(context.Background(), "task-1", "tech-1")
	if apperrors.CodeOf(err) != apperrors.CodeForbidden {
		t.Fatalf("expected %s, got %v", apperrors.CodeForbidden, err)
	}
}

func TestCompleteTaskOnClosedTicketFails(t *testing.T) {
	env := newTestEnv()
	env.addUser("admin-1", domain.RoleAdmin, true)
	env.addTicket("t-1", domain.TicketStatusCancelled)
	env.addTask("task-1", "t-1", false)

	_, err := env.engine.CompleteTask(context.Background(), "task-1", "admin-1")
	if apperrors.CodeOf(err) != apperrors.CodePreconditionFailed {
		t.Fatalf("expected %s, got %v", apperrors.CodePreconditionFailed, err)
	}
}

func TestAddTaskOnClosedTicketFails(t *testing.T) {
	env := newTestEnv()
	env.addUser("admin-1", domain.RoleAdmin, true)
	env.addTicket("t-1", domain.TicketStatusCompleted)

	_, err := env.engine.AddTask(context.Background(), "t-1", TaskInput{Description: "extra check"}, "admin-1")
	if apperrors.CodeOf(err) != apperrors.CodePreconditionFailed {
		t.Fatalf("expected %s, got %v", apperrors.CodePreconditionFailed, err)
	}
}

func TestAddTaskInheritsTicketPriority(t *testing.T) {
	env := newTestEnv()
	env.addUser("admin-1", domain.RoleAdmin, true)
	ticket := env.addTicket("t-1", domain.TicketStatusAccepted)
	env.tickets.tickets[ticket.ID].Priority = domain.TicketPriorityHigh

	task, err := env.engine.AddTask(context.Background(), "t-1", TaskInput{Description: "replace fuse"}, "admin-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Priority != domain.TicketPriorityHigh {
		t.Fatalf("Priority = %s, want %s", task.Priority, domain.TicketPriorityHigh)
	}
}

func TestDeleteCompletedTaskFails(t *testing.T) {
	env := newTestEnv()
	env.addUser("admin-1", domain.RoleAdmin, true)
	env.addTicket("t-1", domain.TicketStatusInProgress)
	env.addTask("task-1", "t-1", true)

	err := env.engine.DeleteTask(context.Background(), "task-1", "admin-1")
	if apperrors.CodeOf(err) != apperrors.CodePreconditionFailed {
		t.Fatalf("expected %s, got %v", apperrors.CodePreconditionFailed, err)
	}
}

func TestDeleteTaskRemovesIncompleteTask(t *testing.T) {
	env := newTestEnv()
	env.addUser("admin-1", domain.RoleAdmin, true)
	env.addTicket("t-1", domain.TicketStatusInProgress)
	env.addTask("task-1", "t-1", false)

	if err := env.engine.DeleteTask(context.Background(), "task-1", "admin-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.tasks.GetByID(context.Background(), "task-1"); err == nil {
		t.Fatal("task still present after delete")
	}
}
