// Package workflow drives the gap and task state machines. Every operation
// takes the acting user explicitly; nothing is read from ambient session
// state.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"aegis-grc/core/compliance"
	"aegis-grc/core/rbac"
	"aegis-grc/core/store"
	"aegis-grc/core/utils"
)

const (
	TaskPending                  = "Pending"
	TaskCompletedPendingApproval = "Completed (Pending Approval)"
	TaskApproved                 = "Approved"

	GapClosed = "Closed"
)

// Actor identifies who is performing a workflow operation.
type Actor = rbac.Actor

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

var ErrForbidden = rbac.ErrForbidden

type Service struct {
	docs     store.DocsStore
	gaps     store.GapsStore
	tasks    store.TasksStore
	risks    store.RisksStore
	checker  *compliance.Checker
	enforcer *rbac.Enforcer
	audit    store.AuditStore
	logger   *utils.Logger
}

func NewService(docs store.DocsStore, gaps store.GapsStore, tasks store.TasksStore, risks store.RisksStore,
	checker *compliance.Checker, enforcer *rbac.Enforcer, audit store.AuditStore, logger *utils.Logger) *Service {
	return &Service{docs: docs, gaps: gaps, tasks: tasks, risks: risks, checker: checker, enforcer: enforcer, audit: audit, logger: logger}
}

// RunComplianceCheck marks the gap as checking, runs the checker, and leaves
// either the computed verdict or the Error status behind. A document that
// does not exist fails before any gap is written.
func (s *Service) RunComplianceCheck(ctx context.Context, docID int64, actor Actor) (*store.Gap, error) {
	doc, err := s.docs.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	checking := compliance.StatusChecking
	if _, err := s.gaps.PatchGapByDocID(ctx, docID, store.GapPatch{DocName: &doc.Name, Status: &checking}); err != nil {
		return nil, err
	}
	gap, err := s.checker.Check(ctx, docID)
	if err != nil {
		var ee *compliance.ExtractionError
		if errors.As(err, &ee) {
			status := compliance.StatusError
			if _, patchErr := s.gaps.PatchGapByDocID(ctx, docID, store.GapPatch{Status: &status}); patchErr != nil {
				s.logger.Errorf("mark gap error doc=%d: %v", docID, patchErr)
			}
		}
		return nil, err
	}
	s.audit.Append(ctx, actor.Name, "gap.check", fmt.Sprintf("doc=%d score=%d", docID, gap.Score))
	return gap, nil
}

// ApproveGap closes the gap unconditionally, bypassing the checker. Gated to
// roles allowed to approve.
func (s *Service) ApproveGap(ctx context.Context, docID int64, actor Actor) (*store.Gap, error) {
	if !s.enforcer.Allow(actor.Role, "gap", "approve") {
		return nil, ErrForbidden
	}
	status := GapClosed
	gap, err := s.gaps.PatchGapByDocID(ctx, docID, store.GapPatch{Status: &status})
	if err != nil {
		return nil, err
	}
	s.audit.Append(ctx, actor.Name, "gap.approve", fmt.Sprintf("doc=%d", docID))
	return gap, nil
}

// RejectGap sets the gap to Rejected unconditionally.
func (s *Service) RejectGap(ctx context.Context, docID int64, actor Actor) (*store.Gap, error) {
	if !s.enforcer.Allow(actor.Role, "gap", "reject") {
		return nil, ErrForbidden
	}
	status := compliance.StatusRejected
	gap, err := s.gaps.PatchGapByDocID(ctx, docID, store.GapPatch{Status: &status})
	if err != nil {
		return nil, err
	}
	s.audit.Append(ctx, actor.Name, "gap.reject", fmt.Sprintf("doc=%d", docID))
	return gap, nil
}

// UpsertGapStatus applies a partial gap update keyed by doc id, creating the
// record when absent.
func (s *Service) UpsertGapStatus(ctx context.Context, docID int64, patch store.GapPatch, actor Actor) (*store.Gap, error) {
	gap, err := s.gaps.PatchGapByDocID(ctx, docID, patch)
	if err != nil {
		return nil, err
	}
	s.audit.Append(ctx, actor.Name, "gap.update", fmt.Sprintf("doc=%d status=%s", docID, gap.Status))
	return gap, nil
}

func (s *Service) ListGaps(ctx context.Context) ([]store.Gap, error) {
	return s.gaps.ListGaps(ctx)
}

func (s *Service) GetGapByDocID(ctx context.Context, docID int64) (*store.Gap, error) {
	return s.gaps.GetGapByDocID(ctx, docID)
}

func (s *Service) DeleteGap(ctx context.Context, id int64, actor Actor) error {
	if err := s.gaps.DeleteGap(ctx, id); err != nil {
		return err
	}
	s.audit.Append(ctx, actor.Name, "gap.delete", fmt.Sprintf("gap=%d", id))
	return nil
}

// CreateTask validates the date window against the parent risk before any
// write. The error names the allowed window.
func (s *Service) CreateTask(ctx context.Context, t *store.Task, actor Actor) (*store.Task, error) {
	if t.RiskID == "" {
		return nil, &ValidationError{Reason: "riskId is required"}
	}
	if t.Department == "" {
		return nil, &ValidationError{Reason: "department is required"}
	}
	if t.StartDate == "" || t.EndDate == "" {
		return nil, &ValidationError{Reason: "startDate and endDate are required"}
	}
	risk, err := s.risks.GetRisk(ctx, t.RiskID)
	if err != nil {
		return nil, err
	}
	if err := validateTaskWindow(t, risk); err != nil {
		return nil, err
	}
	t.Status = TaskPending
	if err := s.tasks.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	s.audit.Append(ctx, actor.Name, "task.create", fmt.Sprintf("risk=%s task=%s", t.RiskID, t.TaskID))
	return t, nil
}

// ISO dates compare correctly as strings, so the window check stays in the
// date domain the register stores.
func validateTaskWindow(t *store.Task, risk *store.Risk) error {
	if risk.StartDate != "" && t.StartDate < risk.StartDate || risk.EndDate != "" && t.EndDate > risk.EndDate {
		return &ValidationError{
			Reason: fmt.Sprintf("task dates must fall within the risk window %s to %s", risk.StartDate, risk.EndDate),
		}
	}
	return nil
}

// CompleteTask advances the task state machine. A risk manager completing a
// Pending task jumps straight to Approved; anyone else lands on the
// intermediate state, which only a risk manager can advance.
func (s *Service) CompleteTask(ctx context.Context, riskID, taskID string, actor Actor) (*store.Task, error) {
	t, err := s.resolveTask(ctx, riskID, taskID)
	if err != nil {
		return nil, err
	}
	var next string
	switch t.Status {
	case TaskPending:
		if !s.enforcer.Allow(actor.Role, "task", "complete") {
			return nil, ErrForbidden
		}
		if s.enforcer.Allow(actor.Role, "task", "approve") {
			next = TaskApproved
		} else {
			next = TaskCompletedPendingApproval
		}
	case TaskCompletedPendingApproval:
		if !s.enforcer.Allow(actor.Role, "task", "approve") {
			return nil, ErrForbidden
		}
		next = TaskApproved
	case TaskApproved:
		return nil, &ValidationError{Reason: "task is already approved"}
	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown task status %q", t.Status)}
	}
	updated, err := s.tasks.SetTaskStatus(ctx, t.RiskID, t.TaskID, next)
	if err != nil {
		return nil, err
	}
	s.audit.Append(ctx, actor.Name, "task.complete", fmt.Sprintf("risk=%s task=%s status=%s", t.RiskID, t.TaskID, next))
	return updated, nil
}

func (s *Service) UpdateTask(ctx context.Context, riskID, taskID string, patch store.TaskPatch, actor Actor) (*store.Task, error) {
	t, err := s.resolveTask(ctx, riskID, taskID)
	if err != nil {
		return nil, err
	}
	if patch.StartDate != nil || patch.EndDate != nil {
		candidate := *t
		if patch.StartDate != nil {
			candidate.StartDate = *patch.StartDate
		}
		if patch.EndDate != nil {
			candidate.EndDate = *patch.EndDate
		}
		risk, err := s.risks.GetRisk(ctx, t.RiskID)
		if err != nil {
			return nil, err
		}
		if err := validateTaskWindow(&candidate, risk); err != nil {
			return nil, err
		}
	}
	updated, err := s.tasks.UpdateTask(ctx, t.RiskID, t.TaskID, patch)
	if err != nil {
		return nil, err
	}
	s.audit.Append(ctx, actor.Name, "task.update", fmt.Sprintf("risk=%s task=%s", t.RiskID, t.TaskID))
	return updated, nil
}

func (s *Service) DeleteTask(ctx context.Context, riskID, taskID string, actor Actor) error {
	t, err := s.resolveTask(ctx, riskID, taskID)
	if err != nil {
		return err
	}
	if err := s.tasks.DeleteTask(ctx, t.RiskID, t.TaskID); err != nil {
		return err
	}
	s.audit.Append(ctx, actor.Name, "task.delete", fmt.Sprintf("risk=%s task=%s", t.RiskID, t.TaskID))
	return nil
}

func (s *Service) ListTasks(ctx context.Context, riskID string) ([]store.Task, error) {
	return s.tasks.ListTasks(ctx, riskID)
}

// resolveTask finds a task by id. Task ids repeat across risks, so when no
// risk id narrows the lookup an ambiguous match is rejected rather than
// guessed at.
// GetTask fetches a single task. Task ids repeat across risks, so an empty
// riskID is resolved the same way CompleteTask resolves it.
func (s *Service) GetTask(ctx context.Context, riskID, taskID string) (*store.Task, error) {
	return s.resolveTask(ctx, riskID, taskID)
}

func (s *Service) resolveTask(ctx context.Context, riskID, taskID string) (*store.Task, error) {
	if riskID != "" {
		return s.tasks.GetTask(ctx, riskID, taskID)
	}
	matches, err := s.tasks.FindTasks(ctx, taskID)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, store.ErrNotFound
	case 1:
		return &matches[0], nil
	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("task id %s exists under %d risks, supply riskId", taskID, len(matches))}
	}
}
