// Package soa keeps controls and their Statement of Applicability entries
// consistent: every control is created with its paired entry, and deletes
// cascade across the two relations.
package soa

import (
	"context"
	"fmt"

	"aegis-grc/core/rbac"
	"aegis-grc/core/store"
	"aegis-grc/core/utils"
)

// DocumentMapping names the evidentiary documents each control category is
// expected to reference. Unknown categories fall back to ["N/A"].
var DocumentMapping = map[string][]string{
	"Organizational": {"Information Security Policy", "Roles and Responsibilities Matrix"},
	"People":         {"Acceptable Use Policy", "Security Awareness Training Records"},
	"Physical":       {"Physical Access Policy", "Visitor Log Procedure"},
	"Technological":  {"Access Control Policy", "Cryptography Policy", "Backup Procedure"},
	"Compliance":     {"Legal and Regulatory Register", "Internal Audit Reports"},
}

func DocumentRefsFor(category string) []string {
	if refs, ok := DocumentMapping[category]; ok {
		out := make([]string, len(refs))
		copy(out, refs)
		return out
	}
	return []string{"N/A"}
}

type ControlDeleteResult struct {
	DeletedControl     *store.Control `json:"deletedControl"`
	DeletedSoaEntryIDs []int64        `json:"deletedSoaEntryIds"`
}

type SoaDeleteResult struct {
	DeletedSoa        *store.SoaEntry `json:"deletedSoa"`
	DeletedControlIDs []int64         `json:"deletedControlIds"`
}

type Service struct {
	controls store.ControlsStore
	enforcer *rbac.Enforcer
	audit    store.AuditStore
	logger   *utils.Logger
}

func NewService(controls store.ControlsStore, enforcer *rbac.Enforcer, audit store.AuditStore, logger *utils.Logger) *Service {
	return &Service{controls: controls, enforcer: enforcer, audit: audit, logger: logger}
}

// CreateControl inserts the control and its paired SoA entry in one
// transaction, so no reader ever sees a control without its entry.
func (s *Service) CreateControl(ctx context.Context, category, description string, actor rbac.Actor) (*store.Control, *store.SoaEntry, error) {
	if !s.enforcer.Allow(actor.Role, "control", "create") {
		return nil, nil, rbac.ErrForbidden
	}
	control := &store.Control{Category: category, Description: description}
	entry := &store.SoaEntry{
		Category:    category,
		Description: description,
		Status:      "Planned",
		DocumentRef: DocumentRefsFor(category),
	}
	if err := s.controls.CreateControlWithSoA(ctx, control, entry); err != nil {
		return nil, nil, err
	}
	s.audit.Append(ctx, actor.Name, "control.create", fmt.Sprintf("control=%d category=%s", control.ID, category))
	s.logger.Printf("control %d created with soa entry %d", control.ID, entry.ID)
	return control, entry, nil
}

func (s *Service) ListControls(ctx context.Context) ([]store.Control, error) {
	return s.controls.ListControls(ctx)
}

// DeleteControl removes the control and every SoA entry referencing it.
// Gated to roles allowed to delete controls.
func (s *Service) DeleteControl(ctx context.Context, id int64, actor rbac.Actor) (*ControlDeleteResult, error) {
	if !s.enforcer.Allow(actor.Role, "control", "delete") {
		return nil, rbac.ErrForbidden
	}
	control, entryIDs, err := s.controls.DeleteControlCascade(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit.Append(ctx, actor.Name, "control.delete", fmt.Sprintf("control=%d soa_entries=%d", id, len(entryIDs)))
	return &ControlDeleteResult{DeletedControl: control, DeletedSoaEntryIDs: entryIDs}, nil
}

func (s *Service) CreateSoaEntry(ctx context.Context, entry *store.SoaEntry, actor rbac.Actor) (*store.SoaEntry, error) {
	if entry.DocumentRef == nil {
		entry.DocumentRef = DocumentRefsFor(entry.Category)
	}
	if err := s.controls.CreateSoaEntry(ctx, entry); err != nil {
		return nil, err
	}
	s.audit.Append(ctx, actor.Name, "soa.create", fmt.Sprintf("entry=%d control=%d", entry.ID, entry.ControlID))
	return entry, nil
}

func (s *Service) GetSoaEntry(ctx context.Context, id int64) (*store.SoaEntry, error) {
	return s.controls.GetSoaEntry(ctx, id)
}

func (s *Service) ListSoaEntries(ctx context.Context) ([]store.SoaEntry, error) {
	return s.controls.ListSoaEntries(ctx)
}

func (s *Service) UpdateSoaEntry(ctx context.Context, id int64, patch store.SoaEntryPatch, actor rbac.Actor) (*store.SoaEntry, error) {
	entry, err := s.controls.UpdateSoaEntry(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.audit.Append(ctx, actor.Name, "soa.update", fmt.Sprintf("entry=%d", id))
	return entry, nil
}

// DeleteSoaEntry removes the entry and cascades to the controls it lists in
// controlIds. Note the asymmetry with DeleteControl: that one follows the
// control_id reference, this one follows the entry's own aggregation list.
func (s *Service) DeleteSoaEntry(ctx context.Context, id int64, actor rbac.Actor) (*SoaDeleteResult, error) {
	if !s.enforcer.Allow(actor.Role, "soa", "delete") {
		return nil, rbac.ErrForbidden
	}
	entry, controlIDs, err := s.controls.DeleteSoaEntryCascade(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit.Append(ctx, actor.Name, "soa.delete", fmt.Sprintf("entry=%d controls=%d", id, len(controlIDs)))
	return &SoaDeleteResult{DeletedSoa: entry, DeletedControlIDs: controlIDs}, nil
}
