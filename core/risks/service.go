// Package risks owns the risk register: creation with derived scoring,
// template acceptance, and the per-department dashboard rollup.
package risks

import (
	"context"
	"fmt"

	"aegis-grc/core/rbac"
	"aegis-grc/core/scoring"
	"aegis-grc/core/store"
	"aegis-grc/core/utils"
)

// ValidationError reports a request rejected before any write.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

type DashboardStats struct {
	Total    int `json:"total"`
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
	Open     int `json:"open"`
	Closed   int `json:"closed"`
}

type Service struct {
	risks    store.RisksStore
	enforcer *rbac.Enforcer
	audit    store.AuditStore
	logger   *utils.Logger
}

func NewService(risks store.RisksStore, enforcer *rbac.Enforcer, audit store.AuditStore, logger *utils.Logger) *Service {
	return &Service{risks: risks, enforcer: enforcer, audit: audit, logger: logger}
}

// applyScoring derives the stored score fields from the raw ratings. The
// level bands are identical for initial and residual scores.
func applyScoring(r *store.Risk) {
	impact := scoring.ImpactFromCIA(r.Confidentiality, r.Integrity, r.Availability)
	r.RiskScore = scoring.RiskScore(impact, r.Probability)
	r.RiskLevel = string(scoring.Classify(r.RiskScore))
	if r.ImpactAfterTreatment > 0 || r.LikelihoodAfterTreatment > 0 {
		r.ResidualRiskScore = scoring.RiskScore(r.ImpactAfterTreatment, r.LikelihoodAfterTreatment)
		r.ResidualRiskLevel = string(scoring.Classify(r.ResidualRiskScore))
	}
}

// Create inserts the risk, allocating the next RR-<year>-NNN id when none is
// supplied, and derives score fields from the ratings. Gated to roles
// allowed to create risks.
func (s *Service) Create(ctx context.Context, r *store.Risk, actor rbac.Actor) (*store.Risk, error) {
	if !s.enforcer.Allow(actor.Role, "risk", "create") {
		return nil, rbac.ErrForbidden
	}
	applyScoring(r)
	if err := s.risks.CreateRisk(ctx, r); err != nil {
		return nil, err
	}
	s.audit.Append(ctx, actor.Name, "risk.create", fmt.Sprintf("risk=%s level=%s", r.RiskID, r.RiskLevel))
	s.logger.Printf("risk %s created, score %d (%s)", r.RiskID, r.RiskScore, r.RiskLevel)
	return r, nil
}

// Save upserts by risk id. A manual save without an id is rejected before
// any write.
func (s *Service) Save(ctx context.Context, r *store.Risk, actor rbac.Actor) (*store.Risk, error) {
	if r.RiskID == "" {
		return nil, &ValidationError{Reason: "riskId is required"}
	}
	applyScoring(r)
	if err := s.risks.SaveRisk(ctx, r); err != nil {
		return nil, err
	}
	s.audit.Append(ctx, actor.Name, "risk.save", fmt.Sprintf("risk=%s", r.RiskID))
	return r, nil
}

func (s *Service) Get(ctx context.Context, riskID string) (*store.Risk, error) {
	return s.risks.GetRisk(ctx, riskID)
}

func (s *Service) List(ctx context.Context, department string) ([]store.Risk, error) {
	return s.risks.ListRisks(ctx, department)
}

// Delete removes the risk. Tasks filed under it are retained as history.
func (s *Service) Delete(ctx context.Context, riskID string, actor rbac.Actor) error {
	if !s.enforcer.Allow(actor.Role, "risk", "delete") {
		return rbac.ErrForbidden
	}
	if err := s.risks.DeleteRisk(ctx, riskID); err != nil {
		return err
	}
	s.audit.Append(ctx, actor.Name, "risk.delete", fmt.Sprintf("risk=%s", riskID))
	return nil
}

func (s *Service) ListTemplates(ctx context.Context) ([]store.RiskTemplate, error) {
	return s.risks.ListTemplates(ctx)
}

func (s *Service) CreateTemplate(ctx context.Context, t *store.RiskTemplate, actor rbac.Actor) (*store.RiskTemplate, error) {
	if _, err := s.risks.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	s.audit.Append(ctx, actor.Name, "risk.template.create", fmt.Sprintf("template=%d", t.ID))
	return t, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, id int64, actor rbac.Actor) error {
	if err := s.risks.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	s.audit.Append(ctx, actor.Name, "risk.template.delete", fmt.Sprintf("template=%d", id))
	return nil
}

// AcceptTemplate copies a template into the live register under a freshly
// allocated id with status Active.
func (s *Service) AcceptTemplate(ctx context.Context, templateID int64, actor rbac.Actor) (*store.Risk, error) {
	t, err := s.risks.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	r := &store.Risk{
		Department:               t.Department,
		RiskType:                 t.RiskType,
		AssetType:                t.AssetType,
		Asset:                    t.Asset,
		RiskDescription:          t.RiskDescription,
		Vulnerability:            t.Vulnerability,
		Confidentiality:          t.Confidentiality,
		Integrity:                t.Integrity,
		Availability:             t.Availability,
		Probability:              t.Probability,
		TreatmentOption:          t.TreatmentOption,
		LikelihoodAfterTreatment: t.LikelihoodAfterTreatment,
		ImpactAfterTreatment:     t.ImpactAfterTreatment,
		ControlReference:         t.ControlReference,
		StartDate:                t.StartDate,
		EndDate:                  t.EndDate,
		NumberOfDays:             t.NumberOfDays,
		Status:                   "Active",
	}
	return s.Create(ctx, r, actor)
}

// Dashboard reduces one department's risks to level and status counts.
// Levels are re-derived from the stored ratings rather than trusting the
// persisted level field.
func (s *Service) Dashboard(ctx context.Context, department string) (*DashboardStats, error) {
	list, err := s.risks.ListRisks(ctx, department)
	if err != nil {
		return nil, err
	}
	stats := &DashboardStats{}
	for _, r := range list {
		stats.Total++
		impact := scoring.ImpactFromCIA(r.Confidentiality, r.Integrity, r.Availability)
		switch scoring.Classify(scoring.RiskScore(impact, r.Probability)) {
		case scoring.LevelLow:
			stats.Low++
		case scoring.LevelMedium:
			stats.Medium++
		case scoring.LevelHigh:
			stats.High++
		case scoring.LevelCritical:
			stats.Critical++
		}
		if r.Status == "Active" {
			stats.Open++
		} else {
			stats.Closed++
		}
	}
	return stats, nil
}
