package compliance

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"aegis-grc/config"
	"aegis-grc/core/utils"
)

// Scheduler re-runs the compliance checker over the whole document set on a
// cron schedule. Disabled by default: the lifecycle stays externally
// triggered unless an installation opts in.
type Scheduler struct {
	cfg     config.ComplianceConfig
	checker *Checker
	logger  *utils.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func NewScheduler(cfg config.ComplianceConfig, checker *Checker, logger *utils.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, checker: checker, logger: logger}
}

func (s *Scheduler) StartWithContext(ctx context.Context) error {
	if s == nil || s.checker == nil || !s.cfg.RecheckEnabled {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.RecheckCron, func() {
		if err := s.checker.CheckAll(ctx); err != nil {
			s.logger.Errorf("scheduled recheck: %v", err)
		}
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.running = true
	s.logger.Printf("compliance recheck scheduled: %s", s.cfg.RecheckCron)
	return nil
}

func (s *Scheduler) StopWithContext(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()
	if !wasRunning || c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
