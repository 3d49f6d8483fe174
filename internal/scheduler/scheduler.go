package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const jobTimeout = time.Minute

// UsageResetter clears the usage counters of all keys.
type UsageResetter interface {
	ResetAllAPIKeyUsage(ctx context.Context) error
}

type Scheduler struct {
	store  UsageResetter
	spec   string
	c      *cron.Cron
	logger *slog.Logger
}

// NewScheduler creates a scheduler that resets key usage on the given cron spec.
func NewScheduler(store UsageResetter, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		spec:   spec,
		c:      cron.New(),
		logger: logger.With("component", "scheduler"),
	}
}

// Start registers the usage reset job and starts the cron runner.
func (s *Scheduler) Start() error {
	if _, err := s.c.AddFunc(s.spec, s.resetUsage); err != nil {
		return fmt.Errorf("error scheduling usage reset job %q: %w", s.spec, err)
	}
	s.c.Start()
	s.logger.Info("Scheduler started", "usage_reset_spec", s.spec)
	return nil
}

// Stop stops the cron runner and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

func (s *Scheduler) resetUsage() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.logger.Info("Running scheduled job: resetting all API key usage counts")
	if err := s.store.ResetAllAPIKeyUsage(ctx); err != nil {
		s.logger.Error("Error resetting API key usage", "error", err)
	}
}
