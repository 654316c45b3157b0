package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/ml-job-radar/internal/logger"
)

// Runner is what the scheduler triggers on every tick.
type Runner interface {
	Run(ctx context.Context) (*Report, error)
}

// Scheduler repeats a run on a fixed interval, one run at a time.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string
	logger *zap.Logger

	running sync.Mutex
	// AfterRun is called with the outcome of every completed run.
	AfterRun func(*Report, error)
}

func NewScheduler(runner Runner, every time.Duration, log *zap.Logger) (*Scheduler, error) {
	if every < time.Second {
		return nil, fmt.Errorf("schedule interval %s is shorter than a second", every)
	}
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		spec:   fmt.Sprintf("@every %s", every),
		logger: logger.OrNop(log),
	}, nil
}

// Run triggers one run immediately, then on every tick until ctx is done.
// It returns after the in-flight run, if any, has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))

	s.tick(ctx)

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.running.TryLock() {
		s.logger.Warn("previous run still in progress, skipping tick")
		return
	}
	defer s.running.Unlock()

	report, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Warn("scheduled run aborted", zap.Error(err))
	}
	if s.AfterRun != nil {
		s.AfterRun(report, err)
	}
}
