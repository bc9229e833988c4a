package yascheduler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/YaCodeDev/YaTgPoster/yaerrors"
	"github.com/YaCodeDev/YaTgPoster/yalogger"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the dispatcher every minute.
const DefaultSchedule = "@every 1m"

// Runner is one dispatch pass.
type Runner interface {
	RunOnce(ctx context.Context, now time.Time) (Report, yaerrors.Error)
}

// Scheduler runs a Runner on a cron schedule. A tick that fires while the
// previous pass is still running is skipped.
type Scheduler struct {
	mu       sync.Mutex
	running  sync.Mutex
	runner   Runner
	schedule string
	cron     *cron.Cron
	cancel   context.CancelFunc
	log      yalogger.Logger
}

// NewScheduler creates a stopped scheduler. An empty schedule means DefaultSchedule.
//
// Example usage:
//
//	scheduler := yascheduler.NewScheduler(dispatcher, "*/5 * * * *", log)
//	if err := scheduler.Start(); err != nil { ... }
//	defer scheduler.Stop(ctx)
func NewScheduler(runner Runner, schedule string, log yalogger.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	return &Scheduler{
		runner:   runner,
		schedule: schedule,
		log:      yalogger.OrDefault(log),
	}
}

// Start registers the job and starts ticking. It fails on an invalid schedule.
func (s *Scheduler) Start() yaerrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return yaerrors.FromError(http.StatusConflict, ErrSchedulerStarted, "failed to start scheduler")
	}

	ctx, cancel := context.WithCancel(context.Background())

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))

	if _, err := c.AddFunc(s.schedule, func() { s.tick(ctx) }); err != nil {
		cancel()

		return yaerrors.FromError(
			http.StatusBadRequest,
			ErrInvalidSchedule,
			"failed to start scheduler: "+s.schedule+": "+err.Error(),
		)
	}

	s.cron, s.cancel = c, cancel
	c.Start()

	s.log.Infof("Scheduler started with schedule %s", s.schedule)

	return nil
}

// Stop cancels the running pass and waits for it to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) yaerrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}

	s.cancel()

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		return yaerrors.FromError(http.StatusRequestTimeout, ctx.Err(), "failed to stop scheduler")
	}

	s.cron, s.cancel = nil, nil

	s.log.Info("Scheduler stopped")

	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.TryLock() {
		s.log.Warn("Previous dispatch is still running, skipping tick")

		return
	}
	defer s.running.Unlock()

	if _, err := s.runner.RunOnce(ctx, time.Now()); err != nil {
		s.log.Errorf("Dispatch failed: %v", err)
	}
}
