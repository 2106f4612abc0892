package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultRunTimeout = 10 * time.Minute

// Task is one run of a scheduled job.
type Task func(ctx context.Context) error

type schedule struct {
	name       string
	interval   time.Duration
	timeout    time.Duration
	runOnStart bool
	task       Task
}

// ScheduleOption customises a registered job.
type ScheduleOption func(*schedule)

// WithRunTimeout bounds each run of the job.
func WithRunTimeout(timeout time.Duration) ScheduleOption {
	return func(s *schedule) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// RunOnStart triggers the first run immediately instead of after one interval.
func RunOnStart() ScheduleOption {
	return func(s *schedule) {
		s.runOnStart = true
	}
}

// Scheduler runs registered jobs on fixed intervals until its context is cancelled. A failed
// run is logged and the schedule continues.
type Scheduler struct {
	logger *zap.Logger
	mu     sync.Mutex
	jobs   []schedule
	wg     sync.WaitGroup
	start  sync.Once
}

// NewScheduler constructs an empty scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger}
}

// Every registers task to run every interval.
func (s *Scheduler) Every(name string, interval time.Duration, task Task, opts ...ScheduleOption) error {
	if task == nil {
		return errors.New("scheduler: task is required")
	}
	if interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}
	job := schedule{name: name, interval: interval, timeout: defaultRunTimeout, task: task}
	for _, opt := range opts {
		if opt != nil {
			opt(&job)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

// Start launches one goroutine per job. Later calls are no-ops.
func (s *Scheduler) Start(ctx context.Context) {
	s.start.Do(func() {
		s.mu.Lock()
		jobs := append([]schedule(nil), s.jobs...)
		s.mu.Unlock()
		for _, job := range jobs {
			s.wg.Add(1)
			go s.loop(ctx, job)
		}
	})
}

// Wait blocks until every job loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job schedule) {
	defer s.wg.Done()
	logger := s.logger.With(zap.String("job", job.name))

	if job.runOnStart {
		s.runOnce(ctx, job, logger)
	}
	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, job, logger)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job schedule, logger *zap.Logger) {
	if ctx.Err() != nil {
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, job.timeout)
	defer cancel()
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduled job panicked", zap.Any("panic", r))
		}
	}()
	if err := job.task(runCtx); err != nil {
		logger.Error("scheduled job failed", zap.Error(err), zap.Duration("duration", time.Since(started)))
		return
	}
	logger.Debug("scheduled job finished", zap.Duration("duration", time.Since(started)))
}

// SweeperTask adapts the sweeper to the scheduler.
func SweeperTask(sweeper *RetentionSweeper) Task {
	return func(ctx context.Context) error {
		_, err := sweeper.Run(ctx)
		return err
	}
}
