package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/jewel-store/internal/port"
)

type JobFunc func(ctx context.Context) error

type Job struct {
	Name     string
	Interval time.Duration
	Run      JobFunc
	// LockTTL bounds how long the distributed lock is held if this instance
	// dies mid-run. Defaults to Interval.
	LockTTL time.Duration

	running atomic.Bool
}

// Scheduler runs each job once at start and then on its interval. A run that
// would overlap a previous one is skipped. With a LockRepository configured,
// only one instance across the fleet runs a given job at a time.
type Scheduler struct {
	jobs   []*Job
	locks  port.LockRepository
	logger *zap.Logger
	wg     sync.WaitGroup
}

func New(locks port.LockRepository, logger *zap.Logger) *Scheduler {
	return &Scheduler{locks: locks, logger: logger}
}

func (s *Scheduler) Add(job *Job) {
	s.jobs = append(s.jobs, job)
}

// Start launches one goroutine per job. They stop when ctx is cancelled;
// Wait blocks until they have.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go func(job *Job) {
			defer s.wg.Done()
			s.loop(ctx, job)
		}(job)
	}
}

func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job *Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.trigger(ctx, job)
	for {
		select {
		case <-ticker.C:
			s.trigger(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

// trigger runs job in the background unless a previous run is still going.
func (s *Scheduler) trigger(ctx context.Context, job *Job) {
	if !job.running.CompareAndSwap(false, true) {
		s.logger.Warn("job still running, skipping tick", zap.String("job", job.Name))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer job.running.Store(false)
		s.RunOnce(ctx, job)
	}()
}

// RunOnce executes job a single time under the distributed lock, if any.
func (s *Scheduler) RunOnce(ctx context.Context, job *Job) {
	logger := s.logger.With(zap.String("job", job.Name))

	if s.locks != nil {
		ttl := job.LockTTL
		if ttl <= 0 {
			ttl = job.Interval
		}

		token, ok, err := s.locks.AcquireLock(ctx, job.Name, ttl)
		if err != nil {
			logger.Error("failed to acquire job lock", zap.Error(err))
			return
		}
		if !ok {
			logger.Info("job running on another instance, skipping")
			return
		}
		defer func() {
			if err := s.locks.ReleaseLock(context.WithoutCancel(ctx), job.Name, token); err != nil {
				logger.Warn("failed to release job lock", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", zap.Any("panic", r))
		}
	}()

	if err := job.Run(ctx); err != nil {
		logger.Error("job failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	logger.Info("job finished", zap.Duration("duration", time.Since(start)))
}
