package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLocks struct {
	mu       sync.Mutex
	held     map[string]string
	acquired int
	released int
	err      error
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: make(map[string]string)}
}

func (l *fakeLocks) AcquireLock(_ context.Context, name string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", false, l.err
	}
	if _, ok := l.held[name]; ok {
		return "", false, nil
	}
	l.acquired++
	l.held[name] = "token-" + name
	return l.held[name], true, nil
}

func (l *fakeLocks) ReleaseLock(_ context.Context, name, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] == token {
		delete(l.held, name)
		l.released++
	}
	return nil
}

func TestScheduler_RunsAtStartAndOnInterval(t *testing.T) {
	var runs atomic.Int32
	s := New(nil, zap.NewNop())
	s.Add(&Job{
		Name:     "tick",
		Interval: 100 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 50*time.Millisecond, time.Millisecond,
		"job should run immediately at start")
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	s.Wait()
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	var (
		active  atomic.Int32
		maxSeen atomic.Int32
		runs    atomic.Int32
	)
	s := New(nil, zap.NewNop())
	s.Add(&Job{
		Name:     "slow",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			n := active.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			runs.Add(1)
			time.Sleep(40 * time.Millisecond)
			active.Add(-1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(120 * time.Millisecond)
	cancel()
	s.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Less(t, runs.Load(), int32(10))
}

func TestRunOnce_UsesDistributedLock(t *testing.T) {
	locks := newFakeLocks()
	s := New(locks, zap.NewNop())

	var runs int
	job := &Job{Name: "user-cleanup", Interval: time.Hour, Run: func(context.Context) error {
		runs++
		return nil
	}}

	s.RunOnce(context.Background(), job)
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, locks.acquired)
	assert.Equal(t, 1, locks.released)

	// Another instance holds the lock.
	locks.held["user-cleanup"] = "other"
	s.RunOnce(context.Background(), job)
	assert.Equal(t, 1, runs)
}

func TestRunOnce_LockErrorSkipsRun(t *testing.T) {
	locks := newFakeLocks()
	locks.err = errors.New("redis down")
	s := New(locks, zap.NewNop())

	ran := false
	s.RunOnce(context.Background(), &Job{Name: "x", Interval: time.Minute, Run: func(context.Context) error {
		ran = true
		return nil
	}})
	assert.False(t, ran)
}

func TestRunOnce_ReleasesLockOnFailureAndPanic(t *testing.T) {
	locks := newFakeLocks()
	s := New(locks, zap.NewNop())

	s.RunOnce(context.Background(), &Job{Name: "fails", Interval: time.Minute, Run: func(context.Context) error {
		return errors.New("boom")
	}})
	s.RunOnce(context.Background(), &Job{Name: "panics", Interval: time.Minute, Run: func(context.Context) error {
		panic("unexpected")
	}})

	require.Equal(t, 2, locks.acquired)
	assert.Equal(t, 2, locks.released)
	assert.Empty(t, locks.held)
}
