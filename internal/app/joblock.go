package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tablet-tracker/internal/logging"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// JobLocker runs whole-table jobs (recalculation, reconciliation, sequential fill)
// at most once at a time. A second caller gets ErrJobRunning instead of queueing.
type JobLocker interface {
	Run(ctx context.Context, job string, fn func(ctx context.Context) error) error
}

const jobLockTTL = 30 * time.Second

type redisJobLocker struct {
	locker *redislock.Client
	log    logrus.FieldLogger
}

// NewRedisJobLocker returns a JobLocker shared by every instance talking to rdb.
// The lock is refreshed while the job runs, so jobs may outlive the TTL.
func NewRedisJobLocker(rdb *redis.Client, log logrus.FieldLogger) JobLocker {
	return &redisJobLocker{locker: redislock.New(rdb), log: log}
}

func (l *redisJobLocker) Run(ctx context.Context, job string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:job:%s", job)
	lock, err := l.locker.Obtain(ctx, key, jobLockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("%s: %w", job, ErrJobRunning)
	}
	if err != nil {
		logging.LogError(l.log, "app", "JobLocker.Run", "obtain job lock", job, err)
		return fmt.Errorf("obtain %s lock: %w", job, err)
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	refreshed := make(chan struct{})
	go func() {
		defer close(refreshed)
		ticker := time.NewTicker(jobLockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-jobCtx.Done():
				return
			case <-ticker.C:
				if err := lock.Refresh(jobCtx, jobLockTTL, nil); err != nil {
					if jobCtx.Err() == nil {
						// Lost the lock; stop the job rather than run it twice.
						logging.LogError(l.log, "app", "JobLocker.Run", "refresh job lock", job, err)
						cancel()
					}
					return
				}
			}
		}
	}()

	runErr := fn(jobCtx)
	cancel()
	<-refreshed

	// Release with a fresh context: the caller's may already be done.
	releaseCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		l.log.WithFields(logrus.Fields{"job": job, "error": err.Error()}).Warn("release job lock failed")
	}
	return runErr
}

type localJobLocker struct {
	mu      sync.Mutex
	running map[string]bool
}

// NewLocalJobLocker returns a JobLocker that only guards the current process.
// Used when no Redis is configured; the aggregation advisory lock still keeps
// concurrent database work consistent across processes.
func NewLocalJobLocker() JobLocker {
	return &localJobLocker{running: make(map[string]bool)}
}

func (l *localJobLocker) Run(ctx context.Context, job string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.running[job] {
		l.mu.Unlock()
		return fmt.Errorf("%s: %w", job, ErrJobRunning)
	}
	l.running[job] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.running, job)
		l.mu.Unlock()
	}()
	return fn(ctx)
}
