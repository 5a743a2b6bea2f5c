package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultRunLockTTL      = 45 * time.Second
	runLockRetryDelay      = time.Second
	renewalTimeout         = 5 * time.Second
	minRenewalInterval     = time.Second
	defaultRenewalFraction = 3
)

// ErrRunLockHeld is returned when another instance kept the run lock for the
// whole wait budget.
var ErrRunLockHeld = errors.New("support: run lock held by another instance")

var (
	lockCounter atomic.Uint64

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// RunExclusive acquires a Redis lock at key, runs run once while the lock is
// held and releases it afterwards. Acquisition is retried for at most wait.
// The lock is renewed in the background; if renewal fails, the context handed
// to run is cancelled so the run winds down cooperatively.
func RunExclusive(ctx context.Context, client redis.Cmdable, key string, ttl, wait time.Duration, run func(context.Context) error) error {
	if run == nil {
		return errors.New("support: run function cannot be nil")
	}
	if client == nil {
		return run(ctx)
	}
	if ttl <= 0 {
		ttl = DefaultRunLockTTL
	}

	session, err := acquireRunLock(ctx, client, key, ttl, wait)
	if err != nil {
		return err
	}
	defer session.Close()

	log.Debug("run lock: acquired", "key", key)
	return run(session.ctx)
}

type lockSession struct {
	client    redis.Cmdable
	key       string
	value     string
	ttl       time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	stopRenew chan struct{}
	closeOnce sync.Once
}

func acquireRunLock(ctx context.Context, client redis.Cmdable, key string, ttl, wait time.Duration) (*lockSession, error) {
	value := generateLockID()
	deadline := time.Now().Add(wait)

	for {
		ok, err := client.SetNX(ctx, key, value, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("support: run lock setnx: %w", err)
		}

		if ok {
			sessionCtx, cancel := context.WithCancel(ctx)
			session := &lockSession{
				client:    client,
				key:       key,
				value:     value,
				ttl:       ttl,
				ctx:       sessionCtx,
				cancel:    cancel,
				stopRenew: make(chan struct{}),
			}
			go session.renewLoop()
			return session, nil
		}

		if !time.Now().Before(deadline) {
			return nil, ErrRunLockHeld
		}

		log.Info("run lock: held by another instance, waiting", "key", key)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(runLockRetryDelay):
		}
	}
}

func (ls *lockSession) Close() {
	ls.closeOnce.Do(func() {
		close(ls.stopRenew)
		ls.cancel()
		if err := ls.releaseLock(); err != nil {
			log.Warn("run lock: release failed", "key", ls.key, "error", err)
			return
		}
		log.Debug("run lock: released", "key", ls.key)
	})
}

func (ls *lockSession) renewLoop() {
	interval := ls.ttl / defaultRenewalFraction
	if interval < minRenewalInterval {
		interval = minRenewalInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ls.stopRenew:
			return
		case <-ls.ctx.Done():
			return
		case <-ticker.C:
			if err := ls.renewLock(); err != nil {
				log.Warn("run lock: renewal failed", "key", ls.key, "error", err)
				ls.cancel()
				return
			}
		}
	}
}

func (ls *lockSession) renewLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	res, err := renewScript.Run(ctx, ls.client, []string{ls.key}, ls.value, ls.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}

	if updated, ok := res.(int64); ok && updated == 0 {
		return errors.New("lock lost")
	}

	return nil
}

func (ls *lockSession) releaseLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	_, err := releaseScript.Run(ctx, ls.client, []string{ls.key}, ls.value).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func generateLockID() string {
	host, _ := os.Hostname()
	counter := lockCounter.Add(1)
	return fmt.Sprintf("%s-%d-%d-%d", host, os.Getpid(), time.Now().UnixNano(), counter)
}
