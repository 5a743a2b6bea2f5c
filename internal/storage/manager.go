package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"proxywarden/internal/domain"
)

const (
	DefaultSaveInterval = 10 * time.Second
	defaultTick         = time.Second
	mirrorTimeout       = 10 * time.Second
)

// Mirror receives a copy of every pool that was written to disk.
type Mirror interface {
	MirrorPool(ctx context.Context, t domain.ProxyType, proxies []string) error
}

type ManagerOption func(*Manager)

func WithSaveInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		if interval > 0 {
			m.saveInterval = interval
		}
	}
}

func WithTick(tick time.Duration) ManagerOption {
	return func(m *Manager) {
		if tick > 0 {
			m.tick = tick
		}
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func WithMirror(mirror Mirror) ManagerOption {
	return func(m *Manager) {
		if mirror != nil {
			m.mirrors = append(m.mirrors, mirror)
		}
	}
}

// Manager writes the alive pools to {dir}/{type}.txt, on demand and
// periodically. All writes to pool files go through one mutex.
type Manager struct {
	dir   string
	pools *Pools

	saveInterval time.Duration
	tick         time.Duration
	now          func() time.Time
	mirrors      []Mirror

	flushMu   sync.Mutex
	lastFlush time.Time
}

func NewManager(dir string, pools *Pools, opts ...ManagerOption) *Manager {
	m := &Manager{
		dir:          dir,
		pools:        pools,
		saveInterval: DefaultSaveInterval,
		tick:         defaultTick,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastFlush = m.now()
	return m
}

func (m *Manager) PoolPath(t domain.ProxyType) string {
	return filepath.Join(m.dir, t.FileName())
}

func (m *Manager) Pools() *Pools {
	return m.pools
}

// Flush writes the pool of t if the type is armed.
func (m *Manager) Flush(t domain.ProxyType) error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()
	return m.flushLocked(t)
}

// FlushAll writes every armed pool and returns the joined errors.
func (m *Manager) FlushAll() error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	var errs []error
	for _, t := range domain.ProxyTypes() {
		if err := m.flushLocked(t); err != nil {
			errs = append(errs, err)
		}
	}
	m.lastFlush = m.now()
	return errors.Join(errs...)
}

// Remove drops addresses from the pool file of t.
func (m *Manager) Remove(t domain.ProxyType, proxies map[string]struct{}) (int, error) {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()
	return RemoveFromPoolFile(m.PoolPath(t), proxies)
}

// Start runs the periodic save loop until ctx is done or the returned stop
// function is called. stop waits for the loop to exit.
func (m *Manager) Start(ctx context.Context) (stop func()) {
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.tick)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				m.maybeFlush()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func (m *Manager) maybeFlush() {
	m.flushMu.Lock()
	due := m.now().Sub(m.lastFlush) >= m.saveInterval
	m.flushMu.Unlock()
	if !due {
		return
	}

	if err := m.FlushAll(); err != nil {
		log.Error("Periodic save failed", "error", err)
		return
	}
	log.Debug("Periodic save completed")
}

func (m *Manager) flushLocked(t domain.ProxyType) error {
	if !m.pools.Armed(t) {
		log.Debug("Skipping save of unvalidated pool", "type", t)
		return nil
	}

	proxies := m.pools.Snapshot(t)
	path := m.PoolPath(t)
	if err := WritePoolFile(path, t, proxies, m.now()); err != nil {
		return err
	}
	log.Info("Saved proxies", "type", t, "count", len(proxies), "path", path)

	for _, mirror := range m.mirrors {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		if err := mirror.MirrorPool(ctx, t, proxies); err != nil {
			log.Warn("Mirroring pool failed", "type", t, "error", err)
		}
		cancel()
	}
	return nil
}
