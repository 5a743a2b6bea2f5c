package checker

import (
	"context"
	"net/http"
	"sync"
	"time"

	"proxywarden/internal/domain"
)

type fetchCall struct {
	target string
	proxy  string
	agent  string
}

// scriptedFetcher answers per test URL; unknown URLs fail like a dead proxy.
type scriptedFetcher struct {
	mu        sync.Mutex
	calls     []fetchCall
	responses map[string]fetchResponse
	onFetch   func(ctx context.Context)
}

type fetchResponse struct {
	status int
	err    error
	panic  bool
}

func (f *scriptedFetcher) Fetch(ctx context.Context, target, proxyAddr string, _ domain.ProxyType, _ time.Duration, header http.Header) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{target: target, proxy: proxyAddr, agent: header.Get("User-Agent")})
	resp, ok := f.responses[target]
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if !ok {
		return 0, errConnRefused
	}
	if resp.panic {
		panic("fetcher exploded")
	}
	return resp.status, resp.err
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memoryLedger struct {
	mu    sync.Mutex
	dead  map[string]struct{}
	marks int
}

func newMemoryLedger(entries ...string) *memoryLedger {
	l := &memoryLedger{dead: make(map[string]struct{})}
	for _, e := range entries {
		l.dead[e] = struct{}{}
	}
	return l
}

func (l *memoryLedger) Contains(proxy string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.dead[proxy]
	return ok
}

func (l *memoryLedger) MarkDead(proxy string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.marks++
	if _, ok := l.dead[proxy]; ok {
		return false
	}
	l.dead[proxy] = struct{}{}
	return true
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []domain.ValidationRecord
}

func (r *memoryRecorder) Record(rec domain.ValidationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *memoryRecorder) all() []domain.ValidationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ValidationRecord(nil), r.records...)
}

type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.now
	c.now = c.now.Add(c.step)
	return current
}
