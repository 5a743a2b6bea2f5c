package checker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"proxywarden/internal/domain"
)

type slowChecker struct {
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	checked  atomic.Int32
}

func (c *slowChecker) Check(ctx context.Context, proxyAddr string, proxyType domain.ProxyType, source string) Result {
	current := c.inFlight.Add(1)
	for {
		peak := c.peak.Load()
		if current <= peak || c.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	time.Sleep(c.delay)
	c.inFlight.Add(-1)
	c.checked.Add(1)

	outcome := OutcomeDead
	if ctx.Err() != nil {
		outcome = OutcomeCancelled
	} else if proxyAddr[0] == '1' {
		outcome = OutcomeAlive
	}
	return Result{Proxy: proxyAddr, Type: proxyType, Source: source, Outcome: outcome}
}

func jobsFor(proxies ...string) []Job {
	jobs := make([]Job, 0, len(proxies))
	for _, p := range proxies {
		jobs = append(jobs, Job{Proxy: p, Type: domain.ProxyTypeHTTP, Source: "https://src.test"})
	}
	return jobs
}

func TestPoolRunWaitsForEveryJob(t *testing.T) {
	checker := &slowChecker{delay: 10 * time.Millisecond}
	pool := NewPool(3, checker)
	defer pool.Close()

	jobs := jobsFor("1.0.0.1:80", "2.0.0.1:80", "1.0.0.2:80", "2.0.0.2:80", "1.0.0.3:80", "2.0.0.3:80", "1.0.0.4:80")
	results := pool.Run(context.Background(), jobs)

	if got := int(checker.checked.Load()); got != len(jobs) {
		t.Fatalf("Run returned after %d checks, want %d", got, len(jobs))
	}
	if checker.inFlight.Load() != 0 {
		t.Fatal("Run returned while checks were still in flight")
	}
	if peak := checker.peak.Load(); peak > 3 {
		t.Fatalf("peak concurrency %d exceeds worker count 3", peak)
	}

	for i, r := range results {
		if r.Proxy != jobs[i].Proxy {
			t.Fatalf("result %d is for %s, want %s", i, r.Proxy, jobs[i].Proxy)
		}
	}
	if !results[0].Alive() || results[1].Alive() {
		t.Fatalf("unexpected outcomes: %v %v", results[0].Outcome, results[1].Outcome)
	}
}

func TestPoolIsReusableAcrossRounds(t *testing.T) {
	checker := &slowChecker{}
	var hooked atomic.Int32
	pool := NewPool(2, checker, WithResultHook(func(Result) { hooked.Add(1) }))
	defer pool.Close()

	for round := 0; round < 3; round++ {
		results := pool.Run(context.Background(), jobsFor("1.1.1.1:80", "2.2.2.2:80"))
		if len(results) != 2 {
			t.Fatalf("round %d returned %d results, want 2", round, len(results))
		}
	}

	if pool.Workers() != 2 {
		t.Fatalf("Workers returned %d, want 2", pool.Workers())
	}
	if hooked.Load() != 6 {
		t.Fatalf("result hook called %d times, want 6", hooked.Load())
	}
}

func TestPoolRunEmptyBatch(t *testing.T) {
	pool := NewPool(0, &slowChecker{})
	defer pool.Close()

	if results := pool.Run(context.Background(), nil); len(results) != 0 {
		t.Fatalf("Run(nil) returned %d results", len(results))
	}
	if pool.Workers() != 1 {
		t.Fatalf("Workers returned %d, want minimum of 1", pool.Workers())
	}
}

func TestPoolRunAfterCancellation(t *testing.T) {
	pool := NewPool(2, &slowChecker{})
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := pool.Run(ctx, jobsFor("1.1.1.1:80", "2.2.2.2:80", "1.2.3.4:80"))
	for _, r := range results {
		if r.Outcome != OutcomeCancelled {
			t.Fatalf("result for %s is %v, want cancelled", r.Proxy, r.Outcome)
		}
	}
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	pool := NewPool(4, &slowChecker{})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Close()
		}()
	}
	wg.Wait()
}
