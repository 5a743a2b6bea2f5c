package checker

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"proxywarden/internal/domain"
)

type Job struct {
	Proxy  string
	Type   domain.ProxyType
	Source string
}

type task struct {
	ctx     context.Context
	job     Job
	index   int
	results []Result
	wg      *sync.WaitGroup
}

type PoolOption func(*Pool)

// WithResultHook registers a callback invoked by the worker after every
// probe. It must be safe for concurrent use.
func WithResultHook(hook func(Result)) PoolOption {
	return func(p *Pool) {
		p.onResult = hook
	}
}

// WithPoolLogger sets the logger used for pool lifecycle messages.
func WithPoolLogger(logger *log.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pool runs probes on a fixed number of workers. The worker count never
// changes during the pool's lifetime and the same pool serves every round.
type Pool struct {
	checker  Checker
	workers  int
	tasks    chan task
	onResult func(Result)
	logger   *log.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewPool(workers int, checker Checker, opts ...PoolOption) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		checker: checker,
		workers: workers,
		tasks:   make(chan task),
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}

	p.logger.Debug("Checker workers started", "workers", workers)
	return p
}

func (p *Pool) Workers() int {
	return p.workers
}

// Run dispatches every job and returns once all of them reported. Results
// are in job order. Jobs still queued when ctx is cancelled come back as
// OutcomeCancelled. Run must not be called after Close.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for i, job := range jobs {
		p.tasks <- task{
			ctx:     ctx,
			job:     job,
			index:   i,
			results: results,
			wg:      &wg,
		}
	}
	wg.Wait()

	return results
}

// Close stops the workers after they finish their current probe.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
		p.wg.Wait()
	})
}

func (p *Pool) work() {
	defer p.wg.Done()

	for t := range p.tasks {
		result := p.checker.Check(t.ctx, t.job.Proxy, t.job.Type, t.job.Source)
		t.results[t.index] = result
		if p.onResult != nil {
			p.onResult(result)
		}
		t.wg.Done()
	}
}
