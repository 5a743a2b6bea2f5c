package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"

	"proxywarden/internal/config"
	"proxywarden/internal/domain"
	"proxywarden/internal/jobs/checker"
	"proxywarden/internal/jobs/rotation"
	"proxywarden/internal/storage"
	"proxywarden/internal/support"
)

// DeadLedger is the read side of the dead proxy ledger.
type DeadLedger interface {
	Contains(proxy string) bool
	Len() int
}

type SourceFetcher interface {
	FetchAll(ctx context.Context, sources []domain.Source) domain.CandidateSet
}

type Options struct {
	Workers   int
	BatchSize int
	// Types restricts and orders the processed proxy types. Empty means
	// every type in the default order.
	Types []domain.ProxyType
}

type Deps struct {
	Ledger  DeadLedger
	Checker checker.Checker
	Fetcher SourceFetcher
	Manager *storage.Manager
	Sources []domain.Source
	Rand    *rand.Rand
	Logger  *log.Logger

	// OnResult is called from probe workers after every probe.
	OnResult func(checker.Result)
	// OnState is called whenever a type enters a new state.
	OnState func(t domain.ProxyType, s State)
	OnRound func(t domain.ProxyType, stats rotation.RoundStats)
}

type Orchestrator struct {
	opts   Options
	deps   Deps
	pools  *storage.Pools
	logger *log.Logger
}

func New(opts Options, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Ledger == nil:
		return nil, errors.New("orchestrator: ledger is required")
	case deps.Checker == nil:
		return nil, errors.New("orchestrator: checker is required")
	case deps.Fetcher == nil:
		return nil, errors.New("orchestrator: source fetcher is required")
	case deps.Manager == nil:
		return nil, errors.New("orchestrator: persistence manager is required")
	}

	opts.Workers = config.ClampWorkers(opts.Workers)
	if opts.BatchSize < 1 {
		opts.BatchSize = rotation.DefaultBatchSize
	}
	if len(opts.Types) == 0 {
		opts.Types = domain.ProxyTypes()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Orchestrator{
		opts:   opts,
		deps:   deps,
		pools:  deps.Manager.Pools(),
		logger: logger,
	}, nil
}

// Run processes every proxy type in order. ctx is the shutdown token; once
// it is cancelled the run stops after the probes already dispatched. The
// pools are always flushed before Run returns.
func (o *Orchestrator) Run(ctx context.Context) (report Report, err error) {
	pool := checker.NewPool(o.opts.Workers, o.deps.Checker,
		checker.WithResultHook(o.observe),
		checker.WithPoolLogger(o.logger),
	)
	defer pool.Close()

	defer func() {
		if flushErr := o.deps.Manager.FlushAll(); flushErr != nil {
			o.logger.Error("Final save failed", "error", flushErr)
			err = errors.Join(err, flushErr)
		}
		report.DeadTracked = o.deps.Ledger.Len()
		if ctx.Err() != nil {
			report.Interrupted = true
		}
	}()

	byType := config.SourcesByType(o.deps.Sources)

	var errs []error
	for _, t := range o.opts.Types {
		if ctx.Err() != nil {
			o.logger.Warn("Shutdown requested, skipping remaining types", "next", t)
			break
		}

		tr, typeErr := o.runType(ctx, pool, t, byType[t])
		report.Types = append(report.Types, tr)
		if typeErr != nil {
			errs = append(errs, typeErr)
		}
		if tr.Interrupted {
			break
		}
	}

	return report, errors.Join(errs...)
}

func (o *Orchestrator) observe(r checker.Result) {
	if r.Alive() {
		o.pools.Add(r.Type, r.Proxy)
	}
	if o.deps.OnResult != nil {
		o.deps.OnResult(r)
	}
}

func (o *Orchestrator) enter(t domain.ProxyType, tr *TypeReport, s State) {
	tr.Reached = s
	o.logger.Debug("Entering state", "type", t, "state", s)
	if o.deps.OnState != nil {
		o.deps.OnState(t, s)
	}
}

func (o *Orchestrator) runType(ctx context.Context, pool *checker.Pool, t domain.ProxyType, sources []domain.Source) (TypeReport, error) {
	tr := TypeReport{Type: t.String(), Sources: len(sources)}
	logger := o.logger.With("type", t)

	interrupted := func() bool {
		if ctx.Err() == nil {
			return false
		}
		tr.Interrupted = true
		logger.Warn("Shutdown requested", "state", tr.Reached)
		return true
	}

	o.enter(t, &tr, StateLoadExisting)
	existing := storage.ReadPool(o.deps.Manager.PoolPath(t))
	tr.ExistingLoaded = len(existing)
	logger.Info("Loaded existing proxies", "count", len(existing))
	if interrupted() {
		return tr, nil
	}

	o.enter(t, &tr, StateValidateExisting)
	existingAlive, newlyDead := o.validateExisting(ctx, pool, t, existing, &tr, logger)
	if interrupted() {
		return tr, nil
	}
	o.pools.AddAll(t, existingAlive)
	o.pools.Arm(t)
	logger.Info("Existing proxies validated", "checked", tr.ExistingChecked, "alive", tr.ExistingAlive)

	o.enter(t, &tr, StatePruneDead)
	if removed, err := o.deps.Manager.Remove(t, newlyDead); err != nil {
		logger.Error("Removing dead proxies from pool file failed", "error", err)
	} else {
		tr.PrunedFromStore += removed
	}
	if interrupted() {
		return tr, nil
	}

	o.enter(t, &tr, StateFetchSources)
	candidates := domain.CandidateSet{}
	if len(sources) > 0 {
		candidates = o.deps.Fetcher.FetchAll(ctx, sources)
	}
	tr.Fetched = candidates.Total()
	logger.Info("Fetched candidates", "sources", len(sources), "candidates", tr.Fetched)
	if interrupted() {
		return tr, nil
	}

	o.enter(t, &tr, StateFairRotate)
	newAlive := make(map[string]struct{})
	exclude := func(proxy string) bool {
		if _, ok := existingAlive[proxy]; ok {
			return true
		}
		return o.deps.Ledger.Contains(proxy)
	}
	scheduler := rotation.NewScheduler(o.opts.BatchSize, o.deps.Rand,
		rotation.WithSkip(o.deps.Ledger.Contains),
		rotation.WithLogger(logger),
		rotation.WithRoundHook(func(stats rotation.RoundStats) {
			if o.deps.OnRound != nil {
				o.deps.OnRound(t, stats)
			}
		}),
	)
	summary := scheduler.Run(ctx, candidates, exclude, func(ctx context.Context, entries []rotation.Entry) int {
		jobs := make([]checker.Job, len(entries))
		for i, e := range entries {
			jobs[i] = checker.Job{Proxy: e.Proxy, Type: t, Source: e.Source}
		}

		alive := 0
		for _, r := range pool.Run(ctx, jobs) {
			if r.Alive() {
				newAlive[r.Proxy] = struct{}{}
				alive++
			}
		}
		return alive
	})
	tr.Rounds = summary.Rounds
	tr.NewAlive = len(newAlive)
	if summary.Interrupted || interrupted() {
		tr.Interrupted = true
		tr.Total = o.pools.Len(t)
		return tr, nil
	}

	o.enter(t, &tr, StateMerge)
	o.pools.AddAll(t, existingAlive)
	o.pools.AddAll(t, newAlive)
	tr.Total = o.pools.Len(t)

	o.enter(t, &tr, StateFlush)
	var flushErr error
	if err := o.deps.Manager.Flush(t); err != nil {
		logger.Error("Saving pool failed", "error", err)
		flushErr = fmt.Errorf("orchestrator: flush %s: %w", t, err)
	}

	o.enter(t, &tr, StateDone)
	logger.Info("Proxy type completed",
		"existing_alive", tr.ExistingAlive,
		"new_alive", tr.NewAlive,
		"total", tr.Total,
		"rounds", tr.Rounds,
	)
	return tr, flushErr
}

// validateExisting re-probes the persisted pool. Ledger members are dropped
// from the file without probing. It returns the survivors and the entries
// that probed dead or errored.
func (o *Orchestrator) validateExisting(ctx context.Context, pool *checker.Pool, t domain.ProxyType, existing map[string]struct{}, tr *TypeReport, logger *log.Logger) (alive, dead map[string]struct{}) {
	alive = make(map[string]struct{})
	dead = make(map[string]struct{})

	ledgerDead := make(map[string]struct{})
	toCheck := make([]string, 0, len(existing))
	for _, proxy := range support.SortedProxies(existing) {
		if o.deps.Ledger.Contains(proxy) {
			ledgerDead[proxy] = struct{}{}
			continue
		}
		toCheck = append(toCheck, proxy)
	}

	tr.SkippedDead = len(ledgerDead)
	if len(ledgerDead) > 0 {
		removed, err := o.deps.Manager.Remove(t, ledgerDead)
		if err != nil {
			logger.Error("Removing known dead proxies from pool file failed", "error", err)
		} else {
			tr.PrunedFromStore += removed
		}
		logger.Info("Skipped known dead proxies", "count", len(ledgerDead))
	}

	o.deps.Rand.Shuffle(len(toCheck), func(i, j int) {
		toCheck[i], toCheck[j] = toCheck[j], toCheck[i]
	})

	jobs := make([]checker.Job, len(toCheck))
	for i, proxy := range toCheck {
		jobs[i] = checker.Job{Proxy: proxy, Type: t, Source: domain.SourceExisting}
	}

	logger.Info("Validating existing proxies", "count", len(jobs), "workers", pool.Workers())
	for _, r := range pool.Run(ctx, jobs) {
		switch r.Outcome {
		case checker.OutcomeAlive:
			alive[r.Proxy] = struct{}{}
			tr.ExistingChecked++
		case checker.OutcomeDead, checker.OutcomeError:
			dead[r.Proxy] = struct{}{}
			tr.ExistingChecked++
		case checker.OutcomeSkipped:
			dead[r.Proxy] = struct{}{}
		}
	}
	tr.ExistingAlive = len(alive)

	return alive, dead
}
