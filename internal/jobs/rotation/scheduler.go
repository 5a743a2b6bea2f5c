package rotation

import (
	"context"
	"math/rand"
	"sort"

	"github.com/charmbracelet/log"

	"proxywarden/internal/domain"
)

const DefaultBatchSize = 50

type RoundStats struct {
	Number    int
	Size      int
	PerSource map[string]int
	Alive     int
	// Remaining is the number of sources that still have candidates queued.
	Remaining int
}

type Summary struct {
	Rounds      int
	Dispatched  int
	Alive       int
	Interrupted bool
}

// DispatchFunc probes a whole round and reports how many entries were alive.
// It must return only after every entry finished.
type DispatchFunc func(ctx context.Context, entries []Entry) int

type Option func(*Scheduler)

// WithRoundHook registers a callback run after every completed round.
func WithRoundHook(hook func(RoundStats)) Option {
	return func(s *Scheduler) {
		s.onRound = hook
	}
}

// WithLogger sets the logger used for round progress lines.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSkip adds a check consulted at dequeue time, typically the dead proxy
// ledger, for addresses that became ineligible after the queues were built.
func WithSkip(skip func(string) bool) Option {
	return func(s *Scheduler) {
		s.skip = skip
	}
}

// Scheduler interleaves candidates from every source so each round gives
// all sources the same share of probes.
type Scheduler struct {
	batchSize int
	rng       *rand.Rand
	onRound   func(RoundStats)
	skip      func(string) bool
	logger    *log.Logger
}

func NewScheduler(batchSize int, rng *rand.Rand, opts ...Option) *Scheduler {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	s := &Scheduler{
		batchSize: batchSize,
		rng:       rng,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run validates candidates round by round until every queue is drained or
// ctx is cancelled. Cancellation is only observed between rounds, so a round
// that started always completes. Each address is dispatched at most once per
// Run even when several sources list it; it is attributed to the first
// source it was dequeued from.
func (s *Scheduler) Run(ctx context.Context, candidates domain.CandidateSet, exclude func(string) bool, dispatch DispatchFunc) Summary {
	var summary Summary

	queues := BuildQueues(candidates, exclude, s.rng)
	if len(queues) == 0 {
		return summary
	}

	dispatched := make(map[string]struct{})
	admit := func(proxy string) bool {
		if _, seen := dispatched[proxy]; seen {
			return false
		}
		if s.skip != nil && s.skip(proxy) {
			return false
		}
		dispatched[proxy] = struct{}{}
		return true
	}

	s.logger.Info("Starting fair rotation", "sources", len(queues), "batch_size", s.batchSize)

	for len(queues) > 0 {
		if ctx.Err() != nil {
			summary.Interrupted = true
			s.logger.Warn("Rotation interrupted", "rounds", summary.Rounds, "sources_left", len(queues))
			break
		}

		var round Round
		round, queues = NextRound(queues, s.batchSize, s.rng, admit)
		if len(round.Entries) == 0 {
			continue
		}

		summary.Rounds++
		s.logRound(summary.Rounds, round)

		alive := dispatch(ctx, round.Entries)

		summary.Dispatched += len(round.Entries)
		summary.Alive += alive

		s.logger.Info("Round completed", "round", summary.Rounds, "alive", alive, "tested", len(round.Entries))

		if s.onRound != nil {
			s.onRound(RoundStats{
				Number:    summary.Rounds,
				Size:      len(round.Entries),
				PerSource: round.PerSource,
				Alive:     alive,
				Remaining: len(queues),
			})
		}
	}

	return summary
}

func (s *Scheduler) logRound(number int, round Round) {
	s.logger.Info("Testing round", "round", number, "proxies", len(round.Entries), "sources", len(round.PerSource))

	sources := make([]string, 0, len(round.PerSource))
	for source := range round.PerSource {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		s.logger.Debug("Round share", "round", number, "source", source, "proxies", round.PerSource[source])
	}
}
