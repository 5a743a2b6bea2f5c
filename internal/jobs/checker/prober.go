package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/corpix/uarand"
	"golang.org/x/time/rate"

	"proxywarden/internal/domain"
)

type Outcome int

const (
	OutcomeAlive Outcome = iota
	OutcomeDead
	OutcomeError
	// OutcomeCancelled means the probe stopped on shutdown. Nothing was
	// recorded and the ledger was left untouched.
	OutcomeCancelled
	// OutcomeSkipped means the proxy was already in the dead ledger.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlive:
		return "alive"
	case OutcomeDead:
		return "dead"
	case OutcomeError:
		return "error"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Result struct {
	Proxy     string
	Type      domain.ProxyType
	Source    string
	Outcome   Outcome
	LatencyMs int64
	TestURL   string
	Err       error
}

func (r Result) Alive() bool {
	return r.Outcome == OutcomeAlive
}

// Checker probes one proxy. *Prober is the production implementation.
type Checker interface {
	Check(ctx context.Context, proxyAddr string, proxyType domain.ProxyType, source string) Result
}

type Recorder interface {
	Record(rec domain.ValidationRecord)
}

// DeadLedger is the part of the dead proxy ledger the prober needs.
type DeadLedger interface {
	Contains(proxy string) bool
	MarkDead(proxy string) bool
}

// MaxAttempts bounds the endpoints tried per proxy, so a probe never takes
// longer than MaxAttempts times the timeout.
const MaxAttempts = 2

type ProberConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	TestURLs    []string
	// ProbeRate limits probe starts per second; zero disables the limit.
	ProbeRate float64
}

type ProberOption func(*Prober)

func WithClock(now func() time.Time) ProberOption {
	return func(p *Prober) {
		p.now = now
	}
}

// WithLogger sets the logger used for probe diagnostics.
func WithLogger(logger *log.Logger) ProberOption {
	return func(p *Prober) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithUserAgent(agent func() string) ProberOption {
	return func(p *Prober) {
		p.userAgent = agent
	}
}

type Prober struct {
	fetcher  Fetcher
	recorder Recorder
	ledger   DeadLedger
	cfg      ProberConfig
	limiter  *rate.Limiter

	now       func() time.Time
	userAgent func() string
	logger    *log.Logger
}

func NewProber(fetcher Fetcher, recorder Recorder, ledger DeadLedger, cfg ProberConfig, opts ...ProberOption) *Prober {
	if cfg.MaxAttempts <= 0 || cfg.MaxAttempts > MaxAttempts {
		cfg.MaxAttempts = MaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	p := &Prober{
		fetcher:   fetcher,
		recorder:  recorder,
		ledger:    ledger,
		cfg:       cfg,
		now:       time.Now,
		userAgent: uarand.GetRandom,
		logger:    log.Default(),
	}
	if cfg.ProbeRate > 0 {
		burst := int(cfg.ProbeRate)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.ProbeRate), burst)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check probes proxyAddr against the configured test endpoints in order and
// stops at the first 200 response. Dead and errored proxies are recorded and
// added to the ledger. ctx is the shutdown token: it is polled before the
// probe and between attempts, but a request already in flight runs to its
// own timeout.
func (p *Prober) Check(ctx context.Context, proxyAddr string, proxyType domain.ProxyType, source string) Result {
	result := Result{
		Proxy:  proxyAddr,
		Type:   proxyType,
		Source: source,
	}

	if ctx.Err() != nil {
		result.Outcome = OutcomeCancelled
		return result
	}

	if p.ledger != nil && p.ledger.Contains(proxyAddr) {
		result.Outcome = OutcomeSkipped
		return result
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			result.Outcome = OutcomeCancelled
			return result
		}
	}

	p.runAttempts(ctx, &result)

	switch result.Outcome {
	case OutcomeAlive:
		latency := result.LatencyMs
		p.record(result, domain.StatusAlive, &latency, result.TestURL)
	case OutcomeDead:
		p.record(result, domain.StatusDead, nil, "")
		p.markDead(proxyAddr)
	case OutcomeError:
		p.logger.Debug("Probe error", "proxy", proxyAddr, "type", proxyType, "error", result.Err)
		p.record(result, domain.StatusError, nil, "")
		p.markDead(proxyAddr)
	}

	return result
}

func (p *Prober) runAttempts(ctx context.Context, result *Result) {
	defer func() {
		if r := recover(); r != nil {
			result.Outcome = OutcomeError
			result.Err = fmt.Errorf("checker: panic while probing %s: %v", result.Proxy, r)
		}
	}()

	attempts := p.cfg.MaxAttempts
	if attempts > len(p.cfg.TestURLs) {
		attempts = len(p.cfg.TestURLs)
	}

	requestCtx := context.WithoutCancel(ctx)
	var lastErr error

	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			result.Outcome = OutcomeCancelled
			return
		}

		target := p.cfg.TestURLs[i]
		header := http.Header{}
		header.Set("User-Agent", p.userAgent())

		start := p.now()
		status, err := p.fetcher.Fetch(requestCtx, target, result.Proxy, result.Type, p.cfg.Timeout, header)
		if err != nil {
			if errors.Is(err, ErrProbeSetup) {
				result.Outcome = OutcomeError
				result.Err = err
				return
			}
			lastErr = err
			continue
		}

		if status == http.StatusOK {
			result.Outcome = OutcomeAlive
			result.LatencyMs = p.now().Sub(start).Milliseconds()
			result.TestURL = target
			return
		}
		lastErr = fmt.Errorf("unexpected status %d from %s", status, target)
	}

	result.Outcome = OutcomeDead
	result.Err = lastErr
}

func (p *Prober) record(result Result, status domain.Status, latency *int64, testURL string) {
	if p.recorder == nil {
		return
	}
	p.recorder.Record(domain.ValidationRecord{
		Timestamp:      p.now(),
		Proxy:          result.Proxy,
		ProxyType:      result.Type,
		SourceURL:      result.Source,
		Status:         status,
		ResponseTimeMs: latency,
		TestURL:        testURL,
	})
}

func (p *Prober) markDead(proxyAddr string) {
	if p.ledger == nil {
		return
	}
	p.ledger.MarkDead(proxyAddr)
}
