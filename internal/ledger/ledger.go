// Package ledger keeps the durable set of proxies known to be dead.
//
// Entries expire after a retention window. Until then every probing path
// skips them, so a dead proxy is never retested before it ages out.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"proxywarden/internal/domain"
	"proxywarden/internal/support"
)

const DefaultRetention = 30 * 24 * time.Hour

// Ledger is safe for concurrent use. Membership tests and insertions share
// one mutex; file appends happen under it as well so the file order matches
// the insertion order.
type Ledger struct {
	path      string
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

type Option func(*Ledger)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func New(path string, retention time.Duration, opts ...Option) *Ledger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	l := &Ledger{
		path:      path,
		retention: retention,
		now:       time.Now,
		entries:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the ledger file, drops entries older than the retention window
// and rewrites the file when anything was pruned or normalized. Legacy rows
// without a timestamp, and rows whose timestamp cannot be parsed, are kept
// and stamped with the load time. A missing file is an empty ledger.
func (l *Ledger) Load() (map[string]time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make(map[string]time.Time)

	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info("No dead proxies file found, starting with an empty ledger", "path", l.path)
			return l.snapshotLocked(), nil
		}
		return l.snapshotLocked(), fmt.Errorf("ledger: open: %w", err)
	}

	now := l.now()
	cutoff := now.Add(-l.retention)

	var (
		pruned     int
		normalized int
		order      []string
	)

	readErr := support.EachLine(file, func(line string) {
		if line == "" || strings.HasPrefix(line, "#") {
			return
		}

		proxy, markedAt, ok := parseEntry(line)
		if !ok {
			markedAt = now
			normalized++
		}
		if markedAt.Before(cutoff) {
			pruned++
			return
		}

		if _, dup := l.entries[proxy]; !dup {
			order = append(order, proxy)
		} else {
			normalized++
		}
		if existing, dup := l.entries[proxy]; !dup || markedAt.After(existing) {
			l.entries[proxy] = markedAt
		}
	})
	file.Close()

	switch {
	case readErr != nil:
		// A partial read must never be written back over the file.
		log.Warn("Error while reading dead proxies file, leaving it untouched", "path", l.path, "error", readErr)
	case pruned > 0 || normalized > 0:
		if err := l.rewriteLocked(order); err != nil {
			log.Error("Error rewriting dead proxies file", "path", l.path, "error", err)
		} else if pruned > 0 {
			log.Info("Cleaned dead proxies older than retention window", "count", pruned, "retention", l.retention)
		}
	}

	log.Info("Loaded dead proxies to skip", "count", len(l.entries))
	return l.snapshotLocked(), nil
}

// Contains reports whether proxy is currently known dead.
func (l *Ledger) Contains(proxy string) bool {
	l.mu.Lock()
	_, ok := l.entries[proxy]
	l.mu.Unlock()
	return ok
}

// MarkDead records proxy as dead. Marking a proxy that is already present is
// a no-op; otherwise one line is appended to the ledger file. It reports
// whether the proxy was newly added.
func (l *Ledger) MarkDead(proxy string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[proxy]; ok {
		return false
	}

	markedAt := l.now()
	l.entries[proxy] = markedAt

	if err := l.appendLocked(proxy, markedAt); err != nil {
		log.Error("Error saving dead proxy", "proxy", proxy, "error", err)
	}
	return true
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the ledger as rows.
func (l *Ledger) Entries() []domain.DeadEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.DeadEntry, 0, len(l.entries))
	for proxy, markedAt := range l.entries {
		out = append(out, domain.DeadEntry{Proxy: proxy, MarkedAt: markedAt})
	}
	return out
}

func (l *Ledger) snapshotLocked() map[string]time.Time {
	out := make(map[string]time.Time, len(l.entries))
	for proxy, markedAt := range l.entries {
		out[proxy] = markedAt
	}
	return out
}

func (l *Ledger) appendLocked(proxy string, markedAt time.Time) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = fmt.Fprintf(file, "%s,%s\n", proxy, markedAt.Format(time.RFC3339Nano))
	return err
}

func (l *Ledger) rewriteLocked(order []string) error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".dead_proxies-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	writer := bufio.NewWriter(tmp)
	fmt.Fprintln(writer, "# Dead Proxies Database with Timestamps")
	fmt.Fprintln(writer, "# Format: proxy_ip:port,timestamp")
	fmt.Fprintf(writer, "# Auto-cleanup: Entries older than %s are removed\n", l.retention)
	fmt.Fprintf(writer, "# Last cleaned: %s\n\n", l.now().Format(time.RFC3339))
	for _, proxy := range order {
		fmt.Fprintf(writer, "%s,%s\n", proxy, l.entries[proxy].Format(time.RFC3339Nano))
	}

	if err := writer.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), l.path)
}

// Timestamp layouts accepted on load. The last two cover rows written by
// older tooling that stored local time without an offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseEntry splits "proxy,timestamp". ok is false for legacy rows without a
// timestamp and for rows whose timestamp does not parse.
func parseEntry(line string) (string, time.Time, bool) {
	proxy, rawTime, found := strings.Cut(line, ",")
	proxy = strings.TrimSpace(proxy)
	if !found {
		return proxy, time.Time{}, false
	}

	rawTime = strings.TrimSpace(rawTime)
	for _, layout := range timestampLayouts {
		var (
			parsed time.Time
			err    error
		)
		if layout == time.RFC3339Nano {
			parsed, err = time.Parse(layout, rawTime)
		} else {
			parsed, err = time.ParseInLocation(layout, rawTime, time.Local)
		}
		if err == nil {
			return proxy, parsed, true
		}
	}
	return proxy, time.Time{}, false
}
