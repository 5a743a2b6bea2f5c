package validationlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"proxywarden/internal/domain"
)

// Header is the column layout consumed by the quality analysis tooling.
var Header = []string{
	"timestamp", "proxy", "proxy_type", "source_url",
	"status", "response_time_ms", "test_url_used",
}

// CSVLog appends one row per probe outcome. Appends are serialized by a lock
// of their own so logging never contends with pool flushes.
type CSVLog struct {
	path string
	mu   sync.Mutex
}

// OpenCSV prepares the log at path, writing the header when the file does
// not exist yet.
func OpenCSV(path string) (*CSVLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("validationlog: create directory: %w", err)
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("validationlog: create log: %w", err)
		}
		if err == nil {
			writer := csv.NewWriter(file)
			writeErr := writer.Write(Header)
			writer.Flush()
			closeErr := file.Close()
			if err := errors.Join(writeErr, writer.Error(), closeErr); err != nil {
				return nil, fmt.Errorf("validationlog: write header: %w", err)
			}
		}
	}

	return &CSVLog{path: path}, nil
}

func (l *CSVLog) Path() string {
	return l.path
}

// Record appends rec. Failures are logged and swallowed: losing one log row
// must never fail a probe.
func (l *CSVLog) Record(rec domain.ValidationRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.appendLocked(rec); err != nil {
		log.Error("Error logging proxy validation", "proxy", rec.Proxy, "error", err)
	}
}

func (l *CSVLog) appendLocked(rec domain.ValidationRecord) error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	writeErr := writer.Write(row(rec))
	writer.Flush()

	return errors.Join(writeErr, writer.Error(), file.Close())
}

func row(rec domain.ValidationRecord) []string {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	latency := ""
	if rec.ResponseTimeMs != nil {
		latency = strconv.FormatInt(*rec.ResponseTimeMs, 10)
	}

	return []string{
		ts.Format(time.RFC3339Nano),
		rec.Proxy,
		rec.ProxyType.String(),
		rec.SourceOrExisting(),
		string(rec.Status),
		latency,
		rec.TestURL,
	}
}
