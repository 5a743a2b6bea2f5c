package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"proxywarden/internal/domain"
	"proxywarden/internal/support"
)

const poolTimestampLayout = "2006-01-02 15:04:05"

// EnsureDataDir creates the data directory. Failing to do so is fatal for a
// run.
func EnsureDataDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: create data dir %s: %w", dir, err)
	}
	return nil
}

// ReadPool loads a pool file: one address per line, blank lines and '#'
// comments ignored. A missing or unreadable file yields an empty pool.
func ReadPool(path string) map[string]struct{} {
	proxies := make(map[string]struct{})

	file, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("Reading pool file failed", "path", path, "error", err)
		}
		return proxies
	}
	defer file.Close()

	err = support.EachLine(file, func(line string) {
		if line == "" || strings.HasPrefix(line, "#") {
			return
		}
		proxies[line] = struct{}{}
	})
	if err != nil {
		log.Warn("Reading pool file failed", "path", path, "error", err)
	}

	return proxies
}

// WritePoolFile replaces path with a header and the sorted proxies. The new
// content is written to a temporary file in the same directory and renamed
// over the old one, so readers never see a partial pool.
func WritePoolFile(path string, t domain.ProxyType, proxies []string, now time.Time) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Validated %s proxies - Updated: %s\n", t.Upper(), now.Format(poolTimestampLayout))
	fmt.Fprintf(&b, "# Total proxies: %d\n", len(proxies))
	b.WriteString("# Format: IP:PORT\n\n")
	for _, proxy := range proxies {
		b.WriteString(proxy)
		b.WriteByte('\n')
	}

	return writeAtomic(path, []byte(b.String()))
}

// RemoveFromPoolFile rewrites path without the given addresses, keeping every
// other line as it was. It returns how many lines were dropped; the file is
// left untouched when nothing matched.
func RemoveFromPoolFile(path string, remove map[string]struct{}) (int, error) {
	if len(remove) == 0 {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("storage: read %s: %w", path, err)
	}

	lines := strings.SplitAfter(string(data), "\n")
	kept := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		if _, ok := remove[strings.TrimSpace(line)]; ok {
			removed++
			continue
		}
		kept = append(kept, line)
	}

	if removed == 0 {
		return 0, nil
	}
	if err := writeAtomic(path, []byte(strings.Join(kept, ""))); err != nil {
		return 0, err
	}
	return removed, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage: create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("storage: write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("storage: sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: replace %s: %w", path, err)
	}
	return nil
}
