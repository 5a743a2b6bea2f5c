package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
)

// Config holds the tunables of a refresh run. It is read from a JSON settings
// file; fields left at zero fall back to the defaults below.
type Config struct {
	Checker struct {
		Timeout     uint32   `json:"timeout"` // milliseconds per attempt
		MaxAttempts uint32   `json:"max_attempts"`
		Workers     uint32   `json:"workers"`
		ProbeRate   float64  `json:"probe_rate"` // probe starts per second, 0 = unlimited
		TestURLs    []string `json:"test_urls"`
	} `json:"checker"`

	Rotation struct {
		BatchSize uint32 `json:"batch_size"`
	} `json:"rotation"`

	Persistence struct {
		SaveInterval  Timer `json:"save_interval"`
		DeadRetention Timer `json:"dead_retention"`
	} `json:"persistence"`

	Scraper struct {
		Timeout        uint32   `json:"timeout"` // milliseconds
		BlockedSources []string `json:"blocked_sources"`
	} `json:"scraper"`
}

const (
	DefaultProbeTimeout  = 3 * time.Second
	DefaultMaxAttempts   = 2
	MaxProbeAttempts     = 2
	DefaultBatchSize     = 50
	DefaultSaveInterval  = 10 * time.Second
	DefaultDeadRetention = 30 * 24 * time.Hour
	DefaultFetchTimeout  = 30 * time.Second

	MinWorkers = 25
	MaxWorkers = 150
)

var (
	//go:embed default_settings.json
	defaultConfig []byte

	DefaultTestURLs = []string{
		"http://httpbin.org/ip",
		"https://api.ipify.org?format=json",
		"http://icanhazip.com",
	}
)

// ReadSettings loads the settings file at path. A missing file is created
// from the embedded defaults.
func ReadSettings(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: read settings: %w", err)
		}

		log.Warn("Settings file not found, creating with default configuration", "path", path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return Config{}, fmt.Errorf("config: create settings directory: %w", err)
		}
		if err := os.WriteFile(path, defaultConfig, 0o644); err != nil {
			return Config{}, fmt.Errorf("config: write default settings: %w", err)
		}
		data = defaultConfig
	}

	return ParseSettings(data)
}

func ParseSettings(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal settings: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the embedded default configuration.
func Default() Config {
	cfg, err := ParseSettings(defaultConfig)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

func (cfg Config) Validate() error {
	if cfg.Checker.ProbeRate < 0 {
		return fmt.Errorf("config: checker.probe_rate must not be negative")
	}
	if cfg.Checker.MaxAttempts > MaxProbeAttempts {
		return fmt.Errorf("config: checker.max_attempts must be at most %d, got %d", MaxProbeAttempts, cfg.Checker.MaxAttempts)
	}
	for _, raw := range cfg.Checker.TestURLs {
		if !isHTTPURL(raw) {
			return fmt.Errorf("config: invalid test url %q", raw)
		}
	}
	return nil
}

func (cfg Config) ProbeTimeout() time.Duration {
	if cfg.Checker.Timeout == 0 {
		return DefaultProbeTimeout
	}
	return time.Duration(cfg.Checker.Timeout) * time.Millisecond
}

func (cfg Config) MaxAttempts() int {
	if cfg.Checker.MaxAttempts == 0 {
		return DefaultMaxAttempts
	}
	return min(int(cfg.Checker.MaxAttempts), MaxProbeAttempts)
}

func (cfg Config) TestURLs() []string {
	if len(cfg.Checker.TestURLs) == 0 {
		return append([]string(nil), DefaultTestURLs...)
	}
	return append([]string(nil), cfg.Checker.TestURLs...)
}

// Workers returns the configured worker count clamped to [MinWorkers,
// MaxWorkers]. Zero selects the CPU based default.
func (cfg Config) Workers() int {
	return ClampWorkers(int(cfg.Checker.Workers))
}

func DefaultWorkers() int {
	return clamp(runtime.NumCPU()*8, MinWorkers, MaxWorkers)
}

func ClampWorkers(n int) int {
	if n <= 0 {
		return DefaultWorkers()
	}
	return clamp(n, MinWorkers, MaxWorkers)
}

func (cfg Config) BatchSize() int {
	if cfg.Rotation.BatchSize == 0 {
		return DefaultBatchSize
	}
	return int(cfg.Rotation.BatchSize)
}

func (cfg Config) SaveInterval() time.Duration {
	if cfg.Persistence.SaveInterval.IsZero() {
		return DefaultSaveInterval
	}
	return CalculateBetweenTime(cfg.Persistence.SaveInterval)
}

func (cfg Config) DeadRetention() time.Duration {
	if cfg.Persistence.DeadRetention.IsZero() {
		return DefaultDeadRetention
	}
	return CalculateBetweenTime(cfg.Persistence.DeadRetention)
}

func (cfg Config) FetchTimeout() time.Duration {
	if cfg.Scraper.Timeout == 0 {
		return DefaultFetchTimeout
	}
	return time.Duration(cfg.Scraper.Timeout) * time.Millisecond
}

// PerformanceTier classifies a worker count for the startup banner.
func PerformanceTier(workers int) string {
	switch {
	case workers >= 120:
		return "HIGH-PERFORMANCE"
	case workers >= 75:
		return "BALANCED"
	default:
		return "CONSERVATIVE"
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
