package app

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
)

// Options are the command line flags. Every flag can also be set through
// the environment variable named in its env tag.
type Options struct {
	DataDir  string `long:"data-dir" env:"PROXYWARDEN_DATA_DIR" default:"data" description:"Directory holding pools, ledger and validation log"`
	Settings string `long:"settings" env:"PROXYWARDEN_SETTINGS" description:"Settings file (default: <data-dir>/settings.json)"`
	Sources  string `long:"sources" env:"PROXYWARDEN_SOURCES" default:"sources.csv" description:"CSV file listing proxy sources (type,link)"`
	Workers  int    `long:"workers" env:"PROXYWARDEN_WORKERS" description:"Probe workers, clamped to 25-150 (default: CPU based)"`

	Debug    bool `long:"debug" env:"PROXYWARDEN_DEBUG" description:"Enable debug logging"`
	Progress bool `long:"progress" description:"Show a progress bar while probing"`
	Version  bool `long:"version" description:"Print version and exit"`

	RedisURL    string        `long:"redis-url" env:"REDIS_URL" description:"Mirror pools to Redis and hold a run lock"`
	RedisPrefix string        `long:"redis-prefix" env:"PROXYWARDEN_REDIS_PREFIX" default:"proxywarden:" description:"Key prefix for Redis keys"`
	LockWait    time.Duration `long:"lock-wait" env:"PROXYWARDEN_LOCK_WAIT" default:"0s" description:"How long to wait for another run to release the lock"`

	Database  bool   `long:"db" env:"PROXYWARDEN_DB" description:"Store validation records in Postgres (DB_* variables)"`
	GeoLiteDB string `long:"geolite-db" env:"PROXYWARDEN_GEOLITE_DB" description:"GeoLite2 Country database used to tag stored records"`
}

// ParseOptions parses args. The returned bool is true when help was printed
// and the program should exit without doing anything.
func ParseOptions(args []string) (Options, bool, error) {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Name = "proxywarden"

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return opts, true, nil
		}
		return opts, false, err
	}

	return opts, false, nil
}

func (o Options) SettingsPath() string {
	if o.Settings != "" {
		return o.Settings
	}
	return filepath.Join(o.DataDir, "settings.json")
}

func (o Options) LedgerPath() string {
	return filepath.Join(o.DataDir, "dead_proxies.txt")
}

func (o Options) ValidationLogPath() string {
	return filepath.Join(o.DataDir, "proxy_validation_log.csv")
}
