package app

import (
	"strings"
	"time"

	"github.com/specialistvlad/sweepgrid/internal/sweeperr"
)

// DefaultLedgerPath is where run results are recorded unless overridden.
const DefaultLedgerPath = ".sweepgrid/ledger.db"

// Config holds all the necessary configuration for an App instance to run.
// Zero values mean "use what the sweep files say".
type Config struct {
	Paths []string // sweep files or directories

	// Selection.
	Sweeps      []string
	Only        []string
	RerunFailed string

	// Environment overrides.
	Tracking        string
	Devices         []int
	DatasetRoot     string
	DeviceCount     *int
	Timeout         time.Duration
	ParallelDevices bool

	LedgerPath      string
	LogFormat       string
	LogLevel        string
	LogFile         string
	HealthcheckPort int
	JSON            bool
}

// NewConfig validates cfg and fills defaults. Every problem is a
// ConfigError naming the offending option.
func NewConfig(cfg Config) (*Config, error) {
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, sweeperr.Configf("log-format", "must be 'text' or 'json', got %q", cfg.LogFormat)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return nil, sweeperr.Configf("log-level", "must be 'debug', 'info', 'warn', or 'error', got %q", cfg.LogLevel)
	}

	if cfg.Timeout < 0 {
		return nil, sweeperr.Configf("timeout", "must not be negative")
	}
	if cfg.DeviceCount != nil && *cfg.DeviceCount < 0 {
		return nil, sweeperr.Configf("device-count", "must not be negative")
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, sweeperr.Configf("healthcheck-port", "must be between 0 and 65535")
	}
	for _, d := range cfg.Devices {
		if d < 0 {
			return nil, sweeperr.Configf("devices", "device index %d is negative", d)
		}
	}
	if cfg.RerunFailed != "" {
		if len(cfg.Only) > 0 {
			return nil, sweeperr.Configf("only", "cannot be combined with --rerun-failed")
		}
		if cfg.LedgerPath == "" {
			return nil, sweeperr.Configf("ledger", "--rerun-failed needs a ledger")
		}
	}
	return &cfg, nil
}
