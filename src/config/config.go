package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"backtest-engine/src/engine"
)

// Config carries every tunable of the service, loaded once at startup.
type Config struct {
	Port              string
	ShutdownTimeout   time.Duration
	MaxConcurrentRuns int64

	// PositionLimit applies to every symbol without an explicit override.
	PositionLimit  int64
	PositionLimits map[string]int64

	// RunDataFile switches the binary into batch mode: run once and exit.
	RunDataFile   string
	RunTradesFile string
}

// Load reads configuration from the environment, with a .env file as an
// optional source for local runs.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            ":8080",
		ShutdownTimeout: 10 * time.Second,
		PositionLimit:   engine.DefaultPositionLimit,
		PositionLimits:  make(map[string]int64),
		RunDataFile:     os.Getenv("RUN_DATA_FILE"),
		RunTradesFile:   os.Getenv("RUN_TRADES_FILE"),
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = ":" + port
	}

	if env := os.Getenv("SHUTDOWN_TIMEOUT"); env != "" {
		if parsed, err := time.ParseDuration(env); err == nil && parsed > 0 {
			cfg.ShutdownTimeout = parsed
		}
	}

	if env := os.Getenv("MAX_CONCURRENT_RUNS"); env != "" {
		if parsed, err := strconv.ParseInt(env, 10, 64); err == nil && parsed > 0 {
			cfg.MaxConcurrentRuns = parsed
		}
	}

	if env := os.Getenv("POSITION_LIMIT"); env != "" {
		if parsed, err := strconv.ParseInt(env, 10, 64); err == nil && parsed >= 0 {
			cfg.PositionLimit = parsed
		} else {
			log.Warn().Str("value", env).Msg("Invalid POSITION_LIMIT, using default")
		}
	}

	cfg.PositionLimits = parsePositionLimits(os.Getenv("POSITION_LIMITS"))

	return cfg
}

// parsePositionLimits reads per-symbol overrides in the form
// "ABRA=60,DROWZEE=40". Malformed entries are skipped with a warning.
func parsePositionLimits(env string) map[string]int64 {
	limits := make(map[string]int64)
	if env == "" {
		return limits
	}
	for _, entry := range strings.Split(env, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		symbol, value, ok := strings.Cut(entry, "=")
		if !ok {
			log.Warn().Str("entry", entry).Msg("Invalid POSITION_LIMITS entry, skipping")
			continue
		}
		limit, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || limit < 0 {
			log.Warn().Str("entry", entry).Msg("Invalid POSITION_LIMITS entry, skipping")
			continue
		}
		limits[strings.TrimSpace(symbol)] = limit
	}
	return limits
}
