package config

import (
	"testing"
	"time"

	"backtest-engine/src/engine"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "SHUTDOWN_TIMEOUT", "MAX_CONCURRENT_RUNS", "POSITION_LIMIT", "POSITION_LIMITS", "RUN_DATA_FILE", "RUN_TRADES_FILE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != ":8080" {
		t.Errorf("Expected default port :8080, got: %s", cfg.Port)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected default shutdown timeout 10s, got: %s", cfg.ShutdownTimeout)
	}
	if cfg.PositionLimit != engine.DefaultPositionLimit {
		t.Errorf("Expected default position limit %d, got: %d", engine.DefaultPositionLimit, cfg.PositionLimit)
	}
	if len(cfg.PositionLimits) != 0 {
		t.Errorf("Expected no per-symbol limits, got: %v", cfg.PositionLimits)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("MAX_CONCURRENT_RUNS", "2")
	t.Setenv("POSITION_LIMIT", "75")
	t.Setenv("POSITION_LIMITS", "ABRA=60, DROWZEE=40")

	cfg := Load()

	if cfg.Port != ":3000" {
		t.Errorf("Expected port :3000, got: %s", cfg.Port)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown timeout 5s, got: %s", cfg.ShutdownTimeout)
	}
	if cfg.MaxConcurrentRuns != 2 {
		t.Errorf("Expected max concurrent runs 2, got: %d", cfg.MaxConcurrentRuns)
	}
	if cfg.PositionLimit != 75 {
		t.Errorf("Expected position limit 75, got: %d", cfg.PositionLimit)
	}
	if cfg.PositionLimits["ABRA"] != 60 || cfg.PositionLimits["DROWZEE"] != 40 {
		t.Errorf("Expected per-symbol limits ABRA=60 DROWZEE=40, got: %v", cfg.PositionLimits)
	}
}

func TestParsePositionLimitsSkipsMalformedEntries(t *testing.T) {
	limits := parsePositionLimits("ABRA=60,bogus,DROWZEE=-5,SUDOWOODO=40")

	if len(limits) != 2 {
		t.Errorf("Expected 2 valid entries, got: %v", limits)
	}
	if limits["ABRA"] != 60 || limits["SUDOWOODO"] != 40 {
		t.Errorf("Expected ABRA=60 SUDOWOODO=40, got: %v", limits)
	}
}
