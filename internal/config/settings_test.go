package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.Addr != DefaultAddr {
		t.Errorf("Expected default addr %q, got %q", DefaultAddr, s.Addr)
	}
	if s.OutputDir != DefaultOutputDir {
		t.Errorf("Expected default output dir %q, got %q", DefaultOutputDir, s.OutputDir)
	}
	if s.StreamTimeout != DefaultStreamTimeout {
		t.Errorf("Expected default stream timeout %v, got %v", DefaultStreamTimeout, s.StreamTimeout)
	}
	if s.JobTTL != DefaultJobTTL {
		t.Errorf("Expected default job TTL %v, got %v", DefaultJobTTL, s.JobTTL)
	}
}

func TestLoadFlagsOverride(t *testing.T) {
	s, err := Load([]string{"-addr", ":9999", "-output-dir", "/data/dl", "-stream-timeout", "5m"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.Addr != ":9999" {
		t.Errorf("Expected flag addr, got %q", s.Addr)
	}
	if s.OutputDir != "/data/dl" {
		t.Errorf("Expected flag output dir, got %q", s.OutputDir)
	}
	if s.StreamTimeout != 5*time.Minute {
		t.Errorf("Expected 5m stream timeout, got %v", s.StreamTimeout)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv(EnvAddr, ":7070")
	t.Setenv(EnvStreamTimeout, "2m")

	s, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.Addr != ":7070" {
		t.Errorf("Expected env addr, got %q", s.Addr)
	}
	if s.StreamTimeout != 2*time.Minute {
		t.Errorf("Expected env stream timeout 2m, got %v", s.StreamTimeout)
	}
}

func TestLoadClampsOutOfRange(t *testing.T) {
	s, err := Load([]string{"-stream-timeout", "1s", "-job-ttl", "48h", "-cleanup-interval", "1ms"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.StreamTimeout != MinStreamTimeout {
		t.Errorf("Expected stream timeout clamped to %v, got %v", MinStreamTimeout, s.StreamTimeout)
	}
	if s.JobTTL != MaxJobTTL {
		t.Errorf("Expected job TTL clamped to %v, got %v", MaxJobTTL, s.JobTTL)
	}
	if s.CleanupInterval != MinCleanupInterval {
		t.Errorf("Expected cleanup interval clamped to %v, got %v", MinCleanupInterval, s.CleanupInterval)
	}
}

func TestLoadClampsStaleFileAge(t *testing.T) {
	s, err := Load([]string{"-stale-file-age", "1s"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.StaleFileAge != MinStaleFileAge {
		t.Errorf("Expected stale file age clamped to %v, got %v", MinStaleFileAge, s.StaleFileAge)
	}

	s, err = Load([]string{"-stale-file-age", "720h"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.StaleFileAge != MaxStaleFileAge {
		t.Errorf("Expected stale file age clamped to %v, got %v", MaxStaleFileAge, s.StaleFileAge)
	}
}

func TestEnvDurationPlainSeconds(t *testing.T) {
	t.Setenv(EnvJobTTL, "120")

	s, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.JobTTL != 2*time.Minute {
		t.Errorf("Expected plain integer treated as seconds, got %v", s.JobTTL)
	}
}

func TestLoadBadFlag(t *testing.T) {
	if _, err := Load([]string{"-stream-timeout", "banana"}); err == nil {
		t.Error("Expected error for unparseable flag")
	}
}
