package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsWithNoOverrides(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default HTTP address, got %q", cfg.HTTPAddr)
	}
	if cfg.MaxHistory != 8 {
		t.Fatalf("expected default max history 8, got %d", cfg.MaxHistory)
	}
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	cfg, err := Load([]string{"-http-addr", ":9090", "-max-history", "4", "-broadcast-interval", "5s"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected flag override, got %q", cfg.HTTPAddr)
	}
	if cfg.MaxHistory != 4 {
		t.Fatalf("expected flag override, got %d", cfg.MaxHistory)
	}
	if cfg.BroadcastInterval != 5*time.Second {
		t.Fatalf("expected flag override, got %v", cfg.BroadcastInterval)
	}
}

func TestLoadEnvOverridesDefaultsButNotFlags(t *testing.T) {
	t.Setenv("APILOGD_HTTP_ADDR", ":7070")
	t.Setenv("APILOGD_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Fatalf("expected env override, got %q", cfg.HTTPAddr)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "a:9092" {
		t.Fatalf("expected 2 brokers parsed from env, got %v", cfg.KafkaBrokers)
	}

	cfg, err = Load([]string{"-http-addr", ":6060"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":6060" {
		t.Fatalf("expected flag to win over env, got %q", cfg.HTTPAddr)
	}

	_ = os.Unsetenv("APILOGD_HTTP_ADDR")
}
