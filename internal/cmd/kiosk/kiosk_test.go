package kiosk

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("kiosk", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8081 {
		t.Fatalf("port = %d, want 8081", cfg.Port)
	}
}

func TestParseConfigFlagOverridesEnv(t *testing.T) {
	t.Setenv("VITRINE_KIOSK_PORT", "9191")
	fs := flag.NewFlagSet("kiosk", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-port", "7171"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 7171 {
		t.Fatalf("port = %d, want flag override", cfg.Port)
	}
}
