package config

import (
	"os"
	"path/filepath"
	"testing"
)

const minimalYAML = `
environment: test
sink:
  type: memory
feed:
  instruments: [AAPL, MSFT]
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Discovery.WindowDays != 252 {
		t.Fatalf("window_days = %d, want 252", c.Discovery.WindowDays)
	}
	if c.Signals.EntryZ != 2.0 || c.Signals.ExitZ != 0.5 || c.Signals.StopZ != 3.5 {
		t.Fatalf("unexpected signal thresholds: %+v", c.Signals)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("DISCOVERY_WORKERS", "12")
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("SINK", "memory")

	c, err := LoadWithEnv(writeConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Discovery.Workers != 12 {
		t.Fatalf("workers = %d, want 12", c.Discovery.Workers)
	}
	if c.Server.Port != 9191 {
		t.Fatalf("port = %d, want 9191", c.Server.Port)
	}
}

func TestLoadWithEnvIgnoresBadInts(t *testing.T) {
	t.Setenv("DISCOVERY_WORKERS", "lots")

	c, err := LoadWithEnv(writeConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	base, err := Load(writeConfig(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Discovery.Workers != base.Discovery.Workers {
		t.Fatalf("workers = %d, want default %d", c.Discovery.Workers, base.Discovery.Workers)
	}
}
