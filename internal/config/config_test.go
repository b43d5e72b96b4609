package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "groupwire.yaml")
	if err := os.WriteFile(path, []byte("identity:\n  key_file: /tmp/key\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timing.GetTickInterval() != defaultTickInterval {
		t.Fatalf("expected default tick interval, got %v", cfg.Timing.GetTickInterval())
	}
	if cfg.Timing.GetConfirmedPeerTimeout() != 82*time.Second {
		t.Fatalf("expected default confirmed timeout, got %v", cfg.Timing.GetConfirmedPeerTimeout())
	}
	if !cfg.Onion.IsEnabled() {
		t.Fatal("expected onion announce to default to enabled")
	}
	if cfg.Onion.GetMaxEntries() != 32 {
		t.Fatalf("expected default max entries 32, got %d", cfg.Onion.GetMaxEntries())
	}
}

func TestLoadRequiresKeyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "groupwire.yaml")
	if err := os.WriteFile(path, []byte("identity:\n  key_file: \"\"\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing key_file")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/groupwire.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestOnionConfigExplicitDisable(t *testing.T) {
	f := false
	o := OnionConfig{Enabled: &f}
	if o.IsEnabled() {
		t.Fatal("expected explicit false to be respected")
	}
}
