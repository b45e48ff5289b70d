package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PYDIRECTOR_TARGETS", "")
	t.Setenv("PYDIRECTOR_LOG_LEVEL", "")
	os.Unsetenv("PYDIRECTOR_TARGETS")
	os.Unsetenv("PYDIRECTOR_LOG_LEVEL")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != filepath.Join(dir, "actions.db") {
		t.Errorf("unexpected DBPath: %s", cfg.DBPath)
	}
	if cfg.TargetsFile != filepath.Join(dir, "target.csv") {
		t.Errorf("unexpected TargetsFile: %s", cfg.TargetsFile)
	}
	if cfg.SettleDelay != 500*time.Millisecond {
		t.Errorf("unexpected SettleDelay: %s", cfg.SettleDelay)
	}
	if cfg.WaitPoll != 100*time.Millisecond {
		t.Errorf("unexpected WaitPoll: %s", cfg.WaitPoll)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "targets_file: ids.csv\nsettle_delay: 50ms\nwait_poll: 20ms\nlog_level: debug\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PYDIRECTOR_LOG_LEVEL", "error")
	t.Setenv("PYDIRECTOR_TARGETS", "")
	os.Unsetenv("PYDIRECTOR_TARGETS")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TargetsFile != filepath.Join(dir, "ids.csv") {
		t.Errorf("relative targets_file not resolved: %s", cfg.TargetsFile)
	}
	if cfg.SettleDelay != 50*time.Millisecond || cfg.WaitPoll != 20*time.Millisecond {
		t.Errorf("durations not applied: settle=%s poll=%s", cfg.SettleDelay, cfg.WaitPoll)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("env override not applied: %s", cfg.LogLevel)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("settle_delay: [oops"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}
