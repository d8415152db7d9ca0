package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"remux/internal/testsupport"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	output, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init returned error: %v\noutput:\n%s", err, output)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample config: %v", err)
	}
	if !strings.Contains(string(data), "[ffmpeg]") {
		t.Fatalf("expected ffmpeg section in sample, got:\n%s", data)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("# existing"), 0o644); err != nil {
		t.Fatalf("write existing config: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error without --overwrite")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("expected overwrite to succeed, got %v", err)
	}
}

func TestConfigPathPrintsResolvedLocation(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	output, err := runCommand(t, "--config", target, "config", "path")
	if err != nil {
		t.Fatalf("config path returned error: %v", err)
	}
	if strings.TrimSpace(output) != target {
		t.Fatalf("expected %q, got %q", target, strings.TrimSpace(output))
	}
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfgPath := writeConfigFile(t, cfg)

	output, err := runCommand(t, "--config", cfgPath, "config", "show")
	if err != nil {
		t.Fatalf("config show returned error: %v\noutput:\n%s", err, output)
	}
	if !strings.Contains(output, cfg.Paths.LogDir) {
		t.Fatalf("expected resolved log dir in output, got:\n%s", output)
	}
}
