package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatal("expected detail message for missing binary")
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestFFmpegProberMissingBinaryIsNotAnError(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	prober := NewFFmpegProber("ffmpeg")
	available, err := prober.Probe(context.Background())
	if err != nil {
		t.Fatalf("expected no error for missing binary, got %v", err)
	}
	if available {
		t.Fatal("expected unavailable result for missing binary")
	}
}

func TestFFmpegProberReportsWorkingBinary(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	prober := NewFFmpegProber("ffmpeg")
	available, err := prober.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if !available {
		t.Fatal("expected stubbed ffmpeg to be available")
	}
}

func TestFFmpegProberNonZeroVersionExit(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	prober := NewFFmpegProber("ffmpeg")
	available, err := prober.Probe(context.Background())
	if err != nil {
		t.Fatalf("expected no probe-mechanism error, got %v", err)
	}
	if available {
		t.Fatal("expected binary failing the version query to be unavailable")
	}
}

func TestFFmpegProberDefaultsBinaryName(t *testing.T) {
	prober := NewFFmpegProber("  ")
	if prober.binary != "ffmpeg" {
		t.Fatalf("expected default binary name, got %q", prober.binary)
	}
}
