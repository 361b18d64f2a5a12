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
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank command status %#v", results[2])
	}
}

func TestVersionReturnsFirstLine(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	script := []byte("#!/bin/sh\necho 'ffmpeg version 7.1 Copyright (c) 2000-2024'\necho 'built with gcc'\n")
	if err := os.WriteFile(bin, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	got, err := Version(context.Background(), bin)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if got != "ffmpeg version 7.1 Copyright (c) 2000-2024" {
		t.Fatalf("Version = %q", got)
	}
}

func TestVersionFailsForMissingBinary(t *testing.T) {
	if _, err := Version(context.Background(), "clearly-not-present-binary"); err == nil {
		t.Fatal("expected error")
	}
}
