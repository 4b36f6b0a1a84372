package deps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"msconvert/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "ml-run-process")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Sorter", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
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
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected status for unset command: %#v", results[2])
	}
}

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	if got := CheckDirectoryAccess("logs", dir); !got.Passed {
		t.Fatalf("expected access ok, got %#v", got)
	}

	missing := CheckDirectoryAccess("logs", filepath.Join(dir, "absent"))
	if missing.Passed || missing.Detail != "does not exist" {
		t.Fatalf("unexpected missing result %#v", missing)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := CheckDirectoryAccess("logs", file); got.Passed || got.Detail != "is not a directory" {
		t.Fatalf("unexpected file result %#v", got)
	}
}

func TestSorterRequirementsUseConfiguredBinary(t *testing.T) {
	cfg := config.Default()
	cfg.Sorter.Binary = "/opt/mountainlab/bin/ml-run-process"

	reqs := SorterRequirements(&cfg)
	if len(reqs) != 1 || reqs[0].Command != cfg.Sorter.Binary || reqs[0].Optional {
		t.Fatalf("unexpected requirements: %#v", reqs)
	}
	if !strings.Contains(reqs[0].Description, "ms4_geoff.sort") {
		t.Fatalf("expected pipeline in description, got %q", reqs[0].Description)
	}
}
