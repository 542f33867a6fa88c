package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		format, out, want string
	}{
		{"", "", "json"},
		{"", "out.CSV", "csv"},
		{"", "out.funscript", "json"},
		{"JSON", "out.csv", "json"},
	}
	for _, tt := range tests {
		if got := outputFormat(tt.format, tt.out); got != tt.want {
			t.Errorf("outputFormat(%q, %q) = %q, want %q", tt.format, tt.out, got, tt.want)
		}
	}
}

func TestRun_CSVWithPipeline(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	pipe := filepath.Join(dir, "pipeline.yaml")
	out := filepath.Join(dir, "out.csv")

	if err := os.WriteFile(in, []byte("0,0\n500,100\n1000,0\n1500,100\n2000,0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pipe, []byte("version: 1\nmodifiers:\n  - kind: double\n  - kind: offset\n    options:\n      offset: 100\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := run(in, pipe, "", out); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), "100,0\n1100,100\n2100,0\n"; got != want {
		t.Errorf("unexpected output %q, want %q", got, want)
	}
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{"actions":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := run(filepath.Join(dir, "missing.json"), "", "", ""); err == nil {
		t.Error("expected error for missing input")
	}
	if err := run(empty, "", "", filepath.Join(dir, "out.json")); err == nil {
		t.Error("expected error for empty script")
	}
	if err := run(empty, filepath.Join(dir, "missing.yaml"), "", ""); err == nil {
		t.Error("expected error for missing pipeline")
	}
}
