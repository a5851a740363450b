package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCompose(t *testing.T) {
	root := t.TempDir()
	origin := filepath.Join(root, "labels.csv")
	if err := os.WriteFile(origin, []byte("file,text\nrec1.wav,Walk 5 km.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	speaker := filepath.Join(root, "data", "speaker1")
	if err := os.MkdirAll(speaker, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(speaker, "rec1.wav"), []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	written, err := runCompose(origin, filepath.Join(root, "data"), filepath.Join(root, "out"), 0, 1, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("expected one dataset file, got %v", written)
	}
	data, err := os.ReadFile(written[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "walk five kilometer") {
		t.Fatalf("expected normalized transcript, got:\n%s", data)
	}
}

func TestRunComposeRejectsFileAsDataDir(t *testing.T) {
	root := t.TempDir()
	origin := filepath.Join(root, "labels.csv")
	if err := os.WriteFile(origin, []byte("a,b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := runCompose(origin, origin, filepath.Join(root, "out"), 0, 1, logger); err == nil {
		t.Fatal("expected error for non-directory data path")
	}
}
