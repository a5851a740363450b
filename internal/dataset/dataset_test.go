package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadSamples(t *testing.T) {
	input := "wav_filename,wav_filesize,transcript\n" +
		"a.wav,100,the quick brown fox\n" +
		"\"b, c.wav\",200,\"hello, world\"\n"
	samples, err := Read(strings.NewReader(input), "")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].AudioPath != "a.wav" || samples[0].ReferenceTranscript != "the quick brown fox" {
		t.Fatalf("unexpected first sample: %+v", samples[0])
	}
	if samples[1].AudioPath != "b, c.wav" || samples[1].ReferenceTranscript != "hello, world" {
		t.Fatalf("unexpected second sample: %+v", samples[1])
	}
}

func TestReadEmptyTranscriptAllowed(t *testing.T) {
	samples, err := Read(strings.NewReader("f,s,t\na.wav,1,\n"), "")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(samples) != 1 || samples[0].ReferenceTranscript != "" {
		t.Fatalf("unexpected samples: %+v", samples)
	}
}

func TestReadMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"short header":     "a,b\n",
		"short row":        "f,s,t\na.wav,1\n",
		"empty path":       "f,s,t\n,1,label\n",
		"unbalanced quote": "f,s,t\n\"a.wav,1,label\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(input), "")
			var dsErr *Error
			if !errors.As(err, &dsErr) {
				t.Fatalf("expected *dataset.Error, got %v", err)
			}
		})
	}
}

func TestLoadResolvesRelativeToDataset(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "clip.wav"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	csvPath := filepath.Join(dir, "set.csv")
	if err := os.WriteFile(csvPath, []byte("f,s,t\nclip.wav,1,hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	samples, err := Load(csvPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if samples[0].AudioPath != filepath.Join(dir, "clip.wav") {
		t.Fatalf("expected resolved path, got %s", samples[0].AudioPath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"))
	var dsErr *Error
	if !errors.As(err, &dsErr) {
		t.Fatalf("expected *dataset.Error, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist cause, got %v", err)
	}
}
