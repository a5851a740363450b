package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestCSVSink(t *testing.T) {
	var buf strings.Builder
	if err := drive(NewCSVSink(&buf)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	want := [][]string{
		{"audio_path", "reference_transcript", "deepspeech", "deepspeech_latency", "deepspeech_distance", "watson", "watson_latency", "watson_distance"},
		{"a.wav", "hello world", "hello word", "1.250", "1", "hello world", "0.500", "0"},
		{"b.wav", "good night", "good night", "0.750", "0", FailedCell, "", ""},
	}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("unexpected records:\n%v\nwant\n%v", records, want)
	}
}

func TestCreateCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	sink, err := CreateCSVSink(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := drive(sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 3 {
		t.Fatalf("expected 3 lines, got %d", lines)
	}
}
