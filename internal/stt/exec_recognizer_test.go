package stt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/tonanhngo/voice-ehr/internal/config"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "infer.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "output_graph.pb")
	if err := os.WriteFile(path, []byte("model"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecRecognizerJSONOutput(t *testing.T) {
	script := writeScript(t, `echo '{"text":"hello world","confidence":0.5}'`)
	cfg := config.BackendConfig{Command: script, Model: writeModel(t), SampleRate: 16000, BeamWidth: 1024}
	rec, err := NewExecRecognizer("deepspeech", cfg, newLogger())
	if err != nil {
		t.Fatalf("new exec: %v", err)
	}
	res, err := rec.Transcribe(context.Background(), testClip(16000))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "hello world" || res.Confidence != 0.5 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestExecRecognizerPassesArguments(t *testing.T) {
	script := writeScript(t, `echo "$@"`)
	model := writeModel(t)
	cfg := config.BackendConfig{
		Command:              script,
		Model:                model,
		LM:                   model,
		Trie:                 model,
		SampleRate:           16000,
		BeamWidth:            1024,
		LMWeight:             1.75,
		WordCountWeight:      1,
		ValidWordCountWeight: 1,
	}
	rec, err := NewExecRecognizer("deepspeech", cfg, newLogger())
	if err != nil {
		t.Fatal(err)
	}
	res, err := rec.Transcribe(context.Background(), testClip(16000))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	for _, want := range []string{"--audio", "--model " + model, "--lm_weight 1.75", "--word_count_weight 1.00", "--beam_width 1024"} {
		if !strings.Contains(res.Text, want) {
			t.Fatalf("expected %q in arguments %q", want, res.Text)
		}
	}
}

func TestExecRecognizerErrors(t *testing.T) {
	model := writeModel(t)
	if _, err := NewExecRecognizer("deepspeech", config.BackendConfig{Command: writeScript(t, "true"), Model: filepath.Join(t.TempDir(), "missing.pb")}, newLogger()); err == nil {
		t.Fatal("expected error for unreadable model")
	}

	rec, err := NewExecRecognizer("deepspeech", config.BackendConfig{Command: writeScript(t, "true"), Model: model, SampleRate: 16000}, newLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Transcribe(context.Background(), testClip(8000)); !errors.Is(err, ErrUnsupportedAudio) {
		t.Fatalf("expected unsupported audio, got %v", err)
	}
	if _, err := rec.Transcribe(context.Background(), testClip(16000)); !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("expected no speech for empty output, got %v", err)
	}

	failing, err := NewExecRecognizer("deepspeech", config.BackendConfig{Command: writeScript(t, "echo boom >&2; exit 3"), Model: model, SampleRate: 16000}, newLogger())
	if err != nil {
		t.Fatal(err)
	}
	_, err = failing.Transcribe(context.Background(), testClip(16000))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestExecRecognizerLatencyExcludesModelLoad(t *testing.T) {
	cases := map[string]struct {
		script string
		want   time.Duration
	}{
		"json inference_seconds": {`sleep 0.4; echo '{"text":"hello","inference_seconds":0.05}'`, 50 * time.Millisecond},
		"json latency":           {`sleep 0.4; echo '{"text":"hello","latency":0.25}'`, 250 * time.Millisecond},
		"stderr timing":          {`sleep 0.4; echo "Inference took 0.120s for 1.000s audio file." >&2; echo hello`, 120 * time.Millisecond},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.BackendConfig{Command: writeScript(t, tc.script), Model: writeModel(t), SampleRate: 16000}
			rec, err := NewExecRecognizer("deepspeech", cfg, newLogger())
			if err != nil {
				t.Fatal(err)
			}
			res, err := rec.Transcribe(context.Background(), testClip(16000))
			if err != nil {
				t.Fatalf("transcribe: %v", err)
			}
			if res.Text != "hello" {
				t.Fatalf("unexpected text %q", res.Text)
			}
			if res.Latency != tc.want {
				t.Fatalf("expected engine-reported latency %v, got %v", tc.want, res.Latency)
			}
		})
	}
}

func TestExecRecognizerLatencyFallsBackToWallClock(t *testing.T) {
	cfg := config.BackendConfig{Command: writeScript(t, "sleep 0.1; echo hello"), Model: writeModel(t), SampleRate: 16000}
	rec, err := NewExecRecognizer("deepspeech", cfg, newLogger())
	if err != nil {
		t.Fatal(err)
	}
	res, err := rec.Transcribe(context.Background(), testClip(16000))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Latency < 100*time.Millisecond {
		t.Fatalf("expected wall-clock latency, got %v", res.Latency)
	}
}

func TestExecRecognizerTimeoutKillsChildren(t *testing.T) {
	cfg := config.BackendConfig{Command: writeScript(t, "sleep 3; echo hello"), Model: writeModel(t), SampleRate: 16000}
	rec, err := NewExecRecognizer("deepspeech", cfg, newLogger())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = rec.Transcribe(ctx, testClip(16000))
	elapsed := time.Since(start)
	if !errors.Is(err, ErrTransport) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected transport timeout, got %v", err)
	}
	if elapsed >= 2*time.Second {
		t.Fatalf("transcribe was not cut off by the deadline: took %v", elapsed)
	}
}
