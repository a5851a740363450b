package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `runner:
  attempts: 2
backends:
  watson:
    url: https://stream.watsonplatform.net/speech-to-text/api
    username: user
    password: pass
    timestamps: true
    word_alternatives_threshold: 0.9
  deepspeech:
    command: deepspeech
    model: models/output_graph.pb
    lm: models/lm.binary
    trie: models/trie
  google:
    enabled: false
    api_key: abc
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sttbench.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Runner.Attempts != 2 {
		t.Fatalf("expected attempts 2, got %d", cfg.Runner.Attempts)
	}
	if cfg.Output.ResultsCSV != "results.csv" {
		t.Fatalf("expected default results file, got %q", cfg.Output.ResultsCSV)
	}
	ds := cfg.Backends["deepspeech"]
	if ds.Kind != "deepspeech" {
		t.Fatalf("expected kind to default to key, got %q", ds.Kind)
	}
	if ds.BeamWidth != 1024 || ds.LMWeight != 1.75 || ds.WordCountWeight != 1.0 || ds.ValidWordCountWeight != 1.0 {
		t.Fatalf("unexpected decoder defaults: %+v", ds)
	}
	if ds.SampleRate != 16000 {
		t.Fatalf("expected 16kHz sample rate, got %d", ds.SampleRate)
	}
}

func TestEnabledBackendsSortedAndFiltered(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := cfg.EnabledBackends()
	if len(ids) != 2 || ids[0] != "deepspeech" || ids[1] != "watson" {
		t.Fatalf("unexpected enabled backends: %v", ids)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STTBENCH_RUNNER_ATTEMPTS", "5")
	t.Setenv("STTBENCH_RUNNER_PARALLEL", "true")
	t.Setenv("STTBENCH_STORE_PATH", "./tmp.db")
	t.Setenv("STTBENCH_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("STTBENCH_WATSON_PASSWORD", "from-env")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Runner.Attempts != 5 {
		t.Fatalf("expected attempts override")
	}
	if !cfg.Runner.Parallel {
		t.Fatal("expected parallel override true")
	}
	if cfg.Store.Path != "./tmp.db" {
		t.Fatalf("expected store path override")
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Backends["watson"].Password != "from-env" {
		t.Fatalf("expected backend credential override")
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"missing file": filepath.Join(t.TempDir(), "absent.yaml"),
		"malformed":    writeConfig(t, "backends: [not, a, map"),
		"no backends":  writeConfig(t, "runner:\n  attempts: 3\n"),
		"bad attempts": writeConfig(t, "runner:\n  attempts: 0\nbackends:\n  mock:\n    text: hi\n"),
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(path)
			var cfgErr *Error
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *config.Error, got %v", err)
			}
		})
	}
}
