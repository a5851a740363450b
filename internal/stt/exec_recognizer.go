package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/tonanhngo/voice-ehr/internal/audio"
	"github.com/tonanhngo/voice-ehr/internal/config"
)

func init() {
	Register("deepspeech", Kind{New: NewExecRecognizer, Validate: validateExec})
}

// execWaitDelay bounds how long Run waits for output pipes after the
// process group was killed.
const execWaitDelay = 2 * time.Second

// inferenceTook matches the timing line the DeepSpeech client prints on stderr.
var inferenceTook = regexp.MustCompile(`Inference took ([0-9]*\.?[0-9]+)s`)

// execRecognizer runs a local inference command once per clip. The clip is
// handed over as a temporary WAV file; the command prints either a JSON
// object or the plain transcript on stdout. The command loads its model on
// every run, so latency is taken from the engine's own inference timing and
// the process wall clock is only a fallback.
type execRecognizer struct {
	cmd      []string
	cfg      config.BackendConfig
	log      *slog.Logger
	mu       sync.Mutex
	fallback sync.Once
}

type execResult struct {
	Text             string   `json:"text"`
	Confidence       float64  `json:"confidence"`
	InferenceSeconds *float64 `json:"inference_seconds"`
	Latency          *float64 `json:"latency"`
}

// inference returns the engine-reported inference time.
func (e execResult) inference() (time.Duration, bool) {
	for _, v := range []*float64{e.InferenceSeconds, e.Latency} {
		if v != nil && *v >= 0 {
			return secondsToDuration(*v), true
		}
	}
	return 0, false
}

func validateExec(cfg config.BackendConfig) error {
	if cfg.Command == "" {
		return errors.New("command must be set for local inference")
	}
	if cfg.Model == "" {
		return errors.New("model must be set for local inference")
	}
	return nil
}

func NewExecRecognizer(_ string, cfg config.BackendConfig, logger *slog.Logger) (Recognizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse stt command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("stt command is empty")
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("stt command: %w", err)
	}
	for _, path := range []string{cfg.Model, cfg.LM, cfg.Trie, cfg.Alphabet} {
		if path == "" {
			continue
		}
		if err := checkReadable(path); err != nil {
			return nil, err
		}
	}
	if (cfg.LM == "") != (cfg.Trie == "") {
		logger.Warn("language model requires both lm and trie, decoding without it")
	}
	return &execRecognizer{cmd: args, cfg: cfg, log: logger}, nil
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("model file: %w", err)
	}
	return f.Close()
}

func (r *execRecognizer) Transcribe(ctx context.Context, clip *audio.Clip) (TranscriptResult, error) {
	if clip.SampleRate != r.cfg.SampleRate {
		return TranscriptResult{}, fmt.Errorf("clip sample rate %d Hz, model expects %d Hz: %w", clip.SampleRate, r.cfg.SampleRate, ErrUnsupportedAudio)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := os.CreateTemp("", "sttbench_*.wav")
	if err != nil {
		return TranscriptResult{}, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := clip.WriteWAV(file); err != nil {
		return TranscriptResult{}, err
	}

	command := exec.CommandContext(ctx, r.cmd[0], r.args(file.Name())...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr
	command.WaitDelay = execWaitDelay
	killProcessGroup(command)

	start := time.Now()
	err = command.Run()
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return TranscriptResult{Latency: elapsed}, fmt.Errorf("stt command: %w: %w", ErrTransport, ctxErr)
		}
		return TranscriptResult{Latency: elapsed}, fmt.Errorf("stt command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	resp := parseExecOutput(stdout.Bytes())
	latency, ok := resp.inference()
	if !ok {
		latency, ok = parseInferenceTook(stderr.Bytes())
	}
	if !ok {
		latency = elapsed
		r.fallback.Do(func() {
			r.log.Warn("stt command reports no inference time, latency includes process start and model load")
		})
	}
	if strings.TrimSpace(resp.Text) == "" {
		return TranscriptResult{Latency: latency}, ErrNoSpeech
	}
	return TranscriptResult{Text: resp.Text, Confidence: resp.Confidence, Latency: latency}, nil
}

func (r *execRecognizer) args(audioPath string) []string {
	args := append([]string{}, r.cmd[1:]...)
	args = append(args, "--audio", audioPath, "--model", r.cfg.Model)
	if r.cfg.Alphabet != "" {
		args = append(args, "--alphabet", r.cfg.Alphabet)
	}
	if r.cfg.LM != "" && r.cfg.Trie != "" {
		args = append(args,
			"--lm", r.cfg.LM,
			"--trie", r.cfg.Trie,
			"--lm_weight", formatFloat(r.cfg.LMWeight),
			"--word_count_weight", formatFloat(r.cfg.WordCountWeight),
			"--valid_word_count_weight", formatFloat(r.cfg.ValidWordCountWeight),
		)
	}
	if r.cfg.BeamWidth > 0 {
		args = append(args, "--beam_width", strconv.Itoa(r.cfg.BeamWidth))
	}
	return args
}

func parseExecOutput(out []byte) execResult {
	trimmed := bytes.TrimSpace(out)
	var resp execResult
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &resp); err == nil {
			return resp
		}
	}
	return execResult{Text: string(trimmed)}
}

func parseInferenceTook(stderr []byte) (time.Duration, bool) {
	m := inferenceTook.FindSubmatch(stderr)
	if m == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, false
	}
	return secondsToDuration(seconds), true
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds * float64(time.Second)))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func (r *execRecognizer) Close() error { return nil }
