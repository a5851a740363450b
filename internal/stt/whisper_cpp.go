//go:build whisper_cpp

package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/tonanhngo/voice-ehr/internal/audio"
	"github.com/tonanhngo/voice-ehr/internal/config"
)

func init() {
	Register("whisper", Kind{New: NewWhisperRecognizer, Validate: validateWhisper})
}

// whisperRecognizer runs whisper.cpp in-process. The model is loaded once at
// construction and every call gets a fresh decoding context.
type whisperRecognizer struct {
	model    whisperpkg.Model
	cfg      config.BackendConfig
	threads  uint
	language string
	log      *slog.Logger
	mu       sync.Mutex
}

func NewWhisperRecognizer(_ string, cfg config.BackendConfig, logger *slog.Logger) (Recognizer, error) {
	start := time.Now()
	model, err := whisperpkg.New(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	threads := uint(runtime.NumCPU())
	if cfg.Threads > 0 {
		threads = uint(cfg.Threads)
	}
	logger.Info("whisper model loaded",
		slog.String("model", cfg.Model),
		slog.Uint64("threads", uint64(threads)),
		slog.Duration("elapsed", time.Since(start)))
	return &whisperRecognizer{
		model:    model,
		cfg:      cfg,
		threads:  threads,
		language: whisperLanguage(cfg.Language),
		log:      logger,
	}, nil
}

func (w *whisperRecognizer) Transcribe(ctx context.Context, clip *audio.Clip) (TranscriptResult, error) {
	if clip.SampleRate != w.cfg.SampleRate {
		return TranscriptResult{}, fmt.Errorf("clip sample rate %d Hz, model expects %d Hz: %w", clip.SampleRate, w.cfg.SampleRate, ErrUnsupportedAudio)
	}
	samples := clip.Float32()

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return TranscriptResult{}, err
	}
	wctx, err := w.model.NewContext()
	if err != nil {
		return TranscriptResult{}, fmt.Errorf("create context: %w", err)
	}
	wctx.SetThreads(w.threads)
	wctx.SetTranslate(false)
	if err := wctx.SetLanguage(w.language); err != nil {
		w.log.Warn("whisper language rejected", slog.String("language", w.language), slogError(err))
	}

	start := time.Now()
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return TranscriptResult{Latency: time.Since(start)}, fmt.Errorf("process audio: %w", err)
	}
	var text strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return TranscriptResult{Latency: time.Since(start)}, fmt.Errorf("read segment: %w", err)
		}
		text.WriteString(segment.Text)
	}
	latency := time.Since(start)

	if strings.TrimSpace(text.String()) == "" {
		return TranscriptResult{Latency: latency}, ErrNoSpeech
	}
	return TranscriptResult{Text: text.String(), Latency: latency}, nil
}

func (w *whisperRecognizer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model == nil {
		return nil
	}
	err := w.model.Close()
	w.model = nil
	return err
}

// whisperLanguage maps "en-US" style tags to the two letter codes whisper
// accepts.
func whisperLanguage(tag string) string {
	if tag == "" {
		return "auto"
	}
	lang, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(lang)
}
