package stt

import (
	"context"
	"log/slog"

	"github.com/tonanhngo/voice-ehr/internal/audio"
	"github.com/tonanhngo/voice-ehr/internal/config"
)

func init() {
	Register("mock", Kind{New: NewMockRecognizer})
}

type mockRecognizer struct {
	text string
}

// NewMockRecognizer returns a recognizer that answers every clip with the
// configured text.
func NewMockRecognizer(_ string, cfg config.BackendConfig, _ *slog.Logger) (Recognizer, error) {
	return &mockRecognizer{text: cfg.Text}, nil
}

func (m *mockRecognizer) Transcribe(ctx context.Context, _ *audio.Clip) (TranscriptResult, error) {
	if err := ctx.Err(); err != nil {
		return TranscriptResult{}, err
	}
	if m.text == "" {
		return TranscriptResult{}, ErrNoSpeech
	}
	return TranscriptResult{Text: m.text, Confidence: 1}, nil
}

func (m *mockRecognizer) Close() error { return nil }
