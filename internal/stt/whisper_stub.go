//go:build !whisper_cpp

package stt

import (
	"errors"
	"log/slog"

	"github.com/tonanhngo/voice-ehr/internal/config"
)

func init() {
	Register("whisper", Kind{New: NewWhisperRecognizer, Validate: validateWhisper})
}

// NewWhisperRecognizer fails in builds without the whisper_cpp tag.
func NewWhisperRecognizer(_ string, _ config.BackendConfig, _ *slog.Logger) (Recognizer, error) {
	return nil, errors.New("whisper backend requires a build with -tags whisper_cpp")
}
