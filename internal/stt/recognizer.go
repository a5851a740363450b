package stt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tonanhngo/voice-ehr/internal/audio"
)

// TranscriptResult captures recognizer output. Latency covers only the
// recognition call itself.
type TranscriptResult struct {
	Text       string
	Confidence float64
	Latency    time.Duration
}

// Recognizer abstracts STT backends.
type Recognizer interface {
	Transcribe(ctx context.Context, clip *audio.Clip) (TranscriptResult, error)
	Close() error
}

var (
	// ErrNoSpeech is returned when the engine produced no transcript.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrTransport covers network failures, timeouts and unexpected responses.
	ErrTransport = errors.New("transport failure")
	// ErrAuth is returned when the provider rejected the credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrUnsupportedAudio is returned when a clip does not match the format a
	// backend requires.
	ErrUnsupportedAudio = errors.New("unsupported audio format")
)

// InitError reports a backend that could not be constructed.
type InitError struct {
	Backend string
	Err     error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize backend %s: %v", e.Backend, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// Retryable reports whether a failed call may succeed when repeated.
func Retryable(err error) bool {
	return err != nil && !errors.Is(err, ErrAuth) && !errors.Is(err, ErrUnsupportedAudio)
}
