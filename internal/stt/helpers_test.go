package stt

import (
	"io"
	"log/slog"

	"github.com/tonanhngo/voice-ehr/internal/audio"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testClip(sampleRate int) *audio.Clip {
	return &audio.Clip{
		Path:       "clip.wav",
		Data:       []byte("RIFF-test-payload"),
		PCM:        make([]int, sampleRate/10),
		SampleRate: sampleRate,
		Channels:   1,
		BitDepth:   16,
	}
}
