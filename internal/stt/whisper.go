package stt

import (
	"errors"

	"github.com/tonanhngo/voice-ehr/internal/config"
)

func validateWhisper(cfg config.BackendConfig) error {
	if cfg.Model == "" {
		return errors.New("model must be set for whisper")
	}
	return nil
}
