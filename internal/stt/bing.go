package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tonanhngo/voice-ehr/internal/audio"
	"github.com/tonanhngo/voice-ehr/internal/config"
)

func init() {
	Register("bing", Kind{New: NewBingRecognizer, Validate: validateBing})
}

// bingRecognizer calls the Bing / Azure speech short-audio REST endpoint.
type bingRecognizer struct {
	cfg      config.BackendConfig
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

type bingResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
}

func validateBing(cfg config.BackendConfig) error {
	if cfg.APIKey == "" {
		return errors.New("api_key must be set for bing")
	}
	if cfg.URL == "" && cfg.Region == "" {
		return errors.New("url or region must be set for bing")
	}
	return nil
}

func NewBingRecognizer(_ string, cfg config.BackendConfig, logger *slog.Logger) (Recognizer, error) {
	base := cfg.URL
	if base == "" {
		base = fmt.Sprintf("https://%s.stt.speech.microsoft.com", cfg.Region)
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + "/speech/recognition/conversation/cognitiveservices/v1")
	if err != nil {
		return nil, err
	}
	query := u.Query()
	query.Set("language", cfg.Language)
	query.Set("format", "simple")
	u.RawQuery = query.Encode()
	return &bingRecognizer{cfg: cfg, endpoint: u.String(), client: &http.Client{}, log: logger}, nil
}

func (b *bingRecognizer) Transcribe(ctx context.Context, clip *audio.Clip) (TranscriptResult, error) {
	req, err := http.NewRequest(http.MethodPost, b.endpoint, bytes.NewReader(clip.Data))
	if err != nil {
		return TranscriptResult{}, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", b.cfg.APIKey)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/wav; codecs=audio/pcm; samplerate=%d", clip.SampleRate))
	req.Header.Set("Accept", "application/json")

	var resp bingResponse
	latency, err := doJSON(ctx, b.client, "bing", req, &resp)
	if err != nil {
		return TranscriptResult{Latency: latency}, err
	}
	switch resp.RecognitionStatus {
	case "Success":
	case "NoMatch", "InitialSilenceTimeout", "BabbleTimeout":
		return TranscriptResult{Latency: latency}, ErrNoSpeech
	default:
		return TranscriptResult{Latency: latency}, fmt.Errorf("bing recognition status %q: %w", resp.RecognitionStatus, ErrTransport)
	}
	if strings.TrimSpace(resp.DisplayText) == "" {
		return TranscriptResult{Latency: latency}, ErrNoSpeech
	}
	return TranscriptResult{Text: resp.DisplayText, Latency: latency}, nil
}

func (b *bingRecognizer) Close() error {
	b.client.CloseIdleConnections()
	return nil
}
