package stt

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tonanhngo/voice-ehr/internal/audio"
	"github.com/tonanhngo/voice-ehr/internal/config"
)

func init() {
	Register("watson", Kind{New: NewWatsonRecognizer, Validate: validateWatson})
}

// watsonRecognizer calls the IBM Watson Speech to Text recognize endpoint.
type watsonRecognizer struct {
	cfg    config.BackendConfig
	client *http.Client
	log    *slog.Logger
}

type watsonResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
		Final bool `json:"final"`
	} `json:"results"`
}

func validateWatson(cfg config.BackendConfig) error {
	if cfg.URL == "" {
		return errors.New("url must be set for watson")
	}
	if cfg.APIKey == "" && (cfg.Username == "" || cfg.Password == "") {
		return errors.New("api_key or username and password must be set for watson")
	}
	return nil
}

func NewWatsonRecognizer(_ string, cfg config.BackendConfig, logger *slog.Logger) (Recognizer, error) {
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &watsonRecognizer{cfg: cfg, client: &http.Client{}, log: logger}, nil
}

func (w *watsonRecognizer) Transcribe(ctx context.Context, clip *audio.Clip) (TranscriptResult, error) {
	query := url.Values{}
	if w.cfg.Timestamps {
		query.Set("timestamps", "true")
	}
	if w.cfg.WordAlternativesThreshold > 0 {
		query.Set("word_alternatives_threshold", strconv.FormatFloat(w.cfg.WordAlternativesThreshold, 'f', -1, 64))
	}
	endpoint := strings.TrimRight(w.cfg.URL, "/") + "/v1/recognize"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(clip.Data))
	if err != nil {
		return TranscriptResult{}, err
	}
	req.Header.Set("Content-Type", "audio/wav")
	if w.cfg.APIKey != "" {
		req.SetBasicAuth("apikey", w.cfg.APIKey)
	} else {
		req.SetBasicAuth(w.cfg.Username, w.cfg.Password)
	}

	var resp watsonResponse
	latency, err := doJSON(ctx, w.client, "watson", req, &resp)
	if err != nil {
		return TranscriptResult{Latency: latency}, err
	}

	var text strings.Builder
	var confidence float64
	var n int
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		text.WriteString(result.Alternatives[0].Transcript)
		confidence += result.Alternatives[0].Confidence
		n++
	}
	if n == 0 || strings.TrimSpace(text.String()) == "" {
		return TranscriptResult{Latency: latency}, ErrNoSpeech
	}
	return TranscriptResult{Text: text.String(), Confidence: confidence / float64(n), Latency: latency}, nil
}

func (w *watsonRecognizer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
