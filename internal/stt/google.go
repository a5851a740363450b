package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tonanhngo/voice-ehr/internal/audio"
	"github.com/tonanhngo/voice-ehr/internal/config"
)

const defaultGoogleURL = "https://speech.googleapis.com"

func init() {
	Register("google", Kind{New: NewGoogleRecognizer, Validate: validateGoogle})
}

// googleRecognizer calls the Google Cloud Speech-to-Text v1 REST API.
type googleRecognizer struct {
	cfg    config.BackendConfig
	base   string
	client *http.Client
	log    *slog.Logger
}

type googleRequest struct {
	Config googleRecognitionConfig `json:"config"`
	Audio  googleAudio             `json:"audio"`
}

type googleRecognitionConfig struct {
	Encoding              string `json:"encoding"`
	SampleRateHertz       int    `json:"sampleRateHertz"`
	AudioChannelCount     int    `json:"audioChannelCount,omitempty"`
	LanguageCode          string `json:"languageCode"`
	EnableWordTimeOffsets bool   `json:"enableWordTimeOffsets,omitempty"`
}

type googleAudio struct {
	Content string `json:"content"`
}

type googleResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

func validateGoogle(cfg config.BackendConfig) error {
	if cfg.APIKey == "" {
		return errors.New("api_key must be set for google")
	}
	return nil
}

func NewGoogleRecognizer(_ string, cfg config.BackendConfig, logger *slog.Logger) (Recognizer, error) {
	base := cfg.URL
	if base == "" {
		base = defaultGoogleURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, err
	}
	return &googleRecognizer{cfg: cfg, base: strings.TrimRight(base, "/"), client: &http.Client{}, log: logger}, nil
}

func (g *googleRecognizer) Transcribe(ctx context.Context, clip *audio.Clip) (TranscriptResult, error) {
	payload := googleRequest{
		Config: googleRecognitionConfig{
			Encoding:              "LINEAR16",
			SampleRateHertz:       clip.SampleRate,
			AudioChannelCount:     clip.Channels,
			LanguageCode:          g.cfg.Language,
			EnableWordTimeOffsets: g.cfg.Timestamps,
		},
		Audio: googleAudio{Content: base64.StdEncoding.EncodeToString(clip.Data)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return TranscriptResult{}, err
	}
	endpoint := g.base + "/v1/speech:recognize?key=" + url.QueryEscape(g.cfg.APIKey)
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return TranscriptResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp googleResponse
	latency, err := doJSON(ctx, g.client, "google", req, &resp)
	if err != nil {
		return TranscriptResult{Latency: latency}, err
	}

	var parts []string
	var confidence float64
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		parts = append(parts, strings.TrimSpace(result.Alternatives[0].Transcript))
		confidence += result.Alternatives[0].Confidence
	}
	text := strings.TrimSpace(strings.Join(parts, " "))
	if text == "" {
		return TranscriptResult{Latency: latency}, ErrNoSpeech
	}
	return TranscriptResult{Text: text, Confidence: confidence / float64(len(parts)), Latency: latency}, nil
}

func (g *googleRecognizer) Close() error {
	g.client.CloseIdleConnections()
	return nil
}
