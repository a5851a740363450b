package stt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tonanhngo/voice-ehr/internal/config"
)

func TestWatsonTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/recognize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("timestamps") != "true" || r.URL.Query().Get("word_alternatives_threshold") != "0.9" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if ct := r.Header.Get("Content-Type"); ct != "audio/wav" {
			t.Errorf("unexpected content type %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "RIFF-test-payload" {
			t.Errorf("unexpected body %q", body)
		}
		_, _ = w.Write([]byte(`{"results":[{"alternatives":[{"transcript":"the quick ","confidence":0.8}],"final":true},{"alternatives":[{"transcript":"brown fox ","confidence":0.6}],"final":true}]}`))
	}))
	defer srv.Close()

	cfg := config.BackendConfig{URL: srv.URL, Username: "user", Password: "secret", Timestamps: true, WordAlternativesThreshold: 0.9}
	rec, err := NewWatsonRecognizer("watson", cfg, newLogger())
	if err != nil {
		t.Fatalf("new watson: %v", err)
	}
	defer rec.Close()

	res, err := rec.Transcribe(context.Background(), testClip(16000))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "the quick brown fox " {
		t.Fatalf("unexpected text %q", res.Text)
	}
	if res.Confidence < 0.69 || res.Confidence > 0.71 {
		t.Fatalf("unexpected confidence %f", res.Confidence)
	}
	if res.Latency <= 0 {
		t.Fatal("expected latency to be measured")
	}
}

func TestWatsonErrorsAreClassified(t *testing.T) {
	status := http.StatusUnauthorized
	body := `{}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	rec, err := NewWatsonRecognizer("watson", config.BackendConfig{URL: srv.URL, APIKey: "k"}, newLogger())
	if err != nil {
		t.Fatal(err)
	}

	_, err = rec.Transcribe(context.Background(), testClip(16000))
	if !errors.Is(err, ErrAuth) || Retryable(err) {
		t.Fatalf("expected non-retryable auth error, got %v", err)
	}

	status = http.StatusBadGateway
	_, err = rec.Transcribe(context.Background(), testClip(16000))
	if !errors.Is(err, ErrTransport) || !Retryable(err) {
		t.Fatalf("expected retryable transport error, got %v", err)
	}

	status = http.StatusOK
	body = `{"results":[]}`
	_, err = rec.Transcribe(context.Background(), testClip(16000))
	if !errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrTransport) {
		t.Fatalf("expected no-speech error distinct from transport, got %v", err)
	}
}

func TestGoogleTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/speech:recognize" || r.URL.Query().Get("key") != "api-key" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		var req googleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		content, _ := base64.StdEncoding.DecodeString(req.Audio.Content)
		if string(content) != "RIFF-test-payload" || req.Config.SampleRateHertz != 16000 || req.Config.LanguageCode != "en-US" {
			t.Errorf("unexpected payload %+v", req.Config)
		}
		_, _ = w.Write([]byte(`{"results":[{"alternatives":[{"transcript":"hello","confidence":0.9}]},{"alternatives":[{"transcript":" world","confidence":0.7}]}]}`))
	}))
	defer srv.Close()

	rec, err := NewGoogleRecognizer("google", config.BackendConfig{URL: srv.URL, APIKey: "api-key", Language: "en-US"}, newLogger())
	if err != nil {
		t.Fatal(err)
	}
	res, err := rec.Transcribe(context.Background(), testClip(16000))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "hello world" {
		t.Fatalf("unexpected text %q", res.Text)
	}
}

func TestBingTranscribe(t *testing.T) {
	status := "Success"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "sub-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Query().Get("language") != "en-US" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(bingResponse{RecognitionStatus: status, DisplayText: "Hello world."})
	}))
	defer srv.Close()

	rec, err := NewBingRecognizer("bing", config.BackendConfig{URL: srv.URL, APIKey: "sub-key", Language: "en-US"}, newLogger())
	if err != nil {
		t.Fatal(err)
	}
	res, err := rec.Transcribe(context.Background(), testClip(16000))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "Hello world." {
		t.Fatalf("unexpected text %q", res.Text)
	}

	status = "InitialSilenceTimeout"
	if _, err := rec.Transcribe(context.Background(), testClip(16000)); !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("expected no speech, got %v", err)
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	rec, err := NewGoogleRecognizer("google", config.BackendConfig{URL: url, APIKey: "k"}, newLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Transcribe(context.Background(), testClip(16000)); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
