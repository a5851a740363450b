package stt

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/tonanhngo/voice-ehr/internal/config"
)

// Factory constructs a recognizer for the backend identified by id.
type Factory func(id string, cfg config.BackendConfig, logger *slog.Logger) (Recognizer, error)

// Kind describes a registered backend implementation.
type Kind struct {
	New Factory
	// Validate checks that cfg carries every key the backend needs.
	Validate func(cfg config.BackendConfig) error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Kind{}
)

// Register makes a backend kind available to configuration files.
func Register(name string, kind Kind) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if kind.New == nil {
		panic("stt: Register with nil factory for " + name)
	}
	registry[name] = kind
}

// Kinds lists the registered backend kinds.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (Kind, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	k, ok := registry[name]
	return k, ok
}

// Backend is a configured, initialized recognizer.
type Backend struct {
	ID string
	Recognizer
}

// Validate checks every enabled backend against its registered kind. Problems
// are reported as *config.Error.
func Validate(cfg config.Config) error {
	for _, id := range cfg.EnabledBackends() {
		b := cfg.Backends[id]
		kind, ok := lookup(b.Kind)
		if !ok {
			return &config.Error{Err: fmt.Errorf("backends.%s.kind %q is not supported (known: %v)", id, b.Kind, Kinds())}
		}
		if kind.Validate == nil {
			continue
		}
		if err := kind.Validate(b); err != nil {
			return &config.Error{Err: fmt.Errorf("backends.%s: %w", id, err)}
		}
	}
	return nil
}

// Open validates and constructs every enabled backend in identifier order.
// When any backend fails to initialize the ones already opened are closed and
// an *InitError is returned.
func Open(cfg config.Config, logger *slog.Logger) ([]Backend, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	var backends []Backend
	for _, id := range cfg.EnabledBackends() {
		b := cfg.Backends[id]
		kind, _ := lookup(b.Kind)
		log := logger.With(slog.String("component", "stt"), slog.String("backend", id))
		rec, err := kind.New(id, b, log)
		if err != nil {
			CloseAll(backends, logger)
			return nil, &InitError{Backend: id, Err: err}
		}
		log.Info("backend initialized", slog.String("kind", b.Kind))
		backends = append(backends, Backend{ID: id, Recognizer: rec})
	}
	return backends, nil
}

// CloseAll releases every backend, logging failures.
func CloseAll(backends []Backend, logger *slog.Logger) {
	for _, b := range backends {
		if err := b.Close(); err != nil {
			logger.Warn("failed to close backend", slog.String("backend", b.ID), slogError(err))
		}
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
