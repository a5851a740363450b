package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Error reports a missing, unreadable or invalid configuration file.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
	TraceFile      string `yaml:"trace_file"`
}

type RunnerConfig struct {
	Attempts  int  `yaml:"attempts"`
	TimeoutMS int  `yaml:"timeout_ms"`
	BackoffMS int  `yaml:"backoff_ms"`
	Parallel  bool `yaml:"parallel"`
}

type OutputConfig struct {
	ResultsCSV string `yaml:"results_csv"`
	Console    bool   `yaml:"console"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRuns       int    `yaml:"max_runs"`
}

type BusConfig struct {
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
	SubjectPrefix  string   `yaml:"subject_prefix"`
	Embedded       bool     `yaml:"embedded"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
}

// BackendConfig holds the settings of a single recognizer backend. Only the
// fields relevant to the backend kind are read.
type BackendConfig struct {
	Kind     string `yaml:"kind"`
	Enabled  *bool  `yaml:"enabled"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	APIKey   string `yaml:"api_key"`
	Region   string `yaml:"region"`
	Language string `yaml:"language"`

	Timestamps                bool    `yaml:"timestamps"`
	WordAlternativesThreshold float64 `yaml:"word_alternatives_threshold"`

	Command              string  `yaml:"command"`
	Model                string  `yaml:"model"`
	LM                   string  `yaml:"lm"`
	Trie                 string  `yaml:"trie"`
	Alphabet             string  `yaml:"alphabet"`
	BeamWidth            int     `yaml:"beam_width"`
	LMWeight             float64 `yaml:"lm_weight"`
	WordCountWeight      float64 `yaml:"word_count_weight"`
	ValidWordCountWeight float64 `yaml:"valid_word_count_weight"`
	SampleRate           int     `yaml:"sample_rate"`
	Threads              int     `yaml:"threads"`

	Text string `yaml:"text"`
}

// IsEnabled reports whether the backend takes part in a run. Backends are
// enabled unless explicitly switched off.
func (b BackendConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

type Config struct {
	Telemetry TelemetryConfig          `yaml:"telemetry"`
	Runner    RunnerConfig             `yaml:"runner"`
	Output    OutputConfig             `yaml:"output"`
	Store     StoreConfig              `yaml:"store"`
	Bus       BusConfig                `yaml:"bus"`
	Backends  map[string]BackendConfig `yaml:"backends"`
}

// Local inference decoding defaults.
const (
	DefaultBeamWidth            = 1024
	DefaultLMWeight             = 1.75
	DefaultWordCountWeight      = 1.00
	DefaultValidWordCountWeight = 1.00
	DefaultSampleRate           = 16000
)

func Default() Config {
	return Config{
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPInsecure: true,
		},
		Runner: RunnerConfig{
			Attempts:  3,
			TimeoutMS: 60000,
			BackoffMS: 500,
		},
		Output: OutputConfig{
			ResultsCSV: "results.csv",
			Console:    true,
		},
		Store: StoreConfig{
			RetentionDays: 0,
			MaxRuns:       100,
		},
		Bus: BusConfig{
			ConnectTimeout: 2000,
			SubjectPrefix:  "sttbench",
			Host:           "127.0.0.1",
			Port:           4222,
		},
		Backends: map[string]BackendConfig{},
	}
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. Every failure is returned as *Error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, &Error{Err: errors.New("no configuration file given")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, &Error{Path: path, Err: fmt.Errorf("config file not found: %w", err)}
		}
		return cfg, &Error{Path: path, Err: fmt.Errorf("failed to read config file: %w", err)}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &Error{Path: path, Err: fmt.Errorf("failed to parse config file: %w", err)}
	}
	if cfg.Backends == nil {
		cfg.Backends = map[string]BackendConfig{}
	}

	applyEnvOverrides(&cfg)
	applyBackendDefaults(&cfg)
	if cfg.Bus.Embedded && len(cfg.Bus.Servers) == 0 {
		cfg.Bus.Servers = []string{fmt.Sprintf("nats://%s:%d", cfg.Bus.Host, cfg.Bus.Port)}
	}
	if err := validate(cfg); err != nil {
		return cfg, &Error{Path: path, Err: err}
	}
	return cfg, nil
}

// EnabledBackends returns the identifiers of enabled backends in sorted order.
func (c Config) EnabledBackends() []string {
	ids := make([]string, 0, len(c.Backends))
	for id, b := range c.Backends {
		if b.IsEnabled() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Telemetry.LogLevel, "STTBENCH_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "STTBENCH_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "STTBENCH_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "STTBENCH_TELEMETRY_PROMETHEUS_BIND")
	overrideString(&cfg.Telemetry.TraceFile, "STTBENCH_TELEMETRY_TRACE_FILE")
	overrideInt(&cfg.Runner.Attempts, "STTBENCH_RUNNER_ATTEMPTS")
	overrideInt(&cfg.Runner.TimeoutMS, "STTBENCH_RUNNER_TIMEOUT_MS")
	overrideInt(&cfg.Runner.BackoffMS, "STTBENCH_RUNNER_BACKOFF_MS")
	overrideBool(&cfg.Runner.Parallel, "STTBENCH_RUNNER_PARALLEL")
	overrideString(&cfg.Output.ResultsCSV, "STTBENCH_OUTPUT_RESULTS_CSV")
	overrideBool(&cfg.Output.Console, "STTBENCH_OUTPUT_CONSOLE")
	overrideString(&cfg.Store.Path, "STTBENCH_STORE_PATH")
	overrideInt(&cfg.Store.RetentionDays, "STTBENCH_STORE_RETENTION_DAYS")
	overrideInt(&cfg.Store.MaxRuns, "STTBENCH_STORE_MAX_RUNS")
	overrideStringSlice(&cfg.Bus.Servers, "STTBENCH_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "STTBENCH_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "STTBENCH_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "STTBENCH_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "STTBENCH_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "STTBENCH_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Bus.SubjectPrefix, "STTBENCH_BUS_SUBJECT_PREFIX")
	overrideBool(&cfg.Bus.Embedded, "STTBENCH_BUS_EMBEDDED")
	overrideString(&cfg.Bus.Host, "STTBENCH_BUS_HOST")
	overrideInt(&cfg.Bus.Port, "STTBENCH_BUS_PORT")

	// Credentials are commonly kept out of the file.
	for id, b := range cfg.Backends {
		prefix := "STTBENCH_" + envKey(id) + "_"
		overrideString(&b.URL, prefix+"URL")
		overrideString(&b.Username, prefix+"USERNAME")
		overrideString(&b.Password, prefix+"PASSWORD")
		overrideString(&b.APIKey, prefix+"API_KEY")
		overrideString(&b.Model, prefix+"MODEL")
		cfg.Backends[id] = b
	}
}

func applyBackendDefaults(cfg *Config) {
	for id, b := range cfg.Backends {
		if b.Kind == "" {
			b.Kind = id
		}
		b.Kind = strings.ToLower(b.Kind)
		if b.SampleRate == 0 {
			b.SampleRate = DefaultSampleRate
		}
		if b.Language == "" {
			b.Language = "en-US"
		}
		switch b.Kind {
		case "deepspeech", "whisper":
			if b.BeamWidth == 0 {
				b.BeamWidth = DefaultBeamWidth
			}
			if b.LMWeight == 0 {
				b.LMWeight = DefaultLMWeight
			}
			if b.WordCountWeight == 0 {
				b.WordCountWeight = DefaultWordCountWeight
			}
			if b.ValidWordCountWeight == 0 {
				b.ValidWordCountWeight = DefaultValidWordCountWeight
			}
		}
		cfg.Backends[id] = b
	}
}

func envKey(id string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(id) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.Runner.Attempts <= 0 {
		return errors.New("runner.attempts must be >= 1")
	}
	if cfg.Runner.TimeoutMS < 0 {
		return errors.New("runner.timeout_ms must be >= 0")
	}
	if cfg.Runner.BackoffMS < 0 {
		return errors.New("runner.backoff_ms must be >= 0")
	}
	if cfg.Output.ResultsCSV == "" {
		return errors.New("output.results_csv must not be empty")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	if cfg.Store.MaxRuns < 0 {
		return errors.New("store.max_runs must be >= 0")
	}
	if cfg.Bus.Embedded && (cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535) {
		return errors.New("bus.port must be between 1 and 65535")
	}
	if len(cfg.EnabledBackends()) == 0 {
		return errors.New("backends must configure at least one enabled backend")
	}
	for _, id := range cfg.EnabledBackends() {
		if err := validateBackend(id, cfg.Backends[id]); err != nil {
			return err
		}
	}
	return nil
}

func validateBackend(id string, b BackendConfig) error {
	if b.Kind == "" {
		return fmt.Errorf("backends.%s.kind must not be empty", id)
	}
	if b.BeamWidth < 0 {
		return fmt.Errorf("backends.%s.beam_width must be >= 0", id)
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("backends.%s.sample_rate must be positive", id)
	}
	return nil
}
