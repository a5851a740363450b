package protocol

import "time"

// SampleScored is published once per (sample, backend) pair.
type SampleScored struct {
	RunID       string    `json:"run_id"`
	SampleIndex int       `json:"sample_index"`
	AudioPath   string    `json:"audio_path"`
	Reference   string    `json:"reference"`
	BackendID   string    `json:"backend_id"`
	Transcript  string    `json:"transcript,omitempty"`
	LatencyMS   int64     `json:"latency_ms"`
	Distance    int       `json:"distance"`
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// BackendSummary is the aggregate of one backend over a run.
type BackendSummary struct {
	BackendID     string   `json:"backend_id"`
	Succeeded     int      `json:"succeeded"`
	Failed        int      `json:"failed"`
	TotalDistance int      `json:"total_distance"`
	MeanDistance  *float64 `json:"mean_distance,omitempty"`
	MeanLatencyMS int64    `json:"mean_latency_ms"`
}

// RunSummary is published when a run completes.
type RunSummary struct {
	RunID      string           `json:"run_id"`
	Dataset    string           `json:"dataset"`
	Samples    int              `json:"samples"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Backends   []BackendSummary `json:"backends"`
}

const (
	SubjectSampleScoredPrefix = "sample"
	SubjectRunSummary         = "run.summary"
)

// SampleScoredSubject returns the subject for a backend's results.
func SampleScoredSubject(backendID string) string {
	return SubjectSampleScoredPrefix + "." + backendID
}
