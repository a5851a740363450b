package benchmark

import (
	"context"
	"errors"
	"time"

	"github.com/tonanhngo/voice-ehr/internal/dataset"
)

// ErrBackendFailed marks a (sample, backend) pair that produced no result
// after the retry policy was exhausted.
var ErrBackendFailed = errors.New("backend failed")

// Outcome is the scored result of one backend for one sample.
type Outcome struct {
	BackendID  string
	Transcript string
	Normalized string
	Confidence float64
	Latency    time.Duration
	Distance   int
	Attempts   int
	Err        error
}

// OK reports whether the backend produced a transcript.
func (o Outcome) OK() bool { return o.Err == nil }

// Row holds every backend outcome for a single sample, ordered like the
// run's backend list.
type Row struct {
	Index     int
	Sample    dataset.Sample
	Reference string
	Outcomes  []Outcome
}

// Outcome returns the outcome for backend id.
func (r Row) Outcome(id string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.BackendID == id {
			return o, true
		}
	}
	return Outcome{}, false
}

// BackendStats accumulates per-backend totals over a run.
type BackendStats struct {
	ID            string
	TotalDistance int
	TotalLatency  time.Duration
	Succeeded     int
	Failed        int
}

func (s *BackendStats) add(o Outcome) {
	if !o.OK() {
		s.Failed++
		return
	}
	s.Succeeded++
	s.TotalDistance += o.Distance
	s.TotalLatency += o.Latency
}

// MeanDistance is the mean edit distance over successful samples. ok is false
// when the backend never succeeded.
func (s BackendStats) MeanDistance() (mean float64, ok bool) {
	if s.Succeeded == 0 {
		return 0, false
	}
	return float64(s.TotalDistance) / float64(s.Succeeded), true
}

// MeanLatency is the mean transcription latency over successful samples.
func (s BackendStats) MeanLatency() time.Duration {
	if s.Succeeded == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Succeeded)
}

// RunInfo identifies a benchmark run.
type RunInfo struct {
	ID       string
	Dataset  string
	Backends []string
	Started  time.Time
}

// Report is the outcome of a complete run.
type Report struct {
	RunInfo
	Finished time.Time
	Rows     []Row
	Stats    map[string]*BackendStats
}

// Samples is the number of processed samples.
func (r *Report) Samples() int { return len(r.Rows) }

// Sink receives rows as they are scored and the report once the dataset is
// exhausted.
type Sink interface {
	Begin(ctx context.Context, run RunInfo) error
	Record(ctx context.Context, row Row) error
	Finish(ctx context.Context, report *Report) error
}
