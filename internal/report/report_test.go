package report

import (
	"context"
	"errors"
	"time"

	"github.com/tonanhngo/voice-ehr/internal/benchmark"
	"github.com/tonanhngo/voice-ehr/internal/dataset"
	"github.com/tonanhngo/voice-ehr/internal/stt"
)

// fixture returns a two-sample run where "watson" fails the second sample.
func fixture() (*benchmark.Report, []benchmark.Row) {
	run := benchmark.RunInfo{
		ID:       "run-1",
		Dataset:  "dev.csv",
		Backends: []string{"deepspeech", "watson"},
		Started:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	rows := []benchmark.Row{
		{
			Index:     0,
			Sample:    dataset.Sample{AudioPath: "a.wav", ReferenceTranscript: "Hello world."},
			Reference: "hello world",
			Outcomes: []benchmark.Outcome{
				{BackendID: "deepspeech", Normalized: "hello word", Latency: 1250 * time.Millisecond, Distance: 1, Attempts: 1},
				{BackendID: "watson", Normalized: "hello world", Latency: 500 * time.Millisecond, Distance: 0, Attempts: 1},
			},
		},
		{
			Index:     1,
			Sample:    dataset.Sample{AudioPath: "b.wav", ReferenceTranscript: "good night"},
			Reference: "good night",
			Outcomes: []benchmark.Outcome{
				{BackendID: "deepspeech", Normalized: "good night", Latency: 750 * time.Millisecond, Distance: 0, Attempts: 1},
				{BackendID: "watson", Attempts: 3, Err: errors.Join(benchmark.ErrBackendFailed, stt.ErrTransport)},
			},
		},
	}
	report := &benchmark.Report{
		RunInfo:  run,
		Finished: run.Started.Add(time.Minute),
		Rows:     rows,
		Stats: map[string]*benchmark.BackendStats{
			"deepspeech": {ID: "deepspeech", TotalDistance: 1, TotalLatency: 2 * time.Second, Succeeded: 2},
			"watson":     {ID: "watson", TotalDistance: 0, TotalLatency: 500 * time.Millisecond, Succeeded: 1, Failed: 1},
		},
	}
	return report, rows
}

func drive(sink benchmark.Sink) error {
	ctx := context.Background()
	report, rows := fixture()
	if err := sink.Begin(ctx, report.RunInfo); err != nil {
		return err
	}
	for _, row := range rows {
		if err := sink.Record(ctx, row); err != nil {
			return err
		}
	}
	return sink.Finish(ctx, report)
}
