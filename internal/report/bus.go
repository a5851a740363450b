package report

import (
	"context"
	"time"

	"github.com/tonanhngo/voice-ehr/internal/benchmark"
	"github.com/tonanhngo/voice-ehr/internal/protocol"
)

// Publisher is the subset of the bus client used by BusSink.
type Publisher interface {
	PublishJSON(subject string, v any) error
	Flush(ctx context.Context) error
}

// BusSink broadcasts scored samples and the run summary.
type BusSink struct {
	pub   Publisher
	runID string
	clock func() time.Time
}

func NewBusSink(pub Publisher) *BusSink {
	return &BusSink{pub: pub, clock: time.Now}
}

func (s *BusSink) Begin(_ context.Context, run benchmark.RunInfo) error {
	s.runID = run.ID
	return nil
}

func (s *BusSink) Record(_ context.Context, row benchmark.Row) error {
	now := s.clock().UTC()
	for _, o := range row.Outcomes {
		msg := protocol.SampleScored{
			RunID:       s.runID,
			SampleIndex: row.Index,
			AudioPath:   row.Sample.AudioPath,
			Reference:   row.Reference,
			BackendID:   o.BackendID,
			Transcript:  o.Normalized,
			LatencyMS:   o.Latency.Milliseconds(),
			Distance:    o.Distance,
			Attempts:    o.Attempts,
			Timestamp:   now,
		}
		if o.Err != nil {
			msg.Error = o.Err.Error()
		}
		if err := s.pub.PublishJSON(protocol.SampleScoredSubject(o.BackendID), msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *BusSink) Finish(ctx context.Context, report *benchmark.Report) error {
	summary := protocol.RunSummary{
		RunID:      report.ID,
		Dataset:    report.Dataset,
		Samples:    report.Samples(),
		StartedAt:  report.Started,
		FinishedAt: report.Finished,
	}
	for _, id := range report.Backends {
		stats := report.Stats[id]
		b := protocol.BackendSummary{
			BackendID:     id,
			Succeeded:     stats.Succeeded,
			Failed:        stats.Failed,
			TotalDistance: stats.TotalDistance,
			MeanLatencyMS: stats.MeanLatency().Milliseconds(),
		}
		if mean, ok := stats.MeanDistance(); ok {
			b.MeanDistance = &mean
		}
		summary.Backends = append(summary.Backends, b)
	}
	if err := s.pub.PublishJSON(protocol.SubjectRunSummary, summary); err != nil {
		return err
	}
	return s.pub.Flush(ctx)
}
