package report

import (
	"context"
	"fmt"

	"github.com/tonanhngo/voice-ehr/internal/benchmark"
	"github.com/tonanhngo/voice-ehr/internal/resultstore"
)

// StoreSink persists rows into the result store.
type StoreSink struct {
	store *resultstore.Store
	runID string
}

func NewStoreSink(store *resultstore.Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Begin(ctx context.Context, run benchmark.RunInfo) error {
	s.runID = run.ID
	err := s.store.BeginRun(ctx, resultstore.Run{
		ID:        run.ID,
		Dataset:   run.Dataset,
		Backends:  run.Backends,
		StartedAt: run.Started,
	})
	if err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	return nil
}

func (s *StoreSink) Record(ctx context.Context, row benchmark.Row) error {
	results := make([]resultstore.Result, 0, len(row.Outcomes))
	for _, o := range row.Outcomes {
		r := resultstore.Result{
			RunID:       s.runID,
			SampleIndex: row.Index,
			AudioPath:   row.Sample.AudioPath,
			Reference:   row.Reference,
			BackendID:   o.BackendID,
			Transcript:  o.Normalized,
			Latency:     o.Latency,
			Distance:    o.Distance,
			Attempts:    o.Attempts,
		}
		if o.Err != nil {
			r.Error = o.Err.Error()
		}
		results = append(results, r)
	}
	if err := s.store.AppendResults(ctx, results); err != nil {
		return fmt.Errorf("store sample %d: %w", row.Index, err)
	}
	return nil
}

func (s *StoreSink) Finish(ctx context.Context, report *benchmark.Report) error {
	if err := s.store.FinishRun(ctx, report.ID, report.Samples(), report.Finished); err != nil {
		return fmt.Errorf("finish stored run: %w", err)
	}
	return s.store.Prune(ctx)
}
