package report

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/tonanhngo/voice-ehr/internal/benchmark"
)

// ConsoleSink prints each sample as it is scored and a per-backend summary
// at the end of the run.
type ConsoleSink struct {
	out      io.Writer
	backends []string
}

func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{out: out}
}

func (s *ConsoleSink) Begin(_ context.Context, run benchmark.RunInfo) error {
	s.backends = run.Backends
	_, err := fmt.Fprintf(s.out, "run %s: %s\n", run.ID, run.Dataset)
	return err
}

func (s *ConsoleSink) Record(_ context.Context, row benchmark.Row) error {
	if _, err := fmt.Fprintf(s.out, "\n[%d] %s\nlabel: %s\n", row.Index+1, row.Sample.AudioPath, row.Reference); err != nil {
		return err
	}
	for _, id := range s.backends {
		o, ok := row.Outcome(id)
		if !ok {
			continue
		}
		var err error
		if o.OK() {
			_, err = fmt.Fprintf(s.out, "%s: %s (distance %d, %.3fs)\n", id, o.Normalized, o.Distance, o.Latency.Seconds())
		} else {
			_, err = fmt.Fprintf(s.out, "%s: FAILED after %d attempt(s): %v\n", id, o.Attempts, o.Err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *ConsoleSink) Finish(_ context.Context, report *benchmark.Report) error {
	if _, err := fmt.Fprintf(s.out, "\nsummary (%d samples)\n", report.Samples()); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "backend\tmean distance\tmean latency\tscored\tfailures")
	for _, id := range report.Backends {
		stats := report.Stats[id]
		mean := "n/a"
		if m, ok := stats.MeanDistance(); ok {
			mean = fmt.Sprintf("%.3f", m)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.3fs\t%d\t%d\n", id, mean, stats.MeanLatency().Seconds(), stats.Succeeded, stats.Failed)
	}
	return tw.Flush()
}
