package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tonanhngo/voice-ehr/internal/benchmark"
)

// FailedCell marks a backend that produced no transcript for a sample.
const FailedCell = "FAILED"

// CSVSink writes one row per sample in the dataset's tabular format.
type CSVSink struct {
	w        *csv.Writer
	closer   io.Closer
	backends []string
}

// NewCSVSink writes rows to w. If w is also an io.Closer it is closed by
// Close.
func NewCSVSink(w io.Writer) *CSVSink {
	s := &CSVSink{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// CreateCSVSink creates (or truncates) the results file at path.
func CreateCSVSink(path string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create results dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create results file: %w", err)
	}
	return NewCSVSink(f), nil
}

// Header returns the column names for the given backends.
func Header(backends []string) []string {
	header := []string{"audio_path", "reference_transcript"}
	for _, id := range backends {
		header = append(header, id, id+"_latency", id+"_distance")
	}
	return header
}

func (s *CSVSink) Begin(_ context.Context, run benchmark.RunInfo) error {
	s.backends = run.Backends
	return s.write(Header(run.Backends))
}

func (s *CSVSink) Record(_ context.Context, row benchmark.Row) error {
	record := []string{row.Sample.AudioPath, row.Reference}
	for _, id := range s.backends {
		o, ok := row.Outcome(id)
		if !ok || !o.OK() {
			record = append(record, FailedCell, "", "")
			continue
		}
		record = append(record,
			o.Normalized,
			strconv.FormatFloat(o.Latency.Seconds(), 'f', 3, 64),
			strconv.Itoa(o.Distance),
		)
	}
	return s.write(record)
}

func (s *CSVSink) Finish(context.Context, *benchmark.Report) error {
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	err := s.w.Error()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *CSVSink) write(record []string) error {
	if err := s.w.Write(record); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}
