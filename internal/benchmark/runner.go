package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tonanhngo/voice-ehr/internal/audio"
	"github.com/tonanhngo/voice-ehr/internal/dataset"
	"github.com/tonanhngo/voice-ehr/internal/distance"
	"github.com/tonanhngo/voice-ehr/internal/stt"
)

const instrumentationName = "github.com/tonanhngo/voice-ehr/internal/benchmark"

// Options controls how each (sample, backend) pair is attempted.
type Options struct {
	// Attempts is the total number of tries per pair, including the first.
	Attempts int
	// Timeout bounds a single attempt. Zero disables it.
	Timeout time.Duration
	// Backoff is the initial delay between attempts. Zero retries immediately.
	Backoff time.Duration
	// Parallel queries all backends for a sample concurrently.
	Parallel bool
}

// Runner drives a dataset through every backend and feeds the scored rows to
// its sinks.
type Runner struct {
	backends []stt.Backend
	sinks    []Sink
	opts     Options
	logger   *slog.Logger

	loadClip func(path string) (*audio.Clip, error)

	tracer    trace.Tracer
	latency   metric.Float64Histogram
	distances metric.Int64Histogram
	failures  metric.Int64Counter
	retries   metric.Int64Counter
}

func New(backends []stt.Backend, sinks []Sink, opts Options, logger *slog.Logger) (*Runner, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends to benchmark")
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	meter := otel.Meter(instrumentationName)
	latency, err := meter.Float64Histogram("sttbench.transcribe.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Transcription latency per backend"))
	if err != nil {
		return nil, err
	}
	distances, err := meter.Int64Histogram("sttbench.transcript.distance",
		metric.WithDescription("Token edit distance between reference and transcript"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("sttbench.backend.failures",
		metric.WithDescription("Samples a backend could not transcribe"))
	if err != nil {
		return nil, err
	}
	retries, err := meter.Int64Counter("sttbench.backend.retries",
		metric.WithDescription("Repeated transcription attempts"))
	if err != nil {
		return nil, err
	}

	return &Runner{
		backends:  backends,
		sinks:     sinks,
		opts:      opts,
		logger:    logger.With(slog.String("component", "benchmark")),
		loadClip:  audio.Load,
		tracer:    otel.Tracer(instrumentationName),
		latency:   latency,
		distances: distances,
		failures:  failures,
		retries:   retries,
	}, nil
}

// Run scores every sample against every backend. Rows are delivered to the
// sinks in dataset order. A cancelled context stops the run after the current
// sample; the partial report is returned together with the context error.
func (r *Runner) Run(ctx context.Context, datasetName string, samples []dataset.Sample) (*Report, error) {
	ids := make([]string, len(r.backends))
	for i, b := range r.backends {
		ids[i] = b.ID
	}
	report := &Report{
		RunInfo: RunInfo{
			ID:       uuid.NewString(),
			Dataset:  datasetName,
			Backends: ids,
			Started:  time.Now().UTC(),
		},
		Stats: make(map[string]*BackendStats, len(ids)),
	}
	for _, id := range ids {
		report.Stats[id] = &BackendStats{ID: id}
	}

	ctx, span := r.tracer.Start(ctx, "benchmark.run", trace.WithAttributes(
		attribute.String("sttbench.run_id", report.ID),
		attribute.String("sttbench.dataset", datasetName),
		attribute.Int("sttbench.samples", len(samples)),
	))
	defer span.End()

	logger := r.logger.With(slog.String("run_id", report.ID))
	logger.Info("benchmark started",
		slog.String("dataset", datasetName),
		slog.Int("samples", len(samples)),
		slog.Any("backends", ids),
		slog.Bool("parallel", r.opts.Parallel),
	)

	for _, sink := range r.sinks {
		if err := sink.Begin(ctx, report.RunInfo); err != nil {
			return report, fmt.Errorf("begin sink: %w", err)
		}
	}

	for i, sample := range samples {
		if err := ctx.Err(); err != nil {
			logger.Warn("benchmark interrupted", slog.Int("completed", i))
			span.SetStatus(codes.Error, "interrupted")
			report.Finished = time.Now().UTC()
			return report, err
		}
		row := r.scoreSample(ctx, i, sample)
		for _, o := range row.Outcomes {
			report.Stats[o.BackendID].add(o)
		}
		report.Rows = append(report.Rows, row)
		for _, sink := range r.sinks {
			if err := sink.Record(ctx, row); err != nil {
				return report, fmt.Errorf("record sample %d: %w", i, err)
			}
		}
		logger.Debug("sample scored", slog.Int("index", i), slog.String("audio", sample.AudioPath))
	}

	report.Finished = time.Now().UTC()
	for _, sink := range r.sinks {
		if err := sink.Finish(ctx, report); err != nil {
			return report, fmt.Errorf("finish sink: %w", err)
		}
	}
	logger.Info("benchmark finished",
		slog.Int("samples", report.Samples()),
		slog.Duration("elapsed", report.Finished.Sub(report.Started)),
	)
	return report, nil
}

func (r *Runner) scoreSample(ctx context.Context, index int, sample dataset.Sample) Row {
	ctx, span := r.tracer.Start(ctx, "benchmark.sample", trace.WithAttributes(
		attribute.Int("sttbench.index", index),
		attribute.String("sttbench.audio", sample.AudioPath),
	))
	defer span.End()

	row := Row{
		Index:     index,
		Sample:    sample,
		Reference: Normalize(sample.ReferenceTranscript),
		Outcomes:  make([]Outcome, len(r.backends)),
	}

	clip, err := r.loadClip(sample.AudioPath)
	if err != nil {
		r.logger.Warn("audio unreadable", slog.String("audio", sample.AudioPath), slogError(err))
		span.RecordError(err)
		for i, b := range r.backends {
			row.Outcomes[i] = Outcome{BackendID: b.ID, Err: fmt.Errorf("%w: %w", ErrBackendFailed, err)}
			r.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", b.ID)))
		}
		return row
	}
	r.logger.Debug("audio loaded",
		slog.String("audio", sample.AudioPath),
		slog.Duration("duration", clip.Duration()),
		slog.Int("sample_rate", clip.SampleRate),
	)
	span.SetAttributes(attribute.Float64("sttbench.audio_seconds", clip.Duration().Seconds()))

	if r.opts.Parallel {
		var wg sync.WaitGroup
		for i, b := range r.backends {
			wg.Add(1)
			go func() {
				defer wg.Done()
				row.Outcomes[i] = r.transcribe(ctx, b, clip)
			}()
		}
		wg.Wait()
	} else {
		for i, b := range r.backends {
			row.Outcomes[i] = r.transcribe(ctx, b, clip)
		}
	}

	reference := distance.Tokens(row.Reference)
	for i := range row.Outcomes {
		o := &row.Outcomes[i]
		attrs := metric.WithAttributes(attribute.String("backend", o.BackendID))
		if !o.OK() {
			r.failures.Add(ctx, 1, attrs)
			continue
		}
		o.Normalized = Normalize(o.Transcript)
		o.Distance = distance.Levenshtein(reference, distance.Tokens(o.Normalized))
		r.latency.Record(ctx, o.Latency.Seconds(), attrs)
		r.distances.Record(ctx, int64(o.Distance), attrs)
	}
	return row
}

// transcribe runs one backend against a clip under the retry policy.
func (r *Runner) transcribe(ctx context.Context, backend stt.Backend, clip *audio.Clip) Outcome {
	ctx, span := r.tracer.Start(ctx, "benchmark.transcribe", trace.WithAttributes(
		attribute.String("backend", backend.ID),
	))
	defer span.End()

	logger := r.logger.With(slog.String("backend", backend.ID), slog.String("audio", clip.Path))
	outcome := Outcome{BackendID: backend.ID}

	operation := func() (stt.TranscriptResult, error) {
		outcome.Attempts++
		if outcome.Attempts > 1 {
			r.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend.ID)))
		}
		attemptCtx := ctx
		if r.opts.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
			defer cancel()
		}
		start := time.Now()
		result, err := backend.Transcribe(attemptCtx, clip)
		if err != nil {
			if !stt.Retryable(err) {
				return result, backoff.Permanent(err)
			}
			return result, err
		}
		if result.Latency <= 0 {
			result.Latency = time.Since(start)
		}
		return result, nil
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.opts.Attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("transcription attempt failed",
				slog.Int("attempt", outcome.Attempts),
				slog.Duration("retry_in", next),
				slogError(err),
			)
		}),
	)
	span.SetAttributes(attribute.Int("sttbench.attempts", outcome.Attempts))
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		logger.Warn("backend failed", slog.Int("attempts", outcome.Attempts), slogError(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		outcome.Err = fmt.Errorf("%w: %w", ErrBackendFailed, err)
		return outcome
	}
	outcome.Transcript = result.Text
	outcome.Confidence = result.Confidence
	outcome.Latency = result.Latency
	return outcome
}

func (r *Runner) newBackOff() backoff.BackOff {
	if r.opts.Backoff <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.Backoff
	b.MaxInterval = 16 * r.opts.Backoff
	return b
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
