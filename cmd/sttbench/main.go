package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tonanhngo/voice-ehr/internal/benchmark"
	"github.com/tonanhngo/voice-ehr/internal/bus"
	"github.com/tonanhngo/voice-ehr/internal/config"
	"github.com/tonanhngo/voice-ehr/internal/dataset"
	"github.com/tonanhngo/voice-ehr/internal/natsserver"
	"github.com/tonanhngo/voice-ehr/internal/report"
	"github.com/tonanhngo/voice-ehr/internal/resultstore"
	"github.com/tonanhngo/voice-ehr/internal/stt"
	"github.com/tonanhngo/voice-ehr/internal/telemetry"
)

var version = "0.1.0-dev"

func main() {
	var (
		csvPath     string
		configPath  string
		showVersion bool
	)

	flag.StringVar(&csvPath, "csv", "", "Path to the dataset CSV (audio path, size, transcript)")
	flag.StringVar(&configPath, "config", "sttbench.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}
	if csvPath == "" {
		flag.Usage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configPath, csvPath, os.Stdout, os.Stderr); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes one benchmark. The console summary goes to stdout and logs to
// stderr. Configuration and dataset problems are reported before any output
// file is created.
func run(ctx context.Context, configPath, csvPath string, stdout, stderr io.Writer) (err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: telemetry.ParseLevel(cfg.Telemetry.LogLevel)}))

	if err := stt.Validate(cfg); err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			cfgErr.Path = configPath
		}
		return err
	}
	samples, err := dataset.Load(csvPath)
	if err != nil {
		return err
	}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, "sttbench", version, logger)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}()

	var server *telemetry.Server
	if bind := cfg.Telemetry.PrometheusBind; bind != "" {
		server, err = telemetry.Serve(bind, tel.MetricsHandler(), logger)
		if err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("http shutdown error", slog.String("error", err.Error()))
			}
		}()
	}

	backends, err := stt.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer stt.CloseAll(backends, logger)

	csvSink, err := report.CreateCSVSink(cfg.Output.ResultsCSV)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := csvSink.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close results file: %w", cerr)
		}
	}()
	sinks := []benchmark.Sink{csvSink}
	if cfg.Output.Console {
		sinks = append(sinks, report.NewConsoleSink(stdout))
	}

	if cfg.Store.Path != "" {
		store, err := resultstore.Open(ctx, cfg.Store, logger.With(slog.String("component", "resultstore")))
		if err != nil {
			return fmt.Errorf("open result store: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, report.NewStoreSink(store))
	}

	if cfg.Bus.Embedded || len(cfg.Bus.Servers) > 0 {
		embedded, err := natsserver.Start(cfg.Bus, logger.With(slog.String("component", "natsserver")))
		if err != nil {
			return err
		}
		defer embedded.Shutdown()
		client, err := bus.Connect(ctx, cfg.Bus, logger.With(slog.String("component", "bus")))
		if err != nil {
			return err
		}
		defer client.Close()
		if server != nil {
			server.AddCheck("bus", client.Healthy)
		}
		sinks = append(sinks, report.NewBusSink(client))
	}

	runner, err := benchmark.New(backends, sinks, benchmark.Options{
		Attempts: cfg.Runner.Attempts,
		Timeout:  time.Duration(cfg.Runner.TimeoutMS) * time.Millisecond,
		Backoff:  time.Duration(cfg.Runner.BackoffMS) * time.Millisecond,
		Parallel: cfg.Runner.Parallel,
	}, logger)
	if err != nil {
		return err
	}

	if server != nil {
		server.SetReady(true)
	}
	rep, err := runner.Run(ctx, filepath.Base(csvPath), samples)
	if err != nil {
		return err
	}
	logger.Info("results written",
		slog.String("file", cfg.Output.ResultsCSV),
		slog.Int("samples", rep.Samples()),
		slog.String("run_id", rep.ID),
	)
	return nil
}
