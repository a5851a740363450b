package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/tonanhngo/voice-ehr/internal/dataset"
)

var version = "0.1.0-dev"

func main() {
	var (
		fileColumn       int
		transcriptColumn int
		showVersion      bool
	)

	flag.IntVar(&fileColumn, "file-column", 0, "Column of the origin CSV holding the audio file name")
	flag.IntVar(&transcriptColumn, "transcript-column", 1, "Column of the origin CSV holding the spoken text")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <origin csv> <data dir> <output dir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}
	if flag.NArg() != 3 {
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	written, err := runCompose(flag.Arg(0), flag.Arg(1), flag.Arg(2), fileColumn, transcriptColumn, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, path := range written {
		fmt.Println(path)
	}
}

func runCompose(originCSV, dataDir, outDir string, fileColumn, transcriptColumn int, logger *slog.Logger) ([]string, error) {
	info, err := os.Stat(dataDir)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory: %s is not a directory", dataDir)
	}

	f, err := os.Open(originCSV)
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	defer f.Close()

	labels, err := dataset.ReadLabels(f, fileColumn, transcriptColumn, logger)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	logger.Info("labels loaded", slog.Int("count", len(labels)))
	return dataset.Compose(labels, dataDir, outDir, logger)
}
