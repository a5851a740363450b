package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	labelPunctuation = regexp.MustCompile("[`\",?!]")
	labelNumber      = regexp.MustCompile(`\d+`)
)

// NormalizeLabel cleans a raw recording label for use as a reference
// transcript: lowercase, punctuation stripped, hyphens split, a trailing
// period removed, "km" spelled out and the first number written as words.
func NormalizeLabel(raw string) string {
	label := strings.ToLower(raw)
	label = labelPunctuation.ReplaceAllString(label, "")
	label = strings.ReplaceAll(label, "-", " ")
	label = strings.TrimSuffix(label, ".")
	label = strings.Replace(label, "km", "kilometer", 1)
	if loc := labelNumber.FindStringIndex(label); loc != nil {
		if n, err := strconv.ParseInt(label[loc[0]:loc[1]], 10, 64); err == nil {
			label = label[:loc[0]] + NumberToWords(n) + label[loc[1]:]
		}
	}
	return strings.TrimSpace(label)
}

// ReadLabels maps the file name column of a recording sheet to its
// normalized transcript. Rows that cannot be parsed are logged and skipped.
func ReadLabels(r io.Reader, fileColumn, transcriptColumn int, logger *slog.Logger) (map[string]string, error) {
	if fileColumn < 0 || transcriptColumn < 0 {
		return nil, errors.New("column indices must be >= 0")
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	labels := make(map[string]string)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				logger.Warn("can not parse label row", slog.Int("line", parseErr.Line), slogError(err))
				continue
			}
			return nil, err
		}
		if fileColumn >= len(record) {
			line, _ := reader.FieldPos(0)
			logger.Warn("label row is missing the file column", slog.Int("line", line))
			continue
		}
		var transcript string
		if transcriptColumn < len(record) {
			transcript = NormalizeLabel(record[transcriptColumn])
		}
		labels[record[fileColumn]] = transcript
	}
	return labels, nil
}

// Compose writes one dataset file per sub-directory of dataDir into outDir.
// Each file lists every audio file of the sub-directory with its size and
// label. The written paths are returned in order.
func Compose(labels map[string]string, dataDir, outDir string, logger *slog.Logger) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	absData, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		target := filepath.Join(outDir, entry.Name()+".csv")
		if err := composeDir(labels, filepath.Join(absData, entry.Name()), target, logger); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}

func composeDir(labels map[string]string, dir, target string, logger *slog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"wav_filename", "wav_filesize", "transcript"}); err != nil {
		return err
	}
	for _, name := range names {
		full := filepath.Join(dir, name)
		info, err := os.Stat(full)
		if err != nil {
			return fmt.Errorf("stat %s: %w", full, err)
		}
		label, ok := labels[name]
		if !ok {
			logger.Warn("no label for audio file", slog.String("file", full))
		}
		if err := w.Write([]string{full, strconv.FormatInt(info.Size(), 10), label}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return f.Close()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
