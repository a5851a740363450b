// Package dataset reads labeled audio datasets.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Column positions in a dataset file.
const (
	AudioColumn      = 0
	TranscriptColumn = 2
)

// Sample is one labeled dataset row.
type Sample struct {
	AudioPath           string
	ReferenceTranscript string
}

// Error reports a missing or malformed dataset file.
type Error struct {
	Path string
	Line int
	Err  error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("dataset %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("dataset %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Load reads a comma separated dataset with a header row. Column 1 holds the
// audio path and column 3 the reference transcript. Relative audio paths that
// do not exist relative to the working directory are resolved against the
// dataset's directory.
func Load(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	defer f.Close()

	samples, err := Read(f, filepath.Dir(path))
	if err != nil {
		var dsErr *Error
		if errors.As(err, &dsErr) {
			dsErr.Path = path
			return nil, dsErr
		}
		return nil, &Error{Path: path, Err: err}
	}
	return samples, nil
}

// Read parses dataset rows from r. baseDir is used to resolve relative audio
// paths; pass "" to keep them as-is.
func Read(r io.Reader, baseDir string) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &Error{Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, &Error{Line: 1, Err: err}
	}
	if len(header) <= TranscriptColumn {
		return nil, &Error{Line: 1, Err: fmt.Errorf("expected at least %d columns, got %d", TranscriptColumn+1, len(header))}
	}

	var samples []Sample
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &Error{Err: err}
		}
		line, _ := reader.FieldPos(0)
		if len(record) <= TranscriptColumn {
			return nil, &Error{Line: line, Err: fmt.Errorf("expected at least %d columns, got %d", TranscriptColumn+1, len(record))}
		}
		audioPath := strings.TrimSpace(record[AudioColumn])
		if audioPath == "" {
			return nil, &Error{Line: line, Err: errors.New("empty audio path")}
		}
		samples = append(samples, Sample{
			AudioPath:           resolve(audioPath, baseDir),
			ReferenceTranscript: record[TranscriptColumn],
		})
	}
	return samples, nil
}

func resolve(audioPath, baseDir string) string {
	if baseDir == "" || filepath.IsAbs(audioPath) {
		return audioPath
	}
	if _, err := os.Stat(audioPath); err == nil {
		return audioPath
	}
	candidate := filepath.Join(baseDir, audioPath)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return audioPath
}
