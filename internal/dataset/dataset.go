// Package dataset reads JSON-lines request datasets. Every line is a record
// whose answers array holds the requests to check.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/moamenhredeen/apicheck/internal/logging"
	"github.com/moamenhredeen/apicheck/internal/models"
)

// MaxLineSize bounds a single dataset record
const MaxLineSize = 10 << 20

type record struct {
	Answers []json.RawMessage `json:"answers"`
}

// Option configures Read and ReadFile
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for skipped answers
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// ReadFile reads every request of the dataset at path
func ReadFile(path string, opts ...Option) ([]models.Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	requests, err := Read(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return requests, nil
}

// Read reads requests from JSON lines. Blank lines are skipped and missing
// request fields stay empty. An answer that does not decode as a request is
// logged and skipped; a line that is not a JSON record is an error.
func Read(r io.Reader, opts ...Option) ([]models.Request, error) {
	o := options{logger: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	var requests []models.Request
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for i, raw := range rec.Answers {
			var req models.Request
			if err := json.Unmarshal(raw, &req); err != nil {
				o.logger.Warn("malformed answer, skipped", "line", line, "answer", i, "error", err)
				continue
			}
			requests = append(requests, req)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line+1, err)
	}

	return requests, nil
}
