package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/moamenhredeen/apicheck/internal/models"
)

// Format represents the output format type
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ExportSummary exports batch results to the specified format, on stdout
// when filePath is empty
func ExportSummary(summary models.Summary, format Format, filePath string) error {
	w, closer, err := getWriter(filePath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	return WriteSummary(w, summary, format)
}

// WriteSummary writes batch results to w in the specified format
func WriteSummary(w io.Writer, summary models.Summary, format Format) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, summary)
	case FormatCSV:
		return writeSummaryCSV(w, summary)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// getWriter returns an io.Writer for output (stdout or file)
func getWriter(filePath string) (io.Writer, io.Closer, error) {
	if filePath == "" {
		return os.Stdout, nil, nil
	}

	f, err := os.Create(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f, nil
}

// writeSummaryCSV writes one row per checked request
func writeSummaryCSV(w io.Writer, summary models.Summary) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	// Write header
	header := []string{
		"api_name", "method", "endpoint", "url", "spec_file",
		"status_code", "check_time_ms", "error",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	// Write rows
	for _, r := range summary.Results {
		status := ""
		if r.Verdict != nil {
			status = strconv.Itoa(r.Verdict.StatusCode)
		}
		row := []string{
			r.Request.APIName,
			r.Request.Method,
			r.Request.Endpoint,
			r.Request.URL,
			r.SpecFile,
			status,
			fmt.Sprintf("%.3f", float64(r.Duration.Microseconds())/1000),
			ErrorText(r),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ErrorText returns the runner error or the error carried by a failed verdict
func ErrorText(r models.Result) string {
	if r.Error != "" {
		return r.Error
	}
	if r.Verdict == nil || !r.Verdict.Failed() {
		return ""
	}
	if data, ok := r.Verdict.Data.(map[string]any); ok {
		if msg, ok := data["error"].(string); ok {
			return msg
		}
	}
	return ""
}

// ParseFormat parses a string into a Format, returning error if invalid
func ParseFormat(s string) (Format, error) {
	switch s {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("invalid format '%s': must be 'json' or 'csv'", s)
	}
}
