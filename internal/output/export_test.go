package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moamenhredeen/apicheck/internal/models"
	"github.com/pb33f/libopenapi/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary() models.Summary {
	var s models.Summary
	obj := orderedmap.New[string, any]()
	obj.Set("balance", 12.5)
	obj.Set("currency", "EUR")

	s.AddResult(models.Result{
		Request:  models.Request{APIName: "Bank_API", Method: "GET", Endpoint: "/accounts/{id}", URL: "https://api.example.com/v1/accounts/1"},
		Verdict:  &models.Verdict{StatusCode: 200, Data: obj},
		SpecFile: "APIs/bank.json",
		Duration: 1500 * time.Microsecond,
	})
	s.AddResult(models.Result{
		Request:  models.Request{APIName: "Bank_API", Method: "GET", Endpoint: "/accounts/{id}"},
		Verdict:  &models.Verdict{StatusCode: 400, Data: map[string]any{"error": "Missing path parameter: id"}},
		SpecFile: "APIs/bank.json",
	})
	s.AddResult(models.Result{
		Request: models.Request{APIName: "Nope"},
		Error:   "No matching OpenAPI spec found for Nope",
	})
	s.Finalize(time.Second)
	return s
}

func TestWriteSummaryJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, sampleSummary(), FormatJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.EqualValues(t, 3, decoded["total_requests"])
	assert.EqualValues(t, 1, decoded["successful_requests"])
	assert.EqualValues(t, 2, decoded["failed_requests"])
	assert.EqualValues(t, 1, decoded["unmatched_requests"])

	results := decoded["results"].([]any)
	first := results[0].(map[string]any)
	assert.Equal(t, map[string]any{"status_code": float64(200), "data": map[string]any{"balance": 12.5, "currency": "EUR"}}, first["response"])
	assert.NotContains(t, results[2].(map[string]any), "response")

	assert.Regexp(t, `"data": \{\s*"balance": 12.5,\s*"currency": "EUR"`, buf.String())
}

func TestWriteSummaryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, sampleSummary(), FormatCSV))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"api_name", "method", "endpoint", "url", "spec_file", "status_code", "check_time_ms", "error"}, rows[0])
	assert.Equal(t, "200", rows[1][5])
	assert.Equal(t, "1.500", rows[1][6])
	assert.Equal(t, "", rows[1][7])
	assert.Equal(t, "Missing path parameter: id", rows[2][7])
	assert.Equal(t, "", rows[3][5])
	assert.Equal(t, "No matching OpenAPI spec found for Nope", rows[3][7])
}

func TestExportSummaryToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, ExportSummary(sampleSummary(), FormatJSON, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	err = ExportSummary(sampleSummary(), FormatJSON, filepath.Join(t.TempDir(), "missing", "summary.json"))
	assert.Error(t, err)
}

func TestWriteSummaryUnsupportedFormat(t *testing.T) {
	assert.Error(t, WriteSummary(&bytes.Buffer{}, sampleSummary(), Format("xml")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("yaml")
	assert.Error(t, err)
}
