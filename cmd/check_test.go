package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/moamenhredeen/apicheck/internal/logging"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"id=42", "filter=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "42", "filter": "a=b", "empty": ""}, params)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)

	_, err = parseParams([]string{"=x"})
	assert.Error(t, err)
}

func TestBindFlags(t *testing.T) {
	v := viper.New()
	v.SetDefault("batch.concurrency", 1)

	flags := batchCmd.Flags()
	require.NoError(t, bindFlags(v, flags))
	require.NoError(t, flags.Set("concurrency", "8"))

	assert.Equal(t, 8, v.GetInt("batch.concurrency"))
}

func TestRunCheckReturnsFailure(t *testing.T) {
	logger = logging.Nop()
	t.Cleanup(func() {
		checkURL, checkMethod, checkEndpoint, checkParams = "", "GET", "", nil
	})

	checkURL = "https://api.example.com/v1/accounts/42"
	checkMethod = "GET"
	checkEndpoint = "/accounts/{id}"

	checkParams = []string{"id=42"}
	require.NoError(t, runCheck(checkCmd, []string{"../testdata/bank.json"}))

	// id is required
	checkParams = nil
	err := runCheck(checkCmd, []string{"../testdata/bank.json"})
	assert.ErrorIs(t, err, errFailed)
}

func TestExitCode(t *testing.T) {
	var stderr bytes.Buffer

	assert.Equal(t, 0, exitCode(nil, &stderr))
	assert.Equal(t, 1, exitCode(errFailed, &stderr))
	assert.Empty(t, stderr.String())

	assert.Equal(t, 1, exitCode(fmt.Errorf("error loading specs: %w", errors.New("no such directory")), &stderr))
	assert.Contains(t, stderr.String(), "no such directory")
}
