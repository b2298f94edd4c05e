package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunResult_Accessors(t *testing.T) {
	code := 3
	out, errOut := "hello", "oops"
	r := &RunResult{Status: RunStatusError, ExitCode: &code, Stdout: &out, Stderr: &errOut}

	assert.False(t, r.OK())
	assert.Equal(t, 3, r.ExitCodeValue())
	assert.Equal(t, "hello", r.StdoutText())
	assert.Equal(t, "oops", r.StderrText())
}

func TestRunResult_NilSafe(t *testing.T) {
	var r *RunResult
	assert.False(t, r.OK())
	assert.Equal(t, -1, r.ExitCodeValue())
	assert.Empty(t, r.StdoutText())
	assert.Empty(t, r.StderrText())
}

func TestRunResult_MissingSecretsJSON(t *testing.T) {
	r := RunResult{
		Status:  RunStatusMissingSecrets,
		Missing: []MissingSecret{{Name: "API_KEY", Message: "add it"}},
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "missing_secrets", got["status"])
	assert.NotContains(t, got, "exit_code")
	assert.NotContains(t, got, "stdout")
	assert.NotContains(t, got, "timed_out")
	assert.Len(t, got["missing"], 1)
}
