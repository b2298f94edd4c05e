package executor

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampTimeout(t *testing.T) {
	tests := []struct {
		in   float64
		want time.Duration
	}{
		{0, 30 * time.Second},
		{-5, 1 * time.Second},
		{0.5, 1 * time.Second},
		{1, 1 * time.Second},
		{45, 45 * time.Second},
		{300, 300 * time.Second},
		{301, 300 * time.Second},
		{1e9, 300 * time.Second},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ClampTimeout(tc.in), "input %v", tc.in)
	}
}

func TestCheckReferences(t *testing.T) {
	missing := CheckReferences("echo $A $B $A $c", map[string]string{"B": "x"})
	require.Len(t, missing, 1)
	assert.Equal(t, "A", missing[0].Name)
	assert.Equal(t, MissingSecretMessage("A"), missing[0].Message)

	assert.Empty(t, CheckReferences("echo $A", map[string]string{"A": ""}))
	assert.Empty(t, CheckReferences("echo plain", nil))
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/bin", "TOKEN=ambient", "HOME=/home/u", "MALFORMED"}
	got := mergeEnv(base, map[string]string{"TOKEN": "secret", "API_KEY": "k"})

	assert.Equal(t, []string{"PATH=/bin", "HOME=/home/u", "MALFORMED", "API_KEY=k", "TOKEN=secret"}, got)
	assert.Equal(t, base, mergeEnv(base, nil))
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 5}

	n, err := lw.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = lw.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n, "reports full length even when truncating")

	n, err = lw.Write([]byte("ij"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "abcde", buf.String())
}
