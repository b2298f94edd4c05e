package secrets

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/aivault/pkg/schema"
)

const testPassword = "test-password"

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestVault(t *testing.T) *FileVault {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "vault")
	v := NewFileVault(dir, testPassword, WithLogger(quietLogger()), WithClock(stepClock()))
	require.NoError(t, v.Init(context.Background()))
	return v
}

func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vault")
	v := NewFileVault(dir, testPassword, WithLogger(quietLogger()))
	ctx := context.Background()

	assert.False(t, v.IsInitialized())
	require.NoError(t, v.Init(ctx))
	assert.True(t, v.IsInitialized())

	cfg, err := v.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, cfg.Version)
	assert.NotEmpty(t, cfg.CreatedAt)

	list, err := v.ListSecrets(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

		for _, name := range []string{VaultFileName, ConfigFileName} {
			info, err := os.Stat(filepath.Join(dir, name))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), name)
		}
	}
}

func TestInit_AlreadyInitialized(t *testing.T) {
	v := newTestVault(t)
	err := v.Init(context.Background())
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeAlreadyInitialized))
}

func TestOperations_NotInitialized(t *testing.T) {
	v := NewFileVault(t.TempDir(), testPassword, WithLogger(quietLogger()))
	ctx := context.Background()

	_, err := v.GetSecret(ctx, "A")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotInitialized))

	_, err = v.ListSecrets(ctx, "")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotInitialized))

	_, err = v.DeleteSecret(ctx, "A")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotInitialized))

	_, err = v.GetAllSecretValues(ctx)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotInitialized))

	err = v.SetSecret(ctx, "A", "v", "d", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotInitialized))

	_, err = v.Config(ctx)
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotInitialized))
}

func TestOperations_WrongPassword(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()
	require.NoError(t, v.SetSecret(ctx, "API_KEY", "key-123", "", nil))

	other := NewFileVault(v.Dir(), "not-the-password", WithLogger(quietLogger()))
	_, err := other.ListSecrets(ctx, "")
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeAuthentication))

	err = other.SetSecret(ctx, "OTHER", "x", "", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeAuthentication))

	// The failed write must not have clobbered the vault.
	values, err := v.GetAllSecretValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"API_KEY": "key-123"}, values)
}

func TestSetSecret_InvalidName(t *testing.T) {
	v := newTestVault(t)
	for _, name := range []string{"", "lower", "1ABC", "_ABC", "ABC-DEF", "Abc", "A B"} {
		err := v.SetSecret(context.Background(), name, "v", "", nil)
		require.Error(t, err, name)
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation), name)
	}
}

func TestSetSecret_CreateSetsEqualTimestamps(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.SetSecret(ctx, "DB_PASSWORD", "s3cret", "db", []string{"db"}))

	s, err := v.GetSecret(ctx, "DB_PASSWORD")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "s3cret", s.Value)
	assert.Equal(t, "db", s.Description)
	assert.Equal(t, []string{"db"}, s.Tags)
	assert.Equal(t, s.CreatedAt, s.UpdatedAt)

	_, err = time.Parse(time.RFC3339, s.CreatedAt)
	assert.NoError(t, err)
}

func TestSetSecret_UpsertPreservesCreatedAt(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.SetSecret(ctx, "LIFECYCLE", "v1", "first", []string{"test"}))
	before, err := v.GetSecret(ctx, "LIFECYCLE")
	require.NoError(t, err)

	require.NoError(t, v.SetSecret(ctx, "LIFECYCLE", "v2", "second", []string{"test", "updated"}))
	after, err := v.GetSecret(ctx, "LIFECYCLE")
	require.NoError(t, err)

	assert.Equal(t, "v2", after.Value)
	assert.Equal(t, "second", after.Description)
	assert.Equal(t, []string{"test", "updated"}, after.Tags)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.NotEqual(t, before.UpdatedAt, after.UpdatedAt)

	// Still exactly one record.
	list, err := v.ListSecrets(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSetSecret_KeepsInsertionOrder(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	for _, name := range []string{"C", "A", "B"} {
		require.NoError(t, v.SetSecret(ctx, name, "v", "", nil))
	}
	require.NoError(t, v.SetSecret(ctx, "A", "v2", "", nil))

	list, err := v.ListSecrets(ctx, "")
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, m := range list {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"C", "A", "B"}, names)
}

func TestGetSecret_Absent(t *testing.T) {
	v := newTestVault(t)
	s, err := v.GetSecret(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestListSecrets_NeverExposesValues(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.SetSecret(ctx, "API_KEY", "key-12345", "API key", []string{"api"}))
	require.NoError(t, v.SetSecret(ctx, "DB_PASS", "hunter2-value", "DB", []string{"db"}))

	list, err := v.ListSecrets(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)

	serialized, err := json.Marshal(list)
	require.NoError(t, err)
	assert.NotContains(t, string(serialized), "key-12345")
	assert.NotContains(t, string(serialized), "hunter2-value")
	assert.NotContains(t, string(serialized), `"value"`)
	assert.Equal(t, "API_KEY", list[0].Name)
}

func TestListSecrets_TagFilter(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.SetSecret(ctx, "A", "1", "", []string{"x", "y"}))
	require.NoError(t, v.SetSecret(ctx, "B", "2", "", []string{"y"}))
	require.NoError(t, v.SetSecret(ctx, "C", "3", "", nil))

	list, err := v.ListSecrets(ctx, "x")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].Name)

	list, err = v.ListSecrets(ctx, "y")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = v.ListSecrets(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = v.ListSecrets(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.NotNil(t, list[2].Tags)
}

func TestFilterSecrets(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.SetSecret(ctx, "PG_PASSWORD", "pg", "postgres main", []string{"db"}))
	require.NoError(t, v.SetSecret(ctx, "PG_USER", "u", "postgres user", []string{"db", "public"}))
	require.NoError(t, v.SetSecret(ctx, "GITHUB_TOKEN", "gh", "GitHub PAT", []string{"vcs"}))

	tests := []struct {
		expr  string
		names []string
	}{
		{`"db" in tags`, []string{"PG_PASSWORD", "PG_USER"}},
		{`"db" in tags && !("public" in tags)`, []string{"PG_PASSWORD"}},
		{`name startsWith "GIT"`, []string{"GITHUB_TOKEN"}},
		{`description contains "postgres"`, []string{"PG_PASSWORD", "PG_USER"}},
		{`len(tags) > 5`, nil},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			list, err := v.FilterSecrets(ctx, tc.expr)
			require.NoError(t, err)
			var names []string
			for _, m := range list {
				names = append(names, m.Name)
			}
			assert.Equal(t, tc.names, names)
		})
	}
}

func TestFilterSecrets_InvalidExpression(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	for _, expr := range []string{"", "name +", `"not a bool"`, "value == 'x'"} {
		_, err := v.FilterSecrets(ctx, expr)
		require.Error(t, err, expr)
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation), expr)
	}
}

func TestDeleteSecret(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	require.NoError(t, v.SetSecret(ctx, "KEEP", "1", "", nil))
	require.NoError(t, v.SetSecret(ctx, "DROP", "2", "", nil))

	raw, err := os.ReadFile(filepath.Join(v.Dir(), VaultFileName))
	require.NoError(t, err)

	deleted, err := v.DeleteSecret(ctx, "ABSENT")
	require.NoError(t, err)
	assert.False(t, deleted)

	// Absent delete does not rewrite the file.
	after, err := os.ReadFile(filepath.Join(v.Dir(), VaultFileName))
	require.NoError(t, err)
	assert.Equal(t, raw, after)

	deleted, err = v.DeleteSecret(ctx, "DROP")
	require.NoError(t, err)
	assert.True(t, deleted)

	values, err := v.GetAllSecretValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"KEEP": "1"}, values)
}

func TestGetAllSecretValues(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	values, err := v.GetAllSecretValues(ctx)
	require.NoError(t, err)
	assert.Empty(t, values)

	require.NoError(t, v.SetSecret(ctx, "USER_NAME", "admin", "", nil))
	require.NoError(t, v.SetSecret(ctx, "USER_PASS", "p@ssw0rd", "", nil))

	values, err = v.GetAllSecretValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"USER_NAME": "admin", "USER_PASS": "p@ssw0rd"}, values)
}

func TestVaultFile_EncryptedAtRest(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()
	require.NoError(t, v.SetSecret(ctx, "TOKEN", "plaintext-value", "desc-text", nil))

	raw, err := os.ReadFile(filepath.Join(v.Dir(), VaultFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "plaintext-value")
	assert.NotContains(t, string(raw), "TOKEN")

	// No temp files left behind.
	entries, err := os.ReadDir(v.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestVaultFile_Truncated(t *testing.T) {
	v := newTestVault(t)
	path := filepath.Join(v.Dir(), VaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := v.ListSecrets(context.Background(), "")
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeInvalidPayload))
}

func TestVaultFile_CorruptDocument(t *testing.T) {
	tests := map[string]string{
		"not json":     "this is not json",
		"wrong shape":  `{"items": []}`,
		"bad name":     `{"secrets":[{"name":"lower","value":"x"}]}`,
		"value number": `{"secrets":[{"name":"A","value":1}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			v := newTestVault(t)
			payload, err := Encrypt([]byte(doc), testPassword)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(v.Dir(), VaultFileName), payload, 0o600))

			_, err = v.GetAllSecretValues(context.Background())
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, schema.ErrCodeCorruptVault))
		})
	}
}

func TestVaultFile_ReadsOriginalFormat(t *testing.T) {
	// A document written by another implementation of the same format.
	doc := `{
  "secrets": [
    {
      "name": "API_KEY",
      "value": "k",
      "description": "d",
      "tags": ["a"],
      "created_at": "2025-01-01T00:00:00.000Z",
      "updated_at": "2025-01-01T00:00:00.000Z"
    }
  ]
}`
	v := newTestVault(t)
	payload, err := Encrypt([]byte(doc), testPassword)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(v.Dir(), VaultFileName), payload, 0o600))

	s, err := v.GetSecret(context.Background(), "API_KEY")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "k", s.Value)
	assert.Equal(t, "2025-01-01T00:00:00.000Z", s.CreatedAt)
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"github", []string{"github"}},
		{" github , vcs ,, ", []string{"github", "vcs"}},
		{"a,b,a", []string{"a", "b"}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseTags(tc.in), "input %q", tc.in)
	}
}
