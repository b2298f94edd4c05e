package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rendis/aivault/pkg/schema"
)

const (
	VaultFileName  = "vault.enc"
	ConfigFileName = "config.json"

	// FormatVersion is recorded in config.json at init.
	FormatVersion = "0.1.0"

	dirMode  = 0o700
	fileMode = 0o600

	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Compile-time interface check.
var _ Vault = (*FileVault)(nil)

// FileVault is a vault persisted as a single encrypted file.
//
// Every operation decrypts the whole file and every mutation re-encrypts and
// rewrites the whole collection. Nothing is cached between calls and the
// file is not locked: two processes mutating the vault at the same time race
// and the last writer wins. Writes go through a temp file and a rename, so a
// crash never leaves a half-written vault.enc behind.
type FileVault struct {
	dir      string
	password string
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a FileVault.
type Option func(*FileVault)

// WithLogger sets the logger. Secret values are never logged.
func WithLogger(l *slog.Logger) Option {
	return func(v *FileVault) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *FileVault) {
		if now != nil {
			v.now = now
		}
	}
}

// NewFileVault returns a vault rooted at dir, unlocked with password.
// No file is touched until an operation is called.
func NewFileVault(dir, password string, opts ...Option) *FileVault {
	v := &FileVault{
		dir:      dir,
		password: password,
		logger:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// DefaultDir returns ~/.aivault, or .aivault when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aivault"
	}
	return filepath.Join(home, ".aivault")
}

// Dir returns the vault directory.
func (v *FileVault) Dir() string { return v.dir }

func (v *FileVault) vaultPath() string  { return filepath.Join(v.dir, VaultFileName) }
func (v *FileVault) configPath() string { return filepath.Join(v.dir, ConfigFileName) }

func (v *FileVault) timestamp() string {
	return v.now().UTC().Format(timestampLayout)
}

// IsInitialized reports whether vault.enc exists. No decryption is attempted.
func (v *FileVault) IsInitialized() bool {
	_, err := os.Stat(v.vaultPath())
	return err == nil
}

// Init creates the vault directory (owner-only), an empty encrypted
// collection and the plaintext config.json.
func (v *FileVault) Init(ctx context.Context) error {
	if err := os.MkdirAll(v.dir, dirMode); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create vault directory %s", v.dir).WithCause(err)
	}
	if v.IsInitialized() {
		return schema.NewError(schema.ErrCodeAlreadyInitialized,
			`vault already initialized. Use "aivault set" to add secrets.`)
	}

	if err := v.writeVault(&VaultData{Secrets: []Secret{}}); err != nil {
		return err
	}

	cfg := VaultConfig{Version: FormatVersion, CreatedAt: v.timestamp()}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "encode vault config").WithCause(err)
	}
	if err := writeFileAtomic(v.configPath(), data); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "write %s", ConfigFileName).WithCause(err)
	}

	v.logger.InfoContext(ctx, "vault initialized", "dir", v.dir)
	return nil
}

// Config reads the plaintext metadata written at init.
func (v *FileVault) Config(_ context.Context) (*VaultConfig, error) {
	data, err := os.ReadFile(v.configPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notInitialized()
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "read %s", ConfigFileName).WithCause(err)
	}
	var cfg VaultConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "decode %s", ConfigFileName).WithCause(err)
	}
	return &cfg, nil
}

// SetSecret upserts a record by name. An existing record keeps its
// created_at; every call refreshes updated_at.
func (v *FileVault) SetSecret(ctx context.Context, name, value, description string, tags []string) error {
	if !ValidName(name) {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"invalid secret name %q. Must be uppercase letters, numbers, and underscores only, starting with a letter.", name)
	}

	data, err := v.readVault()
	if err != nil {
		return err
	}

	now := v.timestamp()
	if tags == nil {
		tags = []string{}
	}
	tags = slices.Clone(tags)

	if i := data.index(name); i >= 0 {
		s := &data.Secrets[i]
		s.Value = value
		s.Description = description
		s.Tags = tags
		s.UpdatedAt = now
		v.logger.DebugContext(ctx, "secret updated", "name", name)
	} else {
		data.Secrets = append(data.Secrets, Secret{
			Name:        name,
			Value:       value,
			Description: description,
			Tags:        tags,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		v.logger.DebugContext(ctx, "secret created", "name", name)
	}

	return v.writeVault(data)
}

// GetSecret returns the record with the given name, or nil when absent.
func (v *FileVault) GetSecret(_ context.Context, name string) (*Secret, error) {
	data, err := v.readVault()
	if err != nil {
		return nil, err
	}
	i := data.index(name)
	if i < 0 {
		return nil, nil
	}
	s := data.Secrets[i]
	return &s, nil
}

// ListSecrets returns metadata for every record, optionally only those
// tagged with tag. Values are projected out.
func (v *FileVault) ListSecrets(_ context.Context, tag string) ([]SecretMetadata, error) {
	data, err := v.readVault()
	if err != nil {
		return nil, err
	}
	out := make([]SecretMetadata, 0, len(data.Secrets))
	for i := range data.Secrets {
		s := &data.Secrets[i]
		if tag != "" && !s.HasTag(tag) {
			continue
		}
		out = append(out, s.Metadata())
	}
	return out, nil
}

// FilterSecrets returns metadata for records matching an expr-lang predicate
// over name, description and tags.
func (v *FileVault) FilterSecrets(_ context.Context, expression string) ([]SecretMetadata, error) {
	prg, err := compileFilter(expression)
	if err != nil {
		return nil, err
	}
	data, err := v.readVault()
	if err != nil {
		return nil, err
	}
	out := make([]SecretMetadata, 0)
	for i := range data.Secrets {
		m := data.Secrets[i].Metadata()
		ok, err := matchFilter(prg, m)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// DeleteSecret removes the record with the given name. It returns false,
// without rewriting the file, when no such record exists.
func (v *FileVault) DeleteSecret(ctx context.Context, name string) (bool, error) {
	data, err := v.readVault()
	if err != nil {
		return false, err
	}
	i := data.index(name)
	if i < 0 {
		return false, nil
	}
	data.Secrets = slices.Delete(data.Secrets, i, i+1)
	if err := v.writeVault(data); err != nil {
		return false, err
	}
	v.logger.DebugContext(ctx, "secret deleted", "name", name)
	return true, nil
}

// GetAllSecretValues returns every value keyed by name. This is the only
// operation exposing raw values; it exists to feed the command executor.
func (v *FileVault) GetAllSecretValues(_ context.Context) (map[string]string, error) {
	data, err := v.readVault()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(data.Secrets))
	for _, s := range data.Secrets {
		out[s.Name] = s.Value
	}
	return out, nil
}

func notInitialized() error {
	return schema.NewError(schema.ErrCodeNotInitialized, `vault not initialized. Run "aivault init" first.`)
}

func (v *FileVault) readVault() (*VaultData, error) {
	raw, err := os.ReadFile(v.vaultPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notInitialized()
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "read %s", VaultFileName).WithCause(err)
	}
	plaintext, err := Decrypt(raw, v.password)
	if err != nil {
		return nil, err
	}
	return decodeVaultData(plaintext)
}

func (v *FileVault) writeVault(data *VaultData) error {
	plaintext, err := encodeVaultData(data)
	if err != nil {
		return err
	}
	payload, err := Encrypt(plaintext, v.password)
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "encrypt vault").WithCause(err)
	}
	if err := writeFileAtomic(v.vaultPath(), payload); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "write %s", VaultFileName).WithCause(err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place. The file is created with owner-only permissions.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
