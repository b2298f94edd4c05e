package secrets

import (
	"context"
	"regexp"
	"slices"
	"strings"
)

// Vault is the secret store consumed by the MCP server and the dashboard.
// Satisfied by *FileVault.
type Vault interface {
	IsInitialized() bool
	SetSecret(ctx context.Context, name, value, description string, tags []string) error
	GetSecret(ctx context.Context, name string) (*Secret, error)
	ListSecrets(ctx context.Context, tag string) ([]SecretMetadata, error)
	FilterSecrets(ctx context.Context, expression string) ([]SecretMetadata, error)
	DeleteSecret(ctx context.Context, name string) (bool, error)
	GetAllSecretValues(ctx context.Context) (map[string]string, error)
}

// NamePattern is the shape every secret name must have. It doubles as the
// shape of a $NAME reference inside a command.
const NamePattern = `^[A-Z][A-Z0-9_]*$`

var nameRE = regexp.MustCompile(NamePattern)

// ValidName reports whether name is a valid secret name.
func ValidName(name string) bool {
	return nameRE.MatchString(name)
}

// ParseTags splits a comma-separated tag list, trimming blanks and dropping
// empty and repeated entries.
func ParseTags(csv string) []string {
	tags := []string{}
	for _, t := range strings.Split(csv, ",") {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(tags, t) {
			continue
		}
		tags = append(tags, t)
	}
	return tags
}

// Secret is one credential record.
type Secret struct {
	Name        string   `json:"name"`
	Value       string   `json:"value"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// Metadata projects the secret without its value.
func (s *Secret) Metadata() SecretMetadata {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	return SecretMetadata{
		Name:        s.Name,
		Description: s.Description,
		Tags:        slices.Clone(tags),
	}
}

// HasTag reports whether the secret carries tag.
func (s *Secret) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// SecretMetadata is the listing view of a secret. It has no value field.
type SecretMetadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// VaultData is the full collection, encrypted and persisted as one unit.
type VaultData struct {
	Secrets []Secret `json:"secrets"`
}

func (d *VaultData) index(name string) int {
	return slices.IndexFunc(d.Secrets, func(s Secret) bool { return s.Name == name })
}

// VaultConfig is the plaintext metadata written once at init.
type VaultConfig struct {
	Version   string `json:"version"`
	CreatedAt string `json:"created_at"`
}
