package secrets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/aivault/pkg/schema"
)

const vaultSchemaURL = "https://aivault.dev/schemas/vault.json"

// vaultSchemaJSON describes the decrypted VaultData document.
const vaultSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://aivault.dev/schemas/vault.json",
  "type": "object",
  "required": ["secrets"],
  "properties": {
    "secrets": {
      "type": "array",
      "items": { "$ref": "#/$defs/secret" }
    }
  },
  "$defs": {
    "secret": {
      "type": "object",
      "required": ["name", "value"],
      "properties": {
        "name": { "type": "string", "pattern": "^[A-Z][A-Z0-9_]*$" },
        "value": { "type": "string" },
        "description": { "type": "string" },
        "tags": { "type": "array", "items": { "type": "string" } },
        "created_at": { "type": "string" },
        "updated_at": { "type": "string" }
      }
    }
  }
}`

var (
	vaultSchemaOnce sync.Once
	vaultSchema     *jsonschema.Schema
	vaultSchemaErr  error
)

func compiledVaultSchema() (*jsonschema.Schema, error) {
	vaultSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(vaultSchemaJSON))
		if err != nil {
			vaultSchemaErr = fmt.Errorf("unmarshal vault schema: %w", err)
			return
		}
		if err := c.AddResource(vaultSchemaURL, doc); err != nil {
			vaultSchemaErr = fmt.Errorf("add vault schema resource: %w", err)
			return
		}
		vaultSchema, vaultSchemaErr = c.Compile(vaultSchemaURL)
	})
	return vaultSchema, vaultSchemaErr
}

// decodeVaultData validates decrypted plaintext against the vault schema and
// decodes it. Anything that is not a well-formed vault document is reported
// as ErrCodeCorruptVault.
func decodeVaultData(plaintext []byte) (*VaultData, error) {
	sch, err := compiledVaultSchema()
	if err != nil {
		return nil, err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(plaintext))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeCorruptVault, "vault contents are not valid JSON").WithCause(err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, schema.NewError(schema.ErrCodeCorruptVault, "vault contents do not match the vault schema").
			WithCause(err).
			WithDetails(map[string]any{"violations": violations(err)})
	}

	var data VaultData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, schema.NewError(schema.ErrCodeCorruptVault, "decode vault contents").WithCause(err)
	}
	return &data, nil
}

func encodeVaultData(data *VaultData) ([]byte, error) {
	if data.Secrets == nil {
		data.Secrets = []Secret{}
	}
	for i := range data.Secrets {
		if data.Secrets[i].Tags == nil {
			data.Secrets[i].Tags = []string{}
		}
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "encode vault contents").WithCause(err)
	}
	return b, nil
}

// violations flattens a validation error tree into location-prefixed
// messages. Instance values are never included, so secret values cannot leak
// through error details.
func violations(err error) []string {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	return collectViolations(verr)
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		return []string{"/" + strings.Join(verr.InstanceLocation, "/")}
	}
	var out []string
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}
