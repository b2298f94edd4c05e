package secrets

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/aivault/pkg/schema"
)

// metadataEnv is the expression environment for one record. It is built from
// SecretMetadata so a filter can never observe a secret value.
func metadataEnv(m SecretMetadata) map[string]any {
	return map[string]any{
		"name":        m.Name,
		"description": m.Description,
		"tags":        m.Tags,
	}
}

// compileFilter compiles a boolean expr-lang predicate over name, description
// and tags, e.g. `"db" in tags && name startsWith "PG"`.
func compileFilter(expression string) (*vm.Program, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty filter expression")
	}
	prg, err := expr.Compile(expression,
		expr.Env(metadataEnv(SecretMetadata{Tags: []string{}})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"filter compile error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	return prg, nil
}

func matchFilter(prg *vm.Program, m SecretMetadata) (bool, error) {
	out, err := expr.Run(prg, metadataEnv(m))
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"filter evaluation failed for %s: %s", m.Name, err.Error()).WithCause(err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, schema.NewErrorf(schema.ErrCodeValidation, "filter must evaluate to a boolean, got %T", out)
	}
	return ok, nil
}
