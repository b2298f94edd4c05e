package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rendis/aivault/internal/secrets"
	"github.com/rendis/aivault/pkg/schema"
)

type setOptions struct {
	desc       string
	tags       string
	force      bool
	valueStdin bool
}

func newSetCmd(a *app) *cobra.Command {
	var opts setOptions
	cmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Add or update a secret",
		Long: `Set stores a secret under NAME. The value is prompted for without echo,
or read from stdin with --value-stdin. An existing secret is only replaced
after confirmation or with --force.`,
		Example: `  aivault set GITHUB_TOKEN --desc "GitHub PAT for repo access" --tags github,ci`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSet(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.desc, "desc", "", "What the secret is for (shown to agents)")
	cmd.Flags().StringVar(&opts.tags, "tags", "", "Comma-separated tags")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Overwrite an existing secret without asking")
	cmd.Flags().BoolVar(&opts.valueStdin, "value-stdin", false, "Read the value from stdin instead of prompting")
	_ = cmd.MarkFlagRequired("desc")
	return cmd
}

func (a *app) runSet(cmd *cobra.Command, name string, opts setOptions) error {
	ctx := cmd.Context()
	if !secrets.ValidName(name) {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"invalid secret name %q. Must be uppercase letters, numbers, and underscores only, starting with a letter.", name)
	}

	vault, err := a.openVault()
	if err != nil {
		return err
	}

	existing, err := vault.GetSecret(ctx, name)
	if err != nil {
		return err
	}
	if existing != nil && !opts.force {
		if opts.valueStdin {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"Secret %s already exists. Use --force to overwrite.", name)
		}
		ok, err := a.confirm(fmt.Sprintf("Secret %s already exists. Overwrite? (y/N): ", name))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.out, "Aborted.")
			return nil
		}
	}

	value, err := a.readValue(name, opts.valueStdin)
	if err != nil {
		return err
	}
	if value == "" {
		return schema.NewError(schema.ErrCodeValidation, "Secret value cannot be empty.")
	}

	if err := vault.SetSecret(ctx, name, value, opts.desc, secrets.ParseTags(opts.tags)); err != nil {
		return err
	}
	success(a.out, "Secret %s saved", name)
	return nil
}

// readValue takes the whole of stdin (minus one trailing newline) with
// fromStdin, or prompts without echo.
func (a *app) readValue(name string, fromStdin bool) (string, error) {
	if !fromStdin {
		return a.promptHidden(fmt.Sprintf("Enter value for %s: ", name))
	}
	data, err := io.ReadAll(a.reader)
	if err != nil {
		return "", fmt.Errorf("read value from stdin: %w", err)
	}
	value := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(value, "\r"), nil
}
