package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/rendis/aivault/internal/secrets"
)

type listOptions struct {
	tag    string
	filter string
	json   bool
}

func newListCmd(a *app) *cobra.Command {
	var opts listOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List secrets (names and descriptions, never values)",
		Example: `  aivault list --tag github
  aivault list --filter 'name startsWith "AWS_" && "prod" in tags'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := a.openVault()
			if err != nil {
				return err
			}
			list, err := listMetadata(cmd.Context(), vault, opts.tag, opts.filter)
			if err != nil {
				return err
			}

			if opts.json {
				return writeJSON(a.out, nonNil(list))
			}
			if len(list) == 0 {
				if opts.tag != "" {
					fmt.Fprintf(a.out, "No secrets found with tag %q.\n", opts.tag)
				} else {
					fmt.Fprintln(a.out, "No secrets in vault.")
				}
				return nil
			}
			writeTable(a.out, list)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.tag, "tag", "", "Only secrets carrying this tag")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter expression over name, description and tags")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output in JSON format")
	return cmd
}

// listMetadata narrows the listing by filter expression and tag.
func listMetadata(ctx context.Context, vault secrets.Vault, tag, filter string) ([]secrets.SecretMetadata, error) {
	if filter == "" {
		return vault.ListSecrets(ctx, tag)
	}
	list, err := vault.FilterSecrets(ctx, filter)
	if err != nil || tag == "" {
		return list, err
	}
	return slices.DeleteFunc(list, func(m secrets.SecretMetadata) bool {
		return !slices.Contains(m.Tags, tag)
	}), nil
}
