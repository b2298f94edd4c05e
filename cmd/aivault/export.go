package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		tag    string
	)
	cmd := &cobra.Command{
		Use:   "export-descriptions",
		Short: "Export secret metadata for agent prompts",
		Long: `Export-descriptions prints every secret's name, description and tags, for
pasting into agent instructions. Values are never exported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := a.openVault()
			if err != nil {
				return err
			}
			list, err := vault.ListSecrets(cmd.Context(), tag)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(a.out, nonNil(list))
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, "No secrets to export.")
				return nil
			}
			writeTable(a.out, list)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	cmd.Flags().StringVar(&tag, "tag", "", "Only secrets carrying this tag")
	return cmd
}
