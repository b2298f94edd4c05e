package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/aivault/pkg/schema"
)

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			vault, err := a.openVault()
			if err != nil {
				return err
			}

			if !yes {
				ok, err := a.confirm(fmt.Sprintf("Are you sure you want to delete %s? (y/N): ", name))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(a.out, "Aborted.")
					return nil
				}
			}

			deleted, err := vault.DeleteSecret(cmd.Context(), name)
			if err != nil {
				return err
			}
			if !deleted {
				return schema.NewErrorf(schema.ErrCodeValidation, "Secret %s not found.", name)
			}
			success(a.out, "Secret %s deleted", name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
