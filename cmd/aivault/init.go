package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/aivault/pkg/schema"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the vault with a master password",
		Long: `Init creates the vault directory and an empty encrypted vault.
AIVAULT_MASTER_PASSWORD is used when set; otherwise the password is prompted
for twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.vaultFor("").IsInitialized() {
				return schema.NewError(schema.ErrCodeAlreadyInitialized,
					`vault already initialized. Use "aivault set" to add secrets.`)
			}

			password := a.cfg.MasterPassword
			if password == "" {
				var err error
				if password, err = a.promptNewPassword(); err != nil {
					return err
				}
			}

			if err := a.vaultFor(password).Init(cmd.Context()); err != nil {
				return err
			}
			success(a.out, "Vault initialized at %s", a.cfg.Dir)
			fmt.Fprintln(a.out, `  Use "aivault set <NAME> --desc <description>" to add secrets.`)
			return nil
		},
	}
}

func (a *app) promptNewPassword() (string, error) {
	password, err := a.promptHidden("Set master password: ")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", schema.NewError(schema.ErrCodeValidation, "Password cannot be empty.")
	}
	confirm, err := a.promptHidden("Confirm master password: ")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", schema.NewError(schema.ErrCodeValidation, "Passwords do not match.")
	}
	return password, nil
}
