package main

import (
	"github.com/spf13/cobra"

	"github.com/rendis/aivault/internal/executor"
	"github.com/rendis/aivault/pkg/mcp"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Serve exposes list_secrets, run_command and request_secret to an MCP client
over stdin/stdout. The master password is read from AIVAULT_MASTER_PASSWORD
only; without it every tool answers with setup instructions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := mcp.AivaultServerDeps{
				Runner:  executor.NewFromProcess(a.logger, a.cfg.MaxOutputBytes),
				Logger:  a.logger,
				Version: version,
			}
			if a.cfg.MasterPassword != "" {
				deps.Vault = a.vaultFor(a.cfg.MasterPassword)
			} else {
				a.logger.Warn("AIVAULT_MASTER_PASSWORD not set, vault tools are disabled")
			}
			a.logger.Info("mcp server starting", "vault_dir", a.cfg.Dir, "initialized", a.vaultFor("").IsInitialized())

			return mcp.NewAivaultServer(deps).ServeIO(cmd.Context(), a.in, a.out)
		},
	}
}
