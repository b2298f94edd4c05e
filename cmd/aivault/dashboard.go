package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/aivault/internal/dashboard"
	"github.com/rendis/aivault/internal/secrets"
	"github.com/rendis/aivault/internal/streaming"
)

func newDashboardCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the local web dashboard",
		Long: `Dashboard serves a web UI for listing, adding, editing and deleting secrets.
It only binds loopback addresses and never displays secret values. Open pages
refresh when the vault file changes on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.DashboardAddr
			}
			if err := dashboard.CheckLoopback(addr); err != nil {
				return err
			}
			vault, err := a.openVault()
			if err != nil {
				return err
			}
			// Unlock once up front so a wrong password fails here, not on the first page.
			if _, err := vault.ListSecrets(cmd.Context(), ""); err != nil {
				return err
			}

			ctx := cmd.Context()
			hub := streaming.NewMemoryHub()
			watcher := streaming.NewWatcher(vault.Dir(), secrets.VaultFileName, hub, a.logger)
			go func() {
				if err := watcher.Run(ctx); err != nil {
					a.logger.WarnContext(ctx, "vault watcher stopped", "error", err)
				}
			}()

			srv := dashboard.NewServer(dashboard.Deps{Vault: vault, Hub: hub, Logger: a.logger})
			fmt.Fprintf(a.out, "aivault dashboard running at http://%s\n", addr)
			fmt.Fprintln(a.out, "Press Ctrl+C to stop.")
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default 127.0.0.1:7470)")
	return cmd
}
