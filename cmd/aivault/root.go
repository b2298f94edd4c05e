package main

import (
	"bufio"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rendis/aivault/internal/logging"
	"github.com/rendis/aivault/internal/secrets"
	"github.com/rendis/aivault/pkg/schema"
)

// app carries the process streams and the state shared by every command.
type app struct {
	in      io.Reader
	reader  *bufio.Reader
	out     io.Writer
	errOut  io.Writer
	environ []string

	verbose bool
	cfg     Config
	logger  *slog.Logger
}

func newApp(in io.Reader, out, errOut io.Writer, environ []string) *app {
	return &app{
		in:      in,
		reader:  bufio.NewReader(in),
		out:     out,
		errOut:  errOut,
		environ: environ,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "aivault",
		Short: "Secure secret management for AI agents",
		Long: `aivault keeps API keys and other credentials in an encrypted local vault.
Agents see secret names and descriptions only; commands they run get the
values injected as environment variables and every output is scrubbed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(a.environ)
			if err != nil {
				return err
			}
			a.cfg = cfg

			level := cfg.LogLevel
			if a.verbose {
				level = "debug"
			}
			a.logger = logging.New(a.errOut, level)
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newInitCmd(a),
		newSetCmd(a),
		newListCmd(a),
		newDeleteCmd(a),
		newExportCmd(a),
		newDashboardCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
	)
	return root
}

// vaultFor returns a vault handle for password without touching the disk.
func (a *app) vaultFor(password string) *secrets.FileVault {
	return secrets.NewFileVault(a.cfg.Dir, password, secrets.WithLogger(a.logger))
}

// openVault checks the vault exists, then unlocks it with the configured or
// prompted master password.
func (a *app) openVault() (*secrets.FileVault, error) {
	if !a.vaultFor("").IsInitialized() {
		return nil, schema.NewError(schema.ErrCodeNotInitialized, `vault not initialized. Run "aivault init" first.`)
	}
	password, err := a.masterPassword()
	if err != nil {
		return nil, err
	}
	return a.vaultFor(password), nil
}
