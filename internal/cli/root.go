// Package cli implements panelctl, the operator command line for the
// paneltrack database.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/paneltrack/internal/application"
	"github.com/JonMunkholm/paneltrack/internal/config"
	"github.com/JonMunkholm/paneltrack/internal/core"
	"github.com/JonMunkholm/paneltrack/internal/logging"
)

// Opener connects to the store and initializes its schema.
type Opener func(ctx context.Context, cfg *config.Config) (*application.App, error)

// RootFlags are the flags shared by every command.
type RootFlags struct {
	LogLevel  string
	LogFormat string
	Operator  string
}

func (f *RootFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.LogLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	fs.StringVar(&f.LogFormat, "log-format", "", "log format (text, json); overrides LOG_FORMAT")
	fs.StringVar(&f.Operator, "operator", "", "user recorded in the system log; overrides OPERATOR_NAME")
}

// runner opens the application lazily for the command being run.
type runner struct {
	flags *RootFlags
	open  Opener
	cfg   *config.Config
}

// withApp runs fn against a freshly opened application. Opening always
// ensures the database and schema exist first.
func (r *runner) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *application.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := r.open(ctx, r.cfg)
	if err != nil {
		return userError(err)
	}
	defer app.Close()

	ctx = core.WithActor(ctx, app.Actor)
	return userError(fn(ctx, app))
}

// userError appends the operator message and support code to err.
func userError(err error) error {
	if err == nil || !core.IsUserFacing(err) {
		return err
	}
	return fmt.Errorf("%w\n%s", err, core.FormatUserError(err))
}

// NewRootCommand builds the panelctl command tree. open is called by each
// command that touches the database; nil selects application.Open.
func NewRootCommand(open Opener, out io.Writer) *cobra.Command {
	if open == nil {
		open = application.Open
	}
	r := &runner{flags: &RootFlags{}, open: open}

	cmd := &cobra.Command{
		Use:           "panelctl",
		Short:         "Manage panel operation records and the system log",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if r.flags.LogLevel != "" {
				cfg.Logging.Level = r.flags.LogLevel
			}
			if r.flags.LogFormat != "" {
				cfg.Logging.Format = r.flags.LogFormat
			}
			if r.flags.Operator != "" {
				cfg.Operator.Name = r.flags.Operator
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			r.cfg = cfg
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(out)
	r.flags.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newInitCommand(r),
		newRecordsCommand(r),
		newImportCommand(r),
		newExportCommand(r),
		newSnapshotCommand(r),
		newLogsCommand(r),
	)
	return cmd
}

func newInitCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, app *application.App) error {
				fmt.Fprintln(cmd.OutOrStdout(), "database ready")
				return nil
			})
		},
	}
}
