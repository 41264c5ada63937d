package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/paneltrack/internal/application"
	"github.com/JonMunkholm/paneltrack/internal/core"
)

var errNotConfirmed = fmt.Errorf("%w: refusing to clear the system log without --confirm", core.ErrInvalidArgument)

func newLogsCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Read, export or clear the system log",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the system log, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, app *application.App) error {
				entries, err := app.Service.Audit.GetAll(ctx)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tUSER\tMACHINE\tTYPE\tAFFECTED")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						e.OperationTime.Format(core.TimeLayout), e.UserName, e.MachineName, e.OperationType,
						strings.ReplaceAll(e.AffectedData, "\n", " / "))
				}
				return tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export PATH",
		Short: "Write the system log to an .xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, app *application.App) error {
				entries, err := app.Service.Audit.GetAll(ctx)
				if err != nil {
					return err
				}
				if err := app.Service.Audit.ExportSpreadsheet(ctx, entries, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries to %s\n", len(entries), args[0])
				return nil
			})
		},
	})

	var confirm bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Erase every system log entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return userError(errNotConfirmed)
			}
			return r.withApp(cmd, func(ctx context.Context, app *application.App) error {
				if err := app.Service.Audit.ClearAndRecord(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "system log cleared")
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&confirm, "confirm", false, "confirm that every entry should be erased")
	cmd.AddCommand(clearCmd)

	return cmd
}

// IsNotConfirmed reports whether err came from a destructive command run
// without its confirmation flag.
func IsNotConfirmed(err error) bool {
	return errors.Is(err, errNotConfirmed)
}
