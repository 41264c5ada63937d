package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/paneltrack/internal/application"
	"github.com/JonMunkholm/paneltrack/internal/core"
	"github.com/JonMunkholm/paneltrack/internal/logging"
)

func newImportCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import records from an .xlsx or .csv file, skipping duplicates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, app *application.App) error {
				res, err := app.Service.Importer.ImportFile(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, res.Summary())
				if !res.NoData {
					fmt.Fprintf(out, "duplicates: %d, missing fields: %d\n", res.Duplicates, res.Missing)
				}
				return nil
			})
		},
	}
}

func newExportCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records to a spreadsheet or a standalone snapshot",
	}
	cmd.AddCommand(
		newExportKindCommand(r, core.ExportXLSX, "Write records to an .xlsx workbook"),
		newExportKindCommand(r, core.ExportSnapshot, "Write records to a single-file SQLite snapshot"),
	)
	return cmd
}

func newExportKindCommand(r *runner, kind, short string) *cobra.Command {
	f := &FilterFlags{}
	cmd := &cobra.Command{
		Use:   kind + " PATH",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := f.Filter()
			if err != nil {
				return err
			}
			path := args[0]

			return r.withApp(cmd, func(ctx context.Context, app *application.App) error {
				records, err := app.Service.LoadRecords(ctx, filter)
				if err != nil {
					return err
				}
				if kind == core.ExportXLSX {
					err = app.Service.Exporter.ExportSpreadsheet(ctx, records, path)
				} else {
					err = app.Service.Exporter.ExportSnapshot(ctx, records, path)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", len(records), path)
				return nil
			})
		},
	}
	f.BindFlags(cmd.Flags())
	return cmd
}

// newSnapshotCommand reads snapshot files and never touches the database,
// so it replaces the root config load with logging setup alone.
func newSnapshotCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Work with exported snapshot files",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, format := r.flags.LogLevel, r.flags.LogFormat
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			if format == "" {
				format = os.Getenv("LOG_FORMAT")
			}
			logging.Setup(level, format)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "inspect PATH",
		Short: "Print the records stored in a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := core.ReadSnapshot(cmd.Context(), args[0])
			if err != nil {
				return userError(err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tPANELID\tLOTID\tCARRIERID")
			for _, rec := range records {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", rec.Time.Format(core.TimeLayout), rec.PanelID, rec.LOTID, rec.CarrierID)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records\n", len(records))
			return nil
		},
	})
	return cmd
}
