package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/paneltrack/internal/application"
	"github.com/JonMunkholm/paneltrack/internal/core"
)

// FilterFlags select records for list and export commands.
type FilterFlags struct {
	Panel   string
	Lot     string
	Carrier string
	Date    string
	Time    string
}

func (f *FilterFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Panel, "panel", "", "exact PanelID")
	fs.StringVar(&f.Lot, "lot", "", "exact LOTID")
	fs.StringVar(&f.Carrier, "carrier", "", "exact CarrierID")
	fs.StringVar(&f.Date, "date", "", "calendar day, YYYY-MM-DD")
	fs.StringVar(&f.Time, "time", "", "time-of-day prefix, e.g. 08 or 08:3")
}

func (f *FilterFlags) Filter() (core.Filter, error) {
	out := core.Filter{PanelID: f.Panel, LOTID: f.Lot, CarrierID: f.Carrier, TimeText: f.Time}
	if f.Date != "" {
		day, err := time.Parse(time.DateOnly, f.Date)
		if err != nil {
			return core.Filter{}, fmt.Errorf("%w: --date %q must be YYYY-MM-DD", core.ErrInvalidArgument, f.Date)
		}
		out.Date = &day
	}
	return out, nil
}

// RecordFlags carry the value fields of add and update.
type RecordFlags struct {
	Time      string
	PanelID   int64
	LOTID     int64
	CarrierID int64
}

func (f *RecordFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Time, "time", "", "operation time, YYYY/MM/DD HH:MM:SS")
	fs.Int64Var(&f.PanelID, "panel", 0, "PanelID")
	fs.Int64Var(&f.LOTID, "lot", 0, "LOTID")
	fs.Int64Var(&f.CarrierID, "carrier", 0, "CarrierID")
}

func (f *RecordFlags) Record() (core.OperationRecord, error) {
	t, err := time.Parse(core.TimeLayout, f.Time)
	if err != nil {
		return core.OperationRecord{}, fmt.Errorf("%w: --time %q must be YYYY/MM/DD HH:MM:SS", core.ErrInvalidArgument, f.Time)
	}
	return core.OperationRecord{Time: t, PanelID: f.PanelID, LOTID: f.LOTID, CarrierID: f.CarrierID}, nil
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, n := range names {
		cmd.MarkFlagRequired(n) //nolint:errcheck
	}
}

func newRecordsCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List and edit operation records",
	}
	cmd.AddCommand(
		newRecordsListCommand(r),
		newRecordsAddCommand(r),
		newRecordsUpdateCommand(r),
		newRecordsDeleteCommand(r),
	)
	return cmd
}

func newRecordsListCommand(r *runner) *cobra.Command {
	f := &FilterFlags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print records ordered by PanelID, LOTID, CarrierID and time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := f.Filter()
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *application.App) error {
				records, err := app.Service.LoadRecords(ctx, filter)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTIME\tPANELID\tLOTID\tCARRIERID")
				for _, rec := range records {
					fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n", rec.ID, rec.Time.Format(core.TimeLayout), rec.PanelID, rec.LOTID, rec.CarrierID)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d records\n", len(records))
				return nil
			})
		},
	}
	f.BindFlags(cmd.Flags())
	return cmd
}

func newRecordsAddCommand(r *runner) *cobra.Command {
	f := &RecordFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Insert one record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := f.Record()
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *application.App) error {
				id, err := app.Service.Records.Insert(ctx, rec)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "inserted record %d\n", id)
				return nil
			})
		},
	}
	f.BindFlags(cmd.Flags())
	markRequired(cmd, "time", "panel", "lot", "carrier")
	return cmd
}

func newRecordsUpdateCommand(r *runner) *cobra.Command {
	f := &RecordFlags{}
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Replace the values of one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			rec, err := f.Record()
			if err != nil {
				return err
			}
			rec.ID = ids[0]

			return r.withApp(cmd, func(ctx context.Context, app *application.App) error {
				if err := app.Service.Records.Update(ctx, rec); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated record %d\n", rec.ID)
				return nil
			})
		},
	}
	f.BindFlags(cmd.Flags())
	markRequired(cmd, "time", "panel", "lot", "carrier")
	return cmd
}

func newRecordsDeleteCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete records by id; several ids are deleted as one batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return r.withApp(cmd, func(ctx context.Context, app *application.App) error {
				if len(ids) == 1 {
					if err := app.Service.Records.Delete(ctx, ids[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted record %d\n", ids[0])
					return nil
				}

				n, err := app.Service.Records.DeleteBatch(ctx, ids)
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records\n", n)
				return err
			})
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, len(args))
	for i, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: invalid record id %q", core.ErrInvalidArgument, a)
		}
		ids[i] = id
	}
	return ids, nil
}
