package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ErrEmptyExport is returned when an export is asked to write no records.
var ErrEmptyExport = fmt.Errorf("%w: no records to export", ErrInvalidArgument)

const recordSheet = "Operations"

var recordSheetHeader = []string{"Time", "PanelID", "LOTID", "CarrierID"}

// Exporter writes record sets to a spreadsheet or a standalone SQLite file.
type Exporter struct {
	audit *AuditLog
}

// NewExporter returns an Exporter logging to audit.
func NewExporter(audit *AuditLog) *Exporter {
	return &Exporter{audit: audit}
}

// ExportSpreadsheet writes records, in the given order, to an xlsx workbook
// at path and logs an export entry. If writing the file or the export entry
// fails, an export-failed entry is logged and the error is returned.
func (e *Exporter) ExportSpreadsheet(ctx context.Context, records []OperationRecord, path string) (err error) {
	defer observe("export_xlsx", time.Now(), &err)

	if len(records) == 0 {
		return ErrEmptyExport
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.Time.Format(TimeLayout), r.PanelID, r.LOTID, r.CarrierID}
	}

	if werr := writeWorkbook(path, recordSheet, recordSheetHeader, rows); werr != nil {
		e.logFailure(ctx, path, werr)
		return fmt.Errorf("export spreadsheet %s: %w", path, werr)
	}

	slog.Info("spreadsheet exported", "path", path, "rows", len(records))

	if _, err = e.audit.Append(ctx, e.audit.entry(ctx, OpExport,
		fmt.Sprintf("%s\n%d rows", filepath.Base(path), len(records)),
		"saved to: "+absPath(path))); err != nil {
		e.logFailure(ctx, path, err)
		return err
	}
	return nil
}

func (e *Exporter) logFailure(ctx context.Context, path string, cause error) {
	_, err := e.audit.Append(ctx, e.audit.entry(ctx, OpExportFailed, "N/A",
		fmt.Sprintf("path: %s, error: %v", path, cause)))
	if err != nil {
		slog.Error("failed to log export failure", "path", path, "error", err)
	}
}

// writeWorkbook streams header and rows into a single-sheet workbook and
// saves it to path. The header is bold and column widths follow the
// longest value in each column.
func writeWorkbook(path, sheet string, header []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	for col, w := range columnWidths(header, rows) {
		if err := sw.SetColWidth(col+1, col+1, w); err != nil {
			return err
		}
	}

	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", headerRow); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}

const (
	minColumnWidth = 10
	maxColumnWidth = 80
)

func columnWidths(header []string, rows [][]any) []float64 {
	widths := make([]float64, len(header))
	fit := func(i int, s string) {
		if w := float64(utf8.RuneCountInString(s) + 2); w > widths[i] {
			widths[i] = w
		}
	}
	for i, h := range header {
		fit(i, h)
	}
	for _, row := range rows {
		for i, v := range row {
			if i >= len(widths) {
				break
			}
			switch v := v.(type) {
			case string:
				fit(i, v)
			case int64:
				fit(i, strconv.FormatInt(v, 10))
			default:
				fit(i, fmt.Sprint(v))
			}
		}
	}
	for i, w := range widths {
		widths[i] = min(max(w, minColumnWidth), maxColumnWidth)
	}
	return widths
}
