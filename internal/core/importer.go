package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
)

var copyColumns = []string{"time", "panelid", "lotid", "carrierid"}

// ImportResult counts the outcome of one import.
type ImportResult struct {
	Source       string `json:"source"`
	Added        int    `json:"added"`
	FormatErrors int    `json:"format_errors"`

	// Skipped counts duplicates and rows with a missing field.
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
	Missing    int `json:"missing"`

	// NoData is set when the source held no usable rows; nothing was
	// written to the store or the system log.
	NoData bool `json:"no_data"`
}

// Summary renders the counts for operators.
func (r *ImportResult) Summary() string {
	if r.NoData {
		return "no valid data"
	}
	return fmt.Sprintf("added: %d, format errors: %d, skipped: %d (incl. duplicates)",
		r.Added, r.FormatErrors, r.Skipped)
}

// Importer loads spreadsheet rows into operation_records, skipping rows
// whose natural key already exists in the store or earlier in the batch.
type Importer struct {
	db          DB
	audit       *AuditLog
	maxFileSize int64
}

// NewImporter returns an Importer. maxFileSize <= 0 disables the size check
// in ImportFile.
func NewImporter(db DB, audit *AuditLog, maxFileSize int64) *Importer {
	return &Importer{db: db, audit: audit, maxFileSize: maxFileSize}
}

// ImportFile imports an .xlsx or .csv file from disk.
func (im *Importer) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	if info, err := os.Stat(path); err == nil && im.maxFileSize > 0 && info.Size() > im.maxFileSize {
		return nil, fmt.Errorf("%w: file too large: %d bytes exceeds %d", ErrInvalidArgument, info.Size(), im.maxFileSize)
	}

	src, err := OpenSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return im.ImportFrom(ctx, src)
}

// ImportFrom reads every row of src, deduplicates the valid ones against
// stored records and against each other at second precision, and inserts
// the survivors together with one import log entry in a single
// transaction. On error nothing is inserted and no result is returned.
func (im *Importer) ImportFrom(ctx context.Context, src Source) (res *ImportResult, err error) {
	defer observe("import", time.Now(), &err)

	logger := slog.With("source", src.Name())
	res = &ImportResult{Source: src.Name()}

	var candidates []OperationRecord
	for {
		cells, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			logger.Debug("unreadable row", "row", rowErr.Row, "error", rowErr.Err)
			res.FormatErrors++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src.Name(), err)
		}

		rec, status := parseRow(cells)
		switch status {
		case rowOK:
			candidates = append(candidates, rec)
		case rowMissing:
			res.Missing++
			res.Skipped++
		case rowFormatError:
			res.FormatErrors++
		}
	}

	if len(candidates) == 0 && res.FormatErrors == 0 {
		res.NoData = true
		logger.Info("import found no valid data", "missing", res.Missing)
		return res, nil
	}

	err = withTx(ctx, im.db, "import", func(tx pgx.Tx) error {
		queue, err := im.dedupe(ctx, tx, candidates, res)
		if err != nil {
			return err
		}

		if len(queue) > 0 {
			n, err := tx.CopyFrom(ctx, pgx.Identifier{recordsTable}, copyColumns,
				pgx.CopyFromSlice(len(queue), func(i int) ([]any, error) {
					r := queue[i]
					return []any{r.Time, r.PanelID, r.LOTID, r.CarrierID}, nil
				}))
			if err != nil {
				return fmt.Errorf("copy records: %w", err)
			}
			if n != int64(len(queue)) {
				return fmt.Errorf("copy records: inserted %d of %d rows", n, len(queue))
			}
		}

		_, err = appendTx(ctx, tx, im.audit.entry(ctx, OpImport,
			fmt.Sprintf("%s\n%d rows", filepath.Base(src.Name()), res.Added),
			fmt.Sprintf("path: %s\nresult: %s", src.Name(), res.Summary())))
		return err
	})
	if err != nil {
		logger.Error("import rolled back", "error", err)
		return nil, err
	}

	recordImportRows(res)
	logger.Info("import completed",
		"added", res.Added,
		"duplicates", res.Duplicates,
		"missing", res.Missing,
		"format_errors", res.FormatErrors,
	)
	return res, nil
}

// dedupe returns the candidates whose natural key is neither stored within
// the candidates' time range nor repeated earlier in the batch, updating
// the counts in res.
func (im *Importer) dedupe(ctx context.Context, db DBTX, candidates []OperationRecord, res *ImportResult) ([]OperationRecord, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	minTime, maxTime := candidates[0].Time, candidates[0].Time
	for _, c := range candidates[1:] {
		if c.Time.Before(minTime) {
			minTime = c.Time
		}
		if c.Time.After(maxTime) {
			maxTime = c.Time
		}
	}

	existing, err := ExistingKeys(ctx, db, minTime, maxTime)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(candidates))
	queue := make([]OperationRecord, 0, len(candidates))
	for _, c := range candidates {
		key := c.NaturalKey()
		_, stored := existing[key]
		_, repeated := seen[key]
		if stored || repeated {
			res.Duplicates++
			res.Skipped++
			continue
		}
		seen[key] = struct{}{}
		queue = append(queue, c)
		res.Added++
	}
	return queue, nil
}
