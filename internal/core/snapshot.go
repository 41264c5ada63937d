package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// snapshotTimeLayout is how times are stored in the snapshot's TEXT column.
const snapshotTimeLayout = "2006-01-02 15:04:05"

const createSnapshotTableSQL = `CREATE TABLE PanelRecords (
	Time TEXT,
	PanelID INTEGER,
	LOTID INTEGER,
	CarrierID INTEGER
)`

const snapshotBatchSize = 200

// snapshotRow is one row of the PanelRecords table in a snapshot file.
type snapshotRow struct {
	Time      string `gorm:"column:Time"`
	PanelID   int64  `gorm:"column:PanelID"`
	LOTID     int64  `gorm:"column:LOTID"`
	CarrierID int64  `gorm:"column:CarrierID"`
}

func (snapshotRow) TableName() string { return "PanelRecords" }

func openSnapshot(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
}

// ExportSnapshot writes records to a new single-file SQLite database at
// path, replacing any existing file. The file is built under a temporary
// name and renamed into place only after its transaction commits, so path
// never holds a partial snapshot.
func (e *Exporter) ExportSnapshot(ctx context.Context, records []OperationRecord, path string) (err error) {
	defer observe("export_snapshot", time.Now(), &err)

	if err := writeSnapshot(ctx, records, path); err != nil {
		return err
	}

	slog.Info("snapshot exported", "path", path, "rows", len(records))

	_, err = e.audit.Append(ctx, e.audit.entry(ctx, OpSnapshot,
		fmt.Sprintf("%s\n%d rows", filepath.Base(path), len(records)),
		"saved to: "+absPath(path)))
	return err
}

func writeSnapshot(ctx context.Context, records []OperationRecord, path string) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())

	db, err := openSnapshot(tmp)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("create snapshot %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("create snapshot %s: %w", path, err)
	}

	rows := make([]snapshotRow, len(records))
	for i, r := range records {
		rows[i] = snapshotRow{
			Time:      r.Time.Format(snapshotTimeLayout),
			PanelID:   r.PanelID,
			LOTID:     r.LOTID,
			CarrierID: r.CarrierID,
		}
	}

	txErr := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(createSnapshotTableSQL).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, snapshotBatchSize).Error
	})
	closeErr := sqlDB.Close()

	if err := errors.Join(txErr, closeErr); err != nil {
		os.Remove(tmp)
		if txErr != nil {
			return &TransactionError{Op: "snapshot", Err: txErr}
		}
		return fmt.Errorf("close snapshot %s: %w", path, closeErr)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("move snapshot into place: %w", err)
	}
	return nil
}

// ReadSnapshot loads the records stored in a snapshot file in insertion
// order. IDs are zero since snapshots do not carry surrogate keys.
func ReadSnapshot(ctx context.Context, path string) ([]OperationRecord, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, invalidArgf("file does not exist: %s", path)
		}
		return nil, err
	}

	db, err := openSnapshot("file:" + path + "?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var rows []snapshotRow
	if err := db.WithContext(ctx).Order("rowid").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	records := make([]OperationRecord, len(rows))
	for i, r := range rows {
		t, err := time.Parse(snapshotTimeLayout, r.Time)
		if err != nil {
			return nil, fmt.Errorf("snapshot row %d: %w", i+1, err)
		}
		records[i] = OperationRecord{Time: t, PanelID: r.PanelID, LOTID: r.LOTID, CarrierID: r.CarrierID}
	}
	return records, nil
}
