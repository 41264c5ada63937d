package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
)

const insertLogSQL = `INSERT INTO system_logs
	(operationtime, username, machinename, operationtype, affecteddata, detaildescription)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`

const selectLogsSQL = `SELECT id, operationtime, username, machinename, operationtype, affecteddata, detaildescription
FROM system_logs
ORDER BY operationtime DESC, id DESC`

// AuditLog is the append-only system log. Entries are only ever inserted,
// read, or erased all at once.
type AuditLog struct {
	db    DB
	actor Actor
	now   func() time.Time
}

// NewAuditLog returns an AuditLog that stamps entries with actor unless the
// request context carries one.
func NewAuditLog(db DB, actor Actor) *AuditLog {
	return &AuditLog{db: db, actor: actor, now: time.Now}
}

// entry builds a SystemLog stamped with the current time and actor.
func (a *AuditLog) entry(ctx context.Context, opType, affected, detail string) SystemLog {
	actor := ActorFromContext(ctx, a.actor)
	return SystemLog{
		OperationTime:     a.now(),
		UserName:          actor.User,
		MachineName:       actor.Host,
		OperationType:     opType,
		AffectedData:      affected,
		DetailDescription: detail,
	}
}

// Append inserts one entry and returns its id. Empty fields are stored as
// empty strings; a zero OperationTime is replaced with the current time.
func (a *AuditLog) Append(ctx context.Context, e SystemLog) (int64, error) {
	if e.OperationTime.IsZero() {
		e.OperationTime = a.now()
	}
	id, err := appendTx(ctx, a.db, e)
	if err != nil {
		return 0, fmt.Errorf("append system log: %w", err)
	}
	return id, nil
}

// appendTx inserts e using db, which may be a transaction.
func appendTx(ctx context.Context, db DBTX, e SystemLog) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, insertLogSQL,
		e.OperationTime, e.UserName, e.MachineName, e.OperationType, e.AffectedData, e.DetailDescription,
	).Scan(&id)
	return id, err
}

// GetAll returns every entry, newest first.
func (a *AuditLog) GetAll(ctx context.Context) ([]SystemLog, error) {
	rows, err := a.db.Query(ctx, selectLogsSQL)
	if err != nil {
		return nil, fmt.Errorf("query system logs: %w", err)
	}
	logs, err := pgx.CollectRows(rows, scanSystemLog)
	if err != nil {
		return nil, fmt.Errorf("scan system logs: %w", err)
	}
	return logs, nil
}

func scanSystemLog(row pgx.CollectableRow) (SystemLog, error) {
	var l SystemLog
	err := row.Scan(&l.ID, &l.OperationTime, &l.UserName, &l.MachineName,
		&l.OperationType, &l.AffectedData, &l.DetailDescription)
	return l, err
}

// ClearAll removes every entry and restarts the id sequence. The caller is
// responsible for authorizing the request.
func (a *AuditLog) ClearAll(ctx context.Context) error {
	if _, err := a.db.Exec(ctx, `TRUNCATE TABLE system_logs RESTART IDENTITY`); err != nil {
		return fmt.Errorf("clear system logs: %w", err)
	}
	slog.Warn("system log cleared")
	return nil
}

// ClearAndRecord clears the log and leaves a single log-clear entry behind,
// both in one transaction.
func (a *AuditLog) ClearAndRecord(ctx context.Context) (err error) {
	defer observe("log_clear", time.Now(), &err)

	e := a.entry(ctx, OpLogClear, "All", "all system log entries were cleared by the operator")
	err = withTx(ctx, a.db, "clear system logs", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE TABLE system_logs RESTART IDENTITY`); err != nil {
			return err
		}
		_, err := appendTx(ctx, tx, e)
		return err
	})
	if err != nil {
		return err
	}
	slog.Warn("system log cleared", "user", e.UserName, "host", e.MachineName)
	return nil
}

var logSheetHeader = []string{"OperationTime", "MachineName", "OperationType", "AffectedData", "DetailDescription"}

// ExportSpreadsheet writes entries to an xlsx workbook at path and records a
// log-export entry.
func (a *AuditLog) ExportSpreadsheet(ctx context.Context, entries []SystemLog, path string) (err error) {
	defer observe("log_export", time.Now(), &err)

	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e.OperationTime.Format(TimeLayout), e.MachineName, e.OperationType, e.AffectedData, e.DetailDescription}
	}
	if err := writeWorkbook(path, "SystemLogs", logSheetHeader, rows); err != nil {
		return fmt.Errorf("export system log to %s: %w", path, err)
	}

	abs := absPath(path)
	_, err = a.Append(ctx, a.entry(ctx, OpLogExport,
		"system log\nfile: "+filepath.Base(path),
		fmt.Sprintf("%d entries\n%s", len(entries), abs)))
	return err
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
