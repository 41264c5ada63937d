package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	selectRecordsSQL = `SELECT id, "time", panelid, lotid, carrierid FROM operation_records`
	recordOrderSQL   = ` ORDER BY panelid, lotid, carrierid, "time", id`

	insertRecordSQL = `INSERT INTO operation_records ("time", panelid, lotid, carrierid)
VALUES ($1, $2, $3, $4)
RETURNING id`

	updateRecordSQL = `UPDATE operation_records
SET "time" = $2, panelid = $3, lotid = $4, carrierid = $5
WHERE id = $1`

	deleteRecordSQL = `DELETE FROM operation_records WHERE id = $1`

	selectBatchPanelsSQL = `SELECT panelid FROM operation_records WHERE id = ANY($1) ORDER BY id`
	deleteBatchSQL       = `DELETE FROM operation_records WHERE id = ANY($1)`
)

// maxLoggedPanels caps the PanelIDs listed in a batch-delete log entry.
const maxLoggedPanels = 50

// RecordStore reads and mutates operation records. Every mutation is paired
// with exactly one system log entry.
type RecordStore struct {
	db    DB
	audit *AuditLog
}

// NewRecordStore returns a RecordStore writing its log entries to audit.
func NewRecordStore(db DB, audit *AuditLog) *RecordStore {
	return &RecordStore{db: db, audit: audit}
}

// GetAll returns every record ordered by PanelID, LOTID, CarrierID, time
// and id.
func (s *RecordStore) GetAll(ctx context.Context) ([]OperationRecord, error) {
	return s.query(ctx, selectRecordsSQL+recordOrderSQL)
}

// GetFiltered returns the records matching every non-blank field of f, in
// GetAll order. An empty result is not an error. Non-numeric identifier
// filters fail with ErrInvalidArgument before the database is queried.
func (s *RecordStore) GetFiltered(ctx context.Context, f Filter) ([]OperationRecord, error) {
	where, args, err := buildRecordFilter(f)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, selectRecordsSQL+where+recordOrderSQL, args...)
}

func buildRecordFilter(f Filter) (string, []any, error) {
	wb := NewWhereBuilder()

	for _, c := range []struct {
		col, name, raw string
	}{
		{"panelid", "panel id", f.PanelID},
		{"lotid", "lot id", f.LOTID},
		{"carrierid", "carrier id", f.CarrierID},
	} {
		raw := strings.TrimSpace(c.raw)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return "", nil, invalidArgf("%s %q is not a 64-bit integer", c.name, raw)
		}
		wb.Add(c.col, v)
	}

	if f.Date != nil {
		day := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, time.UTC)
		wb.AddTimeRange(`"time"`, day, day.AddDate(0, 0, 1))
	}

	wb.AddPrefix(`to_char("time", 'HH24:MI:SS')`, strings.TrimSpace(f.TimeText))

	where, args := wb.Build()
	return where, args, nil
}

func (s *RecordStore) query(ctx context.Context, sql string, args ...any) ([]OperationRecord, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query operation records: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("scan operation records: %w", err)
	}
	if recs == nil {
		recs = []OperationRecord{}
	}
	return recs, nil
}

func scanRecord(row pgx.CollectableRow) (OperationRecord, error) {
	var r OperationRecord
	err := row.Scan(&r.ID, &r.Time, &r.PanelID, &r.LOTID, &r.CarrierID)
	return r, err
}

// Get returns the record with id, or nil if there is none.
func (s *RecordStore) Get(ctx context.Context, id int64) (*OperationRecord, error) {
	rec, err := getRecord(ctx, s.db, id, false)
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", id, err)
	}
	return rec, nil
}

func getRecord(ctx context.Context, db DBTX, id int64, forUpdate bool) (*OperationRecord, error) {
	sql := selectRecordsSQL + ` WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var r OperationRecord
	err := db.QueryRow(ctx, sql, id).Scan(&r.ID, &r.Time, &r.PanelID, &r.LOTID, &r.CarrierID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Insert stores rec under a new id and logs a create entry in the same
// transaction. rec.ID is ignored; the time is truncated to whole seconds.
func (s *RecordStore) Insert(ctx context.Context, rec OperationRecord) (id int64, err error) {
	defer observe("insert", time.Now(), &err)

	rec.Time = rec.Time.Truncate(time.Second)
	e := s.audit.entry(ctx, OpCreate, fmt.Sprintf("Panel ID : %d", rec.PanelID), rec.detail())

	err = withTx(ctx, s.db, "insert record", func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertRecordSQL, rec.Time, rec.PanelID, rec.LOTID, rec.CarrierID).Scan(&id); err != nil {
			return err
		}
		_, err := appendTx(ctx, tx, e)
		return err
	})
	if err != nil {
		return 0, err
	}

	slog.Debug("record inserted", "id", id, "panel_id", rec.PanelID)
	return id, nil
}

// Update replaces the four value fields of the record with rec.ID and logs
// the PanelID change. Update and log commit or roll back together.
func (s *RecordStore) Update(ctx context.Context, rec OperationRecord) (err error) {
	defer observe("update", time.Now(), &err)

	if rec.ID <= 0 {
		return invalidArgf("record id %d", rec.ID)
	}
	rec.Time = rec.Time.Truncate(time.Second)

	return withTx(ctx, s.db, "update record", func(tx pgx.Tx) error {
		old, err := getRecord(ctx, tx, rec.ID, true)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, updateRecordSQL, rec.ID, rec.Time, rec.PanelID, rec.LOTID, rec.CarrierID); err != nil {
			return err
		}

		change := strconv.FormatInt(rec.PanelID, 10)
		if old != nil {
			change = fmt.Sprintf("%d ➜ %d", old.PanelID, rec.PanelID)
		}
		_, err = appendTx(ctx, tx, s.audit.entry(ctx, OpUpdate, "Panel ID : "+change, rec.detail()))
		return err
	})
}

// Delete removes the record with id and logs it. A missing id is a no-op:
// nothing is deleted and nothing is logged.
func (s *RecordStore) Delete(ctx context.Context, id int64) (err error) {
	defer observe("delete", time.Now(), &err)

	return withTx(ctx, s.db, "delete record", func(tx pgx.Tx) error {
		rec, err := getRecord(ctx, tx, id, true)
		if err != nil || rec == nil {
			return err
		}
		if _, err := tx.Exec(ctx, deleteRecordSQL, id); err != nil {
			return err
		}
		_, err = appendTx(ctx, tx, s.audit.entry(ctx, OpDelete, fmt.Sprintf("Panel ID : %d", rec.PanelID), rec.detail()))
		return err
	})
}

// DeleteBatch deletes every record whose id is in ids in one transaction
// and, after commit, writes one aggregate batch-delete entry. An empty ids
// slice returns immediately without opening a transaction. On failure
// nothing is deleted and nothing is logged.
func (s *RecordStore) DeleteBatch(ctx context.Context, ids []int64) (deleted int64, err error) {
	if len(ids) == 0 {
		return 0, nil
	}
	defer observe("delete_batch", time.Now(), &err)

	var panels []int64
	err = withTx(ctx, s.db, "delete batch", func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectBatchPanelsSQL, ids)
		if err != nil {
			return err
		}
		if panels, err = pgx.CollectRows(rows, pgx.RowTo[int64]); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, deleteBatchSQL, ids)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Info("records deleted", "requested", len(ids), "deleted", deleted)

	e := s.audit.entry(ctx, OpBatchDelete, fmt.Sprintf("%d rows", deleted), "PanelID: "+joinCapped(panels, maxLoggedPanels))
	if _, err := s.audit.Append(ctx, e); err != nil {
		return deleted, fmt.Errorf("records deleted but not logged: %w", err)
	}
	return deleted, nil
}

// joinCapped joins up to limit values with ", " and appends "..." when
// values were left out.
func joinCapped(values []int64, limit int) string {
	n := len(values)
	if n > limit {
		n = limit
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = strconv.FormatInt(values[i], 10)
	}
	s := strings.Join(parts, ", ")
	if len(values) > limit {
		s += "..."
	}
	return s
}

// ExistingKeys returns the natural keys of stored records whose time falls
// within [from, to] at second precision.
func ExistingKeys(ctx context.Context, db DBTX, from, to time.Time) (map[string]struct{}, error) {
	wb := NewWhereBuilder()
	wb.AddTimeRange(`"time"`, from.Truncate(time.Second), to.Truncate(time.Second).Add(time.Second))
	where, args := wb.Build()

	rows, err := db.Query(ctx, selectRecordsSQL+where, args...)
	if err != nil {
		return nil, fmt.Errorf("prefetch existing records: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("scan existing records: %w", err)
	}

	keys := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		keys[r.NaturalKey()] = struct{}{}
	}
	return keys, nil
}
