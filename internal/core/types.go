package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// DB is a DBTX that can also open transactions. *pgxpool.Pool satisfies it,
// as does pgxmock's pool in tests.
type DB interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

// Table names.
const (
	recordsTable = "operation_records"
	logsTable    = "system_logs"
)

// TimeLayout is the display and export format for record timestamps.
const TimeLayout = "2006/01/02 15:04:05"

// OperationRecord is one panel/lot/carrier operation event.
type OperationRecord struct {
	ID        int64     `json:"id"`
	Time      time.Time `json:"time"`
	PanelID   int64     `json:"panel_id"`
	LOTID     int64     `json:"lot_id"`
	CarrierID int64     `json:"carrier_id"`
}

// NaturalKey returns the deduplication key: the timestamp at second
// precision followed by the three identifiers.
func (r OperationRecord) NaturalKey() string {
	return naturalKey(r.Time, r.PanelID, r.LOTID, r.CarrierID)
}

func naturalKey(t time.Time, panel, lot, carrier int64) string {
	return t.Format("20060102150405") + "|" +
		strconv.FormatInt(panel, 10) + "|" +
		strconv.FormatInt(lot, 10) + "|" +
		strconv.FormatInt(carrier, 10)
}

// detail renders the record's non-key fields for the system log.
func (r OperationRecord) detail() string {
	return fmt.Sprintf("Time: %s\nLOTID: %d\nCarrierID: %d", r.Time.Format(TimeLayout), r.LOTID, r.CarrierID)
}

// SystemLog is one audit trail entry.
type SystemLog struct {
	ID                int64     `json:"id"`
	OperationTime     time.Time `json:"operation_time"`
	UserName          string    `json:"user_name"`
	MachineName       string    `json:"machine_name"`
	OperationType     string    `json:"operation_type"`
	AffectedData      string    `json:"affected_data"`
	DetailDescription string    `json:"detail_description"`
}

// Operation categories written to system_logs.
const (
	OpCreate       = "create"
	OpUpdate       = "update"
	OpDelete       = "delete"
	OpBatchDelete  = "batch-delete"
	OpImport       = "import"
	OpExport       = "export"
	OpExportFailed = "export-failed"
	OpSnapshot     = "snapshot"
	OpLogExport    = "log-export"
	OpLogClear     = "log-clear"
)

// Filter narrows GetFiltered. Blank fields impose no constraint.
type Filter struct {
	PanelID   string     `json:"panel_id,omitempty"`
	LOTID     string     `json:"lot_id,omitempty"`
	CarrierID string     `json:"carrier_id,omitempty"`
	Date      *time.Time `json:"date,omitempty"`

	// TimeText is a prefix of the HH:MM:SS time of day, e.g. "14" or "08:3".
	TimeText string `json:"time,omitempty"`
}

// IsEmpty reports whether no constraint is set.
func (f Filter) IsEmpty() bool {
	return strings.TrimSpace(f.PanelID) == "" &&
		strings.TrimSpace(f.LOTID) == "" &&
		strings.TrimSpace(f.CarrierID) == "" &&
		f.Date == nil &&
		strings.TrimSpace(f.TimeText) == ""
}
