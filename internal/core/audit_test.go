package core

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var logCols = []string{"id", "operationtime", "username", "machinename", "operationtype", "affecteddata", "detaildescription"}

func TestAuditLog_Append(t *testing.T) {
	mock := newMockDB(t)
	audit := newTestAudit(mock)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO system_logs")).
		WithArgs(fixedNow, "", "", OpCreate, "", "").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := audit.Append(context.Background(), SystemLog{OperationType: OpCreate})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLog_Append_Failure(t *testing.T) {
	mock := newMockDB(t)
	audit := newTestAudit(mock)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO system_logs")).
		WithArgs(fixedNow, "", "", OpCreate, "", "").
		WillReturnError(errors.New("connection refused"))

	_, err := audit.Append(context.Background(), SystemLog{OperationType: OpCreate})
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, "DB001", MapError(err).Code)
}

func TestAuditLog_GetAll(t *testing.T) {
	mock := newMockDB(t)
	audit := newTestAudit(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM system_logs\nORDER BY operationtime DESC, id DESC")).
		WillReturnRows(pgxmock.NewRows(logCols).
			AddRow(int64(2), at("2024/01/02 00:00:00"), "op", "line-1", OpDelete, "Panel ID : 1", "").
			AddRow(int64(1), at("2024/01/01 00:00:00"), "op", "line-1", OpCreate, "Panel ID : 1", ""))

	logs, err := audit.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, OpDelete, logs[0].OperationType)
	assert.Equal(t, int64(1), logs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLog_ClearAll(t *testing.T) {
	mock := newMockDB(t)
	audit := newTestAudit(mock)

	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE TABLE system_logs RESTART IDENTITY")).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))

	require.NoError(t, audit.ClearAll(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLog_ClearAndRecord(t *testing.T) {
	mock := newMockDB(t)
	audit := newTestAudit(mock)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE TABLE system_logs")).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	expectLog(mock, OpLogClear, "All")
	mock.ExpectCommit()

	require.NoError(t, audit.ClearAndRecord(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLog_ClearAndRecord_RollsBack(t *testing.T) {
	mock := newMockDB(t)
	audit := newTestAudit(mock)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("TRUNCATE TABLE system_logs")).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO system_logs")).
		WithArgs(fixedNow, testActor.User, testActor.Host, OpLogClear, "All", pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := audit.ClearAndRecord(context.Background())
	assert.ErrorIs(t, err, ErrTransaction)
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLog_ExportSpreadsheet(t *testing.T) {
	mock := newMockDB(t)
	audit := newTestAudit(mock)
	path := filepath.Join(t.TempDir(), "logs.xlsx")

	entries := []SystemLog{
		{ID: 2, OperationTime: at("2024/01/02 10:00:00"), MachineName: "line-1", OperationType: OpDelete, AffectedData: "Panel ID : 1"},
		{ID: 1, OperationTime: at("2024/01/01 10:00:00"), MachineName: "line-1", OperationType: OpCreate, AffectedData: "Panel ID : 1", DetailDescription: "Time: 2024/01/01 10:00:00\nLOTID: 2\nCarrierID: 3"},
	}
	expectLog(mock, OpLogExport, "system log\nfile: logs.xlsx", "2 entries\n"+path)

	require.NoError(t, audit.ExportSpreadsheet(context.Background(), entries, path))
	assert.NoError(t, mock.ExpectationsWereMet())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("SystemLogs")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, logSheetHeader, rows[0])
	assert.Equal(t, []string{"2024/01/02 10:00:00", "line-1", OpDelete, "Panel ID : 1"}, rows[1])
	assert.Equal(t, "Time: 2024/01/01 10:00:00\nLOTID: 2\nCarrierID: 3", rows[2][4])
}

func TestAuditLog_ExportSpreadsheet_NoEntries(t *testing.T) {
	mock := newMockDB(t)
	audit := newTestAudit(mock)
	path := filepath.Join(t.TempDir(), "logs.xlsx")

	expectLog(mock, OpLogExport, "system log\nfile: logs.xlsx", "0 entries\n"+path)

	require.NoError(t, audit.ExportSpreadsheet(context.Background(), nil, path))
	assert.NoError(t, mock.ExpectationsWereMet())
}
