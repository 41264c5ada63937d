package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotScheduler_RunOnce(t *testing.T) {
	mock := newMockDB(t)
	svc := NewService(mock, Options{Actor: testActor})
	svc.Audit.now = func() time.Time { return fixedNow }

	dir := t.TempDir()
	s := NewSnapshotScheduler(svc, dir)
	s.now = func() time.Time { return at("2024/03/01 02:00:00") }

	mock.ExpectQuery(regexp.QuoteMeta(`FROM operation_records ORDER BY`)).
		WillReturnRows(pgxmock.NewRows(recordCols).
			AddRow(int64(1), at("2024/01/01 08:00:00"), int64(1), int64(2), int64(3)))
	expectLog(mock, OpSnapshot, "operations_20240301_020000.db\n1 rows")

	path := s.RunOnce(context.Background())
	assert.Equal(t, filepath.Join(dir, "operations_20240301_020000.db"), path)
	_, err := os.Stat(path)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotScheduler_RunOnceLoadFailure(t *testing.T) {
	mock := newMockDB(t)
	s := NewSnapshotScheduler(NewService(mock, Options{Actor: testActor}), t.TempDir())

	mock.ExpectQuery(regexp.QuoteMeta(`FROM operation_records`)).
		WillReturnError(errors.New("connection refused"))

	assert.Empty(t, s.RunOnce(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotScheduler_StartRejectsBadSpec(t *testing.T) {
	mock := newMockDB(t)
	s := NewSnapshotScheduler(NewService(mock, Options{}), filepath.Join(t.TempDir(), "snaps"))

	err := s.Start(context.Background(), "every tuesday")
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(s.dir), "snaps"))
	assert.NoError(t, statErr, "snapshot dir is created before scheduling")
}
