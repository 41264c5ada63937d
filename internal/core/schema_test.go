package core

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectCreateTables(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS operation_records")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS operation_records_time_idx")).
		WillReturnResult(pgxmock.NewResult("CREATE INDEX", 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS system_logs")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
}

func TestSchema_Initialize_AlreadyBigint(t *testing.T) {
	mock := newMockDB(t)
	expectCreateTables(mock)
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WillReturnRows(pgxmock.NewRows([]string{"data_type"}).AddRow("bigint"))

	res, err := NewSchema(mock).Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Checked)
	assert.False(t, res.Migrated)
	assert.NoError(t, res.Err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchema_Initialize_MigratesTextColumns(t *testing.T) {
	mock := newMockDB(t)
	expectCreateTables(mock)
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WillReturnRows(pgxmock.NewRows([]string{"data_type"}).AddRow("character varying"))
	mock.ExpectExec(regexp.QuoteMeta("ALTER COLUMN panelid TYPE BIGINT USING panelid::bigint")).
		WillReturnResult(pgxmock.NewResult("ALTER TABLE", 0))

	res, err := NewSchema(mock).Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Migrated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchema_Initialize_MigrationFailureIsNotFatal(t *testing.T) {
	mock := newMockDB(t)
	expectCreateTables(mock)
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WillReturnRows(pgxmock.NewRows([]string{"data_type"}).AddRow("text"))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE operation_records")).
		WillReturnError(errors.New(`invalid input syntax for type bigint: "A-17"`))

	res, err := NewSchema(mock).Initialize(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Checked)
	assert.False(t, res.Migrated)
	assert.Error(t, res.Err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchema_Initialize_CreateFailure(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS operation_records")).
		WillReturnError(errors.New("permission denied for schema public"))

	_, err := NewSchema(mock).Initialize(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDatabase(t *testing.T) {
	existsQuery := regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)")

	t.Run("exists", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(existsQuery).WithArgs("paneltrack").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		require.NoError(t, ensureDatabase(context.Background(), mock, "paneltrack"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("created", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(existsQuery).WithArgs("panel track").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(regexp.QuoteMeta(`CREATE DATABASE "panel track"`)).
			WillReturnResult(pgxmock.NewResult("CREATE DATABASE", 0))

		require.NoError(t, ensureDatabase(context.Background(), mock, "panel track"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("created concurrently", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(existsQuery).WithArgs("paneltrack").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(regexp.QuoteMeta("CREATE DATABASE")).
			WillReturnError(&pgconn.PgError{Code: "42P04", Message: "database already exists"})

		require.NoError(t, ensureDatabase(context.Background(), mock, "paneltrack"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("create fails", func(t *testing.T) {
		mock := newMockDB(t)
		mock.ExpectQuery(existsQuery).WithArgs("paneltrack").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(regexp.QuoteMeta("CREATE DATABASE")).
			WillReturnError(&pgconn.PgError{Code: "42501", Message: "permission denied to create database"})

		err := ensureDatabase(context.Background(), mock, "paneltrack")
		assert.ErrorIs(t, err, ErrConnection)
		assert.ErrorContains(t, err, "permission denied to create database")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEnsureDatabaseExists_BadURL(t *testing.T) {
	err := EnsureDatabaseExists(context.Background(), "postgres://%zz", "postgres")
	assert.ErrorIs(t, err, ErrConnection)
}
