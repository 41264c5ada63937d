package core

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func readAll(t *testing.T, src Source) (rows [][]string, rowErrs int) {
	t.Helper()
	for {
		cells, err := src.Next()
		if errors.Is(err, io.EOF) {
			return rows, rowErrs
		}
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			rowErrs++
			continue
		}
		require.NoError(t, err)
		rows = append(rows, cells)
	}
}

func TestCSVSource_SkipsHeaderAndBOM(t *testing.T) {
	input := "\xEF\xBB\xBFTime,PanelID,LOTID,CarrierID\n2024/01/01 08:00:00,100,200,300\n,,,\n"
	src := NewCSVSource("ops.csv", strings.NewReader(input))

	rows, rowErrs := readAll(t, src)
	assert.Zero(t, rowErrs)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2024/01/01 08:00:00", "100", "200", "300"}, rows[0])
}

func TestCSVSource_BadRowIsRowError(t *testing.T) {
	input := "Time,PanelID,LOTID,CarrierID\n2024/01/01 08:00:00,1\"0,2,3\n2024/01/01 08:00:01,1,2,3\n"
	src := NewCSVSource("ops.csv", strings.NewReader(input))

	rows, rowErrs := readAll(t, src)
	assert.Equal(t, 1, rowErrs)
	assert.Len(t, rows, 1)
}

func TestCSVSource_Empty(t *testing.T) {
	rows, _ := readAll(t, NewCSVSource("empty.csv", strings.NewReader("")))
	assert.Empty(t, rows)
}

func TestXLSXSource_ReadsFirstSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Time", "PanelID", "LOTID", "CarrierID"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), 100, 200, 300}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"2024/01/02 09:30:00", "101", 200, 300}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	src, err := OpenSource(path)
	require.NoError(t, err)
	defer src.Close()

	rows, rowErrs := readAll(t, src)
	assert.Zero(t, rowErrs)
	require.Len(t, rows, 2)

	rec, status := parseRow(rows[0])
	require.Equal(t, rowOK, status)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), rec.Time)
	assert.Equal(t, int64(100), rec.PanelID)

	rec, status = parseRow(rows[1])
	require.Equal(t, rowOK, status)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC), rec.Time)
	assert.Equal(t, int64(101), rec.PanelID)
}

func TestOpenSource_Errors(t *testing.T) {
	_, err := OpenSource(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	path := filepath.Join(t.TempDir(), "ops.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	_, err = OpenSource(path)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	path = filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))
	_, err = OpenSource(path)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseRow(t *testing.T) {
	tests := []struct {
		name   string
		cells  []string
		want   rowStatus
		wantID int64
	}{
		{"complete", []string{"2024/01/01 08:00:00", "100", "200", "300"}, rowOK, 100},
		{"float identifiers", []string{"2024-01-01 08:00:00", "1.0E+2", "200", "300"}, rowOK, 100},
		{"short row is blank", []string{}, rowBlank, 0},
		{"whitespace is blank", []string{" ", "\t", "", ""}, rowBlank, 0},
		{"missing carrier", []string{"2024/01/01 08:00:00", "100", "200"}, rowMissing, 0},
		{"missing time", []string{"", "100", "200", "300"}, rowMissing, 0},
		{"bad time", []string{"soon", "100", "200", "300"}, rowFormatError, 0},
		{"fractional id", []string{"2024/01/01 08:00:00", "100.5", "200", "300"}, rowFormatError, 0},
		{"format error beats missing", []string{"", "abc", "200", "300"}, rowFormatError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, status := parseRow(tt.cells)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.wantID, rec.PanelID)
		})
	}
}

func TestParseCellTime(t *testing.T) {
	want := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"45292.375",
		"2024/01/01 09:00:00",
		"2024-01-01 09:00:00",
		"2024-01-01T09:00:00",
		"2024/1/1 09:00:00",
		"1/1/2024 9:00:00 AM",
		"2024-01-01 09:00:00.600",
	} {
		got, err := parseCellTime(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseCellTime("01.01.2024")
	assert.Error(t, err)
}

func TestParseCellInt(t *testing.T) {
	v, err := parseCellInt("9223372036854775807")
	require.NoError(t, err)
	assert.Equal(t, int64(9223372036854775807), v)

	v, err = parseCellInt("1500")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), v)

	for _, bad := range []string{"1.5", "abc", "1e30"} {
		_, err := parseCellInt(bad)
		assert.Error(t, err, bad)
	}
}
