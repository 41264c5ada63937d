package core

// source.go reads import files. Both formats carry a header row followed by
// one record per row in the column order time, PanelID, LOTID, CarrierID.
//
// CSV input passes through a decoder that drops a UTF-8 BOM, honors a
// UTF-16 BOM, and replaces invalid UTF-8 with U+FFFD, so spreadsheet exports
// from Windows tools read the same as plain UTF-8 files.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Source yields the data rows of an import file, header excluded.
type Source interface {
	// Name identifies the source in logs and the system log.
	Name() string

	// Next returns the raw cells of the next row, or io.EOF after the last
	// one. A *RowError means the row was unreadable and reading may go on.
	Next() ([]string, error)

	Close() error
}

// RowError marks a single unreadable row.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// OpenSource opens path as an import source chosen by its extension.
// A missing file fails with ErrInvalidArgument.
func OpenSource(path string) (Source, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, invalidArgf("file does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	name := absPath(path)
	if isCSV(name) {
		return newCSVSource(name, f, f), nil
	}
	defer f.Close()
	return NewSource(name, f)
}

// NewSource reads an import file held in r, choosing the format by the
// extension of name. Workbooks are read fully before it returns; CSV rows
// are read from r as Next is called.
func NewSource(name string, r io.Reader) (Source, error) {
	switch {
	case isCSV(name):
		return NewCSVSource(name, r), nil
	case isWorkbook(name):
		src, err := NewXLSXSource(name, r)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, invalidArgf("unsupported file type %q", filepath.Ext(name))
	}
}

func isCSV(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".csv" || ext == ".txt"
}

func isWorkbook(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".xlsx" || ext == ".xlsm"
}

// XLSXSource reads the first worksheet of a workbook.
type XLSXSource struct {
	name string
	file *excelize.File
	rows *excelize.Rows
	row  int
}

// NewXLSXSource reads a workbook from r. The reader is fully consumed and
// may be closed once this returns.
func NewXLSXSource(name string, r io.Reader) (*XLSXSource, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, invalidArgf("%s is not a readable xlsx workbook: %v", name, err)
	}

	src := &XLSXSource{name: name, file: f}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return src, nil
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	src.rows = rows

	// header
	if rows.Next() {
		src.row++
		if _, err := rows.Columns(); err != nil {
			src.Close()
			return nil, fmt.Errorf("read header of %s: %w", name, err)
		}
	}
	return src, nil
}

func (s *XLSXSource) Name() string { return s.name }

func (s *XLSXSource) Next() ([]string, error) {
	if s.rows == nil || !s.rows.Next() {
		if s.rows != nil {
			if err := s.rows.Error(); err != nil {
				return nil, err
			}
		}
		return nil, io.EOF
	}
	s.row++

	cells, err := s.rows.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &RowError{Row: s.row, Err: err}
	}
	return cells, nil
}

func (s *XLSXSource) Close() error {
	if s.rows != nil {
		s.rows.Close()
	}
	return s.file.Close()
}

// CSVSource reads comma-separated rows.
type CSVSource struct {
	name   string
	reader *csv.Reader
	closer io.Closer
	header bool
	row    int
}

// NewCSVSource reads CSV rows from r.
func NewCSVSource(name string, r io.Reader) *CSVSource {
	return newCSVSource(name, r, nil)
}

func newCSVSource(name string, r io.Reader, closer io.Closer) *CSVSource {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &CSVSource{name: name, reader: cr, closer: closer}
}

func (s *CSVSource) Name() string { return s.name }

func (s *CSVSource) Next() ([]string, error) {
	for {
		rec, err := s.reader.Read()
		s.row++

		var perr *csv.ParseError
		if errors.As(err, &perr) {
			if !s.header {
				return nil, fmt.Errorf("read header of %s: %w", s.name, err)
			}
			return nil, &RowError{Row: s.row, Err: err}
		}
		if err != nil {
			return nil, err
		}

		if !s.header {
			s.header = true
			continue
		}
		return rec, nil
	}
}

func (s *CSVSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// rowStatus classifies one parsed source row.
type rowStatus int

const (
	rowOK rowStatus = iota
	rowBlank
	rowMissing
	rowFormatError
)

// parseRow converts the first four cells of a row into a record. Blank rows
// are reported as rowBlank. An unparseable non-blank cell makes the row a
// format error even when another cell is missing.
func parseRow(cells []string) (OperationRecord, rowStatus) {
	var raw [4]string
	blank := 0
	for i := range raw {
		if i < len(cells) {
			raw[i] = strings.TrimSpace(cells[i])
		}
		if raw[i] == "" {
			blank++
		}
	}
	if blank == len(raw) {
		return OperationRecord{}, rowBlank
	}

	var rec OperationRecord
	var err error
	if raw[0] != "" {
		if rec.Time, err = parseCellTime(raw[0]); err != nil {
			return OperationRecord{}, rowFormatError
		}
	}
	for i, dst := range []*int64{&rec.PanelID, &rec.LOTID, &rec.CarrierID} {
		if raw[i+1] == "" {
			continue
		}
		if *dst, err = parseCellInt(raw[i+1]); err != nil {
			return OperationRecord{}, rowFormatError
		}
	}

	if blank > 0 {
		return OperationRecord{}, rowMissing
	}
	return rec, rowOK
}

var cellTimeLayouts = []string{
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/1/2 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"2006/01/02",
	"2006-01-02",
}

// parseCellTime accepts an Excel date serial or a formatted timestamp and
// returns it at whole-second precision.
func parseCellTime(s string) (time.Time, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(v, false)
		if err != nil {
			return time.Time{}, err
		}
		return t.Round(time.Second), nil
	}

	for _, layout := range cellTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Truncate(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// parseCellInt accepts a base-10 integer or an integral float such as the
// raw value "100" or "1.5E+3" stored by spreadsheets.
func parseCellInt(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return int64(f), nil
}
