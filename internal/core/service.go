package core

import (
	"context"
	"fmt"
	"time"
)

// Options configures a Service.
type Options struct {
	// Actor is recorded on log entries when the request context has none.
	Actor Actor

	MaxConcurrentJobs int
	JobWaitTime       time.Duration
	JobTimeout        time.Duration

	// MaxImportFileSize caps files read by ImportFile; zero disables the check.
	MaxImportFileSize int64
}

// Service wires the data-access components around one database handle.
// Schema.Initialize (and EnsureDatabaseExists before opening db) must run
// before any other component is used.
type Service struct {
	Schema   *Schema
	Records  *RecordStore
	Audit    *AuditLog
	Importer *Importer
	Exporter *Exporter
	Jobs     *Jobs
}

// NewService builds every component on db.
func NewService(db DB, opts Options) *Service {
	audit := NewAuditLog(db, opts.Actor)
	return &Service{
		Schema:   NewSchema(db),
		Records:  NewRecordStore(db, audit),
		Audit:    audit,
		Importer: NewImporter(db, audit, opts.MaxImportFileSize),
		Exporter: NewExporter(audit),
		Jobs:     NewJobs(NewJobLimiter(opts.MaxConcurrentJobs, opts.JobWaitTime), opts.JobTimeout),
	}
}

// Export kinds accepted by StartExport.
const (
	ExportXLSX     = "xlsx"
	ExportSnapshot = "snapshot"
)

// ExportResult describes a finished export job.
type ExportResult struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// LoadRecords returns all records when f is empty and the filtered set
// otherwise.
func (s *Service) LoadRecords(ctx context.Context, f Filter) ([]OperationRecord, error) {
	if f.IsEmpty() {
		return s.Records.GetAll(ctx)
	}
	return s.Records.GetFiltered(ctx, f)
}

// StartImport imports path in the background and returns the job id. The
// job result is an *ImportResult.
func (s *Service) StartImport(ctx context.Context, path string) (string, error) {
	return s.Jobs.Start(ctx, "import", func(ctx context.Context) (any, error) {
		return s.Importer.ImportFile(ctx, path)
	})
}

// StartImportSource imports src in the background, closing it when done.
func (s *Service) StartImportSource(ctx context.Context, src Source) (string, error) {
	id, err := s.Jobs.Start(ctx, "import", func(ctx context.Context) (any, error) {
		defer src.Close()
		return s.Importer.ImportFrom(ctx, src)
	})
	if err != nil {
		src.Close()
	}
	return id, err
}

// StartExport exports the records matching f to path in the background.
// The filter is validated before the job starts. The job result is an
// ExportResult.
func (s *Service) StartExport(ctx context.Context, kind string, f Filter, path string) (string, error) {
	if kind != ExportXLSX && kind != ExportSnapshot {
		return "", invalidArgf("unknown export kind %q", kind)
	}
	if _, _, err := buildRecordFilter(f); err != nil {
		return "", err
	}

	return s.Jobs.Start(ctx, "export-"+kind, func(ctx context.Context) (any, error) {
		records, err := s.LoadRecords(ctx, f)
		if err != nil {
			return nil, err
		}
		switch kind {
		case ExportXLSX:
			err = s.Exporter.ExportSpreadsheet(ctx, records, path)
		default:
			err = s.Exporter.ExportSnapshot(ctx, records, path)
		}
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", kind, err)
		}
		return ExportResult{Path: absPath(path), Rows: len(records)}, nil
	})
}
