package core

// scheduler.go runs periodic snapshot backups. Each run exports the full
// record set to SNAPSHOT_DIR/operations_<timestamp>.db through the regular
// snapshot path, so every backup is also recorded in the system log. A
// failed run is logged and the schedule continues.

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// snapshotFileLayout timestamps scheduled snapshot file names.
const snapshotFileLayout = "20060102_150405"

// SnapshotScheduler owns the cron entry for scheduled snapshots.
type SnapshotScheduler struct {
	svc  *Service
	dir  string
	cron *cron.Cron
	now  func() time.Time
}

// NewSnapshotScheduler prepares a scheduler writing into dir. Call Start to
// begin running it.
func NewSnapshotScheduler(svc *Service, dir string) *SnapshotScheduler {
	return &SnapshotScheduler{
		svc:  svc,
		dir:  dir,
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		now:  time.Now,
	}
}

// Start registers spec (a standard five-field cron expression) and starts
// the scheduler. It stops when ctx is done.
func (s *SnapshotScheduler) Start(ctx context.Context, spec string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule snapshots %q: %w", spec, err)
	}
	s.cron.Start()

	slog.Info("snapshot scheduler started", "schedule", spec, "dir", s.dir)

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		slog.Info("snapshot scheduler stopped")
	}()
	return nil
}

// RunOnce writes one snapshot and returns its path, or "" on failure.
func (s *SnapshotScheduler) RunOnce(ctx context.Context) string {
	start := time.Now()
	path := filepath.Join(s.dir, "operations_"+s.now().Format(snapshotFileLayout)+".db")

	records, err := s.svc.Records.GetAll(ctx)
	if err != nil {
		slog.Error("scheduled snapshot failed", "stage", "load", "error", err)
		return ""
	}
	if err := s.svc.Exporter.ExportSnapshot(ctx, records, path); err != nil {
		slog.Error("scheduled snapshot failed", "stage", "write", "path", path, "error", err)
		return ""
	}

	slog.Info("scheduled snapshot written",
		"path", path,
		"rows", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return path
}
