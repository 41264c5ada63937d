// Package core is the data-access and reconciliation layer for panel
// operation records.
//
// It has no transport dependencies and is driven by both the HTTP server
// and the panelctl CLI.
//
// # Components
//
//   - [Schema]: creates the database, the operation_records and
//     system_logs tables, and converts legacy text identifier columns.
//   - [RecordStore]: ordered and filtered reads, plus single and batch
//     mutations, each paired with one system log entry.
//   - [AuditLog]: the append-only system log.
//   - [Importer]: spreadsheet import with second-precision deduplication
//     against stored rows and within the batch.
//   - [Exporter]: xlsx export and standalone SQLite snapshots.
//   - [Jobs]: bounded background execution for long imports and exports.
//
// # Ordering
//
// Records are always returned ordered by PanelID, LOTID, CarrierID, time
// and id. System log entries are returned newest first.
//
// # Errors
//
// Failures wrap [ErrConnection], [ErrInvalidArgument] or [ErrTransaction]
// and are translated for operators by [MapError]. Unreadable import rows
// are counted in [ImportResult] rather than returned.
package core
