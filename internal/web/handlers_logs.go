package web

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/paneltrack/internal/core"
)

type logsResponse struct {
	Entries []core.SystemLog `json:"entries"`
	Count   int              `json:"count"`
}

// handleListLogs returns the system log, newest first.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.Audit.GetAll(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logsResponse{Entries: entries, Count: len(entries)})
}

// handleExportLogs downloads the system log as an xlsx workbook. The
// download itself is recorded as a log-export entry.
func (s *Server) handleExportLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.Audit.GetAll(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	tmpDir, err := os.MkdirTemp(s.uploadDir, "logs-")
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer os.RemoveAll(tmpDir)

	name := "system_logs_" + time.Now().Format("20060102_150405") + ".xlsx"
	path := filepath.Join(tmpDir, name)
	if err := s.service.Audit.ExportSpreadsheet(r.Context(), entries, path); err != nil {
		respondError(w, r, err)
		return
	}

	serveFile(w, r, path, name, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

// handleClearLogs erases the system log, leaving one log-clear entry.
func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Audit.ClearAndRecord(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
