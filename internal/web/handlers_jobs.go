package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/paneltrack/internal/core"
	"github.com/JonMunkholm/paneltrack/internal/logging"
)

// handleImport starts a background import of the uploaded "file" field
// and returns the job id. The file is held in memory, capped at the
// configured import size.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Jobs.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(w, r, "file too large or invalid form: %v", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, "no file provided")
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		badRequest(w, r, "file too large: %d bytes exceeds %d", header.Size, maxSize)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	src, err := core.NewSource(filepath.Base(header.Filename), bytes.NewReader(data))
	if err != nil {
		respondError(w, r, err)
		return
	}

	jobID, err := s.service.StartImportSource(r.Context(), src)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.WithFields(r.Context(), "job_id", jobID, "file", header.Filename, "bytes", header.Size).
		Info("import queued")
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.Jobs.Status(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type exportRequest struct {
	Path string `json:"path"`
	filterRequest
}

// handleStartExport starts a background export of the filtered records to
// a file under the configured export directory. The request names the file
// only; absolute paths and parent references are refused.
func (s *Server) handleStartExport(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exportRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		if req.Path == "" {
			badRequest(w, r, "path is required")
			return
		}
		path, err := exportTarget(s.cfg.Jobs.ExportDir, req.Path)
		if err != nil {
			respondError(w, r, err)
			return
		}
		f, err := req.filter()
		if err != nil {
			respondError(w, r, err)
			return
		}

		jobID, err := s.service.StartExport(r.Context(), kind, f, path)
		if err != nil {
			respondError(w, r, err)
			return
		}

		logging.WithFields(r.Context(), "job_id", jobID, "kind", kind, "path", path).
			Info("export queued")
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
	}
}

// exportTarget resolves a client supplied file name inside dir, creating
// dir when needed.
func exportTarget(dir, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", invalidRequest("export path must be a file name, got absolute path %q", name)
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return "", invalidRequest("export path %q must not contain ..", name)
		}
	}
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return "", invalidRequest("export path %q has no file name", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir %s: %w", dir, err)
	}
	return filepath.Join(dir, base), nil
}

// handleDownloadSnapshot builds a snapshot of the filtered records in a
// temporary file and streams it to the client.
func (s *Server) handleDownloadSnapshot(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r.URL.Query()).filter()
	if err != nil {
		respondError(w, r, err)
		return
	}

	records, err := s.service.LoadRecords(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}

	name := "operations_" + time.Now().Format("20060102_150405") + ".db"
	tmpDir, err := os.MkdirTemp(s.uploadDir, "snapshot-")
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, name)
	if err := s.service.Exporter.ExportSnapshot(r.Context(), records, path); err != nil {
		respondError(w, r, err)
		return
	}

	serveFile(w, r, path, name, "application/vnd.sqlite3")
}

// serveFile streams path as an attachment named name.
func serveFile(w http.ResponseWriter, r *http.Request, path, name, contentType string) {
	fh, err := os.Open(path)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	http.ServeContent(w, r, name, info.ModTime(), fh)
}
