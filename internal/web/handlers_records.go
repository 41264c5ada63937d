package web

import (
	"net/http"

	"github.com/JonMunkholm/paneltrack/internal/core"
	"github.com/JonMunkholm/paneltrack/internal/logging"
)

type recordsResponse struct {
	Records []core.OperationRecord `json:"records"`
	Count   int                    `json:"count"`
}

// handleListRecords returns every record, or the filtered set when any
// filter parameter is present.
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, recordsResponse{Records: records, Count: len(records)})
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	rec, err := req.record()
	if err != nil {
		respondError(w, r, err)
		return
	}

	id, err := s.service.Records.Insert(r.Context(), rec)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	rec, err := req.record()
	if err != nil {
		respondError(w, r, err)
		return
	}
	rec.ID = id

	if err := s.service.Records.Update(r.Context(), rec); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.service.Records.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteBatch deletes the records named in {"ids": [...]}. Unknown
// ids are ignored; the response reports how many rows went away.
func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	deleted, err := s.service.Records.DeleteBatch(r.Context(), req.IDs)
	if err != nil {
		if deleted > 0 {
			// the rows are gone; only the log entry is missing
			logging.FromContext(r.Context()).Error("batch delete not logged", "deleted", deleted, "error", err)
			writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "warning": err.Error()})
			return
		}
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
