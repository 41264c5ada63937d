package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/paneltrack/internal/core"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// recordRequest is the body of create and update calls. Time accepts
// "2006/01/02 15:04:05" or RFC 3339.
type recordRequest struct {
	Time      string `json:"time"`
	PanelID   int64  `json:"panel_id"`
	LOTID     int64  `json:"lot_id"`
	CarrierID int64  `json:"carrier_id"`
}

func (req recordRequest) record() (core.OperationRecord, error) {
	t, err := parseTime(req.Time)
	if err != nil {
		return core.OperationRecord{}, err
	}
	return core.OperationRecord{Time: t, PanelID: req.PanelID, LOTID: req.LOTID, CarrierID: req.CarrierID}, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(core.TimeLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, invalidRequest("time %q must be YYYY/MM/DD HH:MM:SS or RFC 3339", s)
}

// filterRequest carries record filters in query strings and JSON bodies.
type filterRequest struct {
	Panel   string `json:"panel"`
	Lot     string `json:"lot"`
	Carrier string `json:"carrier"`
	Date    string `json:"date"`
	Time    string `json:"time"`
}

func filterFromQuery(q url.Values) filterRequest {
	return filterRequest{
		Panel:   q.Get("panel"),
		Lot:     q.Get("lot"),
		Carrier: q.Get("carrier"),
		Date:    q.Get("date"),
		Time:    q.Get("time"),
	}
}

func (f filterRequest) filter() (core.Filter, error) {
	out := core.Filter{
		PanelID:   f.Panel,
		LOTID:     f.Lot,
		CarrierID: f.Carrier,
		TimeText:  f.Time,
	}
	if d := strings.TrimSpace(f.Date); d != "" {
		day, err := time.Parse(time.DateOnly, d)
		if err != nil {
			return core.Filter{}, invalidRequest("date %q must be YYYY-MM-DD", d)
		}
		out.Date = &day
	}
	return out, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalidRequest("invalid JSON body: %v", err)
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidRequest("invalid record id %q", raw)
	}
	return id, nil
}
