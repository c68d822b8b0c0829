package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/calladine/migralog/internal/model"
	"github.com/calladine/migralog/internal/store"
	"github.com/calladine/migralog/internal/websocket"
)

type DailyStatusHandler struct {
	statuses *store.DailyStatusStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewDailyStatusHandler(ds *store.DailyStatusStore, hub *websocket.Hub, logger *slog.Logger) *DailyStatusHandler {
	return &DailyStatusHandler{statuses: ds, hub: hub, logger: logger}
}

const dayFormat = "2006-01-02"

func validDay(day string) bool {
	_, err := time.Parse(dayFormat, day)
	return err == nil
}

func validStatus(s model.DayStatus) bool {
	switch s {
	case model.DayStatusClear, model.DayStatusAura, model.DayStatusMigraine:
		return true
	}
	return false
}

// Upsert records how a calendar day went. One row per day; posting the same
// day again overwrites it.
func (h *DailyStatusHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Day    string          `json:"day"`
		Status model.DayStatus `json:"status"`
		Note   string          `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !validDay(req.Day) {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}
	if !validStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	status, err := h.statuses.Upsert(req.Day, req.Status, req.Note)
	if err != nil {
		h.logger.Error("upsert daily status", "day", req.Day, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save status")
		return
	}

	h.hub.Notify("daily_status", "updated", status.ID)
	writeJSON(w, http.StatusOK, status)
}

func (h *DailyStatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	day := r.PathValue("day")
	if !validDay(day) {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}

	status, err := h.statuses.Get(day)
	if err != nil {
		h.logger.Error("get daily status", "day", day, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get status")
		return
	}
	if status == nil {
		writeError(w, http.StatusNotFound, "no status for day")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Range returns statuses between from and to inclusive, for the calendar view.
func (h *DailyStatusHandler) Range(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if !validDay(from) || !validDay(to) {
		writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD")
		return
	}

	statuses, err := h.statuses.Range(from, to)
	if err != nil {
		h.logger.Error("range daily statuses", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list statuses")
		return
	}
	if statuses == nil {
		statuses = []model.DailyStatus{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (h *DailyStatusHandler) Delete(w http.ResponseWriter, r *http.Request) {
	day := r.PathValue("day")
	if !validDay(day) {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}

	if err := h.statuses.Delete(day); err != nil {
		h.logger.Error("delete daily status", "day", day, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete status")
		return
	}

	h.hub.Notify("daily_status", "deleted", 0)
	w.WriteHeader(http.StatusNoContent)
}
