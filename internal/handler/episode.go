package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/calladine/migralog/internal/model"
	"github.com/calladine/migralog/internal/store"
	"github.com/calladine/migralog/internal/websocket"
)

type EpisodeHandler struct {
	episodes  *store.EpisodeStore
	notes     *store.EpisodeNoteStore
	intensity *store.IntensityStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewEpisodeHandler(es *store.EpisodeStore, ns *store.EpisodeNoteStore, is *store.IntensityStore, hub *websocket.Hub, logger *slog.Logger) *EpisodeHandler {
	return &EpisodeHandler{episodes: es, notes: ns, intensity: is, hub: hub, logger: logger}
}

type episodeRequest struct {
	StartedAt *time.Time `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	PainLevel int        `json:"pain_level"`
	Aura      bool       `json:"aura"`
	Triggers  string     `json:"triggers"`
	Location  string     `json:"location"`
	Notes     string     `json:"notes"`
}

func (req *episodeRequest) validate() string {
	if req.PainLevel < 0 || req.PainLevel > 10 {
		return "pain_level must be between 0 and 10"
	}
	if req.StartedAt != nil && req.EndedAt != nil && req.EndedAt.Before(*req.StartedAt) {
		return "ended_at precedes started_at"
	}
	return ""
}

func (h *EpisodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req episodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	startedAt := time.Now().UTC()
	if req.StartedAt != nil {
		startedAt = *req.StartedAt
	}

	episode, err := h.episodes.Create(startedAt, req.PainLevel, req.Aura, req.Triggers, req.Location, req.Notes)
	if err != nil {
		h.logger.Error("create episode", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create episode")
		return
	}

	h.hub.Notify("episode", "created", episode.ID)
	writeJSON(w, http.StatusCreated, episode)
}

func (h *EpisodeHandler) List(w http.ResponseWriter, r *http.Request) {
	episodes, err := h.episodes.List()
	if err != nil {
		h.logger.Error("list episodes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list episodes")
		return
	}
	if episodes == nil {
		episodes = []model.Episode{}
	}
	writeJSON(w, http.StatusOK, episodes)
}

func (h *EpisodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	episode, err := h.episodes.GetByID(id)
	if err != nil {
		h.logger.Error("get episode", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get episode")
		return
	}
	if episode == nil {
		writeError(w, http.StatusNotFound, "episode not found")
		return
	}
	writeJSON(w, http.StatusOK, episode)
}

func (h *EpisodeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req episodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.StartedAt == nil {
		writeError(w, http.StatusBadRequest, "started_at is required")
		return
	}

	existing, err := h.episodes.GetByID(id)
	if err != nil {
		h.logger.Error("get episode", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get episode")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "episode not found")
		return
	}

	episode, err := h.episodes.Update(id, *req.StartedAt, req.EndedAt, req.PainLevel, req.Aura, req.Triggers, req.Location, req.Notes)
	if err != nil {
		h.logger.Error("update episode", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update episode")
		return
	}

	h.hub.Notify("episode", "updated", id)
	writeJSON(w, http.StatusOK, episode)
}

// End closes an ongoing episode at the given time, defaulting to now.
func (h *EpisodeHandler) End(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		EndedAt *time.Time `json:"ended_at"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	existing, err := h.episodes.GetByID(id)
	if err != nil {
		h.logger.Error("get episode", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get episode")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "episode not found")
		return
	}

	endedAt := time.Now().UTC()
	if req.EndedAt != nil {
		endedAt = *req.EndedAt
	}
	if endedAt.Before(existing.StartedAt) {
		writeError(w, http.StatusBadRequest, "ended_at precedes started_at")
		return
	}

	episode, err := h.episodes.End(id, endedAt)
	if err != nil {
		h.logger.Error("end episode", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to end episode")
		return
	}

	h.hub.Notify("episode", "updated", id)
	writeJSON(w, http.StatusOK, episode)
}

func (h *EpisodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.episodes.Delete(id); err != nil {
		h.logger.Error("delete episode", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete episode")
		return
	}

	h.hub.Notify("episode", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *EpisodeHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}

	episode, err := h.episodes.GetByID(id)
	if err != nil {
		h.logger.Error("get episode", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get episode")
		return
	}
	if episode == nil {
		writeError(w, http.StatusNotFound, "episode not found")
		return
	}

	note, err := h.notes.Create(id, req.Body)
	if err != nil {
		h.logger.Error("create note", "episode", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create note")
		return
	}

	h.hub.Notify("episode", "updated", id)
	writeJSON(w, http.StatusCreated, note)
}

func (h *EpisodeHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	notes, err := h.notes.ListByEpisode(id)
	if err != nil {
		h.logger.Error("list notes", "episode", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}
	if notes == nil {
		notes = []model.EpisodeNote{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *EpisodeHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(r, "note_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid note_id")
		return
	}

	if err := h.notes.Delete(noteID); err != nil {
		h.logger.Error("delete note", "id", noteID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete note")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddIntensity records a pain-level sample during an ongoing episode.
func (h *EpisodeHandler) AddIntensity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		Level      int        `json:"level"`
		RecordedAt *time.Time `json:"recorded_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Level < 0 || req.Level > 10 {
		writeError(w, http.StatusBadRequest, "level must be between 0 and 10")
		return
	}

	episode, err := h.episodes.GetByID(id)
	if err != nil {
		h.logger.Error("get episode", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get episode")
		return
	}
	if episode == nil {
		writeError(w, http.StatusNotFound, "episode not found")
		return
	}

	recordedAt := time.Now().UTC()
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}

	reading, err := h.intensity.Add(id, req.Level, recordedAt)
	if err != nil {
		h.logger.Error("add intensity reading", "episode", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record intensity")
		return
	}

	h.hub.Notify("episode", "updated", id)
	writeJSON(w, http.StatusCreated, reading)
}

func (h *EpisodeHandler) ListIntensity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	readings, err := h.intensity.ListByEpisode(id)
	if err != nil {
		h.logger.Error("list intensity readings", "episode", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list readings")
		return
	}
	if readings == nil {
		readings = []model.IntensityReading{}
	}
	writeJSON(w, http.StatusOK, readings)
}
