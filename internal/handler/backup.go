package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/calladine/migralog/internal/backup"
	"github.com/calladine/migralog/internal/websocket"
)

type BackupHandler struct {
	manager *backup.Manager
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, hub *websocket.Hub, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, hub: hub, logger: logger}
}

// backupError maps the backup package's sentinel errors onto HTTP statuses.
func (h *BackupHandler) backupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, backup.ErrNotFound):
		writeError(w, http.StatusNotFound, "backup not found")
	case errors.Is(err, backup.ErrIncompatibleSchema):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, backup.ErrInvalidFormat):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("backup operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "backup operation failed")
	}
}

// Create makes a new manual backup. The body selects the type; it defaults
// to a snapshot.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Type backup.Type `json:"type"`
	}{Type: backup.TypeSnapshot}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	var meta *backup.Metadata
	var err error
	switch req.Type {
	case backup.TypeJSON:
		meta, err = h.manager.CreateExport(r.Context(), false)
	case backup.TypeSnapshot:
		meta, err = h.manager.CreateSnapshot(r.Context(), false)
	default:
		writeError(w, http.StatusBadRequest, "type must be json or snapshot")
		return
	}
	if err != nil {
		h.backupError(w, err)
		return
	}

	h.hub.Notify("backup", "completed", 0)
	writeJSON(w, http.StatusCreated, meta)
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.List())
}

func (h *BackupHandler) Get(w http.ResponseWriter, r *http.Request) {
	meta, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		h.backupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.backupError(w, err)
		return
	}
	h.hub.Notify("backup", "deleted", 0)
	w.WriteHeader(http.StatusNoContent)
}

// Download serves the raw backup file for sharing or archiving elsewhere.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	meta, err := h.manager.Get(id)
	if err != nil {
		h.backupError(w, err)
		return
	}

	path, err := h.manager.Path(id)
	if err != nil {
		h.backupError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+meta.FileName+`"`)
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, path)
}

// Import ingests an uploaded snapshot file as a new backup. The file arrives
// as multipart form data under the "file" field.
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	const maxUpload = 512 << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	meta, err := h.manager.ImportSnapshot(r.Context(), file, header.Filename)
	if err != nil {
		h.backupError(w, err)
		return
	}

	h.hub.Notify("backup", "imported", 0)
	writeJSON(w, http.StatusCreated, meta)
}

// Restore replaces the live dataset with the named backup's contents.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.manager.Restore(r.Context(), id); err != nil {
		h.backupError(w, err)
		return
	}

	h.hub.Notify("backup", "restored", 0)
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored", "id": id})
}

// RunAuto triggers the weekly automatic-backup policy immediately.
func (h *BackupHandler) RunAuto(w http.ResponseWriter, r *http.Request) {
	meta := h.manager.RunWeekly(r.Context())
	if meta == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
		return
	}
	h.hub.Notify("backup", "completed", 0)
	writeJSON(w, http.StatusCreated, meta)
}

// Broken reports how many unreadable backup files sit in the directory.
func (h *BackupHandler) Broken(w http.ResponseWriter, r *http.Request) {
	count, err := h.manager.CountBroken()
	if err != nil {
		h.backupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"broken": count})
}

// CleanupBroken removes unreadable backup files.
func (h *BackupHandler) CleanupBroken(w http.ResponseWriter, r *http.Request) {
	removed, err := h.manager.CleanupBroken()
	if err != nil {
		h.backupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// Status reports what the backup manager is currently doing.
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}
