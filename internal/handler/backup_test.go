package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/calladine/migralog/internal/backup"
	"github.com/calladine/migralog/internal/database"
	"github.com/calladine/migralog/internal/store"
	"github.com/calladine/migralog/internal/websocket"
)

func setupBackupAPI(t *testing.T) http.Handler {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(filepath.Join(dir, "app.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	stores := backup.Stores{
		Episodes:     store.NewEpisodeStore(db),
		EpisodeNotes: store.NewEpisodeNoteStore(db),
		Intensity:    store.NewIntensityStore(db),
		Medications:  store.NewMedicationStore(db),
		Doses:        store.NewDoseStore(db),
		Schedules:    store.NewScheduleStore(db),
		DailyStatus:  store.NewDailyStatusStore(db),
		Settings:     store.NewSettingsStore(db),
	}
	if _, err := stores.Episodes.Create(time.Now().Add(-2*time.Hour), 6, false, "stress", "left temple", ""); err != nil {
		t.Fatalf("seed episode: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := backup.NewManager(backup.Config{
		Dir:        filepath.Join(dir, "backups"),
		AppVersion: "test",
	}, db, stores, nil, logger)

	h := NewBackupHandler(manager, websocket.NewHub(logger), logger)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/backups", h.Create)
	mux.HandleFunc("GET /api/backups", h.List)
	mux.HandleFunc("GET /api/backups/{id}", h.Get)
	mux.HandleFunc("DELETE /api/backups/{id}", h.Delete)
	mux.HandleFunc("POST /api/backups/import", h.Import)
	mux.HandleFunc("POST /api/backups/{id}/restore", h.Restore)
	return mux
}

func doJSON(t *testing.T, mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestBackupLifecycle(t *testing.T) {
	mux := setupBackupAPI(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/backups", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}
	var meta backup.Metadata
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if meta.Type != backup.TypeSnapshot {
		t.Errorf("default backup type = %q, want %q", meta.Type, backup.TypeSnapshot)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/backups", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", rec.Code, http.StatusOK)
	}
	var list []backup.Metadata
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("list length = %d, want 1", len(list))
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/backups/"+meta.ID, "")
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = doJSON(t, mux, http.MethodDelete, "/api/backups/"+meta.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	rec = doJSON(t, mux, http.MethodGet, "/api/backups/"+meta.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCreateBackupBadType(t *testing.T) {
	mux := setupBackupAPI(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/backups", `{"type":"tarball"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetBackupNotFound(t *testing.T) {
	mux := setupBackupAPI(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/backups/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRestoreUnknownBackup(t *testing.T) {
	mux := setupBackupAPI(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/backups/nope/restore", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestImportRejectsJSONUpload(t *testing.T) {
	mux := setupBackupAPI(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "export.json")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(`{"metadata":{}}`))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/backups/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusUnprocessableEntity, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), ".db snapshot") {
		t.Errorf("error body missing guidance: %s", rec.Body)
	}
}

func TestImportMissingFileField(t *testing.T) {
	mux := setupBackupAPI(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("name", "not a file")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/backups/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
