package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/calladine/migralog/internal/backup"
	"github.com/calladine/migralog/internal/database"
	"github.com/calladine/migralog/internal/handler"
	"github.com/calladine/migralog/internal/middleware"
	"github.com/calladine/migralog/internal/reminder"
	"github.com/calladine/migralog/internal/store"
	ws "github.com/calladine/migralog/internal/websocket"
)

// Config holds server-level configuration.
type Config struct {
	// APIToken guards every API route; empty disables the check.
	APIToken string
	Backup   backup.Config
}

type Server struct {
	db          *database.DB
	hub         *ws.Hub
	episodeH    *handler.EpisodeHandler
	medicationH *handler.MedicationHandler
	dailyH      *handler.DailyStatusHandler
	backupH     *handler.BackupHandler
	rateLimiter *middleware.RateLimiter
	backupMgr   *backup.Manager
	scheduler   *reminder.Scheduler
	apiToken    string
	logger      *slog.Logger
}

func New(db *database.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	episodeStore := store.NewEpisodeStore(db)
	noteStore := store.NewEpisodeNoteStore(db)
	intensityStore := store.NewIntensityStore(db)
	medicationStore := store.NewMedicationStore(db)
	doseStore := store.NewDoseStore(db)
	scheduleStore := store.NewScheduleStore(db)
	dailyStore := store.NewDailyStatusStore(db)
	settingsStore := store.NewSettingsStore(db)

	backupMgr := backup.NewManager(cfg.Backup, db, backup.Stores{
		Episodes:     episodeStore,
		EpisodeNotes: noteStore,
		Intensity:    intensityStore,
		Medications:  medicationStore,
		Doses:        doseStore,
		Schedules:    scheduleStore,
		DailyStatus:  dailyStore,
		Settings:     settingsStore,
	}, func(s backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			Data: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
	}, logger.With("component", "backup"))

	scheduler := reminder.NewScheduler(scheduleStore, doseStore, medicationStore, hub, logger.With("component", "reminder"))

	return &Server{
		db:          db,
		hub:         hub,
		episodeH:    handler.NewEpisodeHandler(episodeStore, noteStore, intensityStore, hub, logger.With("component", "episode")),
		medicationH: handler.NewMedicationHandler(medicationStore, doseStore, scheduleStore, scheduler, hub, logger.With("component", "medication")),
		dailyH:      handler.NewDailyStatusHandler(dailyStore, hub, logger.With("component", "daily_status")),
		backupH:     handler.NewBackupHandler(backupMgr, hub, logger.With("component", "backup_handler")),
		rateLimiter: middleware.NewRateLimiter(),
		backupMgr:   backupMgr,
		scheduler:   scheduler,
		apiToken:    cfg.APIToken,
		logger:      logger,
	}
}

// BackupManager returns the backup manager for lifecycle control.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupMgr
}

// Scheduler returns the reminder scheduler for lifecycle control.
func (s *Server) Scheduler() *reminder.Scheduler {
	return s.scheduler
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()
	outerMux.HandleFunc("GET /health", s.healthHandler)

	apiMux := http.NewServeMux()
	s.registerAPIRoutes(apiMux)

	auth := middleware.RequireToken(s.apiToken)
	outerMux.Handle("/", auth(apiMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// rateLimited wraps destructive backup endpoints so a misbehaving client
// cannot thrash the database file.
func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	// Episode routes
	mux.HandleFunc("POST /api/episodes", s.episodeH.Create)
	mux.HandleFunc("GET /api/episodes", s.episodeH.List)
	mux.HandleFunc("GET /api/episodes/{id}", s.episodeH.Get)
	mux.HandleFunc("PUT /api/episodes/{id}", s.episodeH.Update)
	mux.HandleFunc("POST /api/episodes/{id}/end", s.episodeH.End)
	mux.HandleFunc("DELETE /api/episodes/{id}", s.episodeH.Delete)
	mux.HandleFunc("POST /api/episodes/{id}/notes", s.episodeH.AddNote)
	mux.HandleFunc("GET /api/episodes/{id}/notes", s.episodeH.ListNotes)
	mux.HandleFunc("DELETE /api/episodes/{id}/notes/{note_id}", s.episodeH.DeleteNote)
	mux.HandleFunc("POST /api/episodes/{id}/intensity", s.episodeH.AddIntensity)
	mux.HandleFunc("GET /api/episodes/{id}/intensity", s.episodeH.ListIntensity)

	// Medication routes
	mux.HandleFunc("POST /api/medications", s.medicationH.Create)
	mux.HandleFunc("GET /api/medications", s.medicationH.List)
	mux.HandleFunc("GET /api/medications/{id}", s.medicationH.Get)
	mux.HandleFunc("PUT /api/medications/{id}", s.medicationH.Update)
	mux.HandleFunc("POST /api/medications/{id}/archive", s.medicationH.Archive)
	mux.HandleFunc("DELETE /api/medications/{id}", s.medicationH.Delete)
	mux.HandleFunc("POST /api/medications/{id}/doses", s.medicationH.LogDose)
	mux.HandleFunc("GET /api/medications/{id}/doses", s.medicationH.ListDoses)
	mux.HandleFunc("GET /api/doses", s.medicationH.RecentDoses)
	mux.HandleFunc("DELETE /api/doses/{dose_id}", s.medicationH.DeleteDose)
	mux.HandleFunc("POST /api/medications/{id}/schedules", s.medicationH.CreateSchedule)
	mux.HandleFunc("GET /api/medications/{id}/schedules", s.medicationH.ListSchedules)
	mux.HandleFunc("PUT /api/schedules/{schedule_id}", s.medicationH.UpdateSchedule)
	mux.HandleFunc("DELETE /api/schedules/{schedule_id}", s.medicationH.DeleteSchedule)

	// Daily status routes
	mux.HandleFunc("PUT /api/days", s.dailyH.Upsert)
	mux.HandleFunc("GET /api/days", s.dailyH.Range)
	mux.HandleFunc("GET /api/days/{day}", s.dailyH.Get)
	mux.HandleFunc("DELETE /api/days/{day}", s.dailyH.Delete)

	// Backup routes
	mux.HandleFunc("POST /api/backups", s.backupH.Create)
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("GET /api/backups/status", s.backupH.Status)
	mux.HandleFunc("GET /api/backups/broken", s.backupH.Broken)
	mux.HandleFunc("POST /api/backups/broken/cleanup", s.backupH.CleanupBroken)
	mux.HandleFunc("POST /api/backups/auto", s.backupH.RunAuto)
	mux.HandleFunc("POST /api/backups/import", s.rateLimited(s.backupH.Import))
	mux.HandleFunc("GET /api/backups/{id}", s.backupH.Get)
	mux.HandleFunc("DELETE /api/backups/{id}", s.backupH.Delete)
	mux.HandleFunc("GET /api/backups/{id}/download", s.backupH.Download)
	mux.HandleFunc("POST /api/backups/{id}/restore", s.rateLimited(s.backupH.Restore))

	// Real-time sync
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
