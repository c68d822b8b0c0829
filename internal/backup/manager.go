package backup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/calladine/migralog/internal/database"
	"github.com/calladine/migralog/internal/store"
)

const (
	// MaxAutomaticBackups bounds how many automatic backups retention keeps.
	MaxAutomaticBackups = 7

	// autoBackupInterval is how long the weekly policy waits between
	// automatic snapshots.
	autoBackupInterval = 7 * 24 * time.Hour

	// checkInterval is how often the scheduler loop re-evaluates the policy.
	checkInterval = time.Hour
)

// Config holds backup manager configuration.
type Config struct {
	// Dir is the backup directory, created on first use.
	Dir        string
	AppVersion string
	Offsite    OffsiteConfig
}

// State represents the backup manager state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateError   State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Stores bundles the data-layer collaborators the manager reads from during
// exports and writes through during restores.
type Stores struct {
	Episodes     *store.EpisodeStore
	EpisodeNotes *store.EpisodeNoteStore
	Intensity    *store.IntensityStore
	Medications  *store.MedicationStore
	Doses        *store.DoseStore
	Schedules    *store.ScheduleStore
	DailyStatus  *store.DailyStatusStore
	Settings     *store.SettingsStore
}

// Manager creates, lists, restores, and retires backups of the local
// database. One Manager is constructed at startup and shared.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	db       *database.DB
	stores   Stores
	offsite  *Replicator
	status   Status
	callback StatusCallback
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a backup manager. The offsite replicator is only active
// when the offsite config carries credentials.
func NewManager(cfg Config, db *database.DB, stores Stores, callback StatusCallback, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		db:       db,
		stores:   stores,
		offsite:  NewReplicator(cfg.Offsite, logger),
		callback: callback,
		logger:   logger,
		status:   Status{State: StateIdle},
	}
}

// Start begins the automatic-backup loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		// Run once at startup so a long-stopped instance catches up.
		m.RunWeekly(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.RunWeekly(ctx)
			}
		}
	}()
}

// Stop gracefully stops the manager.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// counts reads the cached display counts for a new backup descriptor. A
// failed count is logged and recorded as 0 rather than aborting the backup.
func (m *Manager) counts() (episodes, medications int64) {
	var err error
	if episodes, err = m.stores.Episodes.Count(); err != nil {
		m.logger.Warn("episode count failed, recording 0", "error", err)
		episodes = 0
	}
	if medications, err = m.stores.Medications.Count(); err != nil {
		m.logger.Warn("medication count failed, recording 0", "error", err)
		medications = 0
	}
	return episodes, medications
}
