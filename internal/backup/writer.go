package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/calladine/migralog/internal/database"
)

// CreateExport writes a self-contained JSON backup of the full dataset.
func (m *Manager) CreateExport(ctx context.Context, automatic bool) (*Metadata, error) {
	m.setStatus(Status{State: StateRunning, InProgress: true})

	meta, err := m.createExport(ctx, automatic)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("create backup: %w", err)
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	return meta, nil
}

func (m *Manager) createExport(ctx context.Context, automatic bool) (*Metadata, error) {
	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	schemaVersion, err := database.SchemaVersion(m.db.DB)
	if err != nil {
		return nil, err
	}
	schemaSQL, err := database.SchemaDDL(m.db.DB)
	if err != nil {
		return nil, err
	}

	payload := exportPayload{SchemaSQL: schemaSQL}
	if payload.Episodes, err = m.stores.Episodes.All(); err != nil {
		return nil, err
	}
	if payload.EpisodeNotes, err = m.stores.EpisodeNotes.All(); err != nil {
		return nil, err
	}
	if payload.IntensityReadings, err = m.stores.Intensity.All(); err != nil {
		return nil, err
	}
	if payload.Medications, err = m.stores.Medications.All(); err != nil {
		return nil, err
	}
	if payload.MedicationDoses, err = m.stores.Doses.All(); err != nil {
		return nil, err
	}
	if payload.MedicationSchedules, err = m.stores.Schedules.All(); err != nil {
		return nil, err
	}
	if payload.DailyStatuses, err = m.stores.DailyStatus.All(); err != nil {
		return nil, err
	}
	if payload.Settings, err = m.stores.Settings.All(); err != nil {
		return nil, err
	}

	episodes, medications := m.counts()
	id := uuid.NewString()
	meta := Metadata{
		ID:              id,
		Timestamp:       time.Now().UnixMilli(),
		AppVersion:      m.cfg.AppVersion,
		SchemaVersion:   schemaVersion,
		EpisodeCount:    episodes,
		MedicationCount: medications,
		FileName:        id + ".json",
		Type:            TypeJSON,
		Automatic:       automatic,
	}
	payload.Metadata = meta

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}

	path := filepath.Join(m.cfg.Dir, meta.FileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write backup file: %w", err)
	}

	// Re-stat for the true byte size rather than trusting len(data) to
	// survive future streaming writers.
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat backup file: %w", err)
	}
	meta.FileSize = info.Size()

	m.logger.Info("backup created", "id", meta.ID, "type", meta.Type, "size", meta.FileSize)
	return &meta, nil
}

// CreateSnapshot copies the live database file into the backup directory and
// writes a metadata sidecar next to it.
func (m *Manager) CreateSnapshot(ctx context.Context, automatic bool) (*Metadata, error) {
	m.setStatus(Status{State: StateRunning, InProgress: true})

	meta, err := m.createSnapshot(ctx, automatic)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("create snapshot backup: %w", err)
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	return meta, nil
}

func (m *Manager) createSnapshot(ctx context.Context, automatic bool) (*Metadata, error) {
	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	// Flush the WAL into the main file so the copy is complete on its own.
	// A failed checkpoint is logged, not fatal: the copy proceeds and the
	// residual WAL is carried along below.
	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		m.logger.Warn("wal checkpoint failed, copying anyway", "error", err)
	}

	schemaVersion, err := database.SchemaVersion(m.db.DB)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	dst := filepath.Join(m.cfg.Dir, id+".db")
	if err := copyFile(m.db.Path(), dst); err != nil {
		return nil, fmt.Errorf("copy database: %w", err)
	}

	// Best effort: carry any residual WAL/SHM alongside the copy.
	for _, ext := range []string{"-wal", "-shm"} {
		if _, err := os.Stat(m.db.Path() + ext); err == nil {
			if err := copyFile(m.db.Path()+ext, dst+ext); err != nil {
				m.logger.Warn("copy sidecar file failed", "ext", ext, "error", err)
			}
		}
	}

	episodes, medications := m.counts()
	meta := Metadata{
		ID:              id,
		Timestamp:       time.Now().UnixMilli(),
		AppVersion:      m.cfg.AppVersion,
		SchemaVersion:   schemaVersion,
		EpisodeCount:    episodes,
		MedicationCount: medications,
		FileName:        id + ".db",
		Type:            TypeSnapshot,
		Automatic:       automatic,
	}

	// Size goes into the sidecar only after the copy completed.
	info, err := os.Stat(dst)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	meta.FileSize = info.Size()

	sidecar, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.cfg.Dir, id+".meta.json"), sidecar, 0o600); err != nil {
		return nil, fmt.Errorf("write metadata sidecar: %w", err)
	}

	if m.offsite != nil {
		if err := m.offsite.Upload(ctx, dst, meta.FileName); err != nil {
			m.logger.Warn("offsite replication failed", "id", meta.ID, "error", err)
		}
	}

	m.logger.Info("backup created", "id", meta.ID, "type", meta.Type, "size", meta.FileSize)
	return &meta, nil
}

// ImportSnapshot ingests an uploaded snapshot file as a new backup. Only
// `.db` snapshot files are accepted; JSON exports were importable in older
// releases and are now rejected with guidance.
func (m *Manager) ImportSnapshot(ctx context.Context, r io.Reader, origName string) (*Metadata, error) {
	meta, err := m.importSnapshot(ctx, r, origName)
	if err != nil {
		return nil, fmt.Errorf("import backup: %w", err)
	}
	return meta, nil
}

func (m *Manager) importSnapshot(ctx context.Context, r io.Reader, origName string) (*Metadata, error) {
	switch ext := filepath.Ext(origName); ext {
	case ".db":
	case ".json":
		return nil, fmt.Errorf("%w: JSON exports can no longer be imported; choose a .db snapshot file", ErrInvalidFormat)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrInvalidFormat, ext)
	}

	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	id := uuid.NewString()
	tmp := filepath.Join(m.cfg.Dir, ".import-"+id)
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("write uploaded file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("write uploaded file: %w", err)
	}

	episodes, medications, schemaVersion, err := inspectSnapshot(tmp)
	if err != nil {
		os.Remove(tmp)
		return nil, err
	}

	dst := filepath.Join(m.cfg.Dir, id+".db")
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("place snapshot: %w", err)
	}

	meta := Metadata{
		ID:              id,
		Timestamp:       time.Now().UnixMilli(),
		AppVersion:      m.cfg.AppVersion,
		SchemaVersion:   schemaVersion,
		EpisodeCount:    episodes,
		MedicationCount: medications,
		FileName:        id + ".db",
		Type:            TypeSnapshot,
	}

	info, err := os.Stat(dst)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	meta.FileSize = info.Size()

	sidecar, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.cfg.Dir, id+".meta.json"), sidecar, 0o600); err != nil {
		return nil, fmt.Errorf("write metadata sidecar: %w", err)
	}

	m.logger.Info("backup imported", "id", meta.ID, "from", origName, "size", meta.FileSize)
	return &meta, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
