package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// List returns every readable, valid backup in the directory, newest first.
// Unreadable or invalid entries are logged and skipped; a missing directory
// yields an empty list. Listing never fails the caller.
func (m *Manager) List() []Metadata {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("read backup dir failed", "dir", m.cfg.Dir, "error", err)
		}
		return []Metadata{}
	}

	backups := make([]Metadata, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		meta, err := m.describe(entry.Name())
		if err != nil {
			if err != errSkip {
				m.logger.Warn("skipping unreadable backup", "file", entry.Name(), "error", err)
			}
			continue
		}
		backups = append(backups, *meta)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp > backups[j].Timestamp
	})
	return backups
}

// Get returns the descriptor for a single backup.
func (m *Manager) Get(id string) (*Metadata, error) {
	for _, ext := range []string{".db", ".json"} {
		meta, err := m.describe(id + ext)
		if err == nil {
			return meta, nil
		}
		if err != errSkip && !os.IsNotExist(err) {
			m.logger.Warn("unreadable backup", "id", id, "error", err)
		}
	}
	return nil, ErrNotFound
}

// Path returns the on-disk path of a backup's data file.
func (m *Manager) Path(id string) (string, error) {
	meta, err := m.Get(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(m.cfg.Dir, meta.FileName), nil
}

// Delete removes a backup and, for snapshots, its sidecar and any copied
// WAL/SHM files. Offsite copies are removed best effort.
func (m *Manager) Delete(ctx context.Context, id string) error {
	meta, err := m.Get(id)
	if err != nil {
		return err
	}

	path := filepath.Join(m.cfg.Dir, meta.FileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete backup: %w", err)
	}
	if meta.Type == TypeSnapshot {
		os.Remove(filepath.Join(m.cfg.Dir, meta.ID+".meta.json"))
		os.Remove(path + "-wal")
		os.Remove(path + "-shm")
	}

	if m.offsite != nil {
		if err := m.offsite.Delete(ctx, meta.FileName); err != nil {
			m.logger.Warn("offsite delete failed", "id", id, "error", err)
		}
	}

	m.logger.Info("backup deleted", "id", id)
	return nil
}

// errSkip marks directory entries that are not backup data files, such as
// sidecars and copied WAL/SHM files.
var errSkip = fmt.Errorf("not a backup file")

// describe builds the descriptor for one data file in the backup directory.
// FileSize always comes from the file itself, never from a stored value.
func (m *Manager) describe(name string) (*Metadata, error) {
	path := filepath.Join(m.cfg.Dir, name)

	var meta *Metadata
	var err error
	switch {
	case strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".meta.json"):
		meta, err = m.readExportMeta(path)
	case strings.HasSuffix(name, ".db"):
		meta, err = m.readSidecar(strings.TrimSuffix(name, ".db"))
	default:
		return nil, errSkip
	}
	if err != nil {
		return nil, err
	}

	if !meta.Valid() {
		return nil, fmt.Errorf("invalid metadata in %s", name)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	meta.FileName = name
	meta.FileSize = info.Size()
	meta.FileSizeHuman = humanize.Bytes(uint64(info.Size()))
	meta.Age = humanize.Time(meta.CreatedAt())
	return meta, nil
}

func (m *Manager) readExportMeta(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Metadata Metadata `json:"metadata"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	meta := payload.Metadata
	meta.Type = TypeJSON
	return &meta, nil
}

// readSidecar loads a snapshot's metadata sidecar. A snapshot without one is
// a legacy copy from before sidecars existed: it stays restorable under a
// descriptor synthesized from the file itself.
func (m *Manager) readSidecar(id string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(m.cfg.Dir, id+".meta.json"))
	if os.IsNotExist(err) {
		return m.legacySnapshot(id)
	}
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode sidecar: %w", err)
	}
	meta.Type = TypeSnapshot
	return &meta, nil
}

// legacySnapshot builds a descriptor for a sidecar-less snapshot by
// inspecting the file itself. The timestamp falls back to the file's mtime.
func (m *Manager) legacySnapshot(id string) (*Metadata, error) {
	path := filepath.Join(m.cfg.Dir, id+".db")

	// Stat before opening: the sqlite driver creates missing files, and a
	// lookup of an unknown id must not leave an empty .db behind.
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	episodes, medications, version, err := inspectSnapshot(path)
	if err != nil {
		return nil, err
	}
	return &Metadata{
		ID:              id,
		Timestamp:       info.ModTime().UnixMilli(),
		AppVersion:      "unknown",
		SchemaVersion:   version,
		EpisodeCount:    episodes,
		MedicationCount: medications,
		Type:            TypeSnapshot,
	}, nil
}
