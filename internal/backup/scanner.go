package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CountBroken reports how many files in the backup directory are broken:
// data files that cannot be read as a valid backup, and metadata sidecars
// whose snapshot is gone.
func (m *Manager) CountBroken() (int, error) {
	broken, err := m.brokenFiles()
	if err != nil {
		return 0, fmt.Errorf("scan backups: %w", err)
	}
	return len(broken), nil
}

// CleanupBroken deletes every broken file and returns how many were removed.
// Healthy backups are never touched; a file that fails to delete is logged
// and left for the next pass.
func (m *Manager) CleanupBroken() (int, error) {
	broken, err := m.brokenFiles()
	if err != nil {
		return 0, fmt.Errorf("scan backups: %w", err)
	}

	removed := 0
	for _, name := range broken {
		if err := os.Remove(filepath.Join(m.cfg.Dir, name)); err != nil {
			m.logger.Warn("remove broken backup failed", "file", name, "error", err)
			continue
		}
		m.logger.Info("removed broken backup file", "file", name)
		removed++
	}
	return removed, nil
}

func (m *Manager) brokenFiles() ([]string, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var broken []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".meta.json"):
			// A sidecar without its snapshot is an orphan.
			id := strings.TrimSuffix(name, ".meta.json")
			if _, err := os.Stat(filepath.Join(m.cfg.Dir, id+".db")); os.IsNotExist(err) {
				broken = append(broken, name)
			}
		case strings.HasSuffix(name, ".json"), strings.HasSuffix(name, ".db"):
			if _, err := m.describe(name); err != nil && err != errSkip {
				broken = append(broken, name)
			}
		}
	}
	return broken, nil
}
