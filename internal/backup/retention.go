package backup

import (
	"context"
	"time"
)

// RunWeekly runs one pass of the automatic-backup policy: if no automatic
// backup has been taken within the interval, take a snapshot and prune old
// automatic backups. Manual backups are never pruned. A failed pass is
// logged and retried on the next tick; it never propagates.
func (m *Manager) RunWeekly(ctx context.Context) *Metadata {
	last, err := m.stores.Settings.LastAutoBackupAt()
	if err != nil {
		m.logger.Warn("read last auto backup time failed", "error", err)
		return nil
	}
	if last != nil && time.Since(*last) < autoBackupInterval {
		return nil
	}

	meta, err := m.CreateSnapshot(ctx, true)
	if err != nil {
		m.logger.Error("automatic backup failed", "error", err)
		return nil
	}

	if err := m.stores.Settings.SetLastAutoBackupAt(time.Now()); err != nil {
		m.logger.Warn("record auto backup time failed", "error", err)
	}

	m.enforceRetention(ctx)
	return meta
}

// enforceRetention deletes the oldest automatic backups until at most
// MaxAutomaticBackups remain. List returns newest first, so everything past
// the cap is deleted in place.
func (m *Manager) enforceRetention(ctx context.Context) {
	var automatic []Metadata
	for _, b := range m.List() {
		if b.Automatic {
			automatic = append(automatic, b)
		}
	}

	for _, b := range automatic[min(len(automatic), MaxAutomaticBackups):] {
		if err := m.Delete(ctx, b.ID); err != nil {
			m.logger.Warn("prune automatic backup failed", "id", b.ID, "error", err)
		}
	}
}
