package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/calladine/migralog/internal/database"
)

// Restore replaces the live dataset with the contents of the named backup.
// Backups taken at a newer schema version than this build supports are
// refused; older ones are forward-migrated after the data lands.
func (m *Manager) Restore(ctx context.Context, id string) error {
	if err := m.restore(ctx, id); err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return fmt.Errorf("restore backup: %w", err)
	}
	m.setStatus(Status{State: StateIdle})
	m.logger.Info("backup restored", "id", id)
	return nil
}

func (m *Manager) restore(ctx context.Context, id string) error {
	meta, err := m.Get(id)
	if err != nil {
		return err
	}
	if meta.SchemaVersion > database.CurrentSchemaVersion {
		return fmt.Errorf("%w: backup schema v%d, this build supports up to v%d",
			ErrIncompatibleSchema, meta.SchemaVersion, database.CurrentSchemaVersion)
	}

	path := filepath.Join(m.cfg.Dir, meta.FileName)
	switch meta.Type {
	case TypeJSON:
		return m.restoreExport(ctx, path)
	case TypeSnapshot:
		return m.restoreSnapshot(ctx, path)
	default:
		return fmt.Errorf("%w: unknown backup type %q", ErrInvalidFormat, meta.Type)
	}
}

// restoreExport replays a JSON export inside a single transaction, so a
// half-applied restore never survives a crash. Exports carrying their own
// DDL are rebuilt at that exact schema and forward-migrated afterwards;
// older exports without DDL are replayed into the current schema by
// delete-and-reinsert.
func (m *Manager) restoreExport(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read backup file: %w", err)
	}

	var payload exportPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if !payload.Metadata.Valid() {
		return fmt.Errorf("%w: invalid embedded metadata", ErrInvalidFormat)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer tx.Rollback()

	// Foreign keys stay off for the duration of the replay: rows arrive in
	// export order, not dependency order, and the commit re-checks nothing
	// that the original database had not already accepted.
	if _, err := tx.Exec("PRAGMA defer_foreign_keys = ON"); err != nil {
		return fmt.Errorf("defer foreign keys: %w", err)
	}

	if payload.SchemaSQL != "" {
		if err := rebuildSchema(tx, payload.SchemaSQL); err != nil {
			return err
		}
		if err := database.SetSchemaVersion(tx, payload.Metadata.SchemaVersion); err != nil {
			return err
		}
	} else {
		for _, table := range database.Tables {
			if _, err := tx.Exec("DELETE FROM " + table); err != nil {
				return fmt.Errorf("clear table %s: %w", table, err)
			}
		}
	}

	if err := m.insertAll(tx, &payload); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}

	// Forward-migrate if the export carried an older schema.
	if err := database.Migrate(m.db.DB); err != nil {
		return fmt.Errorf("migrate restored data: %w", err)
	}
	return nil
}

func rebuildSchema(tx *sql.Tx, schemaSQL string) error {
	for _, table := range database.Tables {
		if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("%w: replay schema: %v", ErrInvalidFormat, err)
		}
	}
	return nil
}

func (m *Manager) insertAll(tx *sql.Tx, payload *exportPayload) error {
	for _, e := range payload.Episodes {
		if err := m.stores.Episodes.InsertWithID(tx, e); err != nil {
			return fmt.Errorf("restore episode %d: %w", e.ID, err)
		}
	}
	for _, n := range payload.EpisodeNotes {
		if err := m.stores.EpisodeNotes.InsertWithID(tx, n); err != nil {
			return fmt.Errorf("restore episode note %d: %w", n.ID, err)
		}
	}
	for _, r := range payload.IntensityReadings {
		if err := m.stores.Intensity.InsertWithID(tx, r); err != nil {
			return fmt.Errorf("restore intensity reading %d: %w", r.ID, err)
		}
	}
	for _, med := range payload.Medications {
		if err := m.stores.Medications.InsertWithID(tx, med); err != nil {
			return fmt.Errorf("restore medication %d: %w", med.ID, err)
		}
	}
	for _, d := range payload.MedicationDoses {
		if err := m.stores.Doses.InsertWithID(tx, d); err != nil {
			return fmt.Errorf("restore dose %d: %w", d.ID, err)
		}
	}
	for _, sch := range payload.MedicationSchedules {
		if err := m.stores.Schedules.InsertWithID(tx, sch); err != nil {
			return fmt.Errorf("restore schedule %d: %w", sch.ID, err)
		}
	}
	for _, ds := range payload.DailyStatuses {
		if err := m.stores.DailyStatus.InsertWithID(tx, ds); err != nil {
			return fmt.Errorf("restore daily status %d: %w", ds.ID, err)
		}
	}
	for _, st := range payload.Settings {
		if err := m.stores.Settings.Insert(tx, st); err != nil {
			return fmt.Errorf("restore setting %q: %w", st.Key, err)
		}
	}
	return nil
}

// restoreSnapshot verifies the snapshot file stands on its own, then swaps
// it in under the live handle. Reopening runs pending migrations, which is
// the forward-migration path for older snapshots.
func (m *Manager) restoreSnapshot(ctx context.Context, path string) error {
	if _, _, _, err := inspectSnapshot(path); err != nil {
		return err
	}
	return m.db.Replace(path)
}

// inspectSnapshot opens a snapshot file and verifies it is a sound
// database produced by this application, returning its row counts and schema
// version. Anything that is not such a database maps to ErrInvalidFormat.
func inspectSnapshot(path string) (episodes, medications, schemaVersion int64, err error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	defer db.Close()

	var check string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil || check != "ok" {
		return 0, 0, 0, fmt.Errorf("%w: integrity check failed", ErrInvalidFormat)
	}

	if err := db.QueryRow("SELECT COUNT(*) FROM episodes").Scan(&episodes); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: missing episodes table", ErrInvalidFormat)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM medications").Scan(&medications); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: missing medications table", ErrInvalidFormat)
	}

	schemaVersion, err = database.SchemaVersion(db)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: no schema version", ErrInvalidFormat)
	}
	return episodes, medications, schemaVersion, nil
}
