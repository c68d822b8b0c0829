package store

import (
	"database/sql"
	"fmt"

	"github.com/calladine/migralog/internal/database"
	"github.com/calladine/migralog/internal/model"
)

type DailyStatusStore struct {
	db *database.DB
}

func NewDailyStatusStore(db *database.DB) *DailyStatusStore {
	return &DailyStatusStore{db: db}
}

// Upsert records the status for a day, replacing any existing entry.
func (s *DailyStatusStore) Upsert(day string, status model.DayStatus, note string) (*model.DailyStatus, error) {
	_, err := s.db.Exec(
		`INSERT INTO daily_statuses (day, status, note) VALUES (?, ?, ?)
		 ON CONFLICT(day) DO UPDATE SET status = excluded.status, note = excluded.note`,
		day, status, note,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert daily status: %w", err)
	}
	return s.Get(day)
}

func (s *DailyStatusStore) Get(day string) (*model.DailyStatus, error) {
	var d model.DailyStatus
	err := s.db.QueryRow(
		`SELECT id, day, status, note FROM daily_statuses WHERE day = ?`, day,
	).Scan(&d.ID, &d.Day, &d.Status, &d.Note)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily status: %w", err)
	}
	return &d, nil
}

// Range returns statuses for days in [from, to] inclusive, oldest first.
func (s *DailyStatusStore) Range(from, to string) ([]model.DailyStatus, error) {
	rows, err := s.db.Query(
		`SELECT id, day, status, note FROM daily_statuses WHERE day >= ? AND day <= ? ORDER BY day`, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list daily statuses: %w", err)
	}
	defer rows.Close()
	return collectDailyStatuses(rows)
}

func collectDailyStatuses(rows *sql.Rows) ([]model.DailyStatus, error) {
	var statuses []model.DailyStatus
	for rows.Next() {
		var d model.DailyStatus
		if err := rows.Scan(&d.ID, &d.Day, &d.Status, &d.Note); err != nil {
			return nil, fmt.Errorf("scan daily status: %w", err)
		}
		statuses = append(statuses, d)
	}
	return statuses, rows.Err()
}

func (s *DailyStatusStore) Delete(day string) error {
	_, err := s.db.Exec(`DELETE FROM daily_statuses WHERE day = ?`, day)
	if err != nil {
		return fmt.Errorf("delete daily status: %w", err)
	}
	return nil
}

func (s *DailyStatusStore) All() ([]model.DailyStatus, error) {
	rows, err := s.db.Query(`SELECT id, day, status, note FROM daily_statuses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("all daily statuses: %w", err)
	}
	defer rows.Close()
	return collectDailyStatuses(rows)
}

func (s *DailyStatusStore) InsertWithID(tx *sql.Tx, d model.DailyStatus) error {
	_, err := tx.Exec(
		`INSERT INTO daily_statuses (id, day, status, note) VALUES (?, ?, ?, ?)`,
		d.ID, d.Day, d.Status, d.Note,
	)
	if err != nil {
		return fmt.Errorf("insert daily status %d: %w", d.ID, err)
	}
	return nil
}
