package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/calladine/migralog/internal/database"
	"github.com/calladine/migralog/internal/model"
)

type IntensityStore struct {
	db *database.DB
}

func NewIntensityStore(db *database.DB) *IntensityStore {
	return &IntensityStore{db: db}
}

func (s *IntensityStore) Add(episodeID int64, level int, recordedAt time.Time) (*model.IntensityReading, error) {
	result, err := s.db.Exec(
		`INSERT INTO intensity_readings (episode_id, level, recorded_at) VALUES (?, ?, ?)`,
		episodeID, level, recordedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert intensity reading: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var r model.IntensityReading
	err = s.db.QueryRow(
		`SELECT id, episode_id, level, recorded_at FROM intensity_readings WHERE id = ?`, id,
	).Scan(&r.ID, &r.EpisodeID, &r.Level, &r.RecordedAt)
	if err != nil {
		return nil, fmt.Errorf("get intensity reading: %w", err)
	}
	return &r, nil
}

func (s *IntensityStore) ListByEpisode(episodeID int64) ([]model.IntensityReading, error) {
	rows, err := s.db.Query(
		`SELECT id, episode_id, level, recorded_at FROM intensity_readings WHERE episode_id = ? ORDER BY recorded_at`, episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list intensity readings: %w", err)
	}
	defer rows.Close()

	var readings []model.IntensityReading
	for rows.Next() {
		var r model.IntensityReading
		if err := rows.Scan(&r.ID, &r.EpisodeID, &r.Level, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan intensity reading: %w", err)
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

func (s *IntensityStore) All() ([]model.IntensityReading, error) {
	rows, err := s.db.Query(`SELECT id, episode_id, level, recorded_at FROM intensity_readings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("all intensity readings: %w", err)
	}
	defer rows.Close()

	var readings []model.IntensityReading
	for rows.Next() {
		var r model.IntensityReading
		if err := rows.Scan(&r.ID, &r.EpisodeID, &r.Level, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan intensity reading: %w", err)
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

func (s *IntensityStore) InsertWithID(tx *sql.Tx, r model.IntensityReading) error {
	_, err := tx.Exec(
		`INSERT INTO intensity_readings (id, episode_id, level, recorded_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.EpisodeID, r.Level, r.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert intensity reading %d: %w", r.ID, err)
	}
	return nil
}
