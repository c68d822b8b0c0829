package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/calladine/migralog/internal/database"
	"github.com/calladine/migralog/internal/model"
)

type EpisodeStore struct {
	db *database.DB
}

func NewEpisodeStore(db *database.DB) *EpisodeStore {
	return &EpisodeStore{db: db}
}

const episodeCols = `id, started_at, ended_at, pain_level, aura, triggers, location, notes, created_at, updated_at`

func scanEpisode(scanner interface{ Scan(...any) error }) (*model.Episode, error) {
	var e model.Episode
	var endedAt sql.NullTime
	var aura int

	err := scanner.Scan(
		&e.ID, &e.StartedAt, &endedAt, &e.PainLevel, &aura,
		&e.Triggers, &e.Location, &e.Notes, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Aura = aura != 0
	if endedAt.Valid {
		e.EndedAt = &endedAt.Time
	}
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *EpisodeStore) Create(startedAt time.Time, painLevel int, aura bool, triggers, location, notes string) (*model.Episode, error) {
	result, err := s.db.Exec(
		`INSERT INTO episodes (started_at, pain_level, aura, triggers, location, notes) VALUES (?, ?, ?, ?, ?, ?)`,
		startedAt.UTC(), painLevel, boolToInt(aura), triggers, location, notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert episode: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EpisodeStore) GetByID(id int64) (*model.Episode, error) {
	row := s.db.QueryRow(`SELECT `+episodeCols+` FROM episodes WHERE id = ?`, id)
	e, err := scanEpisode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return e, nil
}

// List returns episodes newest-first by start time.
func (s *EpisodeStore) List() ([]model.Episode, error) {
	rows, err := s.db.Query(`SELECT ` + episodeCols + ` FROM episodes ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []model.Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, *e)
	}
	return episodes, rows.Err()
}

func (s *EpisodeStore) Update(id int64, startedAt time.Time, endedAt *time.Time, painLevel int, aura bool, triggers, location, notes string) (*model.Episode, error) {
	var end sql.NullTime
	if endedAt != nil {
		end = sql.NullTime{Time: endedAt.UTC(), Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE episodes SET started_at = ?, ended_at = ?, pain_level = ?, aura = ?, triggers = ?, location = ?, notes = ?, updated_at = ? WHERE id = ?`,
		startedAt.UTC(), end, painLevel, boolToInt(aura), triggers, location, notes, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update episode: %w", err)
	}
	return s.GetByID(id)
}

// End marks an ongoing episode as finished.
func (s *EpisodeStore) End(id int64, endedAt time.Time) (*model.Episode, error) {
	_, err := s.db.Exec(
		`UPDATE episodes SET ended_at = ?, updated_at = ? WHERE id = ?`,
		endedAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("end episode: %w", err)
	}
	return s.GetByID(id)
}

func (s *EpisodeStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM episodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete episode: %w", err)
	}
	return nil
}

func (s *EpisodeStore) Count() (int64, error) {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM episodes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count episodes: %w", err)
	}
	return count, nil
}

// All returns every episode ordered by id, for export.
func (s *EpisodeStore) All() ([]model.Episode, error) {
	rows, err := s.db.Query(`SELECT ` + episodeCols + ` FROM episodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("all episodes: %w", err)
	}
	defer rows.Close()

	var episodes []model.Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, *e)
	}
	return episodes, rows.Err()
}

// InsertWithID writes an episode preserving its original primary key, so
// restored foreign-key references stay valid.
func (s *EpisodeStore) InsertWithID(tx *sql.Tx, e model.Episode) error {
	var end sql.NullTime
	if e.EndedAt != nil {
		end = sql.NullTime{Time: *e.EndedAt, Valid: true}
	}
	_, err := tx.Exec(
		`INSERT INTO episodes (id, started_at, ended_at, pain_level, aura, triggers, location, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StartedAt, end, e.PainLevel, boolToInt(e.Aura), e.Triggers, e.Location, e.Notes, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert episode %d: %w", e.ID, err)
	}
	return nil
}
