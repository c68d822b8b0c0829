package store

import (
	"database/sql"
	"fmt"

	"github.com/calladine/migralog/internal/database"
	"github.com/calladine/migralog/internal/model"
)

type EpisodeNoteStore struct {
	db *database.DB
}

func NewEpisodeNoteStore(db *database.DB) *EpisodeNoteStore {
	return &EpisodeNoteStore{db: db}
}

func (s *EpisodeNoteStore) Create(episodeID int64, body string) (*model.EpisodeNote, error) {
	result, err := s.db.Exec(
		`INSERT INTO episode_notes (episode_id, body) VALUES (?, ?)`,
		episodeID, body,
	)
	if err != nil {
		return nil, fmt.Errorf("insert episode note: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EpisodeNoteStore) GetByID(id int64) (*model.EpisodeNote, error) {
	var n model.EpisodeNote
	err := s.db.QueryRow(
		`SELECT id, episode_id, body, created_at FROM episode_notes WHERE id = ?`, id,
	).Scan(&n.ID, &n.EpisodeID, &n.Body, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode note: %w", err)
	}
	return &n, nil
}

func (s *EpisodeNoteStore) ListByEpisode(episodeID int64) ([]model.EpisodeNote, error) {
	rows, err := s.db.Query(
		`SELECT id, episode_id, body, created_at FROM episode_notes WHERE episode_id = ? ORDER BY created_at`, episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list episode notes: %w", err)
	}
	defer rows.Close()

	var notes []model.EpisodeNote
	for rows.Next() {
		var n model.EpisodeNote
		if err := rows.Scan(&n.ID, &n.EpisodeID, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan episode note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *EpisodeNoteStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM episode_notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete episode note: %w", err)
	}
	return nil
}

func (s *EpisodeNoteStore) All() ([]model.EpisodeNote, error) {
	rows, err := s.db.Query(`SELECT id, episode_id, body, created_at FROM episode_notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("all episode notes: %w", err)
	}
	defer rows.Close()

	var notes []model.EpisodeNote
	for rows.Next() {
		var n model.EpisodeNote
		if err := rows.Scan(&n.ID, &n.EpisodeID, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan episode note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *EpisodeNoteStore) InsertWithID(tx *sql.Tx, n model.EpisodeNote) error {
	_, err := tx.Exec(
		`INSERT INTO episode_notes (id, episode_id, body, created_at) VALUES (?, ?, ?, ?)`,
		n.ID, n.EpisodeID, n.Body, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert episode note %d: %w", n.ID, err)
	}
	return nil
}
