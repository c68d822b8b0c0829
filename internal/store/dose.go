package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/calladine/migralog/internal/database"
	"github.com/calladine/migralog/internal/model"
)

type DoseStore struct {
	db *database.DB
}

func NewDoseStore(db *database.DB) *DoseStore {
	return &DoseStore{db: db}
}

const doseCols = `id, medication_id, episode_id, amount, taken_at, created_at`

func scanDose(scanner interface{ Scan(...any) error }) (*model.MedicationDose, error) {
	var d model.MedicationDose
	var episodeID sql.NullInt64

	err := scanner.Scan(&d.ID, &d.MedicationID, &episodeID, &d.Amount, &d.TakenAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	if episodeID.Valid {
		d.EpisodeID = &episodeID.Int64
	}
	return &d, nil
}

func (s *DoseStore) Create(medicationID int64, episodeID *int64, amount float64, takenAt time.Time) (*model.MedicationDose, error) {
	var eID sql.NullInt64
	if episodeID != nil {
		eID = sql.NullInt64{Int64: *episodeID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO medication_doses (medication_id, episode_id, amount, taken_at) VALUES (?, ?, ?, ?)`,
		medicationID, eID, amount, takenAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert dose: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *DoseStore) GetByID(id int64) (*model.MedicationDose, error) {
	row := s.db.QueryRow(`SELECT `+doseCols+` FROM medication_doses WHERE id = ?`, id)
	d, err := scanDose(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dose: %w", err)
	}
	return d, nil
}

func (s *DoseStore) ListByMedication(medicationID int64) ([]model.MedicationDose, error) {
	rows, err := s.db.Query(
		`SELECT `+doseCols+` FROM medication_doses WHERE medication_id = ? ORDER BY taken_at DESC`, medicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list doses: %w", err)
	}
	defer rows.Close()
	return collectDoses(rows)
}

// ListRecent returns the latest doses across all medications.
func (s *DoseStore) ListRecent(limit int) ([]model.MedicationDose, error) {
	rows, err := s.db.Query(
		`SELECT `+doseCols+` FROM medication_doses ORDER BY taken_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent doses: %w", err)
	}
	defer rows.Close()
	return collectDoses(rows)
}

// LastTakenAt returns when the medication was last taken, or nil if never.
func (s *DoseStore) LastTakenAt(medicationID int64) (*time.Time, error) {
	var takenAt time.Time
	err := s.db.QueryRow(
		`SELECT taken_at FROM medication_doses WHERE medication_id = ? ORDER BY taken_at DESC LIMIT 1`,
		medicationID,
	).Scan(&takenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last dose time: %w", err)
	}
	return &takenAt, nil
}

func collectDoses(rows *sql.Rows) ([]model.MedicationDose, error) {
	var doses []model.MedicationDose
	for rows.Next() {
		d, err := scanDose(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dose: %w", err)
		}
		doses = append(doses, *d)
	}
	return doses, rows.Err()
}

func (s *DoseStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM medication_doses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete dose: %w", err)
	}
	return nil
}

func (s *DoseStore) All() ([]model.MedicationDose, error) {
	rows, err := s.db.Query(`SELECT ` + doseCols + ` FROM medication_doses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("all doses: %w", err)
	}
	defer rows.Close()
	return collectDoses(rows)
}

func (s *DoseStore) InsertWithID(tx *sql.Tx, d model.MedicationDose) error {
	var eID sql.NullInt64
	if d.EpisodeID != nil {
		eID = sql.NullInt64{Int64: *d.EpisodeID, Valid: true}
	}
	_, err := tx.Exec(
		`INSERT INTO medication_doses (id, medication_id, episode_id, amount, taken_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.MedicationID, eID, d.Amount, d.TakenAt, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dose %d: %w", d.ID, err)
	}
	return nil
}
