package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/calladine/migralog/internal/database"
	"github.com/calladine/migralog/internal/model"
)

type MedicationStore struct {
	db *database.DB
}

func NewMedicationStore(db *database.DB) *MedicationStore {
	return &MedicationStore{db: db}
}

const medicationCols = `id, name, dosage, unit, preventive, archived, created_at, updated_at`

func scanMedication(scanner interface{ Scan(...any) error }) (*model.Medication, error) {
	var m model.Medication
	var preventive, archived int

	err := scanner.Scan(
		&m.ID, &m.Name, &m.Dosage, &m.Unit, &preventive, &archived,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Preventive = preventive != 0
	m.Archived = archived != 0
	return &m, nil
}

func (s *MedicationStore) Create(name string, dosage float64, unit string, preventive bool) (*model.Medication, error) {
	result, err := s.db.Exec(
		`INSERT INTO medications (name, dosage, unit, preventive) VALUES (?, ?, ?, ?)`,
		name, dosage, unit, boolToInt(preventive),
	)
	if err != nil {
		return nil, fmt.Errorf("insert medication: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MedicationStore) GetByID(id int64) (*model.Medication, error) {
	row := s.db.QueryRow(`SELECT `+medicationCols+` FROM medications WHERE id = ?`, id)
	m, err := scanMedication(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get medication: %w", err)
	}
	return m, nil
}

// List returns medications by name; archived ones only when asked for.
func (s *MedicationStore) List(includeArchived bool) ([]model.Medication, error) {
	query := `SELECT ` + medicationCols + ` FROM medications`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY name`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	defer rows.Close()

	var meds []model.Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		meds = append(meds, *m)
	}
	return meds, rows.Err()
}

func (s *MedicationStore) Update(id int64, name string, dosage float64, unit string, preventive bool) (*model.Medication, error) {
	_, err := s.db.Exec(
		`UPDATE medications SET name = ?, dosage = ?, unit = ?, preventive = ?, updated_at = ? WHERE id = ?`,
		name, dosage, unit, boolToInt(preventive), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update medication: %w", err)
	}
	return s.GetByID(id)
}

// Archive hides a medication from active lists without losing its history.
func (s *MedicationStore) Archive(id int64, archived bool) (*model.Medication, error) {
	_, err := s.db.Exec(
		`UPDATE medications SET archived = ?, updated_at = ? WHERE id = ?`,
		boolToInt(archived), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("archive medication: %w", err)
	}
	return s.GetByID(id)
}

func (s *MedicationStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM medications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete medication: %w", err)
	}
	return nil
}

func (s *MedicationStore) Count() (int64, error) {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM medications`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count medications: %w", err)
	}
	return count, nil
}

func (s *MedicationStore) All() ([]model.Medication, error) {
	rows, err := s.db.Query(`SELECT ` + medicationCols + ` FROM medications ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("all medications: %w", err)
	}
	defer rows.Close()

	var meds []model.Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		meds = append(meds, *m)
	}
	return meds, rows.Err()
}

func (s *MedicationStore) InsertWithID(tx *sql.Tx, m model.Medication) error {
	_, err := tx.Exec(
		`INSERT INTO medications (id, name, dosage, unit, preventive, archived, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Dosage, m.Unit, boolToInt(m.Preventive), boolToInt(m.Archived), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert medication %d: %w", m.ID, err)
	}
	return nil
}
