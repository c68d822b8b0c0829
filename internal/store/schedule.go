package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/calladine/migralog/internal/database"
	"github.com/calladine/migralog/internal/model"
)

type ScheduleStore struct {
	db *database.DB
}

func NewScheduleStore(db *database.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

const scheduleCols = `id, medication_id, trigger_spec, enabled, created_at, updated_at`

func scanSchedule(scanner interface{ Scan(...any) error }) (*model.MedicationSchedule, error) {
	var sch model.MedicationSchedule
	var spec string
	var enabled int

	err := scanner.Scan(&sch.ID, &sch.MedicationID, &spec, &enabled, &sch.CreatedAt, &sch.UpdatedAt)
	if err != nil {
		return nil, err
	}

	trigger, err := model.DecodeTrigger([]byte(spec))
	if err != nil {
		return nil, fmt.Errorf("schedule %d: %w", sch.ID, err)
	}
	sch.Trigger = trigger
	sch.Enabled = enabled != 0
	return &sch, nil
}

func (s *ScheduleStore) Create(medicationID int64, trigger model.Trigger, enabled bool) (*model.MedicationSchedule, error) {
	spec, err := trigger.Encode()
	if err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO medication_schedules (medication_id, trigger_spec, enabled) VALUES (?, ?, ?)`,
		medicationID, string(spec), boolToInt(enabled),
	)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ScheduleStore) GetByID(id int64) (*model.MedicationSchedule, error) {
	row := s.db.QueryRow(`SELECT `+scheduleCols+` FROM medication_schedules WHERE id = ?`, id)
	sch, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sch, nil
}

func (s *ScheduleStore) ListByMedication(medicationID int64) ([]model.MedicationSchedule, error) {
	rows, err := s.db.Query(
		`SELECT `+scheduleCols+` FROM medication_schedules WHERE medication_id = ? ORDER BY id`, medicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// ListEnabled returns every schedule the reminder loop should evaluate.
func (s *ScheduleStore) ListEnabled() ([]model.MedicationSchedule, error) {
	rows, err := s.db.Query(`SELECT ` + scheduleCols + ` FROM medication_schedules WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list enabled schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func collectSchedules(rows *sql.Rows) ([]model.MedicationSchedule, error) {
	var schedules []model.MedicationSchedule
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sch)
	}
	return schedules, rows.Err()
}

func (s *ScheduleStore) Update(id int64, trigger model.Trigger, enabled bool) (*model.MedicationSchedule, error) {
	spec, err := trigger.Encode()
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(
		`UPDATE medication_schedules SET trigger_spec = ?, enabled = ?, updated_at = ? WHERE id = ?`,
		string(spec), boolToInt(enabled), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	return s.GetByID(id)
}

func (s *ScheduleStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM medication_schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

func (s *ScheduleStore) All() ([]model.MedicationSchedule, error) {
	rows, err := s.db.Query(`SELECT ` + scheduleCols + ` FROM medication_schedules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("all schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (s *ScheduleStore) InsertWithID(tx *sql.Tx, sch model.MedicationSchedule) error {
	spec, err := sch.Trigger.Encode()
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT INTO medication_schedules (id, medication_id, trigger_spec, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sch.ID, sch.MedicationID, string(spec), boolToInt(sch.Enabled), sch.CreatedAt, sch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule %d: %w", sch.ID, err)
	}
	return nil
}
