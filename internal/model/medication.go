package model

import "time"

type Medication struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Dosage     float64   `json:"dosage"`
	Unit       string    `json:"unit"`
	Preventive bool      `json:"preventive"`
	Archived   bool      `json:"archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MedicationDose records a single intake. EpisodeID links the dose to the
// episode it was taken for, if any.
type MedicationDose struct {
	ID           int64     `json:"id"`
	MedicationID int64     `json:"medication_id"`
	EpisodeID    *int64    `json:"episode_id,omitempty"`
	Amount       float64   `json:"amount"`
	TakenAt      time.Time `json:"taken_at"`
	CreatedAt    time.Time `json:"created_at"`
}

type MedicationSchedule struct {
	ID           int64     `json:"id"`
	MedicationID int64     `json:"medication_id"`
	Trigger      Trigger   `json:"trigger"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
