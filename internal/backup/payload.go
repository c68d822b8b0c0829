package backup

import "github.com/calladine/migralog/internal/model"

// exportPayload is the shape of a JSON export file: the descriptor plus every
// table's rows with their original primary keys, so foreign-key links survive
// a restore. SchemaSQL holds the raw DDL the rows were written against; older
// exports predate it and restore by delete-and-reinsert instead.
type exportPayload struct {
	Metadata            Metadata                   `json:"metadata"`
	Episodes            []model.Episode            `json:"episodes"`
	EpisodeNotes        []model.EpisodeNote        `json:"episodeNotes"`
	IntensityReadings   []model.IntensityReading   `json:"intensityReadings,omitempty"`
	Medications         []model.Medication         `json:"medications"`
	MedicationDoses     []model.MedicationDose     `json:"medicationDoses"`
	MedicationSchedules []model.MedicationSchedule `json:"medicationSchedules"`
	DailyStatuses       []model.DailyStatus        `json:"dailyStatuses,omitempty"`
	Settings            []model.Setting            `json:"settings,omitempty"`
	SchemaSQL           string                     `json:"schemaSQL,omitempty"`
}
