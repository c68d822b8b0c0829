package model

type DayStatus string

const (
	DayStatusClear    DayStatus = "clear"
	DayStatusAura     DayStatus = "aura"
	DayStatusMigraine DayStatus = "migraine"
)

// DailyStatus is the one-line summary a user records for a calendar day.
// Day is a date in YYYY-MM-DD form and unique per row.
type DailyStatus struct {
	ID     int64     `json:"id"`
	Day    string    `json:"day"`
	Status DayStatus `json:"status"`
	Note   string    `json:"note"`
}
