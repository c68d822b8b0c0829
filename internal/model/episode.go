package model

import "time"

type Episode struct {
	ID        int64      `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	PainLevel int        `json:"pain_level"`
	Aura      bool       `json:"aura"`
	Triggers  string     `json:"triggers"`
	Location  string     `json:"location"`
	Notes     string     `json:"notes"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type EpisodeNote struct {
	ID        int64     `json:"id"`
	EpisodeID int64     `json:"episode_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// IntensityReading is a pain-level sample taken during an episode, so the
// course of an attack can be charted over time.
type IntensityReading struct {
	ID         int64     `json:"id"`
	EpisodeID  int64     `json:"episode_id"`
	Level      int       `json:"level"`
	RecordedAt time.Time `json:"recorded_at"`
}
