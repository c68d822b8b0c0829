package backup

import (
	"strings"
	"time"
)

// Type selects the restore strategy for a backup.
type Type string

const (
	// TypeJSON is a self-contained JSON export of every table.
	TypeJSON Type = "json"
	// TypeSnapshot is a byte-for-byte copy of the live database file with a
	// metadata sidecar next to it.
	TypeSnapshot Type = "snapshot"
)

// Metadata describes one backup. For snapshots it lives in a `.meta.json`
// sidecar; JSON exports embed it in the artifact itself. FileSize and
// FileName are derived from the file at read time and never trusted from
// the stored descriptor.
type Metadata struct {
	ID              string `json:"id"`
	Timestamp       int64  `json:"timestamp"` // epoch milliseconds
	AppVersion      string `json:"appVersion"`
	SchemaVersion   int64  `json:"schemaVersion"`
	EpisodeCount    int64  `json:"episodeCount"`
	MedicationCount int64  `json:"medicationCount"`
	FileSize        int64  `json:"fileSize"`
	FileName        string `json:"fileName"`
	Type            Type   `json:"backupType"`
	Automatic       bool   `json:"automatic,omitempty"`

	// Display-only fields filled in by the catalog.
	FileSizeHuman string `json:"fileSizeHuman,omitempty"`
	Age           string `json:"age,omitempty"`
}

// Valid reports whether the descriptor satisfies every structural invariant.
// Invalid descriptors must never be surfaced as usable backups.
func (m *Metadata) Valid() bool {
	if strings.TrimSpace(m.ID) == "" {
		return false
	}
	if m.Timestamp <= 0 {
		return false
	}
	if m.AppVersion == "" {
		return false
	}
	if m.SchemaVersion < 0 || m.EpisodeCount < 0 || m.MedicationCount < 0 {
		return false
	}
	return true
}

// CreatedAt converts the epoch-millisecond timestamp to a time.Time.
func (m *Metadata) CreatedAt() time.Time {
	return time.UnixMilli(m.Timestamp).UTC()
}
