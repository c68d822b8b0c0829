package store

import (
	"testing"
	"time"

	"github.com/calladine/migralog/internal/database"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEpisodeCRUD(t *testing.T) {
	db := setupTestDB(t)
	es := NewEpisodeStore(db)

	started := time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)
	e, err := es.Create(started, 6, true, "stress, bright light", "left temple", "came on fast")
	if err != nil {
		t.Fatalf("create episode: %v", err)
	}
	if e.PainLevel != 6 {
		t.Errorf("pain level = %d, want 6", e.PainLevel)
	}
	if !e.Aura {
		t.Error("aura = false, want true")
	}
	if e.EndedAt != nil {
		t.Error("new episode should be ongoing")
	}

	got, err := es.GetByID(e.ID)
	if err != nil {
		t.Fatalf("get episode: %v", err)
	}
	if got == nil || got.Triggers != "stress, bright light" {
		t.Errorf("got = %+v", got)
	}

	ended := started.Add(5 * time.Hour)
	e, err = es.End(e.ID, ended)
	if err != nil {
		t.Fatalf("end episode: %v", err)
	}
	if e.EndedAt == nil || !e.EndedAt.Equal(ended) {
		t.Errorf("ended_at = %v, want %v", e.EndedAt, ended)
	}

	e, err = es.Update(e.ID, started, e.EndedAt, 8, true, "stress", "left temple", "worse than usual")
	if err != nil {
		t.Fatalf("update episode: %v", err)
	}
	if e.PainLevel != 8 || e.Notes != "worse than usual" {
		t.Errorf("after update = %+v", e)
	}

	if err := es.Delete(e.ID); err != nil {
		t.Fatalf("delete episode: %v", err)
	}
	got, err = es.GetByID(e.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestEpisodeGetMissing(t *testing.T) {
	db := setupTestDB(t)
	es := NewEpisodeStore(db)

	got, err := es.GetByID(9999)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
}

func TestEpisodeListNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	es := NewEpisodeStore(db)

	older := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	if _, err := es.Create(older, 3, false, "", "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := es.Create(newer, 5, false, "", "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	episodes, err := es.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("len = %d, want 2", len(episodes))
	}
	if !episodes[0].StartedAt.After(episodes[1].StartedAt) {
		t.Error("expected newest first")
	}
}

func TestEpisodeCount(t *testing.T) {
	db := setupTestDB(t)
	es := NewEpisodeStore(db)

	count, err := es.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}

	if _, err := es.Create(time.Now().UTC(), 4, false, "", "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	count, err = es.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestEpisodeNotes(t *testing.T) {
	db := setupTestDB(t)
	es := NewEpisodeStore(db)
	ns := NewEpisodeNoteStore(db)

	e, err := es.Create(time.Now().UTC(), 5, false, "", "", "")
	if err != nil {
		t.Fatalf("create episode: %v", err)
	}

	n, err := ns.Create(e.ID, "took sumatriptan at 14:30")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if n.EpisodeID != e.ID {
		t.Errorf("episode_id = %d, want %d", n.EpisodeID, e.ID)
	}

	notes, err := ns.ListByEpisode(e.ID)
	if err != nil {
		t.Fatalf("list notes: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("len = %d, want 1", len(notes))
	}

	// Deleting the episode cascades to its notes.
	if err := es.Delete(e.ID); err != nil {
		t.Fatalf("delete episode: %v", err)
	}
	notes, err = ns.ListByEpisode(e.ID)
	if err != nil {
		t.Fatalf("list notes after delete: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("len after cascade = %d, want 0", len(notes))
	}
}

func TestIntensityReadings(t *testing.T) {
	db := setupTestDB(t)
	es := NewEpisodeStore(db)
	is := NewIntensityStore(db)

	e, err := es.Create(time.Now().UTC(), 5, false, "", "", "")
	if err != nil {
		t.Fatalf("create episode: %v", err)
	}

	base := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	for i, level := range []int{5, 7, 4} {
		if _, err := is.Add(e.ID, level, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("add reading: %v", err)
		}
	}

	readings, err := is.ListByEpisode(e.ID)
	if err != nil {
		t.Fatalf("list readings: %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("len = %d, want 3", len(readings))
	}
	for i := 1; i < len(readings); i++ {
		if readings[i].RecordedAt.Before(readings[i-1].RecordedAt) {
			t.Error("expected readings in chronological order")
		}
	}
}
