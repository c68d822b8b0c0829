package backup

import (
	"context"
	"testing"
	"time"
)

func countAutomatic(backups []Metadata) int {
	n := 0
	for _, b := range backups {
		if b.Automatic {
			n++
		}
	}
	return n
}

func TestEnforceRetentionPrunesOldAutomatic(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()
	seed(t, m)

	for i := 0; i < MaxAutomaticBackups+3; i++ {
		if _, err := m.CreateSnapshot(ctx, true); err != nil {
			t.Fatalf("create snapshot %d: %v", i, err)
		}
		// Keep timestamps distinct across iterations.
		time.Sleep(2 * time.Millisecond)
	}
	manual, err := m.CreateSnapshot(ctx, false)
	if err != nil {
		t.Fatalf("create manual snapshot: %v", err)
	}

	m.enforceRetention(ctx)

	backups := m.List()
	if got := countAutomatic(backups); got != MaxAutomaticBackups {
		t.Errorf("automatic backups = %d, want %d", got, MaxAutomaticBackups)
	}

	// Manual backups never count against the cap.
	if _, err := m.Get(manual.ID); err != nil {
		t.Errorf("manual backup pruned: %v", err)
	}

	// The survivors are the newest ones.
	var automatic []Metadata
	for _, b := range backups {
		if b.Automatic {
			automatic = append(automatic, b)
		}
	}
	for i := 1; i < len(automatic); i++ {
		if automatic[i].Timestamp > automatic[i-1].Timestamp {
			t.Error("expected newest-first automatic backups")
		}
	}
}

func TestEnforceRetentionUnderCap(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()
	seed(t, m)

	for i := 0; i < 3; i++ {
		if _, err := m.CreateSnapshot(ctx, true); err != nil {
			t.Fatalf("create snapshot: %v", err)
		}
	}

	m.enforceRetention(ctx)

	if got := countAutomatic(m.List()); got != 3 {
		t.Errorf("automatic backups = %d, want 3", got)
	}
}

func TestRunWeeklySkipsWhenRecent(t *testing.T) {
	m, _ := setupManager(t)

	if err := m.stores.Settings.SetLastAutoBackupAt(time.Now()); err != nil {
		t.Fatalf("set last auto backup: %v", err)
	}

	if meta := m.RunWeekly(context.Background()); meta != nil {
		t.Errorf("RunWeekly = %+v, want nil (policy not due)", meta)
	}
	if got := m.List(); len(got) != 0 {
		t.Errorf("backups created = %d, want 0", len(got))
	}
}

func TestRunWeeklyCreatesWhenDue(t *testing.T) {
	m, _ := setupManager(t)
	seed(t, m)

	// Never run before: due immediately.
	meta := m.RunWeekly(context.Background())
	if meta == nil {
		t.Fatal("RunWeekly returned nil, want a backup")
	}
	if !meta.Automatic {
		t.Error("weekly backup not flagged automatic")
	}

	last, err := m.stores.Settings.LastAutoBackupAt()
	if err != nil {
		t.Fatalf("read last auto backup: %v", err)
	}
	if last == nil {
		t.Error("last auto backup time not recorded")
	}

	// Immediately after, the policy is satisfied.
	if again := m.RunWeekly(context.Background()); again != nil {
		t.Errorf("second RunWeekly = %+v, want nil", again)
	}
}

func TestRunWeeklyCreatesWhenStale(t *testing.T) {
	m, _ := setupManager(t)
	seed(t, m)

	if err := m.stores.Settings.SetLastAutoBackupAt(time.Now().Add(-8 * 24 * time.Hour)); err != nil {
		t.Fatalf("set last auto backup: %v", err)
	}

	if meta := m.RunWeekly(context.Background()); meta == nil {
		t.Error("RunWeekly returned nil, want a backup (interval elapsed)")
	}
}
