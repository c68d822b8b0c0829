package reminder

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/calladine/migralog/internal/database"
	"github.com/calladine/migralog/internal/model"
	"github.com/calladine/migralog/internal/store"
)

type schedulerFixture struct {
	scheduler *Scheduler
	meds      *store.MedicationStore
	doses     *store.DoseStore
	schedules *store.ScheduleStore
}

func setupScheduler(t *testing.T) *schedulerFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	meds := store.NewMedicationStore(db)
	doses := store.NewDoseStore(db)
	schedules := store.NewScheduleStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &schedulerFixture{
		scheduler: NewScheduler(schedules, doses, meds, nil, logger),
		meds:      meds,
		doses:     doses,
		schedules: schedules,
	}
}

func (f *schedulerFixture) addMedication(t *testing.T, name string) *model.Medication {
	t.Helper()
	med, err := f.meds.Create(name, 50, "mg", false)
	if err != nil {
		t.Fatalf("create medication: %v", err)
	}
	return med
}

func (f *schedulerFixture) addSchedule(t *testing.T, medID int64, trigger model.Trigger) *model.MedicationSchedule {
	t.Helper()
	sch, err := f.schedules.Create(medID, trigger, true)
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return sch
}

func TestDueDailyTime(t *testing.T) {
	f := setupScheduler(t)
	med := f.addMedication(t, "Topiramate")
	sch := f.addSchedule(t, med.ID, model.Trigger{Kind: model.TriggerDailyTime, Hour: 9, Minute: 0})

	// Half a minute past the fire time, inside the evaluation window.
	now := time.Date(2026, 3, 2, 9, 0, 30, 0, time.UTC)
	due, at, err := f.scheduler.due(*sch, now)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if !due {
		t.Fatal("schedule not due at its daily time")
	}
	if at.Hour() != 9 || at.Minute() != 0 {
		t.Errorf("fire time = %v, want 09:00", at)
	}

	// An hour later the window has moved on; next fire is tomorrow.
	later := now.Add(time.Hour)
	if due, _, _ := f.scheduler.due(*sch, later); due {
		t.Error("schedule due again outside its window")
	}
}

func TestDueAbsoluteDate(t *testing.T) {
	f := setupScheduler(t)
	med := f.addMedication(t, "Sumatriptan")

	at := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	sch := f.addSchedule(t, med.ID, model.Trigger{Kind: model.TriggerAbsoluteDate, At: &at})

	if due, _, _ := f.scheduler.due(*sch, at.Add(-time.Minute)); due {
		t.Error("one-shot reminder due before its instant")
	}
	if due, _, _ := f.scheduler.due(*sch, at.Add(30*time.Second)); !due {
		t.Error("one-shot reminder not due just after its instant")
	}
	// Long past: the instant fell outside the window and never comes back.
	if due, _, _ := f.scheduler.due(*sch, at.Add(time.Hour)); due {
		t.Error("one-shot reminder due long after its instant")
	}
}

func TestDueRelativeDelayNeedsDose(t *testing.T) {
	f := setupScheduler(t)
	med := f.addMedication(t, "Ibuprofen")
	sch := f.addSchedule(t, med.ID, model.Trigger{Kind: model.TriggerRelativeDelay, AfterMinutes: 30})

	if due, _, _ := f.scheduler.due(*sch, time.Now()); due {
		t.Error("relative-delay reminder due with no doses logged")
	}

	if _, err := f.doses.Create(med.ID, nil, 200, time.Now().Add(-45*time.Minute)); err != nil {
		t.Fatalf("create dose: %v", err)
	}
	due, at, err := f.scheduler.due(*sch, time.Now())
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if !due {
		t.Fatal("relative-delay reminder not due after delay elapsed")
	}

	// Delivered once, the same fire time stays quiet until a new dose resets it.
	f.scheduler.fire(*sch, at)
	if due, _, _ := f.scheduler.due(*sch, time.Now()); due {
		t.Error("reminder due again without a new dose")
	}

	f.scheduler.DoseLogged(med.ID)
	if due, _, _ := f.scheduler.due(*sch, time.Now()); !due {
		t.Error("reminder not re-armed after dose logged")
	}
}

func TestTickDedupes(t *testing.T) {
	f := setupScheduler(t)
	med := f.addMedication(t, "Topiramate")
	f.addSchedule(t, med.ID, model.Trigger{Kind: model.TriggerDailyTime, Hour: 9, Minute: 0})

	now := time.Date(2026, 3, 2, 9, 0, 30, 0, time.UTC)
	f.scheduler.tick(now)
	if len(f.scheduler.fired) != 1 {
		t.Fatalf("fired entries = %d, want 1", len(f.scheduler.fired))
	}

	// A second tick inside the same window delivers nothing new.
	before := make(map[int64]time.Time, len(f.scheduler.fired))
	for id, at := range f.scheduler.fired {
		before[id] = at
	}
	f.scheduler.tick(now.Add(time.Second))
	for id, at := range f.scheduler.fired {
		if !at.Equal(before[id]) {
			t.Errorf("schedule %d redelivered at %v", id, at)
		}
	}
}

func TestTickSkipsArchivedMedication(t *testing.T) {
	f := setupScheduler(t)
	med := f.addMedication(t, "Amitriptyline")
	f.addSchedule(t, med.ID, model.Trigger{Kind: model.TriggerDailyTime, Hour: 9, Minute: 0})
	if _, err := f.meds.Archive(med.ID, true); err != nil {
		t.Fatalf("archive medication: %v", err)
	}

	f.scheduler.tick(time.Date(2026, 3, 2, 9, 0, 30, 0, time.UTC))
	if len(f.scheduler.fired) != 0 {
		t.Error("reminder fired for an archived medication")
	}
}

func TestTickSkipsDisabledSchedule(t *testing.T) {
	f := setupScheduler(t)
	med := f.addMedication(t, "Topiramate")
	sch := f.addSchedule(t, med.ID, model.Trigger{Kind: model.TriggerDailyTime, Hour: 9, Minute: 0})
	if _, err := f.schedules.Update(sch.ID, sch.Trigger, false); err != nil {
		t.Fatalf("disable schedule: %v", err)
	}

	f.scheduler.tick(time.Date(2026, 3, 2, 9, 0, 30, 0, time.UTC))
	if len(f.scheduler.fired) != 0 {
		t.Error("reminder fired for a disabled schedule")
	}
}

func TestStartStop(t *testing.T) {
	f := setupScheduler(t)
	f.scheduler.interval = 10 * time.Millisecond

	f.scheduler.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	f.scheduler.Stop()
}
