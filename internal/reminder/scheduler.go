package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/calladine/migralog/internal/model"
	"github.com/calladine/migralog/internal/store"
	"github.com/calladine/migralog/internal/websocket"
)

const tickInterval = 60 * time.Second

// Notifier is what handlers see: they report dose events so relative-delay
// reminders restart from the latest dose.
type Notifier interface {
	DoseLogged(medicationID int64)
}

// Scheduler periodically evaluates medication schedules and broadcasts a
// reminder event when one fires. Delivery to the device (local notification)
// is the client's job; the scheduler only decides when.
type Scheduler struct {
	mu        sync.RWMutex
	schedules *store.ScheduleStore
	doses     *store.DoseStore
	meds      *store.MedicationStore
	hub       *websocket.Hub
	logger    *slog.Logger
	interval  time.Duration

	// fired dedupes deliveries: schedule ID -> last fire time delivered.
	fired map[int64]time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(schedules *store.ScheduleStore, doses *store.DoseStore, meds *store.MedicationStore, hub *websocket.Hub, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedules: schedules,
		doses:     doses,
		meds:      meds,
		hub:       hub,
		logger:    logger,
		interval:  tickInterval,
		fired:     make(map[int64]time.Time),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(time.Now())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// DoseLogged clears the dedupe entry for the medication's relative-delay
// schedules, so the next delay window counts from the new dose.
func (s *Scheduler) DoseLogged(medicationID int64) {
	schedules, err := s.schedules.ListByMedication(medicationID)
	if err != nil {
		s.logger.Warn("reminder: list schedules after dose", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sch := range schedules {
		if sch.Trigger.Kind == model.TriggerRelativeDelay {
			delete(s.fired, sch.ID)
		}
	}
}

// tick checks every enabled schedule and fires the ones that are due.
func (s *Scheduler) tick(now time.Time) {
	schedules, err := s.schedules.ListEnabled()
	if err != nil {
		s.logger.Warn("reminder: list schedules", "error", err)
		return
	}

	for _, sch := range schedules {
		due, at, err := s.due(sch, now)
		if err != nil {
			s.logger.Warn("reminder: evaluate schedule", "schedule", sch.ID, "error", err)
			continue
		}
		if !due {
			continue
		}
		s.fire(sch, at)
	}
}

// due reports whether the schedule's trigger has a fire time at or before
// now that has not been delivered yet.
func (s *Scheduler) due(sch model.MedicationSchedule, now time.Time) (bool, time.Time, error) {
	var at time.Time
	switch sch.Trigger.Kind {
	case model.TriggerRelativeDelay:
		// The delay counts from the last dose; no dose means nothing due.
		last, err := s.doses.LastTakenAt(sch.MedicationID)
		if err != nil {
			return false, at, err
		}
		if last == nil {
			return false, at, nil
		}
		at = sch.Trigger.Next(*last)
	default:
		// Evaluate from one interval back so a fire time inside the last
		// window is caught exactly once.
		at = sch.Trigger.Next(now.Add(-s.interval))
	}

	if at.IsZero() || at.After(now) {
		return false, at, nil
	}

	s.mu.RLock()
	delivered := s.fired[sch.ID]
	s.mu.RUnlock()
	if !at.After(delivered) {
		return false, at, nil
	}
	return true, at, nil
}

func (s *Scheduler) fire(sch model.MedicationSchedule, at time.Time) {
	med, err := s.meds.GetByID(sch.MedicationID)
	if err != nil || med == nil {
		s.logger.Warn("reminder: load medication", "medication", sch.MedicationID, "error", err)
		return
	}
	if med.Archived {
		return
	}

	s.mu.Lock()
	s.fired[sch.ID] = at
	s.mu.Unlock()

	s.logger.Info("reminder due", "schedule", sch.ID, "medication", med.Name, "at", at)
	if s.hub != nil {
		s.hub.Broadcast(websocket.NewMessage("reminder", "due", sch.ID, map[string]any{
			"medicationId":   med.ID,
			"medicationName": med.Name,
			"body":           fmt.Sprintf("Time to take %s", med.Name),
			"at":             at.UTC(),
		}))
	}
}
