package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type TriggerKind string

const (
	// TriggerDailyTime fires every day at a fixed local time.
	TriggerDailyTime TriggerKind = "daily_time"
	// TriggerAbsoluteDate fires once at a fixed instant.
	TriggerAbsoluteDate TriggerKind = "absolute_date"
	// TriggerRelativeDelay fires a fixed delay after the last dose.
	TriggerRelativeDelay TriggerKind = "relative_delay"
)

// Trigger is a tagged union over the three reminder trigger shapes. Only the
// fields belonging to Kind are meaningful; DecodeTrigger rejects anything
// else instead of carrying loosely-typed payloads around.
type Trigger struct {
	Kind         TriggerKind `json:"type"`
	Hour         int         `json:"hour,omitempty"`
	Minute       int         `json:"minute,omitempty"`
	At           *time.Time  `json:"at,omitempty"`
	AfterMinutes int         `json:"after_minutes,omitempty"`
}

// DecodeTrigger parses and validates a trigger from its JSON form.
func DecodeTrigger(data []byte) (Trigger, error) {
	var t Trigger
	if err := json.Unmarshal(data, &t); err != nil {
		return Trigger{}, fmt.Errorf("decode trigger: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Trigger{}, err
	}
	return t, nil
}

// Encode returns the canonical JSON form of the trigger.
func (t Trigger) Encode() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode trigger: %w", err)
	}
	return data, nil
}

// Validate checks that the trigger carries exactly the fields its kind needs.
func (t Trigger) Validate() error {
	switch t.Kind {
	case TriggerDailyTime:
		if t.Hour < 0 || t.Hour > 23 {
			return fmt.Errorf("trigger hour %d out of range", t.Hour)
		}
		if t.Minute < 0 || t.Minute > 59 {
			return fmt.Errorf("trigger minute %d out of range", t.Minute)
		}
	case TriggerAbsoluteDate:
		if t.At == nil {
			return fmt.Errorf("absolute_date trigger requires an instant")
		}
	case TriggerRelativeDelay:
		if t.AfterMinutes <= 0 {
			return fmt.Errorf("relative_delay trigger requires a positive delay")
		}
	default:
		return fmt.Errorf("unknown trigger type %q", t.Kind)
	}
	return nil
}

// Next returns the first time the trigger fires after the given instant.
// For relative-delay triggers the instant is the reference dose time. A zero
// time means the trigger never fires again.
func (t Trigger) Next(after time.Time) time.Time {
	switch t.Kind {
	case TriggerDailyTime:
		next := time.Date(after.Year(), after.Month(), after.Day(), t.Hour, t.Minute, 0, 0, after.Location())
		if !next.After(after) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	case TriggerAbsoluteDate:
		if t.At != nil && t.At.After(after) {
			return *t.At
		}
		return time.Time{}
	case TriggerRelativeDelay:
		return after.Add(time.Duration(t.AfterMinutes) * time.Minute)
	}
	return time.Time{}
}
