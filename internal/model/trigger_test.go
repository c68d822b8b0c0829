package model

import (
	"testing"
	"time"
)

func TestTriggerValidate(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		trigger Trigger
		wantErr bool
	}{
		{"daily valid", Trigger{Kind: TriggerDailyTime, Hour: 8, Minute: 30}, false},
		{"daily midnight", Trigger{Kind: TriggerDailyTime}, false},
		{"daily hour high", Trigger{Kind: TriggerDailyTime, Hour: 24}, true},
		{"daily minute negative", Trigger{Kind: TriggerDailyTime, Minute: -1}, true},
		{"absolute valid", Trigger{Kind: TriggerAbsoluteDate, At: &at}, false},
		{"absolute missing instant", Trigger{Kind: TriggerAbsoluteDate}, true},
		{"relative valid", Trigger{Kind: TriggerRelativeDelay, AfterMinutes: 240}, false},
		{"relative zero delay", Trigger{Kind: TriggerRelativeDelay}, true},
		{"unknown kind", Trigger{Kind: "weekly"}, true},
		{"empty kind", Trigger{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.trigger.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTriggerNextDailyTime(t *testing.T) {
	trigger := Trigger{Kind: TriggerDailyTime, Hour: 8, Minute: 30}

	morning := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	next := trigger.Next(morning)
	want := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next before fire time = %v, want %v", next, want)
	}

	evening := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	next = trigger.Next(evening)
	want = time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next after fire time = %v, want %v", next, want)
	}

	// Exactly at the fire time rolls to tomorrow.
	exact := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	next = trigger.Next(exact)
	if !next.Equal(want) {
		t.Errorf("Next at fire time = %v, want %v", next, want)
	}
}

func TestTriggerNextAbsoluteDate(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	trigger := Trigger{Kind: TriggerAbsoluteDate, At: &at}

	before := at.Add(-time.Hour)
	if next := trigger.Next(before); !next.Equal(at) {
		t.Errorf("Next before instant = %v, want %v", next, at)
	}

	// Once the instant passes it never fires again.
	after := at.Add(time.Hour)
	if next := trigger.Next(after); !next.IsZero() {
		t.Errorf("Next after instant = %v, want zero", next)
	}
}

func TestTriggerNextRelativeDelay(t *testing.T) {
	trigger := Trigger{Kind: TriggerRelativeDelay, AfterMinutes: 240}

	dose := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next := trigger.Next(dose)
	want := dose.Add(4 * time.Hour)
	if !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}
}

func TestTriggerEncodeDecode(t *testing.T) {
	original := Trigger{Kind: TriggerDailyTime, Hour: 21, Minute: 15}

	data, err := original.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeTrigger(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != original {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
}

func TestDecodeTriggerRejectsInvalid(t *testing.T) {
	if _, err := DecodeTrigger([]byte(`{"type":"weekly"}`)); err == nil {
		t.Error("expected error for unknown trigger type")
	}
	if _, err := DecodeTrigger([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
