package types

import (
	"testing"
	"time"
)

func TestEventTypeStatusAfter(t *testing.T) {
	cases := map[EventType]Status{
		EventCreate:     StatusReady,
		EventClaim:      StatusInProgress,
		EventBlock:      StatusBlocked,
		EventUnblock:    StatusInProgress,
		EventCheckpoint: StatusWaiting,
		EventComplete:   StatusDone,
		EventRelease:    StatusReady,
	}
	for et, want := range cases {
		got, ok := et.StatusAfter()
		if !ok {
			t.Errorf("StatusAfter(%s) not ok", et)
			continue
		}
		if got != want {
			t.Errorf("StatusAfter(%s) = %s, want %s", et, got, want)
		}
	}
	if _, ok := EventType("bogus").StatusAfter(); ok {
		t.Error("StatusAfter(bogus) ok, want not ok")
	}
}

func TestEventValidate(t *testing.T) {
	now := time.Now()
	good := Event{Type: EventClaim, WU: "WU-1", Timestamp: now, Mode: ClaimModeWorkspace}
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cases := []Event{
		{Type: "bogus", WU: "WU-1", Timestamp: now},
		{Type: EventClaim, WU: "not an id", Timestamp: now},
		{Type: EventClaim, WU: "WU-1"}, // zero timestamp
		{Type: EventClaim, WU: "WU-1", Timestamp: now, Mode: "bogus"},
	}
	for i, ev := range cases {
		if err := ev.Validate(); err == nil {
			t.Errorf("case %d: Validate = nil, want error", i)
		}
	}
}

func TestNewEventStampsUTC(t *testing.T) {
	loc := time.FixedZone("PST", -8*3600)
	ev := NewEvent(EventClaim, "WU-9", time.Date(2025, 6, 1, 12, 0, 0, 0, loc))
	if ev.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp location = %v, want UTC", ev.Timestamp.Location())
	}
}
