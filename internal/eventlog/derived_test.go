package eventlog

import (
	"strings"
	"testing"

	"github.com/wucoord/wu/internal/types"
)

func TestFoldBasicLifecycle(t *testing.T) {
	d := Fold([]types.Event{
		{Type: types.EventCreate, WU: "WU-1", Lane: "Core", Title: "Fix parser", Timestamp: ts(1)},
		ev(types.EventClaim, "WU-1", 2),
		ev(types.EventCheckpoint, "WU-1", 3),
		ev(types.EventClaim, "WU-1", 4),
		ev(types.EventComplete, "WU-1", 5),
	})
	st, ok := d.Get("WU-1")
	if !ok {
		t.Fatal("WU-1 not in projection")
	}
	if st.Status != types.StatusDone {
		t.Errorf("status = %s, want done", st.Status)
	}
	if st.Lane != "Core" || st.Title != "Fix parser" {
		t.Errorf("lane/title not carried: %+v", st)
	}
	if !st.LastEventAt.Equal(ts(5)) {
		t.Errorf("LastEventAt = %v, want %v", st.LastEventAt, ts(5))
	}
	if len(d.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", d.Warnings())
	}
}

func TestFoldReportsInvalidTransitionButApplies(t *testing.T) {
	// A complete directly after create is historically invalid
	// (ready → done) but the fold must still arrive at done.
	d := Fold([]types.Event{
		ev(types.EventCreate, "WU-1", 1),
		ev(types.EventComplete, "WU-1", 2),
	})
	st, _ := d.Get("WU-1")
	if st.Status != types.StatusDone {
		t.Errorf("status = %s, want done (log is authoritative)", st.Status)
	}
	if len(d.Warnings()) != 1 {
		t.Fatalf("warnings = %v, want exactly one", d.Warnings())
	}
	if !strings.Contains(d.Warnings()[0].Message, "invalid transition") {
		t.Errorf("warning = %q", d.Warnings()[0].Message)
	}
}

func TestFoldEventBeforeCreate(t *testing.T) {
	d := Fold([]types.Event{ev(types.EventClaim, "WU-7", 1)})
	st, ok := d.Get("WU-7")
	if !ok || st.Status != types.StatusInProgress {
		t.Errorf("state = %+v ok=%v, want in_progress", st, ok)
	}
	if len(d.Warnings()) != 1 || !strings.Contains(d.Warnings()[0].Message, "before create") {
		t.Errorf("warnings = %v", d.Warnings())
	}
}

func TestGetByStatus(t *testing.T) {
	d := Fold([]types.Event{
		ev(types.EventCreate, "WU-1", 1),
		ev(types.EventCreate, "WU-2", 1),
		ev(types.EventCreate, "WU-3", 1),
		ev(types.EventClaim, "WU-2", 2),
		ev(types.EventClaim, "WU-3", 2),
		ev(types.EventBlock, "WU-3", 3),
	})
	if got := d.GetByStatus(types.StatusReady); len(got) != 1 || got[0] != "WU-1" {
		t.Errorf("ready = %v", got)
	}
	if got := d.GetByStatus(types.StatusInProgress); len(got) != 1 || got[0] != "WU-2" {
		t.Errorf("in_progress = %v", got)
	}
	if got := d.GetByStatus(types.StatusBlocked); len(got) != 1 || got[0] != "WU-3" {
		t.Errorf("blocked = %v", got)
	}
	if got := d.GetByStatus(types.StatusDone); len(got) != 0 {
		t.Errorf("done = %v, want empty", got)
	}
}

func TestFoldOrderIsFirstSeen(t *testing.T) {
	d := Fold([]types.Event{
		ev(types.EventCreate, "WU-3", 1),
		ev(types.EventCreate, "WU-1", 2),
		ev(types.EventCreate, "WU-2", 3),
		ev(types.EventClaim, "WU-1", 4),
	})
	want := []string{"WU-3", "WU-1", "WU-2"}
	got := d.IDs()
	if len(got) != len(want) {
		t.Fatalf("IDs = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("IDs[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
