package schedule

import (
	"testing"
	"time"
)

var tz = time.FixedZone("-03", -3*60*60)

func day(t *testing.T, y int, m time.Month, d int) time.Time {
	t.Helper()
	return time.Date(y, m, d, 0, 0, 0, 0, tz)
}

func at(base time.Time, hour, min int) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), hour, min, 0, 0, base.Location())
}

func TestDaySlotsStartsAtOpenWhenEarliestBeforeOpen(t *testing.T) {
	hours := Hours{Open: 9, Close: 19, SlotMinutes: 60}
	d := day(t, 2026, time.June, 1)

	slots := hours.DaySlots(d, at(d, 6, 30))
	if len(slots) == 0 {
		t.Fatal("expected slots")
	}
	if !slots[0].Start.Equal(at(d, 9, 0)) {
		t.Errorf("first slot = %v, want 09:00", slots[0].Start)
	}
}

func TestDaySlotsSnapsEarliestDownToSlotGrid(t *testing.T) {
	hours := Hours{Open: 9, Close: 19, SlotMinutes: 60}
	d := day(t, 2026, time.June, 1)

	// 10:20 falls inside the 10:00 slot period.
	slots := hours.DaySlots(d, at(d, 10, 20))
	if !slots[0].Start.Equal(at(d, 10, 0)) {
		t.Errorf("first slot = %v, want 10:00", slots[0].Start)
	}

	// An aligned bound is kept as is.
	slots = hours.DaySlots(d, at(d, 11, 0))
	if !slots[0].Start.Equal(at(d, 11, 0)) {
		t.Errorf("first slot = %v, want 11:00", slots[0].Start)
	}
}

func TestDaySlotsEndAtClosingHour(t *testing.T) {
	hours := Hours{Open: 9, Close: 19, SlotMinutes: 60}
	d := day(t, 2026, time.June, 1)

	slots := hours.DaySlots(d, at(d, 0, 0))
	if len(slots) != 10 {
		t.Fatalf("got %d slots, want 10", len(slots))
	}
	last := slots[len(slots)-1]
	if !last.Start.Equal(at(d, 18, 0)) {
		t.Errorf("last slot starts %v, want 18:00", last.Start)
	}
	if !last.End.Equal(at(d, 19, 0)) {
		t.Errorf("last slot ends %v, want 19:00", last.End)
	}
}

func TestDaySlotsAreContiguous(t *testing.T) {
	hours := Hours{Open: 7, Close: 21, SlotMinutes: 30}
	d := day(t, 2026, time.June, 3)

	slots := hours.DaySlots(d, at(d, 0, 0))
	for i := 0; i+1 < len(slots); i++ {
		if !slots[i].End.Equal(slots[i+1].Start) {
			t.Fatalf("gap between slot %d (%v) and %d (%v)", i, slots[i].End, i+1, slots[i+1].Start)
		}
	}
}

func TestDaySlotsEmptyWhenEarliestPastClosing(t *testing.T) {
	hours := Hours{Open: 9, Close: 19, SlotMinutes: 60}
	d := day(t, 2026, time.June, 1)

	if slots := hours.DaySlots(d, at(d, 19, 0)); len(slots) != 0 {
		t.Errorf("got %d slots, want none", len(slots))
	}
}

func TestSlotFree(t *testing.T) {
	d := day(t, 2026, time.June, 1)
	slot := Slot{Start: at(d, 10, 0), End: at(d, 11, 0)}

	cases := []struct {
		name string
		busy Slot
		free bool
	}{
		{"identical", Slot{at(d, 10, 0), at(d, 11, 0)}, false},
		{"contained", Slot{at(d, 10, 15), at(d, 10, 45)}, false},
		{"overlaps start", Slot{at(d, 9, 30), at(d, 10, 30)}, false},
		{"overlaps end", Slot{at(d, 10, 30), at(d, 11, 30)}, false},
		{"covers slot", Slot{at(d, 9, 0), at(d, 12, 0)}, false},
		{"back to back before", Slot{at(d, 9, 0), at(d, 10, 0)}, true},
		{"back to back after", Slot{at(d, 11, 0), at(d, 12, 0)}, true},
		{"disjoint", Slot{at(d, 14, 0), at(d, 15, 0)}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := slot.Free([]Slot{tc.busy})
			if got != tc.free {
				t.Errorf("Free = %v, want %v", got, tc.free)
			}

			// The strict disjointness identity the filter must satisfy.
			want := !(slot.Start.Before(tc.busy.End) && slot.End.After(tc.busy.Start))
			if got != want {
				t.Errorf("Free = %v disagrees with disjointness test %v", got, want)
			}
		})
	}
}

func TestSlotFreeRequiresAllBusyDisjoint(t *testing.T) {
	d := day(t, 2026, time.June, 1)
	slot := Slot{Start: at(d, 10, 0), End: at(d, 11, 0)}

	busy := []Slot{
		{at(d, 8, 0), at(d, 9, 0)},
		{at(d, 10, 30), at(d, 11, 30)}, // the one overlap
		{at(d, 14, 0), at(d, 15, 0)},
	}
	if slot.Free(busy) {
		t.Error("slot reported free despite one overlapping busy interval")
	}
	if !slot.Free(nil) {
		t.Error("slot with no busy intervals must be free")
	}
}
