package checklist

import (
	"testing"
	"time"

	"github.com/trezcool/begi/core"
)

const tz = "Africa/Nairobi"

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("time.LoadLocation(%s) failed: %v", name, err)
	}
	return loc
}

func TestClassify(t *testing.T) {
	loc := mustLoc(t, tz)
	day := func(hour, min int) time.Time {
		return time.Date(2026, time.September, 1, hour, min, 0, 0, loc) // a Tuesday
	}
	today := core.NewDate(2026, time.September, 1)
	tomorrow := today.AddDays(1)

	tests := []struct {
		name       string
		now        time.Time
		wantPhase  Phase
		wantEdit   bool
		wantTarget core.Date
	}{
		{name: "midnight", now: day(0, 0), wantPhase: PhasePrepEarly, wantEdit: true, wantTarget: today},
		{name: "before school", now: day(6, 59), wantPhase: PhasePrepEarly, wantEdit: true, wantTarget: today},
		{name: "school start", now: day(7, 0), wantPhase: PhaseLocked, wantEdit: false, wantTarget: today},
		{name: "mid morning", now: day(10, 30), wantPhase: PhaseLocked, wantEdit: false, wantTarget: today},
		{name: "last locked minute", now: day(14, 59), wantPhase: PhaseLocked, wantEdit: false, wantTarget: today},
		{name: "school out", now: day(15, 0), wantPhase: PhasePrepAfternoon, wantEdit: true, wantTarget: tomorrow},
		{name: "evening", now: day(20, 45), wantPhase: PhasePrepAfternoon, wantEdit: true, wantTarget: tomorrow},
		{name: "just before midnight", now: day(23, 59), wantPhase: PhasePrepAfternoon, wantEdit: true, wantTarget: tomorrow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := Classify(tt.now, tz)
			if err != nil {
				t.Fatalf("Classify() failed: %v", err)
			}
			if info.Phase != tt.wantPhase {
				t.Errorf("Classify() phase = %s, want %s", info.Phase, tt.wantPhase)
			}
			if info.Editable != tt.wantEdit {
				t.Errorf("Classify() editable = %v, want %v", info.Editable, tt.wantEdit)
			}
			if !info.TargetDate.Equal(tt.wantTarget) {
				t.Errorf("Classify() targetDate = %s, want %s", info.TargetDate, tt.wantTarget)
			}
		})
	}
}

// The phase depends on the wall clock in the school's timezone, not on the
// instant's own location.
func TestClassify_convertsTimezone(t *testing.T) {
	// 13:00 UTC is 16:00 in Nairobi (UTC+3): afternoon prep there
	now := time.Date(2026, time.September, 1, 13, 0, 0, 0, time.UTC)
	info, err := Classify(now, tz)
	if err != nil {
		t.Fatalf("Classify() failed: %v", err)
	}
	if info.Phase != PhasePrepAfternoon {
		t.Errorf("Classify() phase = %s, want %s", info.Phase, PhasePrepAfternoon)
	}
	if want := core.NewDate(2026, time.September, 2); !info.TargetDate.Equal(want) {
		t.Errorf("Classify() targetDate = %s, want %s", info.TargetDate, want)
	}
}

func TestClassify_invalidTimezone(t *testing.T) {
	_, err := Classify(time.Now(), "Mars/Olympus_Mons")
	if err == nil {
		t.Fatal("Classify() expected error, got nil")
	}
	if _, ok := err.(*core.ConfigurationError); !ok {
		t.Errorf("Classify() error = %T, want *core.ConfigurationError", err)
	}
}
