package timewindow

import (
	"errors"
	"testing"
	"time"

	"attendance-guard/internal/models"
)

func checkinWindow(grace int) models.TimeWindow {
	return models.TimeWindow{
		ID:                 "w1",
		Kind:               models.KindCheckin,
		Start:              models.MustTimeOfDay("07:30"),
		End:                models.MustTimeOfDay("08:00"),
		GracePeriodMinutes: grace,
		IsActive:           true,
	}
}

func at(h, m, s int) time.Time {
	return time.Date(2026, 2, 1, h, m, s, 0, time.UTC)
}

func TestEvaluator(t *testing.T) {
	ev, err := New(checkinWindow(5))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name      string
		now       time.Time
		wantOpen  bool
		wantGrace bool
		wantLate  int
		wantEarly int
	}{
		{"Before window", at(7, 10, 0), false, true, 0, 20},
		{"Exactly at start", at(7, 30, 0), true, true, 0, 0},
		{"Exactly at end", at(8, 0, 0), true, true, 0, 0},
		{"Inside grace", at(8, 4, 59), false, true, 4, 0},
		{"Grace boundary", at(8, 5, 0), false, true, 5, 0},
		{"After grace", at(8, 5, 1), false, false, 5, 0},
		{"Twenty minutes late", at(8, 20, 0), false, false, 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ev.IsOpen(tt.now); got != tt.wantOpen {
				t.Errorf("IsOpen() = %v, want %v", got, tt.wantOpen)
			}
			if got := ev.IsWithinGrace(tt.now); got != tt.wantGrace {
				t.Errorf("IsWithinGrace() = %v, want %v", got, tt.wantGrace)
			}
			if got := ev.LateMinutes(tt.now); got != tt.wantLate {
				t.Errorf("LateMinutes() = %v, want %v", got, tt.wantLate)
			}
			if got := ev.EarlyMinutes(tt.now); got != tt.wantEarly {
				t.Errorf("EarlyMinutes() = %v, want %v", got, tt.wantEarly)
			}
		})
	}
}

func TestGraceDoesNotOffsetLateness(t *testing.T) {
	noGrace, _ := New(checkinWindow(0))
	withGrace, _ := New(checkinWindow(15))
	now := at(8, 10, 0)

	if noGrace.LateMinutes(now) != withGrace.LateMinutes(now) {
		t.Errorf("grace period changed LateMinutes: %d vs %d",
			noGrace.LateMinutes(now), withGrace.LateMinutes(now))
	}
}

func TestNewRejectsInvalidWindow(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.TimeWindow)
	}{
		{"End before start", func(w *models.TimeWindow) { w.End = models.MustTimeOfDay("07:00") }},
		{"End equals start", func(w *models.TimeWindow) { w.End = w.Start }},
		{"Negative grace", func(w *models.TimeWindow) { w.GracePeriodMinutes = -1 }},
		{"Unknown type", func(w *models.TimeWindow) { w.Kind = "lunch" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := checkinWindow(0)
			tt.mutate(&w)
			if _, err := New(w); !errors.Is(err, models.ErrInvalidInput) {
				t.Errorf("New() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	global := checkinWindow(0)
	global.ID = "global"
	branch := checkinWindow(0)
	branch.ID = "branch"
	branch.BranchID = "b1"
	inactive := branch
	inactive.ID = "inactive"
	inactive.IsActive = false
	checkout := global
	checkout.ID = "checkout"
	checkout.Kind = models.KindCheckout

	tests := []struct {
		name     string
		windows  []models.TimeWindow
		branchID string
		kind     models.AttendanceKind
		wantID   string
		wantOK   bool
	}{
		{"Branch window preferred", []models.TimeWindow{global, branch}, "b1", models.KindCheckin, "branch", true},
		{"Falls back to global", []models.TimeWindow{global, branch}, "b2", models.KindCheckin, "global", true},
		{"Inactive ignored", []models.TimeWindow{inactive, global}, "b1", models.KindCheckin, "global", true},
		{"Kind filtered", []models.TimeWindow{checkout}, "b1", models.KindCheckout, "checkout", true},
		{"No match", []models.TimeWindow{checkout}, "b1", models.KindCheckin, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.windows, tt.branchID, tt.kind)
			if ok != tt.wantOK || got.ID != tt.wantID {
				t.Errorf("Resolve() = (%q, %v), want (%q, %v)", got.ID, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}
