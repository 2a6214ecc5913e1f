// Package timewindow evaluates checkin/checkout windows against a clock.
//
// Lateness is measured strictly from the window end. The grace period only
// decides eligibility (IsWithinGrace) and never reduces LateMinutes.
package timewindow

import (
	"time"

	"attendance-guard/internal/models"
)

// Evaluator answers open/grace/lateness questions for one window
type Evaluator struct {
	window models.TimeWindow
}

// New validates the window and returns its evaluator
func New(w models.TimeWindow) (*Evaluator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{window: w}, nil
}

// Window returns the evaluated window
func (e *Evaluator) Window() models.TimeWindow {
	return e.window
}

// IsOpen is true iff start <= now <= end, compared by time of day
func (e *Evaluator) IsOpen(now time.Time) bool {
	tod := models.Of(now)
	return tod >= e.window.Start && tod <= e.window.End
}

// IsWithinGrace is true iff now <= end + grace
func (e *Evaluator) IsWithinGrace(now time.Time) bool {
	return models.Of(now) <= e.graceDeadline()
}

func (e *Evaluator) graceDeadline() models.TimeOfDay {
	return e.window.End + models.TimeOfDay(time.Duration(e.window.GracePeriodMinutes)*time.Minute)
}

// LateMinutes is the whole minutes elapsed after the window end
func (e *Evaluator) LateMinutes(now time.Time) int {
	over := time.Duration(models.Of(now) - e.window.End)
	if over <= 0 {
		return 0
	}
	return int(over / time.Minute)
}

// EarlyMinutes is the whole minutes remaining before the window start
func (e *Evaluator) EarlyMinutes(now time.Time) int {
	under := time.Duration(e.window.Start - models.Of(now))
	if under <= 0 {
		return 0
	}
	return int(under / time.Minute)
}

// Resolve picks the window for a branch and kind. Active branch-specific
// windows win over global ones; within a group the first in order wins.
func Resolve(windows []models.TimeWindow, branchID string, kind models.AttendanceKind) (models.TimeWindow, bool) {
	var global *models.TimeWindow
	for i := range windows {
		w := &windows[i]
		if !w.IsActive || w.Kind != kind {
			continue
		}
		if w.BranchID != "" && w.BranchID == branchID {
			return *w, true
		}
		if w.BranchID == "" && global == nil {
			global = w
		}
	}
	if global != nil {
		return *global, true
	}
	return models.TimeWindow{}, false
}
