package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is an offset from local midnight
type TimeOfDay time.Duration

// ParseTimeOfDay accepts "15:04:05" or "15:04"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second
			return TimeOfDay(d), nil
		}
	}
	return 0, fmt.Errorf("%w: bad time of day %q", ErrInvalidInput, s)
}

// MustTimeOfDay is ParseTimeOfDay for constants
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Of returns the time-of-day of t in t's own location
func Of(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond()))
}

// On places the time of day on the calendar day of t
func (d TimeOfDay) On(t time.Time) time.Time {
	y, mo, day := t.Date()
	return time.Date(y, mo, day, 0, 0, 0, 0, t.Location()).Add(time.Duration(d))
}

func (d TimeOfDay) String() string {
	total := int(time.Duration(d) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

func (d TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeWindow is a named checkin or checkout window. An empty BranchID
// makes the window global.
type TimeWindow struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Kind               AttendanceKind `json:"type"`
	Start              TimeOfDay      `json:"start_time"`
	End                TimeOfDay      `json:"end_time"`
	GracePeriodMinutes int            `json:"grace_period_minutes"`
	BranchID           string         `json:"branch_id"`
	ShiftID            string         `json:"shift_id"`
	IsActive           bool           `json:"is_active"`
}

// Validate enforces the window invariants
func (w TimeWindow) Validate() error {
	if !w.Kind.Valid() {
		return fmt.Errorf("%w: window type %q", ErrInvalidInput, w.Kind)
	}
	if w.End <= w.Start {
		return fmt.Errorf("%w: window end %s not after start %s", ErrInvalidInput, w.End, w.Start)
	}
	if w.GracePeriodMinutes < 0 {
		return fmt.Errorf("%w: negative grace period", ErrInvalidInput)
	}
	return nil
}

// DeductionTier maps a closed range of late minutes to a penalty
type DeductionTier struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	MinMinutes int     `json:"min_minutes"`
	MaxMinutes int     `json:"max_minutes"`
	Points     int     `json:"points"`
	Percentage float64 `json:"percentage"`
}

// Deduction is the penalty applied to one attempt
type Deduction struct {
	TierID      string  `json:"tier_id,omitempty"`
	TierName    string  `json:"tier_name,omitempty"`
	Points      int     `json:"points"`
	Percentage  float64 `json:"percentage"`
	LateMinutes int     `json:"late_minutes"`
}
