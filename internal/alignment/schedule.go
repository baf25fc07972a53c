package alignment

import "time"

// Default schedule: every 3 hours between 08:00 and 20:00 local time.
const (
	DefaultStartHour = 8
	DefaultEndHour   = 20
	DefaultInterval  = 3 * time.Hour
)

// Due reasons.
const (
	ReasonOutsideHours  = "outside_active_hours"
	ReasonFirstCheckIn  = "no_prior_checkin"
	ReasonIntervalDue   = "interval_elapsed"
	ReasonIntervalNotUp = "interval_not_elapsed"
)

// Schedule is the check-in cadence. The active window is [StartHour, EndHour)
// in the location of the time passed to Due.
type Schedule struct {
	StartHour int
	EndHour   int
	Interval  time.Duration
}

// DefaultSchedule returns the standard cadence.
func DefaultSchedule() Schedule {
	return Schedule{StartHour: DefaultStartHour, EndHour: DefaultEndHour, Interval: DefaultInterval}
}

// normalized fills in defaults for an empty window or interval.
func (s Schedule) normalized() Schedule {
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}
	if s.StartHour < 0 || s.EndHour > 24 || s.EndHour <= s.StartHour {
		s.StartHour, s.EndHour = DefaultStartHour, DefaultEndHour
	}
	return s
}

func (s Schedule) active(t time.Time) bool {
	h := t.Hour()
	return h >= s.StartHour && h < s.EndHour
}

// Decision explains a due evaluation.
type Decision struct {
	Due       bool
	Reason    string
	NextDueAt time.Time
}

// Evaluate computes Due together with its reason and the next due instant.
func Evaluate(now time.Time, last *time.Time, s Schedule) Decision {
	s = s.normalized()
	d := Decision{NextDueAt: NextDue(now, last, s)}
	switch {
	case !s.active(now):
		d.Reason = ReasonOutsideHours
	case last == nil:
		d.Due, d.Reason = true, ReasonFirstCheckIn
	case now.Sub(*last) >= s.Interval:
		d.Due, d.Reason = true, ReasonIntervalDue
	default:
		d.Reason = ReasonIntervalNotUp
	}
	return d
}

// Due reports whether a check-in is due at now. last is the time of the
// most recent check-in, or nil if there is none.
func Due(now time.Time, last *time.Time, s Schedule) bool {
	return Evaluate(now, last, s).Due
}

// NextDue returns the earliest instant at or after now when Due is true.
func NextDue(now time.Time, last *time.Time, s Schedule) time.Time {
	s = s.normalized()
	candidate := now
	if last != nil {
		if ready := last.Add(s.Interval); ready.After(candidate) {
			candidate = ready
		}
	}
	if s.active(candidate) {
		return candidate
	}

	y, m, d := candidate.Date()
	loc := candidate.Location()
	if candidate.Hour() < s.StartHour {
		return time.Date(y, m, d, s.StartHour, 0, 0, 0, loc)
	}
	return time.Date(y, m, d+1, s.StartHour, 0, 0, 0, loc)
}
