package appointment

// Interval is a half-open [Start, End) span within one day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// NewInterval validates a start and duration. An interval may end exactly at midnight
// but not past it.
func NewInterval(start TimeOfDay, duration int) (Interval, error) {
	if duration <= 0 {
		return Interval{}, invalid("duration", "must be positive, got %d", duration)
	}
	if start < 0 || start >= 24*60 {
		return Interval{}, invalid("time", "out of range")
	}
	end := start + TimeOfDay(duration)
	if end > 24*60 {
		return Interval{}, invalid("duration", "appointment would run past midnight")
	}
	return Interval{Start: start, End: end}, nil
}

// Overlaps uses half-open semantics: touching endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// HasConflict reports whether candidate overlaps any non-cancelled appointment in
// existing. The caller is expected to pass appointments of one doctor on one date;
// excludeID drops the appointment being rescheduled from the comparison.
func HasConflict(existing []Appointment, candidate Interval, excludeID string) bool {
	return FirstConflict(existing, candidate, excludeID) != nil
}

// FirstConflict returns the first appointment that overlaps candidate, or nil.
func FirstConflict(existing []Appointment, candidate Interval, excludeID string) *Appointment {
	for i := range existing {
		a := &existing[i]
		if a.Status == StatusCancelled {
			continue
		}
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if a.Interval().Overlaps(candidate) {
			return a
		}
	}
	return nil
}
