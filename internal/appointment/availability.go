package appointment

import (
	"fmt"
	"time"
)

// Grid is the clinic's bookable window, cut into fixed-width slots.
type Grid struct {
	Open  TimeOfDay
	Close TimeOfDay
	Step  int
}

// DefaultGrid matches the clinic's opening hours: 08:00 to 18:00 in 30 minute slots.
var DefaultGrid = Grid{Open: 8 * 60, Close: 18 * 60, Step: 30}

func (g Grid) Validate() error {
	if g.Step <= 0 {
		return fmt.Errorf("slot step must be positive, got %d", g.Step)
	}
	if g.Open >= g.Close {
		return fmt.Errorf("clinic opens at %s but closes at %s", g.Open, g.Close)
	}
	if g.Close > 24*60 {
		return fmt.Errorf("clinic close %d is past midnight", g.Close)
	}
	return nil
}

// Starts lists every slot start time in ascending order. A slot that would run past
// closing time is not offered.
func (g Grid) Starts() []TimeOfDay {
	var out []TimeOfDay
	for t := g.Open; t+TimeOfDay(g.Step) <= g.Close; t += TimeOfDay(g.Step) {
		out = append(out, t)
	}
	return out
}

// Aligned reports whether t falls on a slot boundary inside the grid.
func (g Grid) Aligned(t TimeOfDay) bool {
	return t >= g.Open && t < g.Close && int(t-g.Open)%g.Step == 0
}

// ComputeSlots marks each grid slot of date as free or taken for doctor.
//
// A weekday the doctor does not work yields an empty, non-nil slice: the doctor is not
// open that day, which callers must not confuse with a fully booked day. When date is
// today (per now) and the doctor is not currently Available, the grid is returned with
// every slot taken.
func ComputeSlots(doctor *Doctor, date time.Time, booked []Appointment, grid Grid, now time.Time) []TimeSlot {
	if !doctor.WorksOn(date.Weekday()) {
		return []TimeSlot{}
	}

	closedToday := doctor.Status != DoctorAvailable && DateOf(now).Equal(DateOf(date))

	starts := grid.Starts()
	slots := make([]TimeSlot, 0, len(starts))
	for _, start := range starts {
		slot := Interval{Start: start, End: start + TimeOfDay(grid.Step)}
		available := !closedToday && !HasConflict(booked, slot, "")
		slots = append(slots, TimeSlot{Time: start, Available: available})
	}
	return slots
}
