package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalOverlapBoundaries(t *testing.T) {
	existing := Interval{Start: at("09:00"), End: at("10:00")}

	cases := []struct {
		name      string
		candidate Interval
		want      bool
	}{
		{"identical start", Interval{at("09:00"), at("09:30")}, true},
		{"identical span", existing, true},
		{"adjacent before", Interval{at("08:00"), at("09:00")}, false},
		{"adjacent after", Interval{at("10:00"), at("10:30")}, false},
		{"nested inside", Interval{at("09:15"), at("09:45")}, true},
		{"enclosing", Interval{at("08:30"), at("10:30")}, true},
		{"partial start", Interval{at("08:45"), at("09:15")}, true},
		{"partial end", Interval{at("09:45"), at("10:15")}, true},
		{"disjoint", Interval{at("11:00"), at("11:30")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, existing.Overlaps(tc.candidate))
			assert.Equal(t, tc.want, tc.candidate.Overlaps(existing), "overlap is symmetric")
		})
	}
}

func TestHasConflictIgnoresCancelledAndExcluded(t *testing.T) {
	booked := []Appointment{
		{ID: "a", Time: at("09:00"), Duration: 30, Status: StatusCancelled},
		{ID: "b", Time: at("10:00"), Duration: 60, Status: StatusConfirmed},
	}

	assert.False(t, HasConflict(booked, Interval{at("09:00"), at("09:30")}, ""))
	assert.True(t, HasConflict(booked, Interval{at("10:30"), at("11:00")}, ""))
	assert.False(t, HasConflict(booked, Interval{at("10:30"), at("11:00")}, "b"))

	clash := FirstConflict(booked, Interval{at("10:45"), at("11:15")}, "")
	require.NotNil(t, clash)
	assert.Equal(t, "b", clash.ID)
}

func TestNewInterval(t *testing.T) {
	span, err := NewInterval(at("23:30"), 30)
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(24*60), span.End)

	_, err = NewInterval(at("23:30"), 31)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewInterval(at("09:00"), 0)
	assert.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	_, err = NewInterval(at("09:00"), -15)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "duration", verr.Field)
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("09:15:00")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(9*60+15), got)
	assert.Equal(t, "09:15", got.String())

	for _, bad := range []string{"9", "24:00", "12:60", "ab:cd", "1:2:3:4"} {
		_, err := ParseTimeOfDay(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}
