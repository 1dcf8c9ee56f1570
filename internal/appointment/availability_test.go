package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekdayDoctor(status DoctorStatus) *Doctor {
	return &Doctor{
		ID:           "doc",
		Availability: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Status:       status,
	}
}

func TestComputeSlotsEmptyOnClosedWeekdays(t *testing.T) {
	doc := weekdayDoctor(DoctorAvailable)
	start := time.Date(2024, 2, 11, 0, 0, 0, 0, time.UTC) // Sunday

	for i := 0; i < 14; i++ {
		date := start.AddDate(0, 0, i)
		slots := ComputeSlots(doc, date, nil, DefaultGrid, testNow)
		require.NotNil(t, slots)
		if doc.WorksOn(date.Weekday()) {
			assert.Len(t, slots, 20, date.Weekday().String())
		} else {
			assert.Empty(t, slots, date.Weekday().String())
		}
	}
}

func TestComputeSlotsOrderedAndMarked(t *testing.T) {
	booked := []Appointment{
		{ID: "a", Time: at("09:00"), Duration: 45, Status: StatusConfirmed},
		{ID: "b", Time: at("13:00"), Duration: 30, Status: StatusCancelled},
		{ID: "c", Time: at("17:45"), Duration: 15, Status: StatusPending},
	}

	slots := ComputeSlots(weekdayDoctor(DoctorAvailable), friday, booked, DefaultGrid, testNow)
	require.Len(t, slots, 20)

	taken := map[string]bool{"09:00": true, "09:30": true, "17:30": true}
	for i, s := range slots {
		if i > 0 {
			assert.Less(t, slots[i-1].Time, s.Time)
		}
		assert.Equal(t, !taken[s.Time.String()], s.Available, s.Time.String())
	}
}

func TestComputeSlotsSameDayDoctorStatus(t *testing.T) {
	off := weekdayDoctor(DoctorOffDuty)

	today := ComputeSlots(off, thursday, nil, DefaultGrid, testNow)
	require.Len(t, today, 20)
	for _, s := range today {
		assert.False(t, s.Available)
	}

	tomorrow := ComputeSlots(off, friday, nil, DefaultGrid, testNow)
	for _, s := range tomorrow {
		assert.True(t, s.Available)
	}
}

func TestGrid(t *testing.T) {
	g := Grid{Open: at("08:00"), Close: at("10:00"), Step: 45}
	require.NoError(t, g.Validate())
	assert.Equal(t, []TimeOfDay{at("08:00"), at("08:45")}, g.Starts())
	assert.True(t, g.Aligned(at("08:45")))
	assert.False(t, g.Aligned(at("08:30")))
	assert.False(t, g.Aligned(at("10:00")))

	assert.Error(t, Grid{Open: at("10:00"), Close: at("09:00"), Step: 30}.Validate())
	assert.Error(t, Grid{Open: at("08:00"), Close: at("09:00"), Step: 0}.Validate())
}
