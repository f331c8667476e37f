package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	tests := []struct {
		move Transition
		from ReservationStatus
		want ReservationStatus
		ok   bool
	}{
		{TransitionCheckIn, StatusConfirmed, StatusCheckedIn, true},
		{TransitionCheckIn, StatusCheckedIn, StatusCheckedIn, false},
		{TransitionCheckIn, StatusCompleted, StatusCompleted, false},
		{TransitionCheckIn, StatusCancelled, StatusCancelled, false},
		{TransitionUndoCheckIn, StatusCheckedIn, StatusConfirmed, true},
		{TransitionUndoCheckIn, StatusConfirmed, StatusConfirmed, false},
		{TransitionCompleteEarly, StatusCheckedIn, StatusCompleted, true},
		{TransitionCompleteEarly, StatusConfirmed, StatusConfirmed, false},
		{TransitionUndoComplete, StatusCompleted, StatusCheckedIn, true},
		{TransitionUndoComplete, StatusCancelled, StatusCancelled, false},
		{TransitionCancel, StatusConfirmed, StatusCancelled, true},
		{TransitionCancel, StatusCheckedIn, StatusCheckedIn, false},
		{TransitionUndoCancel, StatusCancelled, StatusConfirmed, true},
		{TransitionUndoCancel, StatusCompleted, StatusCompleted, false},
		{TransitionSweepCheckIn, StatusConfirmed, StatusCheckedIn, true},
		{TransitionSweepCheckOut, StatusConfirmed, StatusCompleted, true},
		{TransitionSweepCheckOut, StatusCheckedIn, StatusCompleted, true},
		{TransitionSweepCheckOut, StatusCancelled, StatusCancelled, false},
		{TransitionMaintenance, StatusConfirmed, StatusCancelled, true},
		{TransitionMaintenance, StatusCheckedIn, StatusCancelled, true},
		{TransitionMaintenance, StatusCompleted, StatusCompleted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.move)+"/"+string(tt.from), func(t *testing.T) {
			got, ok := tt.from.Apply(tt.move)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFreesRoom(t *testing.T) {
	assert.True(t, TransitionCancel.FreesRoom())
	assert.True(t, TransitionSweepCheckOut.FreesRoom())
	assert.False(t, TransitionCheckIn.FreesRoom())
	assert.False(t, TransitionUndoCancel.FreesRoom())
}

func TestStatusValueAndScan(t *testing.T) {
	v, err := StatusCheckedIn.Value()
	require.NoError(t, err)
	assert.Equal(t, "Checked-In", v)

	_, err = ReservationStatus("Pending").Value()
	assert.Error(t, err)

	var s ReservationStatus
	require.NoError(t, s.Scan([]byte("Cancelled")))
	assert.Equal(t, StatusCancelled, s)
	assert.Error(t, s.Scan("Archived"))
	assert.Error(t, s.Scan(42))

	_, ok := ParseStatus("Completed")
	assert.True(t, ok)
	_, ok = ParseStatus("completed")
	assert.False(t, ok)
}

func TestNightsBetween(t *testing.T) {
	west := time.FixedZone("UTC-5", -5*60*60)
	tests := []struct {
		name    string
		in, out time.Time
		loc     *time.Location
		want    int
	}{
		{"two nights", time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC), time.UTC, 2},
		{"times of day ignored", time.Date(2025, 6, 20, 14, 0, 0, 0, time.UTC), time.Date(2025, 6, 21, 11, 0, 0, 0, time.UTC), time.UTC, 1},
		{"same day", time.Date(2025, 6, 20, 8, 0, 0, 0, time.UTC), time.Date(2025, 6, 20, 20, 0, 0, 0, time.UTC), time.UTC, 0},
		{"reversed", time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC), time.UTC, -2},
		// 03:00 UTC on the 21st is still the 20th five hours west
		{"counted in hotel zone", time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC), time.Date(2025, 6, 21, 3, 0, 0, 0, time.UTC), west, 0},
		{"across month end", time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC), time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC), nil, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NightsBetween(tt.in, tt.out, tt.loc))
		})
	}
}

func TestCanBeCancelled(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	assert.True(t, Reservation{Status: StatusConfirmed, CheckInDate: at(2 * time.Hour)}.CanBeCancelled(now, time.Hour))
	assert.False(t, Reservation{Status: StatusConfirmed, CheckInDate: at(30 * time.Minute)}.CanBeCancelled(now, time.Hour))
	assert.False(t, Reservation{Status: StatusConfirmed, CheckInDate: at(time.Hour)}.CanBeCancelled(now, time.Hour))
	assert.True(t, Reservation{Status: StatusConfirmed}.CanBeCancelled(now, time.Hour))
	assert.False(t, Reservation{Status: StatusCheckedIn, CheckInDate: at(48 * time.Hour)}.CanBeCancelled(now, time.Hour))
}

func TestFormatReferenceCode(t *testing.T) {
	assert.Equal(t, "RSV-0001", FormatReferenceCode(1))
	assert.Equal(t, "RSV-0420", FormatReferenceCode(420))
	assert.Equal(t, "RSV-12345", FormatReferenceCode(12345))
}

func TestRoomRating(t *testing.T) {
	r := Room{AverageRating: 4, TotalRatings: 3}
	avg, n := r.WithRating(2)
	assert.Equal(t, 4, n)
	assert.InDelta(t, 3.5, avg, 1e-9)

	assert.True(t, Room{IsAvailable: true}.Bookable())
	assert.False(t, Room{IsAvailable: true, UnderMaintenance: true}.Bookable())
	assert.True(t, Room{}.Occupied())
	assert.False(t, Room{UnderMaintenance: true}.Occupied())
}
