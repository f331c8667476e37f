package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"hotel-reservation/events"
	"hotel-reservation/models"
	"hotel-reservation/testutil"
)

func (f *fixture) sweeper(opts ...Option) *Sweeper {
	return NewSweeper(f.db, time.Hour, append([]Option{
		WithClock(f.clock.Now),
		WithPublisher(f.rec),
		WithLogger(zerolog.Nop()),
	}, opts...)...)
}

func TestSweep_ChecksInAndCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	arriving := f.book(t, testutil.CreateRoom(t, f.db, "101", 1000, 2), day(2025, 6, 10), 2)
	tomorrow := f.book(t, testutil.CreateRoom(t, f.db, "102", 1000, 2), day(2025, 6, 11), 1)
	leavingRoom := testutil.CreateRoom(t, f.db, "103", 1000, 2)
	leaving := f.book(t, leavingRoom, day(2025, 6, 8), 2)
	stayingOver := f.book(t, testutil.CreateRoom(t, f.db, "104", 1000, 2), day(2025, 6, 9), 3)
	_, err := f.res.CheckIn(ctx, admin, stayingOver.ID)
	require.NoError(t, err)

	res, err := f.sweeper().Sweep(ctx)
	require.NoError(t, err)
	// leaving is first checked in, then completed
	assert.Equal(t, SweepResult{CheckedIn: 2, Completed: 1}, res)

	assert.Equal(t, models.StatusCheckedIn, testutil.ReloadReservation(t, f.db, arriving.ID).Status)
	assert.Equal(t, models.StatusConfirmed, testutil.ReloadReservation(t, f.db, tomorrow.ID).Status)
	assert.Equal(t, models.StatusCheckedIn, testutil.ReloadReservation(t, f.db, stayingOver.ID).Status)

	done := testutil.ReloadReservation(t, f.db, leaving.ID)
	assert.Equal(t, models.StatusCompleted, done.Status)
	require.NotNil(t, done.ActualCheckOut)
	assert.True(t, done.ActualCheckOut.Equal(day(2025, 6, 10)))
	assert.True(t, testutil.ReloadRoom(t, f.db, leavingRoom.ID).Bookable())

	for _, e := range f.rec.Events() {
		if e.Type == events.ReservationCompleted {
			assert.Equal(t, "sweeper", e.Actor)
		}
	}
}

func TestSweep_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, testutil.CreateRoom(t, f.db, "101", 1000, 2), day(2025, 6, 10), 2)
	f.book(t, testutil.CreateRoom(t, f.db, "102", 1000, 2), day(2025, 6, 7), 2)
	s := f.sweeper()

	first, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{CheckedIn: 2, Completed: 1}, first)
	published := len(f.rec.Events())

	second, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, second)
	assert.Len(t, f.rec.Events(), published)
}

func TestSweep_SkipsCancelledAndCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cancelled := f.book(t, testutil.CreateRoom(t, f.db, "101", 1000, 2), day(2025, 6, 20), 1)
	_, err := f.res.Cancel(ctx, guest, cancelled.ID, "cannot travel")
	require.NoError(t, err)
	// move the dates into the past after cancelling
	require.NoError(t, f.db.Model(&models.Reservation{}).Where("id = ?", cancelled.ID).Updates(map[string]any{
		"check_in_date":  day(2025, 6, 1),
		"check_out_date": day(2025, 6, 2),
	}).Error)

	res, err := f.sweeper().Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)
	assert.Equal(t, models.StatusCancelled, testutil.ReloadReservation(t, f.db, cancelled.ID).Status)
}

func TestSweep_UsesHotelTimeZone(t *testing.T) {
	west := time.FixedZone("UTC-5", -5*60*60)
	late := time.Date(2025, 6, 10, 20, 0, 0, 0, time.UTC) // 15:00 in the hotel

	tests := []struct {
		name string
		loc  *time.Location
		want models.ReservationStatus
	}{
		{"hotel behind UTC still on the 10th", west, models.StatusCheckedIn},
		{"UTC hotel", time.UTC, models.StatusConfirmed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			// midnight UTC on the 11th is 19:00 on the 10th five hours west
			r := f.book(t, testutil.CreateRoom(t, f.db, "101", 1000, 2), day(2025, 6, 11), 2)
			f.clock.Set(late)

			_, err := f.sweeper(WithLocation(tt.loc)).Sweep(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, testutil.ReloadReservation(t, f.db, r.ID).Status)
		})
	}
}

func TestSweeperRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	r := f.book(t, testutil.CreateRoom(t, f.db, "101", 1000, 2), day(2025, 6, 10), 2)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.sweeper().Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		var st []string
		if err := f.db.Model(&models.Reservation{}).Where("id = ?", r.ID).Pluck("status", &st).Error; err != nil {
			return false
		}
		return len(st) == 1 && st[0] == string(models.StatusCheckedIn)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
