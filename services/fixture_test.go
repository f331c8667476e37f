package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"hotel-reservation/models"
	"hotel-reservation/ratelimit"
	"hotel-reservation/testutil"
)

var (
	guest = Actor{UserID: "guest-1", Role: models.RoleCustomer}
	other = Actor{UserID: "guest-2", Role: models.RoleCustomer}
	admin = Actor{UserID: "admin-1", Role: models.RoleAdmin}

	// 2025-06-10 09:00 UTC
	baseNow = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	db       *gorm.DB
	clock    *testutil.Clock
	rec      *testutil.Recorder
	limiter  *ratelimit.MemoryLimiter
	res      *ReservationService
	rooms    *RoomService
	payments *PaymentService
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		db:    testutil.NewTestDB(t),
		clock: testutil.NewClock(baseNow),
		rec:   &testutil.Recorder{},
	}
	f.limiter = ratelimit.NewMemoryLimiter(ratelimit.WithClock(f.clock.Now))
	common := append([]Option{
		WithClock(f.clock.Now),
		WithPublisher(f.rec),
		WithLogger(zerolog.Nop()),
	}, opts...)
	f.res = NewReservationService(f.db, f.limiter, DefaultCancellationPolicy(), common...)
	f.rooms = NewRoomService(f.db, common...)
	f.payments = NewPaymentService(f.db, common...)
	return f
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// book creates a Cash reservation for guest starting at checkIn.
func (f *fixture) book(t *testing.T, room *models.Room, checkIn time.Time, nights int) *models.Reservation {
	t.Helper()
	r, err := f.res.Create(context.Background(), guest, CreateReservationInput{
		GuestName:      "Juan Dela Cruz",
		RoomID:         room.ID,
		CheckIn:        checkIn,
		CheckOut:       checkIn.AddDate(0, 0, nights),
		NumberOfGuests: 1,
		PaymentMethod:  models.PaymentCash,
	})
	require.NoError(t, err)
	return r
}

// forceStatus bypasses the lifecycle to set up a scenario.
func (f *fixture) forceStatus(t *testing.T, id uint, st models.ReservationStatus) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.Reservation{}).Where("id = ?", id).Update("status", st).Error)
}
