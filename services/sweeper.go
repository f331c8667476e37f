package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"hotel-reservation/events"
	"hotel-reservation/metrics"
	"hotel-reservation/models"
)

const (
	DefaultSweepInterval = 5 * time.Minute
	sweepRetryDelay      = time.Minute
)

// SweepResult counts the reservations a sweep advanced.
type SweepResult struct {
	CheckedIn int
	Completed int
}

// Sweeper advances reservations whose dates have passed: arrivals get
// checked in, departures get completed and free their room.
type Sweeper struct {
	base
	DB       *gorm.DB
	interval time.Duration
}

func NewSweeper(db *gorm.DB, interval time.Duration, opts ...Option) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{base: newBase("sweeper", opts), DB: db, interval: interval}
}

// Run sweeps immediately and then every interval until ctx is done. After a
// failed sweep the next attempt comes sooner.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("sweeper started")
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopped")
			return
		case <-timer.C:
			next := s.interval
			if err := s.tick(ctx); err != nil && sweepRetryDelay < next {
				next = sweepRetryDelay
			}
			timer.Reset(next)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sweeper panic: %v", p)
			metrics.SweeperFailuresTotal.Inc()
			s.log.Error().Interface("panic", p).Msg("sweep panicked")
		}
	}()

	res, err := s.Sweep(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		metrics.SweeperFailuresTotal.Inc()
		s.log.Error().Err(err).Int("checked_in", res.CheckedIn).Int("completed", res.Completed).Msg("sweep finished with errors")
		return err
	}
	if res.CheckedIn > 0 || res.Completed > 0 {
		s.log.Info().Int("checked_in", res.CheckedIn).Int("completed", res.Completed).Msg("sweep finished")
	}
	return nil
}

// Sweep runs the check-in pass, then the check-out pass. Each reservation is
// re-read and guarded in its own transaction, so running it twice changes
// nothing the second time. A failing row does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	_, endOfToday := s.dayBounds()

	arrivals, err := s.candidates(ctx, "status = ? AND check_in_date < ?", models.StatusConfirmed, endOfToday)
	if err != nil {
		return res, err
	}
	var errs []error
	for _, id := range arrivals {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		ok, err := s.advance(ctx, id, models.TransitionSweepCheckIn, endOfToday)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			res.CheckedIn++
		}
	}

	departures, err := s.candidates(ctx, "status IN ? AND check_out_date < ?",
		[]models.ReservationStatus{models.StatusConfirmed, models.StatusCheckedIn}, endOfToday)
	if err != nil {
		return res, errors.Join(append(errs, err)...)
	}
	for _, id := range departures {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		ok, err := s.advance(ctx, id, models.TransitionSweepCheckOut, endOfToday)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			res.Completed++
		}
	}

	metrics.SweeperUpdatesTotal.WithLabelValues("check_in").Add(float64(res.CheckedIn))
	metrics.SweeperUpdatesTotal.WithLabelValues("check_out").Add(float64(res.Completed))
	return res, errors.Join(errs...)
}

func (s *Sweeper) candidates(ctx context.Context, query string, args ...any) ([]uint, error) {
	var ids []uint
	if err := s.DB.WithContext(ctx).Model(&models.Reservation{}).Where(query, args...).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("sweep candidates: %w", err)
	}
	return ids, nil
}

// advance re-checks one reservation under lock. ok is false when another
// writer already moved it on.
func (s *Sweeper) advance(ctx context.Context, id uint, t models.Transition, endOfToday time.Time) (ok bool, err error) {
	var r *models.Reservation
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lerr error
		if r, lerr = lockReservation(tx, id); lerr != nil {
			if errors.Is(lerr, ErrNotFound) {
				return nil
			}
			return lerr
		}
		if _, allowed := r.Status.Apply(t); !allowed {
			return nil
		}

		var extra map[string]any
		switch t {
		case models.TransitionSweepCheckIn:
			if r.CheckInDate == nil || !r.CheckInDate.Before(endOfToday) {
				return nil
			}
		case models.TransitionSweepCheckOut:
			if r.CheckOutDate == nil || !r.CheckOutDate.Before(endOfToday) {
				return nil
			}
			extra = map[string]any{"actual_check_out": *r.CheckOutDate}
		}

		if err := applyTransition(tx, r, t, extra); err != nil {
			return err
		}
		if t.FreesRoom() && r.RoomID != nil {
			if err := setRoomAvailable(tx, *r.RoomID, true); err != nil {
				return err
			}
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("sweep reservation %d: %w", id, err)
	}
	if ok {
		metrics.RecordTransition(string(t))
		et := events.ReservationCheckedIn
		if t == models.TransitionSweepCheckOut {
			et = events.ReservationCompleted
		}
		e := events.New(et)
		e.ReservationID = r.ID
		e.ReferenceCode = r.ReferenceCode
		e.RoomID = r.RoomID
		e.Status = r.Status.String()
		e.Actor = "sweeper"
		s.publish(e)
	}
	return ok, nil
}
