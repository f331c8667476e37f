// services/reservation_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hotel-reservation/events"
	"hotel-reservation/metrics"
	"hotel-reservation/models"
	"hotel-reservation/ratelimit"
)

// CancellationPolicy bounds guest cancellations.
type CancellationPolicy struct {
	MaxAttempts int           // attempts allowed per Window
	Window      time.Duration // sliding window of the rate limit
	Cutoff      time.Duration // no cancellation this close to check-in
}

func DefaultCancellationPolicy() CancellationPolicy {
	return CancellationPolicy{MaxAttempts: 3, Window: time.Hour, Cutoff: time.Hour}
}

// ReservationService applies every reservation lifecycle change together
// with the availability flip of its room in one transaction.
type ReservationService struct {
	base
	DB      *gorm.DB
	limiter ratelimit.Limiter
	policy  CancellationPolicy
}

func NewReservationService(db *gorm.DB, limiter ratelimit.Limiter, policy CancellationPolicy, opts ...Option) *ReservationService {
	def := DefaultCancellationPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.Window <= 0 {
		policy.Window = def.Window
	}
	if policy.Cutoff < 0 {
		policy.Cutoff = def.Cutoff
	}
	return &ReservationService{
		base:    newBase("reservations", opts),
		DB:      db,
		limiter: limiter,
		policy:  policy,
	}
}

type CreateReservationInput struct {
	GuestName      string
	RoomID         uint
	CheckIn        time.Time
	CheckOut       time.Time
	NumberOfGuests int
	PaymentMethod  models.PaymentMethod
}

// EditReservationInput holds the guest-editable fields. Nil leaves a field unchanged.
type EditReservationInput struct {
	GuestName      *string
	NumberOfGuests *int
	CheckIn        *time.Time
	CheckOut       *time.Time
}

// Dashboard is a guest's own reservation list.
type Dashboard struct {
	Reservations      []models.Reservation `json:"reservations"`
	TotalReservations int                  `json:"totalReservations"`
	TotalSpent        decimal.Decimal      `json:"totalSpent"`
}

// ---------------------------
// helpers (must run inside a transaction)
// ---------------------------

func lockReservation(tx *gorm.DB, id uint) (*models.Reservation, error) {
	var r models.Reservation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load reservation %d: %w", id, err)
	}
	return &r, nil
}

func lockRoom(tx *gorm.DB, id uint) (*models.Room, error) {
	var room models.Room
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %d: %w", id, err)
	}
	return &room, nil
}

// applyTransition writes the next status only if the row still holds the
// status r was loaded with, so a concurrent writer makes this one fail.
func applyTransition(tx *gorm.DB, r *models.Reservation, t models.Transition, extra map[string]any) error {
	next, ok := r.Status.Apply(t)
	if !ok {
		return &TransitionError{Op: t, From: r.Status}
	}
	updates := map[string]any{"status": next}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&models.Reservation{}).
		Where("id = ? AND status = ?", r.ID, r.Status).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update reservation %d: %w", r.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &TransitionError{Op: t, From: r.Status}
	}
	r.Status = next
	return nil
}

func setRoomAvailable(tx *gorm.DB, roomID uint, available bool) error {
	if err := tx.Model(&models.Room{}).Where("id = ?", roomID).Update("is_available", available).Error; err != nil {
		return fmt.Errorf("update room %d availability: %w", roomID, err)
	}
	return nil
}

// nextReferenceCode advances the reservation sequence atomically.
func nextReferenceCode(tx *gorm.DB) (string, error) {
	seed := models.Sequence{Name: models.ReservationSequence}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return "", fmt.Errorf("init sequence: %w", err)
	}
	if err := tx.Model(&models.Sequence{}).
		Where("name = ?", models.ReservationSequence).
		UpdateColumn("value", gorm.Expr("value + ?", 1)).Error; err != nil {
		return "", fmt.Errorf("advance sequence: %w", err)
	}
	var seq models.Sequence
	if err := tx.Where("name = ?", models.ReservationSequence).First(&seq).Error; err != nil {
		return "", fmt.Errorf("read sequence: %w", err)
	}
	return models.FormatReferenceCode(seq.Value), nil
}

func guestLimit(room *models.Room) int {
	limit := models.MaxGuestsPerReservation
	if room.MaxGuests > 0 && room.MaxGuests < limit {
		limit = room.MaxGuests
	}
	return limit
}

func (s *ReservationService) nights(checkIn, checkOut time.Time) (int, error) {
	n := models.NightsBetween(checkIn, checkOut, s.loc)
	if n < 1 {
		return 0, ErrInvalidDates
	}
	return n, nil
}

func (s *ReservationService) event(t events.Type, r *models.Reservation, actor Actor) events.Event {
	e := events.New(t)
	e.ReservationID = r.ID
	e.ReferenceCode = r.ReferenceCode
	e.RoomID = r.RoomID
	e.Status = r.Status.String()
	e.Actor = actor.UserID
	return e
}

func (s *ReservationService) reload(ctx context.Context, id uint) (*models.Reservation, error) {
	var r models.Reservation
	if err := s.DB.WithContext(ctx).Preload("Room").First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load reservation %d: %w", id, err)
	}
	return &r, nil
}

// ---------------------------
// Create / Edit / Read
// ---------------------------

func (s *ReservationService) Create(ctx context.Context, actor Actor, in CreateReservationInput) (*models.Reservation, error) {
	name := strings.TrimSpace(in.GuestName)
	if name == "" || len(name) > 100 {
		return nil, fmt.Errorf("%w: guest name is required", ErrInvalidInput)
	}
	if !in.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, in.PaymentMethod)
	}
	nights, err := s.nights(in.CheckIn, in.CheckOut)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	checkIn, checkOut := in.CheckIn.UTC(), in.CheckOut.UTC()
	var created models.Reservation

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, in.RoomID)
		if errors.Is(err, ErrNotFound) {
			return ErrRoomUnavailable
		}
		if err != nil {
			return err
		}
		if !room.Bookable() {
			return ErrRoomUnavailable
		}
		if in.NumberOfGuests < 1 || in.NumberOfGuests > guestLimit(room) {
			return ErrInvalidGuestCount
		}

		code, err := nextReferenceCode(tx)
		if err != nil {
			return err
		}

		roomNumber := room.RoomNumber
		created = models.Reservation{
			ReferenceCode:  code,
			UserID:         actor.UserID,
			GuestName:      name,
			RoomType:       room.RoomType,
			RoomID:         &room.ID,
			RoomNumber:     &roomNumber,
			NumberOfGuests: in.NumberOfGuests,
			CheckInDate:    &checkIn,
			CheckOutDate:   &checkOut,
			NumberOfNights: nights,
			TotalAmount:    room.PricePerNight.Mul(decimal.NewFromInt(int64(nights))),
			Status:         models.StatusConfirmed,
			PaymentMethod:  in.PaymentMethod,
			PaymentStatus:  models.PaymentPending,
		}
		if in.PaymentMethod != models.PaymentCash {
			created.PaymentStatus = models.PaymentPaid
			created.PaymentDate = &now
		}
		if err := tx.Omit(clause.Associations).Create(&created).Error; err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}

		res := tx.Model(&models.Room{}).
			Where("id = ? AND is_available = ? AND under_maintenance = ?", room.ID, true, false).
			Update("is_available", false)
		if res.Error != nil {
			return fmt.Errorf("reserve room %d: %w", room.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrRoomUnavailable
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ReservationsCreatedTotal.WithLabelValues(string(created.PaymentMethod)).Inc()
	s.log.Info().Str("reference", created.ReferenceCode).Uint("room_id", in.RoomID).Msg("reservation created")
	s.publish(s.event(events.ReservationCreated, &created, actor))
	return s.reload(ctx, created.ID)
}

// Edit changes guest details and dates. Nights and the total follow the dates.
func (s *ReservationService) Edit(ctx context.Context, actor Actor, id uint, in EditReservationInput) (*models.Reservation, error) {
	var edited *models.Reservation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := lockReservation(tx, id)
		if err != nil {
			return err
		}
		if !actor.owns(r.UserID) {
			return ErrNotFound
		}
		if r.Status == models.StatusCheckedIn || r.Status == models.StatusCompleted {
			return &TransitionError{Op: "edit", From: r.Status}
		}

		var room *models.Room
		if r.RoomID != nil {
			if room, err = lockRoom(tx, *r.RoomID); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}

		updates := map[string]any{}
		if in.GuestName != nil {
			name := strings.TrimSpace(*in.GuestName)
			if name == "" || len(name) > 100 {
				return fmt.Errorf("%w: guest name is required", ErrInvalidInput)
			}
			updates["guest_name"] = name
			r.GuestName = name
		}
		if in.NumberOfGuests != nil {
			limit := models.MaxGuestsPerReservation
			if room != nil {
				limit = guestLimit(room)
			}
			if *in.NumberOfGuests < 1 || *in.NumberOfGuests > limit {
				return ErrInvalidGuestCount
			}
			updates["number_of_guests"] = *in.NumberOfGuests
			r.NumberOfGuests = *in.NumberOfGuests
		}
		if in.CheckIn != nil || in.CheckOut != nil {
			if in.CheckIn != nil {
				ci := in.CheckIn.UTC()
				r.CheckInDate = &ci
			}
			if in.CheckOut != nil {
				co := in.CheckOut.UTC()
				r.CheckOutDate = &co
			}
			if r.CheckInDate == nil || r.CheckOutDate == nil {
				return ErrInvalidDates
			}
			nights, err := s.nights(*r.CheckInDate, *r.CheckOutDate)
			if err != nil {
				return err
			}

			var perNight decimal.Decimal
			switch {
			case room != nil:
				perNight = room.PricePerNight
			case r.NumberOfNights > 0:
				perNight = r.TotalAmount.Div(decimal.NewFromInt(int64(r.NumberOfNights)))
			}
			r.NumberOfNights = nights
			r.TotalAmount = perNight.Mul(decimal.NewFromInt(int64(nights))).Round(2)
			updates["check_in_date"] = *r.CheckInDate
			updates["check_out_date"] = *r.CheckOutDate
			updates["number_of_nights"] = nights
			updates["total_amount"] = r.TotalAmount
		}
		if len(updates) == 0 {
			edited = r
			return nil
		}

		res := tx.Model(&models.Reservation{}).Where("id = ? AND status = ?", r.ID, r.Status).Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update reservation %d: %w", r.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return &TransitionError{Op: "edit", From: r.Status}
		}
		edited = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(s.event(events.ReservationUpdated, edited, actor))
	return s.reload(ctx, id)
}

// Get returns a reservation visible to actor.
func (s *ReservationService) Get(ctx context.Context, actor Actor, id uint) (*models.Reservation, error) {
	r, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.owns(r.UserID) {
		return nil, ErrNotFound
	}
	return r, nil
}

// ListForUser is the guest dashboard: own reservations, hidden ones excluded, newest first.
func (s *ReservationService) ListForUser(ctx context.Context, actor Actor) (*Dashboard, error) {
	var list []models.Reservation
	if err := s.DB.WithContext(ctx).
		Preload("Room").
		Where("user_id = ? AND is_deleted_by_user = ?", actor.UserID, false).
		Order("created_at DESC").Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	d := &Dashboard{Reservations: list, TotalReservations: len(list), TotalSpent: decimal.Zero}
	for _, r := range list {
		if r.Status != models.StatusCancelled {
			d.TotalSpent = d.TotalSpent.Add(r.TotalAmount)
		}
	}
	return d, nil
}

// ListAll is the admin view, newest id first, optionally filtered by status.
func (s *ReservationService) ListAll(ctx context.Context, status *models.ReservationStatus) ([]models.Reservation, error) {
	q := s.DB.WithContext(ctx).Preload("Room").Order("id DESC")
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var list []models.Reservation
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return list, nil
}

// Hide removes a reservation from its owner's dashboard. Admins still see it.
func (s *ReservationService) Hide(ctx context.Context, actor Actor, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := lockReservation(tx, id)
		if err != nil {
			return err
		}
		if r.UserID != actor.UserID {
			return ErrNotFound
		}
		err = tx.Model(&models.Reservation{}).Where("id = ?", id).Updates(map[string]any{
			"is_deleted_by_user":   true,
			"deleted_by_user_date": s.clock(),
		}).Error
		if err != nil {
			return fmt.Errorf("hide reservation: %w", err)
		}
		return nil
	})
}

// Delete removes the row for good. An active reservation frees its room first.
func (s *ReservationService) Delete(ctx context.Context, actor Actor, id uint) error {
	var deleted *models.Reservation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := lockReservation(tx, id)
		if err != nil {
			return err
		}
		if r.Status.Active() && r.RoomID != nil {
			if err := setRoomAvailable(tx, *r.RoomID, true); err != nil {
				return err
			}
		}
		if err := tx.Delete(&models.Reservation{}, id).Error; err != nil {
			return fmt.Errorf("delete reservation %d: %w", id, err)
		}
		deleted = r
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("reference", deleted.ReferenceCode).Str("actor", actor.UserID).Msg("reservation deleted")
	s.publish(s.event(events.ReservationDeleted, deleted, actor))
	return nil
}

// ---------------------------
// Lifecycle transitions
// ---------------------------

type roomEffect int

const (
	roomUntouched roomEffect = iota
	roomFree
	roomTake // requires the room to still be bookable
)

type step struct {
	transition models.Transition
	event      events.Type
	guard      func(r *models.Reservation, now time.Time) error
	fields     func(r *models.Reservation, now time.Time) map[string]any
	room       roomEffect
	reason     string
}

// advance runs one lifecycle step: lock, authorize, guard, write status,
// flip the room, commit, then publish.
func (s *ReservationService) advance(ctx context.Context, actor Actor, id uint, st step) (*models.Reservation, error) {
	now := s.clock()
	var r *models.Reservation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if r, err = lockReservation(tx, id); err != nil {
			return err
		}
		if !actor.owns(r.UserID) {
			return ErrNotFound
		}
		if st.guard != nil {
			if err := st.guard(r, now); err != nil {
				return err
			}
		}
		if _, ok := r.Status.Apply(st.transition); !ok {
			return &TransitionError{Op: st.transition, From: r.Status}
		}
		if st.room == roomTake && r.RoomID != nil {
			room, err := lockRoom(tx, *r.RoomID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if room != nil && !room.Bookable() {
				return ErrRoomNoLongerAvailable
			}
		}

		var extra map[string]any
		if st.fields != nil {
			extra = st.fields(r, now)
		}
		if err := applyTransition(tx, r, st.transition, extra); err != nil {
			return err
		}

		if r.RoomID != nil {
			switch st.room {
			case roomFree:
				return setRoomAvailable(tx, *r.RoomID, true)
			case roomTake:
				return setRoomAvailable(tx, *r.RoomID, false)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition(string(st.transition))
	s.log.Info().
		Str("reference", r.ReferenceCode).
		Str("transition", string(st.transition)).
		Str("status", r.Status.String()).
		Str("actor", actor.UserID).
		Msg("reservation transition")
	e := s.event(st.event, r, actor)
	e.Reason = st.reason
	s.publish(e)
	return s.reload(ctx, id)
}

func (s *ReservationService) CheckIn(ctx context.Context, actor Actor, id uint) (*models.Reservation, error) {
	return s.advance(ctx, actor, id, step{
		transition: models.TransitionCheckIn,
		event:      events.ReservationCheckedIn,
	})
}

func (s *ReservationService) UndoCheckIn(ctx context.Context, actor Actor, id uint) (*models.Reservation, error) {
	return s.advance(ctx, actor, id, step{
		transition: models.TransitionUndoCheckIn,
		event:      events.ReservationCheckInUndone,
	})
}

// CompleteEarly checks the guest out now and frees the room.
func (s *ReservationService) CompleteEarly(ctx context.Context, actor Actor, id uint) (*models.Reservation, error) {
	return s.advance(ctx, actor, id, step{
		transition: models.TransitionCompleteEarly,
		event:      events.ReservationCompleted,
		room:       roomFree,
		fields: func(_ *models.Reservation, now time.Time) map[string]any {
			return map[string]any{"actual_check_out": now}
		},
	})
}

// UndoComplete puts the guest back in the room, provided nobody took it since.
func (s *ReservationService) UndoComplete(ctx context.Context, actor Actor, id uint) (*models.Reservation, error) {
	return s.advance(ctx, actor, id, step{
		transition: models.TransitionUndoComplete,
		event:      events.ReservationReopened,
		room:       roomTake,
		fields: func(*models.Reservation, time.Time) map[string]any {
			return map[string]any{"actual_check_out": nil}
		},
	})
}

// Cancel is the guest cancellation. Every call that reaches the limiter
// counts as an attempt, rejected ones included.
func (s *ReservationService) Cancel(ctx context.Context, actor Actor, id uint, reason string) (*models.Reservation, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	if err := s.checkCancelLimit(ctx, actor); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrMissingReason
	}
	if len(reason) > 500 {
		return nil, fmt.Errorf("%w: reason is too long", ErrInvalidInput)
	}

	return s.advance(ctx, actor, id, step{
		transition: models.TransitionCancel,
		event:      events.ReservationCancelled,
		room:       roomFree,
		reason:     reason,
		guard: func(r *models.Reservation, now time.Time) error {
			if !r.CanBeCancelled(now, s.policy.Cutoff) {
				return ErrNotCancellable
			}
			return nil
		},
		fields: func(_ *models.Reservation, now time.Time) map[string]any {
			return map[string]any{"cancellation_reason": reason, "cancelled_date": now}
		},
	})
}

// checkCancelLimit fails open when the limiter backend is unreachable.
func (s *ReservationService) checkCancelLimit(ctx context.Context, actor Actor) error {
	if s.limiter == nil {
		return nil
	}
	key := "cancel:" + actor.UserID
	admitted, err := s.limiter.Acquire(ctx, key, s.policy.MaxAttempts, s.policy.Window)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
		return nil
	}
	if !admitted {
		wait, ok, err := s.limiter.TimeUntilReset(ctx, key, s.policy.Window)
		if err != nil || !ok {
			wait = s.policy.Window
		}
		metrics.RecordRateLimited("cancel")
		return &RateLimitError{RetryAfter: wait}
	}
	return nil
}

// UndoCancel restores a cancellation while the room is still free.
func (s *ReservationService) UndoCancel(ctx context.Context, actor Actor, id uint) (*models.Reservation, error) {
	return s.advance(ctx, actor, id, step{
		transition: models.TransitionUndoCancel,
		event:      events.ReservationRestored,
		room:       roomTake,
		fields: func(*models.Reservation, time.Time) map[string]any {
			return map[string]any{"cancellation_reason": "", "cancelled_date": nil}
		},
	})
}

// CancelQuota reports the remaining cancel attempts of actor.
func (s *ReservationService) CancelQuota(ctx context.Context, actor Actor) (int, error) {
	if s.limiter == nil {
		return s.policy.MaxAttempts, nil
	}
	return s.limiter.Remaining(ctx, "cancel:"+actor.UserID, s.policy.MaxAttempts, s.policy.Window)
}

// Rate records the guest's score once and folds it into the room average.
func (s *ReservationService) Rate(ctx context.Context, actor Actor, id uint, score int, feedback string) (*models.Reservation, error) {
	feedback = strings.TrimSpace(feedback)
	if len(feedback) > 1000 {
		return nil, fmt.Errorf("%w: feedback is too long", ErrInvalidInput)
	}
	now := s.clock()
	var rated *models.Reservation

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := lockReservation(tx, id)
		if err != nil {
			return err
		}
		if !actor.owns(r.UserID) {
			return ErrNotFound
		}
		if r.Status != models.StatusCompleted {
			return ErrNotRateable
		}
		if r.Rated() {
			return ErrAlreadyRated
		}
		if score < 1 || score > 5 {
			return ErrInvalidRating
		}

		res := tx.Model(&models.Reservation{}).
			Where("id = ? AND rating IS NULL", r.ID).
			Updates(map[string]any{"rating": score, "feedback": feedback, "rating_date": now})
		if res.Error != nil {
			return fmt.Errorf("rate reservation %d: %w", r.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyRated
		}

		if r.RoomID != nil {
			room, err := lockRoom(tx, *r.RoomID)
			if errors.Is(err, ErrNotFound) {
				rated = r
				return nil
			}
			if err != nil {
				return err
			}
			avg, count := room.WithRating(score)
			if err := tx.Model(&models.Room{}).Where("id = ?", room.ID).Updates(map[string]any{
				"average_rating": avg,
				"total_ratings":  count,
			}).Error; err != nil {
				return fmt.Errorf("update room %d rating: %w", room.ID, err)
			}
		}
		rated = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(s.event(events.ReservationRated, rated, actor))
	return s.reload(ctx, id)
}
