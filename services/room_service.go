package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hotel-reservation/events"
	"hotel-reservation/metrics"
	"hotel-reservation/models"
)

type RoomService struct {
	base
	DB *gorm.DB
}

func NewRoomService(db *gorm.DB, opts ...Option) *RoomService {
	return &RoomService{base: newBase("rooms", opts), DB: db}
}

type RoomInput struct {
	RoomNumber    string
	RoomType      string
	PricePerNight decimal.Decimal
	MaxGuests     int
	Description   string
	Features      []string
}

// RoomPatch holds the editable room fields. Availability has its own operations.
type RoomPatch struct {
	RoomNumber    *string
	RoomType      *string
	PricePerNight *decimal.Decimal
	MaxGuests     *int
	Description   *string
	Features      *[]string
}

func encodeFeatures(features []string) (datatypes.JSON, error) {
	if features == nil {
		features = []string{}
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("%w: features: %v", ErrInvalidInput, err)
	}
	return datatypes.JSON(raw), nil
}

func validateRoom(number, roomType string, price decimal.Decimal, maxGuests int) error {
	switch {
	case number == "" || len(number) > 50:
		return fmt.Errorf("%w: room number is required", ErrInvalidInput)
	case roomType == "":
		return fmt.Errorf("%w: room type is required", ErrInvalidInput)
	case !price.IsPositive():
		return fmt.Errorf("%w: price per night must be positive", ErrInvalidInput)
	case maxGuests < 1 || maxGuests > models.MaxGuestsPerReservation:
		return fmt.Errorf("%w: max guests must be between 1 and %d", ErrInvalidInput, models.MaxGuestsPerReservation)
	}
	return nil
}

// Create adds a room. New rooms are bookable.
func (s *RoomService) Create(ctx context.Context, in RoomInput) (*models.Room, error) {
	in.RoomNumber = strings.TrimSpace(in.RoomNumber)
	in.RoomType = strings.TrimSpace(in.RoomType)
	if err := validateRoom(in.RoomNumber, in.RoomType, in.PricePerNight, in.MaxGuests); err != nil {
		return nil, err
	}
	features, err := encodeFeatures(in.Features)
	if err != nil {
		return nil, err
	}

	room := models.Room{
		RoomNumber:    in.RoomNumber,
		RoomType:      in.RoomType,
		PricePerNight: in.PricePerNight,
		MaxGuests:     in.MaxGuests,
		Description:   strings.TrimSpace(in.Description),
		Features:      features,
		IsAvailable:   true,
	}
	if err := s.DB.WithContext(ctx).Create(&room).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateRoomNumber
		}
		return nil, fmt.Errorf("create room: %w", err)
	}
	s.log.Info().Str("room", room.RoomNumber).Msg("room created")
	return &room, nil
}

// List returns rooms ordered by number, only bookable ones when availableOnly is set.
func (s *RoomService) List(ctx context.Context, availableOnly bool) ([]models.Room, error) {
	q := s.DB.WithContext(ctx).Order("room_number")
	if availableOnly {
		q = q.Where("is_available = ? AND under_maintenance = ?", true, false)
	}
	var rooms []models.Room
	if err := q.Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

func (s *RoomService) Get(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	if err := s.DB.WithContext(ctx).First(&room, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load room %d: %w", id, err)
	}
	return &room, nil
}

func (s *RoomService) Update(ctx context.Context, id uint, p RoomPatch) (*models.Room, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, id)
		if err != nil {
			return err
		}
		updates := map[string]any{}
		if p.RoomNumber != nil {
			room.RoomNumber = strings.TrimSpace(*p.RoomNumber)
			updates["room_number"] = room.RoomNumber
		}
		if p.RoomType != nil {
			room.RoomType = strings.TrimSpace(*p.RoomType)
			updates["room_type"] = room.RoomType
		}
		if p.PricePerNight != nil {
			room.PricePerNight = *p.PricePerNight
			updates["price_per_night"] = room.PricePerNight
		}
		if p.MaxGuests != nil {
			room.MaxGuests = *p.MaxGuests
			updates["max_guests"] = room.MaxGuests
		}
		if p.Description != nil {
			updates["description"] = strings.TrimSpace(*p.Description)
		}
		if p.Features != nil {
			features, err := encodeFeatures(*p.Features)
			if err != nil {
				return err
			}
			updates["features"] = features
		}
		if err := validateRoom(room.RoomNumber, room.RoomType, room.PricePerNight, room.MaxGuests); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.Room{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicateRoomNumber
			}
			return fmt.Errorf("update room %d: %w", id, err)
		}
		// keep the denormalised copy on open bookings in step
		if p.RoomNumber != nil {
			if err := tx.Model(&models.Reservation{}).
				Where("room_id = ? AND status IN ?", id, []models.ReservationStatus{models.StatusConfirmed, models.StatusCheckedIn}).
				Update("room_number", room.RoomNumber).Error; err != nil {
				return fmt.Errorf("sync room number: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// MarkMaintenance takes the room out of service and cancels every active
// reservation on it. Those reservations lose their room.
func (s *RoomService) MarkMaintenance(ctx context.Context, actor Actor, id uint) ([]models.Reservation, error) {
	now := s.clock()
	var cancelled []models.Reservation

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockRoom(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&models.Room{}).Where("id = ?", id).Updates(map[string]any{
			"under_maintenance": true,
			"is_available":      false,
		}).Error; err != nil {
			return fmt.Errorf("mark room %d maintenance: %w", id, err)
		}

		var active []models.Reservation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_id = ? AND status IN ?", id, []models.ReservationStatus{models.StatusConfirmed, models.StatusCheckedIn}).
			Find(&active).Error; err != nil {
			return fmt.Errorf("load reservations of room %d: %w", id, err)
		}
		for i := range active {
			r := &active[i]
			if err := applyTransition(tx, r, models.TransitionMaintenance, map[string]any{
				"room_id":        nil,
				"room_number":    nil,
				"cancelled_date": now,
			}); err != nil {
				return err
			}
			r.RoomID, r.RoomNumber, r.CancelledDate = nil, nil, &now
			cancelled = append(cancelled, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("room_id", id).Int("cancelled", len(cancelled)).Msg("room under maintenance")
	roomID := id
	e := events.New(events.RoomMaintenance)
	e.RoomID = &roomID
	e.Actor = actor.UserID
	s.publish(e)
	for _, r := range cancelled {
		metrics.RecordTransition(string(models.TransitionMaintenance))
		ce := events.New(events.ReservationCancelled)
		ce.ReservationID = r.ID
		ce.ReferenceCode = r.ReferenceCode
		ce.RoomID = &roomID
		ce.Status = r.Status.String()
		ce.Actor = actor.UserID
		ce.Reason = "room maintenance"
		s.publish(ce)
	}
	return cancelled, nil
}

// MarkAvailable returns a room to service. A room still held by an active
// reservation cannot be released.
func (s *RoomService) MarkAvailable(ctx context.Context, actor Actor, id uint) (*models.Room, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockRoom(tx, id); err != nil {
			return err
		}
		var active int64
		if err := tx.Model(&models.Reservation{}).
			Where("room_id = ? AND status IN ?", id, []models.ReservationStatus{models.StatusConfirmed, models.StatusCheckedIn}).
			Count(&active).Error; err != nil {
			return fmt.Errorf("count reservations of room %d: %w", id, err)
		}
		if active > 0 {
			return ErrRoomInUse
		}
		return tx.Model(&models.Room{}).Where("id = ?", id).Updates(map[string]any{
			"is_available":      true,
			"under_maintenance": false,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	roomID := id
	e := events.New(events.RoomAvailable)
	e.RoomID = &roomID
	e.Actor = actor.UserID
	s.publish(e)
	return s.Get(ctx, id)
}

// Delete removes a room that nobody holds. Past reservations keep their
// room number but lose the link.
func (s *RoomService) Delete(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := lockRoom(tx, id)
		if err != nil {
			return err
		}
		var active int64
		if err := tx.Model(&models.Reservation{}).
			Where("room_id = ? AND status IN ?", id, []models.ReservationStatus{models.StatusConfirmed, models.StatusCheckedIn}).
			Count(&active).Error; err != nil {
			return fmt.Errorf("count reservations of room %d: %w", id, err)
		}
		if active > 0 || room.Occupied() {
			return ErrRoomInUse
		}
		if err := tx.Model(&models.Reservation{}).Where("room_id = ?", id).Update("room_id", nil).Error; err != nil {
			return fmt.Errorf("detach reservations of room %d: %w", id, err)
		}
		if err := tx.Delete(&models.Room{}, id).Error; err != nil {
			return fmt.Errorf("delete room %d: %w", id, err)
		}
		s.log.Info().Str("room", room.RoomNumber).Msg("room deleted")
		return nil
	})
}
