package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Room is a bookable unit. It is hard deleted, history is detached first.
type Room struct {
	ID uint `gorm:"primaryKey" json:"id"`

	RoomNumber    string          `gorm:"column:room_number;uniqueIndex;type:varchar(50);not null" json:"roomNumber"`
	RoomType      string          `gorm:"column:room_type;size:50;not null" json:"roomType"`
	PricePerNight decimal.Decimal `gorm:"column:price_per_night;type:decimal(18,2);not null" json:"pricePerNight"`
	MaxGuests     int             `gorm:"column:max_guests;not null" json:"maxGuests"`
	Description   string          `gorm:"column:description;type:text" json:"description"`
	Features      datatypes.JSON  `gorm:"column:features" json:"features,omitempty"`

	IsAvailable      bool `gorm:"column:is_available;not null" json:"isAvailable"`
	UnderMaintenance bool `gorm:"column:under_maintenance;not null" json:"underMaintenance"`

	AverageRating float64 `gorm:"column:average_rating;not null" json:"averageRating"`
	TotalRatings  int     `gorm:"column:total_ratings;not null" json:"totalRatings"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Bookable reports whether a new reservation may take the room.
func (r Room) Bookable() bool {
	return r.IsAvailable && !r.UnderMaintenance
}

// Occupied is true while a guest holds the room outside of maintenance.
func (r Room) Occupied() bool {
	return !r.IsAvailable && !r.UnderMaintenance
}

// WithRating folds one more score into the running average.
func (r Room) WithRating(score int) (avg float64, count int) {
	count = r.TotalRatings + 1
	avg = (r.AverageRating*float64(r.TotalRatings) + float64(score)) / float64(count)
	return avg, count
}
