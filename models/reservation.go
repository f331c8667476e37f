package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "Cash"
	PaymentCard         PaymentMethod = "Card"
	PaymentGCash        PaymentMethod = "GCash"
	PaymentBankTransfer PaymentMethod = "BankTransfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentGCash, PaymentBankTransfer:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
)

// MaxGuestsPerReservation caps a booking regardless of room size.
const MaxGuestsPerReservation = 10

type Reservation struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	ReferenceCode string `gorm:"column:reference_code;size:32;uniqueIndex;not null" json:"referenceCode"`

	UserID         string     `gorm:"column:user_id;size:128;index;not null" json:"userId"`
	GuestName      string     `gorm:"column:guest_name;size:100;not null" json:"guestName"`
	RoomType       string     `gorm:"column:room_type;size:50" json:"roomType"`
	RoomID         *uint      `gorm:"column:room_id;index" json:"roomId,omitempty"`
	RoomNumber     *string    `gorm:"column:room_number;size:50" json:"roomNumber,omitempty"`
	NumberOfGuests int        `gorm:"column:number_of_guests;not null" json:"numberOfGuests"`
	CheckInDate    *time.Time `gorm:"column:check_in_date;index" json:"checkInDate,omitempty"`
	CheckOutDate   *time.Time `gorm:"column:check_out_date;index" json:"checkOutDate,omitempty"`
	NumberOfNights int        `gorm:"column:number_of_nights;not null" json:"numberOfNights"`

	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:decimal(18,2);not null" json:"totalAmount"`

	Status         ReservationStatus `gorm:"column:status;size:20;index;not null" json:"status"`
	ActualCheckOut *time.Time        `gorm:"column:actual_check_out" json:"actualCheckOut,omitempty"`

	PaymentMethod    PaymentMethod `gorm:"column:payment_method;size:20;not null" json:"paymentMethod"`
	PaymentStatus    PaymentStatus `gorm:"column:payment_status;size:20;not null" json:"paymentStatus"`
	PaymentDate      *time.Time    `gorm:"column:payment_date" json:"paymentDate,omitempty"`
	ReceiptNumber    string        `gorm:"column:receipt_number;size:50" json:"receiptNumber,omitempty"`
	CashierName      string        `gorm:"column:cashier_name;size:100" json:"cashierName,omitempty"`
	CashReceivedDate *time.Time    `gorm:"column:cash_received_date" json:"cashReceivedDate,omitempty"`

	CancellationReason string     `gorm:"column:cancellation_reason;size:500" json:"cancellationReason,omitempty"`
	CancelledDate      *time.Time `gorm:"column:cancelled_date" json:"cancelledDate,omitempty"`

	Rating     *int       `gorm:"column:rating" json:"rating,omitempty"`
	Feedback   string     `gorm:"column:feedback;size:1000" json:"feedback,omitempty"`
	RatingDate *time.Time `gorm:"column:rating_date" json:"ratingDate,omitempty"`

	IsDeletedByUser   bool       `gorm:"column:is_deleted_by_user;not null" json:"-"`
	DeletedByUserDate *time.Time `gorm:"column:deleted_by_user_date" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Room *Room `gorm:"foreignKey:RoomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"room,omitempty"`
}

// CanBeCancelled is true for a Confirmed reservation whose check-in is
// unknown or still more than cutoff away.
func (r Reservation) CanBeCancelled(now time.Time, cutoff time.Duration) bool {
	if r.Status != StatusConfirmed {
		return false
	}
	if r.CheckInDate == nil {
		return true
	}
	return r.CheckInDate.Sub(now) > cutoff
}

// Rated reports whether a score was already recorded.
func (r Reservation) Rated() bool {
	return r.Rating != nil
}

// NightsBetween counts calendar days between two instants as seen in loc.
// The result may be zero or negative; callers validate it.
func NightsBetween(checkIn, checkOut time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	y1, m1, d1 := checkIn.In(loc).Date()
	y2, m2, d2 := checkOut.In(loc).Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// FormatReferenceCode renders a sequence value as RSV-0001.
func FormatReferenceCode(n int64) string {
	return fmt.Sprintf("RSV-%04d", n)
}
