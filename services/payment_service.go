package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"hotel-reservation/events"
	"hotel-reservation/metrics"
	"hotel-reservation/models"
)

// PaymentService is the front desk cash register.
type PaymentService struct {
	base
	DB *gorm.DB
}

func NewPaymentService(db *gorm.DB, opts ...Option) *PaymentService {
	return &PaymentService{base: newBase("payments", opts), DB: db}
}

type CashSummary struct {
	Pending       []models.Reservation `json:"pending"`
	PendingTotal  decimal.Decimal      `json:"pendingTotal"`
	TodayReceipts []models.Reservation `json:"todayReceipts"`
	TodayTotal    decimal.Decimal      `json:"todayTotal"`
}

// CashReceipt pairs a reservation with the receipt handed to the guest.
type CashReceipt struct {
	ReservationID uint
	ReceiptNumber string
}

func sum(list []models.Reservation) decimal.Decimal {
	total := decimal.Zero
	for _, r := range list {
		total = total.Add(r.TotalAmount)
	}
	return total
}

func normalizeReceipt(receipt string) string {
	return strings.ToUpper(strings.TrimSpace(receipt))
}

// CashReceipts lists cash still owed (oldest first) and cash taken today
// in the hotel time zone (newest first).
func (s *PaymentService) CashReceipts(ctx context.Context) (*CashSummary, error) {
	db := s.DB.WithContext(ctx)

	var pending []models.Reservation
	if err := db.
		Where("payment_method = ? AND payment_status = ? AND status <> ?", models.PaymentCash, models.PaymentPending, models.StatusCancelled).
		Order("created_at ASC").Order("id ASC").
		Find(&pending).Error; err != nil {
		return nil, fmt.Errorf("list pending cash: %w", err)
	}

	start, end := s.dayBounds()
	var today []models.Reservation
	if err := db.
		Where("payment_method = ? AND payment_status = ? AND payment_date >= ? AND payment_date < ?", models.PaymentCash, models.PaymentPaid, start, end).
		Order("payment_date DESC").
		Find(&today).Error; err != nil {
		return nil, fmt.Errorf("list today's receipts: %w", err)
	}

	return &CashSummary{
		Pending:       pending,
		PendingTotal:  sum(pending),
		TodayReceipts: today,
		TodayTotal:    sum(today),
	}, nil
}

// cashEligible reports why r cannot take a cash payment, nil if it can.
func cashEligible(r *models.Reservation) error {
	switch {
	case r.PaymentStatus == models.PaymentPaid:
		return ErrAlreadyPaid
	case r.PaymentMethod != models.PaymentCash:
		return ErrNotCashPayment
	case r.Status == models.StatusCancelled:
		return &TransitionError{Op: "receive payment for", From: r.Status}
	}
	return nil
}

func (s *PaymentService) markPaid(tx *gorm.DB, r *models.Reservation, receipt, cashier string) error {
	now := s.clock()
	res := tx.Model(&models.Reservation{}).
		Where("id = ? AND payment_status = ?", r.ID, models.PaymentPending).
		Updates(map[string]any{
			"payment_status":     models.PaymentPaid,
			"payment_date":       now,
			"receipt_number":     receipt,
			"cashier_name":       cashier,
			"cash_received_date": now,
		})
	if res.Error != nil {
		return fmt.Errorf("receive cash for reservation %d: %w", r.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyPaid
	}
	return nil
}

func cashierName(actor Actor, cashier string) string {
	if c := strings.TrimSpace(cashier); c != "" {
		return c
	}
	return actor.UserID
}

func (s *PaymentService) ReceiveCash(ctx context.Context, actor Actor, id uint, receipt, cashier string) (*models.Reservation, error) {
	receipt = normalizeReceipt(receipt)
	var paid *models.Reservation

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := lockReservation(tx, id)
		if err != nil {
			return err
		}
		if err := cashEligible(r); err != nil {
			return err
		}
		if receipt == "" {
			return ErrMissingReceipt
		}
		if err := s.markPaid(tx, r, receipt, cashierName(actor, cashier)); err != nil {
			return err
		}
		paid = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CashReceivedTotal.Inc()
	s.log.Info().Str("reference", paid.ReferenceCode).Str("receipt", receipt).Msg("cash received")
	s.publishPaid(paid, actor)

	var out models.Reservation
	if err := s.DB.WithContext(ctx).First(&out, id).Error; err != nil {
		return nil, fmt.Errorf("load reservation %d: %w", id, err)
	}
	return &out, nil
}

// BulkReceiveCash confirms every eligible receipt in one transaction and
// skips the rest. It returns how many were processed.
func (s *PaymentService) BulkReceiveCash(ctx context.Context, actor Actor, receipts []CashReceipt, cashier string) (int, error) {
	if len(receipts) == 0 {
		return 0, fmt.Errorf("%w: no reservations selected", ErrInvalidInput)
	}
	cashier = cashierName(actor, cashier)
	var processed []*models.Reservation

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range receipts {
			receipt := normalizeReceipt(item.ReceiptNumber)
			if receipt == "" {
				continue
			}
			r, err := lockReservation(tx, item.ReservationID)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if cashEligible(r) != nil {
				continue
			}
			if err := s.markPaid(tx, r, receipt, cashier); err != nil {
				if errors.Is(err, ErrAlreadyPaid) {
					continue
				}
				return err
			}
			processed = append(processed, r)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.CashReceivedTotal.Add(float64(len(processed)))
	s.log.Info().Int("processed", len(processed)).Int("requested", len(receipts)).Msg("bulk cash received")
	for _, r := range processed {
		s.publishPaid(r, actor)
	}
	return len(processed), nil
}

func (s *PaymentService) publishPaid(r *models.Reservation, actor Actor) {
	e := events.New(events.PaymentReceived)
	e.ReservationID = r.ID
	e.ReferenceCode = r.ReferenceCode
	e.RoomID = r.RoomID
	e.Status = r.Status.String()
	e.Actor = actor.UserID
	s.publish(e)
}
