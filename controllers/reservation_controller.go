// controllers/reservation_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hotel-reservation/models"
	"hotel-reservation/services"
	"hotel-reservation/utils"
)

// ---------------------------
// Payload / DTOs
// ---------------------------

type CreateReservationRequest struct {
	GuestName      string               `json:"guestName" binding:"required"`
	RoomID         uint                 `json:"roomId" binding:"required"`
	CheckInDate    string               `json:"checkInDate" binding:"required"`
	CheckOutDate   string               `json:"checkOutDate" binding:"required"`
	NumberOfGuests int                  `json:"numberOfGuests" binding:"required"`
	PaymentMethod  models.PaymentMethod `json:"paymentMethod" binding:"required"`
}

type EditReservationRequest struct {
	GuestName      *string `json:"guestName"`
	NumberOfGuests *int    `json:"numberOfGuests"`
	CheckInDate    *string `json:"checkInDate"`
	CheckOutDate   *string `json:"checkOutDate"`
}

type CancelReservationRequest struct {
	Reason string `json:"reason"`
}

type RateReservationRequest struct {
	Rating   int    `json:"rating" binding:"required"`
	Feedback string `json:"feedback"`
}

// ---------------------------
// Controller
// ---------------------------

type ReservationController struct {
	Svc *services.ReservationService
	Loc *time.Location // hotel zone for date-only input
}

func NewReservationController(svc *services.ReservationService, loc *time.Location) *ReservationController {
	if loc == nil {
		loc = time.UTC
	}
	return &ReservationController{Svc: svc, Loc: loc}
}

// Create handles POST /api/reservations
func (rc *ReservationController) Create(c *gin.Context) {
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	checkIn, err := parseDate(req.CheckInDate, rc.Loc)
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	checkOut, err := parseDate(req.CheckOutDate, rc.Loc)
	if err != nil {
		respondBadRequest(c, err)
		return
	}

	r, err := rc.Svc.Create(c.Request.Context(), actorFrom(c), services.CreateReservationInput{
		GuestName:      req.GuestName,
		RoomID:         req.RoomID,
		CheckIn:        checkIn,
		CheckOut:       checkOut,
		NumberOfGuests: req.NumberOfGuests,
		PaymentMethod:  req.PaymentMethod,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, r)
}

// Mine handles GET /api/reservations
func (rc *ReservationController) Mine(c *gin.Context) {
	d, err := rc.Svc.ListForUser(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, d)
}

// CancelQuota handles GET /api/reservations/cancel-quota
func (rc *ReservationController) CancelQuota(c *gin.Context) {
	n, err := rc.Svc.CancelQuota(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"remaining": n})
}

func (rc *ReservationController) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	r, err := rc.Svc.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, r)
}

// Edit handles PUT /api/reservations/:id and its admin twin.
func (rc *ReservationController) Edit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req EditReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	in := services.EditReservationInput{GuestName: req.GuestName, NumberOfGuests: req.NumberOfGuests}
	if req.CheckInDate != nil {
		t, err := parseDate(*req.CheckInDate, rc.Loc)
		if err != nil {
			respondBadRequest(c, err)
			return
		}
		in.CheckIn = &t
	}
	if req.CheckOutDate != nil {
		t, err := parseDate(*req.CheckOutDate, rc.Loc)
		if err != nil {
			respondBadRequest(c, err)
			return
		}
		in.CheckOut = &t
	}

	r, err := rc.Svc.Edit(c.Request.Context(), actorFrom(c), id, in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, r)
}

// Cancel handles POST /api/reservations/:id/cancel
func (rc *ReservationController) Cancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req CancelReservationRequest
	// an empty body is reported as a missing reason by the service
	_ = c.ShouldBindJSON(&req)

	r, err := rc.Svc.Cancel(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, r)
}

// Rate handles POST /api/reservations/:id/rate
func (rc *ReservationController) Rate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req RateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	r, err := rc.Svc.Rate(c.Request.Context(), actorFrom(c), id, req.Rating, req.Feedback)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, r)
}

// Hide handles DELETE /api/reservations/:id
func (rc *ReservationController) Hide(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := rc.Svc.Hide(c.Request.Context(), actorFrom(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"id": id, "hidden": true})
}

// ListAll handles GET /api/admin/reservations?status=Confirmed
func (rc *ReservationController) ListAll(c *gin.Context) {
	var filter *models.ReservationStatus
	if raw := c.Query("status"); raw != "" {
		st, ok := models.ParseStatus(raw)
		if !ok {
			utils.JSONError(c, http.StatusBadRequest, "error.invalidStatus", "unknown status "+raw)
			return
		}
		filter = &st
	}
	list, err := rc.Svc.ListAll(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, list)
}

// Delete handles DELETE /api/admin/reservations/:id
func (rc *ReservationController) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := rc.Svc.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

type transitionFunc func(ctx context.Context, actor services.Actor, id uint) (*models.Reservation, error)

// transition wraps the id-only lifecycle operations.
func (rc *ReservationController) transition(fn transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		r, err := fn(c.Request.Context(), actorFrom(c), id)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		utils.JSONSuccess(c, http.StatusOK, r)
	}
}

func (rc *ReservationController) UndoCancel() gin.HandlerFunc   { return rc.transition(rc.Svc.UndoCancel) }
func (rc *ReservationController) CheckIn() gin.HandlerFunc      { return rc.transition(rc.Svc.CheckIn) }
func (rc *ReservationController) UndoCheckIn() gin.HandlerFunc  { return rc.transition(rc.Svc.UndoCheckIn) }
func (rc *ReservationController) Complete() gin.HandlerFunc     { return rc.transition(rc.Svc.CompleteEarly) }
func (rc *ReservationController) UndoComplete() gin.HandlerFunc { return rc.transition(rc.Svc.UndoComplete) }
