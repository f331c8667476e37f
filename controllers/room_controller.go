package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"hotel-reservation/services"
	"hotel-reservation/utils"
)

type RoomRequest struct {
	RoomNumber    string          `json:"roomNumber" binding:"required"`
	RoomType      string          `json:"roomType" binding:"required"`
	PricePerNight decimal.Decimal `json:"pricePerNight"`
	MaxGuests     int             `json:"maxGuests" binding:"required"`
	Description   string          `json:"description"`
	Features      []string        `json:"features"`
}

type RoomPatchRequest struct {
	RoomNumber    *string          `json:"roomNumber"`
	RoomType      *string          `json:"roomType"`
	PricePerNight *decimal.Decimal `json:"pricePerNight"`
	MaxGuests     *int             `json:"maxGuests"`
	Description   *string          `json:"description"`
	Features      *[]string        `json:"features"`
}

type RoomController struct {
	Svc *services.RoomService
}

func NewRoomController(svc *services.RoomService) *RoomController {
	return &RoomController{Svc: svc}
}

// ----------------------------------------------------
// GET /api/rooms?available=true
// ----------------------------------------------------

func (rc *RoomController) List(c *gin.Context) {
	rooms, err := rc.Svc.List(c.Request.Context(), c.Query("available") == "true")
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, rooms)
}

func (rc *RoomController) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	room, err := rc.Svc.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, room)
}

// ----------------------------------------------------
// POST /api/admin/rooms
// ----------------------------------------------------

func (rc *RoomController) Create(c *gin.Context) {
	var req RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	room, err := rc.Svc.Create(c.Request.Context(), services.RoomInput{
		RoomNumber:    req.RoomNumber,
		RoomType:      req.RoomType,
		PricePerNight: req.PricePerNight,
		MaxGuests:     req.MaxGuests,
		Description:   req.Description,
		Features:      req.Features,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, room)
}

// ----------------------------------------------------
// PUT /api/admin/rooms/:id
// ----------------------------------------------------

func (rc *RoomController) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req RoomPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	room, err := rc.Svc.Update(c.Request.Context(), id, services.RoomPatch{
		RoomNumber:    req.RoomNumber,
		RoomType:      req.RoomType,
		PricePerNight: req.PricePerNight,
		MaxGuests:     req.MaxGuests,
		Description:   req.Description,
		Features:      req.Features,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, room)
}

// Maintenance handles POST /api/admin/rooms/:id/maintenance and reports the
// reservations it cancelled.
func (rc *RoomController) Maintenance(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	cancelled, err := rc.Svc.MarkMaintenance(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{
		"roomId":                id,
		"cancelledReservations": cancelled,
	})
}

func (rc *RoomController) Available(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	room, err := rc.Svc.MarkAvailable(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, room)
}

func (rc *RoomController) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := rc.Svc.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}
