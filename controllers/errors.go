package controllers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"hotel-reservation/logging"
	"hotel-reservation/middleware"
	"hotel-reservation/models"
	"hotel-reservation/services"
	"hotel-reservation/utils"
)

// errorCodes maps service sentinels to HTTP status and envelope code.
// Order matters: the first match wins.
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrNotFound, http.StatusNotFound, "error.notFound"},
	{services.ErrInvalidInput, http.StatusBadRequest, "error.invalidInput"},
	{services.ErrInvalidDates, http.StatusBadRequest, "error.invalidDates"},
	{services.ErrInvalidGuestCount, http.StatusBadRequest, "error.invalidGuestCount"},
	{services.ErrInvalidRating, http.StatusBadRequest, "error.invalidRating"},
	{services.ErrMissingReason, http.StatusBadRequest, "error.missingReason"},
	{services.ErrMissingReceipt, http.StatusBadRequest, "error.missingReceipt"},
	{services.ErrNotCashPayment, http.StatusBadRequest, "error.notCashPayment"},
	{services.ErrRoomUnavailable, http.StatusConflict, "error.roomUnavailable"},
	{services.ErrRoomNoLongerAvailable, http.StatusConflict, "error.roomNoLongerAvailable"},
	{services.ErrRoomInUse, http.StatusConflict, "error.roomInUse"},
	{services.ErrDuplicateRoomNumber, http.StatusConflict, "error.duplicateRoomNumber"},
	{services.ErrInvalidStateTransition, http.StatusConflict, "error.invalidStateTransition"},
	{services.ErrNotCancellable, http.StatusConflict, "error.notCancellable"},
	{services.ErrAlreadyRated, http.StatusConflict, "error.alreadyRated"},
	{services.ErrNotRateable, http.StatusConflict, "error.notRateable"},
	{services.ErrAlreadyPaid, http.StatusConflict, "error.alreadyPaid"},
}

// respondServiceError turns a service error into the JSON error envelope.
// Anything unrecognised is logged and reported as 500.
func respondServiceError(c *gin.Context, err error) {
	var rl *services.RateLimitError
	if errors.As(err, &rl) {
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		utils.JSONError(c, http.StatusTooManyRequests, "error.rateLimited", err.Error())
		return
	}
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			utils.JSONError(c, m.status, m.code, err.Error())
			return
		}
	}
	l := logging.WithComponent("controllers")
	l.Error().Err(err).Str("path", c.FullPath()).Msg("unhandled service error")
	utils.JSONError(c, http.StatusInternalServerError, "error.internal", "internal server error")
}

func respondBadRequest(c *gin.Context, err error) {
	utils.JSONError(c, http.StatusBadRequest, "error.invalidInput", err.Error())
}

// actorFrom reads the identity set by middleware.Auth.
func actorFrom(c *gin.Context) services.Actor {
	uid, _ := c.Get(middleware.ContextUserID)
	role, _ := c.Get(middleware.ContextRole)
	a := services.Actor{}
	a.UserID, _ = uid.(string)
	a.Role, _ = role.(models.Role)
	return a
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.JSONError(c, http.StatusBadRequest, "error.invalidId", "id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// parseDate accepts a calendar date (2006-01-02), taken as midnight in the
// hotel zone, or a full RFC 3339 instant. The result is UTC.
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("dates must be YYYY-MM-DD or RFC 3339")
	}
	return t.UTC(), nil
}
