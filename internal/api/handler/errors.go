package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"parking_network/internal/api/middleware"
	"parking_network/internal/domain"
	"parking_network/internal/repository"
	"parking_network/internal/service"
)

// statusFor maps service and repository errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, service.ErrStationNotFound),
		errors.Is(err, service.ErrSlotNotFound),
		errors.Is(err, service.ErrEmployeeNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateEntry),
		errors.Is(err, service.ErrDuplicateCity),
		errors.Is(err, service.ErrDuplicateStation),
		errors.Is(err, service.ErrDuplicateSlot),
		errors.Is(err, repository.ErrStaleWrite),
		errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidSlot),
		errors.Is(err, service.ErrInvalidEmployee),
		errors.Is(err, service.ErrInvalidBooking),
		errors.Is(err, service.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, repository.ErrStoreUnavailable),
		errors.Is(err, service.ErrArchiveDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var messages = map[int]string{
	http.StatusNotFound:            "resource not found",
	http.StatusConflict:            "request conflicts with current state",
	http.StatusBadRequest:          "invalid request",
	http.StatusForbidden:           "access denied",
	http.StatusUnauthorized:        "invalid or expired token",
	http.StatusServiceUnavailable:  "backing store unavailable, try again later",
	http.StatusInternalServerError: "internal error",
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": messages[status], "details": err.Error()})
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
}

func actorOf(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
	}
	return actor, ok
}

func slotParam(c *gin.Context) (float64, bool) {
	n, ok := domain.ParseSlotNumber(c.Param("slot"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": service.ErrInvalidSlot.Error() + ": " + c.Param("slot")})
	}
	return n, ok
}
