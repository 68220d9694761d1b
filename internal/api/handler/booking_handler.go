package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"parking_network/internal/domain"
	"parking_network/internal/service"
)

type BookingHandler struct {
	bookings *service.BookingService
}

func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// POST /bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req domain.ReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	booking, err := h.bookings.CreateBooking(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// GET /bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	booking, err := h.bookings.GetBooking(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// GET /bookings?station=&user=&status=&payment=
func (h *BookingHandler) FindBookings(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var filter domain.BookingFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		bindError(c, err)
		return
	}
	bookings, err := h.bookings.FindBookings(c.Request.Context(), actor, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

type transitionFunc func(ctx context.Context, actor domain.Actor, id string) (*domain.Booking, error)

func (h *BookingHandler) transition(fn transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOf(c)
		if !ok {
			return
		}
		booking, err := fn(c.Request.Context(), actor, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, booking)
	}
}

// POST /bookings/:id/approve
func (h *BookingHandler) Approve() gin.HandlerFunc { return h.transition(h.bookings.Approve) }

// POST /bookings/:id/check-in
func (h *BookingHandler) CheckIn() gin.HandlerFunc { return h.transition(h.bookings.CheckIn) }

// POST /bookings/:id/check-out
func (h *BookingHandler) CheckOut() gin.HandlerFunc { return h.transition(h.bookings.CheckOut) }

// POST /bookings/:id/mark-paid
func (h *BookingHandler) MarkPaid() gin.HandlerFunc { return h.transition(h.bookings.MarkPaid) }
