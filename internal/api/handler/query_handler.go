package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"parking_network/internal/service"
)

type QueryHandler struct {
	queries *service.QueryService
}

func NewQueryHandler(queries *service.QueryService) *QueryHandler {
	return &QueryHandler{queries: queries}
}

// GET /stations/:station/queue
func (h *QueryHandler) StationQueue(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	queue, err := h.queries.StationQueue(c.Request.Context(), actor, c.Param("station"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, queue)
}

// GET /manager/queue
func (h *QueryHandler) ManagerQueue(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	queue, err := h.queries.ManagerQueue(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, queue)
}

// GET /users/:username/history
func (h *QueryHandler) TicketHistory(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	history, err := h.queries.UserTicketHistory(c.Request.Context(), actor, c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// GET /users/:username/history.pdf
func (h *QueryHandler) TicketHistoryPDF(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	username := c.Param("username")
	pdf, err := h.queries.RenderTicketHistoryPDF(c.Request.Context(), actor, username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-tickets.pdf"`, username))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// POST /users/:username/history/archive
func (h *QueryHandler) ArchiveTicketHistory(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	location, err := h.queries.ArchiveTicketHistory(c.Request.Context(), actor, c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"location": location})
}
