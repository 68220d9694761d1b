package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parking_network/internal/domain"
	"parking_network/internal/service"
)

type CityHandler struct {
	inventory *service.InventoryService
}

func NewCityHandler(inventory *service.InventoryService) *CityHandler {
	return &CityHandler{inventory: inventory}
}

// GET /cities
func (h *CityHandler) ListCities(c *gin.Context) {
	cities, err := h.inventory.ListCities(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cities)
}

// POST /cities
func (h *CityHandler) CreateCity(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var dto domain.CityDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		bindError(c, err)
		return
	}
	city, err := h.inventory.CreateCity(c.Request.Context(), actor, dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, city)
}

// GET /cities/:city
func (h *CityHandler) GetCity(c *gin.Context) {
	city, err := h.inventory.GetCity(c.Request.Context(), c.Param("city"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, city)
}

// DELETE /cities/:city
func (h *CityHandler) DeleteCity(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	if err := h.inventory.DeleteCity(c.Request.Context(), actor, c.Param("city")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
