package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parking_network/internal/domain"
	"parking_network/internal/service"
)

// StationHandler serves stations and everything nested under them. Every
// write answers with the full updated city.
type StationHandler struct {
	inventory *service.InventoryService
}

func NewStationHandler(inventory *service.InventoryService) *StationHandler {
	return &StationHandler{inventory: inventory}
}

func (h *StationHandler) reply(c *gin.Context, status int, city *domain.City, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, city)
}

// POST /cities/:city/stations
func (h *StationHandler) AddStation(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var dto domain.StationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		bindError(c, err)
		return
	}
	city, err := h.inventory.AddStation(c.Request.Context(), actor, c.Param("city"), dto)
	h.reply(c, http.StatusCreated, city, err)
}

// DELETE /cities/:city/stations/:station
func (h *StationHandler) RemoveStation(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	city, err := h.inventory.RemoveStation(c.Request.Context(), actor, c.Param("city"), c.Param("station"))
	h.reply(c, http.StatusOK, city, err)
}

// POST /cities/:city/stations/:station/slots
func (h *StationHandler) AddSlot(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var dto domain.SlotDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		bindError(c, err)
		return
	}
	city, err := h.inventory.AddSlot(c.Request.Context(), actor, c.Param("city"), c.Param("station"), dto)
	h.reply(c, http.StatusCreated, city, err)
}

// PUT /cities/:city/stations/:station/slots/:slot
func (h *StationHandler) UpdateSlotPrice(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	n, ok := slotParam(c)
	if !ok {
		return
	}
	var dto domain.SlotPriceDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		bindError(c, err)
		return
	}
	city, err := h.inventory.UpdateSlotPrice(c.Request.Context(), actor, c.Param("city"), c.Param("station"), n, dto)
	h.reply(c, http.StatusOK, city, err)
}

// DELETE /cities/:city/stations/:station/slots/:slot
func (h *StationHandler) RemoveSlot(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	n, ok := slotParam(c)
	if !ok {
		return
	}
	city, err := h.inventory.RemoveSlot(c.Request.Context(), actor, c.Param("city"), c.Param("station"), n)
	h.reply(c, http.StatusOK, city, err)
}

// POST /cities/:city/stations/:station/employees
func (h *StationHandler) AddEmployee(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var dto domain.EmployeeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		bindError(c, err)
		return
	}
	employee, err := h.inventory.AddEmployee(c.Request.Context(), actor, c.Param("city"), c.Param("station"), dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, employee)
}

// PUT /cities/:city/stations/:station/employees/:employee/role
func (h *StationHandler) UpdateEmployeeRole(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var dto domain.EmployeeRoleDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		bindError(c, err)
		return
	}
	city, err := h.inventory.UpdateEmployeeRole(c.Request.Context(), actor, c.Param("city"), c.Param("station"), c.Param("employee"), dto)
	h.reply(c, http.StatusOK, city, err)
}

// DELETE /cities/:city/stations/:station/employees/:employee
func (h *StationHandler) RemoveEmployee(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	city, err := h.inventory.RemoveEmployee(c.Request.Context(), actor, c.Param("city"), c.Param("station"), c.Param("employee"))
	h.reply(c, http.StatusOK, city, err)
}

// DELETE /cities/:city/stations/:station/employees?name=
func (h *StationHandler) RemoveEmployeesByName(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": "name query parameter is required"})
		return
	}
	city, err := h.inventory.RemoveEmployeesByName(c.Request.Context(), actor, c.Param("city"), c.Param("station"), name)
	h.reply(c, http.StatusOK, city, err)
}

// PUT /cities/:city/stations/:station/employees/role?name=
func (h *StationHandler) UpdateEmployeeRoleByName(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": "name query parameter is required"})
		return
	}
	var dto domain.EmployeeRoleDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		bindError(c, err)
		return
	}
	city, err := h.inventory.UpdateEmployeeRoleByName(c.Request.Context(), actor, c.Param("city"), c.Param("station"), name, dto)
	h.reply(c, http.StatusOK, city, err)
}
