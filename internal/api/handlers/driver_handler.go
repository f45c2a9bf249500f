// internal/api/handlers/driver_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"waste-tracking-api-server/internal/models"
	"waste-tracking-api-server/internal/service"
	"waste-tracking-api-server/internal/store"
)

type DriverHandler struct {
	Drivers  store.DriverStore
	Tracking *service.TrackingService
}

type CreateDriverPayload struct {
	DriverID     string `json:"driverID"`
	Name         string `json:"name" binding:"required"`
	Phone        string `json:"phone"`
	CompanyID    string `json:"companyID"`
	VehiclePlate string `json:"vehiclePlate"`
}

// CreateDriver registers a driver. Transporters can only add drivers to
// their own company.
func (h *DriverHandler) CreateDriver(c *gin.Context) {
	var payload CreateDriverPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, err)
		return
	}
	actor := currentActor(c)
	if actor.Role == models.RoleTransporter {
		payload.CompanyID = actor.CompanyID
	}
	if payload.DriverID == "" {
		payload.DriverID = fmt.Sprintf("DRV-%s", uuid.New().String()[:8])
	}

	now := time.Now().UTC()
	driver := &models.Driver{
		DriverID:     payload.DriverID,
		Name:         payload.Name,
		Phone:        payload.Phone,
		CompanyID:    payload.CompanyID,
		VehiclePlate: payload.VehiclePlate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.Drivers.CreateDriver(c.Request.Context(), driver); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, driver)
}

func (h *DriverHandler) GetAllDrivers(c *gin.Context) {
	companyID := c.Query("companyID")
	if actor := currentActor(c); actor.Role == models.RoleTransporter {
		companyID = actor.CompanyID
	}
	drivers, err := h.Drivers.ListDrivers(c.Request.Context(), companyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, drivers)
}

func (h *DriverHandler) GetDriver(c *gin.Context) {
	driver, err := h.Drivers.GetDriver(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, driver)
}

// GetPositions returns drivers with a known location and their presence.
func (h *DriverHandler) GetPositions(c *gin.Context) {
	positions, err := h.Tracking.VisiblePositions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, positions)
}

func (h *DriverHandler) bindLocation(c *gin.Context) (service.LocationInput, bool) {
	var in service.LocationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return in, false
	}
	return in, true
}

// RecordLocation stores one GPS sample and moves the driver's current position.
func (h *DriverHandler) RecordLocation(c *gin.Context) {
	in, ok := h.bindLocation(c)
	if !ok {
		return
	}
	loc, err := h.Tracking.RecordLocation(c.Request.Context(), c.Param("id"), in, currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loc)
}

func (h *DriverHandler) AddRoutePoint(c *gin.Context) {
	in, ok := h.bindLocation(c)
	if !ok {
		return
	}
	loc, err := h.Tracking.AddRoutePoint(c.Request.Context(), c.Param("id"), in, currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loc)
}

func (h *DriverHandler) setTracking(c *gin.Context, enabled bool) {
	if err := h.Tracking.SetTracking(c.Request.Context(), c.Param("id"), enabled, currentActor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"driverID": c.Param("id"), "trackingEnabled": enabled})
}

func (h *DriverHandler) StartTracking(c *gin.Context) { h.setTracking(c, true) }

func (h *DriverHandler) StopTracking(c *gin.Context) { h.setTracking(c, false) }

func (h *DriverHandler) Ping(c *gin.Context) {
	if err := h.Tracking.Ping(c.Request.Context(), c.Param("id"), currentActor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetLocationHistory returns the newest samples first, ?limit= capped at 1000.
func (h *DriverHandler) GetLocationHistory(c *gin.Context) {
	history, err := h.Tracking.History(c.Request.Context(), c.Param("id"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
