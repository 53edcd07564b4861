package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/C0lies/carbook/internal/events"
	"github.com/C0lies/carbook/internal/logging"
	"github.com/C0lies/carbook/internal/middleware/authmw"
	"github.com/C0lies/carbook/internal/models"
)

type VehicleHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

type vehicleRequest struct {
	VIN               string     `json:"vin"`
	Brand             string     `json:"brand"`
	Model             string     `json:"model"`
	Version           string     `json:"version"`
	Engine            string     `json:"engine"`
	FirstRegistration *time.Time `json:"first_registration"`
}

// Create adds a vehicle to the caller's book. custom_number is the
// 1-based position within that user's vehicles.
func (h *VehicleHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "vehicle_create")

	var req vehicleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.VIN == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "VIN is required")
	}

	userID := authmw.UserID(c)

	var count int64
	if err := h.DB.WithContext(ctx).Model(&models.Vehicle{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		l.Error("create_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	vehicle := models.Vehicle{
		UserID:            userID,
		CustomNumber:      uint(count) + 1,
		VIN:               req.VIN,
		Brand:             req.Brand,
		Model:             req.Model,
		Version:           req.Version,
		Engine:            req.Engine,
		FirstRegistration: req.FirstRegistration,
	}
	if err := h.DB.WithContext(ctx).Create(&vehicle).Error; err != nil {
		l.Error("create_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	h.publish(c, "vehicle_events", fmt.Sprint(vehicle.ID), map[string]any{
		"type":    "vehicle_added",
		"userID":  userID,
		"vehicle": vehicle,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"message":   "Vehicle added successfully",
		"vehicleId": vehicle.ID,
	})
}

// List returns the caller's own vehicles.
func (h *VehicleHandler) List(c echo.Context) error {
	var vehicles []models.Vehicle
	err := h.DB.WithContext(c.Request().Context()).
		Where("user_id = ?", authmw.UserID(c)).
		Order("custom_number ASC").
		Find(&vehicles).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	return c.JSON(http.StatusOK, vehicles)
}

func (h *VehicleHandler) Get(c echo.Context) error {
	vehicle, httpErr := h.findOwned(c)
	if httpErr != nil {
		return httpErr
	}
	return c.JSON(http.StatusOK, vehicle)
}

func (h *VehicleHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	vehicle, httpErr := h.findOwned(c)
	if httpErr != nil {
		return httpErr
	}

	var req vehicleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.VIN != "" {
		vehicle.VIN = req.VIN
	}
	if req.Brand != "" {
		vehicle.Brand = req.Brand
	}
	if req.Model != "" {
		vehicle.Model = req.Model
	}
	if req.Version != "" {
		vehicle.Version = req.Version
	}
	if req.Engine != "" {
		vehicle.Engine = req.Engine
	}
	if req.FirstRegistration != nil {
		vehicle.FirstRegistration = req.FirstRegistration
	}

	if err := h.DB.WithContext(ctx).Save(vehicle).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	h.publish(c, "vehicle_events", fmt.Sprint(vehicle.ID), map[string]any{
		"type":    "vehicle_updated",
		"userID":  vehicle.UserID,
		"vehicle": vehicle,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Vehicle updated successfully", "vehicle": vehicle})
}

// Delete removes a vehicle and renumbers the owner's remaining vehicles
// so custom_number stays contiguous.
func (h *VehicleHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "vehicle_delete")

	vehicle, httpErr := h.findOwned(c)
	if httpErr != nil {
		return httpErr
	}

	ownerID := vehicle.UserID
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(vehicle).Error; err != nil {
			return err
		}

		var rest []models.Vehicle
		if err := tx.Where("user_id = ?", ownerID).Order("custom_number ASC").Find(&rest).Error; err != nil {
			return err
		}
		for i := range rest {
			if err := tx.Model(&rest[i]).Update("custom_number", i+1).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		l.Error("delete_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	h.publish(c, "vehicle_events", fmt.Sprint(vehicle.ID), map[string]any{
		"type":   "vehicle_deleted",
		"userID": ownerID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Vehicle deleted and numbering updated"})
}

// findOwned loads the vehicle from the path id and enforces the
// owner-or-admin rule.
func (h *VehicleHandler) findOwned(c echo.Context) (*models.Vehicle, *echo.HTTPError) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var vehicle models.Vehicle
	if err := h.DB.WithContext(c.Request().Context()).First(&vehicle, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Vehicle not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	if vehicle.UserID != authmw.UserID(c) && authmw.Role(c) != "admin" {
		return nil, echo.NewHTTPError(http.StatusForbidden, "Unauthorized access")
	}
	return &vehicle, nil
}

func (h *VehicleHandler) publish(c echo.Context, topic, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}
