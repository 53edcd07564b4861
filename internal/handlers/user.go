package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/C0lies/carbook/internal/events"
	"github.com/C0lies/carbook/internal/hash"
	"github.com/C0lies/carbook/internal/logging"
	"github.com/C0lies/carbook/internal/middleware/authmw"
	"github.com/C0lies/carbook/internal/models"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type UserHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
}

type userRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Register creates an account. The route is public; the admin role can
// only be assigned by an already-authenticated admin.
func (h *UserHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_register")

	var req userRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
	}
	if !emailRegex.MatchString(req.Email) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid email format")
	}
	if len(req.Password) < 6 {
		return echo.NewHTTPError(http.StatusBadRequest, "Password must be at least 6 characters long")
	}
	if req.Role != "" && req.Role != "user" && req.Role != "admin" {
		return echo.NewHTTPError(http.StatusBadRequest, `Role must be either "user" or "admin"`)
	}
	if req.Role == "admin" && authmw.Role(c) != "admin" {
		return echo.NewHTTPError(http.StatusForbidden, "Only admin users can assign admin role")
	}

	var existing models.User
	err := h.DB.WithContext(ctx).Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "Email is already taken")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("register_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	role := req.Role
	if role == "" {
		role = "user"
	}
	user := models.User{Email: req.Email, PasswordHash: pwHash, Role: role}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		l.Error("register_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	h.publish(c, "user_events", fmt.Sprint(user.ID), map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User created successfully",
		"userId":  user.ID,
	})
}

// Me returns the profile of the authenticated user.
func (h *UserHandler) Me(c echo.Context) error {
	ctx := c.Request().Context()

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, authmw.UserID(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) List(c echo.Context) error {
	var users []models.User
	if err := h.DB.WithContext(c.Request().Context()).Order("id ASC").Find(&users).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if !selfOrAdmin(c, uint(id)) {
		return echo.NewHTTPError(http.StatusForbidden, "Access denied")
	}

	var user models.User
	if err := h.DB.WithContext(c.Request().Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
	return c.JSON(http.StatusOK, user)
}

// Update mutates email, password (re-hashed) and, for admins, role.
func (h *UserHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_update")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if !selfOrAdmin(c, uint(id)) {
		return echo.NewHTTPError(http.StatusForbidden, "Access denied")
	}

	var req userRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Role != "" && authmw.Role(c) != "admin" {
		return echo.NewHTTPError(http.StatusForbidden, "Only admin can change role")
	}
	if req.Password != "" && len(req.Password) < 6 {
		return echo.NewHTTPError(http.StatusBadRequest, "Password must be at least 6 characters")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	if req.Email != "" {
		if !emailRegex.MatchString(req.Email) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid email format")
		}
		user.Email = req.Email
	}
	if req.Password != "" {
		pwHash, err := hash.HashPassword(req.Password)
		if err != nil {
			l.Error("update_error", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Update failed")
		}
		user.PasswordHash = pwHash
	}
	if req.Role != "" {
		user.Role = req.Role
	}

	if err := h.DB.WithContext(ctx).Save(&user).Error; err != nil {
		l.Error("update_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Update failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User updated successfully"})
}

// Delete removes the account and cascades to owned vehicles.
func (h *UserHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_delete")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if !selfOrAdmin(c, uint(id)) {
		return echo.NewHTTPError(http.StatusForbidden, "Access denied")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}

	err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Vehicle{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		l.Error("delete_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Deletion failed")
	}

	h.publish(c, "user_events", fmt.Sprint(user.ID), map[string]any{
		"type":   "user_deleted",
		"userID": user.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted successfully"})
}

func selfOrAdmin(c echo.Context, id uint) bool {
	return authmw.UserID(c) == id || authmw.Role(c) == "admin"
}

func (h *UserHandler) publish(c echo.Context, topic, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}
