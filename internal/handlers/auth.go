package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/C0lies/carbook/internal/auth"
	"github.com/C0lies/carbook/internal/events"
	"github.com/C0lies/carbook/internal/logging"
)

type AuthHandler struct {
	Tokens     *auth.TokenService
	Producer   *events.Producer
	Production bool
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login issues the token pair. The access token goes to the body, the
// refresh token only to the HttpOnly cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	pair, err := h.Tokens.IssueTokens(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			l.Warn("login_failed", "status", 401)
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		l.Error("login_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
	}

	c.SetCookie(auth.RefreshCookie(pair.RefreshToken, pair.RefreshExp, h.Production))
	l.Info("login_successful")

	h.publish(c, "user_events", req.Email, map[string]any{
		"type":  "user_logged_in",
		"email": req.Email,
	})

	return c.JSON(http.StatusOK, tokenResponse{AccessToken: pair.AccessToken})
}

// Refresh mints a new access token from the refresh cookie. The cookie
// is sent automatically by the client; no bearer token is required.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	cookie, err := c.Cookie(auth.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	accessToken, err := h.Tokens.RefreshAccessToken(ctx, cookie.Value)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrTokenMissing):
			l.Warn("refresh_rejected", "status", 403)
			return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
		case errors.Is(err, auth.ErrUserNotFound):
			l.Warn("refresh_rejected", "status", 401, "reason", "user deleted")
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		default:
			l.Error("refresh_error", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
		}
	}

	return c.JSON(http.StatusOK, tokenResponse{AccessToken: accessToken})
}

// Logout clears the refresh cookie. Idempotent: without a cookie it is
// a 204 no-op. The token value itself stays valid until expiry.
func (h *AuthHandler) Logout(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "auth_logout")

	if _, err := c.Cookie(auth.RefreshCookieName); err != nil {
		return c.NoContent(http.StatusNoContent)
	}

	c.SetCookie(auth.ClearRefreshCookie(h.Production))
	l.Info("logout_successful")
	return c.JSON(http.StatusOK, echo.Map{"message": "Cookie cleared"})
}

func (h *AuthHandler) publish(c echo.Context, topic, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "error", err)
	}
}
