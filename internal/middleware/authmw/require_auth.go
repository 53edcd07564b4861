package authmw

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/C0lies/carbook/internal/auth"
	"github.com/C0lies/carbook/internal/logging"
	"github.com/C0lies/carbook/internal/models"
)

// Middleware gates protected routes on a valid bearer access token.
// Missing credential is 401, a failed signature/expiry check is 403,
// a token whose user has since been deleted is 401 again.
type Middleware struct {
	Tokens *auth.TokenService
}

type validatorFunc func(claims *auth.AccessClaims) error

func (m *Middleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, func(claims *auth.AccessClaims) error {
		if claims.Role != "admin" {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

func (m *Middleware) requireAuthWithValidator(next echo.HandlerFunc, validator validatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("middleware", "require_auth")

		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			return echo.NewHTTPError(http.StatusUnauthorized, "no token provided")
		}

		claims, err := m.Tokens.VerifyAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			if errors.Is(err, auth.ErrSecretMissing) {
				l.Error("auth_config_error", "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}
			return echo.NewHTTPError(http.StatusForbidden, "invalid or expired token")
		}

		// Catches the race where the account was deleted after issuance.
		var user models.User
		if err := m.Tokens.DB.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
			}
			l.Error("auth_store_error", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}

		if validator != nil {
			if err := validator(claims); err != nil {
				return err
			}
		}

		setUserContext(c, &user)
		return next(c)
	}
}

func setUserContext(c echo.Context, user *models.User) {
	c.Set("userID", user.ID)
	c.Set("email", user.Email)
	c.Set("role", user.Role)
}

func UserID(c echo.Context) uint {
	id, _ := c.Get("userID").(uint)
	return id
}

func Role(c echo.Context) string {
	role, _ := c.Get("role").(string)
	return role
}
