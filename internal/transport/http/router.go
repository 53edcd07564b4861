package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/C0lies/carbook/internal/handlers"
	"github.com/C0lies/carbook/internal/middleware/authmw"
)

type Deps struct {
	DB             *gorm.DB
	AuthHandler    *handlers.AuthHandler
	UserHandler    *handlers.UserHandler
	VehicleHandler *handlers.VehicleHandler
	SearchHandler  *handlers.SearchHandler
	AuthMW         *authmw.Middleware
}

func Register(e *echo.Echo, d *Deps) {
	api := e.Group("/api")

	api.GET("/health-check", func(c echo.Context) error { return c.String(http.StatusOK, "OK") })

	authGroup := api.Group("/auth")
	authGroup.POST("", d.AuthHandler.Login, loginLimiter())
	authGroup.GET("/refresh", d.AuthHandler.Refresh)
	authGroup.POST("/logout", d.AuthHandler.Logout)

	users := api.Group("/users")
	users.POST("", d.UserHandler.Register)
	users.GET("", d.UserHandler.List, d.AuthMW.RequireAdmin)
	users.GET("/me", d.UserHandler.Me, d.AuthMW.RequireAuth)
	users.GET("/:id", d.UserHandler.Get, d.AuthMW.RequireAuth)
	users.PUT("/:id", d.UserHandler.Update, d.AuthMW.RequireAuth)
	users.DELETE("/:id", d.UserHandler.Delete, d.AuthMW.RequireAuth)

	vehicles := api.Group("/vehicles", d.AuthMW.RequireAuth)
	vehicles.POST("", d.VehicleHandler.Create)
	vehicles.GET("", d.VehicleHandler.List)
	if d.SearchHandler != nil {
		vehicles.GET("/search", d.SearchHandler.Search)
	}
	vehicles.GET("/:id", d.VehicleHandler.Get)
	vehicles.PUT("/:id", d.VehicleHandler.Update)
	vehicles.DELETE("/:id", d.VehicleHandler.Delete)
}

// loginLimiter throttles the login endpoint to 5 attempts per minute
// per IP. The response is uniform regardless of credential validity.
func loginLimiter() echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(5.0 / 60.0),
		Burst:     5,
		ExpiresIn: 3 * time.Minute,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests,
				"Too many login attempts, please try again after one minute :)")
		},
	})
}
