package router

import (
    "github.com/labstack/echo/v4"

    "github.com/AyushRai7/parkmate/internal/handler"
    "github.com/AyushRai7/parkmate/internal/middleware"
    "github.com/AyushRai7/parkmate/internal/model"
)

// RegisterCustomer registers driver-scoped endpoints under /v1.  All
// routes require a valid JWT and the USER role.  Drivers can create
// bookings, poll for confirmation after checkout, list and cancel their
// own bookings.  rateLimit is applied to booking creation only; pass nil
// to disable.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, jwtSecret string, rateLimit echo.MiddlewareFunc) {
    g := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleUser),
    )

    if rateLimit != nil {
        g.POST("/bookings", h.CreateBooking, rateLimit)
    } else {
        g.POST("/bookings", h.CreateBooking)
    }
    g.GET("/my-bookings", h.ListBookings)
    g.GET("/bookings/:id", h.GetBooking)
    g.POST("/bookings/:id/confirm", h.ConfirmBooking)
    g.DELETE("/bookings/:id", h.CancelBooking)
}
