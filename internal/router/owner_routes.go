package router

import (
    "github.com/labstack/echo/v4"

    "github.com/AyushRai7/parkmate/internal/handler"
    "github.com/AyushRai7/parkmate/internal/middleware"
    "github.com/AyushRai7/parkmate/internal/model"
)

// RegisterOwner registers operator endpoints under /v1/owner.  All
// routes require a valid JWT and the OWNER role.  Owners manage venues,
// inspect their bookings, take walk-in bookings at the gate and cancel
// bookings at their venues.
func RegisterOwner(e *echo.Echo, o *handler.OwnerHandler, jwtSecret string) {
    g := e.Group(
        "/v1/owner",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleOwner),
    )

    g.POST("/venues", o.CreateVenue)
    g.GET("/venues", o.ListVenues)
    g.GET("/venues/:id/bookings", o.VenueBookings)
    // Walk-ins are paid at the gate, so the slot is assigned immediately.
    g.POST("/venues/:id/walkin", o.WalkIn)
    g.DELETE("/bookings/:id", o.CancelBooking)
}
