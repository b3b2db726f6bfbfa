package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/AyushRai7/parkmate/internal/handler"
    "github.com/AyushRai7/parkmate/internal/middleware"
    "github.com/AyushRai7/parkmate/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    // Used by load balancers and monitoring to verify the service is up.
    e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints and the protected
// /v1/me profile route.  Unauthenticated operations live under
// /v1/auth, while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
    g := e.Group("/v1/auth")
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)

    auth := e.Group("/v1")
    auth.Use(middleware.JWTAuth(jwtSecret))
    // Both roles may inspect their own profile.
    auth.Use(middleware.RequireRole(model.RoleUser, model.RoleOwner))
    auth.GET("/me", a.Me)
}

// RegisterPublic registers unauthenticated browse endpoints.  Guests can
// list venues and check live availability before creating an account.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler) {
    e.GET("/v1/venues", p.GetVenues)
    e.GET("/v1/venues/:id", p.GetVenue)
    // Availability is derived from confirmed bookings, so the numbers a
    // guest sees here already reflect cancellations.
    e.GET("/v1/venues/:id/availability", p.GetAvailability)
}

// RegisterWebhook registers the payment gateway callback.  The route is
// unauthenticated; the handler verifies the gateway's signature instead.
func RegisterWebhook(e *echo.Echo, w *handler.WebhookHandler) {
    e.POST("/v1/payments/webhook", w.Handle)
}
