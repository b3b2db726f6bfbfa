package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/AyushRai7/parkmate/internal/model"
    "github.com/AyushRai7/parkmate/internal/repository"
    "github.com/AyushRai7/parkmate/internal/reservation"
)

// PublicHandler exposes unauthenticated browse endpoints so drivers can
// inspect venues and live availability before registering or logging in.
type PublicHandler struct {
    Venues   *repository.VenueRepo
    Bookings *repository.BookingRepo
}

func NewPublicHandler(v *repository.VenueRepo, b *repository.BookingRepo) *PublicHandler {
    if v == nil || b == nil {
        panic("nil repository passed to NewPublicHandler")
    }
    return &PublicHandler{Venues: v, Bookings: b}
}

type venueResp struct {
    ID        uint64 `json:"id"`
    Name      string `json:"name"`
    Address   string `json:"address"`
    CarSlots  uint32 `json:"car_slots"`
    BikeSlots uint32 `json:"bike_slots"`
}

func toVenueResp(v *model.Venue) venueResp {
    return venueResp{ID: v.ID, Name: v.Name, Address: v.Address, CarSlots: v.CarSlots, BikeSlots: v.BikeSlots}
}

// GetVenues handles GET /v1/venues.  It returns every venue ordered by
// name; an empty array when none exist.
func (h *PublicHandler) GetVenues(c echo.Context) error {
    venues, err := h.Venues.List(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load venues"})
    }
    items := make([]venueResp, 0, len(venues))
    for i := range venues {
        items = append(items, toVenueResp(&venues[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetVenue handles GET /v1/venues/:id.
func (h *PublicHandler) GetVenue(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
    }
    v, err := h.Venues.GetByID(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrVenueNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load venue"})
    }
    return c.JSON(http.StatusOK, toVenueResp(v))
}

type classAvailability struct {
    Capacity  uint32 `json:"capacity"`
    Occupied  uint32 `json:"occupied"`
    Available uint32 `json:"available"`
}

// GetAvailability handles GET /v1/venues/:id/availability.  Counts come
// straight from the confirmed booking set, so a cancelled booking frees
// its slot here immediately.  The numbers are a snapshot: only the
// confirmation transaction itself decides whether a slot is truly free.
func (h *PublicHandler) GetAvailability(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
    }
    ctx := c.Request().Context()
    v, err := h.Venues.GetByID(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrVenueNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load venue"})
    }

    out := make(map[string]classAvailability, 2)
    for _, class := range []string{model.VehicleCar, model.VehicleBike} {
        occupied, err := h.Bookings.CountConfirmed(ctx, v.ID, class)
        if err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to count bookings"})
        }
        total := v.Capacity(class)
        out[class] = classAvailability{
            Capacity:  total,
            Occupied:  occupied,
            Available: reservation.AvailableSlots(total, occupied),
        }
    }
    return c.JSON(http.StatusOK, echo.Map{"venue_id": v.ID, "availability": out})
}
