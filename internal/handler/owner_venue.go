package handler

import (
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/AyushRai7/parkmate/internal/config"
    "github.com/AyushRai7/parkmate/internal/model"
    "github.com/AyushRai7/parkmate/internal/repository"
    "github.com/AyushRai7/parkmate/internal/reservation"
)

// OwnerHandler serves venue operators: venue creation, booking overview
// and walk-in bookings taken at the gate.  Middleware guarantees the
// OWNER role; venue ownership is verified per request.
type OwnerHandler struct {
    Cfg      config.Config
    Venues   *repository.VenueRepo
    Bookings *repository.BookingRepo
    Engine   *reservation.Engine
}

// NewOwnerHandler constructs an OwnerHandler and panics if any
// dependency is nil.
func NewOwnerHandler(cfg config.Config, venues *repository.VenueRepo, bookings *repository.BookingRepo, engine *reservation.Engine) *OwnerHandler {
    if venues == nil || bookings == nil || engine == nil {
        panic("nil dependency passed to NewOwnerHandler")
    }
    return &OwnerHandler{Cfg: cfg, Venues: venues, Bookings: bookings, Engine: engine}
}

type createVenueReq struct {
    Name      string `json:"name"`
    Address   string `json:"address"`
    CarSlots  uint32 `json:"car_slots"`
    BikeSlots uint32 `json:"bike_slots"`
}

// CreateVenue handles POST /v1/owner/venues.  Venue names are unique
// after upper-casing; capacities are fixed at creation and never change
// on the reservation path.
func (h *OwnerHandler) CreateVenue(c echo.Context) error {
    ownerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req createVenueReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Name = strings.TrimSpace(req.Name)
    if req.Name == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
    }
    if req.CarSlots == 0 && req.BikeSlots == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "venue needs at least one slot"})
    }

    v := &model.Venue{
        OwnerID:   ownerID,
        Name:      req.Name,
        Address:   strings.TrimSpace(req.Address),
        CarSlots:  req.CarSlots,
        BikeSlots: req.BikeSlots,
    }
    if err := h.Venues.Create(c.Request().Context(), v); err != nil {
        if errors.Is(err, repository.ErrVenueExists) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "venue name already exists"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create venue failed"})
    }
    return c.JSON(http.StatusCreated, toVenueResp(v))
}

// ListVenues handles GET /v1/owner/venues.
func (h *OwnerHandler) ListVenues(c echo.Context) error {
    ownerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    venues, err := h.Venues.ListByOwner(c.Request().Context(), ownerID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load venues"})
    }
    items := make([]venueResp, 0, len(venues))
    for i := range venues {
        items = append(items, toVenueResp(&venues[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// VenueBookings handles GET /v1/owner/venues/:id/bookings.  The full
// booking list for a venue, all statuses, newest first.
func (h *OwnerHandler) VenueBookings(c echo.Context) error {
    ownerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    venueID, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
    }
    details, err := h.Bookings.ListByVenueForOwner(c.Request().Context(), venueID, ownerID)
    if err != nil {
        switch {
        case errors.Is(err, repository.ErrVenueNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
        case errors.Is(err, repository.ErrForbidden):
            return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
    }
    items := make([]bookingDetailResp, 0, len(details))
    for i := range details {
        items = append(items, toDetailResp(&details[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

type walkInReq struct {
    VehicleType  string `json:"vehicle_type"` // CAR | BIKE
    CustomerName string `json:"customer_name"`
    Phone        string `json:"phone"`
    Plate        string `json:"plate"`
}

// WalkIn handles POST /v1/owner/venues/:id/walkin.  A gate booking paid
// in person: the slot is assigned eagerly inside the creation
// transaction and the booking starts out CONFIRMED.  409 when the venue
// is full for the vehicle class.
func (h *OwnerHandler) WalkIn(c echo.Context) error {
    ownerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    venueID, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid venue id"})
    }
    var req walkInReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.VehicleType = strings.ToUpper(strings.TrimSpace(req.VehicleType))
    req.CustomerName = strings.TrimSpace(req.CustomerName)
    req.Plate = strings.ToUpper(strings.TrimSpace(req.Plate))
    if req.CustomerName == "" || req.Plate == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer_name and plate required"})
    }

    ctx := c.Request().Context()
    v, err := h.Venues.GetByID(ctx, venueID)
    if err != nil {
        if errors.Is(err, repository.ErrVenueNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load venue"})
    }
    if v.OwnerID != ownerID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }

    b, err := h.Engine.ReserveWalkIn(ctx, reservation.ReserveInput{
        VenueID:      venueID,
        UserID:       ownerID,
        VehicleClass: req.VehicleType,
        CustomerName: req.CustomerName,
        Phone:        strings.TrimSpace(req.Phone),
        Plate:        req.Plate,
        FareCents:    h.Cfg.FareCents(req.VehicleType),
    })
    if err != nil {
        switch {
        case errors.Is(err, reservation.ErrInvalidVehicleClass):
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "vehicle_type must be CAR or BIKE"})
        case errors.Is(err, repository.ErrVenueNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "venue not found"})
        case errors.Is(err, reservation.ErrNoCapacity):
            return c.JSON(http.StatusConflict, echo.Map{"error": "no free slot for vehicle class"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "walk-in booking failed"})
    }

    if d, derr := h.Bookings.GetDetail(ctx, b.ID); derr == nil {
        publishConfirmed(d)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "booking_id":  b.ID,
        "ref":         b.Ref,
        "status":      b.Status,
        "slot_number": b.SlotNumber,
        "slot_label":  reservation.SlotLabel(b.SlotNumber),
        "fare_cents":  b.FareCents,
    })
}

// CancelBooking handles DELETE /v1/owner/bookings/:id.  Owners may
// cancel any booking at one of their venues, for instance after a
// no-show.
func (h *OwnerHandler) CancelBooking(c echo.Context) error {
    ownerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    ctx := c.Request().Context()

    d, err := h.Bookings.GetDetail(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrBookingNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load booking"})
    }
    v, err := h.Venues.GetByID(ctx, d.VenueID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load venue"})
    }
    if v.OwnerID != ownerID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }

    if err := h.Engine.Cancel(ctx, id); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
    }
    return c.NoContent(http.StatusNoContent)
}
