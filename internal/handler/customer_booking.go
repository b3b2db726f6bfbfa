package handler

import (
    "errors"
    "log"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/AyushRai7/parkmate/internal/config"
    "github.com/AyushRai7/parkmate/internal/model"
    "github.com/AyushRai7/parkmate/internal/payment"
    "github.com/AyushRai7/parkmate/internal/repository"
    "github.com/AyushRai7/parkmate/internal/reservation"
)

// CustomerHandler serves drivers: booking creation with a payment
// checkout, confirmation polling, listing and cancellation.  All methods
// assume JWT authentication and the USER role were enforced by
// middleware; ownership of individual bookings is checked here.
type CustomerHandler struct {
    Cfg      config.Config
    Engine   *reservation.Engine
    Bookings *repository.BookingRepo
    Gateway  *payment.Gateway
}

// NewCustomerHandler constructs a CustomerHandler.  All dependencies
// must be non-nil.
func NewCustomerHandler(cfg config.Config, engine *reservation.Engine, bookings *repository.BookingRepo, gw *payment.Gateway) *CustomerHandler {
    if engine == nil || bookings == nil || gw == nil {
        panic("nil dependency passed to NewCustomerHandler")
    }
    return &CustomerHandler{Cfg: cfg, Engine: engine, Bookings: bookings, Gateway: gw}
}

type createBookingReq struct {
    VenueID      uint64 `json:"venue_id"`
    VehicleType  string `json:"vehicle_type"` // CAR | BIKE
    CustomerName string `json:"customer_name"`
    Phone        string `json:"phone"`
    Plate        string `json:"plate"`
}

// bookingDetailResp decorates a BookingDetail with the display label for
// its slot ("P7", or "-" while unassigned).
type bookingDetailResp struct {
    repository.BookingDetail
    SlotLabel string `json:"slot_label"`
}

func toDetailResp(d *repository.BookingDetail) bookingDetailResp {
    return bookingDetailResp{BookingDetail: *d, SlotLabel: reservation.SlotLabel(d.SlotNumber)}
}

// CreateBooking handles POST /v1/bookings.  It creates a PENDING booking
// without a slot and returns a checkout URL; the slot is assigned only
// when payment completes and the booking is confirmed.  409 means the
// venue has no capacity for the vehicle class at all.
func (h *CustomerHandler) CreateBooking(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req createBookingReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.VehicleType = strings.ToUpper(strings.TrimSpace(req.VehicleType))
    req.CustomerName = strings.TrimSpace(req.CustomerName)
    req.Plate = strings.ToUpper(strings.TrimSpace(req.Plate))
    if req.VenueID == 0 || req.CustomerName == "" || req.Plate == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "venue_id, customer_name and plate required"})
    }

    ctx := c.Request().Context()
    b, err := h.Engine.Reserve(ctx, reservation.ReserveInput{
        VenueID:      req.VenueID,
        UserID:       userID,
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
            return c.JSON(http.StatusConflict, echo.Map{"error": "no capacity for vehicle class"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create booking failed"})
    }

    checkoutURL, err := h.Gateway.CreateCheckout(ctx, payment.CheckoutInput{
        BookingID:   b.ID,
        Ref:         b.Ref,
        AmountCents: b.FareCents,
        Description: req.VehicleType + " parking slot reservation",
    })
    if err != nil {
        // The hold is useless without a payment session; release it so the
        // client can retry cleanly.
        if cerr := h.Engine.Cancel(ctx, b.ID); cerr != nil {
            log.Printf("booking %d: release after checkout failure: %v", b.ID, cerr)
        }
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable"})
    }

    return c.JSON(http.StatusCreated, echo.Map{
        "booking_id":   b.ID,
        "ref":          b.Ref,
        "status":       b.Status,
        "fare_cents":   b.FareCents,
        "expires_at":   b.ExpiresAt.UTC().Format(time.RFC3339),
        "checkout_url": checkoutURL,
    })
}

// ConfirmBooking handles POST /v1/bookings/:id/confirm.  Clients poll it
// after returning from checkout.  Confirming an already CONFIRMED
// booking returns its slot again with 200; an expired hold returns 410.
func (h *CustomerHandler) ConfirmBooking(c echo.Context) error {
    userID, err := getUserID(c)
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
    if d.UserID() != userID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }

    if _, err := h.Engine.Confirm(ctx, id); err != nil {
        switch {
        case errors.Is(err, reservation.ErrBookingExpired):
            return c.JSON(http.StatusGone, echo.Map{"error": "booking hold expired"})
        case errors.Is(err, reservation.ErrBookingCancelled):
            return c.JSON(http.StatusConflict, echo.Map{"error": "booking is cancelled"})
        case errors.Is(err, reservation.ErrNoCapacity):
            return c.JSON(http.StatusConflict, echo.Map{"error": "no free slot; booking still pending"})
        case errors.Is(err, repository.ErrBookingNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        case errors.Is(err, repository.ErrConflict):
            // Lost a race against a concurrent cancel; the client should
            // re-read the booking.
            return c.JSON(http.StatusConflict, echo.Map{"error": "booking state changed"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirm failed"})
    }

    wasConfirmed := d.Status == model.StatusConfirmed
    d, err = h.Bookings.GetDetail(ctx, id)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load booking"})
    }
    if !wasConfirmed {
        publishConfirmed(d)
    }
    return c.JSON(http.StatusOK, toDetailResp(d))
}

// GetBooking handles GET /v1/bookings/:id.
func (h *CustomerHandler) GetBooking(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    d, err := h.Bookings.GetDetail(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrBookingNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load booking"})
    }
    if d.UserID() != userID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    return c.JSON(http.StatusOK, toDetailResp(d))
}

// ListBookings handles GET /v1/my-bookings.  Newest first; an empty
// array when the user has no bookings.
func (h *CustomerHandler) ListBookings(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    details, err := h.Bookings.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
    }
    items := make([]bookingDetailResp, 0, len(details))
    for i := range details {
        items = append(items, toDetailResp(&details[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CancelBooking handles DELETE /v1/bookings/:id.  A PENDING booking is
// removed, a CONFIRMED one is flagged CANCELLED and frees its slot.
// Cancelling twice is a no-op.
func (h *CustomerHandler) CancelBooking(c echo.Context) error {
    userID, err := getUserID(c)
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
    if d.UserID() != userID {
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }

    if err := h.Engine.Cancel(ctx, id); err != nil {
        if errors.Is(err, repository.ErrBookingNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
    }
    return c.NoContent(http.StatusNoContent)
}
