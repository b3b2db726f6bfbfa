package handler

import (
    "context"
    "errors"
    "io"
    "log"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/AyushRai7/parkmate/internal/model"
    "github.com/AyushRai7/parkmate/internal/payment"
    "github.com/AyushRai7/parkmate/internal/repository"
    "github.com/AyushRai7/parkmate/internal/reservation"
)

// Stripe keeps webhook payloads well under this.
const maxWebhookBody = 1 << 16

// BookingConfirmer is the slice of the reservation engine the webhook
// needs.
type BookingConfirmer interface {
    Confirm(ctx context.Context, bookingID uint64) (*model.Booking, error)
}

// BookingReader loads the detail view used for the confirmation event.
type BookingReader interface {
    GetDetail(ctx context.Context, id uint64) (*repository.BookingDetail, error)
}

// WebhookHandler receives payment gateway callbacks.  Confirmation via
// webhook and confirmation via client polling share the engine's Confirm,
// so duplicate deliveries and poll/webhook races all collapse into the
// idempotent path.
type WebhookHandler struct {
    Secret   string
    Engine   BookingConfirmer
    Bookings BookingReader
}

func NewWebhookHandler(secret string, engine BookingConfirmer, bookings BookingReader) *WebhookHandler {
    if engine == nil || bookings == nil {
        panic("nil dependency passed to NewWebhookHandler")
    }
    return &WebhookHandler{Secret: secret, Engine: engine, Bookings: bookings}
}

// Handle processes POST /v1/payments/webhook.  A bad signature is the
// only unacknowledged outcome: everything else returns 200 so the
// gateway stops retrying.  A payment arriving after the hold expired is
// acknowledged and logged; the money is reconciled out of band.
func (h *WebhookHandler) Handle(c echo.Context) error {
    payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
    }

    ev, err := payment.VerifyEvent(payload, c.Request().Header.Get("Stripe-Signature"), h.Secret)
    if err != nil {
        if errors.Is(err, payment.ErrInvalidSignature) {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
        }
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
    }

    bookingID, ok, err := payment.CompletedBookingID(ev)
    if err != nil {
        log.Printf("webhook: %s event without usable booking metadata: %v", ev.Type, err)
        return c.JSON(http.StatusOK, echo.Map{"received": true})
    }
    if !ok {
        // Event type we do not act on.
        return c.JSON(http.StatusOK, echo.Map{"received": true})
    }

    ctx := c.Request().Context()
    if d, derr := h.Bookings.GetDetail(ctx, bookingID); derr == nil && d.Status == model.StatusConfirmed {
        // Duplicate delivery; already confirmed and announced.
        return c.JSON(http.StatusOK, echo.Map{"received": true, "confirmed": true})
    }
    if _, err := h.Engine.Confirm(ctx, bookingID); err != nil {
        switch {
        case errors.Is(err, reservation.ErrBookingExpired),
            errors.Is(err, reservation.ErrBookingCancelled),
            errors.Is(err, reservation.ErrNoCapacity),
            errors.Is(err, repository.ErrBookingNotFound):
            log.Printf("webhook: booking %d not confirmable: %v", bookingID, err)
            return c.JSON(http.StatusOK, echo.Map{"received": true, "confirmed": false})
        }
        // Transient failure; let the gateway retry.
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirm failed"})
    }

    if d, derr := h.Bookings.GetDetail(ctx, bookingID); derr == nil {
        publishConfirmed(d)
    }
    return c.JSON(http.StatusOK, echo.Map{"received": true, "confirmed": true})
}
