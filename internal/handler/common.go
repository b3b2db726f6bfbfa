package handler // handler defines the HTTP layer on top of the reservation engine

import (
    "context"
    "errors"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/AyushRai7/parkmate/internal/queue"
    queue_publisher "github.com/AyushRai7/parkmate/internal/service"
    "github.com/AyushRai7/parkmate/internal/repository"
    "github.com/AyushRai7/parkmate/internal/reservation"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
// JWTAuth stores it as uint64 but older tokens may surface other numeric
// types, so the switch stays tolerant.
func getUserID(c echo.Context) (uint64, error) {
    switch t := c.Get("user_id").(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// pathID parses a positive numeric :id path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// publishConfirmed emits a booking.confirmed event for a booking that just
// received its slot. Publishing happens in the background with a fresh
// context: broker trouble must never fail the request that confirmed the
// booking.
func publishConfirmed(d *repository.BookingDetail) {
    if d == nil || d.SlotNumber == nil {
        return
    }
    ev := queue.BookingConfirmedEvent{
        BookingID:    d.ID,
        Ref:          d.Ref,
        UserID:       d.UserID(),
        VenueID:      d.VenueID,
        VenueName:    d.VenueName,
        VehicleClass: d.VehicleClass,
        SlotNumber:   *d.SlotNumber,
        SlotLabel:    reservation.SlotLabel(d.SlotNumber),
        FareCents:    d.FareCents,
        ConfirmedAt:  time.Now().UTC().Format(time.RFC3339),
    }
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        _ = queue_publisher.PublishBookingConfirmed(ctx, ev)
    }()
}
