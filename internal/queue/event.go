// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedEvent is published once a booking lands a parking slot,
// whether through a paid checkout or an owner walk-in. It carries enough
// detail for downstream consumers to log or notify without touching the
// primary database.
type BookingConfirmedEvent struct {
    BookingID    uint64 `json:"booking_id"`
    Ref          string `json:"ref"`
    UserID       uint64 `json:"user_id"`
    VenueID      uint64 `json:"venue_id"`
    VenueName    string `json:"venue_name"`
    VehicleClass string `json:"vehicle_class"`
    SlotNumber   uint32 `json:"slot_number"`
    SlotLabel    string `json:"slot_label"`
    FareCents    uint32 `json:"fare_cents"`
    ConfirmedAt  string `json:"confirmed_at"`
}
