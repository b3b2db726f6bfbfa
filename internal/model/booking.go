package model

import "time"

// Booking lifecycle states.  PENDING bookings hold no slot; a slot is
// assigned exactly once, at the PENDING -> CONFIRMED transition.
// CONFIRMED, CANCELLED and EXPIRED are terminal, except that a CONFIRMED
// booking may still be cancelled explicitly (which releases its slot).
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
	StatusExpired   = "EXPIRED"
)

// Booking records a user's reservation of a single parking slot at a
// venue.  SlotNumber is nil until the booking is confirmed.  ExpiresAt is
// the end of the hold window; an unconfirmed booking past this point is
// flipped to EXPIRED on the next confirmation attempt rather than by a
// background sweep.
//
// Fields:
//  ID           – primary key identifier.
//  Ref          – opaque public reference carried in checkout metadata.
//  VenueID      – venue being booked.
//  UserID       – user who made the booking.
//  VehicleClass – CAR or BIKE.
//  CustomerName – contact name.
//  Phone        – contact phone number.
//  Plate        – vehicle registration plate.
//  SlotNumber   – assigned slot in [1, capacity], nil while unassigned.
//  Status       – PENDING, CONFIRMED, CANCELLED or EXPIRED.
//  FareCents    – fixed fare charged for this booking.
//  CreatedAt    – creation timestamp.
//  ExpiresAt    – end of the reservation hold window.
type Booking struct {
	ID           uint64    // bookings.id
	Ref          string    // bookings.ref
	VenueID      uint64    // bookings.venue_id
	UserID       uint64    // bookings.user_id
	VehicleClass string    // bookings.vehicle_class
	CustomerName string    // bookings.customer_name
	Phone        string    // bookings.phone
	Plate        string    // bookings.plate
	SlotNumber   *uint32   // bookings.slot_number (nullable)
	Status       string    // bookings.status
	FareCents    uint32    // bookings.fare_cents
	CreatedAt    time.Time // bookings.created_at
	ExpiresAt    time.Time // bookings.expires_at
}

// Occupies reports whether this booking currently counts against the
// venue's capacity: confirmed with an assigned slot.
func (b *Booking) Occupies() bool {
	return b.Status == StatusConfirmed && b.SlotNumber != nil
}

// ExpiredAt reports whether the hold window has elapsed at the given
// instant.  Only meaningful for PENDING bookings.
func (b *Booking) ExpiredAt(now time.Time) bool {
	return now.After(b.ExpiresAt)
}
