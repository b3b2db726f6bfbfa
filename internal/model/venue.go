package model

import "time"

// Vehicle classes supported by a venue.  Capacity and slot numbering are
// tracked independently per class: a car slot P3 and a bike slot P3 are
// different physical spots.
const (
	VehicleCar  = "CAR"
	VehicleBike = "BIKE"
)

// ValidVehicleClass reports whether the given class is one of the two
// supported vehicle classes.
func ValidVehicleClass(class string) bool {
	return class == VehicleCar || class == VehicleBike
}

// Venue represents a parking venue owned by a user.  Capacities are fixed
// at creation; the booking path never mutates them.  This struct
// corresponds to a row in the `venues` table.
//
// Fields:
//  ID         – primary key identifier.
//  OwnerID    – user ID of the venue owner.
//  Name       – unique venue name (stored upper-cased).
//  Address    – free-form location string.
//  CarSlots   – total car slots, numbered 1..CarSlots.
//  BikeSlots  – total bike slots, numbered 1..BikeSlots.
//  CreatedAt  – timestamp when the venue was created.
//  UpdatedAt  – timestamp of last update.
type Venue struct {
	ID        uint64    // venues.id
	OwnerID   uint64    // venues.owner_id
	Name      string    // venues.name
	Address   string    // venues.address
	CarSlots  uint32    // venues.car_slots
	BikeSlots uint32    // venues.bike_slots
	CreatedAt time.Time // venues.created_at
	UpdatedAt time.Time // venues.updated_at
}

// Capacity returns the total slot count for the given vehicle class.
// Unknown classes have zero capacity.
func (v *Venue) Capacity(class string) uint32 {
	switch class {
	case VehicleCar:
		return v.CarSlots
	case VehicleBike:
		return v.BikeSlots
	}
	return 0
}
