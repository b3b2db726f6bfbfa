package reservation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AyushRai7/parkmate/internal/model"
	"github.com/AyushRai7/parkmate/internal/repository"
)

// ErrNoCapacity is returned when slot assignment finds every slot of the
// requested vehicle class occupied.  On the confirmation path the
// booking stays PENDING so the caller may retry or let the hold expire.
var ErrNoCapacity = errors.New("no free slot for vehicle class")

// ErrBookingExpired is returned when the booking's hold window elapsed
// before confirmation.  The booking has been moved to EXPIRED.
var ErrBookingExpired = errors.New("booking hold expired")

// ErrBookingCancelled is returned when confirming a booking that was
// cancelled in the meantime.
var ErrBookingCancelled = errors.New("booking is cancelled")

// ErrInvalidVehicleClass is returned for a vehicle class other than CAR
// or BIKE.
var ErrInvalidVehicleClass = errors.New("invalid vehicle class")

// TxRunner executes fn inside a database transaction, committing when fn
// returns nil and rolling back otherwise.  The engine never commits
// partial writes: every read-compute-write sequence runs through this.
type TxRunner func(ctx context.Context, fn func(tx *sql.Tx) error) error

// RunInTx returns the TxRunner backed by the given database handle.
func RunInTx(db *sql.DB) TxRunner {
	return func(ctx context.Context, fn func(tx *sql.Tx) error) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()
		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		committed = true
		return nil
	}
}

// VenueStore is the venue access the engine needs.  GetByIDForUpdateTx
// must lock the venue row for the remainder of the transaction; that
// lock is what serializes concurrent confirmations for the same venue
// across service instances.
type VenueStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Venue, error)
	GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Venue, error)
}

// BookingStore is the booking access the engine needs.
// UpdateStatusAndSlotTx must be conditional on the current status and
// return repository.ErrConflict on a mismatch.
type BookingStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
	ListConfirmedSlotsTx(ctx context.Context, tx *sql.Tx, venueID uint64, class string) ([]uint32, error)
	UpdateStatusAndSlotTx(ctx context.Context, tx *sql.Tx, id uint64, expected, next string, slot *uint32) error
	DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error
}

// Engine drives booking creation and the confirmation state machine.
// The deferred-assignment policy is primary: a booking is created
// PENDING without a slot and without consuming capacity, and the slot is
// computed only at confirmation time against the live confirmed set.
// Eager assignment survives solely for owner walk-in bookings.
type Engine struct {
	run      TxRunner
	venues   VenueStore
	bookings BookingStore
	hold     time.Duration

	now    func() time.Time
	newRef func() string
}

// NewEngine constructs an Engine.  hold is the reservation hold window
// applied to deferred bookings.
func NewEngine(run TxRunner, venues VenueStore, bookings BookingStore, hold time.Duration) *Engine {
	if run == nil || venues == nil || bookings == nil {
		panic("nil dependency passed to NewEngine")
	}
	return &Engine{
		run:      run,
		venues:   venues,
		bookings: bookings,
		hold:     hold,
		now:      func() time.Time { return time.Now().UTC() },
		newRef:   uuid.NewString,
	}
}

// ReserveInput carries everything needed to create a booking.
type ReserveInput struct {
	VenueID      uint64
	UserID       uint64
	VehicleClass string
	CustomerName string
	Phone        string
	Plate        string
	FareCents    uint32
}

// Reserve creates a PENDING booking with no slot assigned (deferred
// policy).  Capacity is not consumed here; it is checked only so that a
// venue with zero slots of the class rejects immediately.  The caller
// redirects the user to payment and later confirms via Confirm.
func (e *Engine) Reserve(ctx context.Context, in ReserveInput) (*model.Booking, error) {
	if !model.ValidVehicleClass(in.VehicleClass) {
		return nil, ErrInvalidVehicleClass
	}
	v, err := e.venues.GetByID(ctx, in.VenueID)
	if err != nil {
		return nil, err
	}
	if v.Capacity(in.VehicleClass) == 0 {
		return nil, ErrNoCapacity
	}
	now := e.now()
	b := &model.Booking{
		Ref:          e.newRef(),
		VenueID:      in.VenueID,
		UserID:       in.UserID,
		VehicleClass: in.VehicleClass,
		CustomerName: in.CustomerName,
		Phone:        in.Phone,
		Plate:        in.Plate,
		Status:       model.StatusPending,
		FareCents:    in.FareCents,
		ExpiresAt:    now.Add(e.hold),
	}
	if err := e.run(ctx, func(tx *sql.Tx) error {
		return e.bookings.CreateTx(ctx, tx, b)
	}); err != nil {
		return nil, err
	}
	return b, nil
}

// ReserveWalkIn creates a booking with its slot assigned inside the same
// transaction (eager policy).  Retained for owner walk-in desk bookings
// where no payment round-trip exists; the deferred path must be used
// whenever confirmation is asynchronous.
func (e *Engine) ReserveWalkIn(ctx context.Context, in ReserveInput) (*model.Booking, error) {
	if !model.ValidVehicleClass(in.VehicleClass) {
		return nil, ErrInvalidVehicleClass
	}
	now := e.now()
	b := &model.Booking{
		Ref:          e.newRef(),
		VenueID:      in.VenueID,
		UserID:       in.UserID,
		VehicleClass: in.VehicleClass,
		CustomerName: in.CustomerName,
		Phone:        in.Phone,
		Plate:        in.Plate,
		Status:       model.StatusConfirmed,
		FareCents:    in.FareCents,
		ExpiresAt:    now,
	}
	if err := e.run(ctx, func(tx *sql.Tx) error {
		v, err := e.venues.GetByIDForUpdateTx(ctx, tx, in.VenueID)
		if err != nil {
			return err
		}
		occupied, err := e.bookings.ListConfirmedSlotsTx(ctx, tx, in.VenueID, in.VehicleClass)
		if err != nil {
			return err
		}
		slot, ok := NextFreeSlot(v.Capacity(in.VehicleClass), occupied)
		if !ok {
			return ErrNoCapacity
		}
		b.SlotNumber = &slot
		return e.bookings.CreateTx(ctx, tx, b)
	}); err != nil {
		return nil, err
	}
	return b, nil
}

// Confirm drives a booking to CONFIRMED and assigns its slot.  It is the
// single confirmation entry point for both the polling endpoint and the
// payment webhook, and is safe to call any number of times: an already
// CONFIRMED booking returns its existing slot without error.
//
// A PENDING booking past its hold window transitions to EXPIRED and
// never receives a slot, even when capacity is available.  When every
// slot is occupied, ErrNoCapacity is returned and the booking remains
// PENDING.
func (e *Engine) Confirm(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	b, err := e.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case model.StatusConfirmed:
		return b, nil
	case model.StatusCancelled:
		return nil, ErrBookingCancelled
	case model.StatusExpired:
		return nil, ErrBookingExpired
	}

	if b.ExpiredAt(e.now()) {
		if err := e.expire(ctx, bookingID); err != nil {
			return nil, err
		}
		// The expiry guard lost a race against a concurrent confirm; the
		// booking holds a slot after all.
		return e.bookings.GetByID(ctx, bookingID)
	}

	var out *model.Booking
	expired := false
	err = e.run(ctx, func(tx *sql.Tx) error {
		// Lock the venue row first: from here until commit no other
		// confirmation for this venue can run.
		v, err := e.venues.GetByIDForUpdateTx(ctx, tx, b.VenueID)
		if err != nil {
			return err
		}
		cur, err := e.bookings.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		switch cur.Status {
		case model.StatusConfirmed:
			// A concurrent webhook or poll won the race; absorb it.
			out = cur
			return nil
		case model.StatusCancelled:
			return ErrBookingCancelled
		case model.StatusExpired:
			return ErrBookingExpired
		}
		if cur.ExpiredAt(e.now()) {
			// Commit the EXPIRED flip even though the confirm fails.
			expired = true
			return e.bookings.UpdateStatusAndSlotTx(ctx, tx, bookingID, model.StatusPending, model.StatusExpired, nil)
		}
		occupied, err := e.bookings.ListConfirmedSlotsTx(ctx, tx, cur.VenueID, cur.VehicleClass)
		if err != nil {
			return err
		}
		slot, ok := NextFreeSlot(v.Capacity(cur.VehicleClass), occupied)
		if !ok {
			return ErrNoCapacity
		}
		if err := e.bookings.UpdateStatusAndSlotTx(ctx, tx, bookingID, model.StatusPending, model.StatusConfirmed, &slot); err != nil {
			return err
		}
		cur.Status = model.StatusConfirmed
		cur.SlotNumber = &slot
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, ErrBookingExpired
	}
	return out, nil
}

// expire flips a PENDING booking to EXPIRED.  A conflict means a
// concurrent request transitioned it first; the re-read decides what the
// caller sees.
func (e *Engine) expire(ctx context.Context, bookingID uint64) error {
	err := e.run(ctx, func(tx *sql.Tx) error {
		return e.bookings.UpdateStatusAndSlotTx(ctx, tx, bookingID, model.StatusPending, model.StatusExpired, nil)
	})
	if err != nil && errors.Is(err, repository.ErrConflict) {
		cur, rerr := e.bookings.GetByID(ctx, bookingID)
		if rerr != nil {
			return rerr
		}
		switch cur.Status {
		case model.StatusCancelled:
			return ErrBookingCancelled
		case model.StatusExpired, model.StatusPending:
			return ErrBookingExpired
		default:
			// Confirmed under the wire: the booking did get its slot.
			// Return nil so the caller re-reads and reports it.
			return nil
		}
	}
	if err != nil {
		return err
	}
	return ErrBookingExpired
}

// Cancel cancels a booking.  A still-PENDING booking is deleted outright;
// a CONFIRMED booking is flagged CANCELLED so the paid record stays
// queryable while its slot immediately falls out of the confirmed set
// and becomes eligible for reassignment.  Cancelling a booking that is
// already CANCELLED or EXPIRED is a no-op, not an error.  Authorization
// is the caller's responsibility.
func (e *Engine) Cancel(ctx context.Context, bookingID uint64) error {
	return e.run(ctx, func(tx *sql.Tx) error {
		cur, err := e.bookings.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		switch cur.Status {
		case model.StatusCancelled, model.StatusExpired:
			return nil
		case model.StatusPending:
			return e.bookings.DeleteTx(ctx, tx, bookingID)
		default: // CONFIRMED
			err := e.bookings.UpdateStatusAndSlotTx(ctx, tx, bookingID, model.StatusConfirmed, model.StatusCancelled, nil)
			if errors.Is(err, repository.ErrConflict) {
				// Concurrent cancel; idempotent.
				return nil
			}
			return err
		}
	})
}
