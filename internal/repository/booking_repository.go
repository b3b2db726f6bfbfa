package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/AyushRai7/parkmate/internal/model"
)

// BookingRepo provides CRUD operations for bookings.  The repository owns
// the booking lifecycle rows exclusively; confirmed slot numbers are
// always derived by querying this table rather than being duplicated on
// the venue, so the occupied set cannot drift from the booking records.
// All timestamp fields are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingCols = "id, ref, venue_id, user_id, vehicle_class, customer_name, phone, plate, slot_number, status, fare_cents, created_at, expires_at"

// CreateTx inserts a new booking within the scope of an existing
// transaction.  Status, SlotNumber and ExpiresAt are taken from the
// record as-is: the deferred path inserts PENDING with a nil slot, the
// walk-in path inserts CONFIRMED with its slot already assigned.  The
// generated ID and the created_at timestamp are populated on the record.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (ref, venue_id, user_id, vehicle_class, customer_name, phone, plate, slot_number, status, fare_cents, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var slot interface{}
	if b.SlotNumber != nil {
		slot = *b.SlotNumber
	}
	result, err := tx.ExecContext(ctx, q,
		b.Ref, b.VenueID, b.UserID, b.VehicleClass, b.CustomerName, b.Phone, b.Plate,
		slot, b.Status, b.FareCents, b.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return tx.QueryRowContext(ctx, `SELECT created_at FROM bookings WHERE id = ?`, b.ID).Scan(&b.CreatedAt)
}

// GetByID returns a booking by id, or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = "SELECT " + bookingCols + " FROM bookings WHERE id = ?"
	return scanBooking(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDTx re-reads a booking inside a transaction.  The confirmation
// path calls this after locking the venue row so the status it observes
// cannot be changed by a concurrent confirm or cancel until commit.
func (r *BookingRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	const q = "SELECT " + bookingCols + " FROM bookings WHERE id = ?"
	return scanBooking(tx.QueryRowContext(ctx, q, id))
}

// ListConfirmedSlotsTx returns the ascending set of slot numbers held by
// CONFIRMED bookings for a venue and vehicle class.  Cancelled and
// expired bookings fall out of this result automatically, which is what
// makes their slots eligible for reassignment.
func (r *BookingRepo) ListConfirmedSlotsTx(ctx context.Context, tx *sql.Tx, venueID uint64, class string) ([]uint32, error) {
	const q = `SELECT slot_number FROM bookings
	           WHERE venue_id = ? AND vehicle_class = ? AND status = 'CONFIRMED' AND slot_number IS NOT NULL
	           ORDER BY slot_number`
	rows, err := tx.QueryContext(ctx, q, venueID, class)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	slots := make([]uint32, 0)
	for rows.Next() {
		var n uint32
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		slots = append(slots, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// CountConfirmed returns how many CONFIRMED bookings currently occupy
// slots for a venue and vehicle class.  Read outside any transaction;
// used by the availability endpoint where a stale count is acceptable.
func (r *BookingRepo) CountConfirmed(ctx context.Context, venueID uint64, class string) (uint32, error) {
	const q = `SELECT COUNT(*) FROM bookings
	           WHERE venue_id = ? AND vehicle_class = ? AND status = 'CONFIRMED' AND slot_number IS NOT NULL`
	var n uint32
	err := r.db.QueryRowContext(ctx, q, venueID, class).Scan(&n)
	return n, err
}

// UpdateStatusAndSlotTx performs a conditional status transition: the
// row is updated only when its current status equals expected.  When no
// row matches, the booking either does not exist or was moved to another
// state by a concurrent request; the caller receives ErrConflict and
// must re-read to distinguish the two.  slot may be nil for transitions
// that assign no slot (EXPIRED, CANCELLED).
func (r *BookingRepo) UpdateStatusAndSlotTx(ctx context.Context, tx *sql.Tx, id uint64, expected, next string, slot *uint32) error {
	var (
		result sql.Result
		err    error
	)
	if slot != nil {
		const q = `UPDATE bookings SET status = ?, slot_number = ? WHERE id = ? AND status = ?`
		result, err = tx.ExecContext(ctx, q, next, *slot, id, expected)
	} else {
		const q = `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`
		result, err = tx.ExecContext(ctx, q, next, id, expected)
	}
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// DeleteTx removes a booking row.  Used only by explicit cancellation of
// a still-PENDING booking; confirmed bookings are flagged CANCELLED
// instead so the paid record remains queryable.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	return err
}

// BookingDetail is the booking query surface returned to clients.  The
// slot label is derived by the handler from SlotNumber.
type BookingDetail struct {
	ID           uint64  `json:"id"`
	Ref          string  `json:"ref"`
	VenueID      uint64  `json:"venue_id"`
	VenueName    string  `json:"venue_name"`
	VehicleClass string  `json:"vehicle_type"`
	CustomerName string  `json:"customer_name"`
	Phone        string  `json:"phone"`
	Plate        string  `json:"plate"`
	SlotNumber   *uint32 `json:"slot_number"`
	Status       string  `json:"status"`
	FareCents    uint32  `json:"fare_cents"`
	CreatedAt    string  `json:"created_at"`
	ExpiresAt    string  `json:"expires_at"`

	userID uint64
}

// UserID returns the id of the user who made the booking.  Unexported in
// JSON; handlers use it to enforce ownership.
func (d *BookingDetail) UserID() uint64 { return d.userID }

const detailQuery = `SELECT b.id, b.ref, b.venue_id, v.name, b.user_id, b.vehicle_class,
                            b.customer_name, b.phone, b.plate, b.slot_number, b.status,
                            b.fare_cents, b.created_at, b.expires_at
                     FROM bookings b
                     JOIN venues v ON v.id = b.venue_id`

// GetDetail loads a single booking together with its venue name.  It
// returns ErrBookingNotFound when no such booking exists.
func (r *BookingRepo) GetDetail(ctx context.Context, id uint64) (*BookingDetail, error) {
	row := r.db.QueryRowContext(ctx, detailQuery+` WHERE b.id = ?`, id)
	d, err := scanDetail(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListByUser returns all bookings created by the given user, newest
// first.  When no bookings exist an empty slice is returned.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingDetail, error) {
	rows, err := r.db.QueryContext(ctx, detailQuery+` WHERE b.user_id = ? ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

// ListByVenueForOwner returns all bookings at a venue when accessed by
// its owner.  It verifies ownership first: sql.ErrNoRows means the venue
// does not exist, ErrForbidden means it belongs to someone else.
func (r *BookingRepo) ListByVenueForOwner(ctx context.Context, venueID, ownerID uint64) ([]BookingDetail, error) {
	var actualOwnerID uint64
	if err := r.db.QueryRowContext(ctx, `SELECT owner_id FROM venues WHERE id = ?`, venueID).Scan(&actualOwnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVenueNotFound
		}
		return nil, err
	}
	if actualOwnerID != ownerID {
		return nil, ErrForbidden
	}
	rows, err := r.db.QueryContext(ctx, detailQuery+` WHERE b.venue_id = ? ORDER BY b.created_at DESC`, venueID)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func scanBooking(row *sql.Row) (*model.Booking, error) {
	var b model.Booking
	var slot sql.NullInt64
	err := row.Scan(&b.ID, &b.Ref, &b.VenueID, &b.UserID, &b.VehicleClass,
		&b.CustomerName, &b.Phone, &b.Plate, &slot, &b.Status, &b.FareCents,
		&b.CreatedAt, &b.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if slot.Valid {
		n := uint32(slot.Int64)
		b.SlotNumber = &n
	}
	return &b, nil
}

func scanDetail(scan func(dest ...interface{}) error) (*BookingDetail, error) {
	var d BookingDetail
	var slot sql.NullInt64
	var createdAt, expiresAt time.Time
	err := scan(&d.ID, &d.Ref, &d.VenueID, &d.VenueName, &d.userID, &d.VehicleClass,
		&d.CustomerName, &d.Phone, &d.Plate, &slot, &d.Status, &d.FareCents,
		&createdAt, &expiresAt)
	if err != nil {
		return nil, err
	}
	if slot.Valid {
		n := uint32(slot.Int64)
		d.SlotNumber = &n
	}
	d.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	d.ExpiresAt = expiresAt.UTC().Format(time.RFC3339)
	return &d, nil
}

func collectDetails(rows *sql.Rows) ([]BookingDetail, error) {
	defer rows.Close()
	details := make([]BookingDetail, 0)
	for rows.Next() {
		d, err := scanDetail(rows.Scan)
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}
