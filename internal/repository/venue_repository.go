package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/AyushRai7/parkmate/internal/model"
)

// VenueRepo encapsulates all database queries related to venues.  Venue
// capacities are written once at creation and only read afterwards; the
// reservation path never mutates them.
type VenueRepo struct {
	db *sql.DB
}

// NewVenueRepo constructs a VenueRepo with the provided DB handle.
func NewVenueRepo(db *sql.DB) *VenueRepo {
	return &VenueRepo{db: db}
}

const venueCols = "id, owner_id, name, address, car_slots, bike_slots, created_at, updated_at"

// Create inserts a new venue.  Names are unique after upper-casing; a
// duplicate returns ErrVenueExists.  On success the venue's ID and
// timestamp fields are populated.
func (r *VenueRepo) Create(ctx context.Context, v *model.Venue) error {
	v.Name = strings.ToUpper(strings.TrimSpace(v.Name))
	const qInsert = "INSERT INTO venues (owner_id, name, address, car_slots, bike_slots) VALUES (?, ?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, qInsert, v.OwnerID, v.Name, v.Address, v.CarSlots, v.BikeSlots)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrVenueExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)

	// Follow-up SELECT to populate default timestamp fields.
	const qSelect = "SELECT created_at, updated_at FROM venues WHERE id = ?"
	return r.db.QueryRowContext(ctx, qSelect, v.ID).Scan(&v.CreatedAt, &v.UpdatedAt)
}

// GetByID fetches a venue by its ID.  It returns ErrVenueNotFound if no
// row is found.
func (r *VenueRepo) GetByID(ctx context.Context, id uint64) (*model.Venue, error) {
	const q = "SELECT " + venueCols + " FROM venues WHERE id = ?"
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDForUpdateTx fetches a venue inside a transaction and locks its
// row with SELECT ... FOR UPDATE.  Holding this lock serializes every
// confirmation for the venue, so two concurrent confirmations cannot
// both observe the same free slot.  The lock is released on commit or
// rollback.
func (r *VenueRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Venue, error) {
	const q = "SELECT " + venueCols + " FROM venues WHERE id = ? FOR UPDATE"
	return r.scanOne(tx.QueryRowContext(ctx, q, id))
}

// List returns all venues ordered by name.  Used by the public browse
// endpoint.
func (r *VenueRepo) List(ctx context.Context) ([]model.Venue, error) {
	const q = "SELECT " + venueCols + " FROM venues ORDER BY name"
	return r.scanMany(r.db.QueryContext(ctx, q))
}

// ListByOwner returns all venues belonging to the given owner.
func (r *VenueRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Venue, error) {
	const q = "SELECT " + venueCols + " FROM venues WHERE owner_id = ? ORDER BY name"
	return r.scanMany(r.db.QueryContext(ctx, q, ownerID))
}

func (r *VenueRepo) scanOne(row *sql.Row) (*model.Venue, error) {
	var v model.Venue
	err := row.Scan(&v.ID, &v.OwnerID, &v.Name, &v.Address, &v.CarSlots, &v.BikeSlots, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVenueNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *VenueRepo) scanMany(rows *sql.Rows, err error) ([]model.Venue, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	venues := make([]model.Venue, 0)
	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.Name, &v.Address, &v.CarSlots, &v.BikeSlots, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return venues, nil
}
