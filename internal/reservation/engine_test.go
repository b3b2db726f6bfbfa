package reservation

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AyushRai7/parkmate/internal/model"
	"github.com/AyushRai7/parkmate/internal/repository"
)

// memStore is an in-memory VenueStore + BookingStore.  Its run method
// serializes transactions with a mutex and restores a snapshot on error,
// mirroring what the venue row lock and rollback give the real engine.
type memStore struct {
	mu       sync.Mutex
	venues   map[uint64]*model.Venue
	bookings map[uint64]*model.Booking
	nextID   uint64
}

func newMemStore() *memStore {
	return &memStore{
		venues:   make(map[uint64]*model.Venue),
		bookings: make(map[uint64]*model.Booking),
	}
}

func (s *memStore) addVenue(id uint64, carSlots, bikeSlots uint32) {
	s.venues[id] = &model.Venue{ID: id, OwnerID: 1, Name: fmt.Sprintf("VENUE %d", id), CarSlots: carSlots, BikeSlots: bikeSlots}
}

func (s *memStore) run(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[uint64]*model.Booking, len(s.bookings))
	for id, b := range s.bookings {
		snap[id] = copyBooking(b)
	}
	if err := fn(nil); err != nil {
		s.bookings = snap
		return err
	}
	return nil
}

func copyBooking(b *model.Booking) *model.Booking {
	c := *b
	if b.SlotNumber != nil {
		n := *b.SlotNumber
		c.SlotNumber = &n
	}
	return &c
}

// Plain methods lock; Tx methods run under the transaction mutex already
// held by run.

func (s *memStore) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getBooking(id)
}

func (s *memStore) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return s.getBooking(id)
}

func (s *memStore) getBooking(id uint64) (*model.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return copyBooking(b), nil
}

func (s *memStore) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	s.nextID++
	b.ID = s.nextID
	b.CreatedAt = time.Now().UTC()
	s.bookings[b.ID] = copyBooking(b)
	return nil
}

func (s *memStore) ListConfirmedSlotsTx(ctx context.Context, tx *sql.Tx, venueID uint64, class string) ([]uint32, error) {
	slots := make([]uint32, 0)
	for _, b := range s.bookings {
		if b.VenueID == venueID && b.VehicleClass == class && b.Occupies() {
			slots = append(slots, *b.SlotNumber)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots, nil
}

func (s *memStore) UpdateStatusAndSlotTx(ctx context.Context, tx *sql.Tx, id uint64, expected, next string, slot *uint32) error {
	b, ok := s.bookings[id]
	if !ok || b.Status != expected {
		return repository.ErrConflict
	}
	b.Status = next
	if slot != nil {
		n := *slot
		b.SlotNumber = &n
	}
	return nil
}

func (s *memStore) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	delete(s.bookings, id)
	return nil
}

func (s *memStore) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Venue, error) {
	return s.getVenue(id)
}

func (s *memStore) getVenue(id uint64) (*model.Venue, error) {
	v, ok := s.venues[id]
	if !ok {
		return nil, repository.ErrVenueNotFound
	}
	c := *v
	return &c, nil
}

// venueView satisfies VenueStore's plain GetByID without colliding with
// the booking GetByID on memStore.
type venueView struct{ *memStore }

func (v venueView) GetByID(ctx context.Context, id uint64) (*model.Venue, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.getVenue(id)
}

const testHold = 15 * time.Minute

func newTestEngine(s *memStore) (*Engine, *time.Time) {
	e := NewEngine(s.run, venueView{s}, s, testHold)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	return e, &now
}

func reserve(t *testing.T, e *Engine, venueID uint64, class string) *model.Booking {
	t.Helper()
	b, err := e.Reserve(context.Background(), ReserveInput{
		VenueID:      venueID,
		UserID:       42,
		VehicleClass: class,
		CustomerName: "Asha",
		Phone:        "9999",
		Plate:        "KA-01-1234",
		FareCents:    6000,
	})
	require.NoError(t, err)
	return b
}

func TestReserve(t *testing.T) {
	t.Run("creates a pending booking without a slot", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 3, 2)
		e, now := newTestEngine(s)

		b := reserve(t, e, 1, model.VehicleCar)
		assert.Equal(t, model.StatusPending, b.Status)
		assert.Nil(t, b.SlotNumber)
		assert.Equal(t, now.Add(testHold), b.ExpiresAt)
		assert.NotEmpty(t, b.Ref)
	})

	t.Run("does not consume capacity", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 1, 0)
		e, _ := newTestEngine(s)

		// Many pending bookings may exist for a single slot; only
		// confirmation arbitrates.
		for i := 0; i < 5; i++ {
			reserve(t, e, 1, model.VehicleCar)
		}
	})

	t.Run("rejects a class with zero capacity", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 3, 0)
		e, _ := newTestEngine(s)

		_, err := e.Reserve(context.Background(), ReserveInput{VenueID: 1, UserID: 42, VehicleClass: model.VehicleBike})
		assert.ErrorIs(t, err, ErrNoCapacity)
	})

	t.Run("rejects an unknown vehicle class", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 3, 2)
		e, _ := newTestEngine(s)

		_, err := e.Reserve(context.Background(), ReserveInput{VenueID: 1, UserID: 42, VehicleClass: "TRUCK"})
		assert.ErrorIs(t, err, ErrInvalidVehicleClass)
	})

	t.Run("unknown venue", func(t *testing.T) {
		s := newMemStore()
		e, _ := newTestEngine(s)

		_, err := e.Reserve(context.Background(), ReserveInput{VenueID: 9, UserID: 42, VehicleClass: model.VehicleCar})
		assert.ErrorIs(t, err, repository.ErrVenueNotFound)
	})
}

func TestConfirm(t *testing.T) {
	t.Run("assigns the lowest free slot", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 3, 0)
		e, _ := newTestEngine(s)

		b1 := reserve(t, e, 1, model.VehicleCar)
		b2 := reserve(t, e, 1, model.VehicleCar)

		c1, err := e.Confirm(context.Background(), b1.ID)
		require.NoError(t, err)
		require.NotNil(t, c1.SlotNumber)
		assert.Equal(t, uint32(1), *c1.SlotNumber)

		c2, err := e.Confirm(context.Background(), b2.ID)
		require.NoError(t, err)
		require.NotNil(t, c2.SlotNumber)
		assert.Equal(t, uint32(2), *c2.SlotNumber)
	})

	t.Run("is idempotent", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 3, 0)
		e, _ := newTestEngine(s)

		b := reserve(t, e, 1, model.VehicleCar)
		first, err := e.Confirm(context.Background(), b.ID)
		require.NoError(t, err)

		// Webhook delivery and client polling both confirm; replays must
		// return the same slot and never assign a second one.
		for i := 0; i < 3; i++ {
			again, err := e.Confirm(context.Background(), b.ID)
			require.NoError(t, err)
			assert.Equal(t, *first.SlotNumber, *again.SlotNumber)
		}
		occupied, _ := s.ListConfirmedSlotsTx(context.Background(), nil, 1, model.VehicleCar)
		assert.Equal(t, []uint32{1}, occupied)
	})

	t.Run("no capacity leaves the booking pending", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 1, 0)
		e, _ := newTestEngine(s)

		b1 := reserve(t, e, 1, model.VehicleCar)
		b2 := reserve(t, e, 1, model.VehicleCar)

		_, err := e.Confirm(context.Background(), b1.ID)
		require.NoError(t, err)

		_, err = e.Confirm(context.Background(), b2.ID)
		assert.ErrorIs(t, err, ErrNoCapacity)

		cur, err := s.GetByID(context.Background(), b2.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, cur.Status)
	})

	t.Run("expired hold never receives a slot", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 3, 0)
		e, now := newTestEngine(s)

		b := reserve(t, e, 1, model.VehicleCar)
		*now = now.Add(testHold + time.Minute)

		_, err := e.Confirm(context.Background(), b.ID)
		assert.ErrorIs(t, err, ErrBookingExpired)

		// The EXPIRED flip is persisted even though the confirm failed.
		cur, err := s.GetByID(context.Background(), b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusExpired, cur.Status)
		assert.Nil(t, cur.SlotNumber)

		// Later confirms keep reporting the expiry.
		_, err = e.Confirm(context.Background(), b.ID)
		assert.ErrorIs(t, err, ErrBookingExpired)
	})

	t.Run("expiry boundary is exclusive of the window", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 3, 0)
		e, now := newTestEngine(s)

		b := reserve(t, e, 1, model.VehicleCar)
		*now = b.ExpiresAt

		c, err := e.Confirm(context.Background(), b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, c.Status)
	})

	t.Run("cancelled booking cannot be confirmed", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 3, 0)
		e, _ := newTestEngine(s)

		b := reserve(t, e, 1, model.VehicleCar)
		_, err := e.Confirm(context.Background(), b.ID)
		require.NoError(t, err)
		require.NoError(t, e.Cancel(context.Background(), b.ID))

		_, err = e.Confirm(context.Background(), b.ID)
		assert.ErrorIs(t, err, ErrBookingCancelled)
	})

	t.Run("unknown booking", func(t *testing.T) {
		s := newMemStore()
		e, _ := newTestEngine(s)

		_, err := e.Confirm(context.Background(), 404)
		assert.ErrorIs(t, err, repository.ErrBookingNotFound)
	})
}

func TestConfirmConcurrent(t *testing.T) {
	t.Run("distinct slots under concurrent confirms", func(t *testing.T) {
		const n = 8
		s := newMemStore()
		s.addVenue(1, n, 0)
		e, _ := newTestEngine(s)

		ids := make([]uint64, n)
		for i := range ids {
			ids[i] = reserve(t, e, 1, model.VehicleCar).ID
		}

		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id uint64) {
				defer wg.Done()
				_, err := e.Confirm(context.Background(), id)
				assert.NoError(t, err)
			}(id)
		}
		wg.Wait()

		occupied, err := s.ListConfirmedSlotsTx(context.Background(), nil, 1, model.VehicleCar)
		require.NoError(t, err)
		want := make([]uint32, n)
		for i := range want {
			want[i] = uint32(i + 1)
		}
		assert.Equal(t, want, occupied)
	})

	t.Run("racing confirms of one booking agree on the slot", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 3, 0)
		e, _ := newTestEngine(s)

		b := reserve(t, e, 1, model.VehicleCar)

		slots := make([]uint32, 4)
		var wg sync.WaitGroup
		for i := range slots {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				c, err := e.Confirm(context.Background(), b.ID)
				if assert.NoError(t, err) && assert.NotNil(t, c.SlotNumber) {
					slots[i] = *c.SlotNumber
				}
			}(i)
		}
		wg.Wait()

		for _, got := range slots {
			assert.Equal(t, slots[0], got)
		}
	})
}

func TestCancel(t *testing.T) {
	t.Run("pending booking is removed", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 3, 0)
		e, _ := newTestEngine(s)

		b := reserve(t, e, 1, model.VehicleCar)
		require.NoError(t, e.Cancel(context.Background(), b.ID))

		_, err := s.GetByID(context.Background(), b.ID)
		assert.ErrorIs(t, err, repository.ErrBookingNotFound)
	})

	t.Run("cancelled slot is reassigned lowest-first", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 3, 0)
		e, _ := newTestEngine(s)

		var ids [3]uint64
		for i := range ids {
			b := reserve(t, e, 1, model.VehicleCar)
			_, err := e.Confirm(context.Background(), b.ID)
			require.NoError(t, err)
			ids[i] = b.ID
		}

		// Free slot 2, then the next confirmation must take it.
		require.NoError(t, e.Cancel(context.Background(), ids[1]))

		b := reserve(t, e, 1, model.VehicleCar)
		c, err := e.Confirm(context.Background(), b.ID)
		require.NoError(t, err)
		require.NotNil(t, c.SlotNumber)
		assert.Equal(t, uint32(2), *c.SlotNumber)
	})

	t.Run("confirmed booking stays as a cancelled record", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 3, 0)
		e, _ := newTestEngine(s)

		b := reserve(t, e, 1, model.VehicleCar)
		_, err := e.Confirm(context.Background(), b.ID)
		require.NoError(t, err)
		require.NoError(t, e.Cancel(context.Background(), b.ID))

		cur, err := s.GetByID(context.Background(), b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, cur.Status)
	})

	t.Run("cancelling twice is a no-op", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 3, 0)
		e, _ := newTestEngine(s)

		b := reserve(t, e, 1, model.VehicleCar)
		_, err := e.Confirm(context.Background(), b.ID)
		require.NoError(t, err)
		require.NoError(t, e.Cancel(context.Background(), b.ID))
		require.NoError(t, e.Cancel(context.Background(), b.ID))
	})
}

func TestReserveWalkIn(t *testing.T) {
	t.Run("assigns eagerly and starts confirmed", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 2, 0)
		e, _ := newTestEngine(s)

		b, err := e.ReserveWalkIn(context.Background(), ReserveInput{VenueID: 1, UserID: 1, VehicleClass: model.VehicleCar, CustomerName: "Gate", Plate: "KA-05-0001"})
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, b.Status)
		require.NotNil(t, b.SlotNumber)
		assert.Equal(t, uint32(1), *b.SlotNumber)
	})

	t.Run("full venue rejects the walk-in", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 1, 0)
		e, _ := newTestEngine(s)

		_, err := e.ReserveWalkIn(context.Background(), ReserveInput{VenueID: 1, UserID: 1, VehicleClass: model.VehicleCar, CustomerName: "Gate", Plate: "KA-05-0001"})
		require.NoError(t, err)

		_, err = e.ReserveWalkIn(context.Background(), ReserveInput{VenueID: 1, UserID: 1, VehicleClass: model.VehicleCar, CustomerName: "Gate", Plate: "KA-05-0002"})
		assert.ErrorIs(t, err, ErrNoCapacity)
	})

	t.Run("walk-ins and deferred bookings share the slot pool", func(t *testing.T) {
		s := newMemStore()
		s.addVenue(1, 2, 0)
		e, _ := newTestEngine(s)

		w, err := e.ReserveWalkIn(context.Background(), ReserveInput{VenueID: 1, UserID: 1, VehicleClass: model.VehicleCar, CustomerName: "Gate", Plate: "KA-05-0001"})
		require.NoError(t, err)
		require.Equal(t, uint32(1), *w.SlotNumber)

		b := reserve(t, e, 1, model.VehicleCar)
		c, err := e.Confirm(context.Background(), b.ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), *c.SlotNumber)
	})
}

// TestVenueLifecycle walks one venue through the full story: deferred
// bookings racing for three slots, an expiry, a cancellation freeing a
// slot, and a bike booking untouched by the car pool.
func TestVenueLifecycle(t *testing.T) {
	s := newMemStore()
	s.addVenue(1, 3, 1)
	e, now := newTestEngine(s)

	// Four drivers reserve; capacity is three cars.
	var cars [4]*model.Booking
	for i := range cars {
		cars[i] = reserve(t, e, 1, model.VehicleCar)
	}
	bike := reserve(t, e, 1, model.VehicleBike)

	// First three confirms win slots P1..P3.
	for i := 0; i < 3; i++ {
		c, err := e.Confirm(context.Background(), cars[i].ID)
		require.NoError(t, err)
		assert.Equal(t, uint32(i+1), *c.SlotNumber)
	}

	// The fourth finds the venue full and stays pending.
	_, err := e.Confirm(context.Background(), cars[3].ID)
	require.ErrorIs(t, err, ErrNoCapacity)

	// Car occupancy does not touch the bike pool.
	cb, err := e.Confirm(context.Background(), bike.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), *cb.SlotNumber)

	// A cancellation frees P2 and the pending booking takes it.
	require.NoError(t, e.Cancel(context.Background(), cars[1].ID))
	c4, err := e.Confirm(context.Background(), cars[3].ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), *c4.SlotNumber)

	// A fifth driver reserves but never pays; the hold lapses.
	late := reserve(t, e, 1, model.VehicleCar)
	*now = now.Add(testHold + time.Second)
	_, err = e.Confirm(context.Background(), late.ID)
	assert.ErrorIs(t, err, ErrBookingExpired)
}
