package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nekogravitycat/seat-booking-backend/internal/pkg/events"
	"github.com/nekogravitycat/seat-booking-backend/internal/slot"
)

// memStore is an in-memory Repository with per-row locks held for the
// whole transaction. Writes are buffered and applied on commit, where the
// partial unique indexes on confirmed bookings are enforced.
type memStore struct {
	mu       sync.Mutex
	seats    map[string]*memSeat
	slots    map[string]memSlot
	bookings map[string]*Booking
	bLocks   map[string]*sync.Mutex
	nextID   int

	// lockErr, when set, is returned by LockSeat.
	lockErr error
}

type memSeat struct {
	row  sync.Mutex
	seat slot.Seat
}

type memSlot struct {
	start, end time.Time
}

func newMemStore() *memStore {
	return &memStore{
		seats:    make(map[string]*memSeat),
		slots:    make(map[string]memSlot),
		bookings: make(map[string]*Booking),
		bLocks:   make(map[string]*sync.Mutex),
	}
}

// addSlot creates a slot with n available seats named S01.. and returns the seat IDs.
func (s *memStore) addSlot(slotID string, start time.Time, n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[slotID] = memSlot{start: start, end: start.Add(time.Hour)}
	ids := make([]string, n)
	for i := range ids {
		number := slot.SeatNumber(i+1, n)
		ids[i] = slotID + "-" + number
		s.seats[ids[i]] = &memSeat{seat: slot.Seat{
			ID:         ids[i],
			SlotID:     slotID,
			SeatNumber: number,
			Status:     slot.SeatAvailable,
			SeatType:   slot.DefaultSeatType,
		}}
	}
	return ids
}

func (s *memStore) seatStatus(id string) slot.SeatStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seats[id].seat.Status
}

func (s *memStore) setSeatStatus(id string, st slot.SeatStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seats[id].seat.Status = st
}

func (s *memStore) confirmedCount(seatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bookings {
		if b.SeatID == seatID && b.Status == StatusConfirmed {
			n++
		}
	}
	return n
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx TxRepository) error) error {
	tx := &memTx{
		store:       s,
		seatStatus:  make(map[string]slot.SeatStatus),
		bookingStat: make(map[string]Status),
		heldSeats:   make(map[string]bool),
		heldBooks:   make(map[string]bool),
	}
	defer tx.releaseLocks()

	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *memStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, nb := range tx.inserts {
		for _, b := range s.bookings {
			if b.Status != StatusConfirmed {
				continue
			}
			if b.SeatID == nb.SeatID {
				return ErrSeatUnavailable
			}
			if b.UserID == nb.UserID && b.SlotID == nb.SlotID {
				return ErrDuplicateBooking
			}
		}
	}

	for id, st := range tx.seatStatus {
		s.seats[id].seat.Status = st
	}
	for id, st := range tx.bookingStat {
		s.bookings[id].Status = st
	}
	for _, nb := range tx.inserts {
		cp := *nb
		s.bookings[nb.ID] = &cp
		s.bLocks[nb.ID] = &sync.Mutex{}
	}
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) List(_ context.Context, f Filter) ([]*Booking, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Booking
	for _, b := range s.bookings {
		if (f.UserID == "" || b.UserID == f.UserID) &&
			(f.SlotID == "" || b.SlotID == f.SlotID) &&
			(f.Status == "" || b.Status == f.Status) {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

type memTx struct {
	store *memStore

	seatStatus  map[string]slot.SeatStatus
	bookingStat map[string]Status
	inserts     []*Booking

	heldSeats map[string]bool
	heldBooks map[string]bool
}

func (t *memTx) releaseLocks() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for id := range t.heldSeats {
		t.store.seats[id].row.Unlock()
	}
	for id := range t.heldBooks {
		t.store.bLocks[id].Unlock()
	}
}

func (t *memTx) LockSeat(_ context.Context, seatID string) (*SeatLock, error) {
	s := t.store
	if s.lockErr != nil {
		return nil, s.lockErr
	}

	s.mu.Lock()
	ms, ok := s.seats[seatID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSeatNotFound
	}

	if !t.heldSeats[seatID] {
		ms.row.Lock()
		t.heldSeats[seatID] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	seat := ms.seat
	if st, ok := t.seatStatus[seatID]; ok {
		seat.Status = st
	}
	sl := s.slots[seat.SlotID]
	return &SeatLock{
		Seat:         seat,
		SlotStart:    sl.start,
		SlotEnd:      sl.end,
		ResourceID:   "res-1",
		ResourceName: "Room 101",
		ResourceType: "room",
	}, nil
}

func (t *memTx) SetSeatStatus(_ context.Context, seatID string, from, to slot.SeatStatus) (time.Time, error) {
	if !t.heldSeats[seatID] {
		return time.Time{}, fmt.Errorf("seat %s written without lock", seatID)
	}
	t.store.mu.Lock()
	current := t.store.seats[seatID].seat.Status
	t.store.mu.Unlock()
	if st, ok := t.seatStatus[seatID]; ok {
		current = st
	}
	if current != from || !from.CanTransition(to) {
		return time.Time{}, fmt.Errorf("seat %s is no longer %s", seatID, from)
	}
	t.seatStatus[seatID] = to
	return time.Now(), nil
}

func (t *memTx) HasConfirmedInSlot(_ context.Context, userID, slotID string) (bool, error) {
	for _, b := range t.inserts {
		if b.UserID == userID && b.SlotID == slotID && b.Status == StatusConfirmed {
			return true, nil
		}
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, b := range t.store.bookings {
		if b.UserID == userID && b.SlotID == slotID && b.Status == StatusConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) Insert(_ context.Context, b *Booking) error {
	t.store.mu.Lock()
	t.store.nextID++
	b.ID = fmt.Sprintf("booking-%d", t.store.nextID)
	t.store.mu.Unlock()

	now := time.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	cp := *b
	t.inserts = append(t.inserts, &cp)
	return nil
}

func (t *memTx) GetBooking(_ context.Context, id string, forUpdate bool) (*Booking, error) {
	s := t.store
	s.mu.Lock()
	lock, ok := s.bLocks[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	if forUpdate && !t.heldBooks[id] {
		lock.Lock()
		t.heldBooks[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.bookings[id]
	if st, ok := t.bookingStat[id]; ok {
		cp.Status = st
	}
	sl := s.slots[cp.SlotID]
	cp.SlotStart, cp.SlotEnd = sl.start, sl.end
	return &cp, nil
}

func (t *memTx) UpdateStatus(_ context.Context, id string, status Status) (time.Time, error) {
	if !t.heldBooks[id] {
		return time.Time{}, fmt.Errorf("booking %s written without lock", id)
	}
	t.bookingStat[id] = status
	return time.Now(), nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]events.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, queue string, e events.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(map[string][]events.BookingEvent)
	}
	p.events[queue] = append(p.events[queue], e)
	return p.err
}

func (p *recordingPublisher) count(queue string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events[queue])
}
