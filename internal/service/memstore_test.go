package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"parkingapi/internal/db"
	apperrors "parkingapi/internal/errors"
)

// memState is a snapshot of the tables the services touch.
type memState struct {
	nextID   int64
	users    map[int64]db.User
	spaces   map[int64]db.ParkingSpace
	vehicles map[int64]db.Vehicle
	bookings map[int64]db.Booking
	payments map[int64]db.Payment
	audit    []db.AuditLog
}

func newMemState() *memState {
	return &memState{
		users:    map[int64]db.User{},
		spaces:   map[int64]db.ParkingSpace{},
		vehicles: map[int64]db.Vehicle{},
		bookings: map[int64]db.Booking{},
		payments: map[int64]db.Payment{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	c.nextID = s.nextID
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.spaces {
		c.spaces[k] = v
	}
	for k, v := range s.vehicles {
		c.vehicles[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	c.audit = append([]db.AuditLog(nil), s.audit...)
	return c
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

// memStore is an in-memory BookingStore. Transactions are serialized and
// work on a copy of the state that replaces it only on success.
type memStore struct {
	mu    sync.Mutex
	state *memState
	fail  map[string]error
}

func newMemStore() *memStore {
	return &memStore{state: newMemState(), fail: map[string]error{}}
}

// failOn makes every later call of method return err.
func (m *memStore) failOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[method] = err
}

func (m *memStore) unit() *memUnit {
	return &memUnit{st: m.state, fail: m.fail}
}

func (m *memStore) RunInTx(ctx context.Context, fn func(u BookingUnit) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memUnit{st: m.state.clone(), fail: m.fail}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.st
	return nil
}

func (m *memStore) with(f func(u *memUnit)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f(m.unit())
}

// seed helpers write directly to the committed state.

func (m *memStore) addUser(name string, role db.Role) db.User {
	var u db.User
	m.with(func(mu *memUnit) {
		u = db.User{ID: mu.st.id(), Email: name + "@example.com", Name: name, Phone: "+390000000", Role: role}
		mu.st.users[u.ID] = u
	})
	return u
}

func (m *memStore) addSpace(number string, status db.SpaceStatus, rate float64) db.ParkingSpace {
	var s db.ParkingSpace
	m.with(func(mu *memUnit) {
		s = db.ParkingSpace{ID: mu.st.id(), SpaceNumber: number, Type: db.SpaceCompact, Status: status, HourlyRate: rate}
		mu.st.spaces[s.ID] = s
	})
	return s
}

func (m *memStore) addVehicle(owner int64, plate string) db.Vehicle {
	var v db.Vehicle
	m.with(func(mu *memUnit) {
		v = db.Vehicle{ID: mu.st.id(), UserID: owner, LicensePlate: plate, Model: "Panda"}
		mu.st.vehicles[v.ID] = v
	})
	return v
}

func (m *memStore) space(id int64) db.ParkingSpace {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.spaces[id]
}

func (m *memStore) setSpaceStatus(id int64, st db.SpaceStatus) {
	m.with(func(mu *memUnit) {
		s := mu.st.spaces[id]
		s.Status = st
		mu.st.spaces[id] = s
	})
}

func (m *memStore) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.bookings)
}

func (m *memStore) auditCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.audit)
}

// consistencyViolations lists spaces whose status disagrees with their ACTIVE bookings.
func (m *memStore) consistencyViolations() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := map[int64]int{}
	for _, b := range m.state.bookings {
		if b.Status == db.BookingActive {
			active[b.SpaceID]++
		}
	}
	var bad []int64
	for id, s := range m.state.spaces {
		switch s.Status {
		case db.SpaceReserved:
			if active[id] != 1 {
				bad = append(bad, id)
			}
		case db.SpaceAvailable:
			if active[id] != 0 {
				bad = append(bad, id)
			}
		}
	}
	return bad
}

// BookingUnit, read outside a transaction.

func (m *memStore) LockSpace(ctx context.Context, id int64) (sp *db.ParkingSpace, err error) {
	m.with(func(u *memUnit) { sp, err = u.LockSpace(ctx, id) })
	return
}

func (m *memStore) TransitionSpaceStatus(ctx context.Context, id int64, from, to db.SpaceStatus) (ok bool, err error) {
	m.with(func(u *memUnit) { ok, err = u.TransitionSpaceStatus(ctx, id, from, to) })
	return
}

func (m *memStore) GetVehicle(ctx context.Context, id int64) (v *db.Vehicle, err error) {
	m.with(func(u *memUnit) { v, err = u.GetVehicle(ctx, id) })
	return
}

func (m *memStore) InsertBooking(ctx context.Context, b *db.Booking) (err error) {
	m.with(func(u *memUnit) { err = u.InsertBooking(ctx, b) })
	return
}

func (m *memStore) LockBooking(ctx context.Context, id int64) (b *db.Booking, err error) {
	m.with(func(u *memUnit) { b, err = u.LockBooking(ctx, id) })
	return
}

func (m *memStore) UpdateBookingWindow(ctx context.Context, id int64, start time.Time, end *time.Time) (err error) {
	m.with(func(u *memUnit) { err = u.UpdateBookingWindow(ctx, id, start, end) })
	return
}

func (m *memStore) TransitionBookingStatus(ctx context.Context, id int64, from, to db.BookingStatus) (ok bool, err error) {
	m.with(func(u *memUnit) { ok, err = u.TransitionBookingStatus(ctx, id, from, to) })
	return
}

func (m *memStore) DeleteBooking(ctx context.Context, id int64) (ok bool, err error) {
	m.with(func(u *memUnit) { ok, err = u.DeleteBooking(ctx, id) })
	return
}

func (m *memStore) GetBookingDetail(ctx context.Context, id int64) (d *db.BookingDetail, err error) {
	m.with(func(u *memUnit) { d, err = u.GetBookingDetail(ctx, id) })
	return
}

func (m *memStore) ListBookingDetails(ctx context.Context) (ds []db.BookingDetail, err error) {
	m.with(func(u *memUnit) { ds, err = u.ListBookingDetails(ctx) })
	return
}

func (m *memStore) ListBookingDetailsByUser(ctx context.Context, userID int64) (ds []db.BookingDetail, err error) {
	m.with(func(u *memUnit) { ds, err = u.ListBookingDetailsByUser(ctx, userID) })
	return
}

func (m *memStore) InsertAuditLog(ctx context.Context, l *db.AuditLog) (err error) {
	m.with(func(u *memUnit) { err = u.InsertAuditLog(ctx, l) })
	return
}

// PaymentStore.

func (m *memStore) CreatePayment(_ context.Context, p *db.Payment) (err error) {
	m.with(func(u *memUnit) {
		if err = u.check("CreatePayment"); err != nil {
			return
		}
		if _, ok := u.st.bookings[p.BookingID]; !ok {
			err = apperrors.Conflict("booking %d does not exist", p.BookingID)
			return
		}
		p.ID = u.st.id()
		p.CreatedAt = time.Now()
		p.UpdatedAt = p.CreatedAt
		u.st.payments[p.ID] = *p
	})
	return
}

func (m *memStore) GetPayment(_ context.Context, id int64) (p *db.Payment, err error) {
	m.with(func(u *memUnit) {
		v, ok := u.st.payments[id]
		if !ok {
			err = apperrors.NotFound("payment %d", id)
			return
		}
		p = &v
	})
	return
}

func (m *memStore) GetPaymentBySession(_ context.Context, sessionID string) (p *db.Payment, err error) {
	m.with(func(u *memUnit) {
		for _, v := range u.st.payments {
			if v.StripeSessionID == sessionID {
				v := v
				p = &v
				return
			}
		}
		err = apperrors.NotFound("payment for session %q", sessionID)
	})
	return
}

func (m *memStore) ListPayments(_ context.Context) (ps []db.Payment, err error) {
	m.with(func(u *memUnit) { ps = u.payments(func(db.Payment) bool { return true }) })
	return
}

func (m *memStore) ListPaymentsByUser(_ context.Context, userID int64) (ps []db.Payment, err error) {
	m.with(func(u *memUnit) { ps = u.payments(func(p db.Payment) bool { return p.UserID == userID }) })
	return
}

func (m *memStore) UpdatePaymentStatus(_ context.Context, id int64, status db.PaymentStatus) (ok bool, err error) {
	m.with(func(u *memUnit) {
		p, found := u.st.payments[id]
		if !found {
			return
		}
		p.Status = status
		u.st.payments[id] = p
		ok = true
	})
	return
}

func (m *memStore) AttachCheckoutSession(_ context.Context, id int64, sessionID, url string) (err error) {
	m.with(func(u *memUnit) {
		p, found := u.st.payments[id]
		if !found {
			err = apperrors.NotFound("payment %d", id)
			return
		}
		p.StripeSessionID = sessionID
		p.CheckoutURL = url
		u.st.payments[id] = p
	})
	return
}

// JobStore.

func (m *memStore) ListExpiredBookingIDs(_ context.Context, now time.Time) (ids []int64, err error) {
	m.with(func(u *memUnit) {
		if err = u.check("ListExpiredBookingIDs"); err != nil {
			return
		}
		for id, b := range u.st.bookings {
			if b.Status == db.BookingActive && b.EndTime != nil && !b.EndTime.After(now) {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	})
	return
}

func (m *memStore) CountBookingsByStatus(_ context.Context, ids []int64, status db.BookingStatus) (n int, err error) {
	m.with(func(u *memUnit) {
		for _, id := range ids {
			if b, ok := u.st.bookings[id]; ok && b.Status == status {
				n++
			}
		}
	})
	return
}

// memUnit implements BookingUnit over one state snapshot.
type memUnit struct {
	st   *memState
	fail map[string]error
}

func (u *memUnit) check(method string) error {
	if err, ok := u.fail[method]; ok {
		return err
	}
	return nil
}

func (u *memUnit) LockSpace(_ context.Context, id int64) (*db.ParkingSpace, error) {
	if err := u.check("LockSpace"); err != nil {
		return nil, err
	}
	s, ok := u.st.spaces[id]
	if !ok {
		return nil, apperrors.NotFound("space %d", id)
	}
	return &s, nil
}

func (u *memUnit) TransitionSpaceStatus(_ context.Context, id int64, from, to db.SpaceStatus) (bool, error) {
	if err := u.check("TransitionSpaceStatus"); err != nil {
		return false, err
	}
	s, ok := u.st.spaces[id]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	u.st.spaces[id] = s
	return true, nil
}

func (u *memUnit) GetVehicle(_ context.Context, id int64) (*db.Vehicle, error) {
	if err := u.check("GetVehicle"); err != nil {
		return nil, err
	}
	v, ok := u.st.vehicles[id]
	if !ok {
		return nil, apperrors.NotFound("vehicle %d", id)
	}
	return &v, nil
}

func (u *memUnit) InsertBooking(_ context.Context, b *db.Booking) error {
	if err := u.check("InsertBooking"); err != nil {
		return err
	}
	if b.Status == db.BookingActive {
		for _, other := range u.st.bookings {
			if other.SpaceID == b.SpaceID && other.Status == db.BookingActive {
				return apperrors.Wrap(apperrors.KindConflict, apperrors.ErrDuplicate, fmt.Sprintf("space %d already has an active booking", b.SpaceID))
			}
		}
	}
	b.ID = u.st.id()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	u.st.bookings[b.ID] = *b
	return nil
}

func (u *memUnit) LockBooking(_ context.Context, id int64) (*db.Booking, error) {
	if err := u.check("LockBooking"); err != nil {
		return nil, err
	}
	b, ok := u.st.bookings[id]
	if !ok {
		return nil, apperrors.NotFound("booking %d", id)
	}
	return &b, nil
}

func (u *memUnit) UpdateBookingWindow(_ context.Context, id int64, start time.Time, end *time.Time) error {
	if err := u.check("UpdateBookingWindow"); err != nil {
		return err
	}
	b, ok := u.st.bookings[id]
	if !ok {
		return apperrors.NotFound("booking %d", id)
	}
	b.StartTime = start
	b.EndTime = end
	u.st.bookings[id] = b
	return nil
}

func (u *memUnit) TransitionBookingStatus(_ context.Context, id int64, from, to db.BookingStatus) (bool, error) {
	if err := u.check("TransitionBookingStatus"); err != nil {
		return false, err
	}
	b, ok := u.st.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	u.st.bookings[id] = b
	return true, nil
}

func (u *memUnit) DeleteBooking(_ context.Context, id int64) (bool, error) {
	if err := u.check("DeleteBooking"); err != nil {
		return false, err
	}
	if _, ok := u.st.bookings[id]; !ok {
		return false, nil
	}
	for _, p := range u.st.payments {
		if p.BookingID == id {
			return false, apperrors.Conflict("booking %d has payments", id)
		}
	}
	delete(u.st.bookings, id)
	return true, nil
}

func (u *memUnit) detail(b db.Booking) db.BookingDetail {
	user := u.st.users[b.UserID]
	space := u.st.spaces[b.SpaceID]
	vehicle := u.st.vehicles[b.VehicleID]
	return db.BookingDetail{
		Booking:       b,
		UserName:      user.Name,
		UserEmail:     user.Email,
		UserPhone:     user.Phone,
		SpaceNumber:   space.SpaceNumber,
		SpaceLocation: space.Location,
		HourlyRate:    space.HourlyRate,
		LicensePlate:  vehicle.LicensePlate,
		VehicleModel:  vehicle.Model,
	}
}

func (u *memUnit) GetBookingDetail(_ context.Context, id int64) (*db.BookingDetail, error) {
	if err := u.check("GetBookingDetail"); err != nil {
		return nil, err
	}
	b, ok := u.st.bookings[id]
	if !ok {
		return nil, apperrors.NotFound("booking %d", id)
	}
	d := u.detail(b)
	return &d, nil
}

func (u *memUnit) bookingDetails(keep func(db.Booking) bool) []db.BookingDetail {
	out := []db.BookingDetail{}
	for _, b := range u.st.bookings {
		if keep(b) {
			out = append(out, u.detail(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (u *memUnit) ListBookingDetails(_ context.Context) ([]db.BookingDetail, error) {
	return u.bookingDetails(func(db.Booking) bool { return true }), nil
}

func (u *memUnit) ListBookingDetailsByUser(_ context.Context, userID int64) ([]db.BookingDetail, error) {
	return u.bookingDetails(func(b db.Booking) bool { return b.UserID == userID }), nil
}

func (u *memUnit) InsertAuditLog(_ context.Context, l *db.AuditLog) error {
	if err := u.check("InsertAuditLog"); err != nil {
		return err
	}
	l.ID = u.st.id()
	l.CreatedAt = time.Now()
	u.st.audit = append(u.st.audit, *l)
	return nil
}

func (u *memUnit) payments(keep func(db.Payment) bool) []db.Payment {
	out := []db.Payment{}
	for _, p := range u.st.payments {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var errStorageDown = apperrors.Storage(errors.New("connection reset"), "storage down")
