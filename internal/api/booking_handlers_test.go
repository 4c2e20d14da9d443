package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkingapi/internal/db"
	apperrors "parkingapi/internal/errors"
	"parkingapi/internal/service"
)

// memBookings backs the booking coordinator with the same spaces the space
// handlers see. RunInTx serializes units and does not roll back.
type memBookings struct {
	tx       sync.Mutex
	mu       sync.Mutex
	spaces   *memSpaces
	vehicles map[int64]db.Vehicle
	bookings map[int64]db.Booking
	next     int64
}

func newMemBookings(spaces *memSpaces) *memBookings {
	return &memBookings{
		spaces:   spaces,
		vehicles: map[int64]db.Vehicle{},
		bookings: map[int64]db.Booking{},
	}
}

func (m *memBookings) addVehicle(id, owner int64, plate string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[id] = db.Vehicle{ID: id, UserID: owner, LicensePlate: plate}
}

func (m *memBookings) RunInTx(_ context.Context, fn func(u service.BookingUnit) error) error {
	m.tx.Lock()
	defer m.tx.Unlock()
	return fn(m)
}

func (m *memBookings) LockSpace(ctx context.Context, id int64) (*db.ParkingSpace, error) {
	return m.spaces.GetSpace(ctx, id)
}

func (m *memBookings) TransitionSpaceStatus(_ context.Context, id int64, from, to db.SpaceStatus) (bool, error) {
	m.spaces.mu.Lock()
	defer m.spaces.mu.Unlock()
	sp, ok := m.spaces.spaces[id]
	if !ok || sp.Status != from {
		return false, nil
	}
	sp.Status = to
	return true, nil
}

func (m *memBookings) GetVehicle(_ context.Context, id int64) (*db.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return nil, apperrors.NotFound("vehicle %d not found", id)
	}
	return &v, nil
}

func (m *memBookings) InsertBooking(_ context.Context, b *db.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.bookings {
		if other.SpaceID == b.SpaceID && other.Status == db.BookingActive {
			return apperrors.Wrap(apperrors.KindConflict, apperrors.ErrDuplicate,
				fmt.Sprintf("space %d already has an active booking", b.SpaceID))
		}
	}
	m.next++
	b.ID = m.next
	m.bookings[b.ID] = *b
	return nil
}

func (m *memBookings) LockBooking(_ context.Context, id int64) (*db.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, apperrors.NotFound("booking %d not found", id)
	}
	return &b, nil
}

func (m *memBookings) UpdateBookingWindow(_ context.Context, id int64, start time.Time, end *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return apperrors.NotFound("booking %d not found", id)
	}
	b.StartTime, b.EndTime = start, end
	m.bookings[id] = b
	return nil
}

func (m *memBookings) TransitionBookingStatus(_ context.Context, id int64, from, to db.BookingStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	m.bookings[id] = b
	return true, nil
}

func (m *memBookings) DeleteBooking(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bookings[id]
	delete(m.bookings, id)
	return ok, nil
}

func (m *memBookings) GetBookingDetail(_ context.Context, id int64) (*db.BookingDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, apperrors.NotFound("booking %d not found", id)
	}
	return &db.BookingDetail{Booking: b, LicensePlate: m.vehicles[b.VehicleID].LicensePlate}, nil
}

func (m *memBookings) ListBookingDetails(ctx context.Context) ([]db.BookingDetail, error) {
	return m.list(func(db.Booking) bool { return true }), nil
}

func (m *memBookings) ListBookingDetailsByUser(_ context.Context, userID int64) ([]db.BookingDetail, error) {
	return m.list(func(b db.Booking) bool { return b.UserID == userID }), nil
}

func (m *memBookings) list(keep func(db.Booking) bool) []db.BookingDetail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []db.BookingDetail{}
	for id := int64(1); id <= m.next; id++ {
		if b, ok := m.bookings[id]; ok && keep(b) {
			out = append(out, db.BookingDetail{Booking: b})
		}
	}
	return out
}

func (m *memBookings) InsertAuditLog(context.Context, *db.AuditLog) error { return nil }

type memUsers struct {
	mu    sync.Mutex
	users map[int64]db.User
}

func newMemUsers(seed ...db.User) *memUsers {
	m := &memUsers{users: map[int64]db.User{}}
	for i, u := range seed {
		u.ID = int64(i + 1)
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetUser(_ context.Context, id int64) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.NotFound("user %d not found", id)
	}
	return &u, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperrors.NotFound("user %s not found", email)
}

func (m *memUsers) ListUsers(context.Context) ([]db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]db.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUsers) CreateUser(_ context.Context, u *db.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = int64(len(m.users) + 1)
	m.users[u.ID] = *u
	return nil
}

func (m *memUsers) UpdateUser(_ context.Context, u *db.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = *u
	return nil
}

func (m *memUsers) UserReferenced(context.Context, int64) (bool, error) { return false, nil }

func (m *memUsers) DeleteUser(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[id]
	delete(m.users, id)
	return ok, nil
}

func bookingBody(spaceID, vehicleID int64) string {
	start := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	return fmt.Sprintf(`{"space_id":%d,"vehicle_id":%d,"start_time":%q}`, spaceID, vehicleID, start)
}

func TestCreateBookingEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.bookings.addVehicle(10, 1, "AB123CD")
	s.bookings.addVehicle(20, 2, "ZZ999ZZ")
	ada := s.token(t, 1, db.RoleUser)

	t.Run("reserves the space", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/bookings", ada, bookingBody(1, 10))
		require.Equal(t, http.StatusCreated, rec.Code)
		var d db.BookingDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
		assert.Equal(t, int64(1), d.UserID)
		assert.Equal(t, db.BookingActive, d.Status)

		sp, err := s.spaces.GetSpace(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, db.SpaceReserved, sp.Status)
	})

	t.Run("space already reserved", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/bookings", ada, bookingBody(1, 10))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "CONFLICT", errorCode(t, rec))
	})

	t.Run("space out of service", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/bookings", ada, bookingBody(2, 10))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "CONFLICT", errorCode(t, rec))
	})

	t.Run("vehicle of another user", func(t *testing.T) {
		require.NoError(t, s.spaces.CreateSpace(context.Background(),
			&db.ParkingSpace{SpaceNumber: "C-01", Type: db.SpaceCompact, Status: db.SpaceAvailable, HourlyRate: 4}))
		rec := s.do(http.MethodPost, "/bookings", ada, bookingBody(3, 20))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "FORBIDDEN", errorCode(t, rec))

		sp, err := s.spaces.GetSpace(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, db.SpaceAvailable, sp.Status)
	})

	t.Run("missing start time", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/bookings", ada, `{"space_id":3,"vehicle_id":10}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
	})
}

func TestBookingReadsHideForeignBookings(t *testing.T) {
	s := newTestServer(t, nil)
	s.bookings.addVehicle(10, 1, "AB123CD")

	rec := s.do(http.MethodPost, "/bookings", s.token(t, 1, db.RoleUser), bookingBody(1, 10))
	require.Equal(t, http.StatusCreated, rec.Code)
	var d db.BookingDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	path := fmt.Sprintf("/bookings/%d", d.ID)

	rec = s.do(http.MethodGet, path, s.token(t, 1, db.RoleUser), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	bob := s.token(t, 2, db.RoleUser)
	rec = s.do(http.MethodGet, path, bob, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = s.do(http.MethodPost, path+"/cancel", bob, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/bookings/999", bob, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, path, s.token(t, 9, db.RoleAdmin), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
