package service

import (
	"context"
	"time"

	"parkingapi/internal/db"
	"parkingapi/internal/repository"
)

// BookingUnit is the set of reads and writes the coordinator performs. Inside
// RunInTx every call belongs to the same transaction.
type BookingUnit interface {
	LockSpace(ctx context.Context, id int64) (*db.ParkingSpace, error)
	TransitionSpaceStatus(ctx context.Context, id int64, from, to db.SpaceStatus) (bool, error)
	GetVehicle(ctx context.Context, id int64) (*db.Vehicle, error)

	InsertBooking(ctx context.Context, b *db.Booking) error
	LockBooking(ctx context.Context, id int64) (*db.Booking, error)
	UpdateBookingWindow(ctx context.Context, id int64, start time.Time, end *time.Time) error
	TransitionBookingStatus(ctx context.Context, id int64, from, to db.BookingStatus) (bool, error)
	DeleteBooking(ctx context.Context, id int64) (bool, error)
	GetBookingDetail(ctx context.Context, id int64) (*db.BookingDetail, error)
	ListBookingDetails(ctx context.Context) ([]db.BookingDetail, error)
	ListBookingDetailsByUser(ctx context.Context, userID int64) ([]db.BookingDetail, error)

	InsertAuditLog(ctx context.Context, l *db.AuditLog) error
}

// BookingStore runs BookingUnits atomically. An error returned from fn rolls
// back every write made through the unit.
type BookingStore interface {
	BookingUnit
	RunInTx(ctx context.Context, fn func(u BookingUnit) error) error
}

type sqlBookingStore struct {
	*repository.Store
}

// NewSQLBookingStore adapts the repository store to the coordinator.
func NewSQLBookingStore(s *repository.Store) BookingStore {
	return sqlBookingStore{Store: s}
}

func (s sqlBookingStore) RunInTx(ctx context.Context, fn func(u BookingUnit) error) error {
	return s.Store.RunInTx(ctx, func(q *repository.Queries) error {
		return fn(q)
	})
}
