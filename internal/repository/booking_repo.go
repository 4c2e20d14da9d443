package repository

import (
	"context"
	"database/sql"
	"time"

	"parkingapi/internal/db"
)

type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, user_id, space_id, vehicle_id, start_time, end_time, status, created_at, updated_at`

const bookingDetailQuery = `
	SELECT
		b.id, b.user_id, b.space_id, b.vehicle_id, b.start_time, b.end_time, b.status, b.created_at, b.updated_at,
		u.name, u.email, u.phone,
		s.space_number, s.location, s.hourly_rate,
		v.license_plate, v.model
	FROM bookings b
	JOIN users u ON u.id = b.user_id
	JOIN parking_spaces s ON s.id = b.space_id
	JOIN vehicles v ON v.id = b.vehicle_id`

func scanBooking(row interface{ Scan(...any) error }) (*db.Booking, error) {
	var b db.Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.SpaceID, &b.VehicleID, &b.StartTime, &b.EndTime, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanBookingDetail(row interface{ Scan(...any) error }) (*db.BookingDetail, error) {
	var d db.BookingDetail
	err := row.Scan(
		&d.ID, &d.UserID, &d.SpaceID, &d.VehicleID, &d.StartTime, &d.EndTime, &d.Status, &d.CreatedAt, &d.UpdatedAt,
		&d.UserName, &d.UserEmail, &d.UserPhone,
		&d.SpaceNumber, &d.SpaceLocation, &d.HourlyRate,
		&d.LicensePlate, &d.VehicleModel,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// InsertBooking stores b and fills in its generated fields.
func (r *BookingRepository) InsertBooking(ctx context.Context, b *db.Booking) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO bookings (user_id, space_id, vehicle_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		b.UserID, b.SpaceID, b.VehicleID, b.StartTime, b.EndTime, b.Status,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	return classify(err, "insert booking for space %d", b.SpaceID)
}

// LockBooking reads the booking row with FOR UPDATE.
func (r *BookingRepository) LockBooking(ctx context.Context, id int64) (*db.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, classify(err, "lock booking %d", id)
	}
	return b, nil
}

func (r *BookingRepository) GetBookingDetail(ctx context.Context, id int64) (*db.BookingDetail, error) {
	d, err := scanBookingDetail(r.db.QueryRowContext(ctx, bookingDetailQuery+` WHERE b.id = $1`, id))
	if err != nil {
		return nil, classify(err, "booking %d", id)
	}
	return d, nil
}

func (r *BookingRepository) ListBookingDetails(ctx context.Context) ([]db.BookingDetail, error) {
	return r.queryBookingDetails(ctx, bookingDetailQuery+` ORDER BY b.start_time DESC, b.id DESC`)
}

func (r *BookingRepository) ListBookingDetailsByUser(ctx context.Context, userID int64) ([]db.BookingDetail, error) {
	return r.queryBookingDetails(ctx, bookingDetailQuery+` WHERE b.user_id = $1 ORDER BY b.start_time DESC, b.id DESC`, userID)
}

func (r *BookingRepository) queryBookingDetails(ctx context.Context, query string, args ...any) ([]db.BookingDetail, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "list bookings")
	}
	defer rows.Close()

	bookings := []db.BookingDetail{}
	for rows.Next() {
		d, err := scanBookingDetail(rows)
		if err != nil {
			return nil, classify(err, "scan booking")
		}
		bookings = append(bookings, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate bookings")
	}
	return bookings, nil
}

func (r *BookingRepository) UpdateBookingWindow(ctx context.Context, id int64, start time.Time, end *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET start_time = $2, end_time = $3, updated_at = NOW() WHERE id = $1`, id, start, end)
	ok, err := affected(res, err, "update booking %d window", id)
	if err != nil {
		return err
	}
	if !ok {
		return classify(sql.ErrNoRows, "booking %d", id)
	}
	return nil
}

// TransitionBookingStatus changes the status only when the booking is
// currently in from, and reports whether it did.
func (r *BookingRepository) TransitionBookingStatus(ctx context.Context, id int64, from, to db.BookingStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`, id, from, to)
	return affected(res, err, "transition booking %d %s->%s", id, from, to)
}

func (r *BookingRepository) DeleteBooking(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	return affected(res, err, "delete booking %d", id)
}
