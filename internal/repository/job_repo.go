package repository

import (
	"context"
	"time"

	"github.com/lib/pq"

	"parkingapi/internal/db"
)

// JobRepository backs the scheduled jobs.
type JobRepository struct {
	db DBTX
}

func NewJobRepository(db DBTX) *JobRepository {
	return &JobRepository{db: db}
}

// ListExpiredBookingIDs returns ACTIVE bookings whose end time is at or before now.
func (r *JobRepository) ListExpiredBookingIDs(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM bookings
		WHERE status = $1 AND end_time IS NOT NULL AND end_time <= $2
		ORDER BY end_time, id`,
		db.BookingActive, now)
	if err != nil {
		return nil, classify(err, "list expired bookings")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err, "scan booking id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate expired bookings")
	}
	return ids, nil
}

// CountBookingsByStatus returns how many of ids are currently in status.
func (r *JobRepository) CountBookingsByStatus(ctx context.Context, ids []int64, status db.BookingStatus) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE id = ANY($1) AND status = $2`,
		pq.Array(ids), status,
	).Scan(&n)
	if err != nil {
		return 0, classify(err, "count bookings")
	}
	return n, nil
}
