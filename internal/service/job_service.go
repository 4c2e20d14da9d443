package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"parkingapi/internal/db"
)

type JobStore interface {
	ListExpiredBookingIDs(ctx context.Context, now time.Time) ([]int64, error)
	CountBookingsByStatus(ctx context.Context, ids []int64, status db.BookingStatus) (int, error)
}

// BookingCompleter completes one expired booking in its own transaction.
type BookingCompleter interface {
	CompleteExpiredBooking(ctx context.Context, id int64, now time.Time) (bool, error)
}

type JobService struct {
	store     JobStore
	completer BookingCompleter
	now       func() time.Time
}

func NewJobService(store JobStore, completer BookingCompleter) *JobService {
	return &JobService{store: store, completer: completer, now: time.Now}
}

// CompleteFinishedBookings marks ACTIVE bookings whose end time has passed as
// COMPLETED and releases their spaces. One failing booking does not stop the
// others; the number completed is returned.
func (s *JobService) CompleteFinishedBookings(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.store.ListExpiredBookingIDs(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		log.Debug().Msg("job_no_expired_bookings")
		return 0, nil
	}

	completed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		ok, err := s.completer.CompleteExpiredBooking(ctx, id, now)
		if err != nil {
			log.Error().Err(err).Int64("booking_id", id).Msg("job_complete_booking_failed")
			continue
		}
		if ok {
			completed++
		}
	}

	remaining, err := s.store.CountBookingsByStatus(ctx, ids, db.BookingActive)
	if err != nil {
		log.Warn().Err(err).Msg("job_count_remaining_failed")
	}
	log.Info().Int("found", len(ids)).Int("completed", completed).Int("still_active", remaining).Msg("job_bookings_completed")
	return completed, nil
}

// Run is the cron entry point.
func (s *JobService) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.CompleteFinishedBookings(ctx); err != nil {
		log.Error().Err(err).Msg("job_run_failed")
	}
}
