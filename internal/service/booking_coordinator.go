package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"parkingapi/internal/auth"
	"parkingapi/internal/db"
	"parkingapi/internal/entities"
	apperrors "parkingapi/internal/errors"
	"parkingapi/internal/events"
)

// BookingHook receives booking changes after their transaction has committed.
type BookingHook interface {
	BookingChanged(ctx context.Context, change events.BookingChange) error
}

// BookingCoordinator keeps bookings and space statuses consistent. Every
// mutating operation runs in a single transaction that locks the rows it
// depends on; the space row is the serialization point for new bookings.
type BookingCoordinator struct {
	store BookingStore
	hooks []BookingHook
	now   func() time.Time
}

func NewBookingCoordinator(store BookingStore, hooks ...BookingHook) *BookingCoordinator {
	return &BookingCoordinator{store: store, hooks: hooks, now: time.Now}
}

// CreateBooking reserves an AVAILABLE space for one of the caller's vehicles.
func (c *BookingCoordinator) CreateBooking(ctx context.Context, caller auth.Caller, req entities.BookingRequest) (*db.BookingDetail, error) {
	if req.SpaceID <= 0 || req.VehicleID <= 0 {
		return nil, apperrors.Validation("space_id and vehicle_id are required")
	}
	if req.StartTime.IsZero() {
		return nil, apperrors.Validation("start_time is required")
	}
	if req.EndTime != nil && !req.EndTime.After(req.StartTime) {
		return nil, apperrors.Validation("end_time must be after start_time")
	}

	var detail *db.BookingDetail
	err := c.store.RunInTx(ctx, func(u BookingUnit) error {
		space, err := u.LockSpace(ctx, req.SpaceID)
		if apperrors.IsNotFound(err) {
			return fmt.Errorf("space %d: %w", req.SpaceID, ErrSpaceUnavailable)
		}
		if err != nil {
			return err
		}
		if space.Status != db.SpaceAvailable {
			return fmt.Errorf("space %d is %s: %w", space.ID, space.Status, ErrSpaceUnavailable)
		}

		vehicle, err := u.GetVehicle(ctx, req.VehicleID)
		if apperrors.IsNotFound(err) {
			return fmt.Errorf("vehicle %d: %w", req.VehicleID, ErrInvalidVehicle)
		}
		if err != nil {
			return err
		}
		if vehicle.UserID != caller.UserID {
			return fmt.Errorf("vehicle %d: %w", req.VehicleID, ErrInvalidVehicle)
		}

		booking := &db.Booking{
			UserID:    caller.UserID,
			SpaceID:   space.ID,
			VehicleID: vehicle.ID,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Status:    db.BookingActive,
		}
		if err := u.InsertBooking(ctx, booking); err != nil {
			switch {
			case errors.Is(err, apperrors.ErrDuplicate):
				return fmt.Errorf("space %d: %w", space.ID, ErrSpaceUnavailable)
			case errors.Is(err, apperrors.ErrMissingReference):
				return apperrors.Wrap(apperrors.KindConflict, err, "booking references a user, space or vehicle that no longer exists")
			}
			return err
		}

		ok, err := u.TransitionSpaceStatus(ctx, space.ID, db.SpaceAvailable, db.SpaceReserved)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("space %d: %w", space.ID, ErrSpaceUnavailable)
		}

		if err := c.audit(ctx, u, &caller.UserID, events.BookingCreated, booking.ID,
			fmt.Sprintf("space=%d vehicle=%d", space.ID, vehicle.ID)); err != nil {
			return err
		}

		detail, err = u.GetBookingDetail(ctx, booking.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("booking_id", detail.ID).Int64("space_id", detail.SpaceID).Int64("user_id", detail.UserID).Msg("booking_created")
	c.notify(ctx, events.NewBookingChange(events.BookingCreated, detail, db.SpaceReserved, c.now()))
	return detail, nil
}

// UpdateBooking changes the time window of an ACTIVE booking. Space status is untouched.
func (c *BookingCoordinator) UpdateBooking(ctx context.Context, caller auth.Caller, id int64, req entities.BookingUpdateRequest) (*db.BookingDetail, error) {
	if req.StartTime == nil && req.EndTime == nil {
		return nil, apperrors.Validation("start_time or end_time is required")
	}

	var detail *db.BookingDetail
	err := c.store.RunInTx(ctx, func(u BookingUnit) error {
		b, err := c.lockOwned(ctx, u, caller, id)
		if err != nil {
			return err
		}
		if b.Status != db.BookingActive {
			return fmt.Errorf("booking %d is %s: %w", b.ID, b.Status, ErrBookingNotActive)
		}

		start, end := b.StartTime, b.EndTime
		if req.StartTime != nil {
			start = *req.StartTime
		}
		if req.EndTime != nil {
			end = req.EndTime
		}
		if end != nil && !end.After(start) {
			return apperrors.Validation("end_time must be after start_time")
		}

		if err := u.UpdateBookingWindow(ctx, b.ID, start, end); err != nil {
			return err
		}
		if err := c.audit(ctx, u, &caller.UserID, events.BookingUpdated, b.ID, ""); err != nil {
			return err
		}
		detail, err = u.GetBookingDetail(ctx, b.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("booking_id", detail.ID).Msg("booking_updated")
	c.notify(ctx, events.NewBookingChange(events.BookingUpdated, detail, "", c.now()))
	return detail, nil
}

// CancelBooking moves an ACTIVE booking to CANCELLED and releases its space.
func (c *BookingCoordinator) CancelBooking(ctx context.Context, caller auth.Caller, id int64) (*db.BookingDetail, error) {
	return c.finish(ctx, caller, id, db.BookingCancelled, events.BookingCancelled)
}

// CompleteBooking moves an ACTIVE booking to COMPLETED and releases its space.
// Only staff may complete bookings.
func (c *BookingCoordinator) CompleteBooking(ctx context.Context, caller auth.Caller, id int64) (*db.BookingDetail, error) {
	if !caller.IsStaff() {
		return nil, apperrors.Forbidden("only staff can complete bookings")
	}
	return c.finish(ctx, caller, id, db.BookingCompleted, events.BookingCompleted)
}

// CompleteExpiredBooking completes the booking when it is still ACTIVE and its
// end time is not after now. It reports whether the booking was completed.
func (c *BookingCoordinator) CompleteExpiredBooking(ctx context.Context, id int64, now time.Time) (bool, error) {
	var (
		detail   *db.BookingDetail
		released bool
	)
	err := c.store.RunInTx(ctx, func(u BookingUnit) error {
		b, err := u.LockBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != db.BookingActive || b.EndTime == nil || b.EndTime.After(now) {
			return nil
		}
		detail, released, err = c.transition(ctx, u, b, db.BookingCompleted, events.BookingCompleted, nil)
		return err
	})
	if err != nil || detail == nil {
		return false, err
	}

	log.Info().Int64("booking_id", detail.ID).Bool("space_released", released).Msg("booking_expired")
	c.notify(ctx, events.NewBookingChange(events.BookingCompleted, detail, releasedStatus(released), c.now()))
	return true, nil
}

func (c *BookingCoordinator) finish(ctx context.Context, caller auth.Caller, id int64, to db.BookingStatus, event string) (*db.BookingDetail, error) {
	var (
		detail   *db.BookingDetail
		released bool
	)
	err := c.store.RunInTx(ctx, func(u BookingUnit) error {
		b, err := c.lockOwned(ctx, u, caller, id)
		if err != nil {
			return err
		}
		detail, released, err = c.transition(ctx, u, b, to, event, &caller.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("booking_id", detail.ID).Int64("space_id", detail.SpaceID).Bool("space_released", released).Msg(logEvent(event))
	c.notify(ctx, events.NewBookingChange(event, detail, releasedStatus(released), c.now()))
	return detail, nil
}

// transition applies ACTIVE -> to and releases the space in the same transaction.
func (c *BookingCoordinator) transition(ctx context.Context, u BookingUnit, b *db.Booking, to db.BookingStatus, event string, actor *int64) (*db.BookingDetail, bool, error) {
	if !b.Status.CanTransitionTo(to) {
		return nil, false, fmt.Errorf("booking %d is %s: %w", b.ID, b.Status, ErrBookingNotActive)
	}
	ok, err := u.TransitionBookingStatus(ctx, b.ID, b.Status, to)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("booking %d: %w", b.ID, ErrBookingNotActive)
	}

	released, err := c.release(ctx, u, b.SpaceID)
	if err != nil {
		return nil, false, err
	}
	if err := c.audit(ctx, u, actor, event, b.ID, fmt.Sprintf("space=%d released=%t", b.SpaceID, released)); err != nil {
		return nil, false, err
	}
	detail, err := u.GetBookingDetail(ctx, b.ID)
	if err != nil {
		return nil, false, err
	}
	return detail, released, nil
}

// DeleteBooking removes the booking row and releases the space when the
// booking was still ACTIVE.
func (c *BookingCoordinator) DeleteBooking(ctx context.Context, caller auth.Caller, id int64) error {
	var (
		detail   *db.BookingDetail
		released bool
	)
	err := c.store.RunInTx(ctx, func(u BookingUnit) error {
		b, err := c.lockOwned(ctx, u, caller, id)
		if err != nil {
			return err
		}
		detail, err = u.GetBookingDetail(ctx, b.ID)
		if err != nil {
			return err
		}

		ok, err := u.DeleteBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound("booking %d not found", b.ID)
		}
		if b.Status == db.BookingActive {
			if released, err = c.release(ctx, u, b.SpaceID); err != nil {
				return err
			}
		}
		return c.audit(ctx, u, &caller.UserID, events.BookingDeleted, b.ID,
			fmt.Sprintf("space=%d released=%t", b.SpaceID, released))
	})
	if err != nil {
		return err
	}

	log.Info().Int64("booking_id", id).Int64("space_id", detail.SpaceID).Bool("space_released", released).Msg("booking_deleted")
	c.notify(ctx, events.NewBookingChange(events.BookingDeleted, detail, releasedStatus(released), c.now()))
	return nil
}

// release returns a RESERVED space to AVAILABLE. Spaces that staff moved to
// another status in the meantime are left as they are.
func (c *BookingCoordinator) release(ctx context.Context, u BookingUnit, spaceID int64) (bool, error) {
	return u.TransitionSpaceStatus(ctx, spaceID, db.SpaceReserved, db.SpaceAvailable)
}

// lockOwned locks the booking and hides it from callers who may not act on it.
func (c *BookingCoordinator) lockOwned(ctx context.Context, u BookingUnit, caller auth.Caller, id int64) (*db.Booking, error) {
	b, err := u.LockBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(b.UserID) {
		return nil, apperrors.NotFound("booking %d not found", id)
	}
	return b, nil
}

func (c *BookingCoordinator) audit(ctx context.Context, u BookingUnit, actor *int64, action string, bookingID int64, details string) error {
	return u.InsertAuditLog(ctx, &db.AuditLog{
		UserID:   actor,
		Action:   action,
		Entity:   "booking",
		EntityID: bookingID,
		Details:  details,
	})
}

func (c *BookingCoordinator) notify(ctx context.Context, change events.BookingChange) {
	for _, h := range c.hooks {
		if err := h.BookingChanged(ctx, change); err != nil {
			log.Warn().Err(err).Str("event", change.Type).Int64("booking_id", change.BookingID).Msg("booking_hook_failed")
		}
	}
}

func (c *BookingCoordinator) GetBooking(ctx context.Context, caller auth.Caller, id int64) (*db.BookingDetail, error) {
	d, err := c.store.GetBookingDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(d.UserID) {
		return nil, apperrors.NotFound("booking %d not found", id)
	}
	return d, nil
}

func (c *BookingCoordinator) ListForUser(ctx context.Context, caller auth.Caller, userID int64) ([]db.BookingDetail, error) {
	if !caller.CanAccess(userID) {
		return nil, apperrors.Forbidden("cannot list bookings of user %d", userID)
	}
	return c.store.ListBookingDetailsByUser(ctx, userID)
}

func (c *BookingCoordinator) ListAll(ctx context.Context, caller auth.Caller) ([]db.BookingDetail, error) {
	if !caller.IsStaff() {
		return nil, apperrors.Forbidden("only staff can list all bookings")
	}
	return c.store.ListBookingDetails(ctx)
}

// ListBookings returns every booking to staff and the caller's own bookings otherwise.
func (c *BookingCoordinator) ListBookings(ctx context.Context, caller auth.Caller) ([]db.BookingDetail, error) {
	if caller.IsStaff() {
		return c.ListAll(ctx, caller)
	}
	return c.ListForUser(ctx, caller, caller.UserID)
}

// Quote prices the booking window at its space's hourly rate.
func (c *BookingCoordinator) Quote(ctx context.Context, caller auth.Caller, id int64) (*entities.Quote, error) {
	d, err := c.GetBooking(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if d.EndTime == nil {
		return nil, apperrors.Validation("booking %d has no end time", id)
	}
	return &entities.Quote{
		BookingID:  d.ID,
		SpaceID:    d.SpaceID,
		StartTime:  d.StartTime,
		EndTime:    *d.EndTime,
		Hours:      HoursBetween(d.StartTime, *d.EndTime),
		HourlyRate: d.HourlyRate,
		Amount:     Cost(d.StartTime, *d.EndTime, d.HourlyRate),
	}, nil
}

func releasedStatus(released bool) db.SpaceStatus {
	if released {
		return db.SpaceAvailable
	}
	return ""
}

// logEvent turns "booking.cancelled" into "booking_cancelled".
func logEvent(event string) string {
	return strings.ReplaceAll(event, ".", "_")
}
