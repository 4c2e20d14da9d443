package events

import (
	"time"

	"github.com/google/uuid"

	"parkingapi/internal/db"
)

const (
	BookingCreated   = "booking.created"
	BookingUpdated   = "booking.updated"
	BookingCancelled = "booking.cancelled"
	BookingCompleted = "booking.completed"
	BookingDeleted   = "booking.deleted"
	SpaceUpdated     = "space.updated"
)

// BookingChange is emitted after a booking transaction commits.
// SpaceStatus is empty when the space status was left untouched.
type BookingChange struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	BookingID   int64             `json:"booking_id"`
	UserID      int64             `json:"user_id"`
	SpaceID     int64             `json:"space_id"`
	SpaceStatus db.SpaceStatus    `json:"space_status,omitempty"`
	Booking     *db.BookingDetail `json:"booking,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

func NewBookingChange(typ string, d *db.BookingDetail, spaceStatus db.SpaceStatus, at time.Time) BookingChange {
	return BookingChange{
		ID:          uuid.NewString(),
		Type:        typ,
		BookingID:   d.ID,
		UserID:      d.UserID,
		SpaceID:     d.SpaceID,
		SpaceStatus: spaceStatus,
		Booking:     d,
		OccurredAt:  at.UTC(),
	}
}

// SpaceChange is what the live feed pushes to its subscribers.
type SpaceChange struct {
	Type        string         `json:"type"`
	SpaceID     int64          `json:"space_id"`
	SpaceNumber string         `json:"space_number,omitempty"`
	Status      db.SpaceStatus `json:"status"`
	OccurredAt  time.Time      `json:"occurred_at"`
}
