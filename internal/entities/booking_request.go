package entities

import "time"

type BookingRequest struct {
	SpaceID   int64      `json:"space_id"`
	VehicleID int64      `json:"vehicle_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// BookingUpdateRequest changes the booking window; nil fields keep their value.
type BookingUpdateRequest struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}
