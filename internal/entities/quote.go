package entities

import "time"

type Quote struct {
	BookingID  int64     `json:"booking_id"`
	SpaceID    int64     `json:"space_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Hours      float64   `json:"hours"`
	HourlyRate float64   `json:"hourly_rate"`
	Amount     float64   `json:"amount"`
}
