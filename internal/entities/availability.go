package entities

import "time"

// TypeAvailability counts the free spaces of one space type.
type TypeAvailability struct {
	Type      string `json:"type"`
	Available int    `json:"available"`
}

type AvailabilityResponse struct {
	IsOverallAvailable bool               `json:"is_overall_available"`
	Total              int                `json:"total"`
	Available          int                `json:"available"`
	ByType             []TypeAvailability `json:"by_type"`
	CheckedAt          time.Time          `json:"checked_at"`
}
