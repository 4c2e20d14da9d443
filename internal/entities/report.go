package entities

type ReportSummary struct {
	SpacesByStatus    map[string]int     `json:"spaces_by_status"`
	BookingsByStatus  map[string]int     `json:"bookings_by_status"`
	RevenueByCurrency map[string]float64 `json:"revenue_by_currency"`
}
