package entities

type PaymentRequest struct {
	BookingID int64   `json:"booking_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Method    string  `json:"method"`
}

type PaymentStatusRequest struct {
	Status string `json:"status"`
}
