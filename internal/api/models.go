package api

import "time"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// StatusRequest is the body of PUT /spaces/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	WSClients int       `json:"ws_clients"`
	CheckedAt time.Time `json:"checked_at"`
}
