package db

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleOperator Role = "OPERATOR"
	RoleUser     Role = "USER"
)

// ParseRole accepts only the known roles; unknown input is an error, never a default.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleOperator, RoleUser:
		return r, nil
	}
	return "", fmt.Errorf("invalid role: %q", s)
}

// IsStaff reports whether the role may manage spaces and other users' bookings.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleOperator
}

type SpaceType string

const (
	SpaceCompact  SpaceType = "COMPACT"
	SpaceLarge    SpaceType = "LARGE"
	SpaceHandicap SpaceType = "HANDICAP"
	SpaceElectric SpaceType = "ELECTRIC"
)

func ParseSpaceType(s string) (SpaceType, error) {
	switch t := SpaceType(strings.ToUpper(strings.TrimSpace(s))); t {
	case SpaceCompact, SpaceLarge, SpaceHandicap, SpaceElectric:
		return t, nil
	}
	return "", fmt.Errorf("invalid space type: %q", s)
}

type SpaceStatus string

const (
	SpaceAvailable    SpaceStatus = "AVAILABLE"
	SpaceReserved     SpaceStatus = "RESERVED"
	SpaceOccupied     SpaceStatus = "OCCUPIED"
	SpaceOutOfService SpaceStatus = "OUT_OF_SERVICE"
)

func ParseSpaceStatus(s string) (SpaceStatus, error) {
	switch st := SpaceStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case SpaceAvailable, SpaceReserved, SpaceOccupied, SpaceOutOfService:
		return st, nil
	}
	return "", fmt.Errorf("invalid space status: %q", s)
}

type BookingStatus string

const (
	BookingActive    BookingStatus = "ACTIVE"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingActive:    {BookingCancelled, BookingCompleted},
	BookingCancelled: {},
	BookingCompleted: {},
}

// CanTransitionTo reports whether the booking state machine allows s -> target.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
	PaymentFailed   PaymentStatus = "FAILED"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case PaymentPending, PaymentPaid, PaymentRefunded, PaymentFailed:
		return st, nil
	}
	return "", fmt.Errorf("invalid payment status: %q", s)
}

type PaymentMethod string

const (
	MethodCash   PaymentMethod = "CASH"
	MethodCard   PaymentMethod = "CARD"
	MethodStripe PaymentMethod = "STRIPE"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodCash, MethodCard, MethodStripe:
		return m, nil
	}
	return "", fmt.Errorf("invalid payment method: %q", s)
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Vehicle struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	LicensePlate string    `json:"license_plate"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Color        string    `json:"color"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ParkingSpace struct {
	ID          int64       `json:"id"`
	SpaceNumber string      `json:"space_number"`
	Location    string      `json:"location"`
	Type        SpaceType   `json:"type"`
	Status      SpaceStatus `json:"status"`
	HourlyRate  float64     `json:"hourly_rate"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type Booking struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	SpaceID   int64         `json:"space_id"`
	VehicleID int64         `json:"vehicle_id"`
	StartTime time.Time     `json:"start_time"`
	EndTime   *time.Time    `json:"end_time"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BookingDetail is a booking joined with the display fields of its user, space and vehicle.
type BookingDetail struct {
	Booking
	UserName      string  `json:"user_name"`
	UserEmail     string  `json:"user_email"`
	UserPhone     string  `json:"user_phone"`
	SpaceNumber   string  `json:"space_number"`
	SpaceLocation string  `json:"space_location"`
	HourlyRate    float64 `json:"hourly_rate"`
	LicensePlate  string  `json:"license_plate"`
	VehicleModel  string  `json:"vehicle_model"`
}

type Payment struct {
	ID              int64         `json:"id"`
	BookingID       int64         `json:"booking_id"`
	UserID          int64         `json:"user_id"`
	Amount          float64       `json:"amount"`
	Currency        string        `json:"currency"`
	Method          PaymentMethod `json:"method"`
	Status          PaymentStatus `json:"status"`
	StripeSessionID string        `json:"stripe_session_id,omitempty"`
	CheckoutURL     string        `json:"checkout_url,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type PricingRule struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	SpaceType  SpaceType `json:"space_type"`
	Multiplier float64   `json:"multiplier"`
	StartHour  int       `json:"start_hour"`
	EndHour    int       `json:"end_hour"`
	CreatedAt  time.Time `json:"created_at"`
}

type AuditLog struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id,omitempty"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  int64     `json:"entity_id"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}
