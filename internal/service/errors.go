package service

import apperrors "parkingapi/internal/errors"

// ErrSpaceUnavailable is returned when a booking targets a space that is
// missing or not AVAILABLE.
var ErrSpaceUnavailable = apperrors.New(apperrors.KindConflict, "space unavailable")

// ErrInvalidVehicle is returned when the vehicle is missing or owned by someone else.
var ErrInvalidVehicle = apperrors.New(apperrors.KindForbidden, "invalid vehicle")

var (
	ErrBookingNotActive = apperrors.New(apperrors.KindConflict, "booking is not active")
	ErrInvalidRole      = apperrors.New(apperrors.KindValidation, "invalid role")
	ErrBadCredentials   = apperrors.New(apperrors.KindUnauthorized, "invalid credentials")
)
