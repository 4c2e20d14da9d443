package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"parkingapi/internal/auth"
	"parkingapi/internal/db"
	apperrors "parkingapi/internal/errors"
	"parkingapi/internal/utils"
)

type VehicleStore interface {
	GetVehicle(ctx context.Context, id int64) (*db.Vehicle, error)
	ListVehicles(ctx context.Context) ([]db.Vehicle, error)
	ListVehiclesByOwner(ctx context.Context, userID int64) ([]db.Vehicle, error)
	CreateVehicle(ctx context.Context, v *db.Vehicle) error
	UpdateVehicle(ctx context.Context, v *db.Vehicle) error
	DeleteVehicle(ctx context.Context, id int64) (bool, error)
}

type VehicleInput struct {
	LicensePlate string `json:"license_plate"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Color        string `json:"color"`
}

// VehicleService is the vehicle registry. Each vehicle belongs to the user
// who created it and only that user may change or remove it.
type VehicleService struct {
	store VehicleStore
}

func NewVehicleService(store VehicleStore) *VehicleService {
	return &VehicleService{store: store}
}

func (s *VehicleService) Create(ctx context.Context, caller auth.Caller, in VehicleInput) (*db.Vehicle, error) {
	v := &db.Vehicle{UserID: caller.UserID}
	if err := applyVehicleInput(v, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateVehicle(ctx, v); err != nil {
		return nil, err
	}
	log.Info().Int64("vehicle_id", v.ID).Int64("user_id", v.UserID).Msg("vehicle_created")
	return v, nil
}

// Get returns the vehicle to its owner or to staff.
func (s *VehicleService) Get(ctx context.Context, caller auth.Caller, id int64) (*db.Vehicle, error) {
	v, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(v.UserID) {
		return nil, apperrors.Forbidden("vehicle %d belongs to another user", id)
	}
	return v, nil
}

func (s *VehicleService) ListByOwner(ctx context.Context, caller auth.Caller, userID int64) ([]db.Vehicle, error) {
	if !caller.CanAccess(userID) {
		return nil, apperrors.Forbidden("cannot list vehicles of user %d", userID)
	}
	return s.store.ListVehiclesByOwner(ctx, userID)
}

// List returns every vehicle to staff and the caller's own vehicles otherwise.
func (s *VehicleService) List(ctx context.Context, caller auth.Caller) ([]db.Vehicle, error) {
	if caller.IsStaff() {
		return s.store.ListVehicles(ctx)
	}
	return s.store.ListVehiclesByOwner(ctx, caller.UserID)
}

func (s *VehicleService) Update(ctx context.Context, caller auth.Caller, id int64, in VehicleInput) (*db.Vehicle, error) {
	v, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := applyVehicleInput(v, in); err != nil {
		return nil, err
	}
	if err := s.store.UpdateVehicle(ctx, v); err != nil {
		return nil, err
	}
	log.Info().Int64("vehicle_id", v.ID).Msg("vehicle_updated")
	return v, nil
}

func (s *VehicleService) Delete(ctx context.Context, caller auth.Caller, id int64) error {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}
	ok, err := s.store.DeleteVehicle(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NotFound("vehicle %d not found", id)
	}
	log.Info().Int64("vehicle_id", id).Msg("vehicle_deleted")
	return nil
}

// owned loads the vehicle and requires the caller to be its owner.
func (s *VehicleService) owned(ctx context.Context, caller auth.Caller, id int64) (*db.Vehicle, error) {
	v, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.UserID != caller.UserID {
		return nil, apperrors.Forbidden("vehicle %d belongs to another user", id)
	}
	return v, nil
}

func applyVehicleInput(v *db.Vehicle, in VehicleInput) error {
	plate := utils.NormalizePlate(in.LicensePlate)
	if plate == "" {
		return apperrors.Validation("license_plate is required")
	}
	v.LicensePlate = plate
	v.Make = strings.TrimSpace(in.Make)
	v.Model = strings.TrimSpace(in.Model)
	v.Color = strings.TrimSpace(in.Color)
	return nil
}
