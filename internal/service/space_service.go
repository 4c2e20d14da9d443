package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"parkingapi/internal/auth"
	"parkingapi/internal/db"
	"parkingapi/internal/entities"
	apperrors "parkingapi/internal/errors"
	"parkingapi/internal/events"
)

type SpaceStore interface {
	GetSpace(ctx context.Context, id int64) (*db.ParkingSpace, error)
	ListSpaces(ctx context.Context) ([]db.ParkingSpace, error)
	ListSpacesByStatus(ctx context.Context, statuses ...db.SpaceStatus) ([]db.ParkingSpace, error)
	CreateSpace(ctx context.Context, s *db.ParkingSpace) error
	UpdateSpace(ctx context.Context, s *db.ParkingSpace) error
	SetSpaceStatus(ctx context.Context, id int64, status db.SpaceStatus) (bool, error)
	DeleteSpace(ctx context.Context, id int64) (bool, error)
}

// SpaceListener is told about status changes made outside the booking flow.
type SpaceListener interface {
	SpaceChanged(ctx context.Context, change events.SpaceChange) error
}

// SpaceInput carries the writable fields of a space. Status defaults to AVAILABLE.
type SpaceInput struct {
	SpaceNumber string  `json:"space_number"`
	Location    string  `json:"location"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	HourlyRate  float64 `json:"hourly_rate"`
}

// SpaceUpdate changes a space; nil fields keep their stored value.
type SpaceUpdate struct {
	SpaceNumber *string  `json:"space_number"`
	Location    *string  `json:"location"`
	Type        *string  `json:"type"`
	Status      *string  `json:"status"`
	HourlyRate  *float64 `json:"hourly_rate"`
}

// merge overlays the non-nil fields of u on the stored space.
func (u SpaceUpdate) merge(sp *db.ParkingSpace) SpaceInput {
	in := SpaceInput{
		SpaceNumber: sp.SpaceNumber,
		Location:    sp.Location,
		Type:        string(sp.Type),
		Status:      string(sp.Status),
		HourlyRate:  sp.HourlyRate,
	}
	if u.SpaceNumber != nil {
		in.SpaceNumber = *u.SpaceNumber
	}
	if u.Location != nil {
		in.Location = *u.Location
	}
	if u.Type != nil {
		in.Type = *u.Type
	}
	if u.Status != nil {
		in.Status = *u.Status
	}
	if u.HourlyRate != nil {
		in.HourlyRate = *u.HourlyRate
	}
	return in
}

// SpaceService is the space registry. Mutations are reserved to staff.
type SpaceService struct {
	store    SpaceStore
	listener SpaceListener
}

func NewSpaceService(store SpaceStore, listener SpaceListener) *SpaceService {
	return &SpaceService{store: store, listener: listener}
}

func (s *SpaceService) Get(ctx context.Context, id int64) (*db.ParkingSpace, error) {
	return s.store.GetSpace(ctx, id)
}

func (s *SpaceService) ListAll(ctx context.Context) ([]db.ParkingSpace, error) {
	return s.store.ListSpaces(ctx)
}

func (s *SpaceService) ListAvailable(ctx context.Context) ([]db.ParkingSpace, error) {
	return s.store.ListSpacesByStatus(ctx, db.SpaceAvailable)
}

// Availability summarizes the free spaces per type.
func (s *SpaceService) Availability(ctx context.Context) (*entities.AvailabilityResponse, error) {
	all, err := s.store.ListSpaces(ctx)
	if err != nil {
		return nil, err
	}
	counts := map[db.SpaceType]int{}
	resp := &entities.AvailabilityResponse{Total: len(all), CheckedAt: time.Now().UTC()}
	for _, sp := range all {
		if sp.Status == db.SpaceAvailable {
			counts[sp.Type]++
			resp.Available++
		}
	}
	for _, t := range []db.SpaceType{db.SpaceCompact, db.SpaceLarge, db.SpaceHandicap, db.SpaceElectric} {
		resp.ByType = append(resp.ByType, entities.TypeAvailability{Type: string(t), Available: counts[t]})
	}
	resp.IsOverallAvailable = resp.Available > 0
	return resp, nil
}

func (s *SpaceService) Create(ctx context.Context, caller auth.Caller, in SpaceInput) (*db.ParkingSpace, error) {
	if !caller.IsStaff() {
		return nil, apperrors.Forbidden("only staff can create spaces")
	}
	sp := &db.ParkingSpace{}
	if err := applySpaceInput(sp, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateSpace(ctx, sp); err != nil {
		return nil, err
	}
	log.Info().Int64("space_id", sp.ID).Str("space_number", sp.SpaceNumber).Msg("space_created")
	return sp, nil
}

func (s *SpaceService) Update(ctx context.Context, caller auth.Caller, id int64, u SpaceUpdate) (*db.ParkingSpace, error) {
	if !caller.IsStaff() {
		return nil, apperrors.Forbidden("only staff can update spaces")
	}
	sp, err := s.store.GetSpace(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := sp.Status
	if err := applySpaceInput(sp, u.merge(sp)); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSpace(ctx, sp); err != nil {
		return nil, err
	}
	log.Info().Int64("space_id", sp.ID).Msg("space_updated")
	if sp.Status != previous {
		s.announce(ctx, sp.ID, sp.SpaceNumber, sp.Status)
	}
	return sp, nil
}

// SetStatus overwrites the status without checking the transition. It
// returns false when the space does not exist.
func (s *SpaceService) SetStatus(ctx context.Context, caller auth.Caller, id int64, status string) (bool, error) {
	if !caller.IsStaff() {
		return false, apperrors.Forbidden("only staff can change space status")
	}
	st, err := db.ParseSpaceStatus(status)
	if err != nil {
		return false, apperrors.Validation("%s", err.Error())
	}
	ok, err := s.store.SetSpaceStatus(ctx, id, st)
	if err != nil || !ok {
		return ok, err
	}
	log.Info().Int64("space_id", id).Str("status", string(st)).Msg("space_status_set")
	s.announce(ctx, id, "", st)
	return true, nil
}

func (s *SpaceService) Delete(ctx context.Context, caller auth.Caller, id int64) (bool, error) {
	if !caller.IsStaff() {
		return false, apperrors.Forbidden("only staff can delete spaces")
	}
	ok, err := s.store.DeleteSpace(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		log.Info().Int64("space_id", id).Msg("space_deleted")
	}
	return ok, nil
}

func (s *SpaceService) announce(ctx context.Context, id int64, number string, status db.SpaceStatus) {
	if s.listener == nil {
		return
	}
	change := events.SpaceChange{Type: events.SpaceUpdated, SpaceID: id, SpaceNumber: number, Status: status, OccurredAt: time.Now().UTC()}
	if err := s.listener.SpaceChanged(ctx, change); err != nil {
		log.Warn().Err(err).Int64("space_id", id).Msg("space_listener_failed")
	}
}

func applySpaceInput(sp *db.ParkingSpace, in SpaceInput) error {
	number := strings.TrimSpace(in.SpaceNumber)
	if number == "" {
		return apperrors.Validation("space_number is required")
	}
	typ, err := db.ParseSpaceType(in.Type)
	if err != nil {
		return apperrors.Validation("%s", err.Error())
	}
	status := db.SpaceAvailable
	if in.Status != "" {
		if status, err = db.ParseSpaceStatus(in.Status); err != nil {
			return apperrors.Validation("%s", err.Error())
		}
	}
	if in.HourlyRate < 0 {
		return apperrors.Validation("hourly_rate must not be negative")
	}

	sp.SpaceNumber = number
	sp.Location = strings.TrimSpace(in.Location)
	sp.Type = typ
	sp.Status = status
	sp.HourlyRate = Round2(in.HourlyRate)
	return nil
}
