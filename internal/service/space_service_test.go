package service

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkingapi/internal/auth"
	"parkingapi/internal/db"
	apperrors "parkingapi/internal/errors"
	"parkingapi/internal/events"
)

type fakeSpaceStore struct {
	next   int64
	spaces map[int64]db.ParkingSpace
}

func newFakeSpaceStore() *fakeSpaceStore {
	return &fakeSpaceStore{spaces: map[int64]db.ParkingSpace{}}
}

func (f *fakeSpaceStore) GetSpace(_ context.Context, id int64) (*db.ParkingSpace, error) {
	s, ok := f.spaces[id]
	if !ok {
		return nil, apperrors.NotFound("space %d not found", id)
	}
	return &s, nil
}

func (f *fakeSpaceStore) ListSpaces(_ context.Context) ([]db.ParkingSpace, error) {
	return f.ListSpacesByStatus(context.Background())
}

func (f *fakeSpaceStore) ListSpacesByStatus(_ context.Context, statuses ...db.SpaceStatus) ([]db.ParkingSpace, error) {
	out := []db.ParkingSpace{}
	for _, s := range f.spaces {
		keep := len(statuses) == 0
		for _, st := range statuses {
			keep = keep || s.Status == st
		}
		if keep {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpaceNumber < out[j].SpaceNumber })
	return out, nil
}

func (f *fakeSpaceStore) CreateSpace(_ context.Context, s *db.ParkingSpace) error {
	for _, other := range f.spaces {
		if other.SpaceNumber == s.SpaceNumber {
			return apperrors.Conflict("space_number %q already exists", s.SpaceNumber)
		}
	}
	f.next++
	s.ID = f.next
	f.spaces[s.ID] = *s
	return nil
}

func (f *fakeSpaceStore) UpdateSpace(_ context.Context, s *db.ParkingSpace) error {
	if _, ok := f.spaces[s.ID]; !ok {
		return apperrors.NotFound("space %d not found", s.ID)
	}
	f.spaces[s.ID] = *s
	return nil
}

func (f *fakeSpaceStore) SetSpaceStatus(_ context.Context, id int64, status db.SpaceStatus) (bool, error) {
	s, ok := f.spaces[id]
	if !ok {
		return false, nil
	}
	s.Status = status
	f.spaces[id] = s
	return true, nil
}

func (f *fakeSpaceStore) DeleteSpace(_ context.Context, id int64) (bool, error) {
	if _, ok := f.spaces[id]; !ok {
		return false, nil
	}
	delete(f.spaces, id)
	return true, nil
}

type spaceRecorder struct {
	changes []events.SpaceChange
}

func (r *spaceRecorder) SpaceChanged(_ context.Context, c events.SpaceChange) error {
	r.changes = append(r.changes, c)
	return nil
}

var (
	staff    = auth.Caller{UserID: 1, Role: db.RoleOperator}
	customer = auth.Caller{UserID: 2, Role: db.RoleUser}
)

func TestSpaceCreateAndValidate(t *testing.T) {
	svc := NewSpaceService(newFakeSpaceStore(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, customer, SpaceInput{SpaceNumber: "A-01", Type: "COMPACT"})
	assert.True(t, apperrors.IsForbidden(err))

	sp, err := svc.Create(ctx, staff, SpaceInput{SpaceNumber: " A-01 ", Type: "compact", HourlyRate: 2.505})
	require.NoError(t, err)
	assert.Equal(t, "A-01", sp.SpaceNumber)
	assert.Equal(t, db.SpaceCompact, sp.Type)
	assert.Equal(t, db.SpaceAvailable, sp.Status)

	_, err = svc.Create(ctx, staff, SpaceInput{SpaceNumber: "A-01", Type: "COMPACT"})
	assert.True(t, apperrors.IsConflict(err))

	invalid := []SpaceInput{
		{Type: "COMPACT"},
		{SpaceNumber: "X", Type: "TRUCK"},
		{SpaceNumber: "X", Type: "LARGE", Status: "BROKEN"},
		{SpaceNumber: "X", Type: "LARGE", HourlyRate: -1},
	}
	for _, in := range invalid {
		_, err := svc.Create(ctx, staff, in)
		assert.True(t, apperrors.IsValidation(err), "input %+v", in)
	}
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestSpaceUpdateAnnouncesStatusChange(t *testing.T) {
	store := newFakeSpaceStore()
	rec := &spaceRecorder{}
	svc := NewSpaceService(store, rec)
	ctx := context.Background()

	sp, err := svc.Create(ctx, staff, SpaceInput{SpaceNumber: "B-01", Type: "LARGE", HourlyRate: 3})
	require.NoError(t, err)

	_, err = svc.Update(ctx, staff, sp.ID, SpaceUpdate{Location: strPtr("Level 2"), HourlyRate: floatPtr(4)})
	require.NoError(t, err)
	assert.Empty(t, rec.changes)

	updated, err := svc.Update(ctx, staff, sp.ID, SpaceUpdate{Status: strPtr("OUT_OF_SERVICE")})
	require.NoError(t, err)
	assert.Equal(t, db.SpaceOutOfService, updated.Status)
	assert.Equal(t, "Level 2", store.spaces[sp.ID].Location)
	require.Len(t, rec.changes, 1)
	assert.Equal(t, db.SpaceOutOfService, rec.changes[0].Status)
	assert.Equal(t, "B-01", rec.changes[0].SpaceNumber)

	_, err = svc.Update(ctx, staff, 999, SpaceUpdate{SpaceNumber: strPtr("Z")})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSpaceStatusOnlyUpdateKeepsOtherFields(t *testing.T) {
	store := newFakeSpaceStore()
	svc := NewSpaceService(store, nil)
	ctx := context.Background()

	sp, err := svc.Create(ctx, staff, SpaceInput{SpaceNumber: "E-01", Type: "COMPACT", Location: "Level 3", HourlyRate: 5})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, staff, sp.ID, SpaceUpdate{Status: strPtr("OUT_OF_SERVICE")})
	require.NoError(t, err)
	assert.Equal(t, db.SpaceOutOfService, updated.Status)
	assert.Equal(t, "Level 3", updated.Location)
	assert.Equal(t, 5.0, updated.HourlyRate)
	assert.Equal(t, "E-01", updated.SpaceNumber)
	assert.Equal(t, db.SpaceCompact, updated.Type)

	stored := store.spaces[sp.ID]
	assert.Equal(t, 5.0, stored.HourlyRate)

	_, err = svc.Update(ctx, staff, sp.ID, SpaceUpdate{HourlyRate: floatPtr(-1)})
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.Update(ctx, staff, sp.ID, SpaceUpdate{SpaceNumber: strPtr("  ")})
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.Update(ctx, customer, sp.ID, SpaceUpdate{Location: strPtr("Roof")})
	assert.True(t, apperrors.IsForbidden(err))
}

func TestSpaceSetStatus(t *testing.T) {
	store := newFakeSpaceStore()
	rec := &spaceRecorder{}
	svc := NewSpaceService(store, rec)
	ctx := context.Background()
	sp, err := svc.Create(ctx, staff, SpaceInput{SpaceNumber: "C-01", Type: "ELECTRIC"})
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, customer, sp.ID, "OCCUPIED")
	assert.True(t, apperrors.IsForbidden(err))

	_, err = svc.SetStatus(ctx, staff, sp.ID, "PARKED")
	assert.True(t, apperrors.IsValidation(err))

	ok, err := svc.SetStatus(ctx, staff, 999, "OCCUPIED")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.SetStatus(ctx, staff, sp.ID, "occupied")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, db.SpaceOccupied, store.spaces[sp.ID].Status)
	require.Len(t, rec.changes, 1)
	assert.Equal(t, events.SpaceUpdated, rec.changes[0].Type)
}

func TestSpaceAvailability(t *testing.T) {
	store := newFakeSpaceStore()
	svc := NewSpaceService(store, nil)
	ctx := context.Background()
	for _, in := range []SpaceInput{
		{SpaceNumber: "A-01", Type: "COMPACT"},
		{SpaceNumber: "A-02", Type: "COMPACT", Status: "RESERVED"},
		{SpaceNumber: "E-01", Type: "ELECTRIC"},
	} {
		_, err := svc.Create(ctx, staff, in)
		require.NoError(t, err)
	}

	resp, err := svc.Availability(ctx)
	require.NoError(t, err)
	assert.True(t, resp.IsOverallAvailable)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Available)
	require.Len(t, resp.ByType, 4)
	assert.Equal(t, "COMPACT", resp.ByType[0].Type)
	assert.Equal(t, 1, resp.ByType[0].Available)
	assert.Equal(t, 0, resp.ByType[1].Available)

	free, err := svc.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Len(t, free, 2)
}

func TestSpaceDelete(t *testing.T) {
	svc := NewSpaceService(newFakeSpaceStore(), nil)
	ctx := context.Background()
	sp, err := svc.Create(ctx, staff, SpaceInput{SpaceNumber: "D-01", Type: "HANDICAP"})
	require.NoError(t, err)

	_, err = svc.Delete(ctx, customer, sp.ID)
	assert.True(t, apperrors.IsForbidden(err))

	ok, err := svc.Delete(ctx, staff, sp.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Delete(ctx, staff, sp.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Get(ctx, sp.ID)
	assert.True(t, apperrors.IsNotFound(err))
}
