package repository

import (
	"context"

	"github.com/lib/pq"

	"parkingapi/internal/db"
)

type SpaceRepository struct {
	db DBTX
}

func NewSpaceRepository(db DBTX) *SpaceRepository {
	return &SpaceRepository{db: db}
}

const spaceColumns = `id, space_number, location, type, status, hourly_rate, created_at, updated_at`

func scanSpace(row interface{ Scan(...any) error }) (*db.ParkingSpace, error) {
	var s db.ParkingSpace
	if err := row.Scan(&s.ID, &s.SpaceNumber, &s.Location, &s.Type, &s.Status, &s.HourlyRate, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SpaceRepository) GetSpace(ctx context.Context, id int64) (*db.ParkingSpace, error) {
	s, err := scanSpace(r.db.QueryRowContext(ctx, `SELECT `+spaceColumns+` FROM parking_spaces WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "space %d", id)
	}
	return s, nil
}

// LockSpace reads the space row with FOR UPDATE. It must run inside a
// transaction; concurrent bookings of the same space serialize here.
func (r *SpaceRepository) LockSpace(ctx context.Context, id int64) (*db.ParkingSpace, error) {
	s, err := scanSpace(r.db.QueryRowContext(ctx, `SELECT `+spaceColumns+` FROM parking_spaces WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, classify(err, "lock space %d", id)
	}
	return s, nil
}

func (r *SpaceRepository) ListSpaces(ctx context.Context) ([]db.ParkingSpace, error) {
	return r.querySpaces(ctx, `SELECT `+spaceColumns+` FROM parking_spaces ORDER BY space_number`)
}

// ListSpacesByStatus returns the spaces whose status is any of statuses.
func (r *SpaceRepository) ListSpacesByStatus(ctx context.Context, statuses ...db.SpaceStatus) ([]db.ParkingSpace, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return r.querySpaces(ctx,
		`SELECT `+spaceColumns+` FROM parking_spaces WHERE status = ANY($1) ORDER BY space_number`,
		pq.Array(values))
}

func (r *SpaceRepository) querySpaces(ctx context.Context, query string, args ...any) ([]db.ParkingSpace, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "list spaces")
	}
	defer rows.Close()

	spaces := []db.ParkingSpace{}
	for rows.Next() {
		s, err := scanSpace(rows)
		if err != nil {
			return nil, classify(err, "scan space")
		}
		spaces = append(spaces, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate spaces")
	}
	return spaces, nil
}

func (r *SpaceRepository) CreateSpace(ctx context.Context, s *db.ParkingSpace) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO parking_spaces (space_number, location, type, status, hourly_rate)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		s.SpaceNumber, s.Location, s.Type, s.Status, s.HourlyRate,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	return classify(err, "create space %q", s.SpaceNumber)
}

// UpdateSpace writes every descriptive field of s, including its status.
func (r *SpaceRepository) UpdateSpace(ctx context.Context, s *db.ParkingSpace) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE parking_spaces
		SET space_number = $2, location = $3, type = $4, status = $5, hourly_rate = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		s.ID, s.SpaceNumber, s.Location, s.Type, s.Status, s.HourlyRate,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	return classify(err, "update space %d", s.ID)
}

// SetSpaceStatus overwrites the status unconditionally. It returns false when
// the space does not exist.
func (r *SpaceRepository) SetSpaceStatus(ctx context.Context, id int64, status db.SpaceStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE parking_spaces SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return affected(res, err, "set space %d status", id)
}

// TransitionSpaceStatus moves the space from one status to another and
// reports false when the space was not in the expected status.
func (r *SpaceRepository) TransitionSpaceStatus(ctx context.Context, id int64, from, to db.SpaceStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE parking_spaces SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`, id, from, to)
	return affected(res, err, "transition space %d %s->%s", id, from, to)
}

func (r *SpaceRepository) DeleteSpace(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM parking_spaces WHERE id = $1`, id)
	return affected(res, err, "delete space %d", id)
}
