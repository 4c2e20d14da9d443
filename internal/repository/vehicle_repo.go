package repository

import (
	"context"

	"parkingapi/internal/db"
)

// VehicleRepository stores vehicles. Ownership is checked by the caller.
type VehicleRepository struct {
	db DBTX
}

func NewVehicleRepository(db DBTX) *VehicleRepository {
	return &VehicleRepository{db: db}
}

const vehicleColumns = `id, user_id, license_plate, make, model, color, created_at, updated_at`

func scanVehicle(row interface{ Scan(...any) error }) (*db.Vehicle, error) {
	var v db.Vehicle
	if err := row.Scan(&v.ID, &v.UserID, &v.LicensePlate, &v.Make, &v.Model, &v.Color, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VehicleRepository) GetVehicle(ctx context.Context, id int64) (*db.Vehicle, error) {
	v, err := scanVehicle(r.db.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "vehicle %d", id)
	}
	return v, nil
}

func (r *VehicleRepository) ListVehicles(ctx context.Context) ([]db.Vehicle, error) {
	return r.queryVehicles(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY id`)
}

func (r *VehicleRepository) ListVehiclesByOwner(ctx context.Context, userID int64) ([]db.Vehicle, error) {
	return r.queryVehicles(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE user_id = $1 ORDER BY id`, userID)
}

func (r *VehicleRepository) queryVehicles(ctx context.Context, query string, args ...any) ([]db.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "list vehicles")
	}
	defer rows.Close()

	vehicles := []db.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, classify(err, "scan vehicle")
		}
		vehicles = append(vehicles, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate vehicles")
	}
	return vehicles, nil
}

func (r *VehicleRepository) CreateVehicle(ctx context.Context, v *db.Vehicle) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO vehicles (user_id, license_plate, make, model, color)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		v.UserID, v.LicensePlate, v.Make, v.Model, v.Color,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	return classify(err, "create vehicle %q", v.LicensePlate)
}

func (r *VehicleRepository) UpdateVehicle(ctx context.Context, v *db.Vehicle) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE vehicles SET license_plate = $2, make = $3, model = $4, color = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING user_id, created_at, updated_at`,
		v.ID, v.LicensePlate, v.Make, v.Model, v.Color,
	).Scan(&v.UserID, &v.CreatedAt, &v.UpdatedAt)
	return classify(err, "update vehicle %d", v.ID)
}

func (r *VehicleRepository) DeleteVehicle(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	return affected(res, err, "delete vehicle %d", id)
}
