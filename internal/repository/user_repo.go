package repository

import (
	"context"

	"parkingapi/internal/db"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, name, phone, role, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*db.User, error) {
	var u db.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Phone, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetUser(ctx context.Context, id int64) (*db.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "user %d", id)
	}
	return u, nil
}

// GetUserByEmail looks the user up by its normalized (lower-case) email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, classify(err, "user %q", email)
	}
	return u, nil
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]db.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, classify(err, "list users")
	}
	defer rows.Close()

	users := []db.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, classify(err, "scan user")
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate users")
	}
	return users, nil
}

// CreateUser inserts u with an already hashed password and fills in the generated fields.
func (r *UserRepository) CreateUser(ctx context.Context, u *db.User) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, name, phone, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		u.Email, u.PasswordHash, u.Name, u.Phone, u.Role,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return classify(err, "create user %q", u.Email)
}

// UpdateUser changes the mutable profile fields: name, phone and role.
func (r *UserRepository) UpdateUser(ctx context.Context, u *db.User) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET name = $2, phone = $3, role = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING email, created_at, updated_at`,
		u.ID, u.Name, u.Phone, u.Role,
	).Scan(&u.Email, &u.CreatedAt, &u.UpdatedAt)
	return classify(err, "update user %d", u.ID)
}

// UserReferenced reports whether any vehicle or booking still points at the user.
func (r *UserRepository) UserReferenced(ctx context.Context, id int64) (bool, error) {
	var referenced bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM vehicles WHERE user_id = $1)
		    OR EXISTS (SELECT 1 FROM bookings WHERE user_id = $1)`, id,
	).Scan(&referenced)
	if err != nil {
		return false, classify(err, "user %d references", id)
	}
	return referenced, nil
}

func (r *UserRepository) DeleteUser(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return affected(res, err, "delete user %d", id)
}
