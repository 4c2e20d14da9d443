package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	apperrors "parkingapi/internal/errors"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries groups every repository bound to the same handle. The embedded
// repositories use distinct method names so all of them are promoted.
type Queries struct {
	*UserRepository
	*SpaceRepository
	*VehicleRepository
	*BookingRepository
	*PaymentRepository
	*AdminRepository
	*JobRepository
}

func NewQueries(db DBTX) *Queries {
	return &Queries{
		UserRepository:    NewUserRepository(db),
		SpaceRepository:   NewSpaceRepository(db),
		VehicleRepository: NewVehicleRepository(db),
		BookingRepository: NewBookingRepository(db),
		PaymentRepository: NewPaymentRepository(db),
		AdminRepository:   NewAdminRepository(db),
		JobRepository:     NewJobRepository(db),
	}
}

// Store owns the connection pool and runs units of work in transactions.
type Store struct {
	DB *sql.DB
	*Queries
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, Queries: NewQueries(db)}
}

// RunInTx executes fn with repositories bound to a single READ COMMITTED
// transaction. Any error returned by fn rolls the transaction back and is
// returned unchanged; begin and commit failures are storage failures.
func (s *Store) RunInTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Storage(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := fn(NewQueries(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Storage(err, "failed to commit transaction")
	}
	return nil
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// classify turns driver errors into the error taxonomy: missing rows are
// NotFound, unique and foreign key violations are Conflict, check violations
// are Validation and everything else is a storage failure.
func classify(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, a...)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.Wrap(apperrors.KindNotFound, err, msg)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return apperrors.Wrap(apperrors.KindConflict, fmt.Errorf("%w: %w", apperrors.ErrDuplicate, err), msg)
		case pqForeignKeyViolation:
			return apperrors.Wrap(apperrors.KindConflict, fmt.Errorf("%w: %w", apperrors.ErrMissingReference, err), msg)
		case pqCheckViolation:
			return apperrors.Wrap(apperrors.KindValidation, err, msg)
		}
	}
	return apperrors.Storage(err, msg)
}

// affected reports whether a statement changed at least one row.
func affected(res sql.Result, err error, format string, a ...any) (bool, error) {
	if err != nil {
		return false, classify(err, format, a...)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, format, a...)
	}
	return n > 0, nil
}
