package repository

import (
	"context"
	"database/sql"

	"parkingapi/internal/db"
)

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, booking_id, user_id, amount, currency, method, status, stripe_session_id, checkout_url, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*db.Payment, error) {
	var p db.Payment
	err := row.Scan(&p.ID, &p.BookingID, &p.UserID, &p.Amount, &p.Currency, &p.Method, &p.Status,
		&p.StripeSessionID, &p.CheckoutURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetPayment(ctx context.Context, id int64) (*db.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, classify(err, "payment %d", id)
	}
	return p, nil
}

func (r *PaymentRepository) GetPaymentBySession(ctx context.Context, sessionID string) (*db.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE stripe_session_id = $1`, sessionID))
	if err != nil {
		return nil, classify(err, "payment for session %q", sessionID)
	}
	return p, nil
}

func (r *PaymentRepository) ListPayments(ctx context.Context) ([]db.Payment, error) {
	return r.queryPayments(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC, id DESC`)
}

func (r *PaymentRepository) ListPaymentsByUser(ctx context.Context, userID int64) ([]db.Payment, error) {
	return r.queryPayments(ctx, `SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *PaymentRepository) queryPayments(ctx context.Context, query string, args ...any) ([]db.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "list payments")
	}
	defer rows.Close()

	payments := []db.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, classify(err, "scan payment")
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate payments")
	}
	return payments, nil
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, p *db.Payment) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payments (booking_id, user_id, amount, currency, method, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		p.BookingID, p.UserID, p.Amount, p.Currency, p.Method, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return classify(err, "create payment for booking %d", p.BookingID)
}

// UpdatePaymentStatus sets the status without touching the booking or its space.
func (r *PaymentRepository) UpdatePaymentStatus(ctx context.Context, id int64, status db.PaymentStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return affected(res, err, "update payment %d status", id)
}

// AttachCheckoutSession records the Stripe Checkout session created for the payment.
func (r *PaymentRepository) AttachCheckoutSession(ctx context.Context, id int64, sessionID, url string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET stripe_session_id = $2, checkout_url = $3, updated_at = NOW() WHERE id = $1`,
		id, sessionID, url)
	ok, err := affected(res, err, "attach session to payment %d", id)
	if err != nil {
		return err
	}
	if !ok {
		return classify(sql.ErrNoRows, "payment %d", id)
	}
	return nil
}
