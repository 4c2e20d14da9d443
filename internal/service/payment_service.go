package service

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"parkingapi/internal/auth"
	"parkingapi/internal/db"
	"parkingapi/internal/entities"
	apperrors "parkingapi/internal/errors"
	"parkingapi/internal/utils"
)

type PaymentStore interface {
	GetBookingDetail(ctx context.Context, id int64) (*db.BookingDetail, error)
	CreatePayment(ctx context.Context, p *db.Payment) error
	GetPayment(ctx context.Context, id int64) (*db.Payment, error)
	GetPaymentBySession(ctx context.Context, sessionID string) (*db.Payment, error)
	ListPayments(ctx context.Context) ([]db.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID int64) ([]db.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status db.PaymentStatus) (bool, error)
	AttachCheckoutSession(ctx context.Context, id int64, sessionID, url string) error
}

// CheckoutProvider is the hosted card checkout used for STRIPE payments.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, amountCents int64, currency, description, customerEmail string) (string, string, error)
	RefundPaymentBySessionID(ctx context.Context, sessionID string) error
	SessionIDByPaymentIntent(ctx context.Context, paymentIntentID string) (string, error)
}

// PaymentService records payments against bookings. Payment status never
// affects the booking or its space.
type PaymentService struct {
	store    PaymentStore
	checkout CheckoutProvider
}

// NewPaymentService builds the ledger; checkout may be nil when card
// checkout is not configured.
func NewPaymentService(store PaymentStore, checkout CheckoutProvider) *PaymentService {
	return &PaymentService{store: store, checkout: checkout}
}

func (s *PaymentService) Create(ctx context.Context, caller auth.Caller, req entities.PaymentRequest) (*db.Payment, error) {
	if req.BookingID <= 0 {
		return nil, apperrors.Validation("booking_id is required")
	}
	if req.Amount < 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return nil, apperrors.Validation("amount must be a non-negative number")
	}
	currency, ok := utils.NormalizeCurrency(req.Currency)
	if !ok {
		return nil, apperrors.Validation("currency must be a 3-letter code")
	}
	method, err := db.ParsePaymentMethod(req.Method)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	if method == db.MethodStripe && s.checkout == nil {
		return nil, apperrors.Validation("card checkout is not enabled")
	}

	booking, err := s.store.GetBookingDetail(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(booking.UserID) {
		return nil, apperrors.Forbidden("booking %d belongs to another user", booking.ID)
	}

	p := &db.Payment{
		BookingID: booking.ID,
		UserID:    booking.UserID,
		Amount:    Round2(req.Amount),
		Currency:  currency,
		Method:    method,
		Status:    db.PaymentPending,
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	log.Info().Int64("payment_id", p.ID).Int64("booking_id", p.BookingID).Str("method", string(method)).Msg("payment_created")

	if method == db.MethodStripe {
		if err := s.startCheckout(ctx, p, booking); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *PaymentService) startCheckout(ctx context.Context, p *db.Payment, booking *db.BookingDetail) error {
	description := fmt.Sprintf("Parking booking #%d, space %s", booking.ID, booking.SpaceNumber)
	url, sessionID, err := s.checkout.CreateCheckoutSession(ctx, int64(math.Round(p.Amount*100)), p.Currency, description, booking.UserEmail)
	if err != nil {
		if _, uerr := s.store.UpdatePaymentStatus(ctx, p.ID, db.PaymentFailed); uerr != nil {
			log.Error().Err(uerr).Int64("payment_id", p.ID).Msg("payment_mark_failed_error")
		}
		log.Warn().Err(err).Int64("payment_id", p.ID).Msg("checkout_session_failed")
		return apperrors.External(err, "could not start card checkout")
	}
	if err := s.store.AttachCheckoutSession(ctx, p.ID, sessionID, url); err != nil {
		return err
	}
	p.StripeSessionID = sessionID
	p.CheckoutURL = url
	return nil
}

// UpdateStatus overwrites the payment status. Staff only.
func (s *PaymentService) UpdateStatus(ctx context.Context, caller auth.Caller, id int64, status string) (*db.Payment, error) {
	if !caller.IsStaff() {
		return nil, apperrors.Forbidden("only staff can change payment status")
	}
	st, err := db.ParsePaymentStatus(status)
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	return s.setStatus(ctx, id, st)
}

// Refund returns the money of a PAID payment, through Stripe when the payment
// went through checkout, and marks it REFUNDED. Staff only.
func (s *PaymentService) Refund(ctx context.Context, caller auth.Caller, id int64) (*db.Payment, error) {
	if !caller.IsStaff() {
		return nil, apperrors.Forbidden("only staff can refund payments")
	}
	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != db.PaymentPaid {
		return nil, apperrors.Conflict("payment %d is %s, only PAID payments can be refunded", p.ID, p.Status)
	}
	if p.StripeSessionID != "" && s.checkout != nil {
		if err := s.checkout.RefundPaymentBySessionID(ctx, p.StripeSessionID); err != nil {
			return nil, apperrors.External(err, "stripe refund failed")
		}
	}
	return s.setStatus(ctx, id, db.PaymentRefunded)
}

func (s *PaymentService) setStatus(ctx context.Context, id int64, status db.PaymentStatus) (*db.Payment, error) {
	ok, err := s.store.UpdatePaymentStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NotFound("payment %d not found", id)
	}
	log.Info().Int64("payment_id", id).Str("status", string(status)).Msg("payment_status_changed")
	return s.store.GetPayment(ctx, id)
}

// MarkSession applies a checkout outcome reported by Stripe. Unknown sessions
// are NotFound; repeated notifications are no-ops.
func (s *PaymentService) MarkSession(ctx context.Context, sessionID string, status db.PaymentStatus) error {
	p, err := s.store.GetPaymentBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	if p.Status == status {
		return nil
	}
	_, err = s.setStatus(ctx, p.ID, status)
	return err
}

// MarkRefundedByPaymentIntent resolves the checkout session of a refunded charge.
func (s *PaymentService) MarkRefundedByPaymentIntent(ctx context.Context, paymentIntentID string) error {
	if s.checkout == nil {
		return apperrors.Validation("card checkout is not enabled")
	}
	sessionID, err := s.checkout.SessionIDByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return apperrors.External(err, "lookup checkout session")
	}
	return s.MarkSession(ctx, sessionID, db.PaymentRefunded)
}

func (s *PaymentService) Get(ctx context.Context, caller auth.Caller, id int64) (*db.Payment, error) {
	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(p.UserID) {
		return nil, apperrors.NotFound("payment %d not found", id)
	}
	return p, nil
}

func (s *PaymentService) ListByUser(ctx context.Context, caller auth.Caller, userID int64) ([]db.Payment, error) {
	if !caller.CanAccess(userID) {
		return nil, apperrors.Forbidden("cannot list payments of user %d", userID)
	}
	return s.store.ListPaymentsByUser(ctx, userID)
}

func (s *PaymentService) ListAll(ctx context.Context, caller auth.Caller) ([]db.Payment, error) {
	if !caller.IsStaff() {
		return nil, apperrors.Forbidden("only staff can list all payments")
	}
	return s.store.ListPayments(ctx)
}

// List returns every payment to staff and the caller's own payments otherwise.
func (s *PaymentService) List(ctx context.Context, caller auth.Caller) ([]db.Payment, error) {
	if caller.IsStaff() {
		return s.ListAll(ctx, caller)
	}
	return s.ListByUser(ctx, caller, caller.UserID)
}
