package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"parkingapi/internal/auth"
	"parkingapi/internal/db"
	apperrors "parkingapi/internal/errors"
	"parkingapi/internal/events"
	"parkingapi/internal/service"
)

const healthTimeout = 2 * time.Second

// Pinger is the part of *sql.DB the health check needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type RouterDeps struct {
	Tokens   *auth.TokenManager
	Auth     *service.AuthService
	Spaces   *service.SpaceService
	Vehicles *service.VehicleService
	Bookings *service.BookingCoordinator
	Payments *service.PaymentService
	Admin    *service.AdminService
	Hub      *events.Hub
	DB       Pinger

	StripeWebhookSecret string
	CORSOrigins         []string
}

// NewRouter wires every endpoint. Reads of the space registry, auth, the
// Stripe webhook (when a secret is set), the live feed and the health check
// are public. The rest needs a bearer token, and back-office routes need a
// staff role. Users may read their own profile through /users/{id}.
func NewRouter(d RouterDeps) http.Handler {
	r := mux.NewRouter()

	authn := auth.Middleware(d.Tokens)
	staffOnly := auth.RequireRole(db.RoleAdmin, db.RoleOperator)
	user := func(h http.HandlerFunc) http.Handler { return authn(h) }
	staff := func(h http.HandlerFunc) http.Handler { return authn(staffOnly(h)) }

	authH := NewAuthHandler(d.Auth)
	r.HandleFunc("/auth/register", authH.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", authH.Login).Methods(http.MethodPost)
	r.HandleFunc("/auth/verify", authH.Verify).Methods(http.MethodGet)

	spaces := NewSpaceHandler(d.Spaces)
	r.HandleFunc("/spaces", spaces.List).Methods(http.MethodGet)
	r.Handle("/spaces", staff(spaces.Create)).Methods(http.MethodPost)
	r.HandleFunc("/spaces/available", spaces.ListAvailable).Methods(http.MethodGet)
	r.HandleFunc("/spaces/availability", spaces.Availability).Methods(http.MethodGet)
	r.HandleFunc("/spaces/{id:[0-9]+}", spaces.Get).Methods(http.MethodGet)
	r.Handle("/spaces/{id:[0-9]+}", staff(spaces.Update)).Methods(http.MethodPut)
	r.Handle("/spaces/{id:[0-9]+}", staff(spaces.Delete)).Methods(http.MethodDelete)
	r.Handle("/spaces/{id:[0-9]+}/status", staff(spaces.SetStatus)).Methods(http.MethodPut)

	vehicles := NewVehicleHandler(d.Vehicles)
	r.Handle("/vehicles", user(vehicles.List)).Methods(http.MethodGet)
	r.Handle("/vehicles", user(vehicles.Create)).Methods(http.MethodPost)
	r.Handle("/vehicles/user/{id:[0-9]+}", user(vehicles.ListByOwner)).Methods(http.MethodGet)
	r.Handle("/vehicles/{id:[0-9]+}", user(vehicles.Get)).Methods(http.MethodGet)
	r.Handle("/vehicles/{id:[0-9]+}", user(vehicles.Update)).Methods(http.MethodPut)
	r.Handle("/vehicles/{id:[0-9]+}", user(vehicles.Delete)).Methods(http.MethodDelete)

	bookings := NewBookingHandler(d.Bookings)
	r.Handle("/bookings", user(bookings.Create)).Methods(http.MethodPost)
	r.Handle("/bookings", user(bookings.List)).Methods(http.MethodGet)
	r.Handle("/bookings/user/{id:[0-9]+}", user(bookings.ListForUser)).Methods(http.MethodGet)
	r.Handle("/bookings/{id:[0-9]+}", user(bookings.Get)).Methods(http.MethodGet)
	r.Handle("/bookings/{id:[0-9]+}", user(bookings.Update)).Methods(http.MethodPut)
	r.Handle("/bookings/{id:[0-9]+}", user(bookings.Delete)).Methods(http.MethodDelete)
	r.Handle("/bookings/{id:[0-9]+}/cancel", user(bookings.Cancel)).Methods(http.MethodPost)
	r.Handle("/bookings/{id:[0-9]+}/complete", staff(bookings.Complete)).Methods(http.MethodPost)
	r.Handle("/bookings/{id:[0-9]+}/quote", user(bookings.Quote)).Methods(http.MethodGet)

	payments := NewPaymentHandler(d.Payments)
	// An empty signing secret verifies any payload.
	if d.StripeWebhookSecret != "" {
		webhook := NewStripeWebhookHandler(d.StripeWebhookSecret, d.Payments)
		r.HandleFunc("/payments/stripe/webhook", webhook.HandleWebhook).Methods(http.MethodPost)
	}
	r.Handle("/payments", user(payments.Create)).Methods(http.MethodPost)
	r.Handle("/payments", user(payments.List)).Methods(http.MethodGet)
	r.Handle("/payments/user/{id:[0-9]+}", user(payments.ListByUser)).Methods(http.MethodGet)
	r.Handle("/payments/{id:[0-9]+}", user(payments.Get)).Methods(http.MethodGet)
	r.Handle("/payments/{id:[0-9]+}/status", staff(payments.UpdateStatus)).Methods(http.MethodPut)
	r.Handle("/payments/{id:[0-9]+}/refund", staff(payments.Refund)).Methods(http.MethodPost)

	admin := NewAdminHandler(d.Admin)
	r.Handle("/users", staff(admin.ListUsers)).Methods(http.MethodGet)
	r.Handle("/users", staff(admin.CreateUser)).Methods(http.MethodPost)
	r.Handle("/users/{id:[0-9]+}", user(admin.GetUser)).Methods(http.MethodGet)
	r.Handle("/users/{id:[0-9]+}", staff(admin.UpdateUser)).Methods(http.MethodPut)
	r.Handle("/users/{id:[0-9]+}", staff(admin.DeleteUser)).Methods(http.MethodDelete)
	r.Handle("/reports/summary", staff(admin.Summary)).Methods(http.MethodGet)
	r.Handle("/pricing-rules", staff(admin.ListPricingRules)).Methods(http.MethodGet)
	r.Handle("/pricing-rules", staff(admin.CreatePricingRule)).Methods(http.MethodPost)
	r.Handle("/pricing-rules/{id:[0-9]+}", staff(admin.DeletePricingRule)).Methods(http.MethodDelete)
	r.Handle("/audit-logs", staff(admin.ListAuditLogs)).Methods(http.MethodGet)

	if d.Hub != nil {
		r.HandleFunc("/ws/spaces", d.Hub.ServeWS).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", health(d.DB, d.Hub)).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, apperrors.NotFound("route not found"))
	})

	cors := handlers.CORS(
		handlers.AllowedOrigins(d.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)
	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(panicLogger{}), handlers.PrintRecoveryStack(false))

	return RequestID(AccessLog(recovery(cors(r))))
}

func health(pinger Pinger, hub *events.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Database: "ok", CheckedAt: time.Now().UTC()}
		if hub != nil {
			resp.WSClients = hub.Count()
		}
		status := http.StatusOK
		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := pinger.PingContext(ctx); err != nil {
				log.Warn().Err(err).Msg("health_db_unreachable")
				resp.Status, resp.Database = "degraded", "unreachable"
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, status, resp)
	}
}

type panicLogger struct{}

func (panicLogger) Println(v ...interface{}) {
	log.Error().Interface("panic", v).Msg("http_handler_panic")
}
