package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"eventgate/internal/delivery/http/controllers"
	"eventgate/internal/delivery/http/middleware"
	"eventgate/internal/domain"
)

// NewRouter initializes the HTTP router with all application routes.
func NewRouter(
	verifier domain.TokenVerifier,
	registrations *controllers.RegistrationController,
	payments *controllers.PaymentController,
	checkIn *controllers.CheckInController,
) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(verifier)

	// Registrations
	mux.HandleFunc("POST /events/{eventID}/registrations", auth(registrations.Register))
	mux.HandleFunc("GET /events/{eventID}/registrations", auth(registrations.ListByEvent))
	mux.HandleFunc("GET /registrations/{registrationID}", auth(registrations.Get))

	// Inventory snapshot (public, display only)
	mux.HandleFunc("GET /events/{eventID}/inventory", registrations.Inventory)

	// Payment disposition
	mux.HandleFunc("POST /registrations/{registrationID}/payment", auth(payments.Dispose))
	mux.HandleFunc("PUT /registrations/{registrationID}/payment-proof", auth(payments.ResubmitProof))

	// Check-in
	mux.HandleFunc("POST /events/{eventID}/check-in", auth(checkIn.CheckIn))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
