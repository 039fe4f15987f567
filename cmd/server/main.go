// @title EventGate Registration API
// @version 1.0
// @description Capacity-safe event registration: atomic capacity/stock reservation, payment disposition, ticket issuance, and check-in.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"database/sql"
	"net/http"
	"os"

	_ "github.com/lib/pq"

	"eventgate/config"
	_ "eventgate/docs"
	"eventgate/internal/adapters/auth"
	"eventgate/internal/adapters/email"
	"eventgate/internal/adapters/ticket"
	delivery "eventgate/internal/delivery/http"
	"eventgate/internal/delivery/http/controllers"
	"eventgate/internal/delivery/http/middleware"
	"eventgate/internal/repository/postgres"
	"eventgate/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}
	logger := config.NewLogger()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Error("ping database", "err", err)
		os.Exit(1)
	}

	eventRepo := postgres.NewEventRepository(db)
	participantRepo := postgres.NewParticipantRepository(db)
	inventory := postgres.NewInventoryStore(db, logger)
	ledger := postgres.NewRegistrationRepository(db)

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.EmailProvider,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		SES: email.SESConfig{
			Region:          cfg.SESRegion,
			AccessKeyID:     cfg.SESAccessKeyID,
			SecretAccessKey: cfg.SESSecretAccessKey,
		},
	})
	if err != nil {
		logger.Error("create mailer", "err", err)
		os.Exit(1)
	}
	notifier := services.NewEmailNotifier(mailer, email.NewTemplateRenderer(), logger)
	tickets := ticket.NewIssuer()

	registrationSvc := services.NewRegistrationService(
		eventRepo, participantRepo, inventory, ledger, tickets, notifier, logger)
	paymentSvc := services.NewPaymentService(
		eventRepo, participantRepo, ledger, inventory, tickets, notifier, logger)

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	mux := delivery.NewRouter(
		verifier,
		controllers.NewRegistrationController(logger, registrationSvc),
		controllers.NewPaymentController(logger, paymentSvc),
		controllers.NewCheckInController(logger, registrationSvc),
	)

	handler := middleware.LoggingMiddleware(logger,
		middleware.CORS(cfg.CORSOrigins, mux))

	addr := ":" + cfg.Port
	logger.Info("listening", "addr", addr, "env", cfg.Environment)
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
