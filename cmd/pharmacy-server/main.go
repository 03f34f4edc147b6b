package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	analyticshandler "github.com/pharmaflow/pharmacy-backend/internal/analytics/handler"
	analyticsservice "github.com/pharmaflow/pharmacy-backend/internal/analytics/service"
	"github.com/pharmaflow/pharmacy-backend/internal/auth"
	authhandler "github.com/pharmaflow/pharmacy-backend/internal/auth/handler"
	authjwt "github.com/pharmaflow/pharmacy-backend/internal/auth/jwt"
	authrepo "github.com/pharmaflow/pharmacy-backend/internal/auth/repository"
	authservice "github.com/pharmaflow/pharmacy-backend/internal/auth/service"
	chatbothandler "github.com/pharmaflow/pharmacy-backend/internal/chatbot/handler"
	chatbotservice "github.com/pharmaflow/pharmacy-backend/internal/chatbot/service"
	"github.com/pharmaflow/pharmacy-backend/internal/events"
	invhandler "github.com/pharmaflow/pharmacy-backend/internal/inventory/handler"
	invrepo "github.com/pharmaflow/pharmacy-backend/internal/inventory/repository"
	invservice "github.com/pharmaflow/pharmacy-backend/internal/inventory/service"
	"github.com/pharmaflow/pharmacy-backend/internal/migrations"
	rxhandler "github.com/pharmaflow/pharmacy-backend/internal/prescription/handler"
	rxrepo "github.com/pharmaflow/pharmacy-backend/internal/prescription/repository"
	rxservice "github.com/pharmaflow/pharmacy-backend/internal/prescription/service"
	reorderhandler "github.com/pharmaflow/pharmacy-backend/internal/reorder/handler"
	reorderrepo "github.com/pharmaflow/pharmacy-backend/internal/reorder/repository"
	reorderservice "github.com/pharmaflow/pharmacy-backend/internal/reorder/service"
	"github.com/pharmaflow/pharmacy-backend/pkg/config"
	"github.com/pharmaflow/pharmacy-backend/pkg/database"
	"github.com/pharmaflow/pharmacy-backend/pkg/httputil"
	"github.com/pharmaflow/pharmacy-backend/pkg/logger"
	"github.com/pharmaflow/pharmacy-backend/pkg/messaging"
	"github.com/pharmaflow/pharmacy-backend/pkg/roles"
)

func main() {
	// Local development convenience; a missing .env is fine
	if !config.IsProductionLike() {
		_ = godotenv.Load()
	}

	cfg, err := config.LoadWithValidation("pharmacy-server")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("pharmacy-server", cfg.Server.Environment)
	log.Info().Msg("starting pharmacy server")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := migrations.Run(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// The broker only carries fire-and-forget change notifications, so the
	// server stays up without it.
	var publisher *events.Publisher
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq unavailable, change notifications disabled")
	} else {
		defer rmq.Close()
		publisher, err = events.NewPublisher(rmq, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to create event publisher, change notifications disabled")
			publisher = nil
		}
	}

	// Repositories
	userRepo := authrepo.NewUserRepository(db)
	medicineRepo := invrepo.NewMedicineRepository(db)
	txRepo := invrepo.NewTransactionRepository(db)
	prescriptionRepo := rxrepo.NewPrescriptionRepository(db)
	reorderRepo := reorderrepo.NewReorderRepository(db)

	// Services
	jwtManager := authjwt.NewManager(&cfg.JWT)
	authService := authservice.NewAuthService(userRepo, jwtManager, log)
	inventoryService := invservice.NewInventoryService(db, medicineRepo, txRepo, publisher, log)
	prescriptionService := rxservice.NewPrescriptionService(db, prescriptionRepo, medicineRepo, txRepo, publisher, log)
	reorderService := reorderservice.NewReorderService(db, reorderRepo, medicineRepo, txRepo, publisher, log)
	analyticsService := analyticsservice.NewAnalyticsService(medicineRepo, txRepo, log)
	completionClient := chatbotservice.NewCompletionClient(&cfg.Chatbot)
	if completionClient == nil {
		log.Info().Msg("no completion api key configured, chatbot uses templated responses")
	}
	chatbotService := chatbotservice.NewChatbotService(medicineRepo, completionClient, log)

	// Handlers
	authHandler := authhandler.NewAuthHandler(authService, log)
	medicineHandler := invhandler.NewMedicineHandler(inventoryService, log)
	transactionHandler := invhandler.NewTransactionHandler(inventoryService, log)
	prescriptionHandler := rxhandler.NewPrescriptionHandler(prescriptionService, log)
	reorderHandler := reorderhandler.NewReorderHandler(reorderService, log)
	analyticsHandler := analyticshandler.NewAnalyticsHandler(analyticsService, log)
	chatbotHandler := chatbothandler.NewChatbotHandler(chatbotService, log)

	authMiddleware := auth.NewMiddleware(jwtManager, userRepo, log)

	scheduler := reorderservice.NewSweepScheduler(reorderService, cfg.Reorder.SweepInterval, log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORS.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		health := map[string]interface{}{
			"status":   "healthy",
			"service":  "pharmacy-server",
			"database": db.Health(req.Context()),
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.Authenticate)
				r.Get("/me", authHandler.Me)
			})
		})

		// Everything below requires a valid token
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Route("/medicines", func(r chi.Router) {
				r.Get("/", medicineHandler.List)
				r.Get("/{id}", medicineHandler.Get)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireCapability(roles.MedicinesWrite))
					r.Post("/", medicineHandler.Create)
					r.Put("/{id}", medicineHandler.Update)
					r.Post("/{id}/adjust", medicineHandler.AdjustStock)
				})

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireCapability(roles.MedicinesDelete))
					r.Delete("/{id}", medicineHandler.Delete)
				})
			})

			r.Get("/transactions", transactionHandler.List)

			r.Route("/prescriptions", func(r chi.Router) {
				r.Get("/", prescriptionHandler.List)
				r.Post("/", prescriptionHandler.Create)
				r.Get("/{id}", prescriptionHandler.Get)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireCapability(roles.PrescriptionsManage))
					r.Post("/{id}/validate", prescriptionHandler.Validate)
					r.Post("/{id}/dispense", prescriptionHandler.Dispense)
				})
			})

			r.Route("/reorders", func(r chi.Router) {
				r.Get("/", reorderHandler.List)
				r.Get("/{id}", reorderHandler.Get)

				r.Group(func(r chi.Router) {
					r.Use(auth.RequireCapability(roles.ReordersManage))
					r.Post("/", reorderHandler.Create)
					r.Post("/sweep", reorderHandler.Sweep)
					r.Post("/{id}/approve", reorderHandler.Approve)
					r.Post("/{id}/order", reorderHandler.Order)
					r.Post("/{id}/receive", reorderHandler.Receive)
					r.Post("/{id}/cancel", reorderHandler.Cancel)
				})
			})

			r.Route("/analytics", func(r chi.Router) {
				r.Use(auth.RequireCapability(roles.AnalyticsRead))
				r.Get("/inventory", analyticsHandler.Inventory)
				r.Get("/demand/{id}", analyticsHandler.DemandTrends)
				r.Get("/recommendations", analyticsHandler.Recommendations)
			})

			r.Post("/chatbot/query", chatbotHandler.Respond)
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the sweep scheduler before closing connections
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
