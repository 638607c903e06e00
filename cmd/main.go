package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-compliance/internal/auth"
	"github.com/ukydev/fleet-compliance/internal/config"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/events"
	"github.com/ukydev/fleet-compliance/internal/handlers"
	"github.com/ukydev/fleet-compliance/internal/middleware"
	"github.com/ukydev/fleet-compliance/internal/models"
	"github.com/ukydev/fleet-compliance/internal/scheduling"
	"github.com/ukydev/fleet-compliance/internal/worker"
)

const (
	rateLimitRequests = 300
	rateLimitWindow   = 60 // seconds
	shutdownTimeout   = 15 * time.Second
)

func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// newRouter wires the schedule API behind authentication and rate limiting.
func newRouter(h *handlers.ScheduleHandler, authMiddleware *middleware.AuthMiddleware, rateLimiter *middleware.RateLimitMiddleware) http.Handler {
	view := authMiddleware.RequirePermission(models.PermViewSchedules)
	create := authMiddleware.RequirePermission(models.PermCreateSeries)
	maintain := authMiddleware.RequirePermission(models.PermMaintainHorizon)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/api/inspection-types", h.InspectionTypes)
	mux.Handle("/api/schedules", view(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("/api/schedules/summary", view(http.HandlerFunc(h.Summary)))
	mux.Handle("/api/schedules/series", create(http.HandlerFunc(h.CreateSeries)))
	mux.Handle("/api/schedules/maintain", maintain(http.HandlerFunc(h.Maintain)))
	mux.Handle("POST /api/internal/tenants/{tenant_id}/maintain", authMiddleware.RequireServiceKey(http.HandlerFunc(h.MaintainTenant)))

	return rateLimiter.RateLimit(rateLimitRequests, rateLimitWindow)(authMiddleware.Authenticate(mux))
}

// openStore returns the configured schedule store and a function releasing it.
func openStore(ctx context.Context, cfg config.Config) (db.ScheduleStore, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn("Using in-memory schedule store; data is lost on restart")
		return db.NewMemoryScheduleStore(), func() {}, nil
	}

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	disconnect := func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			log.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}
	store, err := db.NewMongoScheduleStore(ctx, client, cfg.MongoDB)
	if err != nil {
		disconnect()
		return nil, nil, err
	}
	log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB successfully")
	return store, disconnect, nil
}

// newPublisher connects to the MQTT broker when one is configured and falls
// back to logging events otherwise.
func newPublisher(cfg config.Config) events.Publisher {
	if cfg.MQTTBroker == "" {
		return events.NewLogPublisher(cfg.MQTTTopicPrefix)
	}
	publisher, err := events.NewMQTTPublisher(events.MQTTOptions{
		Broker:      cfg.MQTTBroker,
		ClientID:    cfg.MQTTClientID,
		TopicPrefix: cfg.MQTTTopicPrefix,
	})
	if err != nil {
		log.WithError(err).WithField("broker", cfg.MQTTBroker).Warn("MQTT unavailable, logging events instead")
		return events.NewLogPublisher(cfg.MQTTTopicPrefix)
	}
	return publisher
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to open schedule store")
	}
	defer closeStore()

	authService, err := auth.NewService(auth.Options{
		JWTSecret:      cfg.JWTSecret,
		TokenExpiry:    cfg.JWTExpiry,
		ServiceKeyHash: cfg.ServiceKeyHash,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create auth service")
	}

	publisher := newPublisher(cfg)
	defer publisher.Close()

	engine := scheduling.NewEngine(store)
	scheduleHandler := handlers.NewScheduleHandler(engine, publisher, cfg.HorizonWeeks)

	job, err := worker.NewHorizonJob(engine, store, publisher, worker.HorizonJobConfig{
		Spec:         cfg.HorizonCron,
		HorizonWeeks: cfg.HorizonWeeks,
		RunOnStart:   cfg.HorizonOnStart,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create horizon job")
	}
	if err := job.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start horizon job")
	}
	defer job.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(scheduleHandler, middleware.NewAuthMiddleware(authService), middleware.NewRateLimitMiddleware(cfg.TrustProxyHeaders)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown incomplete")
	}
}
