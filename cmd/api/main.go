// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"waste-tracking-api-server/config"
	"waste-tracking-api-server/internal/api/routes"
	"waste-tracking-api-server/internal/auth"
	"waste-tracking-api-server/internal/database"
	"waste-tracking-api-server/internal/events"
	"waste-tracking-api-server/internal/logger"
	"waste-tracking-api-server/internal/metrics"
	"waste-tracking-api-server/internal/realtime"
	"waste-tracking-api-server/internal/s3"
	"waste-tracking-api-server/internal/scheduler"
	"waste-tracking-api-server/internal/service"
	"waste-tracking-api-server/internal/shipment"
	"waste-tracking-api-server/internal/socket"
	"waste-tracking-api-server/internal/store"
	"waste-tracking-api-server/internal/tracking"
)

// backend bundles every store interface; both MongoStore and MemoryStore satisfy it.
type backend interface {
	store.ShipmentStore
	store.DriverStore
	store.LocationStore
	store.CompanyStore
	store.UserStore
	store.DocumentStore
}

func mustDuration(key, value string) time.Duration {
	d, err := config.Duration(key, value)
	if err != nil {
		logger.Fatal("invalid config", "err", err)
	}
	return d
}

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("could not read .env", "err", err)
	}
	logger.SetLogger(logger.New(os.Stdout, "waste-tracking-api"))

	// 1. Load configuration
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		logger.Fatal("could not load config", "err", err)
	}
	policy, err := shipment.ParsePolicy(cfg.Status.TransitionPolicy)
	if err != nil {
		logger.Fatal("invalid config", "err", err)
	}
	approvalWindow := mustDuration("approval.autoApprovalWindow", cfg.Approval.AutoApprovalWindow)
	presence := tracking.PresencePolicy{
		OnlineWindow: mustDuration("tracking.onlineWindow", cfg.Tracking.OnlineWindow),
		OfflineAfter: mustDuration("tracking.offlineAfter", cfg.Tracking.OfflineAfter),
	}
	tokens, err := auth.NewTokens(cfg.JWT.Secret, mustDuration("jwt.expiration", cfg.JWT.Expiration))
	if err != nil {
		logger.Fatal("invalid config", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage: MongoDB when configured, otherwise an in-process store.
	var db backend
	var ping routes.Pinger
	if cfg.Mongo.URI != "" {
		client, mdb, err := database.Connect(ctx, cfg.Mongo)
		if err != nil {
			logger.Fatal("mongo unavailable", "err", err)
		}
		defer client.Disconnect(context.Background())
		if err := database.EnsureIndexes(ctx, mdb); err != nil {
			logger.Fatal("could not create indexes", "err", err)
		}
		db = store.NewMongoStore(mdb)
		ping = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	} else {
		logger.Warn("MONGO_URI not set, using in-memory store")
		db = store.NewMemoryStore()
	}
	if err := database.SeedAdmin(ctx, db, cfg.Admin); err != nil {
		logger.Fatal("failed to seed admin", "err", err)
	}

	// 3. Change feed: websocket hub, bridged over Redis when configured.
	hub := socket.NewHub()
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis unavailable", "addr", cfg.Redis.Addr, "err", err)
		}
	}
	broker := realtime.NewBroker(hub, redisClient, cfg.Redis.Channel)
	go func() {
		if err := broker.Run(ctx); err != nil {
			logger.Error("change feed relay stopped, delivering to local subscribers only", "err", err)
		}
	}()

	// 4. Lifecycle events
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Info("publishing lifecycle events", "brokers", len(cfg.Kafka.Brokers), "topic", cfg.Kafka.Topic)
	}
	defer publisher.Close()

	// 5. Document storage
	var storage service.DocumentStorage
	if cfg.S3.Bucket != "" {
		uploader, err := s3.NewUploader(cfg.S3)
		if err != nil {
			logger.Fatal("s3 setup failed", "err", err)
		}
		storage = uploader
	} else {
		logger.Warn("S3 bucket not set, document uploads disabled")
	}

	shipments := service.NewShipmentService(service.ShipmentDeps{
		Shipments:      db,
		Documents:      db,
		Storage:        storage,
		Publisher:      publisher,
		Notifier:       broker,
		Policy:         policy,
		ApprovalWindow: approvalWindow,
		SweepBatchSize: cfg.Approval.SweepBatchSize,
		DocumentKey:    s3.DocumentKey,
	})
	trackingService := service.NewTrackingService(service.TrackingDeps{
		Drivers:   db,
		Locations: db,
		Shipments: db,
		Publisher: publisher,
		Notifier:  broker,
		Presence:  presence,
	})

	// 6. Auto-approval sweep
	sweep, err := scheduler.New(cfg.Approval.SweepSchedule, shipments)
	if err != nil {
		logger.Fatal("invalid config", "err", err)
	}
	sweep.Start()
	defer sweep.Stop()

	// 7. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	router := routes.SetupRouter(routes.Dependencies{
		Cfg:       cfg,
		Tokens:    tokens,
		Users:     db,
		Companies: db,
		Drivers:   db,
		Shipments: shipments,
		Tracking:  trackingService,
		Hub:       hub,
		Gatherer:  registry,
		Ping:      ping,
	})

	// 8. Start server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting API server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to run server", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}
