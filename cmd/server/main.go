package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/nexcrux/bank-sms-ledger/internal/cache"
	"github.com/nexcrux/bank-sms-ledger/internal/config"
	"github.com/nexcrux/bank-sms-ledger/internal/database"
	"github.com/nexcrux/bank-sms-ledger/internal/dispatcher"
	"github.com/nexcrux/bank-sms-ledger/internal/eventid"
	"github.com/nexcrux/bank-sms-ledger/internal/handlers"
	"github.com/nexcrux/bank-sms-ledger/internal/logger"
	"github.com/nexcrux/bank-sms-ledger/internal/metrics"
	"github.com/nexcrux/bank-sms-ledger/internal/notifier"
	"github.com/nexcrux/bank-sms-ledger/internal/rabbitmq"
	"github.com/nexcrux/bank-sms-ledger/internal/recorder"
	"github.com/nexcrux/bank-sms-ledger/internal/routes"
	"github.com/nexcrux/bank-sms-ledger/internal/service"
	"github.com/nexcrux/bank-sms-ledger/internal/store"
)

// collisionWarnThreshold is the birthday-bound probability above which startup logs a warning.
const collisionWarnThreshold = 1e-6

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(&cfg.Database, log); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	st, dbPinger, closeDB := openStore(cfg, log)
	defer closeDB()

	checks := map[string]handlers.Pinger{"database": dbPinger}

	if cfg.Redis.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer func() { _ = client.Close() }()

		st = cache.NewSeenStore(st, client, cfg.Redis.SeenTTL, log)
		checks["redis"] = cache.RedisPinger{Client: client}
		log.Info("Seen-event cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.SeenTTL))
	}

	deriver, err := eventid.NewDeriver(cfg.Ingest.EventIDLength)
	if err != nil {
		log.Fatal("Invalid event id length", zap.Error(err))
	}
	if cfg.Ingest.ExpectedVolume > 0 {
		p := eventid.CollisionProbability(deriver.Bits(), cfg.Ingest.ExpectedVolume)
		if p >= collisionWarnThreshold {
			log.Warn("Event id collision probability is high for the expected volume; raise INGEST_EVENT_ID_LENGTH",
				zap.Int("bits", deriver.Bits()),
				zap.Uint64("expected_volume", cfg.Ingest.ExpectedVolume),
				zap.Float64("probability", p),
			)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ingestMetrics := metrics.NewIngest(registry)

	var (
		rmq  *rabbitmq.Connection
		disp *dispatcher.Dispatcher
		ntf  notifier.Notifier = notifier.Noop{}
	)
	if cfg.RabbitMQ.Enabled {
		rmq = rabbitmq.NewConnection(&cfg.RabbitMQ, log)
		if err := rmq.Connect(); err != nil {
			log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer rmq.Close()
		checks["rabbitmq"] = rmq

		if cfg.RabbitMQ.NotifyExchange != "" {
			ntf = notifier.NewAMQPNotifier(rmq, cfg.RabbitMQ.NotifyExchange, cfg.RabbitMQ.NotifyRoutingKey, cfg.RabbitMQ.NotifySecret)
		}
	}

	svc := service.NewService(recorder.New(st, deriver), ntf, ingestMetrics, log)

	if rmq != nil {
		disp = dispatcher.NewDispatcher(cfg.RabbitMQ.IngestQueue, cfg.RabbitMQ.PrefetchCount, rmq, svc, log)
		if err := disp.Start(); err != nil {
			log.Fatal("Failed to start dispatcher", zap.Error(err))
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.Server.RequestTimeout + 5*time.Second,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	routes.SetupRoutes(app,
		handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, 5*time.Second, checks),
		handlers.NewIngestHandler(svc, cfg.Server.RequestTimeout, log),
		registry,
	)

	go func() {
		addr := cfg.Server.Addr()
		log.Info("Server starting",
			zap.String("address", addr),
			zap.String("db_driver", cfg.Database.Driver),
			zap.Int("event_id_length", deriver.Length()),
			zap.Bool("rabbitmq", cfg.RabbitMQ.Enabled),
		)
		if err := app.Listen(addr); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	if err := app.ShutdownWithTimeout(cfg.Server.RequestTimeout + 5*time.Second); err != nil {
		log.Error("Error during server shutdown", zap.Error(err))
	}

	if disp != nil {
		disp.Stop()
	}

	log.Info("Server stopped")
}

// openStore connects the configured driver and returns the store, its health probe and a closer.
func openStore(cfg *config.Config, log *zap.Logger) (store.Store, handlers.Pinger, func()) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Fatal("Failed to open SQLite database", zap.Error(err))
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}
		return store.NewSQLiteStore(db), database.SQLPinger{DB: db}, closeDB

	default:
		db, err := database.Connect(&cfg.Database, log)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		closeDB := func() {
			if err := database.Close(db, log); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}
		return store.NewPostgresStore(db), database.GormPinger{DB: db}, closeDB
	}
}

