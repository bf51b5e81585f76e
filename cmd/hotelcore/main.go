// Hotel Core - breaker automation for hotel property management.
//
// This is the main entry point. It wires the room service, the breaker
// automation (queue, reconciler, hub gateway), the admin API and the
// optional MQTT, InfluxDB and Redis integrations, then runs until SIGINT
// or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/nerrad567/gray-logic-hotel/migrations"

	"github.com/nerrad567/gray-logic-hotel/internal/api"
	"github.com/nerrad567/gray-logic-hotel/internal/audit"
	"github.com/nerrad567/gray-logic-hotel/internal/auth"
	"github.com/nerrad567/gray-logic-hotel/internal/breaker"
	"github.com/nerrad567/gray-logic-hotel/internal/gateway"
	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/redislock"
	"github.com/nerrad567/gray-logic-hotel/internal/infrastructure/secrets"
	"github.com/nerrad567/gray-logic-hotel/internal/notify"
	"github.com/nerrad567/gray-logic-hotel/internal/room"
	"github.com/nerrad567/gray-logic-hotel/internal/scheduler"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// Default configuration file path
	defaultConfigPath = "configs/config.yaml"

	// drainLeaseKey names the Redis lease shared by every instance.
	drainLeaseKey = "hotelcore:breaker-drain"

	// Scheduled job names, as reported by GET /metrics.
	jobBreakerSync   = "breaker.sync"
	jobBreakerDrain  = "breaker.drain"
	jobRoomOvertime  = "room.overtime"
	jobActivityPrune = "activity.prune"

	pruneInterval = 24 * time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Hotel Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// A .env file is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("ignoring unreadable .env file", "error", err)
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	box, err := secrets.NewBox(cfg.Security.SecretKey)
	if err != nil {
		return fmt.Errorf("preparing token cipher: %w", err)
	}

	// Staff accounts
	users := auth.NewUserRepository(db.DB)
	if _, seedErr := auth.SeedAdmin(ctx, users, cfg.Security.BootstrapAdminPassword, log); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}
	authSvc := auth.NewService(users, cfg.Security.JWT.Secret, cfg.Security.JWT.AccessTokenTTL)
	authSvc.SetLogger(log)

	// Rooms and breakers
	rooms := room.NewService(room.NewSQLiteRepository(db.DB))
	rooms.SetLogger(log)

	breakerRepo := breaker.NewSQLiteRepository(db.DB)
	queue := breaker.NewQueue(db.DB, breaker.QueueConfig{
		MaxRetries:     cfg.Automation.MaxRetries,
		RetryBaseDelay: config.Seconds(cfg.Automation.RetryBaseDelay),
	})
	activity := breaker.NewActivityLog(db.DB)
	breakers := breaker.NewService(breakerRepo, queue, activity, rooms, breaker.ServiceConfig{
		Debounce:       config.Seconds(cfg.Automation.DebounceSeconds),
		AlertThreshold: cfg.Automation.AlertThreshold,
	})
	breakers.SetLogger(log)
	rooms.AddListener(breakers)

	// Hub gateway
	hubStore := gateway.NewStore(db.DB, box)
	hubClient := gateway.NewClient(hubStore, gateway.Options{
		StateTimeout:   config.Seconds(cfg.Hub.StateTimeout),
		ServiceTimeout: config.Seconds(cfg.Hub.ServiceTimeout),
		MaxAttempts:    cfg.Hub.MaxAttempts,
		RetryBackoff:   time.Duration(cfg.Hub.RetryBackoff) * time.Millisecond,
		RateLimit:      cfg.Hub.RateLimit,
		RateBurst:      cfg.Hub.RateBurst,
		InsecureTLS:    cfg.Hub.InsecureTLS,
	})
	hubClient.SetLogger(log)
	if _, activeErr := hubStore.Active(ctx); errors.Is(activeErr, gateway.ErrNotConfigured) {
		log.Warn("hub not configured; breaker commands will fail until PUT /api/v1/hub/config")
	}

	health := map[string]api.HealthChecker{"database": db}

	// MQTT (optional)
	var publisher notify.Publisher
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		publisher = mqttClient
		health["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var metrics breaker.Metrics
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics = influxdb.NewBreakerMetrics(influxClient)
		health["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Redis drain lease (optional)
	var lease breaker.Lease
	if cfg.Redis.Enabled {
		redisClient := redislock.NewClient(cfg.Redis)
		defer redisClient.Close()
		if pingErr := redislock.Ping(ctx, redisClient); pingErr != nil {
			return fmt.Errorf("connecting to Redis: %w", pingErr)
		}
		lease = redislock.New(redisClient, drainLeaseKey, config.Seconds(cfg.Redis.LeaseTTL))
		health["redis"] = healthFunc(func(ctx context.Context) error {
			return redislock.Ping(ctx, redisClient)
		})
		log.Info("Redis drain lease enabled", "addr", cfg.Redis.Addr)
	}

	// Event fan-out: WebSocket clients and MQTT share one dispatcher.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)
	dispatcher := notify.NewDispatcher(hub, publisher)
	dispatcher.SetLogger(log)
	rooms.AddListener(dispatcher)

	reconciler := breaker.NewReconciler(breaker.ReconcilerDeps{
		Repo:           breakerRepo,
		Queue:          queue,
		Activity:       activity,
		Gateway:        hubClient,
		Rooms:          rooms,
		Notifier:       dispatcher,
		Metrics:        metrics,
		Lease:          lease,
		Logger:         log,
		BatchSize:      cfg.Automation.DrainBatchSize,
		AlertThreshold: cfg.Automation.AlertThreshold,
		StaleAfter:     config.Seconds(cfg.Automation.StaleAfter),
	})

	if mqttClient != nil {
		ingester := notify.NewStatusIngester(rooms)
		ingester.SetLogger(log)
		if subErr := mqttClient.Subscribe(mqtt.Topics{}.AllRoomStatus(), byte(cfg.MQTT.QoS), ingester.Handle); subErr != nil {
			return fmt.Errorf("subscribing to room status: %w", subErr)
		}
	}

	sched, err := buildScheduler(cfg, reconciler, rooms, breakers, log)
	if err != nil {
		return err
	}
	sched.Start(ctx)

	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Auth:        authSvc,
		Users:       users,
		Rooms:       rooms,
		Breakers:    breakers,
		Reconciler:  reconciler,
		HubClient:   hubClient,
		HubSettings: hubStore,
		Audit:       audit.NewSQLiteRepository(db.DB),
		Hub:         hub,
		Jobs:        sched,
		Health:      health,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	if err := server.Close(); err != nil {
		log.Error("error closing API server", "error", err)
	}
	sched.Wait()

	// Remaining deferred Close() calls run in reverse order:
	// Redis, InfluxDB, MQTT, then the database.
	log.Info("Hotel Core stopped")
	return nil
}

// buildScheduler registers the periodic automation jobs.
func buildScheduler(cfg *config.Config, rec *breaker.Reconciler, rooms *room.Service, breakers *breaker.Service, log *logging.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.New()
	sched.SetLogger(log)

	jobs := []scheduler.Job{
		{
			Name:       jobBreakerSync,
			Interval:   config.Seconds(cfg.Automation.SyncInterval),
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				_, err := rec.SyncStates(ctx)
				return err
			},
		},
		{
			Name:     jobBreakerDrain,
			Interval: config.Seconds(cfg.Automation.DrainInterval),
			Run: func(ctx context.Context) error {
				_, err := rec.DrainQueue(ctx)
				return err
			},
		},
		{
			Name:     jobRoomOvertime,
			Interval: config.Seconds(cfg.Automation.OvertimeInterval),
			Run: func(ctx context.Context) error {
				n, err := rooms.MarkOvertime(ctx, time.Now())
				if n > 0 {
					log.Info("rooms marked overtime", "count", n)
				}
				return err
			},
		},
	}
	if cfg.Automation.ActivityRetentionDays > 0 {
		jobs = append(jobs, scheduler.Job{
			Name:     jobActivityPrune,
			Interval: pruneInterval,
			Run: func(ctx context.Context) error {
				n, err := breakers.PruneActivity(ctx, cfg.Automation.ActivityRetentionDays)
				if n > 0 {
					log.Info("activity pruned", "rows", n, "retention_days", cfg.Automation.ActivityRetentionDays)
				}
				return err
			},
		})
	}

	for _, j := range jobs {
		if err := sched.Add(j); err != nil {
			return nil, fmt.Errorf("registering job %s: %w", j.Name, err)
		}
	}
	return sched, nil
}

// getConfigPath returns the configuration file path.
// Uses HOTELCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOTELCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthFunc adapts a ping function to api.HealthChecker.
type healthFunc func(ctx context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
