package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/matchwell/growth-plane/internal/adplatform"
	"github.com/matchwell/growth-plane/internal/automation"
	"github.com/matchwell/growth-plane/internal/config"
	"github.com/matchwell/growth-plane/internal/emailaudience"
	"github.com/matchwell/growth-plane/internal/export"
	"github.com/matchwell/growth-plane/internal/features"
	"github.com/matchwell/growth-plane/internal/pkg/distlock"
	"github.com/matchwell/growth-plane/internal/pkg/httpretry"
	"github.com/matchwell/growth-plane/internal/pkg/logger"
	"github.com/matchwell/growth-plane/internal/repository/postgres"
	"github.com/matchwell/growth-plane/internal/segments"
)

func parseLogLevel(level string) logger.Level {
	switch level {
	case "debug":
		return logger.DEBUG
	case "warn":
		return logger.WARN
	case "error":
		return logger.ERROR
	default:
		return logger.INFO
	}
}

func main() {
	log.Println("Starting Matchwell Growth Plane worker...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(parseLogLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactPII)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is optional; the batch lock falls back to a Postgres
	// advisory lock when it is absent.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, batch lock will use Postgres advisory lock", "addr", cfg.Redis.Addr, "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// Integration clients for the automation dispatcher. A nil client
	// means jobs of that kind fail and eventually dead-letter.
	var emailClient automation.EmailAudienceClient
	if cfg.EmailAudience.Enabled {
		c, err := emailaudience.NewClient(ctx, cfg.EmailAudience)
		if err != nil {
			log.Fatalf("Failed to initialize email audience client: %v", err)
		}
		emailClient = c
		log.Println("Email audience integration enabled")
	}

	var adsClient automation.AdAudienceClient
	if cfg.AdPlatform.Enabled {
		adsClient = adplatform.NewClient(cfg.AdPlatform)
		log.Println("Ad platform integration enabled")
	}

	webhookHTTP := &http.Client{Timeout: time.Duration(cfg.Webhooks.TimeoutSeconds) * time.Second}
	webhookSender := automation.NewHTTPWebhookSender(httpretry.NewRetryClient(webhookHTTP, cfg.Webhooks.MaxRetries))

	queue := automation.NewQueue(db)
	dispatcher := automation.NewDispatcher(emailClient, adsClient, webhookSender)
	jobWorker := automation.NewWorker(queue, dispatcher, cfg.Worker.AutomationBatchSize, cfg.Worker.AutomationPollInterval())
	jobWorker.Start()
	log.Println("Automation job worker started")

	// Batch recompute/evaluate cycle, single-flighted across worker
	// replicas through a distributed lock.
	featureRepo := postgres.NewFeatureRepo(db)
	featureSvc := features.NewService(featureRepo)
	segmentSvc := segments.NewService(postgres.NewSegmentRepo(db), postgres.NewProfileStore(db), automation.NewTrigger(queue))
	batchLock := distlock.NewLock(redisClient, db, "growth:batch-recompute", cfg.Worker.BatchInterval())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.Worker.BatchInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runBatchCycle(ctx, batchLock, featureRepo, featureSvc, segmentSvc, cfg.Worker.FeatureWindowDays)
			}
		}
	}()

	if cfg.Export.Enabled {
		exporter, err := export.NewExporter(ctx, cfg.Export, postgres.NewPersonRepo(db))
		if err != nil {
			log.Fatalf("Failed to initialize snapshot exporter: %v", err)
		}
		interval := time.Duration(cfg.Worker.ExportIntervalHours) * time.Hour
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					res, err := exporter.Snapshot(ctx)
					if err != nil {
						logger.Error("Snapshot export failed", "error", err)
						continue
					}
					logger.Info("Snapshot exported", "key", res.Key, "persons", res.Persons, "failed", res.Failed, "bytes", res.Bytes)
				}
			}
		}()
		log.Printf("Snapshot exporter started (every %dh)", cfg.Worker.ExportIntervalHours)
	}

	log.Println("Worker running...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()
	jobWorker.Stop()
	wg.Wait()
	log.Println("Worker stopped")
}

// runBatchCycle recomputes features for recently active persons and
// re-evaluates segment membership for each. Skips the cycle entirely when
// another replica holds the lock.
func runBatchCycle(ctx context.Context, lock distlock.DistLock, repo features.Repository, featureSvc *features.Service, segmentSvc *segments.Service, windowDays int) {
	ok, err := lock.Acquire(ctx)
	if err != nil {
		logger.Error("Batch lock acquire failed", "error", err)
		return
	}
	if !ok {
		logger.Debug("Batch cycle skipped, lock held elsewhere")
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logger.Warn("Batch lock release failed", "error", err)
		}
	}()

	start := time.Now()
	result, err := featureSvc.BatchComputeActiveWindow(ctx, windowDays)
	if err != nil {
		logger.Error("Batch feature recompute failed", "error", err)
		return
	}

	ids, err := repo.ListActivePersonIDs(ctx, windowDays)
	if err != nil {
		logger.Error("Batch evaluate listing failed", "error", err)
		return
	}
	evaluated, failed := segmentSvc.BatchEvaluate(ctx, ids)

	logger.Info("Batch cycle complete",
		"window_days", windowDays,
		"features_computed", result.Computed,
		"features_failed", result.Failed,
		"segments_evaluated", evaluated,
		"segments_failed", failed,
		"duration_ms", time.Since(start).Milliseconds())
}
