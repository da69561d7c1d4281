package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/matchwell/growth-plane/internal/adplatform"
	"github.com/matchwell/growth-plane/internal/api"
	"github.com/matchwell/growth-plane/internal/automation"
	"github.com/matchwell/growth-plane/internal/config"
	"github.com/matchwell/growth-plane/internal/emailevents"
	"github.com/matchwell/growth-plane/internal/features"
	"github.com/matchwell/growth-plane/internal/identity"
	"github.com/matchwell/growth-plane/internal/ingest"
	"github.com/matchwell/growth-plane/internal/pkg/logger"
	"github.com/matchwell/growth-plane/internal/repository/postgres"
	"github.com/matchwell/growth-plane/internal/segments"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

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

// emailPersonResolver adapts the identity service to the email-event
// pipeline, which matches recipients by address only.
type emailPersonResolver struct {
	identities *identity.Service
}

func (r emailPersonResolver) ResolvePersonByEmail(ctx context.Context, email string) (uuid.UUID, bool, error) {
	p, err := r.identities.GetPersonByEmail(ctx, email)
	if err != nil {
		return uuid.Nil, false, err
	}
	if p == nil {
		return uuid.Nil, false, nil
	}
	return p.ID, true, nil
}

func main() {
	log.Println("Starting Matchwell Growth Plane API server...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.SetLevel(parseLogLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactPII)

	if err := checkPortAvailable(cfg.Server.Host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

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

	// Repositories
	personRepo := postgres.NewPersonRepo(db)
	eventRepo := postgres.NewEventRepo(db)
	featureRepo := postgres.NewFeatureRepo(db)
	segmentRepo := postgres.NewSegmentRepo(db)
	profileStore := postgres.NewProfileStore(db)
	subscriptionRepo := postgres.NewSubscriptionRepo(db)
	emailRepo := postgres.NewEmailRepo(db)

	// Services
	identitySvc := identity.NewService(personRepo)
	featureSvc := features.NewService(featureRepo)

	jobQueue := automation.NewQueue(db)
	segmentSvc := segments.NewService(segmentRepo, profileStore, automation.NewTrigger(jobQueue))

	var conversions ingest.ConversionSender
	if cfg.AdPlatform.Enabled {
		conversions = adplatform.NewClient(cfg.AdPlatform)
		log.Println("Ad platform conversion forwarding enabled")
	}
	ingestSvc := ingest.NewService(eventRepo, subscriptionRepo, identitySvc, featureSvc, segmentSvc, conversions)

	emailSvc := emailevents.NewService(emailRepo, emailPersonResolver{identities: identitySvc}, featureSvc)

	handlers := api.NewHandlers(identitySvc, ingestSvc, featureSvc, segmentSvc, emailSvc, jobQueue)
	server := api.NewServer(cfg.Server, handlers)

	go func() {
		logger.Info("API server listening", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
