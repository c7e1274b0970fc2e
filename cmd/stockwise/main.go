// Stockwise Core - Inventory Control Backend
//
// This is the main entry point for the Stockwise Core application.
// Stockwise is a stock control backend providing:
//   - Token-based authentication with refresh support
//   - Person, product type, and product registries
//   - Audit trail of every change
//   - Optional stock level history via InfluxDB
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/stockwise/stockwise-core/migrations"

	"github.com/stockwise/stockwise-core/internal/api"
	"github.com/stockwise/stockwise-core/internal/audit"
	"github.com/stockwise/stockwise-core/internal/auth"
	"github.com/stockwise/stockwise-core/internal/infrastructure/config"
	"github.com/stockwise/stockwise-core/internal/infrastructure/database"
	"github.com/stockwise/stockwise-core/internal/infrastructure/influxdb"
	"github.com/stockwise/stockwise-core/internal/infrastructure/logging"
	"github.com/stockwise/stockwise-core/internal/inventory"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Stockwise Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	userRepo := auth.NewUserRepository(db.DB)
	personRepo := inventory.NewPersonRepository(db.DB)
	productTypeRepo := inventory.NewProductTypeRepository(db.DB)
	productRepo := inventory.NewProductRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Seed the initial admin account on first boot. The generated password
	// is logged once and must be changed immediately.
	if _, seedErr := auth.SeedAdmin(ctx, userRepo, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	// Token signing
	signer, err := auth.NewSigningContext(
		[]byte(cfg.Security.JWT.Secret),
		cfg.Security.JWT.Issuer,
		cfg.Security.JWT.AccessTTL(),
		cfg.Security.JWT.RefreshTTL(),
	)
	if err != nil {
		return fmt.Errorf("creating signing context: %w", err)
	}
	authService := auth.NewService(userRepo, signer, log.Logger)
	log.Info("authentication initialised",
		"issuer", cfg.Security.JWT.Issuer,
		"access_ttl", cfg.Security.JWT.AccessTTL(),
		"refresh_ttl", cfg.Security.JWT.RefreshTTL(),
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil && !errors.Is(err, influxdb.ErrDisabled) {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		if influxClient != nil {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			log.Info("InfluxDB connected",
				"url", cfg.InfluxDB.URL,
				"org", cfg.InfluxDB.Org,
				"bucket", cfg.InfluxDB.Bucket,
			)

			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start API server
	server, err := api.New(api.Deps{
		Config:          cfg.API,
		Logger:          log,
		Auth:            authService,
		UserRepo:        userRepo,
		PersonRepo:      personRepo,
		ProductTypeRepo: productTypeRepo,
		ProductRepo:     productRepo,
		AuditRepo:       auditRepo,
		Influx:          influxClient,
		Version:         version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server (drains pending audit entries)
	// 2. InfluxDB (if enabled)
	// 3. Database

	log.Info("Stockwise Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses STOCKWISE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("STOCKWISE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The InfluxDB client may be nil when the integration is disabled.
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
