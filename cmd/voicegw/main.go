// Voice Gateway - application server for voice satellite devices.
//
// The gateway terminates device websocket connections, bridges spoken
// commands to the configured home automation endpoint and exposes an
// HTTP control plane for fleet management.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/ardenhall/voicegw/migrations"

	"github.com/ardenhall/voicegw/internal/api"
	"github.com/ardenhall/voicegw/internal/cloud"
	"github.com/ardenhall/voicegw/internal/command"
	"github.com/ardenhall/voicegw/internal/configstore"
	"github.com/ardenhall/voicegw/internal/device"
	"github.com/ardenhall/voicegw/internal/endpoint"
	"github.com/ardenhall/voicegw/internal/infrastructure/config"
	"github.com/ardenhall/voicegw/internal/infrastructure/database"
	"github.com/ardenhall/voicegw/internal/infrastructure/influxdb"
	"github.com/ardenhall/voicegw/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting voice gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	store := configstore.New(db.DB)

	// Fetch cloud defaults. A failed fetch degrades the default-backed
	// routes instead of stopping the gateway.
	var defaults *cloud.Defaults
	if cfg.Cloud.Enabled {
		client := cloud.NewClient(cfg.Cloud.BaseURL, cfg.Cloud.GetCloudTimeout(), log)
		defaults, err = client.FetchDefaults(ctx)
		if err != nil {
			log.Warn("cloud defaults unavailable", "error", err)
			defaults = nil
		}
	} else {
		log.Info("cloud fetch disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
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
	} else {
		log.Info("InfluxDB disabled")
	}

	registry := device.NewRegistry()
	if influxClient != nil {
		registry.SetCountObserver(influxClient.RecordDeviceCount)
	}

	// Resolve the endpoint bridge from the stored configuration. A
	// gateway without a usable endpoint still serves devices and the
	// control plane; saving a config later hot-wires the bridge.
	bridge, err := startBridge(ctx, store, influxClient, log)
	if err != nil {
		return err
	}
	if bridge != nil {
		defer bridge.Close()
	}

	// A nil *Bridge stored in the interface would not compare equal to
	// nil in the router, so only assign when a bridge exists.
	var dispatcher command.Dispatcher
	if bridge != nil {
		dispatcher = bridge
	}
	router := command.NewRouter(dispatcher, registry, store, log)
	if bridge != nil {
		bridge.SetResultHandler(router)
	}

	server, err := api.New(api.Deps{
		Config:   cfg.Server,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Registry: registry,
		Bridge:   bridge,
		Router:   router,
		Store:    store,
		Defaults: defaults,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, server, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("voice gateway stopped")
	return nil
}

// startBridge resolves the endpoint configuration from the store and,
// when usable, starts the bridge's connection loop. A missing or
// unsupported endpoint is logged and the gateway runs without one.
func startBridge(ctx context.Context, store *configstore.Store, telemetry *influxdb.Client, log *logging.Logger) (*endpoint.Bridge, error) {
	settings, err := store.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading stored config: %w", err)
	}

	endpointCfg, err := endpoint.ConfigFromSettings(settings)
	if err != nil {
		if errors.Is(err, endpoint.ErrConfigMissing) {
			log.Info("no command endpoint configured")
		} else {
			log.Warn("command endpoint not usable", "error", err)
		}
		return nil, nil
	}

	opts := endpoint.Options{
		Config: endpointCfg,
		Logger: log,
	}
	if telemetry != nil {
		opts.Telemetry = telemetry
	}

	bridge, err := endpoint.NewBridge(opts)
	if err != nil {
		return nil, fmt.Errorf("creating endpoint bridge: %w", err)
	}

	go bridge.Run(ctx)
	log.Info("endpoint bridge started", "kind", endpointCfg.Kind, "url", endpointCfg.URL)
	return bridge, nil
}

// getConfigPath returns the configuration file path.
// Uses VOICEGW_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VOICEGW_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure components are healthy.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
