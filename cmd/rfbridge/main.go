// RfPlayer bridge - RF transceiver to MQTT gateway
//
// This is the main entry point for the bridge. It connects a Ziblue
// RfPlayer transceiver (USB serial or serial-over-TCP) to an MQTT
// broker, decoding received RF frames into per-device state topics and
// relaying commands from MQTT and a REST API back to the transceiver.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/rfplayer-bridge/migrations"

	"github.com/nerrad567/rfplayer-bridge/internal/api"
	"github.com/nerrad567/rfplayer-bridge/internal/bridge"
	"github.com/nerrad567/rfplayer-bridge/internal/device"
	"github.com/nerrad567/rfplayer-bridge/internal/infrastructure/config"
	"github.com/nerrad567/rfplayer-bridge/internal/infrastructure/database"
	"github.com/nerrad567/rfplayer-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/rfplayer-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/rfplayer-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/rfplayer-bridge/internal/profiles"
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
	log.Info("starting RfPlayer bridge",
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
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise device registry
	deviceRepo := device.NewSQLiteRepository(db.DB)
	deviceRegistry := device.NewRegistry(deviceRepo, device.Config{
		AutomaticAdd: cfg.Bridge.AutomaticAdd,
		Redirects:    cfg.Bridge.RedirectAddresses,
	})
	deviceRegistry.SetLogger(log)

	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.Len())

	// Load device profiles
	profileRegistry, err := loadProfiles(cfg, log)
	if err != nil {
		return fmt.Errorf("loading device profiles: %w", err)
	}
	log.Info("device profiles loaded", "profiles", profileRegistry.Len())

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

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

	// Start the bridge: transceiver session, event pipeline, MQTT
	// command handling and health reporting.
	rfBridge, err := startBridge(ctx, cfg, mqttClient, deviceRegistry, profileRegistry, influxClient, log)
	if err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		rfBridge.Stop()
	}()

	// Start the REST API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := startAPI(ctx, cfg, log, deviceRegistry, profileRegistry, rfBridge)
		if apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (if enabled)
	// 2. Bridge (gateway session, health reporter)
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("RfPlayer bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses RFBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RFBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadProfiles returns the profile registry, preferring a configured
// definition file over the embedded default set.
func loadProfiles(cfg *config.Config, log *logging.Logger) (*profiles.Registry, error) {
	if cfg.Profiles.File == "" {
		return profiles.LoadDefault(log)
	}

	data, err := os.ReadFile(cfg.Profiles.File)
	if err != nil {
		return nil, fmt.Errorf("reading profile file: %w", err)
	}
	log.Info("using profile definitions from file", "path", cfg.Profiles.File)
	return profiles.Load(data, log)
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Bridge health is verified during Start(): it dials the
	// transceiver and sets up MQTT subscriptions before returning.

	return nil
}

// startBridge wires up and starts the RF bridge.
func startBridge(
	ctx context.Context,
	cfg *config.Config,
	mqttClient *mqtt.Client,
	devices *device.Registry,
	profileRegistry *profiles.Registry,
	influxClient *influxdb.Client,
	log *logging.Logger,
) (*bridge.Bridge, error) {
	opts := bridge.Options{
		Config:   cfg,
		MQTT:     mqttClient,
		Devices:  devices,
		Profiles: profileRegistry,
		Logger:   log,
		Version:  version,
	}
	if influxClient != nil {
		opts.Metrics = influxClient
	}

	rfBridge, err := bridge.New(opts)
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}

	log.Info("connecting to RfPlayer gateway", "connection", cfg.Gateway.Connection)
	if err := rfBridge.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("bridge started", "gateway", cfg.Gateway.Connection)

	return rfBridge, nil
}

// startAPI wires up and starts the REST API server.
func startAPI(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	devices *device.Registry,
	profileRegistry *profiles.Registry,
	rfBridge *bridge.Bridge,
) (*api.Server, error) {
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Devices:  devices,
		Profiles: profileRegistry,
		Bridge:   rfBridge,
		Version:  version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	if err := server.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	return server, nil
}
