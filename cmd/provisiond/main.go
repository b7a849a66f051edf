// Haven Provision Core - BLE Provisioning Engine
//
// This is the main entry point for the provisioning daemon. It runs on a
// gateway near the installation and walks factory-fresh Haven lighting
// controllers from BLE advertisement to cloud-registered WiFi devices:
//   - Autonomous scan/provision loop with RSSI proximity gating
//   - Operator-driven single-device provisioning over the REST API
//   - Event mirroring to MQTT and attempt telemetry to InfluxDB (optional)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/havenlighting/provision-core/internal/api"
	"github.com/havenlighting/provision-core/internal/ble"
	"github.com/havenlighting/provision-core/internal/cloud"
	"github.com/havenlighting/provision-core/internal/filter"
	"github.com/havenlighting/provision-core/internal/identity"
	"github.com/havenlighting/provision-core/internal/infrastructure/config"
	"github.com/havenlighting/provision-core/internal/infrastructure/database"
	"github.com/havenlighting/provision-core/internal/infrastructure/influxdb"
	"github.com/havenlighting/provision-core/internal/infrastructure/logging"
	"github.com/havenlighting/provision-core/internal/infrastructure/mqtt"
	"github.com/havenlighting/provision-core/internal/provision"
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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Haven Provision Core",
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Hydrate the provisioned-device ledger
	var ledgerStore provision.LedgerStore
	if cfg.Provisioning.PersistLedger {
		ledgerStore = provision.NewSQLiteLedgerStore(db.DB)
	}
	ledger := provision.NewLedger(ledgerStore, log)
	if loadErr := ledger.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading device ledger: %w", loadErr)
	}
	log.Info("device ledger initialised",
		"persistent", cfg.Provisioning.PersistLedger,
		"devices", len(ledger.Entries()),
	)

	attempts := provision.NewSQLiteAttemptStore(db.DB)

	// Connect to MQTT broker (optional)
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
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(disconnectErr error) {
			log.Warn("MQTT disconnected", "error", disconnectErr)
		})
	} else {
		log.Info("MQTT disabled")
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

		influxClient.SetOnError(func(writeErr error) {
			log.Error("InfluxDB write error", "error", writeErr)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Cloud API client
	cloudClient, err := cloud.NewClient(cfg.Cloud.BaseURL, &http.Client{Timeout: cfg.GetCloudTimeout()}, log)
	if err != nil {
		return fmt.Errorf("creating cloud client: %w", err)
	}
	log.Info("cloud client initialised", "base_url", cfg.Cloud.BaseURL)

	// Provisioning engine
	var telemetry provision.Telemetry
	if influxClient != nil {
		telemetry = &influxTelemetry{client: influxClient}
	}
	engine, err := provision.New(provision.Deps{
		Central:   ble.NewAdapter(),
		Cloud:     cloudClient,
		Ledger:    ledger,
		Attempts:  attempts,
		Telemetry: telemetry,
		Logger:    log,
		Options:   engineOptions(cfg),
	})
	if err != nil {
		return fmt.Errorf("creating provisioning engine: %w", err)
	}
	defer func() {
		log.Info("stopping provisioning engine")
		if stopErr := engine.StopLoop(); stopErr != nil {
			log.Error("error stopping engine", "error", stopErr)
		}
		engine.Wait()
	}()
	log.Info("provisioning engine initialised", "location_mode", cfg.Provisioning.Location.Mode)

	// Mirror engine events to MQTT and accept remote start/stop commands
	if mqttClient != nil {
		mirror, mirrorErr := provision.NewMirror(mqttClient, byte(cfg.MQTT.QoS), log)
		if mirrorErr != nil {
			return fmt.Errorf("creating MQTT mirror: %w", mirrorErr)
		}
		go mirror.Run(ctx, engine)

		if subErr := subscribeCommands(ctx, mqttClient, byte(cfg.MQTT.QoS), engine, log); subErr != nil {
			return fmt.Errorf("subscribing to command topic: %w", subErr)
		}
		log.Info("MQTT event mirror started", "command_topic", mqtt.Topics{}.Command())
	}

	// Start API server
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Engine:   engine,
		Attempts: attempts,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Provisioning engine (stop loop, wait for in-flight attempt)
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("Haven Provision Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HAVEN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HAVEN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// engineOptions maps daemon configuration onto the engine's standing options.
func engineOptions(cfg *config.Config) provision.Options {
	return provision.Options{
		WiFiSSID:       cfg.Provisioning.WiFi.SSID,
		WiFiPassword:   cfg.Provisioning.WiFi.Password,
		AnnounceURL:    cfg.Provisioning.AnnounceURL,
		BearerToken:    cfg.Cloud.Token,
		LocationMode:   filter.LocationMode(cfg.Provisioning.Location.Mode),
		LocationID:     cfg.Provisioning.Location.ID,
		RSSIMin:        cfg.Provisioning.RSSI.Min,
		RSSIMax:        cfg.Provisioning.RSSI.Max,
		Proximity:      time.Duration(cfg.Provisioning.ProximitySeconds) * time.Second,
		Cooldown:       cfg.GetCooldown(),
		ConnectTimeout: cfg.GetConnectTimeout(),
		IOTimeout:      cfg.GetIOTimeout(),
	}
}

// commandMessage is the payload accepted on the MQTT command topic.
type commandMessage struct {
	Action string `json:"action"`
}

// subscribeCommands wires the MQTT command topic to the engine so a remote
// operator can start and stop the autonomous loop without the REST API.
func subscribeCommands(ctx context.Context, client *mqtt.Client, qos byte, engine *provision.Orchestrator, log *logging.Logger) error {
	return client.Subscribe(mqtt.Topics{}.Command(), qos, func(topic string, payload []byte) error {
		var msg commandMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("invalid command payload: %w", err)
		}

		switch msg.Action {
		case "start":
			if err := engine.StartLoop(ctx, provision.Params{}); err != nil {
				log.Warn("remote start rejected", "error", err)
				return nil
			}
			log.Info("provisioning loop started via MQTT")
		case "stop":
			if err := engine.StopLoop(); err != nil {
				log.Warn("remote stop rejected", "error", err)
				return nil
			}
			log.Info("provisioning loop stopping via MQTT")
		default:
			log.Warn("unknown command action", "action", msg.Action)
		}
		return nil
	})
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - apiServer: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}

// influxTelemetry adapts the InfluxDB client to the engine's telemetry
// interface. All writes are fire-and-forget.
type influxTelemetry struct {
	client *influxdb.Client
}

func (t *influxTelemetry) WriteAttempt(res provision.Result) {
	t.client.WriteAttemptMetric(string(res.Family), res.Success, res.Duration.Seconds(), res.LocationID)
}

func (t *influxTelemetry) WriteSighting(name string, rssi int) {
	t.client.WriteSightingMetric(string(identity.InferFamily(name)), rssi)
}
