package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Haven Provision Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site         SiteConfig         `yaml:"site"`
	Database     DatabaseConfig     `yaml:"database"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	API          APIConfig          `yaml:"api"`
	WebSocket    WebSocketConfig    `yaml:"websocket"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
	Cloud        CloudConfig        `yaml:"cloud"`
	BLE          BLEConfig          `yaml:"ble"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	Security     SecurityConfig     `yaml:"security"`
}

// SiteConfig identifies the gateway this daemon runs on.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The broker is optional; when disabled, provisioning events are not mirrored.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for attempt telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// CloudConfig contains Haven cloud API settings.
//
// Token is the bearer token passed into every provisioning attempt.
// Acquisition and refresh of the token is out of scope for this daemon;
// set it via HAVEN_CLOUD_TOKEN or rotate the config file.
type CloudConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Timeout int    `yaml:"timeout"`
}

// BLEConfig contains Bluetooth central settings.
type BLEConfig struct {
	// ConnectTimeout is the bound on the platform connect call (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`

	// IOTimeout bounds each characteristic write/read (seconds).
	IOTimeout int `yaml:"io_timeout"`
}

// ProvisioningConfig contains the provisioning loop settings.
type ProvisioningConfig struct {
	WiFi     WiFiConfig     `yaml:"wifi"`
	Location LocationConfig `yaml:"location"`
	RSSI     RSSIConfig     `yaml:"rssi"`

	// AnnounceURL is the server endpoint handed to each device
	// (SYSTEM.SET DEVICE_ANNOUNCE_URL).
	AnnounceURL string `yaml:"announce_url"`

	// ProximitySeconds is how long a candidate must stay inside the RSSI
	// window before the loop commits to provisioning it. 0 disables the gate.
	ProximitySeconds int `yaml:"proximity_seconds"`

	// CooldownSeconds is the pause between provisioning cycles.
	CooldownSeconds int `yaml:"cooldown_seconds"`

	// PersistLedger enables the SQLite-backed provisioned-device ledger.
	PersistLedger bool `yaml:"persist_ledger"`
}

// WiFiConfig contains the credentials handed to provisioned devices.
type WiFiConfig struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

// LocationConfig selects the cloud location devices are registered under.
//
// Mode is one of the named presets ("production", "testbed") which map
// controller family to a fixed location id, or "custom" with an explicit ID.
type LocationConfig struct {
	Mode string `yaml:"mode"`
	ID   string `yaml:"id"`
}

// RSSIConfig contains the signal-strength acceptance window (dBm, negative).
type RSSIConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// SecurityConfig contains operator API security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT settings for the operator API.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load reads configuration from the given YAML file path.
//
// Load order: built-in defaults, then YAML, then environment variable
// overrides (HAVEN_SECTION_KEY, e.g. HAVEN_DATABASE_PATH, HAVEN_CLOUD_TOKEN).
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "gateway-001",
			Name: "Haven Gateway",
		},
		Database: DatabaseConfig{
			Path:        "./data/provision.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "haven-provisiond",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Cloud: CloudConfig{
			BaseURL: "https://api.havenlighting.com",
			Timeout: 15,
		},
		BLE: BLEConfig{
			ConnectTimeout: 10,
			IOTimeout:      10,
		},
		Provisioning: ProvisioningConfig{
			Location: LocationConfig{
				Mode: "production",
			},
			RSSI: RSSIConfig{
				Min: -60,
				Max: -1,
			},
			ProximitySeconds: 3,
			CooldownSeconds:  2,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HAVEN_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("HAVEN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("HAVEN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HAVEN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HAVEN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("HAVEN_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("HAVEN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Cloud credentials - never commit these to the config file
	if v := os.Getenv("HAVEN_CLOUD_URL"); v != "" {
		cfg.Cloud.BaseURL = v
	}
	if v := os.Getenv("HAVEN_CLOUD_TOKEN"); v != "" {
		cfg.Cloud.Token = v
	}

	// WiFi password handed to devices
	if v := os.Getenv("HAVEN_WIFI_PASSWORD"); v != "" {
		cfg.Provisioning.WiFi.Password = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("HAVEN_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Cloud.BaseURL == "" {
		errs = append(errs, "cloud.base_url is required")
	}

	// RSSI is a negative dBm quantity; a window reaching into >= 0 would
	// accept sensor noise.
	if c.Provisioning.RSSI.Min > c.Provisioning.RSSI.Max {
		errs = append(errs, "provisioning.rssi.min must not exceed provisioning.rssi.max")
	}
	if c.Provisioning.RSSI.Max >= 0 {
		errs = append(errs, "provisioning.rssi.max must be negative (dBm)")
	}

	switch c.Provisioning.Location.Mode {
	case "production", "testbed":
		// Preset tables carry the ids.
	case "custom":
		if strings.TrimSpace(c.Provisioning.Location.ID) == "" {
			errs = append(errs, "provisioning.location.id is required when mode is custom")
		}
	default:
		errs = append(errs, fmt.Sprintf("provisioning.location.mode %q is not one of production, testbed, custom", c.Provisioning.Location.Mode))
	}

	if c.Provisioning.WiFi.SSID == "" {
		errs = append(errs, "provisioning.wifi.ssid is required")
	}

	// Operator API authentication secret is REQUIRED. The API can start and
	// stop provisioning and read device identities, so it must not run open.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set HAVEN_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetCloudTimeout returns the cloud HTTP client timeout as a Duration.
func (c *Config) GetCloudTimeout() time.Duration {
	return time.Duration(c.Cloud.Timeout) * time.Second
}

// GetConnectTimeout returns the BLE connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.BLE.ConnectTimeout) * time.Second
}

// GetIOTimeout returns the BLE characteristic I/O timeout as a Duration.
func (c *Config) GetIOTimeout() time.Duration {
	return time.Duration(c.BLE.IOTimeout) * time.Second
}

// GetCooldown returns the inter-cycle pause as a Duration.
func (c *Config) GetCooldown() time.Duration {
	return time.Duration(c.Provisioning.CooldownSeconds) * time.Second
}
