package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the shadowsync agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Network   NetworkConfig   `yaml:"network"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Shadow    ShadowConfig    `yaml:"shadow"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig describes the device identity.
// ThingName and ClientID are normally derived from the MAC address;
// explicit values here override the derivation.
type DeviceConfig struct {
	// MACAddress is the hardware address the identity is derived from.
	// Accepts "AA:BB:CC:DD:EE:FF", "aa-bb-cc-dd-ee-ff" or "AABBCCDDEEFF".
	MACAddress string `yaml:"mac_address"`

	// Model is the device model prefix used in the derived thing name.
	Model string `yaml:"model"`

	// ThingName overrides the derived thing name if set.
	ThingName string `yaml:"thing_name"`

	// ClientID overrides the derived MQTT client identifier if set.
	ClientID string `yaml:"client_id"`
}

// NetworkConfig contains transport bring-up settings.
type NetworkConfig struct {
	// Transport selects the link/bearer variant: "wifi", "cellular" or "static".
	// "static" assumes an always-up network path (wired development setups).
	Transport string `yaml:"transport"`

	// APN is the access point name for cellular bearers.
	APN string `yaml:"apn"`

	// Interface is the network interface observed by the host-managed
	// transport drivers. Defaults to wlan0 for wifi and wwan0 for
	// cellular.
	Interface string `yaml:"interface"`

	// Reconnect controls the supervisor's retry behaviour.
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig contains the supervisor's retry and revalidation settings.
type ReconnectConfig struct {
	// RetryInterval is the fixed delay between bring-up attempts for a layer.
	RetryInterval time.Duration `yaml:"retry_interval"`

	// TickInterval is the steady-state revalidation cadence.
	TickInterval time.Duration `yaml:"tick_interval"`

	// SessionProbeThreshold is the number of consecutive session connect
	// failures before the lower layers are actively probed.
	SessionProbeThreshold int `yaml:"session_probe_threshold"`
}

// MQTTConfig contains broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`

	// TopicPrefix is the shadow topic namespace. Must match the broker's
	// shadow service ("$aws" for AWS IoT Core).
	TopicPrefix string `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains broker endpoint details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`
}

// MQTTAuthConfig contains broker authentication credentials.
// Certificate-based auth is handled by the external provisioning layer;
// username/password is used against plain brokers in development.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ShadowConfig contains shadow reconciliation settings.
type ShadowConfig struct {
	// PublishInterval is the steady-state reported-state publish cadence.
	PublishInterval time.Duration `yaml:"publish_interval"`

	// SyncOnSubscribe requests the server-held shadow after every subscribe.
	SyncOnSubscribe bool `yaml:"sync_on_subscribe"`
}

// TelemetryConfig contains telemetry publishing settings.
type TelemetryConfig struct {
	// Interval is the telemetry publish cadence.
	Interval time.Duration `yaml:"interval"`
}

// DatabaseConfig contains SQLite settings for local state persistence.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains settings for the optional local telemetry mirror.
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SHADOWSYNC_SECTION_KEY
// For example: SHADOWSYNC_MQTT_HOST, SHADOWSYNC_DEVICE_THING_NAME
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Model: "esp32-s3",
		},
		Network: NetworkConfig{
			Transport: "static",
			APN:       "internet",
			Reconnect: ReconnectConfig{
				RetryInterval:         30 * time.Second,
				TickInterval:          1 * time.Second,
				SessionProbeThreshold: 3,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:         1,
			TopicPrefix: "$aws",
		},
		Shadow: ShadowConfig{
			PublishInterval: 30 * time.Second,
			SyncOnSubscribe: true,
		},
		Telemetry: TelemetryConfig{
			Interval: 60 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/shadowsync.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SHADOWSYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device identity
	if v := os.Getenv("SHADOWSYNC_DEVICE_MAC"); v != "" {
		cfg.Device.MACAddress = v
	}
	if v := os.Getenv("SHADOWSYNC_DEVICE_THING_NAME"); v != "" {
		cfg.Device.ThingName = v
	}

	// MQTT
	if v := os.Getenv("SHADOWSYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SHADOWSYNC_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("SHADOWSYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SHADOWSYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("SHADOWSYNC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("SHADOWSYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Identity: either an explicit thing name or a MAC to derive one from
	if c.Device.ThingName == "" && c.Device.MACAddress == "" {
		errs = append(errs, "device.thing_name or device.mac_address is required")
	}

	switch c.Network.Transport {
	case "wifi", "cellular", "static":
	default:
		errs = append(errs, fmt.Sprintf("network.transport %q is not one of wifi, cellular, static", c.Network.Transport))
	}

	if c.Network.Reconnect.RetryInterval <= 0 {
		errs = append(errs, "network.reconnect.retry_interval must be positive")
	}
	if c.Network.Reconnect.TickInterval <= 0 {
		errs = append(errs, "network.reconnect.tick_interval must be positive")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port <= 0 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1 or 2")
	}
	if c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	if c.Shadow.PublishInterval <= 0 {
		errs = append(errs, "shadow.publish_interval must be positive")
	}
	if c.Telemetry.Interval <= 0 {
		errs = append(errs, "telemetry.interval must be positive")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
