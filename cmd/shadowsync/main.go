// shadowsync - IoT device shadow agent
//
// This is the main entry point for the shadowsync device agent. The
// agent keeps a device connected to its cloud broker across network,
// transport and session failures, mirrors state with the broker's
// shadow service, and publishes telemetry on a fixed cadence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rmckenny/shadowsync/internal/agent"
	"github.com/rmckenny/shadowsync/internal/infrastructure/config"
	"github.com/rmckenny/shadowsync/internal/infrastructure/database"
	"github.com/rmckenny/shadowsync/internal/infrastructure/influxdb"
	"github.com/rmckenny/shadowsync/internal/infrastructure/logging"
	"github.com/rmckenny/shadowsync/internal/netlink"
	"github.com/rmckenny/shadowsync/internal/shadow"
	"github.com/rmckenny/shadowsync/internal/telemetry"
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

	if err := run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting shadowsync",
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

	// Open local state database
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

	store, err := shadow.NewSQLiteStore(db)
	if err != nil {
		return fmt.Errorf("preparing shadow store: %w", err)
	}

	// Build the transport variant
	link, bearer, signal, err := buildTransport(cfg)
	if err != nil {
		return err
	}
	log.Info("transport selected", "transport", cfg.Network.Transport)

	// Connect to InfluxDB (optional telemetry mirror)
	var mirror *influxdb.Client
	if cfg.InfluxDB.Enabled {
		mirror, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			// The mirror is best-effort; the broker path must not
			// depend on it.
			log.Warn("telemetry mirror unavailable", "error", err)
		} else {
			defer func() {
				log.Info("closing telemetry mirror")
				if closeErr := mirror.Close(); closeErr != nil {
					log.Error("error closing telemetry mirror", "error", closeErr)
				}
			}()
			mirror.SetOnError(func(err error) {
				log.Error("telemetry mirror write error", "error", err)
			})
			log.Info("telemetry mirror connected",
				"url", cfg.InfluxDB.URL,
				"bucket", cfg.InfluxDB.Bucket,
			)
		}
	}

	a, err := agent.New(cfg, agent.Options{
		Link:   link,
		Bearer: bearer,
		Signal: signal,
		Inputs: telemetry.StaticInputs{},
		Store:  store,
		Mirror: mirror,
		Logger: log,
		Actuate: func(name string, value any) error {
			// Hardware actuation hook. The reference build has no
			// outputs wired; deployments replace this.
			log.Info("applying desired state", "attribute", name, "value", value)
			return nil
		},
		OnCommand: func(ctx context.Context, payload []byte) error {
			log.Info("command received", "payload", string(payload))
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("building agent: %w", err)
	}

	log.Info("agent built",
		"thing", a.Identity().ThingName,
		"client_id", a.Identity().ClientID,
	)

	return a.Run(ctx)
}

// buildTransport assembles the link, bearer and signal source for the
// configured transport variant.
func buildTransport(cfg *config.Config) (netlink.Link, netlink.Bearer, netlink.SignalSource, error) {
	switch cfg.Network.Transport {
	case "static":
		return netlink.StaticLink{}, netlink.StaticBearer{}, netlink.StaticSignal{DBm: -40}, nil

	case "wifi":
		driver := newWiFiDriver(cfg)
		return netlink.NewWiFiLink(driver), netlink.NewWiFiBearer(driver), netlink.NewWiFiSignal(driver), nil

	case "cellular":
		modem := newModem(cfg)
		return netlink.NewCellularLink(modem),
			netlink.NewCellularBearer(modem, cfg.Network.APN),
			netlink.NewCellularSignal(modem), nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown transport %q", cfg.Network.Transport)
	}
}

// getConfigPath returns the configuration file path.
// Uses SHADOWSYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SHADOWSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
