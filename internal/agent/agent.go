package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rmckenny/shadowsync/internal/infrastructure/config"
	"github.com/rmckenny/shadowsync/internal/infrastructure/influxdb"
	"github.com/rmckenny/shadowsync/internal/infrastructure/logging"
	"github.com/rmckenny/shadowsync/internal/infrastructure/mqtt"
	"github.com/rmckenny/shadowsync/internal/netlink"
	"github.com/rmckenny/shadowsync/internal/readiness"
	"github.com/rmckenny/shadowsync/internal/shadow"
	"github.com/rmckenny/shadowsync/internal/supervisor"
	"github.com/rmckenny/shadowsync/internal/telemetry"
)

// publishCheckInterval is how often the publish loop checks the
// cadence controllers. Both cadences are multiples of it.
const publishCheckInterval = time.Second

// CommandHandler processes one application command from the command
// topic. It runs on the dispatch goroutine; long work should be handed
// off.
type CommandHandler func(ctx context.Context, payload []byte) error

// Options carries the agent's pluggable collaborators.
type Options struct {
	// Link and Bearer are the transport layers the supervisor drives.
	Link   netlink.Link
	Bearer netlink.Bearer

	// Signal feeds RSSI into telemetry and the reported state. May be
	// nil.
	Signal netlink.SignalSource

	// Inputs reads the digital inputs. May be nil.
	Inputs telemetry.InputReader

	// Store persists last-applied desired state. Nil disables
	// persistence.
	Store shadow.Store

	// Mirror is the optional local telemetry mirror. May be nil.
	Mirror *influxdb.Client

	// Actuate is invoked for each changed attribute of an applied
	// delta. The agent folds the applied value back into reported
	// state after the callback succeeds.
	Actuate shadow.ActuationFunc

	// OnCommand handles application commands. Nil drops them with a
	// warning.
	OnCommand CommandHandler

	Logger *logging.Logger
}

// Agent wires the connectivity supervisor, the shadow reconciler and
// the telemetry loop into one device process.
//
// Three goroutines run under Run: the supervisor (connectivity), the
// router dispatch loop (inbound messages) and the publish loop
// (telemetry and shadow cadences, on the calling goroutine). They share
// state only through the readiness flags and the reconciler's own
// locking.
type Agent struct {
	cfg      *config.Config
	identity Identity
	logger   *logging.Logger

	flags  *readiness.Flags
	link   netlink.Link
	bearer netlink.Bearer

	client *mqtt.Client
	topics mqtt.Topics
	qos    byte

	rec    *shadow.Reconciler
	sup    *supervisor.Supervisor
	router *Router

	sampler          *telemetry.Sampler
	telemetryCadence *telemetry.Controller
	shadowCadence    *telemetry.Controller

	mirror    *influxdb.Client
	onCommand CommandHandler

	// runCtx is the context passed to Run, used by the transport
	// callback to bound blocking enqueues. Set before any callback can
	// fire.
	runCtx context.Context

	mu      sync.Mutex
	started bool
}

// New builds an agent from configuration and collaborators.
func New(cfg *config.Config, opts Options) (*Agent, error) {
	identity, err := DeriveIdentity(cfg.Device)
	if err != nil {
		return nil, err
	}
	if opts.Link == nil || opts.Bearer == nil {
		return nil, fmt.Errorf("agent: link and bearer are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With("thing", identity.ThingName)

	topics := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix, Thing: identity.ThingName}
	client := mqtt.New(cfg.MQTT, identity.ClientID, topics)
	client.SetLogger(logger)

	qos := byte(cfg.MQTT.QoS) // #nosec G115 -- validated to 0..2 by config

	a := &Agent{
		cfg:       cfg,
		identity:  identity,
		logger:    logger,
		flags:     readiness.NewFlags(),
		link:      opts.Link,
		bearer:    opts.Bearer,
		client:    client,
		topics:    topics,
		qos:       qos,
		router:    NewRouter(defaultInboxCapacity),
		mirror:    opts.Mirror,
		onCommand: opts.OnCommand,
	}

	a.rec = shadow.New(client, topics, opts.Store, qos)
	a.rec.SetLogger(logger)
	a.rec.SetActuationCallback(a.wrapActuation(opts.Actuate))

	a.sampler = telemetry.NewSampler(identity.ThingName, identity.MACAddress, opts.Signal, opts.Inputs)
	a.telemetryCadence = telemetry.NewController(
		cfg.Telemetry.Interval, a.flags, readiness.Session|readiness.Subscribed)
	a.shadowCadence = telemetry.NewController(
		cfg.Shadow.PublishInterval, a.flags, readiness.Session|readiness.Subscribed)

	a.sup = supervisor.New(supervisor.Config{
		RetryInterval:         cfg.Network.Reconnect.RetryInterval,
		TickInterval:          cfg.Network.Reconnect.TickInterval,
		SessionProbeThreshold: cfg.Network.Reconnect.SessionProbeThreshold,
	}, a.flags, opts.Link, opts.Bearer, a)
	a.sup.SetLogger(logger)

	// An unexpected disconnect invalidates the session layer only; the
	// supervisor decides whether anything below it is also gone.
	client.SetOnDisconnect(func(err error) {
		logger.Warn("broker connection lost", "error", err)
		a.flags.ClearFrom(readiness.Session)
	})

	return a, nil
}

// Identity returns the derived device identity.
func (a *Agent) Identity() Identity {
	return a.identity
}

// Readiness returns the current readiness snapshot.
func (a *Agent) Readiness() readiness.Flag {
	return a.flags.Snapshot()
}

// ShadowStats returns the reconciler's counters.
func (a *Agent) ShadowStats() shadow.Counters {
	return a.rec.Stats()
}

// SupervisorStats returns the supervisor's failure counters.
func (a *Agent) SupervisorStats() supervisor.Stats {
	return a.sup.Stats()
}

// UpdateReported merges application state into the reported shadow
// section. It is published on the next shadow cadence.
func (a *Agent) UpdateReported(patch shadow.Attributes) error {
	return a.rec.UpdateReported(patch)
}

// Run starts the agent and blocks until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("agent: already running")
	}
	a.started = true
	a.runCtx = ctx
	a.mu.Unlock()

	if err := a.rec.Init(ctx, a.identity.ThingName); err != nil {
		return fmt.Errorf("agent: initialising shadow state: %w", err)
	}
	if err := a.rec.UpdateReported(shadow.Attributes{
		"device_id":   a.identity.ThingName,
		"mac_address": a.identity.MACAddress,
	}); err != nil {
		return fmt.Errorf("agent: seeding reported state: %w", err)
	}

	a.logger.Info("agent starting",
		"client_id", a.identity.ClientID,
		"transport", a.cfg.Network.Transport,
		"telemetry_interval", a.cfg.Telemetry.Interval,
		"shadow_interval", a.cfg.Shadow.PublishInterval)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = a.sup.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = a.router.Run(ctx, a.dispatch)
	}()

	a.publishLoop(ctx)
	wg.Wait()

	if err := a.client.Close(); err != nil {
		a.logger.Warn("closing broker session", "error", err)
	}
	a.logger.Info("agent stopped")
	return ctx.Err()
}

// Connect implements supervisor.Session with a single broker connect
// attempt.
func (a *Agent) Connect(ctx context.Context) error {
	return a.client.Connect(ctx)
}

// IsConnected implements supervisor.Session.
func (a *Agent) IsConnected() bool {
	return a.client.IsConnected()
}

// Subscribe implements supervisor.Session: it registers the full
// steady-state topic set and optionally requests a shadow sync.
func (a *Agent) Subscribe(ctx context.Context) error {
	for _, topic := range a.topics.Subscriptions() {
		if err := a.client.Subscribe(topic, a.qos, a.inbound); err != nil {
			return fmt.Errorf("agent: subscribing %s: %w", topic, err)
		}
	}

	if a.cfg.Shadow.SyncOnSubscribe {
		if err := a.rec.RequestSync(); err != nil {
			// Not fatal: the next delta reaches us regardless.
			a.logger.Warn("shadow sync request failed", "error", err)
		}
	}
	return nil
}

// inbound is the transport callback: it hands the message to the
// dispatch goroutine without doing any work on the receive path.
func (a *Agent) inbound(topic string, payload []byte) error {
	return a.router.Enqueue(a.runCtx, topic, payload)
}

// dispatch routes one queued message by topic class.
func (a *Agent) dispatch(ctx context.Context, msg Message) {
	switch class := a.topics.Classify(msg.Topic); class {
	case mqtt.ClassCommand:
		if a.onCommand == nil {
			a.logger.Warn("dropping command, no handler registered")
			return
		}
		if err := a.onCommand(ctx, msg.Payload); err != nil {
			a.logger.Error("command handler failed", "error", err)
		}

	case mqtt.ClassUnknown:
		a.logger.Debug("ignoring message on unexpected topic", "topic", msg.Topic)

	default:
		if err := a.rec.HandleIncoming(ctx, msg.Topic, msg.Payload); err != nil {
			a.logger.Warn("shadow message dropped", "class", class.String(), "error", err)
			return
		}
		if a.mirror != nil && class == mqtt.ClassShadowDelta {
			a.mirror.WriteShadowEvent(a.identity.ThingName, "delta_applied")
		}
	}
}

// wrapActuation folds every successfully applied desired value back
// into the reported state, so the next shadow publish closes the loop.
func (a *Agent) wrapActuation(actuate shadow.ActuationFunc) shadow.ActuationFunc {
	return func(name string, value any) error {
		if actuate != nil {
			if err := actuate(name, value); err != nil {
				return err
			}
		}
		return a.rec.UpdateReported(shadow.Attributes{name: value})
	}
}

// publishLoop drives both cadence controllers.
func (a *Agent) publishLoop(ctx context.Context) {
	ticker := time.NewTicker(publishCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := time.Now()
		if a.telemetryCadence.Tick(now) {
			a.publishTelemetry(now)
		}
		if a.shadowCadence.Tick(now) {
			a.publishShadow(now)
		}
	}
}

func (a *Agent) publishTelemetry(now time.Time) {
	sample := a.sampler.Sample()
	payload, err := sample.Encode()
	if err != nil {
		a.logger.Error("telemetry sample encoding failed", "error", err)
		return
	}

	if err := a.client.Publish(a.topics.Telemetry(), payload, a.qos, false); err != nil {
		a.logger.Warn("telemetry publish failed", "error", err)
		a.triagePublishFailure()
		return
	}

	a.telemetryCadence.MarkPublished(now)
	if err := a.rec.UpdateReported(shadow.Attributes{
		"signal_strength": int64(sample.SignalStrength),
		"heartbeat":       int64(sample.Heartbeat), // #nosec G115 -- device uptime scale
	}); err != nil {
		a.logger.Warn("updating reported state from telemetry", "error", err)
	}
	if a.mirror != nil {
		a.mirror.WriteTelemetry(sample)
	}
}

func (a *Agent) publishShadow(now time.Time) {
	if err := a.rec.PublishReported(); err != nil {
		a.logger.Warn("shadow publish failed", "error", err)
		a.triagePublishFailure()
		return
	}
	a.shadowCadence.MarkPublished(now)
}

// triagePublishFailure locates the failed layer after a publish error.
// A publish can fail because the session dropped or because the whole
// network underneath it is gone; probing bottom-up clears the deepest
// dead flag so the supervisor reconnects at the right layer.
func (a *Agent) triagePublishFailure() {
	if !a.link.IsUp() {
		a.logger.Warn("publish triage: link is down")
		a.flags.ClearFrom(readiness.Link)
		return
	}
	if !a.bearer.IsUp() {
		a.logger.Warn("publish triage: bearer is down")
		a.flags.ClearFrom(readiness.Bearer)
		return
	}
	a.logger.Warn("publish triage: lower layers healthy, resetting session")
	a.flags.ClearFrom(readiness.Session)
}
