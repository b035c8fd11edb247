package shadow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rmckenny/shadowsync/internal/infrastructure/mqtt"
)

// Publisher is the broker publish capability the reconciler needs.
// *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// ActuationFunc is invoked once per changed attribute of an applied
// delta, before the change is committed to desired state. Returning an
// error leaves the attribute uncommitted so a redelivered delta retries
// it.
type ActuationFunc func(name string, value any) error

// Logger is the subset of the logging interface the reconciler needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Counters tracks reconciler outcomes.
type Counters struct {
	UpdatesAccepted uint64
	UpdatesRejected uint64
	DeltasApplied   uint64
	Actuations      uint64
	ParseFailures   uint64
	SyncResponses   uint64
}

// Reconciler keeps the device's reported state synchronised with the
// broker's shadow document and applies desired-state deltas to the
// hardware exactly once each.
//
// The mutex guards only in-memory state. Actuation callbacks, broker
// publishes and store writes all run outside the lock; HandleIncoming
// is called from the agent's single dispatch goroutine, so deltas are
// processed one at a time.
type Reconciler struct {
	publisher Publisher
	topics    mqtt.Topics
	store     Store
	qos       byte
	logger    Logger
	clock     func() time.Time
	actuate   ActuationFunc
	syncHook  func(payload []byte)

	mu          sync.Mutex
	initialised bool
	thing       string
	reported    Attributes
	desired     Attributes
	lastApplied Attributes
	timestamp   int64

	countersMu sync.Mutex
	counters   Counters
}

// New creates a reconciler. Init must be called before any state
// operation.
func New(publisher Publisher, topics mqtt.Topics, store Store, qos byte) *Reconciler {
	if store == nil {
		store = NoopStore{}
	}
	return &Reconciler{
		publisher: publisher,
		topics:    topics,
		store:     store,
		qos:       qos,
		logger:    noopLogger{},
		clock:     time.Now,
	}
}

// SetLogger attaches a logger. Call before Init.
func (r *Reconciler) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SetActuationCallback registers the hardware actuation hook. Without
// one, deltas commit without side effects.
func (r *Reconciler) SetActuationCallback(fn ActuationFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actuate = fn
}

// SetSyncHook registers a callback for shadow get responses. The
// default is to count them and do nothing else.
func (r *Reconciler) SetSyncHook(fn func(payload []byte)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncHook = fn
}

// Init binds the reconciler to a thing and restores the last-applied
// desired state from the store.
func (r *Reconciler) Init(ctx context.Context, thingName string) error {
	if thingName == "" {
		return fmt.Errorf("%w: empty thing name", ErrNotInitialised)
	}

	lastApplied, err := r.store.Load(ctx, thingName)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.thing = thingName
	r.reported = Attributes{}
	r.desired = cloneAttributes(lastApplied)
	r.lastApplied = lastApplied
	r.initialised = true

	r.logger.Info("shadow reconciler initialised",
		"thing", thingName,
		"restored_attributes", len(lastApplied))
	return nil
}

// UpdateReported merges the patch into the reported state and advances
// the document timestamp. The change is local until PublishReported.
func (r *Reconciler) UpdateReported(patch Attributes) error {
	normalised, err := normaliseAttributes(patch)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedValue, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.initialised {
		return ErrNotInitialised
	}

	for k, v := range normalised {
		r.reported[k] = v
	}
	r.advanceTimestampLocked()
	return nil
}

// PublishReported serialises the reported section and publishes it to
// the shadow update topic. One attempt, no retry; the shadow cadence
// controller re-proposes it on failure.
func (r *Reconciler) PublishReported() error {
	r.mu.Lock()
	if !r.initialised {
		r.mu.Unlock()
		return ErrNotInitialised
	}
	snapshot := cloneAttributes(r.reported)
	ts := r.timestamp
	topic := r.topics.ShadowUpdate()
	r.mu.Unlock()

	payload, err := encodeReported(snapshot, ts)
	if err != nil {
		return err
	}
	if err := r.publisher.Publish(topic, payload, r.qos, false); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	r.logger.Debug("reported state published", "attributes", len(snapshot), "timestamp", ts)
	return nil
}

// RequestSync asks the broker for the current shadow document by
// publishing an empty get request.
func (r *Reconciler) RequestSync() error {
	r.mu.Lock()
	if !r.initialised {
		r.mu.Unlock()
		return ErrNotInitialised
	}
	topic := r.topics.ShadowGet()
	r.mu.Unlock()

	if err := r.publisher.Publish(topic, []byte("{}"), r.qos, false); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// HandleIncoming routes one inbound shadow message. Malformed payloads
// are logged, counted and dropped; they never poison later messages.
func (r *Reconciler) HandleIncoming(ctx context.Context, topic string, payload []byte) error {
	r.mu.Lock()
	initialised := r.initialised
	r.mu.Unlock()
	if !initialised {
		return ErrNotInitialised
	}

	switch r.topics.Classify(topic) {
	case mqtt.ClassShadowDelta:
		return r.handleDelta(ctx, payload)

	case mqtt.ClassShadowAccepted:
		r.count(func(c *Counters) { c.UpdatesAccepted++ })
		return nil

	case mqtt.ClassShadowRejected:
		r.count(func(c *Counters) { c.UpdatesRejected++ })
		r.logger.Warn("shadow update rejected", "payload", string(payload))
		return nil

	case mqtt.ClassShadowGetResponse:
		r.count(func(c *Counters) { c.SyncResponses++ })
		r.mu.Lock()
		hook := r.syncHook
		r.mu.Unlock()
		if hook != nil {
			hook(payload)
		}
		return nil

	default:
		r.logger.Debug("ignoring non-shadow topic", "topic", topic)
		return nil
	}
}

// handleDelta diffs the delta against the last-applied desired state,
// actuates each genuinely changed attribute, then commits and persists.
// Replaying an identical delta therefore produces zero actuations.
func (r *Reconciler) handleDelta(ctx context.Context, payload []byte) error {
	attrs, err := decodeDelta(payload)
	if err != nil {
		r.count(func(c *Counters) { c.ParseFailures++ })
		r.logger.Warn("dropping malformed delta", "error", err)
		return err
	}

	r.mu.Lock()
	pending := make(Attributes)
	for name, value := range attrs {
		prev, seen := r.lastApplied[name]
		if !seen || !valuesEqual(prev, value) {
			pending[name] = value
		}
	}
	actuate := r.actuate
	thing := r.thing
	r.mu.Unlock()

	if len(pending) == 0 {
		r.logger.Debug("delta already applied, no actuations")
		return nil
	}

	// Actuate in a stable order, outside the lock. A failed attribute
	// stays uncommitted so a redelivered delta retries just that one.
	applied := make(Attributes, len(pending))
	for _, name := range sortedKeys(pending) {
		value := pending[name]
		if actuate != nil {
			if err := actuate(name, value); err != nil {
				r.logger.Error("actuation failed", "attribute", name, "error", err)
				continue
			}
		}
		applied[name] = value
		r.count(func(c *Counters) { c.Actuations++ })
	}

	if len(applied) == 0 {
		return nil
	}

	r.mu.Lock()
	for name, value := range applied {
		r.desired[name] = value
		r.lastApplied[name] = value
	}
	snapshot := cloneAttributes(r.lastApplied)
	r.mu.Unlock()

	r.count(func(c *Counters) { c.DeltasApplied++ })
	r.logger.Info("delta applied", "attributes", len(applied))

	if err := r.store.Save(ctx, thing, snapshot); err != nil {
		// Non-fatal: the worst case is one redundant actuation after
		// a restart.
		r.logger.Warn("failed to persist last-applied state", "error", err)
	}
	return nil
}

// ReportedSnapshot returns a copy of the current reported state.
func (r *Reconciler) ReportedSnapshot() Attributes {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAttributes(r.reported)
}

// DesiredSnapshot returns a copy of the current desired state.
func (r *Reconciler) DesiredSnapshot() Attributes {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneAttributes(r.desired)
}

// Stats returns a copy of the counters.
func (r *Reconciler) Stats() Counters {
	r.countersMu.Lock()
	defer r.countersMu.Unlock()
	return r.counters
}

// advanceTimestampLocked moves the document timestamp forward. Wall
// time is used when it advances; otherwise the previous value plus one
// keeps the sequence strictly monotonic across rapid updates.
func (r *Reconciler) advanceTimestampLocked() {
	now := r.clock().Unix()
	if now <= r.timestamp {
		now = r.timestamp + 1
	}
	r.timestamp = now
}

func (r *Reconciler) count(fn func(*Counters)) {
	r.countersMu.Lock()
	fn(&r.counters)
	r.countersMu.Unlock()
}

func cloneAttributes(in Attributes) Attributes {
	out := make(Attributes, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(attrs Attributes) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
