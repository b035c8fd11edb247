package agent

import (
	"context"
	"testing"
	"time"

	"github.com/rmckenny/shadowsync/internal/infrastructure/config"
	"github.com/rmckenny/shadowsync/internal/readiness"
	"github.com/rmckenny/shadowsync/internal/shadow"
)

// toggleLayer implements netlink.Link and netlink.Bearer with a
// settable state.
type toggleLayer struct {
	up bool
}

func (l *toggleLayer) BringUp(ctx context.Context) error {
	l.up = true
	return nil
}

func (l *toggleLayer) IsUp() bool { return l.up }

func testAgentConfig() *config.Config {
	return &config.Config{
		Device: config.DeviceConfig{
			MACAddress: "AA:BB:CC:DD:EE:FF",
			Model:      "esp32-s3",
		},
		Network: config.NetworkConfig{
			Transport: "static",
			Reconnect: config.ReconnectConfig{
				RetryInterval:         30 * time.Second,
				TickInterval:          time.Second,
				SessionProbeThreshold: 3,
			},
		},
		MQTT: config.MQTTConfig{
			Broker:      config.MQTTBrokerConfig{Host: "localhost", Port: 1883},
			QoS:         1,
			TopicPrefix: "$aws",
		},
		Shadow:    config.ShadowConfig{PublishInterval: 30 * time.Second, SyncOnSubscribe: true},
		Telemetry: config.TelemetryConfig{Interval: 60 * time.Second},
	}
}

func newTestAgent(t *testing.T, opts Options) (*Agent, *toggleLayer, *toggleLayer) {
	t.Helper()
	link := &toggleLayer{up: true}
	bearer := &toggleLayer{up: true}
	opts.Link = link
	opts.Bearer = bearer

	a, err := New(testAgentConfig(), opts)
	if err != nil {
		t.Fatalf("New() returned %v", err)
	}
	return a, link, bearer
}

func TestNewDerivesTopicsFromIdentity(t *testing.T) {
	a, _, _ := newTestAgent(t, Options{})

	if got := a.identity.ThingName; got != "esp32-s3-device-AABBCCDDEEFF" {
		t.Errorf("thing name = %q", got)
	}
	if got := a.topics.Telemetry(); got != "device/esp32-s3-device-AABBCCDDEEFF/telemetry" {
		t.Errorf("telemetry topic = %q", got)
	}
	if got := a.topics.ShadowUpdate(); got != "$aws/things/esp32-s3-device-AABBCCDDEEFF/shadow/update" {
		t.Errorf("shadow topic = %q", got)
	}
}

func TestNewRequiresTransportLayers(t *testing.T) {
	if _, err := New(testAgentConfig(), Options{}); err == nil {
		t.Error("New() without link and bearer should fail")
	}
}

func TestDispatchRoutesCommands(t *testing.T) {
	var received []byte
	a, _, _ := newTestAgent(t, Options{
		OnCommand: func(ctx context.Context, payload []byte) error {
			received = payload
			return nil
		},
	})

	a.dispatch(context.Background(), Message{
		Topic:   a.topics.Commands(),
		Payload: []byte(`{"action":"reboot"}`),
	})

	if string(received) != `{"action":"reboot"}` {
		t.Errorf("command handler received %q", received)
	}
}

func TestDispatchRoutesDeltaToReconciler(t *testing.T) {
	var actuated map[string]any
	a, _, _ := newTestAgent(t, Options{
		Actuate: func(name string, value any) error {
			if actuated == nil {
				actuated = map[string]any{}
			}
			actuated[name] = value
			return nil
		},
	})

	ctx := context.Background()
	if err := a.rec.Init(ctx, a.identity.ThingName); err != nil {
		t.Fatalf("Init() returned %v", err)
	}

	a.dispatch(ctx, Message{
		Topic:   a.topics.ShadowUpdateDelta(),
		Payload: []byte(`{"state":{"relay_output":true}}`),
	})

	if actuated["relay_output"] != true {
		t.Errorf("actuation = %v, want relay_output=true", actuated)
	}

	// The applied value is folded back into reported state.
	if got := a.rec.ReportedSnapshot()["relay_output"]; got != true {
		t.Errorf("reported relay_output = %v, want true", got)
	}
}

func TestDispatchIgnoresUnknownTopics(t *testing.T) {
	a, _, _ := newTestAgent(t, Options{})

	// Must not panic or touch the reconciler before Init.
	a.dispatch(context.Background(), Message{Topic: "some/other/topic", Payload: []byte("x")})
}

func TestTriageClearsDeepestDeadLayer(t *testing.T) {
	tests := []struct {
		name     string
		linkUp   bool
		bearerUp bool
		want     readiness.Flag
	}{
		{"link dead clears everything", false, false, 0},
		{"bearer dead keeps link", true, false, readiness.Link},
		{"lower layers fine resets session", true, true, readiness.Link | readiness.Bearer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, link, bearer := newTestAgent(t, Options{})
			a.flags.Set(readiness.AllLayers)
			link.up = tt.linkUp
			bearer.up = tt.bearerUp

			a.triagePublishFailure()

			if got := a.flags.Snapshot(); got != tt.want {
				t.Errorf("flags after triage = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdateReportedBeforeRun(t *testing.T) {
	a, _, _ := newTestAgent(t, Options{})

	if err := a.UpdateReported(shadow.Attributes{"temperature": 21.5}); err == nil {
		t.Error("UpdateReported before Run should fail, reconciler not initialised")
	}
}
