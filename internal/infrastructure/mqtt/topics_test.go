package mqtt

import "testing"

func TestTopicsBuilders(t *testing.T) {
	topics := Topics{Prefix: "$aws", Thing: "esp32-s3-device-AABBCCDDEEFF"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "shadow update",
			got:  topics.ShadowUpdate(),
			want: "$aws/things/esp32-s3-device-AABBCCDDEEFF/shadow/update",
		},
		{
			name: "shadow update delta",
			got:  topics.ShadowUpdateDelta(),
			want: "$aws/things/esp32-s3-device-AABBCCDDEEFF/shadow/update/delta",
		},
		{
			name: "shadow update accepted",
			got:  topics.ShadowUpdateAccepted(),
			want: "$aws/things/esp32-s3-device-AABBCCDDEEFF/shadow/update/accepted",
		},
		{
			name: "shadow update rejected",
			got:  topics.ShadowUpdateRejected(),
			want: "$aws/things/esp32-s3-device-AABBCCDDEEFF/shadow/update/rejected",
		},
		{
			name: "shadow get",
			got:  topics.ShadowGet(),
			want: "$aws/things/esp32-s3-device-AABBCCDDEEFF/shadow/get",
		},
		{
			name: "shadow get accepted",
			got:  topics.ShadowGetAccepted(),
			want: "$aws/things/esp32-s3-device-AABBCCDDEEFF/shadow/get/accepted",
		},
		{
			name: "telemetry",
			got:  topics.Telemetry(),
			want: "device/esp32-s3-device-AABBCCDDEEFF/telemetry",
		},
		{
			name: "commands",
			got:  topics.Commands(),
			want: "device/esp32-s3-device-AABBCCDDEEFF/commands",
		},
		{
			name: "status",
			got:  topics.Status(),
			want: "device/esp32-s3-device-AABBCCDDEEFF/status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTopicsCustomPrefix(t *testing.T) {
	topics := Topics{Prefix: "staging", Thing: "bench-01"}

	if got, want := topics.ShadowUpdate(), "staging/things/bench-01/shadow/update"; got != want {
		t.Errorf("ShadowUpdate() = %q, want %q", got, want)
	}
	if got, want := topics.Telemetry(), "device/bench-01/telemetry"; got != want {
		t.Errorf("Telemetry() = %q, want %q", got, want)
	}
}

func TestClassify(t *testing.T) {
	topics := Topics{Prefix: "$aws", Thing: "esp32-s3-device-AABBCCDDEEFF"}

	tests := []struct {
		name  string
		topic string
		want  Class
	}{
		{"delta", topics.ShadowUpdateDelta(), ClassShadowDelta},
		{"accepted", topics.ShadowUpdateAccepted(), ClassShadowAccepted},
		{"rejected", topics.ShadowUpdateRejected(), ClassShadowRejected},
		{"get accepted", topics.ShadowGetAccepted(), ClassShadowGetResponse},
		{"command", topics.Commands(), ClassCommand},
		{"telemetry is not inbound", topics.Telemetry(), ClassUnknown},
		{"status is not inbound", topics.Status(), ClassUnknown},
		{"unrelated topic", "some/other/topic", ClassUnknown},
		{"empty topic", "", ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := topics.Classify(tt.topic); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.topic, got, tt.want)
			}
		})
	}
}

func TestSubscriptions(t *testing.T) {
	topics := Topics{Prefix: "$aws", Thing: "dev-1"}

	subs := topics.Subscriptions()
	if len(subs) != 5 {
		t.Fatalf("Subscriptions() returned %d topics, want 5", len(subs))
	}

	want := map[string]bool{
		topics.ShadowUpdateDelta():    true,
		topics.ShadowUpdateAccepted(): true,
		topics.ShadowUpdateRejected(): true,
		topics.ShadowGetAccepted():    true,
		topics.Commands():             true,
	}
	for _, s := range subs {
		if !want[s] {
			t.Errorf("unexpected subscription topic %q", s)
		}
	}
}

func TestIsShadow(t *testing.T) {
	topics := Topics{Prefix: "$aws", Thing: "dev-1"}

	if !topics.IsShadow(topics.ShadowUpdateDelta()) {
		t.Error("delta topic should be a shadow topic")
	}
	if topics.IsShadow(topics.Commands()) {
		t.Error("commands topic should not be a shadow topic")
	}
}

func TestClassString(t *testing.T) {
	tests := []struct {
		class Class
		want  string
	}{
		{ClassUnknown, "unknown"},
		{ClassShadowDelta, "shadow_delta"},
		{ClassShadowAccepted, "shadow_accepted"},
		{ClassShadowRejected, "shadow_rejected"},
		{ClassShadowGetResponse, "shadow_get_response"},
		{ClassCommand, "command"},
	}
	for _, tt := range tests {
		if got := tt.class.String(); got != tt.want {
			t.Errorf("Class(%d).String() = %q, want %q", tt.class, got, tt.want)
		}
	}
}
