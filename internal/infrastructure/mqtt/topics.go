package mqtt

import (
	"fmt"
	"strings"
)

// Topics builds the broker topic names for a single device.
// The shadow topic layout must be reproduced bit-exact for broker
// compatibility, so every topic used anywhere in the agent comes from
// these builders.
//
//	topics := mqtt.Topics{Prefix: "$aws", Thing: "esp32-s3-device-AABBCCDDEEFF"}
//	topics.ShadowUpdate() // "$aws/things/esp32-s3-device-AABBCCDDEEFF/shadow/update"
type Topics struct {
	// Prefix is the shadow service namespace ("$aws" for AWS IoT Core).
	Prefix string

	// Thing is the device's thing name.
	Thing string
}

// Shadow topic suffixes used for inbound classification.
const (
	suffixDelta       = "/shadow/update/delta"
	suffixAccepted    = "/shadow/update/accepted"
	suffixRejected    = "/shadow/update/rejected"
	suffixGetAccepted = "/shadow/get/accepted"
)

// ShadowUpdate returns the reported-state publish topic.
//
// Example: $aws/things/esp32-s3-device-AABBCCDDEEFF/shadow/update
func (t Topics) ShadowUpdate() string {
	return fmt.Sprintf("%s/things/%s/shadow/update", t.Prefix, t.Thing)
}

// ShadowUpdateDelta returns the desired-state delta topic.
//
// Example: $aws/things/esp32-s3-device-AABBCCDDEEFF/shadow/update/delta
func (t Topics) ShadowUpdateDelta() string {
	return t.ShadowUpdate() + "/delta"
}

// ShadowUpdateAccepted returns the update acknowledgement topic.
func (t Topics) ShadowUpdateAccepted() string {
	return t.ShadowUpdate() + "/accepted"
}

// ShadowUpdateRejected returns the update rejection topic.
func (t Topics) ShadowUpdateRejected() string {
	return t.ShadowUpdate() + "/rejected"
}

// ShadowGet returns the shadow get-request topic.
//
// Example: $aws/things/esp32-s3-device-AABBCCDDEEFF/shadow/get
func (t Topics) ShadowGet() string {
	return fmt.Sprintf("%s/things/%s/shadow/get", t.Prefix, t.Thing)
}

// ShadowGetAccepted returns the get-response topic.
func (t Topics) ShadowGetAccepted() string {
	return t.ShadowGet() + "/accepted"
}

// Telemetry returns the application telemetry topic.
//
// Example: device/esp32-s3-device-AABBCCDDEEFF/telemetry
func (t Topics) Telemetry() string {
	return fmt.Sprintf("device/%s/telemetry", t.Thing)
}

// Commands returns the application command topic.
//
// Example: device/esp32-s3-device-AABBCCDDEEFF/commands
func (t Topics) Commands() string {
	return fmt.Sprintf("device/%s/commands", t.Thing)
}

// Status returns the device availability topic used for the LWT and
// online/offline announcements.
//
// Example: device/esp32-s3-device-AABBCCDDEEFF/status
func (t Topics) Status() string {
	return fmt.Sprintf("device/%s/status", t.Thing)
}

// Class identifies the routing class of an inbound topic.
type Class int

const (
	// ClassUnknown is any topic not recognised below.
	ClassUnknown Class = iota

	// ClassShadowDelta is a desired-state delta document.
	ClassShadowDelta

	// ClassShadowAccepted is an update acknowledgement.
	ClassShadowAccepted

	// ClassShadowRejected is an update rejection.
	ClassShadowRejected

	// ClassShadowGetResponse is a get-request response document.
	ClassShadowGetResponse

	// ClassCommand is an application command.
	ClassCommand
)

// String returns the class name for logging.
func (c Class) String() string {
	switch c {
	case ClassShadowDelta:
		return "shadow_delta"
	case ClassShadowAccepted:
		return "shadow_accepted"
	case ClassShadowRejected:
		return "shadow_rejected"
	case ClassShadowGetResponse:
		return "shadow_get_response"
	case ClassCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Classify maps an inbound topic to its routing class.
// Classification is by suffix so it works regardless of prefix.
func (t Topics) Classify(topic string) Class {
	switch {
	case strings.HasSuffix(topic, suffixDelta):
		return ClassShadowDelta
	case strings.HasSuffix(topic, suffixAccepted):
		return ClassShadowAccepted
	case strings.HasSuffix(topic, suffixRejected):
		return ClassShadowRejected
	case strings.HasSuffix(topic, suffixGetAccepted):
		return ClassShadowGetResponse
	case topic == t.Commands():
		return ClassCommand
	default:
		return ClassUnknown
	}
}

// IsShadow reports whether the topic belongs to the shadow service.
func (t Topics) IsShadow(topic string) bool {
	switch t.Classify(topic) {
	case ClassShadowDelta, ClassShadowAccepted, ClassShadowRejected, ClassShadowGetResponse:
		return true
	default:
		return false
	}
}

// Subscriptions returns the topic set the device must be subscribed to
// while in the steady operating state.
func (t Topics) Subscriptions() []string {
	return []string{
		t.ShadowUpdateDelta(),
		t.ShadowUpdateAccepted(),
		t.ShadowUpdateRejected(),
		t.ShadowGetAccepted(),
		t.Commands(),
	}
}
