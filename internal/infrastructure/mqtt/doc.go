// Package mqtt provides the broker session for the shadowsync agent.
//
// This package manages:
//   - The secure MQTT session to the cloud IoT broker
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with tracked re-subscription
//   - Last Will and Testament (LWT) for offline detection
//   - The device's shadow/telemetry/command topic layout
//
// # Architecture
//
// The agent treats the broker session as one layer of a stack it must keep
// alive: Link (association) → Bearer (data session) → Session (this
// package) → Subscribed. Automatic reconnection is therefore disabled in
// paho; the connectivity supervisor decides when a connect attempt is due
// and at which layer a failure occurred.
//
//	device agent ⇄ [Link ⇄ Bearer ⇄] MQTT broker ⇄ cloud shadow service
//
// # Topics
//
// All topic strings come from the Topics builders and must stay bit-exact
// with the broker's shadow service layout:
//
//	$aws/things/<thing>/shadow/update            reported-state publishes
//	$aws/things/<thing>/shadow/update/delta      desired-state deltas (inbound)
//	$aws/things/<thing>/shadow/update/accepted   update acks (inbound)
//	$aws/things/<thing>/shadow/update/rejected   update rejections (inbound)
//	$aws/things/<thing>/shadow/get               shadow sync request
//	$aws/things/<thing>/shadow/get/accepted      sync response (inbound)
//	device/<thing>/telemetry                     application telemetry
//	device/<thing>/commands                      application commands (inbound)
//	device/<thing>/status                        availability + LWT
//
// # Usage
//
//	topics := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix, Thing: thing}
//	client := mqtt.New(cfg.MQTT, clientID, topics)
//	if err := client.Connect(ctx); err != nil {
//	    // supervisor backs off and retries
//	}
//	err = client.Subscribe(topics.ShadowUpdateDelta(), 1, handler)
package mqtt
