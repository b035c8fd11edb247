package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rmckenny/shadowsync/internal/netlink"
)

// inputCount is the number of digital inputs sampled per reading.
const inputCount = 4

// InputReader reads the device's digital inputs. Implementations wrap
// the GPIO layer; StaticInputs serves deployments without sensors.
type InputReader interface {
	DigitalInputs() ([inputCount]bool, error)
}

// StaticInputs is an InputReader with fixed values.
type StaticInputs struct {
	Values [inputCount]bool
}

func (s StaticInputs) DigitalInputs() ([inputCount]bool, error) {
	return s.Values, nil
}

// Sample is one telemetry reading in publish order.
type Sample struct {
	DeviceID       string          `json:"device_id"`
	MACAddress     string          `json:"mac_address"`
	Timestamp      int64           `json:"timestamp"`
	SignalStrength int             `json:"signal_strength"`
	Heartbeat      uint64          `json:"heartbeat"`
	Sensors        map[string]bool `json:"sensors"`
}

// Encode serialises the sample for the telemetry topic.
func (s Sample) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("telemetry: encoding sample: %w", err)
	}
	return data, nil
}

// Sampler assembles telemetry samples from the device's identity, the
// bearer's signal reading and the digital inputs.
//
// Sampling never fails: a signal or input read error degrades that
// field to its zero value so a flaky sensor cannot silence the whole
// telemetry stream. The heartbeat increments on every sample taken,
// published or not, which makes gaps visible server-side.
type Sampler struct {
	deviceID string
	mac      string
	signal   netlink.SignalSource
	inputs   InputReader
	clock    func() time.Time

	heartbeat uint64
}

// NewSampler creates a sampler. signal and inputs may be nil, in which
// case the corresponding fields stay at their zero values.
func NewSampler(deviceID, macAddress string, signal netlink.SignalSource, inputs InputReader) *Sampler {
	return &Sampler{
		deviceID: deviceID,
		mac:      macAddress,
		signal:   signal,
		inputs:   inputs,
		clock:    time.Now,
	}
}

// Sample takes one reading and advances the heartbeat. It is called
// from the telemetry loop only and is not safe for concurrent use.
func (s *Sampler) Sample() Sample {
	s.heartbeat++

	var rssi int
	if s.signal != nil {
		if v, err := s.signal.SignalStrength(); err == nil {
			rssi = v
		}
	}

	var inputs [inputCount]bool
	if s.inputs != nil {
		if v, err := s.inputs.DigitalInputs(); err == nil {
			inputs = v
		}
	}

	sensors := make(map[string]bool, inputCount)
	for i, v := range inputs {
		sensors[fmt.Sprintf("D%d", i)] = v
	}

	return Sample{
		DeviceID:       s.deviceID,
		MACAddress:     s.mac,
		Timestamp:      s.clock().Unix(),
		SignalStrength: rssi,
		Heartbeat:      s.heartbeat,
		Sensors:        sensors,
	}
}

// Heartbeat returns the current heartbeat count.
func (s *Sampler) Heartbeat() uint64 {
	return s.heartbeat
}
