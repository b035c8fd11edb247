package shadow

import (
	"encoding/json"
	"fmt"
	"math"
)

// Attributes is one level of shadow state: attribute name to scalar
// value. Values are bool, int64, float64 or string after normalisation.
type Attributes map[string]any

// updateDocument is the reported-state publish format:
//
//	{"state":{"reported":{...attrs...,"timestamp":<int>}}}
type updateDocument struct {
	State updateState `json:"state"`
}

type updateState struct {
	Reported map[string]any `json:"reported"`
}

// deltaDocument is the inbound desired-state delta format:
//
//	{"state":{<attr>:<value>,...},"version":<int>,"timestamp":<int>}
//
// version and timestamp are optional broker metadata.
type deltaDocument struct {
	State     map[string]any `json:"state"`
	Version   int64          `json:"version"`
	Timestamp int64          `json:"timestamp"`
}

// encodeReported serialises the reported section with the monotonic
// timestamp folded in as an attribute.
func encodeReported(reported Attributes, timestamp int64) ([]byte, error) {
	merged := make(map[string]any, len(reported)+1)
	for k, v := range reported {
		merged[k] = v
	}
	merged["timestamp"] = timestamp

	doc := updateDocument{State: updateState{Reported: merged}}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	return data, nil
}

// decodeDelta parses a delta document and normalises its values.
// Any decode or normalisation failure poisons the whole document; a
// partially applied delta would desync reported from desired.
func decodeDelta(payload []byte) (Attributes, error) {
	var doc deltaDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if doc.State == nil {
		return nil, fmt.Errorf("%w: missing state section", ErrMalformedDocument)
	}

	attrs := make(Attributes, len(doc.State))
	for name, raw := range doc.State {
		v, err := normaliseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %q: %w", ErrMalformedDocument, name, err)
		}
		attrs[name] = v
	}
	return attrs, nil
}

// normaliseValue maps a decoded JSON value onto the supported scalar
// set. encoding/json gives every number as float64; integral values are
// converted to int64 so that equality against previously applied values
// is exact.
func normaliseValue(raw any) (any, error) {
	switch v := raw.(type) {
	case bool, string, int64:
		return v, nil
	case float64:
		// Upper bound is strict: MaxInt64 rounds up to 2^63 as a
		// float64, and converting that back to int64 overflows.
		if v == math.Trunc(v) && v >= math.MinInt64 && v < float64(1<<63) {
			return int64(v), nil
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}

// normaliseAttributes applies normaliseValue to every entry, rejecting
// the map on the first unsupported value.
func normaliseAttributes(in map[string]any) (Attributes, error) {
	out := make(Attributes, len(in))
	for name, raw := range in {
		v, err := normaliseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// valuesEqual compares two normalised values. Cross-type numeric
// comparison is deliberate: a stored int64 42 equals a float64 42 that
// slipped through a JSON round trip.
func valuesEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
