package shadow

import (
	"errors"
	"math"
	"testing"
)

func TestNormaliseValue(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    any
		wantErr bool
	}{
		{"bool", true, true, false},
		{"string", "on", "on", false},
		{"integral float", float64(42), int64(42), false},
		{"negative integral float", float64(-75), int64(-75), false},
		{"zero", float64(0), int64(0), false},
		{"fractional float kept", 21.5, 21.5, false},
		{"largest in-range integral", float64(1 << 62), int64(1) << 62, false},
		{"one past MaxInt64 stays float", float64(1 << 63), float64(1 << 63), false},
		{"MinInt64", float64(math.MinInt64), int64(math.MinInt64), false},
		{"int64 passthrough", int64(7), int64(7), false},
		{"nested object rejected", map[string]any{"a": 1}, nil, true},
		{"array rejected", []any{1, 2}, nil, true},
		{"null rejected", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normaliseValue(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedValue) {
					t.Errorf("normaliseValue(%v) error = %v, want %v", tt.in, err, ErrUnsupportedValue)
				}
				return
			}
			if err != nil {
				t.Fatalf("normaliseValue(%v) returned %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("normaliseValue(%v) = %T(%v), want %T(%v)", tt.in, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestDecodeDelta(t *testing.T) {
	attrs, err := decodeDelta([]byte(`{"state":{"relay_output":true,"sample_interval":120,"label":"pump"},"version":7}`))
	if err != nil {
		t.Fatalf("decodeDelta() returned %v", err)
	}

	if attrs["relay_output"] != true {
		t.Errorf("relay_output = %v, want true", attrs["relay_output"])
	}
	if attrs["sample_interval"] != int64(120) {
		t.Errorf("sample_interval = %T(%v), want int64(120)", attrs["sample_interval"], attrs["sample_interval"])
	}
	if attrs["label"] != "pump" {
		t.Errorf("label = %v, want pump", attrs["label"])
	}
}

func TestDecodeDeltaMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"truncated json", `{"state":{"relay`},
		{"missing state", `{"version":3}`},
		{"nested value", `{"state":{"config":{"a":1}}}`},
		{"empty payload", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeDelta([]byte(tt.payload)); !errors.Is(err, ErrMalformedDocument) {
				t.Errorf("decodeDelta(%q) error = %v, want %v", tt.payload, err, ErrMalformedDocument)
			}
		})
	}
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"equal bools", true, true, true},
		{"different bools", true, false, false},
		{"equal strings", "on", "on", true},
		{"int64 vs float64 same value", int64(42), float64(42), true},
		{"int64 vs int64", int64(42), int64(42), true},
		{"different numbers", int64(42), int64(43), false},
		{"number vs string", int64(42), "42", false},
		{"bool vs number", true, int64(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := valuesEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("valuesEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
