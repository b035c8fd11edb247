package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rmckenny/shadowsync/internal/infrastructure/config"
)

// ErrInvalidMAC is returned when the configured MAC address cannot be
// normalised to twelve hex digits.
var ErrInvalidMAC = errors.New("agent: invalid mac address")

// Identity is the device's derived naming: the thing name used in
// shadow topics and the client id presented to the broker.
type Identity struct {
	MACAddress string
	ThingName  string
	ClientID   string
}

// DeriveIdentity builds the device identity from the device config.
// The thing name defaults to "<model>-device-<MAC>" and the client id
// to "<model without separators>_<MAC>"; both can be overridden in
// config.
func DeriveIdentity(cfg config.DeviceConfig) (Identity, error) {
	// An explicit thing name stands on its own; the MAC is then only
	// used when present.
	if cfg.MACAddress == "" && cfg.ThingName != "" {
		id := Identity{ThingName: cfg.ThingName, ClientID: cfg.ClientID}
		if id.ClientID == "" {
			id.ClientID = cfg.ThingName
		}
		return id, nil
	}

	mac, err := NormaliseMAC(cfg.MACAddress)
	if err != nil {
		return Identity{}, err
	}

	model := cfg.Model
	if model == "" {
		model = "shadowsync"
	}

	id := Identity{
		MACAddress: mac,
		ThingName:  fmt.Sprintf("%s-device-%s", model, mac),
		ClientID:   fmt.Sprintf("%s_%s", strings.ReplaceAll(model, "-", ""), mac),
	}
	if cfg.ThingName != "" {
		id.ThingName = cfg.ThingName
	}
	if cfg.ClientID != "" {
		id.ClientID = cfg.ClientID
	}
	return id, nil
}

// NormaliseMAC strips colon and dash separators and upper-cases the
// address, requiring exactly twelve hex digits.
func NormaliseMAC(mac string) (string, error) {
	cleaned := strings.ToUpper(strings.NewReplacer(":", "", "-", "").Replace(strings.TrimSpace(mac)))
	if len(cleaned) != 12 {
		return "", fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
	}
	for _, r := range cleaned {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return "", fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
		}
	}
	return cleaned, nil
}
