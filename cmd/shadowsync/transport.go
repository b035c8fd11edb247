package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rmckenny/shadowsync/internal/infrastructure/config"
	"github.com/rmckenny/shadowsync/internal/netlink"
)

// The host-managed drivers observe an interface the platform's network
// manager owns. Association and registration themselves belong to
// wpa_supplicant / ModemManager; the agent only needs to know whether
// the layer is usable, which is exactly what the supervisor asks.

const (
	defaultWiFiInterface     = "wlan0"
	defaultCellularInterface = "wwan0"

	joinPollInterval = 2 * time.Second
)

// hostWiFiDriver implements netlink.WiFiDriver over sysfs and
// /proc/net/wireless.
type hostWiFiDriver struct {
	iface string
}

func newWiFiDriver(cfg *config.Config) *hostWiFiDriver {
	iface := cfg.Network.Interface
	if iface == "" {
		iface = defaultWiFiInterface
	}
	return &hostWiFiDriver{iface: iface}
}

// Join waits for the platform to associate the interface.
func (d *hostWiFiDriver) Join(ctx context.Context) error {
	ticker := time.NewTicker(joinPollInterval)
	defer ticker.Stop()

	for {
		if d.Associated() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *hostWiFiDriver) Associated() bool {
	return interfaceOperUp(d.iface)
}

func (d *hostWiFiDriver) HasIP() bool {
	return interfaceHasGlobalAddr(d.iface)
}

func (d *hostWiFiDriver) RSSI() (int, error) {
	return wirelessRSSI(d.iface)
}

// hostModem implements netlink.Modem over a ModemManager-owned wwan
// interface. Registration and PDP attachment happen in the platform;
// the agent observes the result.
type hostModem struct {
	iface string
}

func newModem(cfg *config.Config) *hostModem {
	iface := cfg.Network.Interface
	if iface == "" {
		iface = defaultCellularInterface
	}
	return &hostModem{iface: iface}
}

func (m *hostModem) Registered() (bool, error) {
	if _, err := net.InterfaceByName(m.iface); err != nil {
		return false, fmt.Errorf("interface %s: %w", m.iface, err)
	}
	return interfaceOperUp(m.iface), nil
}

// Attach waits for the platform to bring up the data path. The APN is
// configured in the platform's connection profile; a mismatch shows up
// as the interface never getting an address.
func (m *hostModem) Attach(ctx context.Context, apn string) error {
	ticker := time.NewTicker(joinPollInterval)
	defer ticker.Stop()

	for {
		if interfaceHasGlobalAddr(m.iface) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for pdp context on %s (apn %s): %w", m.iface, apn, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (m *hostModem) Attached() (bool, error) {
	return interfaceHasGlobalAddr(m.iface), nil
}

func (m *hostModem) SignalStrength() (int, error) {
	return wirelessRSSI(m.iface)
}

// interfaceOperUp reads /sys/class/net/<iface>/operstate.
func interfaceOperUp(iface string) bool {
	data, err := os.ReadFile("/sys/class/net/" + iface + "/operstate")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "up"
}

// interfaceHasGlobalAddr reports whether the interface holds a
// non-link-local unicast address.
func interfaceHasGlobalAddr(iface string) bool {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return false
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return false
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ipNet.IP.IsGlobalUnicast() {
			return true
		}
	}
	return false
}

// wirelessRSSI parses the signal level column of /proc/net/wireless.
func wirelessRSSI(iface string) (int, error) {
	f, err := os.Open("/proc/net/wireless")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", netlink.ErrNoSignal, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, iface+":") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			break
		}
		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[3], "."), 64)
		if err != nil {
			break
		}
		return int(level), nil
	}
	return 0, fmt.Errorf("%w: no entry for %s", netlink.ErrNoSignal, iface)
}
