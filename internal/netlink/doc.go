// Package netlink defines the link and bearer bring-up contracts the
// connectivity supervisor drives, with WiFi, cellular and static
// variants.
//
// The supervisor is polymorphic over two small interfaces:
//
//   - Link: layer-2 attachment (WiFi association, cellular registration)
//   - Bearer: a usable data path on the link (DHCP lease, PDP context)
//
// Each transport packages the two differently. WiFi gets its IP with the
// association, so its bearer is a lease check. Cellular registers
// autonomously but must be told to attach a PDP context, so its bearer
// does real work. The static variant is for networks managed outside the
// agent entirely.
//
// SignalSource is the read side: the telemetry sampler and the shadow
// reported state both include the current RSSI.
//
// The wire protocols underneath (WiFi association frames, the modem's AT
// command set) are out of scope; implementations of WiFiDriver and Modem
// own them.
package netlink
