// Package hapuuid normalizes HAP service/characteristic UUIDs to their
// canonical long form and maps the short-form HAP-defined UUIDs to and
// from their symbolic names, generalizing the lowercase/no-dash
// normalization internal/device/uuid.go performs for generic BLE-SIG
// UUIDs to HAP's long-form-with-padding convention.
package hapuuid

import "strings"

// baseSuffix is the HAP Base UUID every short-form HAP UUID is padded
// into: "XXXXXXXX-0000-1000-8000-0026BB765291".
const baseSuffix = "-0000-1000-8000-0026BB765291"

// EnsureLongUUID returns the canonical long-form, uppercase UUID for u.
// A short form of up to 8 hex digits ("3E", "0000003E") is zero-padded to
// 8 digits into the HAP base UUID; an already-long UUID is merely
// normalized to uppercase.
func EnsureLongUUID(u string) string {
	u = strings.TrimSpace(u)
	if isShortForm(u) {
		return strings.ToUpper(pad8(u) + baseSuffix)
	}
	return strings.ToUpper(u)
}

// IsHAPBaseUUID reports whether the long-form UUID u shares the HAP base
// suffix, meaning it can be collapsed to its 8-hex-digit short form.
func IsHAPBaseUUID(u string) bool {
	return strings.HasSuffix(strings.ToUpper(u), strings.ToUpper(baseSuffix))
}

// ShortForm collapses a HAP-base long-form UUID to its 8-hex-digit short
// form; it returns the input unchanged (still uppercased) if u does not
// share the HAP base suffix.
func ShortForm(u string) string {
	up := strings.ToUpper(u)
	if !IsHAPBaseUUID(up) {
		return up
	}
	trimmed := strings.TrimSuffix(up, strings.ToUpper(baseSuffix))
	return trimmed
}

func isShortForm(u string) bool {
	clean := strings.ReplaceAll(u, "-", "")
	if len(clean) > 8 {
		return false
	}
	for _, c := range clean {
		if !isHex(c) {
			return false
		}
	}
	return true
}

func isHex(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func pad8(u string) string {
	clean := strings.ReplaceAll(u, "-", "")
	for len(clean) < 8 {
		clean = "0" + clean
	}
	return clean
}

// ServiceName maps a short-form HAP service UUID to its symbolic name,
// e.g. "0000003E" -> "accessory-information".
func ServiceName(shortUUID string) (string, bool) {
	name, ok := serviceNames[strings.ToUpper(shortUUID)]
	return name, ok
}

// CharacteristicName maps a short-form HAP characteristic UUID to its
// symbolic name, e.g. "00000023" -> "name".
func CharacteristicName(shortUUID string) (string, bool) {
	name, ok := characteristicNames[strings.ToUpper(shortUUID)]
	return name, ok
}

// CategoryName maps a HAP accessory-category identifier (the "ci" TXT
// field / categoryIdentifier) to its human-readable name.
func CategoryName(ci int) string {
	if name, ok := categoryNames[ci]; ok {
		return name
	}
	return "unknown"
}

// InstanceIDDescriptorUUIDs lists the two forms (short and long) of the
// BLE descriptor whose value is a characteristic's HAP instance id
// : "DC46F0FE-81D2-4616-B5D9-6ABDD796939A" and its
// short-form alias "939A".
var InstanceIDDescriptorUUIDs = []string{
	"DC46F0FE-81D2-4616-B5D9-6ABDD796939A",
	"939A",
}

// IsInstanceIDDescriptor reports whether uuid names the HAP
// characteristic-instance-id descriptor, in either its long or short form.
func IsInstanceIDDescriptor(uuid string) bool {
	up := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(uuid), "-", ""))
	if up == "DC46F0FE81D24616B5D96ABDD796939A" || up == "939A" {
		return true
	}
	return false
}

// ServiceInstanceCharacteristicUUID is the well-known GATT characteristic
// every HAP-BLE service carries whose value is that service's own
// instance id, the service-level counterpart to the per-characteristic
// instance-id descriptor ("reading each service's
// instance-id characteristic").
const ServiceInstanceCharacteristicUUID = "E604E95D-A759-4817-87D3-AA005083A0D1"

// IsServiceInstanceCharacteristic reports whether uuid names the
// service-instance-id characteristic.
func IsServiceInstanceCharacteristic(uuid string) bool {
	up := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(uuid), "-", ""))
	return up == strings.ReplaceAll(ServiceInstanceCharacteristicUUID, "-", "")
}

// sigBaseSuffixNoDash and hapBaseSuffixNoDash are the dash-free,
// uppercase tails of the Bluetooth SIG base UUID and the HAP base UUID,
// used to recognize a 128-bit UUID built on either base.
const sigBaseSuffixNoDash = "00001000800000805F9B34FB"
const hapBaseSuffixNoDash = "0000100080000026BB765291"

// normalizeShortHex reduces any UUID form go-ble hands back (a bare
// 16-bit hex code, or a full 128-bit UUID built on the SIG or HAP base)
// to its 8-hex-digit short code for table lookup. A 128-bit UUID not
// built on either base is returned unchanged (it will simply miss every
// table below).
func normalizeShortHex(uuid string) string {
	clean := strings.ToUpper(strings.ReplaceAll(uuid, "-", ""))
	if len(clean) == 32 {
		if suffix := clean[8:]; suffix == sigBaseSuffixNoDash || suffix == hapBaseSuffixNoDash {
			return clean[:8]
		}
		return clean
	}
	return pad8(clean)
}

// LookupService maps any form of a UUID (raw, dashed, short, long) to a
// symbolic service name, returning "" when unknown. It normalizes via
// normalizeShortHex so that the generic GATT adapter in
// internal/device/go-ble can resolve both HAP-defined and plain BT-SIG
// service UUIDs against one table.
func LookupService(uuid string) string {
	short := normalizeShortHex(uuid)
	if name, ok := ServiceName(short); ok {
		return name
	}
	if name, ok := sigServiceNames[short]; ok {
		return name
	}
	return ""
}

// LookupCharacteristic is LookupService's characteristic equivalent.
func LookupCharacteristic(uuid string) string {
	short := normalizeShortHex(uuid)
	if name, ok := CharacteristicName(short); ok {
		return name
	}
	if name, ok := sigCharacteristicNames[short]; ok {
		return name
	}
	return ""
}

// LookupDescriptor maps a GATT descriptor UUID to a symbolic name,
// covering both the generic BT-SIG descriptor range (0x2900-0x2906) and
// HAP's own instance-id descriptor.
func LookupDescriptor(uuid string) string {
	if IsInstanceIDDescriptor(uuid) {
		return "instance-id"
	}
	return sigDescriptorNames[normalizeShortHex(uuid)]
}

// sigServiceNames covers the handful of generic (non-HAP) GATT services
// the BLE adapter's generic discovery path may surface alongside HAP
// services (e.g. Device Information on a bridge exposing legacy profiles).
var sigServiceNames = map[string]string{
	"00001800": "generic-access",
	"00001801": "generic-attribute",
	"0000180A": "device-information",
	"0000180F": "battery-service",
}

var sigCharacteristicNames = map[string]string{
	"00002A00": "device-name",
	"00002A01": "appearance",
	"00002A19": "battery-level",
	"00002A29": "manufacturer-name",
	"00002A24": "model-number",
	"00002A25": "serial-number",
	"00002A26": "firmware-revision",
}

var sigDescriptorNames = map[string]string{
	"00002900": "characteristic-extended-properties",
	"00002901": "characteristic-user-description",
	"00002902": "client-characteristic-configuration",
	"00002903": "server-characteristic-configuration",
	"00002904": "characteristic-presentation-format",
	"00002905": "characteristic-aggregate-format",
	"00002906": "valid-range",
}

var serviceNames = map[string]string{
	"0000003E": "accessory-information",
	"00000049": "lightbulb",
	"00000047": "garage-door-opener",
	"00000055": "pairing",
	"00000096": "battery-service",
	"000000A2": "protocol-information",
}

var characteristicNames = map[string]string{
	"00000023": "name",
	"00000020": "manufacturer",
	"00000021": "model",
	"00000030": "serial-number",
	"00000052": "firmware-revision",
	"00000014": "identify",
	"00000025": "on",
	"00000008": "brightness",
	"00000013": "hue",
	"0000002F": "saturation",
	"00000037": "version",
	"0000004E": "pair-setup",
	"0000004F": "pair-verify",
	"00000050": "pairing-features",
	"00000051": "pairing-pairings",
}

var categoryNames = map[int]string{
	1:  "other",
	2:  "bridge",
	3:  "fan",
	4:  "garage-door-opener",
	5:  "lightbulb",
	6:  "door-lock",
	7:  "outlet",
	8:  "switch",
	9:  "thermostat",
	10: "sensor",
	11: "security-system",
	12: "door",
	13: "window",
	14: "window-covering",
	15: "programmable-switch",
	16: "range-extender",
	17: "ip-camera",
	18: "video-doorbell",
	19: "air-purifier",
	20: "heater",
	21: "air-conditioner",
	22: "humidifier",
	23: "dehumidifier",
	28: "sprinkler",
	29: "faucet",
	30: "shower-system",
	32: "television",
	33: "remote-control",
	34: "wifi-router",
	35: "audio-receiver",
	36: "tv-set-top-box",
	37: "tv-streaming-stick",
}
