// Package device defines the transport-agnostic GATT abstractions a HAP-BLE
// accessory connection is built from: characteristics addressed by instance
// ID, their properties and well-known descriptors, and the streaming modes
// (every-update, batched, aggregated) a subscription can deliver notify and
// indicate callbacks through.
//
// internal/device/go-ble implements these interfaces on top of the go-ble
// library; client/ble drives that implementation to service HAP read,
// write, and subscribe calls without depending on GATT library internals.
package device
