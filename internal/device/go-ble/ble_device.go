package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/hapctl/hapctl/internal/device"
)

// BLEDevice is the GATT peer a client/ble.Client dials: one physical
// accessory, addressed by its BLE MAC, with a connection instance that
// NewBLEDevice creates up front and that stays open once Connect succeeds.
//
// The discovery-facing surface a generic BLE inspector would build on
// top of this type (advertisement ingestion, live name/RSSI refresh, a
// generic notify-callback registration) has no HAP counterpart: a HAP
// client is handed an address by its caller and never scans or tracks
// advertisements itself. That surface is gone; what remains is exactly
// the connect/disconnect/GATT-access path client/ble.Client drives.
type BLEDevice struct {
	address    string
	connection *BLEConnection
	logger     *logrus.Logger
	mu         sync.RWMutex
}

// NewBLEDevice creates a BLEDevice with a pre-created connection instance.
func NewBLEDevice(address string, logger *logrus.Logger) *BLEDevice {
	if logger == nil {
		logger = logrus.New()
	}

	return &BLEDevice{
		address:    address,
		connection: NewBLEConnection(logger),
		logger:     logger,
	}
}

// NewBLEDeviceWithAddress creates a BLEDevice with the specified address.
func NewBLEDeviceWithAddress(address string, logger *logrus.Logger) *BLEDevice {
	return NewBLEDevice(address, logger)
}

// Connect establishes a BLE connection and resolves the HAP service/
// characteristic set the accessory exposes.
func (d *BLEDevice) Connect(ctx context.Context, opts *device.ConnectOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connection == nil {
		return fmt.Errorf("internal error: connection is not initialized")
	}

	if opts == nil {
		opts = &device.ConnectOptions{
			ConnectTimeout: 30 * time.Second,
		}
	}

	if err := d.connection.Connect(ctx, d.address, opts); err != nil {
		return err
	}

	// Resolve a human-readable name from the GAP Device Name
	// characteristic (0x2A00) purely for logging; HAP identifies the
	// accessory by its pairing id, never by this name.
	const (
		gapServiceUUID = "1800"
		deviceNameChar = "2a00"
	)
	if _, exists := d.connection.services[gapServiceUUID]; exists {
		if char, err := d.connection.GetCharacteristic(gapServiceUUID, deviceNameChar); err == nil {
			if bleChar, ok := char.(*BLECharacteristic); ok && bleChar.BLEChar != nil {
				if data, err := d.connection.client.ReadCharacteristic(bleChar.BLEChar); err == nil && len(data) > 0 {
					name := strings.TrimSpace(strings.TrimRight(string(data), "\x00"))
					if name != "" {
						d.logger.WithFields(logrus.Fields{
							"address": d.address,
							"name":    name,
						}).Debug("resolved accessory name from GAP")
					}
				}
			}
		}
	}

	return nil
}

// Disconnect closes the connection and clears live handles.
func (d *BLEDevice) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connection == nil {
		return fmt.Errorf("internal error: connection is not initialized")
	}
	return d.connection.Disconnect()
}

func (d *BLEDevice) isConnectedInternal() bool {
	if d.connection == nil {
		return false
	}
	return d.connection.IsConnected()
}

// IsConnected returns connection status.
func (d *BLEDevice) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isConnectedInternal()
}

// GetConnection returns the BLE connection interface.
func (d *BLEDevice) GetConnection() device.Connection {
	return d.connection
}
