package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hapctl/hapctl/internal/device"
)

// NormalizeError maps the go-ble library's error strings to
// internal/device's structured connection-error taxonomy, so that
// client/ble can distinguish "not connected"/"already connected" from
// a genuine transport failure without depending on go-ble's exact
// wording.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	// Check context errors first (these are common across all operations)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", device.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err // Don't wrap - cancellation is explicit user action
	}

	// Check platform-specific error messages
	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "device not connected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	case containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	case containsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %v", device.ErrAlreadyConnected, err)
	case containsIgnoreCase(msg, "connection is not initialized"):
		return fmt.Errorf("%w: %v", device.ErrNotInitialized, err)
	default:
		return err
	}
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
