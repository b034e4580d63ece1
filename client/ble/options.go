package ble

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultOperationTimeout is the timeout applied to a BLE operation when
// ClientOptions.Timeout is zero ("Cancellation & timeouts").
const DefaultOperationTimeout = 30 * time.Second

// ClientOptions configures a Client's operation timeout and logging,
// mirroring client/ip's ClientOptions convention.
type ClientOptions struct {
	// Timeout bounds each GATT write and read of a PDU exchange and the
	// wait for its complete response; the connection itself is bounded by
	// ConnectTimeout. Zero means DefaultOperationTimeout.
	Timeout time.Duration

	// ConnectTimeout bounds the initial GATT connection. Zero means
	// DefaultOperationTimeout.
	ConnectTimeout time.Duration

	Logger *logrus.Logger
}

func (o ClientOptions) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultOperationTimeout
}

func (o ClientOptions) connectTimeout() time.Duration {
	if o.ConnectTimeout > 0 {
		return o.ConnectTimeout
	}
	return DefaultOperationTimeout
}

func (o ClientOptions) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.New()
}
