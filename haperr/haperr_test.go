package haperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransportErrorIsErrTransport(t *testing.T) {
	err := NewTransportError("dial", errors.New("connection refused"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.False(t, errors.Is(err, ErrProtocol))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNewTransportErrorNilErrIsNil(t *testing.T) {
	assert.NoError(t, NewTransportError("dial", nil))
}

func TestNewProtocolErrorIsErrProtocol(t *testing.T) {
	err := NewProtocolError("pair-setup", "bad proof")
	assert.True(t, errors.Is(err, ErrProtocol))
	assert.Contains(t, err.Error(), "pair-setup")
	assert.Contains(t, err.Error(), "bad proof")
}

func TestNewAccessoryErrorCarriesCode(t *testing.T) {
	err := NewAccessoryError(-70404, `{"status":-70404}`)
	assert.True(t, errors.Is(err, ErrAccessory))
	var ae *AccessoryError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, -70404, ae.Code)
}

func TestNewUsageErrorIsErrUsage(t *testing.T) {
	err := NewUsageError("no pairing data present")
	assert.True(t, errors.Is(err, ErrUsage))
	assert.False(t, errors.Is(err, ErrTransport))
}

func TestTransportErrorUnwrapsUnderlyingErr(t *testing.T) {
	underlying := errors.New("EOF")
	err := NewTransportError("read", underlying)
	assert.Equal(t, underlying, errors.Unwrap(err))
}
