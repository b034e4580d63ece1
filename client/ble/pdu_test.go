package ble

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hapctl/hapctl/internal/device"
	hapble "github.com/hapctl/hapctl/transport/ble"
)

var errNoMoreReads = errors.New("fakeCharacteristic: no more queued reads")

// fakeCharacteristic is a minimal device.Characteristic double: writes
// are recorded, and reads are served from a preloaded queue of frames —
// enough to drive Client.transact without a real GATT peripheral.
type fakeCharacteristic struct {
	writes [][]byte
	reads  [][]byte
}

func (f *fakeCharacteristic) UUID() string                        { return "0000" }
func (f *fakeCharacteristic) KnownName() string                   { return "fake" }
func (f *fakeCharacteristic) GetProperties() device.Properties    { return nil }
func (f *fakeCharacteristic) GetDescriptors() []device.Descriptor { return nil }

func (f *fakeCharacteristic) Write(data []byte, withResponse bool, timeout time.Duration) error {
	cp := append([]byte(nil), data...)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeCharacteristic) Read(timeout time.Duration) ([]byte, error) {
	if len(f.reads) == 0 {
		return nil, errNoMoreReads
	}
	next := f.reads[0]
	f.reads = f.reads[1:]
	return next, nil
}

func TestTransactSingleFragmentExchange(t *testing.T) {
	c := New("aa:bb:cc:dd:ee:ff", nil, ClientOptions{})
	defer c.Close()

	// Client.transact assigns the request's TID itself (nextTID), starting
	// at 1 for a freshly constructed Client, so the stubbed response must
	// echo that same TID at header offset 1.
	fc := &fakeCharacteristic{
		reads: [][]byte{{0x02, 0x01, 0x00, 0x02, 0x00, 0xAA, 0xBB}},
	}

	resp, err := c.transact(fc, hapble.Request{Opcode: hapble.OpcodeCharacteristicRead, IID: 0x0A})
	require.NoError(t, err)
	assert.Equal(t, byte(0), resp.Status)
	assert.Equal(t, []byte{0xAA, 0xBB}, resp.Body)

	require.Len(t, fc.writes, 1)
	assert.Equal(t, byte(0x00), fc.writes[0][0])                            // control field: plain request
	assert.Equal(t, byte(hapble.OpcodeCharacteristicRead), fc.writes[0][1]) // opcode
}

func TestTransactRejectsMismatchedResponseTID(t *testing.T) {
	c := New("aa:bb:cc:dd:ee:ff", nil, ClientOptions{})
	defer c.Close()

	fc := &fakeCharacteristic{
		// TID 0x99 never matches the TID the client assigns the request.
		reads: [][]byte{{0x02, 0x99, 0x00, 0x00, 0x00}},
	}

	_, err := c.transact(fc, hapble.Request{Opcode: hapble.OpcodeCharacteristicRead, IID: 0x0A})
	require.Error(t, err)
}

func TestNextTIDIncrementsAndWraps(t *testing.T) {
	c := New("aa:bb:cc:dd:ee:ff", nil, ClientOptions{})
	defer c.Close()

	c.tid = 255
	first := c.nextTID()
	second := c.nextTID()
	assert.Equal(t, byte(0), first)
	assert.Equal(t, byte(1), second)
}

func TestStatusErrorNilOnSuccess(t *testing.T) {
	assert.NoError(t, statusError(hapble.Response{Status: hapble.StatusSuccess}))
}

func TestStatusErrorWrapsNonZeroStatus(t *testing.T) {
	err := statusError(hapble.Response{Status: hapble.StatusInvalidInstanceID})
	require.Error(t, err)
}
