package usbtransport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tedium-project/tedium-host/internal/device"
)

type fakeControlTransferer struct {
	lastRequestType uint8
	lastRequest     uint8
	lastValue       uint16
	lastIndex       uint16
	readValue       byte
}

func (f *fakeControlTransferer) ControlTransfer(requestType, request uint8, value, index uint16, data []byte, timeoutMillis uint32) (int, error) {
	f.lastRequestType = requestType
	f.lastRequest = request
	f.lastValue = value
	f.lastIndex = index
	if requestType == controlRequestTypeVendorIn && len(data) > 0 {
		data[0] = f.readValue
	}
	return len(data), nil
}

func TestReadRegisterIssuesVendorInTransfer(t *testing.T) {
	fake := &fakeControlTransferer{readValue: 0x42}
	r := &RegisterAccess{dev: fake}

	v, err := r.ReadRegister(0x1234)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), v)
	assert.Equal(t, controlRequestTypeVendorIn, fake.lastRequestType)
	assert.Equal(t, device.RequestRegisterRead, fake.lastRequest)
	assert.Equal(t, uint16(0x1234), fake.lastIndex)
}

func TestWriteRegisterIssuesVendorOutTransferWithValueInWValue(t *testing.T) {
	fake := &fakeControlTransferer{}
	r := &RegisterAccess{dev: fake}

	require.NoError(t, r.WriteRegister(0x0f00, 0x99))
	assert.Equal(t, controlRequestTypeVendorOut, fake.lastRequestType)
	assert.Equal(t, device.RequestRegisterWrite, fake.lastRequest)
	assert.Equal(t, uint16(0x99), fake.lastValue)
	assert.Equal(t, uint16(0x0f00), fake.lastIndex)
}

func TestFramerInterfaceControlEncodesEnableAsValue(t *testing.T) {
	fake := &fakeControlTransferer{}
	r := &RegisterAccess{dev: fake}

	require.NoError(t, r.FramerInterfaceControl(true))
	assert.Equal(t, uint16(1), fake.lastValue)

	require.NoError(t, r.FramerInterfaceControl(false))
	assert.Equal(t, uint16(0), fake.lastValue)
}
