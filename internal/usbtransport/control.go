package usbtransport

import (
	"fmt"

	usb "github.com/kevmo314/go-usb"
	"github.com/tedium-project/tedium-host/internal/device"
)

// controlTransferer is the subset of *usb.DeviceHandle's vendor control
// transfer support this package depends on.
type controlTransferer interface {
	ControlTransfer(requestType, request uint8, value, index uint16, data []byte, timeoutMillis uint32) (int, error)
}

// RegisterAccess implements device.RegisterAccess over a real USB
// device handle's vendor control transfers, matching the three
// Request codes and transfer directions of spec.md §6.
type RegisterAccess struct {
	dev controlTransferer
}

var _ device.RegisterAccess = (*RegisterAccess)(nil)

// NewRegisterAccess wraps a device handle opened on the adapter's
// vendor-specific control endpoint.
func NewRegisterAccess(dev *usb.DeviceHandle) *RegisterAccess {
	return &RegisterAccess{dev: dev}
}

const (
	controlRequestTypeVendorIn  uint8 = 0xC0 // Direction=In, Type=Vendor, Recipient=Device
	controlRequestTypeVendorOut uint8 = 0x40 // Direction=Out, Type=Vendor, Recipient=Device
)

func (r *RegisterAccess) ReadRegister(addr uint16) (byte, error) {
	buf := make([]byte, 1)
	_, err := r.dev.ControlTransfer(controlRequestTypeVendorIn, device.RequestRegisterRead, 0, addr, buf, uint32(device.ControlTimeout.Milliseconds()))
	if err != nil {
		return 0, fmt.Errorf("usbtransport: register read %#04x: %w", addr, err)
	}
	return buf[0], nil
}

func (r *RegisterAccess) WriteRegister(addr uint16, value byte) error {
	_, err := r.dev.ControlTransfer(controlRequestTypeVendorOut, device.RequestRegisterWrite, uint16(value), addr, nil, uint32(device.ControlTimeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("usbtransport: register write %#04x: %w", addr, err)
	}
	return nil
}

func (r *RegisterAccess) FramerInterfaceControl(enable bool) error {
	var value uint16
	if enable {
		value = 1
	}
	_, err := r.dev.ControlTransfer(controlRequestTypeVendorOut, device.RequestFramerIfControl, value, 0, nil, uint32(device.ControlTimeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("usbtransport: framer interface control: %w", err)
	}
	return nil
}
