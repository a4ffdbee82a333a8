// Package usbtransport implements the USB isochronous and interrupt
// transport pools (C2): keeps a steady stream of IN and OUT transfers
// outstanding, invokes a handler per completed transfer, and
// immediately resubmits, all from a single completion goroutine so
// handlers never race each other.
package usbtransport

import (
	"errors"
	"fmt"
	"runtime"

	usb "github.com/kevmo314/go-usb"
)

// Pool sizing per spec.md §4.1: T transfers per direction, P packets per
// transfer, L bytes per packet. T*P >= 16 absorbs >=2ms of host jitter
// at 8kHz.
const (
	TransfersPerDirection = 8
	PacketsPerTransfer    = 8
	PacketBytes           = 512
)

// InterruptBytesMax bounds the framer status-dump interrupt transfer,
// per spec.md §4.6.
const InterruptBytesMax = 256

// ErrFatal wraps a transport failure the pool judges unrecoverable
// (permanent endpoint stall, device disappearance): the supervisor must
// treat this as process-fatal rather than log-and-continue.
var ErrFatal = errors.New("usbtransport: fatal transport error")

// isoTransfer is the subset of *usb.IsochronousTransfer's behavior this
// pool depends on, named locally so tests can supply a fake without
// opening a real device.
type isoTransfer interface {
	Submit() error
	Wait() error
	GetIsoPacketBufferSlices() [][]byte
	GetStatus() int32
}

// PacketHandler processes one completed transfer's per-packet buffers.
// It must not block: the completion goroutine resubmits immediately
// after the handler returns.
type PacketHandler func(packets [][]byte)

// IsoPool manages TransfersPerDirection isochronous transfers on one
// endpoint, invoking handler for each completion from a single
// goroutine and resubmitting before returning control to the caller.
type IsoPool struct {
	transfers     []isoTransfer
	handler       PacketHandler
	onRecoverable func(error)
	onFatal       func(error)
	stop          chan struct{}
}

// newIsoPoolFromTransfers builds a pool over already-constructed
// transfers; used directly by tests, and by NewIsoPool below for real
// device handles.
func newIsoPoolFromTransfers(transfers []isoTransfer, handler PacketHandler, onRecoverable, onFatal func(error)) *IsoPool {
	return &IsoPool{transfers: transfers, handler: handler, onRecoverable: onRecoverable, onFatal: onFatal}
}

// NewIsoPool allocates TransfersPerDirection isochronous transfers of
// PacketsPerTransfer packets each on endpoint, backed by a real device
// handle from github.com/kevmo314/go-usb. onRecoverable is called for a
// single transfer failure or bad packet status (logged and counted, per
// spec.md §7's UsbRecoverable kind); onFatal is called for a failure
// the pool cannot resubmit past (UsbFatal).
func NewIsoPool(dev *usb.DeviceHandle, endpoint uint8, handler PacketHandler, onRecoverable, onFatal func(error)) (*IsoPool, error) {
	transfers := make([]isoTransfer, 0, TransfersPerDirection)
	for i := 0; i < TransfersPerDirection; i++ {
		t, err := dev.NewIsochronousTransfer(endpoint, PacketsPerTransfer, PacketBytes)
		if err != nil {
			return nil, fmt.Errorf("usbtransport: allocate transfer %d on endpoint %#x: %w", i, endpoint, err)
		}
		transfers = append(transfers, t)
	}
	return newIsoPoolFromTransfers(transfers, handler, onRecoverable, onFatal), nil
}

// Start submits every transfer and runs the completion loop on a
// dedicated, locked OS thread until Stop is called. Start blocks the
// calling goroutine; callers run it in its own goroutine.
func (p *IsoPool) Start() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	p.stop = make(chan struct{})

	for i, t := range p.transfers {
		if err := t.Submit(); err != nil {
			return fmt.Errorf("usbtransport: initial submit of transfer %d: %w", i, err)
		}
	}

	for {
		select {
		case <-p.stop:
			return nil
		default:
		}
		for _, t := range p.transfers {
			if err := t.Wait(); err != nil {
				p.reportRecoverable(fmt.Errorf("usbtransport: transfer wait: %w", err))
				continue
			}
			if status := t.GetStatus(); status != 0 {
				p.reportRecoverable(fmt.Errorf("usbtransport: packet status %d", status))
			} else {
				p.handler(t.GetIsoPacketBufferSlices())
			}
			if err := t.Submit(); err != nil {
				p.reportFatal(fmt.Errorf("usbtransport: resubmit: %w", err))
			}
		}
	}
}

// Stop ends the completion loop after the in-flight Wait returns.
func (p *IsoPool) Stop() {
	if p.stop != nil {
		close(p.stop)
	}
}

func (p *IsoPool) reportRecoverable(err error) {
	if p.onRecoverable != nil {
		p.onRecoverable(err)
	}
}

func (p *IsoPool) reportFatal(err error) {
	if p.onFatal != nil {
		p.onFatal(fmt.Errorf("%w: %v", ErrFatal, err))
	}
}
