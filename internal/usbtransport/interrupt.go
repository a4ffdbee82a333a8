package usbtransport

import (
	"fmt"
	"runtime"

	usb "github.com/kevmo314/go-usb"
)

// interruptTransfer is the subset of *usb.InterruptTransfer this pool
// depends on, named locally for the same reason as isoTransfer.
type interruptTransfer interface {
	Submit() error
	Wait() error
	GetBuffer() []byte
	GetActualLength() int
	GetStatus() int32
}

// InterruptHandler processes one completed interrupt transfer's payload
// (a framer status dump, up to InterruptBytesMax bytes).
type InterruptHandler func(data []byte)

// InterruptPool manages a single interrupt transfer on one endpoint,
// resubmitting after every completion, matching the same "handler
// returns, then resubmit" discipline as IsoPool.
type InterruptPool struct {
	transfer      interruptTransfer
	handler       InterruptHandler
	onRecoverable func(error)
	onFatal       func(error)
	stop          chan struct{}
}

func newInterruptPoolFromTransfer(t interruptTransfer, handler InterruptHandler, onRecoverable, onFatal func(error)) *InterruptPool {
	return &InterruptPool{transfer: t, handler: handler, onRecoverable: onRecoverable, onFatal: onFatal}
}

// NewInterruptPool allocates one InterruptBytesMax-sized interrupt
// transfer on endpoint.
func NewInterruptPool(dev *usb.DeviceHandle, endpoint uint8, handler InterruptHandler, onRecoverable, onFatal func(error)) (*InterruptPool, error) {
	t, err := dev.NewInterruptTransfer(endpoint, InterruptBytesMax)
	if err != nil {
		return nil, fmt.Errorf("usbtransport: allocate interrupt transfer on endpoint %#x: %w", endpoint, err)
	}
	return newInterruptPoolFromTransfer(t, handler, onRecoverable, onFatal), nil
}

// Start submits the transfer and loops handling completions until Stop.
// Runs on its own locked OS thread, same as IsoPool.Start.
func (p *InterruptPool) Start() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	p.stop = make(chan struct{})

	if err := p.transfer.Submit(); err != nil {
		return fmt.Errorf("usbtransport: initial interrupt submit: %w", err)
	}

	for {
		select {
		case <-p.stop:
			return nil
		default:
		}
		if err := p.transfer.Wait(); err != nil {
			if p.onRecoverable != nil {
				p.onRecoverable(fmt.Errorf("usbtransport: interrupt wait: %w", err))
			}
		} else if status := p.transfer.GetStatus(); status != 0 {
			if p.onRecoverable != nil {
				p.onRecoverable(fmt.Errorf("usbtransport: interrupt status %d", status))
			}
		} else {
			buf := p.transfer.GetBuffer()
			n := p.transfer.GetActualLength()
			if n > len(buf) {
				n = len(buf)
			}
			p.handler(buf[:n])
		}
		if err := p.transfer.Submit(); err != nil && p.onFatal != nil {
			p.onFatal(fmt.Errorf("%w: interrupt resubmit: %v", ErrFatal, err))
		}
	}
}

// Stop ends the completion loop after the in-flight Wait returns.
func (p *InterruptPool) Stop() {
	if p.stop != nil {
		close(p.stop)
	}
}
