// Package hotplug watches udev for the adapter's USB VID:PID attaching
// or departing and reports those events through a callback; cmd/tediumd
// and cmd/tedium-audiotap use the arrival events to find the adapter at
// startup.
package hotplug

import (
	"context"
	"fmt"

	udev "github.com/jochenvg/go-udev"

	"github.com/tedium-project/tedium-host/internal/device"
)

// Event is a single attach/detach observation.
type Event struct {
	Arrived bool
	Devnode string
}

// Handler receives hotplug events as they occur.
type Handler func(Event)

// Watcher enumerates already-attached matching devices, then follows
// udev's netlink monitor for subsequent attach/detach events.
type Watcher struct {
	vendorID  uint16
	productID uint16
	handler   Handler
}

// NewWatcher constructs a Watcher for the given VID:PID pair.
func NewWatcher(vendorID, productID uint16, handler Handler) *Watcher {
	return &Watcher{vendorID: vendorID, productID: productID, handler: handler}
}

// NewAdapterWatcher constructs a Watcher for the Tedium adapter's
// well-known VID:PID.
func NewAdapterWatcher(handler Handler) *Watcher {
	return NewWatcher(device.VendorID, device.ProductID, handler)
}

// ScanExisting enumerates currently attached devices matching the
// watcher's VID:PID and reports each as an arrival. Call this once
// before Run to pick up a device already plugged in at startup.
func (w *Watcher) ScanExisting() error {
	u := &udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("usb"); err != nil {
		return fmt.Errorf("hotplug: enumerate match subsystem: %w", err)
	}
	devices, err := e.Devices()
	if err != nil {
		return fmt.Errorf("hotplug: enumerate devices: %w", err)
	}
	for _, d := range devices {
		if !w.matches(d) {
			continue
		}
		w.handler(Event{Arrived: true, Devnode: d.Devnode()})
	}
	return nil
}

// Run follows udev's netlink monitor until ctx is cancelled, reporting
// attach/detach events matching the watcher's VID:PID.
func (w *Watcher) Run(ctx context.Context) error {
	u := &udev.Udev{}
	m := u.NewMonitorFromNetlink("udev")
	if err := m.FilterAddMatchSubsystem("usb"); err != nil {
		return fmt.Errorf("hotplug: monitor match subsystem: %w", err)
	}

	deviceChan, errChan, err := m.DeviceChan(ctx)
	if err != nil {
		return fmt.Errorf("hotplug: start monitor: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("hotplug: monitor: %w", err)
			}
		case d, ok := <-deviceChan:
			if !ok {
				return nil
			}
			if !w.matches(d) {
				continue
			}
			switch d.Action() {
			case "add":
				w.handler(Event{Arrived: true, Devnode: d.Devnode()})
			case "remove":
				w.handler(Event{Arrived: false, Devnode: d.Devnode()})
			}
		}
	}
}

// udevDevice is the subset of *udev.Device this package depends on,
// narrowed so ScanExisting/Run's matching logic can be unit tested
// without a real udev context.
type udevDevice interface {
	Devnode() string
	Action() string
	SysattrValue(attr string) string
}

func (w *Watcher) matches(d udevDevice) bool {
	vendor := d.SysattrValue("idVendor")
	product := d.SysattrValue("idProduct")
	return vendor == hex4(w.vendorID) && product == hex4(w.productID)
}

func hex4(v uint16) string {
	return fmt.Sprintf("%04x", v)
}
