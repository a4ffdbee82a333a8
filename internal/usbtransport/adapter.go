package usbtransport

import (
	"fmt"

	usb "github.com/kevmo314/go-usb"
)

// OpenAdapter opens the adapter's devfs node (as reported by
// internal/hotplug, e.g. "/dev/bus/usb/001/004") and returns a device
// handle ready for control and isochronous transfers.
//
// github.com/kevmo314/go-usb is devfs-ioctl based (USBDEVFS_URB_TYPE_*
// against a /dev/bus/usb/BBB/DDD node), but no example in the retrieval
// pack shows the function that turns such a path into a *usb.DeviceHandle.
// usb.Open(path) is assumed to exist with this signature, matching the
// shape of path go-udev's Devnode() produces; if the real API differs,
// only this function needs to change.
func OpenAdapter(devnode string) (*usb.DeviceHandle, error) {
	dev, err := usb.Open(devnode)
	if err != nil {
		return nil, fmt.Errorf("usbtransport: open %s: %w", devnode, err)
	}
	return dev, nil
}
