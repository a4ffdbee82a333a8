// Package txrate implements the TX rate-match controller (C4): it
// modulates how many frames are packed into each outgoing USB
// isochronous packet to hold the device's TX FIFO level in a target
// band, using the FIFO-level range observed over the prior IN transfer.
package txrate

// Low is the hysteresis threshold: when the TX FIFO level tracked above
// Low for an entire IN transfer, the device is considered too full and
// the next OUT transfer's first packet drops a frame.
const Low = 12

// Range is the (min, max) TX-FIFO level observed during one IN
// transfer. Valid reports min <= max; a controller that has not yet
// observed any IN data reports an invalid range (rxproc.Processor
// initializes min to its maximum possible value and max to zero, so
// min > max until at least one IN packet has been processed).
type Range struct {
	Min, Max uint8
	Valid    bool
}

// NewRange builds a Range from the raw (min, max) pair returned by
// rxproc.Processor.TxFIFOLevelRange, inferring validity from min <= max.
func NewRange(min, max uint8) Range {
	return Range{Min: min, Max: max, Valid: min <= max}
}

// Controller holds no state beyond its threshold: the rate-match
// decision depends only on the most recent transfer's Range, which the
// caller (the OUT transfer handler) re-supplies every transfer.
type Controller struct {
	low uint8
}

// NewController constructs a Controller using the standard threshold.
func NewController() *Controller {
	return &Controller{low: Low}
}

// FirstPacketFrames returns how many frames the first packet of the
// next OUT transfer should carry, given the TX-FIFO Range observed over
// the prior IN transfer.
//
// An invalid Range (no IN data observed yet) is neutral: 1 frame, same
// as every other packet in the transfer.
func (c *Controller) FirstPacketFrames(r Range) int {
	if !r.Valid {
		return 1
	}
	switch {
	case r.Min > c.low:
		// Tracking above the target band for the whole window.
		return 0
	case r.Max < c.low:
		// Tracking below the target band for the whole window.
		return 2
	default:
		return 1
	}
}

// RemainingPacketFrames is the frame count for every OUT packet after
// the first in a transfer: always 1.
func (c *Controller) RemainingPacketFrames() int {
	return 1
}

// ShouldDropExtraFrame reports whether the controller should pop and
// discard one extra frame from the processed-frames ring this transfer,
// independent of the per-packet frame counts above, to draw the FIFO
// level down faster.
func (c *Controller) ShouldDropExtraFrame(r Range) bool {
	return r.Valid && r.Min > c.low
}
