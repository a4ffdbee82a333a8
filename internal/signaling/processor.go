package signaling

import (
	"github.com/tedium-project/tedium-host/internal/frame"
)

// InternalFrame mirrors rxproc.InternalFrame without importing rxproc,
// so this package stays a leaf the same way rxproc and interrupt do.
type InternalFrame struct {
	Frame      frame.Frame
	FrameCount uint32
	MFBits     uint8
}

// RobbedBitStateSink receives an accepted RBS state change.
type RobbedBitStateSink func(change Change, address frame.TimeslotAddress)

// DigitSink receives a debounced DTMF digit detection.
type DigitSink func(address frame.TimeslotAddress, event DetectionEvent)

// FrameDropSink receives a "dropped N frames" notice when the
// processor detects a frame_count discontinuity.
type FrameDropSink func(droppedCount uint32)

// Processor is the signaling processor (C6): per-channel RBS debounce
// and per-timeslot DTMF detection, run against the signaling ring.
type Processor struct {
	channelDebouncers [frame.Channels]*RobbedBitDebouncer
	frameInSuperframe [frame.Channels]int

	detectors map[frame.TimeslotAddress]*DTMFDetector

	expectedFrameCount uint32
	haveExpected       bool

	onRobbedBitState RobbedBitStateSink
	onDigit          DigitSink
	onFrameDrop      FrameDropSink
}

// NewProcessor constructs a Processor with one RobbedBitDebouncer per
// channel and no registered DTMF detectors.
func NewProcessor(onRobbedBitState RobbedBitStateSink, onDigit DigitSink, onFrameDrop FrameDropSink) *Processor {
	p := &Processor{
		detectors:        make(map[frame.TimeslotAddress]*DTMFDetector),
		onRobbedBitState: onRobbedBitState,
		onDigit:          onDigit,
		onFrameDrop:      onFrameDrop,
	}
	for c := range p.channelDebouncers {
		p.channelDebouncers[c] = NewRobbedBitDebouncer()
	}
	return p
}

// RegisterDetector arms a DTMF detector on the given output coordinate.
func (p *Processor) RegisterDetector(address frame.TimeslotAddress) {
	p.detectors[address] = NewDTMFDetector()
}

// UnregisterDetector disarms a previously-registered detector.
func (p *Processor) UnregisterDetector(address frame.TimeslotAddress) {
	delete(p.detectors, address)
}

// ProcessFrame runs one InternalFrame through RBS debouncing and DTMF
// detection, invoking the registered sinks for any resulting events.
func (p *Processor) ProcessFrame(f InternalFrame) {
	if p.haveExpected && f.FrameCount != p.expectedFrameCount {
		dropped := f.FrameCount - p.expectedFrameCount
		if p.onFrameDrop != nil {
			p.onFrameDrop(dropped)
		}
	}
	p.expectedFrameCount = f.FrameCount + 1
	p.haveExpected = true

	for c := 0; c < frame.Channels; c++ {
		if f.MFBits&(1<<uint(c)) != 0 {
			p.frameInSuperframe[c] = 0
		}
		if p.frameInSuperframe[c] == 0 {
			p.channelDebouncers[c].NewFrame(f.FrameCount)
		}

		var lowBits [frame.TimeslotsPerChannel]bool
		for ts := 0; ts < frame.TimeslotsPerChannel; ts++ {
			lowBits[ts] = f.Frame.At(frame.NewTimeslotAddress(c, ts))&0x01 != 0
		}

		for _, change := range p.channelDebouncers[c].Update(p.frameInSuperframe[c], lowBits) {
			if p.onRobbedBitState != nil {
				p.onRobbedBitState(change, frame.NewTimeslotAddress(c, change.Timeslot))
			}
		}

		for ts := 0; ts < frame.TimeslotsPerChannel; ts++ {
			addr := frame.NewTimeslotAddress(c, ts)
			if detector, ok := p.detectors[addr]; ok {
				sample := f.Frame.At(addr)
				if event := detector.Advance(frame.DecodeToFloat(sample)); event != nil {
					if p.onDigit != nil {
						p.onDigit(addr, *event)
					}
				}
			}
		}

		if p.frameInSuperframe[c] < frame.TimeslotsPerChannel-1 {
			p.frameInSuperframe[c]++
		} else {
			p.frameInSuperframe[c] = 0
		}
	}
}
