package rxproc

import (
	"math"

	"github.com/tedium-project/tedium-host/internal/frame"
)

// InternalFrame is a received Frame annotated with the frame_count and
// mf_bits its RxFrameReport carried, queued to the audio and signaling
// rings.
type InternalFrame struct {
	Frame      frame.Frame
	FrameCount uint32
	MFBits     uint8
}

// Ring is the minimal push interface the processor needs from an SPSC
// ring; satisfied by *eventbus.Ring[InternalFrame] without importing
// eventbus here, so this package has no dependency on the event bus.
type Ring interface {
	Push(InternalFrame) bool
}

// StatisticsSink receives a FramerStatistics snapshot every 8000
// accepted frames. The caller (the code that owns the event bus) wires
// this to publish the typed event.
type StatisticsSink func(PeriodicStatistics, CumulativeStatistics)

// Processor is the receive packet processor (C3): per-IN-packet parse,
// discontinuity detection, FIFO-level statistics, and fan-out to the
// audio and signaling rings.
type Processor struct {
	audioRing      Ring
	signalingRing  Ring
	emitStatistics StatisticsSink

	periodic   PeriodicStatistics
	cumulative CumulativeStatistics

	sofCountNext   uint32
	frameCountNext uint32

	txFIFOLevelMin uint8
	txFIFOLevelMax uint8
}

// NewProcessor constructs a Processor. audioRing and signalingRing may
// be nil in tests that only want statistics behavior.
func NewProcessor(audioRing, signalingRing Ring, emit StatisticsSink) *Processor {
	return &Processor{
		audioRing:      audioRing,
		signalingRing:  signalingRing,
		emitStatistics: emit,
		txFIFOLevelMin: math.MaxUint8,
		txFIFOLevelMax: 0,
	}
}

// ResetTxFIFOLevelStats clears the min/max TX-FIFO-level tracking for a
// new transfer; called once per IN transfer before processing its packets.
func (p *Processor) ResetTxFIFOLevelStats() {
	p.txFIFOLevelMax = 0
	p.txFIFOLevelMin = math.MaxUint8
}

// TxFIFOLevelRange returns the (min, max) TX-FIFO level observed since
// the last reset, for the TX rate-match controller (C4).
func (p *Processor) TxFIFOLevelRange() (min, max uint8) {
	return p.txFIFOLevelMin, p.txFIFOLevelMax
}

// CumulativeStatistics returns a snapshot of the running cumulative counters.
func (p *Processor) CumulativeStatistics() CumulativeStatistics {
	return p.cumulative
}

// ProcessPacket parses one IN packet (already split into RxFrame records
// and a trailing RxUSBReport by frame.ParseInPacket) and updates all
// statistics and ring pushes accordingly.
func (p *Processor) ProcessPacket(frames []frame.RxFrame, report frame.RxUSBReport) {
	if report.SOFCount != p.sofCountNext {
		p.cumulative.SOFDiscontinuityCount++
	}
	p.sofCountNext = report.SOFCount + 1

	p.periodic.RxFIFOLevelHistogram[report.FIFORxLevel]++
	p.periodic.TxFIFOLevelHistogram[report.FIFOTxLevel]++
	p.cumulative.RxFIFOUnderflowCount = report.FIFORxUnderflowCount
	p.cumulative.TxFIFOOverflowCount = report.FIFOTxOverflowCount

	if report.FIFOTxLevel < p.txFIFOLevelMin {
		p.txFIFOLevelMin = report.FIFOTxLevel
	}
	if report.FIFOTxLevel > p.txFIFOLevelMax {
		p.txFIFOLevelMax = report.FIFOTxLevel
	}

	for _, rf := range frames {
		p.periodic.FrameCount++
		if p.periodic.FrameCount >= 8000 {
			if p.emitStatistics != nil {
				p.emitStatistics(p.periodic, p.cumulative)
			}
			p.periodic = PeriodicStatistics{}
		}

		if rf.Report.FrameCount != p.frameCountNext {
			p.cumulative.FrameDiscontinuityCount++
		}
		p.frameCountNext = rf.Report.FrameCount + 1

		internal := InternalFrame{
			Frame:      rf.Frame,
			FrameCount: rf.Report.FrameCount,
			MFBits:     rf.Report.MFBits,
		}

		if p.audioRing != nil && !p.audioRing.Push(internal) {
			p.cumulative.RingbufFullDropCount++
		}
		if p.signalingRing != nil {
			p.signalingRing.Push(internal)
		}
	}
}
