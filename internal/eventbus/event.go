package eventbus

import (
	"time"

	"github.com/tedium-project/tedium-host/internal/frame"
	"github.com/tedium-project/tedium-host/internal/interrupt"
	"github.com/tedium-project/tedium-host/internal/rxproc"
	"github.com/tedium-project/tedium-host/internal/signaling"
)

// Kind tags which field of an Event is populated.
type Kind int

const (
	KindInterrupt Kind = iota
	KindDigit
	KindRobbedBitState
	KindTxFIFORange
	KindFramerStatistics
)

func (k Kind) String() string {
	switch k {
	case KindInterrupt:
		return "Interrupt"
	case KindDigit:
		return "Digit"
	case KindRobbedBitState:
		return "RobbedBitState"
	case KindTxFIFORange:
		return "TxFIFORange"
	case KindFramerStatistics:
		return "FramerStatistics"
	default:
		return "Unknown"
	}
}

// DigitEvent is a debounced DTMF digit-start detection on one timeslot.
type DigitEvent struct {
	Address   frame.TimeslotAddress
	Detection signaling.DetectionEvent
}

// RobbedBitStateEvent is an accepted robbed-bit signaling change on one
// timeslot.
type RobbedBitStateEvent struct {
	Timestamp time.Time
	Address   frame.TimeslotAddress
	ABCD      uint8
}

// TxFIFORangeEvent is the (min, max) TX-FIFO level observed across the
// last IN transfer, used to drive the TX rate-match controller and
// surfaced here for observability.
type TxFIFORangeEvent struct {
	Min, Max uint8
}

// FramerStatisticsEvent is the periodic statistics snapshot emitted
// every 8000 accepted frames, paired with the cumulative counters.
type FramerStatisticsEvent struct {
	Periodic   rxproc.PeriodicStatistics
	Cumulative rxproc.CumulativeStatistics
}

// Event is the core's single typed output: {Interrupt, Digit,
// RobbedBitState, TxFIFORange, FramerStatistics}. Exactly one field is
// meaningful per Kind.
type Event struct {
	Kind Kind

	Interrupt        interrupt.Status
	Digit            DigitEvent
	RobbedBitState   RobbedBitStateEvent
	TxFIFORange      TxFIFORangeEvent
	FramerStatistics FramerStatisticsEvent
}

// NewInterruptEvent wraps a parsed interrupt status.
func NewInterruptEvent(status interrupt.Status) Event {
	return Event{Kind: KindInterrupt, Interrupt: status}
}

// NewDigitEvent wraps a debounced DTMF digit detection.
func NewDigitEvent(address frame.TimeslotAddress, detection signaling.DetectionEvent) Event {
	return Event{Kind: KindDigit, Digit: DigitEvent{Address: address, Detection: detection}}
}

// NewRobbedBitStateEvent wraps an accepted RBS state change.
func NewRobbedBitStateEvent(timestamp time.Time, address frame.TimeslotAddress, abcd uint8) Event {
	return Event{Kind: KindRobbedBitState, RobbedBitState: RobbedBitStateEvent{
		Timestamp: timestamp,
		Address:   address,
		ABCD:      abcd,
	}}
}

// NewTxFIFORangeEvent wraps a TX-FIFO level range observation.
func NewTxFIFORangeEvent(min, max uint8) Event {
	return Event{Kind: KindTxFIFORange, TxFIFORange: TxFIFORangeEvent{Min: min, Max: max}}
}

// NewFramerStatisticsEvent wraps a periodic/cumulative statistics snapshot.
func NewFramerStatisticsEvent(periodic rxproc.PeriodicStatistics, cumulative rxproc.CumulativeStatistics) Event {
	return Event{Kind: KindFramerStatistics, FramerStatistics: FramerStatisticsEvent{
		Periodic:   periodic,
		Cumulative: cumulative,
	}}
}
