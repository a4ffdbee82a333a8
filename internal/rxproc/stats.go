// Package rxproc implements the receive packet processor (parsing each
// IN isochronous packet's frames and USB report, tracking sequence
// discontinuities, and fanning frames out to the audio and signaling
// rings) and the statistics it accumulates along the way.
package rxproc

// RxFIFODepth and TxFIFODepth size the periodic level histograms; index
// i counts the number of packets observed with that FIFO level.
const (
	RxFIFODepth = 8
	TxFIFODepth = 32
)

// PeriodicStatistics is reset every 8000 accepted frames (nominally
// once per second at 8 kHz).
type PeriodicStatistics struct {
	RxFIFOLevelHistogram [RxFIFODepth]uint32
	TxFIFOLevelHistogram [TxFIFODepth]uint32
	FrameCount           uint32
}

// CumulativeStatistics counts monotonically for the life of the process.
type CumulativeStatistics struct {
	RxFIFOUnderflowCount    uint16
	TxFIFOOverflowCount     uint16
	SOFDiscontinuityCount   uint32
	FrameDiscontinuityCount uint32
	RingbufFullDropCount    uint32
}
