package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	usb "github.com/kevmo314/go-usb"

	"github.com/tedium-project/tedium-host/internal/audio"
	"github.com/tedium-project/tedium-host/internal/config"
	"github.com/tedium-project/tedium-host/internal/device"
	"github.com/tedium-project/tedium-host/internal/eventbus"
	"github.com/tedium-project/tedium-host/internal/frame"
	"github.com/tedium-project/tedium-host/internal/interrupt"
	"github.com/tedium-project/tedium-host/internal/rxproc"
	"github.com/tedium-project/tedium-host/internal/signaling"
	"github.com/tedium-project/tedium-host/internal/tlog"
	"github.com/tedium-project/tedium-host/internal/txrate"
	"github.com/tedium-project/tedium-host/internal/usbtransport"
)

// transportSession wires the isochronous transport pools to the
// receive/audio/signaling pipeline. One IN completion parses its
// packets, runs them through rxproc, then immediately runs every
// resulting frame through the audio processor and appends the result
// to pendingOut; the following OUT completion packs pendingOut's head
// into its packet buffers. This is a deliberate simplification of the
// fully double-buffered pipeline: everything happens synchronously on
// the single locked transport thread, so there is no separate
// audio-consumer goroutine to race with.
type transportSession struct {
	dev    *usb.DeviceHandle
	cfg    config.Config
	logger *log.Logger
	events *eventbus.Ring[eventbus.Event]

	rxProcessor   *rxproc.Processor
	audioProc     *audio.Processor
	signalingProc *signaling.Processor
	txCtl         *txrate.Controller

	audioRing     *eventbus.Ring[rxproc.InternalFrame]
	signalingRing *eventbus.Ring[rxproc.InternalFrame]
	statsRing     *eventbus.Ring[eventbus.Event]

	mu         sync.Mutex
	pendingOut []frame.TxFrame
	lastRange  txrate.Range

	poolIn         *usbtransport.IsoPool
	poolOut        *usbtransport.IsoPool
	poolInterrupt  *usbtransport.InterruptPool
	fatalIso       chan error
	fatalInterrupt chan error
}

// Internal ring depths; eventbus.NewRing rounds each up to a power of
// two. internalRingCapacity sizes the statistics ring.
const (
	audioRingCapacity     = 40
	signalingRingCapacity = 200
	internalRingCapacity  = 64
)

func newTransportSession(dev *usb.DeviceHandle, events *eventbus.Ring[eventbus.Event], cfg config.Config, logger *log.Logger) (*transportSession, error) {
	s := &transportSession{
		dev:            dev,
		cfg:            cfg,
		logger:         logger,
		events:         events,
		audioRing:      eventbus.NewRing[rxproc.InternalFrame](audioRingCapacity),
		signalingRing:  eventbus.NewRing[rxproc.InternalFrame](signalingRingCapacity),
		statsRing:      eventbus.NewRing[eventbus.Event](internalRingCapacity),
		txCtl:          txrate.NewController(),
		fatalIso:       make(chan error, 2),
		fatalInterrupt: make(chan error, 1),
	}

	s.rxProcessor = rxproc.NewProcessor(s.audioRing, s.signalingRing, s.emitStatistics)
	s.audioProc = audio.NewProcessor(nil)
	s.signalingProc = signaling.NewProcessor(s.onRobbedBitState, s.onDigit, s.onFrameDrop)

	poolIn, err := usbtransport.NewIsoPool(dev, device.EndpointFrameStreamIn, s.handleIn, s.onIsoRecoverable, s.onIsoFatal)
	if err != nil {
		return nil, fmt.Errorf("tediumd: allocate IN pool: %w", err)
	}
	poolOut, err := usbtransport.NewIsoPool(dev, device.EndpointFrameStreamOut, s.handleOut, s.onIsoRecoverable, s.onIsoFatal)
	if err != nil {
		return nil, fmt.Errorf("tediumd: allocate OUT pool: %w", err)
	}
	poolInterrupt, err := usbtransport.NewInterruptPool(dev, device.EndpointInterruptIn, s.handleInterrupt, s.onInterruptRecoverable, s.onInterruptFatal)
	if err != nil {
		return nil, fmt.Errorf("tediumd: allocate interrupt pool: %w", err)
	}

	s.poolIn = poolIn
	s.poolOut = poolOut
	s.poolInterrupt = poolInterrupt
	return s, nil
}

// emitStatistics is rxproc's StatisticsSink: it fans the periodic
// snapshot out to both the monitor event bus and the stats-log ring.
func (s *transportSession) emitStatistics(periodic rxproc.PeriodicStatistics, cumulative rxproc.CumulativeStatistics) {
	ev := eventbus.NewFramerStatisticsEvent(periodic, cumulative)
	s.events.Push(ev)
	s.statsRing.Push(ev)
}

func (s *transportSession) onRobbedBitState(change signaling.Change, address frame.TimeslotAddress) {
	s.events.Push(eventbus.NewRobbedBitStateEvent(time.Now(), address, change.ABCD))
}

func (s *transportSession) onDigit(address frame.TimeslotAddress, event signaling.DetectionEvent) {
	s.events.Push(eventbus.NewDigitEvent(address, event))
}

func (s *transportSession) onFrameDrop(droppedCount uint32) {
	s.logger.Warn("signaling pipeline detected a frame count discontinuity", "dropped", droppedCount)
}

func (s *transportSession) onIsoRecoverable(err error) {
	s.logger.Warn("recoverable isochronous transport error", "err", err)
}

func (s *transportSession) onIsoFatal(err error) {
	select {
	case s.fatalIso <- err:
	default:
	}
}

func (s *transportSession) onInterruptRecoverable(err error) {
	s.logger.Warn("recoverable interrupt transport error", "err", err)
}

func (s *transportSession) onInterruptFatal(err error) {
	select {
	case s.fatalInterrupt <- err:
	default:
	}
}

// handleIn is the IN pool's PacketHandler: parse every packet in the
// transfer, run it through rxproc (which fans frames into the audio and
// signaling rings), then drain the audio ring synchronously so the next
// OUT completion has fresh frames to pack.
func (s *transportSession) handleIn(packets [][]byte) {
	s.rxProcessor.ResetTxFIFOLevelStats()

	for _, pkt := range packets {
		frames, report, err := frame.ParseInPacket(pkt)
		if err != nil {
			s.logger.Warn("dropping malformed IN packet", "err", err)
			continue
		}
		s.rxProcessor.ProcessPacket(frames, report)
	}

	for {
		f, ok := s.audioRing.Pop()
		if !ok {
			break
		}
		out := s.audioProc.ProcessFrame(f.Frame)
		tx := frame.TxFrame{Report: frame.TxFrameReport{FrameCount: f.FrameCount}, Frame: out}
		s.mu.Lock()
		s.pendingOut = append(s.pendingOut, tx)
		s.mu.Unlock()
	}

	min, max := s.rxProcessor.TxFIFOLevelRange()
	r := txrate.NewRange(min, max)
	s.mu.Lock()
	s.lastRange = r
	s.mu.Unlock()
	s.events.Push(eventbus.NewTxFIFORangeEvent(min, max))
}

// handleOut is the OUT pool's PacketHandler: choose each packet's frame
// count from the rate-match controller's decision for the TX-FIFO range
// observed over the prior IN transfer, then pack that many frames from
// pendingOut's head into the packet buffer.
func (s *transportSession) handleOut(packets [][]byte) {
	s.mu.Lock()
	r := s.lastRange
	s.mu.Unlock()

	if s.txCtl.ShouldDropExtraFrame(r) {
		s.takePendingOut(1)
	}

	for i, pkt := range packets {
		n := s.txCtl.RemainingPacketFrames()
		if i == 0 {
			n = s.txCtl.FirstPacketFrames(r)
		}
		frames := s.takePendingOut(n)

		var report frame.TxUSBReport
		if len(frames) > 0 {
			report.FrameCount = frames[0].Report.FrameCount
		}
		frame.BuildOutPacket(pkt, report, frames)
	}
}

func (s *transportSession) takePendingOut(n int) []frame.TxFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.pendingOut) {
		n = len(s.pendingOut)
	}
	frames := append([]frame.TxFrame(nil), s.pendingOut[:n]...)
	s.pendingOut = s.pendingOut[n:]
	return frames
}

func (s *transportSession) handleInterrupt(data []byte) {
	status, err := interrupt.FromBytes(data)
	if err != nil {
		s.logger.Warn("dropping malformed interrupt message", "err", err)
		return
	}
	s.events.Push(eventbus.NewInterruptEvent(status))
}

// runTransport drives the IN and OUT isochronous pools until ctx is
// cancelled or either pool reports a fatal error.
func (s *transportSession) runTransport(ctx context.Context) error {
	doneIn := make(chan error, 1)
	doneOut := make(chan error, 1)
	go func() { doneIn <- s.poolIn.Start() }()
	go func() { doneOut <- s.poolOut.Start() }()

	stopBoth := func() {
		s.poolIn.Stop()
		s.poolOut.Stop()
		<-doneIn
		<-doneOut
	}

	select {
	case <-ctx.Done():
		stopBoth()
		return nil
	case err := <-s.fatalIso:
		stopBoth()
		return err
	case err := <-doneIn:
		s.poolOut.Stop()
		<-doneOut
		return err
	case err := <-doneOut:
		s.poolIn.Stop()
		<-doneIn
		return err
	}
}

// runInterrupt drives the interrupt pool until ctx is cancelled or it
// reports a fatal error.
func (s *transportSession) runInterrupt(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.poolInterrupt.Start() }()

	select {
	case <-ctx.Done():
		s.poolInterrupt.Stop()
		<-done
		return nil
	case err := <-s.fatalInterrupt:
		s.poolInterrupt.Stop()
		<-done
		return err
	case err := <-done:
		return err
	}
}

// runSignaling drains the signaling ring and runs every frame through
// the RBS/DTMF processor until ctx is cancelled.
func (s *transportSession) runSignaling(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		rf, ok := s.signalingRing.Pop()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		s.signalingProc.ProcessFrame(signaling.InternalFrame{
			Frame:      rf.Frame,
			FrameCount: rf.FrameCount,
			MFBits:     rf.MFBits,
		})
	}
}

// runStatsLog returns the debug goroutine: it drains the stats ring and
// appends each snapshot to a daily-rotating file under dir, named per
// tlog.StatsFileName. An empty dir disables the file and the goroutine
// just drains the ring so it never fills.
func (s *transportSession) runStatsLog(dir string) func(context.Context) error {
	return func(ctx context.Context) error {
		var currentName string
		var f *os.File
		defer func() {
			if f != nil {
				f.Close()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			ev, ok := s.statsRing.Pop()
			if !ok {
				time.Sleep(time.Millisecond)
				continue
			}
			if dir == "" {
				continue
			}

			name, err := tlog.StatsFileName(time.Now())
			if err != nil {
				s.logger.Warn("failed to compute stats log name", "err", err)
				continue
			}
			if name != currentName {
				if f != nil {
					f.Close()
				}
				var openErr error
				f, openErr = os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
				if openErr != nil {
					s.logger.Warn("failed to open stats log", "err", openErr)
					f = nil
					continue
				}
				currentName = name
			}

			line := fmt.Sprintf("frames=%d sof_discontinuities=%d frame_discontinuities=%d ringbuf_drops=%d rx_underflow=%d tx_overflow=%d\n",
				ev.FramerStatistics.Periodic.FrameCount,
				ev.FramerStatistics.Cumulative.SOFDiscontinuityCount,
				ev.FramerStatistics.Cumulative.FrameDiscontinuityCount,
				ev.FramerStatistics.Cumulative.RingbufFullDropCount,
				ev.FramerStatistics.Cumulative.RxFIFOUnderflowCount,
				ev.FramerStatistics.Cumulative.TxFIFOOverflowCount,
			)
			if _, err := f.WriteString(line); err != nil {
				s.logger.Warn("failed to write stats log line", "err", err)
			}
		}
	}
}
