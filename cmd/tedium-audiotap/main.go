// Command tedium-audiotap is a bench diagnostic: it opens the adapter,
// taps one timeslot, and plays it out the host soundcard via PortAudio
// (or, with --capture, patches the host microphone into that timeslot
// instead), to let a bench tester listen to or inject into a single
// channel without a softphone or a real PBX on the other end.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
	usb "github.com/kevmo314/go-usb"

	"github.com/tedium-project/tedium-host/internal/config"
	"github.com/tedium-project/tedium-host/internal/device"
	"github.com/tedium-project/tedium-host/internal/eventbus"
	"github.com/tedium-project/tedium-host/internal/frame"
	"github.com/tedium-project/tedium-host/internal/hotplug"
	"github.com/tedium-project/tedium-host/internal/rxproc"
	"github.com/tedium-project/tedium-host/internal/tlog"
	"github.com/tedium-project/tedium-host/internal/usbtransport"
)

// sampleRingCapacity bounds the SPSC ring of received frames feeding
// the PortAudio playback callback and the queue of captured samples;
// a quarter of it is the PortAudio buffer size.
const sampleRingCapacity = 2048

func main() {
	cfg, err := config.ParseAudiotap(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}
	if cfg.Help {
		return
	}

	logger := tlog.For("tedium-audiotap")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev, err := openAdapter(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open adapter", "err", err)
		os.Exit(1)
	}

	regs := usbtransport.NewRegisterAccess(dev)
	if err := regs.FramerInterfaceControl(true); err != nil {
		logger.Error("failed to enable framer interface", "err", err)
		os.Exit(1)
	}
	defer regs.FramerInterfaceControl(false)

	if err := portaudio.Initialize(); err != nil {
		logger.Error("failed to initialize PortAudio", "err", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	addr := frame.NewTimeslotAddress(cfg.Channel, cfg.Timeslot)
	tap := newTap(dev, addr, logger)

	if cfg.CaptureMic {
		err = tap.runCapture(ctx)
	} else {
		err = tap.runPlayback(ctx)
	}
	if err != nil {
		logger.Error("audiotap exiting", "err", err)
		os.Exit(1)
	}
}

func openAdapter(ctx context.Context, cfg config.AudiotapConfig, logger *log.Logger) (*usb.DeviceHandle, error) {
	found := make(chan string, 1)
	w := hotplug.NewWatcher(cfg.VendorID, cfg.ProductID, func(ev hotplug.Event) {
		if ev.Arrived {
			select {
			case found <- ev.Devnode:
			default:
			}
		}
	})
	if err := w.ScanExisting(); err != nil {
		return nil, err
	}

	var devnode string
	select {
	case devnode = <-found:
	default:
		logger.Info("adapter not present, waiting for it to be plugged in")
		watchErr := make(chan error, 1)
		go func() { watchErr <- w.Run(ctx) }()
		select {
		case devnode = <-found:
		case err := <-watchErr:
			return nil, err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return usbtransport.OpenAdapter(devnode)
}

// tap extracts/injects one timeslot's samples from/to the adapter's
// isochronous frame stream.
type tap struct {
	dev    *usb.DeviceHandle
	addr   frame.TimeslotAddress
	logger *log.Logger

	rxProcessor *rxproc.Processor
	audioRing   *eventbus.Ring[rxproc.InternalFrame]

	mu       sync.Mutex
	outQueue []float32
}

func newTap(dev *usb.DeviceHandle, addr frame.TimeslotAddress, logger *log.Logger) *tap {
	t := &tap{
		dev:       dev,
		addr:      addr,
		logger:    logger,
		audioRing: eventbus.NewRing[rxproc.InternalFrame](sampleRingCapacity),
	}
	t.rxProcessor = rxproc.NewProcessor(t.audioRing, nil, nil)
	return t
}

// runPlayback streams the tapped timeslot's samples to the default
// output device until ctx is cancelled.
func (t *tap) runPlayback(ctx context.Context) error {
	poolIn, err := usbtransport.NewIsoPool(t.dev, device.EndpointFrameStreamIn, t.handleInForPlayback, t.onRecoverable, t.onFatal)
	if err != nil {
		return err
	}

	callback := func(out []float32) {
		for i := range out {
			out[i] = t.nextOutputSample()
		}
	}

	stream, err := portaudio.OpenDefaultStream(0, 1, 8000, sampleRingCapacity/4, callback)
	if err != nil {
		return fmt.Errorf("tedium-audiotap: open output stream: %w", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return fmt.Errorf("tedium-audiotap: start output stream: %w", err)
	}
	defer stream.Stop()

	return runPoolUntilCancelled(ctx, poolIn)
}

// runCapture patches host microphone input into the tapped timeslot's
// OUT-direction slot until ctx is cancelled.
func (t *tap) runCapture(ctx context.Context) error {
	poolOut, err := usbtransport.NewIsoPool(t.dev, device.EndpointFrameStreamOut, t.handleOutForCapture, t.onRecoverable, t.onFatal)
	if err != nil {
		return err
	}

	callback := func(in []float32) {
		t.mu.Lock()
		for _, s := range in {
			t.outQueue = append(t.outQueue, s)
		}
		if len(t.outQueue) > sampleRingCapacity {
			t.outQueue = t.outQueue[len(t.outQueue)-sampleRingCapacity:]
		}
		t.mu.Unlock()
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, 8000, sampleRingCapacity/4, callback)
	if err != nil {
		return fmt.Errorf("tedium-audiotap: open input stream: %w", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return fmt.Errorf("tedium-audiotap: start input stream: %w", err)
	}
	defer stream.Stop()

	return runPoolUntilCancelled(ctx, poolOut)
}

func (t *tap) handleInForPlayback(packets [][]byte) {
	for _, pkt := range packets {
		frames, report, err := frame.ParseInPacket(pkt)
		if err != nil {
			t.logger.Warn("dropping malformed IN packet", "err", err)
			continue
		}
		t.rxProcessor.ProcessPacket(frames, report)
	}
}

func (t *tap) nextOutputSample() float32 {
	f, ok := t.audioRing.Pop()
	if !ok {
		return 0
	}
	return float32(frame.DecodeToFloat(f.Frame.At(t.addr)))
}

func (t *tap) handleOutForCapture(packets [][]byte) {
	for _, pkt := range packets {
		f := frame.IdleFrame()
		if sample, ok := t.popOutputSample(); ok {
			f.Set(t.addr, frame.EncodeFromFloat(sample))
		}
		tx := frame.TxFrame{Frame: f}
		frame.BuildOutPacket(pkt, frame.TxUSBReport{}, []frame.TxFrame{tx})
	}
}

func (t *tap) popOutputSample() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.outQueue) == 0 {
		return 0, false
	}
	s := t.outQueue[0]
	t.outQueue = t.outQueue[1:]
	return float64(s), true
}

func (t *tap) onRecoverable(err error) {
	t.logger.Warn("recoverable isochronous transport error", "err", err)
}

func (t *tap) onFatal(err error) {
	t.logger.Warn("fatal isochronous transport error", "err", err)
}

func runPoolUntilCancelled(ctx context.Context, pool *usbtransport.IsoPool) error {
	done := make(chan error, 1)
	go func() { done <- pool.Start() }()

	select {
	case <-ctx.Done():
		pool.Stop()
		<-done
		return nil
	case err := <-done:
		return err
	}
}
