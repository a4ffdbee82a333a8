// Command tediumd is the Tedium T1/ESF host control plane daemon: it
// finds the adapter over USB, keeps its isochronous transfers flowing,
// runs the receive/audio/signaling pipeline, and exposes the resulting
// event stream to cmd/tedium-monitor.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/tedium-project/tedium-host/internal/config"
	"github.com/tedium-project/tedium-host/internal/eventbus"
	"github.com/tedium-project/tedium-host/internal/hotplug"
	"github.com/tedium-project/tedium-host/internal/supervisor"
	"github.com/tedium-project/tedium-host/internal/tlog"
	"github.com/tedium-project/tedium-host/internal/usbtransport"
)

// eventRingCapacity bounds the SPSC ring feeding the monitor endpoint.
// Rounded to the next power of two by eventbus.NewRing.
const eventRingCapacity = 1024

func main() {
	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}
	if cfg.Help {
		return
	}

	tlog.SetLevel(tlog.LevelForVerbosity(cfg.DebugVerbosity))
	logger := tlog.For("tediumd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	devnode, err := waitForAdapter(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to locate adapter", "err", err)
		os.Exit(1)
	}

	dev, err := usbtransport.OpenAdapter(devnode)
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

	events := eventbus.NewRing[eventbus.Event](eventRingCapacity)
	sess, err := newTransportSession(dev, events, cfg, logger)
	if err != nil {
		logger.Error("failed to build transport session", "err", err)
		os.Exit(1)
	}

	super := supervisor.New(ctx)

	super.Run(supervisor.RoleTransport, sess.runTransport)
	super.Run(supervisor.RoleSignaling, sess.runSignaling)
	super.Run(supervisor.RoleInterrupt, sess.runInterrupt)
	super.Run(supervisor.RoleDebug, sess.runStatsLog(cfg.StatsLogPath))
	super.Run(supervisor.RoleMonitor, runMonitorEndpoint(cfg, events))

	if err := super.Wait(); err != nil {
		logger.Error("daemon exiting", "err", err)
		os.Exit(1)
	}
}

// waitForAdapter scans for an already-attached adapter, then falls back
// to watching udev for one to arrive.
func waitForAdapter(ctx context.Context, cfg config.Config, logger *log.Logger) (string, error) {
	found := make(chan string, 1)
	w := hotplug.NewWatcher(cfg.VendorID, cfg.ProductID, func(ev hotplug.Event) {
		if !ev.Arrived {
			return
		}
		select {
		case found <- ev.Devnode:
		default:
		}
	})

	if err := w.ScanExisting(); err != nil {
		return "", fmt.Errorf("scan existing devices: %w", err)
	}

	select {
	case devnode := <-found:
		return devnode, nil
	default:
	}

	logger.Info("adapter not present, waiting for it to be plugged in")
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Run(watchCtx) }()

	select {
	case devnode := <-found:
		return devnode, nil
	case err := <-watchErr:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// runMonitorEndpoint returns a supervisor-compatible function serving
// the JSON-lines event endpoint, optionally announced over mDNS.
func runMonitorEndpoint(cfg config.Config, events *eventbus.Ring[eventbus.Event]) func(context.Context) error {
	return func(ctx context.Context) error {
		return serveMonitor(ctx, cfg, events)
	}
}
