// Command tedium-monitor connects to a running tediumd's JSON-lines
// event bus and prints each event to stdout, discovering the daemon via
// mDNS/DNS-SD when no address is given.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brutella/dnssd"

	"github.com/tedium-project/tedium-host/internal/config"
	"github.com/tedium-project/tedium-host/internal/eventbus"
)

// monitorServiceType matches cmd/tediumd's announced DNS-SD type.
const monitorServiceType = "_tedium-events._tcp"

func main() {
	cfg, err := config.ParseMonitorClient(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}
	if cfg.Help {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.Addr
	if addr == "" {
		discovered, err := discoverMonitor(ctx, cfg.Timeout)
		if err != nil {
			fmt.Fprintln(os.Stderr, "tedium-monitor: discovery failed:", err)
			os.Exit(1)
		}
		addr = discovered
	}

	if err := run(ctx, addr); err != nil {
		fmt.Fprintln(os.Stderr, "tedium-monitor:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	dec := json.NewDecoder(bufio.NewReader(conn))
	for {
		var ev eventbus.Event
		if err := dec.Decode(&ev); err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode event: %w", err)
		}
		printEvent(ev)
	}
}

func printEvent(ev eventbus.Event) {
	switch ev.Kind {
	case eventbus.KindInterrupt:
		fmt.Printf("[interrupt] channel=%d %s\n", ev.Interrupt.ChannelIndex, ev.Interrupt.String())
	case eventbus.KindDigit:
		fmt.Printf("[digit] channel=%d timeslot=%d digit=%c\n", ev.Digit.Address.Channel, ev.Digit.Address.Timeslot, ev.Digit.Detection.Digit)
	case eventbus.KindRobbedBitState:
		fmt.Printf("[rbs] channel=%d timeslot=%d abcd=%04b at=%s\n",
			ev.RobbedBitState.Address.Channel, ev.RobbedBitState.Address.Timeslot,
			ev.RobbedBitState.ABCD, ev.RobbedBitState.Timestamp.Format(time.RFC3339))
	case eventbus.KindTxFIFORange:
		fmt.Printf("[tx-fifo] min=%d max=%d\n", ev.TxFIFORange.Min, ev.TxFIFORange.Max)
	case eventbus.KindFramerStatistics:
		fmt.Printf("[stats] frames=%d sof_discontinuities=%d frame_discontinuities=%d\n",
			ev.FramerStatistics.Periodic.FrameCount,
			ev.FramerStatistics.Cumulative.SOFDiscontinuityCount,
			ev.FramerStatistics.Cumulative.FrameDiscontinuityCount)
	default:
		fmt.Printf("[unknown] %+v\n", ev)
	}
}

// discoverMonitor browses for a tediumd instance's announced endpoint
// and returns its host:port.
//
// Named assumption: the retrieval pack's teacher only exercises
// brutella/dnssd's announce side (dnssd.NewResponder/Add), never its
// browse side. dnssd.LookupType(ctx, service, add, remove) is assumed to
// exist with this signature, matching the library's documented public
// API, reporting each discovered dnssd.BrowseEntry via add.
func discoverMonitor(ctx context.Context, timeoutSeconds int) (string, error) {
	found := make(chan string, 1)

	browseCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	err := dnssd.LookupType(browseCtx, monitorServiceType,
		func(e dnssd.BrowseEntry) {
			if len(e.IPs) == 0 {
				return
			}
			select {
			case found <- fmt.Sprintf("%s:%d", e.IPs[0], e.Port):
			default:
			}
		},
		func(e dnssd.BrowseEntry) {},
	)
	if err != nil && browseCtx.Err() == nil {
		return "", err
	}

	select {
	case addr := <-found:
		return addr, nil
	default:
		return "", fmt.Errorf("no tediumd instance discovered within %ds", timeoutSeconds)
	}
}
