package main

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"

	"github.com/tedium-project/tedium-host/internal/config"
	"github.com/tedium-project/tedium-host/internal/eventbus"
	"github.com/tedium-project/tedium-host/internal/tlog"
)

// monitorServiceType is the DNS-SD service type tedium-monitor clients
// browse for, mirroring the teacher daemon's "_kiss-tnc._tcp" pattern.
const monitorServiceType = "_tedium-events._tcp"

// clientQueueDepth bounds how many events a slow monitor client can lag
// behind by before its oldest queued event is dropped.
const clientQueueDepth = 256

// monitorHub fans the single event ring out to every connected
// JSON-lines client.
type monitorHub struct {
	mu      sync.Mutex
	clients map[chan eventbus.Event]struct{}
}

func newMonitorHub() *monitorHub {
	return &monitorHub{clients: make(map[chan eventbus.Event]struct{})}
}

func (h *monitorHub) register() chan eventbus.Event {
	ch := make(chan eventbus.Event, clientQueueDepth)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *monitorHub) unregister(ch chan eventbus.Event) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *monitorHub) broadcast(ev eventbus.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			// Client is lagging; drop the oldest queued event to make room
			// rather than block the drain loop.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// drain pops every event off the ring and fans it out until ctx is
// cancelled. Exactly one goroutine may call this, matching the ring's
// single-consumer contract.
func (h *monitorHub) drain(ctx context.Context, events *eventbus.Ring[eventbus.Event]) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		ev, ok := events.Pop()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		h.broadcast(ev)
	}
}

// serveMonitor listens on cfg.MonitorAddr, streams every event as a
// JSON line to each connected client, and optionally announces the
// endpoint over mDNS/DNS-SD.
func serveMonitor(ctx context.Context, cfg config.Config, events *eventbus.Ring[eventbus.Event]) error {
	logger := tlog.For("tedium-monitor")

	ln, err := net.Listen("tcp", cfg.MonitorAddr)
	if err != nil {
		return err
	}

	hub := newMonitorHub()
	go hub.drain(ctx, events)

	if cfg.AnnounceMDNS {
		go announceMDNS(ctx, cfg, ln, logger)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go serveMonitorClient(ctx, conn, hub, logger)
	}
}

func serveMonitorClient(ctx context.Context, conn net.Conn, hub *monitorHub, logger *log.Logger) {
	defer conn.Close()
	ch := hub.register()
	defer hub.unregister(ch)

	enc := json.NewEncoder(conn)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if err := enc.Encode(ev); err != nil {
				logger.Warn("monitor client write failed, disconnecting", "remote", conn.RemoteAddr(), "err", err)
				return
			}
		}
	}
}

// announceMDNS mirrors the teacher daemon's dns_sd.go: build a
// dnssd.Config/Service/Responder and respond on the network until ctx
// is cancelled.
func announceMDNS(ctx context.Context, cfg config.Config, ln net.Listener, logger *log.Logger) {
	port := listenerPort(ln)
	if port == 0 {
		logger.Warn("could not determine monitor listen port, skipping mDNS announcement")
		return
	}

	svc, err := dnssd.NewService(dnssd.Config{
		Name: "tedium",
		Type: monitorServiceType,
		Port: port,
	})
	if err != nil {
		logger.Warn("mDNS: failed to create service", "err", err)
		return
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		logger.Warn("mDNS: failed to create responder", "err", err)
		return
	}
	if _, err := responder.Add(svc); err != nil {
		logger.Warn("mDNS: failed to add service", "err", err)
		return
	}

	logger.Info("mDNS: announcing tedium-events endpoint", "port", port)
	if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
		logger.Warn("mDNS: responder error", "err", err)
	}
}

func listenerPort(ln net.Listener) int {
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
