package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tedium-project/tedium-host/internal/eventbus"
)

func TestMonitorHubBroadcastsToRegisteredClients(t *testing.T) {
	hub := newMonitorHub()
	a := hub.register()
	b := hub.register()

	ev := eventbus.NewTxFIFORangeEvent(1, 2)
	hub.broadcast(ev)

	select {
	case got := <-a:
		assert.Equal(t, ev, got)
	default:
		t.Fatal("client a did not receive broadcast event")
	}
	select {
	case got := <-b:
		assert.Equal(t, ev, got)
	default:
		t.Fatal("client b did not receive broadcast event")
	}
}

func TestMonitorHubUnregisterStopsDelivery(t *testing.T) {
	hub := newMonitorHub()
	ch := hub.register()
	hub.unregister(ch)

	hub.broadcast(eventbus.NewTxFIFORangeEvent(1, 2))

	select {
	case <-ch:
		t.Fatal("unregistered client should not receive events")
	default:
	}
}

func TestMonitorHubDropsOldestWhenClientLags(t *testing.T) {
	hub := newMonitorHub()
	ch := hub.register()

	for i := 0; i < clientQueueDepth+10; i++ {
		hub.broadcast(eventbus.NewTxFIFORangeEvent(uint8(i), uint8(i)))
	}

	assert.LessOrEqual(t, len(ch), clientQueueDepth)
}

func TestListenerPortParsesRealListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := listenerPort(ln)
	assert.Greater(t, port, 0)
}

func TestMonitorDrainStopsOnContextCancel(t *testing.T) {
	hub := newMonitorHub()
	ring := eventbus.NewRing[eventbus.Event](8)
	ring.Push(eventbus.NewTxFIFORangeEvent(1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.drain(ctx, ring)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drain did not stop after context cancellation")
	}
}
