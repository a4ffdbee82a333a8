package main

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tedium-project/tedium-host/internal/eventbus"
)

func TestRunDecodesEventsUntilConnectionCloses(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		enc := json.NewEncoder(conn)
		_ = enc.Encode(eventbus.NewTxFIFORangeEvent(3, 9))
		_ = enc.Encode(eventbus.NewFramerStatisticsEvent(eventbus.FramerStatisticsEvent{}.Periodic, eventbus.FramerStatisticsEvent{}.Cumulative))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = run(ctx, ln.Addr().String())
	require.NoError(t, err)
	<-serverDone
}
