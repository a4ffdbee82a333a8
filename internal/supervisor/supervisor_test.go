package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogger struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeLogger) Info(msg interface{}, kv ...interface{})  { f.record(msg) }
func (f *fakeLogger) Warn(msg interface{}, kv ...interface{})  { f.record(msg) }
func (f *fakeLogger) Error(msg interface{}, kv ...interface{}) { f.record(msg) }

func (f *fakeLogger) record(msg interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, msg.(string))
}

func newTestSupervisor() *Supervisor {
	s := New(context.Background())
	s.logger = &fakeLogger{}
	return s
}

func TestWaitReturnsNilWhenAllGoroutinesSucceed(t *testing.T) {
	s := newTestSupervisor()
	s.Run(RoleDebug, func(ctx context.Context) error { return nil })
	s.Run(RoleMonitor, func(ctx context.Context) error { return nil })
	assert.NoError(t, s.Wait())
}

func TestFailingGoroutineCancelsContextAndIsReportedByWait(t *testing.T) {
	s := newTestSupervisor()
	boom := errors.New("boom")

	s.Run(RoleInterrupt, func(ctx context.Context) error { return boom })
	s.Run(RoleSignaling, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	err := s.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestFirstErrorWins(t *testing.T) {
	s := newTestSupervisor()
	first := errors.New("first")
	second := errors.New("second")

	s.Run(RoleDebug, func(ctx context.Context) error { return first })
	s.Run(RoleMonitor, func(ctx context.Context) error {
		time.Sleep(5 * time.Millisecond)
		return second
	})

	err := s.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.NotErrorIs(t, err, second)
}

func TestShutdownCancelsContext(t *testing.T) {
	s := newTestSupervisor()
	done := make(chan struct{})
	s.Run(RoleDebug, func(ctx context.Context) error {
		<-ctx.Done()
		close(done)
		return nil
	})

	s.Shutdown()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}
	assert.NoError(t, s.Wait())
}

func TestRoleStringNames(t *testing.T) {
	assert.Equal(t, "transport", RoleTransport.String())
	assert.Equal(t, "signaling", RoleSignaling.String())
	assert.Equal(t, "debug", RoleDebug.String())
	assert.Equal(t, "monitor", RoleMonitor.String())
	assert.Equal(t, "interrupt", RoleInterrupt.String())
}
