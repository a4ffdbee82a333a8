package usbtransport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIsoTransfer struct {
	mu        sync.Mutex
	submitted int
	packets   [][]byte
	status    int32
	waitErr   error
	failAfter int
}

func (f *fakeIsoTransfer) Submit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted++
	if f.failAfter > 0 && f.submitted >= f.failAfter {
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (f *fakeIsoTransfer) Wait() error {
	return f.waitErr
}

func (f *fakeIsoTransfer) GetIsoPacketBufferSlices() [][]byte {
	return f.packets
}

func (f *fakeIsoTransfer) GetStatus() int32 {
	return f.status
}

func TestIsoPoolInvokesHandlerAndResubmits(t *testing.T) {
	var mu sync.Mutex
	var calls int

	ft := &fakeIsoTransfer{packets: [][]byte{{1, 2, 3}}}
	p := newIsoPoolFromTransfers([]isoTransfer{ft}, func(packets [][]byte) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, nil, nil)

	go func() {
		time.Sleep(5 * time.Millisecond)
		p.Stop()
	}()

	err := p.Start()
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, calls, 0)
	assert.GreaterOrEqual(t, ft.submitted, calls)
}

func TestIsoPoolReportsRecoverableOnBadStatus(t *testing.T) {
	var recoverable []error
	var mu sync.Mutex

	ft := &fakeIsoTransfer{status: 1}
	p := newIsoPoolFromTransfers([]isoTransfer{ft}, func(packets [][]byte) {
		t.Fatal("handler should not run on bad status")
	}, func(err error) {
		mu.Lock()
		recoverable = append(recoverable, err)
		mu.Unlock()
	}, nil)

	go func() {
		time.Sleep(5 * time.Millisecond)
		p.Stop()
	}()
	require.NoError(t, p.Start())

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, recoverable)
}

func TestIsoPoolReportsRecoverableOnWaitError(t *testing.T) {
	var recoverable []error
	var mu sync.Mutex

	ft := &fakeIsoTransfer{waitErr: errors.New("boom")}
	p := newIsoPoolFromTransfers([]isoTransfer{ft}, func(packets [][]byte) {
		t.Fatal("handler should not run when wait fails")
	}, func(err error) {
		mu.Lock()
		recoverable = append(recoverable, err)
		mu.Unlock()
	}, nil)

	go func() {
		time.Sleep(5 * time.Millisecond)
		p.Stop()
	}()
	require.NoError(t, p.Start())

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, recoverable)
}
