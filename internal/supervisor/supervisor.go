// Package supervisor wires the five goroutines of the running daemon
// (transport, signaling, debug, monitor, interrupt) together, propagates
// a fatal error from any one of them into a shared cancellation, and
// best-effort promotes the transport goroutine to real-time scheduling.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/tedium-project/tedium-host/internal/tlog"
)

// Error kinds, per spec.md §7.
var (
	// ErrUSBFatal is device disappearance or a permanent endpoint stall.
	// It is process-fatal: the transport goroutine tears down and the
	// supervisor cancels every other goroutine.
	ErrUSBFatal = errors.New("supervisor: fatal USB transport error")

	// ErrUSBRecoverable is a single transfer failure, short read, or
	// unexpected packet status. Logged and counted; the transfer is
	// resubmitted.
	ErrUSBRecoverable = errors.New("supervisor: recoverable USB transport error")

	// ErrProtocolMalformed is an interrupt buffer length mismatch or an
	// impossible field value. The offending message is dropped.
	ErrProtocolMalformed = errors.New("supervisor: malformed protocol message")

	// ErrQueueFull is an audio or signaling ring at capacity. The newest
	// item is dropped; there is no back-propagation.
	ErrQueueFull = errors.New("supervisor: queue full")

	// ErrRateSlip is a frame-count discontinuity. The pipeline resyncs
	// to the new count.
	ErrRateSlip = errors.New("supervisor: frame count discontinuity")
)

// Role names the five goroutines spec.md §5 describes.
type Role int

const (
	RoleTransport Role = iota
	RoleSignaling
	RoleDebug
	RoleMonitor
	RoleInterrupt
)

func (r Role) String() string {
	switch r {
	case RoleTransport:
		return "transport"
	case RoleSignaling:
		return "signaling"
	case RoleDebug:
		return "debug"
	case RoleMonitor:
		return "monitor"
	case RoleInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// logger is the subset of *tlog.For's return value this package needs,
// narrowed so tests can supply a fake.
type logger interface {
	Info(msg interface{}, kv ...interface{})
	Warn(msg interface{}, kv ...interface{})
	Error(msg interface{}, kv ...interface{})
}

// Supervisor starts and supervises the daemon's goroutines, cancelling
// all of them as soon as any one returns a non-nil error.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	firstErr error

	logger logger
}

// New constructs a Supervisor whose context is cancelled either by
// ctx's own cancellation or by a goroutine reporting a fatal error.
func New(ctx context.Context) *Supervisor {
	childCtx, cancel := context.WithCancel(ctx)
	return &Supervisor{
		ctx:    childCtx,
		cancel: cancel,
		logger: tlog.For("supervisor"),
	}
}

// Context returns the supervisor's context. It is cancelled once any
// goroutine started with Run returns an error, or once Shutdown is
// called.
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Run starts fn as a goroutine under the given role. If fn returns a
// non-nil error, it becomes the Supervisor's result (the first one
// wins) and the shared context is cancelled.
func (s *Supervisor) Run(role Role, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if role == RoleTransport {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			promoteRealtime(s.logger)
		}

		if err := fn(s.ctx); err != nil {
			s.fail(role, err)
		}
	}()
}

func (s *Supervisor) fail(role Role, err error) {
	s.mu.Lock()
	if s.firstErr == nil {
		s.firstErr = fmt.Errorf("%s: %w", role, err)
	}
	s.mu.Unlock()
	s.logger.Error("goroutine exited with error, cancelling supervisor", "role", role.String(), "err", err)
	s.cancel()
}

// Shutdown cancels every goroutine under this Supervisor.
func (s *Supervisor) Shutdown() {
	s.cancel()
}

// Wait blocks until every goroutine started with Run has returned, then
// reports the first error any of them returned (nil if all returned
// cleanly or were cancelled via ctx without reporting one).
func (s *Supervisor) Wait() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

// schedParam mirrors the kernel's struct sched_param for the
// sched_setscheduler(2) syscall, which golang.org/x/sys/unix does not
// wrap directly.
type schedParam struct {
	Priority int32
}

// promoteRealtime asks the OS to schedule the calling thread under
// SCHED_FIFO, falling back to a raised nice value, and finally to doing
// nothing, logging at each downgrade. None of this is guaranteed to
// succeed without CAP_SYS_NICE or root, and the daemon must run
// correctly, only less predictably, without it.
func promoteRealtime(logger logger) {
	param := schedParam{Priority: 50}
	_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, uintptr(unix.SCHED_FIFO), uintptr(unsafe.Pointer(&param)))
	if errno == 0 {
		logger.Info("transport goroutine promoted to SCHED_FIFO")
		return
	}

	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, -20); err != nil {
		logger.Warn("could not elevate transport goroutine scheduling, continuing unprivileged",
			"sched_fifo_errno", errno, "setpriority_err", err)
		return
	}
	logger.Info("SCHED_FIFO unavailable, raised transport goroutine nice priority instead", "sched_fifo_errno", errno)
}
