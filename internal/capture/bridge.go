package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type bridgeState int

const (
	bridgeAwaiting bridgeState = iota
	bridgeDelivered
	bridgeFailed
)

func (s bridgeState) String() string {
	switch s {
	case bridgeAwaiting:
		return "awaiting"
	case bridgeDelivered:
		return "delivered"
	case bridgeFailed:
		return "failed"
	default:
		return fmt.Sprintf("bridgeState(%d)", int(s))
	}
}

type captureResult struct {
	bitmap *Bitmap
	err    error
}

// frameBridge turns frame-arrival notifications for one session into a single
// result. onFrameArrived is the only writer of the result and wait is the
// only reader; both are bound to one pool/session pair for one capture call.
type frameBridge struct {
	pool    FramePool
	session Session
	convert func(Frame) (*Bitmap, error)
	log     *slog.Logger

	mu      sync.Mutex
	state   bridgeState
	stopped bool

	// Capacity 1: the single resolution never blocks the notifying thread.
	result chan captureResult
}

func newFrameBridge(pool FramePool, session Session, convert func(Frame) (*Bitmap, error), logger *slog.Logger) *frameBridge {
	return &frameBridge{
		pool:    pool,
		session: session,
		convert: convert,
		log:     logger,
		result:  make(chan captureResult, 1),
	}
}

// onFrameArrived is registered as the pool's frame-arrival listener. The
// session is stopped before conversion starts, so a conversion failure never
// leaves it running. Notifications after the result is settled are ignored.
func (b *frameBridge) onFrameArrived() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != bridgeAwaiting {
		b.log.Debug("frame notification after completion ignored", "state", b.state.String())
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.stopLocked()
			b.resolveLocked(nil, fmt.Errorf("%w: panic during delivery: %v", ErrFrameConversion, r))
		}
	}()

	frame, err := b.pool.TryGetNextFrame()
	if err != nil {
		b.stopLocked()
		b.resolveLocked(nil, fmt.Errorf("%w: acquire frame: %w", ErrFrameConversion, err))
		return
	}
	if frame == nil {
		// Notified before a frame was queued; keep waiting.
		b.log.Debug("frame notification without a queued frame")
		return
	}
	defer frame.Close()

	b.stopLocked()

	bmp, err := b.convert(frame)
	if err != nil {
		b.resolveLocked(nil, fmt.Errorf("%w: %w", ErrFrameConversion, err))
		return
	}
	if bmp == nil {
		b.resolveLocked(nil, fmt.Errorf("%w: converter returned no bitmap", ErrFrameConversion))
		return
	}
	b.resolveLocked(bmp, nil)
}

// abort fails a bridge that is still awaiting and stops its session. It
// reports whether it settled the result.
func (b *frameBridge) abort(err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != bridgeAwaiting {
		return false
	}
	b.stopLocked()
	b.resolveLocked(nil, err)
	return true
}

// wait blocks until the result is settled or ctx ends. On ctx expiry the
// bridge is aborted; a frame that won the race is still returned.
func (b *frameBridge) wait(ctx context.Context) (*Bitmap, error) {
	select {
	case r := <-b.result:
		return r.bitmap, r.err
	case <-ctx.Done():
	}

	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", ErrFrameTimeout, err)
	} else {
		err = fmt.Errorf("capture canceled: %w", err)
	}
	b.abort(err)

	r := <-b.result
	return r.bitmap, r.err
}

func (b *frameBridge) currentState() bridgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *frameBridge) sessionStopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}

func (b *frameBridge) stopLocked() {
	if b.stopped {
		return
	}
	b.stopped = true
	b.session.Close()
	b.log.Debug("capture session stopped")
}

func (b *frameBridge) resolveLocked(bmp *Bitmap, err error) {
	if b.state != bridgeAwaiting {
		return
	}
	if err != nil {
		b.state = bridgeFailed
	} else {
		b.state = bridgeDelivered
	}
	b.result <- captureResult{bitmap: bmp, err: err}
}
