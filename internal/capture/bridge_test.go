package capture

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestBridge(t *testing.T, convert func(Frame) (*Bitmap, error)) (*frameBridge, *fakePool, *fakeSession) {
	t.Helper()
	pool := &fakePool{platform: newFakePlatform(), buffers: 1, size: Size{Width: 4, Height: 2}}
	session := &fakeSession{pool: pool}
	if convert == nil {
		convert = func(f Frame) (*Bitmap, error) {
			s := f.ContentSize()
			return NewBitmap(int(s.Width), int(s.Height), AlphaPremultiplied), nil
		}
	}
	return newFrameBridge(pool, session, convert, log), pool, session
}

func TestBridgeIgnoresNotificationWithoutFrame(t *testing.T) {
	b, _, session := newTestBridge(t, nil)

	b.onFrameArrived()

	if got := b.currentState(); got != bridgeAwaiting {
		t.Fatalf("state = %v, want awaiting", got)
	}
	if session.closes.Load() != 0 {
		t.Fatal("session stopped by an empty notification")
	}
	select {
	case r := <-b.result:
		t.Fatalf("result resolved by an empty notification: %+v", r)
	default:
	}
}

func TestBridgeDeliversFirstFrame(t *testing.T) {
	b, pool, session := newTestBridge(t, nil)
	frame := &fakeFrame{size: Size{Width: 4, Height: 2}}
	pool.push(frame)

	b.onFrameArrived()

	bmp, err := b.wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if bmp.Width != 4 || bmp.Height != 2 {
		t.Fatalf("bitmap size = %dx%d, want 4x2", bmp.Width, bmp.Height)
	}
	if got := b.currentState(); got != bridgeDelivered {
		t.Fatalf("state = %v, want delivered", got)
	}
	if session.closes.Load() != 1 {
		t.Fatalf("session closed %d times, want 1", session.closes.Load())
	}
	if frame.closes.Load() != 1 {
		t.Fatalf("frame closed %d times, want 1", frame.closes.Load())
	}
}

func TestBridgeStopsSessionBeforeConversion(t *testing.T) {
	var stoppedDuringConvert bool
	var b *frameBridge
	b, pool, session := newTestBridge(t, func(f Frame) (*Bitmap, error) {
		// Called with the bridge lock held, so read the flag directly.
		stoppedDuringConvert = b.stopped
		return nil, errors.New("surface lost")
	})
	pool.push(&fakeFrame{size: Size{Width: 4, Height: 2}})

	b.onFrameArrived()

	if !stoppedDuringConvert {
		t.Fatal("session was still running when conversion started")
	}
	_, err := b.wait(context.Background())
	if !errors.Is(err, ErrFrameConversion) {
		t.Fatalf("err = %v, want ErrFrameConversion", err)
	}
	if got := b.currentState(); got != bridgeFailed {
		t.Fatalf("state = %v, want failed", got)
	}
	if session.closes.Load() != 1 {
		t.Fatalf("session closed %d times, want 1", session.closes.Load())
	}
}

func TestBridgeDuplicateNotificationIsNoop(t *testing.T) {
	converted := 0
	b, pool, session := newTestBridge(t, func(f Frame) (*Bitmap, error) {
		converted++
		return NewBitmap(1, 1, AlphaPremultiplied), nil
	})
	pool.buffers = 2
	pool.push(&fakeFrame{size: Size{Width: 1, Height: 1}})
	pool.push(&fakeFrame{size: Size{Width: 1, Height: 1}})

	b.onFrameArrived()
	b.onFrameArrived()

	if converted != 1 {
		t.Fatalf("converted %d frames, want 1", converted)
	}
	if session.closes.Load() != 1 {
		t.Fatalf("session closed %d times, want 1", session.closes.Load())
	}
	if len(b.result) != 1 {
		t.Fatalf("result channel holds %d values, want 1", len(b.result))
	}
	if b.abort(errors.New("late")) {
		t.Fatal("abort settled an already delivered bridge")
	}
}

func TestBridgeAcquireFailureStopsSession(t *testing.T) {
	b, pool, session := newTestBridge(t, nil)
	pool.nextErr = errors.New("device removed")

	b.onFrameArrived()

	_, err := b.wait(context.Background())
	if !errors.Is(err, ErrFrameConversion) {
		t.Fatalf("err = %v, want ErrFrameConversion", err)
	}
	if !b.sessionStopped() || session.closes.Load() != 1 {
		t.Fatal("session not stopped after acquire failure")
	}
}

func TestBridgeRecoversConverterPanic(t *testing.T) {
	b, pool, session := newTestBridge(t, func(f Frame) (*Bitmap, error) {
		panic("nil surface")
	})
	frame := &fakeFrame{size: Size{Width: 1, Height: 1}}
	pool.push(frame)

	b.onFrameArrived()

	_, err := b.wait(context.Background())
	if !errors.Is(err, ErrFrameConversion) {
		t.Fatalf("err = %v, want ErrFrameConversion", err)
	}
	if session.closes.Load() != 1 {
		t.Fatalf("session closed %d times, want 1", session.closes.Load())
	}
	if frame.closes.Load() != 1 {
		t.Fatalf("frame closed %d times, want 1", frame.closes.Load())
	}
}

func TestBridgeAbortThenLateFrame(t *testing.T) {
	b, pool, session := newTestBridge(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := b.wait(ctx)
	if !errors.Is(err, ErrFrameTimeout) {
		t.Fatalf("err = %v, want ErrFrameTimeout", err)
	}

	// A frame that shows up after the timeout must not resolve again.
	pool.push(&fakeFrame{size: Size{Width: 4, Height: 2}})
	b.onFrameArrived()

	if session.closes.Load() != 1 {
		t.Fatalf("session closed %d times, want 1", session.closes.Load())
	}
	if len(b.result) != 0 {
		t.Fatal("late frame resolved the result a second time")
	}
}
