package capture

import (
	"fmt"
)

// Target is a resolved capture item together with its size at resolution
// time. The Capturer owns it for one call and releases it once the session
// is running.
type Target struct {
	Kind   TargetKind
	Handle uintptr
	Item   Item
	Size   Size
}

// Release drops the item reference. Safe to call more than once.
func (t *Target) Release() {
	if t.Item != nil {
		t.Item.Release()
		t.Item = nil
	}
}

// Resolver turns native window and monitor handles into capture targets.
type Resolver struct {
	factory ItemFactory
}

func NewResolver(factory ItemFactory) *Resolver {
	return &Resolver{factory: factory}
}

// ResolveForWindow returns a target for hwnd or an error wrapping
// ErrTargetResolution. It never returns a nil target without an error.
func (r *Resolver) ResolveForWindow(hwnd WindowHandle) (*Target, error) {
	if hwnd == 0 {
		return nil, fmt.Errorf("%w: null window handle", ErrTargetResolution)
	}
	return r.resolve(TargetWindow, uintptr(hwnd), func() (RawItem, error) {
		return r.factory.CreateForWindow(hwnd)
	})
}

// ResolveForMonitor returns a target for hmon or an error wrapping
// ErrTargetResolution.
func (r *Resolver) ResolveForMonitor(hmon MonitorHandle) (*Target, error) {
	if hmon == 0 {
		return nil, fmt.Errorf("%w: null monitor handle", ErrTargetResolution)
	}
	return r.resolve(TargetMonitor, uintptr(hmon), func() (RawItem, error) {
		return r.factory.CreateForMonitor(hmon)
	})
}

func (r *Resolver) resolve(kind TargetKind, handle uintptr, create func() (RawItem, error)) (*Target, error) {
	raw, err := create()
	if err != nil {
		return nil, fmt.Errorf("%w: %s %#x: %w", ErrTargetResolution, kind, handle, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s %#x: platform returned no item", ErrTargetResolution, kind, handle)
	}
	// The wrapped item holds its own reference.
	defer raw.Release()

	item, err := raw.Wrap()
	if err != nil {
		return nil, fmt.Errorf("%w: %s %#x: wrap item: %w", ErrTargetResolution, kind, handle, err)
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s %#x: wrap returned no item", ErrTargetResolution, kind, handle)
	}

	size, err := item.Size()
	if err != nil {
		item.Release()
		return nil, fmt.Errorf("%w: %s %#x: query size: %w", ErrTargetResolution, kind, handle, err)
	}

	log.Debug("capture target resolved", "kind", kind.String(), "handle", fmt.Sprintf("%#x", handle), "size", size.String())
	return &Target{Kind: kind, Handle: handle, Item: item, Size: size}, nil
}
