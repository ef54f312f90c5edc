package capture

// Device is an opaque rendering device handed out by Platform.CreateDevice.
// The pipeline never looks inside it; it only passes it back to the platform.
type Device any

// Item is a capturable surface (a window or a monitor).
type Item interface {
	// Size returns the current pixel size of the surface.
	Size() (Size, error)
	Release()
}

// RawItem is the reference an ItemFactory hands back before it is wrapped.
// Wrap takes its own reference; the caller still releases the RawItem.
type RawItem interface {
	Wrap() (Item, error)
	Release()
}

// ItemFactory builds capture items from native handles.
type ItemFactory interface {
	CreateForWindow(hwnd WindowHandle) (RawItem, error)
	CreateForMonitor(hmon MonitorHandle) (RawItem, error)
}

// Frame is one captured frame pulled from a FramePool.
type Frame interface {
	ContentSize() Size
	Close()
}

// Session feeds a FramePool from an Item. Close stops it and must be safe to
// call more than once.
type Session interface {
	SetBorderRequired(required bool) error
	Start() error
	Close()
}

// FramePool is a bounded queue of frames produced for one session.
type FramePool interface {
	CreateSession(item Item) (Session, error)

	// SetFrameArrived registers the single frame-arrival listener. The
	// platform may invoke it from any thread, and may invoke it before a
	// frame is actually queued.
	SetFrameArrived(handler func()) error

	// TryGetNextFrame returns (nil, nil) when no frame is queued.
	TryGetNextFrame() (Frame, error)

	// Close unregisters the listener and releases the pool.
	Close()
}

// Platform is everything the pipeline needs from the operating system.
type Platform interface {
	ItemFactory

	// Name identifies the backend in logs.
	Name() string

	CreateDevice() (Device, error)

	// DefaultMonitor returns the monitor nearest to the null window.
	DefaultMonitor() (MonitorHandle, error)

	Monitors() ([]MonitorInfo, error)

	CreateFramePool(dev Device, format PixelFormat, buffers int, size Size) (FramePool, error)

	// ConvertFrame copies the frame's surface into a CPU bitmap.
	ConvertFrame(dev Device, frame Frame, alpha AlphaMode) (*Bitmap, error)
}
