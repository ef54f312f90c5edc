package capture

import (
	"fmt"
	"sync"
)

// DeviceProvider lazily creates the rendering device and hands the same
// device to every capture for the rest of the process.
//
// Creation runs under a mutex, so concurrent first captures create exactly
// one device. A failed creation is not cached: the next Get tries again.
type DeviceProvider struct {
	create func() (Device, error)

	mu  sync.Mutex
	dev Device
}

// NewDeviceProvider returns a provider that calls create on first use.
func NewDeviceProvider(create func() (Device, error)) *DeviceProvider {
	return &DeviceProvider{create: create}
}

// Get returns the shared device, creating it on the first call.
func (p *DeviceProvider) Get() (Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dev != nil {
		return p.dev, nil
	}

	dev, err := p.create()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceCreation, err)
	}
	if dev == nil {
		return nil, fmt.Errorf("%w: platform returned no device", ErrDeviceCreation)
	}
	p.dev = dev
	log.Debug("rendering device created")
	return dev, nil
}
