//go:build windows

package wgc

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/go-ole/go-ole"
)

const roInitMultithreaded = 1

var (
	apartmentOnce sync.Once
	apartmentErr  error
)

// ensureApartment brings up the process-wide multithreaded apartment. One
// pinned goroutine initializes it and never returns, so every other OS thread
// the Go scheduler uses joins the MTA implicitly.
func ensureApartment() error {
	apartmentOnce.Do(func() {
		ready := make(chan error, 1)
		go func() {
			runtime.LockOSThread()
			if err := ole.RoInitialize(roInitMultithreaded); err != nil && !alreadyInitialized(err) {
				ready <- fmt.Errorf("RoInitialize: %w", err)
				return
			}
			ready <- nil
			select {}
		}()
		apartmentErr = <-ready
	})
	return apartmentErr
}

func alreadyInitialized(err error) bool {
	var oleErr *ole.OleError
	if !errors.As(err, &oleErr) {
		return false
	}
	switch uint32(oleErr.Code()) {
	case sFalse, rpcEChangedMode:
		return true
	}
	return false
}
