// Copyright 2026 The gpuproof Authors. All rights reserved.

// Package driver defines the device-abstraction interfaces
// that the scene interpreter records against.
// It is designed so that platform-specific APIs can be
// implemented in a mostly straightforward manner, and so
// that a fake device can stand in during tests.
package driver

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Adapter is the interface that provides access to a
// single GPU and its queue.
type Adapter interface {
	// Open initializes the adapter's device.
	// If it succeeds, further calls with the same receiver
	// have no effect and must return the same Device.
	// Callers should assume that Open is not safe for
	// parallel execution.
	Open() (Device, error)

	// Name returns the name of the adapter.
	// It must not cause the adapter to be opened.
	Name() string

	// Close deinitializes the adapter.
	// Closing an adapter that is not open has no effect.
	Close()
}

// ErrNoDevice means that no suitable device could be
// found.
var ErrNoDevice = errors.New("driver: no suitable device found")

// ErrNoHostMemory means that host memory could not be
// allocated.
var ErrNoHostMemory = errors.New("driver: out of host memory")

// ErrNoDeviceMemory means that device memory could not
// be allocated.
var ErrNoDeviceMemory = errors.New("driver: out of device memory")

// ErrTimeout means that a fence wait exceeded its bound
// before the fence signaled.
var ErrTimeout = errors.New("driver: wait timed out")

// Adapters returns the registered Adapters.
// Client code imports specific backend packages, which
// register themselves on init; adapters that do not do so
// will not be considered for selection.
func Adapters() []Adapter {
	mu.Lock()
	defer mu.Unlock()
	ads := make([]Adapter, len(adapters))
	copy(ads, adapters)
	return ads
}

// Register registers an Adapter.
// Backend implementations are expected to call Register
// exactly once, from an init function.
// If an adapter with the same name has already been
// registered, it will be replaced by ad.
func Register(ad Adapter) {
	mu.Lock()
	defer mu.Unlock()
	for i := range adapters {
		if adapters[i].Name() == ad.Name() {
			adapters[i] = ad
			return
		}
	}
	adapters = append(adapters, ad)
}

// Variables used for adapter registration.
var (
	mu       sync.Mutex
	adapters = make([]Adapter, 0, 1)
)

// NoTimeout disables the deadline of a fence wait.
const NoTimeout time.Duration = 1<<63 - 1
