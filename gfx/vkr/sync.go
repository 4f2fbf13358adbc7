// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/devblok/vulkan"
)

// NoTimeout makes a fence wait block until the fences are signaled.
const NoTimeout = time.Duration(math.MaxInt64)

// NewFences creates count fences. They are created signaled and then
// reset, so every fence starts unsignaled regardless of driver defaults.
func NewFences(device *Device, count int) (*Fences, error) {
	if count <= 0 {
		return nil, errors.Newf("cannot create %d fences", count)
	}

	f := &Fences{
		driver: device.Driver(),
		device: device.NativeLogicalHandle(),
	}

	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
	}
	for idx := 0; idx < count; idx++ {
		fence, ret := f.driver.CreateFence(f.device, &fci)
		if err := check("vk.CreateFence", ret); err != nil {
			f.Release()
			return nil, err
		}
		f.fences = append(f.fences, fence)
	}

	if err := f.Reset(); err != nil {
		f.Release()
		return nil, err
	}
	return f, nil
}

// Fences is a group of fences waited on together.
type Fences struct {
	driver Driver
	device vk.Device
	fences []vk.Fence
}

// Len returns the number of fences in the group.
func (f *Fences) Len() int {
	return len(f.fences)
}

// Get returns fence i. Asking for a fence outside the group is a programming error and panics.
func (f *Fences) Get(i int) vk.Fence {
	if i < 0 || i >= len(f.fences) {
		panic(fmt.Sprintf("vkr: fence index %d out of range [0,%d)", i, len(f.fences)))
	}
	return f.fences[i]
}

// Wait blocks until all fences are signaled or timeout elapses,
// in which case ErrFenceTimeout is returned.
func (f *Fences) Wait(timeout time.Duration) error {
	var ns uint64
	switch {
	case timeout == NoTimeout:
		ns = math.MaxUint64
	case timeout > 0:
		ns = uint64(timeout.Nanoseconds())
	}

	ret := f.driver.WaitForFences(f.device, f.fences, true, ns)
	if ret == vk.Timeout {
		return errors.Wrapf(ErrFenceTimeout, "%d fences after %s", len(f.fences), timeout)
	}
	return check("vk.WaitForFences", ret)
}

// Reset sets all fences to the unsignaled state.
func (f *Fences) Reset() error {
	return check("vk.ResetFences", f.driver.ResetFences(f.device, f.fences))
}

// Release destroys the fences.
func (f *Fences) Release() {
	if f == nil {
		return
	}
	for _, fence := range f.fences {
		f.driver.DestroyFence(f.device, fence)
	}
	f.fences = nil
}

// NewSemaphore creates a binary semaphore.
func NewSemaphore(device *Device) (*Semaphore, error) {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	semaphore, ret := device.Driver().CreateSemaphore(device.NativeLogicalHandle(), &sci)
	if err := check("vk.CreateSemaphore", ret); err != nil {
		return nil, err
	}
	return &Semaphore{
		driver:    device.Driver(),
		device:    device.NativeLogicalHandle(),
		semaphore: semaphore,
	}, nil
}

// Semaphore orders work between queue operations.
type Semaphore struct {
	driver    Driver
	device    vk.Device
	semaphore vk.Semaphore
}

// Handle returns the native semaphore.
func (s *Semaphore) Handle() vk.Semaphore {
	return s.semaphore
}

// Release destroys the semaphore.
func (s *Semaphore) Release() {
	if s == nil || s.semaphore == nil {
		return
	}
	s.driver.DestroySemaphore(s.device, s.semaphore)
	s.semaphore = nil
}
