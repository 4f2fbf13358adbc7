// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"testing"
	"time"

	vk "github.com/devblok/vulkan"
	qt "github.com/frankban/quicktest"
)

func TestFencesStartUnsignaled(t *testing.T) {
	c := qt.New(t)
	f := newFakeDriver()
	instance, device := newTestDevice(c, f)
	defer instance.Destroy()
	defer device.Release()

	fences, err := NewFences(device, 2)
	c.Assert(err, qt.IsNil)
	defer fences.Release()

	c.Assert(fences.Len(), qt.Equals, 2)
	c.Assert(f.called("CreateFence", "ResetFences"), qt.DeepEquals, []string{
		"CreateFence", "CreateFence", "ResetFences",
	})

	err = fences.Wait(0)
	c.Assert(err, qt.ErrorIs, ErrFenceTimeout)
}

func TestFencesWaitAfterSubmit(t *testing.T) {
	c := qt.New(t)
	f := newFakeDriver()
	instance, device := newTestDevice(c, f)
	defer instance.Destroy()
	defer device.Release()

	fences, err := NewFences(device, 1)
	c.Assert(err, qt.IsNil)
	defer fences.Release()

	queue, err := device.Queue(0, 0)
	c.Assert(err, qt.IsNil)
	pool, err := NewCommandPool(device, 0)
	c.Assert(err, qt.IsNil)
	defer pool.Release()
	buffers, err := pool.Allocate(1)
	c.Assert(err, qt.IsNil)

	c.Assert(queue.Submit(buffers[0], nil, fences.Get(0)), qt.IsNil)
	c.Assert(f.submits[0].WaitSemaphoreCount, qt.Equals, uint32(0))
	c.Assert(fences.Wait(NoTimeout), qt.IsNil)
	c.Assert(fences.Wait(time.Second), qt.IsNil)

	c.Assert(fences.Reset(), qt.IsNil)
	c.Assert(fences.Wait(time.Millisecond), qt.ErrorIs, ErrFenceTimeout)
}

func TestFencesGetOutOfRangePanics(t *testing.T) {
	c := qt.New(t)
	f := newFakeDriver()
	instance, device := newTestDevice(c, f)
	defer instance.Destroy()
	defer device.Release()

	fences, err := NewFences(device, 1)
	c.Assert(err, qt.IsNil)
	defer fences.Release()

	c.Assert(fences.Get(0), qt.Not(qt.IsNil))
	c.Assert(func() { fences.Get(1) }, qt.PanicMatches, `vkr: fence index 1 out of range \[0,1\)`)
	c.Assert(func() { fences.Get(-1) }, qt.PanicMatches, `vkr: fence index -1 out of range \[0,1\)`)
}

func TestFencesCreateFailureReleasesCreated(t *testing.T) {
	c := qt.New(t)
	f := newFakeDriver()
	instance, device := newTestDevice(c, f)
	defer instance.Destroy()
	defer device.Release()

	f.fail["vk.CreateFence"] = vk.ErrorOutOfHostMemory
	_, err := NewFences(device, 2)
	kind, _ := KindOf(err)
	c.Assert(kind, qt.Equals, KindOutOfHostMemory)
	c.Assert(f.count("Fence"), qt.Equals, 0)

	_, err = NewFences(device, 0)
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestSemaphore(t *testing.T) {
	c := qt.New(t)
	f := newFakeDriver()
	instance, device := newTestDevice(c, f)

	semaphore, err := NewSemaphore(device)
	c.Assert(err, qt.IsNil)
	c.Assert(semaphore.Handle(), qt.Not(qt.IsNil))
	semaphore.Release()
	semaphore.Release()

	device.Release()
	instance.Destroy()
	assertClean(c, f)
}
