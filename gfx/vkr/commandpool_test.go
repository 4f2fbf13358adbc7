// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"testing"

	vk "github.com/devblok/vulkan"
	qt "github.com/frankban/quicktest"
)

func TestCommandPool(t *testing.T) {
	c := qt.New(t)
	f := newFakeDriver()
	instance, device := newTestDevice(c, f)

	pool, err := NewCommandPool(device, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(pool.Family(), qt.Equals, uint32(0))
	c.Assert(f.poolFlags, qt.Equals, vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit))

	buffers, err := pool.Allocate(3)
	c.Assert(err, qt.IsNil)
	c.Assert(buffers, qt.HasLen, 3)

	_, err = pool.Allocate(0)
	c.Assert(err, qt.Not(qt.IsNil))

	c.Assert(buffers[0].Reset(), qt.IsNil)
	c.Assert(buffers[0].Begin(), qt.IsNil)
	c.Assert(buffers[0].End(), qt.IsNil)

	c.Assert(pool.Reset(), qt.IsNil)
	c.Assert(f.poolResets, qt.DeepEquals, []vk.CommandPoolResetFlags{
		vk.CommandPoolResetFlags(vk.CommandPoolResetReleaseResourcesBit),
	})

	pool.Free(buffers[1], buffers[2])
	c.Assert(buffers[1].Handle(), qt.IsNil)
	pool.Free(buffers[1])
	c.Assert(f.called("FreeCommandBuffers"), qt.HasLen, 1)

	pool.Release()
	pool.Release()
	device.Release()
	instance.Destroy()
	assertClean(c, f)
}
