// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/cockroachdb/errors"
	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"
)

// NewCommandPool creates a pool for queue family whose buffers can be reset individually.
func NewCommandPool(device *Device, family uint32) (*CommandPool, error) {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}

	pool, ret := device.Driver().CreateCommandPool(device.NativeLogicalHandle(), &cpci)
	if err := check("vk.CreateCommandPool", ret); err != nil {
		return nil, err
	}
	return &CommandPool{
		driver: device.Driver(),
		device: device.NativeLogicalHandle(),
		family: family,
		pool:   pool,
	}, nil
}

// CommandPool allocates command buffers bound to one queue family.
type CommandPool struct {
	driver Driver
	device vk.Device
	family uint32
	pool   vk.CommandPool
}

// Handle returns the native pool.
func (c *CommandPool) Handle() vk.CommandPool {
	return c.pool
}

// Family returns the queue family the pool allocates for.
func (c *CommandPool) Family() uint32 {
	return c.family
}

// Allocate allocates count primary command buffers.
func (c *CommandPool) Allocate(count int) ([]*CommandBuffer, error) {
	if count <= 0 {
		return nil, errors.Newf("cannot allocate %d command buffers", count)
	}
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}

	buffers, ret := c.driver.AllocateCommandBuffers(c.device, &cbai)
	if err := check("vk.AllocateCommandBuffers", ret); err != nil {
		return nil, err
	}

	allocated := make([]*CommandBuffer, len(buffers))
	for idx := range buffers {
		allocated[idx] = &CommandBuffer{
			driver: c.driver,
			buffer: buffers[idx],
		}
	}
	return allocated, nil
}

// Free returns buffers to the pool.
func (c *CommandPool) Free(buffers ...*CommandBuffer) {
	handles := make([]vk.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		if b != nil && b.buffer != nil {
			handles = append(handles, b.buffer)
			b.buffer = nil
		}
	}
	if len(handles) > 0 {
		c.driver.FreeCommandBuffers(c.device, c.pool, handles)
	}
}

// Reset resets every buffer of the pool and hands the pool memory back to the driver.
// It is more expensive than resetting a single buffer and is meant for events like resize.
func (c *CommandPool) Reset() error {
	flags := vk.CommandPoolResetFlags(vk.CommandPoolResetReleaseResourcesBit)
	return check("vk.ResetCommandPool", c.driver.ResetCommandPool(c.device, c.pool, flags))
}

// Release destroys the pool along with any buffers still allocated from it.
func (c *CommandPool) Release() {
	if c == nil || c.pool == nil {
		return
	}
	c.driver.DestroyCommandPool(c.device, c.pool)
	c.pool = nil
}

// CommandBuffer records commands for submission to a queue.
type CommandBuffer struct {
	driver Driver
	buffer vk.CommandBuffer
}

// Handle returns the native command buffer.
func (c *CommandBuffer) Handle() vk.CommandBuffer {
	return c.buffer
}

// Reset resets the buffer to the initial state, keeping its memory.
func (c *CommandBuffer) Reset() error {
	return check("vk.ResetCommandBuffer", c.driver.ResetCommandBuffer(c.buffer, 0))
}

// Begin starts recording for a single submission.
func (c *CommandBuffer) Begin() error {
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return check("vk.BeginCommandBuffer", c.driver.BeginCommandBuffer(c.buffer, &cbbi))
}

// End finishes recording.
func (c *CommandBuffer) End() error {
	return check("vk.EndCommandBuffer", c.driver.EndCommandBuffer(c.buffer))
}

// BeginRenderPass begins renderPass on framebuffer covering the whole framebuffer,
// clearing the color attachment to clear.
func (c *CommandBuffer) BeginRenderPass(renderPass *RenderPass, framebuffer *Framebuffer, clear glm.Vec4) {
	clearValues := []vk.ClearValue{
		vk.NewClearValue(clear[:]),
	}
	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  renderPass.Handle(),
		Framebuffer: framebuffer.Handle(),
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: framebuffer.Extent(),
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	c.driver.CmdBeginRenderPass(c.buffer, &rpbi, vk.SubpassContentsInline)
}

// EndRenderPass ends the current render pass.
func (c *CommandBuffer) EndRenderPass() {
	c.driver.CmdEndRenderPass(c.buffer)
}

// SetViewport sets a viewport at origin with the given size and a [0,1] depth range.
func (c *CommandBuffer) SetViewport(size glm.Vec2) {
	c.driver.CmdSetViewport(c.buffer, []vk.Viewport{{
		X:        0,
		Y:        0,
		Width:    size.X(),
		Height:   size.Y(),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}})
}

// SetScissor sets the scissor to extent at origin.
func (c *CommandBuffer) SetScissor(extent vk.Extent2D) {
	c.driver.CmdSetScissor(c.buffer, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}})
}

// BindPipeline binds a graphics pipeline.
func (c *CommandBuffer) BindPipeline(pipeline *Pipeline) {
	c.driver.CmdBindPipeline(c.buffer, vk.PipelineBindPointGraphics, pipeline.Handle())
}

// Draw records a non-indexed draw.
func (c *CommandBuffer) Draw(vertexCount, instanceCount uint32) {
	c.driver.CmdDraw(c.buffer, vertexCount, instanceCount, 0, 0)
}
