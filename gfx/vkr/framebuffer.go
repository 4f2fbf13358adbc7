// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/cockroachdb/errors"
	vk "github.com/devblok/vulkan"
)

// NewFramebuffer binds views to the attachments of renderPass. On success the
// framebuffer owns the views: they are left empty in the caller's hands and
// destroyed together with the framebuffer.
func NewFramebuffer(device *Device, renderPass *RenderPass, views []*ImageView, width, height, layers uint32) (*Framebuffer, error) {
	if len(views) != renderPass.AttachmentCount() {
		return nil, errors.Wrapf(ErrAttachmentCountMismatch, "got %d views, render pass has %d attachments",
			len(views), renderPass.AttachmentCount())
	}

	attachments := make([]vk.ImageView, len(views))
	for idx, view := range views {
		if view.Empty() {
			return nil, errors.Newf("attachment %d is an empty view", idx)
		}
		attachments[idx] = view.Handle()
	}

	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass.Handle(),
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           width,
		Height:          height,
		Layers:          layers,
	}

	framebuffer, ret := device.Driver().CreateFramebuffer(device.NativeLogicalHandle(), &fci)
	if err := check("vk.CreateFramebuffer", ret); err != nil {
		return nil, err
	}

	owned := make([]*ImageView, len(views))
	for idx, view := range views {
		owned[idx] = view.Move()
	}
	return &Framebuffer{
		driver:      device.Driver(),
		device:      device.NativeLogicalHandle(),
		framebuffer: framebuffer,
		views:       owned,
		width:       width,
		height:      height,
		layers:      layers,
	}, nil
}

// Framebuffer binds image views to a render pass with fixed dimensions.
type Framebuffer struct {
	driver      Driver
	device      vk.Device
	framebuffer vk.Framebuffer
	views       []*ImageView

	width  uint32
	height uint32
	layers uint32
}

// Handle returns the native framebuffer.
func (f *Framebuffer) Handle() vk.Framebuffer {
	return f.framebuffer
}

// Width of the framebuffer in pixels.
func (f *Framebuffer) Width() uint32 {
	return f.width
}

// Height of the framebuffer in pixels.
func (f *Framebuffer) Height() uint32 {
	return f.height
}

// Layers of the framebuffer.
func (f *Framebuffer) Layers() uint32 {
	return f.layers
}

// Extent returns the framebuffer size.
func (f *Framebuffer) Extent() vk.Extent2D {
	return vk.Extent2D{Width: f.width, Height: f.height}
}

// Views returns the views owned by the framebuffer.
func (f *Framebuffer) Views() []*ImageView {
	return f.views
}

// Release destroys the framebuffer and then its views.
func (f *Framebuffer) Release() {
	if f == nil || f.framebuffer == nil {
		return
	}
	f.driver.DestroyFramebuffer(f.device, f.framebuffer)
	f.framebuffer = nil
	for _, view := range f.views {
		view.Release()
	}
	f.views = nil
}
