// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"
)

// NewRenderPass creates a single subpass render pass with one color attachment
// of format that is cleared on load and stored for presentation.
// No subpass dependencies are declared, so it is only safe with one pass and
// one frame in flight.
func NewRenderPass(device *Device, format vk.Format) (*RenderPass, error) {
	attachments := []vk.AttachmentDescription{{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}}

	colorAttachmentRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorAttachmentRef)),
		PColorAttachments:    colorAttachmentRef,
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}

	renderPass, ret := device.Driver().CreateRenderPass(device.NativeLogicalHandle(), &rpci)
	if err := check("vk.CreateRenderPass", ret); err != nil {
		return nil, err
	}
	return &RenderPass{
		driver:      device.Driver(),
		device:      device.NativeLogicalHandle(),
		renderPass:  renderPass,
		format:      format,
		attachments: len(attachments),
	}, nil
}

// RenderPass describes how the color attachment is loaded, stored and transitioned.
type RenderPass struct {
	driver      Driver
	device      vk.Device
	renderPass  vk.RenderPass
	format      vk.Format
	attachments int
}

// Handle returns the native render pass.
func (r *RenderPass) Handle() vk.RenderPass {
	return r.renderPass
}

// Format returns the color attachment format.
func (r *RenderPass) Format() vk.Format {
	return r.format
}

// AttachmentCount returns how many views a framebuffer for this pass must bind.
func (r *RenderPass) AttachmentCount() int {
	return r.attachments
}

// Release destroys the render pass.
func (r *RenderPass) Release() {
	if r == nil || r.renderPass == nil {
		return
	}
	r.driver.DestroyRenderPass(r.device, r.renderPass)
	r.renderPass = nil
}
