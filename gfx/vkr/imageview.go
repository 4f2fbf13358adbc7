// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"
)

// DefaultSubresourceRange covers the color aspect of mip 0 and layer 0.
var DefaultSubresourceRange = vk.ImageSubresourceRange{
	AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
	BaseMipLevel:   0,
	LevelCount:     1,
	BaseArrayLayer: 0,
	LayerCount:     1,
}

// NewImageView creates a view over image with identity swizzle.
func NewImageView(device *Device, image vk.Image, format vk.Format, viewType vk.ImageViewType, subresourceRange vk.ImageSubresourceRange) (*ImageView, error) {
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: viewType,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: subresourceRange,
	}

	view, ret := device.Driver().CreateImageView(device.NativeLogicalHandle(), &ivci)
	if err := check("vk.CreateImageView", ret); err != nil {
		return nil, err
	}
	return &ImageView{
		driver: device.Driver(),
		device: device.NativeLogicalHandle(),
		view:   view,
		format: format,
	}, nil
}

// ImageView is a typed view over an image it does not own.
type ImageView struct {
	driver Driver
	device vk.Device
	view   vk.ImageView
	format vk.Format
}

// Handle returns the native view.
func (i *ImageView) Handle() vk.ImageView {
	return i.view
}

// Empty reports whether the view was moved or released.
func (i *ImageView) Empty() bool {
	return i == nil || i.view == nil
}

// Move transfers the view to the returned value and leaves i empty.
func (i *ImageView) Move() *ImageView {
	moved := *i
	i.view = nil
	return &moved
}

// Release destroys the view.
func (i *ImageView) Release() {
	if i.Empty() {
		return
	}
	i.driver.DestroyImageView(i.device, i.view)
	i.view = nil
}
