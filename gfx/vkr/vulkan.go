// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/devblok/vulkan"
)

// NewDriver loads the Vulkan entry points and returns a Driver backed by them.
// When procAddr is nil the system loader is used, otherwise procAddr must be
// a vkGetInstanceProcAddr obtained from the windowing library.
func NewDriver(procAddr unsafe.Pointer) (Driver, error) {
	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.Wrap(err, "vk.SetDefaultGetInstanceProcAddr()")
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}

	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vk.Init()")
	}
	return vulkanDriver{}, nil
}

type vulkanDriver struct{}

var _ Driver = vulkanDriver{}

func (vulkanDriver) CreateInstance(info *vk.InstanceCreateInfo) (vk.Instance, vk.Result) {
	var instance vk.Instance
	if ret := vk.CreateInstance(info, nil, &instance); ret != vk.Success {
		return nil, ret
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, vk.ErrorInitializationFailed
	}
	return instance, vk.Success
}

func (vulkanDriver) DestroyInstance(instance vk.Instance) {
	vk.DestroyInstance(instance, nil)
}

func (vulkanDriver) EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, vk.Result) {
	var count uint32
	if ret := vk.EnumeratePhysicalDevices(instance, &count, nil); ret != vk.Success {
		return nil, ret
	}
	devices := make([]vk.PhysicalDevice, count)
	ret := vk.EnumeratePhysicalDevices(instance, &count, devices)
	return devices[:count], ret
}

func (vulkanDriver) DestroySurface(instance vk.Instance, surface vk.Surface) {
	vk.DestroySurface(instance, surface, nil)
}

func (vulkanDriver) GetPhysicalDeviceProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceProperties {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &properties)
	properties.Deref()
	return properties
}

func (vulkanDriver) GetPhysicalDeviceFeatures(gpu vk.PhysicalDevice) vk.PhysicalDeviceFeatures {
	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(gpu, &features)
	features.Deref()
	return features
}

func (vulkanDriver) GetPhysicalDeviceMemoryProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &memoryProperties)
	memoryProperties.Deref()
	for idx := uint32(0); idx < memoryProperties.MemoryTypeCount; idx++ {
		memoryProperties.MemoryTypes[idx].Deref()
	}
	for idx := uint32(0); idx < memoryProperties.MemoryHeapCount; idx++ {
		memoryProperties.MemoryHeaps[idx].Deref()
	}
	return memoryProperties
}

func (vulkanDriver) GetPhysicalDeviceQueueFamilyProperties(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, families)
	for idx := range families {
		families[idx].Deref()
	}
	return families
}

func (vulkanDriver) EnumerateDeviceExtensions(gpu vk.PhysicalDevice) ([]string, vk.Result) {
	var count uint32
	if ret := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil); ret != vk.Success {
		return nil, ret
	}
	properties := make([]vk.ExtensionProperties, count)
	if ret := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, properties); ret != vk.Success {
		return nil, ret
	}
	names := make([]string, 0, count)
	for _, ext := range properties {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, vk.Success
}

func (vulkanDriver) EnumerateDeviceLayers(gpu vk.PhysicalDevice) ([]string, vk.Result) {
	var count uint32
	if ret := vk.EnumerateDeviceLayerProperties(gpu, &count, nil); ret != vk.Success {
		return nil, ret
	}
	properties := make([]vk.LayerProperties, count)
	if ret := vk.EnumerateDeviceLayerProperties(gpu, &count, properties); ret != vk.Success {
		return nil, ret
	}
	names := make([]string, 0, count)
	for _, layer := range properties {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, vk.Success
}

func (vulkanDriver) GetPhysicalDeviceSurfaceSupport(gpu vk.PhysicalDevice, family uint32, surface vk.Surface) (bool, vk.Result) {
	var supported vk.Bool32
	ret := vk.GetPhysicalDeviceSurfaceSupport(gpu, family, surface, &supported)
	return supported.B(), ret
}

func (vulkanDriver) GetPhysicalDeviceSurfaceCapabilities(gpu vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, vk.Result) {
	var capabilities vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(gpu, surface, &capabilities)
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()
	return capabilities, ret
}

func (vulkanDriver) GetPhysicalDeviceSurfaceFormats(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, vk.Result) {
	var count uint32
	if ret := vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, nil); ret != vk.Success {
		return nil, ret
	}
	formats := make([]vk.SurfaceFormat, count)
	ret := vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, formats)
	for idx := range formats {
		formats[idx].Deref()
	}
	return formats, ret
}

func (vulkanDriver) GetPhysicalDeviceSurfacePresentModes(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, vk.Result) {
	var count uint32
	if ret := vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, nil); ret != vk.Success {
		return nil, ret
	}
	modes := make([]vk.PresentMode, count)
	ret := vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, modes)
	return modes, ret
}

func (vulkanDriver) CreateDevice(gpu vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, vk.Result) {
	var device vk.Device
	ret := vk.CreateDevice(gpu, info, nil, &device)
	return device, ret
}

func (vulkanDriver) DestroyDevice(device vk.Device) {
	vk.DestroyDevice(device, nil)
}

func (vulkanDriver) DeviceWaitIdle(device vk.Device) vk.Result {
	return vk.DeviceWaitIdle(device)
}

func (vulkanDriver) GetDeviceQueue(device vk.Device, family, index uint32) vk.Queue {
	var queue vk.Queue
	vk.GetDeviceQueue(device, family, index, &queue)
	return queue
}

func (vulkanDriver) CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, vk.Result) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(device, info, nil, &pool)
	return pool, ret
}

func (vulkanDriver) ResetCommandPool(device vk.Device, pool vk.CommandPool, flags vk.CommandPoolResetFlags) vk.Result {
	return vk.ResetCommandPool(device, pool, flags)
}

func (vulkanDriver) DestroyCommandPool(device vk.Device, pool vk.CommandPool) {
	vk.DestroyCommandPool(device, pool, nil)
}

func (vulkanDriver) AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, vk.Result) {
	buffers := make([]vk.CommandBuffer, info.CommandBufferCount)
	ret := vk.AllocateCommandBuffers(device, info, buffers)
	return buffers, ret
}

func (vulkanDriver) FreeCommandBuffers(device vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer) {
	vk.FreeCommandBuffers(device, pool, uint32(len(buffers)), buffers)
}

func (vulkanDriver) ResetCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferResetFlags) vk.Result {
	return vk.ResetCommandBuffer(buffer, flags)
}

func (vulkanDriver) BeginCommandBuffer(buffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result {
	return vk.BeginCommandBuffer(buffer, info)
}

func (vulkanDriver) EndCommandBuffer(buffer vk.CommandBuffer) vk.Result {
	return vk.EndCommandBuffer(buffer)
}

func (vulkanDriver) CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	vk.CmdBeginRenderPass(buffer, info, contents)
}

func (vulkanDriver) CmdEndRenderPass(buffer vk.CommandBuffer) {
	vk.CmdEndRenderPass(buffer)
}

func (vulkanDriver) CmdSetViewport(buffer vk.CommandBuffer, viewports []vk.Viewport) {
	vk.CmdSetViewport(buffer, 0, uint32(len(viewports)), viewports)
}

func (vulkanDriver) CmdSetScissor(buffer vk.CommandBuffer, scissors []vk.Rect2D) {
	vk.CmdSetScissor(buffer, 0, uint32(len(scissors)), scissors)
}

func (vulkanDriver) CmdBindPipeline(buffer vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(buffer, bindPoint, pipeline)
}

func (vulkanDriver) CmdDraw(buffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(buffer, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (vulkanDriver) CreateFence(device vk.Device, info *vk.FenceCreateInfo) (vk.Fence, vk.Result) {
	var fence vk.Fence
	ret := vk.CreateFence(device, info, nil, &fence)
	return fence, ret
}

func (vulkanDriver) ResetFences(device vk.Device, fences []vk.Fence) vk.Result {
	return vk.ResetFences(device, uint32(len(fences)), fences)
}

func (vulkanDriver) WaitForFences(device vk.Device, fences []vk.Fence, waitAll bool, timeout uint64) vk.Result {
	all := vk.Bool32(vk.False)
	if waitAll {
		all = vk.True
	}
	return vk.WaitForFences(device, uint32(len(fences)), fences, all, uint(timeout))
}

func (vulkanDriver) DestroyFence(device vk.Device, fence vk.Fence) {
	vk.DestroyFence(device, fence, nil)
}

func (vulkanDriver) CreateSemaphore(device vk.Device, info *vk.SemaphoreCreateInfo) (vk.Semaphore, vk.Result) {
	var semaphore vk.Semaphore
	ret := vk.CreateSemaphore(device, info, nil, &semaphore)
	return semaphore, ret
}

func (vulkanDriver) DestroySemaphore(device vk.Device, semaphore vk.Semaphore) {
	vk.DestroySemaphore(device, semaphore, nil)
}

func (vulkanDriver) CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, vk.Result) {
	var renderPass vk.RenderPass
	ret := vk.CreateRenderPass(device, info, nil, &renderPass)
	return renderPass, ret
}

func (vulkanDriver) DestroyRenderPass(device vk.Device, renderPass vk.RenderPass) {
	vk.DestroyRenderPass(device, renderPass, nil)
}

func (vulkanDriver) CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	var view vk.ImageView
	ret := vk.CreateImageView(device, info, nil, &view)
	return view, ret
}

func (vulkanDriver) DestroyImageView(device vk.Device, view vk.ImageView) {
	vk.DestroyImageView(device, view, nil)
}

func (vulkanDriver) CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result) {
	var framebuffer vk.Framebuffer
	ret := vk.CreateFramebuffer(device, info, nil, &framebuffer)
	return framebuffer, ret
}

func (vulkanDriver) DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer) {
	vk.DestroyFramebuffer(device, framebuffer, nil)
}

func (vulkanDriver) CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result) {
	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(device, info, nil, &swapchain)
	return swapchain, ret
}

func (vulkanDriver) DestroySwapchain(device vk.Device, swapchain vk.Swapchain) {
	vk.DestroySwapchain(device, swapchain, nil)
}

func (vulkanDriver) GetSwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, vk.Result) {
	var count uint32
	if ret := vk.GetSwapchainImages(device, swapchain, &count, nil); ret != vk.Success {
		return nil, ret
	}
	images := make([]vk.Image, count)
	ret := vk.GetSwapchainImages(device, swapchain, &count, images)
	return images, ret
}

func (vulkanDriver) AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result) {
	var index uint32
	ret := vk.AcquireNextImage(device, swapchain, uint(timeout), semaphore, fence, &index)
	return index, ret
}

func (vulkanDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result {
	return vk.QueueSubmit(queue, uint32(len(submits)), submits, fence)
}

func (vulkanDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(queue, info)
}

func (vulkanDriver) CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result) {
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, info, nil, &module)
	return module, ret
}

func (vulkanDriver) DestroyShaderModule(device vk.Device, module vk.ShaderModule) {
	vk.DestroyShaderModule(device, module, nil)
}

func (vulkanDriver) CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result) {
	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(device, info, nil, &layout)
	return layout, ret
}

func (vulkanDriver) DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(device, layout, nil)
}

func (vulkanDriver) CreateGraphicsPipelines(device vk.Device, infos []vk.GraphicsPipelineCreateInfo) ([]vk.Pipeline, vk.Result) {
	var cache vk.PipelineCache
	pipelines := make([]vk.Pipeline, len(infos))
	ret := vk.CreateGraphicsPipelines(device, cache, uint32(len(infos)), infos, nil, pipelines)
	return pipelines, ret
}

func (vulkanDriver) DestroyPipeline(device vk.Device, pipeline vk.Pipeline) {
	vk.DestroyPipeline(device, pipeline, nil)
}
