// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"
)

// Driver is the set of Vulkan entry points the renderer core calls into.
// Structures returned by a Driver are already dereferenced.
type Driver interface {
	/* Instance */
	CreateInstance(info *vk.InstanceCreateInfo) (vk.Instance, vk.Result)
	DestroyInstance(instance vk.Instance)
	EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, vk.Result)
	DestroySurface(instance vk.Instance, surface vk.Surface)

	/* Physical device */
	GetPhysicalDeviceProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceProperties
	GetPhysicalDeviceFeatures(gpu vk.PhysicalDevice) vk.PhysicalDeviceFeatures
	GetPhysicalDeviceMemoryProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties
	GetPhysicalDeviceQueueFamilyProperties(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties
	EnumerateDeviceExtensions(gpu vk.PhysicalDevice) ([]string, vk.Result)
	EnumerateDeviceLayers(gpu vk.PhysicalDevice) ([]string, vk.Result)
	GetPhysicalDeviceSurfaceSupport(gpu vk.PhysicalDevice, family uint32, surface vk.Surface) (bool, vk.Result)
	GetPhysicalDeviceSurfaceCapabilities(gpu vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, vk.Result)
	GetPhysicalDeviceSurfaceFormats(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, vk.Result)
	GetPhysicalDeviceSurfacePresentModes(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, vk.Result)

	/* Device */
	CreateDevice(gpu vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, vk.Result)
	DestroyDevice(device vk.Device)
	DeviceWaitIdle(device vk.Device) vk.Result
	GetDeviceQueue(device vk.Device, family, index uint32) vk.Queue

	/* Commands */
	CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, vk.Result)
	ResetCommandPool(device vk.Device, pool vk.CommandPool, flags vk.CommandPoolResetFlags) vk.Result
	DestroyCommandPool(device vk.Device, pool vk.CommandPool)
	AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, vk.Result)
	FreeCommandBuffers(device vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer)
	ResetCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferResetFlags) vk.Result
	BeginCommandBuffer(buffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result
	EndCommandBuffer(buffer vk.CommandBuffer) vk.Result
	CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents)
	CmdEndRenderPass(buffer vk.CommandBuffer)
	CmdSetViewport(buffer vk.CommandBuffer, viewports []vk.Viewport)
	CmdSetScissor(buffer vk.CommandBuffer, scissors []vk.Rect2D)
	CmdBindPipeline(buffer vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline)
	CmdDraw(buffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)

	/* Synchronization */
	CreateFence(device vk.Device, info *vk.FenceCreateInfo) (vk.Fence, vk.Result)
	ResetFences(device vk.Device, fences []vk.Fence) vk.Result
	WaitForFences(device vk.Device, fences []vk.Fence, waitAll bool, timeout uint64) vk.Result
	DestroyFence(device vk.Device, fence vk.Fence)
	CreateSemaphore(device vk.Device, info *vk.SemaphoreCreateInfo) (vk.Semaphore, vk.Result)
	DestroySemaphore(device vk.Device, semaphore vk.Semaphore)

	/* Render targets */
	CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, vk.Result)
	DestroyRenderPass(device vk.Device, renderPass vk.RenderPass)
	CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result)
	DestroyImageView(device vk.Device, view vk.ImageView)
	CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result)
	DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer)

	/* Swapchain */
	CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result)
	DestroySwapchain(device vk.Device, swapchain vk.Swapchain)
	GetSwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, vk.Result)
	AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result)
	QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result
	QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result

	/* Pipeline */
	CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result)
	DestroyShaderModule(device vk.Device, module vk.ShaderModule)
	CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result)
	DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout)
	CreateGraphicsPipelines(device vk.Device, infos []vk.GraphicsPipelineCreateInfo) ([]vk.Pipeline, vk.Result)
	DestroyPipeline(device vk.Device, pipeline vk.Pipeline)
}
