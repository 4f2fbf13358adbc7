// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"
	"math"
	"strings"
	"unsafe"

	qt "github.com/frankban/quicktest"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/lava/core"
)

// fakeGPU is a physical device served by fakeDriver.
type fakeGPU struct {
	name       string
	families   []vk.QueueFamilyProperties
	extensions []string
	present    bool
}

// fakeDriver implements Driver without a GPU. Every handle it creates is
// tracked until destroyed, so tests can check for leaks, double destroys
// and destruction order.
type fakeDriver struct {
	gpus     []fakeGPU
	physical map[vk.PhysicalDevice]*fakeGPU

	formats      []vk.SurfaceFormat
	capabilities vk.SurfaceCapabilities
	presentModes []vk.PresentMode

	// results returned in order by AcquireNextImage and QueuePresent,
	// vk.Success once exhausted
	acquireResults []vk.Result
	presentResults []vk.Result

	// fail makes the named create call return the result
	fail map[string]vk.Result

	// handles keeps every minted handle reachable, Vulkan handle types
	// are not traced by the garbage collector
	handles []*uint64
	live    map[unsafe.Pointer]string
	invalid []string
	calls   []string

	signaled  map[vk.Fence]bool
	images    map[vk.Swapchain][]vk.Image
	extents   map[vk.Framebuffer]vk.Extent2D
	nextImage uint32

	deviceInfo    vk.DeviceCreateInfo
	swapchainInfo vk.SwapchainCreateInfo
	poolFlags     vk.CommandPoolCreateFlags
	poolResets    []vk.CommandPoolResetFlags
	submits       []vk.SubmitInfo
	clears        []vk.ClearValue
	draws         int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		gpus: []fakeGPU{{
			name: "Fake GPU",
			families: []vk.QueueFamilyProperties{{
				QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit),
				QueueCount: 2,
			}},
			extensions: []string{core.SwapchainExtension},
			present:    true,
		}},
		formats: []vk.SurfaceFormat{{
			Format:     vk.FormatB8g8r8a8Unorm,
			ColorSpace: vk.ColorSpaceSrgbNonlinear,
		}},
		capabilities: vk.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           8,
			CurrentExtent:           vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
			MinImageExtent:          vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          vk.Extent2D{Width: 4096, Height: 4096},
			MaxImageArrayLayers:     1,
			SupportedTransforms:     vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit),
			CurrentTransform:        vk.SurfaceTransformIdentityBit,
			SupportedCompositeAlpha: vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit),
		},
		presentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		fail:         make(map[string]vk.Result),
		physical:     make(map[vk.PhysicalDevice]*fakeGPU),
		live:         make(map[unsafe.Pointer]string),
		signaled:     make(map[vk.Fence]bool),
		images:       make(map[vk.Swapchain][]vk.Image),
		extents:      make(map[vk.Framebuffer]vk.Extent2D),
	}
}

// handle mints a unique address that stays valid for the life of f.
func (f *fakeDriver) handle() unsafe.Pointer {
	h := new(uint64)
	*h = uint64(len(f.handles))
	f.handles = append(f.handles, h)
	return unsafe.Pointer(h)
}

func (f *fakeDriver) create(kind string) unsafe.Pointer {
	p := f.handle()
	f.live[p] = kind
	f.calls = append(f.calls, "Create"+kind)
	return p
}

func (f *fakeDriver) destroy(kind string, p unsafe.Pointer) {
	f.calls = append(f.calls, "Destroy"+kind)
	if got, ok := f.live[p]; !ok || got != kind {
		f.invalid = append(f.invalid, fmt.Sprintf("destroy of unknown %s %p", kind, p))
		return
	}
	delete(f.live, p)
}

func (f *fakeDriver) failed(call string) (vk.Result, bool) {
	ret, ok := f.fail[call]
	return ret, ok
}

// count returns how many live handles of kind exist.
func (f *fakeDriver) count(kind string) int {
	n := 0
	for _, k := range f.live {
		if k == kind {
			n++
		}
	}
	return n
}

// leaks lists every handle still alive.
func (f *fakeDriver) leaks() []string {
	var leaked []string
	for _, kind := range f.live {
		leaked = append(leaked, kind)
	}
	return leaked
}

// called filters the call log down to calls with one of the prefixes.
func (f *fakeDriver) called(prefixes ...string) []string {
	var calls []string
	for _, call := range f.calls {
		for _, prefix := range prefixes {
			if strings.HasPrefix(call, prefix) {
				calls = append(calls, call)
				break
			}
		}
	}
	return calls
}

func (f *fakeDriver) newSurface() vk.Surface {
	return vk.Surface(f.create("Surface"))
}

/* Instance */

func (f *fakeDriver) CreateInstance(info *vk.InstanceCreateInfo) (vk.Instance, vk.Result) {
	if ret, ok := f.failed("vk.CreateInstance"); ok {
		return nil, ret
	}
	return vk.Instance(f.create("Instance")), vk.Success
}

func (f *fakeDriver) DestroyInstance(instance vk.Instance) {
	f.destroy("Instance", unsafe.Pointer(instance))
}

func (f *fakeDriver) EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, vk.Result) {
	if ret, ok := f.failed("vk.EnumeratePhysicalDevices"); ok {
		return nil, ret
	}
	var devices []vk.PhysicalDevice
	for idx := range f.gpus {
		gpu := vk.PhysicalDevice(f.handle())
		f.physical[gpu] = &f.gpus[idx]
		devices = append(devices, gpu)
	}
	return devices, vk.Success
}

func (f *fakeDriver) DestroySurface(instance vk.Instance, surface vk.Surface) {
	f.destroy("Surface", unsafe.Pointer(surface))
}

/* Physical device */

func (f *fakeDriver) GetPhysicalDeviceProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceProperties {
	properties := vk.PhysicalDeviceProperties{
		DeviceID:      0x1234,
		VendorID:      0x10de,
		DriverVersion: vk.MakeVersion(1, 2, 3),
		DeviceType:    vk.PhysicalDeviceTypeDiscreteGpu,
	}
	copy(properties.DeviceName[:], f.physical[gpu].name)
	return properties
}

func (f *fakeDriver) GetPhysicalDeviceFeatures(gpu vk.PhysicalDevice) vk.PhysicalDeviceFeatures {
	return vk.PhysicalDeviceFeatures{}
}

func (f *fakeDriver) GetPhysicalDeviceMemoryProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties {
	properties := vk.PhysicalDeviceMemoryProperties{
		MemoryHeapCount: 2,
	}
	properties.MemoryHeaps[0].Size = 256 << 20
	properties.MemoryHeaps[1].Size = 768 << 20
	return properties
}

func (f *fakeDriver) GetPhysicalDeviceQueueFamilyProperties(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties {
	return f.physical[gpu].families
}

func (f *fakeDriver) EnumerateDeviceExtensions(gpu vk.PhysicalDevice) ([]string, vk.Result) {
	return f.physical[gpu].extensions, vk.Success
}

func (f *fakeDriver) EnumerateDeviceLayers(gpu vk.PhysicalDevice) ([]string, vk.Result) {
	return nil, vk.Success
}

func (f *fakeDriver) GetPhysicalDeviceSurfaceSupport(gpu vk.PhysicalDevice, family uint32, surface vk.Surface) (bool, vk.Result) {
	return f.physical[gpu].present, vk.Success
}

func (f *fakeDriver) GetPhysicalDeviceSurfaceCapabilities(gpu vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, vk.Result) {
	if ret, ok := f.failed("vk.GetPhysicalDeviceSurfaceCapabilities"); ok {
		return vk.SurfaceCapabilities{}, ret
	}
	return f.capabilities, vk.Success
}

func (f *fakeDriver) GetPhysicalDeviceSurfaceFormats(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, vk.Result) {
	return f.formats, vk.Success
}

func (f *fakeDriver) GetPhysicalDeviceSurfacePresentModes(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, vk.Result) {
	return f.presentModes, vk.Success
}

/* Device */

func (f *fakeDriver) CreateDevice(gpu vk.PhysicalDevice, info *vk.DeviceCreateInfo) (vk.Device, vk.Result) {
	if ret, ok := f.failed("vk.CreateDevice"); ok {
		return nil, ret
	}
	f.deviceInfo = *info
	return vk.Device(f.create("Device")), vk.Success
}

func (f *fakeDriver) DestroyDevice(device vk.Device) {
	f.destroy("Device", unsafe.Pointer(device))
}

func (f *fakeDriver) DeviceWaitIdle(device vk.Device) vk.Result {
	f.calls = append(f.calls, "DeviceWaitIdle")
	return vk.Success
}

func (f *fakeDriver) GetDeviceQueue(device vk.Device, family, index uint32) vk.Queue {
	return vk.Queue(f.handle())
}

/* Commands */

func (f *fakeDriver) CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo) (vk.CommandPool, vk.Result) {
	f.poolFlags = info.Flags
	return vk.CommandPool(f.create("CommandPool")), vk.Success
}

func (f *fakeDriver) ResetCommandPool(device vk.Device, pool vk.CommandPool, flags vk.CommandPoolResetFlags) vk.Result {
	f.poolResets = append(f.poolResets, flags)
	return vk.Success
}

func (f *fakeDriver) DestroyCommandPool(device vk.Device, pool vk.CommandPool) {
	f.destroy("CommandPool", unsafe.Pointer(pool))
}

func (f *fakeDriver) AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo) ([]vk.CommandBuffer, vk.Result) {
	buffers := make([]vk.CommandBuffer, info.CommandBufferCount)
	for idx := range buffers {
		buffers[idx] = vk.CommandBuffer(f.handle())
	}
	return buffers, vk.Success
}

func (f *fakeDriver) FreeCommandBuffers(device vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer) {
	f.calls = append(f.calls, "FreeCommandBuffers")
}

func (f *fakeDriver) ResetCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferResetFlags) vk.Result {
	f.calls = append(f.calls, "ResetCommandBuffer")
	return vk.Success
}

func (f *fakeDriver) BeginCommandBuffer(buffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result {
	f.calls = append(f.calls, "BeginCommandBuffer")
	return vk.Success
}

func (f *fakeDriver) EndCommandBuffer(buffer vk.CommandBuffer) vk.Result {
	f.calls = append(f.calls, "EndCommandBuffer")
	return vk.Success
}

func (f *fakeDriver) CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	f.calls = append(f.calls, "CmdBeginRenderPass")
	f.clears = append(f.clears, info.PClearValues...)
}

func (f *fakeDriver) CmdEndRenderPass(buffer vk.CommandBuffer) {
	f.calls = append(f.calls, "CmdEndRenderPass")
}

func (f *fakeDriver) CmdSetViewport(buffer vk.CommandBuffer, viewports []vk.Viewport) {
	f.calls = append(f.calls, "CmdSetViewport")
}

func (f *fakeDriver) CmdSetScissor(buffer vk.CommandBuffer, scissors []vk.Rect2D) {
	f.calls = append(f.calls, "CmdSetScissor")
}

func (f *fakeDriver) CmdBindPipeline(buffer vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	f.calls = append(f.calls, "CmdBindPipeline")
}

func (f *fakeDriver) CmdDraw(buffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	f.calls = append(f.calls, "CmdDraw")
	f.draws++
}

/* Synchronization */

func (f *fakeDriver) CreateFence(device vk.Device, info *vk.FenceCreateInfo) (vk.Fence, vk.Result) {
	if ret, ok := f.failed("vk.CreateFence"); ok {
		return nil, ret
	}
	fence := vk.Fence(f.create("Fence"))
	f.signaled[fence] = info.Flags&vk.FenceCreateFlags(vk.FenceCreateSignaledBit) != 0
	return fence, vk.Success
}

func (f *fakeDriver) ResetFences(device vk.Device, fences []vk.Fence) vk.Result {
	f.calls = append(f.calls, "ResetFences")
	for _, fence := range fences {
		f.signaled[fence] = false
	}
	return vk.Success
}

// WaitForFences never blocks: unsignaled fences time out immediately.
func (f *fakeDriver) WaitForFences(device vk.Device, fences []vk.Fence, waitAll bool, timeout uint64) vk.Result {
	f.calls = append(f.calls, "WaitForFences")
	for _, fence := range fences {
		if !f.signaled[fence] {
			return vk.Timeout
		}
	}
	return vk.Success
}

func (f *fakeDriver) DestroyFence(device vk.Device, fence vk.Fence) {
	delete(f.signaled, fence)
	f.destroy("Fence", unsafe.Pointer(fence))
}

func (f *fakeDriver) CreateSemaphore(device vk.Device, info *vk.SemaphoreCreateInfo) (vk.Semaphore, vk.Result) {
	return vk.Semaphore(f.create("Semaphore")), vk.Success
}

func (f *fakeDriver) DestroySemaphore(device vk.Device, semaphore vk.Semaphore) {
	f.destroy("Semaphore", unsafe.Pointer(semaphore))
}

/* Render targets */

func (f *fakeDriver) CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo) (vk.RenderPass, vk.Result) {
	return vk.RenderPass(f.create("RenderPass")), vk.Success
}

func (f *fakeDriver) DestroyRenderPass(device vk.Device, renderPass vk.RenderPass) {
	f.destroy("RenderPass", unsafe.Pointer(renderPass))
}

func (f *fakeDriver) CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	if ret, ok := f.failed("vk.CreateImageView"); ok {
		return nil, ret
	}
	return vk.ImageView(f.create("ImageView")), vk.Success
}

func (f *fakeDriver) DestroyImageView(device vk.Device, view vk.ImageView) {
	f.destroy("ImageView", unsafe.Pointer(view))
}

func (f *fakeDriver) CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo) (vk.Framebuffer, vk.Result) {
	if ret, ok := f.failed("vk.CreateFramebuffer"); ok {
		return nil, ret
	}
	framebuffer := vk.Framebuffer(f.create("Framebuffer"))
	f.extents[framebuffer] = vk.Extent2D{Width: info.Width, Height: info.Height}
	return framebuffer, vk.Success
}

func (f *fakeDriver) DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer) {
	delete(f.extents, framebuffer)
	f.destroy("Framebuffer", unsafe.Pointer(framebuffer))
}

/* Swapchain */

func (f *fakeDriver) CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result) {
	if ret, ok := f.failed("vk.CreateSwapchain"); ok {
		return nil, ret
	}
	f.swapchainInfo = *info
	swapchain := vk.Swapchain(f.create("Swapchain"))
	images := make([]vk.Image, info.MinImageCount)
	for idx := range images {
		images[idx] = vk.Image(f.handle())
	}
	f.images[swapchain] = images
	return swapchain, vk.Success
}

func (f *fakeDriver) DestroySwapchain(device vk.Device, swapchain vk.Swapchain) {
	delete(f.images, swapchain)
	f.destroy("Swapchain", unsafe.Pointer(swapchain))
}

func (f *fakeDriver) GetSwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, vk.Result) {
	return f.images[swapchain], vk.Success
}

func (f *fakeDriver) AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result) {
	f.calls = append(f.calls, "AcquireNextImage")
	if semaphore == nil && fence == nil {
		f.invalid = append(f.invalid, "acquire without semaphore or fence")
	}
	ret := vk.Success
	if len(f.acquireResults) > 0 {
		ret, f.acquireResults = f.acquireResults[0], f.acquireResults[1:]
	}
	if ret != vk.Success && ret != vk.Suboptimal {
		return 0, ret
	}
	index := f.nextImage % uint32(len(f.images[swapchain]))
	f.nextImage++
	return index, ret
}

func (f *fakeDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result {
	f.calls = append(f.calls, "QueueSubmit")
	if ret, ok := f.failed("vk.QueueSubmit"); ok {
		return ret
	}
	f.submits = append(f.submits, submits...)
	if fence != nil {
		f.signaled[fence] = true
	}
	return vk.Success
}

func (f *fakeDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	f.calls = append(f.calls, "QueuePresent")
	if len(f.presentResults) > 0 {
		ret := f.presentResults[0]
		f.presentResults = f.presentResults[1:]
		return ret
	}
	return vk.Success
}

/* Pipeline */

func (f *fakeDriver) CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, vk.Result) {
	return vk.ShaderModule(f.create("ShaderModule")), vk.Success
}

func (f *fakeDriver) DestroyShaderModule(device vk.Device, module vk.ShaderModule) {
	f.destroy("ShaderModule", unsafe.Pointer(module))
}

func (f *fakeDriver) CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, vk.Result) {
	return vk.PipelineLayout(f.create("PipelineLayout")), vk.Success
}

func (f *fakeDriver) DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout) {
	f.destroy("PipelineLayout", unsafe.Pointer(layout))
}

func (f *fakeDriver) CreateGraphicsPipelines(device vk.Device, infos []vk.GraphicsPipelineCreateInfo) ([]vk.Pipeline, vk.Result) {
	if ret, ok := f.failed("vk.CreateGraphicsPipelines"); ok {
		return nil, ret
	}
	pipelines := make([]vk.Pipeline, len(infos))
	for idx := range pipelines {
		pipelines[idx] = vk.Pipeline(f.create("Pipeline"))
	}
	return pipelines, vk.Success
}

func (f *fakeDriver) DestroyPipeline(device vk.Device, pipeline vk.Pipeline) {
	f.destroy("Pipeline", unsafe.Pointer(pipeline))
}

// testLogger discards output.
func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return log.NewEntry(logger)
}

func newTestInstance(c *qt.C, f *fakeDriver) *Instance {
	instance, err := NewInstance(f, DefaultApplicationInfo, core.InstanceConfiguration{
		Logger: testLogger(),
	})
	c.Assert(err, qt.IsNil)
	return instance
}

func newTestDevice(c *qt.C, f *fakeDriver) (*Instance, *Device) {
	instance := newTestInstance(c, f)
	devices, err := instance.PhysicalDevicesInfo()
	c.Assert(err, qt.IsNil)

	device, err := NewDevice(instance, devices, core.DefaultConfiguration().Device)
	c.Assert(err, qt.IsNil)
	return instance, device
}

func newTestSwapchain(c *qt.C, f *fakeDriver, width, height uint32) (*Instance, *Device, *Swapchain) {
	instance, device := newTestDevice(c, f)
	swapchain, err := NewSwapchain(instance, device, f.newSurface(), width, height, SwapchainConfiguration{})
	c.Assert(err, qt.IsNil)
	return instance, device, swapchain
}

// assertClean checks that everything created through f was destroyed exactly once.
func assertClean(c *qt.C, f *fakeDriver) {
	c.Assert(f.invalid, qt.HasLen, 0)
	c.Assert(f.leaks(), qt.HasLen, 0)
}

// assertExtent compares dimensions only, vk.Extent2D carries unexported
// binding state that DeepEquals would compare too.
func assertExtent(c *qt.C, got vk.Extent2D, width, height uint32) {
	c.Helper()
	c.Assert(got.Width, qt.Equals, width)
	c.Assert(got.Height, qt.Equals, height)
}
