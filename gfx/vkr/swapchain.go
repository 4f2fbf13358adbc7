// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

// FallbackSurfaceFormat is used when the surface accepts any format.
var FallbackSurfaceFormat = vk.SurfaceFormat{
	Format:     vk.FormatB8g8r8a8Srgb,
	ColorSpace: vk.ColorSpaceSrgbNonlinear,
}

// DefaultImageCount requests double buffering.
const DefaultImageCount = 2

// State of a Swapchain.
type State int

// Swapchain states. A swapchain moves from Uninitialized to Ready, through
// Resizing back to Ready on every resize and ends TornDown. A failed resize
// leaves it Lost until the next successful resize.
const (
	StateUninitialized State = iota
	StateReady
	StateResizing
	StateLost
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateResizing:
		return "resizing"
	case StateLost:
		return "lost"
	case StateTornDown:
		return "torn down"
	}
	return "unknown"
}

// SwapchainConfiguration tunes swapchain negotiation.
type SwapchainConfiguration struct {
	// ImageCount is the requested number of presentable images,
	// clamped to what the surface allows. Zero means DefaultImageCount.
	ImageCount uint32
}

// NewSwapchain negotiates a swapchain for surface and builds a render pass and
// one framebuffer per presentable image. The swapchain takes ownership of
// surface once it is created and destroys it on Teardown.
func NewSwapchain(instance *Instance, device *Device, surface vk.Surface, width, height uint32, cfg SwapchainConfiguration) (*Swapchain, error) {
	if width == 0 || height == 0 {
		return nil, errors.Wrapf(ErrInvalidExtent, "%dx%d", width, height)
	}
	if cfg.ImageCount == 0 {
		cfg.ImageCount = DefaultImageCount
	}

	m := &Swapchain{
		instance:      instance,
		device:        device,
		driver:        device.Driver(),
		log:           device.Logger().WithField("component", "swapchain"),
		configuration: cfg,
		surface:       surface,
		width:         width,
		height:        height,
		state:         StateUninitialized,
	}

	imageAvailable, err := NewSemaphore(device)
	if err != nil {
		return nil, err
	}
	m.imageAvailable = imageAvailable

	if err := m.build(); err != nil {
		m.releaseTargets()
		m.imageAvailable.Release()
		return nil, err
	}

	m.state = StateReady
	m.log.WithFields(log.Fields{
		"width":  m.width,
		"height": m.height,
		"images": len(m.framebuffers),
		"format": m.format.Format,
	}).Info("swapchain created")
	return m, nil
}

// Swapchain owns the swapchain of a surface together with the render pass and
// framebuffers derived from it, and drives image acquisition and presentation.
type Swapchain struct {
	instance *Instance
	device   *Device
	driver   Driver
	log      *log.Entry

	configuration SwapchainConfiguration

	surface     vk.Surface
	swapchain   vk.Swapchain
	format      vk.SurfaceFormat
	presentMode vk.PresentMode
	images      []vk.Image

	renderPass     *RenderPass
	framebuffers   []*Framebuffer
	imageAvailable *Semaphore

	width  uint32
	height uint32

	state      State
	imageIndex uint32
	acquired   bool
	suboptimal bool
}

func (m *Swapchain) build() error {
	gpu := m.device.NativePhysicalHandle()
	device := m.device.NativeLogicalHandle()

	/* Surface negotiation */
	formats, ret := m.driver.GetPhysicalDeviceSurfaceFormats(gpu, m.surface)
	if err := check("vk.GetPhysicalDeviceSurfaceFormats", ret); err != nil {
		return err
	}
	format, err := chooseSurfaceFormat(formats)
	if err != nil {
		return err
	}
	if format.Format != formats[0].Format {
		m.log.WithField("format", format.Format).Warn("surface accepts any format, using fallback")
	}

	capabilities, ret := m.driver.GetPhysicalDeviceSurfaceCapabilities(gpu, m.surface)
	if err := check("vk.GetPhysicalDeviceSurfaceCapabilities", ret); err != nil {
		return err
	}

	modes, ret := m.driver.GetPhysicalDeviceSurfacePresentModes(gpu, m.surface)
	if err := check("vk.GetPhysicalDeviceSurfacePresentModes", ret); err != nil {
		return err
	}
	presentMode := choosePresentMode(modes)
	if presentMode != vk.PresentModeMailbox {
		m.log.Warn("mailbox present mode unsupported, using fifo")
	}

	extent := chooseExtent(capabilities, m.width, m.height)
	if extent.Width == 0 || extent.Height == 0 {
		return errors.Wrapf(ErrInvalidExtent, "surface extent %dx%d", extent.Width, extent.Height)
	}

	/* Render pass */
	renderPass, err := NewRenderPass(m.device, format.Format)
	if err != nil {
		return err
	}
	m.renderPass = renderPass

	/* Swapchain */
	scci := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          m.surface,
		MinImageCount:    chooseImageCount(capabilities, m.configuration.ImageCount),
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     chooseTransform(capabilities),
		CompositeAlpha:   chooseCompositeAlpha(capabilities),
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}

	swapchain, ret := m.driver.CreateSwapchain(device, &scci)
	if err := check("vk.CreateSwapchain", ret); err != nil {
		return err
	}
	m.swapchain = swapchain

	images, ret := m.driver.GetSwapchainImages(device, swapchain)
	if err := check("vk.GetSwapchainImages", ret); err != nil {
		return err
	}

	m.images = images
	m.format = format
	m.presentMode = presentMode
	m.width = extent.Width
	m.height = extent.Height

	return m.buildFramebuffers()
}

func (m *Swapchain) buildFramebuffers() error {
	for idx, image := range m.images {
		view, err := NewImageView(m.device, image, m.format.Format, vk.ImageViewType2d, DefaultSubresourceRange)
		if err != nil {
			return errors.Wrapf(err, "image %d", idx)
		}
		framebuffer, err := NewFramebuffer(m.device, m.renderPass, []*ImageView{view}, m.width, m.height, 1)
		if err != nil {
			view.Release()
			return errors.Wrapf(err, "image %d", idx)
		}
		m.framebuffers = append(m.framebuffers, framebuffer)
	}
	return nil
}

// releaseTargets destroys everything derived from the surface:
// framebuffers and their views first, then the swapchain, then the render pass.
func (m *Swapchain) releaseTargets() {
	for _, framebuffer := range m.framebuffers {
		framebuffer.Release()
	}
	m.framebuffers = nil

	if m.swapchain != nil {
		m.driver.DestroySwapchain(m.device.NativeLogicalHandle(), m.swapchain)
		m.swapchain = nil
	}
	m.images = nil

	m.renderPass.Release()
	m.renderPass = nil

	m.acquired = false
	m.suboptimal = false
}

// BeginFrame acquires the next presentable image, waiting as long as it takes.
// ImageAvailable is signaled once the image can be rendered to. When the
// swapchain no longer matches the surface ErrSwapchainOutOfDate is returned
// and the caller is expected to Resize.
func (m *Swapchain) BeginFrame() (uint32, error) {
	if m.state != StateReady {
		return 0, errors.Wrapf(ErrInvalidState, "begin frame while %s", m.state)
	}

	index, ret := m.driver.AcquireNextImage(m.device.NativeLogicalHandle(), m.swapchain,
		math.MaxUint64, m.imageAvailable.Handle(), nil)
	switch ret {
	case vk.ErrorOutOfDate:
		m.log.Warn("swapchain out of date on acquire")
		return 0, withSentinel(check("vk.AcquireNextImage", ret), ErrSwapchainOutOfDate)
	case vk.Suboptimal:
		if !m.suboptimal {
			m.log.Debug("swapchain suboptimal on acquire")
		}
		m.suboptimal = true
	}
	if err := check("vk.AcquireNextImage", ret); err != nil {
		return 0, err
	}
	if int(index) >= len(m.framebuffers) {
		return 0, errors.Newf("vk.AcquireNextImage(): image %d of %d", index, len(m.framebuffers))
	}

	m.imageIndex = index
	m.acquired = true
	return index, nil
}

// EndFrame presents the acquired image on queue. A swapchain that went out of
// date or suboptimal while presenting yields ErrSwapchainOutOfDate.
func (m *Swapchain) EndFrame(queue *Queue) error {
	if m.state != StateReady || !m.acquired {
		return errors.Wrapf(ErrInvalidState, "end frame while %s without acquired image", m.state)
	}

	pi := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{m.swapchain},
		PImageIndices:  []uint32{m.imageIndex},
	}
	ret := m.driver.QueuePresent(queue.Handle(), &pi)
	m.acquired = false

	switch ret {
	case vk.ErrorOutOfDate:
		m.log.Warn("swapchain out of date on present")
		return withSentinel(check("vk.QueuePresent", ret), ErrSwapchainOutOfDate)
	case vk.Suboptimal:
		m.log.Warn("swapchain suboptimal on present")
		return errors.Wrap(ErrSwapchainOutOfDate, "vk.QueuePresent(): VK_SUBOPTIMAL_KHR")
	}
	return check("vk.QueuePresent", ret)
}

// AbandonFrame drops the acquired image without presenting it. Nothing will
// wait on ImageAvailable for that frame, so it is replaced by a fresh
// semaphore once the device is idle.
func (m *Swapchain) AbandonFrame() error {
	if !m.acquired {
		return nil
	}
	m.acquired = false
	if err := m.device.WaitIdle(); err != nil {
		return err
	}
	imageAvailable, err := NewSemaphore(m.device)
	if err != nil {
		return err
	}
	m.imageAvailable.Release()
	m.imageAvailable = imageAvailable
	m.log.WithField("image", m.imageIndex).Debug("frame abandoned")
	return nil
}

// Resize rebuilds the swapchain, render pass and framebuffers for the new size.
// If rebuilding fails everything built so far is released and the swapchain
// becomes Lost; calling Resize again retries.
func (m *Swapchain) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return errors.Wrapf(ErrInvalidExtent, "%dx%d", width, height)
	}
	switch m.state {
	case StateReady, StateLost:
	default:
		return errors.Wrapf(ErrInvalidState, "resize while %s", m.state)
	}

	m.state = StateResizing
	if err := m.device.WaitIdle(); err != nil {
		m.state = StateLost
		return err
	}

	old := len(m.framebuffers)
	m.releaseTargets()
	m.width = width
	m.height = height

	if err := m.build(); err != nil {
		m.releaseTargets()
		m.state = StateLost
		m.log.WithError(err).Error("swapchain recreation failed")
		return errors.Wrap(err, "recreating swapchain")
	}

	m.state = StateReady
	m.log.WithFields(log.Fields{
		"width":    m.width,
		"height":   m.height,
		"images":   len(m.framebuffers),
		"previous": old,
	}).Info("swapchain recreated")
	return nil
}

// Teardown destroys the framebuffers, the swapchain and the render pass, and
// then the surface. Calling it more than once does nothing.
func (m *Swapchain) Teardown() {
	if m == nil || m.state == StateTornDown {
		return
	}
	if err := m.device.WaitIdle(); err != nil {
		m.log.WithError(err).Warn("device not idle at teardown")
	}

	m.releaseTargets()
	m.instance.DestroySurface(m.surface)
	m.surface = nil
	m.imageAvailable.Release()
	m.state = StateTornDown
	m.log.Debug("swapchain torn down")
}

// Release implements gfx.Releasable.
func (m *Swapchain) Release() {
	m.Teardown()
}

// State returns the lifecycle state.
func (m *Swapchain) State() State {
	return m.state
}

// RenderPass returns the active render pass.
func (m *Swapchain) RenderPass() *RenderPass {
	return m.renderPass
}

// Framebuffer returns the framebuffer of the acquired image.
func (m *Swapchain) Framebuffer() *Framebuffer {
	if int(m.imageIndex) >= len(m.framebuffers) {
		return nil
	}
	return m.framebuffers[m.imageIndex]
}

// Framebuffers returns one framebuffer per presentable image.
func (m *Swapchain) Framebuffers() []*Framebuffer {
	framebuffers := make([]*Framebuffer, len(m.framebuffers))
	copy(framebuffers, m.framebuffers)
	return framebuffers
}

// ImageCount returns the number of presentable images.
func (m *Swapchain) ImageCount() int {
	return len(m.images)
}

// ImageIndex returns the index of the last acquired image.
func (m *Swapchain) ImageIndex() uint32 {
	return m.imageIndex
}

// ImageAvailable is signaled when the image acquired by BeginFrame is ready.
func (m *Swapchain) ImageAvailable() *Semaphore {
	return m.imageAvailable
}

// Format returns the negotiated surface format.
func (m *Swapchain) Format() vk.SurfaceFormat {
	return m.format
}

// PresentMode returns the negotiated present mode.
func (m *Swapchain) PresentMode() vk.PresentMode {
	return m.presentMode
}

// Suboptimal reports whether the last acquire found the swapchain suboptimal.
func (m *Swapchain) Suboptimal() bool {
	return m.suboptimal
}

// Width of the presentable images.
func (m *Swapchain) Width() uint32 {
	return m.width
}

// Height of the presentable images.
func (m *Swapchain) Height() uint32 {
	return m.height
}

// Extent returns the size of the presentable images.
func (m *Swapchain) Extent() vk.Extent2D {
	return vk.Extent2D{Width: m.width, Height: m.height}
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) (vk.SurfaceFormat, error) {
	switch {
	case len(formats) == 0:
		return vk.SurfaceFormat{}, ErrSurfaceUnsupportedFormat
	case len(formats) == 1 && formats[0].Format == vk.FormatUndefined:
		return FallbackSurfaceFormat, nil
	}
	return formats[0], nil
}

func choosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	return vk.PresentModeFifo
}

func chooseImageCount(capabilities vk.SurfaceCapabilities, requested uint32) uint32 {
	count := requested
	if count < capabilities.MinImageCount {
		count = capabilities.MinImageCount
	}
	if capabilities.MaxImageCount > 0 && count > capabilities.MaxImageCount {
		count = capabilities.MaxImageCount
	}
	return count
}

// chooseExtent follows the surface's current extent unless the surface lets
// the swapchain decide, in which case the requested size is clamped.
func chooseExtent(capabilities vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		return capabilities.CurrentExtent
	}
	return vk.Extent2D{
		Width:  clamp(width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: clamp(height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

func chooseTransform(capabilities vk.SurfaceCapabilities) vk.SurfaceTransformFlagBits {
	if capabilities.SupportedTransforms&vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit) != 0 {
		return vk.SurfaceTransformIdentityBit
	}
	return capabilities.CurrentTransform
}

func chooseCompositeAlpha(capabilities vk.SurfaceCapabilities) vk.CompositeAlphaFlagBits {
	compositeAlphaFlags := []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaInheritBit,
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
	}
	for _, flag := range compositeAlphaFlags {
		if capabilities.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			return flag
		}
	}
	return vk.CompositeAlphaInheritBit
}

func clamp(v, min, max uint32) uint32 {
	if v < min {
		return min
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
