// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/cockroachdb/errors"
	"github.com/devblok/lava/core"
	"github.com/devblok/lava/gfx"
	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
)

// ClearStep is how much the red channel of the clear color grows every frame.
const ClearStep = 0.002

// triangleVertices is the vertex count of the pipeline's generated triangle.
const triangleVertices = 3

var _ core.Renderer = (*Renderer)(nil)

// NewRenderer creates a renderer presenting to surface. It takes ownership of
// surface, which is destroyed with the renderer or when construction fails.
// Without shaders every frame only clears the screen.
func NewRenderer(instance *Instance, device *Device, surface vk.Surface, shaders []core.ShaderSource, cfg core.RendererConfiguration) (*Renderer, error) {
	r := &Renderer{
		instance:      instance,
		device:        device,
		log:           device.Logger().WithField("component", "renderer"),
		configuration: cfg,
		width:         cfg.ScreenWidth,
		height:        cfg.ScreenHeight,
		clear:         glm.Vec4{0, 0.3, 0.3, 1},
	}
	if r.configuration.FenceTimeout == 0 {
		r.configuration.FenceTimeout = NoTimeout
	}

	if err := r.setup(surface, shaders); err != nil {
		if r.swapchain == nil {
			instance.DestroySurface(surface)
		}
		r.Release()
		return nil, err
	}

	r.log.WithFields(log.Fields{
		"family":   r.queue.Family(),
		"images":   r.swapchain.ImageCount(),
		"pipeline": r.pipeline != nil,
	}).Info("renderer ready")
	return r, nil
}

// Renderer records, submits and presents one frame at a time on a single queue.
type Renderer struct {
	instance *Instance
	device   *Device
	log      *log.Entry

	configuration core.RendererConfiguration

	queue     *Queue
	pool      *CommandPool
	buffer    *CommandBuffer
	fences    *Fences
	swapchain *Swapchain
	shaders   []*Shader
	pipeline  *Pipeline

	width     uint32
	height    uint32
	suspended bool
	frames    uint64
	clear     glm.Vec4
}

func (r *Renderer) setup(surface vk.Surface, sources []core.ShaderSource) error {
	family, err := r.presentFamily(surface)
	if err != nil {
		return err
	}
	if r.queue, err = r.device.Queue(family, 0); err != nil {
		return err
	}

	if r.pool, err = NewCommandPool(r.device, family); err != nil {
		return err
	}
	buffers, err := r.pool.Allocate(1)
	if err != nil {
		return err
	}
	r.buffer = buffers[0]

	if r.fences, err = NewFences(r.device, 1); err != nil {
		return err
	}

	for _, source := range sources {
		shader, err := NewShader(r.device, source)
		if err != nil {
			return err
		}
		r.shaders = append(r.shaders, shader)
	}

	if r.swapchain, err = NewSwapchain(r.instance, r.device, surface, r.width, r.height, SwapchainConfiguration{
		ImageCount: r.configuration.SwapchainSize,
	}); err != nil {
		return err
	}
	r.width, r.height = r.swapchain.Width(), r.swapchain.Height()

	return r.buildPipeline()
}

// presentFamily picks the first queue family that can both draw and present to surface.
func (r *Renderer) presentFamily(surface vk.Surface) (uint32, error) {
	gpu := r.device.NativePhysicalHandle()
	for _, family := range r.device.Info().QueueFamilies {
		if !family.Supports(vk.QueueGraphicsBit) {
			continue
		}
		supported, ret := r.device.Driver().GetPhysicalDeviceSurfaceSupport(gpu, family.Index, surface)
		if err := check("vk.GetPhysicalDeviceSurfaceSupport", ret); err != nil {
			return 0, err
		}
		if supported {
			return family.Index, nil
		}
	}
	return 0, errors.New("no queue family supports both graphics and presentation")
}

func (r *Renderer) buildPipeline() error {
	if len(r.shaders) == 0 {
		return nil
	}
	pipeline, err := NewPipeline(r.device, r.swapchain.RenderPass(), r.shaders)
	if err != nil {
		return err
	}
	r.pipeline = pipeline
	return nil
}

// Draw renders one frame. When the swapchain went out of date the frame is
// dropped and the swapchain is recreated instead.
func (r *Renderer) Draw() error {
	if r.suspended {
		return nil
	}
	if r.swapchain.State() == StateLost {
		if err := r.recreate(); err != nil || r.suspended {
			return err
		}
	}

	if _, err := r.swapchain.BeginFrame(); errors.Is(err, ErrSwapchainOutOfDate) {
		return r.recreate()
	} else if err != nil {
		return err
	}

	if err := r.record(r.swapchain.Framebuffer()); err != nil {
		return r.abandon(err)
	}
	if err := r.queue.Submit(r.buffer, r.swapchain.ImageAvailable(), r.fences.Get(0)); err != nil {
		return r.abandon(err)
	}
	if err := r.fences.Wait(r.configuration.FenceTimeout); err != nil {
		return err
	}
	if err := r.fences.Reset(); err != nil {
		return err
	}

	if err := r.swapchain.EndFrame(r.queue); errors.Is(err, ErrSwapchainOutOfDate) {
		return r.recreate()
	} else if err != nil {
		return err
	}

	r.frames++
	return nil
}

// abandon gives up on a frame that was acquired but never submitted.
func (r *Renderer) abandon(cause error) error {
	if err := r.swapchain.AbandonFrame(); err != nil {
		r.log.WithError(err).Warn("abandoning frame")
	}
	return cause
}

func (r *Renderer) record(framebuffer *Framebuffer) error {
	if err := r.buffer.Reset(); err != nil {
		return err
	}
	if err := r.buffer.Begin(); err != nil {
		return err
	}

	r.buffer.BeginRenderPass(r.swapchain.RenderPass(), framebuffer, r.nextClearColor())
	r.buffer.SetViewport(glm.Vec2{float32(framebuffer.Width()), float32(framebuffer.Height())})
	r.buffer.SetScissor(framebuffer.Extent())
	if r.pipeline != nil {
		r.buffer.BindPipeline(r.pipeline)
		r.buffer.Draw(triangleVertices, 1)
	}
	r.buffer.EndRenderPass()

	return r.buffer.End()
}

func (r *Renderer) nextClearColor() glm.Vec4 {
	r.clear[0] += ClearStep
	if r.clear[0] > 1 {
		r.clear[0] = 0
	}
	return r.clear
}

// Resize recreates the swapchain for the new window size.
// A zero dimension suspends drawing until a non zero size arrives.
func (r *Renderer) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		if !r.suspended {
			r.log.Debug("drawing suspended")
		}
		r.suspended = true
		return nil
	}
	r.suspended = false
	if r.swapchain.State() == StateReady && width == r.width && height == r.height {
		return nil
	}
	r.width, r.height = width, height
	return r.recreate()
}

func (r *Renderer) recreate() error {
	r.pipeline.Release()
	r.pipeline = nil

	if err := r.swapchain.Resize(r.width, r.height); errors.Is(err, ErrInvalidExtent) {
		// minimized surfaces report a zero extent
		r.log.Debug("surface has no area, drawing suspended")
		r.suspended = true
		return nil
	} else if err != nil {
		return err
	}
	if err := r.pool.Reset(); err != nil {
		return err
	}
	r.width, r.height = r.swapchain.Width(), r.swapchain.Height()
	return r.buildPipeline()
}

// Frames returns the number of frames presented.
func (r *Renderer) Frames() uint64 {
	return r.frames
}

// Swapchain returns the swapchain the renderer presents to.
func (r *Renderer) Swapchain() *Swapchain {
	return r.swapchain
}

// Suspended reports whether drawing waits for a non zero window size.
func (r *Renderer) Suspended() bool {
	return r.suspended
}

// ClearColor returns the clear color of the last recorded frame.
func (r *Renderer) ClearColor() glm.Vec4 {
	return r.clear
}

// Release waits for the device and destroys everything the renderer created,
// the surface included.
func (r *Renderer) Release() {
	if r == nil {
		return
	}
	if err := r.device.WaitIdle(); err != nil {
		r.log.WithError(err).Warn("device not idle at release")
	}

	items := []gfx.Releasable{r.pipeline}
	for _, shader := range r.shaders {
		items = append(items, shader)
	}
	gfx.ReleaseAll(append(items, r.swapchain, r.fences, r.pool)...)

	r.pipeline = nil
	r.shaders = nil
	r.swapchain = nil
	r.fences = nil
	r.pool = nil
	r.buffer = nil
}
