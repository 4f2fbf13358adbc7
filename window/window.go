// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package window provides the SDL2 window the renderer presents to.
package window

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/devblok/lava/core"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
)

// ResizeHandler is called with the new drawable size. A zero size means
// the window was minimized.
type ResizeHandler func(width, height uint32) error

// New initialises SDL, loads the Vulkan library and opens a window
func New(cfg core.WindowConfiguration, width, height uint32) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, errors.Wrap(err, "sdl.Init()")
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "sdl.VulkanLoadLibrary()")
	}

	flags := uint32(sdl.WINDOW_VULKAN)
	if cfg.Resizable {
		flags |= sdl.WINDOW_RESIZABLE
	}
	window, err := sdl.CreateWindow(cfg.Title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(width),
		int32(height),
		flags)
	if err != nil {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
		return nil, errors.Wrap(err, "sdl.CreateWindow()")
	}

	w := newWindow(log.WithField("component", "window"))
	w.window = window
	w.log.WithFields(log.Fields{
		"title":  cfg.Title,
		"width":  width,
		"height": height,
	}).Debug("window opened")
	return w, nil
}

func newWindow(logger *log.Entry) *Window {
	return &Window{
		running: true,
		log:     logger,
	}
}

// Window is an SDL2 window with a Vulkan surface
type Window struct {
	window    *sdl.Window
	running   bool
	minimized bool
	onResize  ResizeHandler
	log       *log.Entry
}

// ProcAddr returns vkGetInstanceProcAddr of the library SDL loaded
func (w *Window) ProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

// InstanceExtensions lists the instance extensions the surface needs
func (w *Window) InstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

// CreateSurface creates a surface for the window. The caller owns it.
func (w *Window) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := w.window.VulkanCreateSurface(instance)
	if err != nil {
		return nil, errors.Wrap(err, "sdl.VulkanCreateSurface()")
	}
	return vk.SurfaceFromPointer(uintptr(surface)), nil
}

// SetResizeHandler registers the function called when the drawable size changes
func (w *Window) SetResizeHandler(handler ResizeHandler) {
	w.onResize = handler
}

// IsRunning reports whether the window was asked to close
func (w *Window) IsRunning() bool {
	return w.running
}

// Minimized reports whether the window is minimized
func (w *Window) Minimized() bool {
	return w.minimized
}

// DrawableSize returns the size of the area the surface covers
func (w *Window) DrawableSize() (uint32, uint32) {
	width, height := w.window.VulkanGetDrawableSize()
	return uint32(width), uint32(height)
}

// PollEvents handles all pending events. An error returned
// by the resize handler stops polling and is returned.
func (w *Window) PollEvents() error {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		if err := w.handleEvent(event); err != nil {
			return err
		}
	}
	return nil
}

func (w *Window) handleEvent(event sdl.Event) error {
	switch et := event.(type) {
	case *sdl.QuitEvent:
		w.running = false
	case *sdl.KeyboardEvent:
		if et.Type == sdl.KEYDOWN && et.Keysym.Sym == sdl.K_ESCAPE {
			w.running = false
		}
	case *sdl.WindowEvent:
		switch et.Event {
		case sdl.WINDOWEVENT_MINIMIZED:
			w.minimized = true
			return w.resize(0, 0)
		case sdl.WINDOWEVENT_RESTORED:
			if !w.minimized {
				return nil
			}
			w.minimized = false
			width, height := w.size(et)
			return w.resize(width, height)
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			width, height := w.size(et)
			return w.resize(width, height)
		}
	}
	return nil
}

// size prefers the drawable size, which differs from the
// window size on high density displays
func (w *Window) size(event *sdl.WindowEvent) (uint32, uint32) {
	if w.window != nil {
		return w.DrawableSize()
	}
	if event.Data1 < 0 || event.Data2 < 0 {
		return 0, 0
	}
	return uint32(event.Data1), uint32(event.Data2)
}

func (w *Window) resize(width, height uint32) error {
	w.log.WithFields(log.Fields{
		"width":  width,
		"height": height,
	}).Debug("window resized")
	if w.onResize == nil {
		return nil
	}
	return w.onResize(width, height)
}

// Destroy closes the window and shuts SDL down
func (w *Window) Destroy() {
	if w.window != nil {
		if err := w.window.Destroy(); err != nil {
			w.log.WithError(err).Warn("destroying window")
		}
		w.window = nil
	}
	sdl.VulkanUnloadLibrary()
	sdl.Quit()
}
