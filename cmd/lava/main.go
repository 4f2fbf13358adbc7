// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command lava opens a window and clears it, drawing a triangle when
// compiled shaders are present, until the window is closed.
package main

//go:generate glslangValidator -V -o ../../shaders/triangle.vert.spv ../../shaders/triangle.vert
//go:generate glslangValidator -V -o ../../shaders/triangle.frag.spv ../../shaders/triangle.frag

import (
	"flag"
	"runtime"
	"time"

	"github.com/devblok/lava/core"
	"github.com/devblok/lava/gfx/vkr"
	"github.com/devblok/lava/utility/kar"
	"github.com/devblok/lava/window"
	"github.com/gobuffalo/packr"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/xlab/closer"
)

func init() {
	runtime.LockOSThread()
}

var (
	debug       = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	width       = flag.Uint("width", 0, "Window width, overrides "+core.EnvWidth)
	height      = flag.Uint("height", 0, "Window height, overrides "+core.EnvHeight)
	fps         = flag.Int("fps", -1, "Frame rate cap, 0 unlimits, overrides "+core.EnvFramesPerSecond)
	deviceIndex = flag.Int("device", -1, "Physical device index, overrides "+core.EnvDeviceIndex)
	pack        = flag.String("pack", "", "Load shaders from a kar archive instead of the shaders directory")
)

// Essential globals
var (
	win         *window.Window
	vkInstance  *vkr.Instance
	vkDevice    *vkr.Device
	vkRenderer  *vkr.Renderer
	timeService *core.Time
	logger      *log.Entry
)

func main() {
	flag.Parse()
	defer closer.Close()
	closer.Bind(cleanup)

	configuration, err := core.LoadConfiguration()
	if err != nil {
		log.WithError(err).Fatal("loading configuration")
	}
	applyFlags(&configuration)
	if err := configuration.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	log.SetLevel(configuration.LogLevel)
	logger = log.WithField("session", uuid.New().String())
	configuration.Instance.Logger = logger

	win, err = window.New(configuration.Window,
		configuration.Renderer.ScreenWidth,
		configuration.Renderer.ScreenHeight)
	orExit(err, "opening window")

	driver, err := vkr.NewDriver(win.ProcAddr())
	orExit(err, "loading vulkan")

	configuration.Instance.Extensions = append(configuration.Instance.Extensions, win.InstanceExtensions()...)
	vkInstance, err = vkr.NewInstance(driver, vkr.DefaultApplicationInfo, configuration.Instance)
	orExit(err, "creating instance")

	devices, err := vkInstance.PhysicalDevicesInfo()
	orExit(err, "enumerating physical devices")
	for idx, info := range devices {
		logger.WithFields(log.Fields{
			"index":  idx,
			"name":   info.Name,
			"memory": info.Memory,
		}).Debug("physical device")
	}

	vkDevice, err = vkr.NewDevice(vkInstance, devices, configuration.Device)
	orExit(err, "creating device")

	shaders, err := loadShaders()
	orExit(err, "loading shaders")
	if len(shaders) == 0 {
		logger.Warn("no compiled shaders, clearing only")
	}

	surface, err := win.CreateSurface(vkInstance.Handle())
	orExit(err, "creating surface")

	vkRenderer, err = vkr.NewRenderer(vkInstance, vkDevice, surface, shaders, configuration.Renderer)
	orExit(err, "creating renderer")
	win.SetResizeHandler(vkRenderer.Resize)

	timeService = core.NewTime(configuration.Time)
	for win.IsRunning() {
		orExit(win.PollEvents(), "handling window events")
		orExit(vkRenderer.Draw(), "drawing frame")

		timeService.Frame()
		if stats, ok := timeService.Report(time.Second); ok {
			logger.WithFields(log.Fields{
				"fps":     int(stats.FPS()),
				"average": stats.Average(),
				"worst":   stats.Worst,
				"frames":  vkRenderer.Frames(),
			}).Info("frame statistics")
		}

		if configuration.Time.FramesPerSecond > 0 {
			<-timeService.FpsTicker().C
		}
	}
	logger.Info("window closed")
}

func loadShaders() ([]core.ShaderSource, error) {
	if *pack == "" {
		return core.LoadShaders(packr.NewBox("../../shaders"))
	}
	archive, err := kar.OpenFile(*pack)
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	logger.WithField("author", archive.Header().Author).Debug("shader archive")
	return core.LoadShaders(archive)
}

func applyFlags(cfg *core.Configuration) {
	if *debug {
		cfg.Instance.DebugMode = true
	}
	if *width > 0 {
		cfg.Renderer.ScreenWidth = uint32(*width)
	}
	if *height > 0 {
		cfg.Renderer.ScreenHeight = uint32(*height)
	}
	if *fps >= 0 {
		cfg.Time.FramesPerSecond = *fps
	}
	if *deviceIndex >= 0 {
		cfg.Device.PhysicalDeviceIndex = *deviceIndex
	}
}

func orExit(err error, msg string) {
	if err == nil {
		return
	}
	entry := logger
	if entry == nil {
		entry = log.NewEntry(log.StandardLogger())
	}
	entry.WithError(err).Error(msg)
	closer.Exit(1)
}

// cleanup releases in reverse creation order, the renderer takes the surface with it
func cleanup() {
	if timeService != nil {
		timeService.Stop()
	}
	vkRenderer.Release()
	vkDevice.Release()
	vkInstance.Destroy()
	if win != nil {
		win.Destroy()
	}
}
