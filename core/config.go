// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gobuffalo/envy"
	log "github.com/sirupsen/logrus"
)

// Environment keys read by LoadConfiguration.
const (
	EnvFramesPerSecond = "LAVA_FPS"
	EnvWidth           = "LAVA_WIDTH"
	EnvHeight          = "LAVA_HEIGHT"
	EnvTitle           = "LAVA_TITLE"
	EnvSwapchainSize   = "LAVA_SWAPCHAIN_SIZE"
	EnvDeviceIndex     = "LAVA_DEVICE_INDEX"
	EnvQueuePriorities = "LAVA_QUEUE_PRIORITIES"
	EnvQueuesPerFamily = "LAVA_QUEUES_PER_FAMILY"
	EnvDebug           = "LAVA_DEBUG"
	EnvLogLevel        = "LAVA_LOG_LEVEL"
	EnvFenceTimeout    = "LAVA_FENCE_TIMEOUT"
)

// SwapchainExtension must be enabled on every device that presents
const SwapchainExtension = "VK_KHR_swapchain"

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Instance InstanceConfiguration
	Device   DeviceConfiguration
	Renderer RendererConfiguration
	Window   WindowConfiguration
	LogLevel log.Level
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int
}

// InstanceConfiguration is used to configure the Vulkan instance
type InstanceConfiguration struct {
	// DebugMode enables the standard validation layer
	DebugMode  bool
	Extensions []string
	Layers     []string

	// Logger receives the output of the instance and
	// everything created from it, the standard logger when nil
	Logger *log.Entry
}

// DeviceConfiguration selects the physical device and its queues
type DeviceConfiguration struct {
	PhysicalDeviceIndex int

	// QueuePriorities is read from offset j for queue family j, so it
	// must hold at least j+n entries for a family with n requested queues.
	// Left empty every queue gets DefaultQueuePriority.
	QueuePriorities []float32

	// QueuesPerFamily caps the number of queues requested from each family
	QueuesPerFamily uint32

	Extensions []string
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	SwapchainSize uint32

	ScreenWidth  uint32
	ScreenHeight uint32

	// FenceTimeout bounds the per frame wait for the GPU,
	// math.MaxInt64 waits without bound
	FenceTimeout time.Duration
}

// WindowConfiguration is used to configure the window
type WindowConfiguration struct {
	Title     string
	Resizable bool
}

// DefaultConfiguration returns the configuration used when nothing is overridden
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 60,
		},
		Device: DeviceConfiguration{
			PhysicalDeviceIndex: 0,
			QueuesPerFamily:     1,
			Extensions:          []string{SwapchainExtension},
		},
		Renderer: RendererConfiguration{
			SwapchainSize: 2,
			ScreenWidth:   800,
			ScreenHeight:  600,
			FenceTimeout:  time.Duration(math.MaxInt64),
		},
		Window: WindowConfiguration{
			Title:     "Lava",
			Resizable: true,
		},
		LogLevel: log.InfoLevel,
	}
}

// LoadConfiguration returns the default configuration overridden by
// the environment, including a .env file in the working directory
func LoadConfiguration() (Configuration, error) {
	cfg := DefaultConfiguration()

	var err error
	if cfg.Time.FramesPerSecond, err = envInt(EnvFramesPerSecond, cfg.Time.FramesPerSecond); err != nil {
		return cfg, err
	}
	if cfg.Renderer.ScreenWidth, err = envUint32(EnvWidth, cfg.Renderer.ScreenWidth); err != nil {
		return cfg, err
	}
	if cfg.Renderer.ScreenHeight, err = envUint32(EnvHeight, cfg.Renderer.ScreenHeight); err != nil {
		return cfg, err
	}
	if cfg.Renderer.SwapchainSize, err = envUint32(EnvSwapchainSize, cfg.Renderer.SwapchainSize); err != nil {
		return cfg, err
	}
	if cfg.Device.PhysicalDeviceIndex, err = envInt(EnvDeviceIndex, cfg.Device.PhysicalDeviceIndex); err != nil {
		return cfg, err
	}
	if cfg.Device.QueuesPerFamily, err = envUint32(EnvQueuesPerFamily, cfg.Device.QueuesPerFamily); err != nil {
		return cfg, err
	}
	if cfg.Instance.DebugMode, err = envBool(EnvDebug, cfg.Instance.DebugMode); err != nil {
		return cfg, err
	}
	cfg.Window.Title = envy.Get(EnvTitle, cfg.Window.Title)

	if v := envy.Get(EnvQueuePriorities, ""); v != "" {
		if cfg.Device.QueuePriorities, err = ParsePriorities(v); err != nil {
			return cfg, errors.Wrapf(err, "%s", EnvQueuePriorities)
		}
	}
	if v := envy.Get(EnvFenceTimeout, ""); v != "" {
		if cfg.Renderer.FenceTimeout, err = time.ParseDuration(v); err != nil {
			return cfg, errors.Wrapf(err, "%s", EnvFenceTimeout)
		}
	}
	if v := envy.Get(EnvLogLevel, ""); v != "" {
		if cfg.LogLevel, err = log.ParseLevel(v); err != nil {
			return cfg, errors.Wrapf(err, "%s", EnvLogLevel)
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for values no component can work with
func (c Configuration) Validate() error {
	if c.Renderer.ScreenWidth == 0 || c.Renderer.ScreenHeight == 0 {
		return errors.Newf("screen size %dx%d", c.Renderer.ScreenWidth, c.Renderer.ScreenHeight)
	}
	if c.Time.FramesPerSecond < 0 {
		return errors.Newf("frames per second %d", c.Time.FramesPerSecond)
	}
	if c.Device.PhysicalDeviceIndex < 0 {
		return errors.Newf("physical device index %d", c.Device.PhysicalDeviceIndex)
	}
	for _, p := range c.Device.QueuePriorities {
		if p < 0 || p > 1 {
			return errors.Newf("queue priority %v outside [0,1]", p)
		}
	}
	return nil
}

// DefaultQueuePriority is given to every queue when no priorities are configured
const DefaultQueuePriority float32 = 1.0

// PrioritiesFor returns the priority list used to request queues from
// the given number of families. Configured priorities are returned as
// they are, otherwise the list is sized so every family finds its
// QueuesPerFamily entries from its offset.
func (c DeviceConfiguration) PrioritiesFor(families int) []float32 {
	if len(c.QueuePriorities) > 0 || families <= 0 {
		return c.QueuePriorities
	}
	perFamily := int(c.QueuesPerFamily)
	if perFamily == 0 {
		perFamily = 1
	}
	priorities := make([]float32, families+perFamily-1)
	for i := range priorities {
		priorities[i] = DefaultQueuePriority
	}
	return priorities
}

// ParsePriorities parses a comma separated list of queue priorities
func ParsePriorities(s string) ([]float32, error) {
	var priorities []float32
	for _, field := range strings.Split(s, ",") {
		p, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
		if err != nil {
			return nil, err
		}
		priorities = append(priorities, float32(p))
	}
	return priorities, nil
}

func envInt(key string, def int) (int, error) {
	v := envy.Get(key, "")
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, errors.Wrapf(err, "%s", key)
	}
	return i, nil
}

func envUint32(key string, def uint32) (uint32, error) {
	v := envy.Get(key, "")
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return def, errors.Wrapf(err, "%s", key)
	}
	return uint32(i), nil
}

func envBool(key string, def bool) (bool, error) {
	v := envy.Get(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, errors.Wrapf(err, "%s", key)
	}
	return b, nil
}
