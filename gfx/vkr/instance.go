// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"fmt"

	"github.com/devblok/lava/core"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

// DefaultApplicationInfo describes the harness to the driver.
var DefaultApplicationInfo = &vk.ApplicationInfo{
	SType:              vk.StructureTypeApplicationInfo,
	ApiVersion:         vk.MakeVersion(1, 0, 0),
	ApplicationVersion: vk.MakeVersion(1, 0, 0),
	PApplicationName:   safeString("Lava"),
	PEngineName:        safeString("Lava"),
}

const validationLayer = "VK_LAYER_LUNARG_standard_validation"

// QueueFamily describes one queue family of a physical device.
type QueueFamily struct {
	Index uint32
	Flags vk.QueueFlags
	Count uint32
}

// Supports reports whether the family supports all operations in flags.
func (q QueueFamily) Supports(flags vk.QueueFlagBits) bool {
	return q.Flags&vk.QueueFlags(flags) == vk.QueueFlags(flags)
}

// PhysicalDeviceInfo describes available physical properties of a rendering device.
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Type          vk.PhysicalDeviceType
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        vk.DeviceSize

	Features         vk.PhysicalDeviceFeatures `json:"-"`
	MemoryProperties vk.PhysicalDeviceMemoryProperties `json:"-"`
	QueueFamilies    []QueueFamily

	handle vk.PhysicalDevice
}

// Handle returns the physical device the info was queried from.
func (p PhysicalDeviceInfo) Handle() vk.PhysicalDevice {
	return p.handle
}

// HasExtension reports whether the device exposes the named extension.
func (p PhysicalDeviceInfo) HasExtension(name string) bool {
	for _, ext := range p.Extensions {
		if ext == name {
			return true
		}
	}
	return false
}

// NewInstance creates a Vulkan instance through drv.
func NewInstance(drv Driver, appInfo *vk.ApplicationInfo, cfg core.InstanceConfiguration) (*Instance, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.NewEntry(log.StandardLogger())
	}
	if cfg.DebugMode {
		cfg.Layers = append(cfg.Layers, validationLayer)
	}

	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: safeStrings(cfg.Extensions),
		EnabledLayerCount:       uint32(len(cfg.Layers)),
		PpEnabledLayerNames:     safeStrings(cfg.Layers),
	}

	instance, ret := drv.CreateInstance(&instanceInfo)
	if err := check("vk.CreateInstance", ret); err != nil {
		return nil, err
	}

	cfg.Logger.WithFields(log.Fields{
		"extensions": cfg.Extensions,
		"layers":     cfg.Layers,
	}).Debug("vulkan instance created")

	return &Instance{
		driver:        drv,
		configuration: cfg,
		instance:      instance,
		log:           cfg.Logger,
	}, nil
}

// Instance is a live connection to the Vulkan loader.
type Instance struct {
	driver        Driver
	configuration core.InstanceConfiguration
	instance      vk.Instance
	log           *log.Entry
}

// Handle returns the native instance handle.
func (v *Instance) Handle() vk.Instance {
	return v.instance
}

// Driver returns the driver the instance was created with.
func (v *Instance) Driver() Driver {
	return v.driver
}

// Logger returns the logger shared by objects created from the instance.
func (v *Instance) Logger() *log.Entry {
	return v.log
}

// PhysicalDevicesInfo enumerates the physical devices visible to the instance.
// Devices that report no queue families are skipped.
func (v *Instance) PhysicalDevicesInfo() ([]PhysicalDeviceInfo, error) {
	devices, ret := v.driver.EnumeratePhysicalDevices(v.instance)
	if err := check("vk.EnumeratePhysicalDevices", ret); err != nil {
		return nil, err
	}

	pdi := make([]PhysicalDeviceInfo, 0, len(devices))
	for idx, device := range devices {
		info := v.describe(device)
		if len(info.QueueFamilies) == 0 {
			v.log.WithFields(log.Fields{
				"index": idx,
				"name":  info.Name,
			}).Warn("skipping physical device without queue families")
			continue
		}
		pdi = append(pdi, info)
	}

	if len(pdi) == 0 {
		return nil, ErrNoDeviceFound
	}
	return pdi, nil
}

func (v *Instance) describe(device vk.PhysicalDevice) PhysicalDeviceInfo {
	info := PhysicalDeviceInfo{handle: device}

	// Get extension and layer info
	if extensions, ret := v.driver.EnumerateDeviceExtensions(device); ret == vk.Success {
		info.Extensions = extensions
	} else {
		info.Invalid = true
	}
	if layers, ret := v.driver.EnumerateDeviceLayers(device); ret == vk.Success {
		info.Layers = layers
	} else {
		info.Invalid = true
	}

	// Get memory info
	info.MemoryProperties = v.driver.GetPhysicalDeviceMemoryProperties(device)
	for idx := uint32(0); idx < info.MemoryProperties.MemoryHeapCount; idx++ {
		info.Memory += info.MemoryProperties.MemoryHeaps[idx].Size
	}

	// Get general device info
	properties := v.driver.GetPhysicalDeviceProperties(device)
	info.ID = int(properties.DeviceID)
	info.VendorID = int(properties.VendorID)
	info.DriverVersion = int(properties.DriverVersion)
	info.Name = vk.ToString(properties.DeviceName[:])
	info.Type = properties.DeviceType
	info.Features = v.driver.GetPhysicalDeviceFeatures(device)

	for idx, family := range v.driver.GetPhysicalDeviceQueueFamilyProperties(device) {
		info.QueueFamilies = append(info.QueueFamilies, QueueFamily{
			Index: uint32(idx),
			Flags: family.QueueFlags,
			Count: family.QueueCount,
		})
	}
	return info
}

// DestroySurface destroys a surface created against this instance.
func (v *Instance) DestroySurface(surface vk.Surface) {
	if surface == nil {
		return
	}
	v.driver.DestroySurface(v.instance, surface)
}

// Destroy destroys the instance. Every object created from it must be gone.
func (v *Instance) Destroy() {
	if v == nil || v.instance == nil {
		return
	}
	v.driver.DestroyInstance(v.instance)
	v.instance = nil
}

func safeString(s string) string {
	return fmt.Sprintf("%s\x00", s)
}

func safeStrings(sgs []string) []string {
	safe := []string{}
	for _, s := range sgs {
		safe = append(safe, safeString(s))
	}
	return safe
}
