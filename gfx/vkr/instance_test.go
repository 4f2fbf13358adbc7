// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"encoding/json"
	"testing"

	vk "github.com/devblok/vulkan"
	qt "github.com/frankban/quicktest"

	"github.com/devblok/lava/core"
)

func TestPhysicalDevicesInfo(t *testing.T) {
	c := qt.New(t)
	f := newFakeDriver()
	instance := newTestInstance(c, f)
	defer instance.Destroy()

	devices, err := instance.PhysicalDevicesInfo()
	c.Assert(err, qt.IsNil)
	c.Assert(devices, qt.HasLen, 1)

	info := devices[0]
	c.Assert(info.Name, qt.Equals, "Fake GPU")
	c.Assert(info.ID, qt.Equals, 0x1234)
	c.Assert(info.VendorID, qt.Equals, 0x10de)
	c.Assert(info.Type, qt.Equals, vk.PhysicalDeviceTypeDiscreteGpu)
	c.Assert(info.Memory, qt.Equals, vk.DeviceSize(1<<30))
	c.Assert(info.Invalid, qt.IsFalse)
	c.Assert(info.HasExtension(core.SwapchainExtension), qt.IsTrue)
	c.Assert(info.HasExtension("VK_KHR_ray_tracing"), qt.IsFalse)
	c.Assert(info.Handle(), qt.Not(qt.IsNil))

	c.Assert(info.QueueFamilies, qt.HasLen, 1)
	c.Assert(info.QueueFamilies[0].Index, qt.Equals, uint32(0))
	c.Assert(info.QueueFamilies[0].Count, qt.Equals, uint32(2))
	c.Assert(info.QueueFamilies[0].Supports(vk.QueueGraphicsBit), qt.IsTrue)
	c.Assert(info.QueueFamilies[0].Supports(vk.QueueSparseBindingBit), qt.IsFalse)
}

func TestPhysicalDevicesSkipsDevicesWithoutFamilies(t *testing.T) {
	c := qt.New(t)
	f := newFakeDriver()
	f.gpus = append([]fakeGPU{{name: "Empty"}}, f.gpus...)
	instance := newTestInstance(c, f)
	defer instance.Destroy()

	devices, err := instance.PhysicalDevicesInfo()
	c.Assert(err, qt.IsNil)
	c.Assert(devices, qt.HasLen, 1)
	c.Assert(devices[0].Name, qt.Equals, "Fake GPU")
}

func TestPhysicalDevicesNoneFound(t *testing.T) {
	c := qt.New(t)
	f := newFakeDriver()
	f.gpus = []fakeGPU{{name: "Empty"}}
	instance := newTestInstance(c, f)
	defer instance.Destroy()

	_, err := instance.PhysicalDevicesInfo()
	c.Assert(err, qt.ErrorIs, ErrNoDeviceFound)
}

func TestPhysicalDevicesEnumerationFailure(t *testing.T) {
	c := qt.New(t)
	f := newFakeDriver()
	f.fail["vk.EnumeratePhysicalDevices"] = vk.ErrorInitializationFailed
	instance := newTestInstance(c, f)
	defer instance.Destroy()

	_, err := instance.PhysicalDevicesInfo()
	kind, ok := KindOf(err)
	c.Assert(ok, qt.IsTrue)
	c.Assert(kind, qt.Equals, KindInitializationFailed)
}

func TestPhysicalDeviceInfoJSON(t *testing.T) {
	c := qt.New(t)
	f := newFakeDriver()
	instance := newTestInstance(c, f)
	defer instance.Destroy()

	devices, err := instance.PhysicalDevicesInfo()
	c.Assert(err, qt.IsNil)

	data, err := json.Marshal(devices)
	c.Assert(err, qt.IsNil)

	var decoded []map[string]interface{}
	c.Assert(json.Unmarshal(data, &decoded), qt.IsNil)
	c.Assert(decoded, qt.HasLen, 1)
	c.Assert(decoded[0]["Name"], qt.Equals, "Fake GPU")
	_, hasFeatures := decoded[0]["Features"]
	c.Assert(hasFeatures, qt.IsFalse)
}

func TestNewInstanceDebugAddsValidation(t *testing.T) {
	c := qt.New(t)
	f := newFakeDriver()
	instance, err := NewInstance(f, DefaultApplicationInfo, core.InstanceConfiguration{
		DebugMode: true,
		Logger:    testLogger(),
	})
	c.Assert(err, qt.IsNil)
	c.Assert(instance.configuration.Layers, qt.DeepEquals, []string{validationLayer})

	instance.Destroy()
	instance.Destroy()
	assertClean(c, f)
}

func TestNewInstanceFailure(t *testing.T) {
	c := qt.New(t)
	f := newFakeDriver()
	f.fail["vk.CreateInstance"] = vk.ErrorIncompatibleDriver

	_, err := NewInstance(f, DefaultApplicationInfo, core.InstanceConfiguration{})
	kind, _ := KindOf(err)
	c.Assert(kind, qt.Equals, KindIncompatibleDriver)
	assertClean(c, f)
}

func TestSafeStrings(t *testing.T) {
	c := qt.New(t)
	c.Assert(safeStrings([]string{"a", "VK_KHR_surface"}), qt.DeepEquals, []string{"a\x00", "VK_KHR_surface\x00"})
	c.Assert(safeStrings(nil), qt.HasLen, 0)
}
