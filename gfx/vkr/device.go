// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/cockroachdb/errors"
	"github.com/devblok/lava/core"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
)

// NewDevice creates a logical device for devices[cfg.PhysicalDeviceIndex].
// Queues are requested from every queue family the device reports.
func NewDevice(instance *Instance, devices []PhysicalDeviceInfo, cfg core.DeviceConfiguration) (*Device, error) {
	index := cfg.PhysicalDeviceIndex
	if index < 0 || index >= len(devices) {
		return nil, withSentinel(
			errors.Wrapf(ErrNoDeviceFound, "device index %d, %d available", index, len(devices)),
			ErrDeviceCreationFailed)
	}
	info := devices[index]

	queueInfos, err := queueCreateInfos(info.QueueFamilies, cfg)
	if err != nil {
		return nil, withSentinel(err, ErrDeviceCreationFailed)
	}

	for _, ext := range cfg.Extensions {
		if !info.HasExtension(ext) {
			err := check("vk.CreateDevice", vk.ErrorExtensionNotPresent)
			return nil, withSentinel(errors.Wrapf(err, "extension %s", ext), ErrDeviceCreationFailed)
		}
	}

	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: safeStrings(cfg.Extensions),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{info.Features},
	}

	drv := instance.Driver()
	device, ret := drv.CreateDevice(info.Handle(), &dci)
	if err := check("vk.CreateDevice", ret); err != nil {
		return nil, withSentinel(errors.Wrapf(err, "device %q", info.Name), ErrDeviceCreationFailed)
	}

	d := &Device{
		driver:   drv,
		log:      instance.Logger().WithField("device", info.Name),
		info:     info,
		device:   device,
		physical: info.Handle(),
		queues:   make(map[uint32][]*Queue),
	}
	for _, qci := range queueInfos {
		for idx := uint32(0); idx < qci.QueueCount; idx++ {
			d.queues[qci.QueueFamilyIndex] = append(d.queues[qci.QueueFamilyIndex], &Queue{
				driver: drv,
				queue:  drv.GetDeviceQueue(device, qci.QueueFamilyIndex, idx),
				family: qci.QueueFamilyIndex,
				index:  idx,
			})
		}
	}

	d.log.WithField("families", len(queueInfos)).Info("logical device created")
	return d, nil
}

func queueCreateInfos(families []QueueFamily, cfg core.DeviceConfiguration) ([]vk.DeviceQueueCreateInfo, error) {
	perFamily := cfg.QueuesPerFamily
	if perFamily == 0 {
		perFamily = 1
	}

	priorities := cfg.PrioritiesFor(len(families))
	for _, p := range priorities {
		if p < 0 || p > 1 {
			return nil, errors.Wrapf(ErrInvalidQueuePriorities, "priority %v outside [0,1]", p)
		}
	}

	var infos []vk.DeviceQueueCreateInfo
	for offset, family := range families {
		count := perFamily
		if family.Count < count {
			count = family.Count
		}
		if count == 0 {
			continue
		}
		if len(priorities) < offset+int(count) {
			return nil, errors.Wrapf(ErrInvalidQueuePriorities,
				"family %d needs %d priorities from offset %d, have %d",
				family.Index, count, offset, len(priorities))
		}
		infos = append(infos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family.Index,
			QueueCount:       count,
			PQueuePriorities: priorities[offset : offset+int(count)],
		})
	}
	return infos, nil
}

// Device owns the connection to one physical device and the queues created on it.
// Every object created against a Device must be released before it.
type Device struct {
	driver   Driver
	log      *log.Entry
	info     PhysicalDeviceInfo
	device   vk.Device
	physical vk.PhysicalDevice
	queues   map[uint32][]*Queue
}

// NativeLogicalHandle returns the vk.Device handle without transferring ownership.
func (d *Device) NativeLogicalHandle() vk.Device {
	return d.device
}

// NativePhysicalHandle returns the physical device the connection was made to.
func (d *Device) NativePhysicalHandle() vk.PhysicalDevice {
	return d.physical
}

// Info returns the snapshot of the physical device.
func (d *Device) Info() PhysicalDeviceInfo {
	return d.info
}

// Driver returns the driver the device calls into.
func (d *Device) Driver() Driver {
	return d.driver
}

// Logger returns the device scoped logger.
func (d *Device) Logger() *log.Entry {
	return d.log
}

// Queue returns a queue created with the device.
func (d *Device) Queue(family, index uint32) (*Queue, error) {
	queues := d.queues[family]
	if int(index) >= len(queues) {
		return nil, errors.Newf("queue %d of family %d was not created", index, family)
	}
	return queues[index], nil
}

// WaitIdle blocks until all queues of the device are idle.
func (d *Device) WaitIdle() error {
	return check("vk.DeviceWaitIdle", d.driver.DeviceWaitIdle(d.device))
}

// Empty reports whether the device no longer owns a connection.
func (d *Device) Empty() bool {
	return d == nil || d.device == nil
}

// Move transfers the connection to the returned Device and leaves d empty.
func (d *Device) Move() *Device {
	moved := *d
	d.device = nil
	d.physical = nil
	d.queues = nil
	return &moved
}

// Release destroys the logical device. Releasing an empty device does nothing.
func (d *Device) Release() {
	if d.Empty() {
		return
	}
	d.driver.DestroyDevice(d.device)
	d.log.Debug("logical device destroyed")
	d.device = nil
	d.physical = nil
	d.queues = nil
}

// Queue is a command queue of a logical device.
type Queue struct {
	driver Driver
	queue  vk.Queue
	family uint32
	index  uint32
}

// Handle returns the native queue.
func (q *Queue) Handle() vk.Queue {
	return q.queue
}

// Family returns the queue family index.
func (q *Queue) Family() uint32 {
	return q.family
}

// Submit submits one command buffer. When wait is set the color attachment
// output stage waits for it. fence is signaled once the buffer retires.
func (q *Queue) Submit(buffer *CommandBuffer, wait *Semaphore, fence vk.Fence) error {
	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{buffer.Handle()},
	}
	if wait != nil {
		submit.WaitSemaphoreCount = 1
		submit.PWaitSemaphores = []vk.Semaphore{wait.Handle()}
		submit.PWaitDstStageMask = []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		}
	}
	return check("vk.QueueSubmit", q.driver.QueueSubmit(q.queue, []vk.SubmitInfo{submit}, fence))
}
