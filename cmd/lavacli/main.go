// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command lavacli reports the physical devices Vulkan exposes.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/devblok/lava/core"
	"github.com/devblok/lava/gfx/vkr"
	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"
	"github.com/xlab/closer"
	"github.com/xlab/tablewriter"
)

var (
	asJSON     = flag.Bool("json", false, "Print the report as JSON")
	debug      = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	extensions = flag.Bool("ext", false, "List device extensions and layers")
)

func main() {
	flag.Parse()
	defer closer.Close()

	drv, err := vkr.NewDriver(nil)
	if err != nil {
		log.WithError(err).Fatal("loading vulkan")
	}

	instance, err := vkr.NewInstance(drv, vkr.DefaultApplicationInfo, core.InstanceConfiguration{
		DebugMode: *debug,
	})
	if err != nil {
		log.WithError(err).Fatal("creating instance")
	}
	closer.Bind(instance.Destroy)

	devices, err := instance.PhysicalDevicesInfo()
	if err != nil {
		log.WithError(err).Error("enumerating physical devices")
		closer.Exit(1)
	}

	if *asJSON {
		bytes, err := json.Marshal(devices)
		if err != nil {
			log.WithError(err).Error("encoding report")
			closer.Exit(1)
		}
		fmt.Printf("%s\n", bytes)
		return
	}

	fmt.Println(report(devices, *extensions))
}

func report(devices []vkr.PhysicalDeviceInfo, withExtensions bool) string {
	table := tablewriter.CreateTable()
	table.UTF8Box()
	table.AddTitle("VULKAN PHYSICAL DEVICES")

	for idx, info := range devices {
		if idx > 0 {
			table.AddSeparator()
		}
		table.AddRow("Index", idx)
		table.AddRow("Name", info.Name)
		table.AddRow("Type", deviceType(info.Type))
		table.AddRow("Vendor", fmt.Sprintf("%x", info.VendorID))
		table.AddRow("Device ID", fmt.Sprintf("%x", info.ID))
		table.AddRow("Driver Version", vk.Version(info.DriverVersion))
		table.AddRow("Memory", fmt.Sprintf("%d MiB", info.Memory/(1<<20)))
		table.AddRow("Swapchain", info.HasExtension(core.SwapchainExtension))
		if info.Invalid {
			table.AddRow("Invalid", "extension or layer query failed")
		}
		for _, family := range info.QueueFamilies {
			table.AddRow(fmt.Sprintf("Queue family %d", family.Index),
				fmt.Sprintf("%d x %s", family.Count, queueFlags(family)))
		}

		if withExtensions {
			table.AddRow("DEVICE EXTENSIONS", "")
			for i, ext := range info.Extensions {
				table.AddRow(i+1, ext)
			}
			table.AddRow("DEVICE LAYERS", "")
			for i, layer := range info.Layers {
				table.AddRow(i+1, layer)
			}
		}
	}
	return table.Render()
}

func deviceType(t vk.PhysicalDeviceType) string {
	switch t {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return "Integrated GPU"
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return "Discrete GPU"
	case vk.PhysicalDeviceTypeVirtualGpu:
		return "Virtual GPU"
	case vk.PhysicalDeviceTypeCpu:
		return "CPU"
	}
	return "Other"
}

func queueFlags(family vkr.QueueFamily) string {
	var names []string
	for _, f := range []struct {
		bit  vk.QueueFlagBits
		name string
	}{
		{vk.QueueGraphicsBit, "graphics"},
		{vk.QueueComputeBit, "compute"},
		{vk.QueueTransferBit, "transfer"},
		{vk.QueueSparseBindingBit, "sparse"},
	} {
		if family.Supports(f.bit) {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
