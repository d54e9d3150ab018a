package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/prismengine/prism/engine/renderer/driver"
)

// createDevice picks a physical device that can render and present to the
// surface, creates the logical device with the features the capability set
// advertises, and builds the graphics command pool.
func (g *GPU) createDevice() error {
	if err := g.selectPhysicalDevice(); err != nil {
		return err
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(g.physical, &features)
	features.Deref()

	// Enable exactly what the caps report so the builder's validation and
	// the device agree.
	enabled := vk.PhysicalDeviceFeatures{
		WideLines:         features.WideLines,
		DepthClamp:        features.DepthClamp,
		SampleRateShading: features.SampleRateShading,
	}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(g.physical, &props)
	props.Deref()
	props.Limits.Deref()

	g.caps = driver.DeviceCaps{
		MaxViewports:      props.Limits.MaxViewports,
		SampleCounts:      fromVkSampleCounts(vk.SampleCountFlags(props.Limits.FramebufferColorSampleCounts)),
		WideLines:         enabled.WideLines == vk.True,
		DepthClamp:        enabled.DepthClamp == vk.True,
		SampleRateShading: enabled.SampleRateShading == vk.True,
	}

	vk.GetPhysicalDeviceMemoryProperties(g.physical, &g.memory)
	g.memory.Deref()

	// One queue per distinct family; graphics and present usually share.
	families := []uint32{g.graphicsFamily}
	if g.presentFamily != g.graphicsFamily {
		families = append(families, g.presentFamily)
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, fam := range families {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: fam,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	if deviceExtensionAvailable(g.physical, "VK_KHR_portability_subset") {
		extensions = append(extensions, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{enabled},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	if res := vk.CreateDevice(g.physical, &deviceCreateInfo, nil, &g.device); res != vk.Success {
		return resultErr(res, "vkCreateDevice")
	}

	vk.GetDeviceQueue(g.device, g.graphicsFamily, 0, &g.graphicsQ)
	vk.GetDeviceQueue(g.device, g.presentFamily, 0, &g.presentQ)

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: g.graphicsFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vk.CreateCommandPool(g.device, &poolCreateInfo, nil, &g.pool); res != vk.Success {
		return resultErr(res, "vkCreateCommandPool")
	}
	return nil
}

func (g *GPU) selectPhysicalDevice() error {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(g.instance, &count, nil); res != vk.Success {
		return resultErr(res, "vkEnumeratePhysicalDevices")
	}
	if count == 0 {
		return fmt.Errorf("no devices with vulkan support")
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(g.instance, &count, devices); res != vk.Success {
		return resultErr(res, "vkEnumeratePhysicalDevices")
	}

	for _, pd := range devices {
		graphics, present, ok := findQueueFamilies(pd, g.surface)
		if !ok {
			continue
		}
		if !deviceExtensionAvailable(pd, vk.KhrSwapchainExtensionName) {
			continue
		}
		if !surfaceUsable(pd, g.surface) {
			continue
		}

		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()

		g.physical = pd
		g.graphicsFamily = graphics
		g.presentFamily = present
		g.log.Info("selected device",
			"name", vk.ToString(props.DeviceName[:]),
			"graphicsQueue", graphics,
			"presentQueue", present)
		return nil
	}
	return fmt.Errorf("no device can render and present to the surface")
}

func findQueueFamilies(pd vk.PhysicalDevice, surface vk.Surface) (graphics, present uint32, ok bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)

	hasGraphics, hasPresent := false, false
	for i := range families {
		families[i].Deref()
		if !hasGraphics && families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			graphics = uint32(i)
			hasGraphics = true
		}
		var supported vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), surface, &supported)
		if !hasPresent && supported == vk.True {
			present = uint32(i)
			hasPresent = true
		}
		// Prefer one family that does both.
		if hasGraphics && families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 && supported == vk.True {
			return uint32(i), uint32(i), true
		}
	}
	return graphics, present, hasGraphics && hasPresent
}

func deviceExtensionAvailable(pd vk.PhysicalDevice, name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil); res != vk.Success {
		return false
	}
	exts := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(pd, "", &count, exts); res != vk.Success {
		return false
	}
	for i := range exts {
		exts[i].Deref()
		if vk.ToString(exts[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

// surfaceUsable verifies the surface offers at least one format and one
// present mode.
func surfaceUsable(pd vk.PhysicalDevice, surface vk.Surface) bool {
	var formatCount, modeCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(pd, surface, &formatCount, nil)
	vk.GetPhysicalDeviceSurfacePresentModes(pd, surface, &modeCount, nil)
	return formatCount > 0 && modeCount > 0
}
