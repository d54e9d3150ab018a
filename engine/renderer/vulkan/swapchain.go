package vulkan

import (
	gomath "math"

	vk "github.com/goki/vulkan"

	"github.com/prismengine/prism/engine/math"
	"github.com/prismengine/prism/engine/renderer/driver"
)

type swapchain struct {
	gpu    *GPU
	handle vk.Swapchain
	format vk.SurfaceFormat
	extent driver.Extent2D
	images []driver.Image
}

// NewSwapchain builds a swapchain for the requested extent, preferring a
// B8G8R8A8 sRGB-nonlinear surface format and mailbox presentation unless
// vsync pins it to FIFO.
func (g *GPU) NewSwapchain(extent driver.Extent2D) (driver.Swapchain, error) {
	var caps vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(g.physical, g.surface, &caps); res != vk.Success {
		return nil, resultErr(res, "vkGetPhysicalDeviceSurfaceCapabilities")
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	format, err := g.pickSurfaceFormat()
	if err != nil {
		return nil, err
	}
	presentMode := g.pickPresentMode()

	vkExtent := vk.Extent2D{Width: extent.Width, Height: extent.Height}
	if caps.CurrentExtent.Width != gomath.MaxUint32 {
		vkExtent = caps.CurrentExtent
	}
	vkExtent.Width = math.Clamp(vkExtent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	vkExtent.Height = math.Clamp(vkExtent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          g.surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      vkExtent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}
	if g.graphicsFamily != g.presentFamily {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{g.graphicsFamily, g.presentFamily}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(g.device, &createInfo, nil, &handle); res != vk.Success {
		return nil, resultErr(res, "vkCreateSwapchain")
	}

	var count uint32
	if res := vk.GetSwapchainImages(g.device, handle, &count, nil); res != vk.Success {
		vk.DestroySwapchain(g.device, handle, nil)
		return nil, resultErr(res, "vkGetSwapchainImages")
	}
	vkImages := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(g.device, handle, &count, vkImages); res != vk.Success {
		vk.DestroySwapchain(g.device, handle, nil)
		return nil, resultErr(res, "vkGetSwapchainImages")
	}
	images := make([]driver.Image, count)
	for i, img := range vkImages {
		images[i] = img
	}

	g.log.Debug("swapchain created",
		"images", count,
		"extent", vkExtent,
		"format", fromVkFormat(format.Format))

	return &swapchain{
		gpu:    g,
		handle: handle,
		format: format,
		extent: driver.Extent2D{Width: vkExtent.Width, Height: vkExtent.Height},
		images: images,
	}, nil
}

func (g *GPU) pickSurfaceFormat() (vk.SurfaceFormat, error) {
	var count uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(g.physical, g.surface, &count, nil); res != vk.Success {
		return vk.SurfaceFormat{}, resultErr(res, "vkGetPhysicalDeviceSurfaceFormats")
	}
	formats := make([]vk.SurfaceFormat, count)
	if res := vk.GetPhysicalDeviceSurfaceFormats(g.physical, g.surface, &count, formats); res != vk.Success {
		return vk.SurfaceFormat{}, resultErr(res, "vkGetPhysicalDeviceSurfaceFormats")
	}
	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == vk.FormatB8g8r8a8Unorm &&
			formats[i].ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return formats[i], nil
		}
	}
	return formats[0], nil
}

func (g *GPU) pickPresentMode() vk.PresentMode {
	if g.opts.VSync {
		return vk.PresentModeFifo
	}
	var count uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(g.physical, g.surface, &count, nil); res != vk.Success {
		return vk.PresentModeFifo
	}
	modes := make([]vk.PresentMode, count)
	if res := vk.GetPhysicalDeviceSurfacePresentModes(g.physical, g.surface, &count, modes); res != vk.Success {
		return vk.PresentModeFifo
	}
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	// FIFO is the only mode every implementation supports.
	return vk.PresentModeFifo
}

func (sc *swapchain) Images() []driver.Image  { return sc.images }
func (sc *swapchain) Format() driver.Format   { return fromVkFormat(sc.format.Format) }
func (sc *swapchain) Extent() driver.Extent2D { return sc.extent }

func (sc *swapchain) Acquire(imageAvailable driver.Semaphore) (uint32, driver.AcquireOutcome, error) {
	var index uint32
	res := vk.AcquireNextImage(
		sc.gpu.device, sc.handle, gomath.MaxUint64,
		imageAvailable.(vk.Semaphore), vk.NullFence, &index)
	switch res {
	case vk.Success:
		return index, driver.AcquireSuccess, nil
	case vk.Suboptimal:
		return index, driver.AcquireDegraded, nil
	case vk.ErrorOutOfDate:
		return 0, driver.AcquireStale, nil
	}
	return 0, driver.AcquireSuccess, resultErr(res, "vkAcquireNextImageKHR")
}

func (sc *swapchain) Present(renderFinished driver.Semaphore, imageIndex uint32) (driver.PresentOutcome, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderFinished.(vk.Semaphore)},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.handle},
		PImageIndices:      []uint32{imageIndex},
	}
	res := vk.QueuePresent(sc.gpu.presentQ, &presentInfo)
	switch res {
	case vk.Success:
		return driver.PresentSuccess, nil
	case vk.Suboptimal:
		return driver.PresentDegraded, nil
	case vk.ErrorOutOfDate:
		return driver.PresentStale, nil
	}
	return driver.PresentSuccess, resultErr(res, "vkQueuePresentKHR")
}

func (sc *swapchain) Destroy() {
	vk.DestroySwapchain(sc.gpu.device, sc.handle, nil)
}
