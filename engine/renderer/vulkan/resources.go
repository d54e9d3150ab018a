package vulkan

import (
	"encoding/binary"
	"fmt"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/prismengine/prism/engine/renderer/driver"
)

// repackUint32 converts SPIR-V bytes to the word slice the API expects.
// SPIR-V is little-endian by convention.
func repackUint32(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V length %d is not a multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}

func (g *GPU) NewShaderModule(code []byte) (driver.ShaderModule, error) {
	words, err := repackUint32(code)
	if err != nil {
		return nil, err
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(g.device, &createInfo, nil, &module); res != vk.Success {
		return nil, resultErr(res, "vkCreateShaderModule")
	}
	return module, nil
}

func (g *GPU) DestroyShaderModule(m driver.ShaderModule) {
	vk.DestroyShaderModule(g.device, m.(vk.ShaderModule), nil)
}

func (g *GPU) NewPipelineLayout(setLayouts []driver.DescriptorSetLayout, pushConstants []driver.PushConstantRange) (driver.PipelineLayout, error) {
	vkSetLayouts := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, l := range setLayouts {
		vkSetLayouts[i] = l.(vk.DescriptorSetLayout)
	}
	vkRanges := make([]vk.PushConstantRange, len(pushConstants))
	for i, r := range pushConstants {
		vkRanges[i] = vk.PushConstantRange{
			StageFlags: toVkStageFlags(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	createInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(vkSetLayouts)),
		PSetLayouts:            vkSetLayouts,
		PushConstantRangeCount: uint32(len(vkRanges)),
		PPushConstantRanges:    vkRanges,
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(g.device, &createInfo, nil, &layout); res != vk.Success {
		return nil, resultErr(res, "vkCreatePipelineLayout")
	}
	return layout, nil
}

func (g *GPU) DestroyPipelineLayout(l driver.PipelineLayout) {
	vk.DestroyPipelineLayout(g.device, l.(vk.PipelineLayout), nil)
}

// NewRenderPass builds a single-subpass pass with one color attachment. The
// attachment is cleared on load; layout transitions in and out of the
// attachment-optimal layout are recorded as explicit barriers around the
// pass, so both initial and final layout stay attachment-optimal here.
func (g *GPU) NewRenderPass(colorFormat driver.Format, samples driver.SampleCount) (driver.RenderPass, error) {
	attachment := vk.AttachmentDescription{
		Format:         toVkFormat(colorFormat),
		Samples:        toVkSampleCount(samples),
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
		FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
	}
	colorRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.AttachmentReference{colorRef},
	}
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}
	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{attachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}
	var pass vk.RenderPass
	if res := vk.CreateRenderPass(g.device, &createInfo, nil, &pass); res != vk.Success {
		return nil, resultErr(res, "vkCreateRenderPass")
	}
	return pass, nil
}

func (g *GPU) DestroyRenderPass(rp driver.RenderPass) {
	vk.DestroyRenderPass(g.device, rp.(vk.RenderPass), nil)
}

func (g *GPU) NewImageView(img driver.Image, format driver.Format) (driver.ImageView, error) {
	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.(vk.Image),
		ViewType: vk.ImageViewType2d,
		Format:   toVkFormat(format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(g.device, &createInfo, nil, &view); res != vk.Success {
		return nil, resultErr(res, "vkCreateImageView")
	}
	return view, nil
}

func (g *GPU) DestroyImageView(v driver.ImageView) {
	vk.DestroyImageView(g.device, v.(vk.ImageView), nil)
}

func (g *GPU) NewFramebuffer(pass driver.RenderPass, view driver.ImageView, extent driver.Extent2D) (driver.Framebuffer, error) {
	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass.(vk.RenderPass),
		AttachmentCount: 1,
		PAttachments:    []vk.ImageView{view.(vk.ImageView)},
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if res := vk.CreateFramebuffer(g.device, &createInfo, nil, &fb); res != vk.Success {
		return nil, resultErr(res, "vkCreateFramebuffer")
	}
	return fb, nil
}

func (g *GPU) DestroyFramebuffer(fb driver.Framebuffer) {
	vk.DestroyFramebuffer(g.device, fb.(vk.Framebuffer), nil)
}

func (g *GPU) NewSemaphore() (driver.Semaphore, error) {
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var sem vk.Semaphore
	if res := vk.CreateSemaphore(g.device, &createInfo, nil, &sem); res != vk.Success {
		return nil, resultErr(res, "vkCreateSemaphore")
	}
	return sem, nil
}

func (g *GPU) DestroySemaphore(s driver.Semaphore) {
	vk.DestroySemaphore(g.device, s.(vk.Semaphore), nil)
}

func (g *GPU) NewFence(signaled bool) (driver.Fence, error) {
	createInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		createInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if res := vk.CreateFence(g.device, &createInfo, nil, &fence); res != vk.Success {
		return nil, resultErr(res, "vkCreateFence")
	}
	return fence, nil
}

func (g *GPU) DestroyFence(f driver.Fence) {
	vk.DestroyFence(g.device, f.(vk.Fence), nil)
}

func (g *GPU) WaitForFence(f driver.Fence, timeout time.Duration) error {
	res := vk.WaitForFences(g.device, 1, []vk.Fence{f.(vk.Fence)}, vk.True, uint64(timeout.Nanoseconds()))
	switch res {
	case vk.Success:
		return nil
	case vk.Timeout:
		return driver.ErrFenceTimeout
	case vk.ErrorDeviceLost:
		return driver.ErrDeviceLost
	}
	return resultErr(res, "vkWaitForFences")
}

func (g *GPU) ResetFence(f driver.Fence) error {
	if res := vk.ResetFences(g.device, 1, []vk.Fence{f.(vk.Fence)}); res != vk.Success {
		return resultErr(res, "vkResetFences")
	}
	return nil
}

func (g *GPU) NewCommandBuffer() (driver.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        g.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(g.device, &allocInfo, handles); res != vk.Success {
		return nil, resultErr(res, "vkAllocateCommandBuffers")
	}
	return &commandBuffer{handle: handles[0]}, nil
}

func (g *GPU) FreeCommandBuffer(cb driver.CommandBuffer) {
	vk.FreeCommandBuffers(g.device, g.pool, 1, []vk.CommandBuffer{cb.(*commandBuffer).handle})
}

// Submit queues cb on the graphics queue. Execution waits on wait at the
// color-attachment-output stage so earlier pipeline stages may run before
// the image is available.
func (g *GPU) Submit(cb driver.CommandBuffer, wait driver.Semaphore, signal driver.Semaphore, fence driver.Fence) error {
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.(vk.Semaphore)},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.(*commandBuffer).handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signal.(vk.Semaphore)},
	}
	if res := vk.QueueSubmit(g.graphicsQ, 1, []vk.SubmitInfo{submitInfo}, fence.(vk.Fence)); res != vk.Success {
		return resultErr(res, "vkQueueSubmit")
	}
	return nil
}

func (g *GPU) WaitIdle() error {
	if res := vk.DeviceWaitIdle(g.device); res != vk.Success {
		return resultErr(res, "vkDeviceWaitIdle")
	}
	return nil
}
