package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/prismengine/prism/engine/renderer/driver"
)

type commandBuffer struct {
	handle vk.CommandBuffer
}

func (cb *commandBuffer) Begin() error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if res := vk.BeginCommandBuffer(cb.handle, &beginInfo); res != vk.Success {
		return resultErr(res, "vkBeginCommandBuffer")
	}
	return nil
}

func (cb *commandBuffer) End() error {
	if res := vk.EndCommandBuffer(cb.handle); res != vk.Success {
		return resultErr(res, "vkEndCommandBuffer")
	}
	return nil
}

func (cb *commandBuffer) Reset() error {
	if res := vk.ResetCommandBuffer(cb.handle, 0); res != vk.Success {
		return resultErr(res, "vkResetCommandBuffer")
	}
	return nil
}

// accessForLayout maps a layout to the accesses that must settle before or
// after a transition touching it.
func accessForLayout(l driver.Layout) vk.AccessFlags {
	switch l {
	case driver.LayoutColorAttachment:
		return vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	case driver.LayoutTransferDst:
		return vk.AccessFlags(vk.AccessTransferWriteBit)
	}
	return 0
}

func stageForLayout(l driver.Layout) vk.PipelineStageFlags {
	switch l {
	case driver.LayoutColorAttachment:
		return vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case driver.LayoutTransferDst:
		return vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case driver.LayoutPresent:
		return vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}
	return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
}

func (cb *commandBuffer) Transition(img driver.Image, from, to driver.Layout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       accessForLayout(from),
		DstAccessMask:       accessForLayout(to),
		OldLayout:           toVkImageLayout(from),
		NewLayout:           toVkImageLayout(to),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.(vk.Image),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	vk.CmdPipelineBarrier(cb.handle,
		stageForLayout(from), stageForLayout(to), 0,
		0, nil, 0, nil,
		1, []vk.ImageMemoryBarrier{barrier})
}

func (cb *commandBuffer) BeginRenderPass(pass driver.RenderPass, fb driver.Framebuffer, area driver.Extent2D, clear driver.Color) {
	clearValue := vk.NewClearValue([]float32{clear[0], clear[1], clear[2], clear[3]})
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass.(vk.RenderPass),
		Framebuffer: fb.(vk.Framebuffer),
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: area.Width, Height: area.Height},
		},
		ClearValueCount: 1,
		PClearValues:    []vk.ClearValue{clearValue},
	}
	vk.CmdBeginRenderPass(cb.handle, &beginInfo, vk.SubpassContentsInline)
}

func (cb *commandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(cb.handle)
}

func (cb *commandBuffer) BindPipeline(p driver.Pipeline) {
	vk.CmdBindPipeline(cb.handle, vk.PipelineBindPointGraphics, p.(vk.Pipeline))
}

func (cb *commandBuffer) SetViewport(v driver.Viewport) {
	vk.CmdSetViewport(cb.handle, 0, 1, []vk.Viewport{{
		X: v.X, Y: v.Y,
		Width: v.Width, Height: v.Height,
		MinDepth: v.MinDepth, MaxDepth: v.MaxDepth,
	}})
}

func (cb *commandBuffer) SetScissor(r driver.Rect2D) {
	vk.CmdSetScissor(cb.handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Width, Height: r.Height},
	}})
}

func (cb *commandBuffer) BindVertexBuffer(b driver.Buffer) {
	vk.CmdBindVertexBuffers(cb.handle, 0, 1,
		[]vk.Buffer{b.(*buffer).handle}, []vk.DeviceSize{0})
}

func (cb *commandBuffer) BindIndexBuffer(b driver.Buffer) {
	vk.CmdBindIndexBuffer(cb.handle, b.(*buffer).handle, 0, vk.IndexTypeUint32)
}

func (cb *commandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(cb.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (cb *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(cb.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// ClearColor clears img outside of a render pass. The image must already be
// in the transfer-destination layout.
func (cb *commandBuffer) ClearColor(img driver.Image, c driver.Color) {
	clearValue := vk.ClearColorValue{}
	*(*[4]float32)(unsafe.Pointer(&clearValue)) = c
	vk.CmdClearColorImage(cb.handle, img.(vk.Image),
		vk.ImageLayoutTransferDstOptimal, &clearValue, 1,
		[]vk.ImageSubresourceRange{{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		}})
}
