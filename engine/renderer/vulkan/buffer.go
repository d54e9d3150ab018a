package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/prismengine/prism/engine/renderer/driver"
)

type buffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	size   uint64
}

// NewBuffer allocates a device-local buffer. Data reaches it through
// UploadBuffer, so the transfer-destination usage is always added.
func (g *GPU) NewBuffer(size uint64, usage driver.BufferUsage) (driver.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("zero-size buffer")
	}
	b, err := g.createBuffer(size,
		toVkBufferUsage(usage)|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (g *GPU) DestroyBuffer(b driver.Buffer) {
	buf := b.(*buffer)
	vk.DestroyBuffer(g.device, buf.handle, nil)
	vk.FreeMemory(g.device, buf.memory, nil)
}

// UploadBuffer copies data into b through a host-visible staging buffer and
// a one-shot command buffer, blocking until the transfer finishes.
func (g *GPU) UploadBuffer(b driver.Buffer, data []byte) error {
	dst := b.(*buffer)
	if uint64(len(data)) > dst.size {
		return fmt.Errorf("upload of %d bytes into %d-byte buffer", len(data), dst.size)
	}

	staging, err := g.createBuffer(uint64(len(data)),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return err
	}
	defer func() {
		vk.DestroyBuffer(g.device, staging.handle, nil)
		vk.FreeMemory(g.device, staging.memory, nil)
	}()

	var pData unsafe.Pointer
	if res := vk.MapMemory(g.device, staging.memory, 0, vk.DeviceSize(len(data)), 0, &pData); res != vk.Success {
		return resultErr(res, "vkMapMemory")
	}
	vk.Memcopy(pData, data)
	vk.UnmapMemory(g.device, staging.memory)

	return g.oneShot(func(cb vk.CommandBuffer) {
		vk.CmdCopyBuffer(cb, staging.handle, dst.handle, 1, []vk.BufferCopy{{
			Size: vk.DeviceSize(len(data)),
		}})
	})
}

func (g *GPU) createBuffer(size uint64, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlags) (*buffer, error) {
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(g.device, &createInfo, nil, &handle); res != vk.Success {
		return nil, resultErr(res, "vkCreateBuffer")
	}

	var memReq vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(g.device, handle, &memReq)
	memReq.Deref()

	memType, err := g.findMemoryType(memReq.MemoryTypeBits, props)
	if err != nil {
		vk.DestroyBuffer(g.device, handle, nil)
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReq.Size,
		MemoryTypeIndex: memType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(g.device, &allocInfo, nil, &memory); res != vk.Success {
		vk.DestroyBuffer(g.device, handle, nil)
		return nil, resultErr(res, "vkAllocateMemory")
	}
	if res := vk.BindBufferMemory(g.device, handle, memory, 0); res != vk.Success {
		vk.DestroyBuffer(g.device, handle, nil)
		vk.FreeMemory(g.device, memory, nil)
		return nil, resultErr(res, "vkBindBufferMemory")
	}
	return &buffer{handle: handle, memory: memory, size: size}, nil
}

func (g *GPU) findMemoryType(typeBits uint32, props vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < g.memory.MemoryTypeCount; i++ {
		g.memory.MemoryTypes[i].Deref()
		if typeBits&(1<<i) != 0 &&
			g.memory.MemoryTypes[i].PropertyFlags&props == props {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type matches bits %#x with properties %#x", typeBits, props)
}

// oneShot records fn into a transient command buffer, submits it and waits
// for the queue to drain it.
func (g *GPU) oneShot(fn func(cb vk.CommandBuffer)) error {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        g.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(g.device, &allocInfo, handles); res != vk.Success {
		return resultErr(res, "vkAllocateCommandBuffers")
	}
	cb := handles[0]
	defer vk.FreeCommandBuffers(g.device, g.pool, 1, handles)

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(cb, &beginInfo); res != vk.Success {
		return resultErr(res, "vkBeginCommandBuffer")
	}
	fn(cb)
	if res := vk.EndCommandBuffer(cb); res != vk.Success {
		return resultErr(res, "vkEndCommandBuffer")
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    handles,
	}
	if res := vk.QueueSubmit(g.graphicsQ, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
		return resultErr(res, "vkQueueSubmit")
	}
	if res := vk.QueueWaitIdle(g.graphicsQ); res != vk.Success {
		return resultErr(res, "vkQueueWaitIdle")
	}
	return nil
}
