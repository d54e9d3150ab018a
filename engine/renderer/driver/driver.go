// Package driver defines the vocabulary the renderer core speaks to a GPU:
// plain descriptor types plus the GPU, CommandBuffer and Swapchain
// interfaces. The vulkan package provides the production implementation;
// drivertest provides a scripted in-memory one for tests.
package driver

import (
	"errors"
	"time"
)

var (
	// ErrFenceTimeout reports that a fence wait exceeded its deadline. This
	// usually means the device was lost; callers treat it as fatal.
	ErrFenceTimeout = errors.New("fence wait timed out")
	// ErrDeviceLost reports that the device stopped responding.
	ErrDeviceLost = errors.New("device lost")
)

// Handles are opaque to the core packages. Each backend wraps its native
// objects and type-asserts them back on use.
type (
	ShaderModule        interface{}
	PipelineLayout      interface{}
	Pipeline            interface{}
	RenderPass          interface{}
	Image               interface{}
	ImageView           interface{}
	Framebuffer         interface{}
	Semaphore           interface{}
	Fence               interface{}
	Buffer              interface{}
	DescriptorSetLayout interface{}
)

// GPU is the device-level interface consumed by the pipeline builder and the
// frame orchestrator. A single implementation owns the logical device, its
// graphics/present queues and the command pool; all calls are made from the
// one thread that drives the frame loop.
type GPU interface {
	Caps() DeviceCaps

	NewShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(m ShaderModule)
	NewPipelineLayout(setLayouts []DescriptorSetLayout, pushConstants []PushConstantRange) (PipelineLayout, error)
	DestroyPipelineLayout(l PipelineLayout)
	NewPipeline(state *GraphState) (Pipeline, error)
	DestroyPipeline(p Pipeline)

	NewRenderPass(colorFormat Format, samples SampleCount) (RenderPass, error)
	DestroyRenderPass(rp RenderPass)

	// NewSwapchain builds a presentation surface for the given drawable
	// extent; the backend picks format and present mode from its own
	// preference order.
	NewSwapchain(extent Extent2D) (Swapchain, error)
	NewImageView(img Image, format Format) (ImageView, error)
	DestroyImageView(v ImageView)
	NewFramebuffer(pass RenderPass, view ImageView, extent Extent2D) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	NewSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)
	NewFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)
	// WaitForFence blocks until f signals or the timeout elapses; a timeout
	// returns ErrFenceTimeout.
	WaitForFence(f Fence, timeout time.Duration) error
	ResetFence(f Fence) error

	NewCommandBuffer() (CommandBuffer, error)
	FreeCommandBuffer(cb CommandBuffer)

	// Submit queues cb on the graphics queue: execution waits on wait at the
	// color-attachment-output stage, signals signal on completion, and
	// signals fence when the submission finishes on the GPU.
	Submit(cb CommandBuffer, wait Semaphore, signal Semaphore, fence Fence) error
	// WaitIdle drains the whole device. Coarse, used only for swapchain
	// recreation and shutdown.
	WaitIdle() error

	NewBuffer(size uint64, usage BufferUsage) (Buffer, error)
	DestroyBuffer(b Buffer)
	// UploadBuffer copies data into b through a staging buffer and a
	// transient one-shot command buffer, blocking until the copy completes.
	UploadBuffer(b Buffer, data []byte) error
}

// Swapchain is an ordered set of presentable images bound to a drawable.
type Swapchain interface {
	Images() []Image
	Format() Format
	Extent() Extent2D

	// Acquire requests the next presentable image, signaling imageAvailable
	// once the image can be rendered to. The returned index is valid only
	// for the iteration that acquired it and only when the outcome is not
	// AcquireStale. A non-nil error is fatal.
	Acquire(imageAvailable Semaphore) (uint32, AcquireOutcome, error)
	// Present queues image imageIndex for presentation after renderFinished
	// signals. A non-nil error is fatal.
	Present(renderFinished Semaphore, imageIndex uint32) (PresentOutcome, error)

	Destroy()
}

// CommandBuffer records GPU work for one frame slot.
type CommandBuffer interface {
	Begin() error
	End() error
	Reset() error

	// Transition records an image layout barrier with ordering against
	// surrounding color-attachment work.
	Transition(img Image, from, to Layout)

	BeginRenderPass(pass RenderPass, fb Framebuffer, area Extent2D, clear Color)
	EndRenderPass()

	BindPipeline(p Pipeline)
	SetViewport(v Viewport)
	SetScissor(r Rect2D)

	BindVertexBuffer(b Buffer)
	BindIndexBuffer(b Buffer)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)

	// ClearColor clears img outside of a render pass; img must be in
	// LayoutTransferDst.
	ClearColor(img Image, c Color)
}
