// Package frame drives the per-frame submission loop: acquire an image,
// record into the slot owned by the current frame, submit with the slot's
// sync objects, present, and rotate to the next slot. A bounded number of
// frames may be in flight at once; the swapchain is rebuilt whenever the
// surface and the drawable disagree.
package frame

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/prismengine/prism/engine/renderer/driver"
	"github.com/prismengine/prism/engine/renderer/pipeline"
)

// MaxFramesInFlight bounds how many frame slots may be recording or
// executing at once.
const MaxFramesInFlight = 3

// DefaultFenceTimeout is how long a frame waits for its slot's previous
// submission before giving up. Exceeding it means the device stopped
// making progress.
const DefaultFenceTimeout = 5 * time.Second

// Window is the drawable the orchestrator presents into.
type Window interface {
	// DrawableExtent returns the current framebuffer size in pixels. A zero
	// extent means the window is minimized.
	DrawableExtent() driver.Extent2D
	// ConsumeResize reports whether the drawable was resized since the last
	// call, clearing the flag.
	ConsumeResize() bool
	// WaitEvents blocks until a windowing event arrives. Used to idle while
	// minimized.
	WaitEvents()
}

// PipelineFactory builds the pipeline for a render target. It runs once at
// startup and again whenever recreation changes the surface format.
type PipelineFactory func(target driver.RenderTarget) (*pipeline.Pipeline, error)

// RecordFunc records the draw calls for one frame, inside an open render
// pass with the pipeline already bound.
type RecordFunc func(cb driver.CommandBuffer, extent driver.Extent2D)

// Options configures an Orchestrator.
type Options struct {
	// FramesInFlight is the slot count, 1 to MaxFramesInFlight. Zero means 2.
	FramesInFlight int
	ClearColor     driver.Color
	// FenceTimeout overrides DefaultFenceTimeout when non-zero.
	FenceTimeout time.Duration
	// Record supplies the per-frame draw calls. Nil records a single
	// unbuffered three-vertex draw.
	Record RecordFunc
}

// slot owns the per-frame objects that must not be shared between frames in
// flight: one command buffer, the acquire/release semaphore pair and the
// fence that gates reuse of all three.
type slot struct {
	commands       driver.CommandBuffer
	imageAvailable driver.Semaphore
	renderFinished driver.Semaphore
	inFlight       driver.Fence
}

// Orchestrator owns the swapchain, the render pass, the presentation
// pipeline and the frame slots, and runs the acquire/record/submit/present
// cycle. All methods must be called from the thread that drives the loop.
type Orchestrator struct {
	gpu     driver.GPU
	win     Window
	log     *log.Logger
	factory PipelineFactory

	clearColor   driver.Color
	fenceTimeout time.Duration
	record       RecordFunc

	pass  driver.RenderPass
	pipe  *pipeline.Pipeline
	surf  *surface
	slots []slot

	frameIndex      int
	frameCount      uint64
	pendingRecreate bool
	closed          bool
}

// New builds the swapchain for the window's current extent, the render pass
// and pipeline for its format, and one slot per frame in flight. Fences
// start signaled so the first wait on each slot passes immediately.
func New(gpu driver.GPU, win Window, logger *log.Logger, factory PipelineFactory, opts Options) (*Orchestrator, error) {
	n := opts.FramesInFlight
	if n == 0 {
		n = 2
	}
	if n < 1 || n > MaxFramesInFlight {
		return nil, fmt.Errorf("frames in flight must be 1..%d, got %d", MaxFramesInFlight, n)
	}
	timeout := opts.FenceTimeout
	if timeout == 0 {
		timeout = DefaultFenceTimeout
	}

	o := &Orchestrator{
		gpu:          gpu,
		win:          win,
		log:          logger,
		factory:      factory,
		clearColor:   opts.ClearColor,
		fenceTimeout: timeout,
		record:       opts.Record,
	}

	extent := o.waitDrawable()
	sc, err := gpu.NewSwapchain(extent)
	if err != nil {
		return nil, fmt.Errorf("create swapchain: %w", err)
	}
	o.pass, err = gpu.NewRenderPass(sc.Format(), driver.Samples1)
	if err != nil {
		sc.Destroy()
		return nil, fmt.Errorf("create render pass: %w", err)
	}
	o.surf, err = attachSurface(gpu, o.pass, sc)
	if err != nil {
		o.gpu.DestroyRenderPass(o.pass)
		return nil, err
	}
	o.pipe, err = factory(o.target())
	if err != nil {
		o.surf.destroy(gpu)
		o.gpu.DestroyRenderPass(o.pass)
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	for i := 0; i < n; i++ {
		s, err := o.newSlot()
		// Append even on failure so Close releases a partially built slot.
		o.slots = append(o.slots, s)
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("create frame slot %d: %w", i, err)
		}
	}

	o.log.Info("frame orchestrator ready",
		"slots", n,
		"images", len(o.surf.swapchain.Images()),
		"extent", fmt.Sprintf("%dx%d", extent.Width, extent.Height))
	return o, nil
}

func (o *Orchestrator) newSlot() (slot, error) {
	var s slot
	var err error
	if s.commands, err = o.gpu.NewCommandBuffer(); err != nil {
		return s, err
	}
	if s.imageAvailable, err = o.gpu.NewSemaphore(); err != nil {
		return s, err
	}
	if s.renderFinished, err = o.gpu.NewSemaphore(); err != nil {
		return s, err
	}
	// Signaled, so the first frame through this slot does not block.
	if s.inFlight, err = o.gpu.NewFence(true); err != nil {
		return s, err
	}
	return s, nil
}

func (o *Orchestrator) target() driver.RenderTarget {
	return driver.RenderTarget{
		Pass:        o.pass,
		ColorFormat: o.surf.swapchain.Format(),
		Samples:     driver.Samples1,
	}
}

// FrameIndex is the slot the next DrawFrame will use.
func (o *Orchestrator) FrameIndex() int { return o.frameIndex }

// SlotCount is the configured number of frames in flight.
func (o *Orchestrator) SlotCount() int { return len(o.slots) }

// FrameCount is the number of frames submitted so far.
func (o *Orchestrator) FrameCount() uint64 { return o.frameCount }

// Extent is the current swapchain extent.
func (o *Orchestrator) Extent() driver.Extent2D { return o.surf.swapchain.Extent() }

// Format is the current swapchain format.
func (o *Orchestrator) Format() driver.Format { return o.surf.swapchain.Format() }

// Pipeline is the presentation pipeline currently in use. It changes when
// recreation rebuilds for a new surface format.
func (o *Orchestrator) Pipeline() *pipeline.Pipeline { return o.pipe }

// DrawFrame runs one full frame through the current slot. A stale acquire
// rebuilds the swapchain and returns without drawing; the slot's fence is
// left signaled and the slot index does not advance, so the same slot
// retries next frame. Any returned error is fatal to the loop.
func (o *Orchestrator) DrawFrame() error {
	s := &o.slots[o.frameIndex]

	if err := o.gpu.WaitForFence(s.inFlight, o.fenceTimeout); err != nil {
		return fmt.Errorf("wait for frame slot %d: %w", o.frameIndex, err)
	}

	imageIndex, outcome, err := o.surf.swapchain.Acquire(s.imageAvailable)
	if err != nil {
		return fmt.Errorf("acquire image: %w", err)
	}
	switch outcome {
	case driver.AcquireStale:
		// The image index is unusable. Rebuild and retry this slot on the
		// next call; the fence stays signaled because nothing was submitted.
		return o.recreate()
	case driver.AcquireDegraded:
		// Still renderable this frame; schedule a rebuild for after present.
		o.pendingRecreate = true
	}

	// From here the frame is committed to a submission, so the fence may be
	// unsignaled without risking a wait on work that never gets queued.
	if err := o.gpu.ResetFence(s.inFlight); err != nil {
		return fmt.Errorf("reset frame fence: %w", err)
	}

	if err := o.recordFrame(s, imageIndex); err != nil {
		return err
	}
	if err := o.gpu.Submit(s.commands, s.imageAvailable, s.renderFinished, s.inFlight); err != nil {
		return fmt.Errorf("submit frame: %w", err)
	}

	presentOutcome, err := o.surf.swapchain.Present(s.renderFinished, imageIndex)
	if err != nil {
		return fmt.Errorf("present image %d: %w", imageIndex, err)
	}
	resized := o.win.ConsumeResize()
	if presentOutcome != driver.PresentSuccess || resized || o.pendingRecreate {
		if err := o.recreate(); err != nil {
			return err
		}
	}

	o.frameIndex = (o.frameIndex + 1) % len(o.slots)
	o.frameCount++
	return nil
}

func (o *Orchestrator) recordFrame(s *slot, imageIndex uint32) error {
	cb := s.commands
	extent := o.surf.swapchain.Extent()
	img := o.surf.swapchain.Images()[imageIndex]

	if err := cb.Reset(); err != nil {
		return fmt.Errorf("reset command buffer: %w", err)
	}
	if err := cb.Begin(); err != nil {
		return fmt.Errorf("begin command buffer: %w", err)
	}

	cb.Transition(img, o.surf.sourceLayout(imageIndex), driver.LayoutColorAttachment)

	cb.BeginRenderPass(o.pass, o.surf.framebuffers[imageIndex], extent, o.clearColor)
	o.pipe.Bind(cb)
	if o.pipe.HasDynamic(driver.DynamicViewport) {
		cb.SetViewport(driver.Viewport{
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MaxDepth: 1.0,
		})
	}
	if o.pipe.HasDynamic(driver.DynamicScissor) {
		cb.SetScissor(driver.Rect2D{Width: extent.Width, Height: extent.Height})
	}
	if o.record != nil {
		o.record(cb, extent)
	} else {
		cb.Draw(3, 1, 0, 0)
	}
	cb.EndRenderPass()

	cb.Transition(img, driver.LayoutColorAttachment, driver.LayoutPresent)

	if err := cb.End(); err != nil {
		return fmt.Errorf("end command buffer: %w", err)
	}
	return nil
}

// recreate rebuilds the surface for the current drawable extent. While the
// window is minimized it blocks on windowing events until the extent is
// drawable again. The device is drained before anything is destroyed. A
// format change additionally rebuilds the render pass and the pipeline.
func (o *Orchestrator) recreate() error {
	extent := o.waitDrawable()

	if err := o.gpu.WaitIdle(); err != nil {
		return fmt.Errorf("drain device for recreation: %w", err)
	}

	oldFormat := o.surf.swapchain.Format()
	o.surf.destroy(o.gpu)

	sc, err := o.gpu.NewSwapchain(extent)
	if err != nil {
		return fmt.Errorf("recreate swapchain: %w", err)
	}

	// The render pass and the pipeline are keyed to the surface format;
	// they must be rebuilt before any framebuffer is attached to the new
	// pass.
	formatChanged := sc.Format() != oldFormat
	if formatChanged {
		o.log.Info("surface format changed, rebuilding pipeline",
			"old", oldFormat, "new", sc.Format())
		o.pipe.Destroy()
		o.pipe = nil
		o.gpu.DestroyRenderPass(o.pass)
		if o.pass, err = o.gpu.NewRenderPass(sc.Format(), driver.Samples1); err != nil {
			sc.Destroy()
			return fmt.Errorf("rebuild render pass: %w", err)
		}
	}

	if o.surf, err = attachSurface(o.gpu, o.pass, sc); err != nil {
		return err
	}
	if formatChanged {
		if o.pipe, err = o.factory(o.target()); err != nil {
			return fmt.Errorf("rebuild pipeline: %w", err)
		}
	}

	o.pendingRecreate = false
	o.log.Debug("swapchain recreated",
		"extent", fmt.Sprintf("%dx%d", extent.Width, extent.Height))
	return nil
}

// waitDrawable blocks until the window reports a non-zero extent.
func (o *Orchestrator) waitDrawable() driver.Extent2D {
	extent := o.win.DrawableExtent()
	for extent.Zero() {
		o.win.WaitEvents()
		extent = o.win.DrawableExtent()
	}
	return extent
}

// RebuildPipeline drains the device and swaps in a pipeline freshly built by
// the factory for the current target. Used by shader hot reload.
func (o *Orchestrator) RebuildPipeline() error {
	if err := o.gpu.WaitIdle(); err != nil {
		return fmt.Errorf("drain device for pipeline rebuild: %w", err)
	}
	p, err := o.factory(o.target())
	if err != nil {
		return fmt.Errorf("rebuild pipeline: %w", err)
	}
	o.pipe.Destroy()
	o.pipe = p
	return nil
}

// Close drains the device and releases everything in dependency order:
// slots first (command buffers, semaphores, fences), then the pipeline, the
// render pass and finally the surface. Safe to call more than once.
func (o *Orchestrator) Close() {
	if o.closed {
		return
	}
	o.closed = true

	if err := o.gpu.WaitIdle(); err != nil {
		o.log.Error("drain device on shutdown", "err", err)
	}

	for _, s := range o.slots {
		if s.commands != nil {
			o.gpu.FreeCommandBuffer(s.commands)
		}
		if s.imageAvailable != nil {
			o.gpu.DestroySemaphore(s.imageAvailable)
		}
		if s.renderFinished != nil {
			o.gpu.DestroySemaphore(s.renderFinished)
		}
		if s.inFlight != nil {
			o.gpu.DestroyFence(s.inFlight)
		}
	}
	o.slots = nil

	if o.pipe != nil {
		o.pipe.Destroy()
		o.pipe = nil
	}
	if o.pass != nil {
		o.gpu.DestroyRenderPass(o.pass)
		o.pass = nil
	}
	if o.surf != nil {
		o.surf.destroy(o.gpu)
		o.surf = nil
	}
}
