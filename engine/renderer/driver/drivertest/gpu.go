// Package drivertest provides a scripted, in-memory driver.GPU for testing
// the pipeline builder and the frame orchestrator without a device. Every
// call is appended to an ordered op log; acquire and present outcomes are
// scripted per call; submissions signal their fence immediately.
package drivertest

import (
	"fmt"
	"time"

	"github.com/prismengine/prism/engine/renderer/driver"
)

type GPU struct {
	// CapsValue is returned by Caps. Tests set it per case.
	CapsValue driver.DeviceCaps

	// ImageCount is the number of images per created swapchain.
	ImageCount int
	// SwapFormat is the format of the next created swapchain.
	SwapFormat driver.Format

	// AcquireScript is consumed one outcome per Acquire call; when exhausted
	// every acquire succeeds. Same for PresentScript.
	AcquireScript []driver.AcquireOutcome
	PresentScript []driver.PresentOutcome

	// PipelineErr forces NewPipeline to fail.
	PipelineErr error

	// Ops is the ordered log of every device call.
	Ops []string

	// CommandBuffers lists every command buffer created, in creation order,
	// so tests can inspect recordings.
	CommandBuffers []*CommandBuffer

	created   map[string]int
	destroyed map[string]int

	generation int
	nextID     map[string]int
}

func NewGPU() *GPU {
	return &GPU{
		CapsValue: driver.DeviceCaps{
			MaxViewports: 16,
			SampleCounts: driver.Samples1 | driver.Samples2 | driver.Samples4,
		},
		ImageCount: 3,
		SwapFormat: driver.FormatBGRA8Unorm,
		created:    make(map[string]int),
		destroyed:  make(map[string]int),
		nextID:     make(map[string]int),
	}
}

func (g *GPU) log(format string, args ...interface{}) {
	g.Ops = append(g.Ops, fmt.Sprintf(format, args...))
}

func (g *GPU) name(kind string) string {
	id := g.nextID[kind]
	g.nextID[kind]++
	g.created[kind]++
	return fmt.Sprintf("%s%d", kind, id)
}

// Alive returns created-minus-destroyed for an object kind ("shader",
// "fence", "view", "framebuffer", ...).
func (g *GPU) Alive(kind string) int {
	return g.created[kind] - g.destroyed[kind]
}

// OpsMatching returns the log entries beginning with prefix, in order.
func (g *GPU) OpsMatching(prefix string) []string {
	var out []string
	for _, op := range g.Ops {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			out = append(out, op)
		}
	}
	return out
}

func (g *GPU) Caps() driver.DeviceCaps { return g.CapsValue }

// --- shader / pipeline objects ---

type ShaderModule struct{ Name string }
type PipelineLayout struct{ Name string }
type Pipeline struct {
	Name  string
	State driver.GraphState
}
type RenderPass struct {
	Name   string
	Format driver.Format
}

func (g *GPU) NewShaderModule(code []byte) (driver.ShaderModule, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("empty shader bytecode")
	}
	m := &ShaderModule{Name: g.name("shader")}
	g.log("create %s", m.Name)
	return m, nil
}

func (g *GPU) DestroyShaderModule(m driver.ShaderModule) {
	g.destroyed["shader"]++
	g.log("destroy %s", m.(*ShaderModule).Name)
}

func (g *GPU) NewPipelineLayout(setLayouts []driver.DescriptorSetLayout, pushConstants []driver.PushConstantRange) (driver.PipelineLayout, error) {
	l := &PipelineLayout{Name: g.name("layout")}
	g.log("create %s sets=%d push=%d", l.Name, len(setLayouts), len(pushConstants))
	return l, nil
}

func (g *GPU) DestroyPipelineLayout(l driver.PipelineLayout) {
	g.destroyed["layout"]++
	g.log("destroy %s", l.(*PipelineLayout).Name)
}

func (g *GPU) NewPipeline(state *driver.GraphState) (driver.Pipeline, error) {
	if g.PipelineErr != nil {
		return nil, g.PipelineErr
	}
	p := &Pipeline{Name: g.name("pipeline"), State: *state}
	g.log("create %s", p.Name)
	return p, nil
}

func (g *GPU) DestroyPipeline(p driver.Pipeline) {
	g.destroyed["pipeline"]++
	g.log("destroy %s", p.(*Pipeline).Name)
}

func (g *GPU) NewRenderPass(colorFormat driver.Format, samples driver.SampleCount) (driver.RenderPass, error) {
	rp := &RenderPass{Name: g.name("pass"), Format: colorFormat}
	g.log("create %s", rp.Name)
	return rp, nil
}

func (g *GPU) DestroyRenderPass(rp driver.RenderPass) {
	g.destroyed["pass"]++
	g.log("destroy %s", rp.(*RenderPass).Name)
}

// --- swapchain surface ---

type Image struct{ Name string }
type ImageView struct{ Name string }
type Framebuffer struct{ Name string }

type Swapchain struct {
	gpu    *GPU
	Name   string
	images []driver.Image
	format driver.Format
	extent driver.Extent2D
	next   uint32
}

func (g *GPU) NewSwapchain(extent driver.Extent2D) (driver.Swapchain, error) {
	if extent.Zero() {
		return nil, fmt.Errorf("zero swapchain extent %dx%d", extent.Width, extent.Height)
	}
	gen := g.generation
	g.generation++
	g.created["swapchain"]++
	sc := &Swapchain{
		gpu:    g,
		Name:   fmt.Sprintf("swapchain@g%d", gen),
		format: g.SwapFormat,
		extent: extent,
	}
	for i := 0; i < g.ImageCount; i++ {
		g.created["image"]++
		sc.images = append(sc.images, &Image{Name: fmt.Sprintf("img%d@g%d", i, gen)})
	}
	g.log("create %s images=%d", sc.Name, len(sc.images))
	return sc, nil
}

func (sc *Swapchain) Images() []driver.Image  { return sc.images }
func (sc *Swapchain) Format() driver.Format   { return sc.format }
func (sc *Swapchain) Extent() driver.Extent2D { return sc.extent }

func (sc *Swapchain) Acquire(imageAvailable driver.Semaphore) (uint32, driver.AcquireOutcome, error) {
	outcome := driver.AcquireSuccess
	if len(sc.gpu.AcquireScript) > 0 {
		outcome = sc.gpu.AcquireScript[0]
		sc.gpu.AcquireScript = sc.gpu.AcquireScript[1:]
	}
	if outcome == driver.AcquireStale {
		sc.gpu.log("acquire %s stale", sc.Name)
		return 0, outcome, nil
	}
	idx := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	sc.gpu.log("acquire %s -> %d", sc.Name, idx)
	return idx, outcome, nil
}

func (sc *Swapchain) Present(renderFinished driver.Semaphore, imageIndex uint32) (driver.PresentOutcome, error) {
	outcome := driver.PresentSuccess
	if len(sc.gpu.PresentScript) > 0 {
		outcome = sc.gpu.PresentScript[0]
		sc.gpu.PresentScript = sc.gpu.PresentScript[1:]
	}
	sc.gpu.log("present %s img=%d", sc.Name, imageIndex)
	return outcome, nil
}

func (sc *Swapchain) Destroy() {
	sc.gpu.destroyed["swapchain"]++
	sc.gpu.destroyed["image"] += len(sc.images)
	sc.gpu.log("destroy %s", sc.Name)
}

func (g *GPU) NewImageView(img driver.Image, format driver.Format) (driver.ImageView, error) {
	v := &ImageView{Name: "view:" + img.(*Image).Name}
	g.created["view"]++
	g.log("create %s", v.Name)
	return v, nil
}

func (g *GPU) DestroyImageView(v driver.ImageView) {
	g.destroyed["view"]++
	g.log("destroy %s", v.(*ImageView).Name)
}

func (g *GPU) NewFramebuffer(pass driver.RenderPass, view driver.ImageView, extent driver.Extent2D) (driver.Framebuffer, error) {
	fb := &Framebuffer{Name: "fb:" + view.(*ImageView).Name}
	g.created["framebuffer"]++
	g.log("create %s", fb.Name)
	return fb, nil
}

func (g *GPU) DestroyFramebuffer(fb driver.Framebuffer) {
	g.destroyed["framebuffer"]++
	g.log("destroy %s", fb.(*Framebuffer).Name)
}

// --- sync objects ---

type Semaphore struct{ Name string }

type Fence struct {
	Name     string
	Signaled bool
}

func (g *GPU) NewSemaphore() (driver.Semaphore, error) {
	s := &Semaphore{Name: g.name("sem")}
	g.log("create %s", s.Name)
	return s, nil
}

func (g *GPU) DestroySemaphore(s driver.Semaphore) {
	g.destroyed["sem"]++
	g.log("destroy %s", s.(*Semaphore).Name)
}

func (g *GPU) NewFence(signaled bool) (driver.Fence, error) {
	f := &Fence{Name: g.name("fence"), Signaled: signaled}
	g.log("create %s signaled=%v", f.Name, signaled)
	return f, nil
}

func (g *GPU) DestroyFence(f driver.Fence) {
	g.destroyed["fence"]++
	g.log("destroy %s", f.(*Fence).Name)
}

// WaitForFence fails when the fence is unsignaled: with an instant-complete
// fake GPU an unsignaled fence can never signal, so a wait on one is the
// test-visible form of a deadlock.
func (g *GPU) WaitForFence(f driver.Fence, timeout time.Duration) error {
	fence := f.(*Fence)
	g.log("wait %s", fence.Name)
	if !fence.Signaled {
		return fmt.Errorf("wait on unsignaled %s: %w", fence.Name, driver.ErrFenceTimeout)
	}
	return nil
}

func (g *GPU) ResetFence(f driver.Fence) error {
	fence := f.(*Fence)
	fence.Signaled = false
	g.log("reset %s", fence.Name)
	return nil
}

// --- command buffers and submission ---

type CommandBuffer struct {
	gpu  *GPU
	Name string
	// Current is the recording in progress; History holds every completed
	// recording in order.
	Current   []string
	History   [][]string
	recording bool
}

func (g *GPU) NewCommandBuffer() (driver.CommandBuffer, error) {
	cb := &CommandBuffer{gpu: g, Name: g.name("cb")}
	g.CommandBuffers = append(g.CommandBuffers, cb)
	g.log("create %s", cb.Name)
	return cb, nil
}

func (g *GPU) FreeCommandBuffer(cb driver.CommandBuffer) {
	g.destroyed["cb"]++
	g.log("free %s", cb.(*CommandBuffer).Name)
}

func (cb *CommandBuffer) record(format string, args ...interface{}) {
	cb.Current = append(cb.Current, fmt.Sprintf(format, args...))
}

func (cb *CommandBuffer) Begin() error {
	cb.recording = true
	cb.gpu.log("%s begin", cb.Name)
	return nil
}

func (cb *CommandBuffer) End() error {
	cb.recording = false
	cb.History = append(cb.History, cb.Current)
	cb.gpu.log("%s end", cb.Name)
	return nil
}

func (cb *CommandBuffer) Reset() error {
	cb.Current = nil
	cb.gpu.log("%s reset", cb.Name)
	return nil
}

func (cb *CommandBuffer) Transition(img driver.Image, from, to driver.Layout) {
	cb.record("transition %s %d->%d", img.(*Image).Name, from, to)
}

func (cb *CommandBuffer) BeginRenderPass(pass driver.RenderPass, fb driver.Framebuffer, area driver.Extent2D, clear driver.Color) {
	cb.record("beginpass %s %dx%d", fb.(*Framebuffer).Name, area.Width, area.Height)
}

func (cb *CommandBuffer) EndRenderPass() {
	cb.record("endpass")
}

func (cb *CommandBuffer) BindPipeline(p driver.Pipeline) {
	cb.record("bind %s", p.(*Pipeline).Name)
}

func (cb *CommandBuffer) SetViewport(v driver.Viewport) {
	cb.record("viewport %gx%g", v.Width, v.Height)
}

func (cb *CommandBuffer) SetScissor(r driver.Rect2D) {
	cb.record("scissor %dx%d", r.Width, r.Height)
}

func (cb *CommandBuffer) BindVertexBuffer(b driver.Buffer) {
	cb.record("bindvtx %s", b.(*Buffer).Name)
}

func (cb *CommandBuffer) BindIndexBuffer(b driver.Buffer) {
	cb.record("bindidx %s", b.(*Buffer).Name)
}

func (cb *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	cb.record("draw %d", vertexCount)
}

func (cb *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	cb.record("drawindexed %d", indexCount)
}

func (cb *CommandBuffer) ClearColor(img driver.Image, c driver.Color) {
	cb.record("clear %s", img.(*Image).Name)
}

// Submit signals the fence immediately: the fake GPU completes all work the
// instant it is queued.
func (g *GPU) Submit(cb driver.CommandBuffer, wait driver.Semaphore, signal driver.Semaphore, fence driver.Fence) error {
	f := fence.(*Fence)
	f.Signaled = true
	g.log("submit %s wait=%s signal=%s fence=%s",
		cb.(*CommandBuffer).Name, wait.(*Semaphore).Name, signal.(*Semaphore).Name, f.Name)
	return nil
}

func (g *GPU) WaitIdle() error {
	g.log("waitidle")
	return nil
}

// --- buffers ---

type Buffer struct {
	Name string
	Size uint64
	Data []byte
}

func (g *GPU) NewBuffer(size uint64, usage driver.BufferUsage) (driver.Buffer, error) {
	b := &Buffer{Name: g.name("buffer"), Size: size}
	g.log("create %s size=%d", b.Name, size)
	return b, nil
}

func (g *GPU) DestroyBuffer(b driver.Buffer) {
	g.destroyed["buffer"]++
	g.log("destroy %s", b.(*Buffer).Name)
}

func (g *GPU) UploadBuffer(b driver.Buffer, data []byte) error {
	buf := b.(*Buffer)
	buf.Data = append([]byte(nil), data...)
	g.log("upload %s bytes=%d", buf.Name, len(data))
	return nil
}
