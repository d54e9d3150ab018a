package frame

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismengine/prism/engine/core"
	"github.com/prismengine/prism/engine/renderer/driver"
	"github.com/prismengine/prism/engine/renderer/driver/drivertest"
	"github.com/prismengine/prism/engine/renderer/pipeline"
)

// testWindow is a scriptable drawable. WaitEvents pops the next extent from
// pending, which lets tests model a window being restored from minimized.
type testWindow struct {
	extent    driver.Extent2D
	pending   []driver.Extent2D
	resized   bool
	waitCalls int
}

func newTestWindow() *testWindow {
	return &testWindow{extent: driver.Extent2D{Width: 800, Height: 600}}
}

func (w *testWindow) DrawableExtent() driver.Extent2D { return w.extent }

func (w *testWindow) ConsumeResize() bool {
	r := w.resized
	w.resized = false
	return r
}

func (w *testWindow) WaitEvents() {
	w.waitCalls++
	if len(w.pending) > 0 {
		w.extent = w.pending[0]
		w.pending = w.pending[1:]
	}
}

func trianglePipeline(gpu *drivertest.GPU) PipelineFactory {
	return func(target driver.RenderTarget) (*pipeline.Pipeline, error) {
		return pipeline.NewBuilder(gpu, core.NopLogger()).
			AddShaderStage([]byte{1, 2, 3, 4}, driver.StageVertex).
			AddShaderStage([]byte{1, 2, 3, 4}, driver.StageFragment).
			AddDynamicState(driver.DynamicViewport).
			AddDynamicState(driver.DynamicScissor).
			Build(target)
	}
}

func newOrchestrator(t *testing.T, gpu *drivertest.GPU, win Window, opts Options) *Orchestrator {
	t.Helper()
	o, err := New(gpu, win, core.NopLogger(), trianglePipeline(gpu), opts)
	require.NoError(t, err)
	return o
}

// submittedBuffers returns the command buffer name of each submission in
// order.
func submittedBuffers(gpu *drivertest.GPU) []string {
	var out []string
	for _, op := range gpu.OpsMatching("submit ") {
		out = append(out, strings.Fields(op)[1])
	}
	return out
}

func TestStartupState(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("slots=%d", n), func(t *testing.T) {
			gpu := drivertest.NewGPU()
			o := newOrchestrator(t, gpu, newTestWindow(), Options{FramesInFlight: n})

			assert.Equal(t, n, o.SlotCount())
			assert.Equal(t, 0, o.FrameIndex())
			assert.Equal(t, n, gpu.Alive("fence"))
			assert.Equal(t, 2*n, gpu.Alive("sem"))
			assert.Equal(t, n, gpu.Alive("cb"))
			assert.Len(t, gpu.OpsMatching("create fence"), n)
			for _, op := range gpu.OpsMatching("create fence") {
				assert.Contains(t, op, "signaled=true", "slot fences must start signaled")
			}
		})
	}
}

func TestRejectsBadSlotCount(t *testing.T) {
	gpu := drivertest.NewGPU()
	for _, n := range []int{-1, 4, 17} {
		_, err := New(gpu, newTestWindow(), core.NopLogger(), trianglePipeline(gpu), Options{FramesInFlight: n})
		assert.Error(t, err, "slot count %d", n)
	}
}

func TestSlotRotation(t *testing.T) {
	gpu := drivertest.NewGPU()
	o := newOrchestrator(t, gpu, newTestWindow(), Options{FramesInFlight: 2})
	for i := 0; i < 5; i++ {
		require.NoError(t, o.DrawFrame())
	}

	assert.Equal(t, uint64(5), o.FrameCount())
	assert.Equal(t, 1, o.FrameIndex())

	subs := submittedBuffers(gpu)
	require.Len(t, subs, 5)
	assert.Equal(t, []string{subs[0], subs[1], subs[0], subs[1], subs[0]}, subs)
	assert.NotEqual(t, subs[0], subs[1])
}

// Running many frames with a single slot works only if every frame waits on
// a fence that was actually signaled; the fake fails the wait otherwise.
func TestSingleSlotNeverDeadlocks(t *testing.T) {
	gpu := drivertest.NewGPU()
	o := newOrchestrator(t, gpu, newTestWindow(), Options{FramesInFlight: 1})
	for i := 0; i < 10; i++ {
		require.NoError(t, o.DrawFrame())
	}
	assert.Equal(t, uint64(10), o.FrameCount())
}

func TestStaleAcquireRecreatesWithoutDrawing(t *testing.T) {
	gpu := drivertest.NewGPU()
	o := newOrchestrator(t, gpu, newTestWindow(), Options{FramesInFlight: 2})

	gpu.AcquireScript = []driver.AcquireOutcome{
		driver.AcquireSuccess, driver.AcquireSuccess, driver.AcquireStale,
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, o.DrawFrame())
	}

	// The stale frame neither submitted nor advanced.
	assert.Equal(t, uint64(2), o.FrameCount())
	assert.Equal(t, 0, o.FrameIndex())
	assert.Len(t, gpu.OpsMatching("submit "), 2)
	assert.Len(t, gpu.OpsMatching("reset fence"), 2, "stale acquire must not reset the slot fence")
	assert.Len(t, gpu.OpsMatching("destroy swapchain"), 1)

	// The same slot retries cleanly on the rebuilt swapchain.
	for i := 0; i < 2; i++ {
		require.NoError(t, o.DrawFrame())
	}
	assert.Equal(t, uint64(4), o.FrameCount())
	subs := submittedBuffers(gpu)
	assert.Equal(t, []string{subs[0], subs[1], subs[0], subs[1]}, subs)
}

func TestDegradedAcquireDrawsThenRecreates(t *testing.T) {
	gpu := drivertest.NewGPU()
	o := newOrchestrator(t, gpu, newTestWindow(), Options{FramesInFlight: 2})

	gpu.AcquireScript = []driver.AcquireOutcome{driver.AcquireDegraded}
	require.NoError(t, o.DrawFrame())

	// Degraded still draws and presents, then rebuilds.
	assert.Equal(t, uint64(1), o.FrameCount())
	assert.Equal(t, 1, o.FrameIndex())
	assert.Len(t, gpu.OpsMatching("submit "), 1)
	assert.Len(t, gpu.OpsMatching("present "), 1)
	assert.Len(t, gpu.OpsMatching("destroy swapchain"), 1)
}

func TestPresentOutcomeTriggersRecreate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		outcome driver.PresentOutcome
	}{
		{"stale", driver.PresentStale},
		{"degraded", driver.PresentDegraded},
	} {
		t.Run(tc.name, func(t *testing.T) {
			gpu := drivertest.NewGPU()
			o := newOrchestrator(t, gpu, newTestWindow(), Options{FramesInFlight: 2})

			gpu.PresentScript = []driver.PresentOutcome{tc.outcome}
			require.NoError(t, o.DrawFrame())

			assert.Len(t, gpu.OpsMatching("destroy swapchain"), 1)
			assert.Equal(t, uint64(1), o.FrameCount(), "presented frame still counts")
		})
	}
}

func TestResizeFlagTriggersRecreate(t *testing.T) {
	gpu := drivertest.NewGPU()
	win := newTestWindow()
	o := newOrchestrator(t, gpu, win, Options{FramesInFlight: 2})

	win.extent = driver.Extent2D{Width: 1024, Height: 768}
	win.resized = true
	require.NoError(t, o.DrawFrame())

	assert.Len(t, gpu.OpsMatching("destroy swapchain"), 1)
	assert.Equal(t, driver.Extent2D{Width: 1024, Height: 768}, o.Extent())
	assert.False(t, win.resized, "resize flag is one-shot")

	require.NoError(t, o.DrawFrame())
	assert.Len(t, gpu.OpsMatching("destroy swapchain"), 1, "no further recreation without a new resize")
}

func TestMinimizedWindowWaitsForRestore(t *testing.T) {
	gpu := drivertest.NewGPU()
	win := newTestWindow()
	o := newOrchestrator(t, gpu, win, Options{FramesInFlight: 2})

	// Minimize, then restore two events later.
	win.extent = driver.Extent2D{}
	win.pending = []driver.Extent2D{{}, {Width: 640, Height: 480}}
	gpu.AcquireScript = []driver.AcquireOutcome{driver.AcquireStale}

	require.NoError(t, o.DrawFrame())

	assert.Equal(t, 2, win.waitCalls)
	assert.Equal(t, driver.Extent2D{Width: 640, Height: 480}, o.Extent())
}

func TestRecreationRebuildsSurfaceInOrder(t *testing.T) {
	gpu := drivertest.NewGPU()
	o := newOrchestrator(t, gpu, newTestWindow(), Options{FramesInFlight: 2})

	gpu.AcquireScript = []driver.AcquireOutcome{driver.AcquireStale}
	require.NoError(t, o.DrawFrame())

	// One of each alive afterwards.
	assert.Equal(t, 1, gpu.Alive("swapchain"))
	assert.Equal(t, gpu.ImageCount, gpu.Alive("view"))
	assert.Equal(t, gpu.ImageCount, gpu.Alive("framebuffer"))

	// Drain before teardown, then framebuffers, views, swapchain.
	idx := func(op string) int {
		for i, o := range gpu.Ops {
			if o == op {
				return i
			}
		}
		t.Fatalf("op %q not found in log", op)
		return -1
	}
	wait := idx("waitidle")
	fb := idx("destroy fb:view:img0@g0")
	view := idx("destroy view:img0@g0")
	sc := idx("destroy swapchain@g0")
	assert.Less(t, wait, fb)
	assert.Less(t, fb, view)
	assert.Less(t, view, sc)
}

func TestFormatChangeRebuildsPassAndPipeline(t *testing.T) {
	gpu := drivertest.NewGPU()
	o := newOrchestrator(t, gpu, newTestWindow(), Options{FramesInFlight: 2})
	oldPipe := o.Pipeline()

	gpu.SwapFormat = driver.FormatBGRA8SRGB
	gpu.AcquireScript = []driver.AcquireOutcome{driver.AcquireStale}
	require.NoError(t, o.DrawFrame())

	assert.Equal(t, driver.FormatBGRA8SRGB, o.Format())
	assert.NotSame(t, oldPipe, o.Pipeline())
	assert.Equal(t, driver.FormatBGRA8SRGB, o.Pipeline().ColorFormat())
	assert.Equal(t, 1, gpu.Alive("pipeline"))
	assert.Equal(t, 1, gpu.Alive("pass"))
	assert.Len(t, gpu.OpsMatching("create pipeline"), 2)

	require.NoError(t, o.DrawFrame())
	assert.Equal(t, uint64(1), o.FrameCount())
}

func TestRecordedFrameShape(t *testing.T) {
	gpu := drivertest.NewGPU()
	o := newOrchestrator(t, gpu, newTestWindow(), Options{
		FramesInFlight: 2,
		ClearColor:     driver.Color{0, 0, 0, 1},
	})
	require.NoError(t, o.DrawFrame())

	cb := gpu.CommandBuffers[0]
	require.Len(t, cb.History, 1)
	rec := cb.History[0]
	require.Len(t, rec, 8)
	assert.Equal(t, fmt.Sprintf("transition img0@g0 %d->%d", driver.LayoutUndefined, driver.LayoutColorAttachment), rec[0])
	assert.Equal(t, "beginpass fb:view:img0@g0 800x600", rec[1])
	assert.True(t, strings.HasPrefix(rec[2], "bind pipeline"))
	assert.Equal(t, "viewport 800x600", rec[3])
	assert.Equal(t, "scissor 800x600", rec[4])
	assert.Equal(t, "draw 3", rec[5])
	assert.Equal(t, "endpass", rec[6])
	assert.Equal(t, fmt.Sprintf("transition img0@g0 %d->%d", driver.LayoutColorAttachment, driver.LayoutPresent), rec[7])
}

// The first pass over each image starts from the undefined layout; once an
// image has been presented, later frames start from the present layout.
func TestImageLayoutTracking(t *testing.T) {
	gpu := drivertest.NewGPU()
	o := newOrchestrator(t, gpu, newTestWindow(), Options{FramesInFlight: 2})

	// Three images, so frame 4 reuses image 0.
	for i := 0; i < 4; i++ {
		require.NoError(t, o.DrawFrame())
	}

	var img0Transitions []string
	for _, cb := range gpu.CommandBuffers {
		for _, rec := range cb.History {
			for _, op := range rec {
				if strings.HasPrefix(op, "transition img0@g0 ") && strings.HasSuffix(op, fmt.Sprintf("->%d", driver.LayoutColorAttachment)) {
					img0Transitions = append(img0Transitions, op)
				}
			}
		}
	}
	require.Len(t, img0Transitions, 2)
	assert.Contains(t, img0Transitions[0], fmt.Sprintf(" %d->", driver.LayoutUndefined))
	assert.Contains(t, img0Transitions[1], fmt.Sprintf(" %d->", driver.LayoutPresent))
}

func TestCustomRecordFunc(t *testing.T) {
	gpu := drivertest.NewGPU()
	o := newOrchestrator(t, gpu, newTestWindow(), Options{
		FramesInFlight: 1,
		Record: func(cb driver.CommandBuffer, extent driver.Extent2D) {
			cb.Draw(6, 1, 0, 0)
		},
	})
	require.NoError(t, o.DrawFrame())

	rec := gpu.CommandBuffers[0].History[0]
	assert.Contains(t, rec, "draw 6")
	assert.NotContains(t, rec, "draw 3")
}

func TestRebuildPipelineDrainsFirst(t *testing.T) {
	gpu := drivertest.NewGPU()
	o := newOrchestrator(t, gpu, newTestWindow(), Options{FramesInFlight: 2})
	require.NoError(t, o.DrawFrame())

	old := o.Pipeline()
	require.NoError(t, o.RebuildPipeline())

	assert.NotSame(t, old, o.Pipeline())
	assert.Equal(t, 1, gpu.Alive("pipeline"))
	assert.NotEmpty(t, gpu.OpsMatching("waitidle"))
}

func TestCloseReleasesEverything(t *testing.T) {
	gpu := drivertest.NewGPU()
	o := newOrchestrator(t, gpu, newTestWindow(), Options{FramesInFlight: 3})
	for i := 0; i < 4; i++ {
		require.NoError(t, o.DrawFrame())
	}

	o.Close()
	o.Close() // idempotent

	for _, kind := range []string{"swapchain", "view", "framebuffer", "pipeline", "layout", "pass", "fence", "sem", "cb", "shader"} {
		assert.Equalf(t, 0, gpu.Alive(kind), "%s leaked", kind)
	}

	// Slots go before the pipeline, the pipeline before the pass, the pass
	// before the surface.
	var order []string
	add := func(kind string) {
		if len(order) == 0 || order[len(order)-1] != kind {
			order = append(order, kind)
		}
	}
	for _, op := range gpu.Ops {
		switch {
		case strings.HasPrefix(op, "free cb"):
			add("cb")
		case strings.HasPrefix(op, "destroy pipeline"):
			add("pipeline")
		case strings.HasPrefix(op, "destroy pass"):
			add("pass")
		case strings.HasPrefix(op, "destroy swapchain"):
			add("swapchain")
		}
	}
	assert.Equal(t, []string{"cb", "pipeline", "pass", "swapchain"}, order)
}
