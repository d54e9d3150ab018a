// Package engine owns the application lifecycle: window startup, the frame
// loop with its clock and metrics, shader hot reload and ordered shutdown.
package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/prismengine/prism/engine/assets"
	"github.com/prismengine/prism/engine/config"
	"github.com/prismengine/prism/engine/core"
	"github.com/prismengine/prism/engine/platform"
	"github.com/prismengine/prism/engine/renderer"
	"github.com/prismengine/prism/engine/renderer/driver"
)

// triangleVertices is the demo geometry, clip space with Y pointing down.
var triangleVertices = []driver.Vertex2DColor{
	{Position: [2]float32{0.0, -0.5}, Color: [3]float32{1, 0, 0}},
	{Position: [2]float32{0.5, 0.5}, Color: [3]float32{0, 1, 0}},
	{Position: [2]float32{-0.5, 0.5}, Color: [3]float32{0, 0, 1}},
}

type Engine struct {
	cfg      config.Config
	log      *log.Logger
	platform *platform.Platform
	renderer *renderer.Renderer
	triangle driver.Buffer
	watcher  *assets.ShaderWatcher

	clock    *core.Clock
	metrics  *core.Metrics
	lastTime float64

	stopping atomic.Bool
}

// New builds the engine from a validated configuration. The window, device
// and presentation pipeline all come up here; Run only loops.
func New(cfg config.Config) (*Engine, error) {
	logger := core.NewLogger(core.LoggerOptions{
		Prefix: cfg.App.Name,
		Level:  cfg.LogLevel(),
	})

	e := &Engine{
		cfg:     cfg,
		log:     logger,
		clock:   core.NewClock(),
		metrics: core.NewMetrics(),
	}

	p := platform.New(logger)
	if err := p.Startup(cfg.App.Name, cfg.Window.PosX, cfg.Window.PosY, cfg.Window.Width, cfg.Window.Height); err != nil {
		return nil, err
	}
	e.platform = p

	r, err := renderer.New(p, logger, renderer.Config{
		AppName:        cfg.App.Name,
		FramesInFlight: cfg.Render.FramesInFlight,
		VSync:          cfg.Render.VSync,
		Validation:     cfg.Render.Validation,
		ClearColor:     driver.Color(cfg.Render.ClearColor),
		VertexShader:   cfg.Shader.VertexPath,
		FragmentShader: cfg.Shader.FragmentPath,
		VertexLayout:   driver.Vertex2DColor{},
		Record:         e.recordTriangle,
	})
	if err != nil {
		e.teardown()
		return nil, err
	}
	e.renderer = r

	e.triangle, err = uploadTriangle(r.GPU())
	if err != nil {
		e.teardown()
		return nil, err
	}

	if cfg.Shader.HotReload {
		e.watcher, err = assets.NewShaderWatcher(logger, cfg.Shader.VertexPath, cfg.Shader.FragmentPath)
		if err != nil {
			e.teardown()
			return nil, err
		}
	}
	return e, nil
}

// Run drives the frame loop until the window closes or Stop is called.
// It must run on the thread that created the window.
func (e *Engine) Run() error {
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	defer e.teardown()

	for !e.platform.ShouldClose() {
		if e.stopping.Load() {
			return core.ErrShutdown
		}

		e.platform.PollEvents()

		if err := e.drainShaderChanges(); err != nil {
			return err
		}

		if err := e.renderer.DrawFrame(); err != nil {
			return fmt.Errorf("frame %d: %w", e.renderer.FrameCount(), err)
		}

		e.clock.Update()
		now := e.clock.Elapsed()
		e.metrics.Update(now - e.lastTime)
		e.lastTime = now

		if e.renderer.FrameCount()%600 == 0 {
			e.log.Debug("frame stats",
				"fps", e.metrics.FPS(),
				"frameMs", e.metrics.FrameTime())
		}
	}
	return nil
}

// Stop requests the loop to exit; safe from any goroutine.
func (e *Engine) Stop() {
	e.stopping.Store(true)
}

// uploadTriangle stages the demo vertices into a device-local buffer.
func uploadTriangle(gpu driver.GPU) (driver.Buffer, error) {
	data := driver.VertexBytes(triangleVertices)
	buf, err := gpu.NewBuffer(uint64(len(data)), driver.BufferUsageVertex)
	if err != nil {
		return nil, fmt.Errorf("create vertex buffer: %w", err)
	}
	if err := gpu.UploadBuffer(buf, data); err != nil {
		gpu.DestroyBuffer(buf)
		return nil, fmt.Errorf("upload vertices: %w", err)
	}
	return buf, nil
}

// recordTriangle draws the demo geometry into an open render pass.
func (e *Engine) recordTriangle(cb driver.CommandBuffer, _ driver.Extent2D) {
	if e.triangle == nil {
		return
	}
	cb.BindVertexBuffer(e.triangle)
	cb.Draw(uint32(len(triangleVertices)), 1, 0, 0)
}

// drainShaderChanges rebuilds the pipeline once when any watched shader was
// rewritten, collapsing a burst of events into a single rebuild.
func (e *Engine) drainShaderChanges() error {
	if e.watcher == nil {
		return nil
	}
	changed := false
	for {
		select {
		case path := <-e.watcher.Changes():
			e.log.Info("shader rebuilt on disk", "path", path)
			changed = true
			continue
		default:
		}
		break
	}
	if !changed {
		return nil
	}
	if err := e.renderer.ReloadPipeline(); err != nil {
		// A half-written or broken shader should not kill the app; keep
		// presenting with the previous pipeline.
		e.log.Error("shader reload failed, keeping previous pipeline", "err", err)
		return nil
	}
	e.log.Info("pipeline reloaded")
	return nil
}

// teardown releases everything in reverse order of creation.
func (e *Engine) teardown() {
	if e.watcher != nil {
		e.watcher.Close()
		e.watcher = nil
	}
	if e.triangle != nil {
		// The buffer may still be referenced by in-flight frames; drain
		// before freeing it, while the device is still up.
		e.renderer.GPU().WaitIdle()
		e.renderer.GPU().DestroyBuffer(e.triangle)
		e.triangle = nil
	}
	if e.renderer != nil {
		e.renderer.Shutdown()
		e.renderer = nil
	}
	if e.platform != nil {
		e.platform.Shutdown()
		e.platform = nil
	}
}
