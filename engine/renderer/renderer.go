// Package renderer wires the window, the Vulkan device and the frame
// orchestrator into one front end the engine loop drives.
package renderer

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/prismengine/prism/engine/assets"
	"github.com/prismengine/prism/engine/platform"
	"github.com/prismengine/prism/engine/renderer/driver"
	"github.com/prismengine/prism/engine/renderer/frame"
	"github.com/prismengine/prism/engine/renderer/pipeline"
	"github.com/prismengine/prism/engine/renderer/vulkan"
)

// Config selects the renderer's device and presentation behavior.
type Config struct {
	AppName        string
	FramesInFlight int
	VSync          bool
	Validation     bool
	ClearColor     driver.Color

	// Compiled SPIR-V for the presentation pipeline, reloaded from disk on
	// every pipeline (re)build so hot reload picks up new bytes.
	VertexShader   string
	FragmentShader string

	// VertexLayout describes the vertex input the pipeline consumes. Nil
	// means the vertex shader generates its own geometry.
	VertexLayout driver.VertexLayout

	// Record overrides the default three-vertex draw.
	Record frame.RecordFunc
}

type Renderer struct {
	log  *log.Logger
	gpu  *vulkan.GPU
	orch *frame.Orchestrator
}

func New(p *platform.Platform, logger *log.Logger, cfg Config) (*Renderer, error) {
	gpu, err := vulkan.New(p, logger, vulkan.Options{
		AppName:    cfg.AppName,
		Validation: cfg.Validation,
		VSync:      cfg.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("create device: %w", err)
	}

	factory := func(target driver.RenderTarget) (*pipeline.Pipeline, error) {
		vert, err := assets.LoadSPIRV(cfg.VertexShader)
		if err != nil {
			return nil, err
		}
		frag, err := assets.LoadSPIRV(cfg.FragmentShader)
		if err != nil {
			return nil, err
		}
		b := pipeline.NewBuilder(gpu, logger).
			AddShaderStage(vert, driver.StageVertex).
			AddShaderStage(frag, driver.StageFragment).
			AddDynamicState(driver.DynamicViewport).
			AddDynamicState(driver.DynamicScissor)
		if cfg.VertexLayout != nil {
			b.SetVertexLayout(cfg.VertexLayout)
		}
		return b.Build(target)
	}

	orch, err := frame.New(gpu, p, logger, factory, frame.Options{
		FramesInFlight: cfg.FramesInFlight,
		ClearColor:     cfg.ClearColor,
		Record:         cfg.Record,
	})
	if err != nil {
		gpu.Close()
		return nil, err
	}

	return &Renderer{log: logger, gpu: gpu, orch: orch}, nil
}

// DrawFrame runs one acquire/record/submit/present cycle.
func (r *Renderer) DrawFrame() error { return r.orch.DrawFrame() }

// ReloadPipeline rebuilds the presentation pipeline from the shader files on
// disk after draining in-flight work.
func (r *Renderer) ReloadPipeline() error { return r.orch.RebuildPipeline() }

// GPU exposes the device for resource creation (vertex buffers and the
// like).
func (r *Renderer) GPU() driver.GPU { return r.gpu }

// FrameCount is the number of frames submitted so far.
func (r *Renderer) FrameCount() uint64 { return r.orch.FrameCount() }

// Shutdown tears down the orchestrator's objects and then the device. The
// window is owned by the caller and outlives the renderer.
func (r *Renderer) Shutdown() {
	r.orch.Close()
	r.gpu.Close()
}
