package pipeline

import (
	"github.com/google/uuid"

	"github.com/prismengine/prism/engine/renderer/driver"
)

// Pipeline is an immutable, bound-ready graphics pipeline. It owns both the
// pipeline object and its layout; the two are destroyed together.
type Pipeline struct {
	id      uuid.UUID
	dev     Device
	handle  driver.Pipeline
	layout  driver.PipelineLayout
	dynamic map[driver.DynamicState]bool
	target  driver.RenderTarget
}

func newPipeline(dev Device, handle driver.Pipeline, layout driver.PipelineLayout, dynamic []driver.DynamicState, target driver.RenderTarget) *Pipeline {
	set := make(map[driver.DynamicState]bool, len(dynamic))
	for _, s := range dynamic {
		set[s] = true
	}
	return &Pipeline{
		id:      uuid.New(),
		dev:     dev,
		handle:  handle,
		layout:  layout,
		dynamic: set,
		target:  target,
	}
}

func (p *Pipeline) ID() uuid.UUID                 { return p.id }
func (p *Pipeline) Handle() driver.Pipeline       { return p.handle }
func (p *Pipeline) Layout() driver.PipelineLayout { return p.layout }

// HasDynamic reports whether s was declared dynamic at build time; the
// recorder must then supply it per frame.
func (p *Pipeline) HasDynamic(s driver.DynamicState) bool { return p.dynamic[s] }

// ColorFormat is the swapchain format the pipeline was built against. When
// the surface format changes on recreation the pipeline must be rebuilt.
func (p *Pipeline) ColorFormat() driver.Format { return p.target.ColorFormat }

func (p *Pipeline) Bind(cb driver.CommandBuffer) { cb.BindPipeline(p.handle) }

// Destroy releases the pipeline and then its layout. Safe to call once.
func (p *Pipeline) Destroy() {
	if p.handle != nil {
		p.dev.DestroyPipeline(p.handle)
		p.handle = nil
	}
	if p.layout != nil {
		p.dev.DestroyPipelineLayout(p.layout)
		p.layout = nil
	}
}
