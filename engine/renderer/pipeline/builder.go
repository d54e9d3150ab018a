// Package pipeline assembles immutable graphics pipelines from a fluent
// configuration surface. The builder validates the finished description
// against the device capability set before any pipeline object is created,
// so a misconfiguration never reaches the driver.
package pipeline

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/prismengine/prism/engine/renderer/driver"
)

// Device is the slice of the GPU the builder needs.
type Device interface {
	Caps() driver.DeviceCaps
	NewShaderModule(code []byte) (driver.ShaderModule, error)
	DestroyShaderModule(m driver.ShaderModule)
	NewPipelineLayout(setLayouts []driver.DescriptorSetLayout, pushConstants []driver.PushConstantRange) (driver.PipelineLayout, error)
	DestroyPipelineLayout(l driver.PipelineLayout)
	NewPipeline(state *driver.GraphState) (driver.Pipeline, error)
	DestroyPipeline(p driver.Pipeline)
}

// ConfigError reports a configuration that the device cannot execute. Field
// names the offending piece of state.
type ConfigError struct {
	Field  string
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pipeline config: %s: %s", e.Field, e.Detail)
}

// Builder accumulates pipeline state through chained setters. Errors stick:
// the first one poisons the builder and every later call becomes a no-op, so
// a whole chain can be written without intermediate checks and the error
// collected once at Build. A builder is single-use; Build consumes it.
type Builder struct {
	dev Device
	log *log.Logger

	err   error
	built bool

	stages []driver.ShaderStageDesc

	vertexBindings   []driver.VertexBinding
	vertexAttributes []driver.VertexAttribute

	topology           driver.Topology
	primitiveRestart   bool
	patchControlPoints uint32

	viewports []driver.Viewport
	scissors  []driver.Rect2D

	raster       driver.RasterState
	multisample  driver.MultisampleState
	depthStencil driver.DepthStencilState
	blend        driver.BlendState

	dynamicStates []driver.DynamicState

	setLayouts    []driver.DescriptorSetLayout
	pushConstants []driver.PushConstantRange
}

// NewBuilder returns a builder with the usual defaults: triangle-list
// topology, back-face culling, counter-clockwise front faces, line width 1,
// single-sample, one disabled blend attachment.
func NewBuilder(dev Device, logger *log.Logger) *Builder {
	return &Builder{
		dev:      dev,
		log:      logger,
		topology: driver.TopologyTriangleList,
		raster: driver.RasterState{
			CullMode:  driver.CullModeBack,
			FrontFace: driver.FrontFaceCounterClockwise,
			LineWidth: 1.0,
		},
		multisample: driver.MultisampleState{Samples: driver.Samples1},
		blend: driver.BlendState{
			Attachments: []driver.BlendAttachment{{Enable: false}},
		},
	}
}

// Err returns the first error recorded so far, before Build is called.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(field, format string, args ...interface{}) {
	if b.err == nil {
		b.err = &ConfigError{Field: field, Detail: fmt.Sprintf(format, args...)}
	}
}

// poisoned reports whether further configuration should be skipped.
func (b *Builder) poisoned() bool {
	if b.built {
		b.fail("builder", "already consumed by Build")
	}
	return b.err != nil
}

// AddShaderStage compiles code into a module for the given stage. Each stage
// kind may appear once; a duplicate poisons the builder without creating a
// module.
func (b *Builder) AddShaderStage(code []byte, kind driver.ShaderStageKind) *Builder {
	if b.poisoned() {
		return b
	}
	for _, s := range b.stages {
		if s.Kind == kind {
			b.fail("shader stages", "duplicate %s stage", kind)
			return b
		}
	}
	m, err := b.dev.NewShaderModule(code)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("create %s shader module: %w", kind, err)
		}
		return b
	}
	b.stages = append(b.stages, driver.ShaderStageDesc{Kind: kind, Module: m, Entry: "main"})
	return b
}

func (b *Builder) SetVertexLayout(l driver.VertexLayout) *Builder {
	if b.poisoned() {
		return b
	}
	b.vertexBindings = append(b.vertexBindings, l.Binding())
	b.vertexAttributes = append(b.vertexAttributes, l.Attributes()...)
	return b
}

func (b *Builder) SetTopology(t driver.Topology) *Builder {
	if b.poisoned() {
		return b
	}
	b.topology = t
	return b
}

func (b *Builder) SetPrimitiveRestart(enable bool) *Builder {
	if b.poisoned() {
		return b
	}
	b.primitiveRestart = enable
	return b
}

func (b *Builder) SetPatchControlPoints(points uint32) *Builder {
	if b.poisoned() {
		return b
	}
	b.patchControlPoints = points
	return b
}

func (b *Builder) AddViewport(v driver.Viewport) *Builder {
	if b.poisoned() {
		return b
	}
	b.viewports = append(b.viewports, v)
	return b
}

func (b *Builder) AddScissor(r driver.Rect2D) *Builder {
	if b.poisoned() {
		return b
	}
	b.scissors = append(b.scissors, r)
	return b
}

func (b *Builder) SetCullMode(m driver.CullMode) *Builder {
	if b.poisoned() {
		return b
	}
	b.raster.CullMode = m
	return b
}

func (b *Builder) SetFrontFace(f driver.FrontFace) *Builder {
	if b.poisoned() {
		return b
	}
	b.raster.FrontFace = f
	return b
}

func (b *Builder) SetLineWidth(w float32) *Builder {
	if b.poisoned() {
		return b
	}
	b.raster.LineWidth = w
	return b
}

func (b *Builder) SetDepthClamp(enable bool) *Builder {
	if b.poisoned() {
		return b
	}
	b.raster.DepthClamp = enable
	return b
}

func (b *Builder) SetDepthBias(factor, clamp, slope float32) *Builder {
	if b.poisoned() {
		return b
	}
	b.raster.DepthBias = true
	b.raster.DepthBiasFactor = factor
	b.raster.DepthBiasClamp = clamp
	b.raster.DepthBiasSlope = slope
	return b
}

func (b *Builder) SetWireframe(enable bool) *Builder {
	if b.poisoned() {
		return b
	}
	b.raster.Wireframe = enable
	return b
}

func (b *Builder) SetSamples(s driver.SampleCount) *Builder {
	if b.poisoned() {
		return b
	}
	b.multisample.Samples = s
	return b
}

func (b *Builder) SetSampleShading(minSampleShading float32) *Builder {
	if b.poisoned() {
		return b
	}
	b.multisample.SampleShading = true
	b.multisample.MinSampleShading = minSampleShading
	return b
}

func (b *Builder) SetDepthTest(test, write bool, op driver.CompareOp) *Builder {
	if b.poisoned() {
		return b
	}
	b.depthStencil.DepthTest = test
	b.depthStencil.DepthWrite = write
	b.depthStencil.DepthOp = op
	return b
}

// SetColorBlendAttachments replaces the default single attachment.
func (b *Builder) SetColorBlendAttachments(atts ...driver.BlendAttachment) *Builder {
	if b.poisoned() {
		return b
	}
	b.blend.Attachments = atts
	return b
}

func (b *Builder) SetBlendConstants(c driver.Color) *Builder {
	if b.poisoned() {
		return b
	}
	b.blend.Constants = c
	return b
}

func (b *Builder) AddDynamicState(s driver.DynamicState) *Builder {
	if b.poisoned() {
		return b
	}
	b.dynamicStates = append(b.dynamicStates, s)
	return b
}

func (b *Builder) AddDescriptorSetLayout(l driver.DescriptorSetLayout) *Builder {
	if b.poisoned() {
		return b
	}
	b.setLayouts = append(b.setLayouts, l)
	return b
}

func (b *Builder) AddPushConstantRange(r driver.PushConstantRange) *Builder {
	if b.poisoned() {
		return b
	}
	b.pushConstants = append(b.pushConstants, r)
	return b
}

// Build validates the accumulated state against the device caps and creates
// the pipeline for the given target. The builder is consumed either way, and
// the shader modules are destroyed on both the success and the failure path;
// only the pipeline itself keeps the compiled code alive.
func (b *Builder) Build(target driver.RenderTarget) (*Pipeline, error) {
	if b.built {
		return nil, &ConfigError{Field: "builder", Detail: "already consumed by Build"}
	}
	b.built = true
	defer b.destroyModules()

	if b.err != nil {
		return nil, b.err
	}
	if err := b.validate(); err != nil {
		return nil, err
	}

	layout, err := b.dev.NewPipelineLayout(b.setLayouts, b.pushConstants)
	if err != nil {
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}

	state := driver.GraphState{
		Stages:             b.stages,
		VertexBindings:     b.vertexBindings,
		VertexAttributes:   b.vertexAttributes,
		Topology:           b.topology,
		PrimitiveRestart:   b.primitiveRestart,
		PatchControlPoints: b.patchControlPoints,
		Viewports:          b.viewports,
		Scissors:           b.scissors,
		Raster:             b.raster,
		Multisample:        b.multisample,
		DepthStencil:       b.depthStencil,
		Blend:              b.blend,
		DynamicStates:      b.dynamicStates,
		Layout:             layout,
		Target:             target,
	}
	handle, err := b.dev.NewPipeline(&state)
	if err != nil {
		b.dev.DestroyPipelineLayout(layout)
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	p := newPipeline(b.dev, handle, layout, b.dynamicStates, target)
	b.log.Debug("pipeline created",
		"id", p.ID(),
		"stages", len(b.stages),
		"colorFormat", target.ColorFormat,
		"samples", target.Samples)
	return p, nil
}

// validate checks the finished description in a fixed order so tests and
// callers see a deterministic first error.
func (b *Builder) validate() error {
	caps := b.dev.Caps()

	if len(b.stages) == 0 {
		return &ConfigError{Field: "shader stages", Detail: "no stages added"}
	}
	hasVertex := false
	for _, s := range b.stages {
		if s.Kind == driver.StageVertex {
			hasVertex = true
		}
	}
	if !hasVertex {
		return &ConfigError{Field: "shader stages", Detail: "missing vertex stage"}
	}

	// Counts default to one when nothing was added; with dynamic viewport
	// and scissor the values are supplied at record time.
	if len(b.viewports) == 0 && len(b.scissors) == 0 {
		b.viewports = []driver.Viewport{{MaxDepth: 1.0}}
		b.scissors = []driver.Rect2D{{}}
	}
	if n := uint32(len(b.viewports)); n > caps.MaxViewports {
		return &ConfigError{
			Field:  "viewports",
			Detail: fmt.Sprintf("%d requested, device supports %d", n, caps.MaxViewports),
		}
	}
	if n := uint32(len(b.scissors)); n > caps.MaxViewports {
		return &ConfigError{
			Field:  "scissors",
			Detail: fmt.Sprintf("%d requested, device supports %d", n, caps.MaxViewports),
		}
	}
	if len(b.viewports) != len(b.scissors) {
		return &ConfigError{
			Field:  "viewports",
			Detail: fmt.Sprintf("%d viewports but %d scissors", len(b.viewports), len(b.scissors)),
		}
	}

	if b.patchControlPoints > 0 && b.topology != driver.TopologyPatchList {
		return &ConfigError{
			Field:  "tessellation",
			Detail: fmt.Sprintf("%d patch control points require patch-list topology", b.patchControlPoints),
		}
	}
	if b.topology == driver.TopologyPatchList && b.patchControlPoints == 0 {
		return &ConfigError{
			Field:  "tessellation",
			Detail: "patch-list topology requires patch control points",
		}
	}

	if b.raster.LineWidth != 1.0 && !caps.WideLines {
		return &ConfigError{
			Field:  "line width",
			Detail: fmt.Sprintf("%g requires wide-lines support", b.raster.LineWidth),
		}
	}

	if b.raster.DepthClamp && !caps.DepthClamp {
		return &ConfigError{Field: "depth clamp", Detail: "not supported by device"}
	}

	if !caps.SupportsSamples(b.multisample.Samples) {
		return &ConfigError{
			Field:  "samples",
			Detail: fmt.Sprintf("count %d not supported by device", b.multisample.Samples),
		}
	}
	if b.multisample.SampleShading && !caps.SampleRateShading {
		return &ConfigError{Field: "sample shading", Detail: "not supported by device"}
	}

	return nil
}

func (b *Builder) destroyModules() {
	for _, s := range b.stages {
		b.dev.DestroyShaderModule(s.Module)
	}
	b.stages = nil
}
