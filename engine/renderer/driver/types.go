package driver

import "fmt"

// ShaderStageKind identifies a distinct programmable stage. A pipeline holds
// at most one module per kind.
type ShaderStageKind uint8

const (
	StageVertex ShaderStageKind = iota
	StageFragment
	StageGeometry
	StageTessellationControl
	StageTessellationEvaluation
	StageCompute
)

func (k ShaderStageKind) String() string {
	switch k {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageGeometry:
		return "geometry"
	case StageTessellationControl:
		return "tessellation-control"
	case StageTessellationEvaluation:
		return "tessellation-evaluation"
	case StageCompute:
		return "compute"
	}
	return fmt.Sprintf("stage(%d)", uint8(k))
}

// Topology selects how the input assembler groups vertices into primitives.
type Topology uint8

const (
	TopologyPointList Topology = iota
	TopologyLineList
	TopologyLineStrip
	TopologyTriangleList
	TopologyTriangleStrip
	TopologyTriangleFan
	TopologyPatchList
)

type CullMode uint8

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
	CullModeFrontAndBack
)

type FrontFace uint8

const (
	FrontFaceCounterClockwise FrontFace = iota
	FrontFaceClockwise
)

type CompareOp uint8

const (
	CompareOpNever CompareOp = iota
	CompareOpLess
	CompareOpEqual
	CompareOpLessOrEqual
	CompareOpGreater
	CompareOpNotEqual
	CompareOpGreaterOrEqual
	CompareOpAlways
)

// SampleCount is a bitmask of per-pixel sample counts, one bit per power of
// two, mirroring how devices report the supported set.
type SampleCount uint8

const (
	Samples1  SampleCount = 1 << iota // 1
	Samples2                          // 2
	Samples4                          // 4
	Samples8                          // 8
	Samples16                         // 16
	Samples32                         // 32
	Samples64                         // 64
)

// DeviceCaps is the read-only capability set the pipeline builder validates
// against. The backend fills it once at device creation.
type DeviceCaps struct {
	MaxViewports      uint32
	SampleCounts      SampleCount // bitmask of supported counts
	WideLines         bool
	DepthClamp        bool
	SampleRateShading bool
}

// SupportsSamples reports whether every bit of s is in the supported set.
func (c DeviceCaps) SupportsSamples(s SampleCount) bool {
	return s != 0 && c.SampleCounts&s == s
}

// Format names the pixel and vertex-attribute formats the renderer deals in.
type Format uint8

const (
	FormatUndefined Format = iota
	FormatBGRA8Unorm
	FormatRGBA8Unorm
	FormatBGRA8SRGB
	FormatRGBA8SRGB
	FormatRG32Float
	FormatRGB32Float
	FormatRGBA32Float
)

// Layout names the image layouts the recorded barriers transition between.
type Layout uint8

const (
	LayoutUndefined Layout = iota
	LayoutColorAttachment
	LayoutPresent
	LayoutTransferDst
)

type DynamicState uint8

const (
	DynamicViewport DynamicState = iota
	DynamicScissor
	DynamicLineWidth
)

// AcquireOutcome classifies the result of acquiring a swapchain image.
type AcquireOutcome uint8

const (
	// AcquireSuccess means the image is usable and the surface matches the
	// drawable.
	AcquireSuccess AcquireOutcome = iota
	// AcquireStale means the surface no longer matches the drawable and the
	// image index is invalid: the swapchain must be rebuilt before drawing.
	AcquireStale
	// AcquireDegraded means the image is still usable this frame but the
	// swapchain should be rebuilt afterwards.
	AcquireDegraded
)

// PresentOutcome classifies the result of queueing an image for presentation.
type PresentOutcome uint8

const (
	PresentSuccess PresentOutcome = iota
	PresentStale
	PresentDegraded
)

type Extent2D struct {
	Width  uint32
	Height uint32
}

// Zero reports whether either dimension is zero, i.e. the window is minimized
// or otherwise not drawable.
func (e Extent2D) Zero() bool {
	return e.Width == 0 || e.Height == 0
}

type Viewport struct {
	X        float32
	Y        float32
	Width    float32
	Height   float32
	MinDepth float32
	MaxDepth float32
}

type Rect2D struct {
	X      int32
	Y      int32
	Width  uint32
	Height uint32
}

// Color is an RGBA value in the 0..1 range.
type Color [4]float32

type VertexBinding struct {
	Binding     uint32
	Stride      uint32
	PerInstance bool
}

type VertexAttribute struct {
	Binding  uint32
	Location uint32
	Format   Format
	Offset   uint32
}

type PushConstantRange struct {
	Stages []ShaderStageKind
	Offset uint32
	Size   uint32
}

// ShaderStageDesc pairs a created module with its stage kind and entry point.
type ShaderStageDesc struct {
	Kind   ShaderStageKind
	Module ShaderModule
	Entry  string
}

type RasterState struct {
	CullMode         CullMode
	FrontFace        FrontFace
	LineWidth        float32
	DepthClamp       bool
	DepthBias        bool
	DepthBiasFactor  float32
	DepthBiasClamp   float32
	DepthBiasSlope   float32
	RasterizeDiscard bool
	Wireframe        bool
}

type MultisampleState struct {
	Samples          SampleCount
	SampleShading    bool
	MinSampleShading float32
}

type DepthStencilState struct {
	DepthTest   bool
	DepthWrite  bool
	DepthOp     CompareOp
	StencilTest bool
}

type BlendAttachment struct {
	Enable bool
}

type BlendState struct {
	Attachments []BlendAttachment
	Constants   Color
}

// RenderTarget describes what the pipeline renders into: the pass it is
// compatible with and the color format the pass was built for.
type RenderTarget struct {
	Pass        RenderPass
	ColorFormat Format
	Samples     SampleCount
	Subpass     uint32
}

// GraphState is the fully-assembled, validated description handed to the GPU
// to create an immutable graphics pipeline.
type GraphState struct {
	Stages []ShaderStageDesc

	VertexBindings   []VertexBinding
	VertexAttributes []VertexAttribute

	Topology           Topology
	PrimitiveRestart   bool
	PatchControlPoints uint32

	Viewports []Viewport
	Scissors  []Rect2D

	Raster       RasterState
	Multisample  MultisampleState
	DepthStencil DepthStencilState
	Blend        BlendState

	DynamicStates []DynamicState

	Layout PipelineLayout
	Target RenderTarget
}

// BufferUsage is a bitmask of the ways a buffer will be used.
type BufferUsage uint8

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageTransferSrc
	BufferUsageTransferDst
)
