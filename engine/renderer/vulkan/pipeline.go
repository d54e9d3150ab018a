package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/prismengine/prism/engine/renderer/driver"
)

// NewPipeline translates a validated description into one immutable graphics
// pipeline.
func (g *GPU) NewPipeline(state *driver.GraphState) (driver.Pipeline, error) {
	stages := make([]vk.PipelineShaderStageCreateInfo, len(state.Stages))
	for i, s := range state.Stages {
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  toVkShaderStage(s.Kind),
			Module: s.Module.(vk.ShaderModule),
			PName:  safeString(s.Entry),
		}
	}

	bindings := make([]vk.VertexInputBindingDescription, len(state.VertexBindings))
	for i, b := range state.VertexBindings {
		rate := vk.VertexInputRateVertex
		if b.PerInstance {
			rate = vk.VertexInputRateInstance
		}
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: rate,
		}
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(state.VertexAttributes))
	for i, a := range state.VertexAttributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Binding:  a.Binding,
			Location: a.Location,
			Format:   toVkFormat(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               toVkTopology(state.Topology),
		PrimitiveRestartEnable: vkBool(state.PrimitiveRestart),
	}

	var tessellation *vk.PipelineTessellationStateCreateInfo
	if state.Topology == driver.TopologyPatchList {
		tessellation = &vk.PipelineTessellationStateCreateInfo{
			SType:              vk.StructureTypePipelineTessellationStateCreateInfo,
			PatchControlPoints: state.PatchControlPoints,
		}
	}

	viewports := make([]vk.Viewport, len(state.Viewports))
	for i, v := range state.Viewports {
		viewports[i] = vk.Viewport{
			X: v.X, Y: v.Y,
			Width: v.Width, Height: v.Height,
			MinDepth: v.MinDepth, MaxDepth: v.MaxDepth,
		}
	}
	scissors := make([]vk.Rect2D, len(state.Scissors))
	for i, r := range state.Scissors {
		scissors[i] = vk.Rect2D{
			Offset: vk.Offset2D{X: r.X, Y: r.Y},
			Extent: vk.Extent2D{Width: r.Width, Height: r.Height},
		}
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: uint32(len(viewports)),
		PViewports:    viewports,
		ScissorCount:  uint32(len(scissors)),
		PScissors:     scissors,
	}

	polygonMode := vk.PolygonModeFill
	if state.Raster.Wireframe {
		polygonMode = vk.PolygonModeLine
	}
	rasterization := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vkBool(state.Raster.DepthClamp),
		RasterizerDiscardEnable: vkBool(state.Raster.RasterizeDiscard),
		PolygonMode:             polygonMode,
		CullMode:                toVkCullMode(state.Raster.CullMode),
		FrontFace:               toVkFrontFace(state.Raster.FrontFace),
		DepthBiasEnable:         vkBool(state.Raster.DepthBias),
		DepthBiasConstantFactor: state.Raster.DepthBiasFactor,
		DepthBiasClamp:          state.Raster.DepthBiasClamp,
		DepthBiasSlopeFactor:    state.Raster.DepthBiasSlope,
		LineWidth:               state.Raster.LineWidth,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples:  toVkSampleCount(state.Multisample.Samples),
		SampleShadingEnable:   vkBool(state.Multisample.SampleShading),
		MinSampleShading:      state.Multisample.MinSampleShading,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vkBool(state.DepthStencil.DepthTest),
		DepthWriteEnable: vkBool(state.DepthStencil.DepthWrite),
		DepthCompareOp:   toVkCompareOp(state.DepthStencil.DepthOp),
		StencilTestEnable: vkBool(
			state.DepthStencil.StencilTest),
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(state.Blend.Attachments))
	for i, a := range state.Blend.Attachments {
		blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vkBool(a.Enable),
			SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
			DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: vk.BlendFactorOne,
			DstAlphaBlendFactor: vk.BlendFactorZero,
			AlphaBlendOp:        vk.BlendOpAdd,
			ColorWriteMask: vk.ColorComponentFlags(
				vk.ColorComponentRBit | vk.ColorComponentGBit |
					vk.ColorComponentBBit | vk.ColorComponentABit),
		}
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
		BlendConstants:  state.Blend.Constants,
	}

	dynamicStates := make([]vk.DynamicState, len(state.DynamicStates))
	for i, s := range state.DynamicStates {
		dynamicStates[i] = toVkDynamicState(s)
	}
	var dynamic *vk.PipelineDynamicStateCreateInfo
	if len(dynamicStates) > 0 {
		dynamic = &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamicStates)),
			PDynamicStates:    dynamicStates,
		}
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PTessellationState:  tessellation,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterization,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       dynamic,
		Layout:              state.Layout.(vk.PipelineLayout),
		RenderPass:          state.Target.Pass.(vk.RenderPass),
		Subpass:             state.Target.Subpass,
	}

	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateGraphicsPipelines(
		g.device, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{createInfo}, nil, pipelines)
	if res != vk.Success {
		return nil, resultErr(res, "vkCreateGraphicsPipelines")
	}
	return pipelines[0], nil
}

func (g *GPU) DestroyPipeline(p driver.Pipeline) {
	vk.DestroyPipeline(g.device, p.(vk.Pipeline), nil)
}
