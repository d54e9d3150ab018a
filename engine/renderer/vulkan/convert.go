package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/prismengine/prism/engine/renderer/driver"
)

func toVkFormat(f driver.Format) vk.Format {
	switch f {
	case driver.FormatBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case driver.FormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case driver.FormatBGRA8SRGB:
		return vk.FormatB8g8r8a8Srgb
	case driver.FormatRGBA8SRGB:
		return vk.FormatR8g8b8a8Srgb
	case driver.FormatRG32Float:
		return vk.FormatR32g32Sfloat
	case driver.FormatRGB32Float:
		return vk.FormatR32g32b32Sfloat
	case driver.FormatRGBA32Float:
		return vk.FormatR32g32b32a32Sfloat
	}
	return vk.FormatUndefined
}

func fromVkFormat(f vk.Format) driver.Format {
	switch f {
	case vk.FormatB8g8r8a8Unorm:
		return driver.FormatBGRA8Unorm
	case vk.FormatR8g8b8a8Unorm:
		return driver.FormatRGBA8Unorm
	case vk.FormatB8g8r8a8Srgb:
		return driver.FormatBGRA8SRGB
	case vk.FormatR8g8b8a8Srgb:
		return driver.FormatRGBA8SRGB
	case vk.FormatR32g32Sfloat:
		return driver.FormatRG32Float
	case vk.FormatR32g32b32Sfloat:
		return driver.FormatRGB32Float
	case vk.FormatR32g32b32a32Sfloat:
		return driver.FormatRGBA32Float
	}
	return driver.FormatUndefined
}

func toVkTopology(t driver.Topology) vk.PrimitiveTopology {
	switch t {
	case driver.TopologyPointList:
		return vk.PrimitiveTopologyPointList
	case driver.TopologyLineList:
		return vk.PrimitiveTopologyLineList
	case driver.TopologyLineStrip:
		return vk.PrimitiveTopologyLineStrip
	case driver.TopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case driver.TopologyTriangleFan:
		return vk.PrimitiveTopologyTriangleFan
	case driver.TopologyPatchList:
		return vk.PrimitiveTopologyPatchList
	}
	return vk.PrimitiveTopologyTriangleList
}

func toVkCullMode(m driver.CullMode) vk.CullModeFlags {
	switch m {
	case driver.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case driver.CullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	case driver.CullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	}
	return vk.CullModeFlags(vk.CullModeNone)
}

func toVkFrontFace(f driver.FrontFace) vk.FrontFace {
	if f == driver.FrontFaceClockwise {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func toVkCompareOp(op driver.CompareOp) vk.CompareOp {
	switch op {
	case driver.CompareOpLess:
		return vk.CompareOpLess
	case driver.CompareOpEqual:
		return vk.CompareOpEqual
	case driver.CompareOpLessOrEqual:
		return vk.CompareOpLessOrEqual
	case driver.CompareOpGreater:
		return vk.CompareOpGreater
	case driver.CompareOpNotEqual:
		return vk.CompareOpNotEqual
	case driver.CompareOpGreaterOrEqual:
		return vk.CompareOpGreaterOrEqual
	case driver.CompareOpAlways:
		return vk.CompareOpAlways
	}
	return vk.CompareOpNever
}

func toVkSampleCount(s driver.SampleCount) vk.SampleCountFlagBits {
	switch s {
	case driver.Samples2:
		return vk.SampleCount2Bit
	case driver.Samples4:
		return vk.SampleCount4Bit
	case driver.Samples8:
		return vk.SampleCount8Bit
	case driver.Samples16:
		return vk.SampleCount16Bit
	case driver.Samples32:
		return vk.SampleCount32Bit
	case driver.Samples64:
		return vk.SampleCount64Bit
	}
	return vk.SampleCount1Bit
}

func fromVkSampleCounts(flags vk.SampleCountFlags) driver.SampleCount {
	var out driver.SampleCount
	pairs := []struct {
		bit vk.SampleCountFlagBits
		s   driver.SampleCount
	}{
		{vk.SampleCount1Bit, driver.Samples1},
		{vk.SampleCount2Bit, driver.Samples2},
		{vk.SampleCount4Bit, driver.Samples4},
		{vk.SampleCount8Bit, driver.Samples8},
		{vk.SampleCount16Bit, driver.Samples16},
		{vk.SampleCount32Bit, driver.Samples32},
		{vk.SampleCount64Bit, driver.Samples64},
	}
	for _, p := range pairs {
		if flags&vk.SampleCountFlags(p.bit) != 0 {
			out |= p.s
		}
	}
	return out
}

func toVkShaderStage(k driver.ShaderStageKind) vk.ShaderStageFlagBits {
	switch k {
	case driver.StageFragment:
		return vk.ShaderStageFragmentBit
	case driver.StageGeometry:
		return vk.ShaderStageGeometryBit
	case driver.StageTessellationControl:
		return vk.ShaderStageTessellationControlBit
	case driver.StageTessellationEvaluation:
		return vk.ShaderStageTessellationEvaluationBit
	case driver.StageCompute:
		return vk.ShaderStageComputeBit
	}
	return vk.ShaderStageVertexBit
}

func toVkStageFlags(kinds []driver.ShaderStageKind) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlags
	for _, k := range kinds {
		flags |= vk.ShaderStageFlags(toVkShaderStage(k))
	}
	return flags
}

func toVkImageLayout(l driver.Layout) vk.ImageLayout {
	switch l {
	case driver.LayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case driver.LayoutPresent:
		return vk.ImageLayoutPresentSrc
	case driver.LayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	}
	return vk.ImageLayoutUndefined
}

func toVkDynamicState(s driver.DynamicState) vk.DynamicState {
	switch s {
	case driver.DynamicScissor:
		return vk.DynamicStateScissor
	case driver.DynamicLineWidth:
		return vk.DynamicStateLineWidth
	}
	return vk.DynamicStateViewport
}

func toVkBufferUsage(u driver.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlags
	if u&driver.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	if u&driver.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	}
	if u&driver.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
	}
	if u&driver.BufferUsageTransferDst != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}
	return flags
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
