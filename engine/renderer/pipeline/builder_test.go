package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismengine/prism/engine/core"
	"github.com/prismengine/prism/engine/renderer/driver"
	"github.com/prismengine/prism/engine/renderer/driver/drivertest"
)

var (
	vertCode = []byte{0x03, 0x02, 0x23, 0x07}
	fragCode = []byte{0x03, 0x02, 0x23, 0x07}
)

func testTarget(gpu *drivertest.GPU, t *testing.T) driver.RenderTarget {
	t.Helper()
	pass, err := gpu.NewRenderPass(driver.FormatBGRA8Unorm, driver.Samples1)
	require.NoError(t, err)
	return driver.RenderTarget{
		Pass:        pass,
		ColorFormat: driver.FormatBGRA8Unorm,
		Samples:     driver.Samples1,
	}
}

func baseBuilder(gpu *drivertest.GPU) *Builder {
	return NewBuilder(gpu, core.NopLogger()).
		AddShaderStage(vertCode, driver.StageVertex).
		AddShaderStage(fragCode, driver.StageFragment).
		AddDynamicState(driver.DynamicViewport).
		AddDynamicState(driver.DynamicScissor)
}

func TestBuildTriangle(t *testing.T) {
	gpu := drivertest.NewGPU()

	p, err := baseBuilder(gpu).Build(testTarget(gpu, t))
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, 0, gpu.Alive("shader"), "modules must not outlive Build")
	assert.Equal(t, 1, gpu.Alive("pipeline"))
	assert.Equal(t, 1, gpu.Alive("layout"))
	assert.Equal(t, driver.FormatBGRA8Unorm, p.ColorFormat())
	assert.True(t, p.HasDynamic(driver.DynamicViewport))
	assert.True(t, p.HasDynamic(driver.DynamicScissor))
	assert.False(t, p.HasDynamic(driver.DynamicLineWidth))

	p.Destroy()
	assert.Equal(t, 0, gpu.Alive("pipeline"))
	assert.Equal(t, 0, gpu.Alive("layout"))
}

func TestDuplicateShaderStage(t *testing.T) {
	gpu := drivertest.NewGPU()

	b := NewBuilder(gpu, core.NopLogger()).
		AddShaderStage(vertCode, driver.StageVertex).
		AddShaderStage(vertCode, driver.StageVertex).
		AddShaderStage(fragCode, driver.StageFragment)

	p, err := b.Build(testTarget(gpu, t))
	assert.Nil(t, p)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "shader stages", cfgErr.Field)

	// Only the first module was ever created; the poisoned calls made none.
	assert.Len(t, gpu.OpsMatching("create shader"), 1)
	assert.Equal(t, 0, gpu.Alive("shader"))
}

func TestMissingVertexStage(t *testing.T) {
	gpu := drivertest.NewGPU()

	p, err := NewBuilder(gpu, core.NopLogger()).
		AddShaderStage(fragCode, driver.StageFragment).
		Build(testTarget(gpu, t))
	assert.Nil(t, p)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 0, gpu.Alive("shader"))
}

func TestViewportScissorCounts(t *testing.T) {
	vp := driver.Viewport{Width: 800, Height: 600, MaxDepth: 1}
	sc := driver.Rect2D{Width: 800, Height: 600}

	t.Run("mismatch fails", func(t *testing.T) {
		gpu := drivertest.NewGPU()
		p, err := baseBuilder(gpu).
			AddViewport(vp).AddViewport(vp).
			AddScissor(sc).
			Build(testTarget(gpu, t))
		assert.Nil(t, p)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "viewports", cfgErr.Field)
	})

	t.Run("matched pair succeeds", func(t *testing.T) {
		gpu := drivertest.NewGPU()
		p, err := baseBuilder(gpu).
			AddViewport(vp).AddViewport(vp).
			AddScissor(sc).AddScissor(sc).
			Build(testTarget(gpu, t))
		require.NoError(t, err)
		p.Destroy()
	})

	t.Run("count above device limit fails", func(t *testing.T) {
		gpu := drivertest.NewGPU()
		gpu.CapsValue.MaxViewports = 1
		p, err := baseBuilder(gpu).
			AddViewport(vp).AddViewport(vp).
			AddScissor(sc).AddScissor(sc).
			Build(testTarget(gpu, t))
		assert.Nil(t, p)
		assert.Error(t, err)
	})
}

func TestTessellationConfig(t *testing.T) {
	t.Run("patch points without patch topology", func(t *testing.T) {
		gpu := drivertest.NewGPU()
		_, err := baseBuilder(gpu).
			SetPatchControlPoints(4).
			Build(testTarget(gpu, t))
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "tessellation", cfgErr.Field)
	})

	t.Run("patch topology without points", func(t *testing.T) {
		gpu := drivertest.NewGPU()
		_, err := baseBuilder(gpu).
			SetTopology(driver.TopologyPatchList).
			Build(testTarget(gpu, t))
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "tessellation", cfgErr.Field)
	})

	t.Run("both configured", func(t *testing.T) {
		gpu := drivertest.NewGPU()
		p, err := baseBuilder(gpu).
			SetTopology(driver.TopologyPatchList).
			SetPatchControlPoints(4).
			Build(testTarget(gpu, t))
		require.NoError(t, err)
		p.Destroy()
	})
}

func TestWideLinesGating(t *testing.T) {
	t.Run("rejected without support", func(t *testing.T) {
		gpu := drivertest.NewGPU()
		gpu.CapsValue.WideLines = false
		_, err := baseBuilder(gpu).
			SetLineWidth(2.5).
			Build(testTarget(gpu, t))
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "line width", cfgErr.Field)
	})

	t.Run("accepted with support", func(t *testing.T) {
		gpu := drivertest.NewGPU()
		gpu.CapsValue.WideLines = true
		p, err := baseBuilder(gpu).
			SetLineWidth(2.5).
			Build(testTarget(gpu, t))
		require.NoError(t, err)
		p.Destroy()
	})

	t.Run("width one never needs support", func(t *testing.T) {
		gpu := drivertest.NewGPU()
		gpu.CapsValue.WideLines = false
		p, err := baseBuilder(gpu).
			SetLineWidth(1.0).
			Build(testTarget(gpu, t))
		require.NoError(t, err)
		p.Destroy()
	})
}

func TestDepthClampGating(t *testing.T) {
	gpu := drivertest.NewGPU()
	gpu.CapsValue.DepthClamp = false
	_, err := baseBuilder(gpu).
		SetDepthClamp(true).
		Build(testTarget(gpu, t))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "depth clamp", cfgErr.Field)

	gpu = drivertest.NewGPU()
	gpu.CapsValue.DepthClamp = true
	p, err := baseBuilder(gpu).
		SetDepthClamp(true).
		Build(testTarget(gpu, t))
	require.NoError(t, err)
	p.Destroy()
}

func TestMultisampleGating(t *testing.T) {
	t.Run("unsupported count", func(t *testing.T) {
		gpu := drivertest.NewGPU()
		gpu.CapsValue.SampleCounts = driver.Samples1 | driver.Samples2
		_, err := baseBuilder(gpu).
			SetSamples(driver.Samples8).
			Build(testTarget(gpu, t))
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "samples", cfgErr.Field)
	})

	t.Run("sample shading needs device support", func(t *testing.T) {
		gpu := drivertest.NewGPU()
		gpu.CapsValue.SampleRateShading = false
		_, err := baseBuilder(gpu).
			SetSamples(driver.Samples4).
			SetSampleShading(0.25).
			Build(testTarget(gpu, t))
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "sample shading", cfgErr.Field)

		gpu = drivertest.NewGPU()
		gpu.CapsValue.SampleRateShading = true
		p, err := baseBuilder(gpu).
			SetSamples(driver.Samples4).
			SetSampleShading(0.25).
			Build(testTarget(gpu, t))
		require.NoError(t, err)
		p.Destroy()
	})
}

func TestStickyErrorKeepsFirst(t *testing.T) {
	gpu := drivertest.NewGPU()

	b := NewBuilder(gpu, core.NopLogger()).
		AddShaderStage(vertCode, driver.StageVertex).
		AddShaderStage(vertCode, driver.StageVertex). // first error
		SetPatchControlPoints(4)                      // would be a second error at validate

	_, err := b.Build(testTarget(gpu, t))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "shader stages", cfgErr.Field)
}

func TestPipelineCreateFailureDestroysLayout(t *testing.T) {
	gpu := drivertest.NewGPU()
	gpu.PipelineErr = errors.New("out of device memory")

	p, err := baseBuilder(gpu).Build(testTarget(gpu, t))
	assert.Nil(t, p)
	require.Error(t, err)

	assert.Equal(t, 0, gpu.Alive("shader"))
	assert.Equal(t, 0, gpu.Alive("layout"), "layout must not leak when pipeline creation fails")
	assert.Equal(t, 0, gpu.Alive("pipeline"))
}

func TestBuildConsumesBuilder(t *testing.T) {
	gpu := drivertest.NewGPU()
	target := testTarget(gpu, t)

	b := baseBuilder(gpu)
	p, err := b.Build(target)
	require.NoError(t, err)
	defer p.Destroy()

	p2, err := b.Build(target)
	assert.Nil(t, p2)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "builder", cfgErr.Field)

	// Setters after consumption are inert.
	before := len(gpu.Ops)
	b.SetLineWidth(3)
	assert.Equal(t, before, len(gpu.Ops))
}
