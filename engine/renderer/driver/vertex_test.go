package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertex2DColorLayout(t *testing.T) {
	b := Vertex2DColor{}.Binding()
	assert.Equal(t, uint32(0), b.Binding)
	assert.Equal(t, uint32(20), b.Stride)

	attrs := Vertex2DColor{}.Attributes()
	require.Len(t, attrs, 2)
	assert.Equal(t, FormatRG32Float, attrs[0].Format)
	assert.Equal(t, uint32(0), attrs[0].Offset)
	assert.Equal(t, FormatRGB32Float, attrs[1].Format)
	assert.Equal(t, uint32(8), attrs[1].Offset)
}

func TestVertex3DColorLayout(t *testing.T) {
	b := Vertex3DColor{}.Binding()
	assert.Equal(t, uint32(24), b.Stride)

	attrs := Vertex3DColor{}.Attributes()
	require.Len(t, attrs, 2)
	assert.Equal(t, FormatRGB32Float, attrs[0].Format)
	assert.Equal(t, uint32(12), attrs[1].Offset)
}

func TestVertexBytes(t *testing.T) {
	assert.Nil(t, VertexBytes[Vertex2DColor](nil))

	vs := []Vertex2DColor{
		{Position: [2]float32{0, -0.5}, Color: [3]float32{1, 0, 0}},
		{Position: [2]float32{0.5, 0.5}, Color: [3]float32{0, 1, 0}},
	}
	data := VertexBytes(vs)
	require.Len(t, data, 2*int(Vertex2DColor{}.Binding().Stride))

	// The slice aliases the vertex memory, no copy happens.
	vs[0].Position[0] = 1
	assert.Equal(t, VertexBytes(vs[:1]), data[:20])
}
