package driver

import "unsafe"

// VertexLayout describes how a concrete vertex type is laid out in memory.
// Implementations are plain value types; no inheritance hierarchy is needed,
// a pipeline builder just asks the layout for its descriptions.
type VertexLayout interface {
	Binding() VertexBinding
	Attributes() []VertexAttribute
}

// Vertex2DColor is a 2D position plus an RGB color.
type Vertex2DColor struct {
	Position [2]float32
	Color    [3]float32
}

func (Vertex2DColor) Binding() VertexBinding {
	return VertexBinding{
		Binding: 0,
		Stride:  uint32(unsafe.Sizeof(Vertex2DColor{})),
	}
}

func (Vertex2DColor) Attributes() []VertexAttribute {
	return []VertexAttribute{
		{Binding: 0, Location: 0, Format: FormatRG32Float, Offset: uint32(unsafe.Offsetof(Vertex2DColor{}.Position))},
		{Binding: 0, Location: 1, Format: FormatRGB32Float, Offset: uint32(unsafe.Offsetof(Vertex2DColor{}.Color))},
	}
}

// Vertex3DColor is a 3D position plus an RGB color.
type Vertex3DColor struct {
	Position [3]float32
	Color    [3]float32
}

func (Vertex3DColor) Binding() VertexBinding {
	return VertexBinding{
		Binding: 0,
		Stride:  uint32(unsafe.Sizeof(Vertex3DColor{})),
	}
}

func (Vertex3DColor) Attributes() []VertexAttribute {
	return []VertexAttribute{
		{Binding: 0, Location: 0, Format: FormatRGB32Float, Offset: uint32(unsafe.Offsetof(Vertex3DColor{}.Position))},
		{Binding: 0, Location: 1, Format: FormatRGB32Float, Offset: uint32(unsafe.Offsetof(Vertex3DColor{}.Color))},
	}
}

// VertexBytes reinterprets a vertex slice as raw bytes for buffer uploads.
func VertexBytes[T VertexLayout](vertices []T) []byte {
	if len(vertices) == 0 {
		return nil
	}
	size := int(unsafe.Sizeof(vertices[0])) * len(vertices)
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), size)
}
