package gpu

import (
	"encoding/binary"
	"math"

	"github.com/matjam/shaderpaper/internal/types"
)

// UniformSize is the size of the uniform block in bytes. The shader reads
// two floats; the rest is padding up to the 16-byte uniform alignment.
const UniformSize = 16

// Uniform is the per-frame shader input: the pointer position in
// normalized device coordinates, x right and y up, (0, 0) at the surface
// center.
type Uniform struct {
	Pointer [2]float32
}

// Neutral is the uniform used until the first pointer sample arrives. It
// places the pointer at the surface center.
func Neutral() Uniform {
	return Uniform{}
}

// Normalize maps a pointer position in surface coordinates (origin top
// left, y down) to NDC. (0, 0) maps to (-1, 1) and (width, height) to
// (1, -1). Positions outside the surface land outside [-1, 1]; clamping
// is the shader's job, not ours.
func Normalize(sample types.PointerSample, dims types.SurfaceDimensions) Uniform {
	w := float64(dims.Width)
	h := float64(dims.Height)
	return Uniform{
		Pointer: [2]float32{
			float32(2*sample.X/w - 1),
			float32(1 - 2*sample.Y/h),
		},
	}
}

// Pack serializes the uniform for an upload with queue.WriteBuffer:
// little-endian floats followed by zero padding.
func (u Uniform) Pack() [UniformSize]byte {
	var data [UniformSize]byte
	binary.LittleEndian.PutUint32(data[0:], math.Float32bits(u.Pointer[0]))
	binary.LittleEndian.PutUint32(data[4:], math.Float32bits(u.Pointer[1]))
	return data
}
