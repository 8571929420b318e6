package shader

import (
	"math"

	"github.com/corefan/flexrender/library"
	"github.com/corefan/flexrender/types"
)

// Sampler reads pixel data through the library's already-loaded Texture,
// grounded on the teacher's asset/texure/texture.go conversion (uniform
// RGBA layout) but with no direct openimageigo dependency here — imageio
// is the one place that talks to the C binding, so the shader package
// only ever sees plain byte slices.
type Sampler struct {
	tex *library.Texture
}

// NewSampler wraps a loaded library.Texture for bilinear-free, nearest
// point sampling in normalized [0,1] UV space.
func NewSampler(tex *library.Texture) *Sampler {
	return &Sampler{tex: tex}
}

// SampleRGB returns the RGB value at normalized coordinate (u, v),
// wrapping out-of-range coordinates.
func (s *Sampler) SampleRGB(u, v float32) types.Vec3 {
	if s.tex == nil || s.tex.Width == 0 || s.tex.Height == 0 {
		return types.Vec3{}
	}
	u = wrap01(u)
	v = wrap01(v)

	x := uint32(u * float32(s.tex.Width))
	y := uint32(v * float32(s.tex.Height))
	if x >= s.tex.Width {
		x = s.tex.Width - 1
	}
	if y >= s.tex.Height {
		y = s.tex.Height - 1
	}

	if s.tex.Float32 {
		idx := (y*s.tex.Width + x) * 4 * 4
		if int(idx+12) > len(s.tex.Pix) {
			return types.Vec3{}
		}
		r := math.Float32frombits(uint32(s.tex.Pix[idx]) | uint32(s.tex.Pix[idx+1])<<8 | uint32(s.tex.Pix[idx+2])<<16 | uint32(s.tex.Pix[idx+3])<<24)
		g := math.Float32frombits(uint32(s.tex.Pix[idx+4]) | uint32(s.tex.Pix[idx+5])<<8 | uint32(s.tex.Pix[idx+6])<<16 | uint32(s.tex.Pix[idx+7])<<24)
		b := math.Float32frombits(uint32(s.tex.Pix[idx+8]) | uint32(s.tex.Pix[idx+9])<<8 | uint32(s.tex.Pix[idx+10])<<16 | uint32(s.tex.Pix[idx+11])<<24)
		return types.XYZ(r, g, b)
	}

	idx := (y*s.tex.Width + x) * 4
	if int(idx+3) > len(s.tex.Pix) {
		return types.Vec3{}
	}
	return types.XYZ(
		float32(s.tex.Pix[idx])/255,
		float32(s.tex.Pix[idx+1])/255,
		float32(s.tex.Pix[idx+2])/255,
	)
}

func wrap01(v float32) float32 {
	v -= float32(math.Floor(float64(v)))
	if v < 0 {
		v += 1
	}
	return v
}
