// Package imageio is the one place in this repository that talks to
// github.com/achilleasa/openimageigo directly: loading texture images and
// writing the final multi-channel EXR. Everything else (shader, imagebuf)
// stays free of the C-library binding.
package imageio

import (
	"fmt"
	"math"

	oiio "github.com/achilleasa/openimageigo"

	"github.com/corefan/flexrender/log"
)

var logger = log.New("imageio")

// LoadedTexture is the pixel data and format loaded from an image file.
// 3-channel sources are widened to 4-channel RGBA; 1- and 4-channel
// sources keep their source channel count.
type LoadedTexture struct {
	Width, Height uint32
	// Float32 is true when Pix holds normalized float32 RGBA data
	// (HDR/EXR sources); otherwise Pix holds uint8 sRGB RGBA data
	// packed into the same byte slice.
	Float32 bool
	Pix     []byte
}

// LoadTexture reads an image file via openimageigo and normalizes it to
// RGBA, grounded on the teacher's asset/texure/texture.New conversion
// logic (3-channel sources are widened to 4 so addressing stays uniform).
func LoadTexture(path string) (*LoadedTexture, error) {
	input, err := oiio.OpenImageInput(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: opening %s: %w", path, err)
	}
	defer input.Close()

	spec := input.Spec()
	channels := spec.NumChannels()
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, fmt.Errorf("imageio: unsupported channel count %d in %s", channels, path)
	}
	if spec.Depth() != 1 {
		return nil, fmt.Errorf("imageio: unsupported depth %d in %s", spec.Depth(), path)
	}

	width, height := uint32(spec.Width()), uint32(spec.Height())

	var convertTo oiio.TypeDesc
	isFloat := spec.Format() != oiio.TypeUint8
	if isFloat {
		convertTo = oiio.TypeFloat
	} else {
		convertTo = oiio.TypeUint8
	}

	imgData, err := input.ReadImageFormat(convertTo, nil)
	if err != nil {
		return nil, fmt.Errorf("imageio: reading %s: %w", path, err)
	}

	tex := &LoadedTexture{Width: width, Height: height, Float32: isFloat}

	switch data := imgData.(type) {
	case []uint8:
		tex.Pix = widenBytes(data, channels)
	case []float32:
		tex.Pix = float32sToBytes(widenFloats(data, channels))
	default:
		return nil, fmt.Errorf("imageio: unexpected pixel type %T loading %s", imgData, path)
	}

	logger.Debugf("loaded texture %s (%dx%d, float=%v)", path, width, height, isFloat)
	return tex, nil
}

func widenBytes(src []byte, channels int) []byte {
	if channels != 3 {
		return src
	}
	dst := make([]byte, (len(src)/3)*4)
	w := 0
	for r := 0; r+2 < len(src); r += 3 {
		dst[w] = src[r]
		dst[w+1] = src[r+1]
		dst[w+2] = src[r+2]
		dst[w+3] = 255
		w += 4
	}
	return dst
}

func widenFloats(src []float32, channels int) []float32 {
	if channels != 3 {
		return src
	}
	dst := make([]float32, (len(src)/3)*4)
	w := 0
	for r := 0; r+2 < len(src); r += 3 {
		dst[w] = src[r]
		dst[w+1] = src[r+1]
		dst[w+2] = src[r+2]
		dst[w+3] = 1.0
		w += 4
	}
	return dst
}

func float32sToBytes(src []float32) []byte {
	dst := make([]byte, len(src)*4)
	for i, f := range src {
		bits := math.Float32bits(f)
		dst[i*4+0] = byte(bits)
		dst[i*4+1] = byte(bits >> 8)
		dst[i*4+2] = byte(bits >> 16)
		dst[i*4+3] = byte(bits >> 24)
	}
	return dst
}
