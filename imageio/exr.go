package imageio

import (
	"fmt"

	oiio "github.com/achilleasa/openimageigo"

	"github.com/corefan/flexrender/imagebuf"
)

// WriteEXR composes an imagebuf.Image's named buffers into channels of a
// single multi-channel OpenEXR file. This is the one external I/O
// boundary spec.md §6 names explicitly ("one multi-channel OpenEXR file at
// <config.name>.exr").
func WriteEXR(img *imagebuf.Image, path string) error {
	names := make([]string, 0, len(img.Buffers))
	for name := range img.Buffers {
		names = append(names, name)
	}

	spec := oiio.NewImageSpec(oiio.TypeFloat, int(img.Width), int(img.Height), len(names))
	spec.SetChannelNames(names)

	out, err := oiio.OpenImageOutput(path)
	if err != nil {
		return fmt.Errorf("imageio: creating %s: %w", path, err)
	}
	defer out.Close()

	if err := out.Open(path, spec, oiio.Create); err != nil {
		return fmt.Errorf("imageio: opening %s for write: %w", path, err)
	}

	pixels := make([]float32, int(img.Width)*int(img.Height)*len(names))
	for ch, name := range names {
		buf := img.Buffers[name]
		for i, v := range buf.Pix {
			pixels[i*len(names)+ch] = v
		}
	}

	if err := out.WriteImage(oiio.TypeFloat, pixels); err != nil {
		return fmt.Errorf("imageio: writing %s: %w", path, err)
	}

	logger.Noticef("wrote %s (%dx%d, %d buffers)", path, img.Width, img.Height, len(names))
	return nil
}
