// Package imagebuf implements the multi-buffer float image sink that the
// dispatcher writes render results into. Buffers are plain []float32
// slices with no locking: per spec §5, Image state is written only on the
// dispatcher goroutine, so synchronization would be pure overhead, matching
// the teacher's general posture of not paying for locks across disjoint
// construction/render phases.
package imagebuf

import "github.com/corefan/flexrender/work"

// Buffer is one named, single-channel float image.
type Buffer struct {
	Width, Height uint32
	Pix           []float32
}

// NewBuffer allocates a zeroed buffer of the given dimensions.
func NewBuffer(width, height uint32) *Buffer {
	return &Buffer{Width: width, Height: height, Pix: make([]float32, width*height)}
}

func (b *Buffer) index(x, y uint32) int {
	return int(y*b.Width + x)
}

// Write replaces the pixel value at (x, y). Last writer wins; callers must
// avoid racing two WRITEs to the same pixel within one dispatcher tick.
func (b *Buffer) Write(x, y uint32, v float32) {
	b.Pix[b.index(x, y)] = v
}

// Accumulate adds v to the pixel value at (x, y). Associative and
// commutative up to floating-point rounding, so job-completion order never
// changes the converged image.
func (b *Buffer) Accumulate(x, y uint32, v float32) {
	b.Pix[b.index(x, y)] += v
}

// At returns the current pixel value at (x, y).
func (b *Buffer) At(x, y uint32) float32 {
	return b.Pix[b.index(x, y)]
}

// Image is a named set of same-sized float buffers, e.g. "color",
// "albedo", "normal".
type Image struct {
	Width, Height uint32
	Buffers       map[string]*Buffer
}

// NewImage allocates an Image with one zeroed buffer per name in
// bufferNames.
func NewImage(width, height uint32, bufferNames []string) *Image {
	img := &Image{Width: width, Height: height, Buffers: make(map[string]*Buffer, len(bufferNames))}
	for _, name := range bufferNames {
		img.Buffers[name] = NewBuffer(width, height)
	}
	return img
}

// Apply replays a WorkResults' buffer ops against the image, in listed
// order, exactly as AfterWork does on the dispatcher goroutine. Ops
// against an unknown buffer name are silently dropped, matching the
// "shader referenced a buffer the config never declared" programmer-error
// policy of spec §7 (release builds degrade rather than fault).
func (img *Image) Apply(ops []work.BufferOp) {
	for _, op := range ops {
		buf, ok := img.Buffers[op.Buffer]
		if !ok {
			continue
		}
		switch op.Op {
		case work.Write:
			buf.Write(op.X, op.Y, op.V)
		case work.Accumulate:
			buf.Accumulate(op.X, op.Y, op.V)
		}
	}
}
