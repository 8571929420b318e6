// Package camera generates primary rays. Basis construction and the
// Rodrigues rotation are grounded on the teacher's scene.Camera.Update
// (dir.Cross(up), types.QuatFromAxisAngle, orientQuat.Rotate), generalized
// from an interactive fly-camera recomputed every frame into a
// stateless-basis-plus-scanning-cursor primary-ray generator; the plain
// GetRay(s, t)-style screen mapping follows
// df07-go-progressive-raytracer's renderer/camera.go.
package camera

import (
	"math/rand"
	"sync"
	"time"

	"github.com/corefan/flexrender/library"
	"github.com/corefan/flexrender/types"
	"github.com/corefan/flexrender/work"
)

// throttle is the minimum inter-arrival time between successful
// GeneratePrimary calls. Modeled as a token-bucket check against a
// monotonic clock rather than the source's spin-wait, per the REDESIGN
// FLAG in spec §9.
const throttle = 200 * time.Microsecond

// Camera holds the fixed eye/basis for a render plus the mutable scanning
// cursor that GeneratePrimary advances. All cursor state is only ever
// touched from the dispatcher goroutine except for the RNG jitter draw,
// which is why mu only guards the small critical section spanning cursor
// advancement and jitter.
type Camera struct {
	eye  types.Vec3
	u, v types.Vec3
	w    types.Vec3

	width, height uint32
	aaFactor      uint32
	ratio         float32

	offset, end uint32

	mu         sync.Mutex
	x, y       uint32
	i, j       uint32
	rng        *rand.Rand
	lastCastAt time.Time
	started    bool
}

// New builds a Camera from a scene definition and the render's image
// dimensions/antialiasing factor.
func New(def *library.CameraDef, width, height, aaFactor uint32) *Camera {
	if aaFactor == 0 {
		aaFactor = 1
	}
	c := &Camera{
		width:    width,
		height:   height,
		aaFactor: aaFactor,
		ratio:    float32(width) / float32(height),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	c.setupBasis(def)
	return c
}

// setupBasis computes w, t, v, rotates v about w by def.Rotation degrees
// (Rodrigues, via a quaternion), then derives u, exactly per spec §4.C.
func (c *Camera) setupBasis(def *library.CameraDef) {
	c.eye = def.Eye
	w := def.Look.Sub(def.Eye).Normalize()
	t := w.Cross(def.Up).Normalize()
	v := t.Cross(w).Normalize()

	if def.Rotation != 0 {
		rad := def.Rotation * (3.14159265 / 180.0)
		rot := types.QuatFromAxisAngle(w, rad)
		v = rot.Rotate(v).Normalize()
	}

	u := w.Cross(v).Normalize()

	c.w, c.u, c.v = w, u, v
}

// SetChunk assigns the horizontal pixel range [offset, end) this camera
// owns; the single-worker core always covers the full image width.
func (c *Camera) SetChunk(offset, end uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = offset
	c.end = end
	c.x = offset
	c.y = 0
	c.i = 0
	c.j = 0
	c.started = true
}

// Progress reports the percentage of the assigned chunk's columns already
// scanned past, for the stats timer.
func (c *Camera) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	chunkSize := c.end - c.offset
	if chunkSize == 0 {
		return 100
	}
	return 100 * float64(c.x-c.offset) / float64(chunkSize)
}

// GeneratePrimary produces the next primary ray in scan order, advancing
// the cursor j -> i -> y -> x. Returns nil if the 200us throttle window
// has not elapsed, or if the cursor has scanned past the assigned chunk
// (camera exhausted).
func (c *Camera) GeneratePrimary() *work.FatRay {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || c.x >= c.end {
		return nil
	}
	if !c.lastCastAt.IsZero() && time.Since(c.lastCastAt) < throttle {
		return nil
	}

	x, y, i, j := c.x, c.y, c.i, c.j

	var us, vs, transmittance float32
	left := -c.ratio / 2
	top := float32(0.5)

	if c.aaFactor <= 1 {
		us = left + c.ratio*(float32(x)+0.5)/float32(c.width)
		vs = top - (float32(y)+0.5)/float32(c.height)
		transmittance = 1
	} else {
		a := float32(c.aaFactor)
		cellW := c.ratio / (float32(c.width) * a)
		cellH := 1.0 / (float32(c.height) * a)
		jitterX := c.rng.Float32()
		jitterY := c.rng.Float32()
		us = left + c.ratio*float32(x)/float32(c.width) + (float32(i)+jitterX)*cellW
		vs = top - float32(y)/float32(c.height) - (float32(j)+jitterY)*cellH
		transmittance = 1.0 / (a * a)
	}

	p := c.eye.Add(c.u.Mul(us)).Add(c.v.Mul(vs)).Add(c.w.Mul(1))
	dir := p.Sub(c.eye).Normalize()

	ray := work.NewPrimaryRay(x, y, types.SlimRay{Origin: c.eye, Direction: dir}, transmittance)

	c.advanceCursor()
	c.lastCastAt = time.Now()

	return ray
}

// advanceCursor implements the j -> i -> y -> x advance order.
func (c *Camera) advanceCursor() {
	c.j++
	if c.j < c.aaFactor {
		return
	}
	c.j = 0

	c.i++
	if c.i < c.aaFactor {
		return
	}
	c.i = 0

	c.y++
	if c.y < c.height {
		return
	}
	c.y = 0

	c.x++
}
