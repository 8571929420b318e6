// Package work defines the per-ray unit of work (FatRay) and the per-job
// output (WorkResults) that flow between the dispatcher and the worker
// pool. Types here are deliberately inert: construction and small append
// helpers only, matching the teacher's tracer.BlockRequest/Stats pairing
// where a job is a plain struct handed across a channel.
package work

import (
	"math"

	"github.com/corefan/flexrender/bvh"
	"github.com/corefan/flexrender/types"
)

// Kind identifies which stage of the INTERSECT -> ILLUMINATE -> LIGHT
// state machine a FatRay is currently in.
type Kind uint8

const (
	Intersect Kind = iota
	Illuminate
	Light
)

func (k Kind) String() string {
	switch k {
	case Intersect:
		return "INTERSECT"
	case Illuminate:
		return "ILLUMINATE"
	case Light:
		return "LIGHT"
	default:
		return "UNKNOWN"
	}
}

// HitRecord is the nearest intersection found so far along a ray.
// WorkerID == 0 means "no hit"; T starts at +Inf.
type HitRecord struct {
	WorkerID uint32
	MeshID   uint32
	T        float32
	Geom     types.LocalGeometry
}

// NoHit returns the sentinel "nothing intersected yet" hit record.
func NoHit() HitRecord {
	return HitRecord{T: float32(math.Inf(1))}
}

// FatRay is the unit of work moved through the engine's worker pool. It
// owns everything a worker needs to keep advancing the ray, including the
// BVH traversal state that lets a walk suspend on one worker and resume
// elsewhere.
type FatRay struct {
	Kind Kind

	// X, Y are the screen coordinates of the originating primary sample.
	X, Y uint32

	Bounces uint32

	Ray types.SlimRay

	// Transmittance is the AA-sample contribution weight, <= 1.
	Transmittance float32

	Hit       HitRecord
	Traversal bvh.TraversalState

	// LightTarget and Radiance are shading scratch fields used by
	// ProcessLight / a shader's Indirect implementation. They carry no
	// meaning to the engine itself.
	LightTarget types.Vec3
	Radiance    types.Vec3
}

// NewPrimaryRay builds a fresh INTERSECT-stage ray for pixel (x, y) as
// produced by the camera.
func NewPrimaryRay(x, y uint32, ray types.SlimRay, transmittance float32) *FatRay {
	return &FatRay{
		Kind:          Intersect,
		X:             x,
		Y:             y,
		Ray:           ray,
		Transmittance: transmittance,
		Hit:           NoHit(),
		Traversal:     bvh.NewTraversalState(),
	}
}

// OpKind is a pixel-level action applied to one named buffer.
type OpKind uint8

const (
	Write OpKind = iota
	Accumulate
)

// BufferOp is a single WRITE or ACCUMULATE against one pixel of one named
// image buffer.
type BufferOp struct {
	Buffer string
	X, Y   uint32
	Op     OpKind
	V      float32
}

// Forward is a ray spawned during shading, handed back to the dispatcher
// instead of being followed synchronously on the worker thread. Node == 0
// means "push back into the local intersect queue" (the only routing this
// single-worker core implements; nonzero node ids are reserved for the
// distributed extension described in spec §9).
type Forward struct {
	Ray  *FatRay
	Node uint32
}

// Counters tallies rays produced and killed at each stage of the pipeline
// during one job. Summed by the dispatcher into the engine's running
// totals.
type Counters struct {
	IntersectsProduced  uint64
	IlluminatesProduced uint64
	LightsProduced      uint64
	IntersectsKilled    uint64
	IlluminatesKilled   uint64
	LightsKilled        uint64
}

// Add accumulates other into c.
func (c *Counters) Add(other Counters) {
	c.IntersectsProduced += other.IntersectsProduced
	c.IlluminatesProduced += other.IlluminatesProduced
	c.LightsProduced += other.LightsProduced
	c.IntersectsKilled += other.IntersectsKilled
	c.IlluminatesKilled += other.IlluminatesKilled
	c.LightsKilled += other.LightsKilled
}

// WorkResults is the per-job output produced by OnWork and consumed by
// AfterWork: the pixel contribution of one ray plus any rays it spawned.
type WorkResults struct {
	BufferOps []BufferOp
	Forwards  []Forward
	Counters  Counters
}

// NewWorkResults allocates an empty WorkResults ready to be filled in by
// ProcessRay.
func NewWorkResults() *WorkResults {
	return &WorkResults{}
}

// Write appends a WRITE buffer op.
func (r *WorkResults) Write(buffer string, x, y uint32, v float32) {
	r.BufferOps = append(r.BufferOps, BufferOp{Buffer: buffer, X: x, Y: y, Op: Write, V: v})
}

// Accumulate appends an ACCUMULATE buffer op.
func (r *WorkResults) Accumulate(buffer string, x, y uint32, v float32) {
	r.BufferOps = append(r.BufferOps, BufferOp{Buffer: buffer, X: x, Y: y, Op: Accumulate, V: v})
}

// Forward hands ray back to the dispatcher rather than following it on the
// current worker thread, per the shader capability contract of §4.E.
func (r *WorkResults) Forward(ray *FatRay) {
	r.Forwards = append(r.Forwards, Forward{Ray: ray, Node: 0})
}

// Shader is the narrow capability the engine consumes to fill in a
// WorkResults for a ray that just hit a surface. Implementations must be
// pure with respect to the Library and callable concurrently from any
// worker thread.
type Shader interface {
	Indirect(ray *FatRay, hitPoint types.Vec3, results *WorkResults)
}
