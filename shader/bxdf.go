// Package shader implements the narrow shade_indirect capability spec §4.E
// consumes. The shading language itself is out of scope per spec.md's
// Non-goals; BxdfShader is the one concrete, fully wired implementation
// this repository ships so `flexrender render` produces a real image
// end to end. Grounded on the teacher's material tree
// (asset/material/bxdf.go, node.go, op.go): a small tree of BxdfType
// leaves blended by mix nodes, reduced from the teacher's yacc-parsed
// expression language (out of scope, see DESIGN.md) to a plain Go tree
// evaluated directly.
package shader

import (
	"math"
	"math/rand"

	"github.com/corefan/flexrender/bvh"
	"github.com/corefan/flexrender/library"
	"github.com/corefan/flexrender/types"
	"github.com/corefan/flexrender/work"
)

// BxdfShader evaluates a library.Material's tree against a hit point and
// fills in the primary buffer contribution, spawning a LIGHT-stage
// forward for surfaces that aren't purely emissive.
type BxdfShader struct {
	Lib          *library.Library
	MaterialID   uint32
	PrimaryBuf   string
	rngPerWorker func() *rand.Rand
}

// NewBxdfShader builds a shader bound to one material, drawing the spawned
// LIGHT ray's direction from the generator rngPerWorker returns
// (per spec §5's "give each worker its own RNG stream" guidance).
func NewBxdfShader(lib *library.Library, materialID uint32, primaryBuffer string, rngPerWorker func() *rand.Rand) *BxdfShader {
	return &BxdfShader{Lib: lib, MaterialID: materialID, PrimaryBuf: primaryBuffer, rngPerWorker: rngPerWorker}
}

// Indirect implements work.Shader. It evaluates the bound material's tree
// at hitPoint using the ray's interpolated shading normal, writes the
// resulting radiance contribution into results, and — for non-purely
// emissive surfaces — forwards a LIGHT-stage ray to sample direct
// lighting, per the "shader returns spawned rays to the dispatcher"
// contract of spec §9.
func (s *BxdfShader) Indirect(ray *work.FatRay, hitPoint types.Vec3, results *work.WorkResults) {
	mat := s.Lib.Material(s.MaterialID)
	if mat == nil || mat.Root == nil {
		results.Counters.IlluminatesKilled++
		return
	}

	radiance, emissiveOnly := evalNode(s.Lib, mat.Root, ray.Hit.Geom.Normal, ray.Hit.Geom.UV)

	contribution := radiance.Mul(ray.Transmittance)
	total := contribution[0] + contribution[1] + contribution[2]
	results.Accumulate(s.PrimaryBuf, ray.X, ray.Y, total)

	if !emissiveOnly {
		rng := s.rngPerWorker()
		lightRay := &work.FatRay{
			Kind:          work.Light,
			X:             ray.X,
			Y:             ray.Y,
			Bounces:       ray.Bounces + 1,
			Ray:           types.SlimRay{Origin: hitPoint, Direction: cosineSampleHemisphere(ray.Hit.Geom.Normal, rng)},
			Transmittance: ray.Transmittance,
			Hit:           work.NoHit(),
			Traversal:     bvh.NewTraversalState(),
		}
		results.Forward(lightRay)
		results.Counters.LightsProduced++
	}

	results.Counters.IlluminatesKilled++
}

// evalNode walks the material tree and returns the blended radiance
// contribution at the hit surface, plus whether every leaf visited was
// purely emissive (in which case no secondary/light ray is worth
// spawning).
func evalNode(lib *library.Library, node *library.MaterialNode, normal types.Vec3, uv types.Vec2) (types.Vec3, bool) {
	switch node.Kind {
	case library.NodeMix:
		leftColor, leftEmissive := evalNode(lib, node.Left, normal, uv)
		rightColor, rightEmissive := evalNode(lib, node.Right, normal, uv)
		blended := leftColor.Mul(node.Weight).Add(rightColor.Mul(1 - node.Weight))
		return blended, leftEmissive && rightEmissive

	case library.NodeEmissive:
		return node.Radiance, true

	case library.NodeDiffuse:
		reflectance := sampleReflectance(lib, node, uv)
		ndotl := float32(math.Max(0, float64(normal[1])))
		return reflectance.Mul(ndotl), false

	case library.NodeConductor, library.NodeDielectric:
		reflectance := sampleReflectance(lib, node, uv)
		return reflectance, false

	default:
		return types.Vec3{}, true
	}
}

func sampleReflectance(lib *library.Library, node *library.MaterialNode, uv types.Vec2) types.Vec3 {
	if node.TextureID == 0 {
		return node.Reflectance
	}
	tex := lib.Texture(node.TextureID)
	if tex == nil {
		return node.Reflectance
	}
	sampler, ok := tex.Sampler.(*Sampler)
	if !ok {
		return node.Reflectance
	}
	return sampler.SampleRGB(uv[0], uv[1])
}

// cosineSampleHemisphere draws a cosine-weighted direction about normal,
// used to point spawned LIGHT-stage rays at plausible light directions
// until a real light-sampling strategy replaces it.
func cosineSampleHemisphere(normal types.Vec3, rng *rand.Rand) types.Vec3 {
	u1, u2 := rng.Float32(), rng.Float32()
	r := float32(math.Sqrt(float64(u1)))
	theta := 2 * math.Pi * float64(u2)
	x := r * float32(math.Cos(theta))
	y := r * float32(math.Sin(theta))
	z := float32(math.Sqrt(math.Max(0, float64(1-u1))))

	t := types.XYZ(1, 0, 0)
	if math.Abs(float64(normal[0])) > 0.9 {
		t = types.XYZ(0, 1, 0)
	}
	tangent := t.Cross(normal).Normalize()
	bitangent := normal.Cross(tangent)

	return tangent.Mul(x).Add(bitangent.Mul(y)).Add(normal.Mul(z)).Normalize()
}
