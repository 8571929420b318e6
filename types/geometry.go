package types

import "math"

// Axis identifies one of the three principal axes, used to select a BVH
// split axis or index into a Vec3.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// BoundingBox is an axis-aligned bounding box.
type BoundingBox struct {
	Min Vec3
	Max Vec3
}

// EmptyBoundingBox returns a bounding box whose Union with anything yields
// that thing (an inverted-infinite box).
func EmptyBoundingBox() BoundingBox {
	return BoundingBox{
		Min: Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
}

// Union returns the smallest bounding box enclosing both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		Min: MinVec3(b.Min, o.Min),
		Max: MaxVec3(b.Max, o.Max),
	}
}

// ExtendPoint grows the bounding box to include p.
func (b BoundingBox) ExtendPoint(p Vec3) BoundingBox {
	return BoundingBox{
		Min: MinVec3(b.Min, p),
		Max: MaxVec3(b.Max, p),
	}
}

// Centroid returns the box's midpoint.
func (b BoundingBox) Centroid() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Diagonal returns Max - Min.
func (b BoundingBox) Diagonal() Vec3 {
	return b.Max.Sub(b.Min)
}

// SurfaceArea returns the box's total surface area, used by the SAH cost
// function during BVH construction.
func (b BoundingBox) SurfaceArea() float32 {
	d := b.Diagonal()
	if d[0] < 0 || d[1] < 0 || d[2] < 0 {
		return 0
	}
	return 2 * (d[0]*d[1] + d[1]*d[2] + d[0]*d[2])
}

// LongestAxis returns the axis along which the box is widest.
func (b BoundingBox) LongestAxis() Axis {
	d := b.Diagonal()
	if d[0] > d[1] && d[0] > d[2] {
		return AxisX
	}
	if d[1] > d[2] {
		return AxisY
	}
	return AxisZ
}

// Degenerate reports whether the box has NaN bounds or a negative extent
// (Min > Max, as in EmptyBoundingBox) along any axis, in which case ray/box
// tests are treated as a miss rather than faulting. A zero extent (a flat
// box) is not degenerate.
func (b BoundingBox) Degenerate() bool {
	for axis := 0; axis < 3; axis++ {
		if b.Min[axis] != b.Min[axis] || b.Max[axis] != b.Max[axis] {
			return true
		}
	}
	d := b.Diagonal()
	return d[0] < 0 || d[1] < 0 || d[2] < 0
}

// IntersectRay performs a slab test, returning the entry distance along the
// ray, clamped to [tMin, tMax], and whether the ray hits the box in that
// range.
func (b BoundingBox) IntersectRay(origin, invDir Vec3, tMin, tMax float32) (float32, bool) {
	if b.Degenerate() {
		return 0, false
	}
	for axis := 0; axis < 3; axis++ {
		t0 := (b.Min[axis] - origin[axis]) * invDir[axis]
		t1 := (b.Max[axis] - origin[axis]) * invDir[axis]
		if invDir[axis] < 0 {
			t0, t1 = t1, t0
		}
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		if tMax < tMin {
			return 0, false
		}
	}
	return tMin, true
}

// SlimRay is the minimal (origin, direction) ray used for intersection
// tests; FatRay (package work) embeds one along with per-job bookkeeping.
type SlimRay struct {
	Origin    Vec3
	Direction Vec3
}

// At returns the point at parameter t along the ray.
func (r SlimRay) At(t float32) Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// InvDirection returns the component-wise reciprocal of the ray direction,
// used to avoid repeated division during BVH slab tests.
func (r SlimRay) InvDirection() Vec3 {
	return Vec3{1.0 / r.Direction[0], 1.0 / r.Direction[1], 1.0 / r.Direction[2]}
}

// LocalGeometry carries the barycentric-interpolated surface data recorded
// at a hit point.
type LocalGeometry struct {
	Normal Vec3
	UV     Vec2
}

// Triangle is a single renderable primitive, stored with its per-vertex
// shading data so that a hit can be locally shaded without a second lookup.
type Triangle struct {
	V0, V1, V2 Vec3
	N0, N1, N2 Vec3
	UV0, UV1, UV2 Vec2
}

// BBox returns the triangle's bounding box; Triangle implements the
// BoundedVolume interface consumed by the bvh package.
func (t Triangle) BBox() BoundingBox {
	return BoundingBox{
		Min: MinVec3(MinVec3(t.V0, t.V1), t.V2),
		Max: MaxVec3(MaxVec3(t.V0, t.V1), t.V2),
	}
}

// Center returns the triangle's centroid.
func (t Triangle) Center() Vec3 {
	return t.V0.Add(t.V1).Add(t.V2).Mul(1.0 / 3.0)
}

// Intersect performs a Möller–Trumbore ray/triangle test, returning the hit
// distance and barycentric coordinates (u, v) of the second and third
// vertices. A degenerate (zero-area) triangle or NaN vertex reports a miss.
func (t Triangle) Intersect(ray SlimRay, tMax float32) (dist, u, v float32, ok bool) {
	edge1 := t.V1.Sub(t.V0)
	edge2 := t.V2.Sub(t.V0)
	pvec := ray.Direction.Cross(edge2)
	det := edge1.Dot(pvec)
	if det > -1e-8 && det < 1e-8 {
		return 0, 0, 0, false
	}
	invDet := 1.0 / det
	tvec := ray.Origin.Sub(t.V0)
	u = tvec.Dot(pvec) * invDet
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	qvec := tvec.Cross(edge1)
	v = ray.Direction.Dot(qvec) * invDet
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	dist = edge2.Dot(qvec) * invDet
	if dist <= 1e-6 || dist > tMax || dist != dist {
		return 0, 0, 0, false
	}
	return dist, u, v, true
}

// InterpolatedNormal returns the barycentric-interpolated, un-normalized
// shading normal for barycentric coordinates (u, v).
func (t Triangle) InterpolatedNormal(u, v float32) Vec3 {
	w := 1 - u - v
	return t.N0.Mul(w).Add(t.N1.Mul(u)).Add(t.N2.Mul(v))
}

// InterpolatedUV returns the barycentric-interpolated texture coordinate.
func (t Triangle) InterpolatedUV(u, v float32) Vec2 {
	w := 1 - u - v
	return t.UV0.Mul(w).Add(t.UV1.Mul(u)).Add(t.UV2.Mul(v))
}
