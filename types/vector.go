// Package types provides the vector, quaternion, matrix and bounding-volume
// primitives shared by every rendering component.
package types

import (
	"math"

	"golang.org/x/image/math/f32"
)

const floatCmpEpsilon float32 = 1e-6

type Vec2 f32.Vec2
type Vec3 f32.Vec3
type Vec4 f32.Vec4

// XY builds a 2 component vector.
func XY(x, y float32) Vec2 {
	return Vec2{x, y}
}

// XYZ builds a 3 component vector.
func XYZ(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

// XYZW builds a 4 component vector.
func XYZW(x, y, z, w float32) Vec4 {
	return Vec4{x, y, z, w}
}

// Vec3 expands a 2 component vector, filling in a z coordinate.
func (v Vec2) Vec3(z float32) Vec3 {
	return Vec3{v[0], v[1], z}
}

// Vec4 expands a 3 component vector, filling in a w coordinate.
func (v Vec3) Vec4(w float32) Vec4 {
	return Vec4{v[0], v[1], v[2], w}
}

// Vec3 reduces a 4 component vector, dropping w.
func (v Vec4) Vec3() Vec3 {
	return Vec3{v[0], v[1], v[2]}
}

func (v Vec2) Add(v2 Vec2) Vec2 { return Vec2{v[0] + v2[0], v[1] + v2[1]} }
func (v Vec2) Sub(v2 Vec2) Vec2 { return Vec2{v[0] - v2[0], v[1] - v2[1]} }
func (v Vec2) Mul(s float32) Vec2 { return Vec2{v[0] * s, v[1] * s} }
func (v Vec2) Dot(v2 Vec2) float32 { return v[0]*v2[0] + v[1]*v2[1] }

func (v Vec3) Add(v2 Vec3) Vec3 { return Vec3{v[0] + v2[0], v[1] + v2[1], v[2] + v2[2]} }
func (v Vec3) Sub(v2 Vec3) Vec3 { return Vec3{v[0] - v2[0], v[1] - v2[1], v[2] - v2[2]} }
func (v Vec3) Mul(s float32) Vec3 { return Vec3{v[0] * s, v[1] * s, v[2] * s} }

// MulVec3 performs a component-wise (Hadamard) product, used for tinting
// radiance by a surface's reflectance.
func (v Vec3) MulVec3(v2 Vec3) Vec3 {
	return Vec3{v[0] * v2[0], v[1] * v2[1], v[2] * v2[2]}
}

func (v Vec3) Dot(v2 Vec3) float32 {
	return v[0]*v2[0] + v[1]*v2[1] + v[2]*v2[2]
}

// Cross calculates the cross product of two vectors.
func (v Vec3) Cross(v2 Vec3) Vec3 {
	return Vec3{v[1]*v2[2] - v[2]*v2[1], v[2]*v2[0] - v[0]*v2[2], v[0]*v2[1] - v[1]*v2[0]}
}

// Len returns the vector's length.
func (v Vec3) Len() float32 {
	return float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
}

// Normalize returns a unit vector pointing in the same direction as v. The
// zero vector normalizes to itself.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < floatCmpEpsilon {
		return Vec3{}
	}
	inv := 1.0 / l
	return Vec3{v[0] * inv, v[1] * inv, v[2] * inv}
}

// Negate flips the sign of every component.
func (v Vec3) Negate() Vec3 {
	return Vec3{-v[0], -v[1], -v[2]}
}

// MaxComponent returns the largest of the three components.
func (v Vec3) MaxComponent() float32 {
	m := v[0]
	if v[1] > m {
		m = v[1]
	}
	if v[2] > m {
		m = v[2]
	}
	return m
}

// Component indexes the vector by axis (0=X, 1=Y, 2=Z).
func (v Vec3) Component(axis Axis) float32 {
	return v[axis]
}

// MinVec3 returns the component-wise minimum of two vectors.
func MinVec3(v1, v2 Vec3) Vec3 {
	out := v1
	if v2[0] < out[0] {
		out[0] = v2[0]
	}
	if v2[1] < out[1] {
		out[1] = v2[1]
	}
	if v2[2] < out[2] {
		out[2] = v2[2]
	}
	return out
}

// MaxVec3 returns the component-wise maximum of two vectors.
func MaxVec3(v1, v2 Vec3) Vec3 {
	out := v1
	if v2[0] > out[0] {
		out[0] = v2[0]
	}
	if v2[1] > out[1] {
		out[1] = v2[1]
	}
	if v2[2] > out[2] {
		out[2] = v2[2]
	}
	return out
}

func (v Vec4) Add(v2 Vec4) Vec4 {
	return Vec4{v[0] + v2[0], v[1] + v2[1], v[2] + v2[2], v[3] + v2[3]}
}

func (v Vec4) Sub(v2 Vec4) Vec4 {
	return Vec4{v[0] - v2[0], v[1] - v2[1], v[2] - v2[2], v[3] - v2[3]}
}

func (v Vec4) Mul(s float32) Vec4 {
	return Vec4{v[0] * s, v[1] * s, v[2] * s, v[3] * s}
}

func (v Vec4) Len() float32 {
	return float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2] + v[3]*v[3])))
}

func (v Vec4) Normalize() Vec4 {
	l := v.Len()
	if l < floatCmpEpsilon {
		return Vec4{}
	}
	inv := 1.0 / l
	return Vec4{v[0] * inv, v[1] * inv, v[2] * inv, v[3] * inv}
}
