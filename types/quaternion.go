package types

import "math"

// Quat implements rotations without gimbal lock. Construction taken from the
// same axis-angle / Rodrigues formulation the camera basis rotation relies on.
type Quat struct {
	V Vec3
	W float32
}

// QuatIdent returns the identity quaternion (no rotation).
func QuatIdent() Quat {
	return Quat{V: Vec3{}, W: 1.0}
}

// QuatFromAxisAngle builds a quaternion representing a rotation of angle
// radians around axis.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	sin := float32(math.Sin(float64(angle * 0.5)))
	cos := float32(math.Cos(float64(angle * 0.5)))
	return Quat{
		V: axis.Mul(sin),
		W: cos,
	}
}

// Rotate applies the rotation this quaternion represents to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	cross := q.V.Cross(v)
	return v.Add(cross.Mul(2 * q.W)).Add(q.V.Mul(2).Cross(cross))
}

// Mul composes two rotations. Not commutative.
func (q1 Quat) Mul(q2 Quat) Quat {
	return Quat{
		q1.V.Cross(q2.V).Add(q2.V.Mul(q1.W)).Add(q1.V.Mul(q2.W)),
		q1.W*q2.W - q1.V.Dot(q2.V),
	}
}

// Len returns the quaternion's norm.
func (q Quat) Len() float32 {
	return float32(math.Sqrt(float64(q.W*q.W + q.V[0]*q.V[0] + q.V[1]*q.V[1] + q.V[2]*q.V[2])))
}

// Normalize returns the unit quaternion (versor) for q.
func (q Quat) Normalize() Quat {
	length := q.Len()
	if length == 0 {
		return QuatIdent()
	}
	return Quat{q.V.Mul(1 / length), q.W * 1 / length}
}
