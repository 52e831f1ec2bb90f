// Package frame converts simulator world-frame poses and velocities into the
// NED (north-east-down) conventions expected by ArduPilot SITL.
//
// Two fixed offset poses configure the conversion: a model-frame to
// body-frame offset (aligning the vehicle model with the x-forward z-down
// airframe convention) and a world-frame to NED offset, which defaults to a
// 180 degree roll about the x axis. Composition follows the right-handed
// semantics of the simulator's pose arithmetic: for poses A and B,
// Compose(A, B) expresses offset A applied within base frame B.
package frame

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is a rigid-body transform: a rotation followed by a translation.
// Rot is a unit quaternion with the scalar component in Real.
type Pose struct {
	Pos r3.Vec
	Rot quat.Number
}

// Identity returns the identity pose.
func Identity() Pose {
	return Pose{Rot: quat.Number{Real: 1}}
}

// FromEuler builds a pose from a translation and intrinsic roll, pitch, yaw
// angles in radians (rotation order: yaw, then pitch, then roll).
func FromEuler(x, y, z, roll, pitch, yaw float64) Pose {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)
	return Pose{
		Pos: r3.Vec{X: x, Y: y, Z: z},
		Rot: quat.Number{
			Real: cy*cp*cr + sy*sp*sr,
			Imag: cy*cp*sr - sy*sp*cr,
			Jmag: cy*sp*cr + sy*cp*sr,
			Kmag: sy*cp*cr - cy*sp*sr,
		},
	}
}

// DefaultNEDOffset is the world-to-NED offset used when none is configured:
// a 180 degree roll about the x axis, flipping the z axis.
func DefaultNEDOffset() Pose {
	return FromEuler(0, 0, 0, math.Pi, 0, 0)
}

// Rotate applies the rotation q to the vector v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// RotateReverse applies the inverse of the rotation q to the vector v.
func RotateReverse(q quat.Number, v r3.Vec) r3.Vec {
	return Rotate(quat.Conj(q), v)
}

// Compose expresses the offset pose within the base frame: the result's
// translation is the base translation plus the offset translation rotated
// into the base frame, and its rotation is base.Rot * offset.Rot.
func Compose(offset, base Pose) Pose {
	return Pose{
		Pos: r3.Add(base.Pos, Rotate(base.Rot, offset.Pos)),
		Rot: quat.Mul(base.Rot, offset.Rot),
	}
}

// RelativeTo re-expresses pose p relative to the base frame: the inverse of
// Compose, so RelativeTo(Compose(p, base), base) returns p.
func RelativeTo(p, base Pose) Pose {
	return Pose{
		Pos: RotateReverse(base.Rot, r3.Sub(p.Pos, base.Pos)),
		Rot: quat.Mul(quat.Conj(base.Rot), p.Rot),
	}
}

// Inverse returns the pose that undoes p.
func Inverse(p Pose) Pose {
	inv := quat.Conj(p.Rot)
	return Pose{
		Pos: r3.Scale(-1, Rotate(inv, p.Pos)),
		Rot: inv,
	}
}

// WorldToNEDBody converts a world-frame vehicle pose into the pose of the
// body frame relative to NED. The returned rotation is the quaternion
// rotating NED into the body frame.
func WorldToNEDBody(world, modelOffset, nedOffset Pose) Pose {
	return RelativeTo(Compose(modelOffset, world), nedOffset)
}

// WorldVelocityToNED rotates a world-frame velocity into the NED frame.
func WorldVelocityToNED(v r3.Vec, nedOffset Pose) r3.Vec {
	return RotateReverse(nedOffset.Rot, v)
}
