package scene

import "math"

// Vector3 is a position or an Euler rotation in degrees.
type Vector3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Add returns v+o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v-o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v*f.
func (v Vector3) Scale(f float64) Vector3 {
	return Vector3{v.X * f, v.Y * f, v.Z * f}
}

// Length returns the Euclidean norm.
func (v Vector3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// ApproxEqual compares component-wise within eps.
func (v Vector3) ApproxEqual(o Vector3, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps && math.Abs(v.Y-o.Y) <= eps && math.Abs(v.Z-o.Z) <= eps
}

// Lerp interpolates from a to b; t is clamped to [0,1].
func Lerp(a, b Vector3, t float64) Vector3 {
	t = Clamp01(t)
	return a.Add(b.Sub(a).Scale(t))
}

// LerpFloat interpolates scalars; t is clamped to [0,1].
func LerpFloat(a, b, t float64) float64 {
	t = Clamp01(t)
	return a + (b-a)*t
}

// Clamp01 clamps t to [0,1].
func Clamp01(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}

// LookRotation returns the yaw/pitch (degrees) that faces from 'from' toward 'to'.
// When yawOnly is set the pitch is zero, which keeps characters upright.
func LookRotation(from, to Vector3, yawOnly bool) Vector3 {
	dir := to.Sub(from)
	if dir.Length() == 0 {
		return Vector3{}
	}
	yaw := math.Atan2(dir.X, dir.Z) * 180 / math.Pi
	if yawOnly {
		return Vector3{Y: yaw}
	}
	flat := math.Sqrt(dir.X*dir.X + dir.Z*dir.Z)
	pitch := -math.Atan2(dir.Y, flat) * 180 / math.Pi
	return Vector3{X: pitch, Y: yaw}
}

// Transform is a position and rotation.
type Transform struct {
	Position Vector3 `json:"position" yaml:"position"`
	Rotation Vector3 `json:"rotation" yaml:"rotation"`
}
