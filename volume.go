package kdtree

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

type Axis int

const (
	NoAxis Axis = iota - 1
	X
	Y
	Z
)

var axes = [...]Axis{X, Y, Z}

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	default:
		return "none"
	}
}

func (a Axis) Valid() bool {
	return a >= X && a <= Z
}

type Vec3 = r3.Vector

// Component returns the coordinate of v on axis a.
func Component(v Vec3, a Axis) float64 {
	switch a {
	case X:
		return v.X
	case Y:
		return v.Y
	case Z:
		return v.Z
	default:
		panic(fmt.Sprintf("invalid axis %d", a))
	}
}

func setComponent(v *Vec3, a Axis, f float64) {
	switch a {
	case X:
		v.X = f
	case Y:
		v.Y = f
	case Z:
		v.Z = f
	default:
		panic(fmt.Sprintf("invalid axis %d", a))
	}
}

// Volume is the capability set the tree needs from a bounding volume. The
// split heuristic only looks at the extent on each axis, so containment by a
// node box is derived from MinOn and MaxOn.
type Volume interface {
	MinOn(a Axis) float64
	MaxOn(a Axis) float64
	Intersects(b BoundingBox) bool
}

type BoundingBox struct {
	Min, Max Vec3
}

func Box(minX, minY, minZ, maxX, maxY, maxZ float64) BoundingBox {
	return BoundingBox{
		Min: Vec3{X: minX, Y: minY, Z: minZ},
		Max: Vec3{X: maxX, Y: maxY, Z: maxZ},
	}
}

func (b BoundingBox) MinOn(a Axis) float64 { return Component(b.Min, a) }
func (b BoundingBox) MaxOn(a Axis) float64 { return Component(b.Max, a) }

func (b *BoundingBox) SetMin(a Axis, f float64) { setComponent(&b.Min, a, f) }
func (b *BoundingBox) SetMax(a Axis, f float64) { setComponent(&b.Max, a, f) }

// Intersects reports whether the boxes overlap. Touching faces count.
func (b BoundingBox) Intersects(b2 BoundingBox) bool {
	return b.Max.X >= b2.Min.X && b.Min.X <= b2.Max.X &&
		b.Max.Y >= b2.Min.Y && b.Min.Y <= b2.Max.Y &&
		b.Max.Z >= b2.Min.Z && b.Min.Z <= b2.Max.Z
}

func (b BoundingBox) Contains(b2 BoundingBox) bool {
	return b2.Min.X >= b.Min.X && b2.Max.X <= b.Max.X &&
		b2.Min.Y >= b.Min.Y && b2.Max.Y <= b.Max.Y &&
		b2.Min.Z >= b.Min.Z && b2.Max.Z <= b.Max.Z
}

func (b BoundingBox) ContainsPoint(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// ContainsVolume reports whether v lies entirely inside b.
func (b BoundingBox) ContainsVolume(v Volume) bool {
	for _, a := range axes {
		if v.MinOn(a) < b.MinOn(a) || v.MaxOn(a) > b.MaxOn(a) {
			return false
		}
	}
	return true
}

func (b BoundingBox) Equals(b2 BoundingBox) bool {
	return b.Min == b2.Min && b.Max == b2.Max
}

// IsEmpty reports whether min exceeds max on some axis.
func (b BoundingBox) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

func (b BoundingBox) Expand(b2 BoundingBox) BoundingBox {
	return BoundingBox{
		Min: Vec3{X: math.Min(b.Min.X, b2.Min.X), Y: math.Min(b.Min.Y, b2.Min.Y), Z: math.Min(b.Min.Z, b2.Min.Z)},
		Max: Vec3{X: math.Max(b.Max.X, b2.Max.X), Y: math.Max(b.Max.Y, b2.Max.Y), Z: math.Max(b.Max.Z, b2.Max.Z)},
	}
}

// Intersection returns the overlap of both boxes. The result IsEmpty when
// they don't overlap.
func (b BoundingBox) Intersection(b2 BoundingBox) BoundingBox {
	return BoundingBox{
		Min: Vec3{X: math.Max(b.Min.X, b2.Min.X), Y: math.Max(b.Min.Y, b2.Min.Y), Z: math.Max(b.Min.Z, b2.Min.Z)},
		Max: Vec3{X: math.Min(b.Max.X, b2.Max.X), Y: math.Min(b.Max.Y, b2.Max.Y), Z: math.Min(b.Max.Z, b2.Max.Z)},
	}
}

func (b BoundingBox) Translate(d Vec3) BoundingBox {
	return BoundingBox{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%g,%g,%g)-(%g,%g,%g)", b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
}

// BoundsOf returns the axis aligned box enclosing v.
func BoundsOf(v Volume) BoundingBox {
	var b BoundingBox
	for _, a := range axes {
		b.SetMin(a, v.MinOn(a))
		b.SetMax(a, v.MaxOn(a))
	}
	return b
}

func sameExtent(v1, v2 Volume) bool {
	for _, a := range axes {
		if v1.MinOn(a) != v2.MinOn(a) || v1.MaxOn(a) != v2.MaxOn(a) {
			return false
		}
	}
	return true
}

type Sphere struct {
	Center Vec3
	Radius float64
}

func (s Sphere) MinOn(a Axis) float64 { return Component(s.Center, a) - s.Radius }
func (s Sphere) MaxOn(a Axis) float64 { return Component(s.Center, a) + s.Radius }

// Intersects uses the closest point of b to the center.
func (s Sphere) Intersects(b BoundingBox) bool {
	d := 0.0
	for _, a := range axes {
		c := Component(s.Center, a)
		if c < b.MinOn(a) {
			e := b.MinOn(a) - c
			d += e * e
		} else if c > b.MaxOn(a) {
			e := c - b.MaxOn(a)
			d += e * e
		}
	}
	return d <= s.Radius*s.Radius
}

type Ray struct {
	Origin, Dir Vec3
}

// At returns the point at distance t along the ray, in units of Dir.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// IntersectBox performs a slab test and returns the parametric entry distance
// of the ray into b. An origin inside b yields 0.
func (r Ray) IntersectBox(b BoundingBox) (float64, bool) {
	tmin, tmax := 0.0, math.Inf(1)
	for _, a := range axes {
		o, d := Component(r.Origin, a), Component(r.Dir, a)
		lo, hi := b.MinOn(a), b.MaxOn(a)
		if d == 0 {
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}
		inv := 1 / d
		t1, t2 := (lo-o)*inv, (hi-o)*inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}
