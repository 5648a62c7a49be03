// internal/geometry/point.go
package geometry

import "math"

// Point is a position in viewport coordinates, in CSS pixels. Y grows downward,
// matching what the browser reports for bounding boxes and mouse events.
type Point struct {
	X float64
	Y float64
}

// Add returns p + other.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns p - other.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale multiplies both components by s.
func (p Point) Scale(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// Mag is the Euclidean length of p treated as a vector.
func (p Point) Mag() float64 {
	// math.Hypot avoids overflow with very large components.
	return math.Hypot(p.X, p.Y)
}

// Dist is the Euclidean distance between p and other.
func (p Point) Dist(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Polar returns the point at distance r from the origin along angle theta (radians).
func Polar(r, theta float64) Point {
	return Point{X: r * math.Cos(theta), Y: r * math.Sin(theta)}
}

// Rect is an axis-aligned box, as reported by element bounding boxes.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Center is the midpoint of the box.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Contains reports whether p lies inside the box, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Encloses reports whether o lies inside the box, edges included.
func (r Rect) Encloses(o Rect) bool {
	return r.Contains(Point{X: o.X, Y: o.Y}) && r.Contains(Point{X: o.X + o.Width, Y: o.Y + o.Height})
}

// Empty reports whether the box has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}
