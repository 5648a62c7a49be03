// internal/geometry/polygon.go
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerate is returned when the requested polygon cannot enclose an area.
var ErrDegenerate = errors.New("geometry: degenerate polygon")

// GeneratePolygon returns the vertices of a regular polygon with n corners on a
// circle of the given radius around center. Vertex i sits at angle 2*pi*i/n. The
// first vertex is repeated at the end so the ring is closed, giving n+1 points.
func GeneratePolygon(center Point, radius float64, n int) ([]Point, error) {
	if n < 3 {
		return nil, fmt.Errorf("%w: need at least 3 vertices, got %d", ErrDegenerate, n)
	}
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: radius must be positive and finite, got %v", ErrDegenerate, radius)
	}

	points := make([]Point, 0, n+1)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		points = append(points, center.Add(Polar(radius, theta)))
	}
	return append(points, points[0]), nil
}

// Bounds is the smallest Rect containing every point.
func Bounds(points []Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
