// internal/geometry/polygon_test.go
package geometry

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const tolerance = 1e-9

func TestGeneratePolygon_Pentagon(t *testing.T) {
	center := Point{X: 683, Y: 384}
	points, err := GeneratePolygon(center, 50, 5)
	require.NoError(t, err)
	require.Len(t, points, 6)

	want := []Point{
		{X: 733, Y: 384},
		{X: 683 + 50*math.Cos(2*math.Pi/5), Y: 384 + 50*math.Sin(2*math.Pi/5)},
		{X: 683 + 50*math.Cos(4*math.Pi/5), Y: 384 + 50*math.Sin(4*math.Pi/5)},
		{X: 683 + 50*math.Cos(6*math.Pi/5), Y: 384 + 50*math.Sin(6*math.Pi/5)},
		{X: 683 + 50*math.Cos(8*math.Pi/5), Y: 384 + 50*math.Sin(8*math.Pi/5)},
		{X: 733, Y: 384},
	}
	if diff := cmp.Diff(want, points, cmpopts.EquateApprox(0, tolerance)); diff != "" {
		t.Errorf("GeneratePolygon mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, points[0], points[5])
}

func TestGeneratePolygon_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		radius float64
		n      int
	}{
		{"two vertices", 10, 2},
		{"zero vertices", 10, 0},
		{"zero radius", 0, 5},
		{"negative radius", -3, 5},
		{"nan radius", math.NaN(), 5},
		{"infinite radius", math.Inf(1), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := GeneratePolygon(Point{}, tt.radius, tt.n)
			assert.ErrorIs(t, err, ErrDegenerate)
			assert.Nil(t, points)
		})
	}
}

// Every generated ring has n+1 points, is closed, and keeps each vertex on the circle.
func TestGeneratePolygon_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		center := Point{
			X: rapid.Float64Range(-5000, 5000).Draw(t, "cx"),
			Y: rapid.Float64Range(-5000, 5000).Draw(t, "cy"),
		}
		radius := rapid.Float64Range(0.001, 10000).Draw(t, "radius")
		n := rapid.IntRange(3, 360).Draw(t, "n")

		points, err := GeneratePolygon(center, radius, n)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(points) != n+1 {
			t.Fatalf("got %d points, want %d", len(points), n+1)
		}
		if points[0] != points[n] {
			t.Fatalf("ring not closed: first %v last %v", points[0], points[n])
		}
		eps := 1e-9 * math.Max(1, radius+center.Mag())
		for i, p := range points[:n] {
			if d := p.Dist(center); math.Abs(d-radius) > eps {
				t.Fatalf("vertex %d at distance %v, want %v", i, d, radius)
			}
		}
	})
}

// Same inputs, same output: the generator has no hidden state.
func TestGeneratePolygon_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		center := Point{X: rapid.Float64Range(0, 2000).Draw(t, "cx"), Y: rapid.Float64Range(0, 2000).Draw(t, "cy")}
		radius := rapid.Float64Range(1, 500).Draw(t, "radius")
		n := rapid.IntRange(3, 64).Draw(t, "n")

		a, errA := GeneratePolygon(center, radius, n)
		b, errB := GeneratePolygon(center, radius, n)
		if errA != nil || errB != nil {
			t.Fatalf("unexpected errors: %v %v", errA, errB)
		}
		if !cmp.Equal(a, b) {
			t.Fatalf("outputs differ for identical inputs")
		}
	})
}

func TestBounds(t *testing.T) {
	points, err := GeneratePolygon(Point{X: 10, Y: 10}, 5, 4)
	require.NoError(t, err)
	b := Bounds(points)
	want := Rect{X: 5, Y: 5, Width: 10, Height: 10}
	if diff := cmp.Diff(want, b, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Bounds mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Rect{}, Bounds(nil))
}
