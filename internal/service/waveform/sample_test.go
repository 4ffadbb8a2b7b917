package waveform

import (
	"math/rand"
	"strings"
	"testing"
)

func TestSampler_Next_Shape(t *testing.T) {
	s := NewSampler(DefaultWidth, DefaultBaseline, rand.New(rand.NewSource(1)))

	for frame := 0; frame < 200; frame++ {
		points := s.Next()
		if len(points) != PointCount {
			t.Fatalf("expected %d points, got %d", PointCount, len(points))
		}
		if points[0].X != 0 || points[0].Y != DefaultBaseline {
			t.Fatalf("expected first point pinned at (0,%v), got %+v", DefaultBaseline, points[0])
		}
		last := points[len(points)-1]
		if last.X != DefaultWidth || last.Y != DefaultBaseline {
			t.Fatalf("expected last point pinned at (%v,%v), got %+v", DefaultWidth, DefaultBaseline, last)
		}
		for i, p := range points {
			if p.Y > DefaultBaseline || p.Y < DefaultBaseline-MaxDeflection {
				t.Fatalf("frame %d point %d out of envelope: %v", frame, i, p.Y)
			}
			if i > 0 && p.X <= points[i-1].X {
				t.Fatalf("expected increasing x, got %v after %v", p.X, points[i-1].X)
			}
		}
	}
}

func TestSampler_Next_Smoothing(t *testing.T) {
	s := NewSampler(DefaultWidth, DefaultBaseline, rand.New(rand.NewSource(7)))

	// From the baseline a single step covers 30% of a deflection of at
	// most MaxDeflection.
	points := s.Next()
	for i, p := range points[1 : len(points)-1] {
		if DefaultBaseline-p.Y > MaxDeflection*Smoothing+1e-9 {
			t.Errorf("point %d moved more than one smoothing step: %v", i, p.Y)
		}
		if p.Y >= DefaultBaseline {
			t.Errorf("point %d expected above the baseline, got %v", i, p.Y)
		}
	}
}

func TestSampler_Reset(t *testing.T) {
	s := NewSampler(DefaultWidth, DefaultBaseline, rand.New(rand.NewSource(3)))
	s.Next()
	s.Next()
	s.Reset()

	for i, v := range s.values {
		if v != DefaultBaseline {
			t.Errorf("expected value %d at baseline after reset, got %v", i, v)
		}
	}
}

func TestFlatPath_Default(t *testing.T) {
	expected := "M0,30 Q25,30 50,30 T100,30 T150,30 T200,30 T250,30 T300,30"
	if got := FlatPath(DefaultWidth, DefaultBaseline); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

func TestPath(t *testing.T) {
	points := []Point{{0, 30}, {10, 20}, {20, 30}}
	expected := "M0,30 C4,30 6,20 10,20 C14,20 16,30 20,30"

	if got := Path(points); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
	if got := Path(nil); got != "" {
		t.Errorf("expected empty path for no points, got %q", got)
	}
}

func TestPath_RoundsCoordinates(t *testing.T) {
	got := Path([]Point{{0, 30}, {300.0 / 21, 12.3456}})
	if strings.Contains(got, "14.285714") {
		t.Errorf("expected coordinates rounded to 2 decimals, got %q", got)
	}
	if !strings.HasSuffix(got, "14.29,12.35") {
		t.Errorf("expected path to end at 14.29,12.35, got %q", got)
	}
}

func TestFlat(t *testing.T) {
	points := Flat(DefaultWidth, DefaultBaseline)
	if len(points) != PointCount {
		t.Fatalf("expected %d points, got %d", PointCount, len(points))
	}
	for _, p := range points {
		if p.Y != DefaultBaseline {
			t.Errorf("expected flat point at baseline, got %v", p.Y)
		}
	}
}

func TestRelax(t *testing.T) {
	from := []Point{{0, 30}, {10, 10}, {20, 30}}

	if got := relax(from, 30, 0); got[1].Y != 10 {
		t.Errorf("expected no movement at t=0, got %v", got[1].Y)
	}
	if got := relax(from, 30, 1); got[1].Y != 30 {
		t.Errorf("expected baseline at t=1, got %v", got[1].Y)
	}
	half := relax(from, 30, 0.5)[1].Y
	if half <= 20 || half >= 30 {
		t.Errorf("expected ease-out past the midpoint at t=0.5, got %v", half)
	}
}
