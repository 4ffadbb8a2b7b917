// Package waveform generates the animated recording waveform: a smoothed
// random curve while recording that relaxes to a flat baseline when stopped.
package waveform

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
)

const (
	InteriorPoints = 20
	PointCount     = InteriorPoints + 2

	DefaultWidth    = 300.0
	DefaultBaseline = 30.0

	// Smoothing is the fraction of the distance to the target covered per frame.
	Smoothing = 0.3

	MinAmplitude     = 2.0
	AmplitudeRange   = 18.0
	BurstProbability = 0.05
	BurstAmplitude   = 15.0
)

// MaxDeflection is the largest distance a point can sit above the baseline.
const MaxDeflection = MinAmplitude + AmplitudeRange + BurstAmplitude

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sampler produces successive waveform samples. Not safe for concurrent use.
type Sampler struct {
	width    float64
	baseline float64
	values   [InteriorPoints]float64
	rng      *rand.Rand
}

func NewSampler(width, baseline float64, rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	s := &Sampler{width: width, baseline: baseline, rng: rng}
	s.Reset()
	return s
}

// Reset returns every interior value to the baseline.
func (s *Sampler) Reset() {
	for i := range s.values {
		s.values[i] = s.baseline
	}
}

// Next advances each interior value 30% toward a fresh random target and
// returns the sample with both edges pinned to the baseline.
func (s *Sampler) Next() []Point {
	for i := range s.values {
		amp := s.rng.Float64()*AmplitudeRange + MinAmplitude
		if s.rng.Float64() < BurstProbability {
			amp += BurstAmplitude
		}
		target := s.baseline - amp + s.rng.Float64()*(amp/3)
		s.values[i] += (target - s.values[i]) * Smoothing
	}

	points := make([]Point, 0, PointCount)
	points = append(points, Point{X: 0, Y: s.baseline})
	for i, v := range s.values {
		points = append(points, Point{X: s.x(i + 1), Y: v})
	}
	points = append(points, Point{X: s.width, Y: s.baseline})
	return points
}

func (s *Sampler) x(i int) float64 {
	return float64(i) * s.width / float64(PointCount-1)
}

// Flat returns a sample lying on the baseline.
func Flat(width, baseline float64) []Point {
	points := make([]Point, PointCount)
	for i := range points {
		points[i] = Point{X: float64(i) * width / float64(PointCount-1), Y: baseline}
	}
	return points
}

// Path renders points as an SVG path of cubic segments whose control points
// sit at 40% and 60% of the span between neighbours.
func Path(points []Point) string {
	if len(points) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("M")
	writePoint(&b, points[0])
	for i := 1; i < len(points); i++ {
		prev, p := points[i-1], points[i]
		dx := p.X - prev.X
		b.WriteString(" C")
		writePoint(&b, Point{X: prev.X + dx*0.4, Y: prev.Y})
		b.WriteString(" ")
		writePoint(&b, Point{X: prev.X + dx*0.6, Y: p.Y})
		b.WriteString(" ")
		writePoint(&b, p)
	}
	return b.String()
}

// FlatPath is the resting baseline path, e.g.
// "M0,30 Q25,30 50,30 T100,30 T150,30 T200,30 T250,30 T300,30".
func FlatPath(width, baseline float64) string {
	step := width / 6
	var b strings.Builder
	b.WriteString("M")
	writePoint(&b, Point{X: 0, Y: baseline})
	b.WriteString(" Q")
	writePoint(&b, Point{X: step / 2, Y: baseline})
	b.WriteString(" ")
	writePoint(&b, Point{X: step, Y: baseline})
	for i := 2; i <= 6; i++ {
		b.WriteString(" T")
		writePoint(&b, Point{X: step * float64(i), Y: baseline})
	}
	return b.String()
}

func writePoint(b *strings.Builder, p Point) {
	b.WriteString(formatCoord(p.X))
	b.WriteByte(',')
	b.WriteString(formatCoord(p.Y))
}

func formatCoord(v float64) string {
	v = math.Round(v*100) / 100
	if v == 0 {
		v = 0 // drop negative zero
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// easeOut decelerates towards t=1.
func easeOut(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u
}

// relax interpolates every point from its position towards the baseline.
func relax(from []Point, baseline, t float64) []Point {
	k := easeOut(t)
	points := make([]Point, len(from))
	for i, p := range from {
		points[i] = Point{X: p.X, Y: p.Y + (baseline-p.Y)*k}
	}
	return points
}
