package psf

import "math"

// FibreRadius is the fiber core radius on sky, in arcseconds.
const FibreRadius = 0.798

const (
	defaultRings       = 10
	defaultInnerPoints = 6
)

type subgridConfig struct {
	rings       int
	innerPoints int
}

// SubgridOption configures subgrid generation.
type SubgridOption func(*subgridConfig)

// WithRings overrides the number of concentric sample rings.
func WithRings(n int) SubgridOption {
	return func(cfg *subgridConfig) {
		if n > 0 {
			cfg.rings = n
		}
	}
}

// WithInnerPoints overrides the nominal point count of the innermost ring.
// Ring i gets round(n * (i + 0.5)) points.
func WithInnerPoints(n int) SubgridOption {
	return func(cfg *subgridConfig) {
		if n > 0 {
			cfg.innerPoints = n
		}
	}
}

// Subgrid is an immutable set of sample offsets covering a disc of the given
// radius. It approximates the integral of a profile over a fiber aperture by
// the mean of point evaluations at the offsets.
type Subgrid struct {
	x, y []float64
}

// NewSubgrid generates the sample-point set for an aperture of the given
// radius. The defaults (10 rings, 6 points per unit ring index) yield 300
// points. Generation is deterministic: equal arguments produce identical
// point sets.
func NewSubgrid(radius float64, opts ...SubgridOption) *Subgrid {
	cfg := subgridConfig{rings: defaultRings, innerPoints: defaultInnerPoints}
	for _, opt := range opts {
		opt(&cfg)
	}

	var xs, ys []float64
	rot := 0.0
	for ring := 0; ring < cfg.rings; ring++ {
		ringIndex := float64(ring) + 0.5
		n := int(math.Round(float64(cfg.innerPoints) * ringIndex))
		if n < 1 {
			n = 1
		}
		step := 2.0 * math.Pi / float64(n)
		ringRadius := ringIndex * radius / float64(cfg.rings)
		for k := 0; k < n; k++ {
			theta := float64(k)*step + rot
			xs = append(xs, ringRadius*math.Cos(theta))
			ys = append(ys, ringRadius*math.Sin(theta))
		}
		// Advance by half the angle of the ring's second point, measured
		// from zero, so successive rings stay staggered against each other.
		rot += (step + rot) / 2.0
	}
	return &Subgrid{x: xs, y: ys}
}

// Len returns the number of sample points.
func (g *Subgrid) Len() int { return len(g.x) }

// At returns the i-th sample offset.
func (g *Subgrid) At(i int) (x, y float64) { return g.x[i], g.y[i] }
