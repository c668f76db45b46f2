package geometry

import (
	"errors"
	"math"

	"runawaycore/types"
)

// RadialGrid owns the flux-surface-indexed geometric scalars that the
// averager publishes and every downstream component (CoulombLogarithm,
// CollisionFrequency, RunawayFluid) reads. It keeps separate arrays for
// the cell grid (size n_r) and the radial-face grid (size n_r+1). The
// field extrema are published by NewFluxSurfaceAverager and V' and the
// flux-surface averages by FluxSurfaceAverager.Rebuild, through the
// three setters below; the only values it derives itself are the
// trapped-xi0 boundary and passing fraction, from the published extrema.
type RadialGrid struct {
	r0 float64
	gr func(r float64) float64 // toroidal field function G(r)

	cell radialGridVariant
	face radialGridVariant
}

type radialGridVariant struct {
	vp            []float64 // V'
	oneOverR2     []float64 // <1/R^2>
	gradR2OverR2  []float64 // <|grad r|^2/R^2>
	bmin          []float64
	bmax          []float64
	thetaBmin     []float64
	thetaBmax     []float64
	passingFrac   []float64 // effective passing fraction
	xi0TrappedBnd []float64 // trapped-xi boundary, xi0 s.t. 1-xi0^2 = Bmin/Bmax
}

// NewRadialGrid allocates a grid of nr cell surfaces and nr+1 radial-face
// surfaces, with major radius r0 and toroidal field function gr.
func NewRadialGrid(nr int, r0 float64, gr func(float64) float64) *RadialGrid {
	return &RadialGrid{
		r0:   r0,
		gr:   gr,
		cell: newRadialGridVariant(nr),
		face: newRadialGridVariant(nr + 1),
	}
}

func newRadialGridVariant(n int) radialGridVariant {
	return radialGridVariant{
		vp:            make([]float64, n),
		oneOverR2:     make([]float64, n),
		gradR2OverR2:  make([]float64, n),
		bmin:          make([]float64, n),
		bmax:          make([]float64, n),
		thetaBmin:     make([]float64, n),
		thetaBmax:     make([]float64, n),
		passingFrac:   make([]float64, n),
		xi0TrappedBnd: make([]float64, n),
	}
}

func (g *RadialGrid) variant(kind types.FluxGridKind) (*radialGridVariant, error) {
	switch kind {
	case types.FluxGridCell:
		return &g.cell, nil
	case types.FluxGridRadialFace:
		return &g.face, nil
	default:
		return nil, types.NewError(types.UsageError, "RadialGrid", -1,
			errors.New("radial grid geometry is only tracked on the cell and radial-face grids"))
	}
}

// R0 returns the major radius used to normalise R/R0 in every
// integrand the averager evaluates.
func (g *RadialGrid) R0() float64 { return g.r0 }

// G evaluates the toroidal field function at the given minor radius.
func (g *RadialGrid) G(r float64) float64 {
	if g.gr == nil {
		return 0
	}
	return g.gr(r)
}

// Bmin, Bmax, ThetaBmin and ThetaBmax expose the cached extrema the
// averager located while scanning the reference samples; they are what
// the bounce-point root finder brackets against.
func (g *RadialGrid) Bmin(ir int, kind types.FluxGridKind) (float64, error) {
	v, err := g.variant(kind)
	if err != nil {
		return 0, err
	}
	return at(v.bmin, ir)
}

func (g *RadialGrid) Bmax(ir int, kind types.FluxGridKind) (float64, error) {
	v, err := g.variant(kind)
	if err != nil {
		return 0, err
	}
	return at(v.bmax, ir)
}

func (g *RadialGrid) ThetaBmin(ir int, kind types.FluxGridKind) (float64, error) {
	v, err := g.variant(kind)
	if err != nil {
		return 0, err
	}
	return at(v.thetaBmin, ir)
}

func (g *RadialGrid) ThetaBmax(ir int, kind types.FluxGridKind) (float64, error) {
	v, err := g.variant(kind)
	if err != nil {
		return 0, err
	}
	return at(v.thetaBmax, ir)
}

// Vp returns V' (cell grid) or V'_f (radial-face grid).
func (g *RadialGrid) Vp(ir int, kind types.FluxGridKind) (float64, error) {
	v, err := g.variant(kind)
	if err != nil {
		return 0, err
	}
	return at(v.vp, ir)
}

func (g *RadialGrid) OneOverR2(ir int, kind types.FluxGridKind) (float64, error) {
	v, err := g.variant(kind)
	if err != nil {
		return 0, err
	}
	return at(v.oneOverR2, ir)
}

func (g *RadialGrid) GradR2OverR2(ir int, kind types.FluxGridKind) (float64, error) {
	v, err := g.variant(kind)
	if err != nil {
		return 0, err
	}
	return at(v.gradR2OverR2, ir)
}

// PassingFraction returns the effective passing fraction used by
// RunawayFluid's collisionless p_c closure.
func (g *RadialGrid) PassingFraction(ir int, kind types.FluxGridKind) (float64, error) {
	v, err := g.variant(kind)
	if err != nil {
		return 0, err
	}
	return at(v.passingFrac, ir)
}

// TrappedXi0Boundary returns the xi0 at which 1-xi0^2 == Bmin/Bmax,
// the trapped/passing classification boundary.
func (g *RadialGrid) TrappedXi0Boundary(ir int, kind types.FluxGridKind) (float64, error) {
	v, err := g.variant(kind)
	if err != nil {
		return 0, err
	}
	return at(v.xi0TrappedBnd, ir)
}

func at(vals []float64, ir int) (float64, error) {
	if ir < 0 || ir >= len(vals) {
		return 0, types.NewError(types.UsageError, "RadialGrid", ir,
			errors.New("radius index out of range"))
	}
	return vals[ir], nil
}

// SetVpVol publishes V' (or V'_f) for every surface of the given grid
// variant. Called once per Rebuild by the averager.
func (g *RadialGrid) SetVpVol(kind types.FluxGridKind, vp []float64) error {
	v, err := g.variant(kind)
	if err != nil {
		return err
	}
	v.vp = vp
	return nil
}

// InitializeMagneticField publishes the per-surface field extrema and
// the angles at which they occur.
func (g *RadialGrid) InitializeMagneticField(kind types.FluxGridKind, bmin, bmax, thetaBmin, thetaBmax []float64) error {
	v, err := g.variant(kind)
	if err != nil {
		return err
	}
	if len(bmin) != len(bmax) || len(bmin) != len(thetaBmin) || len(bmin) != len(thetaBmax) {
		return types.NewError(types.UsageError, "RadialGrid.InitializeMagneticField", -1,
			errors.New("magnetic field extrema arrays must have matching length"))
	}
	for ir := range bmin {
		if bmin[ir] > bmax[ir] {
			return types.NewError(types.GeometryError, "RadialGrid.InitializeMagneticField", ir,
				errors.New("Bmin exceeds Bmax on flux surface"))
		}
	}
	v.bmin, v.bmax, v.thetaBmin, v.thetaBmax = bmin, bmax, thetaBmin, thetaBmax
	v.passingFrac = make([]float64, len(bmin))
	v.xi0TrappedBnd = make([]float64, len(bmin))
	for ir := range bmin {
		v.xi0TrappedBnd[ir], v.passingFrac[ir] = trappedBoundary(bmin[ir], bmax[ir])
	}
	return nil
}

// trappedBoundary returns the xi0 at which the trapped/passing boundary
// sits (1-xi0^2 = Bmin/Bmax) together with a crude effective passing
// fraction 1-<sqrt(1-Bmin/Bmax)> collapsed to the cylindrical limit
// when Bmin == Bmax.
func trappedBoundary(bmin, bmax float64) (xi0Boundary, passingFrac float64) {
	if bmax <= 0 || bmin >= bmax {
		return 1, 1
	}
	ratio := bmin / bmax
	xi0Boundary = sqrtClamped(1 - ratio)
	passingFrac = 1 - xi0Boundary
	return xi0Boundary, passingFrac
}

// InitializeVprime publishes <1/R^2> and <|grad r|^2/R^2> alongside V',
// matching the data the averager computes in the same flux-surface
// integration pass.
func (g *RadialGrid) InitializeVprime(kind types.FluxGridKind, vp, oneOverR2, gradR2OverR2 []float64) error {
	v, err := g.variant(kind)
	if err != nil {
		return err
	}
	v.vp = vp
	v.oneOverR2 = oneOverR2
	v.gradR2OverR2 = gradR2OverR2
	return nil
}

func sqrtClamped(x float64) float64 {
	if x < 0 {
		return 0
	}
	return math.Sqrt(x)
}
