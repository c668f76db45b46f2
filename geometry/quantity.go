package geometry

import (
	"errors"
	"math"
	"sort"

	"runawaycore/types"
)

// FluxSurfaceQuantity is one scalar quantity (B, J, R/R0, |grad r|^2,
// ...) sampled on the shared reference theta grid for every flux
// surface, on both the cell-centre and radial-face grids. It owns its
// interpolation policy and, once InterpolateToTheta has been called,
// a pre-evaluated copy of itself at the fixed quadrature nodes.
type FluxSurfaceQuantity struct {
	theta     []float64 // shared reference grid, strictly increasing
	symmetric bool      // theta domain is [0,pi] rather than [0,2pi)
	interp    types.InterpMethod

	cell variantSamples
	face variantSamples
}

type variantSamples struct {
	values     [][]float64 // [ir][k], k over theta
	nodeValues [][]float64 // [ir][k], k over fixed nodes; nil outside fixed mode
}

// NewFluxSurfaceQuantity builds a quantity from per-surface samples on
// the shared reference theta grid. cellValues and faceValues must each
// have one row per flux surface (n_r and n_r+1 respectively) of the
// same length as theta.
func NewFluxSurfaceQuantity(theta []float64, symmetric bool, interp types.InterpMethod, cellValues, faceValues [][]float64) (*FluxSurfaceQuantity, error) {
	for i := 1; i < len(theta); i++ {
		if theta[i] <= theta[i-1] {
			return nil, types.NewError(types.UsageError, "NewFluxSurfaceQuantity", -1,
				errors.New("reference theta grid must be strictly increasing"))
		}
	}
	for _, row := range cellValues {
		if len(row) != len(theta) {
			return nil, types.NewError(types.UsageError, "NewFluxSurfaceQuantity", -1,
				errors.New("cell sample row length does not match theta grid"))
		}
	}
	for _, row := range faceValues {
		if len(row) != len(theta) {
			return nil, types.NewError(types.UsageError, "NewFluxSurfaceQuantity", -1,
				errors.New("radial-face sample row length does not match theta grid"))
		}
	}
	return &FluxSurfaceQuantity{
		theta:     theta,
		symmetric: symmetric,
		interp:    interp,
		cell:      variantSamples{values: cellValues},
		face:      variantSamples{values: faceValues},
	}, nil
}

func (q *FluxSurfaceQuantity) thetaMax() float64 {
	if q.symmetric {
		return math.Pi
	}
	return 2 * math.Pi
}

// wrapTheta maps an arbitrary theta into the quantity's native domain:
// first into [0, 2*pi) per spec §4.1, then — for up-down-symmetric
// geometries — folded into [0, pi] using B(theta) = B(-theta).
func (q *FluxSurfaceQuantity) wrapTheta(theta float64) float64 {
	theta = math.Mod(theta, 2*math.Pi)
	if theta < 0 {
		theta += 2 * math.Pi
	}
	if q.symmetric && theta > math.Pi {
		theta = 2*math.Pi - theta
	}
	return theta
}

func (q *FluxSurfaceQuantity) variant(kind types.FluxGridKind) (*variantSamples, error) {
	switch kind {
	case types.FluxGridCell:
		return &q.cell, nil
	case types.FluxGridRadialFace:
		return &q.face, nil
	default:
		return nil, types.NewError(types.UsageError, "FluxSurfaceQuantity", -1,
			errors.New("flux surface quantities are only sampled on the cell and radial-face grids"))
	}
}

// EvaluateAtTheta interpolates the stored samples for flux surface ir
// at the given theta, wrapping theta into the quantity's domain first.
func (q *FluxSurfaceQuantity) EvaluateAtTheta(ir int, theta float64, kind types.FluxGridKind) (float64, error) {
	v, err := q.variant(kind)
	if err != nil {
		return 0, err
	}
	if ir < 0 || ir >= len(v.values) {
		return 0, types.NewError(types.UsageError, "FluxSurfaceQuantity.EvaluateAtTheta", ir,
			errors.New("radius index out of range"))
	}
	wrapped := q.wrapTheta(theta)
	return interpolate(q.theta, v.values[ir], wrapped, q.interp), nil
}

// InterpolateToTheta pre-evaluates every flux surface at the given
// fixed node set (shared by cell and radial-face variants because
// both live on the same poloidal domain) and retains the result for
// GetData.
func (q *FluxSurfaceQuantity) InterpolateToTheta(thetaNodes []float64) {
	q.cell.nodeValues = evaluateRows(q.theta, q.cell.values, thetaNodes, q.interp, q.wrapTheta)
	q.face.nodeValues = evaluateRows(q.theta, q.face.values, thetaNodes, q.interp, q.wrapTheta)
}

func evaluateRows(theta []float64, rows [][]float64, nodes []float64, interp types.InterpMethod, wrap func(float64) float64) [][]float64 {
	out := make([][]float64, len(rows))
	for ir, row := range rows {
		vals := make([]float64, len(nodes))
		for k, th := range nodes {
			vals[k] = interpolate(theta, row, wrap(th), interp)
		}
		out[ir] = vals
	}
	return out
}

// GetData returns the pre-evaluated node values for flux surface ir.
// Valid only after InterpolateToTheta has been called (fixed-quadrature
// mode); calling it in adaptive mode is a usage_error per spec §4.1.
func (q *FluxSurfaceQuantity) GetData(ir int, kind types.FluxGridKind) ([]float64, error) {
	v, err := q.variant(kind)
	if err != nil {
		return nil, err
	}
	if v.nodeValues == nil {
		return nil, types.NewError(types.UsageError, "FluxSurfaceQuantity.GetData", ir,
			errors.New("GetData is only valid in fixed-quadrature mode; call InterpolateToTheta first"))
	}
	if ir < 0 || ir >= len(v.nodeValues) {
		return nil, types.NewError(types.UsageError, "FluxSurfaceQuantity.GetData", ir,
			errors.New("radius index out of range"))
	}
	return v.nodeValues[ir], nil
}

// interpolate dispatches to the linear or Steffen policy. Steffen
// falls back to linear when there are 2 or fewer samples, per spec
// §4.1.
func interpolate(x, y []float64, query float64, method types.InterpMethod) float64 {
	if len(x) <= 2 || method == types.InterpLinear {
		return linearInterp(x, y, query)
	}
	return steffenInterp(x, y, query)
}

// bracket returns the index i such that x[i] <= query <= x[i+1],
// clamped to the domain endpoints.
func bracket(x []float64, query float64) int {
	if query <= x[0] {
		return 0
	}
	if query >= x[len(x)-1] {
		return len(x) - 2
	}
	i := sort.SearchFloat64s(x, query)
	if i == 0 {
		return 0
	}
	if x[i] == query {
		return i
	}
	return i - 1
}

func linearInterp(x, y []float64, query float64) float64 {
	i := bracket(x, query)
	x0, x1 := x[i], x[i+1]
	y0, y1 := y[i], y[i+1]
	if x1 == x0 {
		return y0
	}
	t := (query - x0) / (x1 - x0)
	return y0 + t*(y1-y0)
}

// steffenInterp implements Steffen's 1990 monotone cubic Hermite
// interpolation: a local scheme (no global tridiagonal solve) that
// never overshoots the data, which matters because B/J/R/|grad r|^2
// must stay within their sampled bounds for the averager's singular-
// integrand clamps to hold exactly at the endpoints.
func steffenInterp(x, y []float64, query float64) float64 {
	n := len(x)
	i := bracket(x, query)

	slope := func(j int) float64 {
		if j < 0 || j >= n-1 {
			return 0
		}
		return (y[j+1] - y[j]) / (x[j+1] - x[j])
	}
	h := func(j int) float64 {
		if j < 0 || j >= n-1 {
			return 0
		}
		return x[j+1] - x[j]
	}

	steffenSlope := func(j int) float64 {
		sPrev, sNext := slope(j-1), slope(j)
		if j == 0 {
			return sNext
		}
		if j == n-1 {
			return sPrev
		}
		if sPrev*sNext <= 0 {
			return 0
		}
		hPrev, hNext := h(j-1), h(j)
		p := (sPrev*hNext + sNext*hPrev) / (hPrev + hNext)
		bound := 2 * math.Min(math.Abs(sPrev), math.Abs(sNext))
		m := p
		if math.Abs(m) > bound {
			m = math.Copysign(bound, sNext)
		}
		return m
	}

	x0, x1 := x[i], x[i+1]
	y0, y1 := y[i], y[i+1]
	m0, m1 := steffenSlope(i), steffenSlope(i+1)
	hh := x1 - x0
	if hh == 0 {
		return y0
	}
	t := (query - x0) / hh
	t2 := t * t
	t3 := t2 * t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	return h00*y0 + h10*hh*m0 + h01*y1 + h11*hh*m1
}
