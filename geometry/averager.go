package geometry

import (
	"errors"
	"math"

	"runawaycore/geometry/quad"
	"runawaycore/types"
)

const (
	bounceRootTol     = 1e-6
	bounceRootMaxIter = 50
	fluxIntegralEps   = 1e-4
	bounceIntegralEps = 5e-4
	bracketExpand     = 1.5
	bracketMaxExpand  = 20
)

// FluxSurfaceAverager is the central averaging engine: given reference
// samples of B, the spatial Jacobian, R/R0 and |grad r|^2 on a shared
// poloidal grid, it evaluates flux-surface averages <F> and bounce
// averages {F} of arbitrary caller-supplied integrands. It owns the
// theta-quadrature (fixed or adaptive) and the bounce-point root finder,
// and publishes V', V'_f and the field extrema to a RadialGrid on
// Rebuild.
type FluxSurfaceAverager struct {
	grid *RadialGrid

	symmetric bool
	quadRule  types.QuadRule
	thetaMax  float64

	nodes, weights []float64 // nil in adaptive mode

	b, jacobian, rOverR0, nablaR2 *FluxSurfaceQuantity
}

// NewFluxSurfaceAverager builds the averager from reference samples
// shared across every flux surface. thetaRef must be strictly
// increasing and lie in [0,pi] (symmetric) or [0,2*pi) (general). Each
// of the four quantity sample sets carries one row per cell-grid
// surface and one row per radial-face surface, indexed the same way as
// thetaBminCell/thetaBminFace/thetaBmaxCell/thetaBmaxFace are not
// supplied: the extrema are located by scanning the B samples directly,
// since no separate grid-generator component exists in this module.
func NewFluxSurfaceAverager(
	thetaRef []float64, symmetric bool, interp types.InterpMethod, quadRule types.QuadRule, nThetaInterp int,
	r0 float64, gr func(float64) float64,
	bCell, bFace, jCell, jFace, rCell, rFace, gradCell, gradFace [][]float64,
) (*FluxSurfaceAverager, error) {
	b, err := NewFluxSurfaceQuantity(thetaRef, symmetric, interp, bCell, bFace)
	if err != nil {
		return nil, err
	}
	jacobian, err := NewFluxSurfaceQuantity(thetaRef, symmetric, interp, jCell, jFace)
	if err != nil {
		return nil, err
	}
	rOverR0, err := NewFluxSurfaceQuantity(thetaRef, symmetric, interp, rCell, rFace)
	if err != nil {
		return nil, err
	}
	nablaR2, err := NewFluxSurfaceQuantity(thetaRef, symmetric, interp, gradCell, gradFace)
	if err != nil {
		return nil, err
	}

	thetaMax := 2 * math.Pi
	if symmetric {
		thetaMax = math.Pi
	}

	fsa := &FluxSurfaceAverager{
		grid:      NewRadialGrid(len(bCell), r0, gr),
		symmetric: symmetric,
		quadRule:  quadRule,
		thetaMax:  thetaMax,
		b:         b,
		jacobian:  jacobian,
		rOverR0:   rOverR0,
		nablaR2:   nablaR2,
	}

	if quadRule != types.QuadAdaptive {
		switch quadRule {
		case types.QuadLegendre:
			fsa.nodes, fsa.weights = quad.LegendreNodes(nThetaInterp, 0, thetaMax)
		case types.QuadChebyshev:
			fsa.nodes, fsa.weights = quad.ChebyshevNodes(nThetaInterp, 0, thetaMax)
		default:
			return nil, types.NewError(types.UsageError, "NewFluxSurfaceAverager", -1,
				errors.New("unsupported quadrature rule"))
		}
		if symmetric {
			for i := range fsa.weights {
				fsa.weights[i] *= 2
			}
		}
		b.InterpolateToTheta(fsa.nodes)
		jacobian.InterpolateToTheta(fsa.nodes)
		rOverR0.InterpolateToTheta(fsa.nodes)
		nablaR2.InterpolateToTheta(fsa.nodes)
	}

	bminCell, bmaxCell, thBminCell, thBmaxCell := scanExtrema(thetaRef, bCell)
	bminFace, bmaxFace, thBminFace, thBmaxFace := scanExtrema(thetaRef, bFace)
	if err := fsa.grid.InitializeMagneticField(types.FluxGridCell, bminCell, bmaxCell, thBminCell, thBmaxCell); err != nil {
		return nil, err
	}
	if err := fsa.grid.InitializeMagneticField(types.FluxGridRadialFace, bminFace, bmaxFace, thBminFace, thBmaxFace); err != nil {
		return nil, err
	}

	return fsa, nil
}

// RadialGrid returns the downstream-owned geometry cache this averager
// keeps up to date.
func (fsa *FluxSurfaceAverager) RadialGrid() *RadialGrid { return fsa.grid }

func scanExtrema(theta []float64, rows [][]float64) (bmin, bmax, thetaBmin, thetaBmax []float64) {
	bmin = make([]float64, len(rows))
	bmax = make([]float64, len(rows))
	thetaBmin = make([]float64, len(rows))
	thetaBmax = make([]float64, len(rows))
	for ir, row := range rows {
		if len(row) == 0 {
			continue
		}
		bmin[ir], bmax[ir] = row[0], row[0]
		thetaBmin[ir], thetaBmax[ir] = theta[0], theta[0]
		for k, v := range row {
			if v < bmin[ir] {
				bmin[ir], thetaBmin[ir] = v, theta[k]
			}
			if v > bmax[ir] {
				bmax[ir], thetaBmax[ir] = v, theta[k]
			}
		}
	}
	return
}

// Rebuild recomputes V', V'_f, <1/R^2> and <|grad r|^2/R^2> by
// flux-surface-integrating/averaging over the cell and radial-face
// grids and publishes the result to RadialGrid. Field extrema were
// already published at construction time, since this module folds the
// grid-generator's job of locating them into the averager itself.
func (fsa *FluxSurfaceAverager) Rebuild() error {
	if err := fsa.rebuildVariant(types.FluxGridCell); err != nil {
		return err
	}
	return fsa.rebuildVariant(types.FluxGridRadialFace)
}

// rebuildVariant integrates F=1 to get V', publishes it, then uses it
// to average F=1/R^2 and F=|grad r|^2/R^2 (R=R0*rOverR0, sampled
// alongside B and the Jacobian) and publishes all three together.
func (fsa *FluxSurfaceAverager) rebuildVariant(kind types.FluxGridKind) error {
	n := len(fsa.b.cell.values)
	if kind == types.FluxGridRadialFace {
		n = len(fsa.b.face.values)
	}
	unity := types.Const3(1)
	vp := make([]float64, n)
	for ir := range vp {
		v, err := fsa.EvaluateFluxSurfaceIntegral(ir, kind, unity)
		if err != nil {
			return err
		}
		vp[ir] = v
	}
	if err := fsa.grid.SetVpVol(kind, vp); err != nil {
		return err
	}

	r0Sq := fsa.grid.R0() * fsa.grid.R0()
	oneOverR2 := make([]float64, n)
	gradR2OverR2 := make([]float64, n)
	for ir := range vp {
		v1, err := fsa.CalculateFluxSurfaceAverage(ir, kind, func(bOverBmin, rOverR0, gradRSq float64) float64 {
			return 1 / (rOverR0 * rOverR0 * r0Sq)
		})
		if err != nil {
			return err
		}
		oneOverR2[ir] = v1
		v2, err := fsa.CalculateFluxSurfaceAverage(ir, kind, func(bOverBmin, rOverR0, gradRSq float64) float64 {
			return gradRSq / (rOverR0 * rOverR0 * r0Sq)
		})
		if err != nil {
			return err
		}
		gradR2OverR2[ir] = v2
	}
	return fsa.grid.InitializeVprime(kind, vp, oneOverR2, gradR2OverR2)
}

// EvaluateFluxSurfaceIntegral computes integral(0, thetaMax,
// 2*pi*J(theta)*F(B/Bmin, R/R0, |grad r|^2) dtheta), doubling the
// result implicitly through the pre-doubled fixed-mode weights (or the
// symmetric-fold in adaptive mode) for up-down-symmetric geometries.
func (fsa *FluxSurfaceAverager) EvaluateFluxSurfaceIntegral(ir int, kind types.FluxGridKind, f types.F3) (float64, error) {
	bmin, err := fsa.grid.Bmin(ir, kind)
	if err != nil {
		return 0, err
	}
	bmax, err := fsa.grid.Bmax(ir, kind)
	if err != nil {
		return 0, err
	}
	bminEqBmax := bmin == bmax

	if fsa.quadRule != types.QuadAdaptive {
		bData, err := fsa.b.GetData(ir, kind)
		if err != nil {
			return 0, err
		}
		jData, err := fsa.jacobian.GetData(ir, kind)
		if err != nil {
			return 0, err
		}
		rData, err := fsa.rOverR0.GetData(ir, kind)
		if err != nil {
			return 0, err
		}
		gData, err := fsa.nablaR2.GetData(ir, kind)
		if err != nil {
			return 0, err
		}
		sum := 0.0
		for it := range fsa.nodes {
			bOverBmin := 1.0
			if !bminEqBmax {
				bOverBmin = bData[it] / bmin
			}
			sum += 2 * math.Pi * fsa.weights[it] * jData[it] * f(bOverBmin, rData[it], gData[it])
		}
		return sum, nil
	}

	integrand := func(theta float64) float64 {
		bv, _ := fsa.b.EvaluateAtTheta(ir, theta, kind)
		jv, _ := fsa.jacobian.EvaluateAtTheta(ir, theta, kind)
		rv, _ := fsa.rOverR0.EvaluateAtTheta(ir, theta, kind)
		gv, _ := fsa.nablaR2.EvaluateAtTheta(ir, theta, kind)
		bOverBmin := 1.0
		if !bminEqBmax {
			bOverBmin = bv / bmin
		}
		return 2 * math.Pi * jv * f(bOverBmin, rv, gv)
	}
	result := quad.QAG(integrand, 0, fsa.thetaMax, fluxIntegralEps)
	if fsa.symmetric {
		result *= 2
	}
	return result, nil
}

// CalculateFluxSurfaceAverage returns EvaluateFluxSurfaceIntegral / V',
// collapsing to F(1,1,1) on a degenerate (V'=0) surface.
func (fsa *FluxSurfaceAverager) CalculateFluxSurfaceAverage(ir int, kind types.FluxGridKind, f types.F3) (float64, error) {
	vp, err := fsa.grid.Vp(ir, kind)
	if err != nil {
		return 0, err
	}
	if vp == 0 {
		return f(1, 1, 1), nil
	}
	integral, err := fsa.EvaluateFluxSurfaceIntegral(ir, kind, f)
	if err != nil {
		return 0, err
	}
	return integral / vp, nil
}

// metricOverP2 is the p-xi bounce metric factor (with the leading p^2
// phase-space scale already divided out), derived from the requirement
// that it collapse to 1 in the cylindrical (B=Bmin=Bmax) limit — so
// that V'_p there reduces to the ordinary flux-surface Jacobian
// integral independent of xi0 — and diverge like 1/sqrt(distance to
// turning point) at a bounce point, matching the QAWS singular weight
// spec §4.2 calls for. xi0 is assumed nonnegative; callers fold
// negative pitches before calling.
func metricOverP2(xi0, bOverBmin float64) float64 {
	if bOverBmin == 1 {
		return 1
	}
	xiSq := 1 - bOverBmin*(1-xi0*xi0)
	if xiSq <= 0 {
		return math.Inf(1)
	}
	return xi0 / (bOverBmin * math.Sqrt(xiSq))
}

// EvaluatePXiBounceIntegralAtP evaluates the bounce integral of
// F = F(xi/xi0, B/Bmin, R/R0, |grad r|^2) at momentum p and pitch xi0.
func (fsa *FluxSurfaceAverager) EvaluatePXiBounceIntegralAtP(ir int, p, xi0 float64, kind types.FluxGridKind, f types.F4) (float64, error) {
	bmin, err := fsa.grid.Bmin(ir, kind)
	if err != nil {
		return 0, err
	}
	bmax, err := fsa.grid.Bmax(ir, kind)
	if err != nil {
		return 0, err
	}
	bminOverBmax := 1.0
	if bmin != bmax {
		bminOverBmax = bmin / bmax
	}

	isTrapped := (1 - xi0*xi0) > bminOverBmax

	var fEff types.F4
	var thetaB1, thetaB2 float64
	if isTrapped {
		if xi0 < 0 {
			return 0, nil
		}
		fEff = func(xiOverXi0, bOverBmin, rOverR0, gradRSq float64) float64 {
			return f(xiOverXi0, bOverBmin, rOverR0, gradRSq) + f(-xiOverXi0, bOverBmin, rOverR0, gradRSq)
		}
		thetaB1, thetaB2, err = fsa.findBouncePoints(ir, bmin, xi0, kind)
		if err != nil {
			return 0, err
		}
		if thetaB1 == thetaB2 {
			return 0, nil
		}
	} else {
		fEff = f
		thetaB1, thetaB2 = 0, 2*math.Pi
	}

	integrand := func(theta float64) float64 {
		bv, _ := fsa.b.EvaluateAtTheta(ir, theta, kind)
		jv, _ := fsa.jacobian.EvaluateAtTheta(ir, theta, kind)
		rv, _ := fsa.rOverR0.EvaluateAtTheta(ir, theta, kind)
		gv, _ := fsa.nablaR2.EvaluateAtTheta(ir, theta, kind)

		sqrtG := metricOverP2(xi0, safeBOverBmin(bv, bmin))
		bOverBmin, xiOverXi0 := 1.0, 1.0
		if bv != bmin {
			bOverBmin = bv / bmin
			xiSq := 1 - bOverBmin*(1-xi0*xi0)
			if xiSq < 0 {
				return 0
			}
			xiOverXi0 = math.Sqrt(xiSq / (xi0 * xi0))
		}
		val := fEff(xiOverXi0, bOverBmin, rv, gv)
		return 2 * math.Pi * jv * sqrtG * val
	}

	if !isTrapped || thetaB2-thetaB1 == 2*math.Pi || fEff(0, 1, 1, 1) == 0 {
		return quad.QAG(integrand, thetaB1, thetaB2, bounceIntegralEps), nil
	}

	weighted := func(theta float64) float64 {
		return integrand(theta) * math.Sqrt((theta-thetaB1)*(thetaB2-theta))
	}
	return quad.QAWS(weighted, thetaB1, thetaB2, bounceIntegralEps, 2048), nil
}

func safeBOverBmin(b, bmin float64) float64 {
	if b == bmin {
		return 1
	}
	return b / bmin
}

// CalculatePXiBounceAverageAtP returns the bounce integral of F
// normalised by V'_p = bounce integral of unity, falling back to
// F(1,1,1,1) on the degenerate V'_p=0 surface (r=0, or xi0=0 deeply
// trapped on the low-field side).
func (fsa *FluxSurfaceAverager) CalculatePXiBounceAverageAtP(ir int, p, xi0 float64, kind types.FluxGridKind, f types.F4) (float64, error) {
	unity := types.Const4(1)
	vp, err := fsa.EvaluatePXiBounceIntegralAtP(ir, p, xi0, kind, unity)
	if err != nil {
		return 0, err
	}
	if vp == 0 {
		return f(1, 1, 1, 1), nil
	}
	integral, err := fsa.EvaluatePXiBounceIntegralAtP(ir, p, xi0, kind, f)
	if err != nil {
		return 0, err
	}
	return integral / vp, nil
}

// findBouncePoints locates theta_b1 < theta_b2, the two poloidal angles
// at which xi(theta)^2 = 1-(1-xi0^2)*B(theta)/Bmin crosses zero,
// bracketing theta_b2 in [theta_Bmin, theta_Bmax] and theta_b1 in
// [theta_Bmax-2*pi, theta_Bmin] per spec §4.2.a.
func (fsa *FluxSurfaceAverager) findBouncePoints(ir int, bmin, xi0 float64, kind types.FluxGridKind) (theta1, theta2 float64, err error) {
	thetaBmin, err := fsa.grid.ThetaBmin(ir, kind)
	if err != nil {
		return 0, 0, err
	}
	thetaBmax, err := fsa.grid.ThetaBmax(ir, kind)
	if err != nil {
		return 0, 0, err
	}

	xiSq := func(theta float64) float64 {
		bv, _ := fsa.b.EvaluateAtTheta(ir, theta, kind)
		return 1 - (1-xi0*xi0)*bv/bmin
	}

	theta2, err = fsa.resolveRoot(xiSq, thetaBmin, thetaBmax, ir, xi0)
	if err != nil {
		return 0, 0, err
	}
	theta1, err = fsa.resolveRoot(xiSq, thetaBmax-2*math.Pi, thetaBmin, ir, xi0)
	if err != nil {
		return 0, 0, err
	}
	return theta1, theta2, nil
}

// resolveRoot brackets a single sign change of g on [lo,hi], shrinks the
// bracket with Brent to the bounce-point tolerance and iteration cap,
// then — per spec §4.2.a step 3 — picks whichever of the two tightened
// endpoints has g>=0, since the bracketing root finder only guarantees
// convergence to within tol, not which side of the crossing the
// returned estimate lands on.
func (fsa *FluxSurfaceAverager) resolveRoot(g func(float64) float64, lo, hi float64, ir int, xi0 float64) (float64, error) {
	glo, ghi := g(lo), g(hi)
	if glo*ghi > 0 {
		return 0, types.NewPitchError(types.GeometryError, "FluxSurfaceAverager.findBouncePoints", ir, 0, xi0,
			errors.New("bounce-point bracket does not contain a sign change"))
	}
	lo, hi, err := quad.BrentShrinkBracket(g, lo, hi, glo, ghi, bounceRootTol, bounceRootMaxIter)
	if err != nil {
		return 0, types.NewPitchError(types.ConvergenceError, "FluxSurfaceAverager.findBouncePoints", ir, 0, xi0, err)
	}
	if g(lo) >= 0 {
		return lo, nil
	}
	if g(hi) >= 0 {
		return hi, nil
	}
	return 0, types.NewPitchError(types.GeometryError, "FluxSurfaceAverager.findBouncePoints", ir, 0, xi0,
		errors.New("unable to find valid bounce-point root"))
}
