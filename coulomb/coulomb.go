// Package coulomb evaluates the radius-dependent Coulomb logarithm
// used by every collision frequency: a thermal value for low-energy
// electrons and an energy-dependent value that blends into the
// relativistic asymptote as the electron momentum grows, following
// the Hesslow prescription referenced by the collision-frequency
// closures built on top of it.
package coulomb

import (
	"errors"
	"math"

	"runawaycore/types"
)

var errRange = errors.New("radius index out of range")

// CoulombLogarithm caches, per radius, the thermal and relativistic
// (free-electron) logarithms together with the thermal momentum scale
// used to blend between them at arbitrary p.
type CoulombLogarithm struct {
	mode     types.LnLambdaType
	unknowns types.UnknownHandler

	lnLambdaT []float64 // thermal, per radius
	lnLambdaC []float64 // relativistic asymptote, per radius
	pThermal  []float64 // thermal momentum scale (units of m_e*c), per radius
}

// NewCoulombLogarithm builds a Coulomb logarithm evaluator over nr
// radial points in the given mode, reading densities and temperatures
// from unknowns on each RebuildRadialTerms.
func NewCoulombLogarithm(nr int, mode types.LnLambdaType, unknowns types.UnknownHandler) *CoulombLogarithm {
	return &CoulombLogarithm{
		mode:      mode,
		unknowns:  unknowns,
		lnLambdaT: make([]float64, nr),
		lnLambdaC: make([]float64, nr),
		pThermal:  make([]float64, nr),
	}
}

// GridRebuilt reallocates the per-radius caches for nr radii; they
// hold zeros until the next RebuildRadialTerms.
func (cl *CoulombLogarithm) GridRebuilt(nr int) {
	cl.lnLambdaT = make([]float64, nr)
	cl.lnLambdaC = make([]float64, nr)
	cl.pThermal = make([]float64, nr)
}

// RebuildRadialTerms recomputes lnLambdaT, lnLambdaC and the thermal
// momentum scale from the cold density and temperature. It should be
// called whenever n_cold or T_cold has changed, per spec §3's
// invalidation rule for radius-dependent caches.
func (cl *CoulombLogarithm) RebuildRadialTerms() {
	ncold := cl.unknowns.ColdElectronDensity()
	tcold := cl.unknowns.ColdElectronTemperature()
	for ir := range cl.lnLambdaT {
		n, t := ncold[ir], tcold[ir]
		cl.lnLambdaT[ir] = thermalLogarithm(n, t)
		cl.lnLambdaC[ir] = relativisticLogarithm(n, t)
		cl.pThermal[ir] = thermalMomentum(t)
	}
}

// thermalLogarithm is the classical NRL-formulary electron-electron
// Coulomb logarithm, n in m^-3 and T in eV.
func thermalLogarithm(n, tEV float64) float64 {
	if n <= 0 || tEV <= 0 {
		return 0
	}
	return 14.9 + 1.5*math.Log(tEV/1000) - 0.5*math.Log(n/1e20)
}

// relativisticLogarithm is the free/relativistic-electron asymptote:
// weaker temperature dependence than the thermal form, consistent with
// the Hesslow closure's two reference values.
func relativisticLogarithm(n, tEV float64) float64 {
	if n <= 0 || tEV <= 0 {
		return 0
	}
	return 14.9 + 0.5*math.Log(tEV/1000) - 0.5*math.Log(n/1e20)
}

// thermalMomentum is p_Te = sqrt(2*T_cold/m_e*c^2), the non-relativistic
// thermal momentum in units of m_e*c, the scale over which lnLambda
// transitions from its thermal to its relativistic value.
func thermalMomentum(tEV float64) float64 {
	if tEV <= 0 {
		return 0
	}
	return math.Sqrt(2 * tEV / types.ElectronRestEnergyEV)
}

// evaluateLnLambdaC returns the relativistic (free-electron) logarithm
// at radius ir.
func (cl *CoulombLogarithm) evaluateLnLambdaC(ir int) (float64, error) {
	if ir < 0 || ir >= len(cl.lnLambdaC) {
		return 0, types.NewError(types.UsageError, "CoulombLogarithm.evaluateLnLambdaC", ir,
			errRange)
	}
	return cl.lnLambdaC[ir], nil
}

// evaluateLnLambdaT returns the thermal logarithm at radius ir.
func (cl *CoulombLogarithm) evaluateLnLambdaT(ir int) (float64, error) {
	if ir < 0 || ir >= len(cl.lnLambdaT) {
		return 0, types.NewError(types.UsageError, "CoulombLogarithm.evaluateLnLambdaT", ir,
			errRange)
	}
	return cl.lnLambdaT[ir], nil
}

// EvaluateLnLambdaC exposes the relativistic asymptote at radius ir to
// callers outside this package (RunawayFluid's E_c^free/E_c^tot/tau_ee
// quantities).
func (cl *CoulombLogarithm) EvaluateLnLambdaC(ir int) (float64, error) {
	return cl.evaluateLnLambdaC(ir)
}

// EvaluateLnLambdaT exposes the thermal logarithm at radius ir to
// callers outside this package (RunawayFluid's E_Dreicer/tau_ee^th).
func (cl *CoulombLogarithm) EvaluateLnLambdaT(ir int) (float64, error) {
	return cl.evaluateLnLambdaT(ir)
}

// EvaluateAtP returns the logarithm at momentum p. In thermal mode it
// is constant (= lnLambdaT); in energy-dependent mode it blends
// smoothly from lnLambdaT at p=0 towards lnLambdaC as p grows past the
// thermal momentum scale, reproducing the two exact asymptotes without
// ever overshooting either.
func (cl *CoulombLogarithm) EvaluateAtP(ir int, p float64) (float64, error) {
	if ir < 0 || ir >= len(cl.lnLambdaT) {
		return 0, types.NewError(types.UsageError, "CoulombLogarithm.EvaluateAtP", ir,
			errRange)
	}
	if cl.mode == types.LnLambdaThermal {
		return cl.lnLambdaT[ir], nil
	}
	pT := cl.pThermal[ir]
	if pT <= 0 {
		return cl.lnLambdaC[ir], nil
	}
	weight := p * p / (p*p + pT*pT)
	return cl.lnLambdaT[ir] + weight*(cl.lnLambdaC[ir]-cl.lnLambdaT[ir]), nil
}
