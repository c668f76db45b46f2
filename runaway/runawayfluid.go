// Package runaway derives the global per-radius runaway thresholds and
// growth rates (RunawayFluid.cpp): the effective critical electric
// field E_ceff, the critical runaway momentum p_c, and the
// avalanche/tritium/Compton production rates built on top of them.
// Every public method reads the collision frequencies and geometry
// from the collision and geometry packages' types; it owns no plasma
// state of its own beyond its per-radius result cache.
package runaway

import (
	"fmt"
	"math"

	"runawaycore/collision"
	"runawaycore/dreicer"
	"runawaycore/geometry"
	"runawaycore/geometry/quad"
	"runawaycore/types"
)

const (
	effCritFieldTol    = 3e-3
	effCritFieldIter   = 30
	pUpperThreshold    = 1000.0 // momenta above this are not physically relevant
	bracketExpandField = 1.4
	bracketMaxExpand   = 30
)

// tritiumHalfLife is 12.32 years in seconds, tritiumDecayEnergyEV is
// the beta-decay endpoint energy of tritium (both from the original
// model's hard-coded constants).
const (
	tritiumHalfLife      = 3.888e8
	tritiumDecayEnergyEV = 18.6e3
)

// comptonPhotonFluxDensity is the ITER-scenario hard-coded photon flux
// used by evaluateComptonPhotonFluxSpectrum; spec.md §9 keeps it as a
// preserved default rather than deriving it.
const comptonPhotonFluxDensity = 1e18 // 1/m^2/s

// constPreFactor mirrors collision's dimensional prefactor; RunawayFluid
// needs it directly for the avalanche rate and the nuHat rescalings.
const constPreFactor = 4 * math.Pi * types.ClassicalElectronRadius * types.ClassicalElectronRadius * types.SpeedOfLight

// Result holds one radius's worth of derived thresholds and rates,
// spec.md §4.5's "cached per-radius results".
type Result struct {
	EcFree, EcTot                      float64
	EDreicer                           float64
	TauEERel, TauEETh                  float64
	EffectiveCriticalField             float64
	CriticalMomentum                   float64 // +Inf when E <= E_ceff
	CriticalMomentumInvSq              float64 // sign-preserving; may be negative
	PcCompleteScreening, PcNoScreening float64
	AvalancheGrowthRate                float64
	TritiumRate                        float64
	ComptonRate                        float64

	// DreicerConnorHastie and DreicerNeuralNetwork are the two
	// independent Dreicer-rate models (scenario S5 requires both be
	// available for comparison). DreicerNeuralNetwork is left at zero
	// when the local temperature falls outside the network's trained
	// range (dreicer.IsApplicable).
	DreicerConnorHastie  float64
	DreicerNeuralNetwork float64
}

// RunawayFluid derives E_ceff, p_c and the growth rates for every
// radius, caching results and recomputing only when the unknowns or
// grid have changed (parametersHaveChanged).
type RunawayFluid struct {
	nr   int
	grid *geometry.RadialGrid

	unknowns types.UnknownHandler
	ions     types.IonHandler

	lnLambdaEE collisionCoulomb
	nuS        *collision.SlowingDown
	nuD        *collision.PitchScatter

	pstarMode types.PStarMode

	results []Result
}

// collisionCoulomb is the narrow slice of CoulombLogarithm this
// package needs (lnLambdaC, lnLambdaT), kept as an interface so
// runaway does not need to import the coulomb package's concrete type
// beyond what it actually calls.
type collisionCoulomb interface {
	EvaluateLnLambdaC(ir int) (float64, error)
	EvaluateLnLambdaT(ir int) (float64, error)
}

// New builds a RunawayFluid over nr radii.
func New(nr int, grid *geometry.RadialGrid, unknowns types.UnknownHandler, ions types.IonHandler,
	lnLambdaEE collisionCoulomb, nuS *collision.SlowingDown, nuD *collision.PitchScatter, pstarMode types.PStarMode) *RunawayFluid {
	return &RunawayFluid{
		nr:         nr,
		grid:       grid,
		unknowns:   unknowns,
		ions:       ions,
		lnLambdaEE: lnLambdaEE,
		nuS:        nuS,
		nuD:        nuD,
		pstarMode:  pstarMode,
		results:    make([]Result, nr),
	}
}

// parametersHaveChanged reports whether any unknown feeding the
// thresholds changed since the last Rebuild, or the grid was rebuilt.
func (rf *RunawayFluid) parametersHaveChanged() bool {
	return rf.unknowns.HasChanged("n_cold") || rf.unknowns.HasChanged("T_cold") ||
		rf.unknowns.HasChanged("n_i") || rf.unknowns.HasChanged("E_field") || rf.unknowns.GridRebuilt()
}

// Rebuild recomputes every derived quantity at every radius, if and
// only if parametersHaveChanged reports staleness.
func (rf *RunawayFluid) Rebuild() error {
	if !rf.parametersHaveChanged() {
		return nil
	}
	if err := rf.calculateDerivedQuantities(); err != nil {
		return err
	}
	if err := rf.calculateEffectiveCriticalField(); err != nil {
		return err
	}
	if err := rf.calculateCriticalMomentum(); err != nil {
		return err
	}
	rf.calculateGrowthRates()
	rf.calculateDreicerRates()
	return nil
}

// Result returns the cached per-radius result.
func (rf *RunawayFluid) Result(ir int) (Result, error) {
	if ir < 0 || ir >= rf.nr {
		return Result{}, types.NewError(types.UsageError, "RunawayFluid.Result", ir, fmt.Errorf("radius out of range"))
	}
	return rf.results[ir], nil
}

// calculateDerivedQuantities fills E_c^free, E_c^tot, E_Dreicer,
// tau_ee^rel and tau_ee^th from the Coulomb logarithms and densities.
func (rf *RunawayFluid) calculateDerivedQuantities() error {
	ncold := rf.unknowns.ColdElectronDensity()
	ntot := rf.unknowns.TotalElectronDensity()
	tcold := rf.unknowns.ColdElectronTemperature()
	mec := types.ElectronMass * types.SpeedOfLight / types.ElementaryCharge
	for ir := 0; ir < rf.nr; ir++ {
		lnLc, err := rf.lnLambdaEE.EvaluateLnLambdaC(ir)
		if err != nil {
			return err
		}
		lnLt, err := rf.lnLambdaEE.EvaluateLnLambdaT(ir)
		if err != nil {
			return err
		}
		r := &rf.results[ir]
		r.EcFree = lnLc * ncold[ir] * constPreFactor * mec
		r.EcTot = lnLc * ntot[ir] * constPreFactor * mec
		r.EDreicer = lnLt * ncold[ir] * constPreFactor * mec * (types.ElectronRestEnergyEV / tcold[ir])
		r.TauEERel = 1 / (lnLc * ncold[ir] * constPreFactor)
		r.TauEETh = 1 / (lnLt * ncold[ir] * constPreFactor) * math.Pow(2*tcold[ir]/types.ElectronRestEnergyEV, 1.5)
	}
	return nil
}

// uAtP is the pitch-averaged friction function U(p;E): the electric
// field's acceleration along p minus the collisional drag, averaged
// over an analytic passing-pitch distribution via the effective
// passing fraction (spec.md §9's closure re-architecture — no UFunc
// source file was available, so this is reconstructed from the same
// nuS/nuD-hat quantities CalculateCriticalMomentum already needs: the
// field term is weighted by the passing fraction since only passing
// electrons see the full parallel acceleration, and the pitch-angle
// scattering term nuD feeds back as an orbit-averaged drag reducing
// the net force, the standard qualitative shape of the pitch-averaged
// momentum advection coefficient).
func uAtP(ehat, p, fpass, nuSHat, nuDHat float64) float64 {
	if p <= 0 {
		return 0
	}
	gamma := math.Sqrt(1 + p*p)
	nuS := nuSHat / (p * p * p) * gamma * gamma
	nuD := nuDHat / (p * p * p) * gamma
	return ehat*fpass*p/gamma - nuS - nuD*fpass/p
}

// EvaluateU exposes the pitch-averaged friction coefficient U(p;E) for
// diagnostic plotting and standalone benchmarking, mirroring the
// original model's public testEvalU entry point.
func EvaluateU(ehat, p, fpass, nuSHat, nuDHat float64) float64 {
	return uAtP(ehat, p, fpass, nuSHat, nuDHat)
}

// calculateEffectiveCriticalField implements the algorithm in spec.md
// §4.5: bracket E in [0.9*Ec_tot, 1.5*Ec_tot], expand until max_p U
// changes sign, then Brent root-find on max_p U.
func (rf *RunawayFluid) calculateEffectiveCriticalField() error {
	for ir := 0; ir < rf.nr; ir++ {
		r := &rf.results[ir]
		fpass, err := rf.effectivePassingFraction(ir)
		if err != nil {
			return err
		}
		nuSHat, nuDHat, err := rf.nuHatAt(ir, 1.0)
		if err != nil {
			return err
		}

		maxU := func(ehat float64) float64 {
			return rf.maxUOverP(ehat, fpass, nuSHat, nuDHat)
		}

		lo, hi := 0.9*r.EcTot, 1.5*r.EcTot
		lo, hi, flo, fhi, err := quad.ExpandBracket(maxU, lo, hi, bracketExpandField, bracketMaxExpand)
		if err != nil {
			return types.NewError(types.ConvergenceError, "RunawayFluid.calculateEffectiveCriticalField", ir, err)
		}
		root, err := quad.BrentRootFromValues(maxU, lo, hi, flo, fhi, effCritFieldTol, effCritFieldIter)
		if err != nil {
			return types.NewError(types.ConvergenceError, "RunawayFluid.calculateEffectiveCriticalField", ir, err)
		}
		r.EffectiveCriticalField = root
	}
	return nil
}

// maxUOverP returns the maximum over p in (0, pUpperThreshold] of
// U(p;E) (via a minimiser on -U), falling back to U(pUpperThreshold)
// when no interior maximum exists below the cap.
func (rf *RunawayFluid) maxUOverP(ehat, fpass, nuSHat, nuDHat float64) float64 {
	negU := func(p float64) float64 { return -uAtP(ehat, p, fpass, nuSHat, nuDHat) }
	pLo, pUp := findPExInterval(negU, pUpperThreshold)
	if pUp > pUpperThreshold {
		return uAtP(ehat, pUpperThreshold, fpass, nuSHat, nuDHat)
	}
	_, fx, err := quad.BrentMinimize(negU, pLo, pUp, 5e-2, effCritFieldIter)
	if err != nil {
		return uAtP(ehat, pUpperThreshold, fpass, nuSHat, nuDHat)
	}
	return -fx
}

// findPExInterval mirrors RunawayFluid::FindPExInterval: it expands a
// seed bracket [1,100] until it contains an interior minimum of negU,
// capped by pThreshold. The interior golden-section guess it tracks
// while expanding is only needed to decide which side to widen next;
// BrentMinimize derives its own starting point from the returned
// bracket, so only the bracket itself is returned.
func findPExInterval(negU func(float64) float64, pThreshold float64) (lo, hi float64) {
	guess := 10.0
	lo, hi = 1, 100
	fLo, fGuess, fHi := negU(lo), negU(guess), negU(hi)
	if fGuess < fHi && fGuess < fLo {
		return lo, hi
	}
	if fGuess > fLo {
		for fGuess > fLo {
			hi = guess
			guess = lo
			lo /= 5
			fGuess = fLo
			fLo = negU(lo)
		}
	} else {
		for fGuess > fHi && hi < pThreshold {
			lo = guess
			guess = hi
			hi *= 5
			fGuess = fHi
			fHi = negU(hi)
		}
	}
	return lo, hi
}

// effectivePassingFraction returns 1 in collisional pstar mode (every
// electron is treated as passing) and the geometric effective passing
// fraction in collisionless mode.
func (rf *RunawayFluid) effectivePassingFraction(ir int) (float64, error) {
	if rf.pstarMode == types.PStarCollisional {
		return 1, nil
	}
	f, err := rf.grid.PassingFraction(ir, types.FluxGridCell)
	if err != nil {
		return 0, types.NewError(types.GeometryError, "RunawayFluid.effectivePassingFraction", ir, err)
	}
	return f, nil
}

// nuHatAt returns nuS*p^3/gamma^2 and nuD*p^3/gamma at momentum p,
// which are constant under the collfreq_type change for an ideal
// plasma (only the Coulomb logarithm carries energy dependence) — the
// "Hat" quantities spec.md's pc bracket and pStarFunction are built on.
func (rf *RunawayFluid) nuHatAt(ir int, p float64) (nuSHat, nuDHat float64, err error) {
	nuS, err := rf.nuS.EvaluateAtP(ir, p)
	if err != nil {
		return 0, 0, err
	}
	nuD, err := rf.nuD.EvaluateAtP(ir, p)
	if err != nil {
		return 0, 0, err
	}
	return hatify(p, nuS, nuD)
}

// hatify rescales a raw (nuS, nuD) pair by p^3/gamma^2 and p^3/gamma
// respectively, the rescaling nuHatAt and nuHatAtScreening share.
func hatify(p, nuS, nuD float64) (nuSHat, nuDHat float64, err error) {
	gamma := math.Sqrt(1 + p*p)
	nuSHat = nuS * p * p * p / (gamma * gamma)
	nuDHat = nuD * p * p * p / gamma
	return nuSHat, nuDHat, nil
}

// pStarFunction is the root function whose zero is the critical
// runaway momentum: sqrt(sqrt(nuSHat(p)*nuDHat(p)))/constTerm - p.
func (rf *RunawayFluid) pStarFunction(ir int, constTerm float64) func(float64) float64 {
	return func(p float64) float64 {
		nuSHat, nuDHat, err := rf.nuHatAt(ir, p)
		if err != nil {
			return math.NaN()
		}
		return math.Sqrt(math.Sqrt(nuSHat*nuDHat))/constTerm - p
	}
}

// calculateCriticalMomentum implements spec.md §4.5's p_c algorithm.
func (rf *RunawayFluid) calculateCriticalMomentum() error {
	eterm := rf.unknowns.ElectricField()
	for ir := 0; ir < rf.nr; ir++ {
		r := &rf.results[ir]
		fpass, err := rf.effectivePassingFraction(ir)
		if err != nil {
			return err
		}

		e := eterm[ir]
		eEff := e
		if e <= r.EffectiveCriticalField {
			eEff = r.EffectiveCriticalField
		}
		eHat := types.ElementaryCharge * eEff / (types.ElectronMass * types.SpeedOfLight)
		constTerm := math.Sqrt(math.Sqrt(eHat * eHat * fpass))

		// Bracket p_c using the completely-screened and non-screened
		// analytical limits of nuHat at p=1, independent of p.
		nuSHatCS, nuDHatCS, err := rf.nuHatAtScreening(ir, types.CollFreqCompletelyScreened)
		if err != nil {
			return err
		}
		nuSHatNS, nuDHatNS, err := rf.nuHatAtScreening(ir, types.CollFreqNonScreened)
		if err != nil {
			return err
		}
		r.PcCompleteScreening = math.Sqrt(math.Sqrt(nuSHatCS*nuDHatCS) / eHat)
		r.PcNoScreening = math.Sqrt(math.Sqrt(nuSHatNS*nuDHatNS) / eHat)

		pLo, pUp := r.PcCompleteScreening, r.PcNoScreening
		if pLo > pUp {
			pLo, pUp = pUp, pLo
		}
		if pLo == pUp {
			// The two limits coincide when no ion density is present;
			// widen the seed so ExpandBracket has a nonzero width.
			pLo /= bracketExpandField
			pUp *= bracketExpandField
		}
		f := rf.pStarFunction(ir, constTerm)
		pLo, pUp, flo, fhi, err := quad.ExpandBracket(f, pLo, pUp, bracketExpandField, bracketMaxExpand)
		if err != nil {
			return types.NewError(types.ConvergenceError, "RunawayFluid.calculateCriticalMomentum", ir, err)
		}
		pStar, err := quad.BrentRootFromValues(f, pLo, pUp, flo, fhi, effCritFieldTol, effCritFieldIter)
		if err != nil {
			return types.NewError(types.ConvergenceError, "RunawayFluid.calculateCriticalMomentum", ir, err)
		}

		nuSHat, nuDHat, err := rf.nuHatAt(ir, pStar)
		if err != nil {
			return err
		}
		eMinusEceff := types.ElementaryCharge * (e - r.EffectiveCriticalField) / (types.ElectronMass * types.SpeedOfLight)
		nuSnuDTerm := nuSHat * (nuDHat + 4*nuSHat)
		r.CriticalMomentumInvSq = eMinusEceff * math.Sqrt(fpass) / math.Sqrt(nuSnuDTerm)

		if eMinusEceff <= 0 {
			r.CriticalMomentum = math.Inf(1)
		} else {
			r.CriticalMomentum = 1 / math.Sqrt(r.CriticalMomentumInvSq)
		}
	}
	return nil
}

// nuHatAtScreening evaluates nuHat at p=1 under a forced screening
// type, used only to seed the p_c bracket (spec.md §4.5: "Bracket from
// the completely-screened and non-screened analytical limits"). It
// forces nuS/nuD's Type setting for this one evaluation rather than
// reusing the caller's configured collfreq_type, so the two calls
// differ whenever ion density is present; with no ion density they
// give the same value and calculateCriticalMomentum widens the seed.
func (rf *RunawayFluid) nuHatAtScreening(ir int, screening types.CollFreqType) (nuSHat, nuDHat float64, err error) {
	const p = 1.0
	nuS, err := rf.nuS.EvaluateAtPWithType(ir, p, screening)
	if err != nil {
		return 0, 0, err
	}
	nuD, err := rf.nuD.EvaluateAtPWithType(ir, p, screening)
	if err != nil {
		return 0, 0, err
	}
	return hatify(p, nuS, nuD)
}

// calculateGrowthRates fills the avalanche, tritium and Compton rates
// from the critical-momentum result.
func (rf *RunawayFluid) calculateGrowthRates() {
	ntot := rf.unknowns.TotalElectronDensity()
	for ir := 0; ir < rf.nr; ir++ {
		r := &rf.results[ir]
		r.AvalancheGrowthRate = ntot[ir] * constPreFactor * r.CriticalMomentumInvSq
		r.TritiumRate = evaluateTritiumRate(r.CriticalMomentum)
		rate, err := evaluateComptonRate(r.CriticalMomentum)
		if err != nil {
			rate = 0
		}
		r.ComptonRate = ntot[ir] * rate
	}
}

// calculateDreicerRates fills both Dreicer-rate models, reading the ion
// handler's per-radius charge-state moments directly (spec.md scenario
// S5: both models ship side by side for comparison).
func (rf *RunawayFluid) calculateDreicerRates() {
	eterm := rf.unknowns.ElectricField()
	ntot := rf.unknowns.TotalElectronDensity()
	tcold := rf.unknowns.ColdElectronTemperature()
	for ir := 0; ir < rf.nr; ir++ {
		r := &rf.results[ir]
		in := dreicer.Inputs{
			Efield:   eterm[ir],
			NFree:    rf.ions.FreeElectronDensity(ir),
			NTot:     ntot[ir],
			TCold:    tcold[ir],
			EDreicer: r.EDreicer,
			TauEETh:  r.TauEETh,
			Zeff:     rf.ions.Zeff(ir),
			Zeff0:    rf.ions.Zeff0(ir),
			Z0Z:      rf.ions.Z0Z(ir),
			Z0OverZ:  rf.ions.Z0OverZ(ir),
		}
		r.DreicerConnorHastie = dreicer.ConnorHastieRate(in)
		if dreicer.IsApplicable(tcold[ir]) {
			r.DreicerNeuralNetwork = dreicer.NetworkRate(in)
		}
	}
}

// evaluateTritiumRate returns the runaway production rate from
// tritium beta decay, per nucleus; spec.md §4.5's closed form.
func evaluateTritiumRate(pc float64) float64 {
	if math.IsInf(pc, 1) {
		return 0
	}
	gammaC := math.Sqrt(1 + pc*pc)
	gammaMinusOne := pc * pc / (gammaC + 1)
	w := types.ElectronRestEnergyEV * gammaMinusOne / tritiumDecayEnergyEV
	fracAbovePc := 1 + math.Sqrt(w)*(-(35.0/8)*w+(21.0/4)*w*w-(15.0/8)*w*w*w)
	if fracAbovePc < 0 {
		return 0
	}
	return math.Ln2 / tritiumHalfLife * fracAbovePc
}

// evaluateComptonTotalCrossSectionAtP is the Klein-Nishina-based total
// cross section for Compton scattering into p>pc given an incident
// photon of energy Eg (units of m_e*c^2); Eq (29), Martin-Solis 2017.
func evaluateComptonTotalCrossSectionAtP(eg, pc float64) float64 {
	gammaC := math.Sqrt(1 + pc*pc)
	x := eg
	wc := pc * pc / (gammaC + 1)
	cc := 1 - 1/eg*wc/(eg-wc)
	r0 := types.ClassicalElectronRadius
	return math.Pi * r0 * r0 * ((x*x-2*x-2)/(x*x*x)*math.Log((1+2*x)/(1+x*(1-cc))) +
		1/(2*x)*(1/((1+x*(1-cc))*(1+x*(1-cc)))-1/((1+2*x)*(1+2*x))) -
		1/(x*x*x)*(1-x-(1+2*x)/(1+x*(1-cc))-x*cc))
}

// evaluateComptonPhotonFluxSpectrum is the ITER-scenario photon
// spectral flux density, Eq (24), Martin-Solis 2017.
func evaluateComptonPhotonFluxSpectrum(eg float64) float64 {
	z := (1.2 + math.Log(eg*types.ElectronRestEnergyEV/1e6)) / 0.8
	return comptonPhotonFluxDensity * math.Exp(-math.Exp(z)-z+1)
}

// evaluateComptonRate integrates flux*cross-section from the minimum
// photon energy able to Compton-scatter an electron above pc to
// infinity, via a change of variable mapping [Eg_min,inf) onto [0,1).
func evaluateComptonRate(pc float64) (float64, error) {
	if math.IsInf(pc, 1) {
		return 0, nil
	}
	gammaC := math.Sqrt(1 + pc*pc)
	gammaCMinusOne := pc * pc / (gammaC + 1)
	egMin := (pc + gammaCMinusOne) / 2
	integrand := func(eg float64) float64 {
		return evaluateComptonPhotonFluxSpectrum(eg) * evaluateComptonTotalCrossSectionAtP(eg, pc)
	}
	return integrateSemiInfinite(integrand, egMin, 1e-4)
}

// integrateSemiInfinite approximates an improper integral over
// [a, infinity) by substituting eg = a + t/(1-t), t in [0,1), and
// applying adaptive Simpson refinement on the transformed integrand;
// it is the one-off stand-in for gsl_integration_qagiu (no adaptive
// quadrature over an unbounded domain exists elsewhere in this module
// since the flux-surface/bounce integrals are all over finite
// domains).
func integrateSemiInfinite(f func(float64) float64, a, tol float64) (float64, error) {
	g := func(t float64) float64 {
		if t >= 1 {
			return 0
		}
		denom := 1 - t
		eg := a + t/denom
		jac := 1 / (denom * denom)
		return f(eg) * jac
	}
	return adaptiveSimpson(g, 0, 1-1e-9, tol, 20)
}

func adaptiveSimpson(f func(float64) float64, a, b, tol float64, maxDepth int) (float64, error) {
	fa, fb := f(a), f(b)
	m := 0.5 * (a + b)
	fm := f(m)
	whole := simpson(a, b, fa, fm, fb)
	return adaptiveSimpsonRecur(f, a, b, fa, fm, fb, whole, tol, maxDepth)
}

func simpson(a, b, fa, fm, fb float64) float64 {
	return (b - a) / 6 * (fa + 4*fm + fb)
}

func adaptiveSimpsonRecur(f func(float64) float64, a, b, fa, fm, fb, whole, tol float64, depth int) (float64, error) {
	mid := 0.5 * (a + b)
	lm := 0.5 * (a + mid)
	rm := 0.5 * (mid + b)
	flm, frm := f(lm), f(rm)
	left := simpson(a, mid, fa, flm, fm)
	right := simpson(mid, b, fm, frm, fb)
	if depth <= 0 {
		return left + right, nil
	}
	if math.Abs(left+right-whole) <= 15*tol {
		return left + right + (left+right-whole)/15, nil
	}
	lv, err := adaptiveSimpsonRecur(f, a, mid, fa, flm, fm, left, tol/2, depth-1)
	if err != nil {
		return 0, err
	}
	rv, err := adaptiveSimpsonRecur(f, mid, b, fm, frm, fb, right, tol/2, depth-1)
	if err != nil {
		return 0, err
	}
	return lv + rv, nil
}
