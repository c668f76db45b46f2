// Package collision evaluates the three collision frequencies (slowing
// down, pitch-angle scattering, parallel diffusion) every kinetic
// equation term in the core is built on: a shared
// PreFactor/ElectronTerm/IonTerm/ScreenedTerm/BremsTerm skeleton,
// specialised per frequency, multiplied onto the four parallel grid
// variants (cell, radial-face, p1-face, p2-face).
package collision

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"runawaycore/coulomb"
	"runawaycore/types"
)

// constPreFactor is 4*pi*r0^2*c, the dimensional prefactor common to
// every collision frequency in this package.
const constPreFactor = 4 * math.Pi * types.ClassicalElectronRadius * types.ClassicalElectronRadius * types.SpeedOfLight

var errNotAssembled = fmt.Errorf("variant not assembled")
var errIndexRange = fmt.Errorf("index out of range")

// Settings bundles the configuration knobs spec.md §4.4 lists.
type Settings struct {
	Type      types.CollFreqType
	Mode      types.CollFreqMode
	LnLambda  types.LnLambdaType
	Brems     types.BremsMode
	Nonlinear types.NonlinearMode
	PStar     types.PStarMode
}

// termModel supplies the frequency-specific pieces of the shared
// skeleton in §4.4. A concrete frequency (PitchScatter, SlowingDown)
// implements it. ParallelDiffusion's values are a pure rescaling of
// SlowingDown's output (spec.md §4.4) and do not go through a
// termModel; it uses one (uniformWeightModel) only to supply the
// weights of its nonlinear matrix.
type termModel interface {
	hasIonTerm() bool
	hasBremsTerm() bool
	preFactor(p float64, mode types.CollFreqMode) float64
	ionTerm(z, z0 int, p float64) float64
	screenedTerm(z, z0 int, a, p float64) float64
	bremsTerm(z, z0 int, p float64, brems types.BremsMode) float64
	electronTerm(f *Frequency, ir int, p float64, mode types.CollFreqMode) float64
	nonlinearWeight(pIsGreater bool) float64 // 4pi/3 vs 8pi/3 split, see buildNonlinearMatrix
	atomicParameter(z, z0 int) float64
}

// variant holds one collision-quantity array per grid kind, flattened
// row-major as value[ir][np1*j+i] the way CollisionQuantity.hpp does.
type variant struct {
	cell, radialFace, p1Face, p2Face [][]float64
}

func (v *variant) slice(kind types.FluxGridKind) [][]float64 {
	switch kind {
	case types.FluxGridRadialFace:
		return v.radialFace
	case types.FluxGridP1Face:
		return v.p1Face
	case types.FluxGridP2Face:
		return v.p2Face
	default:
		return v.cell
	}
}

// Frequency is the shared base every concrete collision frequency
// embeds. It owns per-variant storage, the nonlinear Rosenbluth
// matrix, and the plasma-dependent caches (normalised temperature),
// and drives the RebuildConstantTerms/RebuildPlasmaDependentTerms/
// AssembleQuantity lifecycle spec.md §4.4 specifies.
type Frequency struct {
	settings Settings
	ions     types.IonHandler
	unknowns types.UnknownHandler
	lnLambdaEE *coulomb.CoulombLogarithm
	lnLambdaEI *coulomb.CoulombLogarithm
	grid       *MomentumGrid
	model      termModel

	nr int

	value variant

	nonlinearMat *mat.Dense
	tNormalized  []float64 // T_cold/mc2inEV, per radius

	gridRebuilt bool
}

// newFrequency builds the shared base; concrete constructors embed it
// and set model to themselves after construction (the model needs a
// pointer back to the embedding type for electronTerm's ir-indexed
// temperature lookups).
func newFrequency(nr int, grid *MomentumGrid, ions types.IonHandler, unknowns types.UnknownHandler,
	lnLambdaEE, lnLambdaEI *coulomb.CoulombLogarithm, settings Settings) *Frequency {
	return &Frequency{
		settings:    settings,
		ions:        ions,
		unknowns:    unknowns,
		lnLambdaEE:  lnLambdaEE,
		lnLambdaEI:  lnLambdaEI,
		grid:        grid,
		nr:          nr,
		tNormalized: make([]float64, nr),
		gridRebuilt: true,
	}
}

// GridRebuilt marks the nonlinear matrix and per-variant storage
// stale; RebuildConstantTerms must be called again before the next
// AssembleQuantity.
func (f *Frequency) GridRebuilt() { f.gridRebuilt = true }

// RebuildPlasmaDependentTerms refreshes T_normalized from the unknown
// handler. It must run whenever ColdElectronTemperature changed.
func (f *Frequency) RebuildPlasmaDependentTerms() {
	tcold := f.unknowns.ColdElectronTemperature()
	for ir := 0; ir < f.nr && ir < len(tcold); ir++ {
		f.tNormalized[ir] = tcold[ir] / types.ElectronRestEnergyEV
	}
}

// RebuildConstantTerms builds the nonlinear Rosenbluth-potential
// matrix on the hot-tail momentum grid. It is invariant under plasma
// state and only needs rerunning after a grid rebuild.
func (f *Frequency) RebuildConstantTerms() error {
	if !f.gridRebuilt {
		return nil
	}
	if f.settings.Nonlinear == types.NonlinearIsotropic {
		if !f.grid.IsHotTailGrid() {
			return types.NewError(types.UsageError, "Frequency.RebuildConstantTerms", -1,
				fmt.Errorf("nonlinear contribution requires a p-xi grid with np2==1"))
		}
		f.nonlinearMat = buildNonlinearMatrix(f.grid, f.model)
	}
	f.gridRebuilt = false
	return nil
}

// AssembleQuantity fills one grid variant by evaluating evaluateAtP at
// every momentum node of that variant, broadcast across pitch (the
// frequencies are pitch-independent functions of |p| alone).
func (f *Frequency) AssembleQuantity(kind types.FluxGridKind) error {
	np1, p1 := f.momentumNodes(kind)
	rows := make([][]float64, f.nr)
	for ir := 0; ir < f.nr; ir++ {
		row := make([]float64, np1*f.grid.NP2())
		for i, p := range p1 {
			v, err := f.evaluateAtP(ir, p)
			if err != nil {
				return err
			}
			for j := 0; j < f.grid.NP2(); j++ {
				row[np1*j+i] = v
			}
		}
		rows[ir] = row
	}
	switch kind {
	case types.FluxGridRadialFace:
		f.value.radialFace = rows
	case types.FluxGridP1Face:
		f.value.p1Face = rows
	case types.FluxGridP2Face:
		f.value.p2Face = rows
	default:
		f.value.cell = rows
	}
	return nil
}

func (f *Frequency) momentumNodes(kind types.FluxGridKind) (int, []float64) {
	switch kind {
	case types.FluxGridP1Face:
		return len(f.grid.P1Face), f.grid.P1Face
	default:
		return len(f.grid.P1), f.grid.P1
	}
}

// GetValue returns the assembled value at (ir,i,j) on the given grid
// variant.
func (f *Frequency) GetValue(ir, i, j int, kind types.FluxGridKind) (float64, error) {
	rows := f.value.slice(kind)
	if ir < 0 || ir >= len(rows) || rows[ir] == nil {
		return 0, types.NewError(types.UsageError, "Frequency.GetValue", ir,
			fmt.Errorf("variant %s not assembled", kind))
	}
	np1, _ := f.momentumNodes(kind)
	idx := np1*j + i
	if idx < 0 || idx >= len(rows[ir]) {
		return 0, types.NewError(types.UsageError, "Frequency.GetValue", ir, fmt.Errorf("index out of range"))
	}
	return rows[ir][idx], nil
}

// evaluateAtP is the shared skeleton of spec.md §4.4:
//
//	nu(ir,p) = PreFactor(p) * [ n_cold*ElectronTerm + sum_ion n*(IonTerm+ScreenedTerm+BremsTerm) ] * lnLambda(ir,p)
func (f *Frequency) evaluateAtP(ir int, p float64) (float64, error) {
	pre := f.model.preFactor(p, f.settings.Mode)
	if pre == 0 {
		return 0, nil
	}
	ncold := f.unknowns.ColdElectronDensity()
	if ir >= len(ncold) {
		return 0, types.NewPitchError(types.UsageError, "Frequency.evaluateAtP", ir, p, 0,
			fmt.Errorf("radius out of range"))
	}
	lnLee, err := f.lnLambda(f.lnLambdaEE, ir, p)
	if err != nil {
		return 0, err
	}
	sum := ncold[ir] * f.model.electronTerm(f, ir, p, f.settings.Mode) * lnLee

	if f.settings.Type != types.CollFreqCompletelyScreened {
		lnLei, err := f.lnLambda(f.lnLambdaEI, ir, p)
		if err != nil {
			return 0, err
		}
		ionSum := 0.0
		for sp := 0; sp < f.ions.NSpecies(); sp++ {
			z := f.ions.Z(sp)
			for z0 := 0; z0 < f.ions.NZ(sp); z0++ {
				n := f.ionDensityAt(sp, z0, ir)
				if n == 0 {
					continue
				}
				term := 0.0
				if f.model.hasIonTerm() {
					term += f.model.ionTerm(z, z0, p)
				}
				if f.settings.Type == types.CollFreqPartiallyScreened {
					a := f.model.atomicParameter(z, z0)
					term += f.model.screenedTerm(z, z0, a, p)
				} else if f.settings.Type == types.CollFreqNonScreened {
					term += float64(z*z - z0*z0)
				}
				if f.model.hasBremsTerm() && f.settings.Brems == types.BremsStoppingPower {
					term += f.model.bremsTerm(z, z0, p, f.settings.Brems)
				}
				ionSum += n * term
			}
		}
		sum += ionSum * lnLei
	}
	return pre * sum, nil
}

// EvaluateAtPWithType evaluates evaluateAtP at momentum p under a
// forced screening type, restoring the frequency's configured Type
// settings before returning. It exists for RunawayFluid's p_c bracket
// seeding (spec.md §4.5), which needs the completely-screened and
// non-screened analytical limits regardless of the frequency's own
// collfreq_type setting.
func (f *Frequency) EvaluateAtPWithType(ir int, p float64, forced types.CollFreqType) (float64, error) {
	saved := f.settings.Type
	f.settings.Type = forced
	v, err := f.evaluateAtP(ir, p)
	f.settings.Type = saved
	return v, err
}

func (f *Frequency) ionDensityAt(species, z0, ir int) float64 {
	// IonHandler identifies species by a caller-defined string id in
	// spec.md's UnknownHandler.IonDensity; the linear index here is
	// used only to recover Z for the screened/ion terms, so species
	// identity for the density lookup is delegated to the unknown
	// handler via its own indexing scheme through IndexOf.
	_ = f.ions.IndexOf(species, z0)
	densities := f.unknowns.IonDensity(fmt.Sprintf("%d", species), z0)
	if ir >= len(densities) {
		return 0
	}
	return densities[ir]
}

// lnLambda evaluates the Coulomb logarithm cl is configured to supply,
// honouring Settings.LnLambda as the frequency's own independent
// thermal/energy-dependent knob (cl may itself be built in either
// mode; this override is what lets a single CoulombLogarithm instance
// serve frequencies with different LnLambda settings).
func (f *Frequency) lnLambda(cl *coulomb.CoulombLogarithm, ir int, p float64) (float64, error) {
	if f.settings.LnLambda == types.LnLambdaThermal {
		return cl.EvaluateLnLambdaT(ir)
	}
	return cl.EvaluateAtP(ir, p)
}

// buildNonlinearMatrix discretises the Rosenbluth-potential matrix on
// the hot-tail p1 grid by a trapezoidal rule, following the structure
// of PitchScatterFrequency::calculateIsotropicNonlinearOperatorMatrix:
// a near-diagonal "p'<p" block weighted 4*pi/3 and a "p'>p" block
// weighted 8*pi/3, each frequency supplying its own relative weight
// between the two blocks via termModel.nonlinearWeight.
func buildNonlinearMatrix(mg *MomentumGrid, model termModel) *mat.Dense {
	p := mg.P1
	pf := mg.P1Face
	n := len(p)
	m := mat.NewDense(n, n, nil)
	for i := 1; i < n; i++ {
		p2f := pf[i] * pf[i]
		lowWeight := constPreFactor * model.nonlinearWeight(false)
		highWeight := constPreFactor * model.nonlinearWeight(true)
		for ip := 0; ip < i; ip++ {
			p2 := p[ip] * p[ip]
			trapz := trapzWeight(p, ip)
			m.Set(i, ip, lowWeight/pf[i]*trapz*p2/p2f*(3-p2/p2f))
		}
		for ip := i; ip < n; ip++ {
			trapz := trapzWeight(p, ip)
			m.Set(i, ip, highWeight*trapz*p[ip]/p2f)
		}
	}
	return m
}

// trapzWeight is the trapezoidal weight of node ip on the non-uniform
// grid p (half the sum of the two adjacent spacings, with one-sided
// weights at the ends).
func trapzWeight(p []float64, ip int) float64 {
	switch {
	case len(p) == 1:
		return 0
	case ip == 0:
		return (p[1] - p[0]) / 2
	case ip == len(p)-1:
		return (p[ip] - p[ip-1]) / 2
	default:
		return (p[ip+1] - p[ip-1]) / 2
	}
}

// AddNonlinearContribution adds the hot-tail distribution's
// contribution, Matrix*f_hot, onto the p1-face variant of the
// frequency, per spec.md §4.4's additive nonlinear term.
func (f *Frequency) AddNonlinearContribution(ir int) error {
	if f.settings.Nonlinear != types.NonlinearIsotropic || f.nonlinearMat == nil {
		return nil
	}
	fhot := f.unknowns.HotTailDistribution(ir)
	if fhot == nil {
		return nil
	}
	n, _ := f.nonlinearMat.Dims()
	if len(fhot) < n {
		return types.NewError(types.UsageError, "Frequency.AddNonlinearContribution", ir,
			fmt.Errorf("hot-tail distribution shorter than momentum grid"))
	}
	fv := mat.NewVecDense(n, fhot[:n])
	var out mat.VecDense
	out.MulVec(f.nonlinearMat, fv)
	if f.value.p1Face == nil {
		f.value.p1Face = make([][]float64, f.nr)
	}
	if f.value.p1Face[ir] == nil {
		f.value.p1Face[ir] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		f.value.p1Face[ir][i] += out.AtVec(i)
	}
	return nil
}

// NColdPartialContribution is dNu/dn_cold at each momentum node of
// kind, used by the outer solver's Jacobian assembly (spec.md §6's
// Jacobian contract): it is exactly PreFactor*ElectronTerm*lnLambda,
// the linear-in-n_cold coefficient of evaluateAtP.
func (f *Frequency) NColdPartialContribution(ir int, kind types.FluxGridKind) ([]float64, error) {
	np1, p1 := f.momentumNodes(kind)
	out := make([]float64, np1)
	for i, p := range p1 {
		pre := f.model.preFactor(p, f.settings.Mode)
		lnL, err := f.lnLambda(f.lnLambdaEE, ir, p)
		if err != nil {
			return nil, err
		}
		out[i] = pre * f.model.electronTerm(f, ir, p, f.settings.Mode) * lnL
	}
	return out, nil
}

// chandrasekharG is the classical Chandrasekhar function
// G(x) = (erf(x) - x*erf'(x)) / (2 x^2), appearing throughout
// relativistic Fokker-Planck theory (Trubnikov 1965) as the building
// block of the electron-electron friction/diffusion coefficients
// against a Maxwellian background. It underlies the tabulated psi0,
// psi1 interpolants used by the full-mode electron term.
func chandrasekharG(x float64) float64 {
	if x < 1e-6 {
		return 2 * x / (3 * math.Sqrt(math.Pi))
	}
	erfx := math.Erf(x)
	erfPrime := 2 / math.Sqrt(math.Pi) * math.Exp(-x*x)
	return (erfx - x*erfPrime) / (2 * x * x)
}

// evaluateExp1OverThetaK approximates exp(1/Theta)/K_n(1/Theta), the
// normalisation factor of the relativistic Maxwell-Juttner
// distribution. Runaway-relevant plasmas have Theta << 1 (keV-scale
// T_cold against mc^2 ~ 511 keV), i.e. z=1/Theta >> 1, so the large-
// argument asymptotic expansion of K_n is used directly, so exp(z)
// and K_n(z) are never evaluated separately (exp(z) would overflow
// for large z before the ratio is taken).
func evaluateExp1OverThetaK(theta, n float64) float64 {
	if theta <= 0 {
		return 0
	}
	z := 1 / theta
	return math.Sqrt(2*z/math.Pi) / (1 + (4*n*n-1)/(8*z))
}
