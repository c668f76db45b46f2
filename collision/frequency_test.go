package collision

import (
	"testing"

	"runawaycore/coulomb"
	"runawaycore/types"
)

type fakeIons struct{}

func (fakeIons) NSpecies() int          { return 1 }
func (fakeIons) Z(species int) int      { return 1 }
func (fakeIons) NZ(species int) int     { return 2 }
func (fakeIons) IndexOf(s, z0 int) int  { return z0 }
func (fakeIons) FreeElectronDensity(ir int) float64 { return 1e20 }
func (fakeIons) Zeff(ir int) float64                { return 1 }
func (fakeIons) Zeff0(ir int) float64               { return 1 }
func (fakeIons) Z0Z(ir int) float64                 { return 1 }
func (fakeIons) Z0OverZ(ir int) float64             { return 1 }

type fakeUnknowns struct {
	ncold, tcold []float64
}

func (f *fakeUnknowns) HasChanged(id string) bool            { return true }
func (f *fakeUnknowns) ElectricField() []float64              { return []float64{1, 1} }
func (f *fakeUnknowns) ColdElectronDensity() []float64        { return f.ncold }
func (f *fakeUnknowns) HotElectronDensity() []float64         { return []float64{0, 0} }
func (f *fakeUnknowns) RunawayDensity() []float64              { return []float64{0, 0} }
func (f *fakeUnknowns) TotalElectronDensity() []float64        { return f.ncold }
func (f *fakeUnknowns) ColdElectronTemperature() []float64     { return f.tcold }
func (f *fakeUnknowns) IonDensity(species string, z0 int) []float64 {
	if z0 == 1 {
		return []float64{1e18, 1e18}
	}
	return []float64{0, 0}
}
func (f *fakeUnknowns) HotTailDistribution(ir int) []float64 { return nil }
func (f *fakeUnknowns) GridRebuilt() bool                    { return false }

func newTestFrequencies(ncold []float64, tcold []float64) (*PitchScatter, *SlowingDown, *ParallelDiffusion) {
	nr := len(ncold)
	grid := &MomentumGrid{P1: []float64{0.1, 0.5, 1, 2}, P1Face: []float64{0, 0.3, 0.75, 1.5, 3}}
	uq := &fakeUnknowns{ncold: ncold, tcold: tcold}
	lnLee := coulomb.NewCoulombLogarithm(nr, types.LnLambdaThermal, uq)
	lnLee.RebuildRadialTerms()
	lnLei := lnLee

	settings := Settings{
		Type: types.CollFreqPartiallyScreened,
		Mode: types.CollFreqSuperthermal,
	}
	ps := NewPitchScatter(nr, grid, fakeIons{}, uq, lnLee, lnLei, settings)
	ps.RebuildPlasmaDependentTerms()

	sd := NewSlowingDown(nr, grid, fakeIons{}, uq, lnLee, lnLei, settings)
	sd.RebuildPlasmaDependentTerms()

	pd := NewParallelDiffusion(nr, grid, settings.Mode, sd)
	pd.RebuildPlasmaDependentTerms()

	return ps, sd, pd
}

func TestFrequencySignsNonNegative(t *testing.T) {
	ps, sd, _ := newTestFrequencies([]float64{1e20, 1e20}, []float64{100, 100})
	for _, p := range []float64{0.1, 0.5, 1, 2, 5} {
		nuD, err := ps.Frequency.evaluateAtP(0, p)
		if err != nil {
			t.Fatalf("pitch scatter: %v", err)
		}
		if nuD < 0 {
			t.Errorf("nu_D(%v) = %v, want >= 0", p, nuD)
		}
		nuS, err := sd.EvaluateAtP(0, p)
		if err != nil {
			t.Fatalf("slowing down: %v", err)
		}
		if nuS < 0 {
			t.Errorf("nu_s(%v) = %v, want >= 0", p, nuS)
		}
	}
}

func TestParallelDiffusionZeroInSuperthermalMode(t *testing.T) {
	_, _, pd := newTestFrequencies([]float64{1e20, 1e20}, []float64{100, 100})
	v, err := pd.evaluateAtP(0, 1.0)
	if err != nil {
		t.Fatalf("evaluateAtP: %v", err)
	}
	if v != 0 {
		t.Errorf("nu_par = %v in superthermal mode, want 0", v)
	}
}

// TestNColdPartialContributionMatchesElectronTermProduct checks that
// NColdPartialContribution at p=1 equals PreFactor*ElectronTerm*lnLambda
// evaluated directly, the coefficient of n_cold in evaluateAtP.
func TestNColdPartialContributionMatchesElectronTermProduct(t *testing.T) {
	ps, _, _ := newTestFrequencies([]float64{1e20, 1e20}, []float64{100, 100})
	partial, err := ps.Frequency.NColdPartialContribution(0, types.FluxGridCell)
	if err != nil {
		t.Fatalf("NColdPartialContribution: %v", err)
	}
	pre := ps.preFactor(1.0, ps.settings.Mode)
	lnL, _ := ps.lnLambda(ps.lnLambdaEE, 0, 1.0)
	want := pre * ps.electronTerm(ps.Frequency, 0, 1.0, ps.settings.Mode) * lnL
	got := partial[2] // p1[2] == 1.0
	if got != want {
		t.Errorf("NColdPartialContribution(p=1) = %v, want %v", got, want)
	}
}
