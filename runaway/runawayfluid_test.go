package runaway

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"

	"runawaycore/collision"
	"runawaycore/coulomb"
	"runawaycore/geometry"
	"runawaycore/types"
)

type fakeIons struct{}

func (fakeIons) NSpecies() int                      { return 1 }
func (fakeIons) Z(species int) int                  { return 1 }
func (fakeIons) NZ(species int) int                 { return 2 }
func (fakeIons) IndexOf(s, z0 int) int              { return z0 }
func (fakeIons) FreeElectronDensity(ir int) float64 { return 1e20 }
func (fakeIons) Zeff(ir int) float64                { return 1 }
func (fakeIons) Zeff0(ir int) float64               { return 1 }
func (fakeIons) Z0Z(ir int) float64                 { return 1 }
func (fakeIons) Z0OverZ(ir int) float64             { return 1 }

type fakeUnknowns struct {
	efield, ncold, tcold []float64
}

func (f *fakeUnknowns) HasChanged(id string) bool          { return true }
func (f *fakeUnknowns) ElectricField() []float64           { return f.efield }
func (f *fakeUnknowns) ColdElectronDensity() []float64     { return f.ncold }
func (f *fakeUnknowns) HotElectronDensity() []float64      { return zeros(len(f.ncold)) }
func (f *fakeUnknowns) RunawayDensity() []float64          { return zeros(len(f.ncold)) }
func (f *fakeUnknowns) TotalElectronDensity() []float64    { return f.ncold }
func (f *fakeUnknowns) ColdElectronTemperature() []float64 { return f.tcold }
func (f *fakeUnknowns) IonDensity(species string, z0 int) []float64 {
	return zeros(len(f.ncold))
}
func (f *fakeUnknowns) HotTailDistribution(ir int) []float64 { return nil }
func (f *fakeUnknowns) GridRebuilt() bool                    { return false }

func zeros(n int) []float64 { return make([]float64, n) }

func newTestFluid(efield, ncold, tcold []float64) *RunawayFluid {
	nr := len(ncold)
	grid := geometry.NewRadialGrid(nr, 1.0, func(r float64) float64 { return 1 })
	bmin := make([]float64, nr)
	bmax := make([]float64, nr)
	theta := make([]float64, nr)
	for i := range bmin {
		bmin[i], bmax[i] = 1, 2
	}
	if err := grid.InitializeMagneticField(types.FluxGridCell, bmin, bmax, theta, theta); err != nil {
		panic(err)
	}

	uq := &fakeUnknowns{efield: efield, ncold: ncold, tcold: tcold}
	lnLee := coulomb.NewCoulombLogarithm(nr, types.LnLambdaEnergyDependent, uq)
	lnLee.RebuildRadialTerms()

	mgrid := &collision.MomentumGrid{P1: []float64{0.1, 0.5, 1, 2, 5}, P1Face: []float64{0, 0.3, 0.75, 1.5, 3, 7}}
	settings := collision.Settings{Type: types.CollFreqPartiallyScreened, Mode: types.CollFreqSuperthermal}

	sd := collision.NewSlowingDown(nr, mgrid, fakeIons{}, uq, lnLee, lnLee, settings)
	sd.RebuildPlasmaDependentTerms()
	ps := collision.NewPitchScatter(nr, mgrid, fakeIons{}, uq, lnLee, lnLee, settings)
	ps.RebuildPlasmaDependentTerms()

	return New(nr, grid, uq, fakeIons{}, lnLee, sd, ps, types.PStarCollisionless)
}

func TestRebuildProducesFiniteResults(t *testing.T) {
	rf := newTestFluid([]float64{1.0, 1.0}, []float64{1e20, 1e20}, []float64{100, 100})
	if err := rf.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	for ir := 0; ir < 2; ir++ {
		r, err := rf.Result(ir)
		if err != nil {
			t.Fatalf("Result(%d): %v", ir, err)
		}
		if r.EcFree <= 0 || r.EcTot <= 0 || r.EDreicer <= 0 {
			t.Errorf("ir=%d: expected positive derived fields, got %+v", ir, r)
		}
		if math.IsNaN(r.EffectiveCriticalField) || r.EffectiveCriticalField <= 0 {
			t.Errorf("ir=%d: bad EffectiveCriticalField %v", ir, r.EffectiveCriticalField)
		}
	}
}

func TestCriticalMomentumInfiniteBelowCriticalField(t *testing.T) {
	// A tiny electric field should sit below E_ceff, so p_c is +Inf and
	// the avalanche growth rate collapses (spec.md §9's decay sentinel,
	// scenario S6).
	rf := newTestFluid([]float64{1e-6}, []float64{1e20}, []float64{100})
	if err := rf.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	r, err := rf.Result(0)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if !math.IsInf(r.CriticalMomentum, 1) {
		t.Errorf("CriticalMomentum = %v, want +Inf for E << E_ceff", r.CriticalMomentum)
	}
	if r.AvalancheGrowthRate > 0 {
		t.Errorf("AvalancheGrowthRate = %v, want <= 0 when E below E_ceff", r.AvalancheGrowthRate)
	}
}

func TestDreicerRatesArePopulated(t *testing.T) {
	rf := newTestFluid([]float64{10.0}, []float64{1e20}, []float64{100})
	if err := rf.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	r, err := rf.Result(0)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if r.DreicerConnorHastie <= 0 {
		t.Errorf("DreicerConnorHastie = %v, want > 0", r.DreicerConnorHastie)
	}
	if r.DreicerNeuralNetwork <= 0 {
		t.Errorf("DreicerNeuralNetwork = %v, want > 0 for T=100eV (within trained range)", r.DreicerNeuralNetwork)
	}
}

func TestEvaluateUIsPositiveAtHighField(t *testing.T) {
	u1 := EvaluateU(2.0, 10, 0.8, 1e-3, 2e-3)
	u2 := EvaluateU(2.0, 1000, 0.8, 1e-3, 2e-3)
	if u1 <= 0 && u2 <= 0 {
		t.Errorf("expected U to be positive somewhere in [10,1000] at a supercritical field, got U(10)=%v U(1000)=%v", u1, u2)
	}
}

// TestMeanEffectiveCriticalFieldIsOrderOfMagnitudeConsistent is a
// scenario-level sanity check (spec.md's S5/S6 family): across a sweep
// of radii carrying the same density and temperature, E_ceff should
// stay within the same order of magnitude rather than blow up or
// collapse, and its mean across the sweep should itself sit inside
// that same span.
func TestMeanEffectiveCriticalFieldIsOrderOfMagnitudeConsistent(t *testing.T) {
	nr := 4
	efield := []float64{5, 5, 5, 5}
	ncold := []float64{1e20, 1e20, 1e20, 1e20}
	tcold := []float64{100, 100, 100, 100}
	rf := newTestFluid(efield, ncold, tcold)
	if err := rf.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	eceff := make([]float64, nr)
	for ir := range eceff {
		r, err := rf.Result(ir)
		if err != nil {
			t.Fatalf("Result(%d): %v", ir, err)
		}
		eceff[ir] = r.EffectiveCriticalField
	}
	mean := stat.Mean(eceff, nil)
	for ir, v := range eceff {
		if v <= 0 || mean <= 0 {
			t.Fatalf("ir=%d: EffectiveCriticalField=%v mean=%v, want both positive", ir, v, mean)
		}
		ratio := v / mean
		if ratio < 1e-1 || ratio > 1e1 {
			t.Errorf("ir=%d: EffectiveCriticalField=%v is not within an order of magnitude of the sweep mean %v", ir, v, mean)
		}
	}
}
