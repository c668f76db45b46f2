package collision

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"runawaycore/types"
)

// ParallelDiffusion evaluates nu_par, the parallel (momentum)
// diffusion frequency. Per spec.md §4.4 it is not an independent
// closure: it is SlowingDown's frequency value rescaled by
// T_normalized*gamma, and it must be rebuilt after SlowingDown is
// rebuilt (spec.md §5's CoulombLogarithm -> CollisionFrequency
// ordering applies transitively here, within the collision package).
type ParallelDiffusion struct {
	nr          int
	mode        types.CollFreqMode
	grid        *MomentumGrid
	nuS         *SlowingDown
	tNormalized []float64

	value variant

	nonlinearMat *mat.Dense
	gridRebuilt  bool
}

func NewParallelDiffusion(nr int, grid *MomentumGrid, mode types.CollFreqMode, nuS *SlowingDown) *ParallelDiffusion {
	return &ParallelDiffusion{
		nr:          nr,
		mode:        mode,
		grid:        grid,
		nuS:         nuS,
		tNormalized: make([]float64, nr),
		gridRebuilt: true,
	}
}

func (pd *ParallelDiffusion) GridRebuilt() { pd.gridRebuilt = true }

func (pd *ParallelDiffusion) RebuildPlasmaDependentTerms() {
	copy(pd.tNormalized, pd.nuS.tNormalized)
}

// rescaleFactor is T_normalized(ir) * gamma(p), the factor spec.md
// §4.4 multiplies onto nu_s to get nu_par.
func (pd *ParallelDiffusion) rescaleFactor(ir int, gamma float64) float64 {
	if ir >= len(pd.tNormalized) {
		return 0
	}
	return pd.tNormalized[ir] * gamma
}

// evaluateAtP returns nu_par(ir,p); identically zero in superthermal
// mode, per Testable Property 6 (spec.md §8).
func (pd *ParallelDiffusion) evaluateAtP(ir int, p float64) (float64, error) {
	if pd.mode == types.CollFreqSuperthermal {
		return 0, nil
	}
	gamma := math.Sqrt(1 + p*p)
	nuS, err := pd.nuS.EvaluateAtP(ir, p)
	if err != nil {
		return 0, err
	}
	return pd.rescaleFactor(ir, gamma) * nuS, nil
}

func (pd *ParallelDiffusion) AssembleQuantity(kind types.FluxGridKind) error {
	np1, p1 := pd.momentumNodes(kind)
	rows := make([][]float64, pd.nr)
	for ir := 0; ir < pd.nr; ir++ {
		row := make([]float64, np1*pd.grid.NP2())
		for i, p := range p1 {
			v, err := pd.evaluateAtP(ir, p)
			if err != nil {
				return err
			}
			for j := 0; j < pd.grid.NP2(); j++ {
				row[np1*j+i] = v
			}
		}
		rows[ir] = row
	}
	switch kind {
	case types.FluxGridRadialFace:
		pd.value.radialFace = rows
	case types.FluxGridP1Face:
		pd.value.p1Face = rows
	case types.FluxGridP2Face:
		pd.value.p2Face = rows
	default:
		pd.value.cell = rows
	}
	return nil
}

func (pd *ParallelDiffusion) momentumNodes(kind types.FluxGridKind) (int, []float64) {
	if kind == types.FluxGridP1Face {
		return len(pd.grid.P1Face), pd.grid.P1Face
	}
	return len(pd.grid.P1), pd.grid.P1
}

func (pd *ParallelDiffusion) GetValue(ir, i, j int, kind types.FluxGridKind) (float64, error) {
	rows := pd.value.slice(kind)
	if ir < 0 || ir >= len(rows) || rows[ir] == nil {
		return 0, types.NewError(types.UsageError, "ParallelDiffusion.GetValue", ir,
			errNotAssembled)
	}
	np1, _ := pd.momentumNodes(kind)
	idx := np1*j + i
	if idx < 0 || idx >= len(rows[ir]) {
		return 0, types.NewError(types.UsageError, "ParallelDiffusion.GetValue", ir, errIndexRange)
	}
	return rows[ir][idx], nil
}

// RebuildConstantTerms builds ParallelDiffusion's own variant of the
// nonlinear Rosenbluth matrix: the same trapezoidal discretisation as
// SlowingDown/PitchScatter, but with the 4*pi/3 weight applied to both
// the p'<p and p'>p blocks rather than splitting 4*pi/3 / 8*pi/3 — the
// parallel-diffusion projection of the isotropic operator carries a
// single angular weight throughout.
func (pd *ParallelDiffusion) RebuildConstantTerms() error {
	if !pd.gridRebuilt {
		return nil
	}
	if !pd.grid.IsHotTailGrid() {
		pd.gridRebuilt = false
		return nil
	}
	pd.nonlinearMat = buildNonlinearMatrix(pd.grid, uniformWeightModel{})
	pd.gridRebuilt = false
	return nil
}

// uniformWeightModel supplies buildNonlinearMatrix with ParallelDiffusion's
// single-weight (4*pi/3 throughout) split.
type uniformWeightModel struct{}

func (uniformWeightModel) hasIonTerm() bool                                        { return false }
func (uniformWeightModel) hasBremsTerm() bool                                      { return false }
func (uniformWeightModel) preFactor(p float64, mode types.CollFreqMode) float64    { return 0 }
func (uniformWeightModel) ionTerm(z, z0 int, p float64) float64                    { return 0 }
func (uniformWeightModel) screenedTerm(z, z0 int, a, p float64) float64            { return 0 }
func (uniformWeightModel) bremsTerm(z, z0 int, p float64, b types.BremsMode) float64 { return 0 }
func (uniformWeightModel) electronTerm(f *Frequency, ir int, p float64, mode types.CollFreqMode) float64 {
	return 0
}
func (uniformWeightModel) nonlinearWeight(pIsGreater bool) float64 { return 4 * math.Pi / 3 }
func (uniformWeightModel) atomicParameter(z, z0 int) float64       { return 0 }
