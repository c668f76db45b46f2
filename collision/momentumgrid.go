package collision

// MomentumGrid is the momentum-space grid a CollisionFrequency is
// evaluated on. P1 is the momentum coordinate (units of m_e*c); P2 is
// the pitch coordinate when the grid is a p-xi grid. The nonlinear
// Rosenbluth-matrix construction additionally assumes np2==1 (the
// hot-tail, momentum-only grid), per spec.md §9's inherited
// "momentum grids are identical across radii" constraint — enforced
// here at the type level by building one MomentumGrid shared by every
// radius rather than one per radius.
type MomentumGrid struct {
	P1     []float64 // cell values, length np1
	P1Face []float64 // face values, length np1+1
	P2     []float64 // cell values, length np2 (pitch xi0, or absent for a p-only grid)
	P2Face []float64 // face values, length np2+1
}

func (mg *MomentumGrid) NP1() int { return len(mg.P1) }
func (mg *MomentumGrid) NP2() int {
	if len(mg.P2) == 0 {
		return 1
	}
	return len(mg.P2)
}

// IsHotTailGrid reports whether this is the p-only grid the nonlinear
// operator matrix requires (np2==1).
func (mg *MomentumGrid) IsHotTailGrid() bool { return mg.NP2() == 1 }
