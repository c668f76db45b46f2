// Package equation holds the small external-interface scaffold the
// outer kinetic-equation solver drives the core through: it never
// builds equations itself (that is the outer solver's concern, per
// spec.md §1's Non-goals), it only exposes the contract a diagonal
// term in that solver satisfies.
package equation

import "runawaycore/types"

// DiagonalTerm is the contract spec.md §4.6 describes: a term the
// outer solver can rebuild against the current unknowns, fetch a
// Jacobian block from, and whose per-node weights follow a two-level
// allocate/set/deallocate lifecycle tied to grid rebuilds.
type DiagonalTerm interface {
	// Rebuild recomputes the term's internal state for time t with
	// step dt against the current unknowns.
	Rebuild(t, dt float64, unknowns types.UnknownHandler) error

	// SetJacobianBlock writes this term's contribution to the
	// Jacobian block for the derivative of uqtyId with respect to
	// derivId, evaluated at the state x, into jac.
	SetJacobianBlock(uqtyId, derivId string, jac []float64, x []float64) error

	// AllocateWeights (re)allocates the per-node weight storage; it
	// runs once per grid rebuild.
	AllocateWeights(n int)
	// SetWeights recomputes the weights from the current unknowns; it
	// runs every step if the term depends on unknowns, otherwise only
	// once after AllocateWeights.
	SetWeights(unknowns types.UnknownHandler)
	// DeallocateWeights releases the weight storage.
	DeallocateWeights()
}

// Weights is the small two-level lifecycle helper a concrete
// DiagonalTerm embeds: allocated on grid rebuild, refreshed whenever
// the term depends on unknowns (otherwise once, right after
// allocation), released together.
type Weights struct {
	values            []float64
	dependsOnUnknowns bool
	set               bool
}

// NewWeights builds a Weights helper; dependsOnUnknowns controls
// whether Set must rerun every step or only once after Allocate.
func NewWeights(dependsOnUnknowns bool) *Weights {
	return &Weights{dependsOnUnknowns: dependsOnUnknowns}
}

func (w *Weights) Allocate(n int) {
	w.values = make([]float64, n)
	w.set = false
}

// Set recomputes the weights from f. If the term does not depend on
// unknowns and the weights were already set once since the last
// Allocate, it is a no-op.
func (w *Weights) Set(f func(i int) float64) {
	if w.set && !w.dependsOnUnknowns {
		return
	}
	for i := range w.values {
		w.values[i] = f(i)
	}
	w.set = true
}

func (w *Weights) Deallocate() { w.values = nil; w.set = false }

func (w *Weights) Values() []float64 { return w.values }
