package types

// F3 is the integrand shape consumed by flux-surface averages:
// F(B/B_min, R/R0, |grad r|^2) -> real. It must be a pure function of
// its arguments — no captured mutable state — so that a single value
// can be shared across quadrature nodes and, in a parallel-over-ir
// implementation, across worker goroutines without synchronisation.
type F3 func(bOverBmin, rOverR0, gradRSq float64) float64

// F4 is the integrand shape consumed by bounce averages:
// F(xi/xi0, B/B_min, R/R0, |grad r|^2) -> real. Same purity contract
// as F3.
type F4 func(xiOverXi0, bOverBmin, rOverR0, gradRSq float64) float64

// Const3 returns an F3 that ignores its arguments and returns v; the
// averager uses Const3(1) for the unity integral that gives V'.
func Const3(v float64) F3 { return func(float64, float64, float64) float64 { return v } }

// Const4 is the F4 analogue of Const3; Const4(1) gives V'_p.
func Const4(v float64) F4 {
	return func(float64, float64, float64, float64) float64 { return v }
}
