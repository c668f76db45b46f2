// Package quad implements the small numerical kernel the geometry
// averager and the runaway-threshold search build on: a bracketing
// Brent root finder, a Brent/golden-section bracketed minimizer, and
// fixed Gauss-Legendre/Chebyshev quadrature node tables. None of it
// is quadrature-library-shaped state; every routine is a pure
// function over its arguments so it can be called from worker
// goroutines without synchronisation.
package quad

import (
	"errors"
	"math"
)

const machineEps = 1e-15

// ErrNotBracketed is returned when the two endpoints passed to
// BrentRoot do not straddle a sign change.
var ErrNotBracketed = errors.New("quad: root not bracketed")

// ErrMaxIterations is returned when a search exhausts its iteration
// cap without converging.
var ErrMaxIterations = errors.New("quad: maximum iterations exceeded")

// BrentRoot finds a root of f within [a,b] to the given tolerance,
// using Brent's combination of bisection, secant and inverse quadratic
// interpolation. tol is an absolute tolerance on x; it is not scaled
// by |x|. f(a) and f(b) must have opposite
// signs (or one must already be a root).
func BrentRoot(f func(float64) float64, a, b, tol float64, maxIter int) (float64, error) {
	return BrentRootFromValues(f, a, b, f(a), f(b), tol, maxIter)
}

// BrentRootFromValues is BrentRoot for callers that already evaluated
// the bracket endpoints, avoiding a redundant call when the bracket
// was produced by an expansion search.
func BrentRootFromValues(f func(float64) float64, a, b, fa, fb, tol float64, maxIter int) (float64, error) {
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if fa*fb > 0 {
		return 0, ErrNotBracketed
	}
	c, fc := a, fa
	d, e := b-a, b-a
	for i := 0; i < maxIter; i++ {
		if fb*fc > 0 {
			c, fc = a, fa
			d, e = b-a, b-a
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}
		tol1 := 2*machineEps*math.Abs(b) + 0.5*tol
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || fb == 0 {
			return b, nil
		}
		var p, q float64
		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			s := fb / fa
			if a != c && fa != fc {
				r := fb / fc
				t := fa / fc
				p = s * (2*xm*r*(r-t) - (b-a)*(t-1))
				q = (r - 1) * (t - 1) * (s - 1)
			} else {
				p = 2 * xm * s
				q = 1 - s
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e, d = d, p/q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}
		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		fb = f(b)
	}
	return b, ErrMaxIterations
}

// BrentShrinkBracket runs the same iteration as BrentRootFromValues but
// returns the final bracket [lo,hi] (with f(lo) and f(hi) of opposite
// sign, or one of them exactly zero) instead of a single point estimate.
// FluxSurfaceAverager's bounce-point search needs the bracket, not the
// point, because which endpoint corresponds to the physical root
// depends on the sign of the integrand there (spec §4.2.a step 3).
func BrentShrinkBracket(f func(float64) float64, a, b, fa, fb, tol float64, maxIter int) (lo, hi float64, err error) {
	if fa == 0 {
		return a, a, nil
	}
	if fb == 0 {
		return b, b, nil
	}
	if fa*fb > 0 {
		return 0, 0, ErrNotBracketed
	}
	c, fc := a, fa
	d, e := b-a, b-a
	for i := 0; i < maxIter; i++ {
		if fb*fc > 0 {
			c, fc = a, fa
			d, e = b-a, b-a
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}
		tol1 := 2*machineEps*math.Abs(b) + 0.5*tol
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || fb == 0 {
			lo, hi = minMax(b, c)
			return lo, hi, nil
		}
		var p, q float64
		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			s := fb / fa
			if a != c && fa != fc {
				r := fb / fc
				t := fa / fc
				p = s * (2*xm*r*(r-t) - (b-a)*(t-1))
				q = (r - 1) * (t - 1) * (s - 1)
			} else {
				p = 2 * xm * s
				q = 1 - s
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			if 2*p < math.Min(3*xm*q-math.Abs(tol1*q), math.Abs(e*q)) {
				e, d = d, p/q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}
		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		fb = f(b)
	}
	lo, hi = minMax(b, c)
	return lo, hi, ErrMaxIterations
}

func minMax(x, y float64) (float64, float64) {
	if x <= y {
		return x, y
	}
	return y, x
}

// goldenRatio is 1 - 1/phi, the golden-section contraction factor.
const goldenRatio = 0.3819660112501051

// BrentMinimize locates a local minimum of f within [a,b] using
// Brent's combination of golden-section search and parabolic
// interpolation. It returns the minimizing x and f(x).
func BrentMinimize(f func(float64) float64, a, b, tol float64, maxIter int) (x, fx float64, err error) {
	lo, hi := a, b
	x = lo + goldenRatio*(hi-lo)
	w, v := x, x
	fx = f(x)
	fw, fv := fx, fx
	d, e := 0.0, 0.0
	for i := 0; i < maxIter; i++ {
		mid := 0.5 * (lo + hi)
		tol1 := tol*math.Abs(x) + 1e-12
		tol2 := 2 * tol1
		if math.Abs(x-mid) <= tol2-0.5*(hi-lo) {
			return x, fx, nil
		}
		useGolden := true
		if math.Abs(e) > tol1 {
			r := (x - w) * (fx - fv)
			q := (x - v) * (fx - fw)
			p := (x-v)*q - (x-w)*r
			q = 2 * (q - r)
			if q > 0 {
				p = -p
			}
			q = math.Abs(q)
			etemp := e
			e = d
			if math.Abs(p) < math.Abs(0.5*q*etemp) && p > q*(lo-x) && p < q*(hi-x) {
				d = p / q
				u := x + d
				if u-lo < tol2 || hi-u < tol2 {
					d = math.Copysign(tol1, mid-x)
				}
				useGolden = false
			}
		}
		if useGolden {
			if x < mid {
				e = hi - x
			} else {
				e = lo - x
			}
			d = goldenRatio * e
		}
		var u float64
		if math.Abs(d) >= tol1 {
			u = x + d
		} else {
			u = x + math.Copysign(tol1, d)
		}
		fu := f(u)
		if fu <= fx {
			if u < x {
				hi = x
			} else {
				lo = x
			}
			v, fv = w, fw
			w, fw = x, fx
			x, fx = u, fu
		} else {
			if u < x {
				lo = u
			} else {
				hi = u
			}
			if fu <= fw || w == x {
				v, fv = w, fw
				w, fw = u, fu
			} else if fu <= fv || v == x || v == w {
				v, fv = u, fu
			}
		}
	}
	return x, fx, ErrMaxIterations
}

// ExpandBracket grows [a,b] multiplicatively by factor (>1) until
// f(a) and f(b) have opposite signs, or maxExpand growth steps are
// exhausted. It is used by the E_ceff search (spec §4.5) to build an
// initial electric-field bracket from a seed interval.
func ExpandBracket(f func(float64) float64, a, b, factor float64, maxExpand int) (lo, hi, flo, fhi float64, err error) {
	lo, hi = a, b
	flo, fhi = f(lo), f(hi)
	for i := 0; i < maxExpand; i++ {
		if flo*fhi <= 0 {
			return lo, hi, flo, fhi, nil
		}
		width := hi - lo
		lo -= 0.5 * (factor - 1) * width
		hi += 0.5 * (factor - 1) * width
		flo, fhi = f(lo), f(hi)
	}
	if flo*fhi <= 0 {
		return lo, hi, flo, fhi, nil
	}
	return lo, hi, flo, fhi, ErrNotBracketed
}
