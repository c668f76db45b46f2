package quad

import "math"

// LegendreNodes returns the n Gauss-Legendre nodes and weights on
// [a,b]. Nodes are found by Newton's method on the Legendre
// polynomial recurrence starting from the classical asymptotic
// initial guess, then mapped and scaled from the canonical [-1,1]
// interval.
func LegendreNodes(n int, a, b float64) (nodes, weights []float64) {
	if n <= 0 {
		return nil, nil
	}
	if n == 1 {
		return []float64{0.5 * (a + b)}, []float64{b - a}
	}
	nodes = make([]float64, n)
	weights = make([]float64, n)
	m := (n + 1) / 2
	for i := 0; i < m; i++ {
		// Initial guess (Francesco Tricomi's approximation to the
		// i-th root of P_n).
		x := math.Cos(math.Pi * (float64(i) + 0.75) / (float64(n) + 0.5))
		var pDeriv float64
		for iter := 0; iter < 100; iter++ {
			p0, p1 := 1.0, x
			for k := 2; k <= n; k++ {
				p2 := ((2*float64(k)-1)*x*p1 - (float64(k)-1)*p0) / float64(k)
				p0, p1 = p1, p2
			}
			// p1 = P_n(x), derivative via standard recurrence relation.
			pDeriv = float64(n) * (x*p1 - p0) / (x*x - 1)
			dx := p1 / pDeriv
			x -= dx
			if math.Abs(dx) < 1e-15 {
				break
			}
		}
		w := 2 / ((1 - x*x) * pDeriv * pDeriv)
		nodes[i] = -x
		nodes[n-1-i] = x
		weights[i] = w
		weights[n-1-i] = w
	}
	// Map from canonical [-1,1] to [a,b].
	half := 0.5 * (b - a)
	mid := 0.5 * (a + b)
	for i := range nodes {
		nodes[i] = mid + half*nodes[i]
		weights[i] *= half
	}
	return nodes, weights
}

// ChebyshevNodes returns n Chebyshev-Gauss nodes on [a,b] together
// with weights such that sum(weights[i]*f(nodes[i])) approximates the
// plain integral of f (i.e. the Chebyshev weight function
// 1/sqrt(1-x^2) has already been divided out), matching the
// fixed-quadrature contract in spec §4.2.b. The result is not exact
// even for a constant: the weights sum to (b-a)*(pi/(2n))/sin(pi/(2n)).
func ChebyshevNodes(n int, a, b float64) (nodes, weights []float64) {
	if n <= 0 {
		return nil, nil
	}
	nodes = make([]float64, n)
	weights = make([]float64, n)
	half := 0.5 * (b - a)
	mid := 0.5 * (a + b)
	for i := 0; i < n; i++ {
		theta := math.Pi * (float64(i) + 0.5) / float64(n)
		x := math.Cos(theta)
		nodes[n-1-i] = mid + half*x
		// Gauss-Chebyshev weight (of the first kind) is pi/n for the
		// weighted integral int f(x)/sqrt(1-x^2) dx; multiplying by
		// sqrt(1-x^2) recovers a plain-integral weight.
		weights[n-1-i] = (math.Pi / float64(n)) * math.Sin(theta) * half
	}
	return nodes, weights
}
