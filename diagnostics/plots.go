// Package diagnostics renders the two curves spec.md calls out as worth
// inspecting by eye when tuning a closure: the pitch-averaged friction
// coefficient U(p;E) whose maximum defines the effective critical
// field, and the magnetic field strength B(theta) along a flux surface
// that the bounce-averaging machinery integrates over. Both are
// headless PNG plots built with gonum.org/v1/plot, following the
// plot.New/plotter.NewLine/p.Save pattern used throughout the example
// pack's plotting code.
package diagnostics

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"runawaycore/geometry"
	"runawaycore/runaway"
	"runawaycore/types"
)

// USample is one (p, U) pair sampled from runaway.EvaluateU.
type USample struct {
	P, U float64
}

// SampleU evaluates U(p;E) at n log-spaced points between pMin and
// pMax, at fixed field and collisionality parameters.
func SampleU(ehat, fpass, nuSHat, nuDHat, pMin, pMax float64, n int) []USample {
	if n < 2 {
		n = 2
	}
	samples := make([]USample, n)
	logMin, logMax := math.Log(pMin), math.Log(pMax)
	step := (logMax - logMin) / float64(n-1)
	for i := 0; i < n; i++ {
		p := math.Exp(logMin + step*float64(i))
		samples[i] = USample{P: p, U: runaway.EvaluateU(ehat, p, fpass, nuSHat, nuDHat)}
	}
	return samples
}

// PlotU renders U(p;E) to a PNG at path as a single line over a grid;
// no marker is drawn at its zero crossing.
func PlotU(samples []USample, path string) error {
	p := plot.New()
	p.Title.Text = "Pitch-averaged friction coefficient U(p;E)"
	p.X.Label.Text = "p / (m_e c)"
	p.Y.Label.Text = "U"

	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i].X = s.P
		pts[i].Y = s.U
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("diagnostics.PlotU: %w", err)
	}
	p.Add(line, plotter.NewGrid())

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// BSample is one (theta, B) pair along a flux surface.
type BSample struct {
	Theta, B float64
}

// SampleB reads the cell-grid B(theta) quantity at radius ir from a
// flux-surface quantity (as built by FluxSurfaceAverager for the
// magnetic field) and the theta nodes it was tabulated on.
func SampleB(q *geometry.FluxSurfaceQuantity, ir int, thetaNodes []float64) ([]BSample, error) {
	samples := make([]BSample, len(thetaNodes))
	for i, theta := range thetaNodes {
		b, err := q.EvaluateAtTheta(ir, theta, types.FluxGridCell)
		if err != nil {
			return nil, err
		}
		samples[i] = BSample{Theta: theta, B: b}
	}
	return samples, nil
}

// PlotB renders B(theta) to a PNG at path.
func PlotB(samples []BSample, path string) error {
	p := plot.New()
	p.Title.Text = "Magnetic field strength along a flux surface"
	p.X.Label.Text = "theta"
	p.Y.Label.Text = "B"

	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i].X = s.Theta
		pts[i].Y = s.B
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("diagnostics.PlotB: %w", err)
	}
	p.Add(line, plotter.NewGrid())

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
