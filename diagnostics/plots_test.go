package diagnostics

import (
	"path/filepath"
	"testing"

	"runawaycore/geometry"
	"runawaycore/types"
)

func TestPlotURendersFile(t *testing.T) {
	samples := SampleU(1.0, 0.8, 1e-3, 2e-3, 1, 100, 50)
	if len(samples) != 50 {
		t.Fatalf("got %d samples, want 50", len(samples))
	}
	path := filepath.Join(t.TempDir(), "u.png")
	if err := PlotU(samples, path); err != nil {
		t.Fatalf("PlotU: %v", err)
	}
}

func TestPlotBRendersFile(t *testing.T) {
	theta := []float64{0, 1, 2, 3, 4, 5, 6}
	cellValues := [][]float64{{1, 1.1, 1.3, 1.5, 1.3, 1.1, 1}}
	q, err := geometry.NewFluxSurfaceQuantity(theta, true, types.InterpLinear, cellValues, cellValues)
	if err != nil {
		t.Fatalf("NewFluxSurfaceQuantity: %v", err)
	}
	samples, err := SampleB(q, 0, theta)
	if err != nil {
		t.Fatalf("SampleB: %v", err)
	}
	path := filepath.Join(t.TempDir(), "b.png")
	if err := PlotB(samples, path); err != nil {
		t.Fatalf("PlotB: %v", err)
	}
}
