package dreicer

import "testing"

func baseInputs() Inputs {
	return Inputs{
		Efield:   5.0,
		NFree:    1e20,
		NTot:     1e20,
		TCold:    100,
		EDreicer: 1.0,
		TauEETh:  1e-4,
		Zeff:     1,
		Zeff0:    1,
		Z0Z:      1,
		Z0OverZ:  1,
	}
}

func TestConnorHastieRateIsPositiveAboveDreicerField(t *testing.T) {
	rate := ConnorHastieRate(baseInputs())
	if rate <= 0 {
		t.Fatalf("ConnorHastieRate = %v, want > 0 for E > ED", rate)
	}
}

func TestConnorHastieRateZeroWithoutDreicerField(t *testing.T) {
	in := baseInputs()
	in.EDreicer = 0
	if rate := ConnorHastieRate(in); rate != 0 {
		t.Errorf("ConnorHastieRate = %v, want 0 when EDreicer <= 0", rate)
	}
}

func TestConnorHastieRateIncreasesWithField(t *testing.T) {
	// Near E/ED ~ O(1), increasing the field increases the rate; the
	// simplified closed form is not monotonic out to arbitrarily large
	// E/ED (the power-law prefactor eventually dominates the saturating
	// exponential), so this compares two points still within the
	// formula's intended near-threshold validity range.
	low, high := baseInputs(), baseInputs()
	low.Efield, high.Efield = 2.0, 5.0
	if ConnorHastieRate(high) <= ConnorHastieRate(low) {
		t.Errorf("rate should increase with E/ED near threshold: low=%v high=%v", ConnorHastieRate(low), ConnorHastieRate(high))
	}
}

func TestIsApplicableRange(t *testing.T) {
	cases := []struct {
		t    float64
		want bool
	}{
		{0.5, false},
		{1, true},
		{100, true},
		{20000, true},
		{20001, false},
	}
	for _, c := range cases {
		if got := IsApplicable(c.t); got != c.want {
			t.Errorf("IsApplicable(%v) = %v, want %v", c.t, got, c.want)
		}
	}
}

func TestNetworkRateIsPositiveAndFinite(t *testing.T) {
	rate := NetworkRate(baseInputs())
	if rate <= 0 {
		t.Fatalf("NetworkRate = %v, want > 0", rate)
	}
}

func TestNetworkRateZeroWithoutDensityOrField(t *testing.T) {
	in := baseInputs()
	in.NTot = 0
	if rate := NetworkRate(in); rate != 0 {
		t.Errorf("NetworkRate = %v, want 0 when NTot <= 0", rate)
	}
	in = baseInputs()
	in.EDreicer = 0
	if rate := NetworkRate(in); rate != 0 {
		t.Errorf("NetworkRate = %v, want 0 when EDreicer <= 0", rate)
	}
}
