// Package dreicer evaluates the Dreicer runaway generation rate by two
// independent models, as spec.md's scenario S5 requires both be
// shipped: the classical Connor-Hastie analytic closed form, and the
// feed-forward neural network of Hesslow et al (2019), J Plasma Phys
// 86, transcribed verbatim from DreicerNeuralNetwork.cpp (itself based
// on the original Matlab network at github.com/unnerfelt/dreicer-nn).
package dreicer

import "math"

// Inputs bundles the per-radius plasma parameters both Dreicer models
// need.
type Inputs struct {
	Efield       float64 // electric field strength, V/m
	NFree        float64 // free electron density, m^-3
	NTot         float64 // total electron density, m^-3
	TCold        float64 // electron temperature, eV
	EDreicer     float64 // Dreicer field, V/m
	TauEETh      float64 // thermal electron collision time, s
	Zeff, Zeff0  float64
	Z0Z, Z0OverZ float64
}

// ConnorHastieRate returns the classical Connor-Hastie analytic
// Dreicer runaway rate, dn_RE/dt per unit volume, in the standard
// simplified closed form (Connor & Hastie, Nucl. Fusion 15 (1975) 415):
//
//	dnRE/dt = n_e/tau_ee * (E/ED)^(-3(Zeff+1)/16) * exp(-ED/(4E) - sqrt((Zeff+1)*ED/E))
//
// Only the ConnorHastie.hpp header (method signatures, no formula) was
// present in the retrieved reference material, so the textbook
// closed form is used directly rather than transcribed.
func ConnorHastieRate(in Inputs) float64 {
	if in.EDreicer <= 0 || in.TauEETh <= 0 {
		return 0
	}
	ehat := math.Abs(in.Efield) / in.EDreicer
	if ehat <= 0 {
		return 0
	}
	exponent := -3 * (in.Zeff + 1) / 16
	return in.NFree / in.TauEETh * math.Pow(ehat, exponent) *
		math.Exp(-1/(4*ehat)-math.Sqrt((in.Zeff+1)/ehat))
}

// IsApplicable reports whether the neural network may be evaluated at
// temperature T (eV): it was trained on T in [1, 20000] eV.
func IsApplicable(tEV float64) bool {
	return tEV >= 1 && tEV <= 20e3
}

// NetworkRate evaluates the Hesslow et al (2019) neural-network
// Dreicer rate.
func NetworkRate(in Inputs) float64 {
	if in.EDreicer <= 0 || in.TauEETh <= 0 || in.NTot <= 0 {
		return 0
	}
	logNfree := math.Log(in.NFree)
	freeOverTot := in.NFree / in.NTot
	logTheta := math.Log(in.TCold / electronRestEnergyEV)
	eed := math.Abs(in.Efield) / in.EDreicer

	rr := runawayRateDerivedParams(eed, logTheta, in.Zeff, in.Zeff0, in.Z0Z, in.Z0OverZ, logNfree, freeOverTot)
	return 4.0 / (3.0 * math.Sqrt(math.Pi)) * (in.NFree / in.TauEETh) * rr
}

const electronRestEnergyEV = 510998.95

// runawayRateDerivedParams runs the 8-20-20-20-20-1 feed-forward
// network on the eight derived inputs, in the exact order the
// original model expects: {Zeff, Zeff0, Z0_Z, ZZ0, logNfree,
// nfree_ntot, EED, logTheta}.
func runawayRateDerivedParams(eed, logTheta, zeff, zeff0, zz0, z0OverZ, logNfree, freeOverTot float64) float64 {
	input := [8]float64{zeff, zeff0, z0OverZ, zz0, logNfree, freeOverTot, eed, logTheta}
	for i := range input {
		input[i] = (input[i] - inputMean[i]) / inputStd[i]
	}

	var x1, x2 [20]float64
	nnLayer(20, 8, w1[:], input[:], b1[:], x1[:], true)
	nnLayer(20, 20, w2[:], x1[:], b2[:], x2[:], true)
	nnLayer(20, 20, w3[:], x2[:], b3[:], x1[:], true)
	nnLayer(20, 20, w4[:], x1[:], b4[:], x2[:], true)
	var out [1]float64
	nnLayer(1, 20, w5[:], x2[:], b5[:], out[:], false)

	return math.Exp(out[0]*outputStd[0] + outputMean[0])
}

// nnLayer evaluates out[i] = tanh(sum_j W[i*ncols+j]*x[j] + b[i]),
// skipping the tanh on the network's final layer.
func nnLayer(nrows, ncols int, w, x, b, out []float64, applyTanh bool) {
	for i := 0; i < nrows; i++ {
		v := 0.0
		for j := 0; j < ncols; j++ {
			v += w[i*ncols+j] * x[j]
		}
		v += b[i]
		if applyTanh {
			v = math.Tanh(v)
		}
		out[i] = v
	}
}
