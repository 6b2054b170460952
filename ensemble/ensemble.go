// Package ensemble implements thermal averaging over a computed
// excited-state spectrum.
//
// A finite-temperature expectation value is a Boltzmann-weighted sum over the
// low-lying eigenstates of the grand-canonical Hamiltonian H - mu*N. The
// solver reports each state's eigenvalue together with its quantum numbers;
// this package forms the partition weights and reduces per-state property
// tensors to their ensemble averages.
package ensemble

import (
	"math"

	"github.com/jlatone/ltdmrg/mat"
	"github.com/jlatone/ltdmrg/pointgroup"
	"github.com/pkg/errors"
)

// State is one eigenstate of the spectrum. Energy is the eigenvalue of
// H - mu*N as reported by the solver.
type State struct {
	Energy       float64
	NElec        int
	TwoSz        int
	Irrep        pointgroup.Irrep
	Multiplicity int
}

// Target selects a symmetry sector of the spectrum.
type Target struct {
	NElec int
	TwoSz int
	Irrep pointgroup.Irrep
}

// Matches reports whether the state belongs to the target sector.
func (t Target) Matches(s State) bool {
	return t.NElec == s.NElec && t.TwoSz == s.TwoSz && t.Irrep == s.Irrep
}

// Weights returns the normalized partition weights
//
//	w_i = m_i exp(-beta (E_i - E_min)) / Z
//
// at inverse temperature beta. At beta = 0 the weights are proportional to
// the multiplicities alone.
func Weights(beta float64, states []State) ([]float64, error) {
	if len(states) == 0 {
		return nil, errors.New("empty spectrum")
	}
	if beta < 0 || math.IsNaN(beta) {
		return nil, errors.Errorf("beta %f", beta)
	}

	eMin := math.Inf(1)
	for _, s := range states {
		if math.IsNaN(s.Energy) || math.IsInf(s.Energy, 0) {
			return nil, errors.Errorf("energy %f", s.Energy)
		}
		eMin = math.Min(eMin, s.Energy)
	}

	ws := make([]float64, len(states))
	var z float64
	for i, s := range states {
		if s.Multiplicity <= 0 {
			return nil, errors.Errorf("multiplicity %d", s.Multiplicity)
		}
		ws[i] = float64(s.Multiplicity) * math.Exp(-beta*(s.Energy-eMin))
		z += ws[i]
	}
	if z == 0 || math.IsNaN(z) || math.IsInf(z, 0) {
		return nil, errors.Errorf("partition function %f", z)
	}
	for i := range ws {
		ws[i] /= z
	}
	return ws, nil
}

// Energy returns the ensemble average energy. The chemical potential term
// removed by the solver is restored per state.
func Energy(mu float64, states []State, ws []float64) float64 {
	var e float64
	for i, s := range states {
		e += ws[i] * (s.Energy + mu*float64(s.NElec))
	}
	return e
}

// ParticleNumber returns the ensemble average particle number.
func ParticleNumber(states []State, ws []float64) float64 {
	var n float64
	for i, s := range states {
		n += ws[i] * float64(s.NElec)
	}
	return n
}

// Average returns the weighted sum of per-state tensors.
func Average(ws []float64, tensors []*mat.Dense) (*mat.Dense, error) {
	if len(ws) != len(tensors) {
		return nil, errors.Errorf("%d %d", len(ws), len(tensors))
	}
	if len(tensors) == 0 {
		return nil, errors.New("empty spectrum")
	}
	avg := mat.DenseZeros(tensors[0].Shape()...)
	for i, t := range tensors {
		avg.AddScaled(ws[i], t)
	}
	return avg, nil
}
