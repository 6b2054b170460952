package fci

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/jlatone/ltdmrg/ensemble"
	"github.com/jlatone/ltdmrg/fcidump"
	"github.com/jlatone/ltdmrg/mat"
	"github.com/jlatone/ltdmrg/pointgroup"
)

func TestAnticommutation(t *testing.T) {
	t.Parallel()
	const norb = 2
	dim := pow4(norb)

	ops := make([]*mat.COO, 0, 2*norb)
	for p := 0; p < norb; p++ {
		for _, s := range []fcidump.Spin{fcidump.Alpha, fcidump.Beta} {
			ops = append(ops, annihilate(norb, p, s))
		}
	}

	for i, x := range ops {
		for j, y := range ops {
			// {c_i, c_j} = 0.
			anti := x.Mul(y)
			anti.Add(1, y.Mul(x))
			if anti.NumNonZero() != 0 {
				t.Fatalf("{c_%d, c_%d} != 0", i, j)
			}

			// {c_i, c+_j} = delta_ij.
			anti = x.Mul(y.T())
			anti.Add(1, y.T().Mul(x))
			want := 0
			if i == j {
				want = dim
			}
			if anti.NumNonZero() != want {
				t.Fatalf("{c_%d, c+_%d}: %d non-zeros", i, j, anti.NumNonZero())
			}
			if i == j {
				for k := 0; k < dim; k++ {
					if anti.At(k, k) != 1 {
						t.Fatalf("%f", anti.At(k, k))
					}
				}
			}
		}
	}
}

func TestSingleOrbital(t *testing.T) {
	t.Parallel()
	// One orbital with h11 = -0.5 and (11|11) = 1 has the exact spectrum
	// 0, -0.5, -0.5, 0 over the four occupation states.
	d := fcidump.NewRestricted(1, 1, 0, 1, []int{1})
	d.SetOneBody(fcidump.Alpha, 0, 0, -0.5)
	d.SetTwoBody(fcidump.AA, 0, 0, 0, 0, 1)

	targets := make([]ensemble.Target, 0)
	for na := 0; na <= 1; na++ {
		for nb := 0; nb <= 1; nb++ {
			targets = append(targets, ensemble.Target{NElec: na + nb, TwoSz: na - nb})
		}
	}

	s := New(d, pointgroup.C1)
	states, err := s.Solve(context.Background(), targets, 10, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(states) != 4 {
		t.Fatalf("%d", len(states))
	}

	wantEnergies := []float64{-0.5, -0.5, 0, 0}
	for i, st := range states {
		if math.Abs(st.Energy-wantEnergies[i]) > 1e-12 {
			t.Fatalf("%d %f", i, st.Energy)
		}
	}
	// The two degenerate ground states are the single-electron sectors.
	if states[0].NElec != 1 || states[1].NElec != 1 {
		t.Fatalf("%#v", states)
	}

	// The doubly occupied state has <c+a c+b c_b c_a> = 1.
	var double int
	for i, st := range states {
		if st.NElec == 2 {
			double = i
		}
	}
	dm2, err := s.TwoPDM(context.Background(), double)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if v := dm2.At(0, 1, 1, 0); math.Abs(v-1) > 1e-12 {
		t.Fatalf("%f", v)
	}

	dm1, err := s.OnePDM(context.Background(), double)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if math.Abs(dm1.At(0, 0)-1) > 1e-12 || math.Abs(dm1.At(1, 1)-1) > 1e-12 {
		t.Fatalf("%f %f", dm1.At(0, 0), dm1.At(1, 1))
	}
}

// hubbardDimer is a two site Hubbard model with hopping t and repulsion u,
// expressed as an integral set.
func hubbardDimer(tHop, u float64) *fcidump.FCIDUMP {
	d := fcidump.NewRestricted(2, 2, 0, 1, []int{1, 1})
	d.SetOneBody(fcidump.Alpha, 0, 1, -tHop)
	d.SetTwoBody(fcidump.AA, 0, 0, 0, 0, u)
	d.SetTwoBody(fcidump.AA, 1, 1, 1, 1, u)
	return d
}

func halfFillingTargets(norb, nelec int) []ensemble.Target {
	targets := make([]ensemble.Target, 0)
	for na := 0; na <= norb; na++ {
		for nb := 0; nb <= norb; nb++ {
			targets = append(targets, ensemble.Target{NElec: na + nb, TwoSz: na - nb})
		}
	}
	return targets
}

func TestHubbardDimer(t *testing.T) {
	t.Parallel()
	tests := []struct {
		tHop float64
		u    float64
	}{
		{tHop: 1, u: 4},
		{tHop: 0.5, u: 1},
		{tHop: 1, u: 0},
	}
	for _, test := range tests {
		test := test
		t.Run(fmt.Sprintf("%f %f", test.tHop, test.u), func(t *testing.T) {
			t.Parallel()
			d := hubbardDimer(test.tHop, test.u)
			s := New(d, pointgroup.C1)
			states, err := s.Solve(context.Background(),
				[]ensemble.Target{{NElec: 2, TwoSz: 0}}, 4, 0)
			if err != nil {
				t.Fatalf("%+v", err)
			}

			// The exact singlet ground energy of the Hubbard dimer.
			want := (test.u - math.Sqrt(test.u*test.u+16*test.tHop*test.tHop)) / 2
			if math.Abs(states[0].Energy-want) > 1e-10 {
				t.Fatalf("%f, expected %f", states[0].Energy, want)
			}
		})
	}
}

// TestEnergyFromDensityMatrices recomputes each eigenvalue by contracting
// the density matrices with the integrals,
//
//	E = E_core + sum_pq h_pq gamma_pq + 1/2 sum_pqru (pq|ru) Gamma_pqru,
//
// which exercises the one- and two-particle density matrices against an
// independent path.
func TestEnergyFromDensityMatrices(t *testing.T) {
	t.Parallel()
	d := hubbardDimer(0.7, 2.5)
	d.ECore = 0.3
	d.SetOneBody(fcidump.Alpha, 0, 0, -0.2)
	d.SetTwoBody(fcidump.AA, 0, 1, 0, 1, 0.1)

	s := New(d, pointgroup.C1)
	states, err := s.Solve(context.Background(), halfFillingTargets(2, 2), 100, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(states) != 16 {
		t.Fatalf("%d", len(states))
	}

	ctx := context.Background()
	for i, st := range states {
		dm1, err := s.OnePDM(ctx, i)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		dm2, err := s.TwoPDM(ctx, i)
		if err != nil {
			t.Fatalf("%+v", err)
		}

		e := d.ECore
		for _, sp := range []int{0, 1} {
			for p := 0; p < 2; p++ {
				for q := 0; q < 2; q++ {
					e += d.OneBody(fcidump.Alpha, p, q) * dm1.At(2*p+sp, 2*q+sp)
				}
			}
		}
		for p := 0; p < 2; p++ {
			for q := 0; q < 2; q++ {
				for r := 0; r < 2; r++ {
					for u := 0; u < 2; u++ {
						g := d.TwoBody(fcidump.AA, p, q, r, u)
						if g == 0 {
							continue
						}
						for _, sp := range []int{0, 1} {
							for _, tp := range []int{0, 1} {
								e += g / 2 * dm2.At(2*p+sp, 2*r+tp, 2*u+tp, 2*q+sp)
							}
						}
					}
				}
			}
		}

		if math.Abs(e-st.Energy) > 1e-9 {
			t.Fatalf("state %d: %f, expected %f", i, e, st.Energy)
		}
	}
}

func TestOneNPC(t *testing.T) {
	t.Parallel()
	d := hubbardDimer(1, 4)
	s := New(d, pointgroup.C1)
	states, err := s.Solve(context.Background(),
		[]ensemble.Target{{NElec: 2, TwoSz: 0}}, 4, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	npc, err := s.OneNPC(context.Background(), 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	// For an N-electron eigenstate, sum_q <N_p N_q> = N <N_p>.
	dm1, err := s.OnePDM(context.Background(), 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	n := float64(states[0].NElec)
	for p := 0; p < 4; p++ {
		var rowSum float64
		for q := 0; q < 4; q++ {
			rowSum += npc.At(p, q)
		}
		if math.Abs(rowSum-n*dm1.At(p, p)) > 1e-10 {
			t.Fatalf("%d %f %f", p, rowSum, n*dm1.At(p, p))
		}
	}
}

func TestSolveFiltersAndTruncates(t *testing.T) {
	t.Parallel()
	d := hubbardDimer(1, 4)
	s := New(d, pointgroup.C1)

	// Only the Sz = +1 triplet component.
	states, err := s.Solve(context.Background(),
		[]ensemble.Target{{NElec: 2, TwoSz: 2}}, 100, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(states) != 1 {
		t.Fatalf("%d", len(states))
	}
	if states[0].NElec != 2 || states[0].TwoSz != 2 {
		t.Fatalf("%#v", states[0])
	}

	// Truncation keeps the lowest nroots.
	all, err := s.Solve(context.Background(), halfFillingTargets(2, 2), 3, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(all) != 3 {
		t.Fatalf("%d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Energy < all[i-1].Energy {
			t.Fatalf("%#v", all)
		}
	}
}

func TestChemicalPotentialShift(t *testing.T) {
	t.Parallel()
	d := hubbardDimer(1, 4)
	s := New(d, pointgroup.C1)

	plain, err := s.Solve(context.Background(), halfFillingTargets(2, 2), 100, 0)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	shifted, err := s.Solve(context.Background(), halfFillingTargets(2, 2), 100, -0.75)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	// E(mu) = E(0) - mu*N state by state.
	byKey := func(states []ensemble.State) map[string][]float64 {
		m := make(map[string][]float64)
		for _, st := range states {
			key := fmt.Sprintf("%d %d", st.NElec, st.TwoSz)
			m[key] = append(m[key], st.Energy)
		}
		return m
	}
	p, q := byKey(plain), byKey(shifted)
	for key, es := range p {
		var nelec int
		fmt.Sscanf(key, "%d", &nelec)
		for i, e := range es {
			want := e + 0.75*float64(nelec)
			if math.Abs(q[key][i]-want) > 1e-10 {
				t.Fatalf("%s %f %f", key, q[key][i], want)
			}
		}
	}
}

func TestNumberConservation(t *testing.T) {
	t.Parallel()
	dump := hubbardDimer(1, 4)
	s := New(dump, pointgroup.D2h)
	h := hamiltonian(dump, s.anns)
	n := number(dump.NOrb, s.anns)

	// H commutes with the total particle number.
	comm := h.Mul(n)
	comm.Add(-1, n.Mul(h))
	for _, e := range comm.Data {
		if math.Abs(e.V) > 1e-10 {
			t.Fatalf("%#v", e)
		}
	}
}
