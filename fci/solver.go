package fci

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/jlatone/ltdmrg/ensemble"
	"github.com/jlatone/ltdmrg/fcidump"
	"github.com/jlatone/ltdmrg/mat"
	"github.com/jlatone/ltdmrg/pointgroup"
	"github.com/pkg/errors"
	gmat "gonum.org/v1/gonum/mat"
)

// Solver diagonalizes the Hamiltonian of an integral set exactly and exposes
// per-state property tensors.
type Solver struct {
	dump   *fcidump.FCIDUMP
	orbSym []pointgroup.Irrep

	norb int
	dim  int
	anns []*mat.COO

	states []eigState
}

type eigState struct {
	// energy is the eigenvalue of H - mu*N.
	energy float64
	vec    []float64
	na     int
	nb     int
	irrep  pointgroup.Irrep
}

// New creates a solver over the integral set. The group maps the orbital
// symmetry metadata to irrep labels.
func New(dump *fcidump.FCIDUMP, group pointgroup.Group) *Solver {
	s := &Solver{
		dump:   dump,
		orbSym: group.XORAll(dump.OrbSym),
		norb:   dump.NOrb,
		dim:    pow4(dump.NOrb),
	}
	s.anns = make([]*mat.COO, 0, 2*s.norb)
	for p := 0; p < s.norb; p++ {
		s.anns = append(s.anns,
			annihilate(s.norb, p, fcidump.Alpha),
			annihilate(s.norb, p, fcidump.Beta))
	}
	return s
}

// Solve diagonalizes H sector by sector, keeps the eigenstates matching the
// targets, shifts their energies by -mu*N, and retains the nroots lowest.
func (s *Solver) Solve(ctx context.Context, targets []ensemble.Target, nroots int, mu float64) ([]ensemble.State, error) {
	if len(targets) == 0 {
		return nil, errors.New("no targets")
	}
	if nroots <= 0 {
		return nil, errors.Errorf("nroots %d", nroots)
	}

	h := hamiltonian(s.dump, s.anns)

	// Particle number and spin are conserved, so H is block diagonal over
	// (na, nb) sectors and each block is diagonalized independently.
	sectors := s.sectors()
	keys := make([][2]int, 0, len(sectors))
	for k := range sectors {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b [2]int) int {
		if a[0] != b[0] {
			return a[0] - b[0]
		}
		return a[1] - b[1]
	})

	s.states = s.states[:0]
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "")
		}
		na, nb := key[0], key[1]
		if !sectorNeeded(targets, na, nb) {
			continue
		}
		basis := sectors[key]

		sub := subMatrix(h, basis)
		var eig gmat.EigenSym
		if !eig.Factorize(sub, true) {
			return nil, errors.Errorf("eigensolve failed in sector %v", key)
		}
		vals := eig.Values(nil)
		var vecs gmat.Dense
		eig.VectorsTo(&vecs)

		occ := make([]int, 0, 2*s.norb)
		for i, val := range vals {
			vec := make([]float64, s.dim)
			for j, f := range basis {
				vec[f] = vecs.At(j, i)
			}
			irrep := s.stateIrrep(vec, occ)
			if !slices.ContainsFunc(targets, func(t ensemble.Target) bool {
				return t.NElec == na+nb && t.TwoSz == na-nb && t.Irrep == irrep
			}) {
				continue
			}
			s.states = append(s.states, eigState{
				energy: val - mu*float64(na+nb),
				vec:    vec,
				na:     na,
				nb:     nb,
				irrep:  irrep,
			})
		}
	}

	slices.SortFunc(s.states, func(a, b eigState) int {
		switch {
		case a.energy < b.energy:
			return -1
		case a.energy > b.energy:
			return 1
		default:
			return 0
		}
	})
	if len(s.states) > nroots {
		s.states = s.states[:nroots]
	}

	out := make([]ensemble.State, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, ensemble.State{
			Energy: st.energy,
			NElec:  st.na + st.nb,
			TwoSz:  st.na - st.nb,
			Irrep:  st.irrep,
			// Each Sz component is enumerated as its own state.
			Multiplicity: 1,
		})
	}
	return out, nil
}

// NumStates returns the number of retained eigenstates.
func (s *Solver) NumStates() int { return len(s.states) }

// OnePDM returns <c+_p c_q> of state i over spin orbitals, shape (2n, 2n).
func (s *Solver) OnePDM(ctx context.Context, i int) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	psi := s.state(i).vec

	applied := make([][]float64, 2*s.norb)
	for a := range applied {
		applied[a] = s.anns[a].MulVec(nil, psi)
	}

	dm := mat.DenseZeros(2*s.norb, 2*s.norb)
	for p := range applied {
		for q := range applied {
			dm.SetAt([]int{p, q}, dot(applied[p], applied[q]))
		}
	}
	return dm, nil
}

// TwoPDM returns <c+_p c+_q c_r c_u> of state i over spin orbitals,
// shape (2n, 2n, 2n, 2n).
func (s *Solver) TwoPDM(ctx context.Context, i int) (*mat.Dense, error) {
	psi := s.state(i).vec
	nso := 2 * s.norb

	// applied[a][b] = c_a c_b |psi>.
	applied := make([][][]float64, nso)
	for a := 0; a < nso; a++ {
		applied[a] = make([][]float64, nso)
	}
	buf := make([]float64, 0, s.dim)
	for b := 0; b < nso; b++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "")
		}
		buf = s.anns[b].MulVec(buf, psi)
		for a := 0; a < nso; a++ {
			applied[a][b] = s.anns[a].MulVec(nil, buf)
		}
	}

	dm := mat.DenseZeros(nso, nso, nso, nso)
	ijkl := make([]int, 4)
	for p := 0; p < nso; p++ {
		for q := 0; q < nso; q++ {
			// (c+_p c+_q)+ = c_q c_p.
			bra := applied[q][p]
			for r := 0; r < nso; r++ {
				for u := 0; u < nso; u++ {
					ijkl[0], ijkl[1], ijkl[2], ijkl[3] = p, q, r, u
					dm.SetAt(ijkl, dot(bra, applied[r][u]))
				}
			}
		}
	}
	return dm, nil
}

// OneNPC returns the particle-number correlation <N_p N_q> of state i over
// spin orbitals, shape (2n, 2n). Number operators are diagonal, so the
// correlation is read directly off the basis amplitudes.
func (s *Solver) OneNPC(ctx context.Context, i int) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	psi := s.state(i).vec
	nso := 2 * s.norb

	npc := mat.DenseZeros(nso, nso)
	occ := make([]int, 0, nso)
	pq := make([]int, 2)
	for f, amp := range psi {
		if amp == 0 {
			continue
		}
		prob := amp * amp
		occ = occupations(s.norb, f, occ)
		for p, op := range occ {
			if op == 0 {
				continue
			}
			for q, oq := range occ {
				if oq == 0 {
					continue
				}
				pq[0], pq[1] = p, q
				npc.SetAt(pq, npc.At(p, q)+prob)
			}
		}
	}
	return npc, nil
}

func (s *Solver) state(i int) eigState {
	if i < 0 || i >= len(s.states) {
		panic(fmt.Sprintf("%d %d", i, len(s.states)))
	}
	return s.states[i]
}

// sectors groups basis indices by (na, nb).
func (s *Solver) sectors() map[[2]int][]int {
	sectors := make(map[[2]int][]int)
	occ := make([]int, 0, 2*s.norb)
	for f := 0; f < s.dim; f++ {
		occ = occupations(s.norb, f, occ)
		var na, nb int
		for p := 0; p < s.norb; p++ {
			na += occ[2*p]
			nb += occ[2*p+1]
		}
		key := [2]int{na, nb}
		sectors[key] = append(sectors[key], f)
	}
	return sectors
}

func sectorNeeded(targets []ensemble.Target, na, nb int) bool {
	return slices.ContainsFunc(targets, func(t ensemble.Target) bool {
		return t.NElec == na+nb && t.TwoSz == na-nb
	})
}

// stateIrrep reads the irrep off the dominant basis determinant, which is
// well defined because H commutes with the point group.
func (s *Solver) stateIrrep(vec []float64, occ []int) pointgroup.Irrep {
	best, bestAmp := 0, 0.0
	for f, amp := range vec {
		if a := math.Abs(amp); a > bestAmp {
			best, bestAmp = f, a
		}
	}
	occ = occupations(s.norb, best, occ)

	var irrep pointgroup.Irrep
	for p := 0; p < s.norb; p++ {
		if occ[2*p] == 1 {
			irrep = pointgroup.Product(irrep, s.orbSym[p])
		}
		if occ[2*p+1] == 1 {
			irrep = pointgroup.Product(irrep, s.orbSym[p])
		}
	}
	return irrep
}

// subMatrix extracts the symmetric submatrix of h over the basis indices.
func subMatrix(h *mat.COO, basis []int) *gmat.SymDense {
	pos := make(map[int]int, len(basis))
	for i, f := range basis {
		pos[f] = i
	}
	sub := gmat.NewSymDense(len(basis), nil)
	for _, v := range h.Data {
		i, ok := pos[v.Row]
		if !ok {
			continue
		}
		j, ok := pos[v.Col]
		if !ok {
			continue
		}
		if j >= i {
			sub.SetSym(i, j, v.V)
		}
	}
	return sub
}

func dot(x, y []float64) float64 {
	var d float64
	for i, xi := range x {
		d += xi * y[i]
	}
	return d
}
