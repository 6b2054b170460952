// Package fcidump reads and writes FCIDUMP electronic integral files.
//
// The format consists of a Fortran namelist header followed by one record
// per non-zero integral:
//
//	&FCI NORB=  6,NELEC=  6,MS2= 0,
//	 ORBSYM=1,1,1,1,1,1,
//	 ISYM=1,
//	&END
//	 0.479497626542E+00    1    1    1    1
//	...
//
// Two-electron integrals (ij|kl) are in chemist notation with 1-based
// indices; records with k=l=0 are one-electron integrals, and the record
// with all indices zero is the core energy. Unrestricted files (IUHF=1)
// carry the integral blocks aa, bb, ab, a, b, core in that order, delimited
// by zero records.
//
// References:
//   - Knowles and Handy, Comput. Phys. Commun. 54 (1989) 75.
package fcidump

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Spin is the z-projection of a single electron spin.
type Spin int

const (
	Alpha Spin = iota
	Beta
)

// SpinPair labels a block of two-electron integrals.
type SpinPair int

const (
	AA SpinPair = iota
	BB
	AB
)

// FCIDUMP holds the one- and two-electron integrals of a quantum chemistry
// Hamiltonian, together with its symmetry metadata.
type FCIDUMP struct {
	NOrb       int
	NElec      int
	TwoS       int
	ISym       int
	OrbSym     []int // 1-based Molpro irrep numbers, one per orbital.
	ECore      float64
	Restricted bool

	// h1e is packed lower triangular, one block per spin.
	// Restricted dumps hold a single block.
	h1e [][]float64
	// g2e blocks are aa or aa, bb, ab.
	g2e []*twoBody
}

// NewRestricted returns an empty restricted integral set.
func NewRestricted(norb, nelec, twos, isym int, orbSym []int) *FCIDUMP {
	d := &FCIDUMP{
		NOrb: norb, NElec: nelec, TwoS: twos, ISym: isym,
		OrbSym: orbSym, Restricted: true,
	}
	d.h1e = [][]float64{make([]float64, norb*(norb+1)/2)}
	d.g2e = []*twoBody{newTwoBody(norb, true)}
	return d
}

// NewUnrestricted returns an empty unrestricted integral set.
func NewUnrestricted(norb, nelec, twos, isym int, orbSym []int) *FCIDUMP {
	d := &FCIDUMP{
		NOrb: norb, NElec: nelec, TwoS: twos, ISym: isym,
		OrbSym: orbSym, Restricted: false,
	}
	tri := norb * (norb + 1) / 2
	d.h1e = [][]float64{make([]float64, tri), make([]float64, tri)}
	d.g2e = []*twoBody{newTwoBody(norb, true), newTwoBody(norb, true), newTwoBody(norb, false)}
	return d
}

// InitializeRestricted fills a restricted integral set from dense arrays.
// h1e is norb x norb and must be symmetric to within tol, g2e is the full
// chemist-notation tensor flattened in row-major (ij|kl) order. Elements
// smaller than tol are dropped.
func InitializeRestricted(nelec, twos, isym int, orbSym []int, ecore float64, h1e [][]float64, g2e []float64, tol float64) (*FCIDUMP, error) {
	norb := len(h1e)
	d := NewRestricted(norb, nelec, twos, isym, orbSym)
	d.ECore = ecore
	if err := d.fillOneBody(Alpha, h1e, tol); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := d.fillTwoBody(AA, g2e, tol); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return d, nil
}

// InitializeUnrestricted fills an unrestricted integral set from dense
// arrays, one h1e block per spin and the g2e blocks aa, bb, ab.
func InitializeUnrestricted(nelec, twos, isym int, orbSym []int, ecore float64, h1e [2][][]float64, g2e [3][]float64, tol float64) (*FCIDUMP, error) {
	norb := len(h1e[0])
	d := NewUnrestricted(norb, nelec, twos, isym, orbSym)
	d.ECore = ecore
	for s, block := range h1e {
		if err := d.fillOneBody(Spin(s), block, tol); err != nil {
			return nil, errors.Wrap(err, "")
		}
	}
	for sp, block := range g2e {
		if err := d.fillTwoBody(SpinPair(sp), block, tol); err != nil {
			return nil, errors.Wrap(err, "")
		}
	}
	return d, nil
}

func (d *FCIDUMP) fillOneBody(s Spin, h [][]float64, tol float64) error {
	for i := 0; i < d.NOrb; i++ {
		for j := 0; j <= i; j++ {
			if math.Abs(h[i][j]-h[j][i]) >= tol {
				return errors.Errorf("h1e not symmetric at %d %d: %v %v", i, j, h[i][j], h[j][i])
			}
			v := h[i][j]
			if math.Abs(v) < tol {
				v = 0
			}
			d.SetOneBody(s, i, j, v)
		}
	}
	return nil
}

func (d *FCIDUMP) fillTwoBody(sp SpinPair, g []float64, tol float64) error {
	n := d.NOrb
	if len(g) != n*n*n*n {
		return errors.Errorf("%d %d", len(g), n*n*n*n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				for l := 0; l < n; l++ {
					v := g[((i*n+j)*n+k)*n+l]
					if math.Abs(v) < tol {
						continue
					}
					d.SetTwoBody(sp, i, j, k, l, v)
				}
			}
		}
	}
	return nil
}

func (d *FCIDUMP) oneBodyBlock(s Spin) []float64 {
	if d.Restricted {
		return d.h1e[0]
	}
	return d.h1e[s]
}

// OneBody returns the one-electron integral h_ij with 0-based indices.
func (d *FCIDUMP) OneBody(s Spin, i, j int) float64 {
	if j > i {
		i, j = j, i
	}
	return d.oneBodyBlock(s)[i*(i+1)/2+j]
}

// SetOneBody sets the one-electron integral h_ij with 0-based indices.
func (d *FCIDUMP) SetOneBody(s Spin, i, j int, v float64) {
	if j > i {
		i, j = j, i
	}
	d.oneBodyBlock(s)[i*(i+1)/2+j] = v
}

func (d *FCIDUMP) twoBodyBlock(sp SpinPair) *twoBody {
	if d.Restricted {
		return d.g2e[0]
	}
	return d.g2e[sp]
}

// TwoBody returns the two-electron integral (ij|kl) in chemist notation with
// 0-based indices. For the AB block, ij belong to alpha and kl to beta.
func (d *FCIDUMP) TwoBody(sp SpinPair, i, j, k, l int) float64 {
	return d.twoBodyBlock(sp).at(i, j, k, l)
}

// SetTwoBody sets (ij|kl) and all its permutational images.
func (d *FCIDUMP) SetTwoBody(sp SpinPair, i, j, k, l int, v float64) {
	d.twoBodyBlock(sp).set(i, j, k, l, v)
}

// Reorder permutes the orbitals of the integral set in place, such that new
// orbital i is old orbital perm[i]. OrbSym is permuted consistently.
func (d *FCIDUMP) Reorder(perm []int) {
	if len(perm) != d.NOrb {
		panic(fmt.Sprintf("%d %d", len(perm), d.NOrb))
	}
	n := d.NOrb

	orbSym := make([]int, n)
	for i := range perm {
		orbSym[i] = d.OrbSym[perm[i]]
	}
	d.OrbSym = orbSym

	h1e := make([][]float64, len(d.h1e))
	for s := range d.h1e {
		h1e[s] = make([]float64, n*(n+1)/2)
	}
	g2e := make([]*twoBody, len(d.g2e))
	for sp := range d.g2e {
		g2e[sp] = newTwoBody(n, d.g2e[sp].bra8)
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			for s := range d.h1e {
				h1e[s][i*(i+1)/2+j] = d.h1e[s][packTri(perm[i], perm[j])]
			}
		}
	}
	for sp := range d.g2e {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				for k := 0; k < n; k++ {
					for l := 0; l < n; l++ {
						v := d.g2e[sp].at(perm[i], perm[j], perm[k], perm[l])
						if v != 0 {
							g2e[sp].set(i, j, k, l, v)
						}
					}
				}
			}
		}
	}
	d.h1e = h1e
	d.g2e = g2e
}

func packTri(i, j int) int {
	if j > i {
		i, j = j, i
	}
	return i*(i+1)/2 + j
}

// twoBody stores a block of two-electron integrals with permutational
// symmetry resolved at access time. Same-spin blocks have the full 8-fold
// symmetry; the cross-spin block lacks the bra-ket swap and has 4-fold.
type twoBody struct {
	n    int
	bra8 bool
	data []float64
}

func newTwoBody(n int, bra8 bool) *twoBody {
	return &twoBody{n: n, bra8: bra8, data: make([]float64, n*n*n*n)}
}

func (t *twoBody) idx(i, j, k, l int) int {
	return ((i*t.n+j)*t.n+k)*t.n + l
}

func (t *twoBody) at(i, j, k, l int) float64 {
	return t.data[t.idx(i, j, k, l)]
}

func (t *twoBody) set(i, j, k, l int, v float64) {
	for _, p := range t.images(i, j, k, l) {
		t.data[t.idx(p[0], p[1], p[2], p[3])] = v
	}
}

func (t *twoBody) images(i, j, k, l int) [][4]int {
	ps := [][4]int{{i, j, k, l}, {j, i, k, l}, {i, j, l, k}, {j, i, l, k}}
	if t.bra8 {
		ps = append(ps, [4]int{k, l, i, j}, [4]int{l, k, i, j}, [4]int{k, l, j, i}, [4]int{l, k, j, i})
	}
	return ps
}
