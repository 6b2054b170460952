// Package fci is an exact diagonalization backend for small molecular
// Hamiltonians. It serves as the reference solver behind the orchestration
// layer; production-scale systems are handled by an external tensor network
// engine implementing the same interface.
//
// Operators are assembled as Kronecker products over spatial orbital sites,
// each carrying the four occupation states |0>, |a>, |b>, |ab>, with
// Jordan-Wigner parity strings supplying fermionic anticommutation across
// sites.
package fci

import (
	"github.com/jlatone/ltdmrg/fcidump"
	"github.com/jlatone/ltdmrg/mat"
)

// siteStates is the local dimension of one spatial orbital.
const siteStates = 4

var (
	siteIdentity = mat.M([][]float64{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	})
	// siteParity is (-1)^(na+nb), the Jordan-Wigner string factor.
	siteParity = mat.M([][]float64{
		{1, 0, 0, 0},
		{0, -1, 0, 0},
		{0, 0, -1, 0},
		{0, 0, 0, 1},
	})
	// siteAnnAlpha annihilates the alpha electron of a site. In the local
	// ordering |0>, |a>, |b>, |ab> with creation operators applied alpha
	// first, no sign arises.
	siteAnnAlpha = mat.M([][]float64{
		{0, 1, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 1},
		{0, 0, 0, 0},
	})
	// siteAnnBeta picks up a sign on doubly occupied sites from
	// anticommuting past the alpha creation operator.
	siteAnnBeta = mat.M([][]float64{
		{0, 0, 1, 0},
		{0, 0, 0, -1},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})
)

// annihilate builds the annihilation operator of orbital p and spin s over
// norb sites. Site 0 is the leftmost Kronecker factor.
func annihilate(norb, p int, s fcidump.Spin) *mat.COO {
	site := siteAnnAlpha
	if s == fcidump.Beta {
		site = siteAnnBeta
	}

	op := mat.Scalar(1)
	for q := 0; q < norb; q++ {
		switch {
		case q < p:
			op.Kron(siteParity)
		case q == p:
			op.Kron(site)
		default:
			op.Kron(siteIdentity)
		}
	}
	return op
}

// occupations decodes a basis index into per-spin-orbital occupation
// numbers, spin orbital 2*p+s for orbital p and spin s.
func occupations(norb, index int, occ []int) []int {
	occ = occ[:0]
	for p := 0; p < norb; p++ {
		digit := index / pow4(norb-1-p) % siteStates
		occ = append(occ, digit&1, digit>>1&1)
	}
	return occ
}

func pow4(n int) int {
	return 1 << (2 * n)
}
