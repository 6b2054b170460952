package fci

import (
	"github.com/jlatone/ltdmrg/fcidump"
	"github.com/jlatone/ltdmrg/mat"
)

// hamiltonian assembles the full Fock space Hamiltonian
//
//	H = E_core + sum_{s,pq} h_pq c+_ps c_qs
//	  + 1/2 sum_{st,pqrs} (pq|rs) c+_ps c+_rt c_st c_qs
//
// from the integrals, using the one-body operators E^s_pq = c+_ps c_qs and
// the identity c+_p c+_r c_s c_q = E_pq E_rs - delta_{qr} E_ps for equal
// spins.
func hamiltonian(dump *fcidump.FCIDUMP, anns []*mat.COO) *mat.COO {
	norb := dump.NOrb
	dim := pow4(norb)

	// e[s][p][q] = c+_ps c_qs.
	e := [2][][]*mat.COO{}
	for s := range e {
		e[s] = make([][]*mat.COO, norb)
		for p := 0; p < norb; p++ {
			e[s][p] = make([]*mat.COO, norb)
			cp := anns[2*p+s].T()
			for q := 0; q < norb; q++ {
				e[s][p][q] = cp.Mul(anns[2*q+s])
			}
		}
	}

	acc := make(map[[2]int]float64)
	accumulate := func(c float64, a *mat.COO) {
		if c == 0 {
			return
		}
		for _, av := range a.Data {
			acc[[2]int{av.Row, av.Col}] += c * av.V
		}
	}

	for _, s := range []fcidump.Spin{fcidump.Alpha, fcidump.Beta} {
		for p := 0; p < norb; p++ {
			for q := 0; q < norb; q++ {
				accumulate(dump.OneBody(s, p, q), e[s][p][q])
			}
		}
	}

	for _, s := range []fcidump.Spin{fcidump.Alpha, fcidump.Beta} {
		for _, t := range []fcidump.Spin{fcidump.Alpha, fcidump.Beta} {
			for p := 0; p < norb; p++ {
				for q := 0; q < norb; q++ {
					for r := 0; r < norb; r++ {
						for u := 0; u < norb; u++ {
							v := twoBody(dump, s, t, p, q, r, u)
							if v == 0 {
								continue
							}
							accumulate(v/2, e[s][p][q].Mul(e[t][r][u]))
							if s == t && q == r {
								accumulate(-v/2, e[s][p][u])
							}
						}
					}
				}
			}
		}
	}

	if dump.ECore != 0 {
		accumulate(dump.ECore, mat.Identity(dim))
	}
	return mat.FromMap(dim, dim, acc)
}

// twoBody returns (pq|rs) with pq of spin s and rs of spin t.
func twoBody(dump *fcidump.FCIDUMP, s, t fcidump.Spin, p, q, r, u int) float64 {
	if dump.Restricted {
		return dump.TwoBody(fcidump.AA, p, q, r, u)
	}
	switch {
	case s == fcidump.Alpha && t == fcidump.Alpha:
		return dump.TwoBody(fcidump.AA, p, q, r, u)
	case s == fcidump.Beta && t == fcidump.Beta:
		return dump.TwoBody(fcidump.BB, p, q, r, u)
	case s == fcidump.Alpha:
		return dump.TwoBody(fcidump.AB, p, q, r, u)
	default:
		// (pq|rs) with pq beta, rs alpha is the bra-ket swap of the ab block.
		return dump.TwoBody(fcidump.AB, r, u, p, q)
	}
}

// number builds the total particle number operator.
func number(norb int, anns []*mat.COO) *mat.COO {
	dim := pow4(norb)
	acc := make(map[[2]int]float64)
	for so := 0; so < 2*norb; so++ {
		n := anns[so].T().Mul(anns[so])
		for _, v := range n.Data {
			acc[[2]int{v.Row, v.Col}] += v.V
		}
	}
	return mat.FromMap(dim, dim, acc)
}
