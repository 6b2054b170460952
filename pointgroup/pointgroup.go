// Package pointgroup handles molecular point group symmetry labels.
//
// Irreducible representations arrive in the Molpro convention used by FCIDUMP
// files, where irreps are numbered from 1 in a group-specific order. For
// tensor network calculations they are mapped to a binary encoding in which
// the direct product of two irreps is their bitwise XOR.
package pointgroup

import (
	"slices"

	"github.com/pkg/errors"
)

// Irrep is an irreducible representation in the XOR encoding.
type Irrep uint8

// Product returns the direct product of two irreps.
func Product(a, b Irrep) Irrep {
	return a ^ b
}

// Group is a supported molecular point group.
type Group int

const (
	D2h Group = iota
	C1
)

var (
	// d2hLabels is the Molpro irrep ordering of D2h, indexed from zero.
	d2hLabels = []string{"Ag", "B3u", "B2u", "B1g", "B1u", "B2g", "B3g", "Au"}
	// d2hOptimal is the irrep ordering that keeps coupled orbitals adjacent,
	// which shortens the interaction range seen by sweep algorithms.
	d2hOptimal = []string{"Ag", "B1u", "B3u", "B2g", "B2u", "B3g", "B1g", "Au"}
	// d2hXOR maps Molpro irrep numbers 1-8 to the XOR encoding,
	// in which Ag=0, B1g=1, B2g=2, B3g=3, Au=4, B1u=5, B2u=6, B3u=7.
	d2hXOR = []Irrep{0, 7, 6, 1, 5, 2, 3, 4}

	c1Labels = []string{"A"}
)

// Parse returns the group named by s.
// Only d2h and c1 are supported.
func Parse(s string) (Group, error) {
	switch s {
	case "d2h":
		return D2h, nil
	case "c1":
		return C1, nil
	}
	return -1, errors.Errorf("point group %s not supported yet", s)
}

func (g Group) String() string {
	switch g {
	case D2h:
		return "d2h"
	default:
		return "c1"
	}
}

// Labels returns the irrep labels in the Molpro ordering.
func (g Group) Labels() []string {
	switch g {
	case D2h:
		return d2hLabels
	default:
		return c1Labels
	}
}

// XOR maps a 1-based Molpro irrep number to the XOR encoding.
func (g Group) XOR(isym int) Irrep {
	switch g {
	case D2h:
		return d2hXOR[isym-1]
	default:
		return 0
	}
}

// XORAll maps a slice of 1-based Molpro irrep numbers to the XOR encoding.
func (g Group) XORAll(orbSym []int) []Irrep {
	irreps := make([]Irrep, 0, len(orbSym))
	for _, s := range orbSym {
		irreps = append(irreps, g.XOR(s))
	}
	return irreps
}

// optimalRank returns the position of the 1-based Molpro irrep number isym
// in the optimal ordering.
func (g Group) optimalRank(isym int) int {
	switch g {
	case D2h:
		return slices.Index(d2hOptimal, d2hLabels[isym-1])
	default:
		return 0
	}
}

// OptimalOrder returns the permutation that sorts orbitals by the optimal
// irrep ordering. The permutation is to be read as newOrbital[i] =
// oldOrbital[perm[i]], and the sort is stable so that orbitals within an
// irrep keep their energy ordering.
func (g Group) OptimalOrder(orbSym []int) []int {
	perm := make([]int, len(orbSym))
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(a, b int) int {
		return g.optimalRank(orbSym[a]) - g.optimalRank(orbSym[b])
	})
	return perm
}

// Inverse returns the inverse of a permutation.
// Applying the inverse to reordered quantities restores the original order.
func Inverse(perm []int) []int {
	inv := make([]int, len(perm))
	for i, p := range perm {
		inv[p] = i
	}
	return inv
}
