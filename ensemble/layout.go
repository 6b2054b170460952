package ensemble

import (
	"fmt"

	"github.com/jlatone/ltdmrg/mat"
	"github.com/pkg/errors"
)

// Solvers report property tensors over spin orbitals, with spin orbital
// 2*i+sigma interleaving orbital i and spin sigma (0 alpha, 1 beta). The
// functions below regroup them into the spin-channel layouts of the output
// contract.

// ErrSpinAdapted2PDM is returned when a two-particle density matrix is
// requested in the spin-adapted representation, which only carries spatial
// information.
var ErrSpinAdapted2PDM = errors.New("two-particle density matrix requires the non-spin-adapted representation")

// AssembleOnePDM regroups a (2n, 2n) spin-orbital one-particle density
// matrix <c+_{i sigma} c_{j tau}> into shape (2, n, n) with channels
// [alpha-alpha, beta-beta]. In the spin-adapted representation both channels
// hold half the spatial density matrix.
func AssembleOnePDM(dm *mat.Dense, spinAdapted bool) *mat.Dense {
	n := spatialDim(dm, 2)
	// (n, 2, n, 2) -> (n, n, 2, 2).
	byChannel := dm.Reshape(n, 2, n, 2).Transpose(0, 2, 1, 3)

	out := mat.DenseZeros(2, n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			aa := byChannel.At(i, j, 0, 0)
			bb := byChannel.At(i, j, 1, 1)
			if spinAdapted {
				spatial := (aa + bb) / 2
				out.SetAt([]int{0, i, j}, spatial)
				out.SetAt([]int{1, i, j}, spatial)
				continue
			}
			out.SetAt([]int{0, i, j}, aa)
			out.SetAt([]int{1, i, j}, bb)
		}
	}
	return out
}

// AssembleNPC regroups a (2n, 2n) spin-orbital particle-number correlation
// <N_{i sigma} N_{j tau}>. Non-spin-adapted output has shape (4, n, n) with
// channels [aa, ab, ba, bb]; spin-adapted output has shape (1, n, n) holding
// the total correlation <N_i N_j>.
func AssembleNPC(npc *mat.Dense, spinAdapted bool) *mat.Dense {
	n := spatialDim(npc, 2)
	byChannel := npc.Reshape(n, 2, n, 2).Transpose(0, 2, 1, 3)

	if spinAdapted {
		out := mat.DenseZeros(1, n, n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				var total float64
				for s := 0; s < 2; s++ {
					for t := 0; t < 2; t++ {
						total += byChannel.At(i, j, s, t)
					}
				}
				out.SetAt([]int{0, i, j}, total)
			}
		}
		return out
	}

	out := mat.DenseZeros(4, n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for s := 0; s < 2; s++ {
				for t := 0; t < 2; t++ {
					out.SetAt([]int{s*2 + t, i, j}, byChannel.At(i, j, s, t))
				}
			}
		}
	}
	return out
}

// AssembleTwoPDM regroups a (2n, 2n, 2n, 2n) spin-orbital two-particle
// density matrix <c+_i c+_j c_k c_l> into shape (3, n, n, n, n) with
// channels [aaaa, abba, bbbb].
func AssembleTwoPDM(dm *mat.Dense, spinAdapted bool) (*mat.Dense, error) {
	if spinAdapted {
		return nil, ErrSpinAdapted2PDM
	}
	n := spatialDim(dm, 4)
	// (n,2,n,2,n,2,n,2) -> (n,n,n,n,2,2,2,2).
	byChannel := dm.Reshape(n, 2, n, 2, n, 2, n, 2).Transpose(0, 2, 4, 6, 1, 3, 5, 7)

	channels := [3][4]int{
		{0, 0, 0, 0},
		{0, 1, 1, 0},
		{1, 1, 1, 1},
	}
	out := mat.DenseZeros(3, n, n, n, n)
	ijkl := make([]int, 8)
	for c, spins := range channels {
		copy(ijkl[4:], spins[:])
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				for k := 0; k < n; k++ {
					for l := 0; l < n; l++ {
						ijkl[0], ijkl[1], ijkl[2], ijkl[3] = i, j, k, l
						out.SetAt([]int{c, i, j, k, l}, byChannel.At(ijkl...))
					}
				}
			}
		}
	}
	return out, nil
}

// ReindexOrbitals applies the restore-index permutation ridx to every
// orbital axis of a channel-first tensor: out[c, i, j, ...] =
// t[c, ridx[i], ridx[j], ...].
func ReindexOrbitals(t *mat.Dense, ridx []int) *mat.Dense {
	axes := make([]int, 0, len(t.Shape())-1)
	for ax := 1; ax < len(t.Shape()); ax++ {
		axes = append(axes, ax)
	}
	return t.Reindex(ridx, axes...)
}

func spatialDim(t *mat.Dense, rank int) int {
	shape := t.Shape()
	if len(shape) != rank {
		panic(fmt.Sprintf("%#v", shape))
	}
	n := shape[0] / 2
	for _, d := range shape {
		if d != 2*n {
			panic(fmt.Sprintf("%#v", shape))
		}
	}
	return n
}
