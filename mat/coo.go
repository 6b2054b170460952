// Package mat provides the sparse and dense tensors used to assemble
// second-quantized operators and to store density matrix results.
package mat

import (
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"
)

type Entry struct {
	V   float64
	Row int
	Col int
}

// COO is a sparse matrix in coordinate format.
type COO struct {
	rows int
	cols int
	Data []Entry

	m map[[2]int]float64
}

// M creates a sparse matrix from a dense one.
func M(dense [][]float64) *COO {
	a := Zeros(len(dense), len(dense[0]))
	for i, row := range dense {
		for j, v := range row {
			if v == 0 {
				continue
			}
			a.Data = append(a.Data, Entry{V: v, Row: i, Col: j})
		}
	}
	return a
}

// Zeros creates an empty sparse matrix.
func Zeros(rows, cols int) *COO {
	return &COO{rows: rows, cols: cols, Data: make([]Entry, 0), m: make(map[[2]int]float64)}
}

// FromMap creates a sparse matrix from an accumulation map.
func FromMap(rows, cols int, m map[[2]int]float64) *COO {
	a := Zeros(rows, cols)
	for ij, v := range m {
		if v == 0 {
			continue
		}
		a.Data = append(a.Data, Entry{V: v, Row: ij[0], Col: ij[1]})
	}
	slices.SortFunc(a.Data, rowMajor)
	return a
}

// Identity creates the identity matrix.
func Identity(n int) *COO {
	a := Zeros(n, n)
	for i := 0; i < n; i++ {
		a.Data = append(a.Data, Entry{V: 1, Row: i, Col: i})
	}
	return a
}

// Scalar creates a 1x1 matrix, the unit of the Kronecker product.
func Scalar(v float64) *COO {
	a := Zeros(1, 1)
	if v != 0 {
		a.Data = append(a.Data, Entry{V: v})
	}
	return a
}

func (a *COO) Rows() int { return a.rows }
func (a *COO) Cols() int { return a.cols }

func (a *COO) At(i, j int) float64 {
	a.fillM()
	v := a.m[[2]int{i, j}]
	clear(a.m)
	return v
}

// Kron replaces a with the Kronecker product of a and b.
func (a *COO) Kron(b *COO) {
	data := make([]Entry, 0, len(a.Data)*len(b.Data))
	for _, av := range a.Data {
		for _, bv := range b.Data {
			data = append(data, Entry{
				V:   av.V * bv.V,
				Row: av.Row*b.rows + bv.Row,
				Col: av.Col*b.cols + bv.Col,
			})
		}
	}
	a.rows *= b.rows
	a.cols *= b.cols
	a.Data = data
}

// Add adds c*b to a.
func (a *COO) Add(c float64, b *COO) {
	if a.rows != b.rows || a.cols != b.cols {
		panic(fmt.Sprintf("%d,%d %d,%d", a.rows, a.cols, b.rows, b.cols))
	}
	a.fillM()
	for _, bv := range b.Data {
		a.m[[2]int{bv.Row, bv.Col}] += c * bv.V
	}
	a.fromM()
}

// Scale multiplies a by c.
func (a *COO) Scale(c float64) {
	if c == 0 {
		a.Data = a.Data[:0]
		return
	}
	for i := range a.Data {
		a.Data[i].V *= c
	}
}

// Mul returns the matrix product a@b.
func (a *COO) Mul(b *COO) *COO {
	if a.cols != b.rows {
		panic(fmt.Sprintf("%d,%d %d,%d", a.rows, a.cols, b.rows, b.cols))
	}
	byRow := make(map[int][]Entry)
	for _, bv := range b.Data {
		byRow[bv.Row] = append(byRow[bv.Row], bv)
	}

	p := Zeros(a.rows, b.cols)
	for _, av := range a.Data {
		for _, bv := range byRow[av.Col] {
			p.m[[2]int{av.Row, bv.Col}] += av.V * bv.V
		}
	}
	p.fromM()
	return p
}

// T returns the transpose of a.
func (a *COO) T() *COO {
	b := Zeros(a.cols, a.rows)
	for _, av := range a.Data {
		b.Data = append(b.Data, Entry{V: av.V, Row: av.Col, Col: av.Row})
	}
	slices.SortFunc(b.Data, rowMajor)
	return b
}

// MulVec returns the matrix-vector product a@x in dst.
func (a *COO) MulVec(dst, x []float64) []float64 {
	if len(x) != a.cols {
		panic(fmt.Sprintf("%d %d", len(x), a.cols))
	}
	dst = slices.Grow(dst[:0], a.rows)[:a.rows]
	for i := range dst {
		dst[i] = 0
	}
	for _, av := range a.Data {
		dst[av.Row] += av.V * x[av.Col]
	}
	return dst
}

// NumNonZero returns the number of structurally non-zero entries.
func (a *COO) NumNonZero() int {
	return len(a.Data)
}

// Equal compares two sparse matrices exactly.
func (a *COO) Equal(b *COO) bool {
	if a.rows != b.rows || a.cols != b.cols {
		return false
	}
	a.fillM()
	eq := true
	for _, bv := range b.Data {
		if a.m[[2]int{bv.Row, bv.Col}] != bv.V {
			eq = false
			break
		}
	}
	if eq && len(a.Data) != len(b.Data) {
		eq = false
	}
	clear(a.m)
	return eq
}

// ToSym converts a to a dense symmetric matrix, using the upper triangle.
func (a *COO) ToSym() *mat.SymDense {
	if a.rows != a.cols {
		panic(fmt.Sprintf("%d %d", a.rows, a.cols))
	}
	s := mat.NewSymDense(a.rows, nil)
	for _, av := range a.Data {
		if av.Col >= av.Row {
			s.SetSym(av.Row, av.Col, av.V)
		}
	}
	return s
}

func (a *COO) String() string {
	a.fillM()
	lines := make([]string, 0, a.rows)
	for i := 0; i < a.rows; i++ {
		cs := make([]string, 0, a.cols)
		for j := 0; j < a.cols; j++ {
			cs = append(cs, fmt.Sprintf("%v", a.m[[2]int{i, j}]))
		}
		lines = append(lines, strings.Join(cs, "\t"))
	}
	clear(a.m)
	return strings.Join(lines, "\n")
}

func (a *COO) fillM() {
	for _, v := range a.Data {
		a.m[[2]int{v.Row, v.Col}] += v.V
	}
}

func (a *COO) fromM() {
	a.Data = a.Data[:0]
	for ij, v := range a.m {
		if v == 0 {
			continue
		}
		a.Data = append(a.Data, Entry{V: v, Row: ij[0], Col: ij[1]})
	}
	slices.SortFunc(a.Data, rowMajor)
	clear(a.m)
}

func rowMajor(a, b Entry) int {
	if a.Row != b.Row {
		return a.Row - b.Row
	}
	return a.Col - b.Col
}
