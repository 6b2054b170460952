package mat

import (
	"fmt"
	"math"
	"slices"
)

// Dense is a dense tensor of arbitrary rank.
type Dense struct {
	shape   []int
	strides []int
	data    []float64
}

// DenseZeros creates a zero tensor of the given shape.
func DenseZeros(shape ...int) *Dense {
	size := 1
	for _, d := range shape {
		if d <= 0 {
			panic(fmt.Sprintf("%#v", shape))
		}
		size *= d
	}
	t := &Dense{shape: slices.Clone(shape), data: make([]float64, size)}
	t.strides = strides(t.shape)
	return t
}

func strides(shape []int) []int {
	ss := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		ss[i] = acc
		acc *= shape[i]
	}
	return ss
}

func (t *Dense) Shape() []int { return t.shape }

// Size returns the total number of elements.
func (t *Dense) Size() int { return len(t.data) }

func (t *Dense) flat(ijk []int) int {
	if len(ijk) != len(t.shape) {
		panic(fmt.Sprintf("%#v %#v", ijk, t.shape))
	}
	f := 0
	for i, x := range ijk {
		if x < 0 || x >= t.shape[i] {
			panic(fmt.Sprintf("%#v %#v", ijk, t.shape))
		}
		f += x * t.strides[i]
	}
	return f
}

func (t *Dense) At(ijk ...int) float64 {
	return t.data[t.flat(ijk)]
}

func (t *Dense) SetAt(ijk []int, v float64) {
	t.data[t.flat(ijk)] = v
}

// AtFlat returns the element at a row-major flat index.
func (t *Dense) AtFlat(i int) float64 { return t.data[i] }

// SetAtFlat sets the element at a row-major flat index.
func (t *Dense) SetAtFlat(i int, v float64) { t.data[i] = v }

// Reshape returns a tensor sharing data with t under a new shape.
// At most one dimension may be -1, which is then inferred.
func (t *Dense) Reshape(shape ...int) *Dense {
	shape = slices.Clone(shape)
	size, infer := 1, -1
	for i, d := range shape {
		switch {
		case d == -1:
			if infer != -1 {
				panic(fmt.Sprintf("%#v", shape))
			}
			infer = i
		default:
			size *= d
		}
	}
	if infer != -1 {
		shape[infer] = len(t.data) / size
		size *= shape[infer]
	}
	if size != len(t.data) {
		panic(fmt.Sprintf("%#v %d", shape, len(t.data)))
	}
	return &Dense{shape: shape, strides: strides(shape), data: t.data}
}

// Transpose returns a copy of t with its axes permuted, with the k-th output
// axis running over input axis axes[k]: out.Shape()[k] == t.Shape()[axes[k]].
func (t *Dense) Transpose(axes ...int) *Dense {
	if len(axes) != len(t.shape) {
		panic(fmt.Sprintf("%#v %#v", axes, t.shape))
	}
	shape := make([]int, len(axes))
	for i, ax := range axes {
		shape[i] = t.shape[ax]
	}
	out := DenseZeros(shape...)

	ijk := make([]int, len(t.shape))
	dst := make([]int, len(t.shape))
	for f := range t.data {
		t.digits(f, ijk)
		for i, ax := range axes {
			dst[i] = ijk[ax]
		}
		out.data[out.flat(dst)] = t.data[f]
	}
	return out
}

// digits decomposes a row-major flat index into per-axis indices.
func (t *Dense) digits(f int, ijk []int) {
	for i := range t.shape {
		ijk[i] = f / t.strides[i] % t.shape[i]
	}
}

// Slice returns a copy of the subtensor at index i of the first axis.
func (t *Dense) Slice(i int) *Dense {
	if len(t.shape) < 2 {
		panic(fmt.Sprintf("%#v", t.shape))
	}
	out := DenseZeros(t.shape[1:]...)
	copy(out.data, t.data[i*t.strides[0]:(i+1)*t.strides[0]])
	return out
}

// Scale multiplies every element by c.
func (t *Dense) Scale(c float64) {
	for i := range t.data {
		t.data[i] *= c
	}
}

// AddScaled adds c*b element-wise.
func (t *Dense) AddScaled(c float64, b *Dense) {
	if !slices.Equal(t.shape, b.shape) {
		panic(fmt.Sprintf("%#v %#v", t.shape, b.shape))
	}
	for i, v := range b.data {
		t.data[i] += c * v
	}
}

// Reindex returns a copy of t with index map applied to the given axes:
// out[..., i, ...] = t[..., idx[i], ...].
func (t *Dense) Reindex(idx []int, axes ...int) *Dense {
	for _, ax := range axes {
		if t.shape[ax] != len(idx) {
			panic(fmt.Sprintf("%#v %d %d", t.shape, ax, len(idx)))
		}
	}
	out := DenseZeros(t.shape...)
	ijk := make([]int, len(t.shape))
	src := make([]int, len(t.shape))
	for f := range out.data {
		out.digits(f, ijk)
		copy(src, ijk)
		for _, ax := range axes {
			src[ax] = idx[ijk[ax]]
		}
		out.data[f] = t.data[t.flat(src)]
	}
	return out
}

// Equal compares two tensors to within tol.
func (t *Dense) Equal(b *Dense, tol float64) bool {
	if !slices.Equal(t.shape, b.shape) {
		return false
	}
	for i, v := range t.data {
		if math.Abs(v-b.data[i]) > tol {
			return false
		}
	}
	return true
}
