// Package activations implements gradient-norm-preserving activation
// functions for Lipschitz-constrained networks.
//
// Standard activations like ReLU are 1-Lipschitz but contract gradients
// (half the units have zero slope), which limits the expressiveness of
// norm-constrained networks. Sorting-based activations are 1-Lipschitz and
// preserve the gradient norm: they only permute their inputs.
package activations

import (
	"fmt"
	"sort"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// GroupSort sorts contiguous groups of n values along the last axis in
// ascending order.
//
// Since sorting permutes values within each group, the activation is
// 1-Lipschitz and preserves the Euclidean norm of both activations and
// gradients. The size of the last axis must be divisible by the group size.
//
// Example:
//
//	act := activations.NewGroupSort[B](2)
//	out := act.Forward(input) // pairs (x0,x1),(x2,x3),... each sorted
type GroupSort[B tensor.Backend] struct {
	n int
}

// NewGroupSort creates a GroupSort activation with groups of size n.
func NewGroupSort[B tensor.Backend](n int) *GroupSort[B] {
	if n < 2 {
		panic(fmt.Sprintf("groupsort: group size must be at least 2, got %d", n))
	}
	return &GroupSort[B]{n: n}
}

// NewGroupSort2 creates the common two-unit variant (also known as MaxMin):
// each adjacent pair is replaced by (min, max).
func NewGroupSort2[B tensor.Backend]() *GroupSort[B] {
	return NewGroupSort[B](2)
}

// Forward sorts each group of the last axis in ascending order.
func (g *GroupSort[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	lastDim := shape[len(shape)-1]
	if lastDim%g.n != 0 {
		panic(fmt.Sprintf("groupsort: last axis size %d not divisible by group size %d", lastDim, g.n))
	}

	outRaw, err := tensor.NewRaw(shape, tensor.Float32, input.Device())
	if err != nil {
		panic(err)
	}

	in := input.Data()
	out := outRaw.AsFloat32()
	copy(out, in)

	for start := 0; start < len(out); start += g.n {
		group := out[start : start+g.n]
		if g.n == 2 {
			if group[0] > group[1] {
				group[0], group[1] = group[1], group[0]
			}
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i] < group[j] })
	}

	return tensor.New[float32, B](outRaw, input.Backend())
}

// Parameters returns an empty slice (GroupSort has no trainable parameters).
func (g *GroupSort[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

// GroupSize returns the group size.
func (g *GroupSort[B]) GroupSize() int {
	return g.n
}

// String returns a string representation of the activation.
func (g *GroupSort[B]) String() string {
	return fmt.Sprintf("GroupSort(n=%d)", g.n)
}

// StateDict returns an empty map (no parameters).
func (g *GroupSort[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for activations.
func (g *GroupSort[B]) LoadStateDict(map[string]*tensor.RawTensor) error {
	return nil
}

// FullSort sorts the entire last axis in ascending order. Equivalent to
// GroupSort with the group size equal to the axis size.
type FullSort[B tensor.Backend] struct{}

// NewFullSort creates a FullSort activation.
func NewFullSort[B tensor.Backend]() *FullSort[B] {
	return &FullSort[B]{}
}

// Forward sorts the last axis of the input.
func (f *FullSort[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	lastDim := shape[len(shape)-1]

	outRaw, err := tensor.NewRaw(shape, tensor.Float32, input.Device())
	if err != nil {
		panic(err)
	}

	in := input.Data()
	out := outRaw.AsFloat32()
	copy(out, in)

	for start := 0; start < len(out); start += lastDim {
		row := out[start : start+lastDim]
		sort.Slice(row, func(i, j int) bool { return row[i] < row[j] })
	}

	return tensor.New[float32, B](outRaw, input.Backend())
}

// Parameters returns an empty slice (FullSort has no trainable parameters).
func (f *FullSort[B]) Parameters() []*nn.Parameter[B] {
	return nil
}

// String returns a string representation of the activation.
func (f *FullSort[B]) String() string {
	return "FullSort()"
}

// StateDict returns an empty map (no parameters).
func (f *FullSort[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op for activations.
func (f *FullSort[B]) LoadStateDict(map[string]*tensor.RawTensor) error {
	return nil
}
