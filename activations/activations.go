// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package activations provides gradient-norm-preserving activations for
// Lipschitz-constrained networks.
//
// Sorting-based activations are 1-Lipschitz and, unlike ReLU, preserve the
// gradient norm: they only permute values.
//
// Example:
//
//	act := activations.NewGroupSort2[B]()
//	out := act.Forward(input) // each adjacent pair sorted to (min, max)
package activations

import (
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/born-lip/internal/activations"
)

// GroupSort sorts contiguous groups of the last axis in ascending order.
type GroupSort[B tensor.Backend] = activations.GroupSort[B]

// NewGroupSort creates a GroupSort activation with groups of size n (n ≥ 2).
func NewGroupSort[B tensor.Backend](n int) *GroupSort[B] {
	return activations.NewGroupSort[B](n)
}

// NewGroupSort2 creates the two-unit variant, also known as MaxMin.
func NewGroupSort2[B tensor.Backend]() *GroupSort[B] {
	return activations.NewGroupSort2[B]()
}

// FullSort sorts the entire last axis in ascending order.
type FullSort[B tensor.Backend] = activations.FullSort[B]

// NewFullSort creates a FullSort activation.
func NewFullSort[B tensor.Backend]() *FullSort[B] {
	return activations.NewFullSort[B]()
}
