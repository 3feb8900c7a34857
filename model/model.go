// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model provides containers that track the global Lipschitz bound of
// a network built from Lipschitz-constrained layers.
//
// Example:
//
//	m := model.NewSequential[B](1.0,
//	    layers.NewSpectralDense(2, 64, layers.DenseConfig{}, backend),
//	    activations.NewGroupSort2[B](),
//	    layers.NewSpectralDense(64, 1, layers.DenseConfig{}, backend),
//	)
//	m.LipschitzBound() // 1.0
package model

import (
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/born-lip/internal/model"
)

// Sequential chains modules while distributing a global Lipschitz budget k
// over the Lipschitz-aware layers: each gets k^(1/n).
type Sequential[B tensor.Backend] = model.Sequential[B]

// NewSequential creates a Sequential container with the given global
// Lipschitz budget. A zero budget selects 1.
func NewSequential[B tensor.Backend](kCoefLip float32, modules ...nn.Module[B]) *Sequential[B] {
	return model.NewSequential(kCoefLip, modules...)
}

// EvaluateLipConst empirically estimates a module's Lipschitz constant by
// finite differences. The estimate is a lower bound on the true constant;
// for a correctly constrained network it stays below LipschitzBound.
func EvaluateLipConst[B tensor.Backend](
	module nn.Module[B],
	inputs *tensor.Tensor[float32, B],
	eps float32,
) float32 {
	return model.EvaluateLipConst(module, inputs, eps)
}
