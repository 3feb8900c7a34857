// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package constraints provides post-step weight projections keeping a
// parameter's operator norm within a configured Lipschitz bound.
//
// Constraints mutate the weight tensor in place and are meant to run after
// each optimizer step:
//
//	c := constraints.NewSpectralConstraint[B](1.0, 0)
//	...
//	optimizer.Step(grads)
//	c.Apply(layer.Weight().Tensor())
package constraints

import (
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/born-lip/internal/constraints"
)

// Constraint projects a weight tensor back into its feasible set in place.
type Constraint[B tensor.Backend] = constraints.Constraint[B]

// SpectralConstraint rescales a weight tensor so its largest singular value
// does not exceed the configured bound. The projection is idempotent: it is
// a no-op when the tensor is already within bound.
type SpectralConstraint[B tensor.Backend] = constraints.SpectralConstraint[B]

// NewSpectralConstraint creates a constraint with the given Lipschitz bound
// and power-iteration budget; zero values select 1 and the default budget.
func NewSpectralConstraint[B tensor.Backend](kCoefLip float32, niter int) *SpectralConstraint[B] {
	return constraints.NewSpectralConstraint[B](kCoefLip, niter)
}
