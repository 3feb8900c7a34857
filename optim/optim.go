// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	bornoptim "github.com/born-ml/born/optim"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/born-lip/internal/layers"
	"github.com/born-ml/born-lip/internal/optim"
)

// Constrained wraps a Born optimizer and condenses the registered layers
// after every step. It implements Born's optim.Optimizer interface.
type Constrained[B tensor.Backend] = optim.Constrained[B]

// NewConstrained wraps inner so the given layers are condensed after each
// step.
func NewConstrained[B tensor.Backend](inner bornoptim.Optimizer, lipLayers ...layers.LipschitzLayer[B]) *Constrained[B] {
	return optim.NewConstrained(inner, lipLayers...)
}
