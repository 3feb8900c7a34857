// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package initializers provides weight initializers producing spectrally
// normalized or approximately orthogonal kernels.
//
// Initializing inside (or close to) the constrained set avoids a large
// projection on the first optimization step of a Lipschitz-constrained
// network.
//
// Example:
//
//	init := initializers.NewBjorckInitializer[B](15, 50)
//	w := init.Init(tensor.Shape{64, 64}, backend) // ‖WᵀW − I‖ small
package initializers

import (
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/born-lip/internal/initializers"
)

// Initializer produces an initial weight tensor for a given shape.
type Initializer[B tensor.Backend] = initializers.Initializer[B]

// BjorckInitializer initializes weights close to orthogonal via spectral
// normalization followed by Björck iteration.
type BjorckInitializer[B tensor.Backend] = initializers.BjorckInitializer[B]

// NewBjorckInitializer creates a BjorckInitializer with the given power and
// Björck iteration budgets; zero values select the defaults (10, 15).
func NewBjorckInitializer[B tensor.Backend](niterSpectral, niterBjorck int) *BjorckInitializer[B] {
	return initializers.NewBjorckInitializer[B](niterSpectral, niterBjorck)
}

// SpectralInitializer initializes weights with unit spectral norm.
type SpectralInitializer[B tensor.Backend] = initializers.SpectralInitializer[B]

// NewSpectralInitializer creates a SpectralInitializer; a zero budget
// selects the default (10).
func NewSpectralInitializer[B tensor.Backend](niterSpectral int) *SpectralInitializer[B] {
	return initializers.NewSpectralInitializer[B](niterSpectral)
}
