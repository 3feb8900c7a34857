// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package losses provides loss functions for Lipschitz-bounded binary
// classifiers and Wasserstein critics.
//
// All losses expect targets in {-1, +1} and predictions of the same shape.
// They are built from Born tensor operations, so gradients flow through the
// autodiff tape.
//
// Example:
//
//	loss := losses.NewHKRLoss(10.0, 1.0, backend)
//	l := loss.Forward(predictions, targets)
package losses

import (
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/born-lip/internal/losses"
)

// KRLoss estimates the Kantorovich-Rubinstein dual of the Wasserstein-1
// distance between the two classes. Maximize it with a 1-Lipschitz model.
type KRLoss[B tensor.Backend] = losses.KRLoss[B]

// NewKRLoss creates a KR loss.
func NewKRLoss[B tensor.Backend](backend B) *KRLoss[B] {
	return losses.NewKRLoss(backend)
}

// NegKRLoss is the negated KR estimate, suitable for gradient descent.
type NegKRLoss[B tensor.Backend] = losses.NegKRLoss[B]

// NewNegKRLoss creates a negated KR loss.
func NewNegKRLoss[B tensor.Backend](backend B) *NegKRLoss[B] {
	return losses.NewNegKRLoss(backend)
}

// HingeMarginLoss is the hinge loss mean(max(0, margin − target·pred)).
type HingeMarginLoss[B tensor.Backend] = losses.HingeMarginLoss[B]

// NewHingeMarginLoss creates a hinge loss; a zero margin selects 1.
func NewHingeMarginLoss[B tensor.Backend](margin float32, backend B) *HingeMarginLoss[B] {
	return losses.NewHingeMarginLoss(margin, backend)
}

// HKRLoss is the hinge-regularized KR loss alpha·hinge(margin) − KR.
type HKRLoss[B tensor.Backend] = losses.HKRLoss[B]

// NewHKRLoss creates an HKR loss; a zero margin selects 1. An infinite
// alpha degenerates to the pure hinge loss.
func NewHKRLoss[B tensor.Backend](alpha, margin float32, backend B) *HKRLoss[B] {
	return losses.NewHKRLoss(alpha, margin, backend)
}
